package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// BusinessMetrics holds Prometheus metrics for storefront-level observability.
type BusinessMetrics struct {
	// Cart activity
	CartItemsAdded prometheus.Counter
	CartMerges     prometheus.Counter
	PromoQuotes    *prometheus.CounterVec

	// Orders
	OrdersCreated   prometheus.Counter
	OrdersCancelled prometheus.Counter
	OrderValue      prometheus.Histogram
	OrderItemCount  prometheus.Histogram
}

// NewBusinessMetrics creates and registers storefront business metrics with
// the default registry.
func NewBusinessMetrics(namespace string) *BusinessMetrics {
	if namespace == "" {
		namespace = "sif"
	}

	return &BusinessMetrics{
		CartItemsAdded: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cart_items_added_total",
			Help:      "Total units added to carts",
		}),
		CartMerges: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cart_merges_total",
			Help:      "Total guest carts merged into user carts",
		}),
		PromoQuotes: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "promo_quotes_total",
			Help:      "Total promo code quotes issued",
		}, []string{"code"}),
		OrdersCreated: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_created_total",
			Help:      "Total orders created",
		}),
		OrdersCancelled: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_cancelled_total",
			Help:      "Total orders cancelled",
		}),
		OrderValue: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "order_value_dollars",
			Help:      "Distribution of order totals in dollars",
			Buckets:   []float64{10, 25, 50, 75, 100, 150, 250, 500, 1000},
		}),
		OrderItemCount: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "order_item_count",
			Help:      "Distribution of line-item counts per order",
			Buckets:   []float64{1, 2, 3, 5, 8, 13, 21},
		}),
	}
}
