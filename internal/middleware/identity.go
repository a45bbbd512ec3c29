package middleware

import (
	"context"
	"net/http"

	"github.com/calebmartin/sif/internal/domain"
)

type contextKey string

const (
	// UserIDHeader carries the authenticated user ID, set by the edge proxy
	// after it has verified the session.
	UserIDHeader = "X-User-ID"

	// SessionIDHeader carries the anonymous session ID for guest shoppers.
	SessionIDHeader = "X-Session-ID"

	// IdentityContextKey is the context key for the resolved shopper identity.
	IdentityContextKey contextKey = "identity"
)

// WithIdentity extracts the shopper identity from request headers and stores
// it in the context. Requests may carry a user ID, a session ID, or both
// (a signed-in user whose guest session has not been merged yet).
func WithIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity := domain.Identity{
			UserID:    r.Header.Get(UserIDHeader),
			SessionID: r.Header.Get(SessionIDHeader),
		}
		ctx := context.WithValue(r.Context(), IdentityContextKey, identity)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetIdentity retrieves the shopper identity from the context. Returns the
// zero Identity when no identity middleware ran.
func GetIdentity(ctx context.Context) domain.Identity {
	if id, ok := ctx.Value(IdentityContextKey).(domain.Identity); ok {
		return id
	}
	return domain.Identity{}
}
