package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calebmartin/sif/internal/domain"
)

func TestErrorCodeToHTTPStatus(t *testing.T) {
	tests := []struct {
		code string
		want int
	}{
		{domain.EINVALID, http.StatusBadRequest},
		{domain.ENOTFOUND, http.StatusNotFound},
		{domain.ECONFLICT, http.StatusConflict},
		{domain.EGONE, http.StatusGone},
		{domain.EINTERNAL, http.StatusInternalServerError},
		{"unmapped", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.Equal(t, tt.want, errorCodeToHTTPStatus(tt.code))
		})
	}
}

func TestRespondError(t *testing.T) {
	t.Run("domain error surfaces its message", func(t *testing.T) {
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/api/cart", nil)

		respondError(w, r, domain.ErrCartNotFound)

		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

		var body envelope
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.False(t, body.Success)
		assert.Equal(t, "Cart not found", body.Message)
		assert.Nil(t, body.Data)
	})

	t.Run("unexpected error maps to a generic 500", func(t *testing.T) {
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/api/cart", nil)

		respondError(w, r, errors.New("pq: connection refused"))

		assert.Equal(t, http.StatusInternalServerError, w.Code)

		var body envelope
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.False(t, body.Success)
		// The raw cause never leaks to the client.
		assert.NotContains(t, body.Message, "connection refused")
	})
}

func TestRespondData(t *testing.T) {
	w := httptest.NewRecorder()

	respondData(w, http.StatusCreated, map[string]string{"id": "abc"})

	assert.Equal(t, http.StatusCreated, w.Code)

	var body envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.True(t, body.Success)
	assert.Equal(t, map[string]any{"id": "abc"}, body.Data)
}

func TestDecodeJSON(t *testing.T) {
	type payload struct {
		Quantity int `json:"quantity"`
	}

	t.Run("valid body", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/api/cart/items", strings.NewReader(`{"quantity": 2}`))

		var dst payload
		require.NoError(t, decodeJSON(r, &dst))
		assert.Equal(t, 2, dst.Quantity)
	})

	t.Run("unknown fields are rejected", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/api/cart/items", strings.NewReader(`{"quantity": 2, "color": "red"}`))

		var dst payload
		err := decodeJSON(r, &dst)
		require.Error(t, err)
		assert.Equal(t, domain.EINVALID, domain.ErrorCode(err))
	})

	t.Run("malformed body", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/api/cart/items", strings.NewReader(`{`))

		var dst payload
		err := decodeJSON(r, &dst)
		require.Error(t, err)
		assert.Equal(t, "Invalid request body", domain.ErrorMessage(err))
	})
}
