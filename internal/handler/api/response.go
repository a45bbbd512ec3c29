package api

import (
	"encoding/json"
	"net/http"

	"github.com/calebmartin/sif/internal/domain"
	"github.com/calebmartin/sif/internal/middleware"
)

// envelope is the uniform JSON response shape.
type envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, body envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// respondData writes a success envelope carrying data.
func respondData(w http.ResponseWriter, status int, data any) {
	respondJSON(w, status, envelope{Success: true, Data: data})
}

// respondError translates a domain error into an HTTP status and a
// {success:false, message} body. Internal errors log the cause and return a
// generic message.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	code := domain.ErrorCode(err)
	status := errorCodeToHTTPStatus(code)

	logger := middleware.GetLogger(r.Context())
	attrs := []any{
		"error", err.Error(),
		"code", code,
		"status", status,
	}
	if status >= 500 {
		logger.Error("request failed", attrs...)
	} else {
		logger.Info("request rejected", attrs...)
	}

	respondJSON(w, status, envelope{Success: false, Message: domain.ErrorMessage(err)})
}

// errorCodeToHTTPStatus maps domain error codes to HTTP status codes.
func errorCodeToHTTPStatus(code string) int {
	switch code {
	case domain.EINVALID:
		return http.StatusBadRequest
	case domain.ENOTFOUND:
		return http.StatusNotFound
	case domain.ECONFLICT:
		return http.StatusConflict
	case domain.EGONE:
		return http.StatusGone
	default:
		return http.StatusInternalServerError
	}
}

// decodeJSON parses the request body into dst, rejecting unknown fields.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return domain.Invalid("api.decode", "Invalid request body")
	}
	return nil
}
