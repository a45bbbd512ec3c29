package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		expected string
	}{
		{
			name: "message only",
			err: &Error{
				Code:    EINVALID,
				Message: "invalid input",
			},
			expected: "invalid input",
		},
		{
			name: "with operation",
			err: &Error{
				Code:    EINVALID,
				Op:      "cart.add_item",
				Message: "invalid input",
			},
			expected: "cart.add_item: invalid input",
		},
		{
			name: "with wrapped error",
			err: &Error{
				Code:    EINTERNAL,
				Op:      "order.create",
				Message: "failed to save",
				Err:     errors.New("database connection failed"),
			},
			expected: "order.create: failed to save: database connection failed",
		},
		{
			name: "wrapped error without op",
			err: &Error{
				Code:    EINTERNAL,
				Message: "failed to save",
				Err:     errors.New("database connection failed"),
			},
			expected: "failed to save: database connection failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.expected {
				t.Errorf("Error.Error() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestErrorCode(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{
			name:     "nil error",
			err:      nil,
			expected: "",
		},
		{
			name:     "domain error",
			err:      &Error{Code: ENOTFOUND, Message: "not found"},
			expected: ENOTFOUND,
		},
		{
			name:     "wrapped domain error",
			err:      fmt.Errorf("outer: %w", &Error{Code: ECONFLICT, Message: "conflict"}),
			expected: ECONFLICT,
		},
		{
			name:     "non-domain error",
			err:      errors.New("plain error"),
			expected: EINTERNAL,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ErrorCode(tt.err); got != tt.expected {
				t.Errorf("ErrorCode() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestErrorMessage(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{
			name:     "nil error",
			err:      nil,
			expected: "",
		},
		{
			name:     "domain error surfaces its message",
			err:      &Error{Code: EINVALID, Message: "Quantity must be greater than 0"},
			expected: "Quantity must be greater than 0",
		},
		{
			name:     "internal error hides details",
			err:      &Error{Code: EINTERNAL, Message: "connection string was wrong"},
			expected: "An internal error occurred. Please try again later.",
		},
		{
			name:     "non-domain error hides details",
			err:      errors.New("pq: password authentication failed"),
			expected: "An internal error occurred. Please try again later.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ErrorMessage(tt.err); got != tt.expected {
				t.Errorf("ErrorMessage() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestErrorIs_PredeclaredErrors(t *testing.T) {
	t.Run("rebuilt error matches its sentinel", func(t *testing.T) {
		rebuilt := &Error{
			Code:    ErrCartEmpty.Code,
			Message: ErrCartEmpty.Message,
			Op:      "order.checkout",
		}
		if !errors.Is(rebuilt, ErrCartEmpty) {
			t.Error("rebuilt error should match ErrCartEmpty")
		}
	})

	t.Run("wrapped sentinel still matches", func(t *testing.T) {
		wrapped := fmt.Errorf("checkout: %w", ErrOrderNotFound)
		if !errors.Is(wrapped, ErrOrderNotFound) {
			t.Error("wrapped error should match ErrOrderNotFound")
		}
	})

	t.Run("different sentinels do not match", func(t *testing.T) {
		if errors.Is(ErrCartNotFound, ErrOrderNotFound) {
			t.Error("ErrCartNotFound should not match ErrOrderNotFound")
		}
	})

	t.Run("non-domain target does not match", func(t *testing.T) {
		if errors.Is(ErrCartNotFound, errors.New("cart not found")) {
			t.Error("domain error should not match a plain error")
		}
	})
}

func TestWrapError(t *testing.T) {
	t.Run("nil stays nil", func(t *testing.T) {
		if WrapError(nil, EINTERNAL, "op", "msg") != nil {
			t.Error("WrapError(nil) should be nil")
		}
	})

	t.Run("preserves the cause", func(t *testing.T) {
		cause := errors.New("disk full")
		err := WrapError(cause, EINTERNAL, "order.create", "failed to create order")

		if !errors.Is(err, cause) {
			t.Error("wrapped error should match its cause")
		}
		if ErrorCode(err) != EINTERNAL {
			t.Errorf("code = %q, want %q", ErrorCode(err), EINTERNAL)
		}
	})
}

func TestErrorConstructors(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		code    string
		message string
	}{
		{
			name:    "Invalid",
			err:     Invalid("cart.add_item", "quantity must be positive"),
			code:    EINVALID,
			message: "quantity must be positive",
		},
		{
			name:    "Conflict",
			err:     Conflict("order.update_status", "transition not permitted"),
			code:    ECONFLICT,
			message: "transition not permitted",
		},
		{
			name:    "NotFound",
			err:     NotFound("order.get", "order", "abc-123"),
			code:    ENOTFOUND,
			message: "order not found: abc-123",
		},
		{
			name:    "Errorf",
			err:     Errorf(ECONFLICT, "cart.add_item", "Insufficient stock. Available: %d", 3),
			code:    ECONFLICT,
			message: "Insufficient stock. Available: 3",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ErrorCode(tt.err); got != tt.code {
				t.Errorf("code = %q, want %q", got, tt.code)
			}
			if got := ErrorMessage(tt.err); got != tt.message {
				t.Errorf("message = %q, want %q", got, tt.message)
			}
		})
	}
}

func TestIsCode(t *testing.T) {
	err := Invalid("cart.add_item", "bad input")

	if !IsCode(err, EINVALID) {
		t.Error("IsCode should match EINVALID")
	}
	if IsCode(err, ENOTFOUND) {
		t.Error("IsCode should not match ENOTFOUND")
	}
}
