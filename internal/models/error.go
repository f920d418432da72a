package models

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for common failure conditions
var (
	ErrNotFound       = errors.New("account not found")
	ErrAlreadyExists  = errors.New("account already exists")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrBadRequest     = errors.New("bad request")
	ErrInternalServer = errors.New("internal server error")

	// OTP challenge state errors
	ErrAlreadyVerified  = errors.New("account is already verified")
	ErrNotVerified      = errors.New("account email is not verified")
	ErrDeactivated      = errors.New("account is deactivated")
	ErrLocked           = errors.New("account is temporarily locked")
	ErrExpired          = errors.New("otp has expired")
	ErrAttemptsExceeded = errors.New("maximum otp attempts exceeded")
	ErrInvalidOTP       = errors.New("invalid otp")

	ErrRateLimited        = errors.New("rate limit exceeded")
	ErrConflictingWrite   = errors.New("conflicting concurrent write")
	ErrNotificationFailed = errors.New("failed to deliver notification")
	ErrStoreUnavailable   = errors.New("credential store unavailable")
	ErrValidation         = errors.New("validation failed")
)

// InvalidOTPError is returned on an OTP mismatch and carries the number of
// tries left against the current challenge. errors.Is matches ErrInvalidOTP.
type InvalidOTPError struct {
	AttemptsRemaining int
}

func (e *InvalidOTPError) Error() string {
	return fmt.Sprintf("invalid otp: %d attempts remaining", e.AttemptsRemaining)
}

func (e *InvalidOTPError) Is(target error) bool {
	return target == ErrInvalidOTP
}

// RateLimitedError carries the caller-visible retry-after duration.
// errors.Is matches ErrRateLimited.
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limit exceeded, retry after %s", e.RetryAfter)
}

func (e *RateLimitedError) Is(target error) bool {
	return target == ErrRateLimited
}

// FieldError describes a single invalid input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError aggregates field-level input failures.
// errors.Is matches ErrValidation.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "validation failed"
	}
	return fmt.Sprintf("validation failed: %s: %s", e.Fields[0].Field, e.Fields[0].Message)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}
