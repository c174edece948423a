package errors

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Domain errors
var (
	ErrNotFound      = errors.New("resource not found")
	ErrInvalidInput  = errors.New("invalid input")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrAlreadyExists = errors.New("resource already exists")

	// Linking protocol outcomes
	ErrInvalidCode          = errors.New("invalid verification code")
	ErrExpiredCode          = errors.New("verification code expired")
	ErrAlreadyConsumed      = errors.New("verification code already used")
	ErrRateLimited          = errors.New("too many code requests")
	ErrConfirmationRequired = errors.New("an account is already linked; confirmation required")

	// Infrastructure
	ErrStoreUnavailable = errors.New("record store unavailable")
	ErrMalformedMessage = errors.New("malformed message")
	ErrConnectionLost   = errors.New("connection lost")
)

// StoreError wraps a persistence failure so callers can match ErrStoreUnavailable
func StoreError(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", op, ErrStoreUnavailable, err)
}

// IsLinkRejection reports whether err is a user-facing, non-fatal consumption outcome
func IsLinkRejection(err error) bool {
	return errors.Is(err, ErrInvalidCode) || errors.Is(err, ErrExpiredCode) || errors.Is(err, ErrAlreadyConsumed)
}

// RateLimitError carries how long the caller should wait; it matches ErrRateLimited
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("%s, retry after %s", ErrRateLimited.Error(), e.RetryAfter.Round(time.Second))
}

func (e *RateLimitError) Is(target error) bool {
	return target == ErrRateLimited
}

// ConfirmationRequiredError names the game account a confirmed request would replace
type ConfirmationRequiredError struct {
	MinecraftUsername string
}

func (e *ConfirmationRequiredError) Error() string {
	return fmt.Sprintf("%s (linked to %s)", ErrConfirmationRequired.Error(), e.MinecraftUsername)
}

func (e *ConfirmationRequiredError) Is(target error) bool {
	return target == ErrConfirmationRequired
}

// AppError represents application error with HTTP status
type AppError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NewAppError creates a new app error
func NewAppError(status int, code, message string, err error) *AppError {
	return &AppError{
		Status:  status,
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Common error constructors
func NotFound(message string) *AppError {
	return NewAppError(http.StatusNotFound, "ERR_NOT_FOUND", message, ErrNotFound)
}

func BadRequest(message string) *AppError {
	return NewAppError(http.StatusBadRequest, "ERR_BAD_REQUEST", message, ErrInvalidInput)
}

func Unauthorized(message string) *AppError {
	return NewAppError(http.StatusUnauthorized, "ERR_UNAUTHORIZED", message, ErrUnauthorized)
}

func Conflict(message string) *AppError {
	return NewAppError(http.StatusConflict, "ERR_CONFLICT", message, ErrAlreadyExists)
}

func TooManyRequests(message string, err error) *AppError {
	return NewAppError(http.StatusTooManyRequests, "ERR_RATE_LIMITED", message, err)
}

func ServiceUnavailable(err error) *AppError {
	return NewAppError(http.StatusServiceUnavailable, "ERR_STORE_UNAVAILABLE", "service temporarily unavailable", err)
}

func InternalError(err error) *AppError {
	return NewAppError(http.StatusInternalServerError, "ERR_INTERNAL", "internal server error", err)
}

// FromError maps a domain error to its HTTP representation
func FromError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	switch {
	case errors.Is(err, ErrNotFound):
		return NewAppError(http.StatusNotFound, "ERR_NOT_FOUND", "identity not found", err)
	case errors.Is(err, ErrInvalidInput):
		return NewAppError(http.StatusBadRequest, "ERR_BAD_REQUEST", err.Error(), err)
	case errors.Is(err, ErrRateLimited):
		return TooManyRequests("too many code requests, try again shortly", err)
	case errors.Is(err, ErrConfirmationRequired):
		return NewAppError(http.StatusConflict, "ERR_CONFIRMATION_REQUIRED", "an account is already linked; resend with confirm=true to replace it", err)
	case errors.Is(err, ErrInvalidCode):
		return NewAppError(http.StatusUnprocessableEntity, "ERR_INVALID_CODE", "Invalid Token", err)
	case errors.Is(err, ErrExpiredCode):
		return NewAppError(http.StatusGone, "ERR_EXPIRED_CODE", "Token Expired", err)
	case errors.Is(err, ErrAlreadyConsumed):
		return NewAppError(http.StatusConflict, "ERR_ALREADY_CONSUMED", "Token Already Used", err)
	case errors.Is(err, ErrStoreUnavailable):
		return ServiceUnavailable(err)
	case errors.Is(err, ErrAlreadyExists):
		return Conflict("resource already exists")
	case errors.Is(err, ErrUnauthorized):
		return Unauthorized("unauthorized")
	default:
		return InternalError(err)
	}
}
