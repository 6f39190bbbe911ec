package provider

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrModelNotFound is returned for model ids missing from the catalog.
var ErrModelNotFound = errors.New("model not found")

// ErrorCode classifies provider failures.
type ErrorCode string

const (
	ErrCodeAuthFailed            ErrorCode = "AUTH_FAILED"
	ErrCodeRateLimited           ErrorCode = "RATE_LIMITED"
	ErrCodeQuotaExceeded         ErrorCode = "QUOTA_EXCEEDED"
	ErrCodeServiceUnavailable    ErrorCode = "SERVICE_UNAVAILABLE"
	ErrCodeModelNotFound         ErrorCode = "MODEL_NOT_FOUND"
	ErrCodeNetworkError          ErrorCode = "NETWORK_ERROR"
	ErrCodeInvalidRequest        ErrorCode = "INVALID_REQUEST"
	ErrCodeTimeout               ErrorCode = "TIMEOUT"
	ErrCodeContextWindowExceeded ErrorCode = "CONTEXT_WINDOW_EXCEEDED"
	ErrCodeUnknown               ErrorCode = "UNKNOWN"
)

// ProviderError is a structured error from a provider call.
type ProviderError struct {
	Code      ErrorCode `json:"code"`
	Message   string    `json:"message"`
	Provider  string    `json:"provider"`
	Retryable bool      `json:"retryable"`
	Cause     error     `json:"-"`
}

// Error implements the error interface.
func (e *ProviderError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Provider, e.Code, e.Message)
}

// Unwrap returns the transport error, if any.
func (e *ProviderError) Unwrap() error { return e.Cause }

// UserMessage is a corrective, user-facing description of the failure.
func (e *ProviderError) UserMessage() string {
	switch e.Code {
	case ErrCodeAuthFailed:
		return "The model provider rejected the API key. Check the key in your settings and try again."
	case ErrCodeRateLimited, ErrCodeQuotaExceeded:
		return "The model provider is rate limiting requests. Wait a moment and send the message again."
	case ErrCodeContextWindowExceeded:
		return "The conversation is too long for this model. Shorten the context or start a new chat."
	case ErrCodeModelNotFound:
		return "The selected model is not available. Pick another model and retry."
	case ErrCodeTimeout, ErrCodeNetworkError, ErrCodeServiceUnavailable:
		return "The model provider did not respond in time. Check your connection and retry."
	default:
		return "The model request failed. Please try again."
	}
}

// NewProviderError creates a ProviderError.
func NewProviderError(code ErrorCode, message, provider string, retryable bool) *ProviderError {
	return &ProviderError{Code: code, Message: message, Provider: provider, Retryable: retryable}
}

// ClassifyStatus maps an HTTP status from a provider API to a ProviderError.
func ClassifyStatus(provider string, status int, message string, cause error) *ProviderError {
	pe := &ProviderError{Code: ErrCodeUnknown, Message: message, Provider: provider, Cause: cause}
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		pe.Code = ErrCodeAuthFailed
	case status == http.StatusTooManyRequests:
		pe.Code = ErrCodeRateLimited
	case status == http.StatusNotFound:
		pe.Code = ErrCodeModelNotFound
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		pe.Code, pe.Retryable = ErrCodeTimeout, true
	case status >= 500:
		pe.Code, pe.Retryable = ErrCodeServiceUnavailable, true
	case status == http.StatusBadRequest:
		pe.Code = ErrCodeInvalidRequest
		if IsContextWindowExceeded(errors.New(message)) {
			pe.Code = ErrCodeContextWindowExceeded
		}
	}
	return pe
}

// IsContextWindowExceeded reports whether err means the input was larger
// than the model's context window.
func IsContextWindowExceeded(err error) bool {
	if err == nil {
		return false
	}
	var pe *ProviderError
	if errors.As(err, &pe) && pe.Code == ErrCodeContextWindowExceeded {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "context window") ||
		strings.Contains(msg, "context length exceeded") ||
		strings.Contains(msg, "maximum context length") ||
		strings.Contains(msg, "too many tokens")
}
