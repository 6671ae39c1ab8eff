// Package errors provides the standardized error taxonomy of the fulfillment pipeline.
package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

// Pipeline taxonomy
const (
	ErrCodeInvalidSignature         ErrorCode = "INVALID_SIGNATURE"
	ErrCodeUnrecognizedEventType    ErrorCode = "UNRECOGNIZED_EVENT_TYPE"
	ErrCodeFilteredEventType        ErrorCode = "FILTERED_EVENT_TYPE"
	ErrCodeInvalidPayload           ErrorCode = "INVALID_PAYLOAD"
	ErrCodeMissingIdentity          ErrorCode = "MISSING_IDENTITY"
	ErrCodeProductNotFound          ErrorCode = "PRODUCT_NOT_FOUND"
	ErrCodeAccountStoreConflict     ErrorCode = "ACCOUNT_STORE_CONFLICT"
	ErrCodeGrantFailed              ErrorCode = "GRANT_FAILED"
	ErrCodeIntegrationFailure       ErrorCode = "INTEGRATION_FAILURE"
	ErrCodeAutomationTriggerFailure ErrorCode = "AUTOMATION_TRIGGER_FAILURE"
)

// Infrastructure
const (
	ErrCodeDatabaseConnectionFailed ErrorCode = "DATABASE_CONNECTION_FAILED"
	ErrCodeQueryExecutionFailed     ErrorCode = "QUERY_EXECUTION_FAILED"
	ErrCodeExternalService          ErrorCode = "EXTERNAL_SERVICE_ERROR"
	ErrCodeTimeout                  ErrorCode = "TIMEOUT_ERROR"
	ErrCodeResourceNotFound         ErrorCode = "RESOURCE_NOT_FOUND"
	ErrCodeConflict                 ErrorCode = "RESOURCE_CONFLICT"
	ErrCodeAuthentication           ErrorCode = "AUTHENTICATION_ERROR"
	ErrCodeInternal                 ErrorCode = "INTERNAL_ERROR"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`

	cause error
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

func (e *StandardError) Unwrap() error {
	return e.cause
}

// WithMetadata attaches a key/value pair and returns the same error.
func (e *StandardError) WithMetadata(key string, value interface{}) *StandardError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}

func newError(code ErrorCode, message, details string, retryable bool, cause error) *StandardError {
	return &StandardError{
		Code:      code,
		Message:   message,
		Details:   details,
		Retryable: retryable,
		Timestamp: time.Now().UTC(),
		cause:     cause,
	}
}

func causeText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// ==========================
// 2. Error Constructors
// ==========================

// NewInvalidSignatureError is the only error that rejects a delivery.
func NewInvalidSignatureError(err error) *StandardError {
	return newError(ErrCodeInvalidSignature, "Webhook signature verification failed", causeText(err), false, err)
}

func NewUnrecognizedEventTypeError(eventType string) *StandardError {
	return newError(ErrCodeUnrecognizedEventType, "Event type not handled", fmt.Sprintf("eventType: %s", eventType), false, nil)
}

func NewFilteredEventTypeError(eventType, product string) *StandardError {
	return newError(ErrCodeFilteredEventType, "Event filtered by product discriminator",
		fmt.Sprintf("eventType: %s, product: %q", eventType, product), false, nil)
}

func NewInvalidPayloadError(details string, err error) *StandardError {
	return newError(ErrCodeInvalidPayload, "Event payload could not be decoded", details, false, err)
}

// NewMissingIdentityError marks a data-quality gap: the delivery is acknowledged
// but nothing is fulfilled.
func NewMissingIdentityError(referenceID, details string) *StandardError {
	return newError(ErrCodeMissingIdentity, "No usable customer email for purchase", details, false, nil).
		WithMetadata("externalReferenceId", referenceID)
}

func NewProductNotFoundError(slug string) *StandardError {
	return newError(ErrCodeProductNotFound, "Product not found in catalog", fmt.Sprintf("slug: %s", slug), false, nil)
}

func NewAccountStoreConflictError(email string, err error) *StandardError {
	return newError(ErrCodeAccountStoreConflict, "Account already exists", fmt.Sprintf("email: %s", email), true, err)
}

func NewGrantFailedError(step string, err error) *StandardError {
	return newError(ErrCodeGrantFailed, "Entitlement grant failed", fmt.Sprintf("step: %s, error: %s", step, causeText(err)), true, err)
}

// NewIntegrationError wraps an adapter failure with the adapter's name.
func NewIntegrationError(integration string, err error) *StandardError {
	return newError(ErrCodeIntegrationFailure, fmt.Sprintf("Integration '%s' failed", integration), causeText(err), true, err).
		WithMetadata("integration", integration)
}

func NewAutomationTriggerError(signal string, err error) *StandardError {
	return newError(ErrCodeAutomationTriggerFailure, "Automation trigger failed", fmt.Sprintf("signal: %s, error: %s", signal, causeText(err)), true, err)
}

func NewDatabaseConnectionFailedError(err error) *StandardError {
	return newError(ErrCodeDatabaseConnectionFailed, "Database connection error", causeText(err), true, err)
}

func NewQueryExecutionFailedError(query string, err error) *StandardError {
	return newError(ErrCodeQueryExecutionFailed, "Database query execution error",
		fmt.Sprintf("query: %s, error: %s", query, causeText(err)), true, err)
}

// Generic constructors

func NewExternalServiceError(service string, err error) *StandardError {
	return newError(ErrCodeExternalService, fmt.Sprintf("External service '%s' error", service), causeText(err), true, err)
}

func NewTimeoutError(service string, err error) *StandardError {
	return newError(ErrCodeTimeout, fmt.Sprintf("Service '%s' timeout", service), causeText(err), true, err)
}

func NewResourceNotFoundError(service, details string) *StandardError {
	return newError(ErrCodeResourceNotFound, fmt.Sprintf("Resource not found in %s", service), details, false, nil)
}

func NewConflictError(service, details string) *StandardError {
	return newError(ErrCodeConflict, fmt.Sprintf("Resource already exists in %s", service), details, false, nil)
}

func NewAuthenticationError(details string) *StandardError {
	return newError(ErrCodeAuthentication, "Authentication failed", details, false, nil)
}

// ==========================
// 3. Utility Functions
// ==========================

// AsStandardError finds a StandardError anywhere in err's chain.
func AsStandardError(err error) (*StandardError, bool) {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr, true
	}
	return nil, false
}

// HasCode reports whether err carries the given code.
func HasCode(err error, code ErrorCode) bool {
	stdErr, ok := AsStandardError(err)
	return ok && stdErr.Code == code
}

// Normalize always returns a StandardError, wrapping unknown errors as internal.
func Normalize(err error) *StandardError {
	if stdErr, ok := AsStandardError(err); ok {
		return stdErr
	}
	return newError(ErrCodeInternal, "Unexpected error", causeText(err), false, err)
}

// GetErrorCategory groups codes for logs and metrics.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case code == ErrCodeInvalidSignature || code == ErrCodeAuthentication:
		return "SECURITY"
	case strings.Contains(codeStr, "EVENT_TYPE"):
		return "ROUTING"
	case code == ErrCodeMissingIdentity || code == ErrCodeInvalidPayload:
		return "DATA_QUALITY"
	case code == ErrCodeProductNotFound || code == ErrCodeAccountStoreConflict || code == ErrCodeGrantFailed:
		return "ENTITLEMENT"
	case strings.Contains(codeStr, "DATABASE") || strings.Contains(codeStr, "QUERY"):
		return "DATABASE"
	case code == ErrCodeIntegrationFailure || code == ErrCodeAutomationTriggerFailure ||
		code == ErrCodeExternalService || code == ErrCodeTimeout:
		return "INTEGRATION"
	default:
		return "OTHER"
	}
}
