// Package errors provides standardized error handling for BPMN workflow integration.
package errors

import (
	"fmt"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

// Conversation and validation errors. None of these are retried.
const (
	ErrCodeConversationNotFound ErrorCode = "CONVERSATION_NOT_FOUND"
	ErrCodeConversationClosed   ErrorCode = "CONVERSATION_CLOSED"
	ErrCodeNoData               ErrorCode = "NO_DATA"
	ErrCodeNotConfirmed         ErrorCode = "NOT_CONFIRMED"
	ErrCodeIncompleteData       ErrorCode = "INCOMPLETE_DATA"
	ErrCodeNoFacilities         ErrorCode = "NO_FACILITIES"
	ErrCodeInvalidSchedule      ErrorCode = "INVALID_SCHEDULE"
	ErrCodeSportNotFound        ErrorCode = "SPORT_NOT_FOUND"
	ErrCodeInvalidToolArguments ErrorCode = "INVALID_TOOL_ARGUMENTS"
	ErrCodeValidationFailed     ErrorCode = "VALIDATION_FAILED"
	ErrCodeInputParsingFailed   ErrorCode = "INPUT_PARSING_FAILED"
	ErrCodeInternal             ErrorCode = "INTERNAL_ERROR"
)

// Infrastructure errors. Retried with backoff.
const (
	ErrCodeProvisioningFailed     ErrorCode = "PROVISIONING_FAILED"
	ErrCodeDatabaseError          ErrorCode = "DATABASE_ERROR"
	ErrCodeTimeout                ErrorCode = "TIMEOUT"
	ErrCodeNetworkError           ErrorCode = "NETWORK_ERROR"
	ErrCodeUpstreamError          ErrorCode = "UPSTREAM_ERROR"
	ErrCodeCityResolutionFailed   ErrorCode = "CITY_RESOLUTION_FAILED"
	ErrCodeNotificationSendFailed ErrorCode = "NOTIFICATION_SEND_FAILED"
	ErrCodeConcurrentUpdate       ErrorCode = "CONCURRENT_UPDATE"
)

// GenericRetryMessage is what end users see for retryable failures.
const GenericRetryMessage = "We could not finish creating your center right now. Please try again in a moment."

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

// Unwrap exposes the underlying cause, if any.
func (e *StandardError) Unwrap() error {
	return e.cause
}

// UserMessage returns the text shown to the end user. Fatal errors are
// actionable; retryable ones collapse to a generic message.
func (e *StandardError) UserMessage() string {
	if e.Retryable {
		return GenericRetryMessage
	}
	return e.Message
}

// WithMetadata attaches a metadata key and returns the same error.
func (e *StandardError) WithMetadata(key string, value interface{}) *StandardError {
	if e.Metadata == nil {
		e.Metadata = map[string]interface{}{}
	}
	e.Metadata[key] = value
	return e
}

// ==========================
// 2. BPMN Error Integration
// ==========================

// BPMNError represents an error that can be thrown to the Camunda workflow engine.
type BPMNError struct {
	Code           string                 `json:"code"`
	Message        string                 `json:"message"`
	Details        string                 `json:"details,omitempty"`
	Retryable      bool                   `json:"retryable"`
	Retries        int                    `json:"retries"`
	ErrorVariables map[string]interface{} `json:"errorVariables,omitempty"`
}

func (e *BPMNError) Error() string {
	return fmt.Sprintf("BPMNError[%s]: %s", e.Code, e.Message)
}

// ToErrorVariables returns a map suitable for setting Camunda job fail variables.
func (e *BPMNError) ToErrorVariables() map[string]interface{} {
	vars := map[string]interface{}{
		"errorCode":    e.Code,
		"errorMessage": e.Message,
		"errorDetails": e.Details,
		"retryable":    e.Retryable,
	}
	for k, v := range e.ErrorVariables {
		vars[k] = v
	}
	return vars
}

// ==========================
// 3. Error Constructors
// ==========================

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

// NewConversationNotFoundError creates a non-retryable lookup error.
func NewConversationNotFoundError(conversationID string) *StandardError {
	return newError(ErrCodeConversationNotFound,
		"Conversation not found",
		fmt.Sprintf("conversationId: %s", conversationID), false, nil)
}

// NewConversationClosedError is returned when a tool call targets a completed or abandoned conversation.
func NewConversationClosedError(conversationID, status string) *StandardError {
	return newError(ErrCodeConversationClosed,
		fmt.Sprintf("Conversation is %s and no longer accepts changes", status),
		fmt.Sprintf("conversationId: %s", conversationID), false, nil)
}

func NewNoDataError(conversationID string) *StandardError {
	return newError(ErrCodeNoData,
		"No center data has been collected yet",
		fmt.Sprintf("conversationId: %s", conversationID), false, nil)
}

func NewNotConfirmedError(conversationID string) *StandardError {
	return newError(ErrCodeNotConfirmed,
		"The collected data has not been confirmed yet",
		fmt.Sprintf("conversationId: %s", conversationID), false, nil)
}

// NewIncompleteDataError lists the missing fields in the user-facing message.
func NewIncompleteDataError(missing []string) *StandardError {
	return newError(ErrCodeIncompleteData,
		fmt.Sprintf("missing: %s", strings.Join(missing, ", ")),
		"", false, nil).WithMetadata("missing", missing)
}

func NewNoFacilitiesError() *StandardError {
	return newError(ErrCodeNoFacilities,
		"At least one facility is required",
		"", false, nil)
}

func NewInvalidScheduleError(details string) *StandardError {
	return newError(ErrCodeInvalidSchedule,
		fmt.Sprintf("Invalid schedule: %s", details),
		details, false, nil)
}

func NewSportNotFoundError(sport string) *StandardError {
	return newError(ErrCodeSportNotFound,
		fmt.Sprintf("Sport %q is not available", sport),
		fmt.Sprintf("sport: %s", sport), false, nil)
}

func NewInvalidToolArgumentsError(tool, details string) *StandardError {
	return newError(ErrCodeInvalidToolArguments,
		fmt.Sprintf("Invalid arguments for tool %s", tool),
		details, false, nil)
}

func NewValidationFailedError(details string, cause error) *StandardError {
	return newError(ErrCodeValidationFailed,
		"Data validation failed",
		details, false, cause)
}

func NewInputParsingFailedError(err error) *StandardError {
	return newError(ErrCodeInputParsingFailed,
		"Failed to parse job variables",
		err.Error(), false, err)
}

func NewInternalError(err error) *StandardError {
	return newError(ErrCodeInternal,
		"Unexpected error",
		err.Error(), false, err)
}

// NewProvisioningFailedError wraps a failed provisioning transaction.
func NewProvisioningFailedError(err error) *StandardError {
	return newError(ErrCodeProvisioningFailed,
		"Tenant provisioning failed",
		err.Error(), true, err)
}

func NewDatabaseError(operation string, err error) *StandardError {
	return newError(ErrCodeDatabaseError,
		"Database operation failed",
		fmt.Sprintf("operation: %s, error: %s", operation, err.Error()), true, err)
}

func NewTimeoutError(service string, err error) *StandardError {
	return newError(ErrCodeTimeout,
		fmt.Sprintf("Service '%s' timeout", service),
		err.Error(), true, err)
}

func NewNetworkError(service string, err error) *StandardError {
	return newError(ErrCodeNetworkError,
		fmt.Sprintf("Network error talking to '%s'", service),
		err.Error(), true, err)
}

func NewUpstreamError(service string, statusCode int, err error) *StandardError {
	return newError(ErrCodeUpstreamError,
		fmt.Sprintf("Upstream service '%s' returned %d", service, statusCode),
		err.Error(), true, err)
}

func NewCityResolutionFailedError(city string, err error) *StandardError {
	return newError(ErrCodeCityResolutionFailed,
		"City resolution failed",
		fmt.Sprintf("city: %s, error: %s", city, err.Error()), true, err)
}

// NewNotificationSendFailedError creates a retryable notification send error.
func NewNotificationSendFailedError(notificationType string, err error) *StandardError {
	return newError(ErrCodeNotificationSendFailed,
		"Notification delivery failed",
		fmt.Sprintf("type: %s, error: %s", notificationType, err.Error()), true, err)
}

func NewConcurrentUpdateError(conversationID string, err error) *StandardError {
	return newError(ErrCodeConcurrentUpdate,
		"Conversation was modified concurrently",
		fmt.Sprintf("conversationId: %s, error: %s", conversationID, err.Error()), true, err)
}

// ==========================
// 4. Error Conversion to BPMN
// ==========================

// GetRetryCount returns the recommended job retry count for a code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeProvisioningFailed,
		ErrCodeDatabaseError,
		ErrCodeNetworkError,
		ErrCodeUpstreamError,
		ErrCodeCityResolutionFailed,
		ErrCodeNotificationSendFailed,
		ErrCodeConcurrentUpdate:
		return 3

	case ErrCodeTimeout:
		return 2

	default:
		return 0
	}
}

// ConvertToBPMNError converts a StandardError to a BPMNError for Camunda.
func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	retries := GetRetryCount(stdErr.Code)
	if !stdErr.Retryable {
		retries = 0
	}

	return &BPMNError{
		Code:      string(stdErr.Code),
		Message:   stdErr.Message,
		Details:   stdErr.Details,
		Retryable: stdErr.Retryable,
		Retries:   retries,
		ErrorVariables: map[string]interface{}{
			"originalErrorCode": string(stdErr.Code),
			"timestamp":         stdErr.Timestamp.Format(time.RFC3339),
		},
	}
}

// ==========================
// 5. Utility Functions
// ==========================

// IsRetryableErrorCode checks if an error code is retryable.
func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "CONVERSATION"):
		return "CONVERSATION"
	case strings.Contains(codeStr, "DATABASE") || strings.Contains(codeStr, "PROVISIONING") || strings.Contains(codeStr, "CONCURRENT"):
		return "DATABASE"
	case strings.Contains(codeStr, "TIMEOUT") || strings.Contains(codeStr, "NETWORK") || strings.Contains(codeStr, "UPSTREAM"):
		return "TRANSPORT"
	case strings.Contains(codeStr, "CITY"):
		return "GEOGRAPHY"
	case strings.Contains(codeStr, "NOTIFICATION"):
		return "NOTIFICATION"
	case strings.Contains(codeStr, "INVALID") || strings.Contains(codeStr, "VALIDATION") ||
		strings.Contains(codeStr, "MISSING") || strings.Contains(codeStr, "INCOMPLETE") ||
		strings.Contains(codeStr, "NO_") || strings.Contains(codeStr, "NOT_") ||
		strings.Contains(codeStr, "SPORT"):
		return "VALIDATION"
	default:
		return "OTHER"
	}
}
