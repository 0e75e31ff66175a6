package errors

import (
	"context"
	"database/sql"
	"database/sql/driver"
	stderrors "errors"
	"fmt"
	"net"

	"github.com/lib/pq"
)

// StatusError is returned by HTTP collaborators for non-2xx responses.
type StatusError struct {
	Service    string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s returned status %d: %s", e.Service, e.StatusCode, e.Body)
}

// Classify converts any error into a StandardError. Errors that are already
// standardized pass through untouched; everything unrecognised gets the
// fallback code with its default retry policy.
func Classify(err error, fallback ErrorCode) *StandardError {
	if err == nil {
		return nil
	}

	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr
	}

	if stderrors.Is(err, context.DeadlineExceeded) || stderrors.Is(err, context.Canceled) {
		return NewTimeoutError("operation", err)
	}

	var pqErr *pq.Error
	if stderrors.As(err, &pqErr) {
		return classifyPostgres(pqErr, err)
	}

	if stderrors.Is(err, driver.ErrBadConn) || stderrors.Is(err, sql.ErrConnDone) {
		return NewNetworkError("postgres", err)
	}

	var statusErr *StatusError
	if stderrors.As(err, &statusErr) {
		if statusErr.StatusCode >= 500 || statusErr.StatusCode == 429 {
			return NewUpstreamError(statusErr.Service, statusErr.StatusCode, err)
		}
		return NewValidationFailedError(statusErr.Error(), err)
	}

	var netErr net.Error
	if stderrors.As(err, &netErr) {
		if netErr.Timeout() {
			return NewTimeoutError("network", err)
		}
		return NewNetworkError("network", err)
	}

	return newError(fallback, fallbackMessage(fallback), err.Error(), IsRetryableErrorCode(fallback), err)
}

// IsRetryable reports whether err should be retried after classification.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	return Classify(err, ErrCodeInternal).Retryable
}

// classifyPostgres maps SQLSTATE classes onto retry policy.
func classifyPostgres(pqErr *pq.Error, err error) *StandardError {
	switch pqErr.Code.Class() {
	case "08":
		return NewNetworkError("postgres", err)
	case "40", "53", "57":
		return NewDatabaseError(pqErr.Code.Name(), err)
	case "22", "23":
		return NewValidationFailedError(fmt.Sprintf("%s: %s", pqErr.Code.Name(), pqErr.Message), err)
	case "42":
		e := NewDatabaseError(pqErr.Code.Name(), err)
		e.Retryable = false
		return e
	default:
		return NewDatabaseError(pqErr.Code.Name(), err)
	}
}

func fallbackMessage(code ErrorCode) string {
	switch code {
	case ErrCodeProvisioningFailed:
		return "Tenant provisioning failed"
	case ErrCodeCityResolutionFailed:
		return "City resolution failed"
	case ErrCodeNotificationSendFailed:
		return "Notification delivery failed"
	case ErrCodeDatabaseError:
		return "Database operation failed"
	default:
		return "Unexpected error"
	}
}
