package store

import (
	"errors"

	apperrors "center-onboarding/internal/common/errors"
)

// AsStandardError maps store failures for conversationID onto the shared
// error taxonomy.
func AsStandardError(err error, conversationID string) *apperrors.StandardError {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrConversationNotFound):
		return apperrors.NewConversationNotFoundError(conversationID)
	case errors.Is(err, ErrVersionConflict):
		return apperrors.NewConcurrentUpdateError(conversationID, err)
	default:
		return apperrors.Classify(err, apperrors.ErrCodeDatabaseError)
	}
}
