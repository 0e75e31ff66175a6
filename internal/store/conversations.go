// Package store persists onboarding conversations and tenant summaries in the
// application database.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"center-onboarding/internal/common/logger"
	"center-onboarding/internal/models"

	"github.com/jmoiron/sqlx"
	"github.com/sethvargo/go-retry"
)

var (
	ErrConversationNotFound = errors.New("CONVERSATION_NOT_FOUND")
	ErrVersionConflict      = errors.New("CONVERSATION_VERSION_CONFLICT")
)

// Updater derives the next record from the current one. Returning an error
// aborts the update without writing.
type Updater func(models.StructuredRecord) (models.StructuredRecord, error)

// ConversationStore is the key-value view of conversations used by workers.
type ConversationStore interface {
	Get(ctx context.Context, id string) (*models.Conversation, error)
	MergeUpdate(ctx context.Context, id string, update Updater) (*models.Conversation, error)
	SetStatus(ctx context.Context, id string, status models.ConversationStatus) error
}

// ConversationRepository implements ConversationStore on Postgres with an
// integer version column for optimistic concurrency.
type ConversationRepository struct {
	db          *sqlx.DB
	logger      logger.Logger
	maxAttempts uint64
	backoff     time.Duration
}

func NewConversationRepository(db *sqlx.DB, log logger.Logger, maxAttempts uint64) *ConversationRepository {
	if maxAttempts == 0 {
		maxAttempts = 5
	}
	return &ConversationRepository{
		db:          db,
		logger:      log,
		maxAttempts: maxAttempts,
		backoff:     10 * time.Millisecond,
	}
}

const selectConversation = `
	SELECT id, status, collected_data, version, created_at, updated_at
	FROM conversations
	WHERE id = $1`

func (r *ConversationRepository) Get(ctx context.Context, id string) (*models.Conversation, error) {
	var conv models.Conversation
	err := r.db.GetContext(ctx, &conv, selectConversation, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrConversationNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("load conversation %s: %w", id, err)
	}
	return &conv, nil
}

// MergeUpdate reads the current record, applies update and writes it back only
// if nobody else has written in between. Conflicts are retried.
func (r *ConversationRepository) MergeUpdate(ctx context.Context, id string, update Updater) (*models.Conversation, error) {
	var result *models.Conversation
	attempt := 0

	backoff := retry.WithMaxRetries(r.maxAttempts-1, retry.NewExponential(r.backoff))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++

		conv, err := r.Get(ctx, id)
		if err != nil {
			return err
		}

		next, err := update(conv.Record.Clone())
		if err != nil {
			return err
		}

		res, err := r.db.ExecContext(ctx, `
			UPDATE conversations
			SET collected_data = $2, version = version + 1, updated_at = NOW()
			WHERE id = $1 AND version = $3`,
			id, next, conv.Version)
		if err != nil {
			return fmt.Errorf("update conversation %s: %w", id, err)
		}

		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("update conversation %s: %w", id, err)
		}
		if affected == 0 {
			r.logger.Debug("conversation version conflict", map[string]interface{}{
				"conversationId": id,
				"version":        conv.Version,
				"attempt":        attempt,
			})
			return retry.RetryableError(fmt.Errorf("%w: %s at version %d", ErrVersionConflict, id, conv.Version))
		}

		conv.Record = next
		conv.Version++
		result = conv
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (r *ConversationRepository) SetStatus(ctx context.Context, id string, status models.ConversationStatus) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE conversations
		SET status = $2, version = version + 1, updated_at = NOW()
		WHERE id = $1`,
		id, string(status))
	if err != nil {
		return fmt.Errorf("set status of conversation %s: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("set status of conversation %s: %w", id, err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", ErrConversationNotFound, id)
	}
	return nil
}
