package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"center-onboarding/internal/models"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// TenantSummaryStore records which conversation produced which tenant.
type TenantSummaryStore interface {
	FindByConversation(ctx context.Context, conversationID string) (*models.TenantSummary, error)
	Save(ctx context.Context, summary *models.TenantSummary) error
}

type TenantSummaryRepository struct {
	db *sqlx.DB
}

func NewTenantSummaryRepository(db *sqlx.DB) *TenantSummaryRepository {
	return &TenantSummaryRepository{db: db}
}

// FindByConversation returns nil, nil when the conversation has no tenant yet.
func (r *TenantSummaryRepository) FindByConversation(ctx context.Context, conversationID string) (*models.TenantSummary, error) {
	var summary models.TenantSummary
	err := r.db.GetContext(ctx, &summary, `
		SELECT id, conversation_id, external_tenant_id, tenant_name, city,
		       admin_name, admin_email, admin_login, facility_count, provisioned_ids, created_at
		FROM onboarded_tenants
		WHERE conversation_id = $1`, conversationID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find tenant summary for %s: %w", conversationID, err)
	}
	return &summary, nil
}

// Save inserts the summary; a summary already stored for the conversation wins.
func (r *TenantSummaryRepository) Save(ctx context.Context, summary *models.TenantSummary) error {
	if summary.ID == "" {
		summary.ID = uuid.New().String()
	}
	if summary.CreatedAt.IsZero() {
		summary.CreatedAt = time.Now().UTC()
	}

	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO onboarded_tenants (
			id, conversation_id, external_tenant_id, tenant_name, city,
			admin_name, admin_email, admin_login, facility_count, provisioned_ids, created_at
		) VALUES (
			:id, :conversation_id, :external_tenant_id, :tenant_name, :city,
			:admin_name, :admin_email, :admin_login, :facility_count, :provisioned_ids, :created_at
		)
		ON CONFLICT (conversation_id) DO NOTHING`, summary)
	if err != nil {
		return fmt.Errorf("save tenant summary for %s: %w", summary.ConversationID, err)
	}
	return nil
}
