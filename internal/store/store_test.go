package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"center-onboarding/internal/common/logger"
	"center-onboarding/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var conversationColumns = []string{"id", "status", "collected_data", "version", "created_at", "updated_at"}

func newRepo(t *testing.T) (*ConversationRepository, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	repo := NewConversationRepository(sqlx.NewDb(db, "sqlmock"), logger.NewTestLogger(t), 3)
	repo.backoff = time.Millisecond
	return repo, mock
}

func conversationRow(id string, data string, version int64) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows(conversationColumns).AddRow(id, "active", []byte(data), version, now, now)
}

func TestConversationRepository_Get(t *testing.T) {
	repo, mock := newRepo(t)

	mock.ExpectQuery(`SELECT id, status, collected_data, version`).
		WithArgs("conv-1").
		WillReturnRows(conversationRow("conv-1", `{"tenantName":"Club X","confirmed":false}`, 4))

	conv, err := repo.Get(context.Background(), "conv-1")
	require.NoError(t, err)
	assert.Equal(t, models.ConversationActive, conv.Status)
	assert.Equal(t, "Club X", conv.Record.TenantName)
	assert.Equal(t, int64(4), conv.Version)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConversationRepository_Get_NotFound(t *testing.T) {
	repo, mock := newRepo(t)

	mock.ExpectQuery(`SELECT id, status, collected_data, version`).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows(conversationColumns))

	_, err := repo.Get(context.Background(), "missing")
	assert.True(t, errors.Is(err, ErrConversationNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConversationRepository_MergeUpdate_RetriesOnConflict(t *testing.T) {
	repo, mock := newRepo(t)

	// First attempt loses the race.
	mock.ExpectQuery(`SELECT id, status, collected_data, version`).
		WithArgs("conv-1").
		WillReturnRows(conversationRow("conv-1", `{"tenantName":"Club X"}`, 1))
	mock.ExpectExec(`UPDATE conversations`).
		WithArgs("conv-1", sqlmock.AnyArg(), int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	// Second attempt sees the concurrent write and succeeds.
	mock.ExpectQuery(`SELECT id, status, collected_data, version`).
		WithArgs("conv-1").
		WillReturnRows(conversationRow("conv-1", `{"tenantName":"Club X","city":"Madrid"}`, 2))
	mock.ExpectExec(`UPDATE conversations`).
		WithArgs("conv-1", sqlmock.AnyArg(), int64(2)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	conv, err := repo.MergeUpdate(context.Background(), "conv-1", func(rec models.StructuredRecord) (models.StructuredRecord, error) {
		rec.AdminName = "Ana"
		return rec, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "Madrid", conv.Record.City)
	assert.Equal(t, "Ana", conv.Record.AdminName)
	assert.Equal(t, int64(3), conv.Version)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConversationRepository_MergeUpdate_GivesUp(t *testing.T) {
	repo, mock := newRepo(t)

	for i := 0; i < 3; i++ {
		mock.ExpectQuery(`SELECT id, status, collected_data, version`).
			WithArgs("conv-1").
			WillReturnRows(conversationRow("conv-1", `{}`, int64(i)))
		mock.ExpectExec(`UPDATE conversations`).
			WithArgs("conv-1", sqlmock.AnyArg(), int64(i)).
			WillReturnResult(sqlmock.NewResult(0, 0))
	}

	_, err := repo.MergeUpdate(context.Background(), "conv-1", func(rec models.StructuredRecord) (models.StructuredRecord, error) {
		return rec, nil
	})
	assert.True(t, errors.Is(err, ErrVersionConflict))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConversationRepository_MergeUpdate_UpdaterErrorAborts(t *testing.T) {
	repo, mock := newRepo(t)

	mock.ExpectQuery(`SELECT id, status, collected_data, version`).
		WithArgs("conv-1").
		WillReturnRows(conversationRow("conv-1", `{}`, 1))

	boom := errors.New("boom")
	_, err := repo.MergeUpdate(context.Background(), "conv-1", func(rec models.StructuredRecord) (models.StructuredRecord, error) {
		return rec, boom
	})
	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConversationRepository_SetStatus(t *testing.T) {
	repo, mock := newRepo(t)

	mock.ExpectExec(`UPDATE conversations\s+SET status`).
		WithArgs("conv-1", "completed").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE conversations\s+SET status`).
		WithArgs("ghost", "abandoned").
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.SetStatus(context.Background(), "conv-1", models.ConversationCompleted))
	err := repo.SetStatus(context.Background(), "ghost", models.ConversationAbandoned)
	assert.True(t, errors.Is(err, ErrConversationNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTenantSummaryRepository(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewTenantSummaryRepository(sqlx.NewDb(db, "sqlmock"))
	ctx := context.Background()

	mock.ExpectQuery(`SELECT id, conversation_id, external_tenant_id`).
		WithArgs("conv-1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	summary, err := repo.FindByConversation(ctx, "conv-1")
	require.NoError(t, err)
	assert.Nil(t, summary)

	mock.ExpectExec(`INSERT INTO onboarded_tenants`).
		WithArgs(sqlmock.AnyArg(), "conv-1", int64(42), "Club X", "Madrid", "Ana", "ana@club.com", "ana1234", 2,
			[]byte(`{"tenantId":42,"customerId":0,"subscriptionId":9,"licenceIds":[11,12,13],"accessGroupId":0,"adminUserId":0,"purseId":0,"cityId":0,"provinceId":0,"facilities":null}`),
			sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err = repo.Save(ctx, &models.TenantSummary{
		ConversationID:   "conv-1",
		ExternalTenantID: 42,
		TenantName:       "Club X",
		City:             "Madrid",
		AdminName:        "Ana",
		AdminEmail:       "ana@club.com",
		AdminLogin:       "ana1234",
		FacilityCount:    2,
		Identifiers:      models.ProvisionedIDs{TenantID: 42, SubscriptionID: 9, LicenceIDs: []int64{11, 12, 13}},
	})
	require.NoError(t, err)

	now := time.Now()
	mock.ExpectQuery(`SELECT id, conversation_id, external_tenant_id`).
		WithArgs("conv-1").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "conversation_id", "external_tenant_id", "tenant_name", "city",
			"admin_name", "admin_email", "admin_login", "facility_count", "provisioned_ids", "created_at",
		}).AddRow("s-1", "conv-1", int64(42), "Club X", "Madrid", "Ana", "ana@club.com", "ana1234", 2,
			[]byte(`{"tenantId":42,"subscriptionId":9,"licenceIds":[11,12,13]}`), now))

	summary, err = repo.FindByConversation(ctx, "conv-1")
	require.NoError(t, err)
	require.NotNil(t, summary)
	assert.Equal(t, int64(42), summary.ExternalTenantID)
	assert.Equal(t, []int64{11, 12, 13}, summary.Identifiers.LicenceIDs)
	assert.Equal(t, int64(9), summary.Identifiers.SubscriptionID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAsStandardError(t *testing.T) {
	assert.Nil(t, AsStandardError(nil, "conv-1"))
	assert.Equal(t, "CONVERSATION_NOT_FOUND", string(AsStandardError(ErrConversationNotFound, "conv-1").Code))

	conflict := AsStandardError(ErrVersionConflict, "conv-1")
	assert.Equal(t, "CONCURRENT_UPDATE", string(conflict.Code))
	assert.True(t, conflict.Retryable)

	assert.Equal(t, "DATABASE_ERROR", string(AsStandardError(errors.New("disk full"), "conv-1").Code))
}
