package provisiontenant

import (
	"context"
	"database/sql/driver"
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"

	"center-onboarding/internal/common/cache"
	apperrors "center-onboarding/internal/common/errors"
	"center-onboarding/internal/common/logger"
	"center-onboarding/internal/models"
	resolvecity "center-onboarding/internal/workers/geography/resolve-city"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

var referenceColumns = []string{
	"id", "customer_id", "city_id", "province_id", "subscription_id",
	"access_group_id", "user_id", "login", "purse_id",
}

var provisionedAt = time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)

func newProvisioner(t *testing.T) (*Provisioner, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	p := NewProvisioner(db, resolvecity.NewGeographyStore(),
		NewSportCatalog(cache.NewMemoryCache(8, time.Minute), time.Minute),
		Options{BcryptCost: bcrypt.MinCost}, logger.NewTestLogger(t))
	p.now = func() time.Time { return provisionedAt }
	return p, mock
}

func expectID(mock sqlmock.Sqlmock, pattern string, id int64, args ...driver.Value) {
	q := mock.ExpectQuery(pattern)
	if len(args) > 0 {
		q = q.WithArgs(args...)
	}
	q.WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(id))
}

func expectPreamble(mock sqlmock.Sqlmock, conversationID string) {
	mock.ExpectBegin()
	mock.ExpectExec(`pg_advisory_xact_lock`).
		WithArgs(conversationID).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`FROM centers c`).
		WithArgs(conversationID).
		WillReturnRows(sqlmock.NewRows(referenceColumns))
}

// expectTenantCore covers customer through purse.
func expectTenantCore(mock sqlmock.Sqlmock) {
	anyArg := sqlmock.AnyArg()
	expectID(mock, `INSERT INTO customers`, 100, "Club X", "ana@clubx.com", anyArg)
	expectID(mock, `INSERT INTO centers`, 200, "Club X", int64(100), int64(1), "EUR", "conv-1", anyArg)
	expectID(mock, `INSERT INTO subscriptions`, 300, int64(200), "ACTIVE", provisionedAt, provisionedAt.AddDate(0, 3, 0), 3)
	for i := 0; i < 3; i++ {
		expectID(mock, `INSERT INTO licences`, int64(401+i), int64(300),
			provisionedAt.AddDate(0, i, 0), provisionedAt.AddDate(0, i+1, 0), "0.00", "EUR", "PAID")
	}
	expectID(mock, `INSERT INTO access_groups`, 500, int64(200), "Administrators", "ADMIN")
	mock.ExpectQuery(`SELECT EXISTS`).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	expectID(mock, `INSERT INTO users`, 600, int64(200), int64(500), "Ana", "ana@clubx.com", anyArg, anyArg)
	expectID(mock, `INSERT INTO purses`, 700, int64(200), int64(600), "0.00", "EUR")
}

// expectExistingTenant reloads the Club X tenant as provisioned by
// TestProvisioner_Create_ClubX.
func expectExistingTenant(mock sqlmock.Sqlmock, conversationID string) {
	mock.ExpectQuery(`FROM centers c`).
		WithArgs(conversationID).
		WillReturnRows(sqlmock.NewRows(referenceColumns).
			AddRow(int64(200), int64(100), int64(1), int64(10), int64(300), int64(500), int64(600), "ana4821", int64(700)))
	mock.ExpectQuery(`FROM licences`).
		WithArgs(int64(300)).
		WillReturnRows(sqlmock.NewRows([]string{"subscription_id", "id"}).
			AddRow(int64(300), int64(401)).AddRow(int64(300), int64(402)).AddRow(int64(300), int64(403)))
	mock.ExpectQuery(`FROM fields f`).
		WithArgs(int64(200)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "id"}).AddRow(int64(800), int64(900)))
	schedules := sqlmock.NewRows([]string{"terrain_id", "id"})
	for day := int64(1); day <= 5; day++ {
		schedules.AddRow(int64(900), 1000+day)
	}
	mock.ExpectQuery(`FROM schedules s`).WithArgs(int64(200)).WillReturnRows(schedules)
	mock.ExpectQuery(`FROM prices p`).
		WithArgs(int64(200)).
		WillReturnRows(sqlmock.NewRows([]string{"terrain_id", "id"}).AddRow(int64(900), int64(2001)))
}

func clubXIDs() models.ProvisionedIDs {
	return models.ProvisionedIDs{
		TenantID:       200,
		CustomerID:     100,
		SubscriptionID: 300,
		LicenceIDs:     []int64{401, 402, 403},
		AccessGroupID:  500,
		AdminUserID:    600,
		PurseID:        700,
		CityID:         1,
		ProvinceID:     10,
		Facilities: []models.ProvisionedFacility{{
			FieldID:     800,
			TerrainID:   900,
			ScheduleIDs: []int64{1001, 1002, 1003, 1004, 1005},
			PriceIDs:    []int64{2001},
		}},
	}
}

func clubX() *models.ProvisioningRequest {
	return &models.ProvisioningRequest{
		ConversationID: "conv-1",
		TenantName:     "Club X",
		CityName:       "Madrid",
		ProvinceName:   "Madrid",
		City:           &models.ResolvedCity{CityID: 1, CanonicalName: "Madrid", ProvinceID: 10, ProvinceName: "Madrid"},
		AdminName:      "Ana",
		AdminEmail:     "ana@clubx.com",
		CurrencyCode:   "EUR",
		Facilities: []models.FacilityRequest{{
			Name:      "Court 1",
			SportName: "padel",
			Schedules: []models.ScheduleRequest{{
				Weekdays:          []int{1, 2, 3, 4, 5},
				StartTime:         "09:00",
				EndTime:           "21:00",
				SlotDurationHours: "1.50",
				Rate:              "20.00",
			}},
		}},
	}
}

func TestProvisioner_Create_ClubX(t *testing.T) {
	p, mock := newProvisioner(t)

	expectPreamble(mock, "conv-1")
	expectTenantCore(mock)
	mock.ExpectQuery(`SELECT id, name FROM sports`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).AddRow(int64(1), "Tennis").AddRow(int64(2), "Pádel"))
	expectID(mock, `INSERT INTO fields`, 800, int64(200), "Court 1")
	expectID(mock, `INSERT INTO terrains`, 900, int64(800), int64(2), "Court 1")
	for day := 1; day <= 5; day++ {
		expectID(mock, `INSERT INTO schedules`, int64(1000+day), int64(900), day, "09:00", "21:00", "1.50")
	}
	expectID(mock, `INSERT INTO prices`, 2001, int64(900), "09:00", "21:00", "20.00", "EUR")
	mock.ExpectCommit()

	res, err := p.Create(context.Background(), clubX())
	require.NoError(t, err)

	assert.Equal(t, clubXIDs(), res.ProvisionedIDs)
	assert.Len(t, res.LicenceIDs, 3)
	assert.Regexp(t, regexp.MustCompile(`^ana\d{4}$`), res.AdminLogin)
	assert.Len(t, res.AdminPassword, 10)
	assert.False(t, strings.ContainsAny(res.AdminPassword, "0OIl1"))
	assert.False(t, res.AlreadyExisted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProvisioner_Create_OnePricePerScheduleEntry(t *testing.T) {
	p, mock := newProvisioner(t)
	req := clubX()
	req.Facilities[0].SportID = 2
	req.Facilities[0].Schedules = []models.ScheduleRequest{
		{Weekdays: []int{1, 3}, StartTime: "09:00", EndTime: "14:00", SlotDurationHours: "1.00", Rate: "12.00"},
		{Weekdays: []int{6}, StartTime: "10:00", EndTime: "12:00", SlotDurationHours: "2.00", Rate: "30"},
	}

	expectPreamble(mock, "conv-1")
	expectTenantCore(mock)
	expectID(mock, `INSERT INTO fields`, 800)
	expectID(mock, `INSERT INTO terrains`, 900)
	expectID(mock, `INSERT INTO schedules`, 1001, int64(900), 1, "09:00", "14:00", "1.00")
	expectID(mock, `INSERT INTO schedules`, 1002, int64(900), 3, "09:00", "14:00", "1.00")
	expectID(mock, `INSERT INTO prices`, 2001, int64(900), "09:00", "14:00", "12.00", "EUR")
	expectID(mock, `INSERT INTO schedules`, 1003, int64(900), 6, "10:00", "12:00", "2.00")
	expectID(mock, `INSERT INTO prices`, 2002, int64(900), "10:00", "12:00", "30.00", "EUR")
	mock.ExpectCommit()

	res, err := p.Create(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, res.Facilities, 1)
	assert.Equal(t, []int64{1001, 1002, 1003}, res.Facilities[0].ScheduleIDs)
	assert.Equal(t, []int64{2001, 2002}, res.Facilities[0].PriceIDs)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProvisioner_Create_FacilityWithoutSchedules(t *testing.T) {
	p, mock := newProvisioner(t)
	req := clubX()
	req.Facilities[0].SportID = 2
	req.Facilities[0].Schedules = nil

	expectPreamble(mock, "conv-1")
	expectTenantCore(mock)
	expectID(mock, `INSERT INTO fields`, 800, int64(200), "Court 1")
	expectID(mock, `INSERT INTO terrains`, 900, int64(800), int64(2), "Court 1")
	mock.ExpectCommit()

	res, err := p.Create(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, res.Facilities, 1)
	assert.Equal(t, int64(900), res.Facilities[0].TerrainID)
	assert.Empty(t, res.Facilities[0].ScheduleIDs)
	assert.Empty(t, res.Facilities[0].PriceIDs)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProvisioner_Create_RollsBackOnSecondFacilityFailure(t *testing.T) {
	p, mock := newProvisioner(t)

	req := clubX()
	req.Facilities[0].SportID = 2
	second := req.Facilities[0]
	second.Name = "Court 2"
	second.Schedules = []models.ScheduleRequest{{Weekdays: []int{6}, StartTime: "10:00", EndTime: "12:00", SlotDurationHours: "1.00", Rate: "15"}}
	req.Facilities = append(req.Facilities, second)

	expectPreamble(mock, "conv-1")
	expectTenantCore(mock)
	expectID(mock, `INSERT INTO fields`, 800)
	expectID(mock, `INSERT INTO terrains`, 900)
	for day := 1; day <= 5; day++ {
		expectID(mock, `INSERT INTO schedules`, int64(1000+day))
	}
	expectID(mock, `INSERT INTO prices`, 2001)
	expectID(mock, `INSERT INTO fields`, 801, int64(200), "Court 2")
	mock.ExpectQuery(`INSERT INTO terrains`).
		WillReturnError(&pq.Error{Code: "40001", Message: "could not serialize access"})
	mock.ExpectRollback()

	res, err := p.Create(context.Background(), req)
	assert.Nil(t, res)

	var stdErr *apperrors.StandardError
	require.True(t, errors.As(err, &stdErr))
	assert.Equal(t, apperrors.ErrCodeDatabaseError, stdErr.Code)
	assert.True(t, stdErr.Retryable)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProvisioner_Create_SportNotFoundIsFatal(t *testing.T) {
	p, mock := newProvisioner(t)

	req := clubX()
	req.Facilities[0].SportName = "Curling"

	expectPreamble(mock, "conv-1")
	expectTenantCore(mock)
	mock.ExpectQuery(`SELECT id, name FROM sports`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).AddRow(int64(1), "Tennis"))
	mock.ExpectRollback()

	_, err := p.Create(context.Background(), req)

	var stdErr *apperrors.StandardError
	require.True(t, errors.As(err, &stdErr))
	assert.Equal(t, apperrors.ErrCodeSportNotFound, stdErr.Code)
	assert.False(t, stdErr.Retryable)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProvisioner_Create_ReturnsExistingTenant(t *testing.T) {
	p, mock := newProvisioner(t)

	mock.ExpectBegin()
	mock.ExpectExec(`pg_advisory_xact_lock`).
		WithArgs("conv-1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	expectExistingTenant(mock, "conv-1")
	mock.ExpectCommit()

	res, err := p.Create(context.Background(), clubX())
	require.NoError(t, err)
	assert.True(t, res.AlreadyExisted)
	assert.Equal(t, clubXIDs(), res.ProvisionedIDs)
	assert.Equal(t, "ana4821", res.AdminLogin)
	assert.Empty(t, res.AdminPassword)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProvisioner_Create_RetriesTakenLogin(t *testing.T) {
	p, mock := newProvisioner(t)
	req := clubX()
	req.Facilities[0].SportID = 2
	req.Facilities[0].Schedules[0].Weekdays = []int{7}

	anyArg := sqlmock.AnyArg()
	expectPreamble(mock, "conv-1")
	expectID(mock, `INSERT INTO customers`, 100)
	expectID(mock, `INSERT INTO centers`, 200)
	expectID(mock, `INSERT INTO subscriptions`, 300)
	for i := int64(0); i < 3; i++ {
		expectID(mock, `INSERT INTO licences`, 401+i)
	}
	expectID(mock, `INSERT INTO access_groups`, 500)
	mock.ExpectQuery(`SELECT EXISTS`).WithArgs(anyArg).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectQuery(`SELECT EXISTS`).WithArgs(anyArg).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	expectID(mock, `INSERT INTO users`, 600)
	expectID(mock, `INSERT INTO purses`, 700)
	expectID(mock, `INSERT INTO fields`, 800)
	expectID(mock, `INSERT INTO terrains`, 900)
	expectID(mock, `INSERT INTO schedules`, 1007, int64(900), 7, "09:00", "21:00", "1.50")
	expectID(mock, `INSERT INTO prices`, 2007)
	mock.ExpectCommit()

	res, err := p.Create(context.Background(), req)
	require.NoError(t, err)
	assert.Regexp(t, `^ana\d{4}$`, res.AdminLogin)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProvisioner_Create_CreatesGeographyWithoutResolvedCity(t *testing.T) {
	p, mock := newProvisioner(t)
	req := clubX()
	req.City = nil
	req.CityName = "Nordkapp"
	req.ProvinceName = "Finnmark"
	req.CurrencyCode = "NOK"
	req.Facilities[0].SportID = 2
	req.Facilities[0].Schedules[0].Weekdays = []int{1}

	mock.ExpectBegin()
	mock.ExpectExec(`pg_advisory_xact_lock`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`FROM centers c`).WillReturnRows(sqlmock.NewRows(referenceColumns))
	mock.ExpectQuery(`SELECT id FROM provinces`).WithArgs("Finnmark").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	expectID(mock, `INSERT INTO provinces`, 30, "Finnmark", nil)
	mock.ExpectQuery(`SELECT id FROM cities WHERE name`).WithArgs("Nordkapp", int64(30)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	expectID(mock, `INSERT INTO cities`, 31, "Nordkapp", int64(30), nil)
	expectID(mock, `INSERT INTO customers`, 100)
	expectID(mock, `INSERT INTO centers`, 200, "Club X", int64(100), int64(31), "NOK", "conv-1", sqlmock.AnyArg())
	expectID(mock, `INSERT INTO subscriptions`, 300)
	for i := int64(0); i < 3; i++ {
		expectID(mock, `INSERT INTO licences`, 401+i)
	}
	expectID(mock, `INSERT INTO access_groups`, 500)
	mock.ExpectQuery(`SELECT EXISTS`).WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	expectID(mock, `INSERT INTO users`, 600)
	expectID(mock, `INSERT INTO purses`, 700)
	expectID(mock, `INSERT INTO fields`, 800)
	expectID(mock, `INSERT INTO terrains`, 900)
	expectID(mock, `INSERT INTO schedules`, 1001)
	expectID(mock, `INSERT INTO prices`, 2001, int64(900), "09:00", "21:00", "20.00", "NOK")
	mock.ExpectCommit()

	res, err := p.Create(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, int64(31), res.CityID)
	assert.Equal(t, int64(30), res.ProvinceID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProvisioner_Create_RejectsBadInputBeforeWriting(t *testing.T) {
	p, mock := newProvisioner(t)

	tests := []struct {
		name   string
		mutate func(*models.ProvisioningRequest)
		code   apperrors.ErrorCode
	}{
		{"missing admin email", func(r *models.ProvisioningRequest) { r.AdminEmail = "" }, apperrors.ErrCodeValidationFailed},
		{"no facilities", func(r *models.ProvisioningRequest) { r.Facilities = nil }, apperrors.ErrCodeValidationFailed},
		{"bad duration", func(r *models.ProvisioningRequest) { r.Facilities[0].Schedules[0].SlotDurationHours = "abc" }, apperrors.ErrCodeInvalidSchedule},
		{"end before start", func(r *models.ProvisioningRequest) { r.Facilities[0].Schedules[0].EndTime = "08:00" }, apperrors.ErrCodeInvalidSchedule},
		{"negative rate", func(r *models.ProvisioningRequest) { r.Facilities[0].Schedules[0].Rate = "-1" }, apperrors.ErrCodeInvalidSchedule},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := clubX()
			tt.mutate(req)
			_, err := p.Create(context.Background(), req)

			var stdErr *apperrors.StandardError
			require.True(t, errors.As(err, &stdErr))
			assert.Equal(t, tt.code, stdErr.Code)
			assert.False(t, stdErr.Retryable)
		})
	}
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProvisioner_FindByReference(t *testing.T) {
	p, mock := newProvisioner(t)

	mock.ExpectQuery(`FROM centers c`).WithArgs("conv-1").WillReturnRows(sqlmock.NewRows(referenceColumns))
	res, err := p.FindByReference(context.Background(), "conv-1")
	require.NoError(t, err)
	assert.Nil(t, res)

	expectExistingTenant(mock, "conv-2")
	res, err = p.FindByReference(context.Background(), "conv-2")
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, clubXIDs(), res.ProvisionedIDs)
	assert.True(t, res.AlreadyExisted)
	assert.Empty(t, res.AdminPassword)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProvisioner_FindByReference_WithoutFacilities(t *testing.T) {
	p, mock := newProvisioner(t)

	mock.ExpectQuery(`FROM centers c`).
		WithArgs("conv-3").
		WillReturnRows(sqlmock.NewRows(referenceColumns).
			AddRow(int64(7), int64(8), int64(9), int64(10), int64(11), int64(12), int64(13), "bob1234", int64(14)))
	mock.ExpectQuery(`FROM licences`).
		WithArgs(int64(11)).
		WillReturnRows(sqlmock.NewRows([]string{"subscription_id", "id"}).AddRow(int64(11), int64(21)))
	mock.ExpectQuery(`FROM fields f`).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "id"}))

	res, err := p.FindByReference(context.Background(), "conv-3")
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, []int64{21}, res.LicenceIDs)
	assert.Equal(t, int64(14), res.PurseID)
	assert.Empty(t, res.Facilities)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProvisioner_FindByReference_LoadFailure(t *testing.T) {
	p, mock := newProvisioner(t)

	mock.ExpectQuery(`FROM centers c`).
		WithArgs("conv-4").
		WillReturnRows(sqlmock.NewRows(referenceColumns).
			AddRow(int64(7), int64(8), int64(9), int64(10), int64(11), int64(12), int64(13), "bob1234", int64(14)))
	mock.ExpectQuery(`FROM licences`).WillReturnError(context.DeadlineExceeded)

	res, err := p.FindByReference(context.Background(), "conv-4")
	assert.Nil(t, res)

	var stdErr *apperrors.StandardError
	require.True(t, errors.As(err, &stdErr))
	assert.Equal(t, apperrors.ErrCodeTimeout, stdErr.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}
