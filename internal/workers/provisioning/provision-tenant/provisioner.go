package provisiontenant

import (
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	apperrors "center-onboarding/internal/common/errors"
	"center-onboarding/internal/common/logger"
	"center-onboarding/internal/common/metrics"
	"center-onboarding/internal/common/validation"
	"center-onboarding/internal/models"
	resolvecity "center-onboarding/internal/workers/geography/resolve-city"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
)

const (
	// subscriptionMonths is also the number of monthly licences issued.
	subscriptionMonths = 3

	subscriptionActive = "ACTIVE"
	licencePaid        = "PAID"
	adminGroupName     = "Administrators"
	adminPrivilege     = "ADMIN"
)

// Options tunes the licence price and credential hashing.
type Options struct {
	LicenceAmount decimal.Decimal
	BcryptCost    int
}

func DefaultOptions() Options {
	return Options{
		LicenceAmount: decimal.Zero,
		BcryptCost:    bcrypt.DefaultCost,
	}
}

// Provisioner creates a tenant and everything it needs in the operational
// database, all or nothing.
type Provisioner struct {
	db     *sql.DB
	geo    *resolvecity.GeographyStore
	sports *SportCatalog
	opts   Options
	logger logger.Logger
	now    func() time.Time
	random io.Reader
}

func NewProvisioner(db *sql.DB, geo *resolvecity.GeographyStore, sports *SportCatalog, opts Options, log logger.Logger) *Provisioner {
	if geo == nil {
		geo = resolvecity.NewGeographyStore()
	}
	if sports == nil {
		sports = NewSportCatalog(nil, 0)
	}
	if opts.BcryptCost == 0 {
		opts.BcryptCost = bcrypt.DefaultCost
	}
	return &Provisioner{
		db:     db,
		geo:    geo,
		sports: sports,
		opts:   opts,
		logger: log,
		now:    time.Now,
		random: rand.Reader,
	}
}

// Create runs the provisioning transaction for req. A tenant already
// provisioned for req.ConversationID is returned with AlreadyExisted set and
// nothing is written. Every failure is rolled back and classified.
func (p *Provisioner) Create(ctx context.Context, req *models.ProvisioningRequest) (*models.ProvisioningResult, error) {
	if req == nil {
		return nil, apperrors.NewValidationFailedError("provisioning request is required", nil)
	}
	if vr := validation.ValidateStruct(req); !vr.Valid {
		return nil, apperrors.NewValidationFailedError(strings.Join(vr.GetErrorMessages(), "; "), nil)
	}
	if err := validateSchedules(req); err != nil {
		return nil, err
	}

	start := time.Now()
	conn, err := p.db.Conn(ctx)
	if err != nil {
		return nil, p.classify(req, fmt.Errorf("acquire connection: %w", err))
	}
	defer conn.Close()

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, p.classify(req, fmt.Errorf("begin provisioning transaction: %w", err))
	}

	result, err := p.run(ctx, tx, req)
	if err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			p.logger.Warn("rollback failed", map[string]interface{}{
				"conversationId": req.ConversationID,
				"error":          rbErr.Error(),
			})
		}
		return nil, p.classify(req, err)
	}
	if err := tx.Commit(); err != nil {
		return nil, p.classify(req, fmt.Errorf("commit provisioning transaction: %w", err))
	}

	metrics.ProvisioningDuration.Observe(time.Since(start).Seconds())
	p.logger.Info("tenant provisioned", map[string]interface{}{
		"conversationId": req.ConversationID,
		"tenantId":       result.TenantID,
		"alreadyExisted": result.AlreadyExisted,
		"facilities":     len(result.Facilities),
	})
	return result, nil
}

// FindByReference returns the tenant provisioned for conversationID, or nil.
func (p *Provisioner) FindByReference(ctx context.Context, conversationID string) (*models.ProvisioningResult, error) {
	res, err := findByReference(ctx, p.db, conversationID)
	if err != nil {
		return nil, apperrors.Classify(err, apperrors.ErrCodeDatabaseError)
	}
	return res, nil
}

func (p *Provisioner) run(ctx context.Context, tx *sql.Tx, req *models.ProvisioningRequest) (*models.ProvisioningResult, error) {
	// Serializes concurrent creations for the same conversation.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, req.ConversationID); err != nil {
		return nil, fmt.Errorf("lock conversation: %w", err)
	}
	existing, err := findByReference(ctx, tx, req.ConversationID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	now := p.now().UTC()
	res := &models.ProvisioningResult{}

	if res.ProvinceID, res.CityID, err = p.geography(ctx, tx, req); err != nil {
		return nil, err
	}

	if err := insertReturningID(ctx, tx, &res.CustomerID, "create customer", `
		INSERT INTO customers (name, email, created_at)
		VALUES ($1, $2, $3)
		RETURNING id`,
		req.TenantName, req.AdminEmail, now); err != nil {
		return nil, err
	}

	if err := insertReturningID(ctx, tx, &res.TenantID, "create tenant", `
		INSERT INTO centers (name, customer_id, city_id, currency_code, onboarding_ref, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`,
		req.TenantName, res.CustomerID, res.CityID, req.CurrencyCode, req.ConversationID, now); err != nil {
		return nil, err
	}

	if err := insertReturningID(ctx, tx, &res.SubscriptionID, "create subscription", `
		INSERT INTO subscriptions (center_id, status, start_date, end_date, months)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`,
		res.TenantID, subscriptionActive, now, now.AddDate(0, subscriptionMonths, 0), subscriptionMonths); err != nil {
		return nil, err
	}

	amount := p.opts.LicenceAmount.StringFixed(2)
	for i := 0; i < subscriptionMonths; i++ {
		var licenceID int64
		if err := insertReturningID(ctx, tx, &licenceID, "create licence", `
			INSERT INTO licences (subscription_id, period_start, period_end, amount, currency_code, status)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING id`,
			res.SubscriptionID, now.AddDate(0, i, 0), now.AddDate(0, i+1, 0), amount, req.CurrencyCode, licencePaid); err != nil {
			return nil, err
		}
		res.LicenceIDs = append(res.LicenceIDs, licenceID)
	}

	if err := insertReturningID(ctx, tx, &res.AccessGroupID, "create access group", `
		INSERT INTO access_groups (center_id, name, privilege_level)
		VALUES ($1, $2, $3)
		RETURNING id`,
		res.TenantID, adminGroupName, adminPrivilege); err != nil {
		return nil, err
	}

	if res.AdminLogin, err = p.allocateLogin(ctx, tx, req.AdminEmail); err != nil {
		return nil, err
	}
	if res.AdminPassword, err = GeneratePassword(p.random); err != nil {
		return nil, err
	}
	hash, err := HashPassword(res.AdminPassword, p.opts.BcryptCost)
	if err != nil {
		return nil, err
	}

	if err := insertReturningID(ctx, tx, &res.AdminUserID, "create admin user", `
		INSERT INTO users (center_id, access_group_id, name, email, login, password_hash)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`,
		res.TenantID, res.AccessGroupID, req.AdminName, req.AdminEmail, res.AdminLogin, hash); err != nil {
		return nil, err
	}

	if err := insertReturningID(ctx, tx, &res.PurseID, "create purse", `
		INSERT INTO purses (center_id, user_id, balance, currency_code)
		VALUES ($1, $2, $3, $4)
		RETURNING id`,
		res.TenantID, res.AdminUserID, decimal.Zero.StringFixed(2), req.CurrencyCode); err != nil {
		return nil, err
	}

	for i, f := range req.Facilities {
		pf, err := p.createFacility(ctx, tx, res.TenantID, req.CurrencyCode, f)
		if err != nil {
			return nil, fmt.Errorf("facility %d (%s): %w", i, f.Name, err)
		}
		res.Facilities = append(res.Facilities, *pf)
	}

	return res, nil
}

// geography returns the province and city of the tenant, reusing a resolved
// city when the caller supplied one.
func (p *Provisioner) geography(ctx context.Context, tx *sql.Tx, req *models.ProvisioningRequest) (int64, int64, error) {
	if req.City != nil && req.City.CityID > 0 {
		return req.City.ProvinceID, req.City.CityID, nil
	}

	provinceID, err := p.geo.GetOrCreateProvince(ctx, tx, req.ProvinceName, nil)
	if err != nil {
		return 0, 0, err
	}
	cityID, found, err := p.geo.FindCity(ctx, tx, req.CityName, provinceID)
	if err != nil {
		return 0, 0, err
	}
	if !found {
		if cityID, err = p.geo.CreateCity(ctx, tx, req.CityName, provinceID, nil); err != nil {
			return 0, 0, err
		}
	}
	return provinceID, cityID, nil
}

func (p *Provisioner) allocateLogin(ctx context.Context, tx *sql.Tx, email string) (string, error) {
	base := LoginBase(email)
	for i := 0; i < maxLoginDraws; i++ {
		login, err := drawLogin(p.random, base)
		if err != nil {
			return "", err
		}
		var taken bool
		if err := tx.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM users WHERE login = $1)`, login).Scan(&taken); err != nil {
			return "", fmt.Errorf("check login %s: %w", login, err)
		}
		if !taken {
			return login, nil
		}
	}
	return "", fmt.Errorf("no free login for %q after %d draws", base, maxLoginDraws)
}

func (p *Provisioner) createFacility(ctx context.Context, tx *sql.Tx, tenantID int64, currency string, f models.FacilityRequest) (*models.ProvisionedFacility, error) {
	sportID := f.SportID
	if sportID == 0 {
		id, err := p.sports.Find(ctx, tx, f.SportName)
		if errors.Is(err, ErrSportNotFound) {
			return nil, apperrors.NewSportNotFoundError(f.SportName)
		}
		if err != nil {
			return nil, err
		}
		sportID = id
	}

	out := &models.ProvisionedFacility{}
	if err := insertReturningID(ctx, tx, &out.FieldID, "create field", `
		INSERT INTO fields (center_id, name)
		VALUES ($1, $2)
		RETURNING id`,
		tenantID, f.Name); err != nil {
		return nil, err
	}
	if err := insertReturningID(ctx, tx, &out.TerrainID, "create terrain", `
		INSERT INTO terrains (field_id, sport_id, name)
		VALUES ($1, $2, $3)
		RETURNING id`,
		out.FieldID, sportID, f.Name); err != nil {
		return nil, err
	}

	for _, s := range f.Schedules {
		hours, _ := decimal.NewFromString(s.SlotDurationHours)
		rate, _ := decimal.NewFromString(s.Rate)
		for _, day := range s.Weekdays {
			var scheduleID int64
			if err := insertReturningID(ctx, tx, &scheduleID, "create schedule", `
				INSERT INTO schedules (terrain_id, weekday, start_time, end_time, slot_duration_hours)
				VALUES ($1, $2, $3, $4, $5)
				RETURNING id`,
				out.TerrainID, day, s.StartTime, s.EndTime, hours.StringFixed(2)); err != nil {
				return nil, err
			}
			out.ScheduleIDs = append(out.ScheduleIDs, scheduleID)
		}

		var priceID int64
		if err := insertReturningID(ctx, tx, &priceID, "create price", `
			INSERT INTO prices (terrain_id, start_time, end_time, amount, currency_code)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id`,
			out.TerrainID, s.StartTime, s.EndTime, rate.StringFixed(2), currency); err != nil {
			return nil, err
		}
		out.PriceIDs = append(out.PriceIDs, priceID)
	}
	return out, nil
}

func (p *Provisioner) classify(req *models.ProvisioningRequest, err error) *apperrors.StandardError {
	stdErr := apperrors.Classify(err, apperrors.ErrCodeProvisioningFailed)
	p.logger.Error("provisioning transaction failed", map[string]interface{}{
		"conversationId": req.ConversationID,
		"errorCode":      stdErr.Code,
		"retryable":      stdErr.Retryable,
		"error":          err.Error(),
	})
	return stdErr
}

// validateSchedules checks the transformed schedule strings before any write.
func validateSchedules(req *models.ProvisioningRequest) error {
	for i, f := range req.Facilities {
		for j, s := range f.Schedules {
			where := fmt.Sprintf("facilities[%d].schedules[%d]", i, j)
			start, err := models.ParseMinuteOfDay(s.StartTime)
			if err != nil {
				return apperrors.NewInvalidScheduleError(fmt.Sprintf("%s: %v", where, err))
			}
			end, err := models.ParseMinuteOfDay(s.EndTime)
			if err != nil {
				return apperrors.NewInvalidScheduleError(fmt.Sprintf("%s: %v", where, err))
			}
			if end <= start {
				return apperrors.NewInvalidScheduleError(fmt.Sprintf("%s: end must be after start", where))
			}
			hours, err := decimal.NewFromString(s.SlotDurationHours)
			if err != nil || !hours.IsPositive() {
				return apperrors.NewInvalidScheduleError(fmt.Sprintf("%s: invalid slot duration %q", where, s.SlotDurationHours))
			}
			rate, err := decimal.NewFromString(s.Rate)
			if err != nil || rate.IsNegative() {
				return apperrors.NewInvalidScheduleError(fmt.Sprintf("%s: invalid rate %q", where, s.Rate))
			}
		}
	}
	return nil
}

func insertReturningID(ctx context.Context, db resolvecity.DBTX, dest *int64, op, query string, args ...interface{}) error {
	if err := db.QueryRowContext(ctx, query, args...).Scan(dest); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// findByReference reloads the identifiers of the tenant provisioned for
// conversationID, or returns nil when there is none.
func findByReference(ctx context.Context, db resolvecity.DBTX, conversationID string) (*models.ProvisioningResult, error) {
	res := &models.ProvisioningResult{AlreadyExisted: true}
	err := db.QueryRowContext(ctx, `
		SELECT c.id, c.customer_id, c.city_id, ci.province_id,
		       COALESCE((SELECT MIN(id) FROM subscriptions WHERE center_id = c.id), 0),
		       COALESCE((SELECT MIN(id) FROM access_groups WHERE center_id = c.id), 0),
		       COALESCE(u.id, 0), COALESCE(u.login, ''),
		       COALESCE((SELECT MIN(id) FROM purses WHERE user_id = u.id), 0)
		FROM centers c
		JOIN cities ci ON ci.id = c.city_id
		LEFT JOIN users u ON u.id = (SELECT MIN(id) FROM users WHERE center_id = c.id)
		WHERE c.onboarding_ref = $1`,
		conversationID).Scan(&res.TenantID, &res.CustomerID, &res.CityID, &res.ProvinceID,
		&res.SubscriptionID, &res.AccessGroupID, &res.AdminUserID, &res.AdminLogin, &res.PurseID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find tenant by reference: %w", err)
	}

	err = scanPairs(ctx, db, `
		SELECT subscription_id, id FROM licences
		WHERE subscription_id = $1
		ORDER BY id`,
		res.SubscriptionID, func(_, id int64) {
			res.LicenceIDs = append(res.LicenceIDs, id)
		})
	if err != nil {
		return nil, fmt.Errorf("load licences: %w", err)
	}

	terrains := make(map[int64]int)
	err = scanPairs(ctx, db, `
		SELECT f.id, t.id FROM fields f
		JOIN terrains t ON t.field_id = f.id
		WHERE f.center_id = $1
		ORDER BY f.id, t.id`,
		res.TenantID, func(fieldID, terrainID int64) {
			terrains[terrainID] = len(res.Facilities)
			res.Facilities = append(res.Facilities, models.ProvisionedFacility{FieldID: fieldID, TerrainID: terrainID})
		})
	if err != nil {
		return nil, fmt.Errorf("load facilities: %w", err)
	}
	if len(res.Facilities) == 0 {
		return res, nil
	}

	err = scanPairs(ctx, db, `
		SELECT s.terrain_id, s.id FROM schedules s
		JOIN terrains t ON t.id = s.terrain_id
		JOIN fields f ON f.id = t.field_id
		WHERE f.center_id = $1
		ORDER BY s.id`,
		res.TenantID, func(terrainID, id int64) {
			if i, ok := terrains[terrainID]; ok {
				res.Facilities[i].ScheduleIDs = append(res.Facilities[i].ScheduleIDs, id)
			}
		})
	if err != nil {
		return nil, fmt.Errorf("load schedules: %w", err)
	}

	err = scanPairs(ctx, db, `
		SELECT p.terrain_id, p.id FROM prices p
		JOIN terrains t ON t.id = p.terrain_id
		JOIN fields f ON f.id = t.field_id
		WHERE f.center_id = $1
		ORDER BY p.id`,
		res.TenantID, func(terrainID, id int64) {
			if i, ok := terrains[terrainID]; ok {
				res.Facilities[i].PriceIDs = append(res.Facilities[i].PriceIDs, id)
			}
		})
	if err != nil {
		return nil, fmt.Errorf("load prices: %w", err)
	}
	return res, nil
}

// scanPairs runs a query returning two id columns and hands each row to fn.
func scanPairs(ctx context.Context, db resolvecity.DBTX, query string, arg interface{}, fn func(a, b int64)) error {
	rows, err := db.QueryContext(ctx, query, arg)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var a, b int64
		if err := rows.Scan(&a, &b); err != nil {
			return err
		}
		fn(a, b)
	}
	return rows.Err()
}
