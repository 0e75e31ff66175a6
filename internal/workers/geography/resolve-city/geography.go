package resolvecity

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/lib/pq"
)

// DBTX is satisfied by *sql.DB, *sql.Conn and *sql.Tx so geography writes can
// join the provisioning transaction.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// Candidate is a stored city considered for a fuzzy match.
type Candidate struct {
	ID           int64
	Name         string
	ProvinceID   int64
	ProvinceName string
	CountryID    *int64
}

// CountryRow is a stored country.
type CountryRow struct {
	ID       int64
	Name     string
	ISOCode  string
	Currency string
}

const maxCandidates = 100

// GeographyStore reads and writes countries, provinces and cities. Older
// schemas have no cities.country_id column; the store detects that once and
// stops using it.
type GeographyStore struct {
	noCountryColumn atomic.Bool
}

func NewGeographyStore() *GeographyStore {
	return &GeographyStore{}
}

// HasCountryColumn reports whether cities.country_id is believed to exist.
func (s *GeographyStore) HasCountryColumn() bool {
	return !s.noCountryColumn.Load()
}

func isUndefinedColumn(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "42703"
}

// markNoCountryColumn records a missing column and reports whether err was one.
func (s *GeographyStore) markNoCountryColumn(err error) bool {
	if isUndefinedColumn(err) {
		s.noCountryColumn.Store(true)
		return true
	}
	return false
}

// CountryScope narrows a candidate search. A non-nil ID keeps that country
// plus unlinked cities; Unlinked keeps only cities without a country.
type CountryScope struct {
	ID       *int64
	Unlinked bool
}

// FindCandidates returns up to 100 cities whose normalized name starts with
// normalizedPrefix, restricted by scope.
func (s *GeographyStore) FindCandidates(ctx context.Context, db DBTX, normalizedPrefix string, scope CountryScope) ([]Candidate, error) {
	pattern := namePattern(normalizedPrefix)
	rows, err := s.queryCandidates(ctx, db, pattern, scope)
	if err != nil && s.HasCountryColumn() && s.markNoCountryColumn(err) {
		rows, err = s.queryCandidates(ctx, db, pattern, scope)
	}
	if err != nil {
		return nil, fmt.Errorf("find city candidates: %w", err)
	}
	defer rows.Close()

	var out []Candidate
	for rows.Next() {
		var c Candidate
		var countryID sql.NullInt64
		if err := rows.Scan(&c.ID, &c.Name, &c.ProvinceID, &c.ProvinceName, &countryID); err != nil {
			return nil, fmt.Errorf("scan city candidate: %w", err)
		}
		if countryID.Valid {
			id := countryID.Int64
			c.CountryID = &id
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate city candidates: %w", err)
	}
	return out, nil
}

func (s *GeographyStore) queryCandidates(ctx context.Context, db DBTX, pattern string, scope CountryScope) (*sql.Rows, error) {
	limit := fmt.Sprint(maxCandidates)
	switch {
	case !s.HasCountryColumn():
		return db.QueryContext(ctx, `
			SELECT c.id, c.name, c.province_id, p.name, NULL::bigint
			FROM cities c
			JOIN provinces p ON p.id = c.province_id
			WHERE c.name ~ $1
			ORDER BY c.id
			LIMIT `+limit,
			pattern)
	case scope.ID != nil:
		return db.QueryContext(ctx, `
			SELECT c.id, c.name, c.province_id, p.name, c.country_id
			FROM cities c
			JOIN provinces p ON p.id = c.province_id
			WHERE c.name ~ $1
			  AND (c.country_id = $2 OR c.country_id IS NULL)
			ORDER BY c.id
			LIMIT `+limit,
			pattern, *scope.ID)
	case scope.Unlinked:
		return db.QueryContext(ctx, `
			SELECT c.id, c.name, c.province_id, p.name, c.country_id
			FROM cities c
			JOIN provinces p ON p.id = c.province_id
			WHERE c.name ~ $1
			  AND c.country_id IS NULL
			ORDER BY c.id
			LIMIT `+limit,
			pattern)
	default:
		return db.QueryContext(ctx, `
			SELECT c.id, c.name, c.province_id, p.name, c.country_id
			FROM cities c
			JOIN provinces p ON p.id = c.province_id
			WHERE c.name ~ $1
			ORDER BY c.id
			LIMIT `+limit,
			pattern)
	}
}

// FindCountry returns the stored country for isoCode, or nil.
func (s *GeographyStore) FindCountry(ctx context.Context, db DBTX, isoCode string) (*CountryRow, error) {
	var c CountryRow
	var currency sql.NullString
	err := db.QueryRowContext(ctx,
		`SELECT id, name, iso_code, currency_code FROM countries WHERE iso_code = $1`,
		isoCode).Scan(&c.ID, &c.Name, &c.ISOCode, &currency)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find country %s: %w", isoCode, err)
	}
	c.Currency = currency.String
	return &c, nil
}

// GetOrCreateCountry returns the country for isoCode, inserting it with the
// static defaults when absent.
func (s *GeographyStore) GetOrCreateCountry(ctx context.Context, db DBTX, isoCode string) (*CountryRow, error) {
	existing, err := s.FindCountry(ctx, db, isoCode)
	if err != nil || existing != nil {
		return existing, err
	}

	defaults, ok := LookupCountry(isoCode)
	if !ok {
		defaults = Country{Name: isoCode}
	}

	var id int64
	err = db.QueryRowContext(ctx, `
		INSERT INTO countries (name, iso_code, currency_code)
		VALUES ($1, $2, NULLIF($3, ''))
		ON CONFLICT (iso_code) DO NOTHING
		RETURNING id`,
		defaults.Name, isoCode, defaults.Currency).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		// Lost a race with a concurrent insert.
		return s.FindCountry(ctx, db, isoCode)
	}
	if err != nil {
		return nil, fmt.Errorf("create country %s: %w", isoCode, err)
	}
	return &CountryRow{ID: id, Name: defaults.Name, ISOCode: isoCode, Currency: defaults.Currency}, nil
}

// GetOrCreateProvince finds a province by exact name or inserts it.
func (s *GeographyStore) GetOrCreateProvince(ctx context.Context, db DBTX, name string, countryID *int64) (int64, error) {
	var id int64
	err := db.QueryRowContext(ctx,
		`SELECT id FROM provinces WHERE name = $1 ORDER BY id LIMIT 1`, name).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("find province %q: %w", name, err)
	}

	err = db.QueryRowContext(ctx,
		`INSERT INTO provinces (name, country_id) VALUES ($1, $2) RETURNING id`,
		name, nullableID(countryID)).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("create province %q: %w", name, err)
	}
	return id, nil
}

// FindCity returns the id of the city named exactly name in provinceID.
func (s *GeographyStore) FindCity(ctx context.Context, db DBTX, name string, provinceID int64) (int64, bool, error) {
	var id int64
	err := db.QueryRowContext(ctx,
		`SELECT id FROM cities WHERE name = $1 AND province_id = $2 ORDER BY id LIMIT 1`,
		name, provinceID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("find city %q: %w", name, err)
	}
	return id, true, nil
}

// CreateCity inserts a city linked to its province and, when the schema
// allows, its country.
func (s *GeographyStore) CreateCity(ctx context.Context, db DBTX, name string, provinceID int64, countryID *int64) (int64, error) {
	var id int64
	if s.HasCountryColumn() {
		err := db.QueryRowContext(ctx,
			`INSERT INTO cities (name, province_id, country_id) VALUES ($1, $2, $3) RETURNING id`,
			name, provinceID, nullableID(countryID)).Scan(&id)
		if err == nil {
			return id, nil
		}
		if !s.markNoCountryColumn(err) {
			return 0, fmt.Errorf("create city %q: %w", name, err)
		}
	}

	err := db.QueryRowContext(ctx,
		`INSERT INTO cities (name, province_id) VALUES ($1, $2) RETURNING id`,
		name, provinceID).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("create city %q: %w", name, err)
	}
	return id, nil
}

// AttachCountry links an unlinked city to countryID. It reports false when
// the schema has no country column.
func (s *GeographyStore) AttachCountry(ctx context.Context, db DBTX, cityID, countryID int64) (bool, error) {
	if !s.HasCountryColumn() {
		return false, nil
	}
	_, err := db.ExecContext(ctx,
		`UPDATE cities SET country_id = $1 WHERE id = $2 AND country_id IS NULL`,
		countryID, cityID)
	if err != nil {
		if s.markNoCountryColumn(err) {
			return false, nil
		}
		return false, fmt.Errorf("attach country to city %d: %w", cityID, err)
	}
	return true, nil
}

// FindCountryByID returns the stored country with id, or nil.
func (s *GeographyStore) FindCountryByID(ctx context.Context, db DBTX, id int64) (*CountryRow, error) {
	var c CountryRow
	var currency sql.NullString
	err := db.QueryRowContext(ctx,
		`SELECT id, name, iso_code, currency_code FROM countries WHERE id = $1`,
		id).Scan(&c.ID, &c.Name, &c.ISOCode, &currency)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find country %d: %w", id, err)
	}
	c.Currency = currency.String
	return &c, nil
}

func nullableID(id *int64) interface{} {
	if id == nil {
		return nil
	}
	return *id
}
