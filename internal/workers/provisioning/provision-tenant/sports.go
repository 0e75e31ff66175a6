package provisiontenant

import (
	"context"
	"errors"
	"fmt"
	"time"

	"center-onboarding/internal/common/cache"
	resolvecity "center-onboarding/internal/workers/geography/resolve-city"
)

// ErrSportNotFound is wrapped when a facility names a sport the catalogue lacks.
var ErrSportNotFound = errors.New("sport not found")

const sportsCacheKey = "sports:all"

// Sport is an entry of the operational sports catalogue.
type Sport struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// SportCatalog resolves sport names to ids, caching the catalogue.
type SportCatalog struct {
	cache cache.Cache
	ttl   time.Duration
}

func NewSportCatalog(c cache.Cache, ttl time.Duration) *SportCatalog {
	return &SportCatalog{cache: c, ttl: ttl}
}

// Find returns the id of the sport whose normalized name equals name's.
func (s *SportCatalog) Find(ctx context.Context, db resolvecity.DBTX, name string) (int64, error) {
	sports, err := cache.GetOrLoad(ctx, s.cache, sportsCacheKey, s.ttl, func(ctx context.Context) ([]Sport, error) {
		return loadSports(ctx, db)
	})
	if err != nil {
		return 0, err
	}

	want := resolvecity.Normalize(name)
	for _, sp := range sports {
		if resolvecity.Normalize(sp.Name) == want {
			return sp.ID, nil
		}
	}
	return 0, fmt.Errorf("%w: %s", ErrSportNotFound, name)
}

func loadSports(ctx context.Context, db resolvecity.DBTX) ([]Sport, error) {
	rows, err := db.QueryContext(ctx, `SELECT id, name FROM sports ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("load sports: %w", err)
	}
	defer rows.Close()

	var out []Sport
	for rows.Next() {
		var sp Sport
		if err := rows.Scan(&sp.ID, &sp.Name); err != nil {
			return nil, fmt.Errorf("scan sport: %w", err)
		}
		out = append(out, sp)
	}
	return out, rows.Err()
}
