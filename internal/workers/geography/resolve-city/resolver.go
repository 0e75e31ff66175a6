package resolvecity

import (
	"context"
	"sort"
	"strings"

	apperrors "center-onboarding/internal/common/errors"
	"center-onboarding/internal/common/logger"
	"center-onboarding/internal/common/metrics"
	"center-onboarding/internal/models"
)

const (
	exactScore      = 100
	acceptScore     = 75
	singleScore     = 60
	ambiguityMargin = 10
	prefixRunes     = 3
)

// Request is a raw city reference as collected from the conversation.
type Request struct {
	City        string `json:"city"`
	Province    string `json:"province,omitempty"`
	CountryCode string `json:"countryCode,omitempty"`
	PlaceID     string `json:"placeId,omitempty"`
}

// Resolver maps free-text city names onto the gazetteer, creating missing
// countries, provinces and cities.
type Resolver struct {
	db     DBTX
	geo    *GeographyStore
	places PlaceLookup
	logger logger.Logger
}

// NewResolver builds a resolver. places may be nil when no place service is configured.
func NewResolver(db DBTX, geo *GeographyStore, places PlaceLookup, log logger.Logger) *Resolver {
	if geo == nil {
		geo = NewGeographyStore()
	}
	return &Resolver{db: db, geo: geo, places: places, logger: log}
}

type scoredCandidate struct {
	Candidate
	score         int
	provinceMatch bool
}

// Resolve returns the stored city for req, creating it when nothing matches.
func (r *Resolver) Resolve(ctx context.Context, req Request) (*models.ResolvedCity, error) {
	req, viaPlace := r.applyPlaceHint(ctx, req)

	raw := CleanName(req.City)
	if raw == "" {
		return nil, apperrors.NewValidationFailedError("city is required", nil)
	}
	normalized := Normalize(raw)
	provinceHint := CleanName(req.Province)

	code := strings.ToUpper(strings.TrimSpace(req.CountryCode))
	if code == "" {
		if inferred, ok := InferCountry(normalized); ok {
			code = inferred
			r.logger.Debug("country inferred from city name", map[string]interface{}{
				"city":        raw,
				"countryCode": code,
			})
		}
	}

	var country *CountryRow
	var err error
	if code != "" {
		country, err = r.geo.FindCountry(ctx, r.db, code)
		if err != nil {
			return nil, r.fail(raw, err)
		}
	}

	// A known code without a stored country must not match cities of another country.
	var scope CountryScope
	switch {
	case country != nil:
		scope.ID = &country.ID
	case code != "":
		scope.Unlinked = true
	}
	candidates, err := r.geo.FindCandidates(ctx, r.db, prefix(normalized, prefixRunes), scope)
	if err != nil {
		return nil, r.fail(raw, err)
	}

	match, ambiguous := pickMatch(normalized, Normalize(provinceHint), candidates)
	if ambiguous {
		r.logger.Warn("ambiguous city match, creating under the given name", map[string]interface{}{
			"city":       raw,
			"candidates": len(candidates),
		})
	}

	var result *models.ResolvedCity
	var outcome string
	if match != nil {
		result, err = r.useExisting(ctx, raw, normalized, code, country, match)
		outcome = "exact"
		if result != nil && result.CorrectedFrom != "" {
			outcome = "corrected"
		}
	} else {
		result, err = r.create(ctx, raw, provinceHint, code, country)
		outcome = "created"
	}
	if err != nil {
		return nil, r.fail(raw, err)
	}

	if viaPlace {
		metrics.CityResolutions.WithLabelValues("place_hint").Inc()
	}
	metrics.CityResolutions.WithLabelValues(outcome).Inc()

	r.logger.Info("city resolved", map[string]interface{}{
		"city":          raw,
		"cityId":        result.CityID,
		"canonicalName": result.CanonicalName,
		"wasCreated":    result.WasCreated,
		"outcome":       outcome,
	})
	return result, nil
}

// applyPlaceHint replaces the free-text reference with the place service's
// answer. Any lookup failure keeps the request unchanged.
func (r *Resolver) applyPlaceHint(ctx context.Context, req Request) (Request, bool) {
	if r.places == nil || strings.TrimSpace(req.PlaceID) == "" {
		return req, false
	}

	place, err := r.places.Lookup(ctx, req.PlaceID)
	if err != nil {
		r.logger.Warn("place lookup failed, falling back to name matching", map[string]interface{}{
			"placeId": req.PlaceID,
			"error":   err.Error(),
		})
		return req, false
	}

	out := req
	out.City = place.Name
	if place.Province != "" {
		out.Province = place.Province
	}
	if strings.TrimSpace(out.CountryCode) == "" {
		out.CountryCode = place.CountryCode
	}
	return out, true
}

func pickMatch(normalized, provinceHint string, candidates []Candidate) (*Candidate, bool) {
	if len(candidates) == 0 {
		return nil, false
	}

	scored := make([]scoredCandidate, 0, len(candidates))
	for _, c := range candidates {
		scored = append(scored, scoredCandidate{
			Candidate:     c,
			score:         Similarity(normalized, Normalize(c.Name)),
			provinceMatch: provinceHint != "" && Normalize(c.ProvinceName) == provinceHint,
		})
	}
	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].score != scored[j].score {
			return scored[i].score > scored[j].score
		}
		if scored[i].provinceMatch != scored[j].provinceMatch {
			return scored[i].provinceMatch
		}
		return scored[i].ID < scored[j].ID
	})

	best := scored[0]
	if best.score == exactScore {
		return &best.Candidate, false
	}

	band := scored[:1]
	for _, s := range scored[1:] {
		if s.score >= acceptScore && best.score-s.score < ambiguityMargin {
			band = append(band, s)
		}
	}
	if len(band) > 1 {
		// A single province match settles the tie.
		var hinted []scoredCandidate
		for _, s := range band {
			if s.provinceMatch {
				hinted = append(hinted, s)
			}
		}
		if len(hinted) == 1 {
			return &hinted[0].Candidate, false
		}
		return nil, true
	}
	if best.score >= acceptScore || (len(scored) == 1 && best.score >= singleScore) {
		return &best.Candidate, false
	}
	return nil, false
}

func (r *Resolver) useExisting(ctx context.Context, raw, normalized, code string, country *CountryRow, match *Candidate) (*models.ResolvedCity, error) {
	result := &models.ResolvedCity{
		CityID:        match.ID,
		CanonicalName: match.Name,
		ProvinceID:    match.ProvinceID,
		ProvinceName:  match.ProvinceName,
	}
	if Normalize(match.Name) != normalized {
		result.CorrectedFrom = raw
	}

	switch {
	case match.CountryID != nil:
		if country == nil || country.ID != *match.CountryID {
			linked, err := r.geo.FindCountryByID(ctx, r.db, *match.CountryID)
			if err != nil {
				return nil, err
			}
			country = linked
		}
	case code != "":
		if country == nil {
			created, err := r.geo.GetOrCreateCountry(ctx, r.db, code)
			if err != nil {
				return nil, err
			}
			country = created
		}
		if country != nil {
			attached, err := r.geo.AttachCountry(ctx, r.db, match.ID, country.ID)
			if err != nil {
				return nil, err
			}
			if attached {
				r.logger.Info("linked city to country", map[string]interface{}{
					"cityId":    match.ID,
					"countryId": country.ID,
				})
			} else {
				r.logger.Warn("cities.country_id missing, city left unlinked", map[string]interface{}{
					"cityId": match.ID,
				})
			}
		}
	}

	fillCountry(result, country, code)
	return result, nil
}

func (r *Resolver) create(ctx context.Context, raw, provinceHint, code string, country *CountryRow) (*models.ResolvedCity, error) {
	if code != "" && country == nil {
		created, err := r.geo.GetOrCreateCountry(ctx, r.db, code)
		if err != nil {
			return nil, err
		}
		country = created
	}

	var countryID *int64
	if country != nil {
		countryID = &country.ID
	}

	provinceName := provinceHint
	if provinceName == "" {
		provinceName = raw
	}
	provinceID, err := r.geo.GetOrCreateProvince(ctx, r.db, provinceName, countryID)
	if err != nil {
		return nil, err
	}

	cityID, err := r.geo.CreateCity(ctx, r.db, raw, provinceID, countryID)
	if err != nil {
		return nil, err
	}

	result := &models.ResolvedCity{
		CityID:        cityID,
		CanonicalName: raw,
		ProvinceID:    provinceID,
		ProvinceName:  provinceName,
		WasCreated:    true,
	}
	fillCountry(result, country, code)
	return result, nil
}

func fillCountry(result *models.ResolvedCity, country *CountryRow, code string) {
	if country != nil {
		id := country.ID
		result.CountryID = &id
		result.CountryName = country.Name
		result.CountryCode = country.ISOCode
		result.CurrencyCode = country.Currency
		code = country.ISOCode
	} else if code != "" {
		result.CountryCode = code
	}

	if result.CurrencyCode == "" && code != "" {
		if c, ok := LookupCountry(code); ok {
			result.CurrencyCode = c.Currency
			if result.CountryName == "" {
				result.CountryName = c.Name
			}
		}
	}
}

func (r *Resolver) fail(city string, err error) *apperrors.StandardError {
	stdErr := apperrors.Classify(err, apperrors.ErrCodeCityResolutionFailed)
	if stdErr.Code == apperrors.ErrCodeCityResolutionFailed {
		stdErr = apperrors.NewCityResolutionFailedError(city, err)
	}
	r.logger.Error("city resolution failed", map[string]interface{}{
		"city":      city,
		"errorCode": stdErr.Code,
		"error":     err.Error(),
	})
	return stdErr.WithMetadata("city", city)
}
