package resolvecity

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"center-onboarding/internal/common/cache"
	commonhttp "center-onboarding/internal/common/http"
)

// Place is what a place reference resolves to.
type Place struct {
	Name        string `json:"name"`
	Province    string `json:"province,omitempty"`
	CountryCode string `json:"countryCode,omitempty"`
}

// PlaceLookup resolves an opaque place id.
type PlaceLookup interface {
	Lookup(ctx context.Context, placeID string) (*Place, error)
}

// placeDetails is the response body of GET {base}/places/{id}.
type placeDetails struct {
	Name               string `json:"name"`
	AdministrativeArea string `json:"administrativeArea"`
	CountryCode        string `json:"countryCode"`
}

// HTTPPlaceLookup calls the place-details service and caches results.
type HTTPPlaceLookup struct {
	client  *commonhttp.Client
	baseURL string
	apiKey  string
	cache   cache.Cache
	ttl     time.Duration
}

func NewHTTPPlaceLookup(client *commonhttp.Client, baseURL, apiKey string, c cache.Cache, ttl time.Duration) *HTTPPlaceLookup {
	return &HTTPPlaceLookup{
		client:  client,
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		cache:   c,
		ttl:     ttl,
	}
}

func (l *HTTPPlaceLookup) Lookup(ctx context.Context, placeID string) (*Place, error) {
	placeID = strings.TrimSpace(placeID)
	if placeID == "" {
		return nil, fmt.Errorf("empty place id")
	}

	place, err := cache.GetOrLoad(ctx, l.cache, "place:"+placeID, l.ttl, func(ctx context.Context) (Place, error) {
		var details placeDetails
		endpoint := fmt.Sprintf("%s/places/%s", l.baseURL, url.PathEscape(placeID))
		headers := map[string]string{}
		if l.apiKey != "" {
			headers["X-Api-Key"] = l.apiKey
		}
		if err := l.client.GetJSON(ctx, endpoint, headers, &details); err != nil {
			return Place{}, err
		}
		if strings.TrimSpace(details.Name) == "" {
			return Place{}, fmt.Errorf("place %s has no name", placeID)
		}
		return Place{
			Name:        strings.TrimSpace(details.Name),
			Province:    strings.TrimSpace(details.AdministrativeArea),
			CountryCode: strings.ToUpper(strings.TrimSpace(details.CountryCode)),
		}, nil
	})
	if err != nil {
		return nil, err
	}
	return &place, nil
}
