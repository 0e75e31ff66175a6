package resolvecity

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"center-onboarding/internal/common/cache"
	commonhttp "center-onboarding/internal/common/http"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPPlaceLookup_CachesDetails(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		assert.Equal(t, "/places/ChIJ%20madrid", r.URL.EscapedPath())
		assert.Equal(t, "key-1", r.Header.Get("X-Api-Key"))
		_, _ = w.Write([]byte(`{"name":" Madrid ","administrativeArea":"Comunidad de Madrid","countryCode":"es"}`))
	}))
	defer srv.Close()

	lookup := NewHTTPPlaceLookup(commonhttp.NewClient("places", time.Second, 0), srv.URL+"/", "key-1",
		cache.NewMemoryCache(16, time.Hour), time.Hour)

	for i := 0; i < 2; i++ {
		place, err := lookup.Lookup(context.Background(), "ChIJ madrid")
		require.NoError(t, err)
		assert.Equal(t, "Madrid", place.Name)
		assert.Equal(t, "Comunidad de Madrid", place.Province)
		assert.Equal(t, "ES", place.CountryCode)
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestHTTPPlaceLookup_Failures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/places/nameless" {
			_, _ = w.Write([]byte(`{"countryCode":"ES"}`))
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	lookup := NewHTTPPlaceLookup(commonhttp.NewClient("places", time.Second, 0), srv.URL, "", nil, time.Hour)

	_, err := lookup.Lookup(context.Background(), "unknown")
	assert.Error(t, err)

	_, err = lookup.Lookup(context.Background(), "nameless")
	assert.Error(t, err)

	_, err = lookup.Lookup(context.Background(), "  ")
	assert.Error(t, err)
}
