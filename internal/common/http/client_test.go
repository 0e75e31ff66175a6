package http

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	apperrors "center-onboarding/internal/common/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_GetJSON_RetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "secret", r.Header.Get("X-Api-Key"))
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"name":"Madrid"}`))
	}))
	defer srv.Close()

	c := NewClient("places", time.Second, 3)
	c.backoff = time.Millisecond

	var out struct {
		Name string `json:"name"`
	}
	err := c.GetJSON(context.Background(), srv.URL, map[string]string{"X-Api-Key": "secret"}, &out)
	require.NoError(t, err)
	assert.Equal(t, "Madrid", out.Name)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestClient_GetJSON_ClientErrorIsNotRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewClient("places", time.Second, 3)
	c.backoff = time.Millisecond

	err := c.GetJSON(context.Background(), srv.URL, nil, nil)
	var statusErr *apperrors.StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusNotFound, statusErr.StatusCode)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestClient_GetJSON_ExhaustedRetriesReturnStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewClient("places", time.Second, 1)
	c.backoff = time.Millisecond

	err := c.GetJSON(context.Background(), srv.URL, nil, nil)
	std := apperrors.Classify(err, apperrors.ErrCodeCityResolutionFailed)
	assert.Equal(t, apperrors.ErrCodeUpstreamError, std.Code)
	assert.True(t, std.Retryable)
}
