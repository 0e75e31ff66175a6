package database

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"center-onboarding/internal/common/config"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newESServer(t *testing.T, status int, capture *map[string]interface{}) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")
		if capture != nil && r.Body != nil {
			body, _ := io.ReadAll(r.Body)
			_ = json.Unmarshal(body, capture)
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte(`{"result":"created"}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestElasticsearchClient_IndexDocument(t *testing.T) {
	var got map[string]interface{}
	srv := newESServer(t, http.StatusCreated, &got)

	client, err := NewElasticsearch(config.ElasticsearchConfig{URL: srv.URL})
	require.NoError(t, err)

	err = client.IndexDocument(context.Background(), "onboarding-events", "evt-1", map[string]interface{}{
		"type": "tenant_created",
	})
	require.NoError(t, err)
	assert.Equal(t, "tenant_created", got["type"])
}

func TestElasticsearchClient_IndexDocument_Error(t *testing.T) {
	srv := newESServer(t, http.StatusInternalServerError, nil)

	client, err := NewElasticsearch(config.ElasticsearchConfig{Addresses: []string{srv.URL}})
	require.NoError(t, err)

	err = client.IndexDocument(context.Background(), "onboarding-events", "evt-2", map[string]string{"type": "x"})
	assert.Error(t, err)
}

func TestRedisClient_Ping(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client, err := NewRedis(config.RedisConfig{Address: mr.Addr()})
	require.NoError(t, err)
	defer client.Close()

	assert.NoError(t, client.Ping(context.Background()))
	assert.Equal(t, defaultRedisPoolSize, client.Client.Options().PoolSize)

	sized, err := NewRedis(config.RedisConfig{Address: mr.Addr(), PoolSize: 4})
	require.NoError(t, err)
	defer sized.Close()
	assert.Equal(t, 4, sized.Client.Options().PoolSize)

	_, err = NewRedis(config.RedisConfig{})
	assert.Error(t, err)
}
