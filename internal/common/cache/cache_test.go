package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sport struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

func setupRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	return redis.NewClient(&redis.Options{Addr: mr.Addr()}), mr
}

func TestRedisCache_RoundTripAndExpiry(t *testing.T) {
	client, mr := setupRedis(t)
	c := NewRedisCache(client, "onboarding:")
	ctx := context.Background()

	want := []sport{{ID: 1, Name: "Padel"}, {ID: 2, Name: "Tennis"}}
	require.NoError(t, c.Set(ctx, "sports", want, time.Minute))
	assert.True(t, mr.Exists("onboarding:sports"))

	var got []sport
	require.NoError(t, c.Get(ctx, "sports", &got))
	assert.Equal(t, want, got)

	mr.FastForward(2 * time.Minute)
	assert.ErrorIs(t, c.Get(ctx, "sports", &got), ErrMiss)
}

func TestRedisCache_BackendError(t *testing.T) {
	client, mock := redismock.NewClientMock()
	c := NewRedisCache(client, "")

	mock.ExpectGet("sports").SetErr(errors.New("connection refused"))

	var got []sport
	err := c.Get(context.Background(), "sports", &got)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrMiss)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMemoryCache_PerEntryTTL(t *testing.T) {
	c := NewMemoryCache(10, time.Hour)
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "place:abc", sport{ID: 9, Name: "x"}, time.Minute))

	var got sport
	require.NoError(t, c.Get(ctx, "place:abc", &got))
	assert.Equal(t, int64(9), got.ID)

	now = now.Add(2 * time.Minute)
	assert.ErrorIs(t, c.Get(ctx, "place:abc", &got), ErrMiss)

	require.NoError(t, c.Set(ctx, "k", 1, 0))
	require.NoError(t, c.Delete(ctx, "k"))
	var n int
	assert.ErrorIs(t, c.Get(ctx, "k", &n), ErrMiss)
}

func TestGetOrLoad(t *testing.T) {
	c := NewMemoryCache(10, time.Hour)
	ctx := context.Background()
	calls := 0
	load := func(context.Context) ([]sport, error) {
		calls++
		return []sport{{ID: 1, Name: "Padel"}}, nil
	}

	first, err := GetOrLoad(ctx, c, "sports", time.Minute, load)
	require.NoError(t, err)
	second, err := GetOrLoad(ctx, c, "sports", time.Minute, load)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, calls)

	_, err = GetOrLoad(ctx, c, "other", time.Minute, func(context.Context) ([]sport, error) {
		return nil, errors.New("db down")
	})
	assert.EqualError(t, err, "db down")

	uncached, err := GetOrLoad[[]sport](ctx, nil, "sports", time.Minute, load)
	require.NoError(t, err)
	assert.Len(t, uncached, 1)
	assert.Equal(t, 2, calls)
}
