package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestRedisRoundTrip(t *testing.T) {
	ctx := context.Background()
	mr, client := setupRedis(t)

	c, err := NewRedis(client, "", 5*time.Minute)
	require.NoError(t, err)

	_, ok, err := c.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, "k", []byte(`{"success":true}`)))
	assert.True(t, mr.Exists(defaultRedisPrefix+"k"))
	assert.Equal(t, 5*time.Minute, mr.TTL(defaultRedisPrefix+"k"))

	got, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.JSONEq(t, `{"success":true}`, string(got))

	n, err := c.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	mr.FastForward(5 * time.Minute)
	_, ok, err = c.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisLenIgnoresForeignKeys(t *testing.T) {
	ctx := context.Background()
	mr, client := setupRedis(t)
	require.NoError(t, mr.Set("other:key", "v"))

	c, err := NewRedis(client, "test:", time.Minute)
	require.NoError(t, err)
	require.NoError(t, c.Set(ctx, "a", []byte("1")))
	require.NoError(t, c.Set(ctx, "b", []byte("2")))

	n, err := c.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestRedisErrors(t *testing.T) {
	_, err := NewRedis(nil, "", 0)
	assert.Error(t, err)

	mr, client := setupRedis(t)
	c, err := NewRedis(client, "", 0)
	require.NoError(t, err)

	mr.Close()
	_, _, err = c.Get(context.Background(), "k")
	assert.Error(t, err)
}
