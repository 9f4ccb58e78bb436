package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/storefront-hq/backoffice/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientRoundTrip(t *testing.T) {
	srv := miniredis.RunT(t)
	c := New(config.RedisConfig{Addr: srv.Addr()})
	t.Cleanup(func() { _ = c.Close() })
	ctx := context.Background()

	require.NoError(t, c.Ping(ctx))
	require.NoError(t, c.Set(ctx, "k", []byte("v"), time.Minute))

	got, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got)

	srv.FastForward(2 * time.Minute)
	got, err = c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, c.Set(ctx, "gone", []byte("1"), time.Minute))
	require.NoError(t, c.Delete(ctx, "gone"))
	assert.False(t, srv.Exists("gone"))
}

func TestClientFailsSafe(t *testing.T) {
	srv := miniredis.RunT(t)
	c := New(config.RedisConfig{Addr: srv.Addr()})
	srv.Close()
	ctx := context.Background()

	got, err := c.Get(ctx, "k")
	assert.NoError(t, err)
	assert.Nil(t, got)
	assert.NoError(t, c.Set(ctx, "k", []byte("v"), time.Minute))
	assert.NoError(t, c.Delete(ctx, "k"))
}

func TestNilClient(t *testing.T) {
	var c *Client
	ctx := context.Background()

	assert.Nil(t, New(config.RedisConfig{}))
	assert.NoError(t, c.Ping(ctx))
	got, err := c.Get(ctx, "k")
	assert.NoError(t, err)
	assert.Nil(t, got)
	assert.NoError(t, c.Close())
}
