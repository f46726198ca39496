package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type lastAlert struct {
	Feed  string `json:"feed"`
	Digit int    `json:"digit"`
}

func TestMemoryCache_SetGet(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryCache()
	defer mc.Close()

	require.NoError(t, mc.Set(ctx, "last_alert:R_10", lastAlert{Feed: "R_10", Digit: 3}, time.Minute))
	require.NoError(t, mc.Set(ctx, "raw", "hello", 0))

	got, err := GetTyped[lastAlert](ctx, mc, "last_alert:R_10")
	require.NoError(t, err)
	assert.Equal(t, lastAlert{Feed: "R_10", Digit: 3}, got)

	var s string
	require.NoError(t, mc.Get(ctx, "raw", &s))
	assert.Equal(t, "hello", s)

	require.NoError(t, mc.Delete(ctx, "raw"))
	assert.ErrorIs(t, mc.Get(ctx, "raw", &s), ErrCacheMiss)
}

func TestMemoryCache_Expiry(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryCache()
	defer mc.Close()

	now := time.Now()
	mc.now = func() time.Time { return now }
	require.NoError(t, mc.Set(ctx, "k", "v", time.Second))

	mc.now = func() time.Time { return now.Add(2 * time.Second) }
	var s string
	assert.ErrorIs(t, mc.Get(ctx, "k", &s), ErrCacheMiss)
	assert.Equal(t, 0, mc.Len())
}

func TestMemoryCache_EvictsLeastRecentlyUsed(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryCache(WithMemoryMaxSize(2))
	defer mc.Close()

	base := time.Now()
	tick := 0
	mc.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Millisecond)
	}

	require.NoError(t, mc.Set(ctx, "a", "1", 0))
	require.NoError(t, mc.Set(ctx, "b", "2", 0))
	var s string
	require.NoError(t, mc.Get(ctx, "a", &s))
	require.NoError(t, mc.Set(ctx, "c", "3", 0))

	assert.ErrorIs(t, mc.Get(ctx, "b", &s), ErrCacheMiss)
	assert.NoError(t, mc.Get(ctx, "a", &s))
	assert.NoError(t, mc.Get(ctx, "c", &s))
}

func TestKey(t *testing.T) {
	assert.Equal(t, "last_alert:R_10", Key("last_alert", "R_10"))
	assert.Equal(t, "a:1:true", Key("a", 1, true))
}

func TestNewRedisCache_Unreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	_, err := NewRedisCache(ctx, WithRedisAddr("127.0.0.1:1"), WithRedisDialTimeout(200*time.Millisecond))
	assert.Error(t, err)
}
