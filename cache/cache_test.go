package cache

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/poiesic/assetfind/ai/mock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKey(t *testing.T) {
	assert.Len(t, Key("a"), 64)
	assert.Equal(t, Key("embed", "red car"), Key("embed", "red car"))
	assert.NotEqual(t, Key("ab", "c"), Key("a", "bc"))
	assert.NotEqual(t, Key("embed", "red car"), Key("embed", "red cars"))
}

func TestMemory(t *testing.T) {
	ctx := context.Background()

	t.Run("invalid size", func(t *testing.T) {
		_, err := NewMemory(0)
		assert.Error(t, err)
	})

	m, err := NewMemory(1 << 20)
	require.NoError(t, err)
	defer m.Close()

	t.Run("miss", func(t *testing.T) {
		_, ok, err := m.Get(ctx, "missing")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("set get evict", func(t *testing.T) {
		require.NoError(t, m.Set(ctx, "k", []byte("v"), time.Minute))
		m.Wait()

		v, ok, err := m.Get(ctx, "k")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, []byte("v"), v)

		require.NoError(t, m.Evict(ctx, "k"))
		_, ok, err = m.Get(ctx, "k")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("non-positive ttl never expires", func(t *testing.T) {
		for key, ttl := range map[string]time.Duration{"zero": 0, "negative": -time.Second} {
			require.NoError(t, m.Set(ctx, key, []byte(key), ttl))
			m.Wait()

			v, ok, err := m.Get(ctx, key)
			require.NoError(t, err)
			require.True(t, ok, key)
			assert.Equal(t, []byte(key), v)
		}
	})

	t.Run("closed", func(t *testing.T) {
		c, err := NewMemory(1 << 10)
		require.NoError(t, err)
		require.NoError(t, c.Close())
		require.NoError(t, c.Close())

		_, _, err = c.Get(ctx, "k")
		assert.ErrorIs(t, err, ErrClosed)
		assert.ErrorIs(t, c.Set(ctx, "k", nil, 0), ErrClosed)
	})
}

func TestRedis(t *testing.T) {
	addr := os.Getenv("ASSETFIND_REDIS_ADDR")
	if addr == "" {
		t.Skip("ASSETFIND_REDIS_ADDR not set")
	}
	ctx := context.Background()

	r, err := NewRedis(ctx, RedisOptions{Address: addr, Prefix: "assetfind-test:"})
	require.NoError(t, err)
	defer r.Close()

	key := Key("redis-test", time.Now().String())
	_, ok, err := r.Get(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, r.Set(ctx, key, []byte("value"), time.Minute))
	v, ok, err := r.Get(ctx, key)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("value"), v)

	require.NoError(t, r.Set(ctx, key, []byte("forever"), -time.Second))
	v, ok, err = r.Get(ctx, key)
	require.NoError(t, err)
	require.True(t, ok, "negative ttl stores without expiry")
	assert.Equal(t, []byte("forever"), v)

	require.NoError(t, r.Evict(ctx, key))
	_, ok, err = r.Get(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)
}

// failingCache errors on every call.
type failingCache struct{}

func (failingCache) Get(context.Context, string) ([]byte, bool, error) {
	return nil, false, errors.New("down")
}
func (failingCache) Set(context.Context, string, []byte, time.Duration) error {
	return errors.New("down")
}
func (failingCache) Evict(context.Context, string) error { return errors.New("down") }
func (failingCache) Close() error                        { return nil }

func TestEmbedder(t *testing.T) {
	ctx := context.Background()

	t.Run("nil dependencies", func(t *testing.T) {
		_, err := NewEmbedder(nil, failingCache{}, time.Minute)
		assert.Equal(t, ErrEmbedderRequired, err)
		_, err = NewEmbedder(mock.NewMockEmbedder(), nil, time.Minute)
		assert.Equal(t, ErrCacheRequired, err)
	})

	t.Run("second identical query is served from cache", func(t *testing.T) {
		m, err := NewMemory(1 << 20)
		require.NoError(t, err)
		defer m.Close()

		inner := mock.NewMockEmbedder()
		inner.Dimensions = 16
		e, err := NewEmbedder(inner, m, time.Minute)
		require.NoError(t, err)

		first, err := e.EmbedText(ctx, "red car")
		require.NoError(t, err)
		m.Wait()

		second, err := e.EmbedText(ctx, "red car")
		require.NoError(t, err)
		assert.Equal(t, first, second)
		assert.Equal(t, 1, inner.CallCount())

		_, err = e.EmbedText(ctx, "blue car")
		require.NoError(t, err)
		assert.Equal(t, 2, inner.CallCount())
	})

	t.Run("cache failures are bypassed", func(t *testing.T) {
		inner := mock.NewMockEmbedder()
		e, err := NewEmbedder(inner, failingCache{}, time.Minute)
		require.NoError(t, err)

		vec, err := e.EmbedText(ctx, "red car")
		require.NoError(t, err)
		assert.NotEmpty(t, vec)
	})

	t.Run("embedder errors propagate", func(t *testing.T) {
		inner := mock.NewMockEmbedder()
		boom := errors.New("boom")
		inner.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
			return nil, boom
		}
		e, err := NewEmbedder(inner, failingCache{}, time.Minute)
		require.NoError(t, err)

		_, err = e.EmbedText(ctx, "x")
		assert.ErrorIs(t, err, boom)
	})
}
