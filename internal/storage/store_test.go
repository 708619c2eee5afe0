package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	_, ok, err := s.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Set(ctx, "a", []byte("one")))
	require.NoError(t, s.Set(ctx, "b", []byte("two")))

	v, ok, err := s.Get(ctx, "a")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("one"), v)

	keys, err := s.Keys(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "b"}, keys)

	require.NoError(t, s.Remove(ctx, "a"))
	_, ok, _ = s.Get(ctx, "a")
	assert.False(t, ok)

	require.NoError(t, s.Clear(ctx))
	keys, _ = s.Keys(ctx)
	assert.Empty(t, keys)
}

func TestPrefixedStore_PrefixIsolation(t *testing.T) {
	ctx := context.Background()
	backend := NewMemoryStore()

	// A foreign key sharing the backend must never be visible or cleared.
	require.NoError(t, backend.Set(ctx, "other:thing", []byte("x")))

	s := NewPrefixedStore(backend, "", 0)
	require.NoError(t, s.Set(ctx, "token", []byte("abc")))

	keys, err := s.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"token"}, keys)

	require.NoError(t, s.Clear(ctx))

	_, ok, err := backend.Get(ctx, "other:thing")
	require.NoError(t, err)
	assert.True(t, ok, "foreign keys survive Clear")
}

func TestPrefixedStore_TTLExpiry(t *testing.T) {
	ctx := context.Background()
	s := NewPrefixedStore(NewMemoryStore(), "", time.Minute)

	now := time.Date(2026, 8, 26, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	require.NoError(t, s.Set(ctx, "token", []byte("abc")))

	v, ok, err := s.Get(ctx, "token")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("abc"), v)

	// Beyond the TTL the value is expired on read.
	now = now.Add(2 * time.Minute)
	_, ok, err = s.Get(ctx, "token")
	require.NoError(t, err)
	assert.False(t, ok)

	// And the backend entry is gone too.
	keys, err := s.Keys(ctx)
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestPrefixedStore_ZeroTTLNeverExpires(t *testing.T) {
	ctx := context.Background()
	s := NewPrefixedStore(NewMemoryStore(), "", 0)

	now := time.Date(2026, 8, 26, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	require.NoError(t, s.Set(ctx, "token", []byte("abc")))
	now = now.AddDate(10, 0, 0)

	_, ok, err := s.Get(ctx, "token")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestPrefixedStore_CorruptValue(t *testing.T) {
	ctx := context.Background()
	backend := NewMemoryStore()
	s := NewPrefixedStore(backend, "", 0)

	require.NoError(t, backend.Set(ctx, DefaultPrefix+"bad", []byte("not json")))
	_, _, err := s.Get(ctx, "bad")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "corrupt")
}
