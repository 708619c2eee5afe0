// Package storage provides the kit's persistence layer: a prefix- and
// TTL-aware wrapper over any notify.Store backend, plus memory, redis and
// firestore backends. TTL enveloping is deliberately the wrapper's job;
// backends only move bytes.
package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/tinywideclouds/go-notification-kit/pkg/notify"
)

// DefaultPrefix scopes every key the kit writes.
const DefaultPrefix = "notifykit:"

// envelope wraps a stored value with its timestamps so expiry can be
// checked on read regardless of backend support.
type envelope struct {
	Value     []byte     `json:"value"`
	StoredAt  time.Time  `json:"stored_at"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// PrefixedStore decorates a backend with the kit's key prefix and an
// optional time-to-live. A zero TTL means values never expire.
type PrefixedStore struct {
	backend notify.Store
	prefix  string
	ttl     time.Duration
	now     func() time.Time
}

// NewPrefixedStore wraps a backend. An empty prefix falls back to
// DefaultPrefix.
func NewPrefixedStore(backend notify.Store, prefix string, ttl time.Duration) *PrefixedStore {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &PrefixedStore{
		backend: backend,
		prefix:  prefix,
		ttl:     ttl,
		now:     time.Now,
	}
}

func (s *PrefixedStore) key(k string) string { return s.prefix + k }

// Get reads a value, expiring it on the spot when its envelope says so.
func (s *PrefixedStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	raw, ok, err := s.backend.Get(ctx, s.key(key))
	if err != nil || !ok {
		return nil, false, err
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, false, fmt.Errorf("corrupt stored value for %q: %w", key, err)
	}
	if env.ExpiresAt != nil && !env.ExpiresAt.After(s.now()) {
		// Lazy expiry; removal failure is not the reader's problem.
		_ = s.backend.Remove(ctx, s.key(key))
		return nil, false, nil
	}
	return env.Value, true, nil
}

// Set writes a value under the kit prefix, stamping the TTL envelope.
func (s *PrefixedStore) Set(ctx context.Context, key string, value []byte) error {
	now := s.now()
	env := envelope{Value: value, StoredAt: now}
	if s.ttl > 0 {
		expires := now.Add(s.ttl)
		env.ExpiresAt = &expires
	}
	raw, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to encode value for %q: %w", key, err)
	}
	return s.backend.Set(ctx, s.key(key), raw)
}

// Remove deletes a single key.
func (s *PrefixedStore) Remove(ctx context.Context, key string) error {
	return s.backend.Remove(ctx, s.key(key))
}

// Clear removes every key under the kit prefix, leaving foreign keys in a
// shared backend untouched.
func (s *PrefixedStore) Clear(ctx context.Context) error {
	keys, err := s.backend.Keys(ctx)
	if err != nil {
		return err
	}
	for _, k := range keys {
		if !strings.HasPrefix(k, s.prefix) {
			continue
		}
		if err := s.backend.Remove(ctx, k); err != nil {
			return err
		}
	}
	return nil
}

// Keys lists the kit's keys with the prefix stripped.
func (s *PrefixedStore) Keys(ctx context.Context) ([]string, error) {
	raw, err := s.backend.Keys(ctx)
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(raw))
	for _, k := range raw {
		if strings.HasPrefix(k, s.prefix) {
			keys = append(keys, strings.TrimPrefix(k, s.prefix))
		}
	}
	return keys, nil
}
