// Package snapcache stores the last successful per-host job snapshot in
// Redis so a host outage degrades to stale data (data_source=cache) instead
// of an empty view.
package snapcache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/clusterview/clusterview/internal/core"
	"github.com/clusterview/clusterview/internal/domain/model"
)

const defaultTTL = 24 * time.Hour

// Store is a Redis-backed SnapshotCache.
type Store struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

var _ core.SnapshotCache = (*Store)(nil)

// New creates a snapshot cache with the default key prefix and TTL.
func New(client redis.UniversalClient) *Store {
	return &Store{
		client: client,
		prefix: "snapshot:",
		ttl:    defaultTTL,
	}
}

// NewWithOptions creates a snapshot cache with a custom key prefix and TTL.
func NewWithOptions(client redis.UniversalClient, prefix string, ttl time.Duration) *Store {
	if prefix == "" {
		prefix = "snapshot:"
	}
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &Store{client: client, prefix: prefix, ttl: ttl}
}

// cachedSnapshot is the stored form; StoredAt bounds how stale a fallback
// can be.
type cachedSnapshot struct {
	Hostname string            `json:"hostname"`
	StoredAt time.Time         `json:"stored_at"`
	Jobs     []model.JobRecord `json:"jobs"`
}

// PutSnapshot stores the snapshot for a host, replacing any previous one.
func (s *Store) PutSnapshot(ctx context.Context, hostname string, records []model.JobRecord) error {
	if hostname == "" {
		return errors.New("hostname cannot be empty")
	}

	data, err := json.Marshal(cachedSnapshot{
		Hostname: hostname,
		StoredAt: time.Now().UTC(),
		Jobs:     records,
	})
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	return s.client.Set(ctx, s.prefix+hostname, data, s.ttl).Err()
}

// GetSnapshot returns the stored snapshot for a host, or core.ErrCacheMiss.
func (s *Store) GetSnapshot(ctx context.Context, hostname string) ([]model.JobRecord, error) {
	if hostname == "" {
		return nil, core.ErrCacheMiss
	}

	data, err := s.client.Get(ctx, s.prefix+hostname).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, core.ErrCacheMiss
		}
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var snap cachedSnapshot
	if err := json.Unmarshal([]byte(data), &snap); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	return snap.Jobs, nil
}
