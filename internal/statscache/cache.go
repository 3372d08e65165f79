// Package statscache is a best-effort Redis cache for deck statistics.
// Entries are versioned by the deck's modification timestamp, so a stale
// entry can never be served for a deck that changed since it was written.
package statscache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/stackcards/revision-engine/internal/progress"
)

// Cache wraps a Redis client with the statistics key schema.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// New connects to Redis and verifies connectivity.
func New(address, password string, db int, ttl time.Duration) (*Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &Cache{client: client, ttl: ttl}, nil
}

func key(deckID uuid.UUID, version time.Time) string {
	return fmt.Sprintf("stats:%s:%d", deckID, version.UnixNano())
}

func deckPattern(deckID uuid.UUID) string {
	return fmt.Sprintf("stats:%s:*", deckID)
}

// Get returns the cached statistics for the given deck version. A miss,
// a decode failure or Redis being down all read as a miss.
func (c *Cache) Get(ctx context.Context, deckID uuid.UUID, version time.Time) (progress.Statistics, bool) {
	data, err := c.client.Get(ctx, key(deckID, version)).Bytes()
	if err != nil {
		if err != redis.Nil {
			slog.Warn("statistics cache read failed", "deck_id", deckID, "error", err)
		}
		return progress.Statistics{}, false
	}

	var stats progress.Statistics
	if err := json.Unmarshal(data, &stats); err != nil {
		slog.Warn("statistics cache entry corrupt", "deck_id", deckID, "error", err)
		return progress.Statistics{}, false
	}
	return stats, true
}

// Set writes statistics for the given deck version. Failures are logged,
// never surfaced; the cache is not a source of truth.
func (c *Cache) Set(ctx context.Context, deckID uuid.UUID, version time.Time, stats progress.Statistics) {
	data, err := json.Marshal(stats)
	if err != nil {
		slog.Warn("failed to encode statistics", "deck_id", deckID, "error", err)
		return
	}
	if err := c.client.Set(ctx, key(deckID, version), data, c.ttl).Err(); err != nil {
		slog.Warn("statistics cache write failed", "deck_id", deckID, "error", err)
	}
}

// DropStale deletes every cache entry for the deck except the one matching
// the current version.
func (c *Cache) DropStale(ctx context.Context, deckID uuid.UUID, current time.Time) error {
	keep := key(deckID, current)

	var cursor uint64
	for {
		keys, next, err := c.client.Scan(ctx, cursor, deckPattern(deckID), 100).Result()
		if err != nil {
			return fmt.Errorf("failed to scan statistics keys: %w", err)
		}

		stale := keys[:0]
		for _, k := range keys {
			if k != keep {
				stale = append(stale, k)
			}
		}
		if len(stale) > 0 {
			if err := c.client.Del(ctx, stale...).Err(); err != nil {
				return fmt.Errorf("failed to delete stale statistics keys: %w", err)
			}
		}

		cursor = next
		if cursor == 0 {
			return nil
		}
	}
}

// Ping verifies Redis connectivity.
func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (c *Cache) Close() error {
	return c.client.Close()
}
