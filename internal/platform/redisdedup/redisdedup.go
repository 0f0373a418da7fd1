// Package redisdedup backs watcher.DedupStore with Redis, so the file
// watcher's per-path content-hash debounce state (C2) survives a process
// restart instead of re-emitting every already-ingested path. It follows
// the same env-driven, optional-client shape as internal/platform/neo4jdb:
// a nil *Store is a valid, inert value.
package redisdedup

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rivergate/mediareef/internal/platform/logger"
)

// Store is a Redis-backed watcher.DedupStore. A nil *Store is never
// returned by NewFromEnv without also returning a nil error when Redis
// isn't configured, so callers nil-check the same way they do neo4jdb.Client.
type Store struct {
	client *redis.Client
	ttl    time.Duration
	log    *logger.Logger
}

// NewFromEnv returns nil, nil when REDIS_ADDR is unset: dedup durability is
// optional infrastructure, never a hard dependency of the watcher.
func NewFromEnv(log *logger.Logger) (*Store, error) {
	if log == nil {
		return nil, fmt.Errorf("redisdedup: logger required")
	}

	addr := strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	if addr == "" {
		return nil, nil
	}

	ttl := 30 * 24 * time.Hour
	if v := strings.TrimSpace(os.Getenv("REDIS_DEDUP_TTL_SECONDS")); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			ttl = time.Duration(parsed) * time.Second
		}
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Username: os.Getenv("REDIS_USER"),
		Password: os.Getenv("REDIS_PASSWORD"),
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redisdedup: ping: %w", err)
	}

	return &Store{client: client, ttl: ttl, log: log.With("client", "RedisDedup")}, nil
}

func (s *Store) Get(ctx context.Context, path string) (string, bool, error) {
	if s == nil || s.client == nil {
		return "", false, nil
	}
	hash, err := s.client.Get(ctx, s.key(path)).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return hash, true, nil
}

func (s *Store) Set(ctx context.Context, path, hash string) error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Set(ctx, s.key(path), hash, s.ttl).Err()
}

func (s *Store) key(path string) string {
	return "mediareef:watcher:dedup:" + path
}

func (s *Store) Close() error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Close()
}
