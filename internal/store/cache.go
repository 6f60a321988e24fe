package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/healthlog/platform/internal/shared/config"
	"github.com/healthlog/platform/internal/shared/metrics"
	"github.com/healthlog/platform/internal/tracker"
	"github.com/redis/go-redis/v9"
)

// CachedStore fronts another store with a Redis read-through cache.
// The cache is an optimization only: any Redis failure falls back to
// the inner store, and writes invalidate rather than update so a
// stale entry can never outlive the next load.
type CachedStore struct {
	inner  Store
	client *redis.Client
	ttl    time.Duration
}

// NewRedisClient connects to Redis and verifies the connection.
func NewRedisClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Username: cfg.Username,
		Password: cfg.Password,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return client, nil
}

// NewCachedStore wraps inner with a Redis cache.
func NewCachedStore(inner Store, client *redis.Client, ttl time.Duration) *CachedStore {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &CachedStore{inner: inner, client: client, ttl: ttl}
}

func cacheKey(uid string) string {
	return "healthlog:doc:" + uid
}

// Load tries the cache first and falls back to the inner store,
// populating the cache on a miss.
func (s *CachedStore) Load(ctx context.Context, uid string) (*tracker.UserDocument, error) {
	raw, err := s.client.Get(ctx, cacheKey(uid)).Bytes()
	if err == nil {
		doc := &tracker.UserDocument{}
		if err := json.Unmarshal(raw, doc); err == nil {
			metrics.RecordCacheRequest("hit")
			return doc, nil
		}
		// Corrupt entry; drop it and reload.
		s.client.Del(ctx, cacheKey(uid))
	} else if err != redis.Nil {
		log.Printf("WARN: redis get failed for %s: %v", uid, err)
	}
	metrics.RecordCacheRequest("miss")

	doc, err := s.inner.Load(ctx, uid)
	if err != nil {
		return nil, err
	}

	if raw, err := json.Marshal(doc); err == nil {
		if err := s.client.Set(ctx, cacheKey(uid), raw, s.ttl).Err(); err != nil {
			log.Printf("WARN: redis set failed for %s: %v", uid, err)
		}
	}
	return doc, nil
}

// Save writes through to the inner store and invalidates the cache.
func (s *CachedStore) Save(ctx context.Context, uid string, p Partial) error {
	if err := s.inner.Save(ctx, uid, p); err != nil {
		return err
	}
	if err := s.client.Del(ctx, cacheKey(uid)).Err(); err != nil {
		log.Printf("WARN: redis invalidate failed for %s: %v", uid, err)
	}
	return nil
}

// Delete removes the document and its cache entry.
func (s *CachedStore) Delete(ctx context.Context, uid string) error {
	if err := s.inner.Delete(ctx, uid); err != nil {
		return err
	}
	if err := s.client.Del(ctx, cacheKey(uid)).Err(); err != nil {
		log.Printf("WARN: redis invalidate failed for %s: %v", uid, err)
	}
	return nil
}

// List is never cached; admin listings go straight through.
func (s *CachedStore) List(ctx context.Context, limit, offset int) ([]UserSummary, int, error) {
	return s.inner.List(ctx, limit, offset)
}
