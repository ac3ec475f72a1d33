package data

import (
	"context"
	"log"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"
)

// Store is a key/value cache with per-entry expiry. Values are raw bytes;
// callers handle serialization. Concurrent writers to the same key simply
// overwrite, which is fine because entries are re-derivations of the same
// upstream query.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration)
}

// NewStore selects a backend from the configured cache location: a
// redis:// URL gets the networked backend, anything else an in-process one.
func NewStore(redisURL string) Store {
	if strings.HasPrefix(redisURL, "redis://") {
		log.Printf("cache: redis backend %s", redisURL)
		return NewRedisStore(MustRedis(redisURL))
	}
	log.Printf("cache: in-process backend")
	return NewMemoryStore()
}

func MustRedis(url string) *redis.Client {
	opt, err := redis.ParseURL(url)
	if err != nil {
		log.Fatalf("redis: %v", err)
	}
	return redis.NewClient(opt)
}

// RedisStore backs the cache with a shared redis instance. Backend errors
// degrade to a miss so an unhealthy redis never fails a request.
type RedisStore struct {
	rdb *redis.Client
}

func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb}
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, bool) {
	val, err := s.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			log.Printf("cache: redis get %s: %v", key, err)
		}
		return nil, false
	}
	return val, true
}

func (s *RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	if err := s.rdb.Set(ctx, key, value, ttl).Err(); err != nil {
		log.Printf("cache: redis set %s: %v", key, err)
	}
}

// MemoryStore is the in-process backend, also used by tests.
type MemoryStore struct {
	c *gocache.Cache
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{c: gocache.New(gocache.NoExpiration, 10*time.Minute)}
}

func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, bool) {
	val, ok := s.c.Get(key)
	if !ok {
		return nil, false
	}
	return val.([]byte), true
}

func (s *MemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) {
	s.c.Set(key, value, ttl)
}
