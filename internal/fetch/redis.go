package fetch

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store is the optional cross-session cache layer backed by Redis. Upstream
// intelligence moves slowly relative to screening traffic, so decoded
// responses may be reused across sessions within a short TTL. Only
// successful responses are stored; session semantics hold unchanged when
// the layer is absent or unreachable (every failure here degrades to a
// plain fetch).
type Store struct {
	rdb    *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewStore connects to Redis and verifies connectivity.
func NewStore(addr, password string, db int, ttl time.Duration, logger *slog.Logger) (*Store, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  3 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("fetch: redis ping %s: %w", addr, err)
	}

	return &Store{rdb: rdb, ttl: ttl, logger: logger}, nil
}

// Close releases the Redis client.
func (s *Store) Close() error {
	return s.rdb.Close()
}

// redisKey namespaces and hashes the session key. Canonical keys embed full
// URLs and bodies; hashing keeps Redis keys bounded.
func redisKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return "marisk:upstream:" + hex.EncodeToString(sum[:])
}

// get loads a cached value into out. Returns false on miss, decode failure,
// or any Redis error.
func (s *Store) get(ctx context.Context, key string, out any) bool {
	raw, err := s.rdb.Get(ctx, redisKey(key)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.logger.Warn("upstream cache read failed", "error", err)
		}
		return false
	}
	if err := json.Unmarshal(raw, out); err != nil {
		s.logger.Warn("upstream cache entry undecodable, ignoring", "error", err)
		return false
	}
	return true
}

// put stores a value best-effort. Marshal or write failures are logged and
// dropped; the session already holds the value.
func (s *Store) put(ctx context.Context, key string, val any) {
	raw, err := json.Marshal(val)
	if err != nil {
		s.logger.Warn("upstream cache marshal failed", "error", err)
		return
	}
	if err := s.rdb.Set(ctx, redisKey(key), raw, s.ttl).Err(); err != nil {
		s.logger.Warn("upstream cache write failed", "error", err)
	}
}
