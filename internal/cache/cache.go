package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/opensource-finance/claimguard/internal/domain"
)

// New creates a new cache based on configuration.
// "memory" returns an LRU cache, "redis" returns Redis or, with two-phase
// enabled, LRU in front of Redis. "none" disables caching.
func New(cfg domain.CacheConfig) (domain.Cache, error) {
	switch cfg.Type {
	case "memory":
		return NewLRUCache(cfg.LocalMaxSize), nil

	case "redis":
		if cfg.EnableTwoPhase {
			return NewTwoPhaseCache(cfg)
		}
		return NewRedisCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)

	case "none", "":
		return Noop{}, nil

	default:
		return nil, fmt.Errorf("unsupported cache type: %s", cfg.Type)
	}
}

// ClaimKey is the cache key of a claim read.
func ClaimKey(id string) string {
	return "claim:" + id
}

// GetClaim reads a cached claim. A miss returns nil, nil.
func GetClaim(ctx context.Context, c domain.Cache, id string) (*domain.Claim, error) {
	data, err := c.Get(ctx, ClaimKey(id))
	if err != nil || data == nil {
		return nil, err
	}

	var claim domain.Claim
	if err := json.Unmarshal(data, &claim); err != nil {
		return nil, fmt.Errorf("decoding cached claim %s: %w", id, err)
	}
	return &claim, nil
}

// AddClaim caches a claim read from the repository unless the key already
// holds an entry. A review that commits while the read is in flight writes
// the newer claim first, and the older read is then discarded.
func AddClaim(ctx context.Context, c domain.Cache, claim *domain.Claim, ttl time.Duration) (bool, error) {
	data, err := json.Marshal(claim)
	if err != nil {
		return false, err
	}
	return c.SetIfAbsent(ctx, ClaimKey(claim.ID), data, ttl)
}

// SetClaim caches a claim, replacing any entry.
func SetClaim(ctx context.Context, c domain.Cache, claim *domain.Claim, ttl time.Duration) error {
	data, err := json.Marshal(claim)
	if err != nil {
		return err
	}
	return c.Set(ctx, ClaimKey(claim.ID), data, ttl)
}

// TwoPhaseCache implements the two-phase caching strategy.
// L1: Local LRU cache for fast reads
// L2: Redis, shared by every replica
type TwoPhaseCache struct {
	local  *LRUCache
	remote *RedisCache
	l1TTL  time.Duration
}

// NewTwoPhaseCache creates a two-phase cache with LRU + Redis.
func NewTwoPhaseCache(cfg domain.CacheConfig) (*TwoPhaseCache, error) {
	remote, err := NewRedisCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		return nil, fmt.Errorf("failed to create redis cache: %w", err)
	}
	return newTwoPhase(NewLRUCache(cfg.LocalMaxSize), remote, cfg.LocalTTL), nil
}

func newTwoPhase(local *LRUCache, remote *RedisCache, l1TTL time.Duration) *TwoPhaseCache {
	if l1TTL == 0 {
		l1TTL = time.Minute
	}
	return &TwoPhaseCache{
		local:  local,
		remote: remote,
		l1TTL:  l1TTL,
	}
}

// Get retrieves from L1 first, then L2. Populates L1 on L2 hit.
func (c *TwoPhaseCache) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := c.local.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if val != nil {
		return val, nil
	}

	val, err = c.remote.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if val != nil {
		_ = c.local.Set(ctx, key, val, c.l1TTL)
	}

	return val, nil
}

// Set writes to both L1 and L2. L1 keeps the entry for at most its own TTL.
func (c *TwoPhaseCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	l1TTL := c.l1TTL
	if ttl < l1TTL {
		l1TTL = ttl
	}
	if err := c.local.Set(ctx, key, value, l1TTL); err != nil {
		return err
	}

	return c.remote.Set(ctx, key, value, ttl)
}

// SetIfAbsent defers to L2, which every replica shares. L1 is filled only
// when L2 accepted the value; otherwise the stale local copy is dropped.
func (c *TwoPhaseCache) SetIfAbsent(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	stored, err := c.remote.SetIfAbsent(ctx, key, value, ttl)
	if err != nil {
		return false, err
	}
	if !stored {
		return false, c.local.Delete(ctx, key)
	}

	l1TTL := c.l1TTL
	if ttl < l1TTL {
		l1TTL = ttl
	}
	return true, c.local.Set(ctx, key, value, l1TTL)
}

// Delete removes from both L1 and L2. Other replicas keep their L1 copy
// until its TTL lapses.
func (c *TwoPhaseCache) Delete(ctx context.Context, key string) error {
	if err := c.local.Delete(ctx, key); err != nil {
		return err
	}
	return c.remote.Delete(ctx, key)
}

// Ping checks both L1 and L2 health.
func (c *TwoPhaseCache) Ping(ctx context.Context) error {
	if err := c.local.Ping(ctx); err != nil {
		return fmt.Errorf("L1 ping failed: %w", err)
	}
	if err := c.remote.Ping(ctx); err != nil {
		return fmt.Errorf("L2 ping failed: %w", err)
	}
	return nil
}

// Close closes both L1 and L2.
func (c *TwoPhaseCache) Close() error {
	_ = c.local.Close()
	return c.remote.Close()
}

// Stats returns L1 cache statistics.
func (c *TwoPhaseCache) Stats() (size int, capacity int) {
	return c.local.Stats()
}

// Noop is a cache that stores nothing.
type Noop struct{}

func (Noop) Get(context.Context, string) ([]byte, error)                              { return nil, nil }
func (Noop) Set(context.Context, string, []byte, time.Duration) error                 { return nil }
func (Noop) SetIfAbsent(context.Context, string, []byte, time.Duration) (bool, error) { return false, nil }
func (Noop) Delete(context.Context, string) error                                     { return nil }
func (Noop) Ping(context.Context) error                                               { return nil }
func (Noop) Close() error                                                             { return nil }
