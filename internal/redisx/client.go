// Package redisx keeps the latest sync outcome of every tenant in Redis so
// the dashboard can show it without re-running a sync.
package redisx

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"

	"github.com/mhdraihanr/loyalinn-pms/internal/model"
)

// ErrNoResult is returned by [LastResultStore.Last] when the tenant has no
// recorded run, or it has expired.
var ErrNoResult = errors.New("redisx: no sync result recorded")

// dialTimeout bounds the connectivity check in [New].
const dialTimeout = 2 * time.Second

// New connects to the Redis server at addr and pings it.
func New(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:        addr,
		Password:    password,
		DB:          db,
		DialTimeout: dialTimeout,
	})

	ctx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis %s: %w", addr, err)
	}
	return rdb, nil
}

// LastResultStore records the latest [model.SyncRun] per tenant.
type LastResultStore struct {
	rdb redis.Cmdable
	ttl time.Duration
}

// NewLastResultStore wraps rdb. A non-positive ttl uses [TTLLastSync].
func NewLastResultStore(rdb redis.Cmdable, ttl time.Duration) *LastResultStore {
	if ttl <= 0 {
		ttl = TTLLastSync
	}
	return &LastResultStore{rdb: rdb, ttl: ttl}
}

// Record overwrites the tenant's latest run.
func (s *LastResultStore) Record(ctx context.Context, run model.SyncRun) error {
	if run.TenantID == "" {
		return errors.New("redisx: sync run has no tenant")
	}
	b, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("encode sync run: %w", err)
	}
	if err := s.rdb.Set(ctx, LastSyncKey(run.TenantID), b, s.ttl).Err(); err != nil {
		return fmt.Errorf("store sync run for tenant %s: %w", run.TenantID, err)
	}
	return nil
}

// Last returns the tenant's latest run, or [ErrNoResult].
func (s *LastResultStore) Last(ctx context.Context, tenantID string) (*model.SyncRun, error) {
	b, err := s.rdb.Get(ctx, LastSyncKey(tenantID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNoResult
	}
	if err != nil {
		return nil, fmt.Errorf("load sync run for tenant %s: %w", tenantID, err)
	}
	var run model.SyncRun
	if err := json.Unmarshal(b, &run); err != nil {
		return nil, fmt.Errorf("decode sync run for tenant %s: %w", tenantID, err)
	}
	return &run, nil
}
