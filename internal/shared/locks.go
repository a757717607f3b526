package shared

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// CatchupLockKey builds the redis key guarding catch-up runs per company.
func CatchupLockKey(companyID int64) string {
	return fmt.Sprintf("herd:catchup:%d:lock", companyID)
}

// RepairLockKey builds the redis key guarding integrity repair per company+period.
func RepairLockKey(companyID int64, period Period) string {
	return fmt.Sprintf("herd:repair:%d:%s:lock", companyID, period.Code())
}

// AdvisoryLock enforces the single-writer rule for batch mutations. Concurrent
// catch-up or repair runs for the same scope can double-create entries, so the
// lock failure is surfaced as an error rather than a wait.
type AdvisoryLock struct {
	client *redis.Client
	ttl    time.Duration
}

// NewAdvisoryLock wraps a redis client with a lock TTL.
func NewAdvisoryLock(client *redis.Client, ttl time.Duration) *AdvisoryLock {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &AdvisoryLock{client: client, ttl: ttl}
}

// Acquire takes the lock or returns ErrLockHeld.
func (l *AdvisoryLock) Acquire(ctx context.Context, key, token string) error {
	if l == nil || l.client == nil {
		return fmt.Errorf("shared: advisory lock not initialised")
	}
	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return fmt.Errorf("shared: acquire lock %s: %w", key, err)
	}
	if !ok {
		return ErrLockHeld
	}
	return nil
}

// Release drops the lock when the caller still owns it.
func (l *AdvisoryLock) Release(ctx context.Context, key, token string) error {
	if l == nil || l.client == nil {
		return nil
	}
	current, err := l.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil
	}
	if err != nil {
		return fmt.Errorf("shared: release lock %s: %w", key, err)
	}
	if current != token {
		return nil
	}
	return l.client.Del(ctx, key).Err()
}
