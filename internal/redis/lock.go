package redisclient

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	ErrLockNotAcquired = errors.New("schedule lock not acquired")
)

// ScheduleLocker guards the booking critical section for one provider-day.
// Two requests for the same provider and day serialize; requests for
// different providers or days never contend.
type ScheduleLocker interface {
	WithScheduleLock(ctx context.Context, providerID uuid.UUID, day string, fn func(ctx context.Context) error) error
}

type redisScheduleLocker struct {
	client *redis.Client
	ttl    time.Duration
	wait   time.Duration
}

// NewRedisScheduleLocker creates a locker keyed per provider-day. ttl bounds
// how long a crashed holder can keep the schedule locked; wait bounds how
// long an acquirer retries before giving up with ErrLockNotAcquired.
func NewRedisScheduleLocker(client *redis.Client, ttl, wait time.Duration) ScheduleLocker {
	return &redisScheduleLocker{
		client: client,
		ttl:    ttl,
		wait:   wait,
	}
}

const acquireRetryInterval = 25 * time.Millisecond

func scheduleKey(providerID uuid.UUID, day string) string {
	return fmt.Sprintf("lock:schedule:%s:%s", providerID.String(), day)
}

func (l *redisScheduleLocker) WithScheduleLock(ctx context.Context, providerID uuid.UUID, day string, fn func(ctx context.Context) error) error {
	key := scheduleKey(providerID, day)
	token := uuid.NewString()

	if err := l.acquire(ctx, key, token); err != nil {
		return err
	}

	defer func() {
		_ = l.release(ctx, key, token)
	}()

	ctxWithTimeout, cancel := context.WithTimeout(ctx, l.ttl)
	defer cancel()

	return fn(ctxWithTimeout)
}

// acquire retries SET NX until the wait budget runs out. Retrying instead of
// failing fast lets racing creators proceed to the conflict re-check, so the
// losers see a real slot conflict rather than a busy schedule.
func (l *redisScheduleLocker) acquire(ctx context.Context, key, token string) error {
	deadline := time.Now().Add(l.wait)
	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return fmt.Errorf("acquire schedule lock: %w", err)
		}
		if ok {
			return nil
		}
		if l.wait <= 0 || !time.Now().Before(deadline) {
			return ErrLockNotAcquired
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(acquireRetryInterval):
		}
	}
}

var unlockScript = redis.NewScript(`
local val = redis.call("GET", KEYS[1])
if val == ARGV[1] then
  return redis.call("DEL", KEYS[1])
else
  return 0
end
`)

// release deletes the lock only while we still own it, so a lock that
// expired and was re-acquired by someone else is left alone.
func (l *redisScheduleLocker) release(ctx context.Context, key, token string) error {
	_, err := unlockScript.Run(ctx, l.client, []string{key}, token).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("release schedule lock: %w", err)
	}
	return nil
}
