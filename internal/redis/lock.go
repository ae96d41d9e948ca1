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
	ErrLockNotAcquired = errors.New("vet lock not acquired")
)

const retryInterval = 25 * time.Millisecond

// VetLocker guards booking creation per vet across api-server instances with a
// Redis key holding a random token.
type VetLocker struct {
	client *redis.Client
	ttl    time.Duration
	wait   time.Duration
}

// NewVetLocker creates a locker whose keys expire after ttl. A busy key is
// polled for up to wait before giving up with ErrLockNotAcquired.
func NewVetLocker(client *redis.Client, ttl, wait time.Duration) *VetLocker {
	return &VetLocker{
		client: client,
		ttl:    ttl,
		wait:   wait,
	}
}

func lockKey(vetID uuid.UUID) string {
	return fmt.Sprintf("lock:vet:%s", vetID.String())
}

func (l *VetLocker) WithVetLock(ctx context.Context, vetID uuid.UUID, fn func(ctx context.Context) error) error {
	key := lockKey(vetID)
	token := uuid.NewString()

	if err := l.acquire(ctx, key, token); err != nil {
		return err
	}

	defer func() {
		// release even when ctx is already done
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
		defer cancel()
		_ = l.release(releaseCtx, key, token)
	}()

	ctxWithTimeout, cancel := context.WithTimeout(ctx, l.ttl)
	defer cancel()

	return fn(ctxWithTimeout)
}

func (l *VetLocker) acquire(ctx context.Context, key, token string) error {
	deadline := time.Now().Add(l.wait)

	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			// an unreachable Redis is reported like a busy vet
			return fmt.Errorf("%w: %w", ErrLockNotAcquired, err)
		}
		if ok {
			return nil
		}
		if !time.Now().Before(deadline) {
			return ErrLockNotAcquired
		}

		timer := time.NewTimer(retryInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ErrLockNotAcquired
		case <-timer.C:
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

func (l *VetLocker) release(ctx context.Context, key, token string) error {
	_, err := unlockScript.Run(ctx, l.client, []string{key}, token).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("release vet lock: %w", err)
	}
	return nil
}
