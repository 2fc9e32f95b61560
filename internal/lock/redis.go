package lock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/ariefcatur/go-storefront-orders/internal/redisx"
)

// compare-and-delete so a holder whose lease expired cannot free someone else's lock
var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// Redis is a Locker shared by every store instance pointing at the same
// Redis. The lease bounds how long a crashed holder can block others.
type Redis struct {
	rdb   *redis.Client
	lease time.Duration
	poll  time.Duration
}

func NewRedis(rdb *redis.Client, lease time.Duration) *Redis {
	if lease <= 0 {
		lease = 30 * time.Second
	}
	return &Redis{rdb: rdb, lease: lease, poll: 50 * time.Millisecond}
}

func (r *Redis) Acquire(ctx context.Context, name string, wait time.Duration) (Release, error) {
	key := fmt.Sprintf(redisx.KeyLock, name)
	token := uuid.NewString()
	deadline := time.Now().Add(wait)
	for {
		ok, err := r.rdb.SetNX(ctx, key, token, r.lease).Result()
		if err != nil {
			return nil, fmt.Errorf("lock: acquire %s: %w", name, err)
		}
		if ok {
			break
		}
		if !time.Now().Before(deadline) {
			return nil, ErrBusy
		}
		select {
		case <-time.After(r.poll):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			rctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = unlockScript.Run(rctx, r.rdb, []string{key}, token).Err()
		})
	}, nil
}
