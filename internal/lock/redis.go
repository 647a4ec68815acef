// Package lock implements the named per-job lease required by the
// Sync Service's merge algorithm (§4.3 "Locking"): all merge steps for
// a single message occur under one lease, acquired and released
// around the durable record's datastore.
package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrNotHeld is returned by Unlock when the lease has already expired
// or been taken by another holder.
var ErrNotHeld = errors.New("lock: lease not held")

// ErrContended is returned by Lock when another holder currently owns
// the named lease.
var ErrContended = errors.New("lock: contended")

// unlockScript deletes the key only if its value still matches the
// token this holder set, so a lease that already expired and was
// re-acquired by someone else is never released out from under them.
const unlockScript = `
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
else
	return 0
end`

// Client wraps the Redis connection used for distributed leases.
type Client struct {
	*redis.Client
}

// NewClient dials Redis and verifies connectivity.
func NewClient(ctx context.Context, url string) (*Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	opts.PoolSize = 10
	opts.MinIdleConns = 5
	opts.ConnMaxLifetime = time.Hour

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return &Client{Client: client}, nil
}

func (c *Client) HealthCheck(ctx context.Context) error {
	return c.Ping(ctx).Err()
}

// Lease is a held lock; release it with Unlock.
type Lease struct {
	key   string
	token string
}

// Lock acquires a named lease for jobID with the given TTL. The TTL
// must exceed the worst-case merge time (§4.3): the Sync Service holds
// a lease only across loading the job record, the in-memory merge, and
// the subsequent Save. A held lease is not refreshed.
func Lock(ctx context.Context, client *Client, jobID uuid.UUID, ttl time.Duration) (*Lease, error) {
	key := fmt.Sprintf("joblock:%s", jobID)
	token := uuid.New().String()

	ok, err := client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire lease: %w", err)
	}
	if !ok {
		return nil, ErrContended
	}
	return &Lease{key: key, token: token}, nil
}

// Unlock releases the lease if it is still held by this caller.
func Unlock(ctx context.Context, client *Client, lease *Lease) error {
	res, err := client.Eval(ctx, unlockScript, []string{lease.key}, lease.token).Result()
	if err != nil {
		return fmt.Errorf("release lease: %w", err)
	}
	if n, ok := res.(int64); !ok || n == 0 {
		return ErrNotHeld
	}
	return nil
}
