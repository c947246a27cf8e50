package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrLockHeld is returned when another holder owns the lock.
var ErrLockHeld = errors.New("lock held by another owner")

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
    return redis.call("DEL", KEYS[1])
end
return 0`)

// Lease is an acquired Redis lock. Release is safe to call more than once.
type Lease struct {
	client *redis.Client
	key    string
	owner  string
}

// AcquireLock takes key with SET NX PX. The lease expires on its own after ttl
// so a crashed holder cannot wedge the lock.
func AcquireLock(ctx context.Context, r *Redis, name string, ttl time.Duration) (*Lease, error) {
	if r == nil || r.Client == nil {
		return nil, errors.New("redis client not configured")
	}
	lease := &Lease{client: r.Client, key: r.Key(name), owner: uuid.NewString()}
	ok, err := r.Client.SetNX(ctx, lease.key, lease.owner, ttl).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrLockHeld
	}
	return lease, nil
}

// Release deletes the key only if this lease still owns it.
func (l *Lease) Release(ctx context.Context) error {
	if l == nil {
		return nil
	}
	return releaseScript.Run(ctx, l.client, []string{l.key}, l.owner).Err()
}
