package cache

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the lease only if it still carries our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Lease is a held Redis lock. Release is safe to call more than once.
type Lease struct {
	rdb   *redis.Client
	key   string
	token string
}

// Release gives the lease up if it has not expired and been taken over.
func (l *Lease) Release(ctx context.Context) error {
	if l == nil || l.rdb == nil {
		return nil
	}
	return releaseScript.Run(ctx, l.rdb, []string{l.key}, l.token).Err()
}

// Leaser hands out short-lived exclusive leases with SET NX PX.
type Leaser struct {
	rdb *redis.Client
}

// NewLeaser returns a Leaser backed by rdb.
func NewLeaser(rdb *redis.Client) *Leaser {
	return &Leaser{rdb: rdb}
}

// Acquire tries to take key for ttl. ok is false when another holder has it.
func (l *Leaser) Acquire(ctx context.Context, key string, ttl time.Duration) (lease *Lease, ok bool, err error) {
	token := uuid.NewString()
	ok, err = l.rdb.SetNX(ctx, key, token, ttl).Result()
	if err != nil || !ok {
		return nil, false, err
	}
	return &Lease{rdb: l.rdb, key: key, token: token}, true, nil
}
