package idempotency

import (
	"context"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"
)

// ============================================================================
// Idempotency guard for ledger submissions
// ============================================================================
//
// Claim: SET key owner NX EX ttl
//   - NX makes the first submission of a key the only one that proceeds
//   - EX lets keys expire so the keyspace stays bounded
//   - owner identifies the request holding the key
//
// Release: Lua compare-and-delete, so a request whose claim already expired
// cannot drop a key that another request now holds.
// ============================================================================

const keyPrefix = "txengine:idem:"

var ErrEmptyKey = errors.New("idempotency key is empty")

const releaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
else
	return 0
end
`

// Guard deduplicates submissions by client supplied key.
type Guard struct {
	client *redis.Client
	ttl    time.Duration
}

func NewGuard(client *redis.Client, ttl time.Duration) *Guard {
	return &Guard{client: client, ttl: ttl}
}

// Claim reports whether owner is the first to submit key. A false result
// with a nil error means the key was already claimed.
func (g *Guard) Claim(ctx context.Context, key, owner string) (bool, error) {
	if key == "" {
		return false, ErrEmptyKey
	}
	return g.client.SetNX(ctx, keyPrefix+key, owner, g.ttl).Result()
}

// Release frees key if owner still holds it, letting the submission be
// retried.
func (g *Guard) Release(ctx context.Context, key, owner string) error {
	if key == "" {
		return ErrEmptyKey
	}
	return g.client.Eval(ctx, releaseScript, []string{keyPrefix + key}, owner).Err()
}
