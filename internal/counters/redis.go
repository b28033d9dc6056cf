package counters

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Key layout, all keyed by user id:
//
//	rq:onboarded:<id>  string, unix seconds of onboarding
//	rq:blocked:<id>    string, unix seconds of the block
//	rq:cooldown:<id>   string, unix seconds of the last accepted submission
//	rq:quota:<id>      hash {window_start, count}
const (
	keyOnboarded = "rq:onboarded:"
	keyBlocked   = "rq:blocked:"
	keyCooldown  = "rq:cooldown:"
	keyQuota     = "rq:quota:"
)

// quotaScript performs the rolling-window check-and-increment server-side so
// concurrent submissions by the same user cannot interleave between the read
// and the write. Returns {allowed, count_after}. The key expires two windows
// after its last touch; an expired key reads as an empty window, which is
// exactly the restart semantics.
var quotaScript = redis.NewScript(`
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])

local ws = tonumber(redis.call("HGET", KEYS[1], "window_start")) or now
local cnt = tonumber(redis.call("HGET", KEYS[1], "count")) or 0

if now - ws >= window then
  ws = now
  cnt = 0
end

if cnt >= limit then
  return {0, cnt}
end

cnt = cnt + 1
redis.call("HSET", KEYS[1], "window_start", ws, "count", cnt)
redis.call("EXPIRE", KEYS[1], window * 2)
return {1, cnt}
`)

// Redis is the go-redis backed Store.
type Redis struct {
	Client redis.UniversalClient
}

// NewRedis returns a Store persisting to the given client.
func NewRedis(client redis.UniversalClient) *Redis {
	return &Redis{Client: client}
}

// Onboarded implements Store.
func (r *Redis) Onboarded(ctx context.Context, userID int64) (bool, error) {
	return r.exists(ctx, keyOnboarded, userID)
}

// SetOnboarded implements Store. SetNX keeps the first timestamp.
func (r *Redis) SetOnboarded(ctx context.Context, userID int64, now time.Time) error {
	return r.Client.SetNX(ctx, userKey(keyOnboarded, userID), now.Unix(), 0).Err()
}

// Blocked implements Store.
func (r *Redis) Blocked(ctx context.Context, userID int64) (bool, error) {
	return r.exists(ctx, keyBlocked, userID)
}

// Block implements Store.
func (r *Redis) Block(ctx context.Context, userID int64, now time.Time) error {
	return r.Client.SetNX(ctx, userKey(keyBlocked, userID), now.Unix(), 0).Err()
}

// Unblock implements Store.
func (r *Redis) Unblock(ctx context.Context, userID int64) error {
	return r.Client.Del(ctx, userKey(keyBlocked, userID)).Err()
}

// CooldownLast implements Store. A missing key reads as the zero time.
func (r *Redis) CooldownLast(ctx context.Context, userID int64) (time.Time, error) {
	v, err := r.Client.Get(ctx, userKey(keyCooldown, userID)).Result()
	if errors.Is(err, redis.Nil) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, err
	}
	sec, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.Unix(sec, 0), nil
}

// SetCooldown implements Store.
func (r *Redis) SetCooldown(ctx context.Context, userID int64, now time.Time) error {
	return r.Client.Set(ctx, userKey(keyCooldown, userID), now.Unix(), 0).Err()
}

// QuotaCheckAndInc implements Store via the Lua script above.
func (r *Redis) QuotaCheckAndInc(ctx context.Context, userID int64, now time.Time, window time.Duration, limit int) (bool, int, error) {
	res, err := quotaScript.Run(ctx, r.Client,
		[]string{userKey(keyQuota, userID)},
		now.Unix(), int64(window.Seconds()), limit,
	).Int64Slice()
	if err != nil {
		return false, 0, err
	}
	if len(res) != 2 {
		return false, 0, fmt.Errorf("quota script returned %d values, want 2", len(res))
	}
	return res[0] == 1, int(res[1]), nil
}

func (r *Redis) exists(ctx context.Context, prefix string, userID int64) (bool, error) {
	n, err := r.Client.Exists(ctx, userKey(prefix, userID)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func userKey(prefix string, userID int64) string {
	return prefix + strconv.FormatInt(userID, 10)
}
