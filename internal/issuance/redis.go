package issuance

import (
	"context"
	"errors"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// issueScript is the whole check-and-decrement step. Running it server-side
// is what makes overselling impossible: two callers can never both observe
// the same remaining count and both decrement.
//
// Returns 1 issued, 0 exhausted, -1 claim cap reached, -2 stock counter
// missing.
const issueScript = `
local stock = redis.call("GET", KEYS[1])
if not stock then
  return -2
end
local qty = tonumber(ARGV[2])
local cap = tonumber(ARGV[3])
local claimed = tonumber(redis.call("HGET", KEYS[2], ARGV[1]) or "0")
if claimed + qty > cap then
  return -1
end
if tonumber(stock) < qty then
  return 0
end
redis.call("DECRBY", KEYS[1], qty)
redis.call("HINCRBY", KEYS[2], ARGV[1], qty)
return 1
`

// rollbackScript restores stock and reduces the requester's claim, deleting
// the hash field once it reaches zero. Refuses to resurrect a counter that
// was already cleared.
const rollbackScript = `
if redis.call("EXISTS", KEYS[1]) == 0 then
  return -2
end
local qty = tonumber(ARGV[2])
redis.call("INCRBY", KEYS[1], qty)
local left = redis.call("HINCRBY", KEYS[2], ARGV[1], -qty)
if left <= 0 then
  redis.call("HDEL", KEYS[2], ARGV[1])
end
return 1
`

type redisStore struct {
	client   *redis.Client
	issue    *redis.Script
	rollback *redis.Script
}

// NewRedisStore returns a Store backed by a shared redis instance.
func NewRedisStore(client *redis.Client) Store {
	return &redisStore{
		client:   client,
		issue:    redis.NewScript(issueScript),
		rollback: redis.NewScript(rollbackScript),
	}
}

func (s *redisStore) InitializeStock(ctx context.Context, kind, id string, quantity int64) error {
	if quantity < 0 {
		return fmt.Errorf("issuance: negative stock %d for %s:%s", quantity, kind, id)
	}
	return s.client.Set(ctx, stockKey(kind, id), quantity, 0).Err()
}

func (s *redisStore) Issue(ctx context.Context, kind, id, requesterID string, quantity, maxPerRequester int64) (Result, error) {
	if quantity <= 0 || maxPerRequester <= 0 {
		return 0, fmt.Errorf("issuance: invalid quantity %d (cap %d)", quantity, maxPerRequester)
	}
	if requesterID == "" {
		return 0, errors.New("issuance: requester id is empty")
	}

	keys := []string{stockKey(kind, id), claimsKey(kind, id)}
	code, err := s.issue.Run(ctx, s.client, keys, requesterID, quantity, maxPerRequester).Int64()
	if err != nil {
		return 0, fmt.Errorf("issuance: issue script: %w", err)
	}

	switch code {
	case 1:
		return Issued, nil
	case 0:
		return Exhausted, nil
	case -1:
		return AlreadyClaimed, nil
	case -2:
		return 0, fmt.Errorf("%w: %s:%s", ErrNotInitialized, kind, id)
	default:
		return 0, fmt.Errorf("issuance: unexpected script result %d", code)
	}
}

func (s *redisStore) Rollback(ctx context.Context, kind, id, requesterID string, quantity int64) error {
	if quantity <= 0 {
		return fmt.Errorf("issuance: invalid rollback quantity %d", quantity)
	}

	keys := []string{stockKey(kind, id), claimsKey(kind, id)}
	code, err := s.rollback.Run(ctx, s.client, keys, requesterID, quantity).Int64()
	if err != nil {
		return fmt.Errorf("issuance: rollback script: %w", err)
	}
	if code == -2 {
		return fmt.Errorf("%w: %s:%s", ErrNotInitialized, kind, id)
	}
	return nil
}

func (s *redisStore) Remaining(ctx context.Context, kind, id string) (int64, error) {
	v, err := s.client.Get(ctx, stockKey(kind, id)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, fmt.Errorf("%w: %s:%s", ErrNotInitialized, kind, id)
		}
		return 0, err
	}
	return v, nil
}

func (s *redisStore) ClaimCount(ctx context.Context, kind, id, requesterID string) (int64, error) {
	v, err := s.client.HGet(ctx, claimsKey(kind, id), requesterID).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, err
	}
	return v, nil
}

func (s *redisStore) Clear(ctx context.Context, kind, id string) error {
	return s.client.Del(ctx, stockKey(kind, id), claimsKey(kind, id)).Err()
}

func (s *redisStore) Expire(ctx context.Context, kind, id string, ttl time.Duration) error {
	if ttl <= 0 {
		return s.Clear(ctx, kind, id)
	}
	pipe := s.client.Pipeline()
	pipe.Expire(ctx, stockKey(kind, id), ttl)
	pipe.Expire(ctx, claimsKey(kind, id), ttl)
	_, err := pipe.Exec(ctx)
	return err
}
