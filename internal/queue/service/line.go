package service

import (
	"context"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// Line is the low-latency waiting room backing the durable queue rows. The
// waiting set is ordered by join time; the entered set is ordered by
// admission time so stale admissions can be pruned to free capacity.
type Line interface {
	AddWaiting(ctx context.Context, eventType, eventID, token string, joinedAt time.Time) error
	WaitingRank(ctx context.Context, eventType, eventID, token string) (rank int64, ok bool, err error)
	WaitingCount(ctx context.Context, eventType, eventID string) (int64, error)
	PopOldestWaiting(ctx context.Context, eventType, eventID string, n int64) ([]string, error)
	RemoveWaiting(ctx context.Context, eventType, eventID, token string) error

	AddEntered(ctx context.Context, eventType, eventID, token string, enteredAt time.Time) error
	EnteredCount(ctx context.Context, eventType, eventID string) (int64, error)
	RemoveEntered(ctx context.Context, eventType, eventID, token string) error
	PruneEntered(ctx context.Context, eventType, eventID string, before time.Time) (int64, error)

	Clear(ctx context.Context, eventType, eventID string) error
}

type redisLine struct {
	client *redis.Client
}

func NewRedisLine(client *redis.Client) Line {
	return &redisLine{client: client}
}

func waitingKey(eventType, eventID string) string {
	return fmt.Sprintf("queue:waiting:%s:%s", eventType, eventID)
}

func enteredKey(eventType, eventID string) string {
	return fmt.Sprintf("queue:entered:%s:%s", eventType, eventID)
}

func (l *redisLine) AddWaiting(ctx context.Context, eventType, eventID, token string, joinedAt time.Time) error {
	return l.client.ZAdd(ctx, waitingKey(eventType, eventID), redis.Z{
		Score:  float64(joinedAt.UnixMilli()),
		Member: token,
	}).Err()
}

func (l *redisLine) WaitingRank(ctx context.Context, eventType, eventID, token string) (int64, bool, error) {
	rank, err := l.client.ZRank(ctx, waitingKey(eventType, eventID), token).Result()
	if err != nil {
		if err == redis.Nil {
			return 0, false, nil
		}
		return 0, false, err
	}
	return rank, true, nil
}

func (l *redisLine) WaitingCount(ctx context.Context, eventType, eventID string) (int64, error) {
	return l.client.ZCard(ctx, waitingKey(eventType, eventID)).Result()
}

func (l *redisLine) PopOldestWaiting(ctx context.Context, eventType, eventID string, n int64) ([]string, error) {
	if n <= 0 {
		return nil, nil
	}
	popped, err := l.client.ZPopMin(ctx, waitingKey(eventType, eventID), n).Result()
	if err != nil {
		return nil, err
	}
	tokens := make([]string, 0, len(popped))
	for _, z := range popped {
		if token, ok := z.Member.(string); ok {
			tokens = append(tokens, token)
		}
	}
	return tokens, nil
}

func (l *redisLine) RemoveWaiting(ctx context.Context, eventType, eventID, token string) error {
	return l.client.ZRem(ctx, waitingKey(eventType, eventID), token).Err()
}

func (l *redisLine) AddEntered(ctx context.Context, eventType, eventID, token string, enteredAt time.Time) error {
	return l.client.ZAdd(ctx, enteredKey(eventType, eventID), redis.Z{
		Score:  float64(enteredAt.UnixMilli()),
		Member: token,
	}).Err()
}

func (l *redisLine) EnteredCount(ctx context.Context, eventType, eventID string) (int64, error) {
	return l.client.ZCard(ctx, enteredKey(eventType, eventID)).Result()
}

func (l *redisLine) RemoveEntered(ctx context.Context, eventType, eventID, token string) error {
	return l.client.ZRem(ctx, enteredKey(eventType, eventID), token).Err()
}

func (l *redisLine) PruneEntered(ctx context.Context, eventType, eventID string, before time.Time) (int64, error) {
	max := fmt.Sprintf("%d", before.UnixMilli())
	return l.client.ZRemRangeByScore(ctx, enteredKey(eventType, eventID), "-inf", max).Result()
}

func (l *redisLine) Clear(ctx context.Context, eventType, eventID string) error {
	return l.client.Del(ctx, waitingKey(eventType, eventID), enteredKey(eventType, eventID)).Err()
}
