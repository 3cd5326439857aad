package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/LeventeLantos/zenvia-go/model"
)

const (
	sentKeyPrefix  = "msg:"
	eventKeyPrefix = "event:"
)

type RedisCache struct {
	rdb *redis.Client
	ttl time.Duration
}

var (
	_ MessageCache = (*RedisCache)(nil)
	_ EventDeduper = (*RedisCache)(nil)
)

func NewRedisCache(rdb *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{rdb: rdb, ttl: ttl}
}

type sentValue struct {
	Channel model.Channel `json:"channel"`
	SentAt  time.Time     `json:"sentAt"`
}

func (c *RedisCache) StoreSent(ctx context.Context, messageID string, channel model.Channel, sentAt time.Time) error {
	if messageID == "" {
		return errors.New("cache: empty message id")
	}

	b, err := json.Marshal(sentValue{Channel: channel, SentAt: sentAt.UTC()})
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, sentKeyPrefix+messageID, b, c.ttl).Err()
}

// Sent returns the record stored for messageID. ok is false when there is
// none or it expired.
func (c *RedisCache) Sent(ctx context.Context, messageID string) (channel model.Channel, sentAt time.Time, ok bool, err error) {
	raw, err := c.rdb.Get(ctx, sentKeyPrefix+messageID).Bytes()
	if errors.Is(err, redis.Nil) {
		return "", time.Time{}, false, nil
	}
	if err != nil {
		return "", time.Time{}, false, err
	}

	var v sentValue
	if err := json.Unmarshal(raw, &v); err != nil {
		return "", time.Time{}, false, err
	}
	return v.Channel, v.SentAt, true, nil
}

// FirstSeen marks eventID as seen for the cache TTL. It returns true only for
// the first caller within that window. Events without an ID are always new.
func (c *RedisCache) FirstSeen(ctx context.Context, eventID string) (bool, error) {
	if eventID == "" {
		return true, nil
	}
	return c.rdb.SetNX(ctx, eventKeyPrefix+eventID, time.Now().UTC().Unix(), c.ttl).Result()
}
