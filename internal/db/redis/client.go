package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/pkg/errors"
	goredis "github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/iamwavecut/ngguard/internal/db"
	"github.com/iamwavecut/ngguard/internal/moderation"
)

const (
	keyPrefix  = "ngguard:esc"
	fieldCount = "count"
	fieldLast  = "last"
)

var _ db.Client = (*redisClient)(nil)

// redisClient keeps one hash per (chat, user) so that replicas share escalation state.
type redisClient struct {
	client *goredis.Client
	ttl    time.Duration
}

// NewRedisClient connects to the server described by a redis:// URL.
func NewRedisClient(ctx context.Context, url string, ttl time.Duration) (*redisClient, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, errors.WithMessage(err, "cant parse redis url")
	}
	client := goredis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.WithMessage(err, "cant reach redis")
	}
	return NewFromClient(client, ttl), nil
}

func NewFromClient(client *goredis.Client, ttl time.Duration) *redisClient {
	return &redisClient{client: client, ttl: ttl}
}

func recordKey(key moderation.Key) string {
	return fmt.Sprintf("%s:%d:%d", keyPrefix, key.ChatID, key.UserID)
}

func (c *redisClient) Get(ctx context.Context, key moderation.Key) (moderation.Record, error) {
	k := recordKey(key)
	fields, err := c.client.HGetAll(ctx, k).Result()
	if err != nil {
		return moderation.Record{}, errors.WithMessagef(err, "get escalation record %s", k)
	}
	if len(fields) == 0 {
		_, err = c.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			pipe.HSetNX(ctx, k, fieldCount, 0)
			if c.ttl > 0 {
				pipe.Expire(ctx, k, c.ttl)
			}
			return nil
		})
		if err != nil {
			return moderation.Record{}, errors.WithMessagef(err, "create escalation record %s", k)
		}
		return moderation.Record{}, nil
	}
	return parseRecord(fields)
}

func (c *redisClient) Increment(ctx context.Context, key moderation.Key, at time.Time) (int, error) {
	k := recordKey(key)
	var incr *goredis.IntCmd
	_, err := c.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		incr = pipe.HIncrBy(ctx, k, fieldCount, 1)
		pipe.HSet(ctx, k, fieldLast, at.UnixNano())
		if c.ttl > 0 {
			pipe.Expire(ctx, k, c.ttl)
		}
		return nil
	})
	if err != nil {
		return 0, errors.WithMessagef(err, "increment escalation record %s", k)
	}
	return int(incr.Val()), nil
}

func (c *redisClient) Reset(ctx context.Context, key moderation.Key) error {
	k := recordKey(key)
	return errors.WithMessagef(c.client.Del(ctx, k).Err(), "reset escalation record %s", k)
}

func (c *redisClient) Start(context.Context) error { return nil }

func (c *redisClient) Stop(context.Context) error { return c.Close() }

func (c *redisClient) Close() error {
	if err := c.client.Close(); err != nil && !errors.Is(err, goredis.ErrClosed) {
		return err
	}
	return nil
}

func parseRecord(fields map[string]string) (moderation.Record, error) {
	var rec moderation.Record
	if raw, ok := fields[fieldCount]; ok {
		count, err := strconv.Atoi(raw)
		if err != nil {
			return rec, errors.WithMessagef(err, "bad %s field", fieldCount)
		}
		rec.WarnCount = count
	}
	if raw, ok := fields[fieldLast]; ok {
		nanos, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			log.WithField("object", "RedisClient").WithError(err).Warn("bad last violation field, ignoring")
			return rec, nil
		}
		if nanos > 0 {
			rec.LastViolationAt = time.Unix(0, nanos)
		}
	}
	return rec, nil
}
