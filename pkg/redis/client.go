package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Client wraps go-redis with per-operation logging and the key namespace
// builder. It is the only path any component uses to reach the counter store.
type Client struct {
	rdb        *redis.Client
	KeyBuilder *KeyBuilder
	log        *zap.Logger
}

// NewClient creates a new counter store client
func NewClient(redisURL string, environment string, log *zap.Logger) (*Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	opts.PoolSize = 50
	opts.MinIdleConns = 5
	opts.MaxRetries = 3
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second

	rdb := redis.NewClient(opts)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Client{rdb: rdb, KeyBuilder: NewKeyBuilder(environment), log: log}, nil
}

// Close closes the Redis connection
func (c *Client) Close() error {
	if c.rdb != nil {
		return c.rdb.Close()
	}
	return nil
}

// Get retrieves a value from the store
func (c *Client) Get(ctx context.Context, key string) (string, error) {
	start := time.Now()
	val, err := c.rdb.Get(ctx, key).Result()
	dur := time.Since(start)
	if err != nil && err != redis.Nil {
		c.log.Info("redis_get",
			zap.String("key_prefix", prefixForLog(key)),
			zap.Duration("duration", dur),
			zap.Error(err))
	} else {
		c.log.Debug("redis_get",
			zap.String("key_prefix", prefixForLog(key)),
			zap.Duration("duration", dur))
	}
	return val, err
}

// IsNil reports whether err is the store's key-absent sentinel
func IsNil(err error) bool {
	return err == redis.Nil
}

// Set stores a value with TTL (0 means no expiration)
func (c *Client) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	start := time.Now()
	err := c.rdb.Set(ctx, key, value, ttl).Err()
	c.logOp("redis_set", key, time.Since(start), err)
	return err
}

// SetNX sets a value only if the key does not exist
func (c *Client) SetNX(ctx context.Context, key string, value interface{}, ttl time.Duration) (bool, error) {
	start := time.Now()
	ok, err := c.rdb.SetNX(ctx, key, value, ttl).Result()
	dur := time.Since(start)
	if err != nil {
		c.log.Info("redis_setnx",
			zap.String("key_prefix", prefixForLog(key)),
			zap.Duration("duration", dur),
			zap.Error(err))
	} else {
		c.log.Debug("redis_setnx",
			zap.String("key_prefix", prefixForLog(key)),
			zap.Bool("result", ok),
			zap.Duration("duration", dur))
	}
	return ok, err
}

// Incr atomically increments a counter by one
func (c *Client) Incr(ctx context.Context, key string) (int64, error) {
	start := time.Now()
	v, err := c.rdb.Incr(ctx, key).Result()
	c.logOp("redis_incr", key, time.Since(start), err)
	return v, err
}

// IncrBy atomically increments a counter by delta
func (c *Client) IncrBy(ctx context.Context, key string, delta int64) (int64, error) {
	start := time.Now()
	v, err := c.rdb.IncrBy(ctx, key, delta).Result()
	c.logOp("redis_incrby", key, time.Since(start), err)
	return v, err
}

// HIncrBy atomically increments a hash field by delta
func (c *Client) HIncrBy(ctx context.Context, key, field string, delta int64) (int64, error) {
	start := time.Now()
	v, err := c.rdb.HIncrBy(ctx, key, field, delta).Result()
	c.logOp("redis_hincrby", key, time.Since(start), err)
	return v, err
}

// HGetAll gets all fields from a hash
func (c *Client) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	start := time.Now()
	m, err := c.rdb.HGetAll(ctx, key).Result()
	c.logOp("redis_hgetall", key, time.Since(start), err)
	return m, err
}

// SAdd adds members to a set, returning how many were newly added
func (c *Client) SAdd(ctx context.Context, key string, members ...interface{}) (int64, error) {
	start := time.Now()
	n, err := c.rdb.SAdd(ctx, key, members...).Result()
	c.logOp("redis_sadd", key, time.Since(start), err)
	return n, err
}

// SCard returns the cardinality of a set
func (c *Client) SCard(ctx context.Context, key string) (int64, error) {
	start := time.Now()
	n, err := c.rdb.SCard(ctx, key).Result()
	c.logOp("redis_scard", key, time.Since(start), err)
	return n, err
}

// SIsMember checks set membership
func (c *Client) SIsMember(ctx context.Context, key string, member interface{}) (bool, error) {
	start := time.Now()
	ok, err := c.rdb.SIsMember(ctx, key, member).Result()
	c.logOp("redis_sismember", key, time.Since(start), err)
	return ok, err
}

// LPush prepends values to a list
func (c *Client) LPush(ctx context.Context, key string, values ...interface{}) error {
	start := time.Now()
	err := c.rdb.LPush(ctx, key, values...).Err()
	c.logOp("redis_lpush", key, time.Since(start), err)
	return err
}

// LTrim trims a list to the given range
func (c *Client) LTrim(ctx context.Context, key string, stop int64) error {
	start := time.Now()
	err := c.rdb.LTrim(ctx, key, 0, stop).Err()
	c.logOp("redis_ltrim", key, time.Since(start), err)
	return err
}

// Expire sets a TTL on a key
func (c *Client) Expire(ctx context.Context, key string, ttl time.Duration) error {
	start := time.Now()
	err := c.rdb.Expire(ctx, key, ttl).Err()
	c.logOp("redis_expire", key, time.Since(start), err)
	return err
}

// ExpireAt sets an absolute expiration time on a key
func (c *Client) ExpireAt(ctx context.Context, key string, at time.Time) error {
	start := time.Now()
	err := c.rdb.ExpireAt(ctx, key, at).Err()
	c.logOp("redis_expireat", key, time.Since(start), err)
	return err
}

// Exists checks how many of the given keys exist
func (c *Client) Exists(ctx context.Context, keys ...string) (int64, error) {
	start := time.Now()
	n, err := c.rdb.Exists(ctx, keys...).Result()
	dur := time.Since(start)
	if err != nil {
		c.log.Info("redis_exists",
			zap.Int("keys", len(keys)),
			zap.Duration("duration", dur),
			zap.Error(err))
	} else {
		c.log.Debug("redis_exists",
			zap.Int64("result", n),
			zap.Int("keys", len(keys)),
			zap.Duration("duration", dur))
	}
	return n, err
}

// Delete removes keys from the store
func (c *Client) Delete(ctx context.Context, keys ...string) error {
	start := time.Now()
	err := c.rdb.Del(ctx, keys...).Err()
	c.log.Debug("redis_del",
		zap.Int("keys", len(keys)),
		zap.Duration("duration", time.Since(start)),
		zap.Error(err))
	return err
}

// Pipeline creates a new pipeline for batch operations
func (c *Client) Pipeline() redis.Pipeliner {
	return c.rdb.Pipeline()
}

// Health checks the Redis connection
func (c *Client) Health(ctx context.Context) error {
	start := time.Now()
	err := c.rdb.Ping(ctx).Err()
	dur := time.Since(start)
	if err != nil {
		c.log.Info("redis_ping",
			zap.Duration("duration", dur),
			zap.Error(err))
	} else {
		c.log.Debug("redis_ping", zap.Duration("duration", dur))
	}
	return err
}

// logOp logs a single-key operation at debug on success, info on failure
func (c *Client) logOp(op, key string, dur time.Duration, err error) {
	if err != nil && err != redis.Nil {
		c.log.Info(op,
			zap.String("key_prefix", prefixForLog(key)),
			zap.Duration("duration", dur),
			zap.Error(err))
		return
	}
	c.log.Debug(op,
		zap.String("key_prefix", prefixForLog(key)),
		zap.Duration("duration", dur))
}

// prefixForLog returns a safe prefix of a key to avoid logging identity hashes
func prefixForLog(key string) string {
	if len(key) <= 24 {
		return key
	}
	return key[:24] + "…"
}
