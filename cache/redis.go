package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

const (
	groupPrefix      = "group:"
	generationPrefix = "gen:"
)

// Redis is a Cache shared by every API instance. Group membership is kept in a
// Redis set per group.
type Redis struct {
	client *redis.Client
}

// NewRedis connects to the server at url (redis://[:password@]host:port/db).
func NewRedis(ctx context.Context, url string) (*Redis, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse REDIS_URL: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &Redis{client: client}, nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}

func (r *Redis) Get(ctx context.Context, key string, dst interface{}) (bool, error) {
	data, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return false, fmt.Errorf("decode cached %s: %w", key, err)
	}
	return true, nil
}

func (r *Redis) Set(ctx context.Context, key string, value interface{}, ttl time.Duration, groups ...string) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	_, err = r.client.TxPipelined(ctx, setPipeline(ctx, key, data, ttl, groups))
	return err
}

func setPipeline(ctx context.Context, key string, data []byte, ttl time.Duration, groups []string) func(redis.Pipeliner) error {
	return func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, key, data, ttl)
		for _, g := range groups {
			pipe.SAdd(ctx, groupPrefix+g, key)
			if ttl > 0 {
				pipe.Expire(ctx, groupPrefix+g, ttl)
			}
		}
		return nil
	}
}

// SetIfGeneration watches the group's generation counter, so an
// InvalidateGroup racing the write aborts it.
func (r *Redis) SetIfGeneration(ctx context.Context, key string, value interface{}, ttl time.Duration, group string, gen int64) (bool, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return false, fmt.Errorf("encode %s: %w", key, err)
	}
	stored := false
	err = r.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := generation(ctx, tx.Get, group)
		if err != nil || current != gen {
			return err
		}
		if _, err := tx.TxPipelined(ctx, setPipeline(ctx, key, data, ttl, []string{group})); err != nil {
			return err
		}
		stored = true
		return nil
	}, generationPrefix+group)
	if errors.Is(err, redis.TxFailedErr) {
		return false, nil
	}
	return stored, err
}

func (r *Redis) Generation(ctx context.Context, group string) (int64, error) {
	return generation(ctx, r.client.Get, group)
}

func generation(ctx context.Context, get func(context.Context, string) *redis.StringCmd, group string) (int64, error) {
	n, err := get(ctx, generationPrefix+group).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return n, err
}

func (r *Redis) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, key).Err()
}

func (r *Redis) InvalidateGroup(ctx context.Context, group string) error {
	if err := r.client.Incr(ctx, generationPrefix+group).Err(); err != nil {
		return err
	}
	keys, err := r.client.SMembers(ctx, groupPrefix+group).Result()
	if err != nil {
		return err
	}
	return r.client.Del(ctx, append(keys, groupPrefix+group)...).Err()
}
