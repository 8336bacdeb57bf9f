package kvstore

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/redis/go-redis/v9"

	"stockwatch/pkg/models"
)

// Redis stores documents as plain string values under a key prefix.
type Redis struct {
	client *redis.Client
	prefix string
}

type RedisOptions struct {
	Addr   string
	DB     int
	Prefix string
}

func NewRedis(opts RedisOptions) *Redis {
	return &Redis{
		client: redis.NewClient(&redis.Options{Addr: opts.Addr, DB: opts.DB}),
		prefix: opts.Prefix,
	}
}

func (r *Redis) Get(ctx context.Context, key string, out any) (bool, error) {
	raw, err := r.client.Get(ctx, r.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, &models.PersistenceError{Op: "get", Key: key, Err: err}
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return false, &models.PersistenceError{Op: "decode", Key: key, Err: err}
	}
	return true, nil
}

func (r *Redis) Put(ctx context.Context, key string, value any) error {
	b, err := json.Marshal(value)
	if err != nil {
		return &models.PersistenceError{Op: "encode", Key: key, Err: err}
	}
	// SET swaps the whole value atomically
	if err := r.client.Set(ctx, r.prefix+key, b, 0).Err(); err != nil {
		return &models.PersistenceError{Op: "put", Key: key, Err: err}
	}
	return nil
}

func (r *Redis) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, r.prefix+key).Err(); err != nil {
		return &models.PersistenceError{Op: "delete", Key: key, Err: err}
	}
	return nil
}

func (r *Redis) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return &models.PersistenceError{Op: "ping", Err: err}
	}
	return nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}
