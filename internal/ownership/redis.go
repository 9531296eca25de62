package ownership

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	goredis "github.com/redis/go-redis/v9"
)

const redisMaxRetries = 16

// RedisDocument stores the ids as a JSON array under one key.
// Updates use WATCH/MULTI, so concurrent processes do not lose writes.
type RedisDocument struct {
	rdb *goredis.Client
	key string
}

// NewRedisDocument pings the server before returning.
func NewRedisDocument(ctx context.Context, rdb *goredis.Client, key string) (*RedisDocument, error) {
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &RedisDocument{rdb: rdb, key: key}, nil
}

func (d *RedisDocument) Load(ctx context.Context) ([]int64, error) {
	return d.get(ctx, d.rdb)
}

func (d *RedisDocument) Update(ctx context.Context, fn func([]int64) ([]int64, bool)) error {
	txf := func(tx *goredis.Tx) error {
		ids, err := d.get(ctx, tx)
		if err != nil {
			return err
		}
		next, changed := fn(ids)
		if !changed {
			return nil
		}
		if next == nil {
			next = []int64{}
		}
		data, err := json.Marshal(next)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			pipe.Set(ctx, d.key, data, 0)
			return nil
		})
		return err
	}
	for i := 0; i < redisMaxRetries; i++ {
		err := d.rdb.Watch(ctx, txf, d.key)
		if errors.Is(err, goredis.TxFailedErr) {
			continue
		}
		return err
	}
	return fmt.Errorf("redis key %s: too much contention", d.key)
}

type getter interface {
	Get(ctx context.Context, key string) *goredis.StringCmd
}

func (d *RedisDocument) get(ctx context.Context, c getter) ([]int64, error) {
	raw, err := c.Get(ctx, d.key).Bytes()
	if errors.Is(err, goredis.Nil) || (err == nil && len(raw) == 0) {
		return []int64{}, nil
	}
	if err != nil {
		return nil, err
	}
	var ids []int64
	if err := json.Unmarshal(raw, &ids); err != nil {
		return nil, fmt.Errorf("decode redis key %s: %w", d.key, err)
	}
	if ids == nil {
		ids = []int64{}
	}
	return ids, nil
}
