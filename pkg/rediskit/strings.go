package rediskit

import (
	"context"
	"time"

	"github.com/leafsii/rediskit/pkg/kv"
	"github.com/leafsii/rediskit/pkg/partition"
)

// writeArgs pins db and looks up its lifetime, then encodes value.
func (c *Client) writeArgs(db partition.DB, value any) (int, time.Duration, string, error) {
	index := db.Resolve(c.defaultIndex())
	ttl, err := c.lifetimes.Get(partition.MustNew(index), index)
	if err != nil {
		return index, 0, "", err
	}
	if ttl < 0 {
		// -1ns would reach the store as KEEPTTL
		ttl = 0
	}
	text, err := c.codec.Encode(value)
	if err != nil {
		return index, 0, "", serializationErr(err)
	}
	return index, ttl, text, nil
}

func (c *Client) stringSet(key string, value any, db partition.DB) op[bool] {
	index, ttl, text, err := c.writeArgs(db, value)
	if err != nil {
		return failed[bool](c, "string_set", index, err)
	}
	return prepare(c, "string_set", partition.MustNew(index), func(ctx context.Context, h kv.Handle) (bool, error) {
		return h.StringSet(ctx, key, text, ttl)
	})
}

// StringSet encodes value and writes it under key with db's lifetime.
func (c *Client) StringSet(ctx context.Context, key string, value any, db partition.DB) (bool, error) {
	return c.stringSet(key, value, db).run(ctx)
}

func stringGet[T any](c *Client, key string, db partition.DB) op[T] {
	return prepare(c, "string_get", db, func(ctx context.Context, h kv.Handle) (T, error) {
		text, err := h.StringGet(ctx, key)
		if err != nil {
			var zero T
			return absent(zero, err)
		}
		return decode[T](c.codec, text)
	})
}

// StringGet reads and decodes key. An absent key yields the zero T.
func StringGet[T any](ctx context.Context, c *Client, key string, db partition.DB) (T, error) {
	return stringGet[T](c, key, db).run(ctx)
}

func stringSetAndGet[T any](c *Client, key string, value any, db partition.DB) op[T] {
	index, ttl, text, err := c.writeArgs(db, value)
	if err != nil {
		return failed[T](c, "string_set_and_get", index, err)
	}
	return prepare(c, "string_set_and_get", partition.MustNew(index), func(ctx context.Context, h kv.Handle) (T, error) {
		old, err := h.StringSetAndGet(ctx, key, text, ttl)
		if err != nil {
			var zero T
			return absent(zero, err)
		}
		return decode[T](c.codec, old)
	})
}

// StringSetAndGet atomically replaces key and returns its previous value,
// or the zero T when there was none.
func StringSetAndGet[T any](ctx context.Context, c *Client, key string, value any, db partition.DB) (T, error) {
	return stringSetAndGet[T](c, key, value, db).run(ctx)
}
