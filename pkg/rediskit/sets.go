package rediskit

import (
	"context"

	"github.com/leafsii/rediskit/pkg/kv"
	"github.com/leafsii/rediskit/pkg/partition"
)

// Set members are encoded with the codec on the way in and returned as
// stored text on the way out.

func (c *Client) setAdd(key string, value any, db partition.DB) op[bool] {
	member, err := c.codec.Encode(value)
	if err != nil {
		return failed[bool](c, "set_add", db.Resolve(c.defaultIndex()), serializationErr(err))
	}
	return prepare(c, "set_add", db, func(ctx context.Context, h kv.Handle) (bool, error) {
		return h.SetAdd(ctx, key, member)
	})
}

// SetAdd adds the encoded value to the set at key and reports whether it was new.
func (c *Client) SetAdd(ctx context.Context, key string, value any, db partition.DB) (bool, error) {
	return c.setAdd(key, value, db).run(ctx)
}

func (c *Client) setMembers(key string, db partition.DB) op[[]string] {
	return prepare(c, "set_members", db, func(ctx context.Context, h kv.Handle) ([]string, error) {
		return h.SetMembers(ctx, key)
	})
}

// SetMembers returns the stored members of key, empty when absent.
func (c *Client) SetMembers(ctx context.Context, key string, db partition.DB) ([]string, error) {
	return c.setMembers(key, db).run(ctx)
}

func (c *Client) setLength(key string, db partition.DB) op[int64] {
	return prepare(c, "set_length", db, func(ctx context.Context, h kv.Handle) (int64, error) {
		return h.SetLength(ctx, key)
	})
}

// SetLength returns the number of members of key, 0 when absent.
func (c *Client) SetLength(ctx context.Context, key string, db partition.DB) (int64, error) {
	return c.setLength(key, db).run(ctx)
}

func (c *Client) setMove(srcKey, destKey string, value any, db partition.DB) op[bool] {
	member, err := c.codec.Encode(value)
	if err != nil {
		return failed[bool](c, "set_move", db.Resolve(c.defaultIndex()), serializationErr(err))
	}
	return prepare(c, "set_move", db, func(ctx context.Context, h kv.Handle) (bool, error) {
		return h.SetMove(ctx, srcKey, destKey, member)
	})
}

// SetMove moves the encoded value from srcKey to destKey within db.
func (c *Client) SetMove(ctx context.Context, srcKey, destKey string, value any, db partition.DB) (bool, error) {
	return c.setMove(srcKey, destKey, value, db).run(ctx)
}

func (c *Client) setPop(key string, db partition.DB) op[*string] {
	return prepare(c, "set_pop", db, func(ctx context.Context, h kv.Handle) (*string, error) {
		return optional(h.SetPop(ctx, key))
	})
}

// SetPop removes and returns a random member, or nil when the set is empty.
func (c *Client) SetPop(ctx context.Context, key string, db partition.DB) (*string, error) {
	return c.setPop(key, db).run(ctx)
}
