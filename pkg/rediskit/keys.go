package rediskit

import (
	"context"
	"time"

	"github.com/leafsii/rediskit/pkg/kv"
	"github.com/leafsii/rediskit/pkg/partition"
)

func (c *Client) keyDelete(key string, db partition.DB) op[bool] {
	return prepare(c, "key_delete", db, func(ctx context.Context, h kv.Handle) (bool, error) {
		return h.KeyDelete(ctx, key)
	})
}

// KeyDelete removes key and reports whether it existed.
func (c *Client) KeyDelete(ctx context.Context, key string, db partition.DB) (bool, error) {
	return c.keyDelete(key, db).run(ctx)
}

func (c *Client) keyExists(key string, db partition.DB) op[bool] {
	return prepare(c, "key_exists", db, func(ctx context.Context, h kv.Handle) (bool, error) {
		return h.KeyExists(ctx, key)
	})
}

// KeyExists reports whether key is present in db.
func (c *Client) KeyExists(ctx context.Context, key string, db partition.DB) (bool, error) {
	return c.keyExists(key, db).run(ctx)
}

func (c *Client) keyExpire(key string, ttl time.Duration, db partition.DB) op[bool] {
	return prepare(c, "key_expire", db, func(ctx context.Context, h kv.Handle) (bool, error) {
		return h.KeyExpire(ctx, key, ttl)
	})
}

// KeyExpire sets an explicit time to live on key; db's lifetime is not consulted.
func (c *Client) KeyExpire(ctx context.Context, key string, ttl time.Duration, db partition.DB) (bool, error) {
	return c.keyExpire(key, ttl, db).run(ctx)
}

func (c *Client) keyExpireTime(key string, db partition.DB) op[*time.Time] {
	return prepare(c, "key_expire_time", db, func(ctx context.Context, h kv.Handle) (*time.Time, error) {
		return optional(h.KeyExpireTime(ctx, key))
	})
}

// KeyExpireTime returns when key expires, or nil if it is absent or persistent.
func (c *Client) KeyExpireTime(ctx context.Context, key string, db partition.DB) (*time.Time, error) {
	return c.keyExpireTime(key, db).run(ctx)
}

func (c *Client) keyTimeToLive(key string, db partition.DB) op[*time.Duration] {
	return prepare(c, "key_ttl", db, func(ctx context.Context, h kv.Handle) (*time.Duration, error) {
		return optional(h.KeyTimeToLive(ctx, key))
	})
}

// KeyTimeToLive returns the remaining lifetime of key, or nil if it is
// absent or persistent.
func (c *Client) KeyTimeToLive(ctx context.Context, key string, db partition.DB) (*time.Duration, error) {
	return c.keyTimeToLive(key, db).run(ctx)
}

func (c *Client) keyCopy(srcKey, destKey string, srcDB, destDB partition.DB) op[bool] {
	destIndex := destDB.Resolve(c.defaultIndex())
	return prepare(c, "key_copy", srcDB, func(ctx context.Context, h kv.Handle) (bool, error) {
		return h.KeyCopy(ctx, srcKey, destKey, destIndex, false)
	})
}

// KeyCopy copies srcKey in srcDB to destKey in destDB. It never replaces:
// an existing destination or a missing source yields false.
func (c *Client) KeyCopy(ctx context.Context, srcKey, destKey string, srcDB, destDB partition.DB) (bool, error) {
	return c.keyCopy(srcKey, destKey, srcDB, destDB).run(ctx)
}

func (c *Client) keyMove(srcDB, destDB partition.DB, key string) op[bool] {
	destIndex := destDB.Resolve(c.defaultIndex())
	return prepare(c, "key_move", srcDB, func(ctx context.Context, h kv.Handle) (bool, error) {
		return h.KeyMove(ctx, key, destIndex)
	})
}

// KeyMove moves key from srcDB to destDB. If destDB already holds key, or
// srcDB lacks it, nothing changes and false is returned.
func (c *Client) KeyMove(ctx context.Context, srcDB, destDB partition.DB, key string) (bool, error) {
	return c.keyMove(srcDB, destDB, key).run(ctx)
}
