package rediskit

import (
	"context"
	"time"

	"github.com/leafsii/rediskit/pkg/async"
	"github.com/leafsii/rediskit/pkg/partition"
)

// AsyncClient mirrors Client with every store round-trip started in its own
// goroutine. Partition selection, lifetime lookup and encoding happen before
// the method returns; failures there come back as an already failed Future.
// ctx is passed to the store call, so cancelling it cancels the call.
type AsyncClient struct {
	c *Client
}

// Client returns the synchronous form.
func (a AsyncClient) Client() *Client {
	return a.c
}

// StringSet is the asynchronous form of Client.StringSet.
func (a AsyncClient) StringSet(ctx context.Context, key string, value any, db partition.DB) *async.Future[bool] {
	return a.c.stringSet(key, value, db).start(ctx)
}

// KeyDelete is the asynchronous form of Client.KeyDelete.
func (a AsyncClient) KeyDelete(ctx context.Context, key string, db partition.DB) *async.Future[bool] {
	return a.c.keyDelete(key, db).start(ctx)
}

// KeyExists is the asynchronous form of Client.KeyExists.
func (a AsyncClient) KeyExists(ctx context.Context, key string, db partition.DB) *async.Future[bool] {
	return a.c.keyExists(key, db).start(ctx)
}

// KeyExpire is the asynchronous form of Client.KeyExpire.
func (a AsyncClient) KeyExpire(ctx context.Context, key string, ttl time.Duration, db partition.DB) *async.Future[bool] {
	return a.c.keyExpire(key, ttl, db).start(ctx)
}

// KeyExpireTime is the asynchronous form of Client.KeyExpireTime.
func (a AsyncClient) KeyExpireTime(ctx context.Context, key string, db partition.DB) *async.Future[*time.Time] {
	return a.c.keyExpireTime(key, db).start(ctx)
}

// KeyTimeToLive is the asynchronous form of Client.KeyTimeToLive.
func (a AsyncClient) KeyTimeToLive(ctx context.Context, key string, db partition.DB) *async.Future[*time.Duration] {
	return a.c.keyTimeToLive(key, db).start(ctx)
}

// KeyCopy is the asynchronous form of Client.KeyCopy.
func (a AsyncClient) KeyCopy(ctx context.Context, srcKey, destKey string, srcDB, destDB partition.DB) *async.Future[bool] {
	return a.c.keyCopy(srcKey, destKey, srcDB, destDB).start(ctx)
}

// KeyMove is the asynchronous form of Client.KeyMove.
func (a AsyncClient) KeyMove(ctx context.Context, srcDB, destDB partition.DB, key string) *async.Future[bool] {
	return a.c.keyMove(srcDB, destDB, key).start(ctx)
}

// HashSet is the asynchronous form of Client.HashSet.
func (a AsyncClient) HashSet(ctx context.Context, key string, fields map[string]any, db partition.DB) *async.Future[struct{}] {
	return a.c.hashSet(key, fields, db).start(ctx)
}

// HashGetAll is the asynchronous form of Client.HashGetAll.
func (a AsyncClient) HashGetAll(ctx context.Context, key string, db partition.DB) *async.Future[map[string]string] {
	return a.c.hashGetAll(key, db).start(ctx)
}

// HashLength is the asynchronous form of Client.HashLength.
func (a AsyncClient) HashLength(ctx context.Context, key string, db partition.DB) *async.Future[int64] {
	return a.c.hashLength(key, db).start(ctx)
}

// SetAdd is the asynchronous form of Client.SetAdd.
func (a AsyncClient) SetAdd(ctx context.Context, key string, value any, db partition.DB) *async.Future[bool] {
	return a.c.setAdd(key, value, db).start(ctx)
}

// SetMembers is the asynchronous form of Client.SetMembers.
func (a AsyncClient) SetMembers(ctx context.Context, key string, db partition.DB) *async.Future[[]string] {
	return a.c.setMembers(key, db).start(ctx)
}

// SetLength is the asynchronous form of Client.SetLength.
func (a AsyncClient) SetLength(ctx context.Context, key string, db partition.DB) *async.Future[int64] {
	return a.c.setLength(key, db).start(ctx)
}

// SetMove is the asynchronous form of Client.SetMove.
func (a AsyncClient) SetMove(ctx context.Context, srcKey, destKey string, value any, db partition.DB) *async.Future[bool] {
	return a.c.setMove(srcKey, destKey, value, db).start(ctx)
}

// SetPop is the asynchronous form of Client.SetPop.
func (a AsyncClient) SetPop(ctx context.Context, key string, db partition.DB) *async.Future[*string] {
	return a.c.setPop(key, db).start(ctx)
}

// StringGetAsync is the asynchronous form of StringGet.
func StringGetAsync[T any](ctx context.Context, c *Client, key string, db partition.DB) *async.Future[T] {
	return stringGet[T](c, key, db).start(ctx)
}

// StringSetAndGetAsync is the asynchronous form of StringSetAndGet.
func StringSetAndGetAsync[T any](ctx context.Context, c *Client, key string, value any, db partition.DB) *async.Future[T] {
	return stringSetAndGet[T](c, key, value, db).start(ctx)
}

// HashGetAsAsync is the asynchronous form of HashGetAs.
func HashGetAsAsync[T any](ctx context.Context, c *Client, key, field string, db partition.DB) *async.Future[T] {
	return hashGetAs[T](c, key, field, db).start(ctx)
}

// HashGetAllAsAsync is the asynchronous form of HashGetAllAs.
func HashGetAllAsAsync[T any](ctx context.Context, c *Client, key string, db partition.DB) *async.Future[T] {
	return hashGetAllAs[T](c, key, db).start(ctx)
}
