package redis

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
	"github.com/redis/go-redis/v9"

	"github.com/leafsii/rediskit/pkg/kv"
)

// Connection is a Redis-backed implementation of kv.Connection. Redis binds
// the logical database per client, so one client is kept per partition.
type Connection struct {
	base       redis.Options
	clients    *xsync.MapOf[int, *redis.Client]
	allowAdmin bool
	closed     atomic.Bool
}

// IsConnectionError checks if an error is a connection-related error
func IsConnectionError(err error) bool {
	if err == nil {
		return false
	}

	// Don't treat redis.Nil as a connection error (it means "key not found")
	if errors.Is(err, redis.Nil) {
		return false
	}

	// Context cancellation by caller is not the store's fault
	if errors.Is(err, context.Canceled) {
		return false
	}

	if errors.Is(err, redis.ErrClosed) {
		return true
	}

	// Check for various network/connection errors
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	// Check for syscall connection errors
	var sysErr syscall.Errno
	if errors.As(err, &sysErr) {
		switch sysErr {
		case syscall.ECONNREFUSED, syscall.ECONNRESET, syscall.ECONNABORTED, syscall.ETIMEDOUT:
			return true
		}
	}

	// Check error message for common connection issues
	errStr := err.Error()
	connectionErrors := []string{
		"connection refused",
		"connection reset",
		"broken pipe",
		"no such host",
		"network is unreachable",
		"timeout",
		"connection closed",
		"EOF",
	}

	for _, connErr := range connectionErrors {
		if strings.Contains(errStr, connErr) {
			return true
		}
	}

	return false
}

// wrapError maps driver errors onto the kv error set. Once the caller's ctx
// is done the error is returned unchanged.
func wrapError(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, redis.Nil) {
		return kv.ErrNotFound
	}
	if ctx.Err() != nil {
		return err
	}
	if IsConnectionError(err) {
		return fmt.Errorf("%w: %w", kv.ErrBackendUnavailable, err)
	}
	if strings.HasPrefix(err.Error(), "WRONGTYPE") {
		return fmt.Errorf("%w: %w", kv.ErrWrongType, err)
	}
	return err
}

// ParseEndpoint builds client options from a redis:// URL or a host:port pair.
// Any database number in the URL is dropped.
func ParseEndpoint(endpoint, password string) (*redis.Options, error) {
	if endpoint == "" {
		return nil, errors.New("redis endpoint is required")
	}

	var opt *redis.Options
	if strings.Contains(endpoint, "://") {
		parsed, err := redis.ParseURL(endpoint)
		if err != nil {
			return nil, fmt.Errorf("parse endpoint: %w", err)
		}
		opt = parsed
	} else {
		if _, _, err := net.SplitHostPort(endpoint); err != nil {
			return nil, fmt.Errorf("parse endpoint: %w", err)
		}
		opt = &redis.Options{Addr: endpoint}
	}

	if password != "" {
		opt.Password = password
	}
	opt.DB = 0
	return opt, nil
}

// New opens a Connection and pings partition 0
func New(ctx context.Context, cfg kv.Config) (*Connection, error) {
	opt, err := ParseEndpoint(cfg.Endpoint, cfg.Password)
	if err != nil {
		return nil, err
	}
	opt.DialTimeout = cfg.ConnectTimeout
	if opt.DialTimeout <= 0 {
		opt.DialTimeout = 5 * time.Second
	}

	c := &Connection{
		base:       *opt,
		clients:    xsync.NewMapOf[int, *redis.Client](),
		allowAdmin: cfg.AllowAdmin,
	}

	// Test connection
	pingCtx, cancel := context.WithTimeout(ctx, opt.DialTimeout)
	defer cancel()

	if err := c.client(0).Ping(pingCtx).Err(); err != nil {
		if cfg.AbortOnConnectFail {
			c.Close()
			return nil, wrapError(ctx, err)
		}
		if cfg.Logger != nil {
			cfg.Logger("Redis unreachable, connecting lazily", "endpoint", opt.Addr, "error", err)
		}
	}

	return c, nil
}

// client returns the client bound to database index, creating it on first use
func (c *Connection) client(index int) *redis.Client {
	client, _ := c.clients.LoadOrCompute(index, func() *redis.Client {
		opt := c.base
		opt.DB = index
		return redis.NewClient(&opt)
	})
	return client
}

// Partition returns the handle for database index
func (c *Connection) Partition(index int) (kv.Handle, error) {
	if !kv.ValidPartition(index) {
		return nil, kv.ErrInvalidPartition
	}
	if c.closed.Load() {
		return nil, kv.ErrBackendUnavailable
	}
	return &Handle{client: c.client(index), index: index, allowAdmin: c.allowAdmin}, nil
}

// Ping checks if Redis is reachable
func (c *Connection) Ping(ctx context.Context) error {
	if c.closed.Load() {
		return kv.ErrBackendUnavailable
	}
	return wrapError(ctx, c.client(0).Ping(ctx).Err())
}

// Close closes every partition client
func (c *Connection) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	var errs []error
	c.clients.Range(func(index int, client *redis.Client) bool {
		if err := client.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close db%d: %w", index, err))
		}
		return true
	})
	return errors.Join(errs...)
}

// Handle is a kv.Handle bound to one Redis database
type Handle struct {
	client     *redis.Client
	index      int
	allowAdmin bool
}

func (h *Handle) Index() int {
	return h.index
}

// String operations

func (h *Handle) StringSet(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	if err := h.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return false, wrapError(ctx, err)
	}
	return true, nil
}

func (h *Handle) StringGet(ctx context.Context, key string) (string, error) {
	result, err := h.client.Get(ctx, key).Result()
	if err != nil {
		return "", wrapError(ctx, err)
	}
	return result, nil
}

func (h *Handle) StringSetAndGet(ctx context.Context, key, value string, ttl time.Duration) (string, error) {
	result, err := h.client.SetArgs(ctx, key, value, redis.SetArgs{Get: true, TTL: ttl}).Result()
	if err != nil {
		return "", wrapError(ctx, err)
	}
	return result, nil
}

// Key operations

func (h *Handle) KeyDelete(ctx context.Context, key string) (bool, error) {
	n, err := h.client.Del(ctx, key).Result()
	if err != nil {
		return false, wrapError(ctx, err)
	}
	return n > 0, nil
}

func (h *Handle) KeyExists(ctx context.Context, key string) (bool, error) {
	n, err := h.client.Exists(ctx, key).Result()
	if err != nil {
		return false, wrapError(ctx, err)
	}
	return n > 0, nil
}

// KeyExpire uses PEXPIRE so sub-second lifetimes are not rounded up
func (h *Handle) KeyExpire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := h.client.PExpire(ctx, key, ttl).Result()
	if err != nil {
		return false, wrapError(ctx, err)
	}
	return ok, nil
}

func (h *Handle) KeyExpireTime(ctx context.Context, key string) (time.Time, error) {
	d, err := h.client.PExpireTime(ctx, key).Result()
	if err != nil {
		return time.Time{}, wrapError(ctx, err)
	}
	if err := expiryState(d, time.Millisecond); err != nil {
		return time.Time{}, err
	}
	return time.UnixMilli(d.Milliseconds()), nil
}

func (h *Handle) KeyTimeToLive(ctx context.Context, key string) (time.Duration, error) {
	d, err := h.client.PTTL(ctx, key).Result()
	if err != nil {
		return 0, wrapError(ctx, err)
	}
	if err := expiryState(d, time.Millisecond); err != nil {
		return 0, err
	}
	return d, nil
}

// expiryState decodes the -2 (missing) and -1 (persistent) replies. Depending
// on the driver version they arrive raw or scaled by the reply precision.
func expiryState(d, precision time.Duration) error {
	switch d {
	case -2, -2 * precision:
		return kv.ErrNotFound
	case -1, -1 * precision:
		return kv.ErrNoExpiry
	}
	return nil
}

func (h *Handle) KeyCopy(ctx context.Context, srcKey, destKey string, destIndex int, replace bool) (bool, error) {
	if !kv.ValidPartition(destIndex) {
		return false, kv.ErrInvalidPartition
	}
	n, err := h.client.Copy(ctx, srcKey, destKey, destIndex, replace).Result()
	if err != nil {
		return false, wrapError(ctx, err)
	}
	return n == 1, nil
}

func (h *Handle) KeyMove(ctx context.Context, key string, destIndex int) (bool, error) {
	if !kv.ValidPartition(destIndex) {
		return false, kv.ErrInvalidPartition
	}
	ok, err := h.client.Move(ctx, key, destIndex).Result()
	if err != nil {
		return false, wrapError(ctx, err)
	}
	return ok, nil
}

// Hash operations

func (h *Handle) HashSet(ctx context.Context, key string, fields map[string]string) error {
	values := make([]interface{}, 0, len(fields)*2)
	for field, value := range fields {
		values = append(values, field, value)
	}
	return wrapError(ctx, h.client.HSet(ctx, key, values...).Err())
}

func (h *Handle) HashGet(ctx context.Context, key, field string) (string, error) {
	result, err := h.client.HGet(ctx, key, field).Result()
	if err != nil {
		return "", wrapError(ctx, err)
	}
	return result, nil
}

func (h *Handle) HashGetAll(ctx context.Context, key string) (map[string]string, error) {
	result, err := h.client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, wrapError(ctx, err)
	}
	return result, nil
}

func (h *Handle) HashLength(ctx context.Context, key string) (int64, error) {
	n, err := h.client.HLen(ctx, key).Result()
	if err != nil {
		return 0, wrapError(ctx, err)
	}
	return n, nil
}

// Set operations

func (h *Handle) SetAdd(ctx context.Context, key, member string) (bool, error) {
	n, err := h.client.SAdd(ctx, key, member).Result()
	if err != nil {
		return false, wrapError(ctx, err)
	}
	return n > 0, nil
}

func (h *Handle) SetMembers(ctx context.Context, key string) ([]string, error) {
	result, err := h.client.SMembers(ctx, key).Result()
	if err != nil {
		return nil, wrapError(ctx, err)
	}
	return result, nil
}

func (h *Handle) SetLength(ctx context.Context, key string) (int64, error) {
	n, err := h.client.SCard(ctx, key).Result()
	if err != nil {
		return 0, wrapError(ctx, err)
	}
	return n, nil
}

func (h *Handle) SetMove(ctx context.Context, srcKey, destKey, member string) (bool, error) {
	ok, err := h.client.SMove(ctx, srcKey, destKey, member).Result()
	if err != nil {
		return false, wrapError(ctx, err)
	}
	return ok, nil
}

func (h *Handle) SetPop(ctx context.Context, key string) (string, error) {
	result, err := h.client.SPop(ctx, key).Result()
	if err != nil {
		return "", wrapError(ctx, err)
	}
	return result, nil
}

// Flush empties this database; it needs AllowAdmin
func (h *Handle) Flush(ctx context.Context) error {
	if !h.allowAdmin {
		return kv.ErrAdminDisabled
	}
	return wrapError(ctx, h.client.FlushDB(ctx).Err())
}
