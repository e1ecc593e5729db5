package kv

import (
	"context"
	"errors"
	"time"

	"github.com/leafsii/rediskit/pkg/partition"
)

// ErrNotFound is returned when a key or field is not found
var ErrNotFound = errors.New("not found")

// ErrNoExpiry is returned by expiry lookups on keys that never expire
var ErrNoExpiry = errors.New("key has no expiry")

// ErrBackendUnavailable is returned when the backend storage is unavailable
var ErrBackendUnavailable = errors.New("backend unavailable")

// ErrInvalidPartition is returned for partition indexes outside [0, 16)
var ErrInvalidPartition = errors.New("invalid partition")

// ErrAdminDisabled is returned by admin commands when the connection was
// not configured to allow them
var ErrAdminDisabled = errors.New("admin commands are disabled")

// ErrWrongType mirrors Redis' WRONGTYPE reply for backends that have to produce it themselves
var ErrWrongType = errors.New("WRONGTYPE Operation against a key holding the wrong kind of value")

// Connection is a live link to a store exposing numbered logical partitions.
type Connection interface {
	// Partition returns a handle bound to logical database index.
	Partition(index int) (Handle, error)

	// Ping checks that the store is reachable
	Ping(ctx context.Context) error

	// Close releases the connection and every handle obtained from it
	Close() error
}

// Handle issues commands against one logical partition.
//
// A ttl of zero means no expiration. Absent keys are reported with
// ErrNotFound by the single-value reads; collection reads return empty results.
type Handle interface {
	// Index is the partition this handle is bound to
	Index() int

	// String operations
	StringSet(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
	StringGet(ctx context.Context, key string) (string, error)
	StringSetAndGet(ctx context.Context, key, value string, ttl time.Duration) (string, error)

	// Key operations
	KeyDelete(ctx context.Context, key string) (bool, error)
	KeyExists(ctx context.Context, key string) (bool, error)
	KeyExpire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	KeyExpireTime(ctx context.Context, key string) (time.Time, error)
	KeyTimeToLive(ctx context.Context, key string) (time.Duration, error)
	KeyCopy(ctx context.Context, srcKey, destKey string, destIndex int, replace bool) (bool, error)
	KeyMove(ctx context.Context, key string, destIndex int) (bool, error)

	// Hash operations
	HashSet(ctx context.Context, key string, fields map[string]string) error
	HashGet(ctx context.Context, key, field string) (string, error)
	HashGetAll(ctx context.Context, key string) (map[string]string, error)
	HashLength(ctx context.Context, key string) (int64, error)

	// Set operations
	SetAdd(ctx context.Context, key, member string) (bool, error)
	SetMembers(ctx context.Context, key string) ([]string, error)
	SetLength(ctx context.Context, key string) (int64, error)
	SetMove(ctx context.Context, srcKey, destKey, member string) (bool, error)
	SetPop(ctx context.Context, key string) (string, error)

	// Admin
	Flush(ctx context.Context) error
}

// ValidPartition reports whether index names one of the logical databases.
func ValidPartition(index int) bool {
	return index >= 0 && index < partition.Count
}
