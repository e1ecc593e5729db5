package rediskit

import (
	"errors"

	"github.com/leafsii/rediskit/pkg/codec"
	"github.com/leafsii/rediskit/pkg/kv"
	"github.com/leafsii/rediskit/pkg/lifetime"
)

var (
	// ErrConfigurationMissing aborts construction when a partition lifetime is
	// missing or malformed.
	ErrConfigurationMissing = lifetime.ErrConfigurationMissing

	// ErrUnknownPartition is returned when the lifetime table has no entry for
	// the partition being written.
	ErrUnknownPartition = lifetime.ErrUnknownPartition

	// ErrSerialization wraps encode and conversion failures.
	ErrSerialization = codec.ErrSerialization

	// ErrStoreUnavailable is returned when the store cannot be reached.
	ErrStoreUnavailable = kv.ErrBackendUnavailable

	// ErrConnectionUnavailable is returned when no live connection is bound:
	// the client was closed or the last reconfiguration failed.
	ErrConnectionUnavailable = errors.New("no live store connection")

	// ErrDefaultNotExplicit is returned when the default database is set to
	// the Default sentinel itself.
	ErrDefaultNotExplicit = errors.New("default database must be an explicit partition")
)
