// Package lifetime resolves the default expiration applied to writes in
// each logical database.
//
// The table is loaded once from a configuration Source, one "dd.hh:mm:ss"
// entry per partition, and may then be overridden entry by entry or
// replaced wholesale at runtime. Reset reloads it from the same Source.
package lifetime

import (
	"errors"
	"fmt"
	"maps"
	"sync"
	"sync/atomic"
	"time"

	"github.com/leafsii/rediskit/pkg/partition"
)

var (
	// ErrConfigurationMissing is returned when a partition's lifetime is
	// absent from configuration or cannot be parsed.
	ErrConfigurationMissing = errors.New("lifetime configuration missing")

	// ErrUnknownPartition is returned by Get when the table holds no entry
	// for the resolved partition.
	ErrUnknownPartition = errors.New("no lifetime for partition")
)

// DefaultKeyPrefix namespaces the per-partition configuration keys.
const DefaultKeyPrefix = "redis.lifetime"

// Source reads configuration values. *viper.Viper satisfies it.
type Source interface {
	GetString(key string) string
}

// Table maps a partition index to its lifetime.
type Table map[int]time.Duration

// Clone returns an independent copy of t.
func (t Table) Clone() Table {
	if t == nil {
		return Table{}
	}
	return maps.Clone(t)
}

// Resolver holds the live lifetime table.
type Resolver struct {
	src    Source
	prefix string

	// writes are serialized; reads go straight to the published table
	mu    sync.Mutex
	table atomic.Pointer[Table]
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithKeyPrefix changes the configuration namespace (default "redis.lifetime").
func WithKeyPrefix(prefix string) Option {
	return func(r *Resolver) {
		r.prefix = prefix
	}
}

// New loads all partition lifetimes from src. It fails as a whole if any
// entry is missing or malformed.
func New(src Source, opts ...Option) (*Resolver, error) {
	r := &Resolver{
		src:    src,
		prefix: DefaultKeyPrefix,
	}
	for _, opt := range opts {
		opt(r)
	}

	t, err := Load(src, r.prefix)
	if err != nil {
		return nil, err
	}
	r.table.Store(&t)
	return r, nil
}

// Key returns the configuration key holding the lifetime of partition i.
func Key(prefix string, i int) string {
	return prefix + "." + partition.NameOf(i)
}

// Load reads and parses every partition's lifetime from src.
func Load(src Source, prefix string) (Table, error) {
	if src == nil {
		return nil, fmt.Errorf("%w: no configuration source", ErrConfigurationMissing)
	}

	t := make(Table, partition.Count)
	for i := 0; i < partition.Count; i++ {
		key := Key(prefix, i)
		raw := src.GetString(key)
		if raw == "" {
			return nil, fmt.Errorf("%w: %s not found", ErrConfigurationMissing, key)
		}
		d, err := ParseLifetime(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrConfigurationMissing, key, err)
		}
		t[i] = d
	}
	return t, nil
}

// Get returns the lifetime for db, resolving Default through def.
func (r *Resolver) Get(db partition.DB, def int) (time.Duration, error) {
	index := db.Resolve(def)
	t := r.table.Load()
	if t == nil {
		return 0, fmt.Errorf("%w: %s", ErrUnknownPartition, partition.NameOf(index))
	}
	d, ok := (*t)[index]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownPartition, partition.NameOf(index))
	}
	return d, nil
}

// Set overrides the lifetime of a single partition.
func (r *Resolver) Set(index int, d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	next := r.Table()
	next[index] = d
	r.table.Store(&next)
}

// SetAll replaces the whole table. The replacement is not checked for
// completeness; lookups of missing partitions fail with ErrUnknownPartition.
func (r *Resolver) SetAll(t Table) {
	r.mu.Lock()
	defer r.mu.Unlock()

	next := t.Clone()
	r.table.Store(&next)
}

// Reset discards runtime overrides by reloading from the original source.
// On error the current table is kept.
func (r *Resolver) Reset() error {
	t, err := Load(r.src, r.prefix)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.table.Store(&t)
	return nil
}

// Table returns a copy of the current table.
func (r *Resolver) Table() Table {
	t := r.table.Load()
	if t == nil {
		return Table{}
	}
	return t.Clone()
}
