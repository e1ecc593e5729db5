package memory

import (
	"context"
	"errors"
	"maps"
	"math/rand/v2"
	"slices"
	"sync"
	"time"

	"github.com/leafsii/rediskit/pkg/kv"
	"github.com/leafsii/rediskit/pkg/partition"
)

var errSameObject = errors.New("ERR source and destination objects are the same")

// keyspace is the data of one logical partition
type keyspace struct {
	strings     map[string]string
	hashes      map[string]map[string]string
	sets        map[string]map[string]struct{}
	expirations map[string]time.Time
}

func newKeyspace() *keyspace {
	return &keyspace{
		strings:     make(map[string]string),
		hashes:      make(map[string]map[string]string),
		sets:        make(map[string]map[string]struct{}),
		expirations: make(map[string]time.Time),
	}
}

// Store is an in-memory implementation of kv.Connection with 16 partitions
type Store struct {
	mu         sync.RWMutex
	parts      [partition.Count]*keyspace
	closed     bool
	allowAdmin bool

	janitorInterval time.Duration
	janitorStop     chan struct{}
	janitorDone     chan struct{}
	closeOnce       sync.Once
}

// New creates a new in-memory store with optional janitor for TTL cleanup
func New(janitorInterval time.Duration, allowAdmin bool) *Store {
	s := &Store{
		allowAdmin:      allowAdmin,
		janitorInterval: janitorInterval,
		janitorStop:     make(chan struct{}),
		janitorDone:     make(chan struct{}),
	}
	for i := range s.parts {
		s.parts[i] = newKeyspace()
	}

	if janitorInterval > 0 {
		go s.janitor()
	} else {
		close(s.janitorDone)
	}

	return s
}

// janitor runs background expiration cleanup
func (s *Store) janitor() {
	defer close(s.janitorDone)
	ticker := time.NewTicker(s.janitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.evictExpired()
		case <-s.janitorStop:
			return
		}
	}
}

// evictExpired removes all expired keys in every partition
func (s *Store) evictExpired() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	for _, ks := range s.parts {
		for key, expiry := range ks.expirations {
			if now.After(expiry) {
				ks.purge(key)
			}
		}
	}
}

// Partition returns the handle for partition index
func (s *Store) Partition(index int) (kv.Handle, error) {
	if !kv.ValidPartition(index) {
		return nil, kv.ErrInvalidPartition
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, kv.ErrBackendUnavailable
	}
	return &Handle{store: s, index: index}, nil
}

// Ping reports ErrBackendUnavailable once the store is closed
func (s *Store) Ping(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return kv.ErrBackendUnavailable
	}
	return ctx.Err()
}

// Close stops the janitor; every later call fails with ErrBackendUnavailable
func (s *Store) Close() error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()
		close(s.janitorStop)
		<-s.janitorDone
	})
	return nil
}

// keyspace helpers (caller holds the lock)

func (ks *keyspace) expired(key string, now time.Time) bool {
	if expiry, ok := ks.expirations[key]; ok {
		return now.After(expiry)
	}
	return false
}

// kind returns "string", "hash", "set" or "" for absent and expired keys
func (ks *keyspace) kind(key string, now time.Time) string {
	if ks.expired(key, now) {
		return ""
	}
	if _, ok := ks.strings[key]; ok {
		return "string"
	}
	if _, ok := ks.hashes[key]; ok {
		return "hash"
	}
	if _, ok := ks.sets[key]; ok {
		return "set"
	}
	return ""
}

// purge removes a key from all data structures
func (ks *keyspace) purge(key string) {
	delete(ks.strings, key)
	delete(ks.hashes, key)
	delete(ks.sets, key)
	delete(ks.expirations, key)
}

// dropExpired purges key if its deadline has passed
func (ks *keyspace) dropExpired(key string, now time.Time) {
	if ks.expired(key, now) {
		ks.purge(key)
	}
}

// setExpiration sets TTL for a key
func (ks *keyspace) setExpiration(key string, ttl time.Duration, now time.Time) {
	if ttl > 0 {
		ks.expirations[key] = now.Add(ttl)
	} else {
		delete(ks.expirations, key)
	}
}

// copyKey clones key's value and deadline from src into dst under destKey
func copyKey(src *keyspace, key string, dst *keyspace, destKey string) {
	dst.purge(destKey)
	if v, ok := src.strings[key]; ok {
		dst.strings[destKey] = v
	}
	if h, ok := src.hashes[key]; ok {
		dst.hashes[destKey] = maps.Clone(h)
	}
	if set, ok := src.sets[key]; ok {
		dst.sets[destKey] = maps.Clone(set)
	}
	if expiry, ok := src.expirations[key]; ok {
		dst.expirations[destKey] = expiry
	}
}

// Handle is a kv.Handle bound to one partition of a Store
type Handle struct {
	store *Store
	index int
}

// read runs fn under the read lock against this handle's partition
func (h *Handle) read(ctx context.Context, fn func(ks *keyspace, now time.Time) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	h.store.mu.RLock()
	defer h.store.mu.RUnlock()
	if h.store.closed {
		return kv.ErrBackendUnavailable
	}
	return fn(h.store.parts[h.index], time.Now())
}

// write runs fn under the write lock against this handle's partition
func (h *Handle) write(ctx context.Context, fn func(ks *keyspace, now time.Time) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	h.store.mu.Lock()
	defer h.store.mu.Unlock()
	if h.store.closed {
		return kv.ErrBackendUnavailable
	}
	return fn(h.store.parts[h.index], time.Now())
}

func (h *Handle) Index() int {
	return h.index
}

// String operations

func (h *Handle) StringSet(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	err := h.write(ctx, func(ks *keyspace, now time.Time) error {
		ks.purge(key)
		ks.strings[key] = value
		ks.setExpiration(key, ttl, now)
		return nil
	})
	return err == nil, err
}

func (h *Handle) StringGet(ctx context.Context, key string) (string, error) {
	var value string
	err := h.read(ctx, func(ks *keyspace, now time.Time) error {
		switch ks.kind(key, now) {
		case "":
			return kv.ErrNotFound
		case "string":
			value = ks.strings[key]
			return nil
		default:
			return kv.ErrWrongType
		}
	})
	return value, err
}

// StringSetAndGet writes even when there was no previous value; that case
// is reported as ErrNotFound alongside the successful write.
func (h *Handle) StringSetAndGet(ctx context.Context, key, value string, ttl time.Duration) (string, error) {
	var (
		old string
		had bool
	)
	err := h.write(ctx, func(ks *keyspace, now time.Time) error {
		ks.dropExpired(key, now)
		switch ks.kind(key, now) {
		case "hash", "set":
			return kv.ErrWrongType
		case "string":
			old, had = ks.strings[key], true
		}
		ks.purge(key)
		ks.strings[key] = value
		ks.setExpiration(key, ttl, now)
		return nil
	})
	if err != nil {
		return "", err
	}
	if !had {
		return "", kv.ErrNotFound
	}
	return old, nil
}

// Key operations

func (h *Handle) KeyDelete(ctx context.Context, key string) (bool, error) {
	var deleted bool
	err := h.write(ctx, func(ks *keyspace, now time.Time) error {
		deleted = ks.kind(key, now) != ""
		ks.purge(key)
		return nil
	})
	return deleted, err
}

func (h *Handle) KeyExists(ctx context.Context, key string) (bool, error) {
	var exists bool
	err := h.read(ctx, func(ks *keyspace, now time.Time) error {
		exists = ks.kind(key, now) != ""
		return nil
	})
	return exists, err
}

// KeyExpire follows EXPIRE: a non-positive ttl deletes the key.
func (h *Handle) KeyExpire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	var ok bool
	err := h.write(ctx, func(ks *keyspace, now time.Time) error {
		ks.dropExpired(key, now)
		if ks.kind(key, now) == "" {
			return nil
		}
		ok = true
		if ttl <= 0 {
			ks.purge(key)
			return nil
		}
		ks.setExpiration(key, ttl, now)
		return nil
	})
	return ok, err
}

func (h *Handle) KeyExpireTime(ctx context.Context, key string) (time.Time, error) {
	var at time.Time
	err := h.read(ctx, func(ks *keyspace, now time.Time) error {
		if ks.kind(key, now) == "" {
			return kv.ErrNotFound
		}
		expiry, ok := ks.expirations[key]
		if !ok {
			return kv.ErrNoExpiry
		}
		at = expiry
		return nil
	})
	return at, err
}

func (h *Handle) KeyTimeToLive(ctx context.Context, key string) (time.Duration, error) {
	var remaining time.Duration
	err := h.read(ctx, func(ks *keyspace, now time.Time) error {
		if ks.kind(key, now) == "" {
			return kv.ErrNotFound
		}
		expiry, ok := ks.expirations[key]
		if !ok {
			return kv.ErrNoExpiry
		}
		remaining = expiry.Sub(now)
		return nil
	})
	return remaining, err
}

func (h *Handle) KeyCopy(ctx context.Context, srcKey, destKey string, destIndex int, replace bool) (bool, error) {
	if !kv.ValidPartition(destIndex) {
		return false, kv.ErrInvalidPartition
	}
	if destIndex == h.index && srcKey == destKey {
		return false, errSameObject
	}

	var copied bool
	err := h.write(ctx, func(src *keyspace, now time.Time) error {
		dst := h.store.parts[destIndex]
		src.dropExpired(srcKey, now)
		dst.dropExpired(destKey, now)
		if src.kind(srcKey, now) == "" {
			return nil
		}
		if dst.kind(destKey, now) != "" && !replace {
			return nil
		}
		copyKey(src, srcKey, dst, destKey)
		copied = true
		return nil
	})
	return copied, err
}

func (h *Handle) KeyMove(ctx context.Context, key string, destIndex int) (bool, error) {
	if !kv.ValidPartition(destIndex) {
		return false, kv.ErrInvalidPartition
	}
	if destIndex == h.index {
		return false, errSameObject
	}

	var moved bool
	err := h.write(ctx, func(src *keyspace, now time.Time) error {
		dst := h.store.parts[destIndex]
		src.dropExpired(key, now)
		dst.dropExpired(key, now)
		if src.kind(key, now) == "" || dst.kind(key, now) != "" {
			return nil
		}
		copyKey(src, key, dst, key)
		src.purge(key)
		moved = true
		return nil
	})
	return moved, err
}

// Hash operations

func (h *Handle) HashSet(ctx context.Context, key string, fields map[string]string) error {
	if len(fields) == 0 {
		return errors.New("ERR wrong number of arguments for 'hset' command")
	}
	return h.write(ctx, func(ks *keyspace, now time.Time) error {
		ks.dropExpired(key, now)
		switch ks.kind(key, now) {
		case "string", "set":
			return kv.ErrWrongType
		case "":
			ks.hashes[key] = make(map[string]string, len(fields))
		}
		for field, value := range fields {
			ks.hashes[key][field] = value
		}
		return nil
	})
}

func (h *Handle) HashGet(ctx context.Context, key, field string) (string, error) {
	var value string
	err := h.read(ctx, func(ks *keyspace, now time.Time) error {
		switch ks.kind(key, now) {
		case "":
			return kv.ErrNotFound
		case "hash":
			v, ok := ks.hashes[key][field]
			if !ok {
				return kv.ErrNotFound
			}
			value = v
			return nil
		default:
			return kv.ErrWrongType
		}
	})
	return value, err
}

func (h *Handle) HashGetAll(ctx context.Context, key string) (map[string]string, error) {
	result := map[string]string{}
	err := h.read(ctx, func(ks *keyspace, now time.Time) error {
		switch ks.kind(key, now) {
		case "":
			return nil
		case "hash":
			result = maps.Clone(ks.hashes[key])
			return nil
		default:
			return kv.ErrWrongType
		}
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (h *Handle) HashLength(ctx context.Context, key string) (int64, error) {
	var n int64
	err := h.read(ctx, func(ks *keyspace, now time.Time) error {
		switch ks.kind(key, now) {
		case "":
			return nil
		case "hash":
			n = int64(len(ks.hashes[key]))
			return nil
		default:
			return kv.ErrWrongType
		}
	})
	return n, err
}

// Set operations

func (h *Handle) SetAdd(ctx context.Context, key, member string) (bool, error) {
	var added bool
	err := h.write(ctx, func(ks *keyspace, now time.Time) error {
		ks.dropExpired(key, now)
		switch ks.kind(key, now) {
		case "string", "hash":
			return kv.ErrWrongType
		case "":
			ks.sets[key] = make(map[string]struct{})
		}
		if _, ok := ks.sets[key][member]; !ok {
			ks.sets[key][member] = struct{}{}
			added = true
		}
		return nil
	})
	return added, err
}

func (h *Handle) SetMembers(ctx context.Context, key string) ([]string, error) {
	members := []string{}
	err := h.read(ctx, func(ks *keyspace, now time.Time) error {
		switch ks.kind(key, now) {
		case "":
			return nil
		case "set":
			members = slices.Sorted(maps.Keys(ks.sets[key]))
			return nil
		default:
			return kv.ErrWrongType
		}
	})
	if err != nil {
		return nil, err
	}
	return members, nil
}

func (h *Handle) SetLength(ctx context.Context, key string) (int64, error) {
	var n int64
	err := h.read(ctx, func(ks *keyspace, now time.Time) error {
		switch ks.kind(key, now) {
		case "":
			return nil
		case "set":
			n = int64(len(ks.sets[key]))
			return nil
		default:
			return kv.ErrWrongType
		}
	})
	return n, err
}

func (h *Handle) SetMove(ctx context.Context, srcKey, destKey, member string) (bool, error) {
	var moved bool
	err := h.write(ctx, func(ks *keyspace, now time.Time) error {
		ks.dropExpired(srcKey, now)
		ks.dropExpired(destKey, now)
		srcKind, destKind := ks.kind(srcKey, now), ks.kind(destKey, now)
		if (srcKind != "" && srcKind != "set") || (destKind != "" && destKind != "set") {
			return kv.ErrWrongType
		}
		if srcKind == "" {
			return nil
		}
		if _, ok := ks.sets[srcKey][member]; !ok {
			return nil
		}
		// SMOVE onto the same set is a successful no-op
		if srcKey == destKey {
			moved = true
			return nil
		}
		delete(ks.sets[srcKey], member)
		if len(ks.sets[srcKey]) == 0 {
			ks.purge(srcKey)
		}
		if destKind == "" {
			ks.sets[destKey] = make(map[string]struct{})
		}
		ks.sets[destKey][member] = struct{}{}
		moved = true
		return nil
	})
	return moved, err
}

func (h *Handle) SetPop(ctx context.Context, key string) (string, error) {
	var popped string
	err := h.write(ctx, func(ks *keyspace, now time.Time) error {
		ks.dropExpired(key, now)
		switch ks.kind(key, now) {
		case "":
			return kv.ErrNotFound
		case "set":
		default:
			return kv.ErrWrongType
		}
		members := slices.Collect(maps.Keys(ks.sets[key]))
		popped = members[rand.IntN(len(members))]
		delete(ks.sets[key], popped)
		if len(ks.sets[key]) == 0 {
			ks.purge(key)
		}
		return nil
	})
	return popped, err
}

// Flush empties this handle's partition
func (h *Handle) Flush(ctx context.Context) error {
	if !h.store.allowAdmin {
		return kv.ErrAdminDisabled
	}
	return h.write(ctx, func(_ *keyspace, _ time.Time) error {
		h.store.parts[h.index] = newKeyspace()
		return nil
	})
}
