package rediskit

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/leafsii/rediskit/pkg/kv"
	"github.com/leafsii/rediskit/pkg/kv/memory"
	"github.com/leafsii/rediskit/pkg/lifetime"
	"github.com/leafsii/rediskit/pkg/partition"
)

// countingBackend opens memory connections wrapped in countingConn and
// remembers every one it hands out.
const countingBackend kv.Backend = "counting"

var (
	openedMu sync.Mutex
	opened   []*countingConn
)

func init() {
	kv.RegisterBackend(countingBackend, func(ctx context.Context, cfg kv.Config) (kv.Connection, error) {
		conn := &countingConn{Connection: memory.New(-1, cfg.AllowAdmin)}
		openedMu.Lock()
		opened = append(opened, conn)
		openedMu.Unlock()
		return conn, nil
	})
}

func openedCount() int {
	openedMu.Lock()
	defer openedMu.Unlock()
	return len(opened)
}

func lastOpened() *countingConn {
	openedMu.Lock()
	defer openedMu.Unlock()
	return opened[len(opened)-1]
}

// countingConn counts partition acquisitions and every command issued
// through its handles.
type countingConn struct {
	kv.Connection
	partitions atomic.Int64
	commands   atomic.Int64
}

func (c *countingConn) Partition(index int) (kv.Handle, error) {
	c.partitions.Add(1)
	h, err := c.Connection.Partition(index)
	if err != nil {
		return nil, err
	}
	return &countingHandle{Handle: h, conn: c}, nil
}

func (c *countingConn) Ping(ctx context.Context) error {
	c.commands.Add(1)
	return c.Connection.Ping(ctx)
}

// invocations is everything issued against this connection.
func (c *countingConn) invocations() int64 {
	return c.partitions.Load() + c.commands.Load()
}

type countingHandle struct {
	kv.Handle
	conn *countingConn
}

func (h *countingHandle) tick() { h.conn.commands.Add(1) }

func (h *countingHandle) StringSet(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	h.tick()
	return h.Handle.StringSet(ctx, key, value, ttl)
}

func (h *countingHandle) StringGet(ctx context.Context, key string) (string, error) {
	h.tick()
	return h.Handle.StringGet(ctx, key)
}

func (h *countingHandle) StringSetAndGet(ctx context.Context, key, value string, ttl time.Duration) (string, error) {
	h.tick()
	return h.Handle.StringSetAndGet(ctx, key, value, ttl)
}

func (h *countingHandle) KeyDelete(ctx context.Context, key string) (bool, error) {
	h.tick()
	return h.Handle.KeyDelete(ctx, key)
}

func (h *countingHandle) KeyExists(ctx context.Context, key string) (bool, error) {
	h.tick()
	return h.Handle.KeyExists(ctx, key)
}

func (h *countingHandle) KeyExpire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	h.tick()
	return h.Handle.KeyExpire(ctx, key, ttl)
}

func (h *countingHandle) KeyExpireTime(ctx context.Context, key string) (time.Time, error) {
	h.tick()
	return h.Handle.KeyExpireTime(ctx, key)
}

func (h *countingHandle) KeyTimeToLive(ctx context.Context, key string) (time.Duration, error) {
	h.tick()
	return h.Handle.KeyTimeToLive(ctx, key)
}

func (h *countingHandle) KeyCopy(ctx context.Context, srcKey, destKey string, destIndex int, replace bool) (bool, error) {
	h.tick()
	return h.Handle.KeyCopy(ctx, srcKey, destKey, destIndex, replace)
}

func (h *countingHandle) KeyMove(ctx context.Context, key string, destIndex int) (bool, error) {
	h.tick()
	return h.Handle.KeyMove(ctx, key, destIndex)
}

func (h *countingHandle) HashSet(ctx context.Context, key string, fields map[string]string) error {
	h.tick()
	return h.Handle.HashSet(ctx, key, fields)
}

func (h *countingHandle) HashGet(ctx context.Context, key, field string) (string, error) {
	h.tick()
	return h.Handle.HashGet(ctx, key, field)
}

func (h *countingHandle) HashGetAll(ctx context.Context, key string) (map[string]string, error) {
	h.tick()
	return h.Handle.HashGetAll(ctx, key)
}

func (h *countingHandle) HashLength(ctx context.Context, key string) (int64, error) {
	h.tick()
	return h.Handle.HashLength(ctx, key)
}

func (h *countingHandle) SetAdd(ctx context.Context, key, member string) (bool, error) {
	h.tick()
	return h.Handle.SetAdd(ctx, key, member)
}

func (h *countingHandle) SetMembers(ctx context.Context, key string) ([]string, error) {
	h.tick()
	return h.Handle.SetMembers(ctx, key)
}

func (h *countingHandle) SetLength(ctx context.Context, key string) (int64, error) {
	h.tick()
	return h.Handle.SetLength(ctx, key)
}

func (h *countingHandle) SetMove(ctx context.Context, srcKey, destKey, member string) (bool, error) {
	h.tick()
	return h.Handle.SetMove(ctx, srcKey, destKey, member)
}

func (h *countingHandle) SetPop(ctx context.Context, key string) (string, error) {
	h.tick()
	return h.Handle.SetPop(ctx, key)
}

func (h *countingHandle) Flush(ctx context.Context) error {
	h.tick()
	return h.Handle.Flush(ctx)
}

type mapSource map[string]string

func (m mapSource) GetString(key string) string {
	return m[key]
}

// lifetimes gives every partition the same lifetime.
func lifetimes(value string) mapSource {
	src := mapSource{}
	for i := 0; i < partition.Count; i++ {
		src[lifetime.Key(lifetime.DefaultKeyPrefix, i)] = value
	}
	return src
}

type fakeRecorder struct {
	mu         sync.Mutex
	hits       int
	misses     int
	operations map[string]int
	failures   map[string]int
}

func (r *fakeRecorder) RecordOperation(_ context.Context, op string, _ int, err error, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.operations == nil {
		r.operations = map[string]int{}
		r.failures = map[string]int{}
	}
	r.operations[op]++
	if err != nil {
		r.failures[op]++
	}
}

func (r *fakeRecorder) RecordSelection(_ context.Context, _ int, hit bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if hit {
		r.hits++
	} else {
		r.misses++
	}
}

func testOptions(t *testing.T) Options {
	return Options{
		Conn:      kv.Config{Backend: countingBackend, AllowAdmin: true},
		Lifetimes: lifetimes("00.01:00:00"),
		Logger:    zaptest.NewLogger(t).Sugar(),
	}
}

// newTestClient returns a Client on a fresh counting connection.
func newTestClient(t *testing.T) (*Client, *countingConn) {
	t.Helper()
	c, err := New(context.Background(), testOptions(t))
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c, lastOpened()
}

func key(t *testing.T) string {
	return fmt.Sprintf("test:%s", t.Name())
}

func newMemory(t *testing.T) kv.Connection {
	m := memory.New(-1, true)
	t.Cleanup(func() { m.Close() })
	return m
}
