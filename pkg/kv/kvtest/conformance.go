// Package kvtest provides conformance tests for kv.Connection implementations
package kvtest

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/leafsii/rediskit/pkg/kv"
)

// ConnectionFactory creates a Connection whose partitions 0-2 are empty.
type ConnectionFactory func(t *testing.T) kv.Connection

// RunConformanceTests runs all conformance tests against a Connection implementation
func RunConformanceTests(t *testing.T, factory ConnectionFactory) {
	t.Run("StringOperations", func(t *testing.T) {
		run(t, factory, []namedTest{
			{"SetGet", testSetGet},
			{"GetNonExistent", testGetNonExistent},
			{"SetAndGet", testSetAndGet},
			{"SetOverwritesOtherKinds", testSetOverwritesOtherKinds},
		})
	})
	t.Run("KeyOperations", func(t *testing.T) {
		run(t, factory, []namedTest{
			{"Delete", testDelete},
			{"Exists", testExists},
			{"PartitionsAreIsolated", testPartitionsAreIsolated},
			{"Copy", testCopy},
			{"Move", testMove},
			{"MoveConflict", testMoveConflict},
		})
	})
	t.Run("TTLOperations", func(t *testing.T) {
		run(t, factory, []namedTest{
			{"SetWithTTL", testSetWithTTL},
			{"Expire", testExpire},
			{"TimeToLive", testTimeToLive},
			{"ExpireTime", testExpireTime},
		})
	})
	t.Run("HashOperations", func(t *testing.T) {
		run(t, factory, []namedTest{
			{"SetGet", testHashSetGet},
			{"GetAll", testHashGetAll},
			{"WrongType", testHashWrongType},
		})
	})
	t.Run("SetOperations", func(t *testing.T) {
		run(t, factory, []namedTest{
			{"AddMembers", testSetAddMembers},
			{"Move", testSetMove},
			{"Pop", testSetPop},
		})
	})
	t.Run("HealthCheck", func(t *testing.T) {
		run(t, factory, []namedTest{
			{"Ping", testPing},
			{"InvalidPartition", testInvalidPartition},
			{"ExpiredContext", testExpiredContext},
		})
	})
}

type namedTest struct {
	name string
	test func(t *testing.T, conn kv.Connection)
}

func run(t *testing.T, factory ConnectionFactory, tests []namedTest) {
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conn := factory(t)
			defer conn.Close()
			tt.test(t, conn)
		})
	}
}

func handle(t *testing.T, conn kv.Connection, index int) kv.Handle {
	t.Helper()
	h, err := conn.Partition(index)
	if err != nil {
		t.Fatalf("Partition(%d) failed: %v", index, err)
	}
	if h.Index() != index {
		t.Fatalf("Expected handle for partition %d, got %d", index, h.Index())
	}
	return h
}

func testSetGet(t *testing.T, conn kv.Connection) {
	ctx := context.Background()
	h := handle(t, conn, 0)

	ok, err := h.StringSet(ctx, "test:string", "hello world", 0)
	if err != nil {
		t.Fatalf("StringSet failed: %v", err)
	}
	if !ok {
		t.Fatalf("Expected StringSet to report success")
	}

	result, err := h.StringGet(ctx, "test:string")
	if err != nil {
		t.Fatalf("StringGet failed: %v", err)
	}
	if result != "hello world" {
		t.Fatalf("Expected %q, got %q", "hello world", result)
	}
}

func testGetNonExistent(t *testing.T, conn kv.Connection) {
	ctx := context.Background()
	h := handle(t, conn, 0)

	_, err := h.StringGet(ctx, "test:nonexistent")
	if !errors.Is(err, kv.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound, got %v", err)
	}
}

func testSetAndGet(t *testing.T, conn kv.Connection) {
	ctx := context.Background()
	h := handle(t, conn, 0)
	key := "test:swap"

	// No previous value
	_, err := h.StringSetAndGet(ctx, key, "first", 0)
	if !errors.Is(err, kv.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound for first swap, got %v", err)
	}

	old, err := h.StringSetAndGet(ctx, key, "second", time.Minute)
	if err != nil {
		t.Fatalf("StringSetAndGet failed: %v", err)
	}
	if old != "first" {
		t.Fatalf("Expected previous value %q, got %q", "first", old)
	}

	current, err := h.StringGet(ctx, key)
	if err != nil {
		t.Fatalf("StringGet failed: %v", err)
	}
	if current != "second" {
		t.Fatalf("Expected %q, got %q", "second", current)
	}

	ttl, err := h.KeyTimeToLive(ctx, key)
	if err != nil {
		t.Fatalf("KeyTimeToLive failed: %v", err)
	}
	if ttl <= 0 || ttl > time.Minute {
		t.Fatalf("Expected TTL within (0, 1m], got %v", ttl)
	}
}

func testSetOverwritesOtherKinds(t *testing.T, conn kv.Connection) {
	ctx := context.Background()
	h := handle(t, conn, 0)
	key := "test:overwrite"

	if _, err := h.SetAdd(ctx, key, "member"); err != nil {
		t.Fatalf("SetAdd failed: %v", err)
	}
	if _, err := h.StringSet(ctx, key, "plain", 0); err != nil {
		t.Fatalf("StringSet over a set failed: %v", err)
	}

	result, err := h.StringGet(ctx, key)
	if err != nil {
		t.Fatalf("StringGet failed: %v", err)
	}
	if result != "plain" {
		t.Fatalf("Expected %q, got %q", "plain", result)
	}
}

func testDelete(t *testing.T, conn kv.Connection) {
	ctx := context.Background()
	h := handle(t, conn, 0)
	key1, key2 := "test:del1", "test:del2"

	h.StringSet(ctx, key1, "test", 0)
	h.StringSet(ctx, key2, "test", 0)

	deleted, err := h.KeyDelete(ctx, key1)
	if err != nil {
		t.Fatalf("KeyDelete failed: %v", err)
	}
	if !deleted {
		t.Fatalf("Expected KeyDelete to report removal")
	}

	_, err = h.StringGet(ctx, key1)
	if !errors.Is(err, kv.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound for deleted key, got %v", err)
	}

	_, err = h.StringGet(ctx, key2)
	if err != nil {
		t.Fatalf("Expected key2 to still exist, got %v", err)
	}

	deleted, err = h.KeyDelete(ctx, key1)
	if err != nil {
		t.Fatalf("KeyDelete failed: %v", err)
	}
	if deleted {
		t.Fatalf("Expected second KeyDelete to report nothing removed")
	}
}

func testExists(t *testing.T, conn kv.Connection) {
	ctx := context.Background()
	h := handle(t, conn, 0)
	key := "test:exists"

	exists, err := h.KeyExists(ctx, key)
	if err != nil {
		t.Fatalf("KeyExists failed: %v", err)
	}
	if exists {
		t.Fatalf("Expected key to be absent")
	}

	h.HashSet(ctx, key, map[string]string{"f": "v"})

	exists, err = h.KeyExists(ctx, key)
	if err != nil {
		t.Fatalf("KeyExists failed: %v", err)
	}
	if !exists {
		t.Fatalf("Expected key to exist")
	}
}

func testPartitionsAreIsolated(t *testing.T, conn kv.Connection) {
	ctx := context.Background()
	h0, h1 := handle(t, conn, 0), handle(t, conn, 1)
	key := "test:isolated"

	h0.StringSet(ctx, key, "zero", 0)
	h1.StringSet(ctx, key, "one", 0)

	v0, err := h0.StringGet(ctx, key)
	if err != nil || v0 != "zero" {
		t.Fatalf("Expected %q in partition 0, got %q (%v)", "zero", v0, err)
	}
	v1, err := h1.StringGet(ctx, key)
	if err != nil || v1 != "one" {
		t.Fatalf("Expected %q in partition 1, got %q (%v)", "one", v1, err)
	}
}

func testCopy(t *testing.T, conn kv.Connection) {
	ctx := context.Background()
	h0, h2 := handle(t, conn, 0), handle(t, conn, 2)

	// Missing source
	copied, err := h0.KeyCopy(ctx, "test:copy-missing", "test:copy-dest", 2, false)
	if err != nil {
		t.Fatalf("KeyCopy failed: %v", err)
	}
	if copied {
		t.Fatalf("Expected KeyCopy of a missing key to return false")
	}

	h0.StringSet(ctx, "test:copy-src", "payload", 0)
	copied, err = h0.KeyCopy(ctx, "test:copy-src", "test:copy-dest", 2, false)
	if err != nil {
		t.Fatalf("KeyCopy failed: %v", err)
	}
	if !copied {
		t.Fatalf("Expected KeyCopy to succeed")
	}

	v, err := h2.StringGet(ctx, "test:copy-dest")
	if err != nil || v != "payload" {
		t.Fatalf("Expected copied value %q, got %q (%v)", "payload", v, err)
	}
	if _, err := h0.StringGet(ctx, "test:copy-src"); err != nil {
		t.Fatalf("Expected source to survive a copy, got %v", err)
	}

	// Destination exists, no replace
	h0.StringSet(ctx, "test:copy-src", "changed", 0)
	copied, err = h0.KeyCopy(ctx, "test:copy-src", "test:copy-dest", 2, false)
	if err != nil {
		t.Fatalf("KeyCopy failed: %v", err)
	}
	if copied {
		t.Fatalf("Expected KeyCopy onto an existing key to return false")
	}

	copied, err = h0.KeyCopy(ctx, "test:copy-src", "test:copy-dest", 2, true)
	if err != nil {
		t.Fatalf("KeyCopy with replace failed: %v", err)
	}
	if !copied {
		t.Fatalf("Expected KeyCopy with replace to succeed")
	}
	v, _ = h2.StringGet(ctx, "test:copy-dest")
	if v != "changed" {
		t.Fatalf("Expected replaced value %q, got %q", "changed", v)
	}
}

func testMove(t *testing.T, conn kv.Connection) {
	ctx := context.Background()
	h1, h2 := handle(t, conn, 1), handle(t, conn, 2)
	key := "test:move"

	h1.SetAdd(ctx, key, "a")
	moved, err := h1.KeyMove(ctx, key, 2)
	if err != nil {
		t.Fatalf("KeyMove failed: %v", err)
	}
	if !moved {
		t.Fatalf("Expected KeyMove to succeed")
	}

	exists, _ := h1.KeyExists(ctx, key)
	if exists {
		t.Fatalf("Expected key to leave the source partition")
	}
	members, err := h2.SetMembers(ctx, key)
	if err != nil {
		t.Fatalf("SetMembers failed: %v", err)
	}
	if !reflect.DeepEqual(members, []string{"a"}) {
		t.Fatalf("Expected [a] in destination, got %v", members)
	}

	// Source lacks the key
	moved, err = h1.KeyMove(ctx, key, 2)
	if err != nil {
		t.Fatalf("KeyMove failed: %v", err)
	}
	if moved {
		t.Fatalf("Expected KeyMove of a missing key to return false")
	}
}

func testMoveConflict(t *testing.T, conn kv.Connection) {
	ctx := context.Background()
	h1, h2 := handle(t, conn, 1), handle(t, conn, 2)
	key := "test:move-conflict"

	h1.StringSet(ctx, key, "source", 0)
	h2.StringSet(ctx, key, "destination", 0)

	moved, err := h1.KeyMove(ctx, key, 2)
	if err != nil {
		t.Fatalf("KeyMove failed: %v", err)
	}
	if moved {
		t.Fatalf("Expected KeyMove onto an existing key to return false")
	}

	v, err := h1.StringGet(ctx, key)
	if err != nil || v != "source" {
		t.Fatalf("Expected source copy to stay intact, got %q (%v)", v, err)
	}
	v, err = h2.StringGet(ctx, key)
	if err != nil || v != "destination" {
		t.Fatalf("Expected destination copy to stay intact, got %q (%v)", v, err)
	}
}

func testSetWithTTL(t *testing.T, conn kv.Connection) {
	ctx := context.Background()
	h := handle(t, conn, 0)
	key := "test:ttl"

	if _, err := h.StringSet(ctx, key, "expires", 100*time.Millisecond); err != nil {
		t.Fatalf("StringSet with TTL failed: %v", err)
	}

	if _, err := h.StringGet(ctx, key); err != nil {
		t.Fatalf("Expected key to exist initially, got %v", err)
	}

	time.Sleep(150 * time.Millisecond)

	_, err := h.StringGet(ctx, key)
	if !errors.Is(err, kv.ErrNotFound) {
		t.Fatalf("Expected key to be expired, got %v", err)
	}
}

func testExpire(t *testing.T, conn kv.Connection) {
	ctx := context.Background()
	h := handle(t, conn, 0)
	key := "test:expire"

	ok, err := h.KeyExpire(ctx, key, time.Second)
	if err != nil {
		t.Fatalf("KeyExpire failed: %v", err)
	}
	if ok {
		t.Fatalf("Expected KeyExpire on a missing key to return false")
	}

	h.StringSet(ctx, key, "test", 0)

	ok, err = h.KeyExpire(ctx, key, 100*time.Millisecond)
	if err != nil {
		t.Fatalf("KeyExpire failed: %v", err)
	}
	if !ok {
		t.Fatalf("Expected KeyExpire to return true for existing key")
	}

	time.Sleep(150 * time.Millisecond)

	_, err = h.StringGet(ctx, key)
	if !errors.Is(err, kv.ErrNotFound) {
		t.Fatalf("Expected key to be expired, got %v", err)
	}
}

func testTimeToLive(t *testing.T, conn kv.Connection) {
	ctx := context.Background()
	h := handle(t, conn, 0)
	key := "test:ttl-check"

	_, err := h.KeyTimeToLive(ctx, key)
	if !errors.Is(err, kv.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound for non-existent key, got %v", err)
	}

	h.StringSet(ctx, key, "test", 0)
	_, err = h.KeyTimeToLive(ctx, key)
	if !errors.Is(err, kv.ErrNoExpiry) {
		t.Fatalf("Expected ErrNoExpiry for key without TTL, got %v", err)
	}

	h.KeyExpire(ctx, key, 10*time.Second)
	ttl, err := h.KeyTimeToLive(ctx, key)
	if err != nil {
		t.Fatalf("KeyTimeToLive failed: %v", err)
	}
	if ttl <= 0 || ttl > 10*time.Second {
		t.Fatalf("Expected TTL within (0, 10s], got %v", ttl)
	}
}

func testExpireTime(t *testing.T, conn kv.Connection) {
	ctx := context.Background()
	h := handle(t, conn, 0)
	key := "test:expiretime"

	_, err := h.KeyExpireTime(ctx, key)
	if !errors.Is(err, kv.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound for non-existent key, got %v", err)
	}

	h.StringSet(ctx, key, "test", 0)
	_, err = h.KeyExpireTime(ctx, key)
	if !errors.Is(err, kv.ErrNoExpiry) {
		t.Fatalf("Expected ErrNoExpiry for key without TTL, got %v", err)
	}

	before := time.Now()
	h.KeyExpire(ctx, key, time.Minute)
	at, err := h.KeyExpireTime(ctx, key)
	if err != nil {
		t.Fatalf("KeyExpireTime failed: %v", err)
	}
	if at.Before(before.Add(time.Minute-time.Second)) || at.After(time.Now().Add(time.Minute+time.Second)) {
		t.Fatalf("Expected expiry about a minute from now, got %v", at)
	}
}

func testHashSetGet(t *testing.T, conn kv.Connection) {
	ctx := context.Background()
	h := handle(t, conn, 0)
	key := "test:hash"

	n, err := h.HashLength(ctx, key)
	if err != nil {
		t.Fatalf("HashLength failed: %v", err)
	}
	if n != 0 {
		t.Fatalf("Expected length 0 for missing hash, got %d", n)
	}

	if err := h.HashSet(ctx, key, map[string]string{"name": "ada", "age": "36"}); err != nil {
		t.Fatalf("HashSet failed: %v", err)
	}
	// Only named fields are overwritten
	if err := h.HashSet(ctx, key, map[string]string{"age": "37"}); err != nil {
		t.Fatalf("HashSet failed: %v", err)
	}

	name, err := h.HashGet(ctx, key, "name")
	if err != nil || name != "ada" {
		t.Fatalf("Expected name %q, got %q (%v)", "ada", name, err)
	}
	age, err := h.HashGet(ctx, key, "age")
	if err != nil || age != "37" {
		t.Fatalf("Expected age %q, got %q (%v)", "37", age, err)
	}

	_, err = h.HashGet(ctx, key, "missing")
	if !errors.Is(err, kv.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound for missing field, got %v", err)
	}

	n, _ = h.HashLength(ctx, key)
	if n != 2 {
		t.Fatalf("Expected length 2, got %d", n)
	}
}

func testHashGetAll(t *testing.T, conn kv.Connection) {
	ctx := context.Background()
	h := handle(t, conn, 0)
	key := "test:hash-all"

	all, err := h.HashGetAll(ctx, key)
	if err != nil {
		t.Fatalf("HashGetAll failed: %v", err)
	}
	if len(all) != 0 {
		t.Fatalf("Expected empty map for missing hash, got %v", all)
	}

	want := map[string]string{"a": "1", "b": "2"}
	h.HashSet(ctx, key, want)

	all, err = h.HashGetAll(ctx, key)
	if err != nil {
		t.Fatalf("HashGetAll failed: %v", err)
	}
	if !reflect.DeepEqual(all, want) {
		t.Fatalf("Expected %v, got %v", want, all)
	}
}

func testHashWrongType(t *testing.T, conn kv.Connection) {
	ctx := context.Background()
	h := handle(t, conn, 0)
	key := "test:hash-wrongtype"

	h.StringSet(ctx, key, "plain", 0)
	if err := h.HashSet(ctx, key, map[string]string{"f": "v"}); err == nil {
		t.Fatalf("Expected HashSet on a string key to fail")
	}
	if _, err := h.StringGet(ctx, key); err != nil {
		t.Fatalf("Expected string to survive a failed HashSet, got %v", err)
	}
}

func testSetAddMembers(t *testing.T, conn kv.Connection) {
	ctx := context.Background()
	h := handle(t, conn, 0)
	key := "test:set"

	members, err := h.SetMembers(ctx, key)
	if err != nil {
		t.Fatalf("SetMembers failed: %v", err)
	}
	if len(members) != 0 {
		t.Fatalf("Expected no members for missing set, got %v", members)
	}

	for _, m := range []string{"a", "b", "a"} {
		if _, err := h.SetAdd(ctx, key, m); err != nil {
			t.Fatalf("SetAdd failed: %v", err)
		}
	}
	added, _ := h.SetAdd(ctx, key, "b")
	if added {
		t.Fatalf("Expected SetAdd of an existing member to return false")
	}

	n, err := h.SetLength(ctx, key)
	if err != nil {
		t.Fatalf("SetLength failed: %v", err)
	}
	if n != 2 {
		t.Fatalf("Expected 2 members, got %d", n)
	}

	members, _ = h.SetMembers(ctx, key)
	got := map[string]bool{}
	for _, m := range members {
		got[m] = true
	}
	if !reflect.DeepEqual(got, map[string]bool{"a": true, "b": true}) {
		t.Fatalf("Expected members a and b, got %v", members)
	}
}

func testSetMove(t *testing.T, conn kv.Connection) {
	ctx := context.Background()
	h := handle(t, conn, 0)
	src, dst := "test:set-src", "test:set-dst"

	h.SetAdd(ctx, src, "x")

	moved, err := h.SetMove(ctx, src, dst, "missing")
	if err != nil {
		t.Fatalf("SetMove failed: %v", err)
	}
	if moved {
		t.Fatalf("Expected SetMove of a missing member to return false")
	}

	moved, err = h.SetMove(ctx, src, dst, "x")
	if err != nil {
		t.Fatalf("SetMove failed: %v", err)
	}
	if !moved {
		t.Fatalf("Expected SetMove to succeed")
	}

	n, _ := h.SetLength(ctx, src)
	if n != 0 {
		t.Fatalf("Expected source set to be empty, got %d", n)
	}
	members, _ := h.SetMembers(ctx, dst)
	if !reflect.DeepEqual(members, []string{"x"}) {
		t.Fatalf("Expected [x] in destination, got %v", members)
	}

	// Moving onto the same set keeps the member
	moved, err = h.SetMove(ctx, dst, dst, "x")
	if err != nil {
		t.Fatalf("SetMove onto the same key failed: %v", err)
	}
	if !moved {
		t.Fatalf("Expected SetMove onto the same key to return true")
	}
	members, _ = h.SetMembers(ctx, dst)
	if !reflect.DeepEqual(members, []string{"x"}) {
		t.Fatalf("Expected [x] to remain after same-key SetMove, got %v", members)
	}
}

func testSetPop(t *testing.T, conn kv.Connection) {
	ctx := context.Background()
	h := handle(t, conn, 0)
	key := "test:set-pop"

	_, err := h.SetPop(ctx, key)
	if !errors.Is(err, kv.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound popping a missing set, got %v", err)
	}

	h.SetAdd(ctx, key, "only")
	popped, err := h.SetPop(ctx, key)
	if err != nil {
		t.Fatalf("SetPop failed: %v", err)
	}
	if popped != "only" {
		t.Fatalf("Expected %q, got %q", "only", popped)
	}

	_, err = h.SetPop(ctx, key)
	if !errors.Is(err, kv.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound popping an emptied set, got %v", err)
	}
}

func testPing(t *testing.T, conn kv.Connection) {
	if err := conn.Ping(context.Background()); err != nil {
		t.Fatalf("Ping failed: %v", err)
	}
}

func testInvalidPartition(t *testing.T, conn kv.Connection) {
	for _, index := range []int{-1, 16} {
		if _, err := conn.Partition(index); !errors.Is(err, kv.ErrInvalidPartition) {
			t.Fatalf("Expected ErrInvalidPartition for %d, got %v", index, err)
		}
	}
}

func testExpiredContext(t *testing.T, conn kv.Connection) {
	h := handle(t, conn, 0)
	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()

	_, err := h.StringGet(ctx, "test:expired-ctx")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Expected context.DeadlineExceeded, got %v", err)
	}
	if errors.Is(err, kv.ErrBackendUnavailable) {
		t.Fatalf("Expected the caller deadline not to be reported as backend unavailable, got %v", err)
	}

	if _, err := h.StringSet(ctx, "test:expired-ctx", "v", 0); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Expected context.DeadlineExceeded from StringSet, got %v", err)
	}
}
