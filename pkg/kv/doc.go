// Package kv defines the store-client contract used by rediskit: a
// Connection to a store with numbered logical partitions, and per-partition
// Handles carrying string, key, hash and set primitives.
//
// Backends register themselves on import:
//
//	import (
//		"github.com/leafsii/rediskit/pkg/kv"
//		_ "github.com/leafsii/rediskit/pkg/kv/memory"
//		_ "github.com/leafsii/rediskit/pkg/kv/redis"
//	)
//
//	conn, err := kv.Connect(ctx, kv.Config{
//		Backend:            kv.BackendRedis,
//		Endpoint:           "127.0.0.1:6379",
//		AbortOnConnectFail: true,
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer conn.Close()
//
//	h, err := conn.Partition(3)
//	if err != nil {
//		log.Fatal(err)
//	}
//	if _, err := h.StringSet(ctx, "key", "value", 10*time.Second); err != nil {
//		log.Fatal(err)
//	}
//
// The in-memory backend implements the same contract with full TTL support
// and is what the tests of dependent packages run against. The Redis
// backend wraps go-redis/v9 and classifies network failures as
// ErrBackendUnavailable; every other driver error is returned unchanged.
package kv
