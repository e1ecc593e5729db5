package memory

import (
	"context"
	"time"

	"github.com/leafsii/rediskit/pkg/kv"
)

func init() {
	kv.RegisterBackend(kv.BackendMemory, func(ctx context.Context, cfg kv.Config) (kv.Connection, error) {
		interval := cfg.JanitorInterval
		if interval == 0 {
			interval = 30 * time.Second // Default interval
		}
		return New(interval, cfg.AllowAdmin), nil
	})
}
