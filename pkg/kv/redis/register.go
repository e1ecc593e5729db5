package redis

import (
	"context"

	"github.com/leafsii/rediskit/pkg/kv"
)

func init() {
	kv.RegisterBackend(kv.BackendRedis, func(ctx context.Context, cfg kv.Config) (kv.Connection, error) {
		conn, err := New(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return conn, nil
	})
}

// NewConnection opens a Redis connection with default settings
func NewConnection(ctx context.Context, endpoint string) (kv.Connection, error) {
	conn, err := New(ctx, kv.Config{Endpoint: endpoint, AbortOnConnectFail: true})
	if err != nil {
		return nil, err
	}
	return conn, nil
}
