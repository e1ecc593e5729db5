package kv

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Backend represents the storage backend type
type Backend string

const (
	// BackendMemory uses the in-memory store
	BackendMemory Backend = "memory"
	// BackendRedis uses Redis as the backend
	BackendRedis Backend = "redis"
)

// LogFunc receives log lines from backends. It matches zap.SugaredLogger.Infow.
type LogFunc func(msg string, keysAndValues ...interface{})

// Config holds configuration for opening a Connection
type Config struct {
	// Backend specifies which storage backend to use
	Backend Backend

	// Endpoint is host:port or a redis:// URL (required when Backend is "redis").
	// A database number in the URL is ignored; partitions are chosen per handle.
	Endpoint string

	// Password authenticates against the endpoint
	Password string

	// ConnectTimeout bounds dialing and the startup ping
	// Default: 5 seconds
	ConnectTimeout time.Duration

	// AbortOnConnectFail makes Connect fail when the startup ping fails.
	// When false the connection is returned anyway and dials lazily.
	AbortOnConnectFail bool

	// AllowAdmin enables admin commands such as Handle.Flush
	AllowAdmin bool

	// JanitorInterval controls how often the in-memory store cleans up expired keys
	// Default: 30 seconds. A negative value disables background cleanup.
	JanitorInterval time.Duration

	// Logger is used for connection events. If nil, no logging occurs.
	Logger LogFunc
}

// ConnectFunc opens a Connection for a backend
type ConnectFunc func(ctx context.Context, cfg Config) (Connection, error)

var (
	mu        sync.RWMutex
	factories = make(map[Backend]ConnectFunc)
)

// RegisterBackend registers a connect function for a given backend
func RegisterBackend(backend Backend, connect ConnectFunc) {
	mu.Lock()
	defer mu.Unlock()
	factories[backend] = connect
}

// Connect opens a Connection to the configured backend
func Connect(ctx context.Context, cfg Config) (Connection, error) {
	if cfg.ConnectTimeout == 0 {
		cfg.ConnectTimeout = 5 * time.Second
	}
	if cfg.Backend == "" {
		cfg.Backend = BackendRedis
	}

	mu.RLock()
	connect, exists := factories[cfg.Backend]
	mu.RUnlock()
	if !exists {
		return nil, fmt.Errorf("unsupported backend: %s (is its package imported?)", cfg.Backend)
	}

	conn, err := connect(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", cfg.Backend, err)
	}
	if cfg.Logger != nil {
		cfg.Logger("Store connection established", "backend", string(cfg.Backend), "endpoint", cfg.Endpoint)
	}
	return conn, nil
}
