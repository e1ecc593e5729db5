package rediskit

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/leafsii/rediskit/pkg/async"
	"github.com/leafsii/rediskit/pkg/codec"
	"github.com/leafsii/rediskit/pkg/kv"
	"github.com/leafsii/rediskit/pkg/lifetime"
	"github.com/leafsii/rediskit/pkg/partition"

	// Register the built-in backends
	_ "github.com/leafsii/rediskit/pkg/kv/memory"
	_ "github.com/leafsii/rediskit/pkg/kv/redis"
)

// Options configures a Client.
type Options struct {
	// Conn is handed to kv.Connect.
	Conn kv.Config

	// Lifetimes supplies "<prefix>.db0".."<prefix>.db15". Required.
	Lifetimes lifetime.Source

	// LifetimePrefix overrides lifetime.DefaultKeyPrefix.
	LifetimePrefix string

	// DefaultDB is the partition the Default sentinel resolves to.
	// Leaving it as partition.Default means partition 0.
	DefaultDB partition.DB

	// Codec encodes string values and set members. Default: JSON.
	Codec codec.Codec

	Logger   *zap.SugaredLogger
	Recorder Recorder
}

// Client is the value operations facade over one store connection.
type Client struct {
	sel       *Selector
	lifetimes *lifetime.Resolver
	codec     codec.Codec
	log       *zap.SugaredLogger
	rec       Recorder
	def       atomic.Int32
}

// New loads the lifetime table, then connects. A missing or malformed
// lifetime fails before any connection is made.
func New(ctx context.Context, opts Options) (*Client, error) {
	c, err := newClient(opts)
	if err != nil {
		return nil, err
	}

	conn, err := kv.Connect(ctx, c.connConfig(opts.Conn))
	if err != nil {
		return nil, err
	}
	c.sel.Bind(conn)
	return c, nil
}

// NewWithConnection builds a Client around an already open connection,
// which the Client then owns.
func NewWithConnection(conn kv.Connection, opts Options) (*Client, error) {
	if conn == nil {
		return nil, ErrConnectionUnavailable
	}
	c, err := newClient(opts)
	if err != nil {
		return nil, err
	}
	c.sel.Bind(conn)
	return c, nil
}

func newClient(opts Options) (*Client, error) {
	var resolverOpts []lifetime.Option
	if opts.LifetimePrefix != "" {
		resolverOpts = append(resolverOpts, lifetime.WithKeyPrefix(opts.LifetimePrefix))
	}
	resolver, err := lifetime.New(opts.Lifetimes, resolverOpts...)
	if err != nil {
		return nil, err
	}

	c := &Client{
		lifetimes: resolver,
		codec:     opts.Codec,
		log:       opts.Logger,
		rec:       opts.Recorder,
	}
	if c.codec == nil {
		c.codec = codec.NewJSON()
	}
	if c.log == nil {
		c.log = zap.NewNop().Sugar()
	}
	if c.rec == nil {
		c.rec = nopRecorder{}
	}
	if index, ok := opts.DefaultDB.Index(); ok {
		c.def.Store(int32(index))
	}
	c.sel = NewSelector(nil, c.rec, c.log)
	return c, nil
}

// With opens a Client, runs fn and closes the Client on every path.
func With(ctx context.Context, opts Options, fn func(c *Client) error) (err error) {
	c, err := New(ctx, opts)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := c.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return fn(c)
}

func (c *Client) connConfig(cfg kv.Config) kv.Config {
	if cfg.Logger == nil {
		cfg.Logger = c.log.Infow
	}
	return cfg
}

// Close releases the connection. Later operations fail with
// ErrConnectionUnavailable.
func (c *Client) Close() error {
	conn := c.sel.Connection()
	c.sel.Bind(nil)
	if conn == nil {
		return nil
	}
	return conn.Close()
}

// Reconfigure releases the current connection and opens a new one from cfg.
// If the new connection cannot be opened the Client is left without one.
// It must not run concurrently with other operations on c.
func (c *Client) Reconfigure(ctx context.Context, cfg kv.Config) error {
	if old := c.sel.Connection(); old != nil {
		c.sel.Bind(nil)
		if err := old.Close(); err != nil {
			c.log.Warnw("Closing previous connection failed", "error", err)
		}
	}

	conn, err := kv.Connect(ctx, c.connConfig(cfg))
	if err != nil {
		c.log.Errorw("Reconfiguration failed", "backend", cfg.Backend, "endpoint", cfg.Endpoint, "error", err)
		return err
	}
	c.sel.Bind(conn)
	c.log.Infow("Reconfigured store connection", "backend", cfg.Backend, "endpoint", cfg.Endpoint)
	return nil
}

// Connection returns the live connection, or nil after Close or a failed Reconfigure.
func (c *Client) Connection() kv.Connection {
	return c.sel.Connection()
}

// DefaultDB returns the partition Default currently resolves to.
func (c *Client) DefaultDB() partition.DB {
	return partition.MustNew(int(c.def.Load()))
}

// SetDefaultDB changes the partition Default resolves to.
func (c *Client) SetDefaultDB(db partition.DB) error {
	index, ok := db.Index()
	if !ok {
		return ErrDefaultNotExplicit
	}
	c.def.Store(int32(index))
	return nil
}

func (c *Client) defaultIndex() int {
	return int(c.def.Load())
}

// Lifetime returns the expiration applied to string writes in db.
func (c *Client) Lifetime(db partition.DB) (time.Duration, error) {
	return c.lifetimes.Get(db, c.defaultIndex())
}

// SetLifetime overrides the lifetime of one partition.
func (c *Client) SetLifetime(db partition.DB, d time.Duration) {
	c.lifetimes.Set(db.Resolve(c.defaultIndex()), d)
}

// SetLifetimes replaces the lifetime table.
func (c *Client) SetLifetimes(t lifetime.Table) {
	c.lifetimes.SetAll(t)
}

// ResetLifetimes reloads the lifetime table from configuration.
func (c *Client) ResetLifetimes() error {
	if err := c.lifetimes.Reset(); err != nil {
		c.log.Errorw("Lifetime reset failed", "error", err)
		return err
	}
	c.log.Infow("Lifetimes reset from configuration")
	return nil
}

// Lifetimes returns a copy of the lifetime table.
func (c *Client) Lifetimes() lifetime.Table {
	return c.lifetimes.Table()
}

// Use returns the raw handle for db.
func (c *Client) Use(db partition.DB) (kv.Handle, error) {
	return c.sel.Select(db, c.defaultIndex())
}

// Ping checks the live connection.
func (c *Client) Ping(ctx context.Context) error {
	conn := c.sel.Connection()
	if conn == nil {
		return ErrConnectionUnavailable
	}
	return conn.Ping(ctx)
}

// Flush empties db. The connection must allow admin commands.
func (c *Client) Flush(ctx context.Context, db partition.DB) error {
	_, err := prepare(c, "flush", db, func(ctx context.Context, h kv.Handle) (struct{}, error) {
		return struct{}{}, h.Flush(ctx)
	}).run(ctx)
	return err
}

// Async returns the asynchronous form of c.
func (c *Client) Async() AsyncClient {
	return AsyncClient{c: c}
}

// op is a prepared operation: selection, lifetime lookup and encoding are
// already done and only the store round-trip remains.
type op[T any] struct {
	c     *Client
	name  string
	index int
	err   error
	do    func(ctx context.Context) (T, error)
}

// prepare selects the handle for db and binds it into do.
func prepare[T any](c *Client, name string, db partition.DB, do func(ctx context.Context, h kv.Handle) (T, error)) op[T] {
	def := c.defaultIndex()
	index := db.Resolve(def)
	h, err := c.sel.Select(db, def)
	if err != nil {
		return failed[T](c, name, index, err)
	}
	return op[T]{
		c:     c,
		name:  name,
		index: index,
		do: func(ctx context.Context) (T, error) {
			return do(ctx, h)
		},
	}
}

func failed[T any](c *Client, name string, index int, err error) op[T] {
	c.log.Errorw("Operation rejected", "op", name, "db", partition.NameOf(index), "error", err)
	return op[T]{c: c, name: name, index: index, err: err}
}

// run performs the round-trip on the calling goroutine.
func (o op[T]) run(ctx context.Context) (T, error) {
	if o.err != nil {
		var zero T
		return zero, o.err
	}

	start := time.Now()
	v, err := o.do(ctx)
	o.c.rec.RecordOperation(ctx, o.name, o.index, err, time.Since(start))
	if err != nil {
		o.c.log.Errorw("Store operation failed", "op", o.name, "db", partition.NameOf(o.index), "error", err)
	}
	return v, err
}

// start performs the round-trip in its own goroutine.
func (o op[T]) start(ctx context.Context) *async.Future[T] {
	if o.err != nil {
		return async.Failed[T](o.err)
	}
	return async.Go(ctx, o.run)
}

// absent maps kv.ErrNotFound onto the zero value.
func absent[T any](v T, err error) (T, error) {
	if errors.Is(err, kv.ErrNotFound) {
		var zero T
		return zero, nil
	}
	return v, err
}

// optional maps an absent key or missing expiry onto nil.
func optional[T any](v T, err error) (*T, error) {
	if errors.Is(err, kv.ErrNotFound) || errors.Is(err, kv.ErrNoExpiry) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// decode parses text into a fresh T.
func decode[T any](cd codec.Codec, text string) (T, error) {
	var v T
	if err := cd.Decode(text, &v); err != nil {
		return v, serializationErr(err)
	}
	return v, nil
}

// serializationErr keeps codec errors tagged with ErrSerialization even for
// custom codecs that return bare errors.
func serializationErr(err error) error {
	if errors.Is(err, ErrSerialization) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrSerialization, err)
}
