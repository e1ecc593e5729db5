package rediskit

import (
	"context"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/leafsii/rediskit/pkg/kv"
	"github.com/leafsii/rediskit/pkg/partition"
)

// binding wraps the bound connection so it can live behind an atomic pointer.
// Each Bind allocates a new one, which is what cache entries are checked against.
type binding struct {
	conn kv.Connection
}

// activeHandle is the single cached selection.
type activeHandle struct {
	owner  *binding
	index  int
	handle kv.Handle
}

// Selector hands out partition handles from the bound connection and
// memoizes the most recent one.
type Selector struct {
	bound  atomic.Pointer[binding]
	active atomic.Pointer[activeHandle]
	rec    Recorder
	log    *zap.SugaredLogger
}

// NewSelector returns a Selector bound to conn. A nil conn leaves it unbound.
func NewSelector(conn kv.Connection, rec Recorder, logger *zap.SugaredLogger) *Selector {
	if rec == nil {
		rec = nopRecorder{}
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	s := &Selector{rec: rec, log: logger}
	s.Bind(conn)
	return s
}

// Bind swaps the connection and drops the cached handle.
func (s *Selector) Bind(conn kv.Connection) {
	if conn == nil {
		s.bound.Store(nil)
	} else {
		s.bound.Store(&binding{conn: conn})
	}
	s.active.Store(nil)
}

// Connection returns the bound connection, or nil.
func (s *Selector) Connection() kv.Connection {
	if b := s.bound.Load(); b != nil {
		return b.conn
	}
	return nil
}

// Select returns the handle for db, resolving Default through def.
func (s *Selector) Select(db partition.DB, def int) (kv.Handle, error) {
	b := s.bound.Load()
	if b == nil {
		return nil, ErrConnectionUnavailable
	}
	index := db.Resolve(def)

	if a := s.active.Load(); a != nil && a.owner == b && a.index == index {
		s.rec.RecordSelection(context.Background(), index, true)
		return a.handle, nil
	}

	h, err := b.conn.Partition(index)
	if err != nil {
		return nil, err
	}
	s.active.Store(&activeHandle{owner: b, index: index, handle: h})
	s.rec.RecordSelection(context.Background(), index, false)
	s.log.Debugw("Selected partition", "db", partition.NameOf(index))
	return h, nil
}
