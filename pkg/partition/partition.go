// Package partition identifies the logical databases of a Redis endpoint.
//
// A DB is either an explicit index in [0, Count) or the Default sentinel,
// which callers resolve against whatever default partition they carry.
// The zero value of DB is Default.
package partition

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Count is the number of logical databases a store exposes.
const Count = 16

// ErrOutOfRange is returned when an index falls outside [0, Count).
var ErrOutOfRange = errors.New("partition index out of range")

// DB is a logical database reference.
type DB struct {
	index    uint8
	explicit bool
}

// Default means "use the caller's configured default partition".
var Default = DB{}

var (
	DB0  = DB{index: 0, explicit: true}
	DB1  = DB{index: 1, explicit: true}
	DB2  = DB{index: 2, explicit: true}
	DB3  = DB{index: 3, explicit: true}
	DB4  = DB{index: 4, explicit: true}
	DB5  = DB{index: 5, explicit: true}
	DB6  = DB{index: 6, explicit: true}
	DB7  = DB{index: 7, explicit: true}
	DB8  = DB{index: 8, explicit: true}
	DB9  = DB{index: 9, explicit: true}
	DB10 = DB{index: 10, explicit: true}
	DB11 = DB{index: 11, explicit: true}
	DB12 = DB{index: 12, explicit: true}
	DB13 = DB{index: 13, explicit: true}
	DB14 = DB{index: 14, explicit: true}
	DB15 = DB{index: 15, explicit: true}
)

// New returns the explicit partition for index n.
func New(n int) (DB, error) {
	if n < 0 || n >= Count {
		return DB{}, fmt.Errorf("%w: %d", ErrOutOfRange, n)
	}
	return DB{index: uint8(n), explicit: true}, nil
}

// MustNew is like New but panics on an invalid index.
func MustNew(n int) DB {
	db, err := New(n)
	if err != nil {
		panic(err)
	}
	return db
}

// Parse accepts "default", a bare index ("3") or a symbolic name ("db3", "Db3").
func Parse(s string) (DB, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	if v == "" || v == "default" {
		return Default, nil
	}
	v = strings.TrimPrefix(v, "db")
	n, err := strconv.Atoi(v)
	if err != nil {
		return DB{}, fmt.Errorf("invalid partition %q", s)
	}
	return New(n)
}

// All returns the explicit partitions in index order.
func All() []DB {
	dbs := make([]DB, Count)
	for i := range dbs {
		dbs[i] = DB{index: uint8(i), explicit: true}
	}
	return dbs
}

// IsDefault reports whether db is the Default sentinel.
func (db DB) IsDefault() bool {
	return !db.explicit
}

// Index returns the explicit index and true, or 0 and false for Default.
func (db DB) Index() (int, bool) {
	return int(db.index), db.explicit
}

// Resolve substitutes def for the Default sentinel.
func (db DB) Resolve(def int) int {
	if !db.explicit {
		return def
	}
	return int(db.index)
}

// Name is the symbolic name used in configuration keys ("db0".."db15").
// Default has the name "default".
func (db DB) Name() string {
	if !db.explicit {
		return "default"
	}
	return "db" + strconv.Itoa(int(db.index))
}

func (db DB) String() string {
	return db.Name()
}

// NameOf returns the symbolic name of index i.
func NameOf(i int) string {
	return "db" + strconv.Itoa(i)
}
