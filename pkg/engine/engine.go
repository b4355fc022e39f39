// Package engine describes the storage engine surface consumed by the handle
// layer in pkg/db, and keeps the registry of available engine drivers.
package engine

import (
	"errors"
	"sort"
	"sync"

	"github.com/syndtr/goleveldb/leveldb"
)

// ErrNotFound is returned by Conn.Get when the key is absent.
var ErrNotFound = errors.New("engine: not found")

// Options are the engine-level open options.
type Options struct {
	// ErrorIfExists makes Open fail if the store already exists.
	ErrorIfExists bool
}

// ReadOptions apply to point reads and iterators.
type ReadOptions struct {
	// DontFillCache keeps blocks read for this operation out of the block
	// cache. Engines without such a knob ignore it.
	DontFillCache bool

	// Snapshot pins the read to a view created by the same Conn.
	Snapshot Snapshot
}

// WriteOptions apply to puts, deletes and batch writes.
type WriteOptions struct {
	// Sync flushes the write-ahead log before the write returns.
	Sync bool
}

// Driver opens stores of one engine and manages them by name.
type Driver interface {
	Name() string

	// Open opens the store at name, creating it when missing.
	Open(name string, opts *Options) (Conn, error)

	// Destroy removes every persisted file of the store. A store that does
	// not exist is not an error.
	Destroy(name string) error

	// Repair recovers what it can of a store after an unclean shutdown.
	Repair(name string) error
}

// Conn is one open engine connection.
type Conn interface {
	Get(key []byte, ro *ReadOptions) ([]byte, error)
	Put(key, value []byte, wo *WriteOptions) error
	Delete(key []byte, wo *WriteOptions) error

	// Write applies every record of batch in a single atomic engine write.
	Write(batch *leveldb.Batch, wo *WriteOptions) error

	NewSnapshot() (Snapshot, error)
	NewIterator(ro *ReadOptions) (Iterator, error)

	// Stat returns an engine specific property.
	Stat(property string) (string, error)

	Close() error
}

type Snapshot interface {
	Releaser
}

type Releaser interface {
	Release()
}

var (
	driversMu sync.RWMutex
	drivers   = make(map[string]Driver)
)

// Register makes a driver available by its name. Registering the same name
// twice panics.
func Register(d Driver) {
	driversMu.Lock()
	defer driversMu.Unlock()
	if _, ok := drivers[d.Name()]; ok {
		panic("engine: driver registered twice: " + d.Name())
	}
	drivers[d.Name()] = d
}

// Lookup returns the driver registered under name.
func Lookup(name string) (Driver, bool) {
	driversMu.RLock()
	defer driversMu.RUnlock()
	d, ok := drivers[name]
	return d, ok
}

// Drivers lists registered driver names in sorted order.
func Drivers() []string {
	driversMu.RLock()
	defer driversMu.RUnlock()
	names := make([]string, 0, len(drivers))
	for name := range drivers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
