// Package db is the handle lifecycle layer over the engines in pkg/engine.
//
// It hands out four capability types: DB, Batch, Snapshot and Iterator. Each
// has an explicit Close, Destroy or Release which is idempotent, and a
// finalizer that runs the same path when the value is dropped while still
// live. Closing a DB releases the snapshots and iterators created from it
// first; any later operation on them fails with a StoreClosed error.
package db

import (
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/DeBankDeFi/tahani/pkg/engine"
	_ "github.com/DeBankDeFi/tahani/pkg/engine/memdb"
	_ "github.com/DeBankDeFi/tahani/pkg/engine/pebble"
	"github.com/DeBankDeFi/tahani/pkg/lib/log"
	"github.com/DeBankDeFi/tahani/pkg/metrics"
	"github.com/DeBankDeFi/tahani/pkg/utils"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// child is a snapshot or iterator created from a store. releaseNative is
// called with the store exclusively locked while it closes.
type child interface {
	releaseNative()
}

// DB is a handle on one open store.
//
// The finalizer is attached to DB while snapshots and iterators point at the
// inner store, so no finalized value ever sits on a reference cycle.
type DB struct {
	*store
}

type store struct {
	name   string
	id     string
	engine string
	opts   Options

	// mu is held exclusively by close and shared by everything else.
	mu    sync.RWMutex
	state atomic.Int32
	conn  engine.Conn
	ro    *engine.ReadOptions
	wo    *engine.WriteOptions

	childMu  sync.Mutex
	children map[child]struct{}
}

func lookupDriver(opts *Options) (engine.Driver, error) {
	name := opts.engineName()
	drv, ok := engine.Lookup(name)
	if !ok {
		return nil, utils.Errorf(utils.UnknownEngineErrorCode,
			fmt.Sprintf("unknown engine %q, registered: %v", name, engine.Drivers()))
	}
	return drv, nil
}

func checkName(name string) error {
	if name == "" {
		return utils.Errorf(utils.InvalidArgumentErrorCode, "store name is empty")
	}
	return nil
}

// Open opens the named store, creating it if missing. Engine failures are
// returned as StoreOpen errors carrying the engine message unchanged.
func Open(name string, opts *Options) (*DB, error) {
	if err := checkName(name); err != nil {
		return nil, err
	}
	drv, err := lookupDriver(opts)
	if err != nil {
		return nil, err
	}

	begin := time.Now()
	conn, err := drv.Open(name, opts.engineOptions())
	metrics.Store().ObserveOp("open", drv.Name(), begin, err)
	if err != nil {
		log.Error("open store failed", err, log.Store(name), log.Engine(drv.Name()))
		return nil, utils.Wrap(utils.StoreOpenErrorCode, err)
	}

	s := &store{
		name:     name,
		id:       uuid.NewString(),
		engine:   drv.Name(),
		conn:     conn,
		ro:       opts.readOptions(),
		wo:       opts.writeOptions(),
		children: make(map[child]struct{}),
	}
	if opts != nil {
		s.opts = *opts
	}
	s.opts.Engine = drv.Name()

	d := &DB{store: s}
	runtime.SetFinalizer(d, (*DB).finalize)
	metrics.Store().Acquire(kindStore, s.engine)
	log.Info("store opened", s.fields()...)
	publish(EventOpened, kindStore, s.name, s.engine, s.id)
	return d, nil
}

// Close closes d. It is the same as d.Close.
func Close(d *DB) error {
	if d == nil {
		return utils.Errorf(utils.InvalidArgumentErrorCode, "nil store handle")
	}
	return d.Close()
}

// Destroy deletes every persisted file of the named store. The store must not
// be open anywhere.
func Destroy(name string, opts *Options) error {
	return byName("destroy", EventDestroyed, name, opts, engine.Driver.Destroy)
}

// Repair recovers the named store after an unclean shutdown. The store must
// not be open.
func Repair(name string, opts *Options) error {
	return byName("repair", EventRepaired, name, opts, engine.Driver.Repair)
}

func byName(op string, kind EventKind, name string, opts *Options, fn func(engine.Driver, string) error) error {
	if err := checkName(name); err != nil {
		return err
	}
	drv, err := lookupDriver(opts)
	if err != nil {
		return err
	}
	begin := time.Now()
	err = fn(drv, name)
	metrics.Store().ObserveOp(op, drv.Name(), begin, err)
	if err != nil {
		log.Error(op+" store failed", err, log.Store(name), log.Engine(drv.Name()))
		return utils.Wrap(utils.StoreIOErrorCode, err)
	}
	log.Info("store "+string(kind), log.Store(name), log.Engine(drv.Name()))
	publish(kind, kindStore, name, drv.Name(), "")
	return nil
}

// Close releases the snapshots and iterators still open on d, then the
// engine connection. Closing a closed handle does nothing.
func (d *DB) Close() error {
	err := d.store.close(false)
	runtime.SetFinalizer(d, nil)
	return err
}

func (d *DB) finalize() {
	d.store.close(true)
}

func (s *store) close(reclaimed bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.state.CompareAndSwap(int32(StoreOpen), int32(StoreClosed)) {
		return nil
	}
	if reclaimed {
		log.Warn("store reclaimed without close", s.fields()...)
		metrics.Store().IncreaseReclaimed(kindStore, s.engine)
		publish(EventReclaimed, kindStore, s.name, s.engine, s.id)
	}

	s.childMu.Lock()
	children := s.children
	s.children = nil
	s.childMu.Unlock()
	for c := range children {
		c.releaseNative()
	}

	begin := time.Now()
	err := s.conn.Close()
	metrics.Store().ObserveOp("close", s.engine, begin, err)
	metrics.Store().Release(kindStore, s.engine)
	s.conn, s.ro, s.wo = nil, nil, nil
	if err != nil {
		log.Error("close store failed", err, s.fields()...)
		return utils.Wrap(utils.StoreIOErrorCode, err)
	}
	log.Info("store closed", append(s.fields(), zap.Int("children", len(children)))...)
	publish(EventClosed, kindStore, s.name, s.engine, s.id)
	return nil
}

// acquire takes the shared lock if the store is open. On success the caller
// must release it with s.mu.RUnlock.
func (s *store) acquire() error {
	s.mu.RLock()
	if StoreState(s.state.Load()) != StoreOpen {
		s.mu.RUnlock()
		return utils.Errorf(utils.StoreClosedErrorCode, fmt.Sprintf("store %q is closed", s.name))
	}
	return nil
}

func (s *store) track(c child) {
	s.childMu.Lock()
	s.children[c] = struct{}{}
	s.childMu.Unlock()
}

func (s *store) forget(c child) {
	s.childMu.Lock()
	delete(s.children, c)
	s.childMu.Unlock()
}

func (s *store) fields() []zap.Field {
	return []zap.Field{log.Store(s.name), log.Handle(s.id), log.Engine(s.engine)}
}

func (s *store) observe(op string, begin time.Time, err error) error {
	metrics.Store().ObserveOp(op, s.engine, begin, err)
	if err == nil {
		return nil
	}
	return s.ioError(op, err)
}

func (s *store) ioError(op string, err error) error {
	log.Error("store operation failed", err, append(s.fields(), zap.String("op", op))...)
	return utils.Wrap(utils.StoreIOErrorCode, err)
}

// get runs under the shared lock. A found key always yields a non-nil value.
func (s *store) get(op string, key []byte, ro *engine.ReadOptions) ([]byte, bool, error) {
	begin := time.Now()
	val, err := s.conn.Get(key, ro)
	if errors.Is(err, engine.ErrNotFound) {
		metrics.Store().ObserveOp(op, s.engine, begin, nil)
		return nil, false, nil
	}
	if err = s.observe(op, begin, err); err != nil {
		return nil, false, err
	}
	if val == nil {
		val = []byte{}
	}
	return val, true, nil
}

func (d *DB) Put(key, value []byte) error {
	if err := d.acquire(); err != nil {
		return err
	}
	defer d.mu.RUnlock()
	begin := time.Now()
	return d.observe("put", begin, d.conn.Put(key, value, d.wo))
}

// Get returns the value stored under key. A missing key is not an error: Get
// returns nil, false, nil.
func (d *DB) Get(key []byte) ([]byte, bool, error) {
	if err := d.acquire(); err != nil {
		return nil, false, err
	}
	defer d.mu.RUnlock()
	return d.get("get", key, d.ro)
}

func (d *DB) Has(key []byte) (bool, error) {
	if err := d.acquire(); err != nil {
		return false, err
	}
	defer d.mu.RUnlock()
	_, ok, err := d.get("has", key, d.ro)
	return ok, err
}

// Delete removes key. Deleting a missing key succeeds.
func (d *DB) Delete(key []byte) error {
	if err := d.acquire(); err != nil {
		return err
	}
	defer d.mu.RUnlock()
	begin := time.Now()
	return d.observe("delete", begin, d.conn.Delete(key, d.wo))
}

// Stat returns an engine property, e.g. "leveldb.stats".
func (d *DB) Stat(property string) (string, error) {
	if err := d.acquire(); err != nil {
		return "", err
	}
	defer d.mu.RUnlock()
	begin := time.Now()
	v, err := d.conn.Stat(property)
	return v, d.observe("stat", begin, err)
}

func (d *DB) Name() string {
	return d.name
}

// ID identifies this handle in logs. Reopening a store yields a new ID.
func (d *DB) ID() string {
	return d.id
}

func (d *DB) Engine() string {
	return d.engine
}

// Options returns the options d was opened with, engine name resolved.
func (d *DB) Options() Options {
	return d.opts
}

func (d *DB) State() StoreState {
	return StoreState(d.state.Load())
}

func (d *DB) String() string {
	return fmt.Sprintf("<tahani/db %q %s>", d.name, d.State())
}
