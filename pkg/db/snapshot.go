package db

import (
	"fmt"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/DeBankDeFi/tahani/pkg/engine"
	"github.com/DeBankDeFi/tahani/pkg/lib/log"
	"github.com/DeBankDeFi/tahani/pkg/metrics"
	"github.com/DeBankDeFi/tahani/pkg/utils"
	"github.com/google/uuid"
)

// Snapshot is a point-in-time read view of one handle. It keeps the handle
// reachable but does not keep it open: after the handle closes every snapshot
// operation fails with a StoreClosed error and Release does nothing.
type Snapshot struct {
	*snapshot
	db *DB
}

type snapshot struct {
	store  *store
	id     string
	state  atomic.Int32
	native engine.Snapshot
}

func (d *DB) NewSnapshot() (*Snapshot, error) {
	if err := d.acquire(); err != nil {
		return nil, err
	}
	defer d.mu.RUnlock()

	begin := time.Now()
	native, err := d.conn.NewSnapshot()
	if err = d.observe("snapshot", begin, err); err != nil {
		return nil, err
	}
	s := &snapshot{store: d.store, id: uuid.NewString(), native: native}
	d.track(s)
	metrics.Store().Acquire(kindSnapshot, d.engine)

	snap := &Snapshot{snapshot: s, db: d}
	runtime.SetFinalizer(snap, (*Snapshot).finalize)
	log.Debug("snapshot created", append(d.fields(), log.Any("snapshot", s.id))...)
	return snap, nil
}

// Get reads key as of the snapshot. A missing key returns nil, false, nil.
func (s *Snapshot) Get(key []byte) ([]byte, bool, error) {
	if err := s.store.acquire(); err != nil {
		return nil, false, err
	}
	defer s.store.mu.RUnlock()
	if s.State() != SnapshotCreated {
		return nil, false, utils.ErrSnapshotReleased
	}
	ro := &engine.ReadOptions{DontFillCache: s.store.ro.DontFillCache, Snapshot: s.native}
	return s.store.get("snapshot-get", key, ro)
}

// Release hands the snapshot back to the engine. Releasing twice, or after
// the handle closed, does nothing.
func (s *Snapshot) Release() {
	s.release(false)
	runtime.SetFinalizer(s, nil)
}

func (s *Snapshot) finalize() {
	s.release(true)
}

func (s *snapshot) release(reclaimed bool) {
	s.store.mu.RLock()
	defer s.store.mu.RUnlock()
	// A store that closed already released every snapshot, so winning the
	// swap here means the store is still open.
	if !s.state.CompareAndSwap(int32(SnapshotCreated), int32(SnapshotReleased)) {
		return
	}
	if reclaimed {
		log.Warn("snapshot reclaimed without release", append(s.store.fields(), log.Any("snapshot", s.id))...)
		metrics.Store().IncreaseReclaimed(kindSnapshot, s.store.engine)
		publish(EventReclaimed, kindSnapshot, s.store.name, s.store.engine, s.id)
	}
	s.store.forget(s)
	s.native.Release()
	metrics.Store().Release(kindSnapshot, s.store.engine)
}

func (s *snapshot) releaseNative() {
	if s.state.CompareAndSwap(int32(SnapshotCreated), int32(SnapshotReleased)) {
		s.native.Release()
		metrics.Store().Release(kindSnapshot, s.store.engine)
	}
}

func (s *Snapshot) ID() string {
	return s.id
}

func (s *Snapshot) State() SnapshotState {
	return SnapshotState(s.state.Load())
}

func (s *Snapshot) String() string {
	return fmt.Sprintf("<tahani/snapshot %q %s>", s.store.name, s.State())
}
