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

// Iterator is a cursor over a handle in byte-wise key order, optionally
// pinned to a snapshot. It starts unpositioned.
//
// Positioning methods report whether the cursor is at an entry afterwards.
// A false result caused by a failure rather than exhaustion leaves the error
// in Error until the next positioning call.
type Iterator struct {
	*iterator
	db   *DB
	snap *Snapshot
}

type iterator struct {
	store  *store
	id     string
	state  atomic.Int32
	native engine.Iterator
	err    error
}

// NewIterator creates an iterator over d. With a non-nil snap the iterator
// reads the snapshot's view, otherwise the view is whatever the engine gives
// a fresh cursor. Iteration never fills the engine block cache.
func (d *DB) NewIterator(snap *Snapshot) (*Iterator, error) {
	if err := d.acquire(); err != nil {
		return nil, err
	}
	defer d.mu.RUnlock()

	ro := &engine.ReadOptions{DontFillCache: true}
	if snap != nil {
		if snap.store != d.store {
			return nil, utils.Errorf(utils.ForeignSnapshotErrorCode,
				fmt.Sprintf("snapshot of store %q used with store %q", snap.store.name, d.name))
		}
		if snap.State() != SnapshotCreated {
			return nil, utils.ErrSnapshotReleased
		}
		ro.Snapshot = snap.native
	}

	begin := time.Now()
	native, err := d.conn.NewIterator(ro)
	if err = d.observe("iterator", begin, err); err != nil {
		return nil, err
	}
	it := &iterator{store: d.store, id: uuid.NewString(), native: native}
	d.track(it)
	metrics.Store().Acquire(kindIterator, d.engine)

	iter := &Iterator{iterator: it, db: d, snap: snap}
	runtime.SetFinalizer(iter, (*Iterator).finalize)
	return iter, nil
}

func (it *iterator) move(op string, step func(engine.Iterator) bool) bool {
	if err := it.store.acquire(); err != nil {
		it.err = err
		return false
	}
	defer it.store.mu.RUnlock()
	if IteratorState(it.state.Load()) != IteratorCreated {
		it.err = utils.ErrIteratorDestroyed
		return false
	}
	it.err = nil
	ok := step(it.native)
	if err := it.native.Error(); err != nil {
		it.err = it.store.ioError(op, err)
		return false
	}
	return ok
}

func (it *Iterator) SeekToFirst() bool {
	return it.move("seek-to-first", engine.Iterator.First)
}

func (it *Iterator) SeekToLast() bool {
	return it.move("seek-to-last", engine.Iterator.Last)
}

// Seek moves to the smallest key >= key.
func (it *Iterator) Seek(key []byte) bool {
	return it.move("seek", func(i engine.Iterator) bool {
		return i.Seek(key)
	})
}

// Next steps forward. It does nothing on an unpositioned iterator.
func (it *Iterator) Next() bool {
	return it.move("next", func(i engine.Iterator) bool {
		return i.Valid() && i.Next()
	})
}

// Prev steps backward. It does nothing on an unpositioned iterator.
func (it *Iterator) Prev() bool {
	return it.move("prev", func(i engine.Iterator) bool {
		return i.Valid() && i.Prev()
	})
}

// Valid reports whether the iterator is at an entry. It never fails.
func (it *Iterator) Valid() bool {
	if it.store.acquire() != nil {
		return false
	}
	defer it.store.mu.RUnlock()
	return IteratorState(it.state.Load()) == IteratorCreated && it.native.Valid()
}

// Key returns a copy of the current key.
func (it *Iterator) Key() ([]byte, error) {
	return it.current(engine.Iterator.Key)
}

// Value returns a copy of the current value.
func (it *Iterator) Value() ([]byte, error) {
	return it.current(engine.Iterator.Value)
}

func (it *iterator) current(read func(engine.Iterator) []byte) ([]byte, error) {
	if err := it.store.acquire(); err != nil {
		return nil, err
	}
	defer it.store.mu.RUnlock()
	if IteratorState(it.state.Load()) != IteratorCreated {
		return nil, utils.ErrIteratorDestroyed
	}
	if !it.native.Valid() {
		return nil, utils.ErrIteratorInvalidPosition
	}
	return append([]byte{}, read(it.native)...), nil
}

// Error returns the failure of the last positioning call, if any.
func (it *Iterator) Error() error {
	return it.err
}

// Destroy releases the engine cursor. Destroying twice, or after the handle
// closed, does nothing.
func (it *Iterator) Destroy() {
	it.destroy(false)
	runtime.SetFinalizer(it, nil)
}

func (it *Iterator) finalize() {
	it.destroy(true)
}

func (it *iterator) destroy(reclaimed bool) {
	it.store.mu.RLock()
	defer it.store.mu.RUnlock()
	if !it.state.CompareAndSwap(int32(IteratorCreated), int32(IteratorDestroyed)) {
		return
	}
	if reclaimed {
		log.Warn("iterator reclaimed without destroy", append(it.store.fields(), log.Any("iterator", it.id))...)
		metrics.Store().IncreaseReclaimed(kindIterator, it.store.engine)
		publish(EventReclaimed, kindIterator, it.store.name, it.store.engine, it.id)
	}
	it.store.forget(it)
	it.native.Release()
	metrics.Store().Release(kindIterator, it.store.engine)
}

func (it *iterator) releaseNative() {
	if it.state.CompareAndSwap(int32(IteratorCreated), int32(IteratorDestroyed)) {
		it.native.Release()
		metrics.Store().Release(kindIterator, it.store.engine)
	}
}

func (it *Iterator) ID() string {
	return it.id
}

func (it *Iterator) State() IteratorState {
	return IteratorState(it.state.Load())
}

// Pinned reports whether the iterator reads through a snapshot.
func (it *Iterator) Pinned() bool {
	return it.snap != nil
}

func (it *Iterator) String() string {
	s := fmt.Sprintf("<tahani/iterator %q %s", it.store.name, it.State())
	if it.Pinned() {
		s += " pinned"
	}
	return s + ">"
}
