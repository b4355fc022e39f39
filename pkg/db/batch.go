package db

import (
	"fmt"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/DeBankDeFi/tahani/pkg/lib/log"
	"github.com/DeBankDeFi/tahani/pkg/metrics"
	"github.com/DeBankDeFi/tahani/pkg/utils"
	"github.com/google/uuid"
	"github.com/syndtr/goleveldb/leveldb"
)

// engineNone labels batch metrics, a batch belongs to no engine until written.
const engineNone = "none"

// Batch buffers puts and deletes until Write applies them to a handle in one
// atomic engine write. A batch is not tied to any handle: it may be written to
// several, and a failed write leaves its records in place for a retry.
type Batch struct {
	id    string
	state atomic.Int32
	batch *leveldb.Batch
	size  int
}

func NewBatch() *Batch {
	b := &Batch{
		id:    uuid.NewString(),
		batch: new(leveldb.Batch),
	}
	runtime.SetFinalizer(b, (*Batch).finalize)
	metrics.Store().Acquire(kindBatch, engineNone)
	return b
}

func (b *Batch) check() error {
	if BatchState(b.state.Load()) != BatchCreated {
		return utils.ErrBatchDestroyed
	}
	return nil
}

func (b *Batch) Put(key, value []byte) error {
	if err := b.check(); err != nil {
		return err
	}
	b.batch.Put(key, value)
	b.size += len(key) + len(value)
	return nil
}

func (b *Batch) Delete(key []byte) error {
	if err := b.check(); err != nil {
		return err
	}
	b.batch.Delete(key)
	b.size += len(key)
	return nil
}

// Write applies every buffered record to d as one engine write.
func (b *Batch) Write(d *DB) error {
	if d == nil {
		return utils.Errorf(utils.InvalidArgumentErrorCode, "nil store handle")
	}
	if err := d.acquire(); err != nil {
		return err
	}
	defer d.mu.RUnlock()
	if err := b.check(); err != nil {
		return err
	}
	begin := time.Now()
	return d.observe("write", begin, d.conn.Write(b.batch, d.wo))
}

// Len returns the number of buffered records, zero once destroyed.
func (b *Batch) Len() int {
	if b.check() != nil {
		return 0
	}
	return b.batch.Len()
}

// ValueSize returns the bytes of keys and values buffered so far.
func (b *Batch) ValueSize() int {
	return b.size
}

// Clear drops the buffered records and keeps the batch usable.
func (b *Batch) Clear() error {
	if err := b.check(); err != nil {
		return err
	}
	b.batch.Reset()
	b.size = 0
	return nil
}

// Dump returns the records in the goleveldb batch encoding.
func (b *Batch) Dump() ([]byte, error) {
	if err := b.check(); err != nil {
		return nil, err
	}
	return append([]byte{}, b.batch.Dump()...), nil
}

// Load replaces the buffered records with a Dump result.
func (b *Batch) Load(data []byte) error {
	if err := b.check(); err != nil {
		return err
	}
	if err := b.batch.Load(data); err != nil {
		return utils.Errorf(utils.InvalidArgumentErrorCode, err.Error())
	}
	b.size = 0
	return b.batch.Replay(sizer{b})
}

type sizer struct {
	b *Batch
}

func (s sizer) Put(key, value []byte) {
	s.b.size += len(key) + len(value)
}

func (s sizer) Delete(key []byte) {
	s.b.size += len(key)
}

// Destroy drops the buffered records. Later mutations fail with a
// BatchDestroyed error; destroying twice does nothing.
func (b *Batch) Destroy() {
	b.destroy(false)
	runtime.SetFinalizer(b, nil)
}

func (b *Batch) finalize() {
	b.destroy(true)
}

func (b *Batch) destroy(reclaimed bool) {
	if !b.state.CompareAndSwap(int32(BatchCreated), int32(BatchDestroyed)) {
		return
	}
	if reclaimed {
		log.Warn("batch reclaimed without destroy", log.Handle(b.id))
		metrics.Store().IncreaseReclaimed(kindBatch, engineNone)
		publish(EventReclaimed, kindBatch, "", engineNone, b.id)
	}
	b.batch.Reset()
	b.size = 0
	metrics.Store().Release(kindBatch, engineNone)
}

func (b *Batch) State() BatchState {
	return BatchState(b.state.Load())
}

func (b *Batch) String() string {
	return fmt.Sprintf("<tahani/batch %s len=%d>", b.State(), b.Len())
}
