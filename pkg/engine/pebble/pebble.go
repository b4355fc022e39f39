// Package pebble is the cockroachdb/pebble engine driver, registered as
// "pebble".
//
// Pebble has no destroy or repair entry points of its own. Destroy removes the
// store files while holding the store lock, Repair opens the store (which
// replays the WAL and cleans up obsolete files) and closes it again. Pebble
// iterators have no cache-fill knob, so ReadOptions.DontFillCache is ignored.
package pebble

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/DeBankDeFi/tahani/pkg/engine"
	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/bloom"
	"github.com/cockroachdb/pebble/vfs"
	"github.com/pkg/errors"
	"github.com/syndtr/goleveldb/leveldb"
)

const Name = "pebble"

// MetricsProperty is the only property Stat understands.
const MetricsProperty = "pebble.metrics"

var (
	ErrForeignSnapshot = errors.New("pebble: snapshot was not created by this connection")
	ErrUnknownProperty = errors.New("pebble: unknown property")
)

func init() {
	engine.Register(Driver{})
}

type Driver struct{}

func (Driver) Name() string {
	return Name
}

func (Driver) Open(name string, opts *engine.Options) (engine.Conn, error) {
	o := &pebble.Options{
		Cache:        pebble.NewCache(16 << 20),
		MaxOpenFiles: 1000,
		Levels: []pebble.LevelOptions{
			{TargetFileSize: 2 << 20, FilterPolicy: bloom.FilterPolicy(10)},
		},
	}
	defer o.Cache.Unref()
	if opts != nil {
		o.ErrorIfExists = opts.ErrorIfExists
	}
	db, err := pebble.Open(name, o)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return &Conn{db: db}, nil
}

func isStoreFile(name string) bool {
	switch {
	case name == "CURRENT", name == "LOCK":
		return true
	case strings.HasPrefix(name, "MANIFEST-"), strings.HasPrefix(name, "OPTIONS-"),
		strings.HasPrefix(name, "marker."):
		return true
	case strings.HasSuffix(name, ".sst"), strings.HasSuffix(name, ".log"),
		strings.HasSuffix(name, ".dbtmp"):
		return true
	}
	return false
}

func (Driver) Destroy(name string) error {
	entries, err := os.ReadDir(name)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return errors.WithStack(err)
	}
	lock, err := vfs.Default.Lock(filepath.Join(name, "LOCK"))
	if err != nil {
		return errors.WithStack(err)
	}
	for _, entry := range entries {
		if entry.IsDir() || !isStoreFile(entry.Name()) || entry.Name() == "LOCK" {
			continue
		}
		if rerr := os.Remove(filepath.Join(name, entry.Name())); rerr != nil && err == nil {
			err = rerr
		}
	}
	lock.Close()
	if err != nil {
		return errors.WithStack(err)
	}
	os.Remove(filepath.Join(name, "LOCK"))
	os.Remove(name)
	return nil
}

func (d Driver) Repair(name string) error {
	if _, err := os.Stat(name); err != nil {
		return errors.WithStack(err)
	}
	conn, err := d.Open(name, nil)
	if err != nil {
		return err
	}
	return conn.Close()
}

type Conn struct {
	db *pebble.DB
}

func writeOptions(wo *engine.WriteOptions) *pebble.WriteOptions {
	if wo != nil && wo.Sync {
		return pebble.Sync
	}
	return pebble.NoSync
}

func (c *Conn) snapshot(ro *engine.ReadOptions) (*Snapshot, error) {
	if ro == nil || ro.Snapshot == nil {
		return nil, nil
	}
	snap, ok := ro.Snapshot.(*Snapshot)
	if !ok || snap.conn != c {
		return nil, ErrForeignSnapshot
	}
	return snap, nil
}

func (c *Conn) Get(key []byte, ro *engine.ReadOptions) ([]byte, error) {
	snap, err := c.snapshot(ro)
	if err != nil {
		return nil, err
	}
	var reader pebble.Reader = c.db
	if snap != nil {
		reader = snap.snap
	}
	ori, closer, err := reader.Get(key)
	if err == pebble.ErrNotFound {
		return nil, engine.ErrNotFound
	}
	if err != nil {
		return nil, errors.WithStack(err)
	}
	defer closer.Close()

	val := make([]byte, len(ori))
	copy(val, ori)
	return val, nil
}

func (c *Conn) Put(key, value []byte, wo *engine.WriteOptions) error {
	return errors.WithStack(c.db.Set(key, value, writeOptions(wo)))
}

func (c *Conn) Delete(key []byte, wo *engine.WriteOptions) error {
	return errors.WithStack(c.db.Delete(key, writeOptions(wo)))
}

// Write replays the records into one pebble batch and commits it once.
func (c *Conn) Write(batch *leveldb.Batch, wo *engine.WriteOptions) error {
	b := c.db.NewBatch()
	defer b.Close()

	r := &engine.Replayer{
		OnPut: func(key, value []byte) error {
			return b.Set(key, value, nil)
		},
		OnDelete: func(key []byte) error {
			return b.Delete(key, nil)
		},
	}
	if err := batch.Replay(r); err != nil {
		return errors.WithStack(err)
	}
	if r.Failure != nil {
		return errors.WithStack(r.Failure)
	}
	return errors.WithStack(b.Commit(writeOptions(wo)))
}

func (c *Conn) NewSnapshot() (engine.Snapshot, error) {
	return &Snapshot{conn: c, snap: c.db.NewSnapshot()}, nil
}

func (c *Conn) NewIterator(ro *engine.ReadOptions) (engine.Iterator, error) {
	snap, err := c.snapshot(ro)
	if err != nil {
		return nil, err
	}
	var iter *pebble.Iterator
	if snap != nil {
		iter, err = snap.snap.NewIter(nil)
	} else {
		iter, err = c.db.NewIter(nil)
	}
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return &Iterator{Iterator: iter}, nil
}

func (c *Conn) Stat(property string) (string, error) {
	if property != MetricsProperty {
		return "", ErrUnknownProperty
	}
	return c.db.Metrics().String(), nil
}

func (c *Conn) Close() error {
	return errors.WithStack(c.db.Close())
}

type Snapshot struct {
	conn *Conn
	snap *pebble.Snapshot
}

func (s *Snapshot) Release() {
	s.snap.Close()
}

type Iterator struct {
	*pebble.Iterator
}

func (i *Iterator) Seek(key []byte) bool {
	return i.Iterator.SeekGE(key)
}

func (i *Iterator) Key() []byte {
	if !i.Iterator.Valid() {
		return nil
	}
	return i.Iterator.Key()
}

func (i *Iterator) Value() []byte {
	if !i.Iterator.Valid() {
		return nil
	}
	return i.Iterator.Value()
}

func (i *Iterator) Release() {
	i.Iterator.Close()
}
