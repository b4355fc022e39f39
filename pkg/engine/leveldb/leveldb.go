// Package leveldb is the goleveldb engine driver. It is registered as
// "leveldb" and is the default engine.
package leveldb

import (
	"os"
	"path/filepath"

	"github.com/DeBankDeFi/tahani/pkg/engine"
	"github.com/pkg/errors"
	"github.com/syndtr/goleveldb/leveldb"
	lerrors "github.com/syndtr/goleveldb/leveldb/errors"
	"github.com/syndtr/goleveldb/leveldb/filter"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/storage"
)

const Name = "leveldb"

var ErrForeignSnapshot = errors.New("leveldb: snapshot was not created by this connection")

func init() {
	engine.Register(Driver{})
}

type Driver struct{}

func (Driver) Name() string {
	return Name
}

func (Driver) Open(name string, opts *engine.Options) (engine.Conn, error) {
	o := &opt.Options{
		Filter:                 filter.NewBloomFilter(10),
		DisableSeeksCompaction: true,
	}
	if opts != nil {
		o.ErrorIfExist = opts.ErrorIfExists
	}
	db, err := leveldb.OpenFile(name, o)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return &Conn{db: db}, nil
}

// Destroy takes the store lock, removes every file the storage layer knows
// about and then the directory itself if nothing foreign is left in it.
func (Driver) Destroy(name string) error {
	if _, err := os.Stat(name); os.IsNotExist(err) {
		return nil
	}
	stor, err := storage.OpenFile(name, false)
	if err != nil {
		return errors.WithStack(err)
	}
	fds, err := stor.List(storage.TypeAll)
	if err != nil {
		stor.Close()
		return errors.WithStack(err)
	}
	for _, fd := range fds {
		if rerr := stor.Remove(fd); rerr != nil && err == nil {
			err = rerr
		}
	}
	stor.Close()
	if err != nil {
		return errors.WithStack(err)
	}
	for _, aux := range []string{"CURRENT", "CURRENT.bak", "LOG", "LOG.old", "LOCK"} {
		os.Remove(filepath.Join(name, aux))
	}
	os.Remove(name)
	return nil
}

// Repair rebuilds the manifest from the table files found on disk.
func (Driver) Repair(name string) error {
	if _, err := os.Stat(name); err != nil {
		return errors.WithStack(err)
	}
	db, err := leveldb.RecoverFile(name, nil)
	if err != nil {
		return errors.WithStack(err)
	}
	return errors.WithStack(db.Close())
}

type Conn struct {
	db *leveldb.DB
}

func readOptions(ro *engine.ReadOptions) *opt.ReadOptions {
	if ro == nil {
		return nil
	}
	return &opt.ReadOptions{DontFillCache: ro.DontFillCache}
}

func writeOptions(wo *engine.WriteOptions) *opt.WriteOptions {
	if wo == nil {
		return nil
	}
	return &opt.WriteOptions{Sync: wo.Sync}
}

func (c *Conn) Get(key []byte, ro *engine.ReadOptions) ([]byte, error) {
	var (
		val []byte
		err error
	)
	if ro != nil && ro.Snapshot != nil {
		snap, ok := ro.Snapshot.(*Snapshot)
		if !ok || snap.conn != c {
			return nil, ErrForeignSnapshot
		}
		val, err = snap.snap.Get(key, readOptions(ro))
	} else {
		val, err = c.db.Get(key, readOptions(ro))
	}
	if err == lerrors.ErrNotFound {
		return nil, engine.ErrNotFound
	}
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return val, nil
}

func (c *Conn) Put(key, value []byte, wo *engine.WriteOptions) error {
	return errors.WithStack(c.db.Put(key, value, writeOptions(wo)))
}

func (c *Conn) Delete(key []byte, wo *engine.WriteOptions) error {
	return errors.WithStack(c.db.Delete(key, writeOptions(wo)))
}

func (c *Conn) Write(batch *leveldb.Batch, wo *engine.WriteOptions) error {
	return errors.WithStack(c.db.Write(batch, writeOptions(wo)))
}

func (c *Conn) NewSnapshot() (engine.Snapshot, error) {
	snap, err := c.db.GetSnapshot()
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return &Snapshot{conn: c, snap: snap}, nil
}

func (c *Conn) NewIterator(ro *engine.ReadOptions) (engine.Iterator, error) {
	if ro != nil && ro.Snapshot != nil {
		snap, ok := ro.Snapshot.(*Snapshot)
		if !ok || snap.conn != c {
			return nil, ErrForeignSnapshot
		}
		return snap.snap.NewIterator(nil, readOptions(ro)), nil
	}
	return c.db.NewIterator(nil, readOptions(ro)), nil
}

func (c *Conn) Stat(property string) (string, error) {
	v, err := c.db.GetProperty(property)
	return v, errors.WithStack(err)
}

func (c *Conn) Close() error {
	return errors.WithStack(c.db.Close())
}

type Snapshot struct {
	conn *Conn
	snap *leveldb.Snapshot
}

func (s *Snapshot) Release() {
	s.snap.Release()
}
