package db

import (
	"errors"
	"fmt"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/DeBankDeFi/tahani/pkg/engine"
	"github.com/DeBankDeFi/tahani/pkg/engine/memdb"
	"github.com/stretchr/testify/require"
	"github.com/syndtr/goleveldb/leveldb"
)

// faultyEngine is memdb with switchable write and iterator failures.
const faultyEngine = "faulty"

var (
	errInjected = errors.New("faulty: injected failure")

	failWrites    atomic.Bool
	failIterators atomic.Bool
)

func init() {
	engine.Register(faultyDriver{})
}

type faultyDriver struct {
	memdb.Driver
}

func (faultyDriver) Name() string {
	return faultyEngine
}

func (d faultyDriver) Open(name string, opts *engine.Options) (engine.Conn, error) {
	conn, err := d.Driver.Open(name, opts)
	if err != nil {
		return nil, err
	}
	return &faultyConn{Conn: conn}, nil
}

type faultyConn struct {
	engine.Conn
}

func (c *faultyConn) Write(batch *leveldb.Batch, wo *engine.WriteOptions) error {
	if failWrites.Load() {
		return errInjected
	}
	return c.Conn.Write(batch, wo)
}

func (c *faultyConn) NewIterator(ro *engine.ReadOptions) (engine.Iterator, error) {
	iter, err := c.Conn.NewIterator(ro)
	if err != nil {
		return nil, err
	}
	return &faultyIterator{Iterator: iter}, nil
}

type faultyIterator struct {
	engine.Iterator
}

func (i *faultyIterator) Error() error {
	if failIterators.Load() {
		return errInjected
	}
	return i.Iterator.Error()
}

var engines = []string{"leveldb", "pebble", "memdb"}

var storeSeq atomic.Int64

// storeName returns a name no other test uses. Disk engines get a path under
// the test's temp dir.
func storeName(t *testing.T, engineName string) string {
	n := storeSeq.Add(1)
	if engineName == "memdb" || engineName == faultyEngine {
		return fmt.Sprintf("%s/%d", t.Name(), n)
	}
	return filepath.Join(t.TempDir(), fmt.Sprintf("store-%d", n))
}

func openStore(t *testing.T, engineName string) *DB {
	d, err := Open(storeName(t, engineName), &Options{Engine: engineName})
	require.NoError(t, err)
	t.Cleanup(func() {
		d.Close()
	})
	return d
}

func forEachEngine(t *testing.T, fn func(t *testing.T, engineName string)) {
	for _, name := range engines {
		t.Run(name, func(t *testing.T) {
			fn(t, name)
		})
	}
}

func put(t *testing.T, d *DB, kvs ...string) {
	require.Zero(t, len(kvs)%2)
	for i := 0; i < len(kvs); i += 2 {
		require.NoError(t, d.Put([]byte(kvs[i]), []byte(kvs[i+1])))
	}
}

// collect walks the iterator from its current position with step and returns
// the keys seen.
func collect(t *testing.T, it *Iterator, ok bool, step func() bool) []string {
	var keys []string
	for ; ok; ok = step() {
		k, err := it.Key()
		require.NoError(t, err)
		keys = append(keys, string(k))
	}
	require.NoError(t, it.Error())
	return keys
}
