// Package memdb is a process-local engine keeping each store in a
// copy-on-write B-tree, registered as "memdb". Stores live until destroyed or
// until the process exits. Snapshots and iterators work on lazy clones of the
// tree, so an iterator without a snapshot sees the store as of its creation.
package memdb

import (
	"bytes"
	"fmt"
	"strconv"
	"sync"

	"github.com/DeBankDeFi/tahani/pkg/engine"
	"github.com/google/btree"
	"github.com/pkg/errors"
	"github.com/syndtr/goleveldb/leveldb"
)

const Name = "memdb"

// LenProperty reports the number of live keys.
const LenProperty = "memdb.len"

var (
	ErrClosed           = errors.New("memdb: closed")
	ErrForeignSnapshot  = errors.New("memdb: snapshot was not created by this connection")
	ErrSnapshotReleased = errors.New("memdb: snapshot released")
	ErrUnknownProperty  = errors.New("memdb: unknown property")
)

func init() {
	engine.Register(Driver{})
}

type entry struct {
	key   []byte
	value []byte
}

func less(a, b entry) bool {
	return bytes.Compare(a.key, b.key) < 0
}

type store struct {
	mu   sync.RWMutex
	tree *btree.BTreeG[entry]
	open bool
}

var registry = struct {
	sync.Mutex
	stores map[string]*store
}{stores: make(map[string]*store)}

type Driver struct{}

func (Driver) Name() string {
	return Name
}

func (Driver) Open(name string, opts *engine.Options) (engine.Conn, error) {
	registry.Lock()
	defer registry.Unlock()

	s, ok := registry.stores[name]
	switch {
	case ok && opts != nil && opts.ErrorIfExists:
		return nil, fmt.Errorf("memdb: %s: already exists", name)
	case ok && s.open:
		return nil, fmt.Errorf("memdb: %s: already open", name)
	case !ok:
		s = &store{tree: btree.NewG(32, less)}
		registry.stores[name] = s
	}
	s.open = true
	return &Conn{store: s}, nil
}

func (Driver) Destroy(name string) error {
	registry.Lock()
	defer registry.Unlock()

	s, ok := registry.stores[name]
	if !ok {
		return nil
	}
	if s.open {
		return fmt.Errorf("memdb: %s: in use", name)
	}
	delete(registry.stores, name)
	return nil
}

// Repair has nothing to recover; it only checks the store exists.
func (Driver) Repair(name string) error {
	registry.Lock()
	defer registry.Unlock()

	if _, ok := registry.stores[name]; !ok {
		return fmt.Errorf("memdb: %s: does not exist", name)
	}
	return nil
}

type Conn struct {
	store  *store
	closed bool
}

func (c *Conn) tree(ro *engine.ReadOptions) (*btree.BTreeG[entry], error) {
	if ro == nil || ro.Snapshot == nil {
		return nil, nil
	}
	snap, ok := ro.Snapshot.(*Snapshot)
	if !ok || snap.conn != c {
		return nil, ErrForeignSnapshot
	}
	if snap.tree == nil {
		return nil, ErrSnapshotReleased
	}
	return snap.tree, nil
}

func (c *Conn) Get(key []byte, ro *engine.ReadOptions) ([]byte, error) {
	tree, err := c.tree(ro)
	if err != nil {
		return nil, err
	}
	if tree == nil {
		c.store.mu.RLock()
		defer c.store.mu.RUnlock()
		tree = c.store.tree
	}
	e, ok := tree.Get(entry{key: key})
	if !ok {
		return nil, engine.ErrNotFound
	}
	return append([]byte{}, e.value...), nil
}

func (c *Conn) Put(key, value []byte, _ *engine.WriteOptions) error {
	c.store.mu.Lock()
	defer c.store.mu.Unlock()
	c.store.tree.ReplaceOrInsert(entry{
		key:   append([]byte{}, key...),
		value: append([]byte{}, value...),
	})
	return nil
}

func (c *Conn) Delete(key []byte, _ *engine.WriteOptions) error {
	c.store.mu.Lock()
	defer c.store.mu.Unlock()
	c.store.tree.Delete(entry{key: key})
	return nil
}

// Write applies the batch to a clone and swaps it in, so readers see either
// none or all of the records.
func (c *Conn) Write(batch *leveldb.Batch, _ *engine.WriteOptions) error {
	c.store.mu.Lock()
	defer c.store.mu.Unlock()

	next := c.store.tree.Clone()
	r := &engine.Replayer{
		OnPut: func(key, value []byte) error {
			next.ReplaceOrInsert(entry{
				key:   append([]byte{}, key...),
				value: append([]byte{}, value...),
			})
			return nil
		},
		OnDelete: func(key []byte) error {
			next.Delete(entry{key: key})
			return nil
		},
	}
	if err := batch.Replay(r); err != nil {
		return errors.WithStack(err)
	}
	c.store.tree = next
	return nil
}

func (c *Conn) NewSnapshot() (engine.Snapshot, error) {
	c.store.mu.Lock()
	defer c.store.mu.Unlock()
	return &Snapshot{conn: c, tree: c.store.tree.Clone()}, nil
}

func (c *Conn) NewIterator(ro *engine.ReadOptions) (engine.Iterator, error) {
	tree, err := c.tree(ro)
	if err != nil {
		return nil, err
	}
	if tree == nil {
		c.store.mu.Lock()
		tree = c.store.tree.Clone()
		c.store.mu.Unlock()
	}
	return &Iterator{tree: tree}, nil
}

func (c *Conn) Stat(property string) (string, error) {
	if property != LenProperty {
		return "", ErrUnknownProperty
	}
	c.store.mu.RLock()
	defer c.store.mu.RUnlock()
	return strconv.Itoa(c.store.tree.Len()), nil
}

func (c *Conn) Close() error {
	registry.Lock()
	defer registry.Unlock()
	if c.closed {
		return ErrClosed
	}
	c.closed = true
	c.store.open = false
	return nil
}

type Snapshot struct {
	conn *Conn
	tree *btree.BTreeG[entry]
}

func (s *Snapshot) Release() {
	s.tree = nil
}

type Iterator struct {
	tree  *btree.BTreeG[entry]
	cur   entry
	valid bool
}

func (i *Iterator) First() bool {
	i.cur, i.valid = i.tree.Min()
	return i.valid
}

func (i *Iterator) Last() bool {
	i.cur, i.valid = i.tree.Max()
	return i.valid
}

func (i *Iterator) Seek(key []byte) bool {
	i.valid = false
	i.tree.AscendGreaterOrEqual(entry{key: key}, func(e entry) bool {
		i.cur, i.valid = e, true
		return false
	})
	return i.valid
}

func (i *Iterator) Next() bool {
	if !i.valid {
		return false
	}
	from := i.cur.key
	i.valid = false
	i.tree.AscendGreaterOrEqual(entry{key: from}, func(e entry) bool {
		if bytes.Equal(e.key, from) {
			return true
		}
		i.cur, i.valid = e, true
		return false
	})
	return i.valid
}

func (i *Iterator) Prev() bool {
	if !i.valid {
		return false
	}
	from := i.cur.key
	i.valid = false
	i.tree.DescendLessOrEqual(entry{key: from}, func(e entry) bool {
		if bytes.Equal(e.key, from) {
			return true
		}
		i.cur, i.valid = e, true
		return false
	})
	return i.valid
}

func (i *Iterator) Valid() bool {
	return i.valid
}

func (i *Iterator) Error() error {
	return nil
}

func (i *Iterator) Key() []byte {
	if !i.valid {
		return nil
	}
	return i.cur.key
}

func (i *Iterator) Value() []byte {
	if !i.valid {
		return nil
	}
	return i.cur.value
}

func (i *Iterator) Release() {
	i.valid = false
	i.tree = nil
}
