package engine

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/syndtr/goleveldb/leveldb"
)

// TestSuiteEngine checks a driver against the contract the handle layer
// relies on. newName returns a fresh store name for each sub-test.
func TestSuiteEngine(t *testing.T, d Driver, newName func() string) {
	open := func(t *testing.T, name string) Conn {
		conn, err := d.Open(name, nil)
		require.NoErrorf(t, err, "failed to open %s", name)
		return conn
	}

	t.Run("PointOps", func(t *testing.T) {
		conn := open(t, newName())
		defer conn.Close()

		_, err := conn.Get([]byte("missing"), nil)
		require.ErrorIs(t, err, ErrNotFound)

		require.NoError(t, conn.Put([]byte("k"), []byte("v"), nil))
		val, err := conn.Get([]byte("k"), nil)
		require.NoError(t, err)
		require.Equal(t, []byte("v"), val)

		require.NoError(t, conn.Put([]byte{}, []byte{}, &WriteOptions{Sync: true}))
		val, err = conn.Get([]byte{}, nil)
		require.NoError(t, err)
		require.Len(t, val, 0)

		require.NoError(t, conn.Delete([]byte("k"), nil))
		_, err = conn.Get([]byte("k"), nil)
		require.ErrorIs(t, err, ErrNotFound)

		// deleting an absent key is not an error
		require.NoError(t, conn.Delete([]byte("k"), nil))
	})

	t.Run("ErrorIfExists", func(t *testing.T) {
		name := newName()
		conn := open(t, name)
		require.NoError(t, conn.Close())

		_, err := d.Open(name, &Options{ErrorIfExists: true})
		require.Error(t, err, "expected open of an existing store to fail")
	})

	t.Run("BatchWrite", func(t *testing.T) {
		conn := open(t, newName())
		defer conn.Close()

		require.NoError(t, conn.Put([]byte("gone"), []byte("x"), nil))

		batch := new(leveldb.Batch)
		batch.Put([]byte("a"), []byte("1"))
		batch.Put([]byte("b"), []byte("2"))
		batch.Delete([]byte("gone"))
		batch.Put([]byte("a"), []byte("3"))
		require.NoError(t, conn.Write(batch, nil))

		val, err := conn.Get([]byte("a"), nil)
		require.NoError(t, err)
		require.Equal(t, []byte("3"), val)
		val, err = conn.Get([]byte("b"), nil)
		require.NoError(t, err)
		require.Equal(t, []byte("2"), val)
		_, err = conn.Get([]byte("gone"), nil)
		require.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("SnapshotIterator", func(t *testing.T) {
		conn := open(t, newName())
		defer conn.Close()

		require.NoError(t, conn.Put([]byte("k"), []byte("v1"), nil))
		snap, err := conn.NewSnapshot()
		require.NoError(t, err)
		require.NoError(t, conn.Put([]byte("k"), []byte("v2"), nil))
		require.NoError(t, conn.Put([]byte("later"), []byte("x"), nil))

		val, err := conn.Get([]byte("k"), &ReadOptions{Snapshot: snap})
		require.NoError(t, err)
		require.Equal(t, []byte("v1"), val)
		_, err = conn.Get([]byte("later"), &ReadOptions{Snapshot: snap})
		require.ErrorIs(t, err, ErrNotFound)

		iter, err := conn.NewIterator(&ReadOptions{Snapshot: snap, DontFillCache: true})
		require.NoError(t, err)
		require.True(t, iter.First())
		require.Equal(t, []byte("k"), iter.Key())
		require.Equal(t, []byte("v1"), iter.Value())
		require.False(t, iter.Next())
		iter.Release()

		iter, err = conn.NewIterator(&ReadOptions{DontFillCache: true})
		require.NoError(t, err)
		require.True(t, iter.Seek([]byte("k")))
		require.Equal(t, []byte("v2"), iter.Value())
		iter.Release()

		snap.Release()
	})

	t.Run("IteratorOrder", func(t *testing.T) {
		conn := open(t, newName())
		defer conn.Close()

		for _, k := range []string{"e", "a", "c", "ab", "\xff", ""} {
			require.NoError(t, conn.Put([]byte(k), []byte("v-"+k), nil))
		}
		iter, err := conn.NewIterator(nil)
		require.NoError(t, err)
		defer iter.Release()

		require.False(t, iter.Valid())

		var forward [][]byte
		for ok := iter.First(); ok; ok = iter.Next() {
			forward = append(forward, append([]byte{}, iter.Key()...))
		}
		require.NoError(t, iter.Error())
		require.Len(t, forward, 6)
		for i := 1; i < len(forward); i++ {
			require.True(t, bytes.Compare(forward[i-1], forward[i]) < 0)
		}

		var backward [][]byte
		for ok := iter.Last(); ok; ok = iter.Prev() {
			backward = append(backward, append([]byte{}, iter.Key()...))
		}
		require.Len(t, backward, 6)
		for i := range backward {
			require.Equal(t, forward[len(forward)-1-i], backward[i])
		}

		require.True(t, iter.Seek([]byte("b")))
		require.Equal(t, []byte("c"), iter.Key())
		require.False(t, iter.Seek([]byte("\xff\x00")))
		require.False(t, iter.Valid())
	})

	t.Run("DestroyRepair", func(t *testing.T) {
		name := newName()
		conn := open(t, name)
		require.NoError(t, conn.Put([]byte("k"), []byte("v"), nil))
		require.NoError(t, conn.Close())

		require.NoError(t, d.Repair(name))
		conn = open(t, name)
		val, err := conn.Get([]byte("k"), nil)
		require.NoError(t, err)
		require.Equal(t, []byte("v"), val)
		require.NoError(t, conn.Close())

		require.NoError(t, d.Destroy(name))
		conn = open(t, name)
		_, err = conn.Get([]byte("k"), nil)
		require.ErrorIs(t, err, ErrNotFound)
		require.NoError(t, conn.Close())

		// destroying a store that never existed is fine
		require.NoError(t, d.Destroy(newName()))
	})
}
