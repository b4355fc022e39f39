package db

import (
	"testing"

	"github.com/DeBankDeFi/tahani/pkg/utils"
	"github.com/stretchr/testify/require"
)

func TestBatchWrite(t *testing.T) {
	forEachEngine(t, func(t *testing.T, engineName string) {
		d := openStore(t, engineName)
		put(t, d, "gone", "x")

		b := NewBatch()
		defer b.Destroy()
		require.NoError(t, b.Put([]byte("a"), []byte("1")))
		require.NoError(t, b.Put([]byte("b"), []byte("2")))
		require.NoError(t, b.Delete([]byte("gone")))
		require.Equal(t, 3, b.Len())
		require.Equal(t, len("a1b2gone"), b.ValueSize())

		// nothing is visible before the write
		_, ok, err := d.Get([]byte("a"))
		require.NoError(t, err)
		require.False(t, ok)

		require.NoError(t, b.Write(d))
		for k, want := range map[string]string{"a": "1", "b": "2"} {
			val, ok, err := d.Get([]byte(k))
			require.NoError(t, err)
			require.True(t, ok)
			require.Equal(t, want, string(val))
		}
		_, ok, err = d.Get([]byte("gone"))
		require.NoError(t, err)
		require.False(t, ok)

		// a batch is not tied to a handle
		other := openStore(t, engineName)
		require.NoError(t, b.Write(other))
		has, err := other.Has([]byte("b"))
		require.NoError(t, err)
		require.True(t, has)
	})
}

func TestBatchLifecycle(t *testing.T) {
	d := openStore(t, "memdb")

	b := NewBatch()
	require.Equal(t, BatchCreated, b.State())
	require.Equal(t, "<tahani/batch created len=0>", b.String())
	require.NoError(t, b.Put([]byte("a"), []byte("1")))

	// destroying without a write is fine, and destroying twice is a no-op
	b.Destroy()
	b.Destroy()
	b.finalize()
	require.Equal(t, BatchDestroyed, b.State())
	require.Equal(t, "<tahani/batch destroyed len=0>", b.String())
	require.Zero(t, b.Len())

	require.ErrorIs(t, b.Put([]byte("a"), []byte("1")), utils.ErrBatchDestroyed)
	require.ErrorIs(t, b.Delete([]byte("a")), utils.ErrBatchDestroyed)
	require.ErrorIs(t, b.Clear(), utils.ErrBatchDestroyed)
	require.ErrorIs(t, b.Write(d), utils.ErrBatchDestroyed)

	f := NewBatch()
	f.finalize()
	require.Equal(t, BatchDestroyed, f.State())
	f.Destroy()
}

func TestBatchWriteClosedStore(t *testing.T) {
	d := openStore(t, "memdb")
	require.NoError(t, d.Close())

	b := NewBatch()
	defer b.Destroy()
	require.NoError(t, b.Put([]byte("a"), []byte("1")))
	require.ErrorIs(t, b.Write(d), utils.ErrStoreClosed)
	require.ErrorIs(t, b.Write(nil), utils.ErrInvalidArgument)
	require.Equal(t, 1, b.Len())
}

func TestBatchWriteFailureKeepsRecords(t *testing.T) {
	d := openStore(t, faultyEngine)
	put(t, d, "a", "old")

	b := NewBatch()
	defer b.Destroy()
	require.NoError(t, b.Put([]byte("a"), []byte("new")))
	require.NoError(t, b.Put([]byte("b"), []byte("2")))

	failWrites.Store(true)
	err := b.Write(d)
	failWrites.Store(false)
	require.ErrorIs(t, err, utils.ErrStoreIO)
	require.ErrorIs(t, err, errInjected)
	require.Equal(t, errInjected.Error(), err.Error())

	// the store is untouched and the batch still holds both records
	val, _, err := d.Get([]byte("a"))
	require.NoError(t, err)
	require.Equal(t, "old", string(val))
	has, err := d.Has([]byte("b"))
	require.NoError(t, err)
	require.False(t, has)
	require.Equal(t, 2, b.Len())

	require.NoError(t, b.Write(d))
	val, _, err = d.Get([]byte("a"))
	require.NoError(t, err)
	require.Equal(t, "new", string(val))
}

func TestBatchClearDumpLoad(t *testing.T) {
	b := NewBatch()
	defer b.Destroy()
	require.NoError(t, b.Put([]byte("k"), []byte("v")))
	require.NoError(t, b.Delete([]byte("x")))

	data, err := b.Dump()
	require.NoError(t, err)

	require.NoError(t, b.Clear())
	require.Zero(t, b.Len())
	require.Zero(t, b.ValueSize())

	c := NewBatch()
	defer c.Destroy()
	require.NoError(t, c.Load(data))
	require.Equal(t, 2, c.Len())
	require.Equal(t, len("kvx"), c.ValueSize())

	require.ErrorIs(t, c.Load([]byte{1, 2, 3}), utils.ErrInvalidArgument)
}
