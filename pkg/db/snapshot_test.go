package db

import (
	"fmt"
	"testing"

	"github.com/DeBankDeFi/tahani/pkg/utils"
	"github.com/stretchr/testify/require"
)

func TestSnapshotIsolation(t *testing.T) {
	forEachEngine(t, func(t *testing.T, engineName string) {
		d := openStore(t, engineName)
		put(t, d, "a", "1")

		snap, err := d.NewSnapshot()
		require.NoError(t, err)
		defer snap.Release()

		put(t, d, "a", "2", "b", "3")

		val, ok, err := snap.Get([]byte("a"))
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, "1", string(val))
		_, ok, err = snap.Get([]byte("b"))
		require.NoError(t, err)
		require.False(t, ok)

		pinned, err := d.NewIterator(snap)
		require.NoError(t, err)
		defer pinned.Destroy()
		require.True(t, pinned.Pinned())
		require.Equal(t, []string{"a"}, collect(t, pinned, pinned.SeekToFirst(), pinned.Next))
		require.True(t, pinned.SeekToFirst())
		v, err := pinned.Value()
		require.NoError(t, err)
		require.Equal(t, "1", string(v))

		live, err := d.NewIterator(nil)
		require.NoError(t, err)
		defer live.Destroy()
		require.False(t, live.Pinned())
		require.Equal(t, []string{"a", "b"}, collect(t, live, live.SeekToFirst(), live.Next))
	})
}

func TestSnapshotRelease(t *testing.T) {
	forEachEngine(t, func(t *testing.T, engineName string) {
		d := openStore(t, engineName)
		snap, err := d.NewSnapshot()
		require.NoError(t, err)
		require.Equal(t, SnapshotCreated, snap.State())
		require.Equal(t, fmt.Sprintf("<tahani/snapshot %q created>", d.Name()), snap.String())

		snap.Release()
		snap.Release()
		snap.finalize()
		require.Equal(t, SnapshotReleased, snap.State())

		_, _, err = snap.Get([]byte("a"))
		require.ErrorIs(t, err, utils.ErrSnapshotReleased)
		_, err = d.NewIterator(snap)
		require.ErrorIs(t, err, utils.ErrSnapshotReleased)

		reclaimed, err := d.NewSnapshot()
		require.NoError(t, err)
		reclaimed.finalize()
		require.Equal(t, SnapshotReleased, reclaimed.State())
		reclaimed.Release()
	})
}

func TestForeignSnapshot(t *testing.T) {
	a := openStore(t, "memdb")
	b := openStore(t, "memdb")

	snap, err := a.NewSnapshot()
	require.NoError(t, err)
	defer snap.Release()

	_, err = b.NewIterator(snap)
	require.ErrorIs(t, err, utils.ErrForeignSnapshot)
}

func TestCloseReleasesChildren(t *testing.T) {
	forEachEngine(t, func(t *testing.T, engineName string) {
		d := openStore(t, engineName)
		put(t, d, "a", "1")

		snap, err := d.NewSnapshot()
		require.NoError(t, err)
		it, err := d.NewIterator(snap)
		require.NoError(t, err)
		require.True(t, it.SeekToFirst())
		live, err := d.NewIterator(nil)
		require.NoError(t, err)

		require.NoError(t, d.Close())
		require.Equal(t, SnapshotReleased, snap.State())
		require.Equal(t, IteratorDestroyed, it.State())
		require.Equal(t, IteratorDestroyed, live.State())

		_, _, err = snap.Get([]byte("a"))
		require.ErrorIs(t, err, utils.ErrStoreClosed)

		require.False(t, it.Valid())
		require.False(t, it.Next())
		require.ErrorIs(t, it.Error(), utils.ErrStoreClosed)
		_, err = it.Key()
		require.ErrorIs(t, err, utils.ErrStoreClosed)
		_, err = it.Value()
		require.ErrorIs(t, err, utils.ErrStoreClosed)

		// releasing after close is a no-op
		snap.Release()
		it.Destroy()
		live.finalize()
		live.Destroy()
	})
}
