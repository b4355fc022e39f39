package db

import (
	"fmt"
	"testing"

	"github.com/DeBankDeFi/tahani/pkg/utils"
	"github.com/stretchr/testify/require"
)

func TestIteratorOrder(t *testing.T) {
	forEachEngine(t, func(t *testing.T, engineName string) {
		d := openStore(t, engineName)
		put(t, d, "e", "5", "a", "1", "c", "3", "ab", "2", "\xff", "x", "", "empty")

		it, err := d.NewIterator(nil)
		require.NoError(t, err)
		defer it.Destroy()

		forward := []string{"", "a", "ab", "c", "e", "\xff"}
		require.Equal(t, forward, collect(t, it, it.SeekToFirst(), it.Next))

		var backward []string
		for i := len(forward) - 1; i >= 0; i-- {
			backward = append(backward, forward[i])
		}
		require.Equal(t, backward, collect(t, it, it.SeekToLast(), it.Prev))
	})
}

func TestIteratorSeek(t *testing.T) {
	forEachEngine(t, func(t *testing.T, engineName string) {
		d := openStore(t, engineName)
		put(t, d, "a", "1", "c", "3", "e", "5")

		it, err := d.NewIterator(nil)
		require.NoError(t, err)
		defer it.Destroy()

		for _, tc := range []struct {
			seek  string
			valid bool
			key   string
		}{
			{seek: "", valid: true, key: "a"},
			{seek: "a", valid: true, key: "a"},
			{seek: "b", valid: true, key: "c"},
			{seek: "e", valid: true, key: "e"},
			{seek: "f", valid: false},
		} {
			require.Equal(t, tc.valid, it.Seek([]byte(tc.seek)), "seek %q", tc.seek)
			require.Equal(t, tc.valid, it.Valid())
			require.NoError(t, it.Error())
			if !tc.valid {
				continue
			}
			k, err := it.Key()
			require.NoError(t, err)
			require.Equal(t, tc.key, string(k), "seek %q", tc.seek)
		}
	})
}

func TestIteratorInvalidPosition(t *testing.T) {
	forEachEngine(t, func(t *testing.T, engineName string) {
		d := openStore(t, engineName)

		empty, err := d.NewIterator(nil)
		require.NoError(t, err)
		defer empty.Destroy()
		require.False(t, empty.SeekToFirst())
		require.False(t, empty.SeekToLast())
		require.NoError(t, empty.Error())

		put(t, d, "a", "1", "b", "2")
		it, err := d.NewIterator(nil)
		require.NoError(t, err)
		defer it.Destroy()

		// a fresh iterator is unpositioned and stepping it does nothing
		require.False(t, it.Valid())
		require.False(t, it.Next())
		require.False(t, it.Prev())
		_, err = it.Key()
		require.ErrorIs(t, err, utils.ErrIteratorInvalidPosition)
		_, err = it.Value()
		require.ErrorIs(t, err, utils.ErrIteratorInvalidPosition)

		// running off the end leaves it invalid until an explicit seek
		require.True(t, it.SeekToLast())
		require.False(t, it.Next())
		require.False(t, it.Prev())
		require.False(t, it.Valid())
		require.True(t, it.SeekToFirst())
		require.False(t, it.Prev())
		require.False(t, it.Next())

		require.True(t, it.Seek([]byte("b")))
		k, err := it.Key()
		require.NoError(t, err)
		require.Equal(t, "b", string(k))
	})
}

func TestIteratorCopiesEntries(t *testing.T) {
	d := openStore(t, "leveldb")
	put(t, d, "k", "v")

	it, err := d.NewIterator(nil)
	require.NoError(t, err)
	defer it.Destroy()
	require.True(t, it.SeekToFirst())

	k, err := it.Key()
	require.NoError(t, err)
	k[0] = 'x'
	again, err := it.Key()
	require.NoError(t, err)
	require.Equal(t, "k", string(again))
}

func TestIteratorDestroy(t *testing.T) {
	forEachEngine(t, func(t *testing.T, engineName string) {
		d := openStore(t, engineName)
		put(t, d, "a", "1")

		snap, err := d.NewSnapshot()
		require.NoError(t, err)
		defer snap.Release()
		it, err := d.NewIterator(snap)
		require.NoError(t, err)
		require.Equal(t, fmt.Sprintf("<tahani/iterator %q created pinned>", d.Name()), it.String())
		require.True(t, it.SeekToFirst())

		it.Destroy()
		it.Destroy()
		it.finalize()
		require.Equal(t, IteratorDestroyed, it.State())
		require.Equal(t, fmt.Sprintf("<tahani/iterator %q destroyed pinned>", d.Name()), it.String())

		require.False(t, it.Valid())
		require.False(t, it.SeekToFirst())
		require.ErrorIs(t, it.Error(), utils.ErrIteratorDestroyed)
		_, err = it.Key()
		require.ErrorIs(t, err, utils.ErrIteratorDestroyed)

		// the handle no longer tracks it, closing releases only what is left
		require.NoError(t, d.Close())
	})
}

func TestIteratorEngineError(t *testing.T) {
	d := openStore(t, faultyEngine)
	put(t, d, "a", "1")

	it, err := d.NewIterator(nil)
	require.NoError(t, err)
	defer it.Destroy()

	failIterators.Store(true)
	ok := it.SeekToFirst()
	failIterators.Store(false)
	require.False(t, ok)
	require.ErrorIs(t, it.Error(), utils.ErrStoreIO)
	require.Equal(t, errInjected.Error(), it.Error().Error())

	// the next positioning call clears it
	require.True(t, it.SeekToFirst())
	require.NoError(t, it.Error())
}
