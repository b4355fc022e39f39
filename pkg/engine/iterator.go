package engine

import (
	"github.com/syndtr/goleveldb/leveldb"
)

// Iterator is a cursor over an ordered key space.
type Iterator interface {
	// First moves the iterator to the first key/value pair.
	// It returns whether such pair exist.
	First() bool

	// Last moves the iterator to the last key/value pair.
	// It returns whether such pair exist.
	Last() bool

	// Seek moves the iterator to the first key/value pair whose key is greater
	// than or equal to the given key.
	// It returns whether such pair exist.
	Seek(key []byte) bool

	// Next moves the iterator to the next key/value pair.
	// It returns false if the iterator is exhausted.
	Next() bool

	// Prev moves the iterator to the previous key/value pair.
	// It returns false if the iterator is exhausted.
	Prev() bool

	Valid() bool

	// Error returns any accumulated error. Exhausting all the key/value pairs
	// is not considered to be an error.
	Error() error

	// Key returns the key of the current key/value pair, or nil if done.
	// The contents may change on the next positioning call.
	Key() []byte

	// Value returns the value of the current key/value pair, or nil if done.
	// The contents may change on the next positioning call.
	Value() []byte

	Releaser
}

// Replayer feeds the records of a batch into a writer, stopping at the first
// failure.
type Replayer struct {
	OnPut    func(key, value []byte) error
	OnDelete func(key []byte) error

	Failure error
}

var _ leveldb.BatchReplay = (*Replayer)(nil)

func (r *Replayer) Put(key, value []byte) {
	if r.Failure != nil {
		return
	}
	r.Failure = r.OnPut(key, value)
}

func (r *Replayer) Delete(key []byte) {
	if r.Failure != nil {
		return
	}
	r.Failure = r.OnDelete(key)
}
