package db

// StoreState is the lifecycle state of a DB handle.
type StoreState int32

const (
	StoreOpen StoreState = iota
	StoreClosed
)

func (s StoreState) String() string {
	switch s {
	case StoreOpen:
		return "open"
	case StoreClosed:
		return "closed"
	}
	return "unknown"
}

type BatchState int32

const (
	BatchCreated BatchState = iota
	BatchDestroyed
)

func (s BatchState) String() string {
	switch s {
	case BatchCreated:
		return "created"
	case BatchDestroyed:
		return "destroyed"
	}
	return "unknown"
}

type SnapshotState int32

const (
	SnapshotCreated SnapshotState = iota
	SnapshotReleased
)

func (s SnapshotState) String() string {
	switch s {
	case SnapshotCreated:
		return "created"
	case SnapshotReleased:
		return "released"
	}
	return "unknown"
}

type IteratorState int32

const (
	IteratorCreated IteratorState = iota
	IteratorDestroyed
)

func (s IteratorState) String() string {
	switch s {
	case IteratorCreated:
		return "created"
	case IteratorDestroyed:
		return "destroyed"
	}
	return "unknown"
}

// Resource kinds, used as metric labels and log fields.
const (
	kindStore    = "store"
	kindBatch    = "batch"
	kindSnapshot = "snapshot"
	kindIterator = "iterator"
)
