package db

import (
	"fmt"
	"sort"
	"strings"

	"github.com/DeBankDeFi/tahani/pkg/utils"
)

// Namespace prefixes the free function names understood by CallFunc.
const Namespace = "tahani"

type (
	dbMethod       func(d *DB, args []interface{}) (interface{}, error)
	batchMethod    func(b *Batch, args []interface{}) (interface{}, error)
	snapshotMethod func(s *Snapshot, args []interface{}) (interface{}, error)
	iteratorMethod func(it *Iterator, args []interface{}) (interface{}, error)
	freeFunc       func(args []interface{}) (interface{}, error)
)

var dbMethods = map[string]dbMethod{
	"close": func(d *DB, args []interface{}) (interface{}, error) {
		if err := arity("close", args, 0); err != nil {
			return nil, err
		}
		return nil, d.Close()
	},
	"put": func(d *DB, args []interface{}) (interface{}, error) {
		if err := arity("put", args, 2); err != nil {
			return nil, err
		}
		key, value, err := keyValue("put", args)
		if err != nil {
			return nil, err
		}
		return nil, d.Put(key, value)
	},
	// get yields nil for a missing key.
	"get": func(d *DB, args []interface{}) (interface{}, error) {
		key, err := singleKey("get", args)
		if err != nil {
			return nil, err
		}
		val, ok, err := d.Get(key)
		if err != nil || !ok {
			return nil, err
		}
		return val, nil
	},
	"has": func(d *DB, args []interface{}) (interface{}, error) {
		key, err := singleKey("has", args)
		if err != nil {
			return nil, err
		}
		return d.Has(key)
	},
	"delete": func(d *DB, args []interface{}) (interface{}, error) {
		key, err := singleKey("delete", args)
		if err != nil {
			return nil, err
		}
		return nil, d.Delete(key)
	},
	"stat": func(d *DB, args []interface{}) (interface{}, error) {
		prop, err := singleKey("stat", args)
		if err != nil {
			return nil, err
		}
		return d.Stat(string(prop))
	},
}

// Batch mutations return the batch so calls can be chained.
var batchMethods = map[string]batchMethod{
	"put": func(b *Batch, args []interface{}) (interface{}, error) {
		if err := arity("put", args, 2); err != nil {
			return nil, err
		}
		key, value, err := keyValue("put", args)
		if err != nil {
			return nil, err
		}
		if err := b.Put(key, value); err != nil {
			return nil, err
		}
		return b, nil
	},
	"delete": func(b *Batch, args []interface{}) (interface{}, error) {
		key, err := singleKey("delete", args)
		if err != nil {
			return nil, err
		}
		if err := b.Delete(key); err != nil {
			return nil, err
		}
		return b, nil
	},
	"write": func(b *Batch, args []interface{}) (interface{}, error) {
		if err := arity("write", args, 1); err != nil {
			return nil, err
		}
		d, ok := args[0].(*DB)
		if !ok {
			return nil, badArgument("write", 0, "*db.DB", args[0])
		}
		if err := b.Write(d); err != nil {
			return nil, err
		}
		return b, nil
	},
	"destroy": func(b *Batch, args []interface{}) (interface{}, error) {
		if err := arity("destroy", args, 0); err != nil {
			return nil, err
		}
		b.Destroy()
		return nil, nil
	},
	"len": func(b *Batch, args []interface{}) (interface{}, error) {
		if err := arity("len", args, 0); err != nil {
			return nil, err
		}
		return b.Len(), nil
	},
	"clear": func(b *Batch, args []interface{}) (interface{}, error) {
		if err := arity("clear", args, 0); err != nil {
			return nil, err
		}
		if err := b.Clear(); err != nil {
			return nil, err
		}
		return b, nil
	},
}

var snapshotMethods = map[string]snapshotMethod{
	"release": func(s *Snapshot, args []interface{}) (interface{}, error) {
		if err := arity("release", args, 0); err != nil {
			return nil, err
		}
		s.Release()
		return nil, nil
	},
	"get": func(s *Snapshot, args []interface{}) (interface{}, error) {
		key, err := singleKey("get", args)
		if err != nil {
			return nil, err
		}
		val, ok, err := s.Get(key)
		if err != nil || !ok {
			return nil, err
		}
		return val, nil
	},
}

// Positioning operations yield whether the iterator landed on an entry.
var iteratorMethods = map[string]iteratorMethod{
	"destroy": func(it *Iterator, args []interface{}) (interface{}, error) {
		if err := arity("destroy", args, 0); err != nil {
			return nil, err
		}
		it.Destroy()
		return nil, nil
	},
	"valid?": func(it *Iterator, args []interface{}) (interface{}, error) {
		if err := arity("valid?", args, 0); err != nil {
			return nil, err
		}
		return it.Valid(), nil
	},
	"seek-to-first": positioning("seek-to-first", (*Iterator).SeekToFirst),
	"seek-to-last":  positioning("seek-to-last", (*Iterator).SeekToLast),
	"next":          positioning("next", (*Iterator).Next),
	"prev":          positioning("prev", (*Iterator).Prev),
	"seek": func(it *Iterator, args []interface{}) (interface{}, error) {
		key, err := singleKey("seek", args)
		if err != nil {
			return nil, err
		}
		ok := it.Seek(key)
		return ok, it.Error()
	},
	"key": func(it *Iterator, args []interface{}) (interface{}, error) {
		if err := arity("key", args, 0); err != nil {
			return nil, err
		}
		return it.Key()
	},
	"value": func(it *Iterator, args []interface{}) (interface{}, error) {
		if err := arity("value", args, 0); err != nil {
			return nil, err
		}
		return it.Value()
	},
}

func positioning(op string, move func(*Iterator) bool) iteratorMethod {
	return func(it *Iterator, args []interface{}) (interface{}, error) {
		if err := arity(op, args, 0); err != nil {
			return nil, err
		}
		ok := move(it)
		return ok, it.Error()
	}
}

// freeFuncs are the namespace functions that do not take a capability as
// their first argument.
var freeFuncs = map[string]freeFunc{
	// open takes a store name and an optional *Options.
	"open": func(args []interface{}) (interface{}, error) {
		if len(args) != 1 && len(args) != 2 {
			return nil, utils.Errorf(utils.InvalidArgumentErrorCode,
				fmt.Sprintf("open: want 1 or 2 arguments, got %d", len(args)))
		}
		name, err := bytesArg("open", args, 0)
		if err != nil {
			return nil, err
		}
		opts, err := optionsArg("open", args)
		if err != nil {
			return nil, err
		}
		return Open(string(name), opts)
	},
	"destroy-store": byNameFunc("destroy-store", Destroy),
	"repair-store":  byNameFunc("repair-store", Repair),
	"batch": func(args []interface{}) (interface{}, error) {
		if err := arity("batch", args, 0); err != nil {
			return nil, err
		}
		return NewBatch(), nil
	},
	"snapshot": func(args []interface{}) (interface{}, error) {
		if err := arity("snapshot", args, 1); err != nil {
			return nil, err
		}
		d, ok := args[0].(*DB)
		if !ok || d == nil {
			return nil, badArgument("snapshot", 0, "*db.DB", args[0])
		}
		return d.NewSnapshot()
	},
	// iterator takes a handle and an optional snapshot of it.
	"iterator": func(args []interface{}) (interface{}, error) {
		if len(args) != 1 && len(args) != 2 {
			return nil, utils.Errorf(utils.InvalidArgumentErrorCode,
				fmt.Sprintf("iterator: want 1 or 2 arguments, got %d", len(args)))
		}
		d, ok := args[0].(*DB)
		if !ok || d == nil {
			return nil, badArgument("iterator", 0, "*db.DB", args[0])
		}
		var snap *Snapshot
		if len(args) == 2 && args[1] != nil {
			if snap, ok = args[1].(*Snapshot); !ok {
				return nil, badArgument("iterator", 1, "*db.Snapshot", args[1])
			}
		}
		return d.NewIterator(snap)
	},
}

func byNameFunc(op string, fn func(string, *Options) error) freeFunc {
	return func(args []interface{}) (interface{}, error) {
		if len(args) != 1 && len(args) != 2 {
			return nil, utils.Errorf(utils.InvalidArgumentErrorCode,
				fmt.Sprintf("%s: want 1 or 2 arguments, got %d", op, len(args)))
		}
		name, err := bytesArg(op, args, 0)
		if err != nil {
			return nil, err
		}
		opts, err := optionsArg(op, args)
		if err != nil {
			return nil, err
		}
		return nil, fn(string(name), opts)
	}
}

// Call runs the operation op on a *DB, *Batch, *Snapshot or *Iterator.
// Keys, values and names may be given as []byte or string.
func Call(target interface{}, op string, args ...interface{}) (interface{}, error) {
	switch t := target.(type) {
	case *DB:
		if m, ok := dbMethods[op]; ok && t != nil {
			return m(t, args)
		}
	case *Batch:
		if m, ok := batchMethods[op]; ok && t != nil {
			return m(t, args)
		}
	case *Snapshot:
		if m, ok := snapshotMethods[op]; ok && t != nil {
			return m(t, args)
		}
	case *Iterator:
		if m, ok := iteratorMethods[op]; ok && t != nil {
			return m(t, args)
		}
	default:
		return nil, utils.Errorf(utils.InvalidArgumentErrorCode,
			fmt.Sprintf("%T has no operations", target))
	}
	return nil, unknownOperation(kindName(target), op)
}

// CallFunc runs a namespaced function such as "tahani/open". Names that are
// not namespace functions are dispatched as Call(args[0], op, args[1:]...),
// so "tahani/put" with a batch first is the batch put.
func CallFunc(name string, args ...interface{}) (interface{}, error) {
	op, ok := strings.CutPrefix(name, Namespace+"/")
	if !ok {
		return nil, unknownOperation(Namespace, name)
	}
	if fn, ok := freeFuncs[op]; ok {
		return fn(args)
	}
	if len(args) == 0 {
		return nil, unknownOperation(Namespace, op)
	}
	return Call(args[0], op, args[1:]...)
}

// Operations lists the operation names a capability answers, sorted. A nil
// target lists the namespace functions.
func Operations(target interface{}) []string {
	var names []string
	switch target.(type) {
	case *DB:
		names = keys(dbMethods)
	case *Batch:
		names = keys(batchMethods)
	case *Snapshot:
		names = keys(snapshotMethods)
	case *Iterator:
		names = keys(iteratorMethods)
	case nil:
		names = keys(freeFuncs)
	}
	sort.Strings(names)
	return names
}

func keys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

func kindName(target interface{}) string {
	switch target.(type) {
	case *DB:
		return "db"
	case *Batch:
		return kindBatch
	case *Snapshot:
		return kindSnapshot
	case *Iterator:
		return kindIterator
	}
	return fmt.Sprintf("%T", target)
}

func unknownOperation(kind, op string) error {
	return utils.Errorf(utils.UnknownOperationErrorCode, fmt.Sprintf("%s: unknown operation %q", kind, op))
}

func badArgument(op string, i int, want string, got interface{}) error {
	return utils.Errorf(utils.InvalidArgumentErrorCode,
		fmt.Sprintf("%s: argument %d: want %s, got %T", op, i, want, got))
}

func arity(op string, args []interface{}, n int) error {
	if len(args) != n {
		return utils.Errorf(utils.InvalidArgumentErrorCode,
			fmt.Sprintf("%s: want %d arguments, got %d", op, n, len(args)))
	}
	return nil
}

func bytesArg(op string, args []interface{}, i int) ([]byte, error) {
	switch v := args[i].(type) {
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	}
	return nil, badArgument(op, i, "[]byte or string", args[i])
}

func singleKey(op string, args []interface{}) ([]byte, error) {
	if err := arity(op, args, 1); err != nil {
		return nil, err
	}
	return bytesArg(op, args, 0)
}

func keyValue(op string, args []interface{}) ([]byte, []byte, error) {
	key, err := bytesArg(op, args, 0)
	if err != nil {
		return nil, nil, err
	}
	value, err := bytesArg(op, args, 1)
	if err != nil {
		return nil, nil, err
	}
	return key, value, nil
}

func optionsArg(op string, args []interface{}) (*Options, error) {
	if len(args) < 2 || args[1] == nil {
		return nil, nil
	}
	opts, ok := args[1].(*Options)
	if !ok {
		return nil, badArgument(op, 1, "*db.Options", args[1])
	}
	return opts, nil
}
