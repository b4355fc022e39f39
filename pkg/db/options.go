package db

import (
	"github.com/DeBankDeFi/tahani/pkg/engine"
	leveldbengine "github.com/DeBankDeFi/tahani/pkg/engine/leveldb"
)

// DefaultEngine is used when Options.Engine is empty.
const DefaultEngine = leveldbengine.Name

// Options configures Open, Destroy and Repair. A nil *Options means the
// defaults: the goleveldb engine, create-if-missing, unsynced writes.
type Options struct {
	// Engine names a registered driver, see engine.Drivers.
	Engine string

	// ErrorIfExists makes Open fail when the store already exists. Missing
	// stores are always created.
	ErrorIfExists bool

	// Sync makes every write wait until the engine log reaches stable storage.
	Sync bool

	// DontFillCache stops point reads from populating the engine block cache.
	// Iterators never fill it.
	DontFillCache bool
}

func (o *Options) engineName() string {
	if o == nil || o.Engine == "" {
		return DefaultEngine
	}
	return o.Engine
}

func (o *Options) engineOptions() *engine.Options {
	if o == nil {
		return &engine.Options{}
	}
	return &engine.Options{ErrorIfExists: o.ErrorIfExists}
}

func (o *Options) readOptions() *engine.ReadOptions {
	if o == nil {
		return &engine.ReadOptions{}
	}
	return &engine.ReadOptions{DontFillCache: o.DontFillCache}
}

func (o *Options) writeOptions() *engine.WriteOptions {
	if o == nil {
		return &engine.WriteOptions{}
	}
	return &engine.WriteOptions{Sync: o.Sync}
}
