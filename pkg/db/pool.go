package db

import (
	"fmt"
	"sort"
	"sync"

	"github.com/DeBankDeFi/tahani/pkg/utils"
	"golang.org/x/sync/errgroup"
)

// Pool is a set of open handles addressed by store name.
type Pool struct {
	sync.RWMutex
	dbs  map[string]*DB
	opts *Options
}

// NewPool returns an empty pool that opens stores with opts.
func NewPool(opts *Options) *Pool {
	return &Pool{
		dbs:  make(map[string]*DB),
		opts: opts,
	}
}

// Open opens the named stores concurrently and registers them. If any open
// fails, the stores opened by this call are closed again and the first error
// is returned.
func (p *Pool) Open(names ...string) error {
	opened := make([]*DB, len(names))
	var g errgroup.Group
	for i, name := range names {
		i, name := i, name
		g.Go(func() error {
			d, err := Open(name, p.opts)
			if err != nil {
				return err
			}
			opened[i] = d
			return nil
		})
	}
	err := g.Wait()
	if err == nil {
		p.Lock()
		for _, d := range opened {
			if _, ok := p.dbs[d.Name()]; ok {
				err = utils.Errorf(utils.InvalidArgumentErrorCode,
					fmt.Sprintf("store %q already in pool", d.Name()))
				break
			}
		}
		if err == nil {
			for _, d := range opened {
				p.dbs[d.Name()] = d
			}
		}
		p.Unlock()
	}
	if err != nil {
		for _, d := range opened {
			if d != nil {
				d.Close()
			}
		}
	}
	return err
}

// Register adds an already open handle.
func (p *Pool) Register(d *DB) error {
	p.Lock()
	defer p.Unlock()
	if _, ok := p.dbs[d.Name()]; ok {
		return utils.Errorf(utils.InvalidArgumentErrorCode,
			fmt.Sprintf("store %q already in pool", d.Name()))
	}
	p.dbs[d.Name()] = d
	return nil
}

func (p *Pool) Get(name string) (*DB, error) {
	p.RLock()
	defer p.RUnlock()
	d, ok := p.dbs[name]
	if !ok {
		return nil, utils.Errorf(utils.InvalidArgumentErrorCode,
			fmt.Sprintf("store %q not in pool", name))
	}
	return d, nil
}

func (p *Pool) Names() []string {
	p.RLock()
	defer p.RUnlock()
	names := keys(p.dbs)
	sort.Strings(names)
	return names
}

// BatchItem pairs a batch with the store it is written to.
type BatchItem struct {
	Name  string
	Batch *Batch
}

// WriteBatches writes each batch to its store in order and stops at the first
// failure. Writes across stores are not atomic as a whole.
func (p *Pool) WriteBatches(items []BatchItem) error {
	p.RLock()
	defer p.RUnlock()
	for _, item := range items {
		d, ok := p.dbs[item.Name]
		if !ok {
			return utils.Errorf(utils.InvalidArgumentErrorCode,
				fmt.Sprintf("store %q not in pool", item.Name))
		}
		if err := item.Batch.Write(d); err != nil {
			return err
		}
	}
	return nil
}

// CloseAll closes every handle concurrently and empties the pool. It returns
// the first close error.
func (p *Pool) CloseAll() error {
	p.Lock()
	dbs := p.dbs
	p.dbs = make(map[string]*DB)
	p.Unlock()

	var g errgroup.Group
	for _, d := range dbs {
		g.Go(d.Close)
	}
	return g.Wait()
}
