// Package inmem provides a process-local registry implementation, mostly
// useful in tests and single-node setups where several fabrics share one
// address book without a backing store.
package inmem

import (
	"context"
	"sync"

	"golang.org/x/exp/slices"

	"github.com/teachware/siblings/internal/generic"
	"github.com/teachware/siblings/registry"
)

type Registry struct {
	mut   sync.RWMutex
	addrs map[string]struct{}
}

var _ registry.Registry = (*Registry)(nil)

func New() *Registry {
	return &Registry{
		addrs: make(map[string]struct{}),
	}
}

func (r *Registry) Register(ctx context.Context, addr string) error {
	r.mut.Lock()
	r.addrs[addr] = struct{}{}
	r.mut.Unlock()

	return nil
}

func (r *Registry) Deregister(ctx context.Context, addr string) error {
	r.mut.Lock()
	delete(r.addrs, addr)
	r.mut.Unlock()

	return nil
}

func (r *Registry) List(ctx context.Context) ([]string, error) {
	r.mut.RLock()
	addrs := generic.MapKeys(r.addrs)
	r.mut.RUnlock()

	slices.Sort(addrs)

	return addrs, nil
}
