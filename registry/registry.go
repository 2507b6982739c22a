// Package registry defines the persisted set of sibling addresses that
// instances use to discover each other. The registry is the source of truth
// for who to try to reach; established connections are merely a cache on
// top of it.
package registry

import (
	"context"
)

// Registry is the address book shared by all siblings of one service.
// Implementations are expected to be safe for concurrent use.
type Registry interface {
	// Register inserts the address. Registering an address that is already
	// present is not an error.
	Register(ctx context.Context, addr string) error

	// Deregister removes the address. Removing an address that is already
	// absent is not an error.
	Deregister(ctx context.Context, addr string) error

	// List returns every registered address, including the caller's own.
	List(ctx context.Context) ([]string, error)
}
