// Package etcd implements the sibling registry on top of an etcd cluster.
// Every entry is a single key <namespace>/<addr> holding the address itself,
// inserted on startup and deleted on graceful shutdown.
//
// Entries may optionally be attached to a kept-alive lease so that the
// address of a crashed instance expires instead of being retried forever.
// With TTL set to zero a stale entry stays until it is deregistered
// explicitly.
package etcd

import (
	"context"
	"fmt"
	"sync"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"

	"github.com/teachware/siblings/registry"
)

const DefaultNamespace = "/siblings"

type Config struct {
	// Endpoints of the etcd cluster.
	Endpoints []string

	// Namespace is the key prefix under which entries are stored. Siblings
	// of the same service must share it.
	Namespace string

	// TTL is the lease duration in seconds for registered entries. When
	// zero, entries have no expiry.
	TTL int64

	// DialTimeout bounds the initial connection to etcd.
	DialTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		Namespace:   DefaultNamespace,
		DialTimeout: 5 * time.Second,
	}
}

type lease struct {
	id     clientv3.LeaseID
	cancel context.CancelFunc
}

type Registry struct {
	cli       *clientv3.Client
	namespace string
	ttl       int64

	mut    sync.Mutex
	leases map[string]lease
}

var _ registry.Registry = (*Registry)(nil)

// Connect dials the etcd cluster and returns a registry on top of it.
// The caller owns the registry and must Close it.
func Connect(conf Config) (*Registry, error) {
	cli, err := clientv3.New(clientv3.Config{
		Endpoints:   conf.Endpoints,
		DialTimeout: conf.DialTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to etcd: %w", err)
	}

	return New(cli, conf), nil
}

// New wraps an existing etcd client. Closing the registry closes the client.
func New(cli *clientv3.Client, conf Config) *Registry {
	namespace := conf.Namespace
	if namespace == "" {
		namespace = DefaultNamespace
	}

	return &Registry{
		cli:       cli,
		namespace: namespace,
		ttl:       conf.TTL,
		leases:    make(map[string]lease),
	}
}

func (r *Registry) key(addr string) string {
	return r.namespace + "/" + addr
}

func (r *Registry) Register(ctx context.Context, addr string) error {
	if r.ttl == 0 {
		if _, err := r.cli.Put(ctx, r.key(addr), addr); err != nil {
			return fmt.Errorf("failed to register address: %w", err)
		}

		return nil
	}

	grant, err := r.cli.Grant(ctx, r.ttl)
	if err != nil {
		return fmt.Errorf("failed to grant lease: %w", err)
	}

	if _, err := r.cli.Put(ctx, r.key(addr), addr, clientv3.WithLease(grant.ID)); err != nil {
		return fmt.Errorf("failed to register address: %w", err)
	}

	// The keepalive must outlive the registration call.
	kaCtx, cancel := context.WithCancel(context.Background())

	ch, err := r.cli.KeepAlive(kaCtx, grant.ID)
	if err != nil {
		cancel()
		return fmt.Errorf("failed to keep lease alive: %w", err)
	}

	go func() {
		for range ch {
		}
	}()

	r.mut.Lock()
	if prev, ok := r.leases[addr]; ok {
		prev.cancel()
	}
	r.leases[addr] = lease{id: grant.ID, cancel: cancel}
	r.mut.Unlock()

	return nil
}

func (r *Registry) Deregister(ctx context.Context, addr string) error {
	r.mut.Lock()
	l, ok := r.leases[addr]
	if ok {
		delete(r.leases, addr)
	}
	r.mut.Unlock()

	if ok {
		l.cancel()

		// Revoking the lease removes the key as well, but the delete below
		// still runs to cover entries registered without a lease.
		if _, err := r.cli.Revoke(ctx, l.id); err != nil {
			return fmt.Errorf("failed to revoke lease: %w", err)
		}
	}

	if _, err := r.cli.Delete(ctx, r.key(addr)); err != nil {
		return fmt.Errorf("failed to deregister address: %w", err)
	}

	return nil
}

func (r *Registry) List(ctx context.Context) ([]string, error) {
	resp, err := r.cli.Get(ctx, r.namespace+"/", clientv3.WithPrefix())
	if err != nil {
		return nil, fmt.Errorf("failed to list addresses: %w", err)
	}

	addrs := make([]string, 0, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		addrs = append(addrs, string(kv.Value))
	}

	return addrs, nil
}

// Close cancels outstanding lease keepalives and closes the etcd client.
func (r *Registry) Close() error {
	r.mut.Lock()
	for _, l := range r.leases {
		l.cancel()
	}
	r.leases = make(map[string]lease)
	r.mut.Unlock()

	return r.cli.Close()
}
