// Package fabric implements the sibling gossip channel: sibling instances
// of one service discover each other through a shared address registry and
// exchange arbitrary tagged binary messages over plain TCP, with no central
// broker. Messages are fire-and-forget: there is no durability, no ordering
// across peers, and no authentication, as the network is assumed private.
package fabric

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"golang.org/x/exp/slices"

	"github.com/teachware/siblings/internal/generic"
	"github.com/teachware/siblings/internal/multierror"
	"github.com/teachware/siblings/registry"
)

var errFabricClosed = errors.New("fabric is closed")

// Fabric is the gossip runtime state of one instance: the table of live
// peer connections and the list of inbound message handlers. A process
// normally runs a single fabric, but nothing prevents several independent
// fabrics from coexisting (tests rely on this).
type Fabric struct {
	conf     Config
	logger   log.Logger
	registry registry.Registry

	mut    sync.Mutex
	conns  map[string]*connection
	closed bool

	handlers handlerRegistry

	listener  net.Listener
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// New creates a fabric from the given config. The fabric does nothing
// until Start is called.
func New(conf Config) *Fabric {
	if conf.Logger == nil {
		conf.Logger = log.NewNopLogger()
	}

	if conf.GossipPort == 0 {
		conf.GossipPort = DefaultGossipPort
	}

	if conf.DialTimeout == 0 {
		conf.DialTimeout = 5 * time.Second
	}

	return &Fabric{
		conf:     conf,
		logger:   conf.Logger,
		registry: conf.Registry,
		conns:    make(map[string]*connection),
	}
}

// Start registers this instance's address in the registry and starts the
// gossip listener. A registration failure is fatal: an instance that the
// others cannot discover must not come up. The context bounds the registry
// call only; the listener runs for the fabric's lifetime.
func (f *Fabric) Start(ctx context.Context) error {
	if f.registry == nil {
		return errors.New("no registry configured")
	}

	host, _, err := net.SplitHostPort(f.conf.AdvertiseAddr)
	if err != nil {
		return fmt.Errorf("malformed advertise address (%s): %w", f.conf.AdvertiseAddr, err)
	}

	if err := f.registry.Register(ctx, f.conf.AdvertiseAddr); err != nil {
		return fmt.Errorf("failed to register own address: %w", err)
	}

	listenHost := f.conf.ListenHost
	if listenHost == "" {
		listenHost = host
	}

	bindAddr := net.JoinHostPort(listenHost, strconv.Itoa(f.conf.GossipPort))

	listener, err := net.Listen("tcp", bindAddr)
	if err != nil {
		if derr := f.registry.Deregister(ctx, f.conf.AdvertiseAddr); derr != nil {
			level.Error(f.logger).Log("msg", "failed to deregister own address", "err", derr)
		}

		return fmt.Errorf("failed to bind gossip listener on %s: %w", bindAddr, err)
	}

	f.listener = listener

	f.wg.Add(1)

	go f.acceptLoop()

	return nil
}

func (f *Fabric) acceptLoop() {
	defer f.wg.Done()

	for {
		nc, err := f.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}

			level.Error(f.logger).Log("msg", "failed to accept sibling connection", "err", err)

			continue
		}

		host, _, err := net.SplitHostPort(nc.RemoteAddr().String())
		if err != nil {
			nc.Close()
			continue
		}

		f.mut.Lock()
		f.addConnLocked(nc, host)
		f.mut.Unlock()
	}
}

// Subscribe registers a handler invoked for every inbound frame, in
// registration order. Handlers cannot be removed.
func (f *Fabric) Subscribe(h Handler) {
	f.handlers.add(h)
}

// Peers returns the hosts with a live connection, sorted. The connection
// table is a cache on top of the registry, so this may lag behind the set
// of registered siblings.
func (f *Fabric) Peers() []string {
	f.mut.Lock()
	hosts := generic.MapKeys(f.conns)
	f.mut.Unlock()

	slices.Sort(hosts)

	return hosts
}

// Close shuts the fabric down: the address is deregistered, the listener
// stops and every connection is closed. Deregistration failures are logged
// and do not block shutdown. Close is idempotent; subsequent calls return
// the first result.
func (f *Fabric) Close(ctx context.Context) error {
	var err error

	f.closeOnce.Do(func() {
		if f.registry != nil {
			if derr := f.registry.Deregister(ctx, f.conf.AdvertiseAddr); derr != nil {
				level.Error(f.logger).Log("msg", "failed to deregister own address", "err", derr)
			}
		}

		if f.listener != nil {
			f.listener.Close()
		}

		merr := multierror.New[string]()

		f.mut.Lock()
		// Marks the table closed before sweeping it, so a socket the accept
		// loop already pulled off the listener but has not inserted yet gets
		// rejected instead of outliving the sweep.
		f.closed = true

		for host, c := range f.conns {
			if cerr := c.close(); cerr != nil {
				merr.Add(host, cerr)
			}

			delete(f.conns, host)
		}
		f.mut.Unlock()

		f.wg.Wait()

		err = merr.Combined()
	})

	return err
}
