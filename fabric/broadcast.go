package fabric

import (
	"context"
	"fmt"
	"net"
	"sync"

	"github.com/go-kit/log/level"

	"github.com/teachware/siblings/internal/generic"
)

// Broadcast sends one tagged message to every sibling currently listed in
// the registry. Peers without a live connection are dialed lazily; frames
// are then written to all connections concurrently and every peer whose
// write failed is evicted from the table, to be redialed on the next call.
//
// Individual peers being unreachable or dropping mid-send never fails the
// call: the only error comes from the registry scan itself. The table lock
// is held for the whole operation, so concurrent broadcasts are serialized
// and frames reach any single peer in lock-acquisition order. Broadcast is
// low-frequency control traffic; throughput was traded for simplicity here.
func (f *Fabric) Broadcast(ctx context.Context, sourceTag string, payload []byte) error {
	f.mut.Lock()
	defer f.mut.Unlock()

	addrs, err := f.registry.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list siblings: %w", err)
	}

	addrs = generic.Filter(addrs, func(addr string) bool {
		return addr != f.conf.AdvertiseAddr
	})

	for _, addr := range addrs {
		host, _, err := net.SplitHostPort(addr)
		if err != nil {
			level.Error(f.logger).Log("msg", "malformed sibling address", "addr", addr, "err", err)
			continue
		}

		if _, err := f.getOrConnectLocked(host); err != nil {
			level.Error(f.logger).Log("msg", "failed to connect to sibling", "addr", addr, "err", err)
		}
	}

	type sendFailure struct {
		host string
		err  error
	}

	failures := make(chan sendFailure, len(f.conns))

	var wg sync.WaitGroup

	for _, c := range f.conns {
		wg.Add(1)

		go func(c *connection) {
			defer wg.Done()

			if err := c.send(sourceTag, payload); err != nil {
				failures <- sendFailure{host: c.host, err: err}
			}
		}(c)
	}

	wg.Wait()
	close(failures)

	for fail := range failures {
		level.Error(f.logger).Log("msg", "failed to send to sibling", "peer", fail.host, "err", fail.err)
		f.removeLocked(fail.host)
	}

	return nil
}
