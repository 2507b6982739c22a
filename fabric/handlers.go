package fabric

import (
	"sync"
)

// Handler is called for every frame received from any sibling. Handlers
// interested in a single logical channel should check the source tag and
// ignore frames that are not theirs (see Channel for a wrapper that does
// this). Handlers must not panic: dispatch runs under a shared lock and
// the fabric does not recover.
type Handler func(sourceTag string, payload []byte)

type handlerRegistry struct {
	mut      sync.Mutex
	handlers []Handler
}

func (hr *handlerRegistry) add(h Handler) {
	hr.mut.Lock()
	hr.handlers = append(hr.handlers, h)
	hr.mut.Unlock()
}

// dispatch invokes every registered handler in registration order. The lock
// is held for the whole pass, so delivery is serialized across all peer
// connections. A slow handler therefore delays every connection; the gossip
// channel is meant for small control messages, not bulk data.
func (hr *handlerRegistry) dispatch(sourceTag string, payload []byte) {
	hr.mut.Lock()
	defer hr.mut.Unlock()

	for _, h := range hr.handlers {
		h(sourceTag, payload)
	}
}
