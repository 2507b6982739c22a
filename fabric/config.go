package fabric

import (
	"time"

	"github.com/go-kit/log"

	"github.com/teachware/siblings/registry"
)

// DefaultGossipPort is the TCP port siblings use for the gossip channel.
// It is a cluster-wide constant, independent of each instance's main
// listening port: the registry stores main addresses, but gossip always
// dials the peer's host on this port.
const DefaultGossipPort = 22114

type Config struct {
	// AdvertiseAddr is this instance's main service address as other
	// siblings see it. It is registered on Start, excluded from fan-out,
	// and deregistered on Close.
	AdvertiseAddr string

	// Registry is the shared address book used for peer discovery.
	Registry registry.Registry

	// GossipPort is the port the gossip listener binds to and the port
	// used when dialing peers. All siblings must agree on it. Defaults
	// to DefaultGossipPort.
	GossipPort int

	// ListenHost overrides the host the gossip listener binds to. When
	// empty, the host part of AdvertiseAddr is used.
	ListenHost string

	// DialTimeout bounds outbound connection attempts to peers.
	DialTimeout time.Duration

	// Logger is a go-kit logger for non-critical errors. If not provided,
	// the fabric is silent.
	Logger log.Logger
}

// DefaultConfig creates a Config with reasonable defaults. AdvertiseAddr
// and Registry still have to be provided by the caller.
func DefaultConfig() Config {
	return Config{
		GossipPort:  DefaultGossipPort,
		DialTimeout: 5 * time.Second,
		Logger:      log.NewNopLogger(),
	}
}
