package main

import (
	"strings"

	"github.com/teachware/siblings/internal/generic"
)

var opts struct {
	Node struct {
		AdvertiseAddr string `long:"advertise-addr" description:"this instance's main address, as siblings see it" env:"ADVERTISE_ADDR" required:"true"`
	} `group:"node" namespace:"node" env-namespace:"NODE"`

	Gossip struct {
		Port       int    `long:"port" description:"tcp port shared by all siblings for gossip" env:"PORT" default:"22114"`
		ListenHost string `long:"listen-host" description:"override the gossip bind host" env:"LISTEN_HOST"`
	} `group:"gossip" namespace:"gossip" env-namespace:"GOSSIP"`

	Etcd struct {
		Endpoints string `long:"endpoints" description:"comma-separated etcd endpoints" env:"ENDPOINTS" default:"127.0.0.1:2379"`
		Namespace string `long:"namespace" description:"key prefix for registry entries" env:"NAMESPACE" default:"/siblings"`
		TTL       int64  `long:"ttl" description:"registry entry ttl in seconds (0 disables expiry)" env:"TTL"`
	} `group:"etcd" namespace:"etcd" env-namespace:"ETCD"`

	Chat struct {
		Tag string `long:"tag" description:"source tag for the chat channel" env:"TAG" default:"chat/v1"`
	} `group:"chat" namespace:"chat" env-namespace:"CHAT"`

	Verbose bool `long:"verbose" description:"verbose mode" env:"VERBOSE"`
}

func parseAddrs(addrs string) []string {
	sl := strings.Split(addrs, ",")
	for i, addr := range sl {
		sl[i] = strings.TrimSpace(addr)
	}

	return generic.Filter(sl, func(addr string) bool {
		return addr != ""
	})
}
