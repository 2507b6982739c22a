package main

import (
	"context"
	"fmt"
	"os"
	"time"

	kitlog "github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/teachware/siblings/fabric"
	"github.com/teachware/siblings/registry/etcd"
)

type shutdownFunc func(ctx context.Context) error

var noopShutdown = func(ctx context.Context) error { return nil }

func setupLogger() (kitlog.Logger, shutdownFunc) {
	logger := kitlog.NewLogfmtLogger(kitlog.NewSyncWriter(os.Stderr))

	if !opts.Verbose {
		logger = level.NewFilter(logger, level.AllowInfo())
	}

	return logger, noopShutdown
}

func setupRegistry(logger kitlog.Logger) (*etcd.Registry, shutdownFunc) {
	conf := etcd.DefaultConfig()
	conf.Endpoints = parseAddrs(opts.Etcd.Endpoints)
	conf.Namespace = opts.Etcd.Namespace
	conf.TTL = opts.Etcd.TTL

	reg, err := etcd.Connect(conf)
	if err != nil {
		panic(fmt.Sprintf("failed to connect to etcd: %v", err))
	}

	shutdown := func(ctx context.Context) error {
		logger.Log("msg", "closing registry")
		return reg.Close()
	}

	return reg, shutdown
}

func setupFabric(reg *etcd.Registry, logger kitlog.Logger) (*fabric.Fabric, shutdownFunc) {
	conf := fabric.DefaultConfig()
	conf.AdvertiseAddr = opts.Node.AdvertiseAddr
	conf.GossipPort = opts.Gossip.Port
	conf.ListenHost = opts.Gossip.ListenHost
	conf.Registry = reg
	conf.Logger = kitlog.With(logger, "component", "fabric")

	f := fabric.New(conf)

	startCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := f.Start(startCtx); err != nil {
		panic(fmt.Sprintf("failed to start fabric: %v", err))
	}

	level.Info(logger).Log(
		"msg", "gossip fabric started",
		"advertise_addr", opts.Node.AdvertiseAddr,
		"gossip_port", opts.Gossip.Port,
	)

	shutdown := func(ctx context.Context) error {
		logger.Log("msg", "shutting down fabric")

		if err := f.Close(ctx); err != nil {
			return fmt.Errorf("failed to close fabric: %w", err)
		}

		return nil
	}

	return f, shutdown
}
