// Command siblingd runs a bare gossip fabric node with a line-based chat
// channel attached, which makes it a handy smoke test for a deployment:
// start one per machine, type into one terminal and watch the line appear
// on every sibling.
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-kit/log/level"
	"github.com/jessevdk/go-flags"
)

func main() {
	p := flags.NewParser(&opts, flags.Default)

	if _, err := p.Parse(); err != nil {
		if err.(*flags.Error).Type != flags.ErrHelp {
			fmt.Println("cli error:", err)
		}

		os.Exit(2)
	}

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, syscall.SIGINT, syscall.SIGTERM)

	logger, closeLogger := setupLogger()
	reg, closeRegistry := setupRegistry(logger)
	f, closeFabric := setupFabric(reg, logger)

	// Fabric first: it must deregister while the registry client is alive.
	shutdownOrder := []shutdownFunc{
		closeFabric,
		closeRegistry,
		closeLogger,
	}

	chat := f.Channel(opts.Chat.Tag)

	chat.Subscribe(func(payload []byte) {
		level.Info(logger).Log("msg", "chat message", "text", string(payload))
	})

	go func() {
		scanner := bufio.NewScanner(os.Stdin)

		for scanner.Scan() {
			line := scanner.Bytes()
			if len(line) == 0 {
				continue
			}

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)

			if err := chat.Send(ctx, append([]byte(nil), line...)); err != nil {
				level.Error(logger).Log("msg", "failed to send chat message", "err", err)
			}

			cancel()
		}
	}()

	<-interrupt
	level.Info(logger).Log("msg", "received interrupt signal, shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for _, shutdown := range shutdownOrder {
		if err := shutdown(ctx); err != nil {
			level.Error(logger).Log("msg", "failed to shutdown component", "err", err)
		}
	}
}
