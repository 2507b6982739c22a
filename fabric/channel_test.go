package fabric

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teachware/siblings/registry/inmem"
)

func TestChannel_FiltersTags(t *testing.T) {
	f := newTestFabric(t, "127.0.0.1", freePort(t), inmem.New())
	c := f.Channel("chat/v1")

	assert.Equal(t, "chat/v1", c.Tag())

	var got []string
	c.Subscribe(func(payload []byte) {
		got = append(got, string(payload))
	})

	f.handlers.dispatch("chat/v1", []byte("keep"))
	f.handlers.dispatch("chat/v2", []byte("drop"))
	f.handlers.dispatch("chat/v1", []byte("keep too"))

	require.Equal(t, []string{"keep", "keep too"}, got)
}

func TestChannel_EndToEnd(t *testing.T) {
	ctx := context.Background()
	reg := inmem.New()
	port := freePort(t)

	a := startTestFabric(t, "127.0.0.1", port, reg)
	b := startTestFabric(t, "127.0.0.2", port, reg)

	received := make(chan string, 2)
	b.Channel("chat/v1").Subscribe(func(payload []byte) {
		received <- string(payload)
	})

	// A producer on an unrelated channel must stay invisible to b's chat.
	require.NoError(t, a.Channel("metrics/v1").Send(ctx, []byte("cpu=99")))
	require.NoError(t, a.Channel("chat/v1").Send(ctx, []byte("hello")))

	select {
	case msg := <-received:
		assert.Equal(t, "hello", msg)
	case <-time.After(5 * time.Second):
		t.Fatal("no chat message delivered")
	}
}

func TestChannel_SendWithoutPeers(t *testing.T) {
	conf := DefaultConfig()
	conf.AdvertiseAddr = net.JoinHostPort("127.0.0.1", "8000")
	conf.Registry = inmem.New()

	f := New(conf)

	// Broadcasting into an empty registry is a successful no-op.
	require.NoError(t, f.Channel("chat/v1").Send(context.Background(), []byte("anyone?")))
}
