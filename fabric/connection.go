package fabric

import (
	"bufio"
	"encoding/binary"
	"errors"
	"io"
	"net"
	"strconv"
	"sync"

	"github.com/go-kit/log/level"

	"github.com/teachware/siblings/internal/binario"
)

// connection is one live duplex socket to a sibling, identified by the
// peer's host. The write half is owned by whichever table slot holds the
// connection; the read half is owned by its reader goroutine. Go allows
// concurrent reads and writes on one net.Conn, so unlike runtimes that
// split a stream into halves there is nothing to reunite on teardown:
// the reader simply closes the socket once, after checking that the table
// slot has not been taken over by a newer connection.
type connection struct {
	host string
	conn net.Conn

	bw     *bufio.Writer
	writer *binario.Writer

	closeOnce sync.Once
	closeErr  error
}

func newConnection(host string, conn net.Conn) *connection {
	bw := bufio.NewWriter(conn)

	return &connection{
		host:   host,
		conn:   conn,
		bw:     bw,
		writer: binario.NewWriter(bw, binary.BigEndian),
	}
}

// send writes one frame and flushes it, so a broken socket surfaces as an
// error on this call rather than on some later one.
func (c *connection) send(sourceTag string, payload []byte) error {
	if err := writeFrame(c.writer, sourceTag, payload); err != nil {
		return err
	}

	return c.bw.Flush()
}

// close releases the socket. Nothing is flushed here: send flushes per
// frame, so the write buffer is empty whenever the connection is not
// mid-send, and a racing flush would corrupt an in-flight write. Safe to
// call from both the table side and the reader side; only the first call
// acts.
func (c *connection) close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.conn.Close()
	})

	return c.closeErr
}

// addConnLocked inserts a connection for the given host and spawns its
// reader. Any existing entry is closed and replaced: two siblings may dial
// each other simultaneously, and both sides converge on treating the newest
// socket as canonical. Once the fabric is closed, the socket is rejected
// and nil is returned. Requires f.mut to be held.
func (f *Fabric) addConnLocked(nc net.Conn, host string) *connection {
	if f.closed {
		nc.Close()
		return nil
	}

	if old, ok := f.conns[host]; ok {
		old.close()
	}

	c := newConnection(host, nc)
	f.conns[host] = c

	f.wg.Add(1)

	go f.readLoop(c)

	return c
}

// getOrConnectLocked returns the live connection for the host, dialing a
// new one if the table has none. A dial failure leaves the table unchanged.
// Requires f.mut to be held.
func (f *Fabric) getOrConnectLocked(host string) (*connection, error) {
	if c, ok := f.conns[host]; ok {
		return c, nil
	}

	addr := net.JoinHostPort(host, strconv.Itoa(f.conf.GossipPort))

	nc, err := net.DialTimeout("tcp", addr, f.conf.DialTimeout)
	if err != nil {
		return nil, err
	}

	c := f.addConnLocked(nc, host)
	if c == nil {
		return nil, errFabricClosed
	}

	return c, nil
}

// removeLocked evicts and closes the host's connection, if any. The next
// broadcast reconnects lazily as long as the peer is still listed in the
// registry. Requires f.mut to be held.
func (f *Fabric) removeLocked(host string) {
	if c, ok := f.conns[host]; ok {
		c.close()
		delete(f.conns, host)
	}
}

// readLoop decodes frames off the connection and dispatches them until the
// stream ends. A clean disconnect is an EOF exactly at a length boundary or
// the socket being closed underneath us; everything else is logged. Frames
// with a malformed tag are dropped and reading continues.
func (f *Fabric) readLoop(c *connection) {
	defer f.wg.Done()

	r := binario.NewReader(bufio.NewReader(c.conn), binary.BigEndian)

	for {
		fr, err := readFrame(r)
		if err != nil {
			if errors.Is(err, ErrBadTag) {
				level.Error(f.logger).Log("msg", "dropped frame with malformed tag", "peer", c.host)
				continue
			}

			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				level.Error(f.logger).Log("msg", "failed to read from sibling", "peer", c.host, "err", err)
			}

			break
		}

		f.handlers.dispatch(fr.tag, fr.payload)
	}

	f.teardown(c)
}

// teardown releases the connection after its reader finished. The table
// entry is evicted only if it still holds this very connection: if a
// reconnect has already replaced it, the newer connection is left alone
// and only the stale socket is closed.
func (f *Fabric) teardown(c *connection) {
	f.mut.Lock()
	if cur, ok := f.conns[c.host]; ok && cur == c {
		delete(f.conns, c.host)
	}
	f.mut.Unlock()

	c.close()
}
