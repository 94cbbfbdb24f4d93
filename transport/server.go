// Package transport serves the XKB protocol engine over unix domain
// sockets.
//
// A connection starts with a 4 byte preamble from the client: the
// X11 byte order byte ('B' or 'l') followed by three unused bytes.
// The server answers with an 8 byte setup reply: a success byte, then
// the extension's major opcode, first event code and first error
// code, then four unused bytes. After that the client sends XKB
// requests, framed by the request length in their header, and the
// server sends replies, errors and events in 32 byte units.
package transport

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/creachadair/mds/mapset"
	"github.com/danderson/xkb"
	"github.com/danderson/xkb/fragments"
)

// preambleLen and setupLen are the sizes of the connection
// handshake messages.
const (
	preambleLen = 4
	setupLen    = 8
)

// maxRequestLen bounds the size of a single request, in bytes.
const maxRequestLen = 0xffff * 4

// Listen creates a unix socket listener at path. A stale socket left
// at path by a previous server is removed.
func Listen(path string) (*net.UnixListener, error) {
	if fi, err := os.Lstat(path); err == nil && fi.Mode()&os.ModeSocket != 0 {
		if err := os.Remove(path); err != nil {
			return nil, fmt.Errorf("removing stale socket: %w", err)
		}
	}
	ln, err := net.ListenUnix("unix", &net.UnixAddr{Net: "unix", Name: path})
	if err != nil {
		return nil, err
	}
	ln.SetUnlinkOnClose(true)
	return ln, nil
}

// Server serves an xkb.Server to socket clients.
type Server struct {
	XKB *xkb.Server
	// Log receives connection lifecycle logs. If nil, nothing is
	// logged.
	Log *log.Logger

	mu    sync.Mutex
	conns mapset.Set[*net.UnixConn]
}

func (s *Server) logger() *log.Logger {
	if s.Log == nil {
		return log.New(io.Discard)
	}
	return s.Log
}

// Serve accepts connections on ln until ctx is canceled, and serves
// each one on its own goroutine. When ctx is canceled, Serve closes
// ln and all open connections, and waits for their goroutines to
// exit.
func (s *Server) Serve(ctx context.Context, ln *net.UnixListener) error {
	s.mu.Lock()
	if s.conns == nil {
		s.conns = mapset.New[*net.UnixConn]()
	}
	s.mu.Unlock()

	stop := context.AfterFunc(ctx, func() {
		ln.Close()
		s.mu.Lock()
		defer s.mu.Unlock()
		for c := range s.conns {
			c.Close()
		}
	})
	defer stop()

	s.logger().Info("serving", "addr", ln.Addr())
	var wg sync.WaitGroup
	defer wg.Wait()
	for {
		conn, err := ln.AcceptUnix()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("accepting connection: %w", err)
		}
		s.mu.Lock()
		s.conns.Add(conn)
		s.mu.Unlock()
		if ctx.Err() != nil {
			// Raced with shutdown, which may have missed conn.
			conn.Close()
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.serveConn(ctx, conn)
			s.mu.Lock()
			delete(s.conns, conn)
			s.mu.Unlock()
		}()
	}
}

// peer is the identity of a connected process.
type peer struct {
	PID int32
	UID uint32
}

// conn is one client connection.
type conn struct {
	s      *Server
	c      *net.UnixConn
	in     *bufio.Reader
	client *xkb.Client
	log    *log.Logger

	writeMu sync.Mutex
}

func (s *Server) serveConn(ctx context.Context, c *net.UnixConn) {
	defer c.Close()
	logger := s.logger()
	if cred, err := peerCred(c); err != nil {
		logger.Warn("reading peer credentials", "err", err)
	} else if cred != nil {
		logger = logger.With("pid", cred.PID, "uid", cred.UID)
	}

	in := bufio.NewReader(c)
	order, err := readPreamble(in)
	if err != nil {
		logger.Warn("bad connection preamble", "err", err)
		return
	}
	client := s.XKB.NewClient(order)
	defer s.XKB.CloseClient(client)
	defer func() {
		logger.Debug("client closed", "pending", s.XKB.PendingEvents(client))
	}()
	logger = logger.With("client", client.ID)
	logger.Info("client connected", "swapped", client.Swapped())

	cn := &conn{
		s:      s,
		c:      c,
		in:     in,
		client: client,
		log:    logger,
	}
	if err := cn.write(setupReply(order)); err != nil {
		logger.Warn("writing setup", "err", err)
		return
	}

	done := make(chan struct{})
	defer close(done)
	go cn.eventLoop(done)

	err = cn.readLoop(ctx)
	switch {
	case err == nil, errors.Is(err, io.EOF), errors.Is(err, net.ErrClosed):
		logger.Info("client disconnected")
	default:
		logger.Warn("client connection failed", "err", err)
	}
}

func readPreamble(r io.Reader) (fragments.ByteOrder, error) {
	var bs [preambleLen]byte
	if _, err := io.ReadFull(r, bs[:]); err != nil {
		return nil, err
	}
	order, ok := fragments.OrderForFlag(bs[0])
	if !ok {
		return nil, fmt.Errorf("unknown byte order %q", bs[0])
	}
	return order, nil
}

func setupReply(order fragments.ByteOrder) []byte {
	e := fragments.Encoder{Order: order}
	e.Uint8(1)
	e.Uint8(xkb.MajorOpcode)
	e.Uint8(xkb.EventBase)
	e.Uint8(xkb.ErrorBase)
	e.Zero(4)
	return e.Out
}

// readLoop reads and dispatches requests until the connection fails.
func (c *conn) readLoop(ctx context.Context) error {
	for {
		req, err := c.readRequest()
		if err != nil {
			return err
		}
		resp, err := c.s.XKB.Dispatch(ctx, c.client, req)
		if err != nil {
			c.log.Debug("request failed", "request", xkb.Opcode(req[1]), "err", err)
		}
		if err := c.write(resp); err != nil {
			return err
		}
	}
}

// readRequest reads one complete request.
func (c *conn) readRequest() ([]byte, error) {
	var hdr [4]byte
	if _, err := io.ReadFull(c.in, hdr[:]); err != nil {
		return nil, err
	}
	if hdr[0] != xkb.MajorOpcode {
		return nil, fmt.Errorf("request for major opcode %d, only %d is served", hdr[0], xkb.MajorOpcode)
	}
	d := fragments.Decoder{Order: c.client.Order, In: hdr[2:]}
	words, err := d.Uint16()
	if err != nil {
		return nil, err
	}
	n := int(words) * 4
	if n < len(hdr) || n > maxRequestLen {
		return nil, fmt.Errorf("invalid request length %d", n)
	}
	req := make([]byte, n)
	copy(req, hdr[:])
	if _, err := io.ReadFull(c.in, req[len(hdr):]); err != nil {
		return nil, err
	}
	return req, nil
}

// eventLoop flushes queued events to the client as they arrive, until
// done is closed.
func (c *conn) eventLoop(done <-chan struct{}) {
	for {
		select {
		case <-done:
			return
		case <-c.client.Notify():
			if err := c.write(nil); err != nil {
				c.log.Debug("writing events", "err", err)
				return
			}
		}
	}
}

// write sends resp, if any, followed by all events queued for the
// client.
func (c *conn) write(resp []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	out := resp
	for _, ev := range c.s.XKB.TakeEvents(c.client) {
		out = append(out, ev...)
	}
	if len(out) == 0 {
		return nil
	}
	_, err := c.c.Write(out)
	return err
}
