// Package xkbtest provides helpers to exercise an XKB server in
// tests: a server populated with the builtin keymaps, clients that
// talk to it in either byte order, and encoders and decoders for the
// client side of the protocol.
package xkbtest

import (
	"context"
	"io"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/danderson/xkb"
	"github.com/danderson/xkb/fragments"
	"github.com/danderson/xkb/internal/keymap"
)

// Device IDs of the devices in a test server.
const (
	CoreKeyboard = 2
	CorePointer  = 3
	// Keyboard1 and Keyboard2 are attached to CoreKeyboard, and have
	// the same keymap. Keyboard1 has keycodes 8..255, Keyboard2 has
	// keycodes 8..132.
	Keyboard1 = 4
	Keyboard2 = 5
)

// Server is an XKB server for tests.
type Server struct {
	*xkb.Server
	t testing.TB
}

type logWriter struct {
	t testing.TB
}

func (w logWriter) Write(bs []byte) (int, error) {
	w.t.Helper()
	w.t.Logf("%s", bs)
	return len(bs), nil
}

// New returns a server with the devices of [xkb.DefaultConfig]. If
// tests are running verbosely, the server logs to t.
func New(t testing.TB) *Server {
	t.Helper()
	var w io.Writer = io.Discard
	if testing.Verbose() {
		w = logWriter{t}
	}
	logger := log.New(w)
	logger.SetLevel(log.DebugLevel)

	s, err := xkb.NewServerFromConfig(context.Background(), xkb.DefaultConfig(), logger, keymap.Catalog{})
	if err != nil {
		t.Fatalf("creating test server: %v", err)
	}
	return &Server{s, t}
}

// Keyboard returns the keyboard description of device id.
func (s *Server) Keyboard(id uint8) *xkb.Desc {
	s.t.Helper()
	dev := s.Device(id)
	if dev == nil || dev.Keyboard == nil {
		s.t.Fatalf("device %d is not a keyboard", id)
	}
	return dev.Keyboard.Desc
}

// Client is a client connection to a test server.
type Client struct {
	*xkb.Client
	s *Server
}

// NewClient returns a client with the given byte order, that has
// already negotiated the extension with UseExtension.
func (s *Server) NewClient(order fragments.ByteOrder) *Client {
	s.t.Helper()
	c := s.NewRawClient(order)
	resp := c.MustDo(UseExtension(order, xkb.MajorVersion, xkb.MinorVersion))
	if r := ParseReply(s.t, order, resp); r.Data != 1 {
		s.t.Fatalf("UseExtension not supported: %x", resp)
	}
	return c
}

// NewRawClient returns a client that has not called UseExtension.
func (s *Server) NewRawClient(order fragments.ByteOrder) *Client {
	c := &Client{s.Server.NewClient(order), s}
	s.t.Cleanup(func() { s.CloseClient(c.Client) })
	return c
}

// Do sends req and returns the response.
func (c *Client) Do(req []byte) ([]byte, error) {
	return c.s.Dispatch(context.Background(), c.Client, req)
}

// MustDo sends req and fails the test if it errors.
func (c *Client) MustDo(req []byte) []byte {
	c.s.t.Helper()
	resp, err := c.Do(req)
	if err != nil {
		c.s.t.Fatalf("request %s failed: %v", xkb.Opcode(req[1]), err)
	}
	return resp
}

// MustFail sends req and checks that it fails with the given error
// code. It returns the error.
func (c *Client) MustFail(req []byte, code xkb.ErrorCode) *xkb.ProtocolError {
	c.s.t.Helper()
	resp, err := c.Do(req)
	if err == nil {
		c.s.t.Fatalf("request %s succeeded, want %v", xkb.Opcode(req[1]), code)
	}
	perr := xkb.AsProtocolError(err)
	if perr.Code != code {
		c.s.t.Fatalf("request %s failed with %v (%v), want %v", xkb.Opcode(req[1]), perr.Code, err, code)
	}
	if len(resp) != 32 || resp[0] != 0 {
		c.s.t.Fatalf("request %s error packet malformed: %x", xkb.Opcode(req[1]), resp)
	}
	return perr
}

// Events drains and returns the client's pending events.
func (c *Client) Events() []Event {
	c.s.t.Helper()
	var ret []Event
	for _, ev := range c.s.TakeEvents(c.Client) {
		ret = append(ret, ParseEvent(c.s.t, c.Order, ev))
	}
	return ret
}
