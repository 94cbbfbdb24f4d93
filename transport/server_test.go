package transport_test

import (
	"context"
	"errors"
	"io"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/danderson/xkb"
	"github.com/danderson/xkb/fragments"
	"github.com/danderson/xkb/transport"
	"github.com/danderson/xkb/xkbtest"
)

// serve starts a transport server for a test XKB server, and returns
// the socket path.
func serve(t *testing.T) string {
	t.Helper()
	s := xkbtest.New(t)
	path := filepath.Join(t.TempDir(), "xkb.sock")
	ln, err := transport.Listen(path)
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	srv := &transport.Server{XKB: s.Server}
	errc := make(chan error, 1)
	go func() { errc <- srv.Serve(ctx, ln) }()
	t.Cleanup(func() {
		cancel()
		if err := <-errc; err != nil {
			t.Errorf("Serve: %v", err)
		}
	})
	return path
}

func dial(t *testing.T, path string, order fragments.ByteOrder) *transport.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	c, err := transport.Dial(ctx, path, order)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	if err := c.SetReadDeadline(time.Now().Add(5 * time.Second)); err != nil {
		t.Fatal(err)
	}
	return c
}

func roundTrip(t *testing.T, c *transport.Conn, req []byte) []byte {
	t.Helper()
	if err := c.Send(req); err != nil {
		t.Fatalf("Send: %v", err)
	}
	resp, err := c.ReadPacket()
	if err != nil {
		t.Fatalf("ReadPacket: %v", err)
	}
	return resp
}

func TestServe(t *testing.T) {
	path := serve(t)
	orders := []struct {
		name  string
		order fragments.ByteOrder
	}{
		{"big endian", fragments.BigEndian},
		{"little endian", fragments.LittleEndian},
	}
	for _, o := range orders {
		t.Run(o.name, func(t *testing.T) {
			c := dial(t, path, o.order)
			if c.MajorOpcode != xkb.MajorOpcode || c.EventBase != xkb.EventBase || c.ErrorBase != xkb.ErrorBase {
				t.Errorf("setup reported codes %d/%d/%d, want %d/%d/%d", c.MajorOpcode, c.EventBase, c.ErrorBase, xkb.MajorOpcode, xkb.EventBase, xkb.ErrorBase)
			}

			resp := roundTrip(t, c, xkbtest.UseExtension(o.order, xkb.MajorVersion, xkb.MinorVersion))
			if r := xkbtest.ParseReply(t, o.order, resp); r.Data != 1 || r.Sequence != 1 {
				t.Errorf("UseExtension reply data=%d seq=%d, want 1 and 1", r.Data, r.Sequence)
			}

			resp = roundTrip(t, c, xkbtest.GetMap(o.order, xkbtest.Keyboard1, xkb.AllMapComponents))
			m := xkbtest.ParseMap(t, o.order, resp)
			if m.MinKeyCode != 8 || m.MaxKeyCode != 255 {
				t.Errorf("GetMap keycodes %d..%d, want 8..255", m.MinKeyCode, m.MaxKeyCode)
			}

			resp = roundTrip(t, c, xkbtest.GetState(o.order, xkb.UseCorePtr))
			e := xkbtest.ParseError(t, o.order, resp)
			if e.Code != xkb.ErrorBase || e.Sequence != 3 {
				t.Errorf("GetState on the pointer: error %d seq %d, want %d seq 3", e.Code, e.Sequence, xkb.ErrorBase)
			}
		})
	}
}

func TestServeEvents(t *testing.T) {
	path := serve(t)
	order := fragments.LittleEndian

	watcher := dial(t, path, order)
	roundTrip(t, watcher, xkbtest.UseExtension(order, xkb.MajorVersion, xkb.MinorVersion))
	if err := watcher.Send(xkbtest.SelectAll(order, xkbtest.Keyboard1)); err != nil {
		t.Fatal(err)
	}

	writer := dial(t, path, fragments.BigEndian)
	roundTrip(t, writer, xkbtest.UseExtension(fragments.BigEndian, xkb.MajorVersion, xkb.MinorVersion))
	// Ordering: the watcher's SelectEvents must be processed before the
	// writer's SetMap. A reply on the watcher's connection proves it.
	roundTrip(t, watcher, xkbtest.GetState(order, xkbtest.Keyboard1))

	m := xkbtest.ParseMap(t, fragments.BigEndian, roundTrip(t, writer, xkbtest.GetMap(fragments.BigEndian, xkbtest.Keyboard1, xkb.AllMapComponents)))
	if err := writer.Send(m.SetMap(fragments.BigEndian, xkbtest.Keyboard1, 0)); err != nil {
		t.Fatal(err)
	}

	bs, err := watcher.ReadPacket()
	if err != nil {
		t.Fatalf("reading event: %v", err)
	}
	ev := xkbtest.ParseEvent(t, order, bs)
	if ev.Type != xkbtest.MapNotify || ev.DeviceID != xkbtest.Keyboard1 {
		t.Errorf("got event type %d on device %d, want MapNotify on %d", ev.Type, ev.DeviceID, xkbtest.Keyboard1)
	}
	if ev.Sequence != 3 {
		t.Errorf("event sequence = %d, want the watcher's last request 3", ev.Sequence)
	}
}

func TestBadPreamble(t *testing.T) {
	path := serve(t)
	c, err := net.Dial("unix", path)
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()
	if err := c.SetDeadline(time.Now().Add(5 * time.Second)); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Write([]byte{'X', 0, 0, 0}); err != nil {
		t.Fatal(err)
	}
	// The server hangs up without a setup reply.
	n, err := io.ReadFull(c, make([]byte, 8))
	if !errors.Is(err, io.EOF) {
		t.Errorf("read %d bytes, err %v; want EOF", n, err)
	}
}
