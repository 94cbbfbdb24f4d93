package transport

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/danderson/xkb/fragments"
)

// Conn is the client side of a connection to a Server.
type Conn struct {
	// Order is the byte order of the connection.
	Order fragments.ByteOrder
	// MajorOpcode, EventBase and ErrorBase are the extension codes
	// the server reported during setup.
	MajorOpcode uint8
	EventBase   uint8
	ErrorBase   uint8

	conn *net.UnixConn
	buf  *bufio.Reader
}

// Dial connects to the server at path, using the given byte order.
func Dial(ctx context.Context, path string, order fragments.ByteOrder) (*Conn, error) {
	var d net.Dialer
	c, err := d.DialContext(ctx, "unix", path)
	if err != nil {
		return nil, err
	}
	ret := &Conn{
		Order: order,
		conn:  c.(*net.UnixConn),
		buf:   bufio.NewReader(c),
	}

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Time{}
	}
	if err := ret.conn.SetDeadline(deadline); err != nil {
		ret.Close()
		return nil, err
	}
	if err := ret.setup(fragments.Flag(order)); err != nil {
		ret.Close()
		return nil, err
	}
	if err := ret.conn.SetDeadline(time.Time{}); err != nil {
		ret.Close()
		return nil, err
	}
	return ret, nil
}

func (c *Conn) setup(flag byte) error {
	if _, err := c.conn.Write([]byte{flag, 0, 0, 0}); err != nil {
		return err
	}
	var bs [setupLen]byte
	if _, err := io.ReadFull(c.buf, bs[:]); err != nil {
		return fmt.Errorf("reading setup: %w", err)
	}
	if bs[0] != 1 {
		return fmt.Errorf("server refused connection: %x", bs)
	}
	c.MajorOpcode, c.EventBase, c.ErrorBase = bs[1], bs[2], bs[3]
	return nil
}

// Send writes one complete request.
func (c *Conn) Send(req []byte) error {
	_, err := c.conn.Write(req)
	return err
}

// ReadPacket reads one reply, error or event from the server. Errors
// and events are 32 bytes, replies are 32 bytes plus the length their
// header declares.
func (c *Conn) ReadPacket() ([]byte, error) {
	bs := make([]byte, 32)
	if _, err := io.ReadFull(c.buf, bs); err != nil {
		return nil, err
	}
	if bs[0] != 1 {
		return bs, nil
	}
	d := fragments.Decoder{Order: c.Order, In: bs[4:8]}
	words, err := d.Uint32()
	if err != nil {
		return nil, err
	}
	if words > maxRequestLen {
		return nil, fmt.Errorf("reply too long: %d words", words)
	}
	ret := make([]byte, 32+int(words)*4)
	copy(ret, bs)
	if _, err := io.ReadFull(c.buf, ret[32:]); err != nil {
		return nil, err
	}
	return ret, nil
}

// SetReadDeadline sets the deadline for ReadPacket.
func (c *Conn) SetReadDeadline(t time.Time) error {
	return c.conn.SetReadDeadline(t)
}

// Close closes the connection.
func (c *Conn) Close() error {
	return c.conn.Close()
}
