package xkb

import (
	"github.com/creachadair/mds/queue"
	"github.com/danderson/xkb/fragments"
)

// maxClientQueue is the maximum number of undelivered events held for
// a client. Older events are dropped past that.
const maxClientQueue = 1024

// Client is the per-connection state of an XKB client. It is owned by
// the connection that created it, and passed to every request the
// connection makes.
type Client struct {
	// ID identifies the client in logs.
	ID int
	// Order is the byte order of the client's connection.
	Order fragments.ByteOrder

	// sequence is the sequence number of the client's most recent
	// request.
	sequence uint16
	// initialized is set once the client negotiates a compatible
	// version with UseExtension.
	initialized bool
	major       uint16
	minor       uint16

	selections map[uint8]*eventSelection
	events     queue.Queue[[]byte]
	dropped    int
	// notify is signaled when an event is queued.
	notify chan struct{}
}

// eventSelection is the set of XKB events a client selected on one
// device, with per-event detail masks.
type eventSelection struct {
	which   uint16
	details [numEventTypes]uint32
}

func (s *eventSelection) wants(typ eventType, detail uint32) bool {
	if s == nil || s.which&(1<<typ) == 0 {
		return false
	}
	return detail == 0 || s.details[typ]&detail != 0
}

// Swapped reports whether the client's byte order differs from the
// server's.
func (c *Client) Swapped() bool {
	return fragments.Swapped(c.Order)
}

// Initialized reports whether the client has successfully called
// UseExtension.
func (c *Client) Initialized() bool {
	return c.initialized
}

// Sequence returns the sequence number of the client's last request.
func (c *Client) Sequence() uint16 {
	return c.sequence
}

func (c *Client) enqueue(ev []byte) {
	if c.events.Len() >= maxClientQueue {
		c.events.Pop()
		c.dropped++
	}
	c.events.Add(ev)
	select {
	case c.notify <- struct{}{}:
	default:
	}
}

// Notify returns a channel that receives a value when events are
// queued for the client.
func (c *Client) Notify() <-chan struct{} {
	return c.notify
}

func (c *Client) selection(dev uint8) *eventSelection {
	if c.selections == nil {
		return nil
	}
	return c.selections[dev]
}

func (c *Client) encoder() *fragments.Encoder {
	return &fragments.Encoder{Order: c.Order}
}
