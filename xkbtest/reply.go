package xkbtest

import (
	"testing"

	"github.com/danderson/xkb"
	"github.com/danderson/xkb/fragments"
)

// Cursor reads protocol values from a reply or event. Its accessors
// fail the test on short reads.
type Cursor struct {
	t testing.TB
	d *fragments.Decoder
}

// Reply is a decoded reply header, and a cursor over the reply's
// body.
type Reply struct {
	*Cursor
	Data     uint8
	Sequence uint16
	// Length is the total length of the reply in bytes.
	Length int
}

// ParseReply parses the header of reply bs, and checks that the
// reply is as long as it declares.
func ParseReply(t testing.TB, order fragments.ByteOrder, bs []byte) *Reply {
	t.Helper()
	if len(bs) < 32 {
		t.Fatalf("reply is %d bytes, want at least 32", len(bs))
	}
	if bs[0] != 1 {
		t.Fatalf("reply has type %d, want 1", bs[0])
	}
	ret := &Reply{
		Cursor: &Cursor{t, &fragments.Decoder{Order: order, In: bs}},
		Data:   bs[1],
	}
	ret.d.Skip(2)
	ret.Sequence = ret.U16()
	ret.Length = 32 + 4*int(ret.U32())
	if ret.Length != len(bs) {
		t.Fatalf("reply declares %d bytes, is %d bytes", ret.Length, len(bs))
	}
	return ret
}

func (r *Cursor) check(err error) {
	r.t.Helper()
	if err != nil {
		r.t.Fatalf("decoding: %v", err)
	}
}

func (r *Cursor) U8() uint8 {
	r.t.Helper()
	v, err := r.d.Uint8()
	r.check(err)
	return v
}

func (r *Cursor) Bool() bool {
	r.t.Helper()
	return r.U8() != 0
}

func (r *Cursor) U16() uint16 {
	r.t.Helper()
	v, err := r.d.Uint16()
	r.check(err)
	return v
}

func (r *Cursor) I16() int16 {
	r.t.Helper()
	return int16(r.U16())
}

func (r *Cursor) U32() uint32 {
	r.t.Helper()
	v, err := r.d.Uint32()
	r.check(err)
	return v
}

func (r *Cursor) Atom() xkb.Atom {
	r.t.Helper()
	return xkb.Atom(r.U32())
}

func (r *Cursor) Skip(n int) {
	r.t.Helper()
	r.check(r.d.Skip(n))
}

// Pad skips to the next 4 byte boundary.
func (r *Cursor) Pad() {
	r.t.Helper()
	r.check(r.d.Pad(4))
}

func (r *Cursor) Read(n int) []byte {
	r.t.Helper()
	bs, err := r.d.Read(n)
	r.check(err)
	return bs
}

func (r *Cursor) KeyName() string {
	r.t.Helper()
	var k xkb.KeyName
	copy(k[:], r.Read(xkb.KeyNameLength))
	return k.String()
}

func (r *Cursor) CountedString() string {
	r.t.Helper()
	s, err := r.d.CountedString()
	r.check(err)
	return s
}

// Mods reads a 4 byte modifier definition.
func (r *Cursor) Mods() xkb.Mods {
	r.t.Helper()
	return xkb.Mods{Mask: r.U8(), RealMods: r.U8(), VMods: r.U16()}
}

// Action reads an 8 byte key action.
func (r *Cursor) Action() xkb.Action {
	r.t.Helper()
	ret := xkb.Action{Type: r.U8()}
	copy(ret.Data[:], r.Read(7))
	return ret
}

// Offset returns the number of bytes read so far. For replies, this
// includes the header.
func (r *Cursor) Offset() int {
	return r.d.Offset()
}

// Remaining returns the number of unread bytes.
func (r *Cursor) Remaining() int {
	return r.d.Remaining()
}

// Done fails the test unless everything was read.
func (r *Cursor) Done() {
	r.t.Helper()
	if n := r.d.Remaining(); n != 0 {
		r.t.Fatalf("%d unread bytes", n)
	}
}

// ErrorPacket is a decoded X error.
type ErrorPacket struct {
	Code     uint8
	Sequence uint16
	Value    uint32
	Minor    uint16
	Major    uint8
}

// ParseError decodes an X error packet.
func ParseError(t testing.TB, order fragments.ByteOrder, bs []byte) ErrorPacket {
	t.Helper()
	if len(bs) != 32 || bs[0] != 0 {
		t.Fatalf("not an error packet: %x", bs)
	}
	return ErrorPacket{
		Code:     bs[1],
		Sequence: order.Uint16(bs[2:]),
		Value:    order.Uint32(bs[4:]),
		Minor:    order.Uint16(bs[8:]),
		Major:    bs[10],
	}
}

// Event is a decoded XKB event header. Fields is a cursor over the
// event's type-specific fields.
type Event struct {
	Type     uint8
	Sequence uint16
	Time     uint32
	DeviceID uint8
	Fields   *Cursor
}

// ParseEvent decodes the header of an XKB event.
func ParseEvent(t testing.TB, order fragments.ByteOrder, bs []byte) Event {
	t.Helper()
	if len(bs) != 32 || bs[0] != xkb.EventBase {
		t.Fatalf("not an XKB event: %x", bs)
	}
	return Event{
		Type:     bs[1],
		Sequence: order.Uint16(bs[2:]),
		Time:     order.Uint32(bs[4:]),
		DeviceID: bs[8],
		Fields:   &Cursor{t, &fragments.Decoder{Order: order, In: bs[9:]}},
	}
}

// XKB event types.
const (
	NewKeyboardNotify    = 0
	MapNotify            = 1
	ControlsNotify       = 3
	IndicatorStateNotify = 4
	IndicatorMapNotify   = 5
	NamesNotify          = 6
	CompatMapNotify      = 7
)
