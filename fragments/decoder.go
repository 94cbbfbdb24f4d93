package fragments

import (
	"fmt"
)

// LengthError is the error returned when a read would go past the end
// of the input.
type LengthError struct {
	// Offset is the position of the failed read.
	Offset int
	// Want is the number of bytes the read needed.
	Want int
	// Have is the number of bytes that were left.
	Have int
}

func (e LengthError) Error() string {
	return fmt.Sprintf("short read at offset %d: need %d bytes, have %d", e.Offset, e.Want, e.Have)
}

// A Decoder reads an X11 wire format message from a byte slice.
//
// Every read is bounds checked against the remaining input, and fails
// with a [LengthError] rather than reading past the end of In. A
// failed read does not advance the cursor.
type Decoder struct {
	// Order is the byte order to use when reading multi-byte values.
	Order ByteOrder
	// In is the input to read. For requests, In must be exactly the
	// request as declared by its length field.
	In []byte

	// offset is the number of bytes consumed off the front of In so
	// far.
	offset int
}

// Offset returns the number of bytes consumed so far.
func (d *Decoder) Offset() int {
	return d.offset
}

// Remaining returns the number of unread bytes.
func (d *Decoder) Remaining() int {
	return len(d.In) - d.offset
}

func (d *Decoder) need(n int) error {
	if n < 0 || n > d.Remaining() {
		return LengthError{d.offset, n, d.Remaining()}
	}
	return nil
}

// Pad consumes padding bytes as needed to make the next read happen
// at a multiple of align bytes from the start of In.
func (d *Decoder) Pad(align int) error {
	extra := d.offset % align
	if extra == 0 {
		return nil
	}
	return d.Skip(align - extra)
}

// Skip consumes n bytes without looking at them.
func (d *Decoder) Skip(n int) error {
	if err := d.need(n); err != nil {
		return err
	}
	d.offset += n
	return nil
}

// Read reads n bytes, with no framing or padding. The returned slice
// aliases In.
func (d *Decoder) Read(n int) ([]byte, error) {
	if err := d.need(n); err != nil {
		return nil, err
	}
	ret := d.In[d.offset : d.offset+n : d.offset+n]
	d.offset += n
	return ret, nil
}

// Bool reads a one byte boolean.
func (d *Decoder) Bool() (bool, error) {
	v, err := d.Uint8()
	return v != 0, err
}

// Uint8 reads a uint8.
func (d *Decoder) Uint8() (uint8, error) {
	if err := d.need(1); err != nil {
		return 0, err
	}
	ret := d.In[d.offset]
	d.offset++
	return ret, nil
}

// Uint16 reads a uint16.
func (d *Decoder) Uint16() (uint16, error) {
	bs, err := d.Read(2)
	if err != nil {
		return 0, err
	}
	return d.Order.Uint16(bs), nil
}

// Int16 reads an int16.
func (d *Decoder) Int16() (int16, error) {
	u, err := d.Uint16()
	return int16(u), err
}

// Uint32 reads a uint32.
func (d *Decoder) Uint32() (uint32, error) {
	bs, err := d.Read(4)
	if err != nil {
		return 0, err
	}
	return d.Order.Uint32(bs), nil
}

// CountedString reads a string prefixed by a uint16 length, and the
// padding that follows it.
func (d *Decoder) CountedString() (string, error) {
	start := d.offset
	ln, err := d.Uint16()
	if err != nil {
		return "", err
	}
	bs, err := d.Read(int(ln))
	if err != nil {
		d.offset = start
		return "", err
	}
	if err := d.Skip(Pad4(2+int(ln)) - 2 - int(ln)); err != nil {
		d.offset = start
		return "", err
	}
	return string(bs), nil
}

// ShortString reads a string prefixed by a uint8 length, with no
// padding.
func (d *Decoder) ShortString() (string, error) {
	start := d.offset
	ln, err := d.Uint8()
	if err != nil {
		return "", err
	}
	bs, err := d.Read(int(ln))
	if err != nil {
		d.offset = start
		return "", err
	}
	return string(bs), nil
}

// ByteOrderFlag reads an X11 byte order byte, and sets
// [Decoder.Order] to match it.
func (d *Decoder) ByteOrderFlag() error {
	v, err := d.Uint8()
	if err != nil {
		return err
	}
	o, ok := OrderForFlag(v)
	if !ok {
		return fmt.Errorf("unknown byte order flag %q", v)
	}
	d.Order = o
	return nil
}
