package fragments

// An Encoder provides utilities to write an X11 wire format message
// to a byte slice.
//
// Multi-byte values are written in Order. No padding is ever inserted
// implicitly, callers use [Encoder.Pad] where the protocol requires
// it.
type Encoder struct {
	// Order is the byte order to use when encoding multi-byte values.
	Order ByteOrder
	// Out is the encoded output.
	Out []byte
}

// Len returns the number of bytes written so far.
func (e *Encoder) Len() int {
	return len(e.Out)
}

// Pad inserts zero bytes as needed to make the message a multiple of
// align bytes. If the message is already correctly aligned, no
// padding is inserted.
func (e *Encoder) Pad(align int) {
	extra := len(e.Out) % align
	if extra == 0 {
		return
	}
	e.Zero(align - extra)
}

// Zero writes n zero bytes, typically the unused pad fields of a
// fixed-layout structure.
func (e *Encoder) Zero(n int) {
	for range n {
		e.Out = append(e.Out, 0)
	}
}

// Write writes bs as-is to the output. It is the caller's
// responsibility to ensure correct padding and encoding.
func (e *Encoder) Write(bs []byte) {
	e.Out = append(e.Out, bs...)
}

// Bool writes a one byte boolean.
func (e *Encoder) Bool(b bool) {
	if b {
		e.Uint8(1)
	} else {
		e.Uint8(0)
	}
}

// Uint8 writes a uint8.
func (e *Encoder) Uint8(u8 uint8) {
	e.Out = append(e.Out, u8)
}

// Uint16 writes a uint16.
func (e *Encoder) Uint16(u16 uint16) {
	e.Out = e.Order.AppendUint16(e.Out, u16)
}

// Int16 writes an int16.
func (e *Encoder) Int16(i16 int16) {
	e.Uint16(uint16(i16))
}

// Uint32 writes a uint32.
func (e *Encoder) Uint32(u32 uint32) {
	e.Out = e.Order.AppendUint32(e.Out, u32)
}

// CountedString writes s prefixed by its length as a uint16, and
// padded so that the length prefix plus string occupy a multiple of 4
// bytes.
func (e *Encoder) CountedString(s string) {
	e.Uint16(uint16(len(s)))
	e.Out = append(e.Out, s...)
	e.Zero(CountedStringSize(s) - 2 - len(s))
}

// ShortString writes s prefixed by its length as a uint8, with no
// padding.
func (e *Encoder) ShortString(s string) {
	e.Uint8(uint8(len(s)))
	e.Out = append(e.Out, s...)
}

// PutUint16 overwrites the uint16 at offset off of the output. It is
// used to fill in length and count fields once the data they describe
// has been written.
func (e *Encoder) PutUint16(off int, u16 uint16) {
	e.Order.PutUint16(e.Out[off:], u16)
}

// PutUint32 overwrites the uint32 at offset off of the output.
func (e *Encoder) PutUint32(off int, u32 uint32) {
	e.Order.PutUint32(e.Out[off:], u32)
}

// ByteOrderFlag writes the X11 byte order byte ('l' or 'B') that
// matches [Encoder.Order].
func (e *Encoder) ByteOrderFlag() {
	e.Write([]byte{e.Order.x11Flag()})
}

// CountedStringSize returns the number of bytes
// [Encoder.CountedString] writes for s.
func CountedStringSize(s string) int {
	return Pad4(2 + len(s))
}

// Pad4 rounds n up to a multiple of 4.
func Pad4(n int) int {
	return (n + 3) &^ 3
}
