package fragments

import (
	"encoding/binary"

	"golang.org/x/sys/cpu"
)

// ByteOrder is the byte order of an X11 connection. It is chosen by
// the client in the first byte of the connection setup, and applies
// to every request, reply and event on that connection.
type ByteOrder interface {
	byteOrder
	x11Flag() byte
}

type byteOrder interface {
	binary.ByteOrder
	binary.AppendByteOrder
}

type wrapStd struct {
	byteOrder
}

func (w wrapStd) x11Flag() byte {
	switch w.byteOrder {
	case binary.BigEndian:
		return 'B'
	case binary.LittleEndian:
		return 'l'
	case binary.NativeEndian:
		if cpu.IsBigEndian {
			return 'B'
		}
		return 'l'
	default:
		panic("unknown ByteOrder, how did you manage to make one of those?")
	}
}

var (
	BigEndian    = wrapStd{binary.BigEndian}
	LittleEndian = wrapStd{binary.LittleEndian}
	NativeEndian = wrapStd{binary.NativeEndian}
)

// OrderForFlag returns the ByteOrder named by an X11 byte order
// byte, 'B' (MSB first) or 'l' (LSB first).
func OrderForFlag(flag byte) (ByteOrder, bool) {
	switch flag {
	case 'B':
		return BigEndian, true
	case 'l':
		return LittleEndian, true
	}
	return nil, false
}

// Swapped reports whether o differs from the host's native byte
// order, which is when the X server has to swap multi-byte fields for
// the client.
func Swapped(o ByteOrder) bool {
	return o.x11Flag() != NativeEndian.x11Flag()
}

// Flag returns the X11 byte order byte for o.
func Flag(o ByteOrder) byte {
	return o.x11Flag()
}
