package xkb

import (
	"github.com/danderson/xkb/fragments"
)

// reader is a typed cursor over a request. It wraps a
// fragments.Decoder and keeps the first read error, so that a run of
// fixed fields can be read without checking every field. Once a read
// fails, all later reads return zero values.
type reader struct {
	d   *fragments.Decoder
	err error
}

func (r *reader) fail(err error) {
	if r.err == nil {
		r.err = err
	}
}

func (r *reader) u8() uint8 {
	if r.err != nil {
		return 0
	}
	v, err := r.d.Uint8()
	r.fail(err)
	return v
}

func (r *reader) bool() bool {
	return r.u8() != 0
}

func (r *reader) u16() uint16 {
	if r.err != nil {
		return 0
	}
	v, err := r.d.Uint16()
	r.fail(err)
	return v
}

func (r *reader) i16() int16 {
	return int16(r.u16())
}

func (r *reader) u32() uint32 {
	if r.err != nil {
		return 0
	}
	v, err := r.d.Uint32()
	r.fail(err)
	return v
}

func (r *reader) atom() Atom {
	return Atom(r.u32())
}

func (r *reader) skip(n int) {
	if r.err != nil {
		return
	}
	r.fail(r.d.Skip(n))
}

// pad skips to the next 4 byte boundary.
func (r *reader) pad() {
	if r.err != nil {
		return
	}
	r.fail(r.d.Pad(4))
}

func (r *reader) countedString() string {
	if r.err != nil {
		return ""
	}
	s, err := r.d.CountedString()
	r.fail(err)
	return s
}

func (r *reader) shortString() string {
	if r.err != nil {
		return ""
	}
	s, err := r.d.ShortString()
	r.fail(err)
	return s
}

func (r *reader) keyName() KeyName {
	var ret KeyName
	if r.err != nil {
		return ret
	}
	bs, err := r.d.Read(KeyNameLength)
	r.fail(err)
	copy(ret[:], bs)
	return ret
}

// mods reads a modifier definition in its 4 byte wire form. The mask
// byte is read but discarded: the server always computes it.
func (r *reader) mods() Mods {
	r.u8()
	return Mods{
		RealMods: r.u8(),
		VMods:    r.u16(),
	}
}

// count reads n items with fn, stopping early on error.
func (r *reader) count(n int, fn func()) {
	for range n {
		if r.err != nil {
			return
		}
		fn()
	}
}

// putMods writes m in its 4 byte wire form.
func putMods(e *fragments.Encoder, m Mods) {
	e.Uint8(m.Mask)
	e.Uint8(m.RealMods)
	e.Uint16(m.VMods)
}

func putKeyName(e *fragments.Encoder, n KeyName) {
	e.Write(n[:])
}

func putAction(e *fragments.Encoder, a Action) {
	e.Uint8(a.Type)
	e.Write(a.Data[:])
}

func (r *reader) action() Action {
	var ret Action
	ret.Type = r.u8()
	for i := range ret.Data {
		ret.Data[i] = r.u8()
	}
	return ret
}
