package xkbtest

import (
	"github.com/danderson/xkb"
	"github.com/danderson/xkb/fragments"
)

// Request builds an XKB request.
type Request struct {
	e fragments.Encoder
}

// NewRequest starts a request for the given XKB minor opcode.
func NewRequest(order fragments.ByteOrder, op xkb.Opcode) *Request {
	ret := &Request{e: fragments.Encoder{Order: order}}
	ret.e.Uint8(xkb.MajorOpcode)
	ret.e.Uint8(uint8(op))
	ret.e.Uint16(0)
	return ret
}

func (r *Request) U8(v uint8) *Request      { r.e.Uint8(v); return r }
func (r *Request) U16(v uint16) *Request    { r.e.Uint16(v); return r }
func (r *Request) I16(v int16) *Request     { r.e.Int16(v); return r }
func (r *Request) U32(v uint32) *Request    { r.e.Uint32(v); return r }
func (r *Request) Atom(a xkb.Atom) *Request { r.e.Uint32(uint32(a)); return r }
func (r *Request) Bool(b bool) *Request     { r.e.Bool(b); return r }
func (r *Request) Zero(n int) *Request      { r.e.Zero(n); return r }
func (r *Request) Raw(bs []byte) *Request   { r.e.Write(bs); return r }

// Pad pads the request to a multiple of 4 bytes.
func (r *Request) Pad() *Request { r.e.Pad(4); return r }

// KeyName writes a 4 byte key name.
func (r *Request) KeyName(n string) *Request {
	k := xkb.MakeKeyName(n)
	r.e.Write(k[:])
	return r
}

// Mods writes a 4 byte modifier definition, with a zero mask.
func (r *Request) Mods(realMods uint8, vmods uint16) *Request {
	r.e.Uint8(0)
	r.e.Uint8(realMods)
	r.e.Uint16(vmods)
	return r
}

func (r *Request) CountedString(s string) *Request { r.e.CountedString(s); return r }
func (r *Request) ShortString(s string) *Request   { r.e.ShortString(s); return r }

// Action writes an 8 byte key action.
func (r *Request) Action(a xkb.Action) *Request {
	r.e.Uint8(a.Type)
	r.e.Write(a.Data[:])
	return r
}

// Len returns the length of the request so far.
func (r *Request) Len() int { return r.e.Len() }

// Bytes pads the request, fills in its length and returns it.
func (r *Request) Bytes() []byte {
	r.e.Pad(4)
	r.e.PutUint16(2, uint16(r.e.Len()/4))
	return r.e.Out
}

// UseExtension returns a UseExtension request.
func UseExtension(order fragments.ByteOrder, major, minor uint16) []byte {
	return NewRequest(order, xkb.OpUseExtension).U16(major).U16(minor).Bytes()
}

// SelectAll returns a SelectEvents request selecting every event on
// device spec.
func SelectAll(order fragments.ByteOrder, spec uint16) []byte {
	const all = 0x0fff
	return NewRequest(order, xkb.OpSelectEvents).
		U16(spec).
		U16(all). // affectWhich
		U16(0).   // clear
		U16(all). // selectAll
		U16(0).   // affectMap
		U16(0).   // map
		Bytes()
}

// SelectMapEvents returns a SelectEvents request selecting MapNotify
// events for the given map components only.
func SelectMapEvents(order fragments.ByteOrder, spec uint16, components uint16) []byte {
	return NewRequest(order, xkb.OpSelectEvents).
		U16(spec).
		U16(1 << 1).
		U16(0).
		U16(0).
		U16(xkb.AllMapComponents).
		U16(components).
		Bytes()
}

// GetState returns a GetState request.
func GetState(order fragments.ByteOrder, spec uint16) []byte {
	return NewRequest(order, xkb.OpGetState).U16(spec).Zero(2).Bytes()
}

// GetControls returns a GetControls request.
func GetControls(order fragments.ByteOrder, spec uint16) []byte {
	return NewRequest(order, xkb.OpGetControls).U16(spec).Zero(2).Bytes()
}

// GetMap returns a GetMap request for all of the components in full.
func GetMap(order fragments.ByteOrder, spec uint16, full uint16) []byte {
	return NewRequest(order, xkb.OpGetMap).
		U16(spec).
		U16(full).
		U16(0).
		Zero(18).
		Bytes()
}

// PartialMap describes the ranges of a partial GetMap request.
type PartialMap struct {
	Components                    uint16
	FirstType, NTypes             uint8
	FirstKeySym, NKeySyms         uint8
	FirstKeyAct, NKeyActs         uint8
	FirstBehavior, NBehaviors     uint8
	VirtualMods                   uint16
	FirstExplicit, NExplicit      uint8
	FirstModMapKey, NModMapKeys   uint8
	FirstVModMapKey, NVModMapKeys uint8
}

// GetPartialMap returns a GetMap request with full and partial
// components.
func GetPartialMap(order fragments.ByteOrder, spec uint16, full uint16, p PartialMap) []byte {
	return NewRequest(order, xkb.OpGetMap).
		U16(spec).
		U16(full).
		U16(p.Components).
		U8(p.FirstType).U8(p.NTypes).
		U8(p.FirstKeySym).U8(p.NKeySyms).
		U8(p.FirstKeyAct).U8(p.NKeyActs).
		U8(p.FirstBehavior).U8(p.NBehaviors).
		U16(p.VirtualMods).
		U8(p.FirstExplicit).U8(p.NExplicit).
		U8(p.FirstModMapKey).U8(p.NModMapKeys).
		U8(p.FirstVModMapKey).U8(p.NVModMapKeys).
		Zero(2).
		Bytes()
}

// GetCompatMap returns a GetCompatMap request.
func GetCompatMap(order fragments.ByteOrder, spec uint16, groups uint8, getAll bool, firstSI, nSI uint16) []byte {
	return NewRequest(order, xkb.OpGetCompatMap).
		U16(spec).
		U8(groups).
		Bool(getAll).
		U16(firstSI).
		U16(nSI).
		Bytes()
}

// GetIndicatorState returns a GetIndicatorState request.
func GetIndicatorState(order fragments.ByteOrder, spec uint16) []byte {
	return NewRequest(order, xkb.OpGetIndicatorState).U16(spec).Zero(2).Bytes()
}

// GetIndicatorMap returns a GetIndicatorMap request.
func GetIndicatorMap(order fragments.ByteOrder, spec uint16, which uint32) []byte {
	return NewRequest(order, xkb.OpGetIndicatorMap).U16(spec).Zero(2).U32(which).Bytes()
}

// GetNamedIndicator returns a GetNamedIndicator request on the
// default LED feedback.
func GetNamedIndicator(order fragments.ByteOrder, spec uint16, name xkb.Atom) []byte {
	return NewRequest(order, xkb.OpGetNamedIndicator).
		U16(spec).
		U16(xkb.DfltXIClass).
		U16(xkb.DfltXIID).
		Zero(2).
		Atom(name).
		Bytes()
}

// GetNames returns a GetNames request.
func GetNames(order fragments.ByteOrder, spec uint16, which uint32) []byte {
	return NewRequest(order, xkb.OpGetNames).U16(spec).Zero(2).U32(which).Bytes()
}

// GetGeometry returns a GetGeometry request.
func GetGeometry(order fragments.ByteOrder, spec uint16, name xkb.Atom) []byte {
	return NewRequest(order, xkb.OpGetGeometry).U16(spec).Zero(2).Atom(name).Bytes()
}

// GetKbdByName returns a GetKbdByName request.
func GetKbdByName(order fragments.ByteOrder, spec uint16, names xkb.ComponentNames, want, need uint16, load bool) []byte {
	r := NewRequest(order, xkb.OpGetKbdByName).
		U16(spec).
		U16(need).
		U16(want).
		Bool(load).
		Zero(1)
	for _, s := range []string{names.Keymap, names.Keycodes, names.Types, names.Compat, names.Symbols, names.Geometry} {
		r.ShortString(s)
	}
	return r.Bytes()
}
