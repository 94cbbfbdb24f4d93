package xkbtest

import (
	"testing"

	"github.com/danderson/xkb"
	"github.com/danderson/xkb/fragments"
)

// KeyBehavior is a key behavior in its wire form.
type KeyBehavior struct {
	Key, Type, Data uint8
}

// KeyValue is a per-key byte, as found in explicit component and
// modifier map lists.
type KeyValue struct {
	Key, Value uint8
}

// KeyVMods is a key's virtual modifier map.
type KeyVMods struct {
	Key   uint8
	VMods uint16
}

// Map is a decoded GetMap reply. Each per-key component is the
// range of keys it covers, and its entries.
type Map struct {
	DeviceID   uint8
	MinKeyCode uint8
	MaxKeyCode uint8
	Present    uint16

	FirstType  uint8
	TotalTypes uint8
	Types      []xkb.KeyType

	FirstKeySym uint8
	Syms        []xkb.KeySymMap

	FirstKeyAct uint8
	Actions     [][]xkb.Action

	FirstKeyBehavior uint8
	NKeyBehaviors    uint8
	Behaviors        []KeyBehavior

	VirtualMods uint16
	VMods       []uint8

	FirstKeyExplicit uint8
	NKeyExplicit     uint8
	Explicit         []KeyValue

	FirstModMapKey uint8
	NModMapKeys    uint8
	ModMap         []KeyValue

	FirstVModMapKey uint8
	NVModMapKeys    uint8
	VModMap         []KeyVMods
}

// ParseMap decodes a GetMap reply.
func ParseMap(t testing.TB, order fragments.ByteOrder, bs []byte) *Map {
	t.Helper()
	r := ParseReply(t, order, bs)
	m := &Map{DeviceID: r.Data}
	r.Skip(2)
	m.MinKeyCode = r.U8()
	m.MaxKeyCode = r.U8()
	m.Present = r.U16()
	m.FirstType = r.U8()
	nTypes := r.U8()
	m.TotalTypes = r.U8()
	m.FirstKeySym = r.U8()
	totalSyms := r.U16()
	nKeySyms := r.U8()
	m.FirstKeyAct = r.U8()
	totalActs := r.U16()
	nKeyActs := r.U8()
	m.FirstKeyBehavior = r.U8()
	m.NKeyBehaviors = r.U8()
	totalBehaviors := r.U8()
	m.FirstKeyExplicit = r.U8()
	m.NKeyExplicit = r.U8()
	totalExplicit := r.U8()
	m.FirstModMapKey = r.U8()
	m.NModMapKeys = r.U8()
	totalModMap := r.U8()
	m.FirstVModMapKey = r.U8()
	m.NVModMapKeys = r.U8()
	totalVModMap := r.U8()
	r.Skip(1)
	m.VirtualMods = r.U16()

	for range nTypes {
		var kt xkb.KeyType
		kt.Mods = r.Mods()
		kt.NumLevels = r.U8()
		nMap := int(r.U8())
		preserve := r.Bool()
		r.Skip(1)
		for range nMap {
			var e xkb.KTMapEntry
			e.Active = r.Bool()
			e.Mods.Mask = r.U8()
			e.Level = r.U8()
			e.Mods.RealMods = r.U8()
			e.Mods.VMods = r.U16()
			r.Skip(2)
			kt.Map = append(kt.Map, e)
		}
		if preserve {
			kt.Preserve = make([]xkb.Mods, 0, nMap)
			for range nMap {
				kt.Preserve = append(kt.Preserve, r.Mods())
			}
		}
		m.Types = append(m.Types, kt)
	}

	var nSyms int
	for range nKeySyms {
		var km xkb.KeySymMap
		copy(km.KTIndex[:], r.Read(xkb.NumKbdGroups))
		km.GroupInfo = r.U8()
		km.Width = r.U8()
		n := int(r.U16())
		km.Syms = make([]xkb.KeySym, 0, n)
		for range n {
			km.Syms = append(km.Syms, xkb.KeySym(r.U32()))
		}
		nSyms += n
		m.Syms = append(m.Syms, km)
	}
	if nSyms != int(totalSyms) {
		t.Fatalf("GetMap reply has %d syms, declares %d", nSyms, totalSyms)
	}

	if nKeyActs > 0 {
		counts := r.Read(int(nKeyActs))
		r.Pad()
		nActs := 0
		for _, n := range counts {
			var acts []xkb.Action
			for range n {
				acts = append(acts, r.Action())
			}
			nActs += int(n)
			m.Actions = append(m.Actions, acts)
		}
		if nActs != int(totalActs) {
			t.Fatalf("GetMap reply has %d actions, declares %d", nActs, totalActs)
		}
	}

	for range totalBehaviors {
		m.Behaviors = append(m.Behaviors, KeyBehavior{r.U8(), r.U8(), r.U8()})
		r.Skip(1)
	}

	for i := range xkb.NumVirtualMods {
		if m.VirtualMods&(1<<i) != 0 {
			m.VMods = append(m.VMods, r.U8())
		}
	}
	r.Pad()

	for range totalExplicit {
		m.Explicit = append(m.Explicit, KeyValue{r.U8(), r.U8()})
	}
	r.Pad()
	for range totalModMap {
		m.ModMap = append(m.ModMap, KeyValue{r.U8(), r.U8()})
	}
	r.Pad()
	for range totalVModMap {
		key := r.U8()
		r.Skip(1)
		m.VModMap = append(m.VModMap, KeyVMods{key, r.U16()})
	}
	r.Done()
	return m
}

// SetMap returns a SetMap request that sets every component of m on
// device spec. Applying a full GetMap reply with SetMap leaves the
// keyboard unchanged.
func (m *Map) SetMap(order fragments.ByteOrder, spec uint16, flags uint16) []byte {
	totalSyms := 0
	for _, s := range m.Syms {
		totalSyms += len(s.Syms)
	}
	totalActs := 0
	for _, a := range m.Actions {
		totalActs += len(a)
	}
	r := NewRequest(order, xkb.OpSetMap).
		U16(spec).
		U16(m.Present).
		U16(flags).
		U8(m.MinKeyCode).
		U8(m.MaxKeyCode).
		U8(m.FirstType).
		U8(uint8(len(m.Types))).
		U8(m.FirstKeySym).
		U8(uint8(len(m.Syms))).
		U16(uint16(totalSyms)).
		U8(m.FirstKeyAct).
		U8(uint8(len(m.Actions))).
		U16(uint16(totalActs)).
		U8(m.FirstKeyBehavior).
		U8(m.NKeyBehaviors).
		U8(uint8(len(m.Behaviors))).
		U8(m.FirstKeyExplicit).
		U8(m.NKeyExplicit).
		U8(uint8(len(m.Explicit))).
		U8(m.FirstModMapKey).
		U8(m.NModMapKeys).
		U8(uint8(len(m.ModMap))).
		U8(m.FirstVModMapKey).
		U8(m.NVModMapKeys).
		U8(uint8(len(m.VModMap))).
		U16(m.VirtualMods)

	for _, kt := range m.Types {
		r.Mods(kt.Mods.RealMods, kt.Mods.VMods).
			U8(kt.NumLevels).
			U8(uint8(len(kt.Map))).
			Bool(kt.Preserve != nil).
			Zero(1)
		for _, e := range kt.Map {
			r.U8(e.Level).U8(e.Mods.RealMods).U16(e.Mods.VMods)
		}
		for _, p := range kt.Preserve {
			r.Mods(p.RealMods, p.VMods)
		}
	}
	for _, s := range m.Syms {
		r.Raw(s.KTIndex[:]).U8(s.GroupInfo).U8(s.Width).U16(uint16(len(s.Syms)))
		for _, sym := range s.Syms {
			r.U32(uint32(sym))
		}
	}
	if len(m.Actions) > 0 {
		for _, a := range m.Actions {
			r.U8(uint8(len(a)))
		}
		r.Pad()
		for _, as := range m.Actions {
			for _, a := range as {
				r.Action(a)
			}
		}
	}
	for _, b := range m.Behaviors {
		r.U8(b.Key).U8(b.Type).U8(b.Data).Zero(1)
	}
	for _, v := range m.VMods {
		r.U8(v)
	}
	r.Pad()
	for _, e := range m.Explicit {
		r.U8(e.Key).U8(e.Value)
	}
	r.Pad()
	for _, e := range m.ModMap {
		r.U8(e.Key).U8(e.Value)
	}
	r.Pad()
	for _, e := range m.VModMap {
		r.U8(e.Key).Zero(1).U16(e.VMods)
	}
	return r.Bytes()
}
