package xkb

import (
	"github.com/danderson/xkb/fragments"
)

// keyRange is a range of keycodes: n keys starting at first.
type keyRange struct {
	first uint8
	n     uint8
}

func (k keyRange) keys() func(yield func(int) bool) {
	return func(yield func(int) bool) {
		for kc := int(k.first); kc < int(k.first)+int(k.n); kc++ {
			if !yield(kc) {
				return
			}
		}
	}
}

// mapParts selects the parts of a keyboard map carried by a GetMap
// reply.
type mapParts struct {
	present     uint16
	firstType   uint8
	nTypes      uint8
	syms        keyRange
	acts        keyRange
	behaviors   keyRange
	explicit    keyRange
	modMap      keyRange
	vmodMap     keyRange
	virtualMods uint16
}

// fullMapParts returns the mapParts selecting all of the components
// in which.
func fullMapParts(d *Desc, which uint16) mapParts {
	all := keyRange{d.MinKeyCode, uint8(d.NumKeys())}
	ret := mapParts{present: which}
	if which&KeyTypesMask != 0 {
		ret.nTypes = uint8(len(d.Types))
	}
	for _, c := range []struct {
		mask uint16
		r    *keyRange
	}{
		{KeySymsMask, &ret.syms},
		{KeyActionsMask, &ret.acts},
		{KeyBehaviorsMask, &ret.behaviors},
		{ExplicitComponentsMask, &ret.explicit},
		{ModifierMapMask, &ret.modMap},
		{VirtualModMapMask, &ret.vmodMap},
	} {
		if which&c.mask != 0 {
			*c.r = all
		}
	}
	if which&VirtualModsMask != 0 {
		ret.virtualMods = 0xffff
	}
	return ret
}

// checkKeyRange checks that r lies within d's keycode range. code
// identifies the range in the error value.
func checkKeyRange(d *Desc, r keyRange, code int) error {
	if r.n == 0 {
		return nil
	}
	if r.first < d.MinKeyCode {
		return errValue(errCode3(code, int(r.first), int(d.MinKeyCode)), "first key %d below minimum keycode %d", r.first, d.MinKeyCode)
	}
	if last := int(r.first) + int(r.n) - 1; last > int(d.MaxKeyCode) {
		return errValue(errCode4(code, int(r.first), int(r.n), int(d.MaxKeyCode)), "keys %d..%d beyond maximum keycode %d", r.first, last, d.MaxKeyCode)
	}
	return nil
}

// getMapRequest is a parsed GetMap request.
type getMapRequest struct {
	deviceSpec uint16
	full       uint16
	partial    uint16
	// ranges holds the partial ranges. Its present field is unused.
	ranges mapParts
}

func parseGetMap(in *reader) getMapRequest {
	var ret getMapRequest
	ret.deviceSpec = in.u16()
	ret.full = in.u16()
	ret.partial = in.u16()
	p := &ret.ranges
	p.firstType = in.u8()
	p.nTypes = in.u8()
	p.syms = keyRange{in.u8(), in.u8()}
	p.acts = keyRange{in.u8(), in.u8()}
	p.behaviors = keyRange{in.u8(), in.u8()}
	p.virtualMods = in.u16()
	p.explicit = keyRange{in.u8(), in.u8()}
	p.modMap = keyRange{in.u8(), in.u8()}
	p.vmodMap = keyRange{in.u8(), in.u8()}
	in.skip(2)
	return ret
}

// parts resolves the request against d.
func (g *getMapRequest) parts(d *Desc) (mapParts, error) {
	if g.full&g.partial != 0 {
		return mapParts{}, errMatch(errCode2(0x01, int(g.full&g.partial)), "components requested both fully and partially")
	}
	if bad := (g.full | g.partial) &^ AllMapComponents; bad != 0 {
		return mapParts{}, errValue(errCode2(0x02, int(bad)), "unknown map components %#x", bad)
	}
	ret := fullMapParts(d, g.full)
	ret.present = g.full | g.partial
	p := g.ranges
	if g.partial&KeyTypesMask != 0 {
		if int(p.firstType)+int(p.nTypes) > len(d.Types) {
			return mapParts{}, errValue(errCode4(0x04, len(d.Types), int(p.firstType), int(p.nTypes)), "key types %d+%d beyond %d types", p.firstType, p.nTypes, len(d.Types))
		}
		ret.firstType, ret.nTypes = p.firstType, p.nTypes
	}
	for _, c := range []struct {
		mask uint16
		code int
		from keyRange
		to   *keyRange
	}{
		{KeySymsMask, 0x05, p.syms, &ret.syms},
		{KeyActionsMask, 0x07, p.acts, &ret.acts},
		{KeyBehaviorsMask, 0x09, p.behaviors, &ret.behaviors},
		{ExplicitComponentsMask, 0x0b, p.explicit, &ret.explicit},
		{ModifierMapMask, 0x0d, p.modMap, &ret.modMap},
		{VirtualModMapMask, 0x0f, p.vmodMap, &ret.vmodMap},
	} {
		if g.partial&c.mask == 0 {
			continue
		}
		if err := checkKeyRange(d, c.from, c.code); err != nil {
			return mapParts{}, err
		}
		*c.to = c.from
	}
	if g.partial&VirtualModsMask != 0 {
		ret.virtualMods = p.virtualMods
	}
	return ret, nil
}

// mapTotals are the item counts of the variable length parts of a
// GetMap reply.
type mapTotals struct {
	syms      int
	acts      int
	behaviors int
	explicit  int
	modMap    int
	vmodMap   int
}

func (p *mapParts) totals(d *Desc) mapTotals {
	var ret mapTotals
	for kc := range p.syms.keys() {
		ret.syms += len(d.KeySyms(kc).Syms)
	}
	for kc := range p.acts.keys() {
		ret.acts += len(d.KeyActions(kc))
	}
	for kc := range p.behaviors.keys() {
		if d.KeyBehavior(kc) != nil {
			ret.behaviors++
		}
	}
	for kc := range p.explicit.keys() {
		if d.Explicit[d.idx(kc)] != 0 {
			ret.explicit++
		}
	}
	for kc := range p.modMap.keys() {
		if d.ModMap[d.idx(kc)] != 0 {
			ret.modMap++
		}
	}
	for kc := range p.vmodMap.keys() {
		if d.VModMap[d.idx(kc)] != 0 {
			ret.vmodMap++
		}
	}
	return ret
}

// keyTypeSize returns the wire size of a key type in a GetMap reply.
func keyTypeSize(t *KeyType) int {
	ret := 8 + 8*len(t.Map)
	if t.Preserve != nil {
		ret += 4 * len(t.Preserve)
	}
	return ret
}

// mapReplySize returns the size of a GetMap reply carrying p.
func mapReplySize(d *Desc, p *mapParts) int {
	tot := p.totals(d)
	ret := 40
	for i := range int(p.nTypes) {
		ret += keyTypeSize(&d.Types[int(p.firstType)+i])
	}
	ret += 8*int(p.syms.n) + 4*tot.syms
	if p.acts.n > 0 {
		ret += fragments.Pad4(int(p.acts.n)) + 8*tot.acts
	}
	ret += 4 * tot.behaviors
	ret += fragments.Pad4(popcount(p.virtualMods))
	ret += fragments.Pad4(2 * tot.explicit)
	ret += fragments.Pad4(2 * tot.modMap)
	ret += 4 * tot.vmodMap
	return ret
}

// writeMapReply writes a complete GetMap reply carrying p.
func writeMapReply(e *fragments.Encoder, c *Client, devID uint8, d *Desc, p *mapParts) (start, size int) {
	tot := p.totals(d)
	size = mapReplySize(d, p)
	start = beginReply(e, c, devID, size)
	e.Zero(2)
	e.Uint8(d.MinKeyCode)
	e.Uint8(d.MaxKeyCode)
	e.Uint16(p.present)
	e.Uint8(p.firstType)
	e.Uint8(p.nTypes)
	e.Uint8(uint8(len(d.Types)))
	e.Uint8(p.syms.first)
	e.Uint16(uint16(tot.syms))
	e.Uint8(p.syms.n)
	e.Uint8(p.acts.first)
	e.Uint16(uint16(tot.acts))
	e.Uint8(p.acts.n)
	e.Uint8(p.behaviors.first)
	e.Uint8(p.behaviors.n)
	e.Uint8(uint8(tot.behaviors))
	e.Uint8(p.explicit.first)
	e.Uint8(p.explicit.n)
	e.Uint8(uint8(tot.explicit))
	e.Uint8(p.modMap.first)
	e.Uint8(p.modMap.n)
	e.Uint8(uint8(tot.modMap))
	e.Uint8(p.vmodMap.first)
	e.Uint8(p.vmodMap.n)
	e.Uint8(uint8(tot.vmodMap))
	e.Zero(1)
	e.Uint16(p.virtualMods)

	for i := range int(p.nTypes) {
		t := &d.Types[int(p.firstType)+i]
		putMods(e, t.Mods)
		e.Uint8(t.NumLevels)
		e.Uint8(uint8(len(t.Map)))
		e.Bool(t.Preserve != nil)
		e.Zero(1)
		for _, m := range t.Map {
			e.Bool(m.Active)
			e.Uint8(m.Mods.Mask)
			e.Uint8(m.Level)
			e.Uint8(m.Mods.RealMods)
			e.Uint16(m.Mods.VMods)
			e.Zero(2)
		}
		for _, m := range t.Preserve {
			putMods(e, m)
		}
	}

	for kc := range p.syms.keys() {
		m := d.KeySyms(kc)
		e.Write(m.KTIndex[:])
		e.Uint8(m.GroupInfo)
		e.Uint8(m.Width)
		e.Uint16(uint16(len(m.Syms)))
		for _, s := range m.Syms {
			e.Uint32(uint32(s))
		}
	}

	if p.acts.n > 0 {
		for kc := range p.acts.keys() {
			e.Uint8(uint8(len(d.KeyActions(kc))))
		}
		e.Pad(4)
		for kc := range p.acts.keys() {
			for _, a := range d.KeyActions(kc) {
				putAction(e, a)
			}
		}
	}

	for kc := range p.behaviors.keys() {
		b := d.KeyBehavior(kc)
		if b == nil {
			continue
		}
		typ, data := behaviorWire(b)
		e.Uint8(uint8(kc))
		e.Uint8(typ)
		e.Uint8(data)
		e.Zero(1)
	}

	for i := range NumVirtualMods {
		if p.virtualMods&(1<<i) != 0 {
			e.Uint8(d.VMods[i])
		}
	}
	e.Pad(4)

	for kc := range p.explicit.keys() {
		if x := d.Explicit[d.idx(kc)]; x != 0 {
			e.Uint8(uint8(kc))
			e.Uint8(x)
		}
	}
	e.Pad(4)

	for kc := range p.modMap.keys() {
		if m := d.ModMap[d.idx(kc)]; m != 0 {
			e.Uint8(uint8(kc))
			e.Uint8(m)
		}
	}
	e.Pad(4)

	for kc := range p.vmodMap.keys() {
		if m := d.VModMap[d.idx(kc)]; m != 0 {
			e.Uint8(uint8(kc))
			e.Zero(1)
			e.Uint16(m)
		}
	}
	return start, size
}

func (s *Server) getMap(r *request) ([]byte, error) {
	req := parseGetMap(r.in)
	if err := r.done(); err != nil {
		return nil, err
	}
	dev, err := s.lookupDevice(req.deviceSpec, needKeyboard)
	if err != nil {
		return nil, err
	}
	d := dev.Keyboard.Desc
	parts, err := req.parts(d)
	if err != nil {
		return nil, err
	}
	e := r.client.encoder()
	start, size := writeMapReply(e, r.client, dev.ID, d, &parts)
	return e.Out, s.endReply(e, start, size, r.opcode)
}
