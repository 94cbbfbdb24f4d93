package xkb

import (
	"slices"

	"github.com/danderson/xkb/fragments"
)

// componentNameMasks are the names masks of the component names, in
// wire order.
var componentNameMasks = [...]uint32{
	KeycodesNameMask,
	GeometryNameMask,
	SymbolsNameMask,
	PhysSymbolsNameMask,
	TypesNameMask,
	CompatNameMask,
}

func (n *Names) components() [6]*Atom {
	return [6]*Atom{&n.Keycodes, &n.Geometry, &n.Symbols, &n.PhysSymbols, &n.Types, &n.Compat}
}

// namesParts is the content of a GetNames reply.
type namesParts struct {
	which        uint32
	nTypes       int
	nKTLevels    int
	indicators   uint32
	vmods        uint16
	groups       uint8
	firstKey     uint8
	nKeys        uint8
	nKeyAliases  int
	nRadioGroups int
}

// namesParts resolves the names requested by which. Parts that are
// requested but empty are removed from which.
func (d *Desc) namesParts(which uint32) namesParts {
	n := &d.Names
	ret := namesParts{which: which & AllNamesMask}
	if ret.which&(KeyTypeNamesMask|KTLevelNamesMask) != 0 {
		ret.nTypes = len(d.Types)
	}
	if ret.which&KTLevelNamesMask != 0 {
		for _, t := range d.Types {
			ret.nKTLevels += int(t.NumLevels)
		}
	}
	if ret.which&IndicatorNamesMask != 0 {
		for i, a := range n.Indicators {
			if a != None {
				ret.indicators |= 1 << i
			}
		}
		if ret.indicators == 0 {
			ret.which &^= IndicatorNamesMask
		}
	}
	if ret.which&VirtualModNamesMask != 0 {
		for i, a := range n.VMods {
			if a != None {
				ret.vmods |= 1 << i
			}
		}
		if ret.vmods == 0 {
			ret.which &^= VirtualModNamesMask
		}
	}
	if ret.which&GroupNamesMask != 0 {
		for i, a := range n.Groups {
			if a != None {
				ret.groups |= 1 << i
			}
		}
		if ret.groups == 0 {
			ret.which &^= GroupNamesMask
		}
	}
	if ret.which&KeyNamesMask != 0 {
		ret.firstKey, ret.nKeys = d.MinKeyCode, uint8(d.NumKeys())
	}
	if ret.which&KeyAliasesMask != 0 {
		ret.nKeyAliases = len(n.KeyAliases)
		if ret.nKeyAliases == 0 {
			ret.which &^= KeyAliasesMask
		}
	}
	if ret.which&RGNamesMask != 0 {
		ret.nRadioGroups = len(n.RadioGroups)
		if ret.nRadioGroups == 0 {
			ret.which &^= RGNamesMask
		}
	}
	return ret
}

func (p *namesParts) size() int {
	ret := replyHeaderLen
	for _, m := range componentNameMasks {
		if p.which&m != 0 {
			ret += 4
		}
	}
	if p.which&KeyTypeNamesMask != 0 {
		ret += 4 * p.nTypes
	}
	if p.which&KTLevelNamesMask != 0 {
		ret += fragments.Pad4(p.nTypes) + 4*p.nKTLevels
	}
	ret += 4 * popcount(p.indicators)
	ret += 4 * popcount(p.vmods)
	ret += 4 * popcount(p.groups)
	ret += 4 * int(p.nKeys)
	ret += 8 * p.nKeyAliases
	ret += 4 * p.nRadioGroups
	return ret
}

// writeNamesReply writes a complete GetNames reply.
func writeNamesReply(e *fragments.Encoder, c *Client, devID uint8, d *Desc, p *namesParts) (start, size int) {
	n := &d.Names
	size = p.size()
	start = beginReply(e, c, devID, size)
	e.Uint32(p.which)
	e.Uint8(d.MinKeyCode)
	e.Uint8(d.MaxKeyCode)
	e.Uint8(uint8(p.nTypes))
	e.Uint8(p.groups)
	e.Uint16(p.vmods)
	e.Uint8(p.firstKey)
	e.Uint8(p.nKeys)
	e.Uint32(p.indicators)
	e.Uint8(uint8(p.nRadioGroups))
	e.Uint8(uint8(p.nKeyAliases))
	e.Uint16(uint16(p.nKTLevels))
	e.Zero(4)

	for i, a := range n.components() {
		if p.which&componentNameMasks[i] != 0 {
			e.Uint32(uint32(*a))
		}
	}
	if p.which&KeyTypeNamesMask != 0 {
		for _, t := range d.Types {
			e.Uint32(uint32(t.Name))
		}
	}
	if p.which&KTLevelNamesMask != 0 {
		for _, t := range d.Types {
			e.Uint8(t.NumLevels)
		}
		e.Pad(4)
		for _, t := range d.Types {
			for _, a := range t.LevelNames {
				e.Uint32(uint32(a))
			}
		}
	}
	for i, a := range n.Indicators {
		if p.indicators&(1<<i) != 0 {
			e.Uint32(uint32(a))
		}
	}
	for i, a := range n.VMods {
		if p.vmods&(1<<i) != 0 {
			e.Uint32(uint32(a))
		}
	}
	for i, a := range n.Groups {
		if p.groups&(1<<i) != 0 {
			e.Uint32(uint32(a))
		}
	}
	if p.nKeys > 0 {
		for _, k := range n.Keys {
			putKeyName(e, k)
		}
	}
	if p.nKeyAliases > 0 {
		for _, a := range n.KeyAliases {
			putKeyName(e, a.Real)
			putKeyName(e, a.Alias)
		}
	}
	if p.nRadioGroups > 0 {
		for _, a := range n.RadioGroups {
			e.Uint32(uint32(a))
		}
	}
	return start, size
}

func (s *Server) getNames(r *request) ([]byte, error) {
	spec := r.in.u16()
	r.in.skip(2)
	which := r.in.u32()
	if err := r.done(); err != nil {
		return nil, err
	}
	dev, err := s.lookupDevice(spec, needKeyboard)
	if err != nil {
		return nil, err
	}
	d := dev.Keyboard.Desc
	p := d.namesParts(which)
	e := r.client.encoder()
	start, size := writeNamesReply(e, r.client, dev.ID, d, &p)
	return e.Out, s.endReply(e, start, size, r.opcode)
}

// setNamesRequest is a parsed SetNames request.
type setNamesRequest struct {
	deviceSpec  uint16
	which       uint32
	components  [6]Atom
	firstType   uint8
	typeNames   []Atom
	firstKTLvl  uint8
	levelCounts []uint8
	levelNames  []Atom
	indicators  uint32
	indNames    [NumIndicators]Atom
	vmods       uint16
	vmodNames   [NumVirtualMods]Atom
	groups      uint8
	groupNames  [NumKbdGroups]Atom
	keys        keyRange
	keyNames    []KeyName
	keyAliases  []KeyAlias
	radioGroups []Atom
}

func parseSetNames(in *reader) *setNamesRequest {
	ret := &setNamesRequest{}
	ret.deviceSpec = in.u16()
	ret.vmods = in.u16()
	ret.which = in.u32()
	ret.firstType = in.u8()
	nTypes := in.u8()
	ret.firstKTLvl = in.u8()
	nKTLevels := in.u8()
	ret.indicators = in.u32()
	ret.groups = in.u8()
	nRadioGroups := in.u8()
	ret.keys = keyRange{in.u8(), in.u8()}
	nKeyAliases := in.u8()
	in.skip(1)
	totalLevelNames := in.u16()

	for i, m := range componentNameMasks {
		if ret.which&m != 0 {
			ret.components[i] = in.atom()
		}
	}
	if ret.which&KeyTypeNamesMask != 0 {
		in.count(int(nTypes), func() { ret.typeNames = append(ret.typeNames, in.atom()) })
	}
	if ret.which&KTLevelNamesMask != 0 {
		in.count(int(nKTLevels), func() { ret.levelCounts = append(ret.levelCounts, in.u8()) })
		in.pad()
		in.count(int(totalLevelNames), func() { ret.levelNames = append(ret.levelNames, in.atom()) })
	}
	if ret.which&IndicatorNamesMask != 0 {
		for i := range NumIndicators {
			if ret.indicators&(1<<i) != 0 {
				ret.indNames[i] = in.atom()
			}
		}
	}
	if ret.which&VirtualModNamesMask != 0 {
		for i := range NumVirtualMods {
			if ret.vmods&(1<<i) != 0 {
				ret.vmodNames[i] = in.atom()
			}
		}
	}
	if ret.which&GroupNamesMask != 0 {
		for i := range NumKbdGroups {
			if ret.groups&(1<<i) != 0 {
				ret.groupNames[i] = in.atom()
			}
		}
	}
	if ret.which&KeyNamesMask != 0 {
		in.count(int(ret.keys.n), func() { ret.keyNames = append(ret.keyNames, in.keyName()) })
	}
	if ret.which&KeyAliasesMask != 0 {
		in.count(int(nKeyAliases), func() {
			ret.keyAliases = append(ret.keyAliases, KeyAlias{Real: in.keyName(), Alias: in.keyName()})
		})
	}
	if ret.which&RGNamesMask != 0 {
		in.count(int(nRadioGroups), func() { ret.radioGroups = append(ret.radioGroups, in.atom()) })
	}
	return ret
}

// atoms returns every atom carried by the request.
func (m *setNamesRequest) atoms() []Atom {
	var ret []Atom
	ret = append(ret, m.components[:]...)
	ret = append(ret, m.typeNames...)
	ret = append(ret, m.levelNames...)
	ret = append(ret, m.indNames[:]...)
	ret = append(ret, m.vmodNames[:]...)
	ret = append(ret, m.groupNames[:]...)
	ret = append(ret, m.radioGroups...)
	return ret
}

func (m *setNamesRequest) check(s *Server, d *Desc) error {
	if bad := m.which &^ AllNamesMask; bad != 0 {
		return errValue(errCode2(0x01, int(bad)), "unknown names components %#x", bad)
	}
	for _, a := range m.atoms() {
		if err := s.atoms.check(a); err != nil {
			return err
		}
	}
	if m.which&KeyTypeNamesMask != 0 {
		if len(m.typeNames) < 1 {
			return errValue(errCode2(0x02, len(m.typeNames)), "no key type names")
		}
		if int(m.firstType)+len(m.typeNames) > len(d.Types) {
			return errMatch(errCode4(0x03, int(m.firstType), len(m.typeNames), len(d.Types)), "key type names %d+%d beyond %d types", m.firstType, len(m.typeNames), len(d.Types))
		}
	}
	if m.which&KTLevelNamesMask != 0 {
		if int(m.firstKTLvl)+len(m.levelCounts) > len(d.Types) {
			return errMatch(errCode4(0x04, int(m.firstKTLvl), len(m.levelCounts), len(d.Types)), "level names for types %d+%d beyond %d types", m.firstKTLvl, len(m.levelCounts), len(d.Types))
		}
		total := 0
		for i, n := range m.levelCounts {
			idx := int(m.firstKTLvl) + i
			if n != d.Types[idx].NumLevels {
				return errMatch(errCode4(0x05, idx, int(n), int(d.Types[idx].NumLevels)), "key type %d: %d level names for %d levels", idx, n, d.Types[idx].NumLevels)
			}
			total += int(n)
		}
		if total != len(m.levelNames) {
			return errMatch(errCode3(0x06, total, len(m.levelNames)), "%d level names declared, %d sent", total, len(m.levelNames))
		}
	}
	if m.which&KeyNamesMask != 0 {
		if err := checkKeyRange(d, m.keys, 0x07); err != nil {
			return err
		}
	}
	if m.which&RGNamesMask != 0 && len(m.radioGroups) > MaxRadioGroups {
		return errValue(errCode2(0x09, len(m.radioGroups)), "%d radio group names", len(m.radioGroups))
	}
	return nil
}

func (s *Server) applySetNames(m *setNamesRequest, dev *Device) error {
	d := dev.Keyboard.Desc
	n := &d.Names
	ev := &namesChanges{changed: uint16(m.which)}
	for i, a := range n.components() {
		if m.which&componentNameMasks[i] != 0 {
			*a = m.components[i]
		}
	}
	if m.which&KeyTypeNamesMask != 0 {
		for i, a := range m.typeNames {
			d.Types[int(m.firstType)+i].Name = a
		}
		ev.firstType, ev.nTypes = m.firstType, uint8(len(m.typeNames))
	}
	if m.which&KTLevelNamesMask != 0 {
		names := m.levelNames
		for i, cnt := range m.levelCounts {
			t := &d.Types[int(m.firstKTLvl)+i]
			copy(t.LevelNames, names[:cnt])
			names = names[cnt:]
		}
		ev.firstLevelName, ev.nLevelNames = m.firstKTLvl, uint8(len(m.levelCounts))
	}
	if m.which&IndicatorNamesMask != 0 {
		for i := range NumIndicators {
			if m.indicators&(1<<i) != 0 {
				n.Indicators[i] = m.indNames[i]
			}
		}
		ev.changedIndicators = m.indicators
	}
	if m.which&VirtualModNamesMask != 0 {
		for i := range NumVirtualMods {
			if m.vmods&(1<<i) != 0 {
				n.VMods[i] = m.vmodNames[i]
			}
		}
		ev.changedVMods = m.vmods
	}
	if m.which&GroupNamesMask != 0 {
		for i := range NumKbdGroups {
			if m.groups&(1<<i) != 0 {
				n.Groups[i] = m.groupNames[i]
			}
		}
		ev.changedGroupNames = m.groups
	}
	if m.which&KeyNamesMask != 0 {
		for i, k := range m.keyNames {
			n.Keys[d.idx(int(m.keys.first)+i)] = k
		}
		ev.firstKey, ev.nKeys = m.keys.first, m.keys.n
	}
	if m.which&KeyAliasesMask != 0 {
		n.KeyAliases = slices.Clone(m.keyAliases)
		ev.nAliases = uint8(len(n.KeyAliases))
	}
	if m.which&RGNamesMask != 0 {
		n.RadioGroups = slices.Clone(m.radioGroups)
		ev.nRadioGroups = uint8(len(n.RadioGroups))
	}
	s.notify(dev, ev)
	return nil
}

func (s *Server) setNames(r *request) ([]byte, error) {
	m := parseSetNames(r.in)
	if err := r.done(); err != nil {
		return nil, err
	}
	dev, err := s.lookupDevice(m.deviceSpec, needKeyboard)
	if err != nil {
		return nil, err
	}
	plan := s.plan(m.deviceSpec, dev, needKeyboard)
	if err := plan.Validate(func(d *Device) error { return m.check(s, d.Keyboard.Desc) }); err != nil {
		return nil, err
	}
	return nil, plan.Commit(func(d *Device) error { return s.applySetNames(m, d) })
}
