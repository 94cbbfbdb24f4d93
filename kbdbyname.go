package xkb

import (
	"github.com/danderson/xkb/fragments"
)

// getKbdByNameRequest is a parsed GetKbdByName request.
type getKbdByNameRequest struct {
	deviceSpec uint16
	need       uint16
	want       uint16
	load       bool
	names      ComponentNames
}

func parseGetKbdByName(in *reader) *getKbdByNameRequest {
	m := &getKbdByNameRequest{}
	m.deviceSpec = in.u16()
	m.need = in.u16()
	m.want = in.u16()
	m.load = in.bool()
	in.skip(1)
	m.names = ComponentNames{
		Keymap:   in.shortString(),
		Keycodes: in.shortString(),
		Types:    in.shortString(),
		Compat:   in.shortString(),
		Symbols:  in.shortString(),
		Geometry: in.shortString(),
	}
	in.pad()
	return m
}

// kbdByNameParts are the sub-replies of a GetKbdByName reply.
type kbdByNameParts struct {
	desc     *Desc
	reported uint16

	mapParts   mapParts
	compat     compatRange
	indicators uint32
	names      namesParts
}

func newKbdByNameParts(d *Desc, reported uint16) *kbdByNameParts {
	ret := &kbdByNameParts{desc: d, reported: reported}
	if d == nil {
		ret.reported = 0
		return ret
	}
	var present uint16
	if reported&(GBNTypesMask|GBNClientSymbolsMask) != 0 {
		present |= KeyTypesMask
	}
	if reported&GBNClientSymbolsMask != 0 {
		present |= KeySymsMask | ModifierMapMask
	}
	if reported&GBNServerSymbolsMask != 0 {
		present |= AllServerInfoMask
	}
	ret.mapParts = fullMapParts(d, present)
	ret.compat = compatRange{
		groups: 1<<NumKbdGroups - 1,
		nSI:    uint16(len(d.Compat.SymInterprets)),
	}
	ret.indicators = ^uint32(0)
	var names uint32
	if reported&GBNKeyNamesMask != 0 {
		names |= KeycodesNameMask | KeyNamesMask | KeyAliasesMask
	}
	if reported&GBNOtherNamesMask != 0 {
		names |= AllNamesMask &^ (KeycodesNameMask | KeyNamesMask | KeyAliasesMask)
	}
	ret.names = d.namesParts(names)
	return ret
}

func (p *kbdByNameParts) hasMap() bool {
	return p.reported&(GBNTypesMask|GBNClientSymbolsMask|GBNServerSymbolsMask) != 0
}

func (p *kbdByNameParts) hasNames() bool {
	return p.reported&(GBNKeyNamesMask|GBNOtherNamesMask) != 0
}

func (p *kbdByNameParts) size() int {
	ret := replyHeaderLen
	if p.hasMap() {
		ret += mapReplySize(p.desc, &p.mapParts)
	}
	if p.reported&GBNCompatMapMask != 0 {
		ret += compatReplySize(&p.compat)
	}
	if p.reported&GBNIndicatorMapMask != 0 {
		ret += replyHeaderLen + indicatorMapLen*popcount(p.indicators)
	}
	if p.hasNames() {
		ret += p.names.size()
	}
	if p.reported&GBNGeometryMask != 0 {
		ret += replyHeaderLen
		if p.desc.Geometry != nil {
			ret += geometrySize(p.desc.Geometry)
		}
	}
	return ret
}

func (p *kbdByNameParts) write(e *fragments.Encoder, c *Client, devID uint8) {
	d := p.desc
	if p.hasMap() {
		writeMapReply(e, c, devID, d, &p.mapParts)
	}
	if p.reported&GBNCompatMapMask != 0 {
		writeCompatReply(e, c, devID, d, &p.compat)
	}
	if p.reported&GBNIndicatorMapMask != 0 {
		writeIndicatorReply(e, c, devID, d, p.indicators)
	}
	if p.hasNames() {
		writeNamesReply(e, c, devID, d, &p.names)
	}
	if p.reported&GBNGeometryMask != 0 {
		writeGeometryReply(e, c, devID, d.Geometry, None)
	}
}

func (s *Server) getKbdByName(r *request) ([]byte, error) {
	m := parseGetKbdByName(r.in)
	if err := r.done(); err != nil {
		return nil, err
	}
	dev, err := s.lookupDevice(m.deviceSpec, needKeyboard)
	if err != nil {
		return nil, err
	}
	if bad := (m.need | m.want) &^ GBNAllComponentsMask; bad != 0 {
		return nil, errValue(errCode2(0x01, int(bad)), "unknown keymap components %#x", bad)
	}

	var (
		desc  *Desc
		found uint16
	)
	if s.loader != nil {
		desc, found, err = s.loader.LoadKeymap(r.ctx, s.atoms, m.names, m.want, m.need)
		if err != nil {
			s.log.Warn("keymap load failed", "device", dev, "names", m.names, "err", err)
			desc = nil
		}
	}
	if desc != nil && m.need&^found != 0 {
		s.log.Debug("keymap lacks needed components", "device", dev, "need", m.need, "found", found)
		desc = nil
	}
	if desc != nil {
		if err := desc.Validate(); err != nil {
			s.log.Error("loaded keymap is invalid", "names", m.names, "err", err)
			return nil, protoErr(BadImplementation, 0, "loaded keymap: %w", err)
		}
	}
	reported := (m.want | m.need) & found
	parts := newKbdByNameParts(desc, reported)

	loaded := desc != nil && m.load
	if loaded {
		plan := s.plan(m.deviceSpec, dev, needKeyboard)
		if master := dev.Master; master != nil && master.LastSlave == dev && master.Keyboard != nil {
			plan.Others = append(plan.Others, master)
		}
		if err := plan.Commit(func(target *Device) error {
			return s.installKeymap(target, desc.Clone(), reported)
		}); err != nil {
			return nil, err
		}
	}

	c := r.client
	e := c.encoder()
	size := parts.size()
	start := beginReply(e, c, dev.ID, size)
	minKC, maxKC := dev.Keyboard.Desc.MinKeyCode, dev.Keyboard.Desc.MaxKeyCode
	if desc != nil {
		minKC, maxKC = desc.MinKeyCode, desc.MaxKeyCode
	}
	e.Uint8(minKC)
	e.Uint8(maxKC)
	e.Bool(loaded)
	e.Bool(loaded)
	e.Uint16(found)
	e.Uint16(parts.reported)
	e.Zero(16)
	parts.write(e, c, dev.ID)
	return e.Out, s.endReply(e, start, size, r.opcode)
}

// installKeymap replaces the keyboard description of dev with d.
func (s *Server) installKeymap(dev *Device, d *Desc, reported uint16) error {
	old := dev.Keyboard.Desc
	dev.Keyboard.Desc = d
	changed := NKNKeycodesMask
	if reported&GBNGeometryMask != 0 {
		changed |= NKNGeometryMask
	}
	s.log.Debug("installed keymap", "device", dev, "keycodes", s.atoms.Name(d.Names.Keycodes), "symbols", s.atoms.Name(d.Names.Symbols))
	s.notify(dev, &newKeyboardNotifyEvent{
		oldDeviceID:   dev.ID,
		minKeyCode:    d.MinKeyCode,
		maxKeyCode:    d.MaxKeyCode,
		oldMinKeyCode: old.MinKeyCode,
		oldMaxKeyCode: old.MaxKeyCode,
		requestMinor:  OpGetKbdByName,
		changed:       changed,
	})
	s.updateLEDs(dev)
	return nil
}
