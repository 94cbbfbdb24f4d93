package xkb

import (
	"github.com/danderson/xkb/fragments"
)

const indicatorMapLen = 12

// updateLEDs recomputes the indicator state of dev, and reports
// indicators that changed.
func (s *Server) updateLEDs(dev *Device) {
	if dev.LEDs == nil || dev.Keyboard == nil {
		return
	}
	if changed := dev.LEDs.Recompute(dev.Keyboard.Desc, dev.Keyboard.State); changed != 0 {
		s.notify(dev, &indicatorEvent{state: dev.LEDs.Effective, changed: changed})
	}
}

func putIndicatorMap(e *fragments.Encoder, m *IndicatorMap) {
	e.Uint8(m.Flags)
	e.Uint8(m.WhichGroups)
	e.Uint8(m.Groups)
	e.Uint8(m.WhichMods)
	putMods(e, m.Mods)
	e.Uint32(m.Ctrls)
}

func (r *reader) indicatorMap() IndicatorMap {
	return IndicatorMap{
		Flags:       r.u8(),
		WhichGroups: r.u8(),
		Groups:      r.u8(),
		WhichMods:   r.u8(),
		Mods:        r.mods(),
		Ctrls:       r.u32(),
	}
}

// lookupLEDs resolves a device specifier to a keyboard with
// indicators.
func (s *Server) lookupLEDs(spec uint16) (*Device, error) {
	return s.lookupDevice(spec, needKeyboard|needLEDs)
}

func (s *Server) getIndicatorState(r *request) ([]byte, error) {
	spec := r.in.u16()
	r.in.skip(2)
	if err := r.done(); err != nil {
		return nil, err
	}
	dev, err := s.lookupLEDs(spec)
	if err != nil {
		return nil, err
	}
	c := r.client
	e := c.encoder()
	start := beginReply(e, c, dev.ID, replyHeaderLen)
	e.Uint32(dev.LEDs.Effective)
	e.Zero(20)
	return e.Out, s.endReply(e, start, replyHeaderLen, r.opcode)
}

// writeIndicatorReply writes a complete GetIndicatorMap reply for the
// indicators in which.
func writeIndicatorReply(e *fragments.Encoder, c *Client, devID uint8, d *Desc, which uint32) (start, size int) {
	n := popcount(which)
	size = replyHeaderLen + indicatorMapLen*n
	start = beginReply(e, c, devID, size)
	e.Uint32(which)
	e.Uint32(d.PhysIndicators)
	e.Uint8(uint8(n))
	e.Zero(15)
	for i := range NumIndicators {
		if which&(1<<i) != 0 {
			putIndicatorMap(e, &d.Indicators[i])
		}
	}
	return start, size
}

func (s *Server) getIndicatorMap(r *request) ([]byte, error) {
	spec := r.in.u16()
	r.in.skip(2)
	which := r.in.u32()
	if err := r.done(); err != nil {
		return nil, err
	}
	dev, err := s.lookupLEDs(spec)
	if err != nil {
		return nil, err
	}
	e := r.client.encoder()
	start, size := writeIndicatorReply(e, r.client, dev.ID, dev.Keyboard.Desc, which)
	return e.Out, s.endReply(e, start, size, r.opcode)
}

func (s *Server) setIndicatorMap(r *request) ([]byte, error) {
	in := r.in
	spec := in.u16()
	in.skip(2)
	which := in.u32()
	var maps [NumIndicators]IndicatorMap
	for i := range NumIndicators {
		if which&(1<<i) != 0 {
			maps[i] = in.indicatorMap()
		}
	}
	if err := r.done(); err != nil {
		return nil, err
	}
	dev, err := s.lookupLEDs(spec)
	if err != nil {
		return nil, err
	}
	if which == 0 {
		return nil, nil
	}
	plan := s.plan(spec, dev, needKeyboard|needLEDs)
	return nil, plan.Commit(func(dev *Device) error {
		d := dev.Keyboard.Desc
		for i := range NumIndicators {
			if which&(1<<i) != 0 {
				d.Indicators[i] = maps[i]
				d.resolveMods(&d.Indicators[i].Mods)
			}
		}
		s.notify(dev, &indicatorEvent{mapChanged: true, state: dev.LEDs.Effective, changed: which})
		s.updateLEDs(dev)
		return nil
	})
}

// namedIndicator is the LED selection of a Get/SetNamedIndicator
// request.
type namedIndicator struct {
	deviceSpec uint16
	ledClass   uint16
	ledID      uint16
	name       Atom
}

func (r *reader) namedIndicator() namedIndicator {
	ret := namedIndicator{
		deviceSpec: r.u16(),
		ledClass:   r.u16(),
		ledID:      r.u16(),
	}
	r.skip(2)
	ret.name = r.atom()
	return ret
}

// lookup resolves the device and LED feedback of n.
func (n *namedIndicator) lookup(s *Server) (*Device, error) {
	dev, err := s.lookupLEDs(n.deviceSpec)
	if err != nil {
		return nil, err
	}
	if !dev.LEDs.matchesLED(n.ledClass, n.ledID) {
		if n.ledClass != DfltXIClass && n.ledClass != dev.LEDs.Class {
			return nil, protoErr(BadKeyboard, errCode2(errBadClass, int(n.ledClass)), "device %s has no LED class %d", dev, n.ledClass)
		}
		return nil, protoErr(BadKeyboard, errCode2(errBadID, int(n.ledID)), "device %s has no LED feedback %d", dev, n.ledID)
	}
	if !s.atoms.Valid(n.name) {
		return nil, protoErr(BadAtom, uint32(n.name), "invalid indicator name %d", n.name)
	}
	return dev, nil
}

// indicatorIndex returns the index of the indicator named name, or
// -1.
func (d *Desc) indicatorIndex(name Atom) int {
	for i, a := range d.Names.Indicators {
		if a == name {
			return i
		}
	}
	return -1
}

func (s *Server) getNamedIndicator(r *request) ([]byte, error) {
	n := r.in.namedIndicator()
	if err := r.done(); err != nil {
		return nil, err
	}
	dev, err := n.lookup(s)
	if err != nil {
		return nil, err
	}
	d := dev.Keyboard.Desc
	idx := d.indicatorIndex(n.name)

	c := r.client
	e := c.encoder()
	start := beginReply(e, c, dev.ID, replyHeaderLen)
	e.Uint32(uint32(n.name))
	if idx < 0 {
		e.Zero(1 + 1 + 1 + 1 + indicatorMapLen)
	} else {
		bit := uint32(1) << idx
		e.Bool(true)
		e.Bool(dev.LEDs.Effective&bit != 0)
		e.Bool(d.PhysIndicators&bit != 0)
		e.Uint8(uint8(idx))
		putIndicatorMap(e, &d.Indicators[idx])
	}
	e.Bool(true) // supported
	e.Zero(3)
	return e.Out, s.endReply(e, start, replyHeaderLen, r.opcode)
}

// setNamedIndicatorRequest is a parsed SetNamedIndicator request.
type setNamedIndicatorRequest struct {
	namedIndicator
	setState  bool
	on        bool
	setMap    bool
	createMap bool
	m         IndicatorMap
}

func (m *setNamedIndicatorRequest) check(d *Desc) error {
	if d.indicatorIndex(m.name) >= 0 || !m.createMap {
		return nil
	}
	if d.indicatorIndex(None) < 0 {
		return protoErr(BadAlloc, 0, "no free indicator for %d", m.name)
	}
	return nil
}

func (s *Server) applySetNamedIndicator(m *setNamedIndicatorRequest, dev *Device) error {
	d := dev.Keyboard.Desc
	idx := d.indicatorIndex(m.name)
	if idx < 0 {
		if !m.createMap {
			return nil
		}
		idx = d.indicatorIndex(None)
		if idx < 0 {
			return protoErr(BadAlloc, 0, "no free indicator for %d", m.name)
		}
		d.Names.Indicators[idx] = m.name
		d.Indicators[idx] = IndicatorMap{}
		s.notify(dev, &namesChanges{changed: uint16(IndicatorNamesMask), changedIndicators: 1 << idx})
	}
	bit := uint32(1) << idx
	if m.setMap {
		im := m.m
		d.resolveMods(&im.Mods)
		d.Indicators[idx] = im
		s.notify(dev, &indicatorEvent{mapChanged: true, state: dev.LEDs.Effective, changed: bit})
	}
	if m.setState && d.Indicators[idx].Flags&IMNoExplicit == 0 {
		if m.on {
			dev.LEDs.Explicit |= bit
		} else {
			dev.LEDs.Explicit &^= bit
		}
	}
	s.updateLEDs(dev)
	return nil
}

func (s *Server) setNamedIndicator(r *request) ([]byte, error) {
	in := r.in
	m := &setNamedIndicatorRequest{namedIndicator: in.namedIndicator()}
	m.setState = in.bool()
	m.on = in.bool()
	m.setMap = in.bool()
	m.createMap = in.bool()
	in.skip(1)
	m.m.Flags = in.u8()
	m.m.WhichGroups = in.u8()
	m.m.Groups = in.u8()
	m.m.WhichMods = in.u8()
	m.m.Mods = Mods{RealMods: in.u8(), VMods: in.u16()}
	m.m.Ctrls = in.u32()
	if err := r.done(); err != nil {
		return nil, err
	}
	dev, err := m.lookup(s)
	if err != nil {
		return nil, err
	}
	plan := s.plan(m.deviceSpec, dev, needKeyboard|needLEDs)
	if err := plan.Validate(func(d *Device) error { return m.check(d.Keyboard.Desc) }); err != nil {
		return nil, err
	}
	return nil, plan.Commit(func(d *Device) error { return s.applySetNamedIndicator(m, d) })
}
