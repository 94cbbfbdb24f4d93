package xkb

// allEventsMask selects every XKB event type.
const allEventsMask uint16 = 1<<numEventTypes - 1

func (s *Server) useExtension(r *request) ([]byte, error) {
	wantMajor := r.in.u16()
	wantMinor := r.in.u16()
	if err := r.done(); err != nil {
		return nil, err
	}

	c := r.client
	supported := wantMajor == MajorVersion
	if supported {
		c.initialized = true
		c.major, c.minor = wantMajor, wantMinor
	} else {
		s.log.Debug("client requested unsupported XKB version", "client", c.ID, "major", wantMajor, "minor", wantMinor)
	}

	e := c.encoder()
	start := beginReply(e, c, boolByte(supported), replyHeaderLen)
	e.Uint16(MajorVersion)
	e.Uint16(MinorVersion)
	e.Zero(20)
	return e.Out, s.endReply(e, start, replyHeaderLen, r.opcode)
}

func boolByte(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}

func (s *Server) selectEvents(r *request) ([]byte, error) {
	in := r.in
	spec := in.u16()
	affectWhich := in.u16()
	clearMask := in.u16()
	selectAll := in.u16()
	affectMap := in.u16()
	mapDetails := in.u16()
	if in.err != nil {
		return nil, in.err
	}
	dev, err := s.lookupDevice(spec, 0)
	if err != nil {
		return nil, err
	}
	if affectWhich&^allEventsMask != 0 {
		return nil, errValue(errCode2(0x01, int(affectWhich)), "unknown event types %#x", affectWhich)
	}
	if clearMask&selectAll != 0 {
		return nil, errMatch(errCode3(0x02, int(clearMask), int(selectAll)), "events both cleared and selected")
	}
	if mapDetails&^affectMap != 0 {
		return nil, errMatch(errCode3(0x03, int(affectMap), int(mapDetails)), "map details outside affected mask")
	}

	// Details follow for every affected event that is neither
	// cleared nor fully selected, except MapNotify whose details are
	// in the fixed part of the request.
	type detail struct{ affect, details uint32 }
	var parsed [numEventTypes]detail
	parsed[mapNotify] = detail{uint32(affectMap), uint32(mapDetails)}
	explicit := affectWhich &^ clearMask &^ selectAll
	for t := range eventType(numEventTypes) {
		if explicit&(1<<t) == 0 || t == mapNotify {
			continue
		}
		var dt detail
		switch eventDetailSize[t] {
		case 1:
			dt = detail{uint32(in.u8()), uint32(in.u8())}
		case 2:
			dt = detail{uint32(in.u16()), uint32(in.u16())}
		default:
			dt = detail{in.u32(), in.u32()}
		}
		if in.err == nil && dt.details&^dt.affect != 0 {
			return nil, errMatch(errCode3(0x04, int(t), int(dt.details)), "event %d details outside affected mask", t)
		}
		parsed[t] = dt
	}
	in.pad()
	if err := r.done(); err != nil {
		return nil, err
	}

	c := r.client
	if c.selections == nil {
		c.selections = map[uint8]*eventSelection{}
	}
	sel := c.selections[dev.ID]
	if sel == nil {
		sel = &eventSelection{}
		c.selections[dev.ID] = sel
	}
	for t := range eventType(numEventTypes) {
		bit := uint16(1) << t
		switch {
		case affectWhich&bit == 0:
		case clearMask&bit != 0:
			sel.which &^= bit
			sel.details[t] = 0
		case selectAll&bit != 0:
			sel.which |= bit
			sel.details[t] = ^uint32(0)
		default:
			dt := parsed[t]
			sel.details[t] = sel.details[t]&^dt.affect | dt.details
			if sel.details[t] != 0 {
				sel.which |= bit
			} else {
				sel.which &^= bit
			}
		}
	}
	if sel.which == 0 {
		delete(c.selections, dev.ID)
	}
	return nil, nil
}

func (s *Server) getState(r *request) ([]byte, error) {
	spec := r.in.u16()
	r.in.skip(2)
	if err := r.done(); err != nil {
		return nil, err
	}
	dev, err := s.lookupDevice(spec, needKeyboard)
	if err != nil {
		return nil, err
	}
	st := dev.Keyboard.State
	mods := st.Mods()

	c := r.client
	e := c.encoder()
	start := beginReply(e, c, dev.ID, replyHeaderLen)
	e.Uint8(mods)
	e.Uint8(st.BaseMods)
	e.Uint8(st.LatchedMods)
	e.Uint8(st.LockedMods)
	e.Uint8(st.Group)
	e.Uint8(st.Group) // locked group
	e.Int16(0)        // base group
	e.Int16(0)        // latched group
	e.Uint8(mods | st.Group<<5)
	e.Uint8(mods) // grab mods
	e.Uint8(mods) // compat grab mods
	e.Uint8(mods) // lookup mods
	e.Uint8(mods) // compat lookup mods
	e.Zero(1)
	e.Uint16(0) // pointer buttons
	e.Zero(6)
	return e.Out, s.endReply(e, start, replyHeaderLen, r.opcode)
}
