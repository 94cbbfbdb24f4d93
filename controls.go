package xkb

const controlsReplyLen = 92

func (s *Server) getControls(r *request) ([]byte, error) {
	spec := r.in.u16()
	r.in.skip(2)
	if err := r.done(); err != nil {
		return nil, err
	}
	dev, err := s.lookupDevice(spec, needKeyboard)
	if err != nil {
		return nil, err
	}
	ctrls := &dev.Keyboard.Desc.Ctrls

	c := r.client
	e := c.encoder()
	start := beginReply(e, c, dev.ID, controlsReplyLen)
	e.Uint8(ctrls.MouseKeysDfltBtn)
	e.Uint8(ctrls.NumGroups)
	e.Uint8(ctrls.GroupsWrap)
	e.Uint8(ctrls.InternalMods.Mask)
	e.Uint8(ctrls.IgnoreLockMods.Mask)
	e.Uint8(ctrls.InternalMods.RealMods)
	e.Uint8(ctrls.IgnoreLockMods.RealMods)
	e.Zero(1)
	e.Uint16(ctrls.InternalMods.VMods)
	e.Uint16(ctrls.IgnoreLockMods.VMods)
	e.Uint16(ctrls.RepeatDelay)
	e.Uint16(ctrls.RepeatInterval)
	e.Uint16(ctrls.SlowKeysDelay)
	e.Uint16(ctrls.DebounceDelay)
	e.Uint16(ctrls.MouseKeysDelay)
	e.Uint16(ctrls.MouseKeysInterval)
	e.Uint16(ctrls.MouseKeysTimeToMax)
	e.Uint16(ctrls.MouseKeysMaxSpeed)
	e.Int16(ctrls.MouseKeysCurve)
	e.Uint16(ctrls.AccessXOptions)
	e.Uint16(ctrls.AccessXTimeout)
	e.Uint16(ctrls.AccessXTimeoutOptsMask)
	e.Uint16(ctrls.AccessXTimeoutOptsValues)
	e.Zero(2)
	e.Uint32(ctrls.AccessXTimeoutMask)
	e.Uint32(ctrls.AccessXTimeoutValues)
	e.Uint32(ctrls.EnabledCtrls)
	e.Write(ctrls.PerKeyRepeat[:])
	return e.Out, s.endReply(e, start, controlsReplyLen, r.opcode)
}

// setControlsRequest is a parsed SetControls request. Fields that
// are not selected by one of the affect or change masks are ignored.
type setControlsRequest struct {
	deviceSpec               uint16
	affectInternalRealMods   uint8
	internalRealMods         uint8
	affectIgnoreLockRealMods uint8
	ignoreLockRealMods       uint8
	affectInternalVMods      uint16
	internalVMods            uint16
	affectIgnoreLockVMods    uint16
	ignoreLockVMods          uint16
	affectEnabledCtrls       uint32
	enabledCtrls             uint32
	changeCtrls              uint32

	// ctrls holds the requested values of the remaining controls.
	ctrls Controls
}

func parseSetControls(in *reader) *setControlsRequest {
	m := &setControlsRequest{}
	m.deviceSpec = in.u16()
	m.affectInternalRealMods = in.u8()
	m.internalRealMods = in.u8()
	m.affectIgnoreLockRealMods = in.u8()
	m.ignoreLockRealMods = in.u8()
	m.affectInternalVMods = in.u16()
	m.internalVMods = in.u16()
	m.affectIgnoreLockVMods = in.u16()
	m.ignoreLockVMods = in.u16()
	c := &m.ctrls
	c.MouseKeysDfltBtn = in.u8()
	c.GroupsWrap = in.u8()
	c.AccessXOptions = in.u16()
	in.skip(2)
	m.affectEnabledCtrls = in.u32()
	m.enabledCtrls = in.u32()
	m.changeCtrls = in.u32()
	c.RepeatDelay = in.u16()
	c.RepeatInterval = in.u16()
	c.SlowKeysDelay = in.u16()
	c.DebounceDelay = in.u16()
	c.MouseKeysDelay = in.u16()
	c.MouseKeysInterval = in.u16()
	c.MouseKeysTimeToMax = in.u16()
	c.MouseKeysMaxSpeed = in.u16()
	c.MouseKeysCurve = in.i16()
	c.AccessXTimeout = in.u16()
	c.AccessXTimeoutMask = in.u32()
	c.AccessXTimeoutValues = in.u32()
	c.AccessXTimeoutOptsMask = in.u16()
	c.AccessXTimeoutOptsValues = in.u16()
	for i := range c.PerKeyRepeat {
		c.PerKeyRepeat[i] = in.u8()
	}
	return m
}

func (m *setControlsRequest) check() error {
	c := &m.ctrls
	change := m.changeCtrls
	if bad := change &^ AllControlsMask; bad != 0 {
		return errValue(errCode2(0x01, int(bad)), "unknown controls %#x", bad)
	}
	if bad := m.affectEnabledCtrls &^ AllBooleanCtrlsMask; bad != 0 {
		return errValue(errCode2(0x02, int(bad)), "unknown boolean controls %#x", bad)
	}
	if m.enabledCtrls&^m.affectEnabledCtrls != 0 {
		return errMatch(errCode3(0x03, int(m.affectEnabledCtrls), int(m.enabledCtrls)), "enabled controls outside affected mask")
	}
	if change&RepeatKeysMask != 0 && (c.RepeatDelay == 0 || c.RepeatInterval == 0) {
		return errValue(errCode3(0x06, int(c.RepeatDelay), int(c.RepeatInterval)), "zero repeat delay or interval")
	}
	if change&SlowKeysMask != 0 && c.SlowKeysDelay == 0 {
		return errValue(errCode2(0x07, int(c.SlowKeysDelay)), "zero slow keys delay")
	}
	if change&BounceKeysMask != 0 && c.DebounceDelay == 0 {
		return errValue(errCode2(0x08, int(c.DebounceDelay)), "zero debounce delay")
	}
	if change&MouseKeysMask != 0 && c.MouseKeysDfltBtn > MaxMouseKeysBtn {
		return errValue(errCode2(0x09, int(c.MouseKeysDfltBtn)), "mouse keys button %d out of range", c.MouseKeysDfltBtn)
	}
	if change&MouseKeysAccelMask != 0 {
		if c.MouseKeysDelay == 0 || c.MouseKeysInterval == 0 || c.MouseKeysTimeToMax == 0 || c.MouseKeysMaxSpeed == 0 {
			return errValue(errCode3(0x0a, int(c.MouseKeysDelay), int(c.MouseKeysInterval)), "zero mouse keys acceleration parameter")
		}
		if c.MouseKeysCurve < MinMouseKeysCurve {
			return errValue(errCode2(0x0b, int(c.MouseKeysCurve)), "mouse keys curve %d out of range", c.MouseKeysCurve)
		}
	}
	if change&AccessXTimeoutMask != 0 && c.AccessXTimeout == 0 {
		return errValue(errCode2(0x0c, int(c.AccessXTimeout)), "zero AccessX timeout")
	}
	return nil
}

func (s *Server) applySetControls(m *setControlsRequest, dev *Device) error {
	d := dev.Keyboard.Desc
	old := d.Ctrls
	c := &d.Ctrls
	in := &m.ctrls
	change := m.changeCtrls

	if change&ControlsEnabledMask != 0 {
		c.EnabledCtrls = c.EnabledCtrls&^m.affectEnabledCtrls | m.enabledCtrls
	}
	if change&RepeatKeysMask != 0 {
		c.RepeatDelay, c.RepeatInterval = in.RepeatDelay, in.RepeatInterval
	}
	if change&SlowKeysMask != 0 {
		c.SlowKeysDelay = in.SlowKeysDelay
	}
	if change&BounceKeysMask != 0 {
		c.DebounceDelay = in.DebounceDelay
	}
	if change&MouseKeysMask != 0 {
		c.MouseKeysDfltBtn = in.MouseKeysDfltBtn
	}
	if change&MouseKeysAccelMask != 0 {
		c.MouseKeysDelay = in.MouseKeysDelay
		c.MouseKeysInterval = in.MouseKeysInterval
		c.MouseKeysTimeToMax = in.MouseKeysTimeToMax
		c.MouseKeysMaxSpeed = in.MouseKeysMaxSpeed
		c.MouseKeysCurve = in.MouseKeysCurve
	}
	if change&AccessXKeysMask != 0 {
		c.AccessXOptions = in.AccessXOptions
	}
	if change&AccessXTimeoutMask != 0 {
		c.AccessXTimeout = in.AccessXTimeout
		c.AccessXTimeoutMask = in.AccessXTimeoutMask
		c.AccessXTimeoutValues = in.AccessXTimeoutValues
		c.AccessXTimeoutOptsMask = in.AccessXTimeoutOptsMask
		c.AccessXTimeoutOptsValues = in.AccessXTimeoutOptsValues
	}
	if change&GroupsWrapMask != 0 {
		c.GroupsWrap = in.GroupsWrap
	}
	if change&InternalModsMask != 0 {
		c.InternalMods.RealMods = c.InternalMods.RealMods&^m.affectInternalRealMods | m.internalRealMods&m.affectInternalRealMods
		c.InternalMods.VMods = c.InternalMods.VMods&^m.affectInternalVMods | m.internalVMods&m.affectInternalVMods
		d.resolveMods(&c.InternalMods)
	}
	if change&IgnoreLockModsMask != 0 {
		c.IgnoreLockMods.RealMods = c.IgnoreLockMods.RealMods&^m.affectIgnoreLockRealMods | m.ignoreLockRealMods&m.affectIgnoreLockRealMods
		c.IgnoreLockMods.VMods = c.IgnoreLockMods.VMods&^m.affectIgnoreLockVMods | m.ignoreLockVMods&m.affectIgnoreLockVMods
		d.resolveMods(&c.IgnoreLockMods)
	}
	if change&PerKeyRepeatMask != 0 {
		c.PerKeyRepeat = in.PerKeyRepeat
	}

	s.notify(dev, &controlsChanges{
		numGroups:          c.NumGroups,
		changedControls:    change,
		enabledControls:    c.EnabledCtrls,
		enabledCtrlChanges: old.EnabledCtrls ^ c.EnabledCtrls,
		requestMinor:       OpSetControls,
	})
	s.updateLEDs(dev)
	return nil
}

func (s *Server) setControls(r *request) ([]byte, error) {
	m := parseSetControls(r.in)
	if err := r.done(); err != nil {
		return nil, err
	}
	dev, err := s.lookupDevice(m.deviceSpec, needKeyboard)
	if err != nil {
		return nil, err
	}
	if err := m.check(); err != nil {
		return nil, err
	}
	plan := s.plan(m.deviceSpec, dev, needKeyboard)
	return nil, plan.Commit(func(d *Device) error { return s.applySetControls(m, d) })
}
