package xkb

import (
	"slices"

	"github.com/danderson/xkb/fragments"
)

// matches reports whether interpretation si applies to a key with
// real modifier map modMap, at the given shift level.
func (si *SymInterpret) matches(sym KeySym, modMap uint8, level int) bool {
	if si.Sym != KeySym(NoSymbol) && si.Sym != sym {
		return false
	}
	if si.Match&SILevelOneOnly != 0 && level != 0 {
		modMap = 0
	}
	switch si.Match & SIOpMask {
	case SINoneOf:
		return si.Mods&modMap == 0
	case SIAnyOfOrNone:
		return modMap == 0 || si.Mods&modMap != 0
	case SIAnyOf:
		return si.Mods&modMap != 0
	case SIAllOf:
		return si.Mods&modMap == si.Mods
	case SIExactly:
		return si.Mods == modMap
	}
	return false
}

// findInterpret returns the compat map entry for sym on a key with
// the given modifier map. Entries that name sym take precedence over
// wildcard entries.
func (d *Desc) findInterpret(sym KeySym, modMap uint8, level int) *SymInterpret {
	var wildcard *SymInterpret
	for i := range d.Compat.SymInterprets {
		si := &d.Compat.SymInterprets[i]
		if !si.matches(sym, modMap, level) {
			continue
		}
		if si.Sym == sym {
			return si
		}
		if wildcard == nil {
			wildcard = si
		}
	}
	return wildcard
}

// applyCompatMapToKey derives the actions, behavior, virtual
// modifier map and autorepeat of key kc from the compat map. Parts
// the key sets explicitly are left alone.
func (d *Desc) applyCompatMapToKey(kc int) {
	i := d.idx(kc)
	explicit := d.Explicit[i]
	if explicit&ExplicitInterpret != 0 {
		return
	}
	m := d.KeySyms(kc)
	modMap := d.ModMap[i]
	acts := make([]Action, len(m.Syms))
	found := false
	var vmods uint16
	var lock, repeat bool
	for g := range m.NumGroups() {
		for l := range int(m.Width) {
			sym := m.Syms[g*int(m.Width)+l]
			if sym == KeySym(NoSymbol) {
				continue
			}
			si := d.findInterpret(sym, modMap, l)
			if si == nil {
				continue
			}
			a := si.Action
			if a.modActionUsesModMap() {
				a.Data[1] = modMap
				a.Data[2] = modMap
			}
			if a.Type != SANoAction {
				found = true
			}
			acts[g*int(m.Width)+l] = a
			if l == 0 {
				if si.VirtualMod < NumVirtualMods {
					vmods |= 1 << si.VirtualMod
				}
				lock = lock || si.Flags&SILockingKey != 0
				repeat = repeat || si.Flags&SIAutoRepeat != 0
			}
		}
	}
	if found {
		d.Actions[i] = acts
	} else {
		d.Actions[i] = nil
	}
	if explicit&ExplicitVModMap == 0 {
		d.VModMap[i] = vmods
	}
	if explicit&ExplicitBehavior == 0 && !isPermanent(d.Behaviors[i]) {
		if lock {
			d.Behaviors[i] = LockBehavior{}
		} else if _, ok := d.Behaviors[i].(LockBehavior); ok {
			d.Behaviors[i] = nil
		}
	}
	if explicit&ExplicitAutoRepeat == 0 {
		byteIdx, bit := kc/8, byte(1)<<(kc%8)
		if repeat {
			d.Ctrls.PerKeyRepeat[byteIdx] |= bit
		} else {
			d.Ctrls.PerKeyRepeat[byteIdx] &^= bit
		}
	}
	for v := range NumVirtualMods {
		if d.VModMap[i]&(1<<v) != 0 {
			d.VMods[v] |= modMap
		}
	}
}

// RecomputeActions rederives every key's actions from the compat
// map, and re-resolves modifier masks.
func (d *Desc) RecomputeActions() {
	for kc := int(d.MinKeyCode); kc <= int(d.MaxKeyCode); kc++ {
		d.applyCompatMapToKey(kc)
	}
	d.ResolveModMasks()
}

// compatRange is the sym interpretations carried by a compat map
// reply or request.
type compatRange struct {
	groups  uint8
	firstSI uint16
	nSI     uint16
}

func compatReplySize(c *compatRange) int {
	return replyHeaderLen + 16*int(c.nSI) + 4*popcount(c.groups)
}

func putSymInterpret(e *fragments.Encoder, si *SymInterpret) {
	e.Uint32(uint32(si.Sym))
	e.Uint8(si.Mods)
	e.Uint8(si.Match)
	e.Uint8(si.VirtualMod)
	e.Uint8(si.Flags)
	putAction(e, si.Action)
}

func (r *reader) symInterpret() SymInterpret {
	return SymInterpret{
		Sym:        KeySym(r.u32()),
		Mods:       r.u8(),
		Match:      r.u8(),
		VirtualMod: r.u8(),
		Flags:      r.u8(),
		Action:     r.action(),
	}
}

// writeCompatReply writes a complete GetCompatMap reply.
func writeCompatReply(e *fragments.Encoder, c *Client, devID uint8, d *Desc, cr *compatRange) (start, size int) {
	size = compatReplySize(cr)
	start = beginReply(e, c, devID, size)
	e.Uint8(cr.groups)
	e.Zero(1)
	e.Uint16(cr.firstSI)
	e.Uint16(cr.nSI)
	e.Uint16(uint16(len(d.Compat.SymInterprets)))
	e.Zero(16)
	for i := range int(cr.nSI) {
		putSymInterpret(e, &d.Compat.SymInterprets[int(cr.firstSI)+i])
	}
	for g := range NumKbdGroups {
		if cr.groups&(1<<g) != 0 {
			putMods(e, d.Compat.Groups[g])
		}
	}
	return start, size
}

func (s *Server) getCompatMap(r *request) ([]byte, error) {
	in := r.in
	spec := in.u16()
	cr := compatRange{groups: in.u8()}
	getAll := in.bool()
	cr.firstSI = in.u16()
	cr.nSI = in.u16()
	if err := r.done(); err != nil {
		return nil, err
	}
	dev, err := s.lookupDevice(spec, needKeyboard)
	if err != nil {
		return nil, err
	}
	d := dev.Keyboard.Desc
	numSI := len(d.Compat.SymInterprets)
	if getAll {
		cr.firstSI, cr.nSI = 0, uint16(numSI)
	} else if int(cr.firstSI)+int(cr.nSI) > numSI {
		return nil, errValue(errCode2(0x05, numSI), "sym interpretations %d+%d beyond %d", cr.firstSI, cr.nSI, numSI)
	}
	cr.groups &= 1<<NumKbdGroups - 1

	e := r.client.encoder()
	start, size := writeCompatReply(e, r.client, dev.ID, d, &cr)
	return e.Out, s.endReply(e, start, size, r.opcode)
}

// setCompatRequest is a parsed SetCompatMap request.
type setCompatRequest struct {
	deviceSpec       uint16
	recomputeActions bool
	truncateSI       bool
	groups           uint8
	firstSI          uint16
	sis              []SymInterpret
	groupMods        [NumKbdGroups]Mods
}

func parseSetCompatMap(in *reader) *setCompatRequest {
	ret := &setCompatRequest{}
	ret.deviceSpec = in.u16()
	in.skip(1)
	ret.recomputeActions = in.bool()
	ret.truncateSI = in.bool()
	ret.groups = in.u8()
	ret.firstSI = in.u16()
	nSI := in.u16()
	in.skip(2)
	in.count(int(nSI), func() { ret.sis = append(ret.sis, in.symInterpret()) })
	for g := range NumKbdGroups {
		if ret.groups&(1<<g) != 0 {
			ret.groupMods[g] = in.mods()
		}
	}
	return ret
}

func (m *setCompatRequest) check(d *Desc) error {
	numSI := len(d.Compat.SymInterprets)
	if (len(m.sis) > 0 || m.truncateSI) && int(m.firstSI) > numSI {
		return errValue(errCode2(0x02, numSI), "first sym interpretation %d beyond %d", m.firstSI, numSI)
	}
	for i, si := range m.sis {
		if op := si.Match & SIOpMask; op > SIExactly {
			return errValue(errCode3(0x03, int(m.firstSI)+i, int(op)), "sym interpretation %d: unknown match operation %d", int(m.firstSI)+i, op)
		}
	}
	return nil
}

func (s *Server) applySetCompatMap(m *setCompatRequest, dev *Device) error {
	d := dev.Keyboard.Desc
	if m.truncateSI || len(m.sis) > 0 {
		sis := d.Compat.SymInterprets
		end := int(m.firstSI) + len(m.sis)
		if m.truncateSI || end > len(sis) {
			sis = resize(sis, end)
		}
		copy(sis[m.firstSI:], m.sis)
		d.Compat.SymInterprets = slices.Clip(sis)
	}
	for g := range NumKbdGroups {
		if m.groups&(1<<g) != 0 {
			d.Compat.Groups[g] = m.groupMods[g]
			d.resolveMods(&d.Compat.Groups[g])
		}
	}
	s.notify(dev, &compatChanges{
		changedGroups: m.groups,
		firstSI:       m.firstSI,
		nSI:           uint16(len(m.sis)),
		nTotalSI:      uint16(len(d.Compat.SymInterprets)),
	})
	if m.recomputeActions {
		d.RecomputeActions()
		all := keyRange{d.MinKeyCode, uint8(d.NumKeys())}
		s.notify(dev, &mapChanges{
			changed:          KeyActionsMask | KeyBehaviorsMask | VirtualModMapMask,
			minKeyCode:       d.MinKeyCode,
			maxKeyCode:       d.MaxKeyCode,
			firstKeyAct:      all.first,
			nKeyActs:         all.n,
			firstKeyBehavior: all.first,
			nKeyBehaviors:    all.n,
			firstVModMapKey:  all.first,
			nVModMapKeys:     all.n,
		})
	}
	s.updateLEDs(dev)
	return nil
}

func (s *Server) setCompatMap(r *request) ([]byte, error) {
	m := parseSetCompatMap(r.in)
	if err := r.done(); err != nil {
		return nil, err
	}
	dev, err := s.lookupDevice(m.deviceSpec, needKeyboard)
	if err != nil {
		return nil, err
	}
	plan := s.plan(m.deviceSpec, dev, needKeyboard)
	if err := plan.Validate(func(d *Device) error { return m.check(d.Keyboard.Desc) }); err != nil {
		return nil, err
	}
	return nil, plan.Commit(func(d *Device) error { return s.applySetCompatMap(m, d) })
}
