package xkb

type keyValue struct {
	key   uint8
	value uint8
}

type keyVMods struct {
	key   uint8
	vmods uint16
}

type keyBehavior struct {
	key  uint8
	typ  uint8
	data uint8
}

// setMapRequest is a parsed SetMap request.
//
// Parsing only checks that the request is well formed. Semantic
// checks depend on the target device's keyboard description, and are
// done by check for each target.
type setMapRequest struct {
	deviceSpec uint16
	present    uint16
	flags      uint16
	minKeyCode uint8
	maxKeyCode uint8

	firstType uint8
	types     []KeyType

	symKeys keyRange
	syms    []KeySymMap

	actKeys keyRange
	acts    [][]Action

	behaviorKeys keyRange
	behaviors    []keyBehavior

	vmodMask uint16
	vmods    [NumVirtualMods]uint8

	explicitKeys keyRange
	explicit     []keyValue

	modMapKeys keyRange
	modMap     []keyValue

	vmodMapKeys keyRange
	vmodMap     []keyVMods
}

func parseSetMap(in *reader) *setMapRequest {
	ret := &setMapRequest{}
	ret.deviceSpec = in.u16()
	ret.present = in.u16()
	ret.flags = in.u16()
	ret.minKeyCode = in.u8()
	ret.maxKeyCode = in.u8()
	ret.firstType = in.u8()
	nTypes := in.u8()
	ret.symKeys = keyRange{in.u8(), in.u8()}
	in.u16() // totalSyms, implied by the per-key counts
	ret.actKeys = keyRange{in.u8(), in.u8()}
	in.u16() // totalActs, implied by the per-key counts
	ret.behaviorKeys = keyRange{in.u8(), in.u8()}
	totalBehaviors := in.u8()
	ret.explicitKeys = keyRange{in.u8(), in.u8()}
	totalExplicit := in.u8()
	ret.modMapKeys = keyRange{in.u8(), in.u8()}
	totalModMap := in.u8()
	ret.vmodMapKeys = keyRange{in.u8(), in.u8()}
	totalVModMap := in.u8()
	ret.vmodMask = in.u16()

	if ret.present&KeyTypesMask != 0 {
		in.count(int(nTypes), func() {
			var t KeyType
			t.Mods = in.mods()
			t.NumLevels = in.u8()
			nMap := int(in.u8())
			preserve := in.bool()
			in.skip(1)
			t.Map = make([]KTMapEntry, 0, nMap)
			in.count(nMap, func() {
				level := in.u8()
				t.Map = append(t.Map, KTMapEntry{
					Level: level,
					Mods:  Mods{RealMods: in.u8(), VMods: in.u16()},
				})
			})
			if preserve {
				t.Preserve = make([]Mods, 0, nMap)
				in.count(nMap, func() {
					in.u8()
					t.Preserve = append(t.Preserve, Mods{RealMods: in.u8(), VMods: in.u16()})
				})
			}
			ret.types = append(ret.types, t)
		})
	} else {
		ret.firstType = 0
	}

	if ret.present&KeySymsMask != 0 {
		in.count(int(ret.symKeys.n), func() {
			var m KeySymMap
			for g := range m.KTIndex {
				m.KTIndex[g] = in.u8()
			}
			m.GroupInfo = in.u8()
			m.Width = in.u8()
			n := int(in.u16())
			m.Syms = make([]KeySym, 0, n)
			in.count(n, func() { m.Syms = append(m.Syms, KeySym(in.u32())) })
			ret.syms = append(ret.syms, m)
		})
	} else {
		ret.symKeys = keyRange{}
	}

	if ret.present&KeyActionsMask != 0 {
		counts := make([]uint8, 0, ret.actKeys.n)
		in.count(int(ret.actKeys.n), func() { counts = append(counts, in.u8()) })
		in.pad()
		for _, n := range counts {
			var acts []Action
			in.count(int(n), func() { acts = append(acts, in.action()) })
			ret.acts = append(ret.acts, acts)
		}
	} else {
		ret.actKeys = keyRange{}
	}

	if ret.present&KeyBehaviorsMask != 0 {
		in.count(int(totalBehaviors), func() {
			b := keyBehavior{key: in.u8(), typ: in.u8(), data: in.u8()}
			in.skip(1)
			ret.behaviors = append(ret.behaviors, b)
		})
	} else {
		ret.behaviorKeys = keyRange{}
	}

	if ret.present&VirtualModsMask != 0 {
		for i := range NumVirtualMods {
			if ret.vmodMask&(1<<i) != 0 {
				ret.vmods[i] = in.u8()
			}
		}
		in.pad()
	} else {
		ret.vmodMask = 0
	}

	readPairs := func(mask uint16, total uint8, keys *keyRange) []keyValue {
		if ret.present&mask == 0 {
			*keys = keyRange{}
			return nil
		}
		var ps []keyValue
		in.count(int(total), func() { ps = append(ps, keyValue{in.u8(), in.u8()}) })
		in.pad()
		return ps
	}
	ret.explicit = readPairs(ExplicitComponentsMask, totalExplicit, &ret.explicitKeys)
	ret.modMap = readPairs(ModifierMapMask, totalModMap, &ret.modMapKeys)

	if ret.present&VirtualModMapMask != 0 {
		in.count(int(totalVModMap), func() {
			key := in.u8()
			in.skip(1)
			ret.vmodMap = append(ret.vmodMap, keyVMods{key, in.u16()})
		})
	} else {
		ret.vmodMapKeys = keyRange{}
	}
	return ret
}

// rangeChanges reports whether the request changes the keycode range
// of d.
func (m *setMapRequest) rangeChanges(d *Desc) bool {
	return m.minKeyCode != d.MinKeyCode || m.maxKeyCode != d.MaxKeyCode
}

// numTypes returns the number of key types d has once the request
// is applied.
func (m *setMapRequest) numTypes(d *Desc) int {
	if m.present&KeyTypesMask == 0 {
		return len(d.Types)
	}
	if m.flags&SetMapResizeTypes != 0 {
		return int(m.firstType) + len(m.types)
	}
	return max(len(d.Types), int(m.firstType)+len(m.types))
}

// typeLevels returns the level count of each key type of d once the
// request is applied.
func (m *setMapRequest) typeLevels(d *Desc) []uint8 {
	n := m.numTypes(d)
	ret := make([]uint8, n)
	for i := range min(n, len(d.Types)) {
		ret[i] = d.Types[i].NumLevels
	}
	for i, t := range m.types {
		ret[int(m.firstType)+i] = t.NumLevels
	}
	return ret
}

// inNewRange reports whether kc is a legal key once the request is
// applied.
func (m *setMapRequest) inNewRange(kc int) bool {
	return kc >= int(m.minKeyCode) && kc <= int(m.maxKeyCode)
}

// checkNewRange checks that r lies within the requested keycode
// range. code identifies the component in the error value.
func (m *setMapRequest) checkNewRange(r keyRange, code int) error {
	if r.n == 0 {
		return nil
	}
	if r.first < m.minKeyCode {
		return errValue(errCode3(code, int(r.first), int(m.minKeyCode)), "first key %d below minimum keycode %d", r.first, m.minKeyCode)
	}
	if last := int(r.first) + int(r.n) - 1; last > int(m.maxKeyCode) {
		return errValue(errCode4(code+1, int(r.first), int(r.n), int(m.maxKeyCode)), "keys %d..%d beyond maximum keycode %d", r.first, last, m.maxKeyCode)
	}
	return nil
}

// check validates the request against d, without modifying d.
func (m *setMapRequest) check(d *Desc) error {
	if m.rangeChanges(d) {
		if m.minKeyCode < MinLegalKeyCode {
			return errValue(errCode3(2, int(m.minKeyCode), int(m.maxKeyCode)), "illegal keycode range %d..%d", m.minKeyCode, m.maxKeyCode)
		}
		if m.minKeyCode > m.maxKeyCode {
			return errMatch(errCode3(3, int(m.minKeyCode), int(m.maxKeyCode)), "minimum keycode %d above maximum %d", m.minKeyCode, m.maxKeyCode)
		}
	}
	for _, fn := range []func(*Desc) error{
		m.checkTypes,
		m.checkSyms,
		m.checkActions,
		m.checkBehaviors,
		m.checkExplicit,
		m.checkModMap,
		m.checkVModMap,
	} {
		if err := fn(d); err != nil {
			return err
		}
	}
	return nil
}

func (m *setMapRequest) checkTypes(d *Desc) error {
	if m.present&KeyTypesMask == 0 {
		return nil
	}
	nTypes := len(m.types)
	if int(m.firstType) > len(d.Types) {
		return errValue(errCode2(0x01, int(m.firstType)), "first key type %d beyond %d types", m.firstType, len(d.Types))
	}
	if n := int(m.firstType) + nTypes; n > MaxKeyTypes {
		return errValue(errCode4(0x04, int(m.firstType), nTypes, MaxKeyTypes), "%d key types, at most %d allowed", n, MaxKeyTypes)
	}
	if m.flags&SetMapResizeTypes != 0 {
		if n := int(m.firstType) + nTypes; n < NumRequiredTypes {
			return errValue(errCode4(0x02, int(m.firstType), nTypes, NumRequiredTypes), "resize to %d key types, need at least %d", n, NumRequiredTypes)
		}
	} else if int(m.firstType)+nTypes > len(d.Types) {
		return errValue(errCode4(0x01, int(m.firstType), nTypes, len(d.Types)), "key types %d+%d beyond %d types", m.firstType, nTypes, len(d.Types))
	}
	for i, t := range m.types {
		idx := int(m.firstType) + i
		if t.NumLevels < 1 || t.NumLevels > MaxShiftLevel {
			return errValue(errCode3(0x05, idx, int(t.NumLevels)), "key type %d: invalid level count %d", idx, t.NumLevels)
		}
		switch {
		case idx == OneLevelIndex && t.NumLevels != 1:
			return errValue(errCode3(0x05, idx, int(t.NumLevels)), "key type %d must have one level", idx)
		case idx > OneLevelIndex && idx < NumRequiredTypes && t.NumLevels != 2:
			return errValue(errCode3(0x05, idx, int(t.NumLevels)), "key type %d must have two levels", idx)
		}
		for j, e := range t.Map {
			if e.Level >= t.NumLevels {
				return errMatch(errCode4(0x06, idx, j, int(e.Level)), "key type %d map entry %d: level %d of %d", idx, j, e.Level, t.NumLevels)
			}
			if !e.Mods.subsetOf(t.Mods) {
				return errMatch(errCode4(0x07, idx, j, int(e.Mods.RealMods)), "key type %d map entry %d: modifiers not in the type's modifiers", idx, j)
			}
			if t.Preserve != nil && !t.Preserve[j].subsetOf(e.Mods) {
				return errMatch(errCode4(0x08, idx, j, int(t.Preserve[j].RealMods)), "key type %d preserve entry %d: modifiers not in the map entry", idx, j)
			}
		}
	}
	return nil
}

func (m *setMapRequest) checkSyms(d *Desc) error {
	levels := m.typeLevels(d)
	if m.present&KeySymsMask != 0 {
		if err := m.checkNewRange(m.symKeys, 0x11); err != nil {
			return err
		}
		for i, s := range m.syms {
			kc := int(m.symKeys.first) + i
			groups := s.NumGroups()
			if groups > NumKbdGroups {
				return errValue(errCode3(0x14, kc, groups), "key %d: %d groups", kc, groups)
			}
			width := 0
			for g := range groups {
				ti := int(s.KTIndex[g])
				if ti >= len(levels) {
					return errValue(errCode4(0x15, kc, g, ti), "key %d group %d: key type %d of %d", kc, g, ti, len(levels))
				}
				width = max(width, int(levels[ti]))
			}
			if groups == 0 && len(s.Syms) != 0 {
				return errValue(errCode3(0x17, kc, len(s.Syms)), "key %d: %d symbols with no groups", kc, len(s.Syms))
			}
			if int(s.Width) != width {
				return errValue(errCode3(0x16, kc, int(s.Width)), "key %d: width %d, widest type has %d levels", kc, s.Width, width)
			}
			if len(s.Syms) != width*groups {
				return errValue(errCode4(0x16, kc, len(s.Syms), width*groups), "key %d: %d symbols, want %d", kc, len(s.Syms), width*groups)
			}
		}
	}
	// Keys the request leaves alone must not reference key types
	// that the request removes.
	for kc := int(d.MinKeyCode); kc <= int(d.MaxKeyCode); kc++ {
		if m.coversSyms(kc) || !m.inNewRange(kc) {
			continue
		}
		s := d.KeySyms(kc)
		for g := range s.NumGroups() {
			if ti := int(s.KTIndex[g]); ti >= len(levels) {
				return errValue(errCode4(0x13, kc, g, ti), "key %d group %d uses removed key type %d", kc, g, ti)
			}
		}
	}
	return nil
}

func (m *setMapRequest) coversSyms(kc int) bool {
	return kc >= int(m.symKeys.first) && kc < int(m.symKeys.first)+int(m.symKeys.n)
}

// symsAfter returns the number of symbols bound to kc once the
// request is applied.
func (m *setMapRequest) symsAfter(d *Desc, levels []uint8, kc int) int {
	if m.coversSyms(kc) {
		return len(m.syms[kc-int(m.symKeys.first)].Syms)
	}
	if !d.HasKey(kc) {
		return 0
	}
	s := d.KeySyms(kc)
	width := 0
	for g := range s.NumGroups() {
		if ti := int(s.KTIndex[g]); ti < len(levels) {
			width = max(width, int(levels[ti]))
		}
	}
	return width * s.NumGroups()
}

func (m *setMapRequest) checkActions(d *Desc) error {
	if m.present&KeyActionsMask == 0 {
		return nil
	}
	if err := m.checkNewRange(m.actKeys, 0x21); err != nil {
		return err
	}
	levels := m.typeLevels(d)
	for i, acts := range m.acts {
		kc := int(m.actKeys.first) + i
		if n := len(acts); n != 0 && n != m.symsAfter(d, levels, kc) {
			return errValue(errCode3(0x23, kc, n), "key %d: %d actions for %d symbols", kc, n, m.symsAfter(d, levels, kc))
		}
	}
	return nil
}

func (m *setMapRequest) checkBehaviors(d *Desc) error {
	if m.present&KeyBehaviorsMask == 0 {
		return nil
	}
	r := m.behaviorKeys
	if err := m.checkNewRange(r, 0x31); err != nil {
		return err
	}
	for _, b := range m.behaviors {
		if b.key < r.first || int(b.key) >= int(r.first)+int(r.n) {
			return errValue(errCode4(0x33, int(r.first), int(r.n), int(b.key)), "behavior for key %d outside %d+%d", b.key, r.first, r.n)
		}
		switch b.typ & KBOpMask {
		case KBRadioGroup:
			if g := b.data &^ KBRGAllowNone; g >= MaxRadioGroups {
				return errValue(errCode4(0x34, int(b.key), int(b.data), MaxRadioGroups), "key %d: radio group %d out of range", b.key, g)
			}
		case KBOverlay1, KBOverlay2:
			if !m.inNewRange(int(b.data)) {
				return errValue(errCode4(0x35, int(b.key), int(b.data), int(m.maxKeyCode)), "key %d: overlay key %d out of range", b.key, b.data)
			}
		}
		var cur Behavior
		if d.HasKey(int(b.key)) {
			cur = d.KeyBehavior(int(b.key))
		}
		curTyp, curData := behaviorWire(cur)
		same := curTyp == b.typ && curData == b.data
		if !same && (isPermanent(cur) || b.typ&KBPermanent != 0) {
			return protoErr(BadAccess, errCode3(0x36, int(b.key), int(b.typ)), "key %d: permanent behavior cannot be changed", b.key)
		}
	}
	return nil
}

func checkPairs[T any](m *setMapRequest, r keyRange, entries []T, key func(T) uint8, code int) error {
	if err := m.checkNewRange(r, code); err != nil {
		return err
	}
	for _, e := range entries {
		if k := key(e); k < r.first || int(k) >= int(r.first)+int(r.n) {
			return errValue(errCode4(code+2, int(r.first), int(r.n), int(k)), "entry for key %d outside %d+%d", k, r.first, r.n)
		}
	}
	return nil
}

func (m *setMapRequest) checkExplicit(*Desc) error {
	return checkPairs(m, m.explicitKeys, m.explicit, func(e keyValue) uint8 { return e.key }, 0x51)
}

func (m *setMapRequest) checkModMap(*Desc) error {
	return checkPairs(m, m.modMapKeys, m.modMap, func(e keyValue) uint8 { return e.key }, 0x61)
}

func (m *setMapRequest) checkVModMap(*Desc) error {
	return checkPairs(m, m.vmodMapKeys, m.vmodMap, func(e keyVMods) uint8 { return e.key }, 0x71)
}

// applySetMap applies m to dev, which must have passed check. The
// changes are made to a copy of the description, which replaces the
// live one only if it is consistent.
func (s *Server) applySetMap(m *setMapRequest, dev *Device) error {
	live := dev.Keyboard.Desc
	d := live.Clone()
	changes := &mapChanges{
		changed:     m.present,
		virtualMods: m.vmodMask,
	}

	var nkn *newKeyboardNotifyEvent
	if m.rangeChanges(d) {
		oldMin, oldMax := d.MinKeyCode, d.MaxKeyCode
		if err := d.ChangeKeycodeRange(m.minKeyCode, m.maxKeyCode); err != nil {
			return err
		}
		nkn = &newKeyboardNotifyEvent{
			oldDeviceID:   dev.ID,
			minKeyCode:    d.MinKeyCode,
			maxKeyCode:    d.MaxKeyCode,
			oldMinKeyCode: oldMin,
			oldMaxKeyCode: oldMax,
			requestMinor:  OpSetMap,
			changed:       NKNKeycodesMask,
		}
	}
	changes.minKeyCode, changes.maxKeyCode = d.MinKeyCode, d.MaxKeyCode

	if m.present&KeyTypesMask != 0 {
		if m.flags&SetMapResizeTypes != 0 {
			if n := m.numTypes(d); n < len(d.Types) {
				d.Types = d.Types[:n]
			}
		}
		for i, t := range m.types {
			idx := int(m.firstType) + i
			if err := d.ResizeKeyType(idx, len(t.Map), t.Preserve != nil, int(t.NumLevels)); err != nil {
				return err
			}
			dt := &d.Types[idx]
			dt.Mods = t.Mods
			d.resolveMods(&dt.Mods)
			for j, e := range t.Map {
				d.resolveMods(&e.Mods)
				e.Active = e.Mods.VMods == 0 || e.Mods.Mask != 0
				dt.Map[j] = e
			}
			for j, p := range t.Preserve {
				d.resolveMods(&p)
				dt.Preserve[j] = p
			}
		}
		changes.firstType = m.firstType
		changes.nTypes = uint8(len(m.types))
	}

	if m.present&KeySymsMask != 0 {
		for i, sm := range m.syms {
			kc := int(m.symKeys.first) + i
			syms, err := d.ResizeKeySyms(kc, len(sm.Syms))
			if err != nil {
				return err
			}
			copy(syms, sm.Syms)
			dst := d.KeySyms(kc)
			dst.KTIndex, dst.GroupInfo, dst.Width = sm.KTIndex, sm.GroupInfo, sm.Width
			if acts := d.KeyActions(kc); len(acts) != 0 && len(acts) != len(syms) {
				if _, err := d.ResizeKeyActions(kc, len(syms)); err != nil {
					return err
				}
			}
		}
		changes.firstKeySym, changes.nKeySyms = m.symKeys.first, m.symKeys.n
	}

	if m.present&KeyActionsMask != 0 {
		for i, acts := range m.acts {
			kc := int(m.actKeys.first) + i
			dst, err := d.ResizeKeyActions(kc, len(acts))
			if err != nil {
				return err
			}
			copy(dst, acts)
		}
		changes.firstKeyAct, changes.nKeyActs = m.actKeys.first, m.actKeys.n
	}

	if m.present&KeyBehaviorsMask != 0 {
		maxRG := -1
		for kc := range m.behaviorKeys.keys() {
			if i := d.idx(kc); !isPermanent(d.Behaviors[i]) {
				d.Behaviors[i] = nil
			}
		}
		for _, b := range m.behaviors {
			i := d.idx(int(b.key))
			if isPermanent(d.Behaviors[i]) {
				continue
			}
			nb := decodeBehavior(b.typ, b.data)
			d.Behaviors[i] = nb
			if rg, ok := nb.(RadioGroupBehavior); ok {
				maxRG = max(maxRG, int(rg.Group))
			}
		}
		if n := maxRG + 1; n > len(d.Names.RadioGroups) {
			d.Names.RadioGroups = resize(d.Names.RadioGroups, n)
		}
		changes.firstKeyBehavior, changes.nKeyBehaviors = m.behaviorKeys.first, m.behaviorKeys.n
	}

	if m.present&VirtualModsMask != 0 {
		for i := range NumVirtualMods {
			if m.vmodMask&(1<<i) != 0 {
				d.VMods[i] = m.vmods[i]
			}
		}
		d.ResolveModMasks()
	}

	setPairs := func(r keyRange, clearKey func(i int), entries func()) {
		for kc := range r.keys() {
			clearKey(d.idx(kc))
		}
		entries()
	}
	if m.present&ExplicitComponentsMask != 0 {
		setPairs(m.explicitKeys, func(i int) { d.Explicit[i] = 0 }, func() {
			for _, e := range m.explicit {
				d.Explicit[d.idx(int(e.key))] = e.value
			}
		})
		changes.firstKeyExplicit, changes.nKeyExplicit = m.explicitKeys.first, m.explicitKeys.n
	}
	if m.present&ModifierMapMask != 0 {
		setPairs(m.modMapKeys, func(i int) { d.ModMap[i] = 0 }, func() {
			for _, e := range m.modMap {
				d.ModMap[d.idx(int(e.key))] = e.value
			}
		})
		changes.firstModMapKey, changes.nModMapKeys = m.modMapKeys.first, m.modMapKeys.n
	}
	if m.present&VirtualModMapMask != 0 {
		setPairs(m.vmodMapKeys, func(i int) { d.VModMap[i] = 0 }, func() {
			for _, e := range m.vmodMap {
				d.VModMap[d.idx(int(e.key))] = e.vmods
			}
		})
		changes.firstVModMapKey, changes.nVModMapKeys = m.vmodMapKeys.first, m.vmodMapKeys.n
	}

	if m.flags&SetMapRecomputeActions != 0 && m.symKeys.n > 0 {
		for kc := range m.symKeys.keys() {
			d.applyCompatMapToKey(kc)
		}
		d.ResolveModMasks()
		changes.changed |= KeyActionsMask | KeyBehaviorsMask | VirtualModMapMask
		changes.firstKeyAct, changes.nKeyActs = m.symKeys.first, m.symKeys.n
		changes.firstKeyBehavior, changes.nKeyBehaviors = m.symKeys.first, m.symKeys.n
		changes.firstVModMapKey, changes.nVModMapKeys = m.symKeys.first, m.symKeys.n
	}

	if err := d.Validate(); err != nil {
		s.log.Error("keyboard description inconsistent after SetMap", "device", dev, "err", err)
		return protoErr(BadImplementation, 0, "device %s: %w", dev, err)
	}
	*live = *d
	if nkn != nil {
		s.notify(dev, nkn)
	}
	s.notify(dev, changes)
	s.updateLEDs(dev)
	return nil
}

func (s *Server) setMap(r *request) ([]byte, error) {
	m := parseSetMap(r.in)
	if err := r.done(); err != nil {
		return nil, err
	}
	if bad := m.present &^ AllMapComponents; bad != 0 {
		return nil, errValue(errCode2(0x01, int(bad)), "unknown map components %#x", bad)
	}
	if bad := m.flags &^ (SetMapResizeTypes | SetMapRecomputeActions); bad != 0 {
		return nil, errValue(errCode2(0x02, int(bad)), "unknown SetMap flags %#x", bad)
	}
	dev, err := s.lookupDevice(m.deviceSpec, needKeyboard)
	if err != nil {
		return nil, err
	}
	plan := s.plan(m.deviceSpec, dev, needKeyboard)
	if err := plan.Validate(func(d *Device) error { return m.check(d.Keyboard.Desc) }); err != nil {
		return nil, err
	}
	return nil, plan.Commit(func(d *Device) error { return s.applySetMap(m, d) })
}
