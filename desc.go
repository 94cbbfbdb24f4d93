package xkb

import (
	"fmt"
	"slices"
)

// KeySym is an X11 keysym.
type KeySym uint32

// Mods is a modifier definition: a set of real modifiers and virtual
// modifiers, plus the real modifier mask they resolve to.
type Mods struct {
	// Mask is the effective real modifier mask, the union of
	// RealMods and the real modifiers bound to VirtualMods.
	Mask     uint8
	RealMods uint8
	VMods    uint16
}

// subsetOf reports whether m's real and virtual modifiers are all
// contained in o.
func (m Mods) subsetOf(o Mods) bool {
	return m.RealMods&^o.RealMods == 0 && m.VMods&^o.VMods == 0
}

// KTMapEntry maps a modifier combination to a shift level of a key
// type.
type KTMapEntry struct {
	Active bool
	Level  uint8
	Mods   Mods
}

// KeyType maps modifier combinations to shift levels. Keys reference
// key types by index.
type KeyType struct {
	Mods      Mods
	NumLevels uint8
	Map       []KTMapEntry
	// Preserve is either nil, or has one entry per Map entry naming
	// the modifiers that the entry does not consume.
	Preserve   []Mods
	Name       Atom
	LevelNames []Atom
}

func (t *KeyType) clone() KeyType {
	ret := *t
	ret.Map = slices.Clone(t.Map)
	ret.Preserve = slices.Clone(t.Preserve)
	ret.LevelNames = slices.Clone(t.LevelNames)
	return ret
}

// KeySymMap is the client-side symbol mapping of one key.
//
// len(Syms) is always Width*NumGroups(). Group g's symbols are
// Syms[g*Width:(g+1)*Width].
type KeySymMap struct {
	// KTIndex is the key type index for each group.
	KTIndex [NumKbdGroups]uint8
	// GroupInfo holds the number of groups in its low nibble, and
	// out-of-range group handling in its high bits.
	GroupInfo uint8
	// Width is the number of symbols per group, the widest of the
	// key's types.
	Width uint8
	Syms  []KeySym
}

// NumGroups returns the number of groups bound to the key.
func (m *KeySymMap) NumGroups() int {
	return int(m.GroupInfo & 0x0f)
}

// Action is a key action, in its 8 byte wire form: a type tag and 7
// bytes of type-specific data.
type Action struct {
	Type uint8
	Data [7]byte
}

// Action types used by the server itself. Other action types are
// stored and transmitted verbatim.
const (
	SANoAction     uint8 = 0
	SASetMods      uint8 = 1
	SALatchMods    uint8 = 2
	SALockMods     uint8 = 3
	SASetGroup     uint8 = 4
	SALatchGroup   uint8 = 5
	SALockGroup    uint8 = 6
	SAMovePtr      uint8 = 7
	SAPtrBtn       uint8 = 8
	SALockPtrBtn   uint8 = 9
	SASetControls  uint8 = 14
	SALockControls uint8 = 15
	SATerminate    uint8 = 12
	SASwitchScreen uint8 = 13

	// SAUseModMapMods is the flag, in a modifier action's flags,
	// meaning the action acts on the key's own modifier map.
	SAUseModMapMods uint8 = 1 << 2
)

// ModAction returns a modifier action (SASetMods, SALatchMods or
// SALockMods) on mods.
func ModAction(typ uint8, flags uint8, mods Mods) Action {
	return Action{
		Type: typ,
		Data: [7]byte{flags, mods.Mask, mods.RealMods, byte(mods.VMods >> 8), byte(mods.VMods), 0, 0},
	}
}

// modActionUsesModMap reports whether a is a modifier action that
// takes its modifiers from the key's modifier map.
func (a Action) modActionUsesModMap() bool {
	switch a.Type {
	case SASetMods, SALatchMods, SALockMods:
		return a.Data[0]&SAUseModMapMods != 0
	}
	return false
}

// Controls is the keyboard's behavioral control settings.
type Controls struct {
	MouseKeysDfltBtn uint8
	NumGroups        uint8
	GroupsWrap       uint8
	InternalMods     Mods
	IgnoreLockMods   Mods

	RepeatDelay    uint16
	RepeatInterval uint16
	SlowKeysDelay  uint16
	DebounceDelay  uint16

	MouseKeysDelay     uint16
	MouseKeysInterval  uint16
	MouseKeysTimeToMax uint16
	MouseKeysMaxSpeed  uint16
	MouseKeysCurve     int16

	AccessXOptions           uint16
	AccessXTimeout           uint16
	AccessXTimeoutOptsMask   uint16
	AccessXTimeoutOptsValues uint16
	AccessXTimeoutMask       uint32
	AccessXTimeoutValues     uint32

	EnabledCtrls uint32
	PerKeyRepeat [32]byte
}

// SymInterpret is a compatibility map rule that derives a key's
// action from one of its keysyms.
type SymInterpret struct {
	// Sym is the keysym matched, or NoSymbol to match any keysym.
	Sym   KeySym
	Mods  uint8
	Match uint8
	// VirtualMod is the index of the virtual modifier bound to keys
	// matching this rule, or 0xff for none.
	VirtualMod uint8
	Flags      uint8
	Action     Action
}

// CompatMap is the keyboard's compatibility map.
type CompatMap struct {
	SymInterprets []SymInterpret
	Groups        [NumKbdGroups]Mods
}

// IndicatorMap describes when an indicator lights up.
type IndicatorMap struct {
	Flags       uint8
	WhichGroups uint8
	Groups      uint8
	WhichMods   uint8
	Mods        Mods
	Ctrls       uint32
}

// KeyName is a four character key name, such as "AE01", padded with
// zero bytes.
type KeyName [KeyNameLength]byte

// MakeKeyName returns the KeyName for s, truncated or padded as
// necessary.
func MakeKeyName(s string) KeyName {
	var ret KeyName
	copy(ret[:], s)
	return ret
}

func (n KeyName) String() string {
	end := 0
	for end < len(n) && n[end] != 0 {
		end++
	}
	return string(n[:end])
}

// KeyAlias is an alternate name for a key.
type KeyAlias struct {
	Real  KeyName
	Alias KeyName
}

// Names holds the symbolic names of keyboard components.
type Names struct {
	Keycodes    Atom
	Geometry    Atom
	Symbols     Atom
	PhysSymbols Atom
	Types       Atom
	Compat      Atom

	VMods      [NumVirtualMods]Atom
	Indicators [NumIndicators]Atom
	Groups     [NumKbdGroups]Atom
	// Keys has one entry per keycode, indexed by keycode-MinKeyCode.
	Keys        []KeyName
	KeyAliases  []KeyAlias
	RadioGroups []Atom
}

// Desc is a complete keyboard description.
//
// Per-key data is held in slices indexed by keycode-MinKeyCode, each
// with exactly MaxKeyCode-MinKeyCode+1 entries. Cross references
// between components, such as a key's key types, are indices rather
// than pointers, so resizing one component never invalidates
// another.
type Desc struct {
	MinKeyCode uint8
	MaxKeyCode uint8

	Types []KeyType
	Syms  []KeySymMap
	// ModMap is the real modifier map of each key.
	ModMap []uint8

	Actions   [][]Action
	Behaviors []Behavior
	Explicit  []uint8
	VModMap   []uint16
	// VMods maps each virtual modifier to real modifiers.
	VMods [NumVirtualMods]uint8

	Compat         CompatMap
	Indicators     [NumIndicators]IndicatorMap
	PhysIndicators uint32
	Names          Names
	Geometry       *Geometry
	Ctrls          Controls
}

// NewDesc returns an empty keyboard description for keycodes
// minKC..maxKC, with the four required key types.
func NewDesc(minKC, maxKC uint8) (*Desc, error) {
	if minKC < MinLegalKeyCode || minKC > maxKC {
		return nil, errValue(errCode3(2, int(minKC), int(maxKC)), "illegal keycode range %d..%d", minKC, maxKC)
	}
	ret := &Desc{
		MinKeyCode: minKC,
		MaxKeyCode: maxKC,
		Types: []KeyType{
			{NumLevels: 1},
			{NumLevels: 2, Mods: Mods{Mask: 1, RealMods: 1}, Map: []KTMapEntry{{Active: true, Level: 1, Mods: Mods{Mask: 1, RealMods: 1}}}},
			{NumLevels: 2, Mods: Mods{Mask: 3, RealMods: 3}, Map: []KTMapEntry{{Active: true, Level: 1, Mods: Mods{Mask: 1, RealMods: 1}}, {Active: true, Level: 1, Mods: Mods{Mask: 2, RealMods: 2}}}},
			{NumLevels: 2, Mods: Mods{Mask: 1, RealMods: 1}, Map: []KTMapEntry{{Active: true, Level: 1, Mods: Mods{Mask: 1, RealMods: 1}}}},
		},
	}
	for i := range ret.Types {
		ret.Types[i].LevelNames = make([]Atom, ret.Types[i].NumLevels)
	}
	ret.resizePerKey(int(maxKC) - int(minKC) + 1)
	return ret, nil
}

// NumKeys returns the number of keycodes in the description.
func (d *Desc) NumKeys() int {
	return int(d.MaxKeyCode) - int(d.MinKeyCode) + 1
}

// HasKey reports whether kc is within the keycode range.
func (d *Desc) HasKey(kc int) bool {
	return kc >= int(d.MinKeyCode) && kc <= int(d.MaxKeyCode)
}

// idx returns the index of keycode kc in per-key slices.
func (d *Desc) idx(kc int) int {
	return kc - int(d.MinKeyCode)
}

// KeySyms returns the symbol map of keycode kc. kc must be in range.
func (d *Desc) KeySyms(kc int) *KeySymMap {
	return &d.Syms[d.idx(kc)]
}

// KeyActions returns the actions of keycode kc. kc must be in range.
func (d *Desc) KeyActions(kc int) []Action {
	return d.Actions[d.idx(kc)]
}

// KeyBehavior returns the behavior of keycode kc, nil meaning the
// default behavior. kc must be in range.
func (d *Desc) KeyBehavior(kc int) Behavior {
	return d.Behaviors[d.idx(kc)]
}

// resizePerKey sets every per-key slice to n entries, keeping the
// first min(n, old) entries.
func (d *Desc) resizePerKey(n int) {
	d.Syms = resize(d.Syms, n)
	d.ModMap = resize(d.ModMap, n)
	d.Actions = resize(d.Actions, n)
	d.Behaviors = resize(d.Behaviors, n)
	d.Explicit = resize(d.Explicit, n)
	d.VModMap = resize(d.VModMap, n)
	d.Names.Keys = resize(d.Names.Keys, n)
}

// resize returns s with length n. It reuses the backing array when
// shrinking or when capacity allows, and zeroes entries that were not
// previously part of s.
func resize[T any](s []T, n int) []T {
	if n <= cap(s) {
		old := len(s)
		s = s[:n]
		if n > old {
			clear(s[old:])
		}
		return s
	}
	ret := make([]T, n)
	copy(ret, s)
	return ret
}

// ChangeKeycodeRange changes the legal keycode range to minKC..maxKC.
// Data of keycodes present in both the old and new range is kept,
// keycodes new to the range are empty.
func (d *Desc) ChangeKeycodeRange(minKC, maxKC uint8) error {
	if minKC < MinLegalKeyCode || minKC > maxKC {
		return errValue(errCode3(2, int(minKC), int(maxKC)), "illegal keycode range %d..%d", minKC, maxKC)
	}
	if minKC == d.MinKeyCode && maxKC == d.MaxKeyCode {
		return nil
	}
	n := int(maxKC) - int(minKC) + 1
	shift := func(fn func(from, to int)) {
		for kc := int(minKC); kc <= int(maxKC); kc++ {
			if d.HasKey(kc) {
				fn(d.idx(kc), kc-int(minKC))
			}
		}
	}
	syms := make([]KeySymMap, n)
	modMap := make([]uint8, n)
	acts := make([][]Action, n)
	behaviors := make([]Behavior, n)
	explicit := make([]uint8, n)
	vmodMap := make([]uint16, n)
	keyNames := make([]KeyName, n)
	shift(func(from, to int) {
		syms[to] = d.Syms[from]
		modMap[to] = d.ModMap[from]
		acts[to] = d.Actions[from]
		behaviors[to] = d.Behaviors[from]
		explicit[to] = d.Explicit[from]
		vmodMap[to] = d.VModMap[from]
		keyNames[to] = d.Names.Keys[from]
	})
	d.MinKeyCode, d.MaxKeyCode = minKC, maxKC
	d.Syms, d.ModMap, d.Actions = syms, modMap, acts
	d.Behaviors, d.Explicit, d.VModMap = behaviors, explicit, vmodMap
	d.Names.Keys = keyNames
	return nil
}

// ResizeKeyType changes the shape of key type idx. idx may be equal
// to len(d.Types), to append a new type.
//
// If the type's level count changes, the symbols and actions of every
// key using the type are resized to the new width.
func (d *Desc) ResizeKeyType(idx, mapCount int, wantPreserve bool, levels int) error {
	if idx < 0 || idx > len(d.Types) || idx >= MaxKeyTypes {
		return errValue(errCode3(0x05, idx, len(d.Types)), "key type %d out of range", idx)
	}
	if levels < 1 || levels > MaxShiftLevel {
		return errValue(errCode3(0x06, idx, levels), "key type %d: invalid level count %d", idx, levels)
	}
	if mapCount < 0 || mapCount > 0xff {
		return protoErr(BadAlloc, 0, "key type %d: %d map entries", idx, mapCount)
	}
	if idx == len(d.Types) {
		d.Types = append(d.Types, KeyType{})
	}
	t := &d.Types[idx]
	t.Map = resize(t.Map, mapCount)
	if wantPreserve {
		t.Preserve = resize(t.Preserve, mapCount)
	} else {
		t.Preserve = nil
	}
	oldLevels := t.NumLevels
	t.NumLevels = uint8(levels)
	t.LevelNames = resize(t.LevelNames, levels)
	if int(oldLevels) != levels {
		d.recomputeWidths(idx)
	}
	return nil
}

// recomputeWidths recomputes the width of every key that uses key
// type typeIdx, reshaping its symbols and actions.
func (d *Desc) recomputeWidths(typeIdx int) {
	for i := range d.Syms {
		m := &d.Syms[i]
		uses := false
		for g := range m.NumGroups() {
			if int(m.KTIndex[g]) == typeIdx {
				uses = true
			}
		}
		if !uses {
			continue
		}
		width := 0
		for g := range m.NumGroups() {
			if ti := int(m.KTIndex[g]); ti < len(d.Types) && int(d.Types[ti].NumLevels) > width {
				width = int(d.Types[ti].NumLevels)
			}
		}
		if width == int(m.Width) {
			continue
		}
		d.reshapeKey(i, width)
	}
}

// reshapeKey changes the width of the key at per-key index i,
// keeping each group's leading symbols and actions.
func (d *Desc) reshapeKey(i, width int) {
	m := &d.Syms[i]
	groups := m.NumGroups()
	syms := make([]KeySym, width*groups)
	var acts []Action
	if len(d.Actions[i]) > 0 {
		acts = make([]Action, width*groups)
	}
	for g := range groups {
		n := min(width, int(m.Width))
		copy(syms[g*width:g*width+n], m.Syms[g*int(m.Width):])
		if acts != nil {
			copy(acts[g*width:g*width+n], d.Actions[i][g*int(m.Width):])
		}
	}
	m.Width = uint8(width)
	m.Syms = syms
	d.Actions[i] = acts
}

// ResizeKeySyms sets the number of symbols bound to keycode kc to n,
// and returns the (possibly reallocated) symbols.
func (d *Desc) ResizeKeySyms(kc, n int) ([]KeySym, error) {
	if !d.HasKey(kc) {
		return nil, errValue(errCode2(0x11, kc), "keycode %d out of range", kc)
	}
	if n < 0 || n > 0xffff {
		return nil, protoErr(BadAlloc, 0, "keycode %d: cannot hold %d symbols", kc, n)
	}
	m := &d.Syms[d.idx(kc)]
	m.Syms = resize(m.Syms, n)
	return m.Syms, nil
}

// ResizeKeyActions sets the number of actions bound to keycode kc to
// n, and returns the (possibly reallocated) actions.
func (d *Desc) ResizeKeyActions(kc, n int) ([]Action, error) {
	if !d.HasKey(kc) {
		return nil, errValue(errCode2(0x21, kc), "keycode %d out of range", kc)
	}
	if n < 0 || n > 0xff {
		return nil, protoErr(BadAlloc, 0, "keycode %d: cannot hold %d actions", kc, n)
	}
	i := d.idx(kc)
	if n == 0 {
		d.Actions[i] = nil
		return nil, nil
	}
	d.Actions[i] = resize(d.Actions[i], n)
	return d.Actions[i], nil
}

// TotalSyms returns the number of symbols bound to keys
// first..first+n-1.
func (d *Desc) TotalSyms(first, n int) int {
	ret := 0
	for kc := first; kc < first+n; kc++ {
		ret += len(d.KeySyms(kc).Syms)
	}
	return ret
}

// VModsToReal returns the real modifiers bound to the virtual
// modifiers in vmods.
func (d *Desc) VModsToReal(vmods uint16) uint8 {
	var ret uint8
	for i := range NumVirtualMods {
		if vmods&(1<<i) != 0 {
			ret |= d.VMods[i]
		}
	}
	return ret
}

// resolveMods recomputes m.Mask from its real and virtual modifiers.
func (d *Desc) resolveMods(m *Mods) {
	m.Mask = m.RealMods | d.VModsToReal(m.VMods)
}

// ResolveModMasks recomputes the effective mask of every modifier
// definition in the description, after virtual modifier bindings
// change.
func (d *Desc) ResolveModMasks() {
	for i := range d.Types {
		t := &d.Types[i]
		d.resolveMods(&t.Mods)
		for j := range t.Map {
			e := &t.Map[j]
			d.resolveMods(&e.Mods)
			e.Active = e.Mods.VMods == 0 || e.Mods.Mask != 0
		}
		for j := range t.Preserve {
			d.resolveMods(&t.Preserve[j])
		}
	}
	for i := range d.Indicators {
		d.resolveMods(&d.Indicators[i].Mods)
	}
	for i := range d.Compat.Groups {
		d.resolveMods(&d.Compat.Groups[i])
	}
	d.resolveMods(&d.Ctrls.InternalMods)
	d.resolveMods(&d.Ctrls.IgnoreLockMods)
}

// Validate checks the structural invariants of d.
func (d *Desc) Validate() error {
	if d.MinKeyCode < MinLegalKeyCode || d.MinKeyCode > d.MaxKeyCode {
		return fmt.Errorf("illegal keycode range %d..%d", d.MinKeyCode, d.MaxKeyCode)
	}
	n := d.NumKeys()
	for name, l := range map[string]int{
		"syms":      len(d.Syms),
		"modmap":    len(d.ModMap),
		"actions":   len(d.Actions),
		"behaviors": len(d.Behaviors),
		"explicit":  len(d.Explicit),
		"vmodmap":   len(d.VModMap),
		"key names": len(d.Names.Keys),
	} {
		if l != n {
			return fmt.Errorf("per-key %s has %d entries, want %d", name, l, n)
		}
	}
	if len(d.Types) < NumRequiredTypes {
		return fmt.Errorf("only %d key types, need at least %d", len(d.Types), NumRequiredTypes)
	}
	if len(d.Types) > MaxKeyTypes {
		return fmt.Errorf("%d key types, at most %d allowed", len(d.Types), MaxKeyTypes)
	}
	for i, t := range d.Types {
		if t.Preserve != nil && len(t.Preserve) != len(t.Map) {
			return fmt.Errorf("key type %d has %d preserve entries for %d map entries", i, len(t.Preserve), len(t.Map))
		}
		if len(t.LevelNames) != int(t.NumLevels) {
			return fmt.Errorf("key type %d has %d level names for %d levels", i, len(t.LevelNames), t.NumLevels)
		}
		for j, e := range t.Map {
			if !e.Mods.subsetOf(t.Mods) {
				return fmt.Errorf("key type %d map entry %d uses modifiers outside the type", i, j)
			}
			if e.Level >= t.NumLevels {
				return fmt.Errorf("key type %d map entry %d has level %d of %d", i, j, e.Level, t.NumLevels)
			}
			if t.Preserve != nil && !t.Preserve[j].subsetOf(e.Mods) {
				return fmt.Errorf("key type %d preserve entry %d uses modifiers outside its map entry", i, j)
			}
		}
	}
	for i, m := range d.Syms {
		kc := i + int(d.MinKeyCode)
		if m.NumGroups() > NumKbdGroups {
			return fmt.Errorf("key %d has %d groups", kc, m.NumGroups())
		}
		if len(m.Syms) != int(m.Width)*m.NumGroups() {
			return fmt.Errorf("key %d has %d symbols, want %d*%d", kc, len(m.Syms), m.Width, m.NumGroups())
		}
		for g := range m.NumGroups() {
			if int(m.KTIndex[g]) >= len(d.Types) {
				return fmt.Errorf("key %d group %d uses key type %d of %d", kc, g, m.KTIndex[g], len(d.Types))
			}
		}
		if a := len(d.Actions[i]); a != 0 && a != len(m.Syms) {
			return fmt.Errorf("key %d has %d actions for %d symbols", kc, a, len(m.Syms))
		}
	}
	return nil
}

// Clone returns a deep copy of d.
func (d *Desc) Clone() *Desc {
	ret := *d
	ret.Types = make([]KeyType, len(d.Types))
	for i := range d.Types {
		ret.Types[i] = d.Types[i].clone()
	}
	ret.Syms = make([]KeySymMap, len(d.Syms))
	for i, m := range d.Syms {
		m.Syms = slices.Clone(m.Syms)
		ret.Syms[i] = m
	}
	ret.ModMap = slices.Clone(d.ModMap)
	ret.Actions = make([][]Action, len(d.Actions))
	for i, a := range d.Actions {
		ret.Actions[i] = slices.Clone(a)
	}
	ret.Behaviors = slices.Clone(d.Behaviors)
	ret.Explicit = slices.Clone(d.Explicit)
	ret.VModMap = slices.Clone(d.VModMap)
	ret.Compat.SymInterprets = slices.Clone(d.Compat.SymInterprets)
	ret.Names.Keys = slices.Clone(d.Names.Keys)
	ret.Names.KeyAliases = slices.Clone(d.Names.KeyAliases)
	ret.Names.RadioGroups = slices.Clone(d.Names.RadioGroups)
	if d.Geometry != nil {
		ret.Geometry = d.Geometry.Clone()
	}
	return &ret
}
