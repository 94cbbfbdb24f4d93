package keymap

import (
	"fmt"
	"slices"

	"github.com/danderson/xkb"
)

// key is one physical key of the pc layouts.
type key struct {
	code uint8
	name string
	syms []xkb.KeySym
}

// row returns the keys named prefix01, prefix02... with consecutive
// keycodes starting at first. Each element of levels holds the
// keysyms of one key.
func row(prefix string, first uint8, levels ...string) []key {
	ret := make([]key, 0, len(levels))
	for i, l := range levels {
		ret = append(ret, key{first + uint8(i), fmt.Sprintf("%s%02d", prefix, i+1), latin(l)})
	}
	return ret
}

// Real modifier bits.
const (
	modShift   uint8 = 1 << 0
	modLock    uint8 = 1 << 1
	modControl uint8 = 1 << 2
	mod1       uint8 = 1 << 3
	mod2       uint8 = 1 << 4
)

// Virtual modifier indices.
const (
	vmodNumLock = 0
	vmodAlt     = 1
)

// layout is the symbols of one pc keyboard variant.
type layout struct {
	name      string
	groupName string
	keys      []key
}

func usKeys() []key {
	var ret []key
	ret = append(ret, row("AE", 10, "1!", "2@", "3#", "4$", "5%", "6^", "7&", "8*", "9(", "0)", "-_", "=+")...)
	ret = append(ret, row("AD", 24, "qQ", "wW", "eE", "rR", "tT", "yY", "uU", "iI", "oO", "pP", "[{", "]}")...)
	ret = append(ret, row("AC", 38, "aA", "sS", "dD", "fF", "gG", "hH", "jJ", "kK", "lL", ";:", "'\"")...)
	ret = append(ret, row("AB", 52, "zZ", "xX", "cC", "vV", "bB", "nN", "mM", ",<", ".>", "/?")...)
	ret = append(ret,
		key{9, "ESC", []xkb.KeySym{symEscape}},
		key{22, "BKSP", []xkb.KeySym{symBackSpace}},
		key{23, "TAB", []xkb.KeySym{symTab}},
		key{36, "RTRN", []xkb.KeySym{symReturn}},
		key{37, "LCTL", []xkb.KeySym{symControlL}},
		key{49, "TLDE", latin("`~")},
		key{50, "LFSH", []xkb.KeySym{symShiftL}},
		key{51, "BKSL", latin(`\|`)},
		key{62, "RTSH", []xkb.KeySym{symShiftR}},
		key{63, "KPMU", []xkb.KeySym{symKPMultiply}},
		key{64, "LALT", []xkb.KeySym{symAltL}},
		key{65, "SPCE", latin(" ")},
		key{66, "CAPS", []xkb.KeySym{symCapsLock}},
		key{77, "NMLK", []xkb.KeySym{symNumLock}},
		key{78, "SCLK", []xkb.KeySym{symScrollLock}},
		key{79, "KP7", []xkb.KeySym{symKPHome, kpDigit(7)}},
		key{80, "KP8", []xkb.KeySym{symKPUp, kpDigit(8)}},
		key{81, "KP9", []xkb.KeySym{symKPPrior, kpDigit(9)}},
		key{83, "KP4", []xkb.KeySym{symKPLeft, kpDigit(4)}},
		key{84, "KP5", []xkb.KeySym{symKPBegin, kpDigit(5)}},
		key{85, "KP6", []xkb.KeySym{symKPRight, kpDigit(6)}},
		key{87, "KP1", []xkb.KeySym{symKPEnd, kpDigit(1)}},
		key{88, "KP2", []xkb.KeySym{symKPDown, kpDigit(2)}},
		key{89, "KP3", []xkb.KeySym{symKPNext, kpDigit(3)}},
		key{90, "KP0", []xkb.KeySym{symKPInsert, kpDigit(0)}},
		key{105, "RCTL", []xkb.KeySym{symControlR}},
	)
	return ret
}

func deKeys() []key {
	ret := usKeys()
	for i := range ret {
		switch ret[i].name {
		case "AD06":
			ret[i].syms = latin("zZ")
		case "AB01":
			ret[i].syms = latin("yY")
		}
	}
	return ret
}

var layouts = []layout{
	{"us", "English (US)", usKeys()},
	{"de", "German", deKeys()},
}

func findLayout(name string) (*layout, bool) {
	i := slices.IndexFunc(layouts, func(l layout) bool { return l.name == name })
	if i < 0 {
		return nil, false
	}
	return &layouts[i], true
}

var modMap = map[string]uint8{
	"LFSH": modShift,
	"RTSH": modShift,
	"CAPS": modLock,
	"LCTL": modControl,
	"RCTL": modControl,
	"LALT": mod1,
	"NMLK": mod2,
}

// Build returns the pc105 keyboard description for the named layout,
// with keycodes 8..255.
func Build(atoms *xkb.AtomTable, layoutName string) (*xkb.Desc, error) {
	l, ok := findLayout(layoutName)
	if !ok {
		return nil, fmt.Errorf("unknown layout %q", layoutName)
	}
	d, err := xkb.NewDesc(xkb.MinLegalKeyCode, xkb.MaxLegalKeyCode)
	if err != nil {
		return nil, err
	}
	buildTypes(atoms, d)
	for _, k := range l.keys {
		i := int(k.code) - int(d.MinKeyCode)
		d.Names.Keys[i] = xkb.MakeKeyName(k.name)
		d.ModMap[i] = modMap[k.name]
		t := keyType(k.syms)
		width := int(d.Types[t].NumLevels)
		syms := make([]xkb.KeySym, width)
		copy(syms, k.syms)
		d.Syms[i] = xkb.KeySymMap{
			KTIndex:   [xkb.NumKbdGroups]uint8{uint8(t)},
			GroupInfo: 1,
			Width:     uint8(width),
			Syms:      syms,
		}
	}
	d.Compat = compat()
	d.RecomputeActions()
	buildIndicators(atoms, d)
	d.Ctrls = xkb.Controls{
		MouseKeysDfltBtn:   1,
		NumGroups:          1,
		RepeatDelay:        660,
		RepeatInterval:     40,
		SlowKeysDelay:      300,
		DebounceDelay:      300,
		MouseKeysDelay:     160,
		MouseKeysInterval:  40,
		MouseKeysTimeToMax: 30,
		MouseKeysMaxSpeed:  30,
		AccessXTimeout:     120,
		EnabledCtrls:       xkb.RepeatKeysMask | xkb.MouseKeysAccelMask | xkb.AccessXFeedbackMask | xkb.AudibleBellMask,
	}

	n := &d.Names
	n.Keycodes = atoms.Intern("evdev+aliases(qwerty)")
	n.Geometry = atoms.Intern("pc(pc105)")
	n.Symbols = atoms.Intern("pc+" + l.name)
	n.PhysSymbols = n.Symbols
	n.Types = atoms.Intern("complete")
	n.Compat = atoms.Intern("complete")
	n.VMods[vmodNumLock] = atoms.Intern("NumLock")
	n.VMods[vmodAlt] = atoms.Intern("Alt")
	n.Groups[0] = atoms.Intern(l.groupName)
	for _, a := range [][2]string{{"AD01", "LatQ"}, {"AC01", "LatA"}, {"AB01", "LatZ"}} {
		n.KeyAliases = append(n.KeyAliases, xkb.KeyAlias{Real: xkb.MakeKeyName(a[0]), Alias: xkb.MakeKeyName(a[1])})
	}
	d.Geometry = pc105Geometry(atoms)

	if err := d.Validate(); err != nil {
		return nil, fmt.Errorf("layout %q: %w", layoutName, err)
	}
	return d, nil
}

// keyType returns the index of the key type for a key with the
// given keysyms.
func keyType(syms []xkb.KeySym) int {
	switch {
	case len(syms) == 1:
		return xkb.OneLevelIndex
	case isLower(syms[0]) && isUpper(syms[1]):
		return xkb.AlphabeticIndex
	case isKeypad(syms[0]) && isKeypad(syms[1]):
		return xkb.KeypadIndex
	}
	return xkb.TwoLevelIndex
}

func buildTypes(atoms *xkb.AtomTable, d *xkb.Desc) {
	kp := &d.Types[xkb.KeypadIndex]
	kp.Mods = xkb.Mods{RealMods: modShift, VMods: 1 << vmodNumLock}
	kp.Map = []xkb.KTMapEntry{
		{Active: true, Level: 1, Mods: xkb.Mods{RealMods: modShift}},
		{Active: true, Level: 1, Mods: xkb.Mods{VMods: 1 << vmodNumLock}},
	}
	names := []struct {
		name   string
		levels []string
	}{
		{"ONE_LEVEL", []string{"Any"}},
		{"TWO_LEVEL", []string{"Base", "Shift"}},
		{"ALPHABETIC", []string{"Base", "Caps"}},
		{"KEYPAD", []string{"Base", "Number"}},
	}
	for i, n := range names {
		t := &d.Types[i]
		t.Name = atoms.Intern(n.name)
		for l, ln := range n.levels {
			t.LevelNames[l] = atoms.Intern(ln)
		}
	}
}

func compat() xkb.CompatMap {
	useModMap := func(typ uint8, sym xkb.KeySym) xkb.SymInterpret {
		return xkb.SymInterpret{
			Sym:        sym,
			Mods:       0xff,
			Match:      xkb.SIAnyOfOrNone,
			VirtualMod: 0xff,
			Action:     xkb.ModAction(typ, xkb.SAUseModMapMods|1, xkb.Mods{}),
		}
	}
	return xkb.CompatMap{
		SymInterprets: []xkb.SymInterpret{
			useModMap(xkb.SASetMods, symShiftL),
			useModMap(xkb.SASetMods, symShiftR),
			useModMap(xkb.SASetMods, symControlL),
			useModMap(xkb.SASetMods, symControlR),
			useModMap(xkb.SALockMods, symCapsLock),
			{
				Sym:        symAltL,
				Mods:       0xff,
				Match:      xkb.SIAnyOfOrNone,
				VirtualMod: vmodAlt,
				Action:     xkb.ModAction(xkb.SASetMods, xkb.SAUseModMapMods, xkb.Mods{}),
			},
			{
				Sym:        symNumLock,
				Mods:       0xff,
				Match:      xkb.SIAnyOfOrNone,
				VirtualMod: vmodNumLock,
				Action:     xkb.ModAction(xkb.SALockMods, 0, xkb.Mods{VMods: 1 << vmodNumLock}),
			},
			{
				Sym:        xkb.KeySym(xkb.NoSymbol),
				Mods:       0xff,
				Match:      xkb.SIAnyOfOrNone,
				VirtualMod: 0xff,
				Flags:      xkb.SIAutoRepeat,
			},
		},
	}
}

func buildIndicators(atoms *xkb.AtomTable, d *xkb.Desc) {
	d.Indicators[0] = xkb.IndicatorMap{WhichMods: xkb.IMUseLocked, Mods: xkb.Mods{RealMods: modLock}}
	d.Indicators[1] = xkb.IndicatorMap{WhichMods: xkb.IMUseLocked, Mods: xkb.Mods{VMods: 1 << vmodNumLock}}
	d.Indicators[2] = xkb.IndicatorMap{}
	for i, n := range []string{"Caps Lock", "Num Lock", "Scroll Lock"} {
		d.Names.Indicators[i] = atoms.Intern(n)
	}
	d.PhysIndicators = 0x7
	d.ResolveModMasks()
}
