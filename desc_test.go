package xkb

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// testDesc returns a description for keycodes 8..15 where key 10
// has two groups of the TWO_LEVEL type, with actions.
func testDesc(t *testing.T) *Desc {
	t.Helper()
	d, err := NewDesc(8, 15)
	if err != nil {
		t.Fatalf("NewDesc: %v", err)
	}
	m := d.KeySyms(10)
	m.GroupInfo = 2
	m.KTIndex = [NumKbdGroups]uint8{TwoLevelIndex, TwoLevelIndex}
	m.Width = 2
	m.Syms = []KeySym{'a', 'A', 'b', 'B'}
	d.Actions[d.idx(10)] = []Action{{Type: SASetMods}, {}, {}, {Type: SALockMods}}
	d.ModMap[d.idx(10)] = 1 << 2
	d.Names.Keys[d.idx(10)] = MakeKeyName("AC01")
	if err := d.Validate(); err != nil {
		t.Fatalf("testDesc is invalid: %v", err)
	}
	return d
}

func wantCode(t *testing.T, err error, code ErrorCode) {
	t.Helper()
	var perr *ProtocolError
	if !errors.As(err, &perr) {
		t.Fatalf("got error %v, want %v", err, code)
	}
	if perr.Code != code {
		t.Fatalf("got error %v, want %v", err, code)
	}
}

func TestNewDesc(t *testing.T) {
	d, err := NewDesc(8, 255)
	if err != nil {
		t.Fatalf("NewDesc: %v", err)
	}
	if err := d.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
	if got, want := len(d.Syms), 248; got != want {
		t.Errorf("got %d keys, want %d", got, want)
	}
	if got := len(d.Types); got != NumRequiredTypes {
		t.Errorf("got %d key types, want %d", got, NumRequiredTypes)
	}

	_, err = NewDesc(7, 255)
	wantCode(t, err, BadValue)
	_, err = NewDesc(20, 19)
	wantCode(t, err, BadValue)
}

func TestChangeKeycodeRange(t *testing.T) {
	tests := []struct {
		name       string
		min, max   uint8
		wantKey10  bool
		wantLength int
	}{
		{"grow", 8, 40, true, 33},
		{"shrink above", 11, 15, false, 5},
		{"shrink around", 9, 12, true, 4},
		{"disjoint", 100, 110, false, 11},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			d := testDesc(t)
			want := d.Clone()
			if err := d.ChangeKeycodeRange(tc.min, tc.max); err != nil {
				t.Fatalf("ChangeKeycodeRange: %v", err)
			}
			if err := d.Validate(); err != nil {
				t.Fatalf("Validate after change: %v", err)
			}
			if got := len(d.Syms); got != tc.wantLength {
				t.Errorf("got %d keys, want %d", got, tc.wantLength)
			}
			if !tc.wantKey10 {
				if d.HasKey(10) {
					t.Errorf("key 10 still in range %d..%d", d.MinKeyCode, d.MaxKeyCode)
				}
				return
			}
			if diff := cmp.Diff(*d.KeySyms(10), *want.KeySyms(10)); diff != "" {
				t.Errorf("key 10 syms changed (-got+want):\n%s", diff)
			}
			if diff := cmp.Diff(d.KeyActions(10), want.KeyActions(10)); diff != "" {
				t.Errorf("key 10 actions changed (-got+want):\n%s", diff)
			}
			if got := d.ModMap[d.idx(10)]; got != 1<<2 {
				t.Errorf("key 10 modmap = %#x, want 0x4", got)
			}
			if got := d.Names.Keys[d.idx(10)].String(); got != "AC01" {
				t.Errorf("key 10 name = %q, want AC01", got)
			}
			for kc := int(tc.min); kc <= int(tc.max); kc++ {
				if !want.HasKey(kc) && len(d.KeySyms(kc).Syms) != 0 {
					t.Errorf("new key %d has symbols", kc)
				}
			}
		})
	}

	d := testDesc(t)
	wantCode(t, d.ChangeKeycodeRange(5, 10), BadValue)
	wantCode(t, d.ChangeKeycodeRange(30, 20), BadValue)
	if d.MinKeyCode != 8 || d.MaxKeyCode != 15 {
		t.Errorf("failed change modified range to %d..%d", d.MinKeyCode, d.MaxKeyCode)
	}
}

func TestResizeKeyType(t *testing.T) {
	d := testDesc(t)
	if err := d.ResizeKeyType(TwoLevelIndex, 2, false, 3); err != nil {
		t.Fatalf("ResizeKeyType: %v", err)
	}
	m := d.KeySyms(10)
	if m.Width != 3 {
		t.Errorf("key 10 width = %d, want 3", m.Width)
	}
	if diff := cmp.Diff(m.Syms, []KeySym{'a', 'A', 0, 'b', 'B', 0}); diff != "" {
		t.Errorf("key 10 syms (-got+want):\n%s", diff)
	}
	if diff := cmp.Diff(d.KeyActions(10), []Action{{Type: SASetMods}, {}, {}, {}, {Type: SALockMods}, {}}); diff != "" {
		t.Errorf("key 10 actions (-got+want):\n%s", diff)
	}
	if got := len(d.Types[TwoLevelIndex].LevelNames); got != 3 {
		t.Errorf("got %d level names, want 3", got)
	}

	if err := d.ResizeKeyType(TwoLevelIndex, 1, true, 1); err != nil {
		t.Fatalf("ResizeKeyType: %v", err)
	}
	if diff := cmp.Diff(m.Syms, []KeySym{'a', 'b'}); diff != "" {
		t.Errorf("key 10 syms after shrink (-got+want):\n%s", diff)
	}
	if got := len(d.Types[TwoLevelIndex].Preserve); got != 1 {
		t.Errorf("got %d preserve entries, want 1", got)
	}

	n := len(d.Types)
	if err := d.ResizeKeyType(n, 0, false, 4); err != nil {
		t.Fatalf("appending key type: %v", err)
	}
	if len(d.Types) != n+1 || d.Types[n].NumLevels != 4 {
		t.Errorf("new key type not appended: %+v", d.Types)
	}

	wantCode(t, d.ResizeKeyType(n+2, 0, false, 1), BadValue)
	wantCode(t, d.ResizeKeyType(0, 0, false, 0), BadValue)
	wantCode(t, d.ResizeKeyType(0, 0, false, MaxShiftLevel+1), BadValue)
}

func TestResizeKeySymsAndActions(t *testing.T) {
	d := testDesc(t)
	syms, err := d.ResizeKeySyms(11, 3)
	if err != nil {
		t.Fatalf("ResizeKeySyms: %v", err)
	}
	if len(syms) != 3 || len(d.KeySyms(11).Syms) != 3 {
		t.Errorf("key 11 has %d syms, want 3", len(d.KeySyms(11).Syms))
	}
	if got := d.TotalSyms(10, 2); got != 7 {
		t.Errorf("TotalSyms(10, 2) = %d, want 7", got)
	}
	_, err = d.ResizeKeySyms(16, 1)
	wantCode(t, err, BadValue)

	acts, err := d.ResizeKeyActions(10, 0)
	if err != nil || acts != nil || d.KeyActions(10) != nil {
		t.Errorf("ResizeKeyActions(10, 0) = %v, %v; want nil actions", acts, err)
	}
	_, err = d.ResizeKeyActions(7, 1)
	wantCode(t, err, BadValue)
	_, err = d.ResizeKeyActions(8, 256)
	wantCode(t, err, BadAlloc)
}

func TestClone(t *testing.T) {
	d := testDesc(t)
	c := d.Clone()
	c.KeySyms(10).Syms[0] = 'z'
	c.KeyActions(10)[0].Type = SANoAction
	c.Types[TwoLevelIndex].Map[0].Level = 0
	c.ModMap[d.idx(10)] = 0
	c.Names.Keys[d.idx(10)] = MakeKeyName("XXXX")

	if got := d.KeySyms(10).Syms[0]; got != 'a' {
		t.Errorf("clone shares symbols: original has %q", rune(got))
	}
	if got := d.KeyActions(10)[0].Type; got != SASetMods {
		t.Errorf("clone shares actions: original has type %d", got)
	}
	if got := d.Types[TwoLevelIndex].Map[0].Level; got != 1 {
		t.Errorf("clone shares key types: original level %d", got)
	}
	if got := d.ModMap[d.idx(10)]; got != 1<<2 {
		t.Errorf("clone shares modmap: original %#x", got)
	}
	if got := d.Names.Keys[d.idx(10)].String(); got != "AC01" {
		t.Errorf("clone shares key names: original %q", got)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mangle func(*Desc)
	}{
		{"short per-key slice", func(d *Desc) { d.VModMap = d.VModMap[:3] }},
		{"missing required type", func(d *Desc) { d.Types = d.Types[:2] }},
		{"map level out of range", func(d *Desc) { d.Types[TwoLevelIndex].Map[0].Level = 2 }},
		{"map mods outside type", func(d *Desc) { d.Types[TwoLevelIndex].Map[0].Mods.RealMods = 0x80 }},
		{"preserve length", func(d *Desc) { d.Types[TwoLevelIndex].Preserve = make([]Mods, 3) }},
		{"level names length", func(d *Desc) { d.Types[AlphabeticIndex].LevelNames = d.Types[AlphabeticIndex].LevelNames[:1] }},
		{"too many types", func(d *Desc) { d.Types = append(d.Types, make([]KeyType, MaxKeyTypes)...) }},
		{"wrong symbol count", func(d *Desc) { d.KeySyms(10).Syms = d.KeySyms(10).Syms[:3] }},
		{"key type out of range", func(d *Desc) { d.KeySyms(10).KTIndex[1] = 40 }},
		{"action count", func(d *Desc) { d.Actions[d.idx(10)] = d.Actions[d.idx(10)][:1] }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			d := testDesc(t)
			tc.mangle(d)
			err := d.Validate()
			if err == nil {
				t.Fatal("Validate accepted a broken description")
			}
			if testing.Verbose() {
				t.Log(err)
			}
		})
	}
}

func TestResolveModMasks(t *testing.T) {
	d := testDesc(t)
	const numLockVMod = 1 << 3
	d.Types = append(d.Types, KeyType{
		NumLevels:  2,
		Mods:       Mods{VMods: numLockVMod},
		Map:        []KTMapEntry{{Level: 1, Mods: Mods{VMods: numLockVMod}}},
		LevelNames: make([]Atom, 2),
	})
	kp := len(d.Types) - 1
	d.Indicators[1].Mods = Mods{VMods: numLockVMod}

	d.ResolveModMasks()
	if e := d.Types[kp].Map[0]; e.Active || e.Mods.Mask != 0 {
		t.Errorf("unbound vmod entry = %+v, want inactive", e)
	}

	d.VMods[3] = 1 << 4
	d.ResolveModMasks()
	if e := d.Types[kp].Map[0]; !e.Active || e.Mods.Mask != 1<<4 {
		t.Errorf("bound vmod entry = %+v, want active with mask 0x10", e)
	}
	if got := d.Types[kp].Mods.Mask; got != 1<<4 {
		t.Errorf("type mask = %#x, want 0x10", got)
	}
	if got := d.Indicators[1].Mods.Mask; got != 1<<4 {
		t.Errorf("indicator mask = %#x, want 0x10", got)
	}
	if got := d.VModsToReal(numLockVMod | 1); got != 1<<4 {
		t.Errorf("VModsToReal = %#x, want 0x10", got)
	}
}
