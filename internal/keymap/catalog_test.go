package keymap

import (
	"context"
	"testing"

	"github.com/danderson/xkb"
	"github.com/google/go-cmp/cmp"
)

func TestBuild(t *testing.T) {
	for _, l := range []string{"us", "de"} {
		t.Run(l, func(t *testing.T) {
			atoms := xkb.NewAtomTable()
			d, err := Build(atoms, l)
			if err != nil {
				t.Fatalf("Build(%q) failed: %v", l, err)
			}
			if err := d.Validate(); err != nil {
				t.Fatalf("Validate: %v", err)
			}
			if got, want := atoms.Name(d.Names.Symbols), "pc+"+l; got != want {
				t.Errorf("symbols name = %q, want %q", got, want)
			}

			caps := d.KeySyms(66)
			if got := caps.Syms; len(got) != 1 || got[0] != symCapsLock {
				t.Errorf("CAPS syms = %v, want [Caps_Lock]", got)
			}
			if got := d.KeyActions(66); len(got) != 1 || got[0].Type != xkb.SALockMods {
				t.Errorf("CAPS actions = %v, want LockMods", got)
			}
			if got, want := d.VMods[vmodNumLock], mod2; got != want {
				t.Errorf("NumLock vmod = %#x, want %#x", got, want)
			}
			if got, want := d.VMods[vmodAlt], mod1; got != want {
				t.Errorf("Alt vmod = %#x, want %#x", got, want)
			}
			if got, want := d.Indicators[1].Mods.Mask, mod2; got != want {
				t.Errorf("Num Lock indicator mask = %#x, want %#x", got, want)
			}
			if got := d.KeySyms(24).KTIndex[0]; got != xkb.AlphabeticIndex {
				t.Errorf("AD01 key type = %d, want ALPHABETIC", got)
			}
			if got := d.KeySyms(79).KTIndex[0]; got != xkb.KeypadIndex {
				t.Errorf("KP7 key type = %d, want KEYPAD", got)
			}
			if d.Geometry == nil || atoms.Name(d.Geometry.Name) != GeometryName {
				t.Errorf("geometry missing or misnamed")
			}
		})
	}
}

func TestBuildLayoutsDiffer(t *testing.T) {
	atoms := xkb.NewAtomTable()
	us, err := Build(atoms, "us")
	if err != nil {
		t.Fatal(err)
	}
	de, err := Build(atoms, "de")
	if err != nil {
		t.Fatal(err)
	}
	if got, want := us.KeySyms(29).Syms, latin("yY"); !cmp.Equal(got, want) {
		t.Errorf("us AD06 = %v, want %v", got, want)
	}
	if got, want := de.KeySyms(29).Syms, latin("zZ"); !cmp.Equal(got, want) {
		t.Errorf("de AD06 = %v, want %v", got, want)
	}
	if _, err := Build(atoms, "fr"); err == nil {
		t.Errorf("Build(fr) succeeded, want error")
	}
}

func TestLoadKeymap(t *testing.T) {
	tests := []struct {
		name       string
		names      xkb.ComponentNames
		need       uint16
		wantFound  uint16
		wantLoaded bool
		wantSyms   string
	}{
		{
			name:       "keymap",
			names:      xkb.ComponentNames{Keymap: "pc+us"},
			wantFound:  xkb.GBNAllComponentsMask,
			wantLoaded: true,
			wantSyms:   "pc+us",
		},
		{
			name:       "keymap pattern",
			names:      xkb.ComponentNames{Keymap: "pc+d*"},
			wantFound:  xkb.GBNAllComponentsMask,
			wantLoaded: true,
			wantSyms:   "pc+de",
		},
		{
			name:  "no such keymap",
			names: xkb.ComponentNames{Keymap: "sun+us"},
		},
		{
			name:       "symbols only",
			names:      xkb.ComponentNames{Symbols: "pc+de"},
			wantFound:  xkb.GBNClientSymbolsMask | xkb.GBNServerSymbolsMask | xkb.GBNOtherNamesMask,
			wantLoaded: true,
			wantSyms:   "pc+de",
		},
		{
			name:      "need unmet",
			names:     xkb.ComponentNames{Symbols: "pc+us"},
			need:      xkb.GBNGeometryMask,
			wantFound: xkb.GBNClientSymbolsMask | xkb.GBNServerSymbolsMask | xkb.GBNOtherNamesMask,
		},
		{
			name:       "components",
			names:      xkb.ComponentNames{Keycodes: "evdev*", Types: "complete", Compat: "*", Symbols: "pc+us", Geometry: "pc(*)"},
			need:       xkb.GBNGeometryMask,
			wantFound:  xkb.GBNAllComponentsMask,
			wantLoaded: true,
			wantSyms:   "pc+us",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			atoms := xkb.NewAtomTable()
			d, found, err := Catalog{}.LoadKeymap(context.Background(), atoms, tc.names, xkb.GBNAllComponentsMask, tc.need)
			if err != nil {
				t.Fatalf("LoadKeymap failed: %v", err)
			}
			if found != tc.wantFound {
				t.Errorf("found = %#x, want %#x", found, tc.wantFound)
			}
			if got := d != nil; got != tc.wantLoaded {
				t.Fatalf("loaded = %v, want %v", got, tc.wantLoaded)
			}
			if d == nil {
				return
			}
			if got := atoms.Name(d.Names.Symbols); got != tc.wantSyms {
				t.Errorf("symbols = %q, want %q", got, tc.wantSyms)
			}
			if hasGeom := d.Geometry != nil; hasGeom != (found&xkb.GBNGeometryMask != 0) {
				t.Errorf("geometry present = %v, found %#x", hasGeom, found)
			}
		})
	}
}

func TestLoadKeymapErrors(t *testing.T) {
	atoms := xkb.NewAtomTable()
	if _, _, err := (Catalog{}).LoadKeymap(context.Background(), atoms, xkb.ComponentNames{Keymap: "pc+["}, 0, 0); err == nil {
		t.Errorf("bad pattern: got nil error")
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, _, err := (Catalog{}).LoadKeymap(ctx, atoms, xkb.ComponentNames{Keymap: "pc+us"}, 0, 0); err == nil {
		t.Errorf("canceled context: got nil error")
	}
}
