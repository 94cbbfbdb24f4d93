package xkb_test

import (
	"testing"

	"github.com/danderson/xkb"
	"github.com/danderson/xkb/fragments"
	"github.com/danderson/xkb/xkbtest"
	"github.com/google/go-cmp/cmp"
)

func putSymInterpret(r *xkbtest.Request, si xkb.SymInterpret) {
	r.U32(uint32(si.Sym)).U8(si.Mods).U8(si.Match).U8(si.VirtualMod).U8(si.Flags).Action(si.Action)
}

func setCompatMap(order fragments.ByteOrder, spec uint16, recompute, truncate bool, firstSI uint16, sis ...xkb.SymInterpret) []byte {
	r := xkbtest.NewRequest(order, xkb.OpSetCompatMap).
		U16(spec).
		Zero(1).
		Bool(recompute).
		Bool(truncate).
		U8(0). // groups
		U16(firstSI).
		U16(uint16(len(sis))).
		Zero(2)
	for _, si := range sis {
		putSymInterpret(r, si)
	}
	return r.Bytes()
}

func readSymInterpret(r *xkbtest.Reply) xkb.SymInterpret {
	return xkb.SymInterpret{
		Sym:        xkb.KeySym(r.U32()),
		Mods:       r.U8(),
		Match:      r.U8(),
		VirtualMod: r.U8(),
		Flags:      r.U8(),
		Action:     r.Action(),
	}
}

func TestGetCompatMap(t *testing.T) {
	s := xkbtest.New(t)
	order := fragments.LittleEndian
	c := s.NewClient(order)
	want := s.Keyboard(xkbtest.Keyboard1).Compat

	r := xkbtest.ParseReply(t, order, c.MustDo(xkbtest.GetCompatMap(order, xkbtest.Keyboard1, 1, true, 0, 0)))
	if groups := r.U8(); groups != 1 {
		t.Errorf("groups = %#x, want 0x1", groups)
	}
	r.Skip(1)
	firstSI, nSI, total := r.U16(), r.U16(), r.U16()
	if firstSI != 0 || int(nSI) != len(want.SymInterprets) || nSI != total {
		t.Fatalf("got interpretations %d+%d of %d, want all %d", firstSI, nSI, total, len(want.SymInterprets))
	}
	r.Skip(16)
	var got []xkb.SymInterpret
	for range nSI {
		got = append(got, readSymInterpret(r))
	}
	if diff := cmp.Diff(got, want.SymInterprets); diff != "" {
		t.Errorf("sym interpretations wrong (-got+want):\n%s", diff)
	}
	if diff := cmp.Diff(r.Mods(), want.Groups[0]); diff != "" {
		t.Errorf("group 1 modifiers wrong (-got+want):\n%s", diff)
	}
	r.Done()

	c.MustFail(xkbtest.GetCompatMap(order, xkbtest.Keyboard1, 0, false, 6, 5), xkb.BadValue)
}

func TestSetCompatMap(t *testing.T) {
	s := xkbtest.New(t)
	order := fragments.BigEndian
	c := s.NewClient(order)
	c.MustDo(xkbtest.SelectAll(order, xkbtest.Keyboard1))

	d := s.Keyboard(xkbtest.Keyboard1)
	latch := d.Compat.SymInterprets[0]
	latch.Action = xkb.ModAction(xkb.SALatchMods, xkb.SAUseModMapMods, xkb.Mods{})
	c.MustDo(setCompatMap(order, xkbtest.Keyboard1, true, false, 0, latch))

	if got := len(d.Compat.SymInterprets); got != 8 {
		t.Errorf("got %d sym interpretations, want 8", got)
	}
	for kc, want := range map[int]uint8{50: xkb.SALatchMods, 62: xkb.SASetMods} {
		acts := d.KeyActions(kc)
		if len(acts) == 0 || acts[0].Type != want {
			t.Errorf("key %d actions = %v, want type %d", kc, acts, want)
		}
	}
	want := []uint8{xkbtest.CompatMapNotify, xkbtest.MapNotify}
	if diff := cmp.Diff(eventTypes(c.Events()), want); diff != "" {
		t.Errorf("wrong events (-got+want):\n%s", diff)
	}

	// Keyboard2 is unaffected.
	if acts := s.Keyboard(xkbtest.Keyboard2).KeyActions(50); acts[0].Type != xkb.SASetMods {
		t.Errorf("Keyboard2 key 50 action type = %d, want %d", acts[0].Type, xkb.SASetMods)
	}

	c.MustDo(setCompatMap(order, xkbtest.Keyboard1, false, true, 7))
	if got := len(d.Compat.SymInterprets); got != 7 {
		t.Errorf("got %d sym interpretations after truncation, want 7", got)
	}

	bad := latch
	bad.Match = 9
	c.MustFail(setCompatMap(order, xkbtest.Keyboard1, false, false, 0, bad), xkb.BadValue)
	c.MustFail(setCompatMap(order, xkbtest.Keyboard1, false, false, 8, latch), xkb.BadValue)
}

func TestSetCompatMapRange(t *testing.T) {
	order := fragments.LittleEndian
	si := xkb.SymInterpret{Sym: 0xffe1, Match: xkb.SIAnyOf, Action: xkb.ModAction(xkb.SASetMods, xkb.SAUseModMapMods, xkb.Mods{})}
	tests := []struct {
		name     string
		truncate bool
		firstSI  uint16
		sis      []xkb.SymInterpret
		wantErr  bool
		wantLen  int
	}{
		{name: "no interpretations ignores first", firstSI: 100, wantLen: 8},
		{name: "append at end", firstSI: 8, sis: []xkb.SymInterpret{si}, wantLen: 9},
		{name: "gap after end", firstSI: 9, sis: []xkb.SymInterpret{si}, wantErr: true, wantLen: 8},
		{name: "truncate at end", truncate: true, firstSI: 8, wantLen: 8},
		{name: "truncate beyond end", truncate: true, firstSI: 200, wantErr: true, wantLen: 8},
		{name: "truncate and replace", truncate: true, firstSI: 2, sis: []xkb.SymInterpret{si}, wantLen: 3},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s := xkbtest.New(t)
			c := s.NewClient(order)
			req := setCompatMap(order, xkbtest.Keyboard1, false, tc.truncate, tc.firstSI, tc.sis...)
			if tc.wantErr {
				perr := c.MustFail(req, xkb.BadValue)
				if got := perr.Value >> 24; got != 0x02 {
					t.Errorf("error value = %#x, want detail 0x02", perr.Value)
				}
			} else {
				c.MustDo(req)
			}
			if got := len(s.Keyboard(xkbtest.Keyboard1).Compat.SymInterprets); got != tc.wantLen {
				t.Errorf("got %d sym interpretations, want %d", got, tc.wantLen)
			}
		})
	}
}
