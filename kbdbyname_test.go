package xkb_test

import (
	"testing"

	"github.com/danderson/xkb"
	"github.com/danderson/xkb/fragments"
	"github.com/danderson/xkb/xkbtest"
	"github.com/google/go-cmp/cmp"
)

// kbdByName is the header of a GetKbdByName reply.
type kbdByName struct {
	MinKeyCode, MaxKeyCode uint8
	Loaded, NewKeyboard    bool
	Found, Reported        uint16
}

func parseKbdByName(t *testing.T, order fragments.ByteOrder, resp []byte) (kbdByName, []byte) {
	t.Helper()
	r := xkbtest.ParseReply(t, order, resp)
	ret := kbdByName{
		MinKeyCode:  r.U8(),
		MaxKeyCode:  r.U8(),
		Loaded:      r.Bool(),
		NewKeyboard: r.Bool(),
		Found:       r.U16(),
		Reported:    r.U16(),
	}
	r.Skip(16)
	return ret, resp[r.Offset():]
}

// nextReply splits the first sub-reply off bs.
func nextReply(t *testing.T, order fragments.ByteOrder, bs []byte) (reply, rest []byte) {
	t.Helper()
	if len(bs) < 32 {
		t.Fatalf("truncated sub-reply: %x", bs)
	}
	n := 32 + 4*int(order.Uint32(bs[4:]))
	if n > len(bs) {
		t.Fatalf("sub-reply declares %d bytes, only %d left", n, len(bs))
	}
	return bs[:n], bs[n:]
}

func TestGetKbdByNameLoad(t *testing.T) {
	s := xkbtest.New(t)
	order := fragments.LittleEndian
	c := s.NewClient(order)
	c.MustDo(xkbtest.SelectAll(order, xkbtest.Keyboard1))

	names := xkb.ComponentNames{Keymap: "pc+de"}
	resp := c.MustDo(xkbtest.GetKbdByName(order, xkbtest.Keyboard1, names, xkb.GBNClientSymbolsMask|xkb.GBNGeometryMask, 0, true))
	got, rest := parseKbdByName(t, order, resp)
	want := kbdByName{
		MinKeyCode:  8,
		MaxKeyCode:  255,
		Loaded:      true,
		NewKeyboard: true,
		Found:       xkb.GBNAllComponentsMask,
		Reported:    xkb.GBNClientSymbolsMask | xkb.GBNGeometryMask,
	}
	if diff := cmp.Diff(got, want); diff != "" {
		t.Fatalf("wrong GetKbdByName reply (-got+want):\n%s", diff)
	}

	mapReply, rest := nextReply(t, order, rest)
	m := xkbtest.ParseMap(t, order, mapReply)
	if want := xkb.KeyTypesMask | xkb.KeySymsMask | xkb.ModifierMapMask; m.Present != want {
		t.Errorf("map sub-reply present = %#x, want %#x", m.Present, want)
	}
	if got := m.Syms[29-int(m.FirstKeySym)].Syms[0]; got != 'z' {
		t.Errorf("map sub-reply key 29 = %#x, want 'z'", got)
	}
	geomReply, rest := nextReply(t, order, rest)
	g := xkbtest.ParseReply(t, order, geomReply)
	if got := s.Atoms().Name(g.Atom()); got != "pc(pc105)" {
		t.Errorf("geometry sub-reply for %q, want pc(pc105)", got)
	}
	if len(rest) != 0 {
		t.Errorf("%d bytes after the last sub-reply", len(rest))
	}

	// Keyboard1 is the core keyboard's last slave, so the core
	// keyboard follows the new keymap. Keyboard2 does not.
	for id, want := range map[uint8]xkb.KeySym{
		xkbtest.Keyboard1:    'z',
		xkbtest.CoreKeyboard: 'z',
		xkbtest.Keyboard2:    'y',
	} {
		if got := s.Keyboard(id).KeySyms(29).Syms[0]; got != want {
			t.Errorf("device %d key 29 = %q, want %q", id, rune(got), rune(want))
		}
	}
	if got := s.Atoms().Name(s.Keyboard(xkbtest.Keyboard1).Names.Symbols); got != "pc+de" {
		t.Errorf("symbols name = %q, want pc+de", got)
	}

	evs := c.Events()
	if diff := cmp.Diff(eventTypes(evs), []uint8{xkbtest.NewKeyboardNotify}); diff != "" {
		t.Fatalf("wrong events (-got+want):\n%s", diff)
	}
	f := evs[0].Fields
	f.Skip(7)
	if got, want := f.U16(), xkb.NKNKeycodesMask|xkb.NKNGeometryMask; got != want {
		t.Errorf("NewKeyboardNotify changed = %#x, want %#x", got, want)
	}
}

func TestGetKbdByNameNoLoad(t *testing.T) {
	s := xkbtest.New(t)
	order := fragments.BigEndian
	c := s.NewClient(order)

	tests := []struct {
		name  string
		names xkb.ComponentNames
		want  uint16
		need  uint16
		load  bool
		reply kbdByName
	}{
		{
			name:  "unknown keymap",
			names: xkb.ComponentNames{Keymap: "sun(type6)"},
			want:  xkb.GBNAllComponentsMask,
			load:  true,
			reply: kbdByName{MinKeyCode: 8, MaxKeyCode: 255},
		},
		{
			name:  "needed component missing",
			names: xkb.ComponentNames{Symbols: "pc+de"},
			need:  xkb.GBNGeometryMask,
			load:  true,
			reply: kbdByName{
				MinKeyCode: 8,
				MaxKeyCode: 255,
				Found:      xkb.GBNClientSymbolsMask | xkb.GBNServerSymbolsMask | xkb.GBNOtherNamesMask,
			},
		},
		{
			name:  "query only",
			names: xkb.ComponentNames{Keymap: "pc+d*"},
			want:  xkb.GBNIndicatorMapMask,
			reply: kbdByName{
				MinKeyCode: 8,
				MaxKeyCode: 255,
				Found:      xkb.GBNAllComponentsMask,
				Reported:   xkb.GBNIndicatorMapMask,
			},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			resp := c.MustDo(xkbtest.GetKbdByName(order, xkbtest.Keyboard1, tc.names, tc.want, tc.need, tc.load))
			got, _ := parseKbdByName(t, order, resp)
			if diff := cmp.Diff(got, tc.reply); diff != "" {
				t.Errorf("wrong GetKbdByName reply (-got+want):\n%s", diff)
			}
			if got := s.Keyboard(xkbtest.Keyboard1).KeySyms(29).Syms[0]; got != 'y' {
				t.Errorf("keymap changed without loading: key 29 = %q", rune(got))
			}
		})
	}

	c.MustFail(xkbtest.GetKbdByName(order, xkbtest.Keyboard1, xkb.ComponentNames{Keymap: "pc+us"}, 1<<9, 0, false), xkb.BadValue)
}
