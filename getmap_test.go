package xkb_test

import (
	"testing"

	"github.com/danderson/xkb"
	"github.com/danderson/xkb/fragments"
	"github.com/danderson/xkb/xkbtest"
	"github.com/google/go-cmp/cmp"
	"github.com/kr/pretty"
)

func TestGetMapByteOrders(t *testing.T) {
	s := xkbtest.New(t)
	var maps []*xkbtest.Map
	for _, o := range orders {
		c := s.NewClient(o.order)
		resp := c.MustDo(xkbtest.GetMap(o.order, xkbtest.Keyboard1, xkb.AllMapComponents))
		maps = append(maps, xkbtest.ParseMap(t, o.order, resp))
	}
	if diff := cmp.Diff(maps[0], maps[1]); diff != "" {
		t.Fatalf("GetMap differs between byte orders (-big+little):\n%s", diff)
	}

	m := maps[0]
	if testing.Verbose() {
		t.Logf("map: %# v", pretty.Formatter(m.Types))
	}
	if m.DeviceID != xkbtest.Keyboard1 {
		t.Errorf("reply device = %d, want %d", m.DeviceID, xkbtest.Keyboard1)
	}
	if m.MinKeyCode != 8 || m.MaxKeyCode != 255 {
		t.Errorf("keycode range = %d..%d, want 8..255", m.MinKeyCode, m.MaxKeyCode)
	}
	if m.Present != xkb.AllMapComponents {
		t.Errorf("present = %#x, want %#x", m.Present, xkb.AllMapComponents)
	}
	if got, want := int(m.TotalTypes), len(s.Keyboard(xkbtest.Keyboard1).Types); got != want {
		t.Errorf("total types = %d, want %d", got, want)
	}
	if len(m.Types) != int(m.TotalTypes) {
		t.Errorf("got %d types, want all %d", len(m.Types), m.TotalTypes)
	}
	if got := len(m.Syms); got != 248 {
		t.Errorf("got syms for %d keys, want 248", got)
	}
	if got := len(m.VMods); got != xkb.NumVirtualMods {
		t.Errorf("got %d virtual modifiers, want %d", got, xkb.NumVirtualMods)
	}
}

func TestGetMapPartial(t *testing.T) {
	s := xkbtest.New(t)
	order := fragments.LittleEndian
	c := s.NewClient(order)

	req := xkbtest.GetPartialMap(order, xkbtest.Keyboard1, xkb.KeyTypesMask, xkbtest.PartialMap{
		Components:     xkb.KeySymsMask | xkb.ModifierMapMask,
		FirstKeySym:    38,
		NKeySyms:       3,
		FirstModMapKey: 37,
		NModMapKeys:    2,
	})
	m := xkbtest.ParseMap(t, order, c.MustDo(req))

	want := s.Keyboard(xkbtest.Keyboard1)
	if m.FirstKeySym != 38 || len(m.Syms) != 3 {
		t.Fatalf("got syms for %d keys from %d, want 3 from 38", len(m.Syms), m.FirstKeySym)
	}
	for i, got := range m.Syms {
		if diff := cmp.Diff(got, *want.KeySyms(38 + i)); diff != "" {
			t.Errorf("key %d syms wrong (-got+want):\n%s", 38+i, diff)
		}
	}
	if got := m.Syms[0].Syms[0]; got != 'a' {
		t.Errorf("key 38 level 1 = %#x, want 'a'", got)
	}
	// Key 37 is Control_L, key 38 has no modifiers.
	if diff := cmp.Diff(m.ModMap, []xkbtest.KeyValue{{Key: 37, Value: 1 << 2}}); diff != "" {
		t.Errorf("modifier map wrong (-got+want):\n%s", diff)
	}
	if m.Actions != nil || m.Behaviors != nil {
		t.Errorf("reply has components that were not requested")
	}
}

func TestGetMapErrors(t *testing.T) {
	s := xkbtest.New(t)
	order := fragments.BigEndian
	c := s.NewClient(order)

	tests := []struct {
		name string
		spec uint16
		full uint16
		p    xkbtest.PartialMap
		want xkb.ErrorCode
	}{
		{
			name: "full and partial",
			spec: xkbtest.Keyboard1,
			full: xkb.KeySymsMask,
			p:    xkbtest.PartialMap{Components: xkb.KeySymsMask, FirstKeySym: 8, NKeySyms: 1},
			want: xkb.BadMatch,
		},
		{
			name: "types out of range",
			spec: xkbtest.Keyboard1,
			p:    xkbtest.PartialMap{Components: xkb.KeyTypesMask, FirstType: 2, NTypes: 3},
			want: xkb.BadValue,
		},
		{
			name: "keys below range",
			spec: xkbtest.Keyboard1,
			p:    xkbtest.PartialMap{Components: xkb.KeySymsMask, FirstKeySym: 5, NKeySyms: 4},
			want: xkb.BadValue,
		},
		{
			name: "keys beyond range",
			spec: xkbtest.Keyboard2,
			p:    xkbtest.PartialMap{Components: xkb.KeyActionsMask, FirstKeyAct: 130, NKeyActs: 5},
			want: xkb.BadValue,
		},
		{
			name: "unknown component",
			spec: xkbtest.Keyboard1,
			full: 1 << 9,
			want: xkb.BadValue,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c.MustFail(xkbtest.GetPartialMap(order, tc.spec, tc.full, tc.p), tc.want)
		})
	}
}
