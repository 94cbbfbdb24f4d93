package xkb_test

import (
	"reflect"
	"testing"

	"github.com/danderson/xkb"
	"github.com/danderson/xkb/fragments"
	"github.com/danderson/xkb/xkbtest"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

var geometryOpts = []cmp.Option{
	cmp.Exporter(func(reflect.Type) bool { return true }),
	cmpopts.EquateEmpty(),
}

func TestSetGeometry(t *testing.T) {
	for _, o := range orders {
		t.Run(o.name, func(t *testing.T) {
			s := xkbtest.New(t)
			c := s.NewClient(o.order)
			c.MustDo(xkbtest.SelectAll(o.order, xkbtest.Keyboard2))

			g := s.Keyboard(xkbtest.Keyboard1).Geometry.Clone()
			g.Name = s.Atoms().Intern("pc(pc104)")
			g.WidthMM++
			g.AddProperty("description", "Test keyboard")
			g.AddColor("red")
			g.Sections[0].Rows[0].Keys[0].ColorNdx = uint8(len(g.Colors) - 1)
			c.MustDo(xkbtest.SetGeometry(o.order, xkbtest.Keyboard2, g))

			d := s.Keyboard(xkbtest.Keyboard2)
			if diff := cmp.Diff(d.Geometry, g, geometryOpts...); diff != "" {
				t.Errorf("stored geometry wrong (-got+want):\n%s", diff)
			}
			if d.Names.Geometry != g.Name {
				t.Errorf("geometry name = %q, want pc(pc104)", s.Atoms().Name(d.Names.Geometry))
			}
			if diff := cmp.Diff(s.Keyboard(xkbtest.Keyboard1).Geometry.Name, s.Atoms().Intern("pc(pc105)")); diff != "" {
				t.Errorf("Keyboard1 geometry changed (-got+want):\n%s", diff)
			}

			r := xkbtest.ParseReply(t, o.order, c.MustDo(xkbtest.GetGeometry(o.order, xkbtest.Keyboard2, xkb.None)))
			if got := r.Atom(); got != g.Name {
				t.Errorf("GetGeometry name = %d, want %d", got, g.Name)
			}
			if !r.Bool() {
				t.Fatalf("GetGeometry found = false")
			}
			r.Skip(1)
			if got := r.U16(); got != g.WidthMM {
				t.Errorf("GetGeometry width = %d, want %d", got, g.WidthMM)
			}

			// Asking for another geometry by name is not found.
			r = xkbtest.ParseReply(t, o.order, c.MustDo(xkbtest.GetGeometry(o.order, xkbtest.Keyboard2, s.Atoms().Intern("pc(pc105)"))))
			r.Skip(4)
			if r.Bool() {
				t.Errorf("GetGeometry found a geometry the device does not have")
			}

			evs := c.Events()
			if diff := cmp.Diff(eventTypes(evs), []uint8{xkbtest.NewKeyboardNotify}); diff != "" {
				t.Fatalf("wrong events (-got+want):\n%s", diff)
			}
			f := evs[0].Fields
			f.Skip(7)
			if changed := f.U16(); changed != xkb.NKNGeometryMask {
				t.Errorf("NewKeyboardNotify changed = %#x, want %#x", changed, xkb.NKNGeometryMask)
			}
		})
	}
}

func TestSetGeometryErrors(t *testing.T) {
	order := fragments.LittleEndian
	tests := []struct {
		name   string
		change func(*xkb.Geometry)
		want   xkb.ErrorCode
	}{
		{
			name:   "key shape out of range",
			change: func(g *xkb.Geometry) { g.Sections[0].Rows[0].Keys[0].ShapeNdx = uint8(len(g.Shapes)) },
			want:   xkb.BadMatch,
		},
		{
			name:   "key color out of range",
			change: func(g *xkb.Geometry) { g.Sections[0].Rows[0].Keys[0].ColorNdx = uint8(len(g.Colors)) },
			want:   xkb.BadMatch,
		},
		{
			name:   "base color out of range",
			change: func(g *xkb.Geometry) { g.BaseColor = uint8(len(g.Colors)) },
			want:   xkb.BadMatch,
		},
		{
			name:   "bad geometry name",
			change: func(g *xkb.Geometry) { g.Name = 99999 },
			want:   xkb.BadAtom,
		},
		{
			name:   "bad section name",
			change: func(g *xkb.Geometry) { g.Sections[1].Name = 99999 },
			want:   xkb.BadAtom,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s := xkbtest.New(t)
			c := s.NewClient(order)
			before := s.Keyboard(xkbtest.Keyboard2).Geometry
			g := before.Clone()
			tc.change(g)
			c.MustFail(xkbtest.SetGeometry(order, xkbtest.Keyboard2, g), tc.want)
			if s.Keyboard(xkbtest.Keyboard2).Geometry != before {
				t.Errorf("failed SetGeometry replaced the geometry")
			}
		})
	}
}
