package xkbtest

import (
	"github.com/danderson/xkb"
	"github.com/danderson/xkb/fragments"
)

func maybeIndex(r *Request, v uint8, ok bool) {
	if ok {
		r.U8(v)
	} else {
		r.U8(xkb.NoShape)
	}
}

func doodad(r *Request, d xkb.Doodad) {
	common := func(c xkb.DoodadCommon, typ uint8) {
		r.Atom(c.Name).U8(typ).U8(c.Priority).I16(c.Top).I16(c.Left).I16(c.Angle)
	}
	switch v := d.(type) {
	case *xkb.OutlineDoodad:
		common(v.DoodadCommon, xkb.OutlineDoodadType)
		r.U8(v.ColorNdx).U8(v.ShapeNdx).Zero(6)
	case *xkb.SolidDoodad:
		common(v.DoodadCommon, xkb.SolidDoodadType)
		r.U8(v.ColorNdx).U8(v.ShapeNdx).Zero(6)
	case *xkb.TextDoodad:
		common(v.DoodadCommon, xkb.TextDoodadType)
		r.I16(v.Width).I16(v.Height).U8(v.ColorNdx).Zero(3)
		r.CountedString(v.Text).CountedString(v.Font)
	case *xkb.IndicatorDoodad:
		common(v.DoodadCommon, xkb.IndicatorDoodadType)
		r.U8(v.ShapeNdx).U8(v.OnColorNdx).U8(v.OffColorNdx).Zero(5)
	case *xkb.LogoDoodad:
		common(v.DoodadCommon, xkb.LogoDoodadType)
		r.U8(v.ColorNdx).U8(v.ShapeNdx).Zero(6)
		r.CountedString(v.LogoName)
	default:
		panic("unknown doodad type")
	}
}

// SetGeometry returns a SetGeometry request that sets g on device
// spec.
func SetGeometry(order fragments.ByteOrder, spec uint16, g *xkb.Geometry) []byte {
	r := NewRequest(order, xkb.OpSetGeometry).
		U16(spec).
		U8(uint8(len(g.Shapes))).
		U8(uint8(len(g.Sections))).
		Atom(g.Name).
		U16(g.WidthMM).
		U16(g.HeightMM).
		U16(uint16(len(g.Properties))).
		U16(uint16(len(g.Colors))).
		U16(uint16(len(g.Doodads))).
		U16(uint16(len(g.KeyAliases))).
		U8(g.BaseColor).
		U8(g.LabelColor).
		Zero(2)
	r.CountedString(g.LabelFont)
	for _, p := range g.Properties {
		r.CountedString(p.Name).CountedString(p.Value)
	}
	for _, c := range g.Colors {
		r.CountedString(c)
	}
	for _, s := range g.Shapes {
		r.Atom(s.Name).U8(uint8(len(s.Outlines)))
		p, ok := s.Primary.GetOK()
		maybeIndex(r, p, ok)
		a, ok := s.Approx.GetOK()
		maybeIndex(r, a, ok)
		r.Zero(1)
		for _, o := range s.Outlines {
			r.U8(uint8(len(o.Points))).U8(o.CornerRadius).Zero(2)
			for _, pt := range o.Points {
				r.I16(pt.X).I16(pt.Y)
			}
		}
	}
	for _, s := range g.Sections {
		r.Atom(s.Name).I16(s.Top).I16(s.Left).U16(s.Width).U16(s.Height).I16(s.Angle).
			U8(s.Priority).U8(uint8(len(s.Rows))).U8(uint8(len(s.Doodads))).U8(uint8(len(s.Overlays))).
			Zero(2)
		for _, row := range s.Rows {
			r.I16(row.Top).I16(row.Left).U8(uint8(len(row.Keys))).Bool(row.Vertical).Zero(2)
			for _, k := range row.Keys {
				r.KeyName(k.Name.String()).I16(k.Gap).U8(k.ShapeNdx).U8(k.ColorNdx)
			}
		}
		for _, d := range s.Doodads {
			doodad(r, d)
		}
		for _, o := range s.Overlays {
			r.Atom(o.Name).U8(uint8(len(o.Rows))).Zero(3)
			for _, orow := range o.Rows {
				r.U8(orow.RowUnder).U8(uint8(len(orow.Keys))).Zero(2)
				for _, k := range orow.Keys {
					r.KeyName(k.Over.String()).KeyName(k.Under.String())
				}
			}
		}
	}
	for _, d := range g.Doodads {
		doodad(r, d)
	}
	for _, a := range g.KeyAliases {
		r.KeyName(a.Real.String()).KeyName(a.Alias.String())
	}
	return r.Bytes()
}
