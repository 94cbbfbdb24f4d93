package keymap

import (
	"github.com/creachadair/mds/value"
	"github.com/danderson/xkb"
)

// Colors of the pc105 geometry.
const (
	colorBlack = iota
	colorWhite
	colorGrey
	colorGreen
)

// Shapes of the pc105 geometry.
const (
	shapeNorm = iota
	shapeBksp
	shapeWide
	shapeSpace
	shapeLED
	shapeEdge
	shapeLogo
)

// rect adds a w by h rectangular outline to s, given by two corners.
func rect(s *xkb.Shape, radius uint8, x, y, w, h int16) {
	o := s.AddOutline(radius, 2)
	o.Points = append(o.Points, xkb.Point{X: x, Y: y}, xkb.Point{X: x + w, Y: y + h})
}

func pc105Geometry(atoms *xkb.AtomTable) *xkb.Geometry {
	g := &xkb.Geometry{
		Name:       atoms.Intern("pc(pc105)"),
		WidthMM:    470,
		HeightMM:   180,
		LabelFont:  "-*-helvetica-medium-r-normal--*-120-*-*-*-*-iso8859-1",
		BaseColor:  colorWhite,
		LabelColor: colorBlack,
	}
	g.AddProperty("manufacturer", "generic")
	g.AddProperty("model", "pc105")
	for _, c := range []string{"black", "white", "grey20", "green"} {
		g.AddColor(c)
	}

	norm := g.AddShape(atoms.Intern("NORM"), 2)
	rect(norm, 1, 0, 0, 180, 180)
	rect(norm, 1, 25, 10, 130, 130)
	norm.Approx = value.Just[uint8](1)
	rect(g.AddShape(atoms.Intern("BKSP"), 1), 1, 0, 0, 380, 180)
	rect(g.AddShape(atoms.Intern("WIDE"), 1), 1, 0, 0, 270, 180)
	rect(g.AddShape(atoms.Intern("SPCE"), 1), 1, 0, 0, 1330, 180)
	rect(g.AddShape(atoms.Intern("LED"), 1), 0, 0, 0, 50, 10)
	edge := g.AddShape(atoms.Intern("EDGE"), 1)
	rect(edge, 5, 0, 0, 4700, 1800)
	edge.Primary = value.Just[uint8](0)
	rect(g.AddShape(atoms.Intern("LOGO"), 1), 0, 0, 0, 160, 160)

	g.AddDoodad(nil, &xkb.OutlineDoodad{
		DoodadCommon: xkb.DoodadCommon{Name: atoms.Intern("Edges")},
		ColorNdx:     colorBlack,
		ShapeNdx:     shapeEdge,
	})
	g.AddDoodad(nil, &xkb.LogoDoodad{
		DoodadCommon: xkb.DoodadCommon{Name: atoms.Intern("Logo"), Priority: 1, Top: 70, Left: 3900},
		ColorNdx:     colorBlack,
		ShapeNdx:     shapeLogo,
		LogoName:     "XKB",
	})
	g.AddDoodad(nil, &xkb.TextDoodad{
		DoodadCommon: xkb.DoodadCommon{Name: atoms.Intern("Label"), Priority: 2, Top: 70, Left: 190},
		Width:        600,
		Height:       60,
		ColorNdx:     colorBlack,
		Text:         "Generic 105",
		Font:         "helvetica",
	})

	alpha := g.AddSection(xkb.Section{
		Name:   atoms.Intern("Alpha"),
		Top:    220,
		Left:   190,
		Width:  2860,
		Height: 960,
	})
	keys := func(top int16, names ...string) *xkb.Row {
		r := alpha.AddRow(top, 0, false, len(names))
		for _, n := range names {
			shape := uint8(shapeNorm)
			switch n {
			case "BKSP":
				shape = shapeBksp
			case "TAB", "CAPS", "RTRN", "LFSH", "RTSH", "LCTL", "RCTL", "LALT":
				shape = shapeWide
			case "SPCE":
				shape = shapeSpace
			}
			r.AddKey(xkb.GeomKey{Name: xkb.MakeKeyName(n), Gap: 10, ShapeNdx: shape, ColorNdx: colorGrey})
		}
		return r
	}
	keys(0, "TLDE", "AE01", "AE02", "AE03", "AE04", "AE05", "AE06", "AE07", "AE08", "AE09", "AE10", "AE11", "AE12", "BKSP")
	keys(190, "TAB", "AD01", "AD02", "AD03", "AD04", "AD05", "AD06", "AD07", "AD08", "AD09", "AD10", "AD11", "AD12")
	keys(380, "CAPS", "AC01", "AC02", "AC03", "AC04", "AC05", "AC06", "AC07", "AC08", "AC09", "AC10", "AC11", "RTRN")
	keys(570, "LFSH", "AB01", "AB02", "AB03", "AB04", "AB05", "AB06", "AB07", "AB08", "AB09", "AB10", "RTSH")
	keys(760, "LCTL", "LALT", "SPCE", "RCTL")

	// Laptop-style embedded keypad.
	ov := alpha.AddOverlay(atoms.Intern("KPAD"), 4)
	for i, r := range [][][2]string{
		{{"KP7", "AE07"}, {"KP8", "AE08"}, {"KP9", "AE09"}, {"KPMU", "AE10"}},
		{{"KP4", "AD07"}, {"KP5", "AD08"}, {"KP6", "AD09"}},
		{{"KP1", "AC07"}, {"KP2", "AC08"}, {"KP3", "AC09"}},
		{{"KP0", "AB07"}},
	} {
		or := ov.AddRow(uint8(i), len(r))
		for _, k := range r {
			or.Keys = append(or.Keys, xkb.OverlayKey{Over: xkb.MakeKeyName(k[0]), Under: xkb.MakeKeyName(k[1])})
		}
	}

	kp := g.AddSection(xkb.Section{
		Name:     atoms.Intern("Keypad"),
		Top:      220,
		Left:     3800,
		Width:    770,
		Height:   960,
		Priority: 1,
	})
	for i, names := range [][]string{
		{"NMLK", "KPMU"},
		{"KP7", "KP8", "KP9"},
		{"KP4", "KP5", "KP6"},
		{"KP1", "KP2", "KP3"},
		{"KP0"},
	} {
		r := kp.AddRow(int16(i)*190, 0, false, len(names))
		for _, n := range names {
			r.AddKey(xkb.GeomKey{Name: xkb.MakeKeyName(n), Gap: 10, ShapeNdx: shapeNorm, ColorNdx: colorGrey})
		}
	}

	leds := g.AddSection(xkb.Section{
		Name:     atoms.Intern("Indicators"),
		Top:      70,
		Left:     3050,
		Width:    700,
		Height:   100,
		Priority: 2,
	})
	g.AddDoodad(leds, &xkb.SolidDoodad{
		DoodadCommon: xkb.DoodadCommon{Name: atoms.Intern("Panel")},
		ColorNdx:     colorGrey,
		ShapeNdx:     shapeLogo,
	})
	for i, n := range []string{"Num Lock", "Caps Lock", "Scroll Lock"} {
		g.AddDoodad(leds, &xkb.IndicatorDoodad{
			DoodadCommon: xkb.DoodadCommon{Name: atoms.Intern(n), Priority: uint8(i + 1), Left: int16(i) * 200},
			ShapeNdx:     shapeLED,
			OnColorNdx:   colorGreen,
			OffColorNdx:  colorGrey,
		})
	}

	g.AddKeyAlias(xkb.MakeKeyName("AC12"), xkb.MakeKeyName("BKSL"))
	return g
}
