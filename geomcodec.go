package xkb

import (
	"github.com/creachadair/mds/value"
	"github.com/danderson/xkb/fragments"
)

const (
	shapeLen      = 8
	outlineLen    = 4
	pointLen      = 4
	sectionLen    = 20
	rowLen        = 8
	geomKeyLen    = 8
	overlayLen    = 8
	overlayRowLen = 4
	overlayKeyLen = 8
	doodadLen     = 20
	keyAliasLen   = 8
)

func doodadSize(d Doodad) int {
	switch v := d.(type) {
	case *TextDoodad:
		return doodadLen + fragments.CountedStringSize(v.Text) + fragments.CountedStringSize(v.Font)
	case *LogoDoodad:
		return doodadLen + fragments.CountedStringSize(v.LogoName)
	}
	return doodadLen
}

// geometrySize returns the size of g's payload in a GetGeometry reply
// or SetGeometry request.
func geometrySize(g *Geometry) int {
	ret := fragments.CountedStringSize(g.LabelFont)
	for _, p := range g.Properties {
		ret += fragments.CountedStringSize(p.Name) + fragments.CountedStringSize(p.Value)
	}
	for _, c := range g.Colors {
		ret += fragments.CountedStringSize(c)
	}
	for _, s := range g.Shapes {
		ret += shapeLen
		for _, o := range s.Outlines {
			ret += outlineLen + pointLen*len(o.Points)
		}
	}
	for _, s := range g.Sections {
		ret += sectionLen
		for _, r := range s.Rows {
			ret += rowLen + geomKeyLen*len(r.Keys)
		}
		for _, d := range s.Doodads {
			ret += doodadSize(d)
		}
		for _, o := range s.Overlays {
			ret += overlayLen
			for _, r := range o.Rows {
				ret += overlayRowLen + overlayKeyLen*len(r.Keys)
			}
		}
	}
	for _, d := range g.Doodads {
		ret += doodadSize(d)
	}
	ret += keyAliasLen * len(g.KeyAliases)
	return ret
}

func putMaybeIndex(e *fragments.Encoder, m value.Maybe[uint8]) {
	if v, ok := m.GetOK(); ok {
		e.Uint8(v)
	} else {
		e.Uint8(NoShape)
	}
}

func putDoodad(e *fragments.Encoder, d Doodad) {
	c := d.doodadCommon()
	e.Uint32(uint32(c.Name))
	e.Uint8(d.doodadType())
	e.Uint8(c.Priority)
	e.Int16(c.Top)
	e.Int16(c.Left)
	e.Int16(c.Angle)
	switch v := d.(type) {
	case *OutlineDoodad:
		e.Uint8(v.ColorNdx)
		e.Uint8(v.ShapeNdx)
		e.Zero(6)
	case *SolidDoodad:
		e.Uint8(v.ColorNdx)
		e.Uint8(v.ShapeNdx)
		e.Zero(6)
	case *TextDoodad:
		e.Int16(v.Width)
		e.Int16(v.Height)
		e.Uint8(v.ColorNdx)
		e.Zero(3)
		e.CountedString(v.Text)
		e.CountedString(v.Font)
	case *IndicatorDoodad:
		e.Uint8(v.ShapeNdx)
		e.Uint8(v.OnColorNdx)
		e.Uint8(v.OffColorNdx)
		e.Zero(5)
	case *LogoDoodad:
		e.Uint8(v.ColorNdx)
		e.Uint8(v.ShapeNdx)
		e.Zero(6)
		e.CountedString(v.LogoName)
	}
}

// putGeometry writes g's payload.
func putGeometry(e *fragments.Encoder, g *Geometry) {
	e.CountedString(g.LabelFont)
	for _, p := range g.Properties {
		e.CountedString(p.Name)
		e.CountedString(p.Value)
	}
	for _, c := range g.Colors {
		e.CountedString(c)
	}
	for _, s := range g.Shapes {
		e.Uint32(uint32(s.Name))
		e.Uint8(uint8(len(s.Outlines)))
		putMaybeIndex(e, s.Primary)
		putMaybeIndex(e, s.Approx)
		e.Zero(1)
		for _, o := range s.Outlines {
			e.Uint8(uint8(len(o.Points)))
			e.Uint8(o.CornerRadius)
			e.Zero(2)
			for _, p := range o.Points {
				e.Int16(p.X)
				e.Int16(p.Y)
			}
		}
	}
	for _, s := range g.Sections {
		e.Uint32(uint32(s.Name))
		e.Int16(s.Top)
		e.Int16(s.Left)
		e.Uint16(s.Width)
		e.Uint16(s.Height)
		e.Int16(s.Angle)
		e.Uint8(s.Priority)
		e.Uint8(uint8(len(s.Rows)))
		e.Uint8(uint8(len(s.Doodads)))
		e.Uint8(uint8(len(s.Overlays)))
		e.Zero(2)
		for _, r := range s.Rows {
			e.Int16(r.Top)
			e.Int16(r.Left)
			e.Uint8(uint8(len(r.Keys)))
			e.Bool(r.Vertical)
			e.Zero(2)
			for _, k := range r.Keys {
				putKeyName(e, k.Name)
				e.Int16(k.Gap)
				e.Uint8(k.ShapeNdx)
				e.Uint8(k.ColorNdx)
			}
		}
		for _, d := range s.Doodads {
			putDoodad(e, d)
		}
		for _, o := range s.Overlays {
			e.Uint32(uint32(o.Name))
			e.Uint8(uint8(len(o.Rows)))
			e.Zero(3)
			for _, r := range o.Rows {
				e.Uint8(r.RowUnder)
				e.Uint8(uint8(len(r.Keys)))
				e.Zero(2)
				for _, k := range r.Keys {
					putKeyName(e, k.Over)
					putKeyName(e, k.Under)
				}
			}
		}
	}
	for _, d := range g.Doodads {
		putDoodad(e, d)
	}
	for _, a := range g.KeyAliases {
		putKeyName(e, a.Real)
		putKeyName(e, a.Alias)
	}
}

// writeGeometryReply writes a complete GetGeometry reply. If g is
// nil, the reply reports that the geometry named name was not found.
func writeGeometryReply(e *fragments.Encoder, c *Client, devID uint8, g *Geometry, name Atom) (start, size int) {
	size = replyHeaderLen
	if g != nil {
		size += geometrySize(g)
	}
	start = beginReply(e, c, devID, size)
	if g == nil {
		e.Uint32(uint32(name))
		e.Zero(20)
		return start, size
	}
	e.Uint32(uint32(g.Name))
	e.Bool(true)
	e.Zero(1)
	e.Uint16(g.WidthMM)
	e.Uint16(g.HeightMM)
	e.Uint16(uint16(len(g.Properties)))
	e.Uint16(uint16(len(g.Colors)))
	e.Uint16(uint16(len(g.Shapes)))
	e.Uint16(uint16(len(g.Sections)))
	e.Uint16(uint16(len(g.Doodads)))
	e.Uint16(uint16(len(g.KeyAliases)))
	e.Uint8(g.BaseColor)
	e.Uint8(g.LabelColor)
	putGeometry(e, g)
	return start, size
}

func (s *Server) getGeometry(r *request) ([]byte, error) {
	spec := r.in.u16()
	r.in.skip(2)
	name := r.in.atom()
	if err := r.done(); err != nil {
		return nil, err
	}
	dev, err := s.lookupDevice(spec, needKeyboard)
	if err != nil {
		return nil, err
	}
	g := dev.Keyboard.Desc.Geometry
	if g != nil && name != None && name != g.Name {
		// Only the device's own geometry can be reported.
		g = nil
	}
	e := r.client.encoder()
	start, size := writeGeometryReply(e, r.client, dev.ID, g, name)
	return e.Out, s.endReply(e, start, size, r.opcode)
}

// geometryBuilder builds a Geometry from a SetGeometry request,
// checking every cross reference against the geometry built so far.
type geometryBuilder struct {
	s  *Server
	in *reader
	g  *Geometry
}

func (b *geometryBuilder) atom(what string) (Atom, error) {
	a := b.in.atom()
	if b.in.err != nil {
		return None, b.in.err
	}
	if !b.s.atoms.Valid(a) {
		return None, protoErr(BadAtom, uint32(a), "invalid %s name %d", what, a)
	}
	return a, nil
}

func (b *geometryBuilder) color(ndx uint8, what string) error {
	if int(ndx) >= len(b.g.Colors) {
		return errMatch(errCode3(0x10, int(ndx), len(b.g.Colors)), "%s color %d of %d", what, ndx, len(b.g.Colors))
	}
	return nil
}

func (b *geometryBuilder) shape(ndx uint8, what string) error {
	if int(ndx) >= len(b.g.Shapes) {
		return errMatch(errCode3(0x11, int(ndx), len(b.g.Shapes)), "%s shape %d of %d", what, ndx, len(b.g.Shapes))
	}
	return nil
}

func (b *geometryBuilder) shapes(n int) error {
	in := b.in
	for range n {
		name, err := b.atom("shape")
		if err != nil {
			return err
		}
		nOutlines := int(in.u8())
		primary, approx := in.u8(), in.u8()
		in.skip(1)
		sh := b.g.AddShape(name, nOutlines)
		for range nOutlines {
			nPoints := int(in.u8())
			o := sh.AddOutline(in.u8(), nPoints)
			in.skip(2)
			in.count(nPoints, func() { o.Points = append(o.Points, Point{in.i16(), in.i16()}) })
		}
		if in.err != nil {
			return in.err
		}
		for _, ndx := range []struct {
			v   uint8
			dst *value.Maybe[uint8]
		}{{primary, &sh.Primary}, {approx, &sh.Approx}} {
			if ndx.v == NoShape {
				continue
			}
			if int(ndx.v) >= nOutlines {
				return errMatch(errCode3(0x12, int(ndx.v), nOutlines), "shape outline %d of %d", ndx.v, nOutlines)
			}
			*ndx.dst = value.Just(ndx.v)
		}
	}
	return nil
}

func (b *geometryBuilder) doodad(sec *Section) error {
	in := b.in
	name, err := b.atom("doodad")
	if err != nil {
		return err
	}
	typ := in.u8()
	common := DoodadCommon{
		Name:     name,
		Priority: in.u8(),
		Top:      in.i16(),
		Left:     in.i16(),
		Angle:    in.i16(),
	}
	var d Doodad
	switch typ {
	case OutlineDoodadType, SolidDoodadType:
		color, shape := in.u8(), in.u8()
		in.skip(6)
		if err := b.color(color, "doodad"); err != nil {
			return err
		}
		if err := b.shape(shape, "doodad"); err != nil {
			return err
		}
		if typ == OutlineDoodadType {
			d = &OutlineDoodad{common, color, shape}
		} else {
			d = &SolidDoodad{common, color, shape}
		}
	case TextDoodadType:
		t := &TextDoodad{DoodadCommon: common}
		t.Width = in.i16()
		t.Height = in.i16()
		t.ColorNdx = in.u8()
		in.skip(3)
		t.Text = in.countedString()
		t.Font = in.countedString()
		if err := b.color(t.ColorNdx, "text doodad"); err != nil {
			return err
		}
		d = t
	case IndicatorDoodadType:
		ind := &IndicatorDoodad{DoodadCommon: common}
		ind.ShapeNdx = in.u8()
		ind.OnColorNdx = in.u8()
		ind.OffColorNdx = in.u8()
		in.skip(5)
		if err := b.shape(ind.ShapeNdx, "indicator doodad"); err != nil {
			return err
		}
		if err := b.color(ind.OnColorNdx, "indicator doodad on"); err != nil {
			return err
		}
		if err := b.color(ind.OffColorNdx, "indicator doodad off"); err != nil {
			return err
		}
		d = ind
	case LogoDoodadType:
		l := &LogoDoodad{DoodadCommon: common}
		l.ColorNdx = in.u8()
		l.ShapeNdx = in.u8()
		in.skip(6)
		l.LogoName = in.countedString()
		if err := b.color(l.ColorNdx, "logo doodad"); err != nil {
			return err
		}
		if err := b.shape(l.ShapeNdx, "logo doodad"); err != nil {
			return err
		}
		d = l
	default:
		if in.err != nil {
			return in.err
		}
		return errValue(errCode2(0x13, int(typ)), "unknown doodad type %d", typ)
	}
	if in.err != nil {
		return in.err
	}
	b.g.AddDoodad(sec, d)
	return nil
}

func (b *geometryBuilder) section() error {
	in := b.in
	name, err := b.atom("section")
	if err != nil {
		return err
	}
	sec := b.g.AddSection(Section{
		Name:   name,
		Top:    in.i16(),
		Left:   in.i16(),
		Width:  in.u16(),
		Height: in.u16(),
		Angle:  in.i16(),
	})
	sec.Priority = in.u8()
	nRows, nDoodads, nOverlays := int(in.u8()), int(in.u8()), int(in.u8())
	in.skip(2)
	for range nRows {
		top, left := in.i16(), in.i16()
		nKeys := int(in.u8())
		row := sec.AddRow(top, left, in.bool(), nKeys)
		in.skip(2)
		for range nKeys {
			k := GeomKey{
				Name:     in.keyName(),
				Gap:      in.i16(),
				ShapeNdx: in.u8(),
				ColorNdx: in.u8(),
			}
			if in.err != nil {
				return in.err
			}
			if err := b.shape(k.ShapeNdx, "key "+k.Name.String()); err != nil {
				return err
			}
			if err := b.color(k.ColorNdx, "key "+k.Name.String()); err != nil {
				return err
			}
			row.AddKey(k)
		}
	}
	for range nDoodads {
		if err := b.doodad(sec); err != nil {
			return err
		}
	}
	for range nOverlays {
		name, err := b.atom("overlay")
		if err != nil {
			return err
		}
		nORows := int(in.u8())
		in.skip(3)
		ov := sec.AddOverlay(name, nORows)
		for range nORows {
			under := in.u8()
			nKeys := int(in.u8())
			in.skip(2)
			if in.err != nil {
				return in.err
			}
			if int(under) >= len(sec.Rows) {
				return errMatch(errCode3(0x14, int(under), len(sec.Rows)), "overlay row over row %d of %d", under, len(sec.Rows))
			}
			orow := ov.AddRow(under, nKeys)
			in.count(nKeys, func() {
				orow.Keys = append(orow.Keys, OverlayKey{Over: in.keyName(), Under: in.keyName()})
			})
		}
	}
	return in.err
}

// parseSetGeometry reads a SetGeometry request into a new geometry.
func (s *Server) parseSetGeometry(in *reader) (spec uint16, g *Geometry, err error) {
	spec = in.u16()
	nShapes := int(in.u8())
	nSections := int(in.u8())
	b := &geometryBuilder{s: s, in: in, g: &Geometry{}}
	if b.g.Name, err = b.atom("geometry"); err != nil {
		return spec, nil, err
	}
	g = b.g
	g.WidthMM = in.u16()
	g.HeightMM = in.u16()
	nProps := int(in.u16())
	nColors := int(in.u16())
	nDoodads := int(in.u16())
	nAliases := int(in.u16())
	g.BaseColor = in.u8()
	g.LabelColor = in.u8()
	in.skip(2)

	g.LabelFont = in.countedString()
	in.count(nProps, func() { g.AddProperty(in.countedString(), in.countedString()) })
	in.count(nColors, func() { g.AddColor(in.countedString()) })
	if in.err != nil {
		return spec, nil, in.err
	}
	if err := b.color(g.BaseColor, "base"); err != nil {
		return spec, nil, err
	}
	if err := b.color(g.LabelColor, "label"); err != nil {
		return spec, nil, err
	}
	if err := b.shapes(nShapes); err != nil {
		return spec, nil, err
	}
	for range nSections {
		if err := b.section(); err != nil {
			return spec, nil, err
		}
	}
	for range nDoodads {
		if err := b.doodad(nil); err != nil {
			return spec, nil, err
		}
	}
	in.count(nAliases, func() { g.AddKeyAlias(in.keyName(), in.keyName()) })
	return spec, g, in.err
}

func (s *Server) setGeometry(r *request) ([]byte, error) {
	spec, g, err := s.parseSetGeometry(r.in)
	if err != nil {
		return nil, err
	}
	if err := r.done(); err != nil {
		return nil, err
	}
	dev, err := s.lookupDevice(spec, needKeyboard)
	if err != nil {
		return nil, err
	}
	plan := s.plan(spec, dev, needKeyboard)
	return nil, plan.Commit(func(dev *Device) error {
		d := dev.Keyboard.Desc
		if dev == plan.Primary {
			d.Geometry = g
		} else {
			d.Geometry = g.Clone()
		}
		d.Names.Geometry = g.Name
		s.notify(dev, &newKeyboardNotifyEvent{
			oldDeviceID:   dev.ID,
			minKeyCode:    d.MinKeyCode,
			maxKeyCode:    d.MaxKeyCode,
			oldMinKeyCode: d.MinKeyCode,
			oldMaxKeyCode: d.MaxKeyCode,
			requestMinor:  OpSetGeometry,
			changed:       NKNGeometryMask,
		})
		return nil
	})
}
