package xkb

import (
	"slices"

	"github.com/creachadair/mds/value"
)

// Geometry is the physical layout of a keyboard, for visualization.
//
// All cross references inside a Geometry (a key's shape, a doodad's
// color, an overlay row's underlying row) are indices into the
// Geometry's own lists.
type Geometry struct {
	Name       Atom
	WidthMM    uint16
	HeightMM   uint16
	BaseColor  uint8
	LabelColor uint8
	LabelFont  string
	Properties []Property
	Colors     []string
	Shapes     []Shape
	Sections   []Section
	Doodads    []Doodad
	KeyAliases []KeyAlias
}

// Property is a free-form name/value pair attached to a geometry.
type Property struct {
	Name  string
	Value string
}

// Point is a point in a shape outline, in tenths of a millimeter.
type Point struct {
	X, Y int16
}

// Outline is a closed shape outline.
type Outline struct {
	CornerRadius uint8
	Points       []Point
}

// Shape is a set of outlines, used to draw keys and doodads.
type Shape struct {
	Name     Atom
	Outlines []Outline
	// Primary and Approx are optional indices into Outlines, of the
	// outline to use as the shape's main outline and as a coarse
	// approximation.
	Primary value.Maybe[uint8]
	Approx  value.Maybe[uint8]
}

// GeomKey is a key in a geometry row.
type GeomKey struct {
	Name     KeyName
	Gap      int16
	ShapeNdx uint8
	ColorNdx uint8
}

// Row is a row of keys within a section.
type Row struct {
	Top      int16
	Left     int16
	Vertical bool
	Keys     []GeomKey
}

// OverlayKey maps a visible key onto a key underneath it.
type OverlayKey struct {
	Over  KeyName
	Under KeyName
}

// OverlayRow is the overlay of one section row.
type OverlayRow struct {
	RowUnder uint8
	Keys     []OverlayKey
}

// Overlay is a named set of keys drawn over a section.
type Overlay struct {
	Name Atom
	Rows []OverlayRow
}

// Section is a group of rows of keys, such as the main alphanumeric
// block.
type Section struct {
	Name     Atom
	Top      int16
	Left     int16
	Width    uint16
	Height   uint16
	Angle    int16
	Priority uint8
	Rows     []Row
	Doodads  []Doodad
	Overlays []Overlay
}

// Doodad type tags.
const (
	OutlineDoodadType   uint8 = 1
	SolidDoodadType     uint8 = 2
	TextDoodadType      uint8 = 3
	IndicatorDoodadType uint8 = 4
	LogoDoodadType      uint8 = 5
)

// A Doodad is a decoration in a geometry. It is one of
// [OutlineDoodad], [SolidDoodad], [TextDoodad], [IndicatorDoodad] or
// [LogoDoodad].
type Doodad interface {
	doodadCommon() *DoodadCommon
	doodadType() uint8
}

// DoodadCommon holds the fields shared by all doodads.
type DoodadCommon struct {
	Name     Atom
	Priority uint8
	Top      int16
	Left     int16
	Angle    int16
}

func (c *DoodadCommon) doodadCommon() *DoodadCommon { return c }

// OutlineDoodad is the outline of a shape.
type OutlineDoodad struct {
	DoodadCommon
	ColorNdx uint8
	ShapeNdx uint8
}

func (*OutlineDoodad) doodadType() uint8 { return OutlineDoodadType }

// SolidDoodad is a filled shape.
type SolidDoodad struct {
	DoodadCommon
	ColorNdx uint8
	ShapeNdx uint8
}

func (*SolidDoodad) doodadType() uint8 { return SolidDoodadType }

// TextDoodad is a text label.
type TextDoodad struct {
	DoodadCommon
	Width    int16
	Height   int16
	ColorNdx uint8
	Text     string
	Font     string
}

func (*TextDoodad) doodadType() uint8 { return TextDoodadType }

// IndicatorDoodad is an LED.
type IndicatorDoodad struct {
	DoodadCommon
	ShapeNdx    uint8
	OnColorNdx  uint8
	OffColorNdx uint8
}

func (*IndicatorDoodad) doodadType() uint8 { return IndicatorDoodadType }

// LogoDoodad is a manufacturer logo.
type LogoDoodad struct {
	DoodadCommon
	ColorNdx uint8
	ShapeNdx uint8
	LogoName string
}

func (*LogoDoodad) doodadType() uint8 { return LogoDoodadType }

// AddProperty appends a property to g.
func (g *Geometry) AddProperty(name, val string) *Property {
	g.Properties = append(g.Properties, Property{name, val})
	return &g.Properties[len(g.Properties)-1]
}

// AddColor appends a color to g, and returns its index.
func (g *Geometry) AddColor(spec string) int {
	g.Colors = append(g.Colors, spec)
	return len(g.Colors) - 1
}

// AddShape appends an empty shape with room for nOutlines outlines.
func (g *Geometry) AddShape(name Atom, nOutlines int) *Shape {
	g.Shapes = append(g.Shapes, Shape{
		Name:     name,
		Outlines: make([]Outline, 0, nOutlines),
	})
	return &g.Shapes[len(g.Shapes)-1]
}

// AddOutline appends an outline with room for nPoints points.
func (s *Shape) AddOutline(cornerRadius uint8, nPoints int) *Outline {
	s.Outlines = append(s.Outlines, Outline{
		CornerRadius: cornerRadius,
		Points:       make([]Point, 0, nPoints),
	})
	return &s.Outlines[len(s.Outlines)-1]
}

// AddSection appends an empty section to g.
func (g *Geometry) AddSection(sec Section) *Section {
	g.Sections = append(g.Sections, sec)
	return &g.Sections[len(g.Sections)-1]
}

// AddRow appends an empty row with room for nKeys keys.
func (s *Section) AddRow(top, left int16, vertical bool, nKeys int) *Row {
	s.Rows = append(s.Rows, Row{
		Top:      top,
		Left:     left,
		Vertical: vertical,
		Keys:     make([]GeomKey, 0, nKeys),
	})
	return &s.Rows[len(s.Rows)-1]
}

// AddKey appends a key to r.
func (r *Row) AddKey(k GeomKey) {
	r.Keys = append(r.Keys, k)
}

// AddOverlay appends an empty overlay with room for nRows rows.
func (s *Section) AddOverlay(name Atom, nRows int) *Overlay {
	s.Overlays = append(s.Overlays, Overlay{
		Name: name,
		Rows: make([]OverlayRow, 0, nRows),
	})
	return &s.Overlays[len(s.Overlays)-1]
}

// AddRow appends an overlay row with room for nKeys keys.
func (o *Overlay) AddRow(rowUnder uint8, nKeys int) *OverlayRow {
	o.Rows = append(o.Rows, OverlayRow{
		RowUnder: rowUnder,
		Keys:     make([]OverlayKey, 0, nKeys),
	})
	return &o.Rows[len(o.Rows)-1]
}

// AddDoodad appends d to the section's doodads, or the geometry's
// top-level doodads if sec is nil.
func (g *Geometry) AddDoodad(sec *Section, d Doodad) {
	if sec != nil {
		sec.Doodads = append(sec.Doodads, d)
	} else {
		g.Doodads = append(g.Doodads, d)
	}
}

// AddKeyAlias appends a key alias to g.
func (g *Geometry) AddKeyAlias(realName, alias KeyName) {
	g.KeyAliases = append(g.KeyAliases, KeyAlias{realName, alias})
}

// Clone returns a deep copy of g.
func (g *Geometry) Clone() *Geometry {
	ret := *g
	ret.Properties = slices.Clone(g.Properties)
	ret.Colors = slices.Clone(g.Colors)
	ret.Shapes = make([]Shape, len(g.Shapes))
	for i, s := range g.Shapes {
		s.Outlines = slices.Clone(s.Outlines)
		for j := range s.Outlines {
			s.Outlines[j].Points = slices.Clone(s.Outlines[j].Points)
		}
		ret.Shapes[i] = s
	}
	ret.Sections = make([]Section, len(g.Sections))
	for i, s := range g.Sections {
		s.Rows = slices.Clone(s.Rows)
		for j := range s.Rows {
			s.Rows[j].Keys = slices.Clone(s.Rows[j].Keys)
		}
		s.Overlays = slices.Clone(s.Overlays)
		for j := range s.Overlays {
			o := &s.Overlays[j]
			o.Rows = slices.Clone(o.Rows)
			for k := range o.Rows {
				o.Rows[k].Keys = slices.Clone(o.Rows[k].Keys)
			}
		}
		s.Doodads = cloneDoodads(s.Doodads)
		ret.Sections[i] = s
	}
	ret.Doodads = cloneDoodads(g.Doodads)
	ret.KeyAliases = slices.Clone(g.KeyAliases)
	return &ret
}

func cloneDoodads(ds []Doodad) []Doodad {
	if ds == nil {
		return nil
	}
	ret := make([]Doodad, len(ds))
	for i, d := range ds {
		switch v := d.(type) {
		case *OutlineDoodad:
			c := *v
			ret[i] = &c
		case *SolidDoodad:
			c := *v
			ret[i] = &c
		case *TextDoodad:
			c := *v
			ret[i] = &c
		case *IndicatorDoodad:
			c := *v
			ret[i] = &c
		case *LogoDoodad:
			c := *v
			ret[i] = &c
		}
	}
	return ret
}
