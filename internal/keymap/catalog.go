// Package keymap provides the builtin keymap database: pc105
// keyboard descriptions for a handful of layouts, and a loader that
// resolves GetKbdByName component patterns against them.
package keymap

import (
	"context"
	"fmt"
	"path"

	"github.com/danderson/xkb"
)

// Component names of the builtin database, other than symbols.
const (
	KeycodesName = "evdev+aliases(qwerty)"
	TypesName    = "complete"
	CompatName   = "complete"
	GeometryName = "pc(pc105)"
)

// Catalog is a KeymapLoader backed by the builtin layouts.
type Catalog struct{}

// Keymaps returns the names of the complete keymaps in the catalog.
func (Catalog) Keymaps() []string {
	ret := make([]string, 0, len(layouts))
	for _, l := range layouts {
		ret = append(ret, "pc+"+l.name)
	}
	return ret
}

func match(pattern, name string) (bool, error) {
	if pattern == "" {
		return false, nil
	}
	ok, err := path.Match(pattern, name)
	if err != nil {
		return false, fmt.Errorf("bad pattern %q: %w", pattern, err)
	}
	return ok, nil
}

// resolve returns the layout selected by names, and the components
// found.
func (c Catalog) resolve(names xkb.ComponentNames) (*layout, uint16, error) {
	if names.Keymap != "" {
		for i, km := range c.Keymaps() {
			ok, err := match(names.Keymap, km)
			if err != nil {
				return nil, 0, err
			}
			if ok {
				return &layouts[i], xkb.GBNAllComponentsMask, nil
			}
		}
		return nil, 0, nil
	}

	var (
		found  uint16
		chosen *layout
	)
	for i, l := range layouts {
		ok, err := match(names.Symbols, "pc+"+l.name)
		if err != nil {
			return nil, 0, err
		}
		if ok {
			chosen = &layouts[i]
			found |= xkb.GBNClientSymbolsMask | xkb.GBNServerSymbolsMask
			break
		}
	}
	for _, comp := range []struct {
		pattern, name string
		mask          uint16
	}{
		{names.Keycodes, KeycodesName, xkb.GBNKeyNamesMask},
		{names.Types, TypesName, xkb.GBNTypesMask},
		{names.Compat, CompatName, xkb.GBNCompatMapMask | xkb.GBNIndicatorMapMask},
		{names.Geometry, GeometryName, xkb.GBNGeometryMask},
	} {
		ok, err := match(comp.pattern, comp.name)
		if err != nil {
			return nil, 0, err
		}
		if ok {
			found |= comp.mask
		}
	}
	if found == 0 {
		return nil, 0, nil
	}
	found |= xkb.GBNOtherNamesMask
	if chosen == nil {
		chosen = &layouts[0]
	}
	return chosen, found, nil
}

// LoadKeymap implements xkb.KeymapLoader.
func (c Catalog) LoadKeymap(ctx context.Context, atoms *xkb.AtomTable, names xkb.ComponentNames, want, need uint16) (*xkb.Desc, uint16, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	l, found, err := c.resolve(names)
	if err != nil || l == nil {
		return nil, 0, err
	}
	if need&^found != 0 {
		return nil, found, nil
	}
	d, err := Build(atoms, l.name)
	if err != nil {
		return nil, 0, err
	}
	if found&xkb.GBNGeometryMask == 0 {
		d.Geometry = nil
		d.Names.Geometry = xkb.None
	}
	if found&xkb.GBNCompatMapMask == 0 {
		d.Compat = xkb.CompatMap{}
		d.Indicators = [xkb.NumIndicators]xkb.IndicatorMap{}
		d.Names.Compat = xkb.None
	}
	return d, found, nil
}
