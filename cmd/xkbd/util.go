package main

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode"

	"github.com/danderson/xkb"
)

type indenter struct {
	prefix     string
	indentNext bool
}

func (i *indenter) f(msg string, args ...any) {
	fmt.Fprintf(i, msg+"\n", args...)
}

func (i *indenter) s(msg string) {
	io.WriteString(i, msg+"\n")
}

func (i *indenter) Write(bs []byte) (int, error) {
	ret := 0
	for len(bs) > 0 {
		if i.indentNext {
			i.indentNext = false
			_, err := io.WriteString(os.Stdout, i.prefix)
			if err != nil {
				return ret, err
			}
		}

		var wr []byte
		idx := bytes.IndexByte(bs, '\n')
		if idx >= 0 {
			i.indentNext = true
			wr, bs = bs[:idx+1], bs[idx+1:]
		} else {
			wr, bs = bs, nil
		}

		n, err := os.Stdout.Write(wr)
		ret += n
		if err != nil {
			return ret, err
		}
	}
	return ret, nil
}

func (i *indenter) indent(n int) {
	i.prefix = strings.Repeat("  ", n)
}

func dumpDevice(out *indenter, atoms *xkb.AtomTable, dev *xkb.Device) {
	desc := dev.Keyboard.Desc
	name := func(a xkb.Atom) string {
		if a == xkb.None {
			return "<none>"
		}
		return atoms.Name(a)
	}

	out.indent(0)
	out.f("%s", dev)
	out.indent(1)
	out.f("keycodes %d..%d", desc.MinKeyCode, desc.MaxKeyCode)
	out.f("keymap %s, geometry %s", name(desc.Names.Symbols), name(desc.Names.Geometry))

	out.s("key types:")
	out.indent(2)
	for i, t := range desc.Types {
		out.f("%d: %s, %d levels, %d map entries", i, name(t.Name), t.NumLevels, len(t.Map))
	}

	out.indent(1)
	out.s("keys:")
	out.indent(2)
	for kc := int(desc.MinKeyCode); kc <= int(desc.MaxKeyCode); kc++ {
		m := desc.KeySyms(kc)
		if len(m.Syms) == 0 {
			continue
		}
		var syms []string
		for _, s := range m.Syms {
			syms = append(syms, symString(s))
		}
		out.f("%3d %-4s %s", kc, desc.Names.Keys[kc-int(desc.MinKeyCode)], strings.Join(syms, " "))
	}
	out.indent(0)
	out.s("")
}

func symString(s xkb.KeySym) string {
	if s == 0 {
		return "-"
	}
	if s < 0x100 && unicode.IsPrint(rune(s)) {
		return string(rune(s))
	}
	return fmt.Sprintf("%#x", uint32(s))
}
