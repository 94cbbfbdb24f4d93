package xkb

import (
	"sync"
)

// Atom is an X11 atom: a server-wide identifier for a string.
type Atom uint32

// None is the null atom.
const None Atom = 0

// AtomTable interns strings as atoms.
type AtomTable struct {
	mu    sync.Mutex
	names []string
	ids   map[string]Atom
}

// NewAtomTable returns an empty atom table.
func NewAtomTable() *AtomTable {
	return &AtomTable{
		names: []string{""},
		ids:   map[string]Atom{},
	}
}

// Intern returns the atom for name, creating it if necessary. The
// empty string is None.
func (t *AtomTable) Intern(name string) Atom {
	if name == "" {
		return None
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if a, ok := t.ids[name]; ok {
		return a
	}
	a := Atom(len(t.names))
	t.names = append(t.names, name)
	t.ids[name] = a
	return a
}

// Lookup returns the atom for name, if it has been interned.
func (t *AtomTable) Lookup(name string) (Atom, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	a, ok := t.ids[name]
	return a, ok
}

// Name returns the string for a. It returns "" for None and for
// atoms that do not exist.
func (t *AtomTable) Name(a Atom) string {
	t.mu.Lock()
	defer t.mu.Unlock()
	if int(a) >= len(t.names) {
		return ""
	}
	return t.names[a]
}

// Valid reports whether a is an existing atom. None is not valid.
func (t *AtomTable) Valid(a Atom) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return a != None && int(a) < len(t.names)
}

// check returns BadAtom unless a is None or a valid atom.
func (t *AtomTable) check(a Atom) error {
	if a == None || t.Valid(a) {
		return nil
	}
	return protoErr(BadAtom, uint32(a), "unknown atom %d", a)
}
