// Package xkb implements the request/reply engine of the X Keyboard
// extension: the keyboard descriptions of a set of input devices, and
// the protocol requests that read and change them.
//
// A [Server] owns the devices and an atom table. Each connection to
// it is a [Client], which sends requests with [Server.Dispatch] and
// receives the replies, error packets and events that XKB defines, in
// the client's byte order.
//
// Requests that change keyboard state are validated against every
// device they apply to before any device is changed. A request on a
// core device also applies to the slave devices attached to it, see
// [CommitPlan].
//
// Keyboard descriptions for new devices and for GetKbdByName come
// from a [KeymapLoader]. The internal/keymap package provides a
// builtin one.
package xkb
