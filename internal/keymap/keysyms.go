package keymap

import "github.com/danderson/xkb"

// Keysyms of the non-printing keys in the builtin layouts. Printable
// Latin-1 keysyms equal their code point.
const (
	symBackSpace  xkb.KeySym = 0xff08
	symTab        xkb.KeySym = 0xff09
	symReturn     xkb.KeySym = 0xff0d
	symScrollLock xkb.KeySym = 0xff14
	symEscape     xkb.KeySym = 0xff1b
	symNumLock    xkb.KeySym = 0xff7f
	symKPHome     xkb.KeySym = 0xff95
	symKPLeft     xkb.KeySym = 0xff96
	symKPUp       xkb.KeySym = 0xff97
	symKPRight    xkb.KeySym = 0xff98
	symKPDown     xkb.KeySym = 0xff99
	symKPPrior    xkb.KeySym = 0xff9a
	symKPNext     xkb.KeySym = 0xff9b
	symKPEnd      xkb.KeySym = 0xff9c
	symKPBegin    xkb.KeySym = 0xff9d
	symKPInsert   xkb.KeySym = 0xff9e
	symKPMultiply xkb.KeySym = 0xffaa
	symKP0        xkb.KeySym = 0xffb0
	symShiftL     xkb.KeySym = 0xffe1
	symShiftR     xkb.KeySym = 0xffe2
	symControlL   xkb.KeySym = 0xffe3
	symControlR   xkb.KeySym = 0xffe4
	symCapsLock   xkb.KeySym = 0xffe5
	symAltL       xkb.KeySym = 0xffe9
)

// latin returns the keysyms of the characters in s.
func latin(s string) []xkb.KeySym {
	ret := make([]xkb.KeySym, 0, len(s))
	for _, r := range s {
		ret = append(ret, xkb.KeySym(r))
	}
	return ret
}

// kpDigit returns the keysym of keypad digit n.
func kpDigit(n int) xkb.KeySym {
	return symKP0 + xkb.KeySym(n)
}

func isLower(s xkb.KeySym) bool  { return s >= 'a' && s <= 'z' }
func isUpper(s xkb.KeySym) bool  { return s >= 'A' && s <= 'Z' }
func isKeypad(s xkb.KeySym) bool { return s >= 0xff80 && s <= 0xffbd }
