package fragments_test

import (
	"bytes"
	"testing"

	"github.com/danderson/xkb/fragments"
)

func TestEncoder(t *testing.T) {
	tests := []struct {
		name string
		in   func(*fragments.Encoder)
		want []byte
	}{
		{
			"raw bytes",
			func(e *fragments.Encoder) {
				e.Write([]byte{1, 2, 3})
			},
			[]byte{0x01, 0x02, 0x03},
		},

		{
			"uints",
			func(e *fragments.Encoder) {
				e.Uint8(42)
				e.Uint8(0)
				e.Uint16(66)
				e.Uint32(42)
				e.Int16(-2)
			},
			[]byte{
				0x2a,
				0x00,
				0x00, 0x42,
				0x00, 0x00, 0x00, 0x2a,
				0xff, 0xfe,
			},
		},

		{
			"no implicit padding",
			func(e *fragments.Encoder) {
				e.Uint8(1)
				e.Uint32(2)
			},
			[]byte{
				0x01,
				0x00, 0x00, 0x00, 0x02,
			},
		},

		{
			"explicit padding",
			func(e *fragments.Encoder) {
				e.Uint8(1)
				e.Pad(4)
				e.Uint16(2)
				e.Pad(4)
				e.Pad(4)
			},
			[]byte{
				0x01, 0x00, 0x00, 0x00,
				0x00, 0x02, 0x00, 0x00,
			},
		},

		{
			"counted string",
			func(e *fragments.Encoder) {
				e.CountedString("foo")
				e.CountedString("")
				e.CountedString("ab")
			},
			[]byte{
				0x00, 0x03, 'f', 'o', 'o', 0x00, 0x00, 0x00,
				0x00, 0x00, 0x00, 0x00,
				0x00, 0x02, 'a', 'b',
			},
		},

		{
			"short string",
			func(e *fragments.Encoder) {
				e.ShortString("us")
			},
			[]byte{0x02, 'u', 's'},
		},

		{
			"back patching",
			func(e *fragments.Encoder) {
				e.Uint16(0)
				e.Uint32(0)
				e.PutUint16(0, 0x1234)
				e.PutUint32(2, 0xdeadbeef)
			},
			[]byte{0x12, 0x34, 0xde, 0xad, 0xbe, 0xef},
		},

		{
			"byte order flag",
			func(e *fragments.Encoder) {
				e.Order = fragments.BigEndian
				e.ByteOrderFlag()
				e.Order = fragments.LittleEndian
				e.ByteOrderFlag()
			},
			[]byte{'B', 'l'},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			e := fragments.Encoder{
				Order: fragments.BigEndian,
			}
			tc.in(&e)
			if got := e.Out; !bytes.Equal(got, tc.want) {
				t.Errorf("incorrect encode:\n  got: % x\n want: % x", got, tc.want)
			} else if testing.Verbose() {
				t.Logf("encoder got: % x", got)
			}
		})
	}
}

func TestEncoderLittleEndian(t *testing.T) {
	e := fragments.Encoder{Order: fragments.LittleEndian}
	e.Uint16(0x1234)
	e.Uint32(0x01020304)
	e.CountedString("x")
	want := []byte{
		0x34, 0x12,
		0x04, 0x03, 0x02, 0x01,
		0x01, 0x00, 'x', 0x00,
	}
	if !bytes.Equal(e.Out, want) {
		t.Errorf("incorrect encode:\n  got: % x\n want: % x", e.Out, want)
	}
}

func TestCountedStringSize(t *testing.T) {
	tests := map[string]int{
		"":        4,
		"a":       4,
		"ab":      4,
		"abc":     8,
		"abcde":   8,
		"abcdef":  8,
		"abcdefg": 12,
	}
	for s, want := range tests {
		if got := fragments.CountedStringSize(s); got != want {
			t.Errorf("CountedStringSize(%q) = %d, want %d", s, got, want)
		}
	}
}
