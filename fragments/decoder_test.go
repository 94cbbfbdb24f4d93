package fragments_test

import (
	"bytes"
	"errors"
	"testing"

	"github.com/danderson/xkb/fragments"
)

type mustDecoder struct {
	t *testing.T
	*fragments.Decoder
}

func (d *mustDecoder) MustRead(n int, want []byte) {
	got, err := d.Read(n)
	if err != nil {
		d.t.Fatalf("Read(%d) got err: %v", n, err)
	}
	if !bytes.Equal(got, want) {
		d.t.Fatalf("Read(%d) wrong output:\n  got: % x\n want: % x", n, got, want)
	}
	if testing.Verbose() {
		d.t.Logf("Read(%d) = % x", n, got)
	}
}

func (d *mustDecoder) MustCountedString(want string) {
	got, err := d.CountedString()
	if err != nil {
		d.t.Fatalf("CountedString() got err: %v", err)
	}
	if got != want {
		d.t.Fatalf("CountedString() got %q, want %q", got, want)
	}
	if testing.Verbose() {
		d.t.Logf("CountedString() = %q", got)
	}
}

func (d *mustDecoder) MustShortString(want string) {
	got, err := d.ShortString()
	if err != nil {
		d.t.Fatalf("ShortString() got err: %v", err)
	}
	if got != want {
		d.t.Fatalf("ShortString() got %q, want %q", got, want)
	}
}

func (d *mustDecoder) MustUint8(want uint8) {
	got, err := d.Uint8()
	if err != nil {
		d.t.Fatalf("Uint8() got err: %v", err)
	}
	if got != want {
		d.t.Fatalf("Uint8() got %d, want %d", got, want)
	}
	if testing.Verbose() {
		d.t.Logf("Uint8() = %d", got)
	}
}

func (d *mustDecoder) MustUint16(want uint16) {
	got, err := d.Uint16()
	if err != nil {
		d.t.Fatalf("Uint16() got err: %v", err)
	}
	if got != want {
		d.t.Fatalf("Uint16() got %d, want %d", got, want)
	}
	if testing.Verbose() {
		d.t.Logf("Uint16() = %d", got)
	}
}

func (d *mustDecoder) MustInt16(want int16) {
	got, err := d.Int16()
	if err != nil {
		d.t.Fatalf("Int16() got err: %v", err)
	}
	if got != want {
		d.t.Fatalf("Int16() got %d, want %d", got, want)
	}
}

func (d *mustDecoder) MustUint32(want uint32) {
	got, err := d.Uint32()
	if err != nil {
		d.t.Fatalf("Uint32() got err: %v", err)
	}
	if got != want {
		d.t.Fatalf("Uint32() got %d, want %d", got, want)
	}
	if testing.Verbose() {
		d.t.Logf("Uint32() = %d", got)
	}
}

func (d *mustDecoder) MustPad(align int) {
	if err := d.Pad(align); err != nil {
		d.t.Fatalf("Pad(%d) got err: %v", align, err)
	}
}

func (d *mustDecoder) MustByteOrderFlag(want fragments.ByteOrder) {
	if err := d.ByteOrderFlag(); err != nil {
		d.t.Fatalf("ByteOrderFlag() got err: %v", err)
	}
	if got := d.Order; got != want {
		d.t.Fatalf("ByteOrderFlag() set byte order %s, want %s", got, want)
	}
}

func TestDecoder(t *testing.T) {
	tests := []struct {
		name   string
		in     []byte
		decode func(d *mustDecoder)
	}{
		{
			"raw bytes",
			[]byte{0x01, 0x02, 0x03},
			func(d *mustDecoder) {
				d.MustRead(3, []byte{1, 2, 3})
			},
		},

		{
			"uints",
			[]byte{
				0x2a,
				0x00,
				0x00, 0x42,
				0x00, 0x00, 0x00, 0x2a,
				0xff, 0xfe,
			},
			func(d *mustDecoder) {
				d.MustUint8(42)
				d.MustUint8(0)
				d.MustUint16(66)
				d.MustUint32(42)
				d.MustInt16(-2)
			},
		},

		{
			"padding",
			[]byte{
				0x01, 0x00, 0x00, 0x00,
				0x00, 0x02, 0x00, 0x00,
			},
			func(d *mustDecoder) {
				d.MustUint8(1)
				d.MustPad(4)
				d.MustUint16(2)
				d.MustPad(4)
				d.MustPad(4)
			},
		},

		{
			"counted strings",
			[]byte{
				0x00, 0x03, 'f', 'o', 'o', 0x00, 0x00, 0x00,
				0x00, 0x00, 0x00, 0x00,
				0x00, 0x02, 'a', 'b',
			},
			func(d *mustDecoder) {
				d.MustCountedString("foo")
				d.MustCountedString("")
				d.MustCountedString("ab")
			},
		},

		{
			"short string",
			[]byte{0x02, 'u', 's', 0x00},
			func(d *mustDecoder) {
				d.MustShortString("us")
				d.MustUint8(0)
			},
		},

		{
			"byte order flag",
			[]byte{'B', 'l', '?'},
			func(d *mustDecoder) {
				d.MustByteOrderFlag(fragments.BigEndian)
				d.MustByteOrderFlag(fragments.LittleEndian)
				if err := d.ByteOrderFlag(); err == nil {
					d.t.Fatalf("ByteOrderFlag did not error on invalid byte order")
				}
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			d := mustDecoder{
				t: t,
				Decoder: &fragments.Decoder{
					Order: fragments.BigEndian,
					In:    tc.in,
				},
			}
			tc.decode(&d)
			if remain := d.Remaining(); remain > 0 {
				t.Fatalf("decoder failed to consume %d trailing bytes", remain)
			}
		})
	}
}

func TestDecoderBounds(t *testing.T) {
	tests := []struct {
		name string
		in   []byte
		read func(*fragments.Decoder) error
	}{
		{"uint8", nil, func(d *fragments.Decoder) error { _, err := d.Uint8(); return err }},
		{"uint16", []byte{1}, func(d *fragments.Decoder) error { _, err := d.Uint16(); return err }},
		{"uint32", []byte{1, 2, 3}, func(d *fragments.Decoder) error { _, err := d.Uint32(); return err }},
		{"read", []byte{1, 2}, func(d *fragments.Decoder) error { _, err := d.Read(3); return err }},
		{"negative read", []byte{1, 2}, func(d *fragments.Decoder) error { _, err := d.Read(-1); return err }},
		{"counted string body", []byte{0, 5, 'a', 'b'}, func(d *fragments.Decoder) error { _, err := d.CountedString(); return err }},
		{"counted string pad", []byte{0, 3, 'a', 'b', 'c'}, func(d *fragments.Decoder) error { _, err := d.CountedString(); return err }},
		{"short string", []byte{4, 'a'}, func(d *fragments.Decoder) error { _, err := d.ShortString(); return err }},
		{"pad", []byte{1, 0}, func(d *fragments.Decoder) error {
			d.Uint8()
			return d.Pad(4)
		}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			d := &fragments.Decoder{Order: fragments.BigEndian, In: tc.in}
			before := d.Offset()
			err := tc.read(d)
			var lerr fragments.LengthError
			if !errors.As(err, &lerr) {
				t.Fatalf("got err %v, want LengthError", err)
			}
			if tc.name != "pad" && d.Offset() != before {
				t.Errorf("failed read advanced cursor from %d to %d", before, d.Offset())
			}
		})
	}
}
