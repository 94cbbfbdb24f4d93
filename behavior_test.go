package xkb

import "testing"

func TestBehaviorWire(t *testing.T) {
	tests := []struct {
		name     string
		typ      uint8
		data     uint8
		want     Behavior
		wantPerm bool
	}{
		{"default", KBDefault, 0, nil, false},
		{"lock", KBLock, 0, LockBehavior{}, false},
		{"radio group", KBRadioGroup, 3, RadioGroupBehavior{Group: 3}, false},
		{"radio group allow none", KBRadioGroup, 3 | KBRGAllowNone, RadioGroupBehavior{Group: 3, AllowNone: true}, false},
		{"overlay1", KBOverlay1, 42, OverlayBehavior{Overlay: 1, Key: 42}, false},
		{"overlay2", KBOverlay2, 43, OverlayBehavior{Overlay: 2, Key: 43}, false},
		{"unknown", 0x12, 7, UnknownBehavior{Type: 0x12, Data: 7}, false},
		{"permanent lock", KBLock | KBPermanent, 0, PermanentBehavior{LockBehavior{}}, true},
		{"permanent default", KBPermanent, 0, PermanentBehavior{nil}, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := decodeBehavior(tc.typ, tc.data)
			if got != tc.want {
				t.Fatalf("decodeBehavior(%#x, %#x) = %#v, want %#v", tc.typ, tc.data, got, tc.want)
			}
			if isPermanent(got) != tc.wantPerm {
				t.Errorf("isPermanent(%#v) = %v, want %v", got, !tc.wantPerm, tc.wantPerm)
			}
			typ, data := behaviorWire(got)
			if typ != tc.typ || data != tc.data {
				t.Errorf("behaviorWire(%#v) = (%#x, %#x), want (%#x, %#x)", got, typ, data, tc.typ, tc.data)
			}
		})
	}
}
