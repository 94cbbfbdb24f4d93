package xkb

import (
	"errors"
	"io"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/google/go-cmp/cmp"
)

func TestCommitPlan(t *testing.T) {
	devs := []*Device{{ID: 2, Name: "core"}, {ID: 4, Name: "a"}, {ID: 5, Name: "b"}}
	errFail := errors.New("fail")

	tests := []struct {
		name    string
		pol     Policy
		fail    uint8
		wantErr bool
		wantRan []uint8
	}{
		{"all-or-nothing ok", AllOrNothing, 0, false, []uint8{2, 4, 5}},
		{"all-or-nothing primary fails", AllOrNothing, 2, true, []uint8{2}},
		{"all-or-nothing other fails", AllOrNothing, 4, true, []uint8{2, 4}},
		{"best-effort ok", BestEffort, 0, false, []uint8{2, 4, 5}},
		{"best-effort primary fails", BestEffort, 2, true, []uint8{2}},
		{"best-effort other fails", BestEffort, 4, false, []uint8{2, 4, 5}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p := &CommitPlan{Primary: devs[0], Others: devs[1:], log: log.New(io.Discard)}
			var ran []uint8
			err := p.Run(tc.pol, func(d *Device) error {
				ran = append(ran, d.ID)
				if d.ID == tc.fail {
					return errFail
				}
				return nil
			})
			if gotErr := err != nil; gotErr != tc.wantErr {
				t.Errorf("Run(%v) error = %v, want error %v", tc.pol, err, tc.wantErr)
			}
			if err != nil && !errors.Is(err, errFail) {
				t.Errorf("Run(%v) returned %v, want %v", tc.pol, err, errFail)
			}
			if diff := cmp.Diff(ran, tc.wantRan); diff != "" {
				t.Errorf("devices visited (-got+want):\n%s", diff)
			}
		})
	}
}

func TestPlanTargets(t *testing.T) {
	s := NewServer(Options{Logger: log.New(io.Discard)})
	core := &Device{ID: 2, Name: "core", Kind: MasterKeyboard, Keyboard: &Keyboard{Desc: mustDesc(t)}}
	ptr := &Device{ID: 3, Name: "pointer", Kind: MasterPointer}
	kbd := &Device{ID: 4, Name: "kbd", Kind: SlaveKeyboard, Master: core, Keyboard: &Keyboard{Desc: mustDesc(t)}}
	mouse := &Device{ID: 6, Name: "mouse", Kind: SlavePointer, Master: ptr}
	for _, d := range []*Device{core, ptr, kbd, mouse} {
		if err := s.AddDevice(d); err != nil {
			t.Fatalf("AddDevice(%s): %v", d, err)
		}
	}

	ids := func(p *CommitPlan) []uint8 {
		var ret []uint8
		for _, d := range p.Targets() {
			ret = append(ret, d.ID)
		}
		return ret
	}
	tests := []struct {
		name string
		spec uint16
		dev  *Device
		want []uint8
	}{
		{"core keyboard", UseCoreKbd, core, []uint8{2, 4}},
		{"core pointer", UseCorePtr, ptr, []uint8{3, 6}},
		{"explicit master", 2, core, []uint8{2}},
		{"slave", 4, kbd, []uint8{4}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := ids(s.plan(tc.spec, tc.dev, 0))
			if diff := cmp.Diff(got, tc.want); diff != "" {
				t.Errorf("plan targets (-got+want):\n%s", diff)
			}
		})
	}
}

func mustDesc(t *testing.T) *Desc {
	t.Helper()
	d, err := NewDesc(8, 255)
	if err != nil {
		t.Fatal(err)
	}
	return d
}
