package xkb

import (
	"fmt"
)

// DeviceKind is the role of an input device in the master/slave
// device hierarchy.
type DeviceKind uint8

const (
	MasterKeyboard DeviceKind = iota
	MasterPointer
	SlaveKeyboard
	SlavePointer
)

func (k DeviceKind) String() string {
	switch k {
	case MasterKeyboard:
		return "master-keyboard"
	case MasterPointer:
		return "master-pointer"
	case SlaveKeyboard:
		return "slave-keyboard"
	case SlavePointer:
		return "slave-pointer"
	}
	return fmt.Sprintf("DeviceKind(%d)", uint8(k))
}

// ParseDeviceKind parses the String form of a DeviceKind.
func ParseDeviceKind(s string) (DeviceKind, error) {
	for k := MasterKeyboard; k <= SlavePointer; k++ {
		if k.String() == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown device kind %q", s)
}

// IsMaster reports whether k is a master device kind.
func (k DeviceKind) IsMaster() bool {
	return k == MasterKeyboard || k == MasterPointer
}

// Device is an input device.
type Device struct {
	ID   uint8
	Name string
	Kind DeviceKind

	// Master is the master device a slave is attached to. It is nil
	// for master devices and floating slaves.
	Master *Device
	// LastSlave is the slave that most recently sent events through
	// a master device.
	LastSlave *Device

	// Keyboard is the device's keyboard state, nil if the device
	// has no keys.
	Keyboard *Keyboard
	// LEDs is the device's indicator feedback, nil if the device
	// has no indicators.
	LEDs *LEDFeedback
}

func (d *Device) String() string {
	return fmt.Sprintf("%s (%d, %s)", d.Name, d.ID, d.Kind)
}

// Keyboard is the keyboard class of a device: its keyboard
// description, which it owns exclusively, and its current state.
type Keyboard struct {
	Desc  *Desc
	State KeyboardState
}

// KeyboardState is the live modifier and group state of a keyboard.
type KeyboardState struct {
	BaseMods    uint8
	LatchedMods uint8
	LockedMods  uint8
	Group       uint8
}

// Mods returns the effective modifiers.
func (s KeyboardState) Mods() uint8 {
	return s.BaseMods | s.LatchedMods | s.LockedMods
}

// modsFor returns the modifier components selected by an indicator
// map's whichMods.
func (s KeyboardState) modsFor(which uint8) uint8 {
	var ret uint8
	if which&IMUseBase != 0 {
		ret |= s.BaseMods
	}
	if which&IMUseLatched != 0 {
		ret |= s.LatchedMods
	}
	if which&IMUseLocked != 0 {
		ret |= s.LockedMods
	}
	if which&(IMUseEffective|IMUseCompat) != 0 {
		ret |= s.Mods()
	}
	return ret
}

// LEDFeedback is the indicator feedback of a device. The indicator
// maps that drive it live in the device's keyboard description, its
// live state lives here.
type LEDFeedback struct {
	Class uint16
	ID    uint16
	// Explicit is the set of indicators lit explicitly by clients.
	Explicit uint32
	// Effective is the set of indicators currently lit.
	Effective uint32
}

// Recompute recomputes the effective indicator state from the
// indicator maps and controls of desc, the keyboard state st and the
// explicit state. It returns the indicators whose state changed.
func (l *LEDFeedback) Recompute(desc *Desc, st KeyboardState) (changed uint32) {
	var lit uint32
	for i := range NumIndicators {
		bit := uint32(1) << i
		m := &desc.Indicators[i]
		on := false
		if m.Flags&IMNoAutomatic == 0 {
			if m.WhichMods != 0 && m.Mods.Mask != 0 && st.modsFor(m.WhichMods)&m.Mods.Mask != 0 {
				on = true
			}
			if m.WhichGroups != 0 && m.Groups&(1<<st.Group) != 0 {
				on = true
			}
			if m.Ctrls&desc.Ctrls.EnabledCtrls != 0 {
				on = true
			}
		}
		if m.Flags&IMNoExplicit == 0 && l.Explicit&bit != 0 {
			on = true
		}
		if on {
			lit |= bit
		}
	}
	changed = lit ^ l.Effective
	l.Effective = lit
	return changed
}

// matchesLED reports whether the LED class and ID in a request select
// this feedback.
func (l *LEDFeedback) matchesLED(class, id uint16) bool {
	classOK := class == DfltXIClass || class == l.Class || (class == KbdFeedbackClass && l.Class == KbdFeedbackClass)
	idOK := id == DfltXIID || id == l.ID
	return classOK && idOK
}
