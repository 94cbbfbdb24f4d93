package xkb

// A Behavior is the server-side behavior of a key. A nil Behavior is
// the default behavior. Otherwise it is one of [LockBehavior],
// [RadioGroupBehavior], [OverlayBehavior] or [UnknownBehavior],
// possibly wrapped in a [PermanentBehavior].
type Behavior interface {
	// wire returns the behavior's wire type and data bytes.
	wire() (typ, data uint8)
}

// LockBehavior makes a key lock: the first press locks it down, the
// second releases it.
type LockBehavior struct{}

func (LockBehavior) wire() (uint8, uint8) { return KBLock, 0 }

// RadioGroupBehavior makes a key a member of a radio group. At most
// one key of a radio group is down at any time.
type RadioGroupBehavior struct {
	// Group is the radio group index, less than MaxRadioGroups.
	Group uint8
	// AllowNone allows all keys of the group to be released.
	AllowNone bool
}

func (b RadioGroupBehavior) wire() (uint8, uint8) {
	data := b.Group
	if b.AllowNone {
		data |= KBRGAllowNone
	}
	return KBRadioGroup, data
}

// OverlayBehavior makes a key generate Key when overlay Overlay (1 or
// 2) is enabled.
type OverlayBehavior struct {
	Overlay uint8
	Key     uint8
}

func (b OverlayBehavior) wire() (uint8, uint8) {
	if b.Overlay == 2 {
		return KBOverlay2, b.Key
	}
	return KBOverlay1, b.Key
}

// UnknownBehavior is a behavior type the server does not interpret.
// It is stored and reported verbatim.
type UnknownBehavior struct {
	Type uint8
	Data uint8
}

func (b UnknownBehavior) wire() (uint8, uint8) { return b.Type, b.Data }

// PermanentBehavior is a behavior that is a property of the hardware,
// and cannot be changed by clients.
type PermanentBehavior struct {
	Behavior
}

func (b PermanentBehavior) wire() (uint8, uint8) {
	typ, data := behaviorWire(b.Behavior)
	return typ | KBPermanent, data
}

// behaviorWire returns the wire type and data of b, handling the nil
// default behavior.
func behaviorWire(b Behavior) (typ, data uint8) {
	if b == nil {
		return KBDefault, 0
	}
	return b.wire()
}

// isPermanent reports whether b is a permanent behavior.
func isPermanent(b Behavior) bool {
	_, ok := b.(PermanentBehavior)
	return ok
}

// decodeBehavior returns the Behavior for the given wire type and
// data.
func decodeBehavior(typ, data uint8) Behavior {
	var ret Behavior
	switch typ & KBOpMask {
	case KBDefault:
		ret = nil
	case KBLock:
		ret = LockBehavior{}
	case KBRadioGroup:
		ret = RadioGroupBehavior{
			Group:     data &^ KBRGAllowNone,
			AllowNone: data&KBRGAllowNone != 0,
		}
	case KBOverlay1:
		ret = OverlayBehavior{Overlay: 1, Key: data}
	case KBOverlay2:
		ret = OverlayBehavior{Overlay: 2, Key: data}
	default:
		ret = UnknownBehavior{Type: typ & KBOpMask, Data: data}
	}
	if typ&KBPermanent != 0 {
		return PermanentBehavior{ret}
	}
	return ret
}
