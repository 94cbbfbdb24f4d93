package xkb

import (
	"cmp"
	"maps"
	"slices"

	"github.com/danderson/xkb/fragments"
)

// eventType is an XKB event subtype, the xkbType byte of an XKB
// event.
type eventType uint8

const (
	newKeyboardNotify eventType = iota
	mapNotify
	stateNotify
	controlsNotify
	indicatorStateNotify
	indicatorMapNotify
	namesNotify
	compatMapNotify
	bellNotify
	actionMessage
	accessXNotify
	extensionDeviceNotify

	numEventTypes = 12
)

// eventDetailSize is the wire size of the affect/details fields of
// each event type in a SelectEvents request.
var eventDetailSize = [numEventTypes]int{
	newKeyboardNotify:     2,
	mapNotify:             2,
	stateNotify:           2,
	controlsNotify:        4,
	indicatorStateNotify:  4,
	indicatorMapNotify:    4,
	namesNotify:           2,
	compatMapNotify:       1,
	bellNotify:            1,
	actionMessage:         1,
	accessXNotify:         2,
	extensionDeviceNotify: 2,
}

// An event is an XKB notification.
type event interface {
	eventType() eventType
	// detail is matched against the client's selected details for
	// the event type. Zero always matches.
	detail() uint32
	// encode writes the event's fields after the deviceID byte. The
	// caller pads the event to 32 bytes.
	encode(e *fragments.Encoder)
}

type newKeyboardNotifyEvent struct {
	oldDeviceID   uint8
	minKeyCode    uint8
	maxKeyCode    uint8
	oldMinKeyCode uint8
	oldMaxKeyCode uint8
	requestMinor  Opcode
	changed       uint16
}

func (*newKeyboardNotifyEvent) eventType() eventType { return newKeyboardNotify }
func (n *newKeyboardNotifyEvent) detail() uint32     { return uint32(n.changed) }
func (n *newKeyboardNotifyEvent) encode(e *fragments.Encoder) {
	e.Uint8(n.oldDeviceID)
	e.Uint8(n.minKeyCode)
	e.Uint8(n.maxKeyCode)
	e.Uint8(n.oldMinKeyCode)
	e.Uint8(n.oldMaxKeyCode)
	e.Uint8(MajorOpcode)
	e.Uint8(uint8(n.requestMinor))
	e.Uint16(n.changed)
}

// mapChanges describes which parts of a keyboard map changed. It is
// the payload of MapNotify.
type mapChanges struct {
	changed          uint16
	minKeyCode       uint8
	maxKeyCode       uint8
	firstType        uint8
	nTypes           uint8
	firstKeySym      uint8
	nKeySyms         uint8
	firstKeyAct      uint8
	nKeyActs         uint8
	firstKeyBehavior uint8
	nKeyBehaviors    uint8
	firstKeyExplicit uint8
	nKeyExplicit     uint8
	firstModMapKey   uint8
	nModMapKeys      uint8
	firstVModMapKey  uint8
	nVModMapKeys     uint8
	virtualMods      uint16
}

func (*mapChanges) eventType() eventType { return mapNotify }
func (m *mapChanges) detail() uint32     { return uint32(m.changed) }
func (m *mapChanges) encode(e *fragments.Encoder) {
	e.Uint8(0) // ptrBtnActions
	e.Uint16(m.changed)
	e.Uint8(m.minKeyCode)
	e.Uint8(m.maxKeyCode)
	e.Uint8(m.firstType)
	e.Uint8(m.nTypes)
	e.Uint8(m.firstKeySym)
	e.Uint8(m.nKeySyms)
	e.Uint8(m.firstKeyAct)
	e.Uint8(m.nKeyActs)
	e.Uint8(m.firstKeyBehavior)
	e.Uint8(m.nKeyBehaviors)
	e.Uint8(m.firstKeyExplicit)
	e.Uint8(m.nKeyExplicit)
	e.Uint8(m.firstModMapKey)
	e.Uint8(m.nModMapKeys)
	e.Uint8(m.firstVModMapKey)
	e.Uint8(m.nVModMapKeys)
	e.Uint16(m.virtualMods)
}

type namesChanges struct {
	changed           uint16
	firstType         uint8
	nTypes            uint8
	firstLevelName    uint8
	nLevelNames       uint8
	nRadioGroups      uint8
	nAliases          uint8
	changedGroupNames uint8
	changedVMods      uint16
	firstKey          uint8
	nKeys             uint8
	changedIndicators uint32
}

func (*namesChanges) eventType() eventType { return namesNotify }
func (n *namesChanges) detail() uint32     { return uint32(n.changed) }
func (n *namesChanges) encode(e *fragments.Encoder) {
	e.Zero(1)
	e.Uint16(n.changed)
	e.Uint8(n.firstType)
	e.Uint8(n.nTypes)
	e.Uint8(n.firstLevelName)
	e.Uint8(n.nLevelNames)
	e.Zero(1)
	e.Uint8(n.nRadioGroups)
	e.Uint8(n.nAliases)
	e.Uint8(n.changedGroupNames)
	e.Uint16(n.changedVMods)
	e.Uint8(n.firstKey)
	e.Uint8(n.nKeys)
	e.Uint32(n.changedIndicators)
}

// indicatorEvent is IndicatorStateNotify or IndicatorMapNotify.
type indicatorEvent struct {
	mapChanged bool
	state      uint32
	changed    uint32
}

func (i *indicatorEvent) eventType() eventType {
	if i.mapChanged {
		return indicatorMapNotify
	}
	return indicatorStateNotify
}

func (i *indicatorEvent) detail() uint32 { return i.changed }

func (i *indicatorEvent) encode(e *fragments.Encoder) {
	e.Zero(3)
	e.Uint32(i.state)
	e.Uint32(i.changed)
}

type controlsChanges struct {
	numGroups          uint8
	changedControls    uint32
	enabledControls    uint32
	enabledCtrlChanges uint32
	requestMinor       Opcode
}

func (*controlsChanges) eventType() eventType { return controlsNotify }
func (c *controlsChanges) detail() uint32     { return c.changedControls }
func (c *controlsChanges) encode(e *fragments.Encoder) {
	e.Uint8(c.numGroups)
	e.Zero(2)
	e.Uint32(c.changedControls)
	e.Uint32(c.enabledControls)
	e.Uint32(c.enabledCtrlChanges)
	e.Uint8(0) // keycode
	e.Uint8(0) // eventType
	e.Uint8(MajorOpcode)
	e.Uint8(uint8(c.requestMinor))
}

// Compat map notify details.
const (
	compatGroupsDetail uint32 = 1 << 0
	compatSymDetail    uint32 = 1 << 1
)

type compatChanges struct {
	changedGroups uint8
	firstSI       uint16
	nSI           uint16
	nTotalSI      uint16
}

func (*compatChanges) eventType() eventType { return compatMapNotify }

func (c *compatChanges) detail() uint32 {
	var ret uint32
	if c.changedGroups != 0 {
		ret |= compatGroupsDetail
	}
	if c.nSI != 0 {
		ret |= compatSymDetail
	}
	return ret
}

func (c *compatChanges) encode(e *fragments.Encoder) {
	e.Uint8(c.changedGroups)
	e.Uint16(c.firstSI)
	e.Uint16(c.nSI)
	e.Uint16(c.nTotalSI)
}

// notify delivers ev about dev to every client that selected it.
func (s *Server) notify(dev *Device, ev event) {
	clients := slices.SortedFunc(maps.Keys(s.clients), func(a, b *Client) int {
		return cmp.Compare(a.ID, b.ID)
	})
	for _, c := range clients {
		if !c.selection(dev.ID).wants(ev.eventType(), ev.detail()) {
			continue
		}
		e := c.encoder()
		e.Uint8(EventBase)
		e.Uint8(uint8(ev.eventType()))
		e.Uint16(c.sequence)
		e.Uint32(s.now())
		e.Uint8(dev.ID)
		ev.encode(e)
		if e.Len() > eventLen {
			s.log.Error("event too long", "type", ev.eventType(), "len", e.Len())
			continue
		}
		e.Zero(eventLen - e.Len())
		c.enqueue(e.Out)
	}
}
