package xkb

// Protocol version implemented by this server.
const (
	MajorVersion = 1
	MinorVersion = 0
)

// Opcode is an XKB minor request opcode.
type Opcode uint8

const (
	OpUseExtension      Opcode = 0
	OpSelectEvents      Opcode = 1
	OpGetState          Opcode = 4
	OpGetControls       Opcode = 6
	OpSetControls       Opcode = 7
	OpGetMap            Opcode = 8
	OpSetMap            Opcode = 9
	OpGetCompatMap      Opcode = 10
	OpSetCompatMap      Opcode = 11
	OpGetIndicatorState Opcode = 12
	OpGetIndicatorMap   Opcode = 13
	OpSetIndicatorMap   Opcode = 14
	OpGetNamedIndicator Opcode = 15
	OpSetNamedIndicator Opcode = 16
	OpGetNames          Opcode = 17
	OpSetNames          Opcode = 18
	OpGetGeometry       Opcode = 19
	OpSetGeometry       Opcode = 20
	OpGetKbdByName      Opcode = 23
)

var opcodeNames = map[Opcode]string{
	OpUseExtension:      "UseExtension",
	OpSelectEvents:      "SelectEvents",
	OpGetState:          "GetState",
	OpGetControls:       "GetControls",
	OpSetControls:       "SetControls",
	OpGetMap:            "GetMap",
	OpSetMap:            "SetMap",
	OpGetCompatMap:      "GetCompatMap",
	OpSetCompatMap:      "SetCompatMap",
	OpGetIndicatorState: "GetIndicatorState",
	OpGetIndicatorMap:   "GetIndicatorMap",
	OpSetIndicatorMap:   "SetIndicatorMap",
	OpGetNamedIndicator: "GetNamedIndicator",
	OpSetNamedIndicator: "SetNamedIndicator",
	OpGetNames:          "GetNames",
	OpSetNames:          "SetNames",
	OpGetGeometry:       "GetGeometry",
	OpSetGeometry:       "SetGeometry",
	OpGetKbdByName:      "GetKbdByName",
}

func (o Opcode) String() string {
	if n, ok := opcodeNames[o]; ok {
		return n
	}
	return "Unknown"
}

// Device specifiers that name the core devices rather than a device
// ID.
const (
	UseCoreKbd uint16 = 0x100
	UseCorePtr uint16 = 0x200
)

// LED class and ID specifiers.
const (
	KbdFeedbackClass uint16 = 0
	LedFeedbackClass uint16 = 4
	DfltXIClass      uint16 = 0x300
	DfltXIID         uint16 = 0x400
)

// Fixed protocol limits.
const (
	MinLegalKeyCode   = 8
	MaxLegalKeyCode   = 255
	NumRequiredTypes  = 4
	MaxKeyTypes       = 255
	NumKbdGroups      = 4
	MaxShiftLevel     = 63
	NumVirtualMods    = 16
	NumModifiers      = 8
	NumIndicators     = 32
	MaxRadioGroups    = 32
	KeyNameLength     = 4
	NoShape           = 0xff
	MaxMouseKeysBtn   = 5
	MinMouseKeysCurve = -1000
)

// Indices of the required key types.
const (
	OneLevelIndex   = 0
	TwoLevelIndex   = 1
	AlphabeticIndex = 2
	KeypadIndex     = 3
)

// Map component masks, used by GetMap/SetMap and MapNotify.
const (
	KeyTypesMask           uint16 = 1 << 0
	KeySymsMask            uint16 = 1 << 1
	ModifierMapMask        uint16 = 1 << 2
	ExplicitComponentsMask uint16 = 1 << 3
	KeyActionsMask         uint16 = 1 << 4
	KeyBehaviorsMask       uint16 = 1 << 5
	VirtualModsMask        uint16 = 1 << 6
	VirtualModMapMask      uint16 = 1 << 7

	AllClientInfoMask = KeyTypesMask | KeySymsMask | ModifierMapMask
	AllServerInfoMask = ExplicitComponentsMask | KeyActionsMask | KeyBehaviorsMask | VirtualModsMask | VirtualModMapMask
	AllMapComponents  = AllClientInfoMask | AllServerInfoMask
)

// SetMap flags.
const (
	SetMapResizeTypes      uint16 = 1 << 0
	SetMapRecomputeActions uint16 = 1 << 1
)

// Names component masks, used by GetNames/SetNames and NamesNotify.
const (
	KeycodesNameMask    uint32 = 1 << 0
	GeometryNameMask    uint32 = 1 << 1
	SymbolsNameMask     uint32 = 1 << 2
	PhysSymbolsNameMask uint32 = 1 << 3
	TypesNameMask       uint32 = 1 << 4
	CompatNameMask      uint32 = 1 << 5
	KeyTypeNamesMask    uint32 = 1 << 6
	KTLevelNamesMask    uint32 = 1 << 7
	IndicatorNamesMask  uint32 = 1 << 8
	KeyNamesMask        uint32 = 1 << 9
	KeyAliasesMask      uint32 = 1 << 10
	VirtualModNamesMask uint32 = 1 << 11
	GroupNamesMask      uint32 = 1 << 12
	RGNamesMask         uint32 = 1 << 13

	ComponentNamesMask = KeycodesNameMask | GeometryNameMask | SymbolsNameMask | PhysSymbolsNameMask | TypesNameMask | CompatNameMask
	AllNamesMask       uint32 = 0x3fff
)

// Behavior types.
const (
	KBDefault    uint8 = 0
	KBLock       uint8 = 1
	KBRadioGroup uint8 = 2
	KBOverlay1   uint8 = 3
	KBOverlay2   uint8 = 4
	KBPermanent  uint8 = 0x80
	KBOpMask     uint8 = 0x7f

	KBRGAllowNone uint8 = 0x80
)

// Explicit component flags.
const (
	ExplicitKeyType1   uint8 = 1 << 0
	ExplicitKeyType2   uint8 = 1 << 1
	ExplicitKeyType3   uint8 = 1 << 2
	ExplicitKeyType4   uint8 = 1 << 3
	ExplicitInterpret  uint8 = 1 << 4
	ExplicitAutoRepeat uint8 = 1 << 5
	ExplicitBehavior   uint8 = 1 << 6
	ExplicitVModMap    uint8 = 1 << 7
)

// Indicator map flags and component selectors.
const (
	IMNoExplicit  uint8 = 1 << 7
	IMNoAutomatic uint8 = 1 << 6
	IMLEDDrivesKB uint8 = 1 << 5

	IMUseBase      uint8 = 1 << 0
	IMUseLatched   uint8 = 1 << 1
	IMUseLocked    uint8 = 1 << 2
	IMUseEffective uint8 = 1 << 3
	IMUseCompat    uint8 = 1 << 4
)

// Boolean controls, as used in enabledCtrls and changeCtrls.
const (
	RepeatKeysMask      uint32 = 1 << 0
	SlowKeysMask        uint32 = 1 << 1
	BounceKeysMask      uint32 = 1 << 2
	StickyKeysMask      uint32 = 1 << 3
	MouseKeysMask       uint32 = 1 << 4
	MouseKeysAccelMask  uint32 = 1 << 5
	AccessXKeysMask     uint32 = 1 << 6
	AccessXTimeoutMask  uint32 = 1 << 7
	AccessXFeedbackMask uint32 = 1 << 8
	AudibleBellMask     uint32 = 1 << 9
	Overlay1Mask        uint32 = 1 << 10
	Overlay2Mask        uint32 = 1 << 11
	IgnoreGroupLockMask uint32 = 1 << 12
	GroupsWrapMask      uint32 = 1 << 27
	InternalModsMask    uint32 = 1 << 28
	IgnoreLockModsMask  uint32 = 1 << 29
	PerKeyRepeatMask    uint32 = 1 << 30
	ControlsEnabledMask uint32 = 1 << 31

	AllBooleanCtrlsMask uint32 = 0x00001fff
	AllControlsMask     uint32 = 0xf8001fff
)

// Sym interpretation match operations.
const (
	SINoneOf       uint8 = 0
	SIAnyOfOrNone  uint8 = 1
	SIAnyOf        uint8 = 2
	SIAllOf        uint8 = 3
	SIExactly      uint8 = 4
	SIOpMask       uint8 = 0x7f
	SILevelOneOnly uint8 = 0x80

	SIAutoRepeat uint8 = 1 << 0
	SILockingKey uint8 = 1 << 1

	NoSymbol uint32 = 0
)

// GetKbdByName component masks.
const (
	GBNTypesMask         uint16 = 1 << 0
	GBNCompatMapMask     uint16 = 1 << 1
	GBNClientSymbolsMask uint16 = 1 << 2
	GBNServerSymbolsMask uint16 = 1 << 3
	GBNIndicatorMapMask  uint16 = 1 << 4
	GBNKeyNamesMask      uint16 = 1 << 5
	GBNGeometryMask      uint16 = 1 << 6
	GBNOtherNamesMask    uint16 = 1 << 7
	GBNAllComponentsMask uint16 = 0xff
)

// NewKeyboardNotify changed flags.
const (
	NKNKeycodesMask uint16 = 1 << 0
	NKNGeometryMask uint16 = 1 << 1
	NKNDeviceIDMask uint16 = 1 << 2
)

// X11 reply and event framing.
const (
	replyType      = 1
	errorType      = 0
	replyHeaderLen = 32
	eventLen       = 32
)

// popcount returns the number of set bits in v.
func popcount[T ~uint8 | ~uint16 | ~uint32](v T) int {
	n := 0
	for v != 0 {
		v &= v - 1
		n++
	}
	return n
}
