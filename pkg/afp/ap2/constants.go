package ap2

import "fmt"

// Timeline blob magic, mirrored like the container magic. Only the low
// seven bits of each byte count; the top byte carries the sub-version.
const (
	headerLen      = 24
	versionWord    = 0x200
	sentinelAP2    = 0xFF
	tagHeaderLen   = 24
	maxTagSize     = 0x200000
	editTextLen    = 44
	initializerLen = 12
)

// Header flag bits.
const (
	HeaderFlagBGColor      uint32 = 0x1
	HeaderFlagIntegerFPS   uint32 = 0x2
	HeaderFlagInitializers uint32 = 0x4
)

// TagType identifies one record kind inside a tag directory.
type TagType uint16

// Directory tag types. The 0x78 block is the AP2 re-numbering of the
// classic SWF tag set; only the types games actually emit are decoded.
const (
	TagEnd              TagType = 0x00
	TagDefineFont       TagType = 0x78
	TagDefineSprite     TagType = 0x79
	TagDoAction         TagType = 0x7A
	TagDefineButton     TagType = 0x7B
	TagDefineButtonSnd  TagType = 0x7C
	TagDefineText       TagType = 0x7D
	TagDefineEditText   TagType = 0x7E
	TagPlaceObject      TagType = 0x7F
	TagRemoveObject     TagType = 0x80
	TagStartSound       TagType = 0x81
	TagDefineMorphShape TagType = 0x82
	TagImage            TagType = 0x83
	TagShape            TagType = 0x84
	TagSound            TagType = 0x85
	TagVideo            TagType = 0x86
)

var tagNames = map[TagType]string{
	TagEnd:              "END",
	TagDefineFont:       "AP2_DEFINE_FONT",
	TagDefineSprite:     "AP2_DEFINE_SPRITE",
	TagDoAction:         "AP2_DO_ACTION",
	TagDefineButton:     "AP2_DEFINE_BUTTON",
	TagDefineButtonSnd:  "AP2_DEFINE_BUTTON_SOUND",
	TagDefineText:       "AP2_DEFINE_TEXT",
	TagDefineEditText:   "AP2_DEFINE_EDIT_TEXT",
	TagPlaceObject:      "AP2_PLACE_OBJECT",
	TagRemoveObject:     "AP2_REMOVE_OBJECT",
	TagStartSound:       "AP2_START_SOUND",
	TagDefineMorphShape: "AP2_DEFINE_MORPH_SHAPE",
	TagImage:            "AP2_IMAGE",
	TagShape:            "AP2_SHAPE",
	TagSound:            "AP2_SOUND",
	TagVideo:            "AP2_VIDEO",
}

func (t TagType) String() string {
	if name, ok := tagNames[t]; ok {
		return name
	}
	return fmt.Sprintf("UNKNOWN_%#02x", uint16(t))
}

// Opcode is one bytecode instruction selector.
type Opcode uint8

const (
	OpEnd            Opcode = 0
	OpNextFrame      Opcode = 1
	OpPreviousFrame  Opcode = 2
	OpPlay           Opcode = 3
	OpStop           Opcode = 4
	OpStopSound      Opcode = 5
	OpSubtract       Opcode = 7
	OpMultiply       Opcode = 8
	OpDivide         Opcode = 9
	OpNot            Opcode = 12
	OpPop            Opcode = 13
	OpGetVariable    Opcode = 14
	OpSetVariable    Opcode = 15
	OpGetProperty    Opcode = 16
	OpSetProperty    Opcode = 17
	OpCloneSprite    Opcode = 18
	OpRemoveSprite   Opcode = 19
	OpTrace          Opcode = 20
	OpStartDrag      Opcode = 21
	OpEndDrag        Opcode = 22
	OpThrow          Opcode = 23
	OpCastOp         Opcode = 24
	OpImplementsOp   Opcode = 25
	OpGetTime        Opcode = 26
	OpDelete         Opcode = 27
	OpDelete2        Opcode = 28
	OpDefineLocal    Opcode = 29
	OpCallFunction   Opcode = 30
	OpReturn         Opcode = 31
	OpModulo         Opcode = 32
	OpNewObject      Opcode = 33
	OpDefineLocal2   Opcode = 34
	OpInitArray      Opcode = 35
	OpInitObject     Opcode = 36
	OpTypeof         Opcode = 37
	OpTargetPath     Opcode = 38
	OpAdd2           Opcode = 39
	OpLess2          Opcode = 40
	OpEquals2        Opcode = 41
	OpToNumber       Opcode = 42
	OpToString       Opcode = 43
	OpPushDuplicate  Opcode = 44
	OpStackSwap      Opcode = 45
	OpGetMember      Opcode = 46
	OpSetMember      Opcode = 47
	OpIncrement      Opcode = 48
	OpDecrement      Opcode = 49
	OpCallMethod     Opcode = 50
	OpNewMethod      Opcode = 51
	OpInstanceof     Opcode = 52
	OpEnumerate2     Opcode = 53
	OpBitAnd         Opcode = 54
	OpBitOr          Opcode = 55
	OpBitXor         Opcode = 56
	OpBitLShift      Opcode = 57
	OpBitRShift      Opcode = 58
	OpBitURShift     Opcode = 59
	OpStrictEquals   Opcode = 60
	OpGreater        Opcode = 61
	OpExtends        Opcode = 62
	OpStoreRegister  Opcode = 63
	OpDefineFunction Opcode = 64
	OpTry            Opcode = 65
	OpWith           Opcode = 66
	OpPush           Opcode = 67
	OpJump           Opcode = 68
	OpGetURL2        Opcode = 69
	OpIf             Opcode = 70
	OpGotoFrame2     Opcode = 71
	OpGetTarget      Opcode = 72
	OpIf2            Opcode = 73
	OpStoreRegister2 Opcode = 74
	OpInitRegister   Opcode = 75
	OpAddNumRegister Opcode = 76
	OpAddNumVariable Opcode = 77
)

var opcodeNames = map[Opcode]string{
	OpEnd:            "END",
	OpNextFrame:      "NEXT_FRAME",
	OpPreviousFrame:  "PREVIOUS_FRAME",
	OpPlay:           "PLAY",
	OpStop:           "STOP",
	OpStopSound:      "STOP_SOUND",
	OpSubtract:       "SUBTRACT",
	OpMultiply:       "MULTIPLY",
	OpDivide:         "DIVIDE",
	OpNot:            "NOT",
	OpPop:            "POP",
	OpGetVariable:    "GET_VARIABLE",
	OpSetVariable:    "SET_VARIABLE",
	OpGetProperty:    "GET_PROPERTY",
	OpSetProperty:    "SET_PROPERTY",
	OpCloneSprite:    "CLONE_SPRITE",
	OpRemoveSprite:   "REMOVE_SPRITE",
	OpTrace:          "TRACE",
	OpStartDrag:      "START_DRAG",
	OpEndDrag:        "END_DRAG",
	OpThrow:          "THROW",
	OpCastOp:         "CAST_OP",
	OpImplementsOp:   "IMPLEMENTS_OP",
	OpGetTime:        "GET_TIME",
	OpDelete:         "DELETE",
	OpDelete2:        "DELETE2",
	OpDefineLocal:    "DEFINE_LOCAL",
	OpCallFunction:   "CALL_FUNCTION",
	OpReturn:         "RETURN",
	OpModulo:         "MODULO",
	OpNewObject:      "NEW_OBJECT",
	OpDefineLocal2:   "DEFINE_LOCAL2",
	OpInitArray:      "INIT_ARRAY",
	OpInitObject:     "INIT_OBJECT",
	OpTypeof:         "TYPEOF",
	OpTargetPath:     "TARGET_PATH",
	OpAdd2:           "ADD2",
	OpLess2:          "LESS2",
	OpEquals2:        "EQUALS2",
	OpToNumber:       "TO_NUMBER",
	OpToString:       "TO_STRING",
	OpPushDuplicate:  "PUSH_DUPLICATE",
	OpStackSwap:      "STACK_SWAP",
	OpGetMember:      "GET_MEMBER",
	OpSetMember:      "SET_MEMBER",
	OpIncrement:      "INCREMENT",
	OpDecrement:      "DECREMENT",
	OpCallMethod:     "CALL_METHOD",
	OpNewMethod:      "NEW_METHOD",
	OpInstanceof:     "INSTANCEOF",
	OpEnumerate2:     "ENUMERATE2",
	OpBitAnd:         "BIT_AND",
	OpBitOr:          "BIT_OR",
	OpBitXor:         "BIT_XOR",
	OpBitLShift:      "BIT_L_SHIFT",
	OpBitRShift:      "BIT_R_SHIFT",
	OpBitURShift:     "BIT_U_R_SHIFT",
	OpStrictEquals:   "STRICT_EQUALS",
	OpGreater:        "GREATER",
	OpExtends:        "EXTENDS",
	OpStoreRegister:  "STORE_REGISTER",
	OpDefineFunction: "DEFINE_FUNCTION2",
	OpTry:            "TRY",
	OpWith:           "WITH",
	OpPush:           "PUSH",
	OpJump:           "JUMP",
	OpGetURL2:        "GET_URL2",
	OpIf:             "IF",
	OpGotoFrame2:     "GOTO_FRAME2",
	OpGetTarget:      "GET_TARGET",
	OpIf2:            "IF2",
	OpStoreRegister2: "STORE_REGISTER2",
	OpInitRegister:   "INIT_REGISTER",
	OpAddNumRegister: "ADD_NUM_REGISTER",
	OpAddNumVariable: "ADD_NUM_VARIABLE",
}

func (o Opcode) String() string {
	if name, ok := opcodeNames[o]; ok {
		return name
	}
	return fmt.Sprintf("UNKNOWN_%#02x", uint8(o))
}

// noOperandOpcodes are the opcodes that occupy exactly one byte. Everything
// else either has a dedicated operand decoder or is rejected.
var noOperandOpcodes = map[Opcode]bool{
	OpEnd:           true,
	OpNextFrame:     true,
	OpPreviousFrame: true,
	OpPlay:          true,
	OpStop:          true,
	OpStopSound:     true,
	OpAdd2:          true,
	OpSubtract:      true,
	OpMultiply:      true,
	OpDivide:        true,
	OpModulo:        true,
	OpNot:           true,
	OpBitAnd:        true,
	OpBitOr:         true,
	OpBitXor:        true,
	OpBitLShift:     true,
	OpBitRShift:     true,
	OpBitURShift:    true,
	OpStrictEquals:  true,
	OpGreater:       true,
	OpLess2:         true,
	OpEquals2:       true,
	OpCloneSprite:   true,
	OpRemoveSprite:  true,
	OpTrace:         true,
	OpTypeof:        true,
	OpInstanceof:    true,
	OpTargetPath:    true,
	OpEnumerate2:    true,
	OpThrow:         true,
	OpCastOp:        true,
	OpImplementsOp:  true,
	OpStackSwap:     true,
	OpGetTime:       true,
	OpGetTarget:     true,
	OpReturn:        true,
	OpPop:           true,
	OpPushDuplicate: true,
	OpDelete:        true,
	OpDelete2:       true,
	OpNewObject:     true,
	OpExtends:       true,
	OpInitArray:     true,
	OpInitObject:    true,
	OpEndDrag:       true,
	OpGetVariable:   true,
	OpSetVariable:   true,
	OpIncrement:     true,
	OpDecrement:     true,
	OpDefineLocal:   true,
	OpDefineLocal2:  true,
	OpGetMember:     true,
	OpSetMember:     true,
	OpGetProperty:   true,
	OpSetProperty:   true,
	OpCallMethod:    true,
	OpCallFunction:  true,
	OpToNumber:      true,
	OpToString:      true,
	OpNewMethod:     true,
}

// Push operand type bytes.
const (
	pushZero      = 0x00
	pushFloat     = 0x01
	pushNull      = 0x02
	pushUndefined = 0x03
	pushRegister  = 0x04
	pushTrue      = 0x05
	pushFalse     = 0x06
	pushInteger   = 0x07
	pushString8   = 0x08
	pushString16  = 0x09
	pushNaN       = 0x0A
	pushInfinity  = 0x0B
	pushThis      = 0x0C
	pushRoot      = 0x0D
	pushParent    = 0x0E
	pushClip      = 0x0F
	pushPropProp  = 0x10
	pushPropClass = 0x13
	pushPropFunc  = 0x16
	pushPropOther = 0x19
	pushPropEvent = 0x1C
	pushPropKey   = 0x1F
	pushGlobal    = 0x22
	pushPropEtc2  = 0x24
	pushPropOrg2  = 0x27
	pushByteInt   = 0x37
)

// Well-known-name categories. Each category shifts a following byte into its
// own numbering block, mirroring the constant tables the game links in.
type PropertyCategory uint16

const (
	PropProperty PropertyCategory = 0x100
	PropOther    PropertyCategory = 0x200
	PropClass    PropertyCategory = 0x300
	PropFunction PropertyCategory = 0x400
	PropEvent    PropertyCategory = 0x500
	PropKey      PropertyCategory = 0x600
	PropEtc2     PropertyCategory = 0x700
	PropOrgFunc2 PropertyCategory = 0x800
)

var propertyCategoryNames = map[PropertyCategory]string{
	PropProperty: "PROPERTY",
	PropOther:    "OTHER",
	PropClass:    "CLASS",
	PropFunction: "FUNC",
	PropEvent:    "EVENT",
	PropKey:      "KEY",
	PropEtc2:     "ETC2",
	PropOrgFunc2: "ORGFUNC2",
}

func (p PropertyCategory) String() string {
	if name, ok := propertyCategoryNames[p]; ok {
		return name
	}
	return fmt.Sprintf("CATEGORY_%#x", uint16(p))
}

// Comparison is the test kind of an extended conditional jump.
type Comparison uint8

const (
	CmpEquals Comparison = iota
	CmpNotEquals
	CmpLess
	CmpGreater
	CmpLessEquals
	CmpGreaterEquals
	CmpFalsy
	CmpBitAnd
	CmpBitNotAnd
	CmpStrictEquals
	CmpStrictNotEquals
	CmpUndefined
	CmpNotUndefined
)

var comparisonNames = map[Comparison]string{
	CmpEquals:          "==",
	CmpNotEquals:       "!=",
	CmpLess:            "<",
	CmpGreater:         ">",
	CmpLessEquals:      "<=",
	CmpGreaterEquals:   ">=",
	CmpFalsy:           "!",
	CmpBitAnd:          "BITAND",
	CmpBitNotAnd:       "BITNOTAND",
	CmpStrictEquals:    "STRICT ==",
	CmpStrictNotEquals: "STRICT !=",
	CmpUndefined:       "IS UNDEFINED",
	CmpNotUndefined:    "IS NOT UNDEFINED",
}

func (c Comparison) String() string {
	if name, ok := comparisonNames[c]; ok {
		return name
	}
	return fmt.Sprintf("COMPARISON_%d", uint8(c))
}

// Event trigger flag bits on placed objects.
const (
	EventLoad           uint32 = 0x1
	EventEnterFrame     uint32 = 0x2
	EventUnload         uint32 = 0x4
	EventMouseMove      uint32 = 0x8
	EventMouseDown      uint32 = 0x10
	EventMouseUp        uint32 = 0x20
	EventKeyDown        uint32 = 0x40
	EventKeyUp          uint32 = 0x80
	EventData           uint32 = 0x100
	EventPress          uint32 = 0x400
	EventRelease        uint32 = 0x800
	EventReleaseOutside uint32 = 0x1000
	EventRollOver       uint32 = 0x2000
	EventRollOut        uint32 = 0x4000
)

var eventNames = []struct {
	bit  uint32
	name string
}{
	{EventLoad, "ON_LOAD"},
	{EventEnterFrame, "ON_ENTER_FRAME"},
	{EventUnload, "ON_UNLOAD"},
	{EventMouseMove, "ON_MOUSE_MOVE"},
	{EventMouseDown, "ON_MOUSE_DOWN"},
	{EventMouseUp, "ON_MOUSE_UP"},
	{EventKeyDown, "ON_KEY_DOWN"},
	{EventKeyUp, "ON_KEY_UP"},
	{EventData, "ON_DATA"},
	{EventPress, "ON_PRESS"},
	{EventRelease, "ON_RELEASE"},
	{EventReleaseOutside, "ON_RELEASE_OUTSIDE"},
	{EventRollOver, "ON_ROLL_OVER"},
	{EventRollOut, "ON_ROLL_OUT"},
}

// EventNames expands an event trigger mask into its named bits.
func EventNames(flags uint32) []string {
	var names []string
	for _, e := range eventNames {
		if flags&e.bit != 0 {
			names = append(names, e.name)
		}
	}
	return names
}

// Place-object flag bits.
const (
	placeFlagUpdate       uint32 = 0x1
	placeFlagSrcTag       uint32 = 0x2
	placeFlagUnknown2     uint32 = 0x10
	placeFlagName         uint32 = 0x20
	placeFlagUnknown3     uint32 = 0x40
	placeFlagEvents       uint32 = 0x80
	placeFlagMatrixScale  uint32 = 0x100
	placeFlagMatrixRotate uint32 = 0x200
	placeFlagMatrixOffset uint32 = 0x400
	placeFlagColorWide    uint32 = 0x800
	placeFlagAddColorWide uint32 = 0x1000
	placeFlagColorPacked  uint32 = 0x2000
	placeFlagAddColorPack uint32 = 0x4000
	placeFlagFilters      uint32 = 0x10000
	placeFlagBlend        uint32 = 0x20000
	placeFlagPointScaledA uint32 = 0x40000
	placeFlagPointScaledB uint32 = 0x80000
	placeFlagPointFloat   uint32 = 0x1000000
	placeFlagPointZero    uint32 = 0x2000000
	placeFlagHousekeeping uint32 = 0xD
)
