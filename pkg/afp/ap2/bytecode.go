package ap2

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"strconv"

	"github.com/wz18207/bemaniutils-gfdm/internal/wire"
	afpErrors "github.com/wz18207/bemaniutils-gfdm/pkg/afp/errors"
)

// ArgKind is the encoding of one pushed operand.
type ArgKind int

const (
	ArgInteger ArgKind = iota
	ArgFloat
	ArgNull
	ArgUndefined
	ArgRegister
	ArgBool
	ArgString
	ArgNaN
	ArgInfinity
	ArgThis
	ArgRoot
	ArgParent
	ArgClip
	ArgGlobal
	ArgProperty
)

// Arg is one decoded operand of a PUSH or register-list instruction.
type Arg struct {
	Kind ArgKind

	// Int carries the integer payload: the integer value, register number,
	// pool index for strings, or category-relative code for properties.
	Int int64

	Float    float64
	Str      string
	Category PropertyCategory
}

func (a Arg) String() string {
	switch a.Kind {
	case ArgInteger:
		return fmt.Sprintf("INTEGER: %d", a.Int)
	case ArgFloat:
		return fmt.Sprintf("FLOAT: %s", strconv.FormatFloat(a.Float, 'g', -1, 64))
	case ArgNull:
		return "NULL"
	case ArgUndefined:
		return "UNDEFINED"
	case ArgRegister:
		return fmt.Sprintf("REGISTER NO: %d", a.Int)
	case ArgBool:
		if a.Int != 0 {
			return "BOOLEAN: True"
		}
		return "BOOLEAN: False"
	case ArgString:
		if a.Str != "" {
			return fmt.Sprintf("STRING CONST: %s", a.Str)
		}
		return fmt.Sprintf("STRING CONST: #%d", a.Int)
	case ArgNaN:
		return "NAN"
	case ArgInfinity:
		return "INFINITY"
	case ArgThis:
		return "POINTER TO THIS"
	case ArgRoot:
		return "POINTER TO ROOT"
	case ArgParent:
		return "POINTER TO PARENT"
	case ArgClip:
		return "POINTER TO CURRENT MOVIECLIP"
	case ArgGlobal:
		return "POINTER TO GLOBAL OBJECT"
	case ArgProperty:
		return fmt.Sprintf("%s CONST: %#x", a.Category, a.Int)
	}
	return fmt.Sprintf("ARG_%d", a.Kind)
}

// Instruction is one decoded bytecode instruction. Line is its byte offset
// from the start of the chunk, which is also the unit jump targets use.
// Fields beyond Op are populated per opcode; the rest stay zero.
type Instruction struct {
	Line int
	Op   Opcode

	// PUSH operands or STORE_REGISTER register list.
	Args []Arg

	// DEFINE_FUNCTION2.
	Name          string
	FunctionFlags uint16
	Body          *Chunk

	// IF, IF2, JUMP. Target is relative to the chunk start.
	Target     int
	Comparison Comparison

	// Single-value operands: add amounts, register numbers, drag
	// constraints, extra frame counts, goto flags.
	Value    int
	Register int
	Flags    uint8
}

// Chunk is one disassembled unit of bytecode: the active string-offset pool
// and a flat instruction list. Nested function bodies hang off their
// defining instruction as child chunks with their own line numbering.
type Chunk struct {
	// Pool holds the string-table offsets indexed by string push operands.
	// Nested chunks share their parent's pool.
	Pool []uint16

	// OwnPool is set when the chunk declared the pool itself rather than
	// inheriting it.
	OwnPool bool

	// Start is the byte offset of the first instruction within the slice,
	// past the sentinel, flags and any embedded pool.
	Start int

	Instructions []Instruction
}

// Disassemble decodes a standalone bytecode slice. String push operands are
// left unresolved since no string table is in scope; parsing a timeline
// resolves them through its own pool.
func Disassemble(data []byte) (*Chunk, error) {
	return disassemble(data, nil, nil)
}

func disassemble(data []byte, pool []uint16, table *stringTable) (*Chunk, error) {
	if len(data) < 2 {
		return nil, fmt.Errorf("%w: bytecode slice shorter than its preamble", afpErrors.ErrStructure)
	}
	if data[0] != sentinelAP2 {
		return nil, fmt.Errorf("%w: legacy bytecode container", afpErrors.ErrUnsupported)
	}
	flags := data[1]

	chunk := &Chunk{Pool: pool}
	offset := 2
	if flags&0x1 != 0 {
		if len(data) < 4 {
			return nil, fmt.Errorf("%w: truncated string pool header", afpErrors.ErrStructure)
		}
		count := int(binary.LittleEndian.Uint16(data[2:4]))
		if 4+2*count > len(data) {
			return nil, fmt.Errorf("%w: truncated string pool", afpErrors.ErrStructure)
		}
		// Do not clobber a pool handed down from the enclosing chunk.
		if len(chunk.Pool) == 0 {
			declared := make([]uint16, count)
			for i := 0; i < count; i++ {
				declared[i] = binary.LittleEndian.Uint16(data[4+2*i : 6+2*i])
			}
			chunk.Pool = declared
			chunk.OwnPool = true
		}
		offset = (count + 2) * 2
	}
	chunk.Start = offset

	c := wire.NewCursor(data, binary.BigEndian)
	c.Seek(offset)
	if err := c.Err(); err != nil {
		return nil, fmt.Errorf("%w: bytecode starts past end of slice", afpErrors.ErrStructure)
	}

	for c.Remaining() > 0 {
		line := c.Offset() - chunk.Start
		op := Opcode(c.U8())
		inst := Instruction{Line: line, Op: op}

		switch {
		case noOperandOpcodes[op]:
			// Single byte, nothing more to read.

		case op == OpDefineFunction:
			inst.FunctionFlags = c.U16()
			nameOffset := c.U16()
			bodySkip := int(c.U16())
			c.U8()
			bodyLen := int(c.U16())
			if err := c.Err(); err != nil {
				return nil, fmt.Errorf("%w: truncated function definition at line %d", afpErrors.ErrStructure, line)
			}
			if nameOffset != 0 {
				name, err := lookupString(table, int(nameOffset))
				if err != nil {
					return nil, err
				}
				inst.Name = name
			}
			c.Skip(3 * bodySkip)
			bodyStart := c.Offset()
			c.Skip(bodyLen)
			if err := c.Err(); err != nil {
				return nil, fmt.Errorf("%w: function body at line %d runs past chunk end", afpErrors.ErrStructure, line)
			}
			body, err := disassemble(data[bodyStart:bodyStart+bodyLen], chunk.Pool, table)
			if err != nil {
				return nil, err
			}
			inst.Body = body

		case op == OpPush:
			count := int(c.U8())
			for n := 0; n < count; n++ {
				arg, err := readPushArg(c, chunk.Pool, table)
				if err != nil {
					return nil, err
				}
				inst.Args = append(inst.Args, arg)
			}

		case op == OpStoreRegister:
			count := int(c.U8())
			for n := 0; n < count; n++ {
				inst.Args = append(inst.Args, Arg{Kind: ArgRegister, Int: int64(c.U8())})
			}

		case op == OpStoreRegister2:
			inst.Register = int(c.U8())

		case op == OpIf:
			target := int(c.U16())
			inst.Target = target + c.Offset() - chunk.Start

		case op == OpIf2:
			cmp := Comparison(c.U8())
			if _, ok := comparisonNames[cmp]; !ok {
				return nil, fmt.Errorf("%w: comparison kind %d", afpErrors.ErrUnsupported, cmp)
			}
			inst.Comparison = cmp
			target := int(c.U16())
			inst.Target = target + c.Offset() - chunk.Start

		case op == OpJump:
			target := int(c.U16())
			inst.Target = target + c.Offset() - chunk.Start

		case op == OpAddNumVariable:
			inst.Value = int(c.U8())

		case op == OpStartDrag:
			inst.Value = int(c.I8())

		case op == OpAddNumRegister:
			inst.Register = int(c.U8())
			inst.Value = int(c.U8())

		case op == OpGotoFrame2:
			inst.Flags = c.U8()
			if inst.Flags&0x2 != 0 {
				inst.Value = int(c.U16())
			}

		default:
			return nil, fmt.Errorf("%w: opcode %d (%#x)", afpErrors.ErrUnknownOpcode, uint8(op), uint8(op))
		}

		if err := c.Err(); err != nil {
			return nil, fmt.Errorf("%w: truncated %s at line %d", afpErrors.ErrStructure, inst.Op, line)
		}
		chunk.Instructions = append(chunk.Instructions, inst)
	}

	return chunk, nil
}

func readPushArg(c *wire.Cursor, pool []uint16, table *stringTable) (Arg, error) {
	tag := c.U8()
	switch tag {
	case pushZero:
		return Arg{Kind: ArgInteger}, nil
	case pushFloat:
		return Arg{Kind: ArgFloat, Float: float64(math.Float32frombits(c.U32()))}, nil
	case pushNull:
		return Arg{Kind: ArgNull}, nil
	case pushUndefined:
		return Arg{Kind: ArgUndefined}, nil
	case pushRegister:
		return Arg{Kind: ArgRegister, Int: int64(c.U8())}, nil
	case pushTrue:
		return Arg{Kind: ArgBool, Int: 1}, nil
	case pushFalse:
		return Arg{Kind: ArgBool}, nil
	case pushInteger:
		return Arg{Kind: ArgInteger, Int: int64(c.U32())}, nil
	case pushString8:
		return resolvePoolString(int(c.U8()), pool, table)
	case pushString16:
		return resolvePoolString(int(c.U16()), pool, table)
	case pushNaN:
		return Arg{Kind: ArgNaN}, nil
	case pushInfinity:
		return Arg{Kind: ArgInfinity}, nil
	case pushThis:
		return Arg{Kind: ArgThis}, nil
	case pushRoot:
		return Arg{Kind: ArgRoot}, nil
	case pushParent:
		return Arg{Kind: ArgParent}, nil
	case pushClip:
		return Arg{Kind: ArgClip}, nil
	case pushGlobal:
		return Arg{Kind: ArgGlobal}, nil
	case pushPropProp:
		return propertyArg(PropProperty, c.U8()), nil
	case pushPropClass:
		return propertyArg(PropClass, c.U8()), nil
	case pushPropFunc:
		return propertyArg(PropFunction, c.U8()), nil
	case pushPropOther:
		return propertyArg(PropOther, c.U8()), nil
	case pushPropEvent:
		return propertyArg(PropEvent, c.U8()), nil
	case pushPropKey:
		return propertyArg(PropKey, c.U8()), nil
	case pushPropEtc2:
		return propertyArg(PropEtc2, c.U8()), nil
	case pushPropOrg2:
		return propertyArg(PropOrgFunc2, c.U8()), nil
	case pushByteInt:
		return Arg{Kind: ArgInteger, Int: int64(c.U8())}, nil
	}
	return Arg{}, fmt.Errorf("%w: push operand type %#x", afpErrors.ErrUnsupported, tag)
}

func propertyArg(category PropertyCategory, code uint8) Arg {
	return Arg{Kind: ArgProperty, Category: category, Int: int64(uint16(category) + uint16(code))}
}

func resolvePoolString(index int, pool []uint16, table *stringTable) (Arg, error) {
	arg := Arg{Kind: ArgString, Int: int64(index)}
	if table == nil {
		return arg, nil
	}
	if index < 0 || index >= len(pool) {
		return Arg{}, fmt.Errorf("%w: string pool index %d outside pool of %d", afpErrors.ErrOutOfBounds, index, len(pool))
	}
	value, err := table.get(int(pool[index]))
	if err != nil {
		return Arg{}, err
	}
	arg.Str = value
	return arg, nil
}

func lookupString(table *stringTable, offset int) (string, error) {
	if table == nil {
		return "", nil
	}
	return table.get(offset)
}

// WriteTrace prints the chunk as an indented mnemonic listing, nested
// function bodies included.
func (ch *Chunk) WriteTrace(w io.Writer, prefix string) {
	for _, inst := range ch.Instructions {
		switch inst.Op {
		case OpDefineFunction:
			name := inst.Name
			if name == "" {
				name = "<anonymous function>"
			}
			fmt.Fprintf(w, "%s%d: %s Flags: %#x, Name: %s\n", prefix, inst.Line, inst.Op, inst.FunctionFlags, name)
			if inst.Body != nil {
				inst.Body.WriteTrace(w, prefix+"    ")
			}
			fmt.Fprintf(w, "%sEND_%s\n", prefix, inst.Op)
		case OpPush, OpStoreRegister:
			fmt.Fprintf(w, "%s%d: %s\n", prefix, inst.Line, inst.Op)
			for _, arg := range inst.Args {
				fmt.Fprintf(w, "%s  %s\n", prefix, arg)
			}
			fmt.Fprintf(w, "%sEND_%s\n", prefix, inst.Op)
		case OpStoreRegister2:
			fmt.Fprintf(w, "%s%d: %s Register No: %d\n", prefix, inst.Line, inst.Op, inst.Register)
		case OpIf:
			fmt.Fprintf(w, "%s%d: %s Offset If True: %d\n", prefix, inst.Line, inst.Op, inst.Target)
		case OpIf2:
			fmt.Fprintf(w, "%s%d: %s %s, Offset If True: %d\n", prefix, inst.Line, inst.Op, inst.Comparison, inst.Target)
		case OpJump:
			fmt.Fprintf(w, "%s%d: %s Offset: %d\n", prefix, inst.Line, inst.Op, inst.Target)
		case OpAddNumVariable:
			fmt.Fprintf(w, "%s%d: %s Add Value: %d\n", prefix, inst.Line, inst.Op, inst.Value)
		case OpStartDrag:
			constraint := "check stack"
			switch {
			case inst.Value > 0:
				constraint = "yes"
			case inst.Value == 0:
				constraint = "no"
			}
			fmt.Fprintf(w, "%s%d: %s Constrain Mouse: %s\n", prefix, inst.Line, inst.Op, constraint)
		case OpAddNumRegister:
			fmt.Fprintf(w, "%s%d: %s Register No: %d, Add Value: %d\n", prefix, inst.Line, inst.Op, inst.Register, inst.Value)
		case OpGotoFrame2:
			post := "PLAY"
			if inst.Flags&0x1 != 0 {
				post = "STOP"
			}
			fmt.Fprintf(w, "%s%d: %s AND %s Additional Frames: %d\n", prefix, inst.Line, inst.Op, post, inst.Value)
		default:
			fmt.Fprintf(w, "%s%d: %s\n", prefix, inst.Line, inst.Op)
		}
	}
}
