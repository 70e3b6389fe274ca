package ap2

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	afpErrors "github.com/wz18207/bemaniutils-gfdm/pkg/afp/errors"
)

func TestDisassembleSingleOpcode(t *testing.T) {
	chunk, err := Disassemble([]byte{0xFF, 0x00, 0x03})
	require.NoError(t, err)

	require.Nil(t, chunk.Pool)
	require.False(t, chunk.OwnPool)
	require.Equal(t, 2, chunk.Start)
	require.Equal(t, []Instruction{{Line: 0, Op: OpPlay}}, chunk.Instructions)
}

func TestDisassembleDeclaredPool(t *testing.T) {
	chunk, err := Disassemble([]byte{
		0xFF, 0x01, // sentinel, pool flag
		0x02, 0x00, // two pool entries
		0x05, 0x00,
		0x09, 0x00,
		0x04, // STOP
	})
	require.NoError(t, err)

	require.Equal(t, []uint16{5, 9}, chunk.Pool)
	require.True(t, chunk.OwnPool)
	require.Equal(t, 8, chunk.Start)
	require.Equal(t, []Instruction{{Line: 0, Op: OpStop}}, chunk.Instructions)
}

// TestDisassembleJumpTargets checks that relative jump operands come out as
// chunk-relative line numbers, the same unit Line uses.
func TestDisassembleJumpTargets(t *testing.T) {
	chunk, err := Disassemble([]byte{
		0xFF, 0x00,
		byte(OpJump), 0x00, 0x02, // skip the next two instructions
		byte(OpPlay),
		byte(OpStop),
		byte(OpEnd),
	})
	require.NoError(t, err)

	require.Len(t, chunk.Instructions, 4)
	require.Equal(t, Instruction{Line: 0, Op: OpJump, Target: 5}, chunk.Instructions[0])
	require.Equal(t, 5, chunk.Instructions[3].Line, "jump must land on END")
}

func TestDisassembleIf2(t *testing.T) {
	chunk, err := Disassemble([]byte{
		0xFF, 0x00,
		byte(OpIf2), byte(CmpLess), 0x00, 0x00,
		byte(OpEnd),
	})
	require.NoError(t, err)

	inst := chunk.Instructions[0]
	require.Equal(t, OpIf2, inst.Op)
	require.Equal(t, CmpLess, inst.Comparison)
	require.Equal(t, 4, inst.Target)

	// A comparison kind past the defined table is refused.
	_, err = Disassemble([]byte{0xFF, 0x00, byte(OpIf2), 0xC8, 0x00, 0x00})
	require.ErrorIs(t, err, afpErrors.ErrUnsupported)
}

func TestDisassemblePushOperands(t *testing.T) {
	chunk, err := Disassemble([]byte{
		0xFF, 0x00,
		byte(OpPush), 0x04, // four operands
		pushTrue,
		pushByteInt, 0x2A,
		pushString8, 0x01,
		pushRegister, 0x03,
		byte(OpEnd),
	})
	require.NoError(t, err)

	require.Len(t, chunk.Instructions, 2)
	want := []Arg{
		{Kind: ArgBool, Int: 1},
		{Kind: ArgInteger, Int: 42},
		{Kind: ArgString, Int: 1},
		{Kind: ArgRegister, Int: 3},
	}
	require.Equal(t, want, chunk.Instructions[0].Args)
}

func TestDisassembleErrors(t *testing.T) {
	// Bytecode without the modern sentinel byte is another format entirely.
	_, err := Disassemble([]byte{0x00, 0x00})
	require.ErrorIs(t, err, afpErrors.ErrUnsupported)

	_, err = Disassemble([]byte{0xFF})
	require.ErrorIs(t, err, afpErrors.ErrStructure)

	// Opcode 6 has no assignment in the instruction set.
	_, err = Disassemble([]byte{0xFF, 0x00, 0x06})
	require.ErrorIs(t, err, afpErrors.ErrUnknownOpcode)

	// A jump needs its two target bytes.
	_, err = Disassemble([]byte{0xFF, 0x00, byte(OpJump)})
	require.ErrorIs(t, err, afpErrors.ErrStructure)
}

func TestChunkWriteTrace(t *testing.T) {
	chunk, err := Disassemble([]byte{
		0xFF, 0x00,
		byte(OpPlay),
		byte(OpJump), 0x00, 0x00,
		byte(OpEnd),
	})
	require.NoError(t, err)

	var sb strings.Builder
	chunk.WriteTrace(&sb, "  ")
	out := sb.String()

	require.Contains(t, out, "0: PLAY")
	require.Contains(t, out, "1: JUMP Offset: 4")
	require.Contains(t, out, "4: END")
}
