package emulator_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Manu343726/teaching-isa/internal/emulator"
	"github.com/Manu343726/teaching-isa/internal/isa"
)

func encodeAt(mem map[uint32]byte, addr uint32, ins isa.Instruction) {
	b := isa.Encode(ins)
	for i, v := range b {
		mem[addr+uint32(i)] = v
	}
}

func TestMinimalHalt(t *testing.T) {
	mem := map[uint32]byte{}
	encodeAt(mem, isa.PCStart, isa.Instruction{Op: isa.HaltOp})

	c := emulator.NewCPU(mem)
	require.NoError(t, c.Run())
	assert.Equal(t, isa.PCStart+isa.InstructionSize, c.GPR[isa.PCReg])
}

func TestArithmeticAdd(t *testing.T) {
	mem := map[uint32]byte{}
	encodeAt(mem, isa.PCStart, isa.Instruction{Op: isa.AritOp | isa.AddMod, A: 1, B: 2, C: 3})
	encodeAt(mem, isa.PCStart+4, isa.Instruction{Op: isa.HaltOp})

	c := emulator.NewCPU(mem)
	c.GPR[2] = 10
	c.GPR[3] = 5
	require.NoError(t, c.Run())
	assert.EqualValues(t, 15, c.GPR[1])
}

func TestLoadImmediateInline(t *testing.T) {
	mem := map[uint32]byte{}
	encodeAt(mem, isa.PCStart, isa.Instruction{Op: isa.LoadOp | isa.LoadMod1, A: 2, B: 0, D: 7})
	encodeAt(mem, isa.PCStart+4, isa.Instruction{Op: isa.HaltOp})

	c := emulator.NewCPU(mem)
	require.NoError(t, c.Run())
	assert.EqualValues(t, 7, c.GPR[2])
}

func TestLoadMemDirPooled(t *testing.T) {
	mem := map[uint32]byte{}
	// ld r1, [pc+4]; jmp pc+4 over the literal; literal; halt
	encodeAt(mem, isa.PCStart, isa.Instruction{Op: isa.LoadOp | isa.LoadMod2, A: 1, B: isa.PCReg, C: 0, D: 4})
	encodeAt(mem, isa.PCStart+4, isa.Instruction{Op: isa.JumpOp | isa.JmpMod0, A: isa.PCReg, D: 4})
	mem[isa.PCStart+8] = 0x39
	mem[isa.PCStart+9] = 0x30
	mem[isa.PCStart+10] = 0x00
	mem[isa.PCStart+11] = 0x00
	encodeAt(mem, isa.PCStart+12, isa.Instruction{Op: isa.HaltOp})

	c := emulator.NewCPU(mem)
	require.NoError(t, c.Run())
	assert.EqualValues(t, 0x3039, c.GPR[1])
}

func TestPushPopRoundTrip(t *testing.T) {
	mem := map[uint32]byte{}
	encodeAt(mem, isa.PCStart, isa.Instruction{Op: isa.StoreOp | isa.StoreMod2, A: isa.SPReg, C: 1, D: -4})
	encodeAt(mem, isa.PCStart+4, isa.Instruction{Op: isa.LoadOp | isa.LoadMod3, A: 2, B: isa.SPReg, D: 4})
	encodeAt(mem, isa.PCStart+8, isa.Instruction{Op: isa.HaltOp})

	c := emulator.NewCPU(mem)
	c.GPR[isa.SPReg] = 0x41000000
	c.GPR[1] = 0xdeadbeef
	require.NoError(t, c.Run())
	assert.EqualValues(t, 0xdeadbeef, c.GPR[2])
	assert.EqualValues(t, 0x41000000, c.GPR[isa.SPReg])
}

func TestCallAndReturn(t *testing.T) {
	mem := map[uint32]byte{}
	// call r1 (target absolute via A=1,B=0,D=0)
	encodeAt(mem, isa.PCStart, isa.Instruction{Op: isa.CallOp | isa.CallMod0, A: 1})
	encodeAt(mem, isa.PCStart+4, isa.Instruction{Op: isa.HaltOp})
	// subroutine: pop pc (ret)
	encodeAt(mem, isa.PCStart+0x100, isa.Instruction{Op: isa.LoadOp | isa.LoadMod3, A: isa.PCReg, B: isa.SPReg, D: 4})

	c := emulator.NewCPU(mem)
	c.GPR[isa.SPReg] = 0x41000000
	c.GPR[1] = isa.PCStart + 0x100
	require.NoError(t, c.Run())
	assert.Equal(t, isa.PCStart+8, c.GPR[isa.PCReg])
}

func TestJumpMod3SignedComparison(t *testing.T) {
	mem := map[uint32]byte{}
	encodeAt(mem, isa.PCStart, isa.Instruction{Op: isa.JumpOp | isa.JmpMod3, A: 1, B: 2, C: 3, D: 8})
	encodeAt(mem, isa.PCStart+4, isa.Instruction{Op: isa.HaltOp})
	encodeAt(mem, isa.PCStart+8, isa.Instruction{Op: isa.HaltOp})

	c := emulator.NewCPU(mem)
	c.GPR[1] = isa.PCStart
	c.GPR[2] = 1
	c.GPR[3] = 0xFFFFFFFF // -1 as signed, so 1 > -1 is true
	require.NoError(t, c.Run())
	assert.Equal(t, isa.PCStart+8+4, c.GPR[isa.PCReg])
}

func TestDivideByZeroIsFatal(t *testing.T) {
	mem := map[uint32]byte{}
	encodeAt(mem, isa.PCStart, isa.Instruction{Op: isa.AritOp | isa.DivMod, A: 1, B: 2, C: 3})

	c := emulator.NewCPU(mem)
	c.GPR[2] = 10
	c.GPR[3] = 0
	assert.Error(t, c.Run())
}

func TestUnmappedMemoryReadIsFatal(t *testing.T) {
	c := emulator.NewCPU(map[uint32]byte{})
	assert.Error(t, c.Run())
}

func TestDumpRegistersFormat(t *testing.T) {
	mem := map[uint32]byte{}
	encodeAt(mem, isa.PCStart, isa.Instruction{Op: isa.HaltOp})
	c := emulator.NewCPU(mem)
	require.NoError(t, c.Run())

	dump := c.DumpRegisters()
	assert.Contains(t, dump, "r0=0x00000000")
	assert.Contains(t, dump, "r15=0x")
}
