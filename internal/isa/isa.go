// Package isa holds the opcode, mode and register constants shared by the
// assembler, linker and emulator cores, plus the 4-byte instruction codec.
//
// Constants are grounded bit-for-bit on original_source/inc/util.hpp; they
// are not an independent design and must not be renumbered.
package isa

import (
	"github.com/Manu343726/teaching-isa/pkg/utils"
)

// Opcode family, high nibble of the opcode byte.
const (
	HaltOp  byte = 0x00
	IntOp   byte = 0x10
	CallOp  byte = 0x20
	JumpOp  byte = 0x30
	XchgOp  byte = 0x40
	AritOp  byte = 0x50
	LogicOp byte = 0x60
	ShiftOp byte = 0x70
	StoreOp byte = 0x80
	LoadOp  byte = 0x90
)

// FamilyMask isolates the opcode family from a full opcode byte.
const FamilyMask byte = 0xF0

// Call modes.
const (
	CallMod0 byte = 0x0
	CallMod1 byte = 0x1
)

// Jump modes. The mem-indirect variants (4-7) are not contiguous with
// the register-direct variants (0-3): they reproduce the original ISA's
// bit pattern (0x8..0xB) rather than a clean 4,5,6,7 run.
const (
	JmpMod0 byte = 0x0
	JmpMod1 byte = 0x1
	JmpMod2 byte = 0x2
	JmpMod3 byte = 0x3
	JmpMod4 byte = 0x8
	JmpMod5 byte = 0x9
	JmpMod6 byte = 0xA
	JmpMod7 byte = 0xB
)

// Arithmetic modes.
const (
	AddMod byte = 0x0
	SubMod byte = 0x1
	MulMod byte = 0x2
	DivMod byte = 0x3
)

// Logic modes.
const (
	NotMod byte = 0x0
	AndMod byte = 0x1
	OrMod  byte = 0x2
	XorMod byte = 0x3
)

// Shift modes.
const (
	ShlMod byte = 0x0
	ShrMod byte = 0x1
)

// Store modes. The values do not follow the names' order: StoreMod1 is 0x2
// and StoreMod2 is 0x1, reproducing the original ISA's bit pattern.
const (
	StoreMod0 byte = 0x0
	StoreMod2 byte = 0x1
	StoreMod1 byte = 0x2
)

// Load modes.
const (
	LoadMod0 byte = 0x0
	LoadMod1 byte = 0x1
	LoadMod2 byte = 0x2
	LoadMod3 byte = 0x3
	LoadMod4 byte = 0x4
	LoadMod5 byte = 0x5
	LoadMod6 byte = 0x6
	LoadMod7 byte = 0x7
)

// General-purpose register indices with architectural roles.
const (
	AccReg byte = 13
	SPReg  byte = 14
	PCReg  byte = 15
)

// Control/status register indices, held in a separate 3-entry file.
const (
	StatusReg  byte = 0
	HandlerReg byte = 1
	CauseReg   byte = 2
)

// PCStart is the program counter's value at emulator reset.
const PCStart uint32 = 0x40000000

// InstructionSize is the fixed width, in bytes, of every encoded instruction.
const InstructionSize = 4

// DMin and DMax bound the signed 12-bit displacement field.
const (
	DMin int32 = -2048
	DMax int32 = 2047
)

// Instruction is the decoded form of one 4-byte instruction word: an 8-bit
// opcode byte (family in the high nibble, mode in the low nibble), three
// 4-bit register fields and a 12-bit signed displacement.
type Instruction struct {
	Op byte
	A  byte
	B  byte
	C  byte
	D  int32 // sign-extended value of the 12-bit D field
}

// Family returns the opcode's high nibble.
func (i Instruction) Family() byte {
	return i.Op & FamilyMask
}

// Mode returns the opcode's low nibble.
func (i Instruction) Mode() byte {
	return i.Op & 0x0F
}

// Encode packs the instruction into its 4-byte wire representation:
// [opcode|mode] [A<<4|B] [C<<4|Dhi4] [Dlo8].
func Encode(ins Instruction) [4]byte {
	d := uint32(ins.D) & 0xFFF

	var hi, lo uint32
	hi = d >> 8
	lo = d & 0xFF

	return [4]byte{
		ins.Op,
		(ins.A << 4) | (ins.B & 0x0F),
		(ins.C << 4) | byte(hi),
		byte(lo),
	}
}

// Decode unpacks a 4-byte instruction word, sign-extending the D field.
func Decode(bytes [4]byte) Instruction {
	op := bytes[0]
	a := bytes[1] >> 4
	b := bytes[1] & 0x0F
	c := bytes[2] >> 4
	dHi := bytes[2] & 0x0F
	dLo := bytes[3]

	raw := (uint32(dHi) << 8) | uint32(dLo)

	return Instruction{
		Op: op,
		A:  a,
		B:  b,
		C:  c,
		D:  SignExtend12(raw),
	}
}

// SignExtend12 interprets the low 12 bits of raw as a two's-complement
// signed integer and sign-extends it to a native int32.
func SignExtend12(raw uint32) int32 {
	var v uint32
	view := utils.CreateBitView(&v)
	view.Write(raw, 0, 12)

	if view.Read(11, 1) != 0 {
		view.SetBits(12, 20)
	}

	return int32(v)
}

// FitsSigned12 reports whether v is representable in the 12-bit signed
// displacement field (the inline-vs-pool threshold).
func FitsSigned12(v int64) bool {
	return v >= int64(DMin) && v <= int64(DMax)
}
