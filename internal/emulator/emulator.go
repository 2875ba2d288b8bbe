// Package emulator implements the fetch/decode/execute loop described in
// §4.3: a flat, sparse memory model and a 16-register general file plus a
// 3-register control/status file, executing the mode-dispatched
// HALT/INT/CALL/JUMP/XCHG/ARIT/LOGIC/SHIFT/STORE/LOAD families.
//
// Grounded on pkg/hw/cpu/interpreter/interpreter.go's fetch/execute
// dispatch shape and on original_source/src/emulator.cpp for per-family
// semantics.
package emulator

import (
	"errors"
	"fmt"

	"github.com/Manu343726/teaching-isa/internal/isa"
	"github.com/Manu343726/teaching-isa/pkg/utils"
)

var (
	ErrUnmappedMemory      = errors.New("read from unmapped memory address")
	ErrUnknownOpcodeFamily = errors.New("unknown opcode family")
	ErrDivideByZero        = errors.New("division by zero")
)

// CPU holds the full architectural state: the 16 general registers
// (r15 is the program counter), the 3 control/status registers, and
// the sparse byte-addressed memory.
type CPU struct {
	GPR [16]uint32
	CSR [3]uint32
	Mem map[uint32]byte

	halted bool
}

// NewCPU returns a CPU in its reset state: r0..r14 and all CSRs zero,
// pc (r15) set to isa.PCStart, memory loaded from mem.
func NewCPU(mem map[uint32]byte) *CPU {
	c := &CPU{Mem: mem}
	if c.Mem == nil {
		c.Mem = make(map[uint32]byte)
	}
	c.GPR[isa.PCReg] = isa.PCStart
	return c
}

func (c *CPU) pc() uint32     { return c.GPR[isa.PCReg] }
func (c *CPU) setPC(v uint32) { c.GPR[isa.PCReg] = v }

// readByte reads one byte from memory, failing on an unmapped address.
func (c *CPU) readByte(addr uint32) (byte, error) {
	b, ok := c.Mem[addr]
	if !ok {
		return 0, utils.MakeError(ErrUnmappedMemory, "address 0x%08x", addr)
	}
	return b, nil
}

// readWord reads a little-endian 32-bit word starting at addr.
func (c *CPU) readWord(addr uint32) (uint32, error) {
	var v uint32
	for i := uint32(0); i < 4; i++ {
		b, err := c.readByte(addr + i)
		if err != nil {
			return 0, err
		}
		v |= uint32(b) << (8 * i)
	}
	return v, nil
}

// writeWord writes v little-endian starting at addr, allocating any
// previously-unmapped byte.
func (c *CPU) writeWord(addr, v uint32) {
	for i := uint32(0); i < 4; i++ {
		c.Mem[addr+i] = byte(v >> (8 * i))
	}
}

func (c *CPU) fetch() (isa.Instruction, error) {
	var raw [4]byte
	for i := range raw {
		b, err := c.readByte(c.pc() + uint32(i))
		if err != nil {
			return isa.Instruction{}, err
		}
		raw[i] = b
	}
	c.setPC(c.pc() + isa.InstructionSize)
	return isa.Decode(raw), nil
}

func (c *CPU) push(v uint32) {
	c.GPR[isa.SPReg] -= 4
	c.writeWord(c.GPR[isa.SPReg], v)
}

func (c *CPU) pop() (uint32, error) {
	v, err := c.readWord(c.GPR[isa.SPReg])
	if err != nil {
		return 0, err
	}
	c.GPR[isa.SPReg] += 4
	return v, nil
}

// Run executes fetch/decode/execute until a HALT instruction is reached
// or an error occurs.
func (c *CPU) Run() error {
	for {
		halted, err := c.Step()
		if err != nil || halted {
			return err
		}
	}
}

// Step performs a single fetch/decode/execute cycle, returning true once
// the CPU has halted. It is the unit Run loops over, and is also what the
// emulator's --max-steps/--trace debugging aids and the emudbg single-step
// inspector (§5, §11) drive directly.
func (c *CPU) Step() (bool, error) {
	if c.halted {
		return true, nil
	}
	ins, err := c.fetch()
	if err != nil {
		return false, err
	}
	if err := c.execute(ins); err != nil {
		return false, err
	}
	return c.halted, nil
}

// Halted reports whether the CPU has executed a HALT instruction.
func (c *CPU) Halted() bool {
	return c.halted
}

func (c *CPU) execute(ins isa.Instruction) error {
	switch ins.Family() {
	case isa.HaltOp:
		c.halted = true
		return nil
	case isa.IntOp:
		return c.execInt()
	case isa.CallOp:
		return c.execCall(ins)
	case isa.JumpOp:
		return c.execJump(ins)
	case isa.XchgOp:
		c.GPR[ins.B], c.GPR[ins.C] = c.GPR[ins.C], c.GPR[ins.B]
		return nil
	case isa.AritOp:
		return c.execArit(ins)
	case isa.LogicOp:
		c.execLogic(ins)
		return nil
	case isa.ShiftOp:
		c.execShift(ins)
		return nil
	case isa.StoreOp:
		return c.execStore(ins)
	case isa.LoadOp:
		return c.execLoad(ins)
	default:
		return utils.MakeError(ErrUnknownOpcodeFamily, "opcode 0x%02x", ins.Op)
	}
}

func (c *CPU) execInt() error {
	c.push(c.CSR[isa.StatusReg])
	c.push(c.pc())
	c.CSR[isa.CauseReg] = 4
	c.CSR[isa.StatusReg] &^= 1
	c.setPC(c.CSR[isa.HandlerReg])
	return nil
}

func (c *CPU) execCall(ins isa.Instruction) error {
	target := c.GPR[ins.A] + c.GPR[ins.B] + uint32(ins.D)
	switch ins.Mode() {
	case isa.CallMod0:
		c.push(c.pc())
		c.setPC(target)
		return nil
	case isa.CallMod1:
		addr, err := c.readWord(target)
		if err != nil {
			return err
		}
		c.push(c.pc())
		c.setPC(addr)
		return nil
	default:
		return utils.MakeError(ErrUnknownOpcodeFamily, "CALL mode 0x%x", ins.Mode())
	}
}

func (c *CPU) execJump(ins isa.Instruction) error {
	mode := ins.Mode()
	cond, ok := func() (bool, bool) {
		switch mode {
		case isa.JmpMod0, isa.JmpMod4:
			return true, true
		case isa.JmpMod1, isa.JmpMod5:
			return c.GPR[ins.B] == c.GPR[ins.C], true
		case isa.JmpMod2, isa.JmpMod6:
			return c.GPR[ins.B] != c.GPR[ins.C], true
		case isa.JmpMod3, isa.JmpMod7:
			return int32(c.GPR[ins.B]) > int32(c.GPR[ins.C]), true
		default:
			return false, false
		}
	}()
	if !ok {
		return utils.MakeError(ErrUnknownOpcodeFamily, "JUMP mode 0x%x", mode)
	}
	if !cond {
		return nil
	}

	target := c.GPR[ins.A] + uint32(ins.D)
	if mode >= isa.JmpMod4 {
		addr, err := c.readWord(target)
		if err != nil {
			return err
		}
		c.setPC(addr)
		return nil
	}
	c.setPC(target)
	return nil
}

func (c *CPU) execArit(ins isa.Instruction) error {
	b, cc := c.GPR[ins.B], c.GPR[ins.C]
	switch ins.Mode() {
	case isa.AddMod:
		c.GPR[ins.A] = b + cc
	case isa.SubMod:
		c.GPR[ins.A] = b - cc
	case isa.MulMod:
		c.GPR[ins.A] = b * cc
	case isa.DivMod:
		if cc == 0 {
			return utils.MakeError(ErrDivideByZero, "gpr[%d]/gpr[%d]", ins.B, ins.C)
		}
		c.GPR[ins.A] = b / cc
	default:
		return utils.MakeError(ErrUnknownOpcodeFamily, "ARIT mode 0x%x", ins.Mode())
	}
	return nil
}

func (c *CPU) execLogic(ins isa.Instruction) {
	b, cc := c.GPR[ins.B], c.GPR[ins.C]
	switch ins.Mode() {
	case isa.NotMod:
		c.GPR[ins.A] = ^b
	case isa.AndMod:
		c.GPR[ins.A] = b & cc
	case isa.OrMod:
		c.GPR[ins.A] = b | cc
	case isa.XorMod:
		c.GPR[ins.A] = b ^ cc
	}
}

func (c *CPU) execShift(ins isa.Instruction) {
	b, cc := c.GPR[ins.B], c.GPR[ins.C]
	switch ins.Mode() {
	case isa.ShlMod:
		c.GPR[ins.A] = b << cc
	case isa.ShrMod:
		c.GPR[ins.A] = b >> cc
	}
}

func (c *CPU) execStore(ins isa.Instruction) error {
	switch ins.Mode() {
	case isa.StoreMod0:
		c.writeWord(c.GPR[ins.A]+c.GPR[ins.B]+uint32(ins.D), c.GPR[ins.C])
		return nil
	case isa.StoreMod1:
		addr, err := c.readWord(c.GPR[ins.A] + c.GPR[ins.B] + uint32(ins.D))
		if err != nil {
			return err
		}
		c.writeWord(addr, c.GPR[ins.C])
		return nil
	case isa.StoreMod2:
		c.GPR[ins.A] += uint32(ins.D)
		c.writeWord(c.GPR[ins.A], c.GPR[ins.C])
		return nil
	default:
		return utils.MakeError(ErrUnknownOpcodeFamily, "STORE mode 0x%x", ins.Mode())
	}
}

func (c *CPU) execLoad(ins isa.Instruction) error {
	switch ins.Mode() {
	case isa.LoadMod0:
		c.GPR[ins.A] = c.CSR[ins.B]
	case isa.LoadMod1:
		c.GPR[ins.A] = c.GPR[ins.B] + uint32(ins.D)
	case isa.LoadMod2:
		v, err := c.readWord(c.GPR[ins.B] + c.GPR[ins.C] + uint32(ins.D))
		if err != nil {
			return err
		}
		c.GPR[ins.A] = v
	case isa.LoadMod3:
		v, err := c.readWord(c.GPR[ins.B])
		if err != nil {
			return err
		}
		c.GPR[ins.A] = v
		c.GPR[ins.B] += uint32(ins.D)
	case isa.LoadMod4:
		c.CSR[ins.A] = c.GPR[ins.B]
	case isa.LoadMod5:
		c.CSR[ins.A] = c.CSR[ins.B] | uint32(ins.D)
	case isa.LoadMod6:
		v, err := c.readWord(c.GPR[ins.B] + c.GPR[ins.C] + uint32(ins.D))
		if err != nil {
			return err
		}
		c.CSR[ins.A] = v
	case isa.LoadMod7:
		v, err := c.readWord(c.GPR[ins.B])
		if err != nil {
			return err
		}
		c.CSR[ins.A] = v
		c.GPR[ins.B] += uint32(ins.D)
	default:
		return utils.MakeError(ErrUnknownOpcodeFamily, "LOAD mode 0x%x", ins.Mode())
	}
	return nil
}

// DumpRegisters formats the 16 general registers as described in §6:
// four per line, each `rN=0xHHHHHHHH`.
func (c *CPU) DumpRegisters() string {
	var out string
	for i := 0; i < 16; i++ {
		out += fmt.Sprintf("r%d=0x%08x", i, c.GPR[i])
		if i%4 == 3 {
			out += "\n"
		} else {
			out += " "
		}
	}
	return out
}
