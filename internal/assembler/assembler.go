// Package assembler implements the code-generation and literal-pool
// back-patching engine described in §4.1: the front end (internal/asmtext,
// or any other driver) calls one method per directive or instruction, in
// source order, and the Assembler grows a *obj.File.
//
// Grounded on original_source/src/assembler.cpp; the public method set is
// the Assembler class interface in original_source/inc/assembler.hpp.
package assembler

import (
	"errors"

	"github.com/Manu343726/teaching-isa/internal/isa"
	"github.com/Manu343726/teaching-isa/internal/obj"
	"github.com/Manu343726/teaching-isa/pkg/utils"
)

var (
	ErrLabelRedefined   = errors.New("label already defined")
	ErrOffsetOutOfRange = errors.New("displacement does not fit in 12 signed bits")
)

// Assembler holds the per-file assembly state: the in-progress object
// file, the current section and the location counter within it.
type Assembler struct {
	file            *obj.File
	currentSection  int
	locationCounter uint32
}

// New returns an Assembler ready to assemble a file named name (used only
// for diagnostics), pre-seeded with the UND section at index 0.
func New(name string) *Assembler {
	return &Assembler{
		file:           obj.NewFile(name),
		currentSection: 0,
	}
}

// File returns the object file under construction. Valid to call at any
// point, but only fully resolved after End().
func (a *Assembler) File() *obj.File {
	return a.file
}

func (a *Assembler) section() *obj.Section {
	return &a.file.Sections[a.currentSection]
}

func (a *Assembler) getSymbolID(name string) int {
	return a.file.FindSymbol(name)
}

func (a *Assembler) addSymbol(name string) int {
	a.file.Symbols = append(a.file.Symbols, obj.Symbol{Name: name})
	return len(a.file.Symbols) - 1
}

func (a *Assembler) addReloc(name string, offset uint32) error {
	id := a.getSymbolID(name)
	if id == -1 {
		return utils.MakeError(obj.ErrUndefinedSymbol, "symbol %q is not in the table", name)
	}
	sec := a.section()
	sec.Relocations = append(sec.Relocations, obj.Relocation{Offset: offset, SymbolID: id})
	return nil
}

// fill appends 4 raw bytes to the current section and advances the
// location counter by 4 (the fixed instruction size).
func (a *Assembler) fill(b0, b1, b2, b3 byte) {
	sec := a.section()
	sec.Bytes = append(sec.Bytes, b0, b1, b2, b3)
	a.locationCounter += isa.InstructionSize
}

func (a *Assembler) emit(ins isa.Instruction) {
	bytes := isa.Encode(ins)
	a.fill(bytes[0], bytes[1], bytes[2], bytes[3])
}

// Global declares name as a global symbol, creating an undefined row if
// it is new. Extern behaves identically (spec §9: both directives are
// observably the same in the source this was distilled from).
func (a *Assembler) Global(name string) {
	if a.getSymbolID(name) == -1 {
		id := a.addSymbol(name)
		a.file.Symbols[id].Global = true
	}
}

// Extern is observably identical to Global; see the Global doc comment.
func (a *Assembler) Extern(name string) {
	a.Global(name)
}

// Section opens a fresh section and resets the location counter to zero.
// A section's size is just len(Bytes), so there is nothing to separately
// commit when switching away from the previous one.
func (a *Assembler) Section(name string) {
	a.locationCounter = 0
	a.currentSection = len(a.file.Sections)
	a.file.Sections = append(a.file.Sections, obj.Section{Name: name})
}

// Word emits a literal 4-byte value.
func (a *Assembler) Word(literal int32) {
	v := uint32(literal)
	a.fill(byte(v), byte(v>>8), byte(v>>16), byte(v>>24))
}

// WordSymbol emits a 4-byte placeholder for a symbolic word. When name is
// new it is created but, matching the source's observable (buggy)
// behaviour documented in spec §9, no relocation is emitted for that slot
// — the four bytes stay zero. When name is already known, a relocation is
// emitted against it.
func (a *Assembler) WordSymbol(name string) error {
	if a.getSymbolID(name) == -1 {
		a.addSymbol(name)
	} else if err := a.addReloc(name, a.locationCounter); err != nil {
		return err
	}

	a.fill(0, 0, 0, 0)
	return nil
}

// Skip emits n zero bytes without treating them as an instruction.
func (a *Assembler) Skip(n int) {
	sec := a.section()
	sec.Bytes = append(sec.Bytes, make([]byte, n)...)
	a.locationCounter += uint32(n)
}

// End commits the final section's size (implicit in Bytes), then injects
// one symbol-table row per section (including UND) at the front of the
// symbol table, in section-table order, and shifts every relocation's
// SymbolID by the number of rows inserted — so existing relocations keep
// referencing the same (now shifted) symbols.
func (a *Assembler) End() {
	add := len(a.file.Sections)

	sectionSymbols := make([]obj.Symbol, add)
	for i, sec := range a.file.Sections {
		sectionSymbols[i] = obj.Symbol{
			Name:      sec.Name,
			SectionID: i,
			IsSection: true,
			Resolved:  true,
		}
	}

	a.file.Symbols = append(sectionSymbols, a.file.Symbols...)

	for i := range a.file.Sections {
		for j := range a.file.Sections[i].Relocations {
			a.file.Sections[i].Relocations[j].SymbolID += add
		}
	}

	a.locationCounter = 0
}

// Label defines name at the current location counter in the current
// section, creating the symbol if it is new. Redefining a symbol that
// already has a nonzero section id is fatal.
func (a *Assembler) Label(name string) error {
	id := a.getSymbolID(name)
	if id == -1 {
		id = a.addSymbol(name)
	} else if a.file.Symbols[id].SectionID != 0 {
		return utils.MakeError(ErrLabelRedefined, "label %q is already defined", name)
	}

	a.file.Symbols[id].Value = a.locationCounter
	a.file.Symbols[id].SectionID = a.currentSection
	return nil
}

// Halt emits the HALT instruction.
func (a *Assembler) Halt() {
	a.emit(isa.Instruction{Op: isa.HaltOp})
}

// Int emits the INT instruction.
func (a *Assembler) Int() {
	a.emit(isa.Instruction{Op: isa.IntOp})
}

// Iret expands to three instructions: sp += 8, then status = mem32[sp-4],
// then pc = mem32[sp-8], so status is restored before control leaves the
// handler.
func (a *Assembler) Iret() {
	a.emit(isa.Instruction{Op: isa.LoadOp | isa.LoadMod1, A: isa.SPReg, B: isa.SPReg, D: 8})
	a.emit(isa.Instruction{Op: isa.LoadOp | isa.LoadMod6, A: isa.StatusReg, B: isa.SPReg, D: -4})
	a.emit(isa.Instruction{Op: isa.LoadOp | isa.LoadMod2, A: isa.PCReg, B: isa.SPReg, D: -8})
}

// Call pushes pc, then jumps to target, either inline (fits 12 bits) or
// through a pool-mode memory indirection.
func (a *Assembler) Call(target int32) {
	a.poolOrInline(target,
		isa.CallOp, isa.CallMod0, 0, 0, 0,
		isa.CallOp, isa.CallMod1, isa.PCReg, 0, 0)
}

// CallSymbol pushes pc, then jumps to the (always pooled) address of name.
func (a *Assembler) CallSymbol(name string) error {
	a.ensureSymbol(name)
	return a.poolSymbol(isa.CallOp, isa.CallMod1, isa.PCReg, 0, 0, name)
}

// Ret pops pc.
func (a *Assembler) Ret() {
	a.Pop(isa.PCReg)
}

// Jmp unconditionally sets pc to target.
func (a *Assembler) Jmp(target int32) {
	a.poolOrInline(target,
		isa.JumpOp, isa.JmpMod0, 0, 0, 0,
		isa.JumpOp, isa.JmpMod4, isa.PCReg, 0, 0)
}

// JmpSymbol unconditionally sets pc to the (always pooled) address of name.
func (a *Assembler) JmpSymbol(name string) error {
	a.ensureSymbol(name)
	return a.poolSymbol(isa.JumpOp, isa.JmpMod4, isa.PCReg, 0, 0, name)
}

// Beq sets pc to target if gpr1 == gpr2.
func (a *Assembler) Beq(gpr1, gpr2 byte, target int32) {
	a.poolOrInline(target,
		isa.JumpOp, isa.JmpMod1, 0, gpr1, gpr2,
		isa.JumpOp, isa.JmpMod5, isa.PCReg, gpr1, gpr2)
}

// BeqSymbol sets pc to the (always pooled) address of name if gpr1 == gpr2.
func (a *Assembler) BeqSymbol(gpr1, gpr2 byte, name string) error {
	a.ensureSymbol(name)
	return a.poolSymbol(isa.JumpOp, isa.JmpMod5, isa.PCReg, gpr1, gpr2, name)
}

// Bne sets pc to target if gpr1 != gpr2.
func (a *Assembler) Bne(gpr1, gpr2 byte, target int32) {
	a.poolOrInline(target,
		isa.JumpOp, isa.JmpMod2, 0, gpr1, gpr2,
		isa.JumpOp, isa.JmpMod6, isa.PCReg, gpr1, gpr2)
}

// BneSymbol sets pc to the (always pooled) address of name if gpr1 != gpr2.
func (a *Assembler) BneSymbol(gpr1, gpr2 byte, name string) error {
	a.ensureSymbol(name)
	return a.poolSymbol(isa.JumpOp, isa.JmpMod6, isa.PCReg, gpr1, gpr2, name)
}

// Bgt sets pc to target if (signed) gpr1 > gpr2.
func (a *Assembler) Bgt(gpr1, gpr2 byte, target int32) {
	a.poolOrInline(target,
		isa.JumpOp, isa.JmpMod3, 0, gpr1, gpr2,
		isa.JumpOp, isa.JmpMod7, isa.PCReg, gpr1, gpr2)
}

// BgtSymbol sets pc to the (always pooled) address of name if
// (signed) gpr1 > gpr2.
func (a *Assembler) BgtSymbol(gpr1, gpr2 byte, name string) error {
	a.ensureSymbol(name)
	return a.poolSymbol(isa.JumpOp, isa.JmpMod7, isa.PCReg, gpr1, gpr2, name)
}

// Push decrements sp by 4 then stores gpr at [sp] (pre-decrement push).
func (a *Assembler) Push(gpr byte) {
	a.emit(isa.Instruction{Op: isa.StoreOp | isa.StoreMod2, A: isa.SPReg, B: 0, C: gpr, D: -4})
}

// Pop loads gpr from [sp] then increments sp by 4 (post-increment pop).
func (a *Assembler) Pop(gpr byte) {
	a.emit(isa.Instruction{Op: isa.LoadOp | isa.LoadMod3, A: gpr, B: isa.SPReg, D: 4})
}

// Xchg swaps gpr1 and gpr2.
func (a *Assembler) Xchg(gpr1, gpr2 byte) {
	a.emit(isa.Instruction{Op: isa.XchgOp, A: 0, B: gpr1, C: gpr2})
}

// Add sets gprD = gprD + gprS.
func (a *Assembler) Add(gprS, gprD byte) { a.arit(isa.AddMod, gprS, gprD) }

// Sub sets gprD = gprD - gprS.
func (a *Assembler) Sub(gprS, gprD byte) { a.arit(isa.SubMod, gprS, gprD) }

// Mul sets gprD = gprD * gprS.
func (a *Assembler) Mul(gprS, gprD byte) { a.arit(isa.MulMod, gprS, gprD) }

// Div sets gprD = gprD / gprS.
func (a *Assembler) Div(gprS, gprD byte) { a.arit(isa.DivMod, gprS, gprD) }

func (a *Assembler) arit(mode, gprS, gprD byte) {
	a.emit(isa.Instruction{Op: isa.AritOp | mode, A: gprD, B: gprD, C: gprS})
}

// Not sets gpr = ~gpr.
func (a *Assembler) Not(gpr byte) {
	a.emit(isa.Instruction{Op: isa.LogicOp | isa.NotMod, A: gpr, B: gpr})
}

// And sets gprD = gprD & gprS.
func (a *Assembler) And(gprS, gprD byte) { a.logic(isa.AndMod, gprS, gprD) }

// Or sets gprD = gprD | gprS.
func (a *Assembler) Or(gprS, gprD byte) { a.logic(isa.OrMod, gprS, gprD) }

// Xor sets gprD = gprD ^ gprS.
func (a *Assembler) Xor(gprS, gprD byte) { a.logic(isa.XorMod, gprS, gprD) }

func (a *Assembler) logic(mode, gprS, gprD byte) {
	a.emit(isa.Instruction{Op: isa.LogicOp | mode, A: gprD, B: gprD, C: gprS})
}

// Shl sets gprD = gprD << gprS.
func (a *Assembler) Shl(gprS, gprD byte) { a.shift(isa.ShlMod, gprS, gprD) }

// Shr sets gprD = gprD >> gprS.
func (a *Assembler) Shr(gprS, gprD byte) { a.shift(isa.ShrMod, gprS, gprD) }

func (a *Assembler) shift(mode, gprS, gprD byte) {
	a.emit(isa.Instruction{Op: isa.ShiftOp | mode, A: gprD, B: gprD, C: gprS})
}

// LdImm sets gprD = literal, inline if it fits 12 signed bits, otherwise
// through a pooled literal.
func (a *Assembler) LdImm(literal int32, gprD byte) {
	a.poolOrInline(literal,
		isa.LoadOp, isa.LoadMod1, gprD, 0, 0,
		isa.LoadOp, isa.LoadMod2, gprD, 0, isa.PCReg)
}

// LdImmSymbol sets gprD = the (always pooled) address of name.
func (a *Assembler) LdImmSymbol(name string, gprD byte) error {
	a.ensureSymbol(name)
	return a.poolSymbol(isa.LoadOp, isa.LoadMod2, gprD, 0, isa.PCReg, name)
}

// LdRegDir sets gprD = gprS (register-direct; reuses the LOAD_MOD1
// "gpr[A] <- gpr[B]+sxt(D)" family with D=0).
func (a *Assembler) LdRegDir(gprS, gprD byte) {
	a.emit(isa.Instruction{Op: isa.LoadOp | isa.LoadMod1, A: gprD, B: gprS})
}

// LdRegInd sets gprD = mem32[gprS] (register-indirect, no offset).
func (a *Assembler) LdRegInd(gprS, gprD byte) {
	a.emit(isa.Instruction{Op: isa.LoadOp | isa.LoadMod2, A: gprD, B: gprS})
}

// LdRegIndOff sets gprD = mem32[gprS+offset]. offset must fit in 12
// signed bits; this addressing mode never pools.
func (a *Assembler) LdRegIndOff(gprS byte, offset int32, gprD byte) error {
	if !isa.FitsSigned12(int64(offset)) {
		return utils.MakeError(ErrOffsetOutOfRange, "offset %d does not fit in 12 signed bits", offset)
	}
	a.emit(isa.Instruction{Op: isa.LoadOp | isa.LoadMod2, A: gprD, B: gprS, D: offset})
	return nil
}

// LdMemDir sets gprD = mem32[address]: a single instruction when address
// fits 12 signed bits (using the r0 pseudo-zero-register convention for
// both base fields), otherwise a pooled address load followed by an
// explicit dereference.
func (a *Assembler) LdMemDir(address int32, gprD byte) {
	if isa.FitsSigned12(int64(address)) {
		a.emit(isa.Instruction{Op: isa.LoadOp | isa.LoadMod2, A: gprD, D: address})
		return
	}

	a.poolLiteralRaw(isa.LoadOp, isa.LoadMod2, gprD, isa.PCReg, 0, address)
	a.LdRegInd(gprD, gprD)
}

// LdMemDirSymbol sets gprD = mem32[address-of name]: the address is
// always pooled, then dereferenced.
func (a *Assembler) LdMemDirSymbol(name string, gprD byte) error {
	a.ensureSymbol(name)
	if err := a.poolSymbol(isa.LoadOp, isa.LoadMod2, gprD, isa.PCReg, 0, name); err != nil {
		return err
	}
	a.LdRegInd(gprD, gprD)
	return nil
}

// StMemDir sets mem32[address] = gprS, inline if address fits 12 signed
// bits, otherwise through a pooled double-indirect store.
func (a *Assembler) StMemDir(gprS byte, address int32) {
	a.poolOrInline(address,
		isa.StoreOp, isa.StoreMod0, 0, 0, gprS,
		isa.StoreOp, isa.StoreMod1, isa.PCReg, 0, gprS)
}

// StMemDirSymbol sets mem32[address-of name] = gprS; always pooled.
func (a *Assembler) StMemDirSymbol(gprS byte, name string) error {
	a.ensureSymbol(name)
	return a.poolSymbol(isa.StoreOp, isa.StoreMod1, isa.PCReg, 0, gprS, name)
}

// StRegInd sets mem32[gprD] = gprS.
func (a *Assembler) StRegInd(gprS, gprD byte) {
	a.emit(isa.Instruction{Op: isa.StoreOp | isa.StoreMod0, B: gprD, C: gprS})
}

// StRegIndOff sets mem32[gprD+offset] = gprS. offset must fit in 12
// signed bits; this addressing mode never pools.
func (a *Assembler) StRegIndOff(gprS, gprD byte, offset int32) error {
	if !isa.FitsSigned12(int64(offset)) {
		return utils.MakeError(ErrOffsetOutOfRange, "offset %d does not fit in 12 signed bits", offset)
	}
	a.emit(isa.Instruction{Op: isa.StoreOp | isa.StoreMod0, B: gprD, C: gprS, D: offset})
	return nil
}

// Csrrd sets gprD = csr[csrS].
func (a *Assembler) Csrrd(csrS, gprD byte) {
	a.emit(isa.Instruction{Op: isa.LoadOp | isa.LoadMod0, A: gprD, B: csrS})
}

// Csrwr sets csr[csrD] = gprS.
func (a *Assembler) Csrwr(gprS, csrD byte) {
	a.emit(isa.Instruction{Op: isa.LoadOp | isa.LoadMod4, A: csrD, B: gprS})
}

func (a *Assembler) ensureSymbol(name string) {
	if a.getSymbolID(name) == -1 {
		a.addSymbol(name)
	}
}
