// Package emudbg is a small interactive register/memory inspector built
// directly on internal/emulator. It is an additive debugging convenience
// (§11 of the specification): none of the three mandated binaries depend
// on it, and its absence never affects §4-§8 behaviour.
//
// The event/step model (load, step, halt, error) is grounded on
// pkg/hw/cpu/debugger's DebugEvent enum and controller step loop; the
// register/memory colour coding follows cmd/cpu/debug.go's colorReg/
// colorPC/colorHex conventions, re-expressed as tview colour tags (added
// by cmd/emudbg around these plain lines) since this inspector renders
// through a TUI rather than a REPL.
package emudbg

import (
	"fmt"
	"sort"

	"github.com/Manu343726/teaching-isa/internal/emulator"
)

// Event mirrors the teacher debugger's DebugEvent enum, trimmed to what a
// single CPU core with no breakpoints/watchpoints/source map can actually
// produce.
type Event int

const (
	EventStepped Event = iota
	EventHalted
	EventError
)

func (e Event) String() string {
	switch e {
	case EventStepped:
		return "stepped"
	case EventHalted:
		return "halted"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}

// Inspector wraps a *emulator.CPU with the bookkeeping the TUI needs:
// a step counter and the set of memory addresses the memory view shows.
// That set holds every address of the loaded image plus the 4 bytes of
// each fetched instruction; bytes a store writes to a previously unmapped
// address are not added to it.
type Inspector struct {
	CPU     *emulator.CPU
	Steps   int
	touched map[uint32]bool
}

// New wraps mem in a fresh CPU and inspector.
func New(mem map[uint32]byte) *Inspector {
	touched := make(map[uint32]bool, len(mem))
	for addr := range mem {
		touched[addr] = true
	}
	return &Inspector{CPU: emulator.NewCPU(mem), touched: touched}
}

// Step executes one fetch/decode/execute cycle and reports what happened.
func (ins *Inspector) Step() Event {
	pcBefore := ins.CPU.GPR[15]
	halted, err := ins.CPU.Step()
	ins.Steps++
	for addr := pcBefore; addr < pcBefore+4; addr++ {
		ins.touched[addr] = true
	}
	if err != nil {
		return EventError
	}
	if halted {
		return EventHalted
	}
	return EventStepped
}

// RegisterLines formats the 16 general registers four per line, then one
// line with the 3 CSRs. The layout differs from the emulator binary's
// dump: hex digits are upper-case, register names are padded to a fixed
// width, and the CSR line is extra.
func (ins *Inspector) RegisterLines() []string {
	var lines []string
	for i := 0; i < 16; i += 4 {
		lines = append(lines, fmt.Sprintf("r%-2d=0x%08X  r%-2d=0x%08X  r%-2d=0x%08X  r%-2d=0x%08X",
			i, ins.CPU.GPR[i], i+1, ins.CPU.GPR[i+1], i+2, ins.CPU.GPR[i+2], i+3, ins.CPU.GPR[i+3]))
	}
	lines = append(lines, fmt.Sprintf("status=0x%08X  handler=0x%08X  cause=0x%08X",
		ins.CPU.CSR[0], ins.CPU.CSR[1], ins.CPU.CSR[2]))
	return lines
}

// MemoryLines formats every touched, mapped address in ascending order,
// one byte per line (`AAAAAAAA: BB`); bytes are not grouped into the
// 8-byte lines the linker's hex-image grammar uses.
func (ins *Inspector) MemoryLines() []string {
	addrs := make([]uint32, 0, len(ins.touched))
	for a := range ins.touched {
		addrs = append(addrs, a)
	}
	sort.Slice(addrs, func(i, j int) bool { return addrs[i] < addrs[j] })

	var lines []string
	for _, a := range addrs {
		if v, ok := ins.CPU.Mem[a]; ok {
			lines = append(lines, fmt.Sprintf("%08X: %02X", a, v))
		}
	}
	return lines
}
