// Package asmtext is the minimal, mechanical line-based front end that
// tokenises assembly source and calls into internal/assembler's directive
// and instruction entry points in source order. The specification treats
// the lexical/grammar front end as an external collaborator and out of
// scope (§1); this driver is a thin, intentionally unambitious stand-in
// grounded on the whitespace/comma splitting style of
// pkg/hw/cpu/mc/instructionresolver.go's parseInstructionText, just
// enough to make the asm binary runnable end to end. It does not attempt
// macro expansion or expression evaluation.
package asmtext

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/Manu343726/teaching-isa/internal/assembler"
)

// Assemble reads line-oriented assembly source from r and drives a into
// building the corresponding object file.
func Assemble(r io.Reader, a *assembler.Assembler) error {
	scanner := bufio.NewScanner(r)
	lineNo := 0

	for scanner.Scan() {
		lineNo++
		line := stripComment(scanner.Text())
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if err := safeAssembleLine(a, line); err != nil {
			return fmt.Errorf("line %d: %w", lineNo, err)
		}
	}

	return scanner.Err()
}

func stripComment(line string) string {
	if i := strings.IndexByte(line, ';'); i >= 0 {
		return line[:i]
	}
	return line
}

// safeAssembleLine recovers from the register-operand parser's panics
// (mustReg) and reports them as ordinary errors, since a malformed
// register token is an argument/format error, not a program bug.
func safeAssembleLine(a *assembler.Assembler, line string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%v", r)
		}
	}()
	return assembleLine(a, line)
}

func assembleLine(a *assembler.Assembler, line string) error {
	if strings.HasSuffix(line, ":") {
		return a.Label(strings.TrimSuffix(line, ":"))
	}

	mnemonic, rest := splitMnemonic(line)
	ops := splitOperands(rest)

	switch strings.ToLower(mnemonic) {
	case ".global":
		a.Global(requireSymbolName(ops, 0))
	case ".extern":
		a.Extern(requireSymbolName(ops, 0))
	case ".section":
		a.Section(requireSymbolName(ops, 0))
	case ".word":
		return assembleWord(a, ops)
	case ".skip":
		n, err := strconv.Atoi(ops[0])
		if err != nil {
			return fmt.Errorf("bad .skip operand %q: %w", ops[0], err)
		}
		a.Skip(n)
	case ".end":
		a.End()

	case "halt":
		a.Halt()
	case "int":
		a.Int()
	case "iret":
		a.Iret()
	case "ret":
		a.Ret()

	case "call":
		return assembleTargetOnly(a.Call, a.CallSymbol, ops)
	case "jmp":
		return assembleTargetOnly(a.Jmp, a.JmpSymbol, ops)
	case "beq":
		return assembleBranch(a.Beq, a.BeqSymbol, ops)
	case "bne":
		return assembleBranch(a.Bne, a.BneSymbol, ops)
	case "bgt":
		return assembleBranch(a.Bgt, a.BgtSymbol, ops)

	case "push":
		a.Push(mustReg(ops[0]))
	case "pop":
		a.Pop(mustReg(ops[0]))
	case "xchg":
		a.Xchg(mustReg(ops[0]), mustReg(ops[1]))
	case "add":
		a.Add(mustReg(ops[0]), mustReg(ops[1]))
	case "sub":
		a.Sub(mustReg(ops[0]), mustReg(ops[1]))
	case "mul":
		a.Mul(mustReg(ops[0]), mustReg(ops[1]))
	case "div":
		a.Div(mustReg(ops[0]), mustReg(ops[1]))
	case "not":
		a.Not(mustReg(ops[0]))
	case "and":
		a.And(mustReg(ops[0]), mustReg(ops[1]))
	case "or":
		a.Or(mustReg(ops[0]), mustReg(ops[1]))
	case "xor":
		a.Xor(mustReg(ops[0]), mustReg(ops[1]))
	case "shl":
		a.Shl(mustReg(ops[0]), mustReg(ops[1]))
	case "shr":
		a.Shr(mustReg(ops[0]), mustReg(ops[1]))

	case "ld":
		return assembleLoad(a, ops)
	case "st":
		return assembleStore(a, ops)

	case "csrrd":
		a.Csrrd(mustReg(ops[0]), mustReg(ops[1]))
	case "csrwr":
		a.Csrwr(mustReg(ops[0]), mustReg(ops[1]))

	default:
		return fmt.Errorf("unknown mnemonic %q", mnemonic)
	}

	return nil
}

func assembleWord(a *assembler.Assembler, ops []string) error {
	if lit, ok, err := parseImmediate(ops[0]); err != nil {
		return err
	} else if ok {
		a.Word(lit)
		return nil
	}
	return a.WordSymbol(ops[0])
}

func assembleTargetOnly(lit func(int32), sym func(string) error, ops []string) error {
	if v, ok, err := parseImmediate(ops[0]); err != nil {
		return err
	} else if ok {
		lit(v)
		return nil
	}
	return sym(ops[0])
}

func assembleBranch(lit func(byte, byte, int32), sym func(byte, byte, string) error, ops []string) error {
	r1, r2 := mustReg(ops[0]), mustReg(ops[1])
	if v, ok, err := parseImmediate(ops[2]); err != nil {
		return err
	} else if ok {
		lit(r1, r2, v)
		return nil
	}
	return sym(r1, r2, ops[2])
}

// assembleLoad handles every `ld` operand shape: $literal, $symbol,
// %reg (register-direct), [%reg], [%reg+off], and bare literal/symbol
// (memory-direct).
func assembleLoad(a *assembler.Assembler, ops []string) error {
	src, dstTok := ops[0], ops[1]
	dst := mustReg(dstTok)

	switch {
	case strings.HasPrefix(src, "$"):
		operand := strings.TrimPrefix(src, "$")
		if v, ok, err := parseImmediate(operand); err != nil {
			return err
		} else if ok {
			a.LdImm(v, dst)
			return nil
		}
		return a.LdImmSymbol(operand, dst)

	case strings.HasPrefix(src, "["):
		base, offset, hasOffset, err := parseIndirect(src)
		if err != nil {
			return err
		}
		if !hasOffset {
			a.LdRegInd(base, dst)
			return nil
		}
		return a.LdRegIndOff(base, offset, dst)

	case strings.HasPrefix(src, "%"):
		a.LdRegDir(mustReg(src), dst)
		return nil

	default:
		if v, ok, err := parseImmediate(src); err != nil {
			return err
		} else if ok {
			a.LdMemDir(v, dst)
			return nil
		}
		return a.LdMemDirSymbol(src, dst)
	}
}

// assembleStore handles `st %reg, <dest>` where dest is bare
// literal/symbol (memory-direct), [%reg] or [%reg+off].
func assembleStore(a *assembler.Assembler, ops []string) error {
	src := mustReg(ops[0])
	dst := ops[1]

	switch {
	case strings.HasPrefix(dst, "["):
		base, offset, hasOffset, err := parseIndirect(dst)
		if err != nil {
			return err
		}
		if !hasOffset {
			a.StRegInd(src, base)
			return nil
		}
		return a.StRegIndOff(src, base, offset)

	default:
		if v, ok, err := parseImmediate(dst); err != nil {
			return err
		} else if ok {
			a.StMemDir(src, v)
			return nil
		}
		return a.StMemDirSymbol(src, dst)
	}
}

func parseIndirect(token string) (base byte, offset int32, hasOffset bool, err error) {
	inner := strings.TrimSuffix(strings.TrimPrefix(token, "["), "]")
	if i := strings.IndexAny(inner, "+-"); i > 0 {
		base = mustReg(inner[:i])
		v, parseErr := strconv.ParseInt(inner[i:], 0, 32)
		if parseErr != nil {
			return 0, 0, false, fmt.Errorf("bad offset in %q: %w", token, parseErr)
		}
		return base, int32(v), true, nil
	}
	return mustReg(inner), 0, false, nil
}

// parseImmediate parses a numeric literal (decimal or 0x-prefixed hex). ok
// is false (with no error) when the token is a symbol name instead.
func parseImmediate(token string) (int32, bool, error) {
	if token == "" {
		return 0, false, fmt.Errorf("empty operand")
	}
	if token[0] != '-' && !(token[0] >= '0' && token[0] <= '9') {
		return 0, false, nil
	}
	v, err := strconv.ParseInt(token, 0, 64)
	if err != nil {
		return 0, false, nil
	}
	return int32(v), true, nil
}

var registerAliases = map[string]byte{
	"acc": 13, "sp": 14, "pc": 15,
	"status": 0, "handler": 1, "cause": 2,
}

func mustReg(token string) byte {
	name := strings.ToLower(strings.TrimPrefix(strings.TrimPrefix(token, "%"), "r"))
	if alias, ok := registerAliases[name]; ok {
		return alias
	}
	n, err := strconv.Atoi(name)
	if err != nil {
		panic(fmt.Sprintf("invalid register operand %q", token))
	}
	return byte(n)
}

func requireSymbolName(ops []string, idx int) string {
	return ops[idx]
}

func splitMnemonic(line string) (mnemonic, rest string) {
	fields := strings.SplitN(line, " ", 2)
	if len(fields) == 1 {
		return fields[0], ""
	}
	return fields[0], fields[1]
}

func splitOperands(rest string) []string {
	if strings.TrimSpace(rest) == "" {
		return nil
	}
	parts := strings.Split(rest, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}
