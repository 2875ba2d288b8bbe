package obj

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/Manu343726/teaching-isa/pkg/utils"
)

// columnWidth is the left-justified field width used by the original
// object-file dumper; kept for fidelity even though the reader below only
// needs whitespace-separated fields.
const columnWidth = 14

func padField(value string) string {
	if len(value) >= columnWidth {
		return value
	}
	return value + strings.Repeat(" ", columnWidth-len(value))
}

func writeRow(w io.Writer, fields ...string) error {
	var b strings.Builder
	for _, f := range fields {
		b.WriteString(padField(f))
	}
	_, err := fmt.Fprintln(w, strings.TrimRight(b.String(), " "))
	return err
}

// Write renders f using the §6 object-file text grammar: a #.symtab block,
// one #.<section> block per non-UND section, then one #.rela.<section>
// block per section that carries relocations.
func Write(w io.Writer, f *File) error {
	if err := writeSymtab(w, f); err != nil {
		return err
	}

	for i := 1; i < len(f.Sections); i++ {
		if err := writeSectionDump(w, f.Sections[i]); err != nil {
			return err
		}
	}

	for i := 1; i < len(f.Sections); i++ {
		if len(f.Sections[i].Relocations) == 0 {
			continue
		}
		if err := writeRelocations(w, f.Sections[i]); err != nil {
			return err
		}
	}

	return nil
}

func writeSymtab(w io.Writer, f *File) error {
	if _, err := fmt.Fprintln(w, "#.symtab"); err != nil {
		return err
	}
	if err := writeRow(w, "Num", "Value", "Type", "Bind", "Ndx", "Name"); err != nil {
		return err
	}

	for i, sym := range f.Symbols {
		typ := "NOTYP"
		if sym.IsSection {
			typ = "SCTN"
		}
		bind := "LOC"
		if sym.Global {
			bind = "GLOB"
		}
		ndx := "UND"
		if sym.SectionID != UndefinedSection {
			ndx = strconv.Itoa(sym.SectionID)
		}

		if err := writeRow(w,
			strconv.Itoa(i),
			strconv.FormatUint(uint64(sym.Value), 10),
			typ, bind, ndx, sym.Name); err != nil {
			return err
		}
	}

	_, err := fmt.Fprintln(w)
	return err
}

func writeSectionDump(w io.Writer, s Section) error {
	if _, err := fmt.Fprintf(w, "#.%s\n", s.Name); err != nil {
		return err
	}

	for i := 0; i < len(s.Bytes); i += 8 {
		end := i + 8
		if end > len(s.Bytes) {
			end = len(s.Bytes)
		}
		line := make([]string, 0, 8)
		for _, b := range s.Bytes[i:end] {
			line = append(line, fmt.Sprintf("%02x", b))
		}
		if _, err := fmt.Fprintln(w, strings.Join(line, " ")); err != nil {
			return err
		}
	}

	_, err := fmt.Fprintln(w)
	return err
}

func writeRelocations(w io.Writer, s Section) error {
	if _, err := fmt.Fprintf(w, "#.rela.%s\n", s.Name); err != nil {
		return err
	}
	if err := writeRow(w, "Offset", "Symbol", "Addend"); err != nil {
		return err
	}

	for _, r := range s.Relocations {
		if err := writeRow(w,
			strconv.FormatUint(uint64(r.Offset), 10),
			strconv.Itoa(r.SymbolID),
			strconv.FormatInt(int64(r.Addend), 10)); err != nil {
			return err
		}
	}

	_, err := fmt.Fprintln(w)
	return err
}

// Read parses the §6 object-file text grammar back into a File. Symbol
// rows determine the section table: one Section entry is synthesised, in
// symbol-table order, for every symbol with Type == SCTN.
func Read(r io.Reader) (*File, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	f := &File{}

	line, ok := nextNonEmpty(scanner)
	if !ok || line != "#.symtab" {
		return nil, utils.MakeError(ErrMalformedObject, "expected #.symtab header, got %q", line)
	}

	// header row
	if _, ok := nextLine(scanner); !ok {
		return nil, utils.MakeError(ErrMalformedObject, "truncated symtab header")
	}

	for {
		line, ok := nextLine(scanner)
		if !ok || strings.TrimSpace(line) == "" {
			break
		}

		fields := strings.Fields(line)
		if len(fields) != 6 {
			return nil, utils.MakeError(ErrMalformedObject, "malformed symtab row %q", line)
		}

		value, err := strconv.ParseUint(fields[1], 10, 32)
		if err != nil {
			return nil, utils.MakeError(ErrMalformedObject, "bad symbol value %q", fields[1])
		}

		sectionID := 0
		if fields[4] != "UND" {
			sectionID, err = strconv.Atoi(fields[4])
			if err != nil {
				return nil, utils.MakeError(ErrMalformedObject, "bad symbol ndx %q", fields[4])
			}
		}

		sym := Symbol{
			Name:      fields[5],
			SectionID: sectionID,
			Value:     uint32(value),
			Global:    fields[3] == "GLOB",
			IsSection: fields[2] == "SCTN",
			Resolved:  sectionID != UndefinedSection,
		}
		f.Symbols = append(f.Symbols, sym)
	}

	sectionByName := map[string]int{"UND": 0}
	f.Sections = append(f.Sections, Section{Name: "UND"})

	for _, sym := range f.Symbols {
		if !sym.IsSection {
			continue
		}
		if _, exists := sectionByName[sym.Name]; exists {
			continue
		}
		idx := len(f.Sections)
		sectionByName[sym.Name] = idx
		f.Sections = append(f.Sections, Section{Name: sym.Name})
	}

	for {
		line, ok := nextNonEmpty(scanner)
		if !ok {
			break
		}

		switch {
		case strings.HasPrefix(line, "#.rela."):
			name := strings.TrimPrefix(line, "#.rela.")
			idx, exists := sectionByName[name]
			if !exists {
				return nil, utils.MakeError(ErrUnknownSection, "relocation block for unknown section %q", name)
			}
			if _, ok := nextLine(scanner); !ok { // header row
				return nil, utils.MakeError(ErrMalformedObject, "truncated relocation header")
			}
			for {
				row, ok := nextLine(scanner)
				if !ok || strings.TrimSpace(row) == "" {
					break
				}
				fields := strings.Fields(row)
				if len(fields) != 3 {
					return nil, utils.MakeError(ErrMalformedObject, "malformed relocation row %q", row)
				}
				offset, err1 := strconv.ParseUint(fields[0], 10, 32)
				symbolID, err2 := strconv.Atoi(fields[1])
				addend, err3 := strconv.ParseInt(fields[2], 10, 32)
				if err1 != nil || err2 != nil || err3 != nil {
					return nil, utils.MakeError(ErrMalformedObject, "malformed relocation row %q", row)
				}
				f.Sections[idx].Relocations = append(f.Sections[idx].Relocations, Relocation{
					Offset:   uint32(offset),
					SymbolID: symbolID,
					Addend:   int32(addend),
				})
			}

		case strings.HasPrefix(line, "#."):
			name := strings.TrimPrefix(line, "#.")
			idx, exists := sectionByName[name]
			if !exists {
				return nil, utils.MakeError(ErrUnknownSection, "byte dump for unknown section %q", name)
			}
			for {
				row, ok := nextLine(scanner)
				if !ok || strings.TrimSpace(row) == "" {
					break
				}
				for _, tok := range strings.Fields(row) {
					b, err := strconv.ParseUint(tok, 16, 8)
					if err != nil {
						return nil, utils.MakeError(ErrMalformedObject, "malformed hex byte %q", tok)
					}
					f.Sections[idx].Bytes = append(f.Sections[idx].Bytes, byte(b))
				}
			}

		default:
			return nil, utils.MakeError(ErrMalformedObject, "unexpected block header %q", line)
		}
	}

	return f, scanner.Err()
}

func nextLine(scanner *bufio.Scanner) (string, bool) {
	if !scanner.Scan() {
		return "", false
	}
	return scanner.Text(), true
}

func nextNonEmpty(scanner *bufio.Scanner) (string, bool) {
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) != "" {
			return line, true
		}
	}
	return "", false
}
