package linker

import (
	"fmt"
	"io"

	"github.com/Manu343726/teaching-isa/internal/obj"
)

// WriteReport writes the human-readable auxiliary report described in
// §4.2/§12: every input file's resolved symbol table, section dumps and
// relocation tables (in the §6 text grammar), followed by the final
// placed-block layout. Grounded on Linker::main's report-writing code in
// original_source/src/linker.cpp.
func WriteReport(w io.Writer, files []*obj.File, blocks []Block) error {
	for i, f := range files {
		if _, err := fmt.Fprintf(w, "# file %d: %s\n", i, f.Name); err != nil {
			return err
		}
		if err := obj.Write(w, f); err != nil {
			return err
		}
	}

	if _, err := fmt.Fprintln(w, "#.placement"); err != nil {
		return err
	}
	for _, b := range blocks {
		if _, err := fmt.Fprintf(w, "%-14s 0x%08x %d\n", b.Name, b.Base, len(b.Bytes)); err != nil {
			return err
		}
	}

	return nil
}
