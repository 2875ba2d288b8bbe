// Command asm is the assembler binary described in §6 of the
// specification: it reads an assembly source file, drives
// internal/assembler through internal/asmtext's line-based front end,
// and writes the resulting object file in the §6 text grammar.
//
// Grounded on cmd/cpu/compile.go's cobra wiring for a single-input,
// single-output compilation step.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/Manu343726/teaching-isa/internal/asmtext"
	"github.com/Manu343726/teaching-isa/internal/assembler"
	"github.com/Manu343726/teaching-isa/internal/cli"
	"github.com/Manu343726/teaching-isa/internal/obj"
	"github.com/spf13/cobra"
)

var (
	output string
	flags  cli.Flags
)

func main() {
	root := &cobra.Command{
		Use:           "asm <input>",
		Short:         "Assemble a source file into an object file",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          run,
	}

	root.Flags().StringVarP(&output, "o", "o", "", "output object file path")
	root.MarkFlagRequired("o")
	cli.AddCommonFlags(root, &flags)

	cobra.OnInitialize(func() { cli.InitConfig("ASM") })

	if err := root.Execute(); err != nil {
		cli.Fail("ASSEMBLER", err)
	}
}

func run(cmd *cobra.Command, args []string) error {
	logger := cli.NewLogger(flags)
	input := filepath.Join("tests", args[0])

	src, err := os.Open(input)
	if err != nil {
		return fmt.Errorf("opening %s: %w", input, err)
	}
	defer src.Close()

	logger.Debug("assembling", "input", input, "output", output)

	a := assembler.New(filepath.Base(input))
	if err := asmtext.Assemble(src, a); err != nil {
		return fmt.Errorf("assembling %s: %w", input, err)
	}

	dst, err := os.Create(output)
	if err != nil {
		return fmt.Errorf("creating %s: %w", output, err)
	}
	defer dst.Close()

	f := a.File()
	if err := obj.Write(dst, f); err != nil {
		return fmt.Errorf("writing %s: %w", output, err)
	}

	logger.Info("assembled", "sections", len(f.Sections)-1, "symbols", len(f.Symbols))
	return nil
}
