// Command linker is the linker binary described in §6: it parses every
// input object file, places sections per the -place=<section>@<hex-base>
// directives (and the leftover, unpinned sections after them), resolves
// symbols across files, patches relocations and emits a contiguous hex
// image plus a human-readable linker.txt report.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/Manu343726/teaching-isa/internal/cli"
	"github.com/Manu343726/teaching-isa/internal/linker"
	"github.com/Manu343726/teaching-isa/internal/obj"
	"github.com/spf13/cobra"
)

var (
	output     string
	placeFlags []string
	flags      cli.Flags
)

func main() {
	root := &cobra.Command{
		Use:           "linker <input>...",
		Short:         "Link object files into a flat memory image",
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          run,
	}

	root.Flags().StringVarP(&output, "o", "o", "", "output hex image path")
	root.Flags().StringArrayVar(&placeFlags, "place", nil, "section placement, e.g. -place=text@0x40000000")
	root.MarkFlagRequired("o")
	cli.AddCommonFlags(root, &flags)

	cobra.OnInitialize(func() { cli.InitConfig("LINKER") })

	// pflag reads a single-dash argument as a run of shorthand flags, so
	// the -place=<section>@<hex-base> form is rewritten to --place=... here.
	for i, arg := range os.Args {
		if strings.HasPrefix(arg, "-place=") {
			os.Args[i] = "-" + arg
		}
	}

	if err := root.Execute(); err != nil {
		cli.Fail("LINKER", err)
	}
}

func run(cmd *cobra.Command, args []string) error {
	logger := cli.NewLogger(flags)

	placements, err := parsePlacements(placeFlags)
	if err != nil {
		return err
	}

	files := make([]*obj.File, 0, len(args))
	for _, path := range args {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("opening %s: %w", path, err)
		}
		objFile, err := obj.Read(f)
		f.Close()
		if err != nil {
			return fmt.Errorf("parsing %s: %w", path, err)
		}
		objFile.Name = filepath.Base(path)
		files = append(files, objFile)
		logger.Debug("loaded object", "file", objFile.Name, "sections", len(objFile.Sections)-1)
	}

	blocks, err := linker.Link(files, placements)
	if err != nil {
		return fmt.Errorf("linking: %w", err)
	}

	dst, err := os.Create(output)
	if err != nil {
		return fmt.Errorf("creating %s: %w", output, err)
	}
	if err := linker.WriteHexImage(dst, blocks); err != nil {
		dst.Close()
		return fmt.Errorf("writing %s: %w", output, err)
	}
	dst.Close()

	reportPath := filepath.Join(filepath.Dir(output), "linker.txt")
	report, err := os.Create(reportPath)
	if err != nil {
		return fmt.Errorf("creating %s: %w", reportPath, err)
	}
	defer report.Close()
	if err := linker.WriteReport(report, files, blocks); err != nil {
		return fmt.Errorf("writing %s: %w", reportPath, err)
	}

	logger.Info("linked", "blocks", len(blocks), "output", output, "report", reportPath)
	return nil
}

// parsePlacements turns repeated --place=<section>@<hex-base> flags into
// linker.Placement values (the CLI's "-place=" form, §6).
func parsePlacements(raw []string) ([]linker.Placement, error) {
	placements := make([]linker.Placement, 0, len(raw))
	for _, p := range raw {
		section, hexBase, ok := strings.Cut(p, "@")
		if !ok || section == "" {
			return nil, fmt.Errorf("%w: %q (expected name@hex-base)", linker.ErrInvalidPlacement, p)
		}
		base, err := strconv.ParseUint(strings.TrimPrefix(hexBase, "0x"), 16, 32)
		if err != nil {
			return nil, fmt.Errorf("%w: %q: %v", linker.ErrInvalidPlacement, p, err)
		}
		placements = append(placements, linker.Placement{Section: section, Base: uint32(base)})
	}
	return placements, nil
}
