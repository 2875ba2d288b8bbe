// Command emudbg is a small interactive register/memory inspector for a
// linked hex image, built on internal/emulator via internal/emudbg. It is
// an additive debugging convenience, not one of the three binaries the
// specification requires (§6); see internal/emudbg for its grounding.
package main

import (
	"fmt"
	"os"

	"github.com/Manu343726/teaching-isa/internal/emudbg"
	"github.com/Manu343726/teaching-isa/internal/linker"
	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:           "emudbg <hex-image>",
		Short:         "Interactively single-step a linked hex image",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          run,
	}

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "EMUDBG: %v\n", err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("opening %s: %w", args[0], err)
	}
	mem, err := linker.ReadHexImage(f)
	f.Close()
	if err != nil {
		return fmt.Errorf("parsing %s: %w", args[0], err)
	}

	inspector := emudbg.New(mem)

	app := tview.NewApplication()
	regs := tview.NewTextView().SetDynamicColors(true)
	regs.SetBorder(true).SetTitle(" registers ")
	memView := tview.NewTextView().SetDynamicColors(true)
	memView.SetBorder(true).SetTitle(" memory ")
	status := tview.NewTextView().SetDynamicColors(true)
	status.SetBorder(true).SetTitle(" emudbg  n=step q=quit ")

	render := func(ev string) {
		regs.Clear()
		for _, line := range inspector.RegisterLines() {
			fmt.Fprintln(regs, "[green]"+line+"[-]")
		}
		memView.Clear()
		for _, line := range inspector.MemoryLines() {
			fmt.Fprintln(memView, "[cyan]"+line+"[-]")
		}
		fmt.Fprintf(status, "[yellow]step %d: %s[-]\n", inspector.Steps, ev)
	}
	render("loaded")

	layout := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(tview.NewFlex().
			AddItem(regs, 0, 1, false).
			AddItem(memView, 0, 1, false), 0, 4, false).
		AddItem(status, 3, 1, false)

	layout.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		switch event.Rune() {
		case 'q':
			app.Stop()
			return nil
		case 'n', ' ':
			ev := inspector.Step()
			render(ev.String())
			if ev == emudbg.EventHalted || ev == emudbg.EventError {
				return nil
			}
		}
		return event
	})

	return app.SetRoot(layout, true).Run()
}
