// Command emulator is the emulator binary described in §6: it loads a
// linker-produced hex image into sparse memory and runs
// internal/emulator's fetch/decode/execute loop until halt, then prints
// the final register dump to standard output.
package main

import (
	"fmt"
	"os"

	"github.com/Manu343726/teaching-isa/internal/cli"
	"github.com/Manu343726/teaching-isa/internal/emulator"
	"github.com/Manu343726/teaching-isa/internal/linker"
	"github.com/spf13/cobra"
)

var (
	flags    cli.Flags
	maxSteps int
	trace    bool
)

func main() {
	root := &cobra.Command{
		Use:           "emulator <hex-image>",
		Short:         "Execute a hex memory image until halt",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          run,
	}

	root.Flags().IntVar(&maxSteps, "max-steps", 0, "abort after this many fetch/execute cycles (0 = unbounded); a debugging aid, not part of the ISA")
	root.Flags().BoolVar(&trace, "trace", false, "log the step number and the resulting pc after each cycle, at debug level (shown only with --verbose)")
	cli.AddCommonFlags(root, &flags)

	cobra.OnInitialize(func() { cli.InitConfig("EMU") })

	if err := root.Execute(); err != nil {
		cli.Fail("EMULATOR", err)
	}
}

func run(cmd *cobra.Command, args []string) error {
	logger := cli.NewLogger(flags)

	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("opening %s: %w", args[0], err)
	}
	mem, err := linker.ReadHexImage(f)
	f.Close()
	if err != nil {
		return fmt.Errorf("parsing %s: %w", args[0], err)
	}

	cpu := emulator.NewCPU(mem)
	logger.Debug("loaded image", "mapped_bytes", len(mem))

	ctx := cmd.Context()
	steps := 0
	for {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("emulation cancelled after %d steps: %w", steps, err)
		}
		if maxSteps > 0 && steps >= maxSteps {
			return fmt.Errorf("exceeded --max-steps=%d without halting", maxSteps)
		}
		halted, err := cpu.Step()
		if err != nil {
			return fmt.Errorf("executing at step %d: %w", steps, err)
		}
		if trace {
			logger.Debug("step", "n", steps, "pc", cpu.GPR[15])
		}
		steps++
		if halted {
			break
		}
	}

	fmt.Print(cpu.DumpRegisters())
	return nil
}
