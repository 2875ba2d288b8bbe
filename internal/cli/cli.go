// Package cli holds the bootstrapping the three toolchain binaries
// (asm, linker, emulator) and the optional emudbg inspector share:
// common flags, layered configuration and dual-sink structured logging.
//
// Grounded on cmd/root.go's viper/cobra wiring (config discovery,
// cobra.OnInitialize) and cmd/cpu/exec.go's fatih/color diagnostic
// styling; the dual stdout+file slog fan-out is new wiring for the
// teacher's otherwise-unused github.com/samber/slog-multi dependency.
package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/fatih/color"
	slogmulti "github.com/samber/slog-multi"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Flags are the flags every one of the three binaries accepts in addition
// to its own positional/stage-specific ones (§6 of the specification).
type Flags struct {
	Verbose bool
	NoColor bool
	LogFile string
}

// AddCommonFlags registers --verbose/-v, --no-color and --log-file on cmd.
func AddCommonFlags(cmd *cobra.Command, f *Flags) {
	cmd.Flags().BoolVarP(&f.Verbose, "verbose", "v", false, "raise the log level from info to debug")
	cmd.Flags().BoolVar(&f.NoColor, "no-color", false, "disable ANSI colourisation of diagnostics")
	cmd.Flags().StringVar(&f.LogFile, "log-file", "", "also write JSON-formatted logs to this file")
}

// InitConfig wires viper's layered configuration (flags > environment >
// ~/.ss-toolchain.yaml) exactly as cmd/root.go does for the teacher's own
// CLI, scoped to envPrefix (e.g. "ASM", "LINKER", "EMU") so the three
// binaries don't stomp on each other's environment variables. No command
// reads a setting back from viper, so neither the environment nor the
// config file changes any flag's value; the only visible effect is the
// "using config file" line on stderr when one is found.
func InitConfig(envPrefix string) {
	home, err := os.UserHomeDir()
	if err == nil {
		viper.AddConfigPath(home)
	}
	viper.SetConfigType("yaml")
	viper.SetConfigName(".ss-toolchain")
	viper.SetEnvPrefix(envPrefix)
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "using config file:", viper.ConfigFileUsed())
	}
}

// NewLogger builds the slog.Logger used for the remainder of the process:
// a colourised (unless NoColor) human-readable handler on stderr, fanned
// out via slog-multi to a second JSON handler on LogFile when one is
// given. --verbose raises the level from Info to Debug.
func NewLogger(f Flags) *slog.Logger {
	if f.NoColor {
		color.NoColor = true
	}

	level := slog.LevelInfo
	if f.Verbose {
		level = slog.LevelDebug
	}

	handlers := []slog.Handler{newConsoleHandler(os.Stderr, level, f.NoColor)}

	if f.LogFile != "" {
		file, err := os.OpenFile(f.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err == nil {
			handlers = append(handlers, slog.NewJSONHandler(file, &slog.HandlerOptions{Level: level}))
		}
	}

	if len(handlers) == 1 {
		return slog.New(handlers[0])
	}
	return slog.New(slogmulti.Fanout(handlers...))
}

// Fail prints the stage-prefixed diagnostic line §7 requires and exits
// with a nonzero status. stage is one of "ASSEMBLER", "LINKER",
// "EMULATOR" or "ERROR".
func Fail(stage string, err error) {
	prefix := stage
	if !color.NoColor {
		prefix = color.New(color.FgRed, color.Bold).Sprint(stage)
	}
	fmt.Fprintf(os.Stderr, "%s: %v\n", prefix, err)
	os.Exit(1)
}
