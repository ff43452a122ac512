package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/kapitanov/chip8vm/internal/hal"
	"github.com/kapitanov/chip8vm/internal/monitor"
	"github.com/kapitanov/chip8vm/internal/romfile"
	"github.com/kapitanov/chip8vm/internal/runner"
	"github.com/kapitanov/chip8vm/internal/vm"
	"github.com/spf13/cobra"
)

func main() {
	cmd := &cobra.Command{
		Use:           fmt.Sprintf("%s PATH_TO_ROM_FILE", filepath.Base(os.Args[0])),
		Short:         "Run emulator",
		Args:          cobra.ExactArgs(1),
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	verbose := cmd.Flags().BoolP("verbose", "v", false, "enable verbose logging")
	ipf := cmd.Flags().Int("ipf", runner.DefaultInstructionsPerTick, "instructions executed per 60Hz frame")
	scale := cmd.Flags().Int("scale", hal.DefaultScale, "window pixels per display pixel")
	skipInvalid := cmd.Flags().Bool("skip-invalid", false, "skip invalid opcodes instead of halting")
	debug := cmd.Flags().Bool("debug", false, "start paused in the monitor")
	breakpoints := cmd.Flags().StringSlice("break", nil, "set a monitor breakpoint at a hex address (repeatable)")

	defaults := vm.DefaultQuirks()
	shiftVY := cmd.Flags().Bool("shift-vy", defaults.ShiftUsesVY, "8XY6/8XYE shift VY into VX")
	jumpVX := cmd.Flags().Bool("jump-vx", defaults.JumpUsesVX, "BXNN jumps to XNN + VX")
	noIndexIncrement := cmd.Flags().Bool("no-index-increment", !defaults.IncrementIndex, "FX55/FX65 leave I unchanged")
	resetVF := cmd.Flags().Bool("vf-reset", defaults.ResetVF, "8XY1/8XY2/8XY3 clear VF")
	wrap := cmd.Flags().Bool("wrap", defaults.WrapSprites, "wrap sprites around the screen edges instead of clipping")

	cmd.RunE = func(_ *cobra.Command, args []string) error {
		loggerOpts := &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}
		if *verbose {
			loggerOpts.Level = slog.LevelDebug
		}

		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, loggerOpts)))

		path := args[0]
		rom, err := romfile.Load(path)
		if err != nil {
			return fmt.Errorf("unable to load file %q: %w", path, err)
		}
		slog.Info("load rom", "path", path, "size", len(rom), "digest", romfile.Digest(rom))

		var mon *monitor.Monitor
		if *debug || len(*breakpoints) > 0 {
			mon = monitor.New(os.Stdin, os.Stdout)
			for _, s := range *breakpoints {
				addr, err := monitor.ParseAddr(s)
				if err != nil {
					return fmt.Errorf("invalid breakpoint %q: %w", s, err)
				}
				mon.SetBreakpoint(addr)
			}
		}

		policy := runner.PolicyHalt
		if *skipInvalid {
			policy = runner.PolicySkip
		}

		machine := vm.New(vm.WithQuirks(vm.Quirks{
			ShiftUsesVY:    *shiftVY,
			JumpUsesVX:     *jumpVX,
			IncrementIndex: !*noIndexIncrement,
			ResetVF:        *resetVF,
			WrapSprites:    *wrap,
		}))

		h, err := hal.New(*scale)
		if err != nil {
			return fmt.Errorf("unable to initialize hal: %w", err)
		}
		defer h.Shutdown()

		r := runner.New(machine, h, runner.Config{
			ROM:                 rom,
			InstructionsPerTick: *ipf,
			InvalidOpcode:       policy,
			Monitor:             mon,
			Paused:              *debug,
		})
		return r.Run()
	}

	cmd.SetArgs(os.Args[1:])
	if err := cmd.Execute(); err != nil {
		slog.Error("fatal error", "err", err)
		os.Exit(1)
	}
}
