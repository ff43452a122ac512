// Package runner drives a virtual machine: it executes a fixed number of
// instructions per frame, ticks the timers once per frame and moves input,
// pixels and sound between the machine and a Frontend.
package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/kapitanov/chip8vm/internal/monitor"
	"github.com/kapitanov/chip8vm/internal/vm"
)

// Frontends return these from ReadInput to control the session.
var (
	ErrReboot = errors.New("reboot")
	ErrQuit   = errors.New("quit")
	ErrPause  = errors.New("pause")
)

// Frontend is the window, keyboard, speaker and clock of the machine.
type Frontend interface {
	ReadInput(keyDown func(vm.Key), keyUp func(vm.Key)) error
	Draw(pixels [vm.ScreenWidth * vm.ScreenHeight]bool) error
	Tone(on bool) error
	WaitForNextFrame() error
}

// Policy decides what happens when the machine meets an invalid opcode.
type Policy int

const (
	// PolicyHalt stops the run and returns the error.
	PolicyHalt Policy = iota
	// PolicySkip logs the opcode, skips it and carries on.
	PolicySkip
)

// DefaultInstructionsPerTick is the number of instructions executed per
// 60Hz frame.
const DefaultInstructionsPerTick = 10

type Config struct {
	ROM                 []byte
	InstructionsPerTick int
	InvalidOpcode       Policy

	// Monitor is entered on breakpoints and when the frontend pauses. A nil
	// Monitor disables debugging.
	Monitor *monitor.Monitor
	// Paused enters the monitor before the first instruction.
	Paused bool
}

type Runner struct {
	machine  *vm.VM
	frontend Frontend
	cfg      Config

	paused    bool
	resumedAt int // pc the monitor resumed at, not checked for breakpoints
	tone      bool
	dirty     bool
	pixels    [vm.ScreenWidth * vm.ScreenHeight]bool
}

func New(machine *vm.VM, frontend Frontend, cfg Config) *Runner {
	if cfg.InstructionsPerTick <= 0 {
		cfg.InstructionsPerTick = DefaultInstructionsPerTick
	}

	return &Runner{
		machine:   machine,
		frontend:  frontend,
		cfg:       cfg,
		resumedAt: -1,
	}
}

// Run boots the machine and runs it until the frontend quits, which returns
// nil, or the machine fails.
func (r *Runner) Run() error {
	if err := r.boot(); err != nil {
		return err
	}

	for {
		err := r.runFrame()

		switch {
		case err == nil:
			continue

		case errors.Is(err, ErrQuit):
			slog.Debug("quit requested")
			return nil

		case errors.Is(err, ErrReboot):
			slog.Info("reboot")
			if err := r.boot(); err != nil {
				return err
			}

		case errors.Is(err, ErrPause):
			if r.cfg.Monitor != nil {
				r.paused = true
			}

		default:
			return err
		}
	}
}

func (r *Runner) boot() error {
	r.machine.Reset()
	if err := r.machine.LoadROM(r.cfg.ROM); err != nil {
		return fmt.Errorf("unable to load rom: %w", err)
	}
	slog.Debug("load program", "at", fmt.Sprintf("0x%04x", vm.ProgramStart), "n", len(r.cfg.ROM))

	r.paused = r.cfg.Paused && r.cfg.Monitor != nil
	r.resumedAt = -1
	r.dirty = true
	return nil
}

func (r *Runner) runFrame() error {
	if err := r.frontend.ReadInput(r.keyDown, r.keyUp); err != nil {
		return err
	}

	for i := 0; i < r.cfg.InstructionsPerTick; i++ {
		if err := r.debug(); err != nil {
			return err
		}

		if err := r.step(); err != nil {
			return err
		}
	}

	r.machine.TickTimers()

	if err := r.present(); err != nil {
		return err
	}

	return r.frontend.WaitForNextFrame()
}

// debug hands control to the monitor when paused or on a breakpoint.
func (r *Runner) debug() error {
	mon := r.cfg.Monitor
	if mon == nil || (!r.paused && r.machine.Waiting()) {
		return nil
	}

	pc := r.machine.PC()
	if !r.paused && (int(pc) == r.resumedAt || !mon.ShouldBreak(pc)) {
		return nil
	}

	if !r.paused {
		slog.Info("breakpoint", "pc", fmt.Sprintf("0x%04x", pc))
	}

	action := mon.Run(debugTarget{VM: r.machine, runner: r})
	r.paused = false
	r.resumedAt = int(r.machine.PC())

	if action == monitor.ActionQuit {
		return ErrQuit
	}
	return nil
}

func (r *Runner) step() error {
	if slog.Default().Enabled(context.Background(), slog.LevelDebug) {
		r.trace()
	}

	err := r.machine.Step()
	if err == nil {
		r.resumedAt = -1
		return nil
	}

	if r.cfg.InvalidOpcode == PolicySkip && errors.Is(err, vm.ErrInvalidOpcode) {
		slog.Warn("skip invalid opcode", "err", err)
		r.machine.SkipInstruction()
		return nil
	}

	return fmt.Errorf("machine halted: %w", err)
}

func (r *Runner) trace() {
	// nothing is decoded while waiting or when the step only stores the key
	if r.machine.Waiting() || r.machine.KeyPending() {
		return
	}

	in, err := r.machine.Instruction()
	if err != nil {
		return
	}

	slog.Debug(
		"exec",
		"pc", fmt.Sprintf("0x%04x", r.machine.PC()),
		"opcode", fmt.Sprintf("0x%04x", in.Opcode),
		"instr", in.String(),
	)
}

// present draws the display if it changed and switches the tone on or off.
func (r *Runner) present() error {
	pixels := r.machine.Display()
	if r.dirty || pixels != r.pixels {
		if err := r.frontend.Draw(pixels); err != nil {
			return err
		}
		r.pixels = pixels
		r.dirty = false
	}

	if sound := r.machine.SoundActive(); sound != r.tone {
		if err := r.frontend.Tone(sound); err != nil {
			return err
		}
		r.tone = sound
	}

	return nil
}

func (r *Runner) keyDown(key vm.Key) {
	if err := r.machine.SetKey(key, true); err != nil {
		slog.Warn("key down", "err", err)
	}
}

func (r *Runner) keyUp(key vm.Key) {
	if err := r.machine.SetKey(key, false); err != nil {
		slog.Warn("key up", "err", err)
	}
}

// debugTarget redraws the display after every instruction stepped from the
// monitor.
type debugTarget struct {
	*vm.VM
	runner *Runner
}

func (t debugTarget) Step() error {
	if err := t.VM.Step(); err != nil {
		return err
	}
	return t.runner.present()
}
