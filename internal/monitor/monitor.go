// Package monitor implements a line oriented debugger for the virtual
// machine: breakpoints, single stepping and register and memory dumps.
package monitor

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"

	"github.com/kapitanov/chip8vm/internal/vm"
)

// Machine is the part of the virtual machine the monitor inspects.
type Machine interface {
	Step() error
	State() vm.State
	ReadMemory(addr uint16) (uint8, error)
	Instruction() (vm.Instruction, error)
}

// Action tells the caller what to do after a command.
type Action int

const (
	// ActionNone means the monitor keeps prompting.
	ActionNone Action = iota
	// ActionContinue resumes normal execution.
	ActionContinue
	// ActionQuit ends the session.
	ActionQuit
)

var ErrUnknownCommand = errors.New("unknown command")

const prompt = "(chip8) "

type Monitor struct {
	in  *bufio.Scanner
	out io.Writer

	breakpoints map[uint16]struct{}
}

func New(in io.Reader, out io.Writer) *Monitor {
	return &Monitor{
		in:          bufio.NewScanner(in),
		out:         out,
		breakpoints: make(map[uint16]struct{}),
	}
}

// SetBreakpoint adds a breakpoint. It returns false if one already exists at
// addr.
func (m *Monitor) SetBreakpoint(addr uint16) bool {
	if _, ok := m.breakpoints[addr]; ok {
		return false
	}
	m.breakpoints[addr] = struct{}{}
	return true
}

// ClearBreakpoint removes a breakpoint. It returns false if there was none at
// addr.
func (m *Monitor) ClearBreakpoint(addr uint16) bool {
	if _, ok := m.breakpoints[addr]; !ok {
		return false
	}
	delete(m.breakpoints, addr)
	return true
}

// Breakpoints lists breakpoint addresses in ascending order.
func (m *Monitor) Breakpoints() []uint16 {
	addrs := make([]uint16, 0, len(m.breakpoints))
	for addr := range m.breakpoints {
		addrs = append(addrs, addr)
	}
	slices.Sort(addrs)
	return addrs
}

func (m *Monitor) ShouldBreak(pc uint16) bool {
	_, ok := m.breakpoints[pc]
	return ok
}

// Run prompts for commands until one of them continues or quits. The end of
// input quits.
func (m *Monitor) Run(mach Machine) Action {
	for {
		fmt.Fprint(m.out, prompt)

		if !m.in.Scan() {
			fmt.Fprintln(m.out)
			return ActionQuit
		}

		action, err := m.Exec(m.in.Text(), mach)
		if err != nil {
			fmt.Fprintf(m.out, "error: %v\n", err)
			continue
		}

		if action != ActionNone {
			return action
		}
	}
}

// Exec runs one command line. An empty line continues execution.
func (m *Monitor) Exec(line string, mach Machine) (Action, error) {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return ActionContinue, nil
	}

	switch strings.ToLower(parts[0]) {
	case "q", "quit":
		return ActionQuit, nil

	case "c", "continue":
		return ActionContinue, nil

	case "s", "step":
		return ActionNone, m.step(mach)

	case "b", "break":
		if len(parts) != 2 {
			return ActionNone, errors.New("usage: break <addr>")
		}
		addr, err := ParseAddr(parts[1])
		if err != nil {
			return ActionNone, err
		}
		if !m.SetBreakpoint(addr) {
			fmt.Fprintf(m.out, "breakpoint already exists (0x%04X)\n", addr)
			return ActionNone, nil
		}
		m.showBreakpoints()
		return ActionNone, nil

	case "clear":
		if len(parts) != 2 {
			return ActionNone, errors.New("usage: clear <addr>")
		}
		addr, err := ParseAddr(parts[1])
		if err != nil {
			return ActionNone, err
		}
		if !m.ClearBreakpoint(addr) {
			fmt.Fprintf(m.out, "no breakpoint at 0x%04X\n", addr)
			return ActionNone, nil
		}
		m.showBreakpoints()
		return ActionNone, nil

	case "i", "info":
		return ActionNone, m.info(parts, mach)

	case "h", "help":
		m.showHelp()
		return ActionNone, nil
	}

	return ActionNone, fmt.Errorf("%w: %s", ErrUnknownCommand, parts[0])
}

func (m *Monitor) step(mach Machine) error {
	if err := mach.Step(); err != nil {
		return err
	}

	state := mach.State()
	instr, err := mach.Instruction()
	if err != nil {
		fmt.Fprintf(m.out, "PC: 0x%04X, Opcode: 0x%04X (%v)\n", state.PC, instr.Opcode, err)
		return nil
	}

	fmt.Fprintf(m.out, "PC: 0x%04X, Opcode: 0x%04X  %s\n", state.PC, instr.Opcode, instr)
	return nil
}

func (m *Monitor) info(parts []string, mach Machine) error {
	if len(parts) < 2 {
		return errors.New("usage: info <registers|memory|breakpoints>")
	}

	switch strings.ToLower(parts[1]) {
	case "r", "registers":
		m.showRegisters(mach.State())
		return nil

	case "m", "memory":
		if len(parts) != 4 {
			return errors.New("usage: info memory <addr> <len>")
		}
		addr, err := ParseAddr(parts[2])
		if err != nil {
			return err
		}
		n, err := strconv.Atoi(parts[3])
		if err != nil || n < 0 {
			return fmt.Errorf("invalid length: %s", parts[3])
		}
		m.showMemory(mach, addr, n)
		return nil

	case "b", "breakpoints":
		m.showBreakpoints()
		return nil
	}

	return errors.New("unknown info command, try: registers, memory, breakpoints")
}

func (m *Monitor) showRegisters(state vm.State) {
	fmt.Fprintf(m.out, "PC:    0x%04X\n", state.PC)
	fmt.Fprintf(m.out, "I:     0x%04X\n", state.Index)
	fmt.Fprintf(m.out, "SP:    %d\n", state.SP)
	fmt.Fprintf(m.out, "DT:    %d\n", state.DelayTimer)
	fmt.Fprintf(m.out, "ST:    %d\n", state.SoundTimer)
	if state.Waiting {
		fmt.Fprintln(m.out, "waiting for key")
	}

	fmt.Fprintln(m.out)
	fmt.Fprintln(m.out, "Registers:")
	for row := 0; row < vm.RegisterCount; row += 8 {
		var b strings.Builder
		fmt.Fprintf(&b, "  V%X:", row)
		for _, v := range state.Registers[row : row+8] {
			fmt.Fprintf(&b, " %02X", v)
		}
		fmt.Fprintln(m.out, b.String())
	}
}

// showMemory dumps n bytes from addr, 16 to a line. The dump stops at the
// end of memory.
func (m *Monitor) showMemory(mach Machine, addr uint16, n int) {
	var b strings.Builder

	for i := 0; i < n; i++ {
		a := int(addr) + i
		if a >= vm.MemorySize {
			break
		}

		v, err := mach.ReadMemory(uint16(a))
		if err != nil {
			break
		}

		if i%16 == 0 {
			if i > 0 {
				fmt.Fprintln(m.out, b.String())
				b.Reset()
			}
			fmt.Fprintf(&b, "%04X:", a)
		}
		fmt.Fprintf(&b, " %02X", v)
	}

	if b.Len() > 0 {
		fmt.Fprintln(m.out, b.String())
	}
}

func (m *Monitor) showBreakpoints() {
	addrs := m.Breakpoints()
	if len(addrs) == 0 {
		fmt.Fprintln(m.out, "no breakpoints set")
		return
	}

	fmt.Fprintln(m.out, "Breakpoints:")
	for _, addr := range addrs {
		fmt.Fprintf(m.out, "  0x%04X\n", addr)
	}
}

func (m *Monitor) showHelp() {
	fmt.Fprint(m.out, `Commands:
  break <addr> | b <addr>      set breakpoint at address
  clear <addr>                 clear breakpoint at address
  step | s                     single step
  continue | c                 continue execution
  info registers | i r         show registers
  info memory <addr> <len>     dump memory
  info breakpoints | i b       list breakpoints
  quit | q                     quit
`)
}

// ParseAddr parses a hex address with or without a 0x prefix.
func ParseAddr(s string) (uint16, error) {
	s = strings.TrimPrefix(strings.ToLower(s), "0x")
	addr, err := strconv.ParseUint(s, 16, 16)
	if err != nil {
		return 0, fmt.Errorf("invalid address: %s", s)
	}
	return uint16(addr), nil
}
