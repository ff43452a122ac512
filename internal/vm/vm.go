package vm

import (
	"fmt"
	"math/rand/v2"
	"time"
)

const (
	MemorySize    = 4096
	StackSize     = 16
	RegisterCount = 16
	ScreenWidth   = 64
	ScreenHeight  = 32
	KeyCount      = 16

	ProgramStart    = uint16(0x200)
	InstructionSize = 2
)

// Random supplies the values for the rand instruction. *rand.Rand from
// math/rand/v2 implements it.
type Random interface {
	IntN(n int) int
}

// VM is a single CHIP-8 machine. It has no internal clock: the caller drives
// it with Step and TickTimers and is its only user.
type VM struct {
	memory    Memory
	registers [RegisterCount]uint8 // V registers (V0-VF)

	stack [StackSize]uint16 // Stack
	sp    uint16            // Stack pointer

	pc    uint16 // Program counter
	index uint16 // Index register

	delayTimer Timer
	soundTimer Timer

	display Display
	keypad  Keypad

	waitRegister uint8 // register receiving the key when the keypad wait ends

	quirks Quirks
	rng    Random
}

type Option func(*VM)

func WithQuirks(quirks Quirks) Option {
	return func(vm *VM) {
		vm.quirks = quirks
	}
}

func WithRandom(rng Random) Option {
	return func(vm *VM) {
		vm.rng = rng
	}
}

// New returns a machine with the font loaded, the display cleared and the
// program counter at ProgramStart.
func New(opts ...Option) *VM {
	seed := uint64(time.Now().UnixNano())

	vm := &VM{
		quirks: DefaultQuirks(),
		rng:    rand.New(rand.NewPCG(seed, seed>>32)),
	}

	for _, opt := range opts {
		opt(vm)
	}

	vm.Reset()
	return vm
}

// Reset returns every register, timer, key, pixel and byte of memory to its
// initial value. The program has to be loaded again afterwards.
func (vm *VM) Reset() {
	vm.pc = ProgramStart
	vm.index = 0
	vm.sp = 0
	vm.waitRegister = 0

	vm.stack = [StackSize]uint16{}
	vm.registers = [RegisterCount]uint8{}

	vm.display.Clear()
	vm.keypad.reset()

	// Clear memory and load font set
	vm.memory.reset()

	vm.delayTimer.Set(0)
	vm.soundTimer.Set(0)
}

// LoadROM copies a program into memory at ProgramStart.
func (vm *VM) LoadROM(rom []byte) error {
	return vm.memory.Load(rom)
}

// Step executes one instruction. While the machine waits for a key press it
// does nothing; the step after the press stores the key and moves on.
//
// A failed step leaves the machine exactly as it was, including the program
// counter. Use SkipInstruction to move past an invalid opcode.
func (vm *VM) Step() error {
	if vm.keypad.Waiting() {
		return nil
	}

	if key, ok := vm.keypad.resolve(); ok {
		vm.registers[vm.waitRegister] = uint8(key)
		vm.pc += InstructionSize
		return nil
	}

	pc := vm.pc

	opcode, err := vm.fetchOpcode()
	if err != nil {
		return fmt.Errorf("fetch at 0x%04x: %w", pc, err)
	}

	instr, err := Decode(opcode)
	if err != nil {
		return &OpcodeError{PC: pc, Opcode: opcode, Err: err}
	}

	vm.pc += InstructionSize

	if err := vm.execute(instr); err != nil {
		vm.pc = pc
		return &OpcodeError{PC: pc, Opcode: opcode, Err: err}
	}

	return nil
}

// SkipInstruction moves the program counter past the current instruction
// without executing it.
func (vm *VM) SkipInstruction() {
	vm.pc += InstructionSize
}

// Instruction decodes the instruction at the program counter without
// executing it.
func (vm *VM) Instruction() (Instruction, error) {
	opcode, err := vm.fetchOpcode()
	if err != nil {
		return Instruction{Op: opCount}, err
	}
	return Decode(opcode)
}

func (vm *VM) fetchOpcode() (uint16, error) {
	hi, err := vm.memory.Read(vm.pc)
	if err != nil {
		return 0, err
	}

	lo, err := vm.memory.Read(vm.pc + 1)
	if err != nil {
		return 0, err
	}

	opcode := uint16(hi)<<8 | uint16(lo) // Op code is two bytes
	return opcode, nil
}

// TickTimers decrements the delay and sound timers once. Call it at 60Hz.
func (vm *VM) TickTimers() {
	vm.delayTimer.Tick()
	vm.soundTimer.Tick()
}

// SetKey records a key press or release.
func (vm *VM) SetKey(key Key, pressed bool) error {
	return vm.keypad.SetKey(key, pressed)
}

// Display returns a copy of the frame buffer, row-major, true for a lit
// pixel.
func (vm *VM) Display() [ScreenWidth * ScreenHeight]bool {
	return vm.display.Pixels()
}

// SoundActive reports whether the tone should be playing.
func (vm *VM) SoundActive() bool {
	return vm.soundTimer.Active()
}

func (vm *VM) PC() uint16 {
	return vm.pc
}

// Waiting reports whether the machine is suspended on a key wait.
func (vm *VM) Waiting() bool {
	return vm.keypad.Waiting()
}

// KeyPending reports whether a press has ended a key wait. The next Step
// stores the key instead of executing an instruction.
func (vm *VM) KeyPending() bool {
	return vm.keypad.resolved
}

// ReadMemory returns the byte at addr.
func (vm *VM) ReadMemory(addr uint16) (uint8, error) {
	return vm.memory.Read(addr)
}

// State is a snapshot of the CPU registers.
type State struct {
	PC        uint16
	Index     uint16
	SP        uint16
	Registers [RegisterCount]uint8

	// Stack holds the pushed return addresses, oldest first.
	Stack []uint16

	DelayTimer uint8
	SoundTimer uint8
	Waiting    bool
}

func (vm *VM) State() State {
	stack := make([]uint16, vm.sp)
	copy(stack, vm.stack[:vm.sp])

	return State{
		PC:         vm.pc,
		Index:      vm.index,
		SP:         vm.sp,
		Registers:  vm.registers,
		Stack:      stack,
		DelayTimer: vm.delayTimer.Value(),
		SoundTimer: vm.soundTimer.Value(),
		Waiting:    vm.keypad.Waiting(),
	}
}
