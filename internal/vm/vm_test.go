package vm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedRandom int

func (r fixedRandom) IntN(n int) int {
	return int(r) % n
}

// newTestVM returns a machine with words loaded at ProgramStart.
func newTestVM(t *testing.T, words ...uint16) *VM {
	t.Helper()
	return newTestVMWithQuirks(t, DefaultQuirks(), words...)
}

func newTestVMWithQuirks(t *testing.T, quirks Quirks, words ...uint16) *VM {
	t.Helper()

	rom := make([]byte, 0, len(words)*2)
	for _, w := range words {
		rom = append(rom, byte(w>>8), byte(w))
	}

	vm := New(WithQuirks(quirks), WithRandom(fixedRandom(0xAB)))
	require.NoError(t, vm.LoadROM(rom))
	return vm
}

func steps(t *testing.T, vm *VM, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		require.NoError(t, vm.Step())
	}
}

func TestNew(t *testing.T) {
	vm := New()

	state := vm.State()
	assert.Equal(t, ProgramStart, state.PC)
	assert.Equal(t, uint16(0), state.Index)
	assert.Empty(t, state.Stack)
	assert.False(t, vm.SoundActive())
	assert.Equal(t, [ScreenWidth * ScreenHeight]bool{}, vm.Display())

	for i, b := range chip8Font {
		v, err := vm.ReadMemory(FontAddress + uint16(i))
		require.NoError(t, err)
		assert.Equal(t, b, v, "font byte %d", i)
	}
}

func TestLoadROMRoundTrip(t *testing.T) {
	rom := []byte{0x12, 0x34, 0xAB, 0xCD, 0x00, 0xFF, 0x7F}

	vm := New()
	require.NoError(t, vm.LoadROM(rom))

	for i, b := range rom {
		v, err := vm.ReadMemory(ProgramStart + uint16(i))
		require.NoError(t, err)
		assert.Equal(t, b, v)
	}
}

func TestLoadROMMaxSize(t *testing.T) {
	rom := make([]byte, MaxROMSize)
	rom[len(rom)-1] = 0x42

	vm := New()
	require.NoError(t, vm.LoadROM(rom))

	v, err := vm.ReadMemory(MemorySize - 1)
	require.NoError(t, err)
	assert.Equal(t, uint8(0x42), v)
}

func TestLoadROMTooLarge(t *testing.T) {
	rom := make([]byte, MaxROMSize+1)
	for i := range rom {
		rom[i] = 0xEE
	}

	vm := New()
	err := vm.LoadROM(rom)
	require.ErrorIs(t, err, ErrRomTooLarge)

	v, err := vm.ReadMemory(ProgramStart)
	require.NoError(t, err)
	assert.Equal(t, uint8(0), v, "no partial load")
}

func TestStepAdvancesPC(t *testing.T) {
	tests := []struct {
		name   string
		opcode uint16
	}{
		{"cls", 0x00E0},
		{"sys", 0x0123},
		{"mov const", 0x6A12},
		{"add const", 0x7A01},
		{"mov reg", 0x8120},
		{"or", 0x8121},
		{"and", 0x8122},
		{"xor", 0x8123},
		{"add reg", 0x8124},
		{"sub", 0x8125},
		{"shr", 0x8126},
		{"rsb", 0x8127},
		{"shl", 0x812E},
		{"mvi", 0xA300},
		{"rand", 0xC1FF},
		{"sprite", 0xD125},
		{"gdelay", 0xF107},
		{"sdelay", 0xF115},
		{"ssound", 0xF118},
		{"adi", 0xF11E},
		{"font", 0xF129},
		{"bcd", 0xF133},
		{"str", 0xF155},
		{"ldr", 0xF165},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			vm := newTestVM(t, 0xA400, tt.opcode)
			steps(t, vm, 1)

			require.NoError(t, vm.Step())
			assert.Equal(t, ProgramStart+4, vm.State().PC)
		})
	}
}

func TestCallReturn(t *testing.T) {
	vm := newTestVM(t,
		0x2206, // 0x200 jsr 0x206
		0x6001, // 0x202 mov v0, 1
		0x0000, // 0x204
		0x00EE, // 0x206 rts
	)

	steps(t, vm, 1)
	state := vm.State()
	assert.Equal(t, uint16(0x206), state.PC)
	assert.Equal(t, []uint16{0x202}, state.Stack)

	steps(t, vm, 1)
	state = vm.State()
	assert.Equal(t, uint16(0x202), state.PC)
	assert.Empty(t, state.Stack)
}

func TestStackOverflow(t *testing.T) {
	// jsr 0x200 calls itself forever
	vm := newTestVM(t, 0x2200)
	steps(t, vm, StackSize)

	before := vm.State()
	require.Len(t, before.Stack, StackSize)

	err := vm.Step()
	require.ErrorIs(t, err, ErrStackOverflow)

	var opErr *OpcodeError
	require.ErrorAs(t, err, &opErr)
	assert.Equal(t, uint16(0x200), opErr.PC)
	assert.Equal(t, uint16(0x2200), opErr.Opcode)

	assert.Equal(t, before, vm.State())
}

func TestStackUnderflow(t *testing.T) {
	vm := newTestVM(t, 0x00EE)

	before := vm.State()
	require.ErrorIs(t, vm.Step(), ErrStackUnderflow)
	assert.Equal(t, before, vm.State())
}

func TestJump(t *testing.T) {
	vm := newTestVM(t, 0x1ABC)
	steps(t, vm, 1)
	assert.Equal(t, uint16(0xABC), vm.State().PC)
}

func TestJumpWithOffset(t *testing.T) {
	tests := []struct {
		name     string
		quirks   Quirks
		expected uint16
	}{
		{"v0", DefaultQuirks(), 0x310},
		{"vx", Quirks{JumpUsesVX: true}, 0x320},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			vm := newTestVMWithQuirks(t, tt.quirks,
				0x6010, // mov v0, 0x10
				0x6320, // mov v3, 0x20
				0xB300, // jmi 0x300
			)
			steps(t, vm, 3)
			assert.Equal(t, tt.expected, vm.State().PC)
		})
	}
}

func TestSkip(t *testing.T) {
	tests := []struct {
		name    string
		opcode  uint16
		skipped bool
	}{
		{"skeq const taken", 0x3105, true},
		{"skeq const not taken", 0x3106, false},
		{"skne const taken", 0x4106, true},
		{"skne const not taken", 0x4105, false},
		{"skeq reg taken", 0x5120, true},
		{"skeq reg not taken", 0x5130, false},
		{"skne reg taken", 0x9130, true},
		{"skne reg not taken", 0x9120, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			vm := newTestVM(t,
				0x6105, // mov v1, 5
				0x6205, // mov v2, 5
				0x6307, // mov v3, 7
				tt.opcode,
			)
			steps(t, vm, 4)

			expected := ProgramStart + 8
			if tt.skipped {
				expected += InstructionSize
			}
			assert.Equal(t, expected, vm.State().PC)
		})
	}
}

func TestAddConstHasNoFlag(t *testing.T) {
	vm := newTestVM(t,
		0x6FAA, // mov vf, 0xaa
		0x61FF, // mov v1, 0xff
		0x7101, // add v1, 1
	)
	steps(t, vm, 3)

	state := vm.State()
	assert.Equal(t, uint8(0x00), state.Registers[1])
	assert.Equal(t, uint8(0xAA), state.Registers[0xF])
}

func TestArithmetic(t *testing.T) {
	tests := []struct {
		name   string
		x, y   uint8
		opcode uint16
		result uint8
		vf     uint8
	}{
		{"add carry", 0xFF, 0x01, 0x8124, 0x00, 1},
		{"add no carry", 0x01, 0x01, 0x8124, 0x02, 0},
		{"add exact 255", 0xF0, 0x0F, 0x8124, 0xFF, 0},
		{"sub no borrow", 0x05, 0x03, 0x8125, 0x02, 1},
		{"sub equal", 0x05, 0x05, 0x8125, 0x00, 1},
		{"sub borrow", 0x03, 0x05, 0x8125, 0xFE, 0},
		{"rsb no borrow", 0x03, 0x05, 0x8127, 0x02, 1},
		{"rsb equal", 0x05, 0x05, 0x8127, 0x00, 1},
		{"rsb borrow", 0x05, 0x03, 0x8127, 0xFE, 0},
		{"shr odd", 0x05, 0x00, 0x8126, 0x02, 1},
		{"shr even", 0x04, 0x00, 0x8126, 0x02, 0},
		{"shl high bit", 0x81, 0x00, 0x812E, 0x02, 1},
		{"shl no high bit", 0x41, 0x00, 0x812E, 0x82, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			vm := newTestVM(t,
				0x6100|uint16(tt.x),
				0x6200|uint16(tt.y),
				0x6FAA, // vf must be overwritten
				tt.opcode,
			)
			steps(t, vm, 4)

			state := vm.State()
			assert.Equal(t, tt.result, state.Registers[1])
			assert.Equal(t, tt.vf, state.Registers[0xF])
		})
	}
}

func TestFlagWinsOverResult(t *testing.T) {
	vm := newTestVM(t,
		0x6FFF, // mov vf, 0xff
		0x6101, // mov v1, 1
		0x8F14, // add vf, v1
	)
	steps(t, vm, 3)
	assert.Equal(t, uint8(1), vm.State().Registers[0xF])
}

func TestShiftSource(t *testing.T) {
	tests := []struct {
		name   string
		quirks Quirks
		opcode uint16
		result uint8
		vf     uint8
	}{
		{"shr in place", DefaultQuirks(), 0x8126, 0x40, 0},
		{"shr from vy", Quirks{ShiftUsesVY: true}, 0x8126, 0x01, 1},
		{"shl in place", DefaultQuirks(), 0x812E, 0x00, 1},
		{"shl from vy", Quirks{ShiftUsesVY: true}, 0x812E, 0x06, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			vm := newTestVMWithQuirks(t, tt.quirks,
				0x6180, // mov v1, 0x80
				0x6203, // mov v2, 0x03
				tt.opcode,
			)
			steps(t, vm, 3)

			state := vm.State()
			assert.Equal(t, tt.result, state.Registers[1])
			assert.Equal(t, tt.vf, state.Registers[0xF])
		})
	}
}

func TestLogic(t *testing.T) {
	tests := []struct {
		name   string
		opcode uint16
		result uint8
	}{
		{"or", 0x8121, 0xFC},
		{"and", 0x8122, 0x30},
		{"xor", 0x8123, 0xCC},
		{"mov", 0x8120, 0x3C},
	}

	for _, tt := range tests {
		for _, reset := range []bool{false, true} {
			vm := newTestVMWithQuirks(t, Quirks{ResetVF: reset},
				0x61F0, // mov v1, 0xf0
				0x623C, // mov v2, 0x3c
				0x6F07, // mov vf, 7
				tt.opcode,
			)
			steps(t, vm, 4)

			state := vm.State()
			assert.Equal(t, tt.result, state.Registers[1], tt.name)

			vf := uint8(7)
			if reset && tt.opcode != 0x8120 {
				vf = 0
			}
			assert.Equal(t, vf, state.Registers[0xF], tt.name)
		}
	}
}

func TestRand(t *testing.T) {
	vm := newTestVM(t, 0xC10F)
	steps(t, vm, 1)
	assert.Equal(t, uint8(0xAB&0x0F), vm.State().Registers[1])
}

func TestDrawCollision(t *testing.T) {
	vm := newTestVM(t,
		0x6005, // mov v0, 5   (digit and coordinates)
		0xF029, // font v0
		0xD005, // sprite v0, v0, 5
		0xD005, // sprite v0, v0, 5
	)
	steps(t, vm, 3)

	assert.Equal(t, uint8(0), vm.State().Registers[0xF])
	assert.True(t, vm.Display()[5*ScreenWidth+5], "top row of glyph 5 lit")

	steps(t, vm, 1)
	assert.Equal(t, uint8(1), vm.State().Registers[0xF])
	assert.Equal(t, [ScreenWidth * ScreenHeight]bool{}, vm.Display())
}

func TestClearScreen(t *testing.T) {
	vm := newTestVM(t,
		0xA000, // mvi 0 (glyph 0)
		0xD125, // sprite v1, v2, 5
		0x00E0, // cls
	)
	steps(t, vm, 2)
	require.NotEqual(t, [ScreenWidth * ScreenHeight]bool{}, vm.Display())

	steps(t, vm, 1)
	assert.Equal(t, [ScreenWidth * ScreenHeight]bool{}, vm.Display())
}

func TestDrawEdges(t *testing.T) {
	tests := []struct {
		name    string
		quirks  Quirks
		wrapped bool
	}{
		{"clip", DefaultQuirks(), false},
		{"wrap", Quirks{WrapSprites: true}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			vm := newTestVMWithQuirks(t, tt.quirks,
				0x613C, // mov v1, 60
				0x621F, // mov v2, 31
				0xA20A, // mvi 0x20a
				0xD122, // sprite v1, v2, 2
				0x0000,
				0xFFFF, // 0x20a: two full rows
			)
			steps(t, vm, 4)

			display := vm.Display()
			for x := 60; x < ScreenWidth; x++ {
				assert.True(t, display[31*ScreenWidth+x], "x=%d", x)
			}
			assert.Equal(t, tt.wrapped, display[31*ScreenWidth+0], "right edge")
			assert.Equal(t, tt.wrapped, display[0*ScreenWidth+60], "bottom edge")
			assert.Equal(t, tt.wrapped, display[0*ScreenWidth+3], "corner")
		})
	}
}

func TestDrawStartPositionWraps(t *testing.T) {
	vm := newTestVM(t,
		0x6142, // mov v1, 66
		0x6222, // mov v2, 34
		0xA000, // mvi 0 (glyph 0, top row 0xf0)
		0xD121, // sprite v1, v2, 1
	)
	steps(t, vm, 4)

	display := vm.Display()
	assert.True(t, display[2*ScreenWidth+2])
	assert.True(t, display[2*ScreenWidth+5])
	assert.False(t, display[2*ScreenWidth+6])
}

func TestTimers(t *testing.T) {
	vm := newTestVM(t,
		0x6102, // mov v1, 2
		0xF115, // sdelay v1
		0xF118, // ssound v1
		0xF207, // gdelay v2
	)
	steps(t, vm, 3)
	assert.True(t, vm.SoundActive())

	vm.TickTimers()
	steps(t, vm, 1)
	state := vm.State()
	assert.Equal(t, uint8(1), state.Registers[2])
	assert.Equal(t, uint8(1), state.SoundTimer)

	vm.TickTimers()
	assert.False(t, vm.SoundActive())
	assert.Equal(t, uint8(0), vm.State().DelayTimer)

	vm.TickTimers()
	state = vm.State()
	assert.Equal(t, uint8(0), state.DelayTimer)
	assert.Equal(t, uint8(0), state.SoundTimer)
}

func TestKeySkip(t *testing.T) {
	tests := []struct {
		name    string
		opcode  uint16
		pressed bool
		skipped bool
	}{
		{"skpr pressed", 0xE19E, true, true},
		{"skpr released", 0xE19E, false, false},
		{"skup pressed", 0xE1A1, true, false},
		{"skup released", 0xE1A1, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			vm := newTestVM(t,
				0x610A, // mov v1, 0xa
				tt.opcode,
			)
			require.NoError(t, vm.SetKey(KeyA, tt.pressed))
			steps(t, vm, 2)

			expected := ProgramStart + 4
			if tt.skipped {
				expected += InstructionSize
			}
			assert.Equal(t, expected, vm.State().PC)
		})
	}
}

func TestKeyWait(t *testing.T) {
	vm := newTestVM(t,
		0xF30A, // key v3
		0x6101, // mov v1, 1
	)

	for i := 0; i < 5; i++ {
		require.NoError(t, vm.Step())
		assert.Equal(t, ProgramStart, vm.State().PC)
		assert.True(t, vm.Waiting())
	}

	// releases do not end the wait
	require.NoError(t, vm.SetKey(Key7, false))
	steps(t, vm, 1)
	assert.True(t, vm.Waiting())

	require.NoError(t, vm.SetKey(Key7, true))
	assert.False(t, vm.Waiting())
	assert.True(t, vm.KeyPending())

	steps(t, vm, 1)
	assert.False(t, vm.KeyPending())
	state := vm.State()
	assert.Equal(t, uint8(7), state.Registers[3])
	assert.Equal(t, ProgramStart+2, state.PC)
	assert.Equal(t, uint8(0), state.Registers[1])

	steps(t, vm, 1)
	assert.Equal(t, uint8(1), vm.State().Registers[1])
}

func TestKeyWaitNeedsNewPress(t *testing.T) {
	vm := newTestVM(t, 0xF30A)
	require.NoError(t, vm.SetKey(Key2, true))

	steps(t, vm, 2)
	assert.True(t, vm.Waiting(), "a key held before the wait does not end it")

	require.NoError(t, vm.SetKey(Key2, false))
	require.NoError(t, vm.SetKey(Key2, true))
	steps(t, vm, 1)
	assert.Equal(t, uint8(2), vm.State().Registers[3])
}

func TestSetKeyInvalid(t *testing.T) {
	vm := New()
	require.ErrorIs(t, vm.SetKey(Key(16), true), ErrInvalidKey)
}

func TestInvalidOpcode(t *testing.T) {
	for _, opcode := range []uint16{0x5121, 0x800F, 0x9121, 0xE100, 0xF1FF} {
		vm := newTestVM(t, 0x6133, opcode)
		steps(t, vm, 1)

		before := vm.State()
		display := vm.Display()

		err := vm.Step()
		require.ErrorIs(t, err, ErrInvalidOpcode)

		var opErr *OpcodeError
		require.ErrorAs(t, err, &opErr)
		assert.Equal(t, opcode, opErr.Opcode)
		assert.Equal(t, ProgramStart+2, opErr.PC)

		assert.Equal(t, before, vm.State())
		assert.Equal(t, display, vm.Display())

		vm.SkipInstruction()
		assert.Equal(t, ProgramStart+4, vm.State().PC)
	}
}

func TestIndexOpcodes(t *testing.T) {
	vm := newTestVM(t,
		0xA300, // mvi 0x300
		0x6110, // mov v1, 0x10
		0xF11E, // adi v1
		0x610E, // mov v1, 0xe
		0xF129, // font v1
	)

	steps(t, vm, 3)
	assert.Equal(t, uint16(0x310), vm.State().Index)

	steps(t, vm, 2)
	assert.Equal(t, uint16(0xE*FontGlyphSize), vm.State().Index)
}

func TestBCD(t *testing.T) {
	vm := newTestVM(t,
		0x61FE, // mov v1, 254
		0xA300, // mvi 0x300
		0xF133, // bcd v1
	)
	steps(t, vm, 3)

	for i, expected := range []uint8{2, 5, 4} {
		v, err := vm.ReadMemory(0x300 + uint16(i))
		require.NoError(t, err)
		assert.Equal(t, expected, v)
	}
	assert.Equal(t, uint16(0x300), vm.State().Index)
}

func TestBCDOutOfBounds(t *testing.T) {
	vm := newTestVM(t,
		0xAFFE, // mvi 0xffe
		0xF133, // bcd v1
	)
	steps(t, vm, 1)

	before := vm.State()
	require.ErrorIs(t, vm.Step(), ErrOutOfBounds)
	assert.Equal(t, before, vm.State())
}

func TestStoreLoadRegisters(t *testing.T) {
	tests := []struct {
		name   string
		quirks Quirks
		index  uint16
	}{
		{"increment index", DefaultQuirks(), 0x300 + 3},
		{"fixed index", Quirks{}, 0x300},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			vm := newTestVMWithQuirks(t, tt.quirks,
				0x6011, // mov v0, 0x11
				0x6122, // mov v1, 0x22
				0x6233, // mov v2, 0x33
				0x6344, // mov v3, 0x44
				0xA300, // mvi 0x300
				0xF255, // str v0-v2
			)
			steps(t, vm, 6)

			for i, expected := range []uint8{0x11, 0x22, 0x33, 0x00} {
				v, err := vm.ReadMemory(0x300 + uint16(i))
				require.NoError(t, err)
				assert.Equal(t, expected, v)
			}
			assert.Equal(t, tt.index, vm.State().Index)
		})
	}
}

func TestLoadRegisters(t *testing.T) {
	vm := newTestVM(t,
		0xA20A, // mvi 0x20a
		0xF265, // ldr v0-v2
		0x0000,
		0x0000,
		0x0000,
		0x0102, // 0x20a
		0x0304,
	)
	steps(t, vm, 2)

	state := vm.State()
	assert.Equal(t, [RegisterCount]uint8{1, 2, 3}, state.Registers)
	assert.Equal(t, uint16(0x20D), state.Index)
}

func TestStoreOutOfBounds(t *testing.T) {
	vm := newTestVM(t,
		0xAFFD, // mvi 0xffd
		0xF355, // str v0-v3
	)
	steps(t, vm, 1)

	before := vm.State()
	require.ErrorIs(t, vm.Step(), ErrOutOfBounds)
	assert.Equal(t, before, vm.State())
}

func TestFetchOutOfBounds(t *testing.T) {
	vm := newTestVM(t,
		0x60FF, // mov v0, 0xff
		0xBFFF, // jmi 0xfff
	)
	steps(t, vm, 2)

	require.ErrorIs(t, vm.Step(), ErrOutOfBounds)
}

func TestReset(t *testing.T) {
	vm := newTestVM(t,
		0x6105, // mov v1, 5
		0xF118, // ssound v1
		0xA000, // mvi 0
		0xD115, // sprite v1, v1, 5
		0x2200, // jsr 0x200
	)
	steps(t, vm, 5)
	require.NoError(t, vm.SetKey(Key1, true))

	vm.Reset()

	assert.False(t, vm.keypad.IsPressed(Key1))

	state := vm.State()
	assert.Equal(t, ProgramStart, state.PC)
	assert.Equal(t, [RegisterCount]uint8{}, state.Registers)
	assert.Empty(t, state.Stack)
	assert.False(t, vm.SoundActive())
	assert.Equal(t, [ScreenWidth * ScreenHeight]bool{}, vm.Display())

	v, err := vm.ReadMemory(ProgramStart)
	require.NoError(t, err)
	assert.Equal(t, uint8(0), v, "program is gone")

	v, err = vm.ReadMemory(FontAddress)
	require.NoError(t, err)
	assert.Equal(t, chip8Font[0], v, "font is reloaded")
}

func TestResetDuringKeyWait(t *testing.T) {
	vm := newTestVM(t, 0xF30A) // key v3
	require.NoError(t, vm.SetKey(Key4, true))
	steps(t, vm, 1)
	require.True(t, vm.Waiting())

	vm.Reset()

	assert.False(t, vm.Waiting())
	assert.False(t, vm.KeyPending())
	assert.False(t, vm.State().Waiting)
	for k := Key0; k <= KeyF; k++ {
		assert.False(t, vm.keypad.IsPressed(k), "key %X", k)
	}

	// a press after the reset does not complete the abandoned wait
	require.NoError(t, vm.LoadROM([]byte{0x61, 0x05})) // mov v1, 5
	require.NoError(t, vm.SetKey(Key9, true))
	steps(t, vm, 1)

	state := vm.State()
	assert.Equal(t, uint8(0), state.Registers[3])
	assert.Equal(t, uint8(5), state.Registers[1])
	assert.Equal(t, ProgramStart+2, state.PC)
}
