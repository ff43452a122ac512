package vm

import (
	"fmt"
)

// MaxROMSize is the space available between ProgramStart and the end of memory.
const MaxROMSize = MemorySize - int(ProgramStart)

// Memory is the flat 4K address space. The font occupies the bottom of it
// and programs are loaded at ProgramStart.
type Memory struct {
	data [MemorySize]uint8
}

func (m *Memory) reset() {
	m.data = [MemorySize]uint8{}
	copy(m.data[FontAddress:], chip8Font)
}

// Load copies rom into memory at ProgramStart. Nothing is written if the
// rom does not fit.
func (m *Memory) Load(rom []byte) error {
	if len(rom) > MaxROMSize {
		return fmt.Errorf("%w: %d bytes, at most %d fit", ErrRomTooLarge, len(rom), MaxROMSize)
	}

	copy(m.data[ProgramStart:], rom)
	return nil
}

func (m *Memory) Read(addr uint16) (uint8, error) {
	if int(addr) >= MemorySize {
		return 0, fmt.Errorf("%w: read 0x%04x", ErrOutOfBounds, addr)
	}
	return m.data[addr], nil
}

func (m *Memory) Write(addr uint16, value uint8) error {
	if int(addr) >= MemorySize {
		return fmt.Errorf("%w: write 0x%04x", ErrOutOfBounds, addr)
	}
	m.data[addr] = value
	return nil
}

// span returns the n bytes starting at addr, or an error if any of them lie
// outside the address space.
func (m *Memory) span(addr uint16, n int) ([]uint8, error) {
	end := int(addr) + n
	if end > MemorySize {
		return nil, fmt.Errorf("%w: 0x%04x-0x%04x", ErrOutOfBounds, addr, end-1)
	}
	return m.data[addr:end], nil
}

// fetchWrapped reads with the address taken modulo the address space, as
// sprite lookups do.
func (m *Memory) fetchWrapped(addr uint16) uint8 {
	return m.data[int(addr)%MemorySize]
}
