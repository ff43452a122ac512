package vm

import (
	"errors"
	"fmt"
)

var (
	ErrRomTooLarge    = errors.New("rom too large")
	ErrInvalidOpcode  = errors.New("invalid opcode")
	ErrStackOverflow  = errors.New("stack overflow")
	ErrStackUnderflow = errors.New("stack underflow")
	ErrOutOfBounds    = errors.New("memory access out of bounds")
	ErrInvalidKey     = errors.New("invalid key")
)

// OpcodeError is returned by Step when an instruction cannot be decoded or
// executed. It unwraps to one of the sentinel errors above.
type OpcodeError struct {
	PC     uint16
	Opcode uint16
	Err    error
}

func (e *OpcodeError) Error() string {
	return fmt.Sprintf("0x%04x: opcode 0x%04X: %v", e.PC, e.Opcode, e.Err)
}

func (e *OpcodeError) Unwrap() error {
	return e.Err
}
