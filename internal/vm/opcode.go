package vm

import (
	"fmt"
)

// Op identifies one instruction form.
type Op uint8

const (
	OpCls       Op = iota // 00E0
	OpRts                 // 00EE
	OpSys                 // 0NNN
	OpJmp                 // 1NNN
	OpJsr                 // 2NNN
	OpSkeqConst           // 3XNN
	OpSkneConst           // 4XNN
	OpSkeqReg             // 5XY0
	OpMovConst            // 6XNN
	OpAddConst            // 7XNN
	OpMovReg              // 8XY0
	OpOr                  // 8XY1
	OpAnd                 // 8XY2
	OpXor                 // 8XY3
	OpAddReg              // 8XY4
	OpSub                 // 8XY5
	OpShr                 // 8XY6
	OpRsb                 // 8XY7
	OpShl                 // 8XYE
	OpSkneReg             // 9XY0
	OpMvi                 // ANNN
	OpJmi                 // BNNN
	OpRand                // CXNN
	OpSprite              // DXYN
	OpSkpr                // EX9E
	OpSkup                // EXA1
	OpGdelay              // FX07
	OpKey                 // FX0A
	OpSdelay              // FX15
	OpSsound              // FX18
	OpAdi                 // FX1E
	OpFont                // FX29
	OpBcd                 // FX33
	OpStr                 // FX55
	OpLdr                 // FX65

	opCount
)

// Instruction is a decoded opcode with its operand fields extracted.
type Instruction struct {
	Op     Op
	Opcode uint16

	X   uint8  // second nibble, register index
	Y   uint8  // third nibble, register index
	N   uint8  // last nibble
	NN  uint8  // low byte
	NNN uint16 // low 12 bits, an address
}

// Decode splits opcode into its fields and identifies the instruction. It
// returns ErrInvalidOpcode if no instruction matches.
func Decode(opcode uint16) (Instruction, error) {
	op, ok := decodeOp(opcode)
	if !ok {
		return Instruction{Op: opCount, Opcode: opcode}, ErrInvalidOpcode
	}

	return Instruction{
		Op:     op,
		Opcode: opcode,
		X:      uint8((opcode & 0x0F00) >> 8),
		Y:      uint8((opcode & 0x00F0) >> 4),
		N:      uint8(opcode & 0x000F),
		NN:     uint8(opcode & 0x00FF),
		NNN:    opcode & 0x0FFF,
	}, nil
}

func decodeOp(opcode uint16) (Op, bool) {
	switch opcode & 0xF000 {
	case 0x0000:
		switch opcode {
		case 0x00E0:
			// 00E0 - Clear screen
			return OpCls, true

		case 0x00EE:
			// 00EE - Return from subroutine
			return OpRts, true
		}

		// 0NNN - Call machine code routine at NNN, ignored
		return OpSys, true

	case 0x1000:
		// 1NNN - Jumps to address NNN
		return OpJmp, true

	case 0x2000:
		// 2NNN - Calls subroutine at NNN
		return OpJsr, true

	case 0x3000:
		// 3XNN - Skips the next instruction if VX equals NN
		return OpSkeqConst, true

	case 0x4000:
		// 4XNN - Skips the next instruction if VX does not equal NN
		return OpSkneConst, true

	case 0x5000:
		// 5XY0 - Skips the next instruction if VX equals VY
		if opcode&0x000F == 0 {
			return OpSkeqReg, true
		}

	case 0x6000:
		// 6XNN - Sets VX to NN
		return OpMovConst, true

	case 0x7000:
		// 7XNN - Adds NN to VX, VF is not affected
		return OpAddConst, true

	case 0x8000:
		switch opcode & 0x000F {
		case 0x0000:
			// 8XY0 - Sets VX to the value of VY
			return OpMovReg, true

		case 0x0001:
			// 8XY1 - Sets VX to (VX OR VY)
			return OpOr, true

		case 0x0002:
			// 8XY2 - Sets VX to (VX AND VY)
			return OpAnd, true

		case 0x0003:
			// 8XY3 - Sets VX to (VX XOR VY)
			return OpXor, true

		case 0x0004:
			// 8XY4 - Adds VY to VX. VF is set to 1 when there's a carry, and to 0 when there isn't.
			return OpAddReg, true

		case 0x0005:
			// 8XY5 - VY is subtracted from VX. VF is set to 0 when there's a borrow, and 1 when there isn't.
			return OpSub, true

		case 0x0006:
			// 8XY6 - Shifts right by one. VF is set to the bit shifted out.
			return OpShr, true

		case 0x0007:
			// 8XY7 - Sets VX to VY minus VX. VF is set to 0 when there's a borrow, and 1 when there isn't.
			return OpRsb, true

		case 0x000E:
			// 8XYE - Shifts left by one. VF is set to the bit shifted out.
			return OpShl, true
		}

	case 0x9000:
		// 9XY0 - Skips the next instruction if VX doesn't equal VY
		if opcode&0x000F == 0 {
			return OpSkneReg, true
		}

	case 0xA000:
		// ANNN - Sets I to the address NNN
		return OpMvi, true

	case 0xB000:
		// BNNN - Jumps to the address NNN plus V0
		return OpJmi, true

	case 0xC000:
		// CXNN - Sets VX to a random number, masked by NN
		return OpRand, true

	case 0xD000:
		// DXYN - Draws an 8xN sprite read from I at (VX, VY), VF is set on collision
		return OpSprite, true

	case 0xE000:
		switch opcode & 0x00FF {
		case 0x009E:
			// EX9E - Skips the next instruction if the key stored in VX is pressed
			return OpSkpr, true

		case 0x00A1:
			// EXA1 - Skips the next instruction if the key stored in VX isn't pressed
			return OpSkup, true
		}

	case 0xF000:
		switch opcode & 0x00FF {
		case 0x0007:
			// FX07 - Sets VX to the value of the delay timer
			return OpGdelay, true

		case 0x000A:
			// FX0A - A key press is awaited, and then stored in VX
			return OpKey, true

		case 0x0015:
			// FX15 - Sets the delay timer to VX
			return OpSdelay, true

		case 0x0018:
			// FX18 - Sets the sound timer to VX
			return OpSsound, true

		case 0x001E:
			// FX1E - Adds VX to I
			return OpAdi, true

		case 0x0029:
			// FX29 - Sets I to the location of the font sprite for the digit in VX
			return OpFont, true

		case 0x0033:
			// FX33 - Stores the binary-coded decimal representation of VX at I, I+1 and I+2
			return OpBcd, true

		case 0x0055:
			// FX55 - Stores V0 to VX in memory starting at address I
			return OpStr, true

		case 0x0065:
			// FX65 - Reads memory starting at address I into V0...VX
			return OpLdr, true
		}
	}

	return 0, false
}

// String disassembles the instruction.
func (in Instruction) String() string {
	switch in.Op {
	case OpCls:
		return "cls"
	case OpRts:
		return "rts"
	case OpSys:
		return fmt.Sprintf("sys 0x%04x", in.NNN)
	case OpJmp:
		return fmt.Sprintf("jmp 0x%04x", in.NNN)
	case OpJsr:
		return fmt.Sprintf("jsr 0x%04x", in.NNN)
	case OpSkeqConst:
		return fmt.Sprintf("skeq v%x, %d", in.X, in.NN)
	case OpSkneConst:
		return fmt.Sprintf("skne v%x, %d", in.X, in.NN)
	case OpSkeqReg:
		return fmt.Sprintf("skeq v%x, v%x", in.X, in.Y)
	case OpMovConst:
		return fmt.Sprintf("mov v%x, %d", in.X, in.NN)
	case OpAddConst:
		return fmt.Sprintf("add v%x, %d", in.X, in.NN)
	case OpMovReg:
		return fmt.Sprintf("mov v%x, v%x", in.X, in.Y)
	case OpOr:
		return fmt.Sprintf("or v%x, v%x", in.X, in.Y)
	case OpAnd:
		return fmt.Sprintf("and v%x, v%x", in.X, in.Y)
	case OpXor:
		return fmt.Sprintf("xor v%x, v%x", in.X, in.Y)
	case OpAddReg:
		return fmt.Sprintf("add v%x, v%x", in.X, in.Y)
	case OpSub:
		return fmt.Sprintf("sub v%x, v%x", in.X, in.Y)
	case OpShr:
		return fmt.Sprintf("shr v%x, v%x", in.X, in.Y)
	case OpRsb:
		return fmt.Sprintf("rsb v%x, v%x", in.X, in.Y)
	case OpShl:
		return fmt.Sprintf("shl v%x, v%x", in.X, in.Y)
	case OpSkneReg:
		return fmt.Sprintf("skne v%x, v%x", in.X, in.Y)
	case OpMvi:
		return fmt.Sprintf("mvi 0x%04x", in.NNN)
	case OpJmi:
		return fmt.Sprintf("jmi 0x%04x", in.NNN)
	case OpRand:
		return fmt.Sprintf("rand v%x, 0x%02x", in.X, in.NN)
	case OpSprite:
		return fmt.Sprintf("sprite v%x, v%x, %d", in.X, in.Y, in.N)
	case OpSkpr:
		return fmt.Sprintf("skpr v%x", in.X)
	case OpSkup:
		return fmt.Sprintf("skup v%x", in.X)
	case OpGdelay:
		return fmt.Sprintf("gdelay v%x", in.X)
	case OpKey:
		return fmt.Sprintf("key v%x", in.X)
	case OpSdelay:
		return fmt.Sprintf("sdelay v%x", in.X)
	case OpSsound:
		return fmt.Sprintf("ssound v%x", in.X)
	case OpAdi:
		return fmt.Sprintf("adi v%x", in.X)
	case OpFont:
		return fmt.Sprintf("font v%x", in.X)
	case OpBcd:
		return fmt.Sprintf("bcd v%x", in.X)
	case OpStr:
		return fmt.Sprintf("str v0-v%x", in.X)
	case OpLdr:
		return fmt.Sprintf("ldr v0-v%x", in.X)
	}

	return fmt.Sprintf("unknown 0x%04X", in.Opcode)
}
