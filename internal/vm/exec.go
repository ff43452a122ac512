package vm

// The program counter has already been moved past the instruction when a
// handler runs. Handlers that fail must do so before changing any state.
var handlers = [opCount]func(vm *VM, in Instruction) error{
	OpCls:       (*VM).cls,
	OpRts:       (*VM).rts,
	OpSys:       (*VM).sys,
	OpJmp:       (*VM).jmp,
	OpJsr:       (*VM).jsr,
	OpSkeqConst: (*VM).skeqConst,
	OpSkneConst: (*VM).skneConst,
	OpSkeqReg:   (*VM).skeqReg,
	OpMovConst:  (*VM).movConst,
	OpAddConst:  (*VM).addConst,
	OpMovReg:    (*VM).movReg,
	OpOr:        (*VM).or,
	OpAnd:       (*VM).and,
	OpXor:       (*VM).xor,
	OpAddReg:    (*VM).addReg,
	OpSub:       (*VM).sub,
	OpShr:       (*VM).shr,
	OpRsb:       (*VM).rsb,
	OpShl:       (*VM).shl,
	OpSkneReg:   (*VM).skneReg,
	OpMvi:       (*VM).mvi,
	OpJmi:       (*VM).jmi,
	OpRand:      (*VM).rand,
	OpSprite:    (*VM).sprite,
	OpSkpr:      (*VM).skpr,
	OpSkup:      (*VM).skup,
	OpGdelay:    (*VM).gdelay,
	OpKey:       (*VM).key,
	OpSdelay:    (*VM).sdelay,
	OpSsound:    (*VM).ssound,
	OpAdi:       (*VM).adi,
	OpFont:      (*VM).font,
	OpBcd:       (*VM).bcd,
	OpStr:       (*VM).str,
	OpLdr:       (*VM).ldr,
}

func (vm *VM) execute(in Instruction) error {
	if in.Op >= opCount {
		return ErrInvalidOpcode
	}
	return handlers[in.Op](vm, in)
}

func flag(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}

func (vm *VM) skipIf(cond bool) {
	if cond {
		vm.pc += InstructionSize
	}
}

// 00E0	cls	Clear the screen
func (vm *VM) cls(_ Instruction) error {
	vm.display.Clear()
	return nil
}

// 00EE	rts	return from subroutine call
func (vm *VM) rts(_ Instruction) error {
	if vm.sp == 0 {
		return ErrStackUnderflow
	}

	vm.sp--
	vm.pc = vm.stack[vm.sp]
	return nil
}

// 0xxx	sys xxx	machine code routine, not supported by interpreters
func (vm *VM) sys(_ Instruction) error {
	return nil
}

// 1xxx	jmp xxx	jump to address xxx
func (vm *VM) jmp(in Instruction) error {
	vm.pc = in.NNN
	return nil
}

// 2xxx	jsr xxx	jump to subroutine at address xxx
func (vm *VM) jsr(in Instruction) error {
	if int(vm.sp) >= StackSize {
		return ErrStackOverflow
	}

	vm.stack[vm.sp] = vm.pc
	vm.sp++
	vm.pc = in.NNN
	return nil
}

// 3rxx	skeq vr,xx	skip if register r = constant
func (vm *VM) skeqConst(in Instruction) error {
	vm.skipIf(vm.registers[in.X] == in.NN)
	return nil
}

// 4rxx	skne vr,xx	skip if register r <> constant
func (vm *VM) skneConst(in Instruction) error {
	vm.skipIf(vm.registers[in.X] != in.NN)
	return nil
}

// 5ry0	skeq vr,vy	skip if register r = register y
func (vm *VM) skeqReg(in Instruction) error {
	vm.skipIf(vm.registers[in.X] == vm.registers[in.Y])
	return nil
}

// 6rxx	mov vr,xx	move constant to register r
func (vm *VM) movConst(in Instruction) error {
	vm.registers[in.X] = in.NN
	return nil
}

// 7rxx	add vr,xx	add constant to register r	No carry generated
func (vm *VM) addConst(in Instruction) error {
	vm.registers[in.X] += in.NN
	return nil
}

// 8ry0	mov vr,vy	move register vy into vr
func (vm *VM) movReg(in Instruction) error {
	vm.registers[in.X] = vm.registers[in.Y]
	return nil
}

// 8ry1	or rx,ry	or register vy into register vx
func (vm *VM) or(in Instruction) error {
	vm.registers[in.X] |= vm.registers[in.Y]
	if vm.quirks.ResetVF {
		vm.registers[0x0F] = 0
	}
	return nil
}

// 8ry2	and rx,ry	and register vy into register vx
func (vm *VM) and(in Instruction) error {
	vm.registers[in.X] &= vm.registers[in.Y]
	if vm.quirks.ResetVF {
		vm.registers[0x0F] = 0
	}
	return nil
}

// 8ry3	xor rx,ry	exclusive or register ry into register rx
func (vm *VM) xor(in Instruction) error {
	vm.registers[in.X] ^= vm.registers[in.Y]
	if vm.quirks.ResetVF {
		vm.registers[0x0F] = 0
	}
	return nil
}

// 8ry4	add vr,vy	add register vy to vr,carry in vf
func (vm *VM) addReg(in Instruction) error {
	sum := uint16(vm.registers[in.X]) + uint16(vm.registers[in.Y])

	vm.registers[in.X] = uint8(sum)
	vm.registers[0x0F] = flag(sum > 0xFF)
	return nil
}

// 8ry5	sub vr,vy	subtract register vy from vr,borrow in vf	vf set to 0 if borrows
func (vm *VM) sub(in Instruction) error {
	x := vm.registers[in.X]
	y := vm.registers[in.Y]

	vm.registers[in.X] = x - y
	vm.registers[0x0F] = flag(x >= y)
	return nil
}

// 8ry6	shr vr	shift register right, bit 0 goes into register vf
func (vm *VM) shr(in Instruction) error {
	src := vm.shiftSource(in)

	vm.registers[in.X] = src >> 1
	vm.registers[0x0F] = src & 0x1
	return nil
}

// 8ry7	rsb vr,vy	subtract register vr from register vy, result in vr	vf set to 0 if borrows
func (vm *VM) rsb(in Instruction) error {
	x := vm.registers[in.X]
	y := vm.registers[in.Y]

	vm.registers[in.X] = y - x
	vm.registers[0x0F] = flag(y >= x)
	return nil
}

// 8rye	shl vr	shift register left, bit 7 goes into register vf
func (vm *VM) shl(in Instruction) error {
	src := vm.shiftSource(in)

	vm.registers[in.X] = src << 1
	vm.registers[0x0F] = src >> 7
	return nil
}

func (vm *VM) shiftSource(in Instruction) uint8 {
	if vm.quirks.ShiftUsesVY {
		return vm.registers[in.Y]
	}
	return vm.registers[in.X]
}

// 9ry0	skne rx,ry	skip if rx not equal to ry
func (vm *VM) skneReg(in Instruction) error {
	vm.skipIf(vm.registers[in.X] != vm.registers[in.Y])
	return nil
}

// axxx	mvi xxx	Load index register with constant xxx
func (vm *VM) mvi(in Instruction) error {
	vm.index = in.NNN
	return nil
}

// bxxx	jmi xxx	Jump to address xxx+register v0
func (vm *VM) jmi(in Instruction) error {
	offset := vm.registers[0]
	if vm.quirks.JumpUsesVX {
		offset = vm.registers[in.X]
	}

	vm.pc = in.NNN + uint16(offset)
	return nil
}

// crxx	rand vr,xx	vr = random byte masked by xx
func (vm *VM) rand(in Instruction) error {
	vm.registers[in.X] = uint8(vm.rng.IntN(256)) & in.NN
	return nil
}

// dxyn	sprite rx,ry,n	Draw sprite at screen location rx,ry height n
// Sprites are read from the index register onwards, 8 pixels wide. If a lit
// pixel is cleared vf is set to 1, otherwise 0.
func (vm *VM) sprite(in Instruction) error {
	var rows [0x10]uint8
	for y := uint16(0); y < uint16(in.N); y++ {
		rows[y] = vm.memory.fetchWrapped(vm.index + y)
	}

	collided := vm.display.DrawSprite(vm.registers[in.X], vm.registers[in.Y], rows[:in.N], vm.quirks.WrapSprites)
	vm.registers[0x0F] = flag(collided)
	return nil
}

// ek9e	skpr k	skip if key (register rk) pressed
func (vm *VM) skpr(in Instruction) error {
	key := Key(vm.registers[in.X] & 0x0F)
	vm.skipIf(vm.keypad.IsPressed(key))
	return nil
}

// eka1	skup k	skip if key (register rk) not pressed
func (vm *VM) skup(in Instruction) error {
	key := Key(vm.registers[in.X] & 0x0F)
	vm.skipIf(!vm.keypad.IsPressed(key))
	return nil
}

// fr07	gdelay vr	get delay timer into vr
func (vm *VM) gdelay(in Instruction) error {
	vm.registers[in.X] = vm.delayTimer.Value()
	return nil
}

// fr0a	key vr	wait for for keypress,put key in register vr
// The program counter stays on this instruction until Step sees the press.
func (vm *VM) key(in Instruction) error {
	vm.pc -= InstructionSize
	vm.waitRegister = in.X
	vm.keypad.Wait()
	return nil
}

// fr15	sdelay vr	set the delay timer to vr
func (vm *VM) sdelay(in Instruction) error {
	vm.delayTimer.Set(vm.registers[in.X])
	return nil
}

// fr18	ssound vr	set the sound timer to vr
func (vm *VM) ssound(in Instruction) error {
	vm.soundTimer.Set(vm.registers[in.X])
	return nil
}

// fr1e	adi vr	add register vr to the index register
func (vm *VM) adi(in Instruction) error {
	vm.index += uint16(vm.registers[in.X])
	return nil
}

// fr29	font vr	point I to the sprite for hexadecimal character in vr	Sprite is 5 bytes high
func (vm *VM) font(in Instruction) error {
	digit := uint16(vm.registers[in.X] & 0x0F)
	vm.index = FontAddress + digit*FontGlyphSize
	return nil
}

// fr33	bcd vr	store the bcd representation of register vr at location I,I+1,I+2	Doesn't change I
func (vm *VM) bcd(in Instruction) error {
	buf, err := vm.memory.span(vm.index, 3)
	if err != nil {
		return err
	}

	x := vm.registers[in.X]
	buf[0] = x / 100
	buf[1] = (x / 10) % 10
	buf[2] = x % 10
	return nil
}

// fr55	str v0-vr	store registers v0-vr at location I onwards
func (vm *VM) str(in Instruction) error {
	n := int(in.X) + 1

	buf, err := vm.memory.span(vm.index, n)
	if err != nil {
		return err
	}
	copy(buf, vm.registers[:n])

	// On the original interpreter, when the operation is done, I = I + X + 1.
	if vm.quirks.IncrementIndex {
		vm.index += uint16(n)
	}
	return nil
}

// fr65	ldr v0-vr	load registers v0-vr from location I onwards
func (vm *VM) ldr(in Instruction) error {
	n := int(in.X) + 1

	buf, err := vm.memory.span(vm.index, n)
	if err != nil {
		return err
	}
	copy(vm.registers[:n], buf)

	if vm.quirks.IncrementIndex {
		vm.index += uint16(n)
	}
	return nil
}
