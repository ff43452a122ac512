package vm

// Timer is an 8-bit down counter. It is idle at zero and active otherwise.
type Timer struct {
	value uint8
}

func (t *Timer) Set(value uint8) {
	t.value = value
}

// Tick decrements an active timer. Ticking an idle timer does nothing.
func (t *Timer) Tick() {
	if t.value > 0 {
		t.value--
	}
}

func (t *Timer) Value() uint8 {
	return t.value
}

func (t *Timer) Active() bool {
	return t.value > 0
}
