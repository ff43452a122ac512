package vm

import (
	"fmt"
)

// The computers which originally used CHIP-8 had a 16-key hexadecimal
// keypad with the following layout:
//
//	+---+---+---+---+
//	| 1 | 2 | 3 | C |
//	+---+---+---+---+
//	| 4 | 5 | 6 | D |
//	+---+---+---+---+
//	| 7 | 8 | 9 | E |
//	+---+---+---+---+
//	| A | 0 | B | F |
//	+---+---+---+---+
type Key uint8

const (
	Key0 = Key(iota)
	Key1
	Key2
	Key3
	Key4
	Key5
	Key6
	Key7
	Key8
	Key9
	KeyA
	KeyB
	KeyC
	KeyD
	KeyE
	KeyF
)

// Keypad holds the pressed state of every key and the suspension state used
// by the wait-for-key instruction.
type Keypad struct {
	keys [KeyCount]bool

	waiting  bool // suspended until a key is pressed
	resolved bool // a press ended the wait and has not been consumed yet
	key      Key  // the key that ended the wait
}

func (k *Keypad) reset() {
	*k = Keypad{}
}

// SetKey records the state of one key. A press while the keypad is waiting
// ends the wait.
func (k *Keypad) SetKey(key Key, pressed bool) error {
	if int(key) >= KeyCount {
		return fmt.Errorf("%w: %d", ErrInvalidKey, key)
	}

	wasPressed := k.keys[key]
	k.keys[key] = pressed

	if k.waiting && pressed && !wasPressed {
		k.waiting = false
		k.resolved = true
		k.key = key
	}

	return nil
}

func (k *Keypad) IsPressed(key Key) bool {
	return int(key) < KeyCount && k.keys[key]
}

// Wait suspends the keypad until the next key press.
func (k *Keypad) Wait() {
	k.waiting = true
	k.resolved = false
}

func (k *Keypad) Waiting() bool {
	return k.waiting
}

// resolve returns the key that ended the last wait, once.
func (k *Keypad) resolve() (Key, bool) {
	if !k.resolved {
		return 0, false
	}
	k.resolved = false
	return k.key, true
}
