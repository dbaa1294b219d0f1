// Package joypad models the JOYP input latch at $FF00: two writable
// select bits and four readable, active-low input bits, plus the
// 1->0 transition interrupt.
//
// Extracted from the bus-embedded joypSelect/joypad/joypLower4 fields
// and updateJoypadIRQ method of the teacher's internal/bus/bus.go,
// generalized to own its own button bitmap and report through a
// *pic.PIC handle.
package joypad

import "github.com/sm83lab/dotmatrix/internal/pic"

// Button identifies one of the eight DMG buttons.
type Button int

const (
	Right Button = iota
	Left
	Up
	Down
	A
	B
	Select
	Start
)

// State is the pressed/released state carried by an Event, matching
// the embedder-facing send(events: iter<(Button, State)>) contract.
type State int

const (
	Released State = iota
	Pressed
)

// Event pairs a button with its new state, for batched Send calls.
type Event struct {
	Button Button
	State  State
}

// Joypad owns the button bitmap and selection register.
type Joypad struct {
	selectBits byte // last written bits 5..4
	buttons    byte // bit set = pressed, indices match Button
	lowerLatch byte // last computed active-low lower nibble, for edge detection

	pic *pic.PIC
}

// New returns a Joypad wired to the given interrupt controller.
func New(p *pic.PIC) *Joypad { return &Joypad{pic: p} }

// Reset clears button state and selection.
func (j *Joypad) Reset() { j.selectBits, j.buttons, j.lowerLatch = 0, 0, 0x0F }

// Send records a button transition and raises the joypad interrupt on
// any 1->0 transition of the currently-selected lower nibble.
func (j *Joypad) Send(b Button, pressed bool) {
	if pressed {
		j.buttons |= 1 << uint(b)
	} else {
		j.buttons &^= 1 << uint(b)
	}
	j.recompute()
}

// SendEvents applies a batch of button transitions, matching spec.md
// §6.1's joypad.send(events) embedder surface.
func (j *Joypad) SendEvents(events []Event) {
	for _, e := range events {
		j.Send(e.Button, e.State == Pressed)
	}
}

// ReadJOYP returns the $FF00 register value.
func (j *Joypad) ReadJOYP() byte {
	res := byte(0xC0 | (j.selectBits & 0x30) | 0x0F)
	if j.selectBits&0x10 == 0 { // P14 low selects D-pad
		if j.buttons&(1<<Right) != 0 {
			res &^= 0x01
		}
		if j.buttons&(1<<Left) != 0 {
			res &^= 0x02
		}
		if j.buttons&(1<<Up) != 0 {
			res &^= 0x04
		}
		if j.buttons&(1<<Down) != 0 {
			res &^= 0x08
		}
	}
	if j.selectBits&0x20 == 0 { // P15 low selects buttons
		if j.buttons&(1<<A) != 0 {
			res &^= 0x01
		}
		if j.buttons&(1<<B) != 0 {
			res &^= 0x02
		}
		if j.buttons&(1<<Select) != 0 {
			res &^= 0x04
		}
		if j.buttons&(1<<Start) != 0 {
			res &^= 0x08
		}
	}
	return res
}

// WriteJOYP stores the select bits and recomputes the IRQ edge, since
// changing selection can itself expose a newly-pressed button.
func (j *Joypad) WriteJOYP(v byte) {
	j.selectBits = v & 0x30
	j.recompute()
}

func (j *Joypad) recompute() {
	newLower := j.ReadJOYP() & 0x0F
	falling := j.lowerLatch &^ newLower
	if falling != 0 {
		j.pic.Request(pic.Joypad)
	}
	j.lowerLatch = newLower
}

// State snapshot for save states.
type SaveState struct {
	SelectBits, Buttons, LowerLatch byte
}

func (j *Joypad) Save() SaveState {
	return SaveState{SelectBits: j.selectBits, Buttons: j.buttons, LowerLatch: j.lowerLatch}
}

func (j *Joypad) Load(s SaveState) {
	j.selectBits, j.buttons, j.lowerLatch = s.SelectBits, s.Buttons, s.LowerLatch
}
