// Package timer models the DMG divider/timer unit: DIV at $FF04, and
// the configurable TIMA/TMA/TAC registers at $FF05-$FF07.
//
// Extracted from the bus-embedded divInternal/tima/tma/tac/
// timaReloadDelay fields and timerInput/incrementTIMA methods of the
// teacher's internal/bus/bus.go, generalized to report interrupts
// through a *pic.PIC handle instead of a closure mutating the bus's own
// ifReg field directly.
package timer

import "github.com/sm83lab/dotmatrix/internal/pic"

// Timer owns the 16-bit internal divider and the TIMA/TMA/TAC
// registers.
type Timer struct {
	sysclk uint16
	tima   byte
	tma    byte
	tac    byte

	// reloadDelay counts down from 4 after a TIMA overflow; it reaches
	// zero on the cycle that reloads TIMA from TMA and requests the
	// interrupt. A write to TIMA while this is nonzero cancels it.
	reloadDelay int

	pic *pic.PIC
}

// New returns a Timer wired to the given interrupt controller.
func New(p *pic.PIC) *Timer { return &Timer{pic: p} }

// Reset clears all timer state (DIV, TIMA, TMA, TAC all reset to 0, as
// on a real DMG power-on before boot ROM runs).
func (t *Timer) Reset() {
	t.sysclk, t.tima, t.tma, t.tac, t.reloadDelay = 0, 0, 0, 0, 0
}

// tapBit returns the sysclk bit position selected by TAC's rate bits.
var tapBit = [4]uint{9, 3, 5, 7}

func (t *Timer) enabled() bool { return t.tac&0x04 != 0 }

func (t *Timer) input() bool {
	if !t.enabled() {
		return false
	}
	bit := tapBit[t.tac&0x03]
	return (t.sysclk>>bit)&1 != 0
}

// Tick advances the internal divider by one T-cycle, per spec.md §4.5
// and §5 ("Timer bit sampling occurs after sysclk is incremented").
func (t *Timer) Tick() {
	before := t.input()
	t.sysclk++
	after := t.input()

	if t.reloadDelay > 0 {
		t.reloadDelay--
		if t.reloadDelay == 0 {
			t.tima = t.tma
			t.pic.Request(pic.Timer)
		}
	}

	if before && !after {
		t.increment()
	}
}

func (t *Timer) increment() {
	if t.reloadDelay > 0 {
		// A reload is already pending from a prior overflow this
		// window; further edges are ignored until it resolves.
		return
	}
	if t.tima == 0xFF {
		t.tima = 0x00
		t.reloadDelay = 4
		return
	}
	t.tima++
}

// DIV returns the high byte of the internal divider.
func (t *Timer) DIV() byte { return byte(t.sysclk >> 8) }

// WriteDIV resets the internal divider to zero. Because TIMA increments
// on a falling edge of the selected tap bit, resetting sysclk can itself
// trigger an increment if that bit was set beforehand.
func (t *Timer) WriteDIV() {
	before := t.input()
	t.sysclk = 0
	after := t.input()
	if before && !after {
		t.increment()
	}
}

// TIMA/TMA/TAC accessors.
func (t *Timer) TIMA() byte { return t.tima }
func (t *Timer) TMA() byte  { return t.tma }
func (t *Timer) TAC() byte  { return 0xF8 | (t.tac & 0x07) }

// WriteTIMA stores a new TIMA value. A write during the four-cycle
// reload window cancels the pending reload and interrupt.
func (t *Timer) WriteTIMA(v byte) {
	t.tima = v
	t.reloadDelay = 0
}

func (t *Timer) WriteTMA(v byte) { t.tma = v }

// WriteTAC stores a new TAC value. Changing the enable bit or rate
// select can itself cause a falling edge on the timer input, which
// increments TIMA immediately, matching real hardware's TAC-write
// glitch.
func (t *Timer) WriteTAC(v byte) {
	before := t.input()
	t.tac = v & 0x07
	after := t.input()
	if before && !after {
		t.increment()
	}
}

// State is the gob-encodable snapshot used by save states.
type State struct {
	Sysclk      uint16
	TIMA, TMA   byte
	TAC         byte
	ReloadDelay int
}

func (t *Timer) SaveState() State {
	return State{Sysclk: t.sysclk, TIMA: t.tima, TMA: t.tma, TAC: t.tac, ReloadDelay: t.reloadDelay}
}

func (t *Timer) LoadState(s State) {
	t.sysclk, t.tima, t.tma, t.tac, t.reloadDelay = s.Sysclk, s.TIMA, s.TMA, s.TAC, s.ReloadDelay
}
