package timer

import (
	"testing"

	"github.com/sm83lab/dotmatrix/internal/pic"
)

func TestTimer_DIVIncrementsOnHighByte(t *testing.T) {
	p := pic.New()
	tm := New(p)
	for i := 0; i < 256; i++ {
		tm.Tick()
	}
	if got := tm.DIV(); got != 1 {
		t.Fatalf("DIV got %d want 1 after 256 ticks", got)
	}
}

func TestTimer_WriteDIVFallingEdgeIncrementsTIMA(t *testing.T) {
	p := pic.New()
	tm := New(p)
	tm.WriteTAC(0x05) // enabled, tap bit 3
	for tm.DIV() == 0 && !tm.input() {
		tm.Tick()
	}
	for !tm.input() {
		tm.Tick()
	}
	before := tm.TIMA()
	tm.WriteDIV() // forces sysclk to 0: falling edge on tap bit 3
	if got := tm.TIMA(); got != before+1 {
		t.Fatalf("TIMA got %d want %d after DIV-write falling edge", got, before+1)
	}
}

func TestTimer_TACChangeFallingEdgeIncrementsTIMA(t *testing.T) {
	p := pic.New()
	tm := New(p)
	tm.sysclk = 0x0008 // bit3 set
	tm.WriteTAC(0x05)  // enable + tap bit3 -> input true
	if !tm.input() {
		t.Fatalf("expected timer input true before TAC change")
	}
	before := tm.TIMA()
	tm.WriteTAC(0x06) // switch to tap bit5 (0 here) -> falling edge
	if got := tm.TIMA(); got != before+1 {
		t.Fatalf("TIMA got %d want %d after TAC falling edge", got, before+1)
	}
}

func TestTimer_OverflowReloadDelayAndCancellation(t *testing.T) {
	p := pic.New()
	tm := New(p)
	tm.WriteTAC(0x05)
	tm.WriteTMA(0xAB)
	tm.tima = 0xFF
	tm.sysclk = 0x000F // next tick clears bit3 -> falling edge -> overflow

	tm.Tick()
	if tm.TIMA() != 0x00 {
		t.Fatalf("after overflow TIMA got %#02x want 00", tm.TIMA())
	}
	for i := 0; i < 3; i++ {
		tm.Tick()
		if tm.TIMA() != 0x00 {
			t.Fatalf("during delay cycle %d TIMA got %#02x want 00", i, tm.TIMA())
		}
		if p.Any() {
			t.Fatalf("IF set prematurely during reload delay")
		}
	}
	tm.Tick()
	if tm.TIMA() != 0xAB {
		t.Fatalf("after reload TIMA got %#02x want AB", tm.TIMA())
	}

	// Cancellation: a TIMA write during the delay window drops the reload.
	p.WriteIF(0)
	tm.tima = 0xFF
	tm.sysclk = 0x000F
	tm.Tick() // overflow again
	tm.WriteTIMA(0x77)
	for i := 0; i < 8; i++ {
		tm.Tick()
	}
	if tm.TIMA() != 0x77 {
		t.Fatalf("TIMA write during delay not retained: got %#02x want 77", tm.TIMA())
	}
}

func TestTimer_DisabledNeverIncrements(t *testing.T) {
	p := pic.New()
	tm := New(p)
	tm.WriteTAC(0x00) // disabled
	for i := 0; i < 100000; i++ {
		tm.Tick()
	}
	if tm.TIMA() != 0 {
		t.Fatalf("disabled timer incremented TIMA: got %d", tm.TIMA())
	}
}

func TestTimer_SaveLoadRoundtrip(t *testing.T) {
	p := pic.New()
	tm := New(p)
	tm.WriteTAC(0x05)
	tm.sysclk = 0x1234
	tm.tima = 0x42
	s := tm.SaveState()

	tm2 := New(p)
	tm2.LoadState(s)
	if tm2.sysclk != tm.sysclk || tm2.tima != tm.tima || tm2.tac != tm.tac {
		t.Fatalf("roundtrip mismatch: %+v vs %+v", tm2, tm)
	}
}
