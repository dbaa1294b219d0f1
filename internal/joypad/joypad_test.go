package joypad

import (
	"testing"

	"github.com/sm83lab/dotmatrix/internal/pic"
)

func TestJoypad_DefaultReadsReleased(t *testing.T) {
	j := New(pic.New())
	if got := j.ReadJOYP() & 0x0F; got != 0x0F {
		t.Fatalf("default lower bits got %#02x want 0F", got)
	}
}

func TestJoypad_DPadSelection(t *testing.T) {
	j := New(pic.New())
	j.WriteJOYP(0x20) // P14=0 selects D-pad
	j.Send(Right, true)
	j.Send(Up, true)
	if got := j.ReadJOYP() & 0x0F; got != 0x0A {
		t.Fatalf("got %#02x want 0A (Right+Up cleared)", got)
	}
}

func TestJoypad_ButtonSelection(t *testing.T) {
	j := New(pic.New())
	j.WriteJOYP(0x10) // P15=0 selects buttons
	j.Send(A, true)
	j.Send(Start, true)
	if got := j.ReadJOYP() & 0x0F; got != 0x06 {
		t.Fatalf("got %#02x want 06 (A+Start cleared)", got)
	}
}

func TestJoypad_FallingEdgeRequestsInterrupt(t *testing.T) {
	p := pic.New()
	j := New(p)
	p.WriteIE(1 << pic.Joypad)
	j.WriteJOYP(0x20)
	j.Send(Right, true)
	if !p.Any() {
		t.Fatalf("expected joypad interrupt on 1->0 transition")
	}
}

func TestJoypad_SendEventsBatches(t *testing.T) {
	j := New(pic.New())
	j.WriteJOYP(0x20)
	j.SendEvents([]Event{{Button: Right, State: Pressed}, {Button: Left, State: Pressed}})
	if got := j.ReadJOYP() & 0x0F; got != 0x0C {
		t.Fatalf("got %#02x want 0C (Right+Left cleared)", got)
	}
}

func TestJoypad_SaveLoadRoundtrip(t *testing.T) {
	j := New(pic.New())
	j.WriteJOYP(0x10)
	j.Send(A, true)
	s := j.Save()

	j2 := New(pic.New())
	j2.Load(s)
	if j2.ReadJOYP() != j.ReadJOYP() {
		t.Fatalf("roundtrip mismatch: got %#02x want %#02x", j2.ReadJOYP(), j.ReadJOYP())
	}
}
