package ppu

import (
	"testing"

	"github.com/sm83lab/dotmatrix/internal/pic"
)

func statMode(p *PPU) byte { return p.CPURead(0xFF41) & 0x03 }

func TestPPUModeSequenceOneLine(t *testing.T) {
	p := New(pic.New())
	p.CPUWrite(0xFF40, 0x80) // LCD on
	if m := statMode(p); m != 2 {
		t.Fatalf("expected mode 2 after LCD on, got %d", m)
	}
	p.Tick(80)
	if m := statMode(p); m != 3 {
		t.Fatalf("expected mode 3 at dot 80, got %d", m)
	}
	// Draw mode is at least 172 dots; advance well past it into HBlank.
	p.Tick(172)
	if m := statMode(p); m != 0 {
		t.Fatalf("expected mode 0 well past dot 252, got %d", m)
	}
	p.Tick(456 - 252) // remainder of line 0's HBlank
	if ly := p.CPURead(0xFF44); ly != 1 {
		t.Fatalf("expected LY=1, got %d", ly)
	}
	if m := statMode(p); m != 2 {
		t.Fatalf("expected mode 2 at new line, got %d", m)
	}
}

func TestPPUVBlankAndSTATOnVBlank(t *testing.T) {
	pc := pic.New()
	p := New(pc)
	pc.WriteIE(1<<pic.VBlank | 1<<pic.Stat)
	p.CPUWrite(0xFF41, 1<<4) // STAT IRQ on VBlank entry
	p.CPUWrite(0xFF40, 0x80)

	p.Tick(144 * 456)

	if !pc.Any() {
		t.Fatalf("expected a pending interrupt at LY=144")
	}
	src, ok := pc.Pending()
	_ = src
	if !ok {
		t.Fatalf("expected Pending() to report an interrupt")
	}
}

func TestSTATLYCCoincidence(t *testing.T) {
	pc := pic.New()
	p := New(pc)
	pc.WriteIE(1 << pic.Stat)
	p.CPUWrite(0xFF41, 1<<6) // STAT IRQ on LYC match
	p.CPUWrite(0xFF45, 2)    // LYC=2
	p.CPUWrite(0xFF40, 0x80)

	p.Tick(456 * 2) // reach LY=2

	if p.CPURead(0xFF44) != 2 {
		t.Fatalf("expected LY=2, got %d", p.CPURead(0xFF44))
	}
	if p.CPURead(0xFF41)&0x04 == 0 {
		t.Fatalf("expected coincidence flag set at LY=LYC")
	}
	if _, ok := pc.Pending(); !ok {
		t.Fatalf("expected STAT interrupt pending on LYC match")
	}
}

func TestVRAMHiddenDuringDraw(t *testing.T) {
	p := New(pic.New())
	p.CPUWrite(0xFF40, 0x80)
	p.Tick(80) // enter Draw
	if got := p.CPURead(0x8000); got != 0xFF {
		t.Fatalf("expected VRAM read to return 0xFF during Draw, got %#02x", got)
	}
}
