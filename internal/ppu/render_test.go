package ppu

import (
	"testing"

	"github.com/sm83lab/dotmatrix/internal/pic"
)

// writeVRAMDirect pokes VRAM bypassing the CPU-visibility gate, used to
// set up tile data/maps before turning the LCD on (tests would
// otherwise have to thread dot-perfect timing to land writes in mode 0/1).
func writeVRAMDirect(p *PPU, addr uint16, v byte) { p.vram[addr-0x8000] = v }

// drawLine runs the per-dot draw pipeline for the current scanline to
// completion, the way tickOne would across many Tick(1) calls, without
// needing the caller to count exact dots.
func drawLine(p *PPU) {
	p.beginDraw()
	for p.drawX < 160 || p.drawStall > 0 {
		p.stepDraw()
	}
}

func TestDrawPipeline_SCXDiscardAndTileWrap(t *testing.T) {
	p := New(pic.New())
	mapBase := uint16(0x9800)
	for tile := 0; tile < 32; tile++ {
		writeVRAMDirect(p, mapBase+uint16(tile), byte(tile))
		base := uint16(0x8000 + tile*16)
		writeVRAMDirect(p, base, byte(tile))
		writeVRAMDirect(p, base+1, ^byte(tile))
	}
	p.scx = 5
	p.bgp = 0xE4         // identity palette: each shade equals its color index
	p.lcdc = 0x10 | 0x01 // 0x8000 unsigned tile addressing, BG enabled
	drawLine(p)
	out := p.fb[:11]

	lo0, hi0 := byte(0), ^byte(0)
	for i := 0; i < 3; i++ {
		b := 2 - byte(i)
		want := ((hi0>>b)&1)<<1 | ((lo0 >> b) & 1)
		if out[i] != want {
			t.Fatalf("px %d got %d want %d", i, out[i], want)
		}
	}
	lo1, hi1 := byte(1), ^byte(1)
	for i := 0; i < 8; i++ {
		b := 7 - byte(i)
		want := ((hi1>>b)&1)<<1 | ((lo1 >> b) & 1)
		if out[3+i] != want {
			t.Fatalf("tile1 px %d got %d want %d", i, out[3+i], want)
		}
	}
}

func TestWindowActivationAndLineCounter(t *testing.T) {
	p := New(pic.New())
	// Window tilemap at 0x9C00 (LCDC bit6), all tile 0 with a distinct
	// pattern so window pixels are visibly nonzero.
	writeVRAMDirect(p, 0x9C00, 0)
	writeVRAMDirect(p, 0x8000, 0xFF)
	writeVRAMDirect(p, 0x8001, 0x00)

	p.CPUWrite(0xFF4A, 10) // WY
	p.CPUWrite(0xFF4B, 7)  // WX=7 -> winX start at 0
	p.CPUWrite(0xFF47, 0xE4) // BGP identity palette
	p.CPUWrite(0xFF40, 0x80|0x01|0x10|0x20|0x40)

	p.ly = 10
	drawLine(p)
	if p.wline != 1 {
		t.Fatalf("expected wline=1 after drawing WY line, got %d", p.wline)
	}
	if p.fb[10*160+0] == 0 {
		t.Fatalf("expected window pixel to be nonzero at (0,10)")
	}
}

// TestMidScanlineBGPChangeAffectsOnlyLaterColumns exercises the
// scenario this per-dot pipeline exists to pass: a BGP write timed to
// land mid-Draw must leave already-emitted columns alone and change
// the palette resolution for every column drawn afterward.
func TestMidScanlineBGPChangeAffectsOnlyLaterColumns(t *testing.T) {
	p := New(pic.New())
	for tile := 0; tile < 32; tile++ {
		writeVRAMDirect(p, 0x9800+uint16(tile), 0)
	}
	writeVRAMDirect(p, 0x8000, 0xFF) // color index 3 for every pixel
	writeVRAMDirect(p, 0x8001, 0xFF)
	p.lcdc = 0x01 | 0x10 // BG enabled, 0x8000 unsigned addressing, map 0x9800
	p.bgp = 0xE4  // identity palette: 3->3,2->2,1->1,0->0

	p.beginDraw()
	for p.drawX < 80 || p.drawStall > 0 {
		p.stepDraw()
	}
	p.bgp = 0x1B // reversed palette: 3->0,2->1,1->2,0->3
	for p.drawX < 160 || p.drawStall > 0 {
		p.stepDraw()
	}

	if got := p.fb[10]; got != 3 {
		t.Fatalf("column drawn before BGP change got %d want 3 (old palette)", got)
	}
	if got := p.fb[150]; got != 0 {
		t.Fatalf("column drawn after BGP change got %d want 0 (new palette)", got)
	}
}

func TestSpritePixelPriorityAndTransparency(t *testing.T) {
	p := New(pic.New())
	// Sprite tile 0: single opaque pixel at leftmost column (bit7).
	writeVRAMDirect(p, 0x8000, 0x80)
	writeVRAMDirect(p, 0x8001, 0x00)
	p.oam[0], p.oam[1], p.oam[2], p.oam[3] = byte(5+16), byte(10+8), 0, 0 // y=5,x=10
	p.ly = 5
	p.scanSprites()

	ci, _, ok := p.spritePixel(10)
	if !ok || ci == 0 {
		t.Fatalf("expected opaque sprite pixel at x=10, got ci=%d ok=%v", ci, ok)
	}

	if _, _, ok := p.spritePixel(11); ok {
		t.Fatalf("expected no sprite pixel at x=11")
	}
}

func TestSpriteScan_LimitsToTenPerLine(t *testing.T) {
	p := New(pic.New())
	for i := 0; i < 40; i++ {
		base := i * 4
		p.oam[base] = 16 // y=0, every sprite intersects LY=0
		p.oam[base+1] = byte(8 + i)
	}
	p.ly = 0
	p.scanSprites()
	if len(p.sprites) != 10 {
		t.Fatalf("expected at most 10 sprites scanned, got %d", len(p.sprites))
	}
}
