package pic

import "testing"

func TestPIC_ReadIFAlwaysSetsUpperBits(t *testing.T) {
	p := New()
	p.WriteIF(0x3F)
	if got := p.ReadIF(); got != 0xE0|0x1F {
		t.Fatalf("ReadIF got %02x want %02x", got, 0xE0|0x1F)
	}
}

func TestPIC_RequestAndClear(t *testing.T) {
	p := New()
	p.Request(Timer)
	if p.IF&(1<<Timer) == 0 {
		t.Fatalf("expected Timer bit set after Request")
	}
	p.Clear(Timer)
	if p.IF&(1<<Timer) != 0 {
		t.Fatalf("expected Timer bit clear after Clear")
	}
}

func TestPIC_PendingRespectsFixedPriority(t *testing.T) {
	p := New()
	p.WriteIE(0xFF)
	p.Request(Joypad)
	p.Request(VBlank)
	p.Request(Timer)

	src, ok := p.Pending()
	if !ok || src != VBlank {
		t.Fatalf("expected VBlank to win priority, got %v ok=%v", src, ok)
	}
}

func TestPIC_PendingRequiresEnable(t *testing.T) {
	p := New()
	p.Request(Timer)
	if _, ok := p.Pending(); ok {
		t.Fatalf("expected no pending interrupt when IE is clear")
	}
	if p.Any() {
		t.Fatalf("expected Any() false when IE is clear")
	}
}

func TestPIC_Vector(t *testing.T) {
	cases := map[Source]uint16{VBlank: 0x40, Stat: 0x48, Timer: 0x50, Serial: 0x58, Joypad: 0x60}
	for src, want := range cases {
		if got := src.Vector(); got != want {
			t.Fatalf("%v vector got %#02x want %#02x", src, got, want)
		}
	}
}

func TestPIC_SaveLoadRoundtrip(t *testing.T) {
	p := New()
	p.WriteIE(0x1F)
	p.WriteIF(0x05)
	s := p.SaveState()

	p2 := New()
	p2.LoadState(s)
	if p2.IE != p.IE || p2.IF != p.IF {
		t.Fatalf("roundtrip mismatch: got IE=%02x IF=%02x", p2.IE, p2.IF)
	}
}
