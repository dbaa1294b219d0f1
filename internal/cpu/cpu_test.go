package cpu

import (
	"testing"

	"github.com/sm83lab/dotmatrix/internal/bus"
	"github.com/sm83lab/dotmatrix/internal/pic"
)

func newCPUWithROM(code []byte) (*CPU, *bus.Bus) {
	rom := make([]byte, 0x8000)
	copy(rom, code)
	b := bus.New(rom)
	return New(b, b.PIC), b
}

// stepInstruction runs Step() until a full instruction (and any
// interrupt dispatch it triggers) has drained the microcycle queue,
// for tests that don't care about intermediate M-cycle boundaries.
func stepInstruction(c *CPU) {
	c.Step()
	for len(c.queue) > 0 {
		c.Step()
	}
}

func TestCPU_NopAdvancesPCOneMCycle(t *testing.T) {
	c, _ := newCPUWithROM([]byte{0x00})
	c.Step()
	if c.PC != 1 {
		t.Fatalf("PC after NOP got %#04x want 0x0001", c.PC)
	}
	if len(c.queue) != 0 {
		t.Fatalf("NOP should leave no queued microcycles")
	}
}

func TestCPU_LDAd8AndXORA(t *testing.T) {
	c, _ := newCPUWithROM([]byte{0x3E, 0x12, 0xAF})
	stepInstruction(c)
	if c.A != 0x12 {
		t.Fatalf("A after LD got %#02x want 12", c.A)
	}
	stepInstruction(c)
	if c.A != 0x00 {
		t.Fatalf("A after XOR got %#02x want 00", c.A)
	}
	if !c.Z() {
		t.Fatalf("Z flag not set after XOR A")
	}
}

func TestCPU_LDa16AAndBack(t *testing.T) {
	prog := []byte{0x3E, 0x77, 0xEA, 0x00, 0xC0, 0x3E, 0x00, 0xFA, 0x00, 0xC0}
	c, b := newCPUWithROM(prog)
	stepInstruction(c) // LD A,77
	stepInstruction(c) // LD (C000),A
	if v := b.Read(0xC000); v != 0x77 {
		t.Fatalf("WRAM at C000 got %#02x want 77", v)
	}
	stepInstruction(c) // LD A,00
	stepInstruction(c) // LD A,(C000)
	if c.A != 0x77 {
		t.Fatalf("A after LD A,(C000) got %#02x want 77", c.A)
	}
}

func TestCPU_JPTakesFourMCycles(t *testing.T) {
	rom := make([]byte, 0x8000)
	rom[0x0000], rom[0x0001], rom[0x0002] = 0xC3, 0x10, 0x00
	b := bus.New(rom)
	c := New(b, b.PIC)

	c.Step()
	if len(c.queue) != 2 {
		t.Fatalf("expected 2 queued microcycles after first JP step, got %d", len(c.queue))
	}
	for len(c.queue) > 0 {
		c.Step()
	}
	if c.PC != 0x0010 {
		t.Fatalf("PC after JP got %#04x want 0x0010", c.PC)
	}
}

func TestCPU_JRNegativeOffsetLoops(t *testing.T) {
	rom := make([]byte, 0x8000)
	rom[0x0010], rom[0x0011] = 0x18, 0xFE // JR -2
	b := bus.New(rom)
	c := New(b, b.PIC)
	c.Goto(0x0010)
	stepInstruction(c)
	if c.PC != 0x0010 {
		t.Fatalf("JR -2 PC got %#04x want 0x0010", c.PC)
	}
}

func TestCPU_INCBSetsHalfCarryAndPreservesCarry(t *testing.T) {
	c, _ := newCPUWithROM([]byte{0x04, 0x04})
	c.B = 0x0F
	c.F = flagC
	stepInstruction(c)
	if c.B != 0x10 {
		t.Fatalf("INC B result got %#02x want 10", c.B)
	}
	if !c.H() {
		t.Fatalf("INC B should set H flag")
	}
	if !c.C() {
		t.Fatalf("INC B should preserve C flag")
	}
	c.B = 0xFF
	stepInstruction(c)
	if c.B != 0x00 || !c.Z() {
		t.Fatalf("INC B to 0 should set Z flag, B=%#02x F=%#02x", c.B, c.F)
	}
}

func TestCPU_LD16BitAndLDH(t *testing.T) {
	prog := []byte{
		0x21, 0x00, 0xC0, // LD HL,C000
		0x36, 0x5A, // LD (HL),5A
		0x3E, 0x00, // LD A,00
		0xF0, 0x00, // LD A,(FF00+0)
		0xE0, 0x01, // LD (FF00+1),A
	}
	c, b := newCPUWithROM(prog)
	b.Write(0xFF00, 0x30) // select neither button row, so reads settle to 0x0F-ish
	b.Write(0xFF80, 0xA7) // HRAM base, unrelated but exercises that range too

	for i := 0; i < 5; i++ {
		stepInstruction(c)
	}
	if v := b.Read(0xC000); v != 0x5A {
		t.Fatalf("WRAM C000 got %#02x want 5A", v)
	}
	if v := b.Read(0xFF01); v != c.A {
		t.Fatalf("LDH (FF00+1),A expected write to FF01 with A=%#02x got %#02x", c.A, v)
	}
}

func TestCPU_CALLAndRET(t *testing.T) {
	rom := make([]byte, 0x8000)
	rom[0x0000], rom[0x0001], rom[0x0002] = 0xCD, 0x05, 0x00
	rom[0x0005] = 0xC9 // RET
	b := bus.New(rom)
	c := New(b, b.PIC)

	stepInstruction(c)
	if c.PC != 0x0005 {
		t.Fatalf("PC after CALL got %#04x want 0x0005", c.PC)
	}
	stepInstruction(c)
	if c.PC != 0x0003 {
		t.Fatalf("PC after RET got %#04x want 0x0003", c.PC)
	}
}

func TestCPU_PushPopRoundtrip(t *testing.T) {
	rom := make([]byte, 0x8000)
	rom[0x0000] = 0xC5 // PUSH BC
	rom[0x0001] = 0xD1 // POP DE
	b := bus.New(rom)
	c := New(b, b.PIC)
	c.B, c.C = 0x12, 0x34

	stepInstruction(c)
	stepInstruction(c)
	if c.D != 0x12 || c.E != 0x34 {
		t.Fatalf("PUSH BC/POP DE got D=%#02x E=%#02x want 12/34", c.D, c.E)
	}
}

func TestCPU_HaltBugDuplicatesNextOpcode(t *testing.T) {
	// DI; HALT; INC A; INC A, with IE=IF=0x01 (VBlank pending, IME off).
	rom := make([]byte, 0x8000)
	rom[0x0000], rom[0x0001], rom[0x0002], rom[0x0003] = 0xF3, 0x76, 0x3C, 0x3C
	b := bus.New(rom)
	c := New(b, b.PIC)
	b.PIC.WriteIE(0x01)
	b.PIC.WriteIF(0x01)

	stepInstruction(c) // DI
	stepInstruction(c) // HALT, sets haltBug since IME disabled and interrupt pending
	stepInstruction(c) // first INC A, PC does not advance past it (duplicated)
	stepInstruction(c) // second INC A, real advance

	if c.A != 0x02 {
		t.Fatalf("A after halt-bug duplicated INC got %#02x want 02", c.A)
	}
	if c.PC != 0x0003 {
		t.Fatalf("PC after halt bug sequence got %#04x want 0x0003", c.PC)
	}
}

func TestCPU_EIDelaysEnableByOneInstruction(t *testing.T) {
	rom := make([]byte, 0x8000)
	rom[0x0000], rom[0x0001] = 0xFB, 0x00 // EI; NOP
	b := bus.New(rom)
	c := New(b, b.PIC)

	stepInstruction(c) // EI: ime becomes WillEnable
	if c.ime != imeWillEnable {
		t.Fatalf("expected imeWillEnable immediately after EI")
	}
	stepInstruction(c) // NOP: ime becomes Enabled on this instruction's fetch
	if c.ime != imeEnabled {
		t.Fatalf("expected imeEnabled after the instruction following EI")
	}
}

func TestCPU_IllegalOpcodeFaults(t *testing.T) {
	c, _ := newCPUWithROM([]byte{0xD3})
	c.Step()
	if !c.Faulted {
		t.Fatalf("expected CPU to fault on illegal opcode 0xD3")
	}
	pc := c.PC
	c.Step()
	if c.PC != pc {
		t.Fatalf("expected Step to be a no-op once faulted")
	}
}

func TestCPU_InterruptDispatchPushesPCAndJumps(t *testing.T) {
	rom := make([]byte, 0x8000)
	rom[0x0100], rom[0x0101] = 0x00, 0x00 // NOPs at the post-dispatch return site
	b := bus.New(rom)
	c := New(b, b.PIC)
	c.Goto(0x0100)
	c.ime = imeEnabled
	b.PIC.WriteIE(0x01)
	b.PIC.WriteIF(0x01) // VBlank pending

	for i := 0; i < 5; i++ {
		c.Step()
	}
	if c.PC != pic.VBlank.Vector() {
		t.Fatalf("PC after interrupt dispatch got %#04x want %#04x", c.PC, pic.VBlank.Vector())
	}
	if c.ime != imeDisabled {
		t.Fatalf("expected IME disabled after interrupt dispatch")
	}
	if lo, hi := b.Read(0xFFFC), b.Read(0xFFFD); lo != 0x00 || hi != 0x01 {
		t.Fatalf("expected return PC 0x0100 pushed to stack, got lo=%#02x hi=%#02x", lo, hi)
	}
}
