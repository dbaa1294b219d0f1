package cart

import (
	"bytes"
	"testing"
)

func TestMBC1_ROMBanking(t *testing.T) {
	rom := make([]byte, 128*1024)
	for bank := 0; bank < 8; bank++ {
		rom[bank*0x4000] = byte(bank)
	}
	m := newMBC1(&Header{RAMSizeBytes: 0}, rom)

	if got := m.Read(0x0000); got != 0x00 {
		t.Fatalf("bank0 read got %02X want 00", got)
	}

	if got := m.Read(0x4000); got != 0x01 {
		t.Fatalf("bank1 read got %02X want 01", got)
	}

	m.Write(0x2000, 0x03)
	if got := m.Read(0x4000); got != 0x03 {
		t.Fatalf("bank3 read got %02X want 03", got)
	}

	m.Write(0x2000, 0x00)
	if got := m.Read(0x4000); got != 0x01 {
		t.Fatalf("bank0->1 remap failed: got %02X", got)
	}
}

func TestMBC1_RAMBanking_Mode1(t *testing.T) {
	rom := make([]byte, 128*1024)
	m := newMBC1(&Header{RAMSizeBytes: 32 * 1024}, rom)

	m.Write(0x0000, 0x0A)
	m.Write(0x6000, 0x01)
	m.Write(0x4000, 0x02)

	m.Write(0xA000, 0x77)
	if got := m.Read(0xA000); got != 0x77 {
		t.Fatalf("RAM bank2 RW failed: got %02X", got)
	}
}

func TestMBC1_RAMDisabledReadsFF(t *testing.T) {
	rom := make([]byte, 128*1024)
	m := newMBC1(&Header{RAMSizeBytes: 8 * 1024}, rom)
	m.Write(0xA000, 0x42) // RAM not enabled, write ignored
	if got := m.Read(0xA000); got != 0xFF {
		t.Fatalf("disabled RAM read got %02X want FF", got)
	}
}

func TestMBC1_FlashDumpRoundtrip(t *testing.T) {
	rom := make([]byte, 32*1024)
	m := newMBC1(&Header{RAMSizeBytes: 4}, rom)
	m.ram = []byte{1, 2, 3, 4}

	var buf bytes.Buffer
	if err := m.Dump(&buf); err != nil {
		t.Fatalf("Dump error: %v", err)
	}

	n := newMBC1(&Header{RAMSizeBytes: 4}, rom)
	if err := n.Flash(&buf); err != nil {
		t.Fatalf("Flash error: %v", err)
	}
	for i := range n.ram {
		if n.ram[i] != m.ram[i] {
			t.Fatalf("RAM mismatch at %d: got %d want %d", i, n.ram[i], m.ram[i])
		}
	}
}
