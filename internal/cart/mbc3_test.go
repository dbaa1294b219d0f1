package cart

import "testing"

func TestMBC3_ROMBanking(t *testing.T) {
	rom := make([]byte, 0x4000*8)
	for bank := 0; bank < 8; bank++ {
		rom[bank*0x4000] = byte(bank)
	}
	m := newMBC3(&Header{RAMSizeBytes: 0}, rom)

	if got := m.Read(0x4000); got != 0x01 {
		t.Fatalf("default bank1 got %02X", got)
	}
	m.Write(0x2000, 0x05)
	if got := m.Read(0x4000); got != 0x05 {
		t.Fatalf("bank5 got %02X", got)
	}
	m.Write(0x2000, 0x00)
	if got := m.Read(0x4000); got != 0x01 {
		t.Fatalf("bank0->1 remap failed: got %02X", got)
	}
}

func TestMBC3_RAMBanking(t *testing.T) {
	rom := make([]byte, 0x8000)
	m := newMBC3(&Header{RAMSizeBytes: 0x2000 * 4}, rom)

	m.Write(0x0000, 0x0A) // enable
	m.Write(0x4000, 0x02) // bank 2
	m.Write(0xA000, 0x99)
	if got := m.Read(0xA000); got != 0x99 {
		t.Fatalf("RAM bank2 RW failed: got %02X", got)
	}

	m.Write(0x4000, 0x08) // RTC register select, ignored -> bank 0
	if got := m.Read(0xA000); got == 0x99 {
		t.Fatalf("expected bank0 after RTC-select, still reading bank2 data")
	}
}
