package cart

import "io"

// mbc3 implements ROM/RAM banking with a 7-bit ROM bank register and a
// 2-bit RAM bank register; the RTC register-select range ($08-$0C) and
// clock latch are recognized but not emulated, matching the teacher's
// original MBC3 (no RTC backing store).
//
// Banking:
//   0000-1FFF: RAM enable (0x0A in low nibble)
//   2000-3FFF: ROM bank, 7 bits (0 maps to 1)
//   4000-5FFF: RAM bank 0-3, or RTC register select (ignored, forced to 0)
//   6000-7FFF: clock latch (ignored)
//   A000-BFFF: external RAM when enabled
type mbc3 struct {
	head *Header
	rom  []byte
	ram  []byte

	ramEnabled bool
	romBank    byte
	ramBank    byte
}

func newMBC3(h *Header, rom []byte) *mbc3 {
	m := &mbc3{head: h, rom: rom, romBank: 1}
	if h.RAMSizeBytes > 0 {
		m.ram = make([]byte, h.RAMSizeBytes)
	}
	return m
}

func (m *mbc3) Header() *Header { return m.head }

func (m *mbc3) Reset() {
	m.ramEnabled, m.romBank, m.ramBank = false, 1, 0
}

func (m *mbc3) Read(addr uint16) byte {
	switch {
	case addr < 0x4000:
		if int(addr) < len(m.rom) {
			return m.rom[addr]
		}
		return 0xFF
	case addr < 0x8000:
		bank := int(m.romBank & 0x7F)
		if bank == 0 {
			bank = 1
		}
		off := bank*0x4000 + int(addr-0x4000)
		if off >= 0 && off < len(m.rom) {
			return m.rom[off]
		}
		return 0xFF
	case addr >= 0xA000 && addr <= 0xBFFF:
		if !m.ramEnabled || len(m.ram) == 0 {
			return 0xFF
		}
		rb := int(m.ramBank & 0x03)
		off := rb*0x2000 + int(addr-0xA000)
		if off >= 0 && off < len(m.ram) {
			return m.ram[off]
		}
		return 0xFF
	default:
		return 0xFF
	}
}

func (m *mbc3) Write(addr uint16, value byte) {
	switch {
	case addr < 0x2000:
		m.ramEnabled = (value & 0x0F) == 0x0A
	case addr < 0x4000:
		v := value & 0x7F
		if v == 0 {
			v = 1
		}
		m.romBank = v
	case addr < 0x6000:
		if value <= 0x03 {
			m.ramBank = value & 0x03
		} else {
			m.ramBank = 0
		}
	case addr < 0x8000:
		// clock latch, no RTC backing
	case addr >= 0xA000 && addr <= 0xBFFF:
		if !m.ramEnabled || len(m.ram) == 0 {
			return
		}
		rb := int(m.ramBank & 0x03)
		off := rb*0x2000 + int(addr-0xA000)
		if off >= 0 && off < len(m.ram) {
			m.ram[off] = value
		}
	}
}

func (m *mbc3) Flash(r io.Reader) error { return flashRAM(r, m.ram) }
func (m *mbc3) Dump(w io.Writer) error  { return dumpRAM(w, m.ram) }
