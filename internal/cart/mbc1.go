package cart

import "io"

// mbc1 implements MBC1 ROM/RAM banking: a 5-bit low ROM bank register
// plus a 2-bit register shared between RAM bank and ROM bank high bits,
// selected by a mode bit. Ported near-verbatim from the teacher's
// MBC1, renamed to the package's lower-case tagged-alternative style.
type mbc1 struct {
	head *Header
	rom  []byte
	ram  []byte

	romBankLow5       byte
	ramBankOrRomHigh2 byte
	ramEnabled        bool
	modeSelect        byte
}

func newMBC1(h *Header, rom []byte) *mbc1 {
	m := &mbc1{head: h, rom: rom, romBankLow5: 1}
	if h.RAMSizeBytes > 0 {
		m.ram = make([]byte, h.RAMSizeBytes)
	}
	return m
}

func (m *mbc1) Header() *Header { return m.head }

func (m *mbc1) Reset() {
	m.romBankLow5, m.ramBankOrRomHigh2, m.ramEnabled, m.modeSelect = 1, 0, false, 0
}

func (m *mbc1) Read(addr uint16) byte {
	switch {
	case addr < 0x4000:
		if m.modeSelect == 0 {
			return m.rom[addr]
		}
		bank := int(m.ramBankOrRomHigh2&0x03) << 5
		off := bank*0x4000 + int(addr)
		if off < len(m.rom) {
			return m.rom[off]
		}
		return 0xFF
	case addr < 0x8000:
		bank := int(m.effectiveROMBank())
		off := bank*0x4000 + int(addr-0x4000)
		if off < len(m.rom) {
			return m.rom[off]
		}
		return 0xFF
	case addr >= 0xA000 && addr <= 0xBFFF:
		if !m.ramEnabled || len(m.ram) == 0 {
			return 0xFF
		}
		off := m.ramOffset(addr)
		if off >= 0 && off < len(m.ram) {
			return m.ram[off]
		}
		return 0xFF
	default:
		return 0xFF
	}
}

func (m *mbc1) Write(addr uint16, value byte) {
	switch {
	case addr < 0x2000:
		m.ramEnabled = (value & 0x0F) == 0x0A
	case addr < 0x4000:
		m.romBankLow5 = value & 0x1F
		if m.romBankLow5 == 0 {
			m.romBankLow5 = 1
		}
	case addr < 0x6000:
		m.ramBankOrRomHigh2 = value & 0x03
	case addr < 0x8000:
		m.modeSelect = value & 0x01
	case addr >= 0xA000 && addr <= 0xBFFF:
		if !m.ramEnabled || len(m.ram) == 0 {
			return
		}
		off := m.ramOffset(addr)
		if off >= 0 && off < len(m.ram) {
			m.ram[off] = value
		}
	}
}

func (m *mbc1) ramOffset(addr uint16) int {
	bank := 0
	if m.modeSelect == 1 {
		bank = int(m.ramBankOrRomHigh2 & 0x03)
	}
	return bank*0x2000 + int(addr-0xA000)
}

func (m *mbc1) effectiveROMBank() byte {
	high := m.ramBankOrRomHigh2 & 0x03
	return m.romBankLow5 | (high << 5)
}

func (m *mbc1) Flash(r io.Reader) error { return flashRAM(r, m.ram) }
func (m *mbc1) Dump(w io.Writer) error  { return dumpRAM(w, m.ram) }
