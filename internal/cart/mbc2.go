package cart

import "io"

// mbc2 has a 4-bit ROM bank register and 512x4-bit RAM built directly
// into the MBC chip (the high nibble of every read is stuck at 1).
// Unlike MBC1/MBC3/MBC5, a single $0000-$3FFF write both enables RAM
// and selects the ROM bank: bit 8 of the address (addr&0x0100)
// distinguishes the two, following the real hardware's address-line
// wiring rather than a separate register range. Grounded on the
// teacher's mbc1.go/mbc3.go shape, generalized for MBC2's built-in RAM.
type mbc2 struct {
	head *Header
	rom  []byte
	ram  [512]byte // only the low nibble of each byte is meaningful

	ramEnabled bool
	romBank    byte // 4 bits, 0 maps to 1
}

func newMBC2(h *Header, rom []byte) *mbc2 {
	return &mbc2{head: h, rom: rom, romBank: 1}
}

func (m *mbc2) Header() *Header { return m.head }

func (m *mbc2) Reset() {
	m.ramEnabled, m.romBank = false, 1
}

func (m *mbc2) Read(addr uint16) byte {
	switch {
	case addr < 0x4000:
		if int(addr) < len(m.rom) {
			return m.rom[addr]
		}
		return 0xFF
	case addr < 0x8000:
		bank := int(m.romBank & 0x0F)
		if bank == 0 {
			bank = 1
		}
		off := bank*0x4000 + int(addr-0x4000)
		if off >= 0 && off < len(m.rom) {
			return m.rom[off]
		}
		return 0xFF
	case addr >= 0xA000 && addr <= 0xBFFF:
		if !m.ramEnabled {
			return 0xFF
		}
		return 0xF0 | (m.ram[addr&0x1FF] & 0x0F)
	default:
		return 0xFF
	}
}

func (m *mbc2) Write(addr uint16, value byte) {
	switch {
	case addr < 0x4000:
		if addr&0x0100 == 0 {
			m.ramEnabled = (value & 0x0F) == 0x0A
		} else {
			v := value & 0x0F
			if v == 0 {
				v = 1
			}
			m.romBank = v
		}
	case addr >= 0xA000 && addr <= 0xBFFF:
		if !m.ramEnabled {
			return
		}
		m.ram[addr&0x1FF] = value & 0x0F
	}
}

func (m *mbc2) Flash(r io.Reader) error { return flashRAM(r, m.ram[:]) }
func (m *mbc2) Dump(w io.Writer) error  { return dumpRAM(w, m.ram[:]) }
