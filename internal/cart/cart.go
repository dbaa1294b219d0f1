// Package cart models the cartridge slot: header parsing, ROM/RAM
// bank controllers, and persistent RAM flash/dump. Ported from the
// teacher's internal/cart package and generalized per spec.md §4.4.
package cart

import (
	"io"

	"github.com/sm83lab/dotmatrix/internal/gberr"
)

// Cartridge is the capability set every MBC variant implements, per
// spec.md §9's "polymorphic MBCs" guidance: a tagged-alternative
// interface selected once at construction rather than per-call virtual
// dispatch trees.
type Cartridge interface {
	Read(addr uint16) byte
	Write(addr uint16, value byte)

	// Flash loads RAM from an external byte stream; Dump serializes it.
	// The core never opens files itself (spec.md §4.4, §6.1).
	Flash(r io.Reader) error
	Dump(w io.Writer) error

	Reset()
	Header() *Header
}

// normalizeROM returns a copy of raw padded with 0xFF (if short) or
// truncated (if long) to exactly size bytes, per spec.md §3: "ROM
// slice of exact size head.romsz".
func normalizeROM(raw []byte, size int) []byte {
	out := make([]byte, size)
	for i := range out {
		out[i] = 0xFF
	}
	n := len(raw)
	if n > size {
		n = size
	}
	copy(out, raw[:n])
	return out
}

// New parses the header and constructs the matching MBC variant. It
// returns *gberr.HeaderError for any header validation failure,
// matching spec.md §6.2 ("Unknown cartridge-type codes reject").
func New(rom []byte) (Cartridge, error) {
	h, err := ParseHeader(rom)
	if err != nil {
		return nil, err
	}
	image := normalizeROM(rom, h.ROMSizeBytes)

	switch h.CartType {
	case 0x00:
		return newROMOnly(h, image), nil
	case 0x01, 0x02, 0x03:
		return newMBC1(h, image), nil
	case 0x05, 0x06:
		return newMBC2(h, image), nil
	case 0x0F, 0x10, 0x11, 0x12, 0x13:
		return newMBC3(h, image), nil
	case 0x19, 0x1A, 0x1B, 0x1C, 0x1D, 0x1E:
		return newMBC5(h, image), nil
	default:
		return nil, &gberr.HeaderError{Reason: "unsupported cartridge type"}
	}
}
