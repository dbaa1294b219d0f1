package cart

import (
	"io"

	"github.com/sm83lab/dotmatrix/internal/gberr"
)

// flashRAM fills ram by reading exactly len(ram) bytes from r. A nil or
// zero-length ram (no battery-backed RAM on this cartridge) makes Flash
// a no-op, matching spec.md §6.3's "cartridges without RAM ignore
// flash/dump calls".
func flashRAM(r io.Reader, ram []byte) error {
	if len(ram) == 0 {
		return nil
	}
	if _, err := io.ReadFull(r, ram); err != nil {
		return &gberr.MbcError{Reason: "flash: " + err.Error()}
	}
	return nil
}

// dumpRAM writes the full contents of ram to w.
func dumpRAM(w io.Writer, ram []byte) error {
	if len(ram) == 0 {
		return nil
	}
	if _, err := w.Write(ram); err != nil {
		return &gberr.MbcError{Reason: "dump: " + err.Error()}
	}
	return nil
}
