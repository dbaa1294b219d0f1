// Command headertool parses and prints a ROM's cartridge header
// without constructing a full Core, for quickly inspecting a ROM file
// or validating a batch of them in a script.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/sm83lab/dotmatrix/internal/cart"
)

func main() {
	checkLogo := flag.Bool("logo", false, "also report whether the Nintendo logo bitmap matches")
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		log.Fatal("usage: headertool [-logo] rom.gb [rom2.gb ...]")
	}

	exit := 0
	for _, path := range args {
		rom, err := os.ReadFile(path)
		if err != nil {
			fmt.Printf("%s: read error: %v\n", path, err)
			exit = 1
			continue
		}
		h, err := cart.ParseHeader(rom)
		if err != nil {
			fmt.Printf("%s: invalid header: %v\n", path, err)
			exit = 1
			continue
		}
		fmt.Printf("%s\n", path)
		fmt.Printf("  title:       %q\n", h.Title)
		fmt.Printf("  cart type:   %s (0x%02X)\n", h.CartTypeStr, h.CartType)
		fmt.Printf("  rom:         %d banks, %d bytes\n", h.ROMBanks, h.ROMSizeBytes)
		fmt.Printf("  ram:         %d bytes\n", h.RAMSizeBytes)
		fmt.Printf("  cgb flag:    0x%02X\n", h.CGBFlag)
		fmt.Printf("  sgb flag:    0x%02X\n", h.SGBFlag)
		fmt.Printf("  destination: 0x%02X\n", h.Destination)
		fmt.Printf("  version:     %d\n", h.ROMVersion)
		fmt.Printf("  header sum:  0x%02X\n", h.HeaderChecksum)
		fmt.Printf("  global sum:  0x%04X\n", h.GlobalChecksum)
		if *checkLogo {
			fmt.Printf("  logo match:  %v\n", cart.HasNintendoLogo(rom))
		}
	}
	os.Exit(exit)
}
