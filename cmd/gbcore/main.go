// Command gbcore is the windowed (and headless) frontend: it wires a
// ROM into a gb.Core and either opens an ebiten window or runs a fixed
// number of frames and reports a framebuffer checksum, for scripted
// regression checks without a display.
package main

import (
	"bytes"
	"flag"
	"fmt"
	"hash/crc32"
	"image"
	"image/png"
	"log"
	"os"
	"strings"
	"time"

	"github.com/sm83lab/dotmatrix/internal/cart"
	"github.com/sm83lab/dotmatrix/internal/gb"
	"github.com/sm83lab/dotmatrix/internal/ui"
)

type cliFlags struct {
	ROMPath string
	BootROM string
	Scale   int
	Title   string
	Palette int
	SaveRAM bool

	Headless bool
	Frames   int
	PNGOut   string
	Expect   string
}

func parseFlags() cliFlags {
	var f cliFlags
	flag.StringVar(&f.ROMPath, "rom", "", "path to ROM (.gb)")
	flag.StringVar(&f.BootROM, "bootrom", "", "optional DMG boot ROM")
	flag.IntVar(&f.Scale, "scale", 3, "window scale")
	flag.StringVar(&f.Title, "title", "dotmatrix", "window title")
	flag.IntVar(&f.Palette, "palette", 0, "compat palette index (0 = classic DMG green)")
	flag.BoolVar(&f.SaveRAM, "save", true, "persist battery RAM to ROM.sav on exit and load on start")

	flag.BoolVar(&f.Headless, "headless", false, "run without a window")
	flag.IntVar(&f.Frames, "frames", 300, "frames to run in headless mode")
	flag.StringVar(&f.PNGOut, "outpng", "", "write last framebuffer to PNG at path")
	flag.StringVar(&f.Expect, "expect", "", "assert framebuffer CRC32 (hex)")
	flag.Parse()
	return f
}

func mustRead(path string) []byte {
	if path == "" {
		return nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		log.Fatalf("read %s: %v", path, err)
	}
	return b
}

func savPath(romPath string) string {
	return strings.TrimSuffix(romPath, ".gb") + ".sav"
}

func runHeadless(c *gb.Core, f cliFlags) error {
	frames := f.Frames
	if frames <= 0 {
		frames = 1
	}
	start := time.Now()
	for i := 0; i < frames; i++ {
		c.RunFrame()
		if c.IsFaulted() {
			return fmt.Errorf("CPU faulted at frame %d: %v", i, c.FaultErr())
		}
	}
	dur := time.Since(start)

	title := ""
	if h := c.Bus.Cart.Header(); h != nil {
		title = h.Title
	}
	rgba := ui.ExpandRGBA(c.Video().Framebuffer(), f.Palette, title)
	sum := crc32.ChecksumIEEE(rgba)
	fps := float64(frames) / dur.Seconds()
	log.Printf("headless: frames=%d elapsed=%s fps=%.2f fb_crc32=%08x", frames, dur.Truncate(time.Millisecond), fps, sum)

	if f.PNGOut != "" {
		img := &image.RGBA{Pix: rgba, Stride: 4 * 160, Rect: image.Rect(0, 0, 160, 144)}
		out, err := os.Create(f.PNGOut)
		if err != nil {
			return err
		}
		defer out.Close()
		if err := png.Encode(out, img); err != nil {
			return err
		}
		log.Printf("wrote %s", f.PNGOut)
	}

	if f.Expect != "" {
		want := strings.TrimPrefix(strings.ToLower(f.Expect), "0x")
		got := fmt.Sprintf("%08x", sum)
		if got != want {
			return fmt.Errorf("checksum mismatch: got %s, want %s", got, want)
		}
	}
	return nil
}

func main() {
	f := parseFlags()
	var rom []byte
	if f.ROMPath != "" {
		rom = mustRead(f.ROMPath)
	}
	boot := mustRead(f.BootROM)

	if len(rom) >= 0x150 {
		if h, err := cart.ParseHeader(rom); err == nil {
			log.Printf("ROM: %q type=%s banks=%d ram=%dB", h.Title, h.CartTypeStr, h.ROMBanks, h.RAMSizeBytes)
		}
	}

	c := gb.New()
	if len(boot) >= 0x100 {
		c.Bus.SetBootROM(boot)
	}
	if len(rom) > 0 {
		if err := c.Insert(rom); err != nil {
			log.Fatalf("insert cart: %v", err)
		}
	}
	if len(boot) >= 0x100 {
		c.Proc().Goto(0x0000)
	}

	var sp string
	if f.SaveRAM && f.ROMPath != "" {
		sp = savPath(f.ROMPath)
		if data, err := os.ReadFile(sp); err == nil {
			if err := c.Flash(bytes.NewReader(data)); err == nil {
				log.Printf("loaded save RAM: %s (%d bytes)", sp, len(data))
			}
		}
	}

	writeBattery := func() {
		if !f.SaveRAM || sp == "" {
			return
		}
		var buf bytes.Buffer
		if err := c.Dump(&buf); err != nil || buf.Len() == 0 {
			return
		}
		if err := os.WriteFile(sp, buf.Bytes(), 0644); err == nil {
			log.Printf("wrote %s", sp)
		}
	}

	if f.Headless {
		if err := runHeadless(c, f); err != nil {
			log.Fatal(err)
		}
		writeBattery()
		return
	}

	uiCfg := ui.Config{Title: f.Title, Scale: f.Scale, Palette: f.Palette, AudioStereo: true}
	app := ui.NewApp(uiCfg, c)
	err := app.Run()
	writeBattery()
	if err != nil {
		log.Fatal(err)
	}
}
