// Package gb assembles the bus, CPU, PPU, and peripheral components
// into a runnable DMG system and drives them at the cadence spec.md §5
// describes: a T-cycle clock where the Timer and PPU advance on every
// call and CPU/DMA/APU each perform one M-cycle of work on every fourth
// call, in that order. The actual Timer/PPU/DMA/APU sequencing lives in
// Bus.Tick; Core supplies only the CPU step, so there is a single
// cycle-driving loop rather than two that could drift apart.
//
// Generalizes the teacher's internal/emu/emu.go, a Milestone-0 stub
// that parsed the cartridge header and drew a test-pattern framebuffer
// without ever wiring a CPU or PPU, into the real driver.
package gb

import (
	"bytes"
	"encoding/gob"
	"io"

	"github.com/sm83lab/dotmatrix/internal/apu"
	"github.com/sm83lab/dotmatrix/internal/bus"
	"github.com/sm83lab/dotmatrix/internal/cart"
	"github.com/sm83lab/dotmatrix/internal/cpu"
	"github.com/sm83lab/dotmatrix/internal/joypad"
	"github.com/sm83lab/dotmatrix/internal/ppu"
)

// Core is a complete DMG system: bus-wired peripherals plus the CPU
// that drives them, ticked one T-cycle at a time.
type Core struct {
	Bus *bus.Bus
	CPU *cpu.CPU
}

// New constructs a Core with no cartridge inserted (an all-zero ROM-only
// image); call Insert to load a real one.
func New() *Core {
	b := bus.New(make([]byte, 0x8000))
	return &Core{
		Bus: b,
		CPU: cpu.New(b, b.PIC),
	}
}

// Reset restores CPU/PPU/timer/PIC/DMA/joypad/APU to their power-on
// state and resets the current cartridge's bank-select state, without
// touching cartridge RAM contents (spec.md §8's Reset law).
func (c *Core) Reset() {
	c.CPU.ResetNoBoot()
	c.Bus.PIC.Reset()
	c.Bus.Timer.Reset()
	c.Bus.Joypad.Reset()
	c.Bus.DMA.Reset()
	c.Bus.PPU.Reset()
	c.Bus.Cart.Reset()
	c.Bus.APU.Reset()
}

// Insert parses rom's header, constructs the matching MBC, and swaps it
// into the bus. Existing cartridge RAM, if any, is discarded; callers
// wanting to preserve it should Dump before Insert.
func (c *Core) Insert(rom []byte) error {
	cg, err := cart.New(rom)
	if err != nil {
		return err
	}
	c.Bus.Cart = cg
	c.CPU.ResetNoBoot()
	return nil
}

// Eject returns the currently inserted cartridge, replacing it with an
// empty all-zero ROM-only one, and reports whether the bus held a
// cartridge; the empty image installed by New or an earlier Eject counts
// as one.
func (c *Core) Eject() (cart.Cartridge, bool) {
	prev := c.Bus.Cart
	img := make([]byte, 0x8000)
	img[0x014D] = 0xE7 // header checksum of an all-zero $0134-$014C
	empty, _ := cart.New(img)
	c.Bus.Cart = empty
	return prev, prev != nil
}

// Flash loads cartridge RAM from r (battery-backed save data).
func (c *Core) Flash(r io.Reader) error { return c.Bus.Cart.Flash(r) }

// Dump serializes the current cartridge RAM to w.
func (c *Core) Dump(w io.Writer) error { return c.Bus.Cart.Dump(w) }

// Cycle advances the system by one T-cycle (spec.md §5): the PPU
// always steps one dot; every fourth call, CPU, DMA, and APU each
// perform one M-cycle of work, in that order. Delegates to Bus.Tick,
// the single cycle-driving loop this package and internal/bus's own
// tests both run, rather than keeping a second copy of the same
// Timer/PPU/DMA sequencing here.
func (c *Core) Cycle() {
	c.Bus.Tick(1, func() { _ = c.CPU.Step() })
}

// RunFrame advances the system until a full frame has been produced
// (the PPU's vsync latch fires), a convenience wrapper over Cycle for
// frontends driving whole-frame steps (spec.md §6.1's frame-stepping
// contract).
func (c *Core) RunFrame() {
	for {
		c.Cycle()
		if c.Bus.PPU.Vsync() {
			return
		}
	}
}

// IsFaulted reports whether the CPU has halted on an illegal opcode or
// an internal decode error (spec.md §7).
func (c *Core) IsFaulted() bool { return c.CPU.Faulted }

// FaultErr returns the error that faulted the CPU, or nil.
func (c *Core) FaultErr() error { return c.CPU.FaultErr }

// Video exposes the PPU for framebuffer/vsync polling.
func (c *Core) Video() *ppu.PPU { return c.Bus.PPU }

// APU exposes the sound unit's sample stream for a frontend's audio
// playback pump; the core itself never synthesizes audio.
func (c *Core) APU() *apu.APU { return c.Bus.APU }

// Joypad exposes the joypad for button-event delivery.
func (c *Core) Joypad() *joypad.Joypad { return c.Bus.Joypad }

// SetSerialWriter sets a sink that receives every byte the program sends
// out of the serial port; the core never opens a real link cable itself
// (spec.md §4.1 Non-goals).
func (c *Core) SetSerialWriter(w io.Writer) { c.Bus.SetSerialWriter(w) }

// Proc exposes the CPU for test hooks (Goto/Exec/Run) and fault state.
func (c *Core) Proc() *cpu.CPU { return c.CPU }

type coreState struct {
	Bus     []byte
	CartRAM []byte
}

// SaveState serializes bus/CPU/peripheral state (the bus's own
// SaveState already nests the APU's timing state and the T-cycle
// divider) and the cartridge's battery RAM. CPU register state rides
// alongside the rest since the register file is small enough to encode
// directly here rather than threading it through the bus.
func (c *Core) SaveState() []byte {
	var ram bytes.Buffer
	_ = c.Bus.Cart.Dump(&ram) // ROM-only cartridges write nothing

	var buf bytes.Buffer
	enc := gob.NewEncoder(&buf)
	_ = enc.Encode(coreState{
		Bus:     c.Bus.SaveState(),
		CartRAM: ram.Bytes(),
	})
	_ = enc.Encode(c.CPU.Registers)
	return buf.Bytes()
}

func (c *Core) LoadState(data []byte) error {
	dec := gob.NewDecoder(bytes.NewReader(data))
	var s coreState
	if err := dec.Decode(&s); err != nil {
		return err
	}
	if err := c.Bus.LoadState(s.Bus); err != nil {
		return err
	}
	if len(s.CartRAM) > 0 {
		if err := c.Bus.Cart.Flash(bytes.NewReader(s.CartRAM)); err != nil {
			return err
		}
	}
	return dec.Decode(&c.CPU.Registers)
}
