package cpu

import (
	"github.com/sm83lab/dotmatrix/internal/bus"
	"github.com/sm83lab/dotmatrix/internal/pic"
)

// imeState models the Interrupt Master Enable flag including EI's
// one-instruction delay (spec.md §4.2): EI moves Disabled/Enabled to
// WillEnable, which becomes Enabled on the first fetch of the
// following instruction rather than immediately.
type imeState int

const (
	imeDisabled imeState = iota
	imeWillEnable
	imeEnabled
)

// microp is one M-cycle's worth of work: a single bus transition or a
// purely internal step. Step() pops and runs exactly one per call.
type microp func(c *CPU)

// CPU is the SM83 processor: the register file plus the microcode
// engine that drives it one M-cycle at a time.
type CPU struct {
	Registers

	ime    imeState
	halted bool

	// haltBug is set when HALT is entered with IME disabled and an
	// interrupt already pending: the next fetch executes the opcode at
	// PC without advancing PC, duplicating it (spec.md §4.2, scenario S2).
	haltBug bool

	Faulted  bool
	FaultErr error

	queue []microp

	// wz mirrors the SM83's internal scratch register: intermediate
	// operand bytes land here between microcycles of a multi-cycle
	// instruction, matching the shape of the teacher's single-shot
	// fetch16()/read16() helpers decomposed across cycles.
	wz  uint16
	tmp byte

	bus *bus.Bus
	pic *pic.PIC
}

// New constructs a CPU wired to bus for memory traffic and pic for
// interrupt sampling, with SP/PC at their post-boot-absent reset values.
func New(b *bus.Bus, p *pic.PIC) *CPU {
	return &CPU{bus: b, pic: p, Registers: Registers{SP: 0xFFFE, PC: 0x0000}}
}

// ResetNoBoot sets registers to the typical DMG post-boot state, for
// running a cartridge without a boot ROM.
func (c *CPU) ResetNoBoot() {
	c.A, c.F = 0x01, 0xB0
	c.B, c.C = 0x00, 0x13
	c.D, c.E = 0x00, 0xD8
	c.H, c.L = 0x01, 0x4D
	c.SP = 0xFFFE
	c.ime, c.halted, c.haltBug = imeDisabled, false, false
	c.Faulted, c.FaultErr = false, nil
	c.queue = nil
}

// Goto sets PC directly, a test hook per spec.md §6.1.
func (c *CPU) Goto(pc uint16) { c.PC = pc }

// Exec writes a single opcode byte at the current PC, a test hook used
// by instruction-level unit tests that don't need a full ROM image.
func (c *CPU) Exec(opcode byte) {
	c.bus.Write(c.PC, opcode)
}

// Run writes bytes starting at the current PC, a test hook for
// multi-instruction scenarios.
func (c *CPU) Run(bytes []byte) {
	for i, b := range bytes {
		c.bus.Write(c.PC+uint16(i), b)
	}
}

func (c *CPU) read8(addr uint16) byte     { return c.bus.Read(addr) }
func (c *CPU) write8(addr uint16, v byte) { c.bus.Write(addr, v) }

// AtFetchBoundary reports whether the next Step call will fetch a new
// opcode (or service an interrupt) rather than continue a queued
// instruction, useful for tracers that want one line per instruction
// instead of one per M-cycle.
func (c *CPU) AtFetchBoundary() bool { return len(c.queue) == 0 }

// Step performs exactly one M-cycle of work (spec.md §4.2's contract).
// On an empty queue it samples interrupts and either primes an
// interrupt-dispatch sequence or fetches+decodes the next instruction;
// on a non-empty queue it pops and runs the next microcycle.
func (c *CPU) Step() error {
	if c.Faulted {
		return nil
	}
	if len(c.queue) > 0 {
		op := c.queue[0]
		c.queue = c.queue[1:]
		op(c)
		return nil
	}
	return c.primeNext()
}

func (c *CPU) primeNext() error {
	if c.halted {
		if c.pic.Any() {
			c.halted = false
		} else {
			return nil // still asleep this M-cycle
		}
	}

	if c.ime == imeEnabled {
		if src, ok := c.pic.Pending(); ok {
			c.queue = c.interruptSequence(src)
			return c.popAndRunFirst()
		}
	}

	pc := c.PC
	op := c.read8(pc)
	if !c.haltBug {
		c.PC++
	}
	c.haltBug = false

	// EI's delayed enable lands after the first fetch of the
	// instruction that follows it.
	if c.ime == imeWillEnable {
		c.ime = imeEnabled
	}

	ops, err := c.decode(op)
	if err != nil {
		c.Faulted = true
		c.FaultErr = err
		return err
	}
	c.queue = ops
	if len(c.queue) == 0 {
		return nil
	}
	return c.popAndRunFirst()
}

func (c *CPU) popAndRunFirst() error {
	op := c.queue[0]
	c.queue = c.queue[1:]
	op(c)
	return nil
}

// interruptSequence builds the five-M-cycle interrupt dispatch
// sequence (spec.md §4.2): two internal cycles, push PCh, push PCl,
// jump to the handler. Clears the serviced IF bit and disables IME.
func (c *CPU) interruptSequence(src pic.Source) []microp {
	return []microp{
		func(c *CPU) {
			c.halted = false
			c.ime = imeDisabled
			c.pic.Clear(src)
		},
		func(c *CPU) {},
		func(c *CPU) { c.SP--; c.write8(c.SP, byte(c.PC>>8)) },
		func(c *CPU) { c.SP--; c.write8(c.SP, byte(c.PC)) },
		func(c *CPU) { c.PC = src.Vector() },
	}
}
