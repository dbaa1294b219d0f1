// Package bus wires the CPU-visible 16-bit address space to the
// cartridge, work/high RAM, and every memory-mapped peripheral.
//
// Generalizes the teacher's internal/bus/bus.go, which held timer,
// joypad, and DMA state as its own fields, into a router over six
// independently owned collaborator components (pic, timer, joypad,
// dma, ppu, apu) plus the cartridge — keeping the teacher's flat
// switch-over-address-range Read/Write shape.
package bus

import (
	"bytes"
	"encoding/gob"
	"io"

	"github.com/sm83lab/dotmatrix/internal/apu"
	"github.com/sm83lab/dotmatrix/internal/cart"
	"github.com/sm83lab/dotmatrix/internal/dma"
	"github.com/sm83lab/dotmatrix/internal/joypad"
	"github.com/sm83lab/dotmatrix/internal/pic"
	"github.com/sm83lab/dotmatrix/internal/ppu"
	"github.com/sm83lab/dotmatrix/internal/timer"
)

// Device is the minimal capability the bus routes reads/writes to.
type Device interface {
	Read(addr uint16) byte
	Write(addr uint16, value byte)
}

// Bus holds references, not copies, of every collaborator — the
// "arena + handles" shape used throughout this core: DMA reads/writes
// through callbacks the bus supplies rather than holding its own Bus
// pointer, so there's no reference cycle.
type Bus struct {
	Cart cart.Cartridge

	PIC    *pic.PIC
	Timer  *timer.Timer
	Joypad *joypad.Joypad
	DMA    *dma.DMA
	PPU    *ppu.PPU
	APU    *apu.APU

	wram [0x2000]byte // 0xC000-0xDFFF
	hram [0x7F]byte   // 0xFF80-0xFFFE

	sb byte      // FF01 serial data
	sc byte      // FF02 serial control
	sw io.Writer // optional serial output sink
	sr io.Reader // optional serial input source (unused on DMG without a link cable)

	bootROM     []byte
	bootEnabled bool

	// tcycle counts T-cycles 0..3 within the current M-cycle, so Tick
	// can step DMA at one-fourth the rate of PPU/Timer.
	tcycle int
}

// New constructs a Bus around rom, wiring fresh pic/timer/joypad/dma/
// ppu/apu components. When rom does not parse as a cartridge (bad header
// checksum, unsupported type), its first 32 KiB are mapped as a ROM-only
// cartridge instead, with the type/size bytes and header checksum
// rewritten to match.
func New(rom []byte) *Bus {
	c, err := cart.New(rom)
	if err != nil {
		img := make([]byte, 0x8000)
		copy(img, rom)
		img[0x0147], img[0x0148], img[0x0149] = 0, 0, 0 // ROM ONLY, 32 KiB, no RAM
		var sum byte
		for _, v := range img[0x0134:0x014D] {
			sum = sum - v - 1
		}
		img[0x014D] = sum
		c, _ = cart.New(img)
	}
	return NewWithCartridge(c)
}

// NewWithCartridge wires a provided cartridge implementation.
func NewWithCartridge(c cart.Cartridge) *Bus {
	p := pic.New()
	return &Bus{
		Cart:   c,
		PIC:    p,
		Timer:  timer.New(p),
		Joypad: joypad.New(p),
		DMA:    dma.New(),
		PPU:    ppu.New(p),
		APU:    apu.New(48000),
	}
}

func (b *Bus) Read(addr uint16) byte {
	switch {
	case addr < 0x8000:
		if b.bootEnabled && addr < 0x0100 && len(b.bootROM) >= 0x100 {
			return b.bootROM[addr]
		}
		return b.dmaGate(addr, func() byte { return b.Cart.Read(addr) })
	case addr >= 0x8000 && addr <= 0x9FFF:
		return b.dmaGate(addr, func() byte { return b.PPU.CPURead(addr) })
	case addr >= 0xA000 && addr <= 0xBFFF:
		return b.dmaGate(addr, func() byte { return b.Cart.Read(addr) })
	case addr >= 0xC000 && addr <= 0xDFFF:
		return b.dmaGate(addr, func() byte { return b.wram[addr-0xC000] })
	case addr >= 0xE000 && addr <= 0xFDFF:
		mirror := addr - 0x2000
		return b.dmaGate(addr, func() byte { return b.wram[mirror-0xC000] })
	case addr >= 0xFE00 && addr <= 0xFE9F:
		if b.DMA.Active() {
			return 0xFF
		}
		return b.PPU.CPURead(addr)
	case addr >= 0xFEA0 && addr <= 0xFEFF:
		return 0xFF
	case addr >= 0xFF80 && addr <= 0xFFFE:
		return b.hram[addr-0xFF80]
	case addr == 0xFF00:
		return b.Joypad.ReadJOYP()
	case addr == 0xFF01:
		return b.sb
	case addr == 0xFF02:
		return 0x7E | (b.sc & 0x81)
	case addr == 0xFF04:
		return b.Timer.DIV()
	case addr == 0xFF05:
		return b.Timer.TIMA()
	case addr == 0xFF06:
		return b.Timer.TMA()
	case addr == 0xFF07:
		return b.Timer.TAC()
	case addr == 0xFF0F:
		return b.PIC.ReadIF()
	case addr >= 0xFF10 && addr <= 0xFF26:
		return b.APU.CPURead(addr)
	case addr >= 0xFF30 && addr <= 0xFF3F:
		return b.APU.CPURead(addr)
	case addr == 0xFF40, addr == 0xFF41, addr == 0xFF42, addr == 0xFF43,
		addr == 0xFF44, addr == 0xFF45,
		addr == 0xFF47, addr == 0xFF48, addr == 0xFF49,
		addr == 0xFF4A, addr == 0xFF4B:
		return b.PPU.CPURead(addr)
	case addr == 0xFF46:
		return b.DMA.Register()
	case addr == 0xFF50:
		return 0xFF
	case addr == 0xFFFF:
		return b.PIC.ReadIE()
	default:
		return 0xFF
	}
}

func (b *Bus) Write(addr uint16, value byte) {
	switch {
	case addr < 0x8000:
		b.dmaGateWrite(addr, func() { b.Cart.Write(addr, value) })
	case addr >= 0x8000 && addr <= 0x9FFF:
		b.dmaGateWrite(addr, func() { b.PPU.CPUWrite(addr, value) })
	case addr >= 0xA000 && addr <= 0xBFFF:
		b.dmaGateWrite(addr, func() { b.Cart.Write(addr, value) })
	case addr >= 0xC000 && addr <= 0xDFFF:
		b.dmaGateWrite(addr, func() { b.wram[addr-0xC000] = value })
	case addr >= 0xE000 && addr <= 0xFDFF:
		mirror := addr - 0x2000
		b.dmaGateWrite(addr, func() { b.wram[mirror-0xC000] = value })
	case addr >= 0xFE00 && addr <= 0xFE9F:
		if b.DMA.Active() {
			return
		}
		b.PPU.CPUWrite(addr, value)
	case addr >= 0xFEA0 && addr <= 0xFEFF:
		// prohibited region, writes ignored
	case addr >= 0xFF80 && addr <= 0xFFFE:
		b.hram[addr-0xFF80] = value
	case addr == 0xFF00:
		b.Joypad.WriteJOYP(value)
	case addr == 0xFF01:
		b.sb = value
	case addr == 0xFF02:
		b.sc = value & 0x81
		if b.sc&0x80 != 0 {
			if b.sw != nil {
				_, _ = b.sw.Write([]byte{b.sb})
			}
			b.PIC.Request(pic.Serial)
			b.sc &^= 0x80
		}
	case addr == 0xFF04:
		b.Timer.WriteDIV()
	case addr == 0xFF05:
		b.Timer.WriteTIMA(value)
	case addr == 0xFF06:
		b.Timer.WriteTMA(value)
	case addr == 0xFF07:
		b.Timer.WriteTAC(value)
	case addr == 0xFF0F:
		b.PIC.WriteIF(value)
	case addr >= 0xFF10 && addr <= 0xFF26:
		b.APU.CPUWrite(addr, value)
	case addr >= 0xFF30 && addr <= 0xFF3F:
		b.APU.CPUWrite(addr, value)
	case addr == 0xFF40, addr == 0xFF41, addr == 0xFF42, addr == 0xFF43,
		addr == 0xFF44, addr == 0xFF45,
		addr == 0xFF47, addr == 0xFF48, addr == 0xFF49,
		addr == 0xFF4A, addr == 0xFF4B:
		b.PPU.CPUWrite(addr, value)
	case addr == 0xFF46:
		b.DMA.Start(value)
	case addr == 0xFF50:
		if value != 0x00 {
			b.bootEnabled = false
		}
	case addr == 0xFFFF:
		b.PIC.WriteIE(value)
	}
}

// dmaGate returns 0xFF for any non-HRAM read while OAM DMA is active
// (spec.md §4.1). Read applies it to ROM, VRAM, cartridge RAM, WRAM and
// echo RAM, and gates OAM separately; the I/O registers at $FF00-$FF7F
// and IE stay readable and writable during DMA.
func (b *Bus) dmaGate(addr uint16, read func() byte) byte {
	if b.DMA.Active() && !(addr >= 0xFF80 && addr <= 0xFFFE) {
		return 0xFF
	}
	return read()
}

func (b *Bus) dmaGateWrite(addr uint16, write func()) {
	if b.DMA.Active() && !(addr >= 0xFF80 && addr <= 0xFFFE) {
		return
	}
	write()
}

// dmaRead is the DMA engine's own source-byte fetch, bypassing dmaGate:
// dmaGate models the CPU losing bus visibility while DMA is active, but
// the DMA engine is what's doing the copying and must see the real
// source bytes regardless, or every transfer would copy 0xFF into OAM
// instead of the source data (spec.md §4.6).
func (b *Bus) dmaRead(addr uint16) byte {
	switch {
	case addr < 0x8000:
		if b.bootEnabled && addr < 0x0100 && len(b.bootROM) >= 0x100 {
			return b.bootROM[addr]
		}
		return b.Cart.Read(addr)
	case addr >= 0x8000 && addr <= 0x9FFF:
		return b.PPU.CPURead(addr)
	case addr >= 0xA000 && addr <= 0xBFFF:
		return b.Cart.Read(addr)
	case addr >= 0xC000 && addr <= 0xDFFF:
		return b.wram[addr-0xC000]
	case addr >= 0xE000 && addr <= 0xFDFF:
		return b.wram[addr-0x2000-0xC000]
	case addr >= 0xFE00 && addr <= 0xFE9F:
		return b.PPU.CPURead(addr)
	default:
		return b.Read(addr)
	}
}

// SetSerialWriter sets a sink that receives bytes written via the
// serial port.
func (b *Bus) SetSerialWriter(w io.Writer) { b.sw = w }

// SetBootROM loads a 256-byte DMG boot ROM, overlaying $0000-$00FF
// until a nonzero write to $FF50 disables it.
func (b *Bus) SetBootROM(data []byte) {
	b.bootROM, b.bootEnabled = nil, false
	if len(data) >= 0x100 {
		b.bootROM = make([]byte, 0x100)
		copy(b.bootROM, data[:0x100])
		b.bootEnabled = true
	}
}

// Tick advances the bus's T-cycle-granularity collaborators by cycles
// T-cycles: PPU and Timer step every T-cycle (spec.md §4.3, §4.5), while
// DMA and APU each perform one M-cycle of work on the fourth T-cycle
// (spec.md §4.6, §5). stepCPU, when given, runs first on that same
// M-cycle boundary — gb.Core (the only thing that owns a CPU) supplies
// it as c.CPU.Step, preserving the CPU/DMA/APU ordering spec.md §5
// specifies; bus-only tests omit it and drive PPU/Timer/DMA without a
// CPU. This is the single cycle-driving loop both gb.Core and this
// package's own tests share, rather than two copies that can drift.
func (b *Bus) Tick(cycles int, stepCPU ...func()) {
	var step func()
	if len(stepCPU) > 0 {
		step = stepCPU[0]
	}
	for i := 0; i < cycles; i++ {
		b.Timer.Tick()
		b.PPU.Tick(1)
		b.tcycle++
		if b.tcycle == 4 {
			b.tcycle = 0
			if step != nil {
				step()
			}
			b.DMA.Tick(
				func(addr uint16) byte { return b.dmaRead(addr) },
				func(idx int, v byte) { b.PPU.CPUWrite(0xFE00+uint16(idx), v) },
			)
			b.APU.Tick(4)
		}
	}
}

// Joypad button bitmask constants for SetJoypadState, matching the
// teacher's internal/bus/bus.go convention.
const (
	JoypRight     byte = 1 << 0
	JoypLeft      byte = 1 << 1
	JoypUp        byte = 1 << 2
	JoypDown      byte = 1 << 3
	JoypA         byte = 1 << 4
	JoypB         byte = 1 << 5
	JoypSelectBtn byte = 1 << 6
	JoypStart     byte = 1 << 7
)

var joypBits = [8]joypad.Button{
	joypad.Right, joypad.Left, joypad.Up, joypad.Down,
	joypad.A, joypad.B, joypad.Select, joypad.Start,
}

// SetJoypadState applies a full button bitmask in one call, pressing
// every bit set in mask and releasing every bit clear.
func (b *Bus) SetJoypadState(mask byte) {
	for i, btn := range joypBits {
		b.Joypad.Send(btn, mask&(1<<uint(i)) != 0)
	}
}

// busState is the gob-encodable snapshot of everything the bus owns
// directly; collaborators serialize their own state alongside it.
type busState struct {
	WRAM        [0x2000]byte
	HRAM        [0x7F]byte
	SB, SC      byte
	BootEnabled bool
	TCycle      int

	PIC    pic.State
	Timer  timer.State
	Joypad joypad.SaveState
	DMA    dma.State
	PPU    ppu.State
	APU    []byte
}

func (b *Bus) SaveState() []byte {
	var buf bytes.Buffer
	enc := gob.NewEncoder(&buf)
	s := busState{
		WRAM: b.wram, HRAM: b.hram,
		SB: b.sb, SC: b.sc, BootEnabled: b.bootEnabled, TCycle: b.tcycle,
		PIC: b.PIC.SaveState(), Timer: b.Timer.SaveState(),
		Joypad: b.Joypad.Save(), DMA: b.DMA.SaveState(), PPU: b.PPU.SaveState(),
		APU: b.APU.SaveState(),
	}
	_ = enc.Encode(s)
	var cartRAM bytes.Buffer
	_ = b.Cart.Dump(&cartRAM)
	_ = enc.Encode(cartRAM.Bytes())
	return buf.Bytes()
}

func (b *Bus) LoadState(data []byte) error {
	dec := gob.NewDecoder(bytes.NewReader(data))
	var s busState
	if err := dec.Decode(&s); err != nil {
		return err
	}
	b.wram, b.hram = s.WRAM, s.HRAM
	b.sb, b.sc, b.bootEnabled = s.SB, s.SC, s.BootEnabled
	b.tcycle = s.TCycle
	b.PIC.LoadState(s.PIC)
	b.Timer.LoadState(s.Timer)
	b.Joypad.Load(s.Joypad)
	b.DMA.LoadState(s.DMA)
	b.PPU.LoadState(s.PPU)
	if len(s.APU) > 0 {
		_ = b.APU.LoadState(s.APU)
	}

	var cartRAM []byte
	if err := dec.Decode(&cartRAM); err == nil && len(cartRAM) > 0 {
		_ = b.Cart.Flash(bytes.NewReader(cartRAM))
	}
	return nil
}
