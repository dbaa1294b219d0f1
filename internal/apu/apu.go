// Package apu is a register-plumbing stub for the DMG sound unit.
// Synthesis is explicitly out of scope; what's kept from the teacher's
// fully-synthesizing APU is the NR10-NR52 register field layout (so
// cartridge software that probes those registers for its own bookkeeping
// doesn't desync) and the frame-sequencer timing, plus the same
// ring-buffer-backed sample stream shape the UI's audio player pumps
// from, now permanently silent.
package apu

import (
	"bytes"
	"encoding/gob"
)

const cpuHz = 4194304

// APU holds the DMG sound registers and a frame sequencer. It produces
// no audio; CPUWrite/CPURead exist purely so software polling NR52 and
// friends observes the bit patterns real hardware would present.
type APU struct {
	enabled bool

	fsCounter int // cycles until next 512 Hz frame-sequencer step
	fsStep    int // 0..7

	sampleRate      int
	cyclesPerSample float64
	cycAccum        float64

	// mixing registers, held for readback only
	nr50 byte // 0xFF24
	nr51 byte // 0xFF25

	ch1 chRegs
	ch2 chRegs
	ch3 wave
	ch4 noise

	// sL/sR are a silent stereo stream, kept so the UI's audio.Player
	// pump has real samples to drain rather than special-casing an
	// apu with nothing to play.
	sL, sR     []int16
	sHead, sTail int
}

// chRegs is the register state shared by the square channels (1 and 2);
// no oscillator phase or envelope runtime state is kept since nothing
// ever samples it into audio.
type chRegs struct {
	duty    byte
	length  byte
	lenEn   bool
	vol     byte
	envUp   bool
	envPer  byte
	freqLo  byte
	freqHi  byte
	sweep   byte // CH1 only; NR10 byte verbatim
}

type wave struct {
	dacEn   bool
	length  byte
	lenEn   bool
	volCode byte
	freqLo  byte
	freqHi  byte
	ram     [16]byte
}

type noise struct {
	length byte
	lenEn  bool
	vol    byte
	envUp  bool
	envPer byte
	nr43   byte
}

// New constructs an APU with the teacher's stereo-default power-on
// register values (all channels routed to both speakers, max volume).
func New(sampleRate int) *APU {
	if sampleRate <= 0 {
		sampleRate = 48000
	}
	a := &APU{
		enabled:         true,
		sampleRate:      sampleRate,
		cyclesPerSample: float64(cpuHz) / float64(sampleRate),
		fsCounter:       cpuHz / 512,
		nr50:            0x77,
		nr51:            0xFF,
		sL:              make([]int16, 2048),
		sR:              make([]int16, 2048),
	}
	return a
}

// Reset restores power-on register values and clears the sample queue,
// preserving the configured sample rate.
func (a *APU) Reset() {
	sr := a.sampleRate
	*a = *New(sr)
}

// Tick advances the frame sequencer and pushes silent stereo samples at
// the configured sample rate, so the playback pipeline stays fed.
func (a *APU) Tick(cycles int) {
	if !a.enabled || cycles <= 0 {
		return
	}
	for i := 0; i < cycles; i++ {
		a.fsCounter--
		if a.fsCounter <= 0 {
			a.fsCounter += cpuHz / 512
			a.fsStep = (a.fsStep + 1) & 7
		}
		a.cycAccum++
		for a.cycAccum >= a.cyclesPerSample {
			a.cycAccum -= a.cyclesPerSample
			a.pushStereo(0, 0)
		}
	}
}

func (a *APU) pushStereo(l, r int16) {
	next := (a.sHead + 1) & (len(a.sL) - 1)
	if next == a.sTail {
		return
	}
	a.sL[a.sHead], a.sR[a.sHead] = l, r
	a.sHead = next
}

// PullStereo returns up to max interleaved [L0,R0,L1,R1,...] frames.
func (a *APU) PullStereo(max int) []int16 {
	if max <= 0 || a.sHead == a.sTail {
		return nil
	}
	count := 0
	for i := a.sTail; i != a.sHead && count < max; i = (i + 1) & (len(a.sL) - 1) {
		count++
	}
	out := make([]int16, 0, count*2)
	for i := 0; i < count; i++ {
		out = append(out, a.sL[a.sTail], a.sR[a.sTail])
		a.sTail = (a.sTail + 1) & (len(a.sL) - 1)
	}
	return out
}

// Buffered reports how many stereo frames are currently queued, for a
// playback pump deciding how much to pull per read.
func (a *APU) Buffered() int {
	if a.sHead >= a.sTail {
		return a.sHead - a.sTail
	}
	return len(a.sL) - a.sTail + a.sHead
}

func (a *APU) CPURead(addr uint16) byte {
	switch addr {
	case 0xFF10:
		return 0x80 | a.ch1.sweep
	case 0xFF11:
		return (a.ch1.duty << 6) | 0x3F
	case 0xFF12:
		return (a.ch1.vol << 4) | boolBit(a.ch1.envUp, 3) | (a.ch1.envPer & 7)
	case 0xFF13:
		return 0xFF
	case 0xFF14:
		return 0xBF | boolBit(a.ch1.lenEn, 6)
	case 0xFF16:
		return (a.ch2.duty << 6) | 0x3F
	case 0xFF17:
		return (a.ch2.vol << 4) | boolBit(a.ch2.envUp, 3) | (a.ch2.envPer & 7)
	case 0xFF19:
		return 0xBF | boolBit(a.ch2.lenEn, 6)
	case 0xFF1A:
		return boolBit(a.ch3.dacEn, 7) | 0x7F
	case 0xFF1C:
		return (a.ch3.volCode << 5) | 0x9F
	case 0xFF1E:
		return 0xBF | boolBit(a.ch3.lenEn, 6)
	case 0xFF30, 0xFF31, 0xFF32, 0xFF33, 0xFF34, 0xFF35, 0xFF36, 0xFF37,
		0xFF38, 0xFF39, 0xFF3A, 0xFF3B, 0xFF3C, 0xFF3D, 0xFF3E, 0xFF3F:
		return a.ch3.ram[addr-0xFF30]
	case 0xFF21:
		return (a.ch4.vol << 4) | boolBit(a.ch4.envUp, 3) | (a.ch4.envPer & 7)
	case 0xFF22:
		return a.ch4.nr43
	case 0xFF23:
		return 0xBF | boolBit(a.ch4.lenEn, 6)
	case 0xFF24:
		return a.nr50
	case 0xFF25:
		return a.nr51
	case 0xFF26:
		return 0x70 | boolBit(a.enabled, 7)
	default:
		return 0xFF
	}
}

func (a *APU) CPUWrite(addr uint16, v byte) {
	if !a.enabled && addr != 0xFF26 && !(addr >= 0xFF30 && addr <= 0xFF3F) {
		return
	}
	switch addr {
	case 0xFF10:
		a.ch1.sweep = v & 0x7F
	case 0xFF11:
		a.ch1.duty, a.ch1.length = (v>>6)&3, v&0x3F
	case 0xFF12:
		a.ch1.vol, a.ch1.envUp, a.ch1.envPer = (v>>4)&0x0F, v&(1<<3) != 0, v&7
	case 0xFF13:
		a.ch1.freqLo = v
	case 0xFF14:
		a.ch1.lenEn, a.ch1.freqHi = v&(1<<6) != 0, v&7
	case 0xFF16:
		a.ch2.duty, a.ch2.length = (v>>6)&3, v&0x3F
	case 0xFF17:
		a.ch2.vol, a.ch2.envUp, a.ch2.envPer = (v>>4)&0x0F, v&(1<<3) != 0, v&7
	case 0xFF18:
		a.ch2.freqLo = v
	case 0xFF19:
		a.ch2.lenEn, a.ch2.freqHi = v&(1<<6) != 0, v&7
	case 0xFF1A:
		a.ch3.dacEn = v&0x80 != 0
	case 0xFF1B:
		a.ch3.length = v
	case 0xFF1C:
		a.ch3.volCode = (v >> 5) & 3
	case 0xFF1D:
		a.ch3.freqLo = v
	case 0xFF1E:
		a.ch3.lenEn, a.ch3.freqHi = v&(1<<6) != 0, v&7
	case 0xFF30, 0xFF31, 0xFF32, 0xFF33, 0xFF34, 0xFF35, 0xFF36, 0xFF37,
		0xFF38, 0xFF39, 0xFF3A, 0xFF3B, 0xFF3C, 0xFF3D, 0xFF3E, 0xFF3F:
		a.ch3.ram[addr-0xFF30] = v
	case 0xFF20:
		a.ch4.length = v & 0x3F
	case 0xFF21:
		a.ch4.vol, a.ch4.envUp, a.ch4.envPer = (v>>4)&0x0F, v&(1<<3) != 0, v&7
	case 0xFF22:
		a.ch4.nr43 = v
	case 0xFF23:
		a.ch4.lenEn = v&(1<<6) != 0
	case 0xFF24:
		a.nr50 = v
	case 0xFF25:
		a.nr51 = v
	case 0xFF26:
		pwr := v&0x80 != 0
		if !pwr && a.enabled {
			sr := a.sampleRate
			*a = *New(sr)
			a.enabled = false
		} else if pwr {
			a.enabled = true
		}
	}
}

func boolBit(b bool, shift uint) byte {
	if b {
		return 1 << shift
	}
	return 0
}

type apuState struct {
	Enabled bool
	NR50    byte
	NR51    byte
	FSCtr   int
	FSStep  int
	Ch1     chRegs
	Ch2     chRegs
	Ch3     wave
	Ch4     noise
}

func (a *APU) SaveState() []byte {
	var buf bytes.Buffer
	s := apuState{
		Enabled: a.enabled, NR50: a.nr50, NR51: a.nr51,
		FSCtr: a.fsCounter, FSStep: a.fsStep,
		Ch1: a.ch1, Ch2: a.ch2, Ch3: a.ch3, Ch4: a.ch4,
	}
	_ = gob.NewEncoder(&buf).Encode(s)
	return buf.Bytes()
}

func (a *APU) LoadState(data []byte) error {
	var s apuState
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&s); err != nil {
		return err
	}
	a.enabled, a.nr50, a.nr51 = s.Enabled, s.NR50, s.NR51
	a.fsCounter, a.fsStep = s.FSCtr, s.FSStep
	a.ch1, a.ch2, a.ch3, a.ch4 = s.Ch1, s.Ch2, s.Ch3, s.Ch4
	return nil
}
