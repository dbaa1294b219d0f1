package cpu

import "github.com/sm83lab/dotmatrix/internal/gberr"

// get8/set8 implement the teacher's "reg idx 0..7, 6 means (HL)"
// operand table, reused throughout this file's LD/ALU/CB blocks.
func (c *CPU) get8(idx byte) byte {
	switch idx {
	case 0:
		return c.B
	case 1:
		return c.C
	case 2:
		return c.D
	case 3:
		return c.E
	case 4:
		return c.H
	case 5:
		return c.L
	case 6:
		return c.read8(c.HL())
	default:
		return c.A
	}
}

func (c *CPU) set8(idx byte, v byte) {
	switch idx {
	case 0:
		c.B = v
	case 1:
		c.C = v
	case 2:
		c.D = v
	case 3:
		c.E = v
	case 4:
		c.H = v
	case 5:
		c.L = v
	case 6:
		c.write8(c.HL(), v)
	default:
		c.A = v
	}
}

func (c *CPU) getRR(idx byte) uint16 {
	switch idx {
	case 0:
		return c.BC()
	case 1:
		return c.DE()
	case 2:
		return c.HL()
	default:
		return c.SP
	}
}

func (c *CPU) setRR(idx byte, v uint16) {
	switch idx {
	case 0:
		c.SetBC(v)
	case 1:
		c.SetDE(v)
	case 2:
		c.SetHL(v)
	default:
		c.SP = v
	}
}

// illegalOpcodes are the documented-invalid SM83 bytes, plus STOP (not
// emulated: no title in the target compatibility set relies on
// low-power mode), per spec.md §4.2/§7.
var illegalOpcodes = map[byte]bool{
	0x10: true,
	0xD3: true, 0xDB: true, 0xDD: true, 0xE3: true, 0xE4: true, 0xEB: true,
	0xEC: true, 0xED: true, 0xF4: true, 0xFC: true, 0xFD: true,
}

// decode returns the microcycle queue for op, excluding the fetch
// cycle already spent reaching it. Register-register and immediate
// ALU work with no further bus access completes inline (queue is
// empty and the effect already happened), matching real hardware
// where internal work piggybacks on the cycle it's decided in.
func (c *CPU) decode(op byte) ([]microp, error) {
	if illegalOpcodes[op] {
		return nil, &gberr.IllegalOpcode{Opcode: op, PC: c.PC - 1}
	}

	switch {
	case op == 0x00: // NOP
		return nil, nil
	case op == 0x76: // HALT
		if c.ime != imeEnabled && c.pic.Any() {
			c.haltBug = true
		} else {
			c.halted = true
		}
		return nil, nil
	case op == 0xCB:
		return c.decodeCB(), nil
	case op&0xC0 == 0x40: // LD r,r' (0x40-0x7F, minus 0x76 above)
		d, s := (op>>3)&7, op&7
		v := c.get8(s)
		if d == 6 || s == 6 {
			return []microp{func(c *CPU) { c.set8(d, v) }}, nil
		}
		c.set8(d, v)
		return nil, nil
	case op&0xC0 == 0x80: // ALU A,r (0x80-0xBF)
		g, s := (op>>3)&7, op&7
		if s == 6 {
			return []microp{func(c *CPU) { c.applyALU(g, c.read8(c.HL())) }}, nil
		}
		c.applyALU(g, c.get8(s))
		return nil, nil
	}

	switch op {
	case 0x01, 0x11, 0x21, 0x31: // LD rr,d16
		idx := (op >> 4) & 3
		return []microp{
			func(c *CPU) { c.tmp = c.read8(c.PC); c.PC++ },
			func(c *CPU) {
				hi := c.read8(c.PC)
				c.PC++
				c.setRR(idx, uint16(hi)<<8|uint16(c.tmp))
			},
		}, nil
	case 0x02: // LD (BC),A
		return []microp{func(c *CPU) { c.write8(c.BC(), c.A) }}, nil
	case 0x12: // LD (DE),A
		return []microp{func(c *CPU) { c.write8(c.DE(), c.A) }}, nil
	case 0x0A: // LD A,(BC)
		return []microp{func(c *CPU) { c.A = c.read8(c.BC()) }}, nil
	case 0x1A: // LD A,(DE)
		return []microp{func(c *CPU) { c.A = c.read8(c.DE()) }}, nil
	case 0x22: // LD (HL+),A
		return []microp{func(c *CPU) { c.write8(c.HL(), c.A); c.SetHL(c.HL() + 1) }}, nil
	case 0x2A: // LD A,(HL+)
		return []microp{func(c *CPU) { c.A = c.read8(c.HL()); c.SetHL(c.HL() + 1) }}, nil
	case 0x32: // LD (HL-),A
		return []microp{func(c *CPU) { c.write8(c.HL(), c.A); c.SetHL(c.HL() - 1) }}, nil
	case 0x3A: // LD A,(HL-)
		return []microp{func(c *CPU) { c.A = c.read8(c.HL()); c.SetHL(c.HL() - 1) }}, nil
	case 0x08: // LD (a16),SP
		return []microp{
			func(c *CPU) { c.tmp = c.read8(c.PC); c.PC++ },
			func(c *CPU) { c.wz = uint16(c.read8(c.PC))<<8 | uint16(c.tmp); c.PC++ },
			func(c *CPU) { c.write8(c.wz, byte(c.SP)) },
			func(c *CPU) { c.write8(c.wz+1, byte(c.SP>>8)) },
		}, nil
	case 0x06, 0x0E, 0x16, 0x1E, 0x26, 0x2E, 0x36, 0x3E: // LD r,d8
		d := (op >> 3) & 7
		if d == 6 {
			return []microp{
				func(c *CPU) { c.tmp = c.read8(c.PC); c.PC++ },
				func(c *CPU) { c.write8(c.HL(), c.tmp) },
			}, nil
		}
		return []microp{func(c *CPU) { v := c.read8(c.PC); c.PC++; c.set8(d, v) }}, nil
	case 0xC6, 0xCE, 0xD6, 0xDE, 0xE6, 0xEE, 0xF6, 0xFE: // ALU A,d8
		g := (op >> 3) & 7
		return []microp{func(c *CPU) { v := c.read8(c.PC); c.PC++; c.applyALU(g, v) }}, nil
	case 0x03, 0x13, 0x23, 0x33: // INC rr
		idx := (op >> 4) & 3
		return []microp{func(c *CPU) { c.setRR(idx, c.getRR(idx)+1) }}, nil
	case 0x0B, 0x1B, 0x2B, 0x3B: // DEC rr
		idx := (op >> 4) & 3
		return []microp{func(c *CPU) { c.setRR(idx, c.getRR(idx)-1) }}, nil
	case 0x04, 0x0C, 0x14, 0x1C, 0x24, 0x2C, 0x34, 0x3C: // INC r
		d := (op >> 3) & 7
		if d == 6 {
			return []microp{
				func(c *CPU) { c.tmp = c.read8(c.HL()) },
				func(c *CPU) {
					res := c.tmp + 1
					c.F = (c.F & flagC) | boolFlag(res == 0, flagZ) | boolFlag((c.tmp&0x0F)+1 > 0x0F, flagH)
					c.write8(c.HL(), res)
				},
			}, nil
		}
		v := c.get8(d)
		res := v + 1
		c.F = (c.F & flagC) | boolFlag(res == 0, flagZ) | boolFlag((v&0x0F)+1 > 0x0F, flagH)
		c.set8(d, res)
		return nil, nil
	case 0x05, 0x0D, 0x15, 0x1D, 0x25, 0x2D, 0x35, 0x3D: // DEC r
		d := (op >> 3) & 7
		if d == 6 {
			return []microp{
				func(c *CPU) { c.tmp = c.read8(c.HL()) },
				func(c *CPU) {
					res := c.tmp - 1
					c.F = (c.F & flagC) | flagN | boolFlag(res == 0, flagZ) | boolFlag(c.tmp&0x0F == 0, flagH)
					c.write8(c.HL(), res)
				},
			}, nil
		}
		v := c.get8(d)
		res := v - 1
		c.F = (c.F & flagC) | flagN | boolFlag(res == 0, flagZ) | boolFlag(v&0x0F == 0, flagH)
		c.set8(d, res)
		return nil, nil
	case 0x07: // RLCA
		cy := (c.A >> 7) & 1
		c.A = (c.A << 1) | cy
		c.setZNHC(false, false, false, cy == 1)
		return nil, nil
	case 0x0F: // RRCA
		cy := c.A & 1
		c.A = (c.A >> 1) | (cy << 7)
		c.setZNHC(false, false, false, cy == 1)
		return nil, nil
	case 0x17: // RLA
		cy := (c.A >> 7) & 1
		in := boolByte(c.C())
		c.A = (c.A << 1) | in
		c.setZNHC(false, false, false, cy == 1)
		return nil, nil
	case 0x1F: // RRA
		cy := c.A & 1
		in := boolByte(c.C())
		c.A = (c.A >> 1) | (in << 7)
		c.setZNHC(false, false, false, cy == 1)
		return nil, nil
	case 0x27: // DAA
		c.daa()
		return nil, nil
	case 0x2F: // CPL
		c.A = ^c.A
		c.F = c.F | flagN | flagH
		return nil, nil
	case 0x37: // SCF
		c.F = (c.F & flagZ) | flagC
		return nil, nil
	case 0x3F: // CCF
		c.F = (c.F & flagZ) | boolFlag(!c.C(), flagC)
		return nil, nil
	case 0x09, 0x19, 0x29, 0x39: // ADD HL,rr
		idx := (op >> 4) & 3
		return []microp{func(c *CPU) {
			hl, v := c.HL(), c.getRR(idx)
			sum := uint32(hl) + uint32(v)
			h := (hl&0x0FFF)+(v&0x0FFF) > 0x0FFF
			c.SetHL(uint16(sum))
			c.F = (c.F & flagZ) | boolFlag(h, flagH) | boolFlag(sum > 0xFFFF, flagC)
		}}, nil
	case 0xE0: // LDH (a8),A
		return []microp{
			func(c *CPU) { c.tmp = c.read8(c.PC); c.PC++ },
			func(c *CPU) { c.write8(0xFF00+uint16(c.tmp), c.A) },
		}, nil
	case 0xF0: // LDH A,(a8)
		return []microp{
			func(c *CPU) { c.tmp = c.read8(c.PC); c.PC++ },
			func(c *CPU) { c.A = c.read8(0xFF00 + uint16(c.tmp)) },
		}, nil
	case 0xE2: // LD (C),A
		return []microp{func(c *CPU) { c.write8(0xFF00+uint16(c.C), c.A) }}, nil
	case 0xF2: // LD A,(C)
		return []microp{func(c *CPU) { c.A = c.read8(0xFF00 + uint16(c.C)) }}, nil
	case 0xEA: // LD (a16),A
		return []microp{
			func(c *CPU) { c.tmp = c.read8(c.PC); c.PC++ },
			func(c *CPU) { c.wz = uint16(c.read8(c.PC))<<8 | uint16(c.tmp); c.PC++ },
			func(c *CPU) { c.write8(c.wz, c.A) },
		}, nil
	case 0xFA: // LD A,(a16)
		return []microp{
			func(c *CPU) { c.tmp = c.read8(c.PC); c.PC++ },
			func(c *CPU) { c.wz = uint16(c.read8(c.PC))<<8 | uint16(c.tmp); c.PC++ },
			func(c *CPU) { c.A = c.read8(c.wz) },
		}, nil
	case 0x18: // JR r8
		return []microp{
			func(c *CPU) { c.tmp = c.read8(c.PC); c.PC++ },
			func(c *CPU) { c.PC = uint16(int32(c.PC) + int32(int8(c.tmp))) },
		}, nil
	case 0x20, 0x28, 0x30, 0x38: // JR cc,r8
		cc := (op >> 3) & 3
		return []microp{func(c *CPU) {
			c.tmp = c.read8(c.PC)
			c.PC++
			if condTaken(&c.Registers, cc) {
				offset := c.tmp
				c.queue = append([]microp{func(c *CPU) { c.PC = uint16(int32(c.PC) + int32(int8(offset))) }}, c.queue...)
			}
		}}, nil
	case 0xC3: // JP a16
		return []microp{
			func(c *CPU) { c.tmp = c.read8(c.PC); c.PC++ },
			func(c *CPU) { c.wz = uint16(c.read8(c.PC))<<8 | uint16(c.tmp); c.PC++ },
			func(c *CPU) { c.PC = c.wz },
		}, nil
	case 0xE9: // JP (HL)
		c.PC = c.HL()
		return nil, nil
	case 0xC2, 0xCA, 0xD2, 0xDA: // JP cc,a16
		cc := (op >> 3) & 3
		return []microp{
			func(c *CPU) { c.tmp = c.read8(c.PC); c.PC++ },
			func(c *CPU) {
				c.wz = uint16(c.read8(c.PC))<<8 | uint16(c.tmp)
				c.PC++
				if condTaken(&c.Registers, cc) {
					dest := c.wz
					c.queue = append([]microp{func(c *CPU) { c.PC = dest }}, c.queue...)
				}
			},
		}, nil
	case 0xCD: // CALL a16
		return []microp{
			func(c *CPU) { c.tmp = c.read8(c.PC); c.PC++ },
			func(c *CPU) { c.wz = uint16(c.read8(c.PC))<<8 | uint16(c.tmp); c.PC++ },
			func(c *CPU) {},
			func(c *CPU) { c.SP--; c.write8(c.SP, byte(c.PC>>8)) },
			func(c *CPU) { c.SP--; c.write8(c.SP, byte(c.PC)); c.PC = c.wz },
		}, nil
	case 0xC4, 0xCC, 0xD4, 0xDC: // CALL cc,a16
		cc := (op >> 3) & 3
		return []microp{
			func(c *CPU) { c.tmp = c.read8(c.PC); c.PC++ },
			func(c *CPU) {
				c.wz = uint16(c.read8(c.PC))<<8 | uint16(c.tmp)
				c.PC++
				if condTaken(&c.Registers, cc) {
					dest := c.wz
					c.queue = append([]microp{
						func(c *CPU) {},
						func(c *CPU) { c.SP--; c.write8(c.SP, byte(c.PC>>8)) },
						func(c *CPU) { c.SP--; c.write8(c.SP, byte(c.PC)); c.PC = dest },
					}, c.queue...)
				}
			},
		}, nil
	case 0xC9: // RET
		return []microp{
			func(c *CPU) { c.tmp = c.read8(c.SP); c.SP++ },
			func(c *CPU) { c.wz = uint16(c.read8(c.SP))<<8 | uint16(c.tmp); c.SP++ },
			func(c *CPU) { c.PC = c.wz },
		}, nil
	case 0xD9: // RETI
		return []microp{
			func(c *CPU) { c.tmp = c.read8(c.SP); c.SP++ },
			func(c *CPU) { c.wz = uint16(c.read8(c.SP))<<8 | uint16(c.tmp); c.SP++ },
			func(c *CPU) { c.PC = c.wz; c.ime = imeEnabled },
		}, nil
	case 0xC0, 0xC8, 0xD0, 0xD8: // RET cc
		cc := (op >> 3) & 3
		return []microp{func(c *CPU) {
			if condTaken(&c.Registers, cc) {
				c.queue = append([]microp{
					func(c *CPU) { c.tmp = c.read8(c.SP); c.SP++ },
					func(c *CPU) { c.wz = uint16(c.read8(c.SP))<<8 | uint16(c.tmp); c.SP++ },
					func(c *CPU) { c.PC = c.wz },
				}, c.queue...)
			}
		}}, nil
	case 0xC7, 0xCF, 0xD7, 0xDF, 0xE7, 0xEF, 0xF7, 0xFF: // RST n
		dest := uint16(op & 0x38)
		return []microp{
			func(c *CPU) {},
			func(c *CPU) { c.SP--; c.write8(c.SP, byte(c.PC>>8)) },
			func(c *CPU) { c.SP--; c.write8(c.SP, byte(c.PC)); c.PC = dest },
		}, nil
	case 0xF5, 0xC5, 0xD5, 0xE5: // PUSH rr (AF,BC,DE,HL)
		idx := (op >> 4) & 3
		return []microp{
			func(c *CPU) {},
			func(c *CPU) { v := c.pushableRR(idx); c.SP--; c.write8(c.SP, byte(v>>8)) },
			func(c *CPU) { v := c.pushableRR(idx); c.SP--; c.write8(c.SP, byte(v)) },
		}, nil
	case 0xF1, 0xC1, 0xD1, 0xE1: // POP rr (AF,BC,DE,HL)
		idx := (op >> 4) & 3
		return []microp{
			func(c *CPU) { c.tmp = c.read8(c.SP); c.SP++ },
			func(c *CPU) {
				hi := c.read8(c.SP)
				c.SP++
				c.popIntoRR(idx, uint16(hi)<<8|uint16(c.tmp))
			},
		}, nil
	case 0xE8: // ADD SP,r8
		return []microp{
			func(c *CPU) { c.tmp = c.read8(c.PC); c.PC++ },
			func(c *CPU) {},
			func(c *CPU) {
				offset := int16(int8(c.tmp))
				res := int32(c.SP) + int32(offset)
				h := (c.SP&0x0F)+uint16(c.tmp&0x0F) > 0x0F
				cy := (c.SP&0xFF)+uint16(c.tmp) > 0xFF
				c.SP = uint16(res)
				c.F = boolFlag(h, flagH) | boolFlag(cy, flagC)
			},
		}, nil
	case 0xF8: // LD HL,SP+r8
		return []microp{
			func(c *CPU) { c.tmp = c.read8(c.PC); c.PC++ },
			func(c *CPU) {
				res := int32(c.SP) + int32(int8(c.tmp))
				h := (c.SP&0x0F)+uint16(c.tmp&0x0F) > 0x0F
				cy := (c.SP&0xFF)+uint16(c.tmp) > 0xFF
				c.SetHL(uint16(res))
				c.F = boolFlag(h, flagH) | boolFlag(cy, flagC)
			},
		}, nil
	case 0xF9: // LD SP,HL
		return []microp{func(c *CPU) { c.SP = c.HL() }}, nil
	case 0xF3: // DI
		c.ime = imeDisabled
		return nil, nil
	case 0xFB: // EI
		c.ime = imeWillEnable
		return nil, nil
	}

	return nil, &gberr.IllegalOpcode{Opcode: op, PC: c.PC - 1}
}

// decodeCB fetches the second opcode byte and returns the microcycle
// queue for the rotate/shift/swap, BIT, RES, and SET groups, matching
// the teacher's opg/y/reg decomposition of the CB map.
func (c *CPU) decodeCB() []microp {
	return []microp{func(c *CPU) {
		cb := c.read8(c.PC)
		c.PC++
		reg := cb & 7
		opg := (cb >> 6) & 3
		y := (cb >> 3) & 7

		if reg == 6 {
			switch opg {
			case 1: // BIT y,(HL): read only, no write-back
				c.queue = append(c.queue, func(c *CPU) {
					v := c.read8(c.HL())
					c.F = (c.F & flagC) | flagH | boolFlag((v>>y)&1 == 0, flagZ)
				})
			default:
				c.queue = append(c.queue,
					func(c *CPU) { c.tmp = c.read8(c.HL()) },
					func(c *CPU) { c.write8(c.HL(), cbApply(opg, y, c.tmp, &c.Registers)) },
				)
			}
			return
		}

		v := c.get8(reg)
		if opg == 1 {
			c.F = (c.F & flagC) | flagH | boolFlag((v>>y)&1 == 0, flagZ)
			return
		}
		c.set8(reg, cbApply(opg, y, v, &c.Registers))
	}}
}

// cbApply implements the rotate/shift/swap (opg=0), RES (opg=2), and
// SET (opg=3) groups against v, mutating flags for opg=0 only.
func cbApply(opg, y, v byte, r *Registers) byte {
	switch opg {
	case 0:
		var cy byte
		switch y {
		case 0: // RLC
			cy = (v >> 7) & 1
			v = (v << 1) | cy
		case 1: // RRC
			cy = v & 1
			v = (v >> 1) | (cy << 7)
		case 2: // RL
			cy = (v >> 7) & 1
			v = (v << 1) | boolByte(r.C())
		case 3: // RR
			cy = v & 1
			v = (v >> 1) | (boolByte(r.C()) << 7)
		case 4: // SLA
			cy = (v >> 7) & 1
			v = v << 1
		case 5: // SRA
			cy = v & 1
			v = (v >> 1) | (v & 0x80)
		case 6: // SWAP
			v = (v << 4) | (v >> 4)
		case 7: // SRL
			cy = v & 1
			v = v >> 1
		}
		z := v == 0
		if y == 6 {
			r.setZNHC(z, false, false, false)
		} else {
			r.setZNHC(z, false, false, cy == 1)
		}
		return v
	case 2:
		return v &^ (1 << y)
	default:
		return v | (1 << y)
	}
}

// pushableRR resolves the PUSH operand, special-casing AF (idx 3 in
// this 0xC5/0xD5/0xE5/0xF5 grouping maps to AF, not SP).
func (c *CPU) pushableRR(idx byte) uint16 {
	switch idx {
	case 0:
		return c.BC()
	case 1:
		return c.DE()
	case 2:
		return c.HL()
	default:
		return c.AF()
	}
}

func (c *CPU) popIntoRR(idx byte, v uint16) {
	switch idx {
	case 0:
		c.SetBC(v)
	case 1:
		c.SetDE(v)
	case 2:
		c.SetHL(v)
	default:
		c.SetAF(v)
	}
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}

func boolFlag(b bool, flag byte) byte {
	if b {
		return flag
	}
	return 0
}

// daa adjusts A after a BCD addition/subtraction, the standard
// table-driven implementation every SM83 core carries.
func (c *CPU) daa() {
	a := c.A
	if !c.N() {
		if c.C() || a > 0x99 {
			a += 0x60
			c.F |= flagC
		}
		if c.H() || a&0x0F > 0x09 {
			a += 0x06
		}
	} else {
		if c.C() {
			a -= 0x60
		}
		if c.H() {
			a -= 0x06
		}
	}
	c.A = a
	c.F &^= flagH
	if a == 0 {
		c.F |= flagZ
	} else {
		c.F &^= flagZ
	}
}
