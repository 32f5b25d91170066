package cpu

var cbOpcodeTable [256]opcodeFunc

func init() {
	type shiftOp func(c *CPU, v uint8) uint8
	shiftOps := [8]shiftOp{
		func(c *CPU, v uint8) uint8 { return c.rlc(v, true) },
		func(c *CPU, v uint8) uint8 { return c.rrc(v, true) },
		func(c *CPU, v uint8) uint8 { return c.rl(v, true) },
		func(c *CPU, v uint8) uint8 { return c.rr(v, true) },
		func(c *CPU, v uint8) uint8 { return c.sla(v) },
		func(c *CPU, v uint8) uint8 { return c.sra(v) },
		func(c *CPU, v uint8) uint8 { return c.swap(v) },
		func(c *CPU, v uint8) uint8 { return c.srl(v) },
	}

	// 0x00-0x3F: RLC/RRC/RL/RR/SLA/SRA/SWAP/SRL r8
	for opIdx := uint8(0); opIdx < 8; opIdx++ {
		for reg := uint8(0); reg < 8; reg++ {
			op := opIdx*8 + reg
			fn := shiftOps[opIdx]
			r := reg
			cycles := 8
			if r == 6 {
				cycles = 16
			}
			cbOpcodeTable[op] = func(c *CPU) int { c.setR8(r, fn(c, c.r8(r))); return cycles }
		}
	}

	// 0x40-0x7F: BIT b,r8 (no write-back, so (HL) costs less than RES/SET)
	for bitIdx := uint8(0); bitIdx < 8; bitIdx++ {
		for reg := uint8(0); reg < 8; reg++ {
			op := 0x40 + bitIdx*8 + reg
			b := bitIdx
			r := reg
			cycles := 8
			if r == 6 {
				cycles = 12
			}
			cbOpcodeTable[op] = func(c *CPU) int { c.bit(b, c.r8(r)); return cycles }
		}
	}

	// 0x80-0xBF: RES b,r8
	for bitIdx := uint8(0); bitIdx < 8; bitIdx++ {
		for reg := uint8(0); reg < 8; reg++ {
			op := 0x80 + bitIdx*8 + reg
			b := bitIdx
			r := reg
			cycles := 8
			if r == 6 {
				cycles = 16
			}
			cbOpcodeTable[op] = func(c *CPU) int { c.setR8(r, res(b, c.r8(r))); return cycles }
		}
	}

	// 0xC0-0xFF: SET b,r8
	for bitIdx := uint8(0); bitIdx < 8; bitIdx++ {
		for reg := uint8(0); reg < 8; reg++ {
			op := 0xC0 + bitIdx*8 + reg
			b := bitIdx
			r := reg
			cycles := 8
			if r == 6 {
				cycles = 16
			}
			cbOpcodeTable[op] = func(c *CPU) int { c.setR8(r, set(b, c.r8(r))); return cycles }
		}
	}
}
