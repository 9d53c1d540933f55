package arm

// executeThumb decodes and runs a 16-bit Thumb-state instruction. pcVal is
// the Thumb "PC reads ahead" value (instruction address + 4).
//
// Thumb has no condition field of its own (other than the conditional
// branch format); every Thumb instruction always executes once reached.
func (c *CPU) executeThumb(raw uint16, pcVal uint32) uint32 {
	instr := uint32(raw)

	switch {
	case instr&0xF800 == 0x1800: // add/subtract (format 2)
		return c.thumbAddSub(instr)

	case instr&0xE000 == 0x0000: // move shifted register (format 1)
		return c.thumbShift(instr)

	case instr&0xE000 == 0x2000: // move/compare/add/subtract immediate (format 3)
		return c.thumbImmediateALU(instr)

	case instr&0xFC00 == 0x4000: // ALU operations (format 4)
		return c.thumbALU(instr)

	case instr&0xFC00 == 0x4400: // hi register ops / branch exchange (format 5)
		return c.thumbHiRegOps(instr)

	case instr&0xF800 == 0x4800: // PC-relative load (format 6)
		c.thumbPCRelativeLoad(instr, pcVal)
		return 3

	case instr&0xF200 == 0x5000: // load/store with register offset (format 7)
		return c.thumbLoadStoreRegOffset(instr)

	case instr&0xF200 == 0x5200: // load/store sign-extended byte/halfword (format 8)
		return c.thumbLoadStoreSignExtended(instr)

	case instr&0xE000 == 0x6000: // load/store with immediate offset (format 9)
		return c.thumbLoadStoreImmOffset(instr)

	case instr&0xF000 == 0x8000: // load/store halfword (format 10)
		return c.thumbLoadStoreHalfword(instr)

	case instr&0xF000 == 0x9000: // SP-relative load/store (format 11)
		return c.thumbSPRelativeLoadStore(instr)

	case instr&0xF000 == 0xA000: // load address (format 12)
		c.thumbLoadAddress(instr, pcVal)
		return 1

	case instr&0xFF00 == 0xB000: // add offset to SP (format 13)
		c.thumbAddOffsetToSP(instr)
		return 1

	case instr&0xF600 == 0xB400: // push/pop registers (format 14)
		return c.thumbPushPop(instr)

	case instr&0xF000 == 0xC000: // multiple load/store (format 15)
		return c.thumbMultipleLoadStore(instr)

	case instr&0xFF00 == 0xDF00: // SWI (format 17)
		c.raiseSWI()
		return 3

	case instr&0xF000 == 0xD000: // conditional branch (format 16)
		return c.thumbConditionalBranch(instr, pcVal)

	case instr&0xF800 == 0xE000: // unconditional branch (format 18)
		c.thumbUnconditionalBranch(instr, pcVal)
		return 3

	case instr&0xF000 == 0xF000: // long branch with link (format 19)
		return c.thumbLongBranchLink(instr, pcVal)

	default:
		c.raiseUndefined()
		return 3
	}
}

func (c *CPU) thumbShift(instr uint32) uint32 {
	op := (instr >> 11) & 0x3
	offset := (instr >> 6) & 0x1F
	rs := int((instr >> 3) & 0x7)
	rd := int(instr & 0x7)
	val := c.GetReg(rs)

	var result uint32
	var carry bool
	switch op {
	case 0: // LSL
		if offset == 0 {
			result, carry = val, c.C()
		} else {
			result = val << offset
			carry = (val>>(32-offset))&1 != 0
		}
	case 1: // LSR
		amt := offset
		if amt == 0 {
			amt = 32
		}
		result = shiftRight(val, amt)
		carry = shiftRightCarry(val, amt)
	default: // ASR
		amt := offset
		if amt == 0 {
			amt = 32
		}
		result = uint32(int32(val) >> minU(amt, 31))
		if amt >= 32 && int32(val) < 0 {
			result = 0xFFFFFFFF
		}
		carry = (int32(val)>>(minU(amt, 32)-1))&1 != 0
	}
	c.SetReg(rd, result)
	c.setNZ(result)
	c.setFlag(flagC, carry)
	return 1
}

func shiftRight(v, amt uint32) uint32 {
	if amt >= 32 {
		return 0
	}
	return v >> amt
}
func shiftRightCarry(v, amt uint32) bool {
	if amt > 32 || amt == 0 {
		return false
	}
	return (v>>(amt-1))&1 != 0
}
func minU(a, b uint32) uint32 {
	if a < b {
		return a
	}
	return b
}

func (c *CPU) thumbAddSub(instr uint32) uint32 {
	immFlag := instr&(1<<10) != 0
	sub := instr&(1<<9) != 0
	rnOrImm := (instr >> 6) & 0x7
	rs := int((instr >> 3) & 0x7)
	rd := int(instr & 0x7)

	var operand uint32
	if immFlag {
		operand = rnOrImm
	} else {
		operand = c.GetReg(int(rnOrImm))
	}
	rsVal := c.GetReg(rs)

	var result uint32
	var carry, overflow bool
	if sub {
		result, carry, overflow = subWithFlags(rsVal, operand)
	} else {
		result, carry, overflow = addWithFlags(rsVal, operand)
	}
	c.SetReg(rd, result)
	c.setNZ(result)
	c.setFlag(flagC, carry)
	c.setFlag(flagV, overflow)
	return 1
}

func (c *CPU) thumbImmediateALU(instr uint32) uint32 {
	op := (instr >> 11) & 0x3
	rd := int((instr >> 8) & 0x7)
	imm := instr & 0xFF
	rdVal := c.GetReg(rd)

	switch op {
	case 0: // MOV
		c.SetReg(rd, imm)
		c.setNZ(imm)
	case 1: // CMP
		result, carry, overflow := subWithFlags(rdVal, imm)
		c.setNZ(result)
		c.setFlag(flagC, carry)
		c.setFlag(flagV, overflow)
	case 2: // ADD
		result, carry, overflow := addWithFlags(rdVal, imm)
		c.SetReg(rd, result)
		c.setNZ(result)
		c.setFlag(flagC, carry)
		c.setFlag(flagV, overflow)
	default: // SUB
		result, carry, overflow := subWithFlags(rdVal, imm)
		c.SetReg(rd, result)
		c.setNZ(result)
		c.setFlag(flagC, carry)
		c.setFlag(flagV, overflow)
	}
	return 1
}

func (c *CPU) thumbALU(instr uint32) uint32 {
	op := (instr >> 6) & 0xF
	rs := int((instr >> 3) & 0x7)
	rd := int(instr & 0x7)
	rdVal := c.GetReg(rd)
	rsVal := c.GetReg(rs)

	var result uint32
	store := true
	switch op {
	case 0x0: // AND
		result = rdVal & rsVal
	case 0x1: // EOR
		result = rdVal ^ rsVal
	case 0x2: // LSL
		amt := rsVal & 0xFF
		result = shiftLSLReg(rdVal, amt, c)
	case 0x3: // LSR
		amt := rsVal & 0xFF
		result = shiftLSRReg(rdVal, amt, c)
	case 0x4: // ASR
		amt := rsVal & 0xFF
		result = shiftASRReg(rdVal, amt, c)
	case 0x5: // ADC
		cIn := uint32(0)
		if c.C() {
			cIn = 1
		}
		var carry, overflow bool
		result, carry, overflow = addWithFlags(rdVal, rsVal+cIn)
		c.setFlag(flagC, carry)
		c.setFlag(flagV, overflow)
	case 0x6: // SBC
		cIn := uint32(0)
		if !c.C() {
			cIn = 1
		}
		var carry, overflow bool
		result, carry, overflow = subWithFlags(rdVal, rsVal+cIn)
		c.setFlag(flagC, carry)
		c.setFlag(flagV, overflow)
	case 0x7: // ROR
		amt := rsVal & 0xFF
		if amt == 0 {
			result = rdVal
		} else {
			result = rotateRight(rdVal, amt&31)
			c.setFlag(flagC, result&0x80000000 != 0)
		}
	case 0x8: // TST
		result = rdVal & rsVal
		store = false
	case 0x9: // NEG
		var carry, overflow bool
		result, carry, overflow = subWithFlags(0, rsVal)
		c.setFlag(flagC, carry)
		c.setFlag(flagV, overflow)
	case 0xA: // CMP
		var carry, overflow bool
		result, carry, overflow = subWithFlags(rdVal, rsVal)
		c.setFlag(flagC, carry)
		c.setFlag(flagV, overflow)
		store = false
	case 0xB: // CMN
		var carry, overflow bool
		result, carry, overflow = addWithFlags(rdVal, rsVal)
		c.setFlag(flagC, carry)
		c.setFlag(flagV, overflow)
		store = false
	case 0xC: // ORR
		result = rdVal | rsVal
	case 0xD: // MUL
		result = rdVal * rsVal
	case 0xE: // BIC
		result = rdVal &^ rsVal
	default: // MVN
		result = ^rsVal
	}

	if store {
		c.SetReg(rd, result)
	}
	c.setNZ(result)
	return 1
}

func shiftLSLReg(v, amt uint32, c *CPU) uint32 {
	if amt == 0 {
		return v
	}
	if amt >= 32 {
		if amt == 32 {
			c.setFlag(flagC, v&1 != 0)
		} else {
			c.setFlag(flagC, false)
		}
		return 0
	}
	c.setFlag(flagC, (v>>(32-amt))&1 != 0)
	return v << amt
}

func shiftLSRReg(v, amt uint32, c *CPU) uint32 {
	if amt == 0 {
		return v
	}
	if amt >= 32 {
		if amt == 32 {
			c.setFlag(flagC, v&0x80000000 != 0)
		} else {
			c.setFlag(flagC, false)
		}
		return 0
	}
	c.setFlag(flagC, (v>>(amt-1))&1 != 0)
	return v >> amt
}

func shiftASRReg(v, amt uint32, c *CPU) uint32 {
	if amt == 0 {
		return v
	}
	signed := int32(v)
	if amt >= 32 {
		if signed < 0 {
			c.setFlag(flagC, true)
			return 0xFFFFFFFF
		}
		c.setFlag(flagC, false)
		return 0
	}
	c.setFlag(flagC, (v>>(amt-1))&1 != 0)
	return uint32(signed >> amt)
}

func (c *CPU) thumbHiRegOps(instr uint32) uint32 {
	op := (instr >> 8) & 0x3
	h1 := instr&(1<<7) != 0
	h2 := instr&(1<<6) != 0
	rs := int((instr>>3)&0x7) + boolToInt(h2)*8
	rd := int(instr&0x7) + boolToInt(h1)*8

	rsVal := c.GetReg(rs)

	switch op {
	case 0: // ADD
		c.SetReg(rd, c.GetReg(rd)+rsVal)
		if rd == 15 {
			return 3
		}
	case 1: // CMP
		result, carry, overflow := subWithFlags(c.GetReg(rd), rsVal)
		c.setNZ(result)
		c.setFlag(flagC, carry)
		c.setFlag(flagV, overflow)
	case 2: // MOV
		c.SetReg(rd, rsVal)
		if rd == 15 {
			return 3
		}
	default: // BX
		c.setFlag(bitT, rsVal&1 != 0)
		c.pc = rsVal &^ 1
		return 3
	}
	return 1
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func (c *CPU) thumbPCRelativeLoad(instr uint32, pcVal uint32) {
	rd := int((instr >> 8) & 0x7)
	word := instr & 0xFF
	addr := (pcVal &^ 3) + word<<2
	v, _ := c.bus.Read32(addr)
	c.SetReg(rd, v)
}

func (c *CPU) thumbLoadStoreRegOffset(instr uint32) uint32 {
	load := instr&(1<<11) != 0
	byteTransfer := instr&(1<<10) != 0
	ro := int((instr >> 6) & 0x7)
	rb := int((instr >> 3) & 0x7)
	rd := int(instr & 0x7)
	addr := c.GetReg(rb) + c.GetReg(ro)

	if load {
		if byteTransfer {
			v, _ := c.bus.Read8(addr)
			c.SetReg(rd, uint32(v))
		} else {
			v, _ := c.bus.Read32(addr)
			c.SetReg(rd, v)
		}
	} else {
		if byteTransfer {
			c.bus.Write8(addr, uint8(c.GetReg(rd)))
		} else {
			c.bus.Write32(addr, c.GetReg(rd))
		}
	}
	return 2
}

func (c *CPU) thumbLoadStoreSignExtended(instr uint32) uint32 {
	hFlag := instr&(1<<11) != 0
	sFlag := instr&(1<<10) != 0
	ro := int((instr >> 6) & 0x7)
	rb := int((instr >> 3) & 0x7)
	rd := int(instr & 0x7)
	addr := c.GetReg(rb) + c.GetReg(ro)

	switch {
	case !sFlag && !hFlag: // STRH
		c.bus.Write16(addr, uint16(c.GetReg(rd)))
	case !sFlag && hFlag: // LDRH
		v, _ := c.bus.Read16(addr)
		c.SetReg(rd, uint32(v))
	case sFlag && !hFlag: // LDSB
		v, _ := c.bus.Read8(addr)
		c.SetReg(rd, uint32(int32(int8(v))))
	default: // LDSH
		v, _ := c.bus.Read16(addr)
		c.SetReg(rd, uint32(int32(int16(v))))
	}
	return 2
}

func (c *CPU) thumbLoadStoreImmOffset(instr uint32) uint32 {
	byteTransfer := instr&(1<<12) != 0
	load := instr&(1<<11) != 0
	offset := (instr >> 6) & 0x1F
	rb := int((instr >> 3) & 0x7)
	rd := int(instr & 0x7)

	var addr uint32
	if byteTransfer {
		addr = c.GetReg(rb) + offset
	} else {
		addr = c.GetReg(rb) + offset<<2
	}

	if load {
		if byteTransfer {
			v, _ := c.bus.Read8(addr)
			c.SetReg(rd, uint32(v))
		} else {
			v, _ := c.bus.Read32(addr)
			c.SetReg(rd, v)
		}
	} else {
		if byteTransfer {
			c.bus.Write8(addr, uint8(c.GetReg(rd)))
		} else {
			c.bus.Write32(addr, c.GetReg(rd))
		}
	}
	return 2
}

func (c *CPU) thumbLoadStoreHalfword(instr uint32) uint32 {
	load := instr&(1<<11) != 0
	offset := (instr >> 6) & 0x1F
	rb := int((instr >> 3) & 0x7)
	rd := int(instr & 0x7)
	addr := c.GetReg(rb) + offset<<1

	if load {
		v, _ := c.bus.Read16(addr)
		c.SetReg(rd, uint32(v))
	} else {
		c.bus.Write16(addr, uint16(c.GetReg(rd)))
	}
	return 2
}

func (c *CPU) thumbSPRelativeLoadStore(instr uint32) uint32 {
	load := instr&(1<<11) != 0
	rd := int((instr >> 8) & 0x7)
	word := instr & 0xFF
	addr := c.GetReg(13) + word<<2

	if load {
		v, _ := c.bus.Read32(addr)
		c.SetReg(rd, v)
	} else {
		c.bus.Write32(addr, c.GetReg(rd))
	}
	return 2
}

func (c *CPU) thumbLoadAddress(instr uint32, pcVal uint32) {
	spSource := instr&(1<<11) != 0
	rd := int((instr >> 8) & 0x7)
	word := instr & 0xFF

	var base uint32
	if spSource {
		base = c.GetReg(13)
	} else {
		base = pcVal &^ 3
	}
	c.SetReg(rd, base+word<<2)
}

func (c *CPU) thumbAddOffsetToSP(instr uint32) {
	negative := instr&(1<<7) != 0
	word := (instr & 0x7F) << 2
	if negative {
		c.SetReg(13, c.GetReg(13)-word)
	} else {
		c.SetReg(13, c.GetReg(13)+word)
	}
}

func (c *CPU) thumbPushPop(instr uint32) uint32 {
	load := instr&(1<<11) != 0
	includeExtra := instr&(1<<8) != 0 // LR on push, PC on pop
	list := instr & 0xFF

	sp := c.GetReg(13)
	var cost uint32 = 1
	if load {
		for i := 0; i < 8; i++ {
			if list&(1<<i) != 0 {
				v, rc := c.bus.Read32(sp)
				c.SetReg(i, v)
				sp += 4
				cost += rc
			}
		}
		if includeExtra {
			v, rc := c.bus.Read32(sp)
			c.pc = v &^ 1
			sp += 4
			cost += rc + 2
		}
	} else {
		if includeExtra {
			sp -= 4
			cost += c.bus.Write32(sp, c.GetReg(14))
		}
		for i := 7; i >= 0; i-- {
			if list&(1<<i) != 0 {
				sp -= 4
				cost += c.bus.Write32(sp, c.GetReg(i))
			}
		}
	}
	c.SetReg(13, sp)
	return cost
}

func (c *CPU) thumbMultipleLoadStore(instr uint32) uint32 {
	load := instr&(1<<11) != 0
	rb := int((instr >> 8) & 0x7)
	list := instr & 0xFF

	addr := c.GetReg(rb)
	var cost uint32 = 1
	for i := 0; i < 8; i++ {
		if list&(1<<i) == 0 {
			continue
		}
		if load {
			v, rc := c.bus.Read32(addr)
			c.SetReg(i, v)
			cost += rc
		} else {
			cost += c.bus.Write32(addr, c.GetReg(i))
		}
		addr += 4
	}
	c.SetReg(rb, addr)
	return cost
}

func (c *CPU) thumbConditionalBranch(instr uint32, pcVal uint32) uint32 {
	cond := (instr >> 8) & 0xF
	offset := instr & 0xFF
	if !condPasses(cond, c.cpsr) {
		return 1
	}
	if offset&0x80 != 0 {
		offset |= 0xFFFFFF00
	}
	c.pc = pcVal + offset<<1
	return 3
}

func (c *CPU) thumbUnconditionalBranch(instr uint32, pcVal uint32) {
	offset := instr & 0x7FF
	if offset&0x400 != 0 {
		offset |= 0xFFFFF800
	}
	c.pc = pcVal + offset<<1
}

func (c *CPU) thumbLongBranchLink(instr uint32, pcVal uint32) uint32 {
	high := instr&(1<<11) == 0
	offset := instr & 0x7FF

	if high {
		if offset&0x400 != 0 {
			offset |= 0xFFFFF800
		}
		c.SetReg(14, pcVal+offset<<12)
		return 1
	}
	target := c.GetReg(14) + offset<<1
	c.SetReg(14, c.pc|1) // c.pc already holds the next instruction's address; mark Thumb for BL's return convention
	c.pc = target
	return 3
}
