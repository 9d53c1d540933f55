package arm

// executeARM decodes and runs a 32-bit ARM-state instruction whose
// condition field has already passed, returning the cycle cost beyond
// the instruction fetch. Costs are representative rather than
// cycle-exact: the classes below distinguish register-only, memory, and
// branch costs, not every addressing-mode permutation's exact S/N-cycle
// count.
//
// pcVal is the "PC reads ahead" value (instruction address + 8) the
// pipeline's prefetch-pair behavior implies; any operand that reads r15
// sees this value, matching real ARM behavior.
func (c *CPU) executeARM(instr uint32, pcVal uint32) uint32 {
	switch {
	case instr&0x0FFFFFF0 == 0x012FFF10: // BX
		c.execBX(instr)
		return 2

	case instr&0x0FC000F0 == 0x00000090: // MUL/MLA
		c.execMultiply(instr)
		return 2

	case instr&0x0F8000F0 == 0x00800090: // UMULL/UMLAL/SMULL/SMLAL
		c.execMultiplyLong(instr)
		return 4

	case instr&0x0FBF0FFF == 0x010F0000: // MRS
		c.execMRS(instr)
		return 1

	case instr&0x0FBFFFF0 == 0x0129F000 || instr&0x0DBFF000 == 0x0128F000: // MSR (register or immediate)
		c.execMSR(instr)
		return 1

	case instr&0x0E000090 == 0x00000090 && instr&0x00000060 != 0: // halfword/signed data transfer
		c.execHalfwordTransfer(instr, pcVal)
		return 3

	case instr&0x0C000000 == 0x00000000: // data processing
		return c.execDataProcessing(instr, pcVal)

	case instr&0x0C000000 == 0x04000000: // single data transfer (LDR/STR)
		return c.execSingleDataTransfer(instr, pcVal)

	case instr&0x0E000000 == 0x08000000: // block data transfer (LDM/STM)
		return c.execBlockDataTransfer(instr)

	case instr&0x0E000000 == 0x0A000000: // branch / branch-and-link
		c.execBranch(instr, pcVal)
		return 3

	case instr&0x0F000000 == 0x0F000000: // SWI
		c.raiseSWI()
		return 3

	case instr&0x0F000010 == 0x0E000010 && c.cp15 != nil && ((instr>>8)&0xF) == 15: // MRC/MCR, CP15 only
		c.execCoprocessorTransfer(instr)
		return 2

	default:
		c.raiseUndefined()
		return 3
	}
}

// shiftedOperand computes ARM data-processing operand2, returning the
// value and the shifter's carry-out (used when the instruction's S bit is
// set and the opcode isn't an arithmetic one that defines its own carry).
func (c *CPU) shiftedOperand(instr uint32, pcVal uint32) (val uint32, carryOut bool) {
	if instr&(1<<25) != 0 { // immediate operand2: 8-bit value rotated right by 2*rotate
		imm := instr & 0xFF
		rot := (instr >> 8) & 0xF * 2
		if rot == 0 {
			return imm, c.C()
		}
		return rotateRight(imm, rot), rotateRight(imm, rot)&0x80000000 != 0
	}

	rm := int(instr & 0xF)
	var rmVal uint32
	if rm == 15 {
		rmVal = pcVal
	} else {
		rmVal = c.GetReg(rm)
	}
	shiftType := (instr >> 5) & 0x3

	var amount uint32
	if instr&(1<<4) != 0 { // shift amount in a register
		rs := int((instr >> 8) & 0xF)
		amount = c.GetReg(rs) & 0xFF
		if amount == 0 {
			return rmVal, c.C()
		}
	} else {
		amount = (instr >> 7) & 0x1F
	}

	switch shiftType {
	case 0: // LSL
		if amount == 0 {
			return rmVal, c.C()
		}
		if amount >= 32 {
			if amount == 32 {
				return 0, rmVal&1 != 0
			}
			return 0, false
		}
		return rmVal << amount, (rmVal>>(32-amount))&1 != 0
	case 1: // LSR
		if amount == 0 {
			amount = 32
		}
		if amount >= 32 {
			return 0, rmVal&0x80000000 != 0 && amount == 32
		}
		return rmVal >> amount, (rmVal>>(amount-1))&1 != 0
	case 2: // ASR
		if amount == 0 {
			amount = 32
		}
		signed := int32(rmVal)
		if amount >= 32 {
			if signed < 0 {
				return 0xFFFFFFFF, true
			}
			return 0, false
		}
		return uint32(signed >> amount), (rmVal>>(amount-1))&1 != 0
	default: // ROR, or RRX when amount==0
		if amount == 0 {
			carryIn := uint32(0)
			if c.C() {
				carryIn = 1
			}
			return rmVal>>1 | carryIn<<31, rmVal&1 != 0
		}
		amount &= 31
		if amount == 0 {
			return rmVal, rmVal&0x80000000 != 0
		}
		return rotateRight(rmVal, amount), rotateRight(rmVal, amount)&0x80000000 != 0
	}
}

func rotateRight(v, amount uint32) uint32 {
	amount &= 31
	if amount == 0 {
		return v
	}
	return v>>amount | v<<(32-amount)
}

func (c *CPU) execDataProcessing(instr uint32, pcVal uint32) uint32 {
	opcode := (instr >> 21) & 0xF
	s := instr&(1<<20) != 0
	rn := int((instr >> 16) & 0xF)
	rd := int((instr >> 12) & 0xF)

	op2, shiftCarry := c.shiftedOperand(instr, pcVal)
	var rnVal uint32
	if rn == 15 {
		rnVal = pcVal
	} else {
		rnVal = c.GetReg(rn)
	}

	var result uint32
	var carry, overflow bool
	arithmetic := false

	switch opcode {
	case 0x0: // AND
		result = rnVal & op2
	case 0x1: // EOR
		result = rnVal ^ op2
	case 0x2: // SUB
		result, carry, overflow = subWithFlags(rnVal, op2)
		arithmetic = true
	case 0x3: // RSB
		result, carry, overflow = subWithFlags(op2, rnVal)
		arithmetic = true
	case 0x4: // ADD
		result, carry, overflow = addWithFlags(rnVal, op2)
		arithmetic = true
	case 0x5: // ADC
		cIn := uint32(0)
		if c.C() {
			cIn = 1
		}
		result, carry, overflow = addWithFlags(rnVal, op2+cIn)
		arithmetic = true
	case 0x6: // SBC
		cIn := uint32(0)
		if !c.C() {
			cIn = 1
		}
		result, carry, overflow = subWithFlags(rnVal, op2+cIn)
		arithmetic = true
	case 0x7: // RSC
		cIn := uint32(0)
		if !c.C() {
			cIn = 1
		}
		result, carry, overflow = subWithFlags(op2, rnVal+cIn)
		arithmetic = true
	case 0x8: // TST
		result = rnVal & op2
	case 0x9: // TEQ
		result = rnVal ^ op2
	case 0xA: // CMP
		result, carry, overflow = subWithFlags(rnVal, op2)
		arithmetic = true
	case 0xB: // CMN
		result, carry, overflow = addWithFlags(rnVal, op2)
		arithmetic = true
	case 0xC: // ORR
		result = rnVal | op2
	case 0xD: // MOV
		result = op2
	case 0xE: // BIC
		result = rnVal &^ op2
	default: // MVN
		result = ^op2
	}

	isTest := opcode >= 0x8 && opcode <= 0xB
	if !isTest {
		c.SetReg(rd, result)
	}

	if s {
		if rd == 15 && !isTest {
			// Data processing into PC with S set restores CPSR from SPSR,
			// the standard exception-return idiom ("MOVS PC, LR").
			c.SetCPSR(c.SPSR())
		} else {
			c.setNZ(result)
			if arithmetic {
				c.setFlag(flagC, carry)
				c.setFlag(flagV, overflow)
			} else {
				c.setFlag(flagC, shiftCarry)
			}
		}
	}
	if rd == 15 && !isTest {
		return 3 // PC write flushes the prefetch pipeline
	}
	return 1
}

func addWithFlags(a, b uint32) (result uint32, carry, overflow bool) {
	sum := uint64(a) + uint64(b)
	result = uint32(sum)
	carry = sum > 0xFFFFFFFF
	overflow = (a^result)&(b^result)&0x80000000 != 0
	return
}

func subWithFlags(a, b uint32) (result uint32, carry, overflow bool) {
	result = a - b
	carry = a >= b // ARM's SUB carry means "no borrow"
	overflow = (a^b)&(a^result)&0x80000000 != 0
	return
}

func (c *CPU) execBX(instr uint32) {
	rm := int(instr & 0xF)
	target := c.GetReg(rm)
	c.setFlag(bitT, target&1 != 0)
	c.pc = target &^ 1
}

func (c *CPU) execMultiply(instr uint32) {
	accumulate := instr&(1<<21) != 0
	s := instr&(1<<20) != 0
	rd := int((instr >> 16) & 0xF)
	rn := int((instr >> 12) & 0xF)
	rs := int((instr >> 8) & 0xF)
	rm := int(instr & 0xF)

	result := c.GetReg(rm) * c.GetReg(rs)
	if accumulate {
		result += c.GetReg(rn)
	}
	c.SetReg(rd, result)
	if s {
		c.setNZ(result)
	}
}

func (c *CPU) execMultiplyLong(instr uint32) {
	signed := instr&(1<<22) != 0
	accumulate := instr&(1<<21) != 0
	s := instr&(1<<20) != 0
	rdHi := int((instr >> 16) & 0xF)
	rdLo := int((instr >> 12) & 0xF)
	rs := int((instr >> 8) & 0xF)
	rm := int(instr & 0xF)

	var result uint64
	if signed {
		result = uint64(int64(int32(c.GetReg(rm))) * int64(int32(c.GetReg(rs))))
	} else {
		result = uint64(c.GetReg(rm)) * uint64(c.GetReg(rs))
	}
	if accumulate {
		result += uint64(c.GetReg(rdHi))<<32 | uint64(c.GetReg(rdLo))
	}
	c.SetReg(rdLo, uint32(result))
	c.SetReg(rdHi, uint32(result>>32))
	if s {
		c.setFlag(flagZ, result == 0)
		c.setFlag(flagN, result&0x8000000000000000 != 0)
	}
}

func (c *CPU) execMRS(instr uint32) {
	rd := int((instr >> 12) & 0xF)
	usesSPSR := instr&(1<<22) != 0
	if usesSPSR {
		c.SetReg(rd, c.SPSR())
	} else {
		c.SetReg(rd, c.CPSR())
	}
}

func (c *CPU) execMSR(instr uint32) {
	usesSPSR := instr&(1<<22) != 0
	fieldMask := (instr >> 16) & 0xF

	var val uint32
	if instr&(1<<25) != 0 { // immediate
		imm := instr & 0xFF
		rot := (instr >> 8) & 0xF * 2
		val = rotateRight(imm, rot)
	} else {
		val = c.GetReg(int(instr & 0xF))
	}

	var mask uint32
	if fieldMask&0x1 != 0 {
		mask |= 0x000000FF // control field
	}
	if fieldMask&0x8 != 0 {
		mask |= 0xFF000000 // flags field
	}

	if usesSPSR {
		c.SetSPSR(c.SPSR()&^mask | val&mask)
	} else {
		c.SetCPSR(c.CPSR()&^mask | val&mask)
	}
}

func (c *CPU) execHalfwordTransfer(instr uint32, pcVal uint32) {
	pre := instr&(1<<24) != 0
	up := instr&(1<<23) != 0
	immFlag := instr&(1<<22) != 0
	writeback := instr&(1<<21) != 0
	load := instr&(1<<20) != 0
	rn := int((instr >> 16) & 0xF)
	rd := int((instr >> 12) & 0xF)
	sh := (instr >> 5) & 0x3

	var offset uint32
	if immFlag {
		offset = (instr>>4)&0xF0 | instr&0xF
	} else {
		offset = c.GetReg(int(instr & 0xF))
	}

	var base uint32
	if rn == 15 {
		base = pcVal
	} else {
		base = c.GetReg(rn)
	}
	addr := base
	if pre {
		if up {
			addr = base + offset
		} else {
			addr = base - offset
		}
	}

	if load {
		switch sh {
		case 1: // unsigned halfword
			v, _ := c.bus.Read16(addr)
			c.SetReg(rd, uint32(v))
		case 2: // signed byte
			v, _ := c.bus.Read8(addr)
			c.SetReg(rd, uint32(int32(int8(v))))
		default: // signed halfword
			v, _ := c.bus.Read16(addr)
			c.SetReg(rd, uint32(int32(int16(v))))
		}
	} else {
		c.bus.Write16(addr, uint16(c.GetReg(rd)))
	}

	if !pre {
		if up {
			addr = base + offset
		} else {
			addr = base - offset
		}
		c.SetReg(rn, addr)
	} else if writeback {
		c.SetReg(rn, addr)
	}
}

func (c *CPU) execSingleDataTransfer(instr uint32, pcVal uint32) uint32 {
	immOffset := instr&(1<<25) == 0
	pre := instr&(1<<24) != 0
	up := instr&(1<<23) != 0
	byteTransfer := instr&(1<<22) != 0
	writeback := instr&(1<<21) != 0
	load := instr&(1<<20) != 0
	rn := int((instr >> 16) & 0xF)
	rd := int((instr >> 12) & 0xF)

	var offset uint32
	if immOffset {
		offset = instr & 0xFFF
	} else {
		offset, _ = c.shiftedOperand(instr&^uint32(1<<25), pcVal)
	}

	var base uint32
	if rn == 15 {
		base = pcVal
	} else {
		base = c.GetReg(rn)
	}
	addr := base
	if pre {
		if up {
			addr = base + offset
		} else {
			addr = base - offset
		}
	}

	var cost uint32 = 1
	if load {
		if byteTransfer {
			v, rc := c.bus.Read8(addr)
			c.SetReg(rd, uint32(v))
			cost += rc
		} else {
			v, rc := c.bus.Read32(addr)
			c.SetReg(rd, v)
			cost += rc
		}
		if rd == 15 {
			cost += 2
		}
	} else {
		rdVal := c.GetReg(rd)
		if rd == 15 {
			rdVal = pcVal
		}
		var wc uint32
		if byteTransfer {
			wc = c.bus.Write8(addr, uint8(rdVal))
		} else {
			wc = c.bus.Write32(addr, rdVal)
		}
		cost += wc
	}

	if !pre {
		if up {
			addr = base + offset
		} else {
			addr = base - offset
		}
		if rn != 15 {
			c.SetReg(rn, addr)
		}
	} else if writeback && rn != 15 {
		c.SetReg(rn, addr)
	}
	return cost
}

func (c *CPU) execBlockDataTransfer(instr uint32) uint32 {
	pre := instr&(1<<24) != 0
	up := instr&(1<<23) != 0
	writeback := instr&(1<<21) != 0
	load := instr&(1<<20) != 0
	rn := int((instr >> 16) & 0xF)
	list := instr & 0xFFFF

	base := c.GetReg(rn)
	count := 0
	for i := 0; i < 16; i++ {
		if list&(1<<i) != 0 {
			count++
		}
	}

	addr := base
	if !up {
		addr -= uint32(count) * 4
		if pre {
			addr += 4
		}
	} else if pre {
		addr += 4
	}

	var cost uint32 = 1
	for i := 0; i < 16; i++ {
		if list&(1<<i) == 0 {
			continue
		}
		if load {
			v, rc := c.bus.Read32(addr)
			c.SetReg(i, v)
			cost += rc
		} else {
			wc := c.bus.Write32(addr, c.GetReg(i))
			cost += wc
		}
		addr += 4
	}

	if writeback {
		if up {
			c.SetReg(rn, base+uint32(count)*4)
		} else {
			c.SetReg(rn, base-uint32(count)*4)
		}
	}
	return cost
}

func (c *CPU) execBranch(instr uint32, pcVal uint32) {
	link := instr&(1<<24) != 0
	offset := instr & 0xFFFFFF
	if offset&0x800000 != 0 {
		offset |= 0xFF000000 // sign-extend 24-bit to 32-bit
	}
	target := pcVal + offset<<2
	if link {
		c.SetReg(14, c.pc) // c.pc already holds the address of the instruction after this one
	}
	c.pc = target
}

func (c *CPU) execCoprocessorTransfer(instr uint32) {
	load := instr&(1<<20) != 0
	crn := (instr >> 16) & 0xF
	rd := int((instr >> 12) & 0xF)
	crm := instr & 0xF
	opc2 := (instr >> 5) & 0x7

	if load {
		c.SetReg(rd, c.cp15.MRC(crn, crm, opc2))
	} else {
		c.cp15.MCR(crn, crm, opc2, c.GetReg(rd))
	}
}
