package arm

import "github.com/intuitionamiga/ndscore/internal/irqctl"

// Bus is the memory-access capability set the interpreter requires: each
// access returns the cycle cost the region imposes, so the interpreter's
// Run loop can charge accurate costs without the bus needing to know
// anything about CPU state.
type Bus interface {
	Read8(addr uint32) (val uint8, cycles uint32)
	Read16(addr uint32) (val uint16, cycles uint32)
	Read32(addr uint32) (val uint32, cycles uint32)
	Write8(addr uint32, val uint8) (cycles uint32)
	Write16(addr uint32, val uint16) (cycles uint32)
	Write32(addr uint32, val uint32) (cycles uint32)
}

// Exception vector offsets, relative to the vector table base (0x00000000
// for both cores in the DS's normal boot configuration).
const (
	vecReset          = 0x00
	vecUndefined      = 0x04
	vecSWI            = 0x08
	vecPrefetchAbort  = 0x0C
	vecDataAbort      = 0x10
	vecIRQ            = 0x18
	vecFIQ            = 0x1C
)

// CPU is one ARM core - either the ARM9 (with cp15 set) or the ARM7 (cp15
// nil). Both share the same interpreter; the only behavioral differences
// are cp15's presence and the bus each is wired to, since the ARM9 and
// ARM7 see different memory maps.
type CPU struct {
	registerFile

	bus  Bus
	irq  *irqctl.Controller
	cp15 *CP15 // nil for ARM7

	cycleDebt int64
	halted    bool
}

// New constructs a core. Pass cp15 non-nil only for the ARM9.
func New(bus Bus, irq *irqctl.Controller, cp15 *CP15) *CPU {
	c := &CPU{bus: bus, irq: irq, cp15: cp15}
	c.Reset()
	return c
}

// Reset puts the core into its post-BIOS-handoff state: supervisor mode,
// IRQ/FIQ disabled, ARM state, PC at the vector table's reset entry. The
// host overrides PC and mode immediately afterward for direct boot, when
// the BIOS handoff itself is skipped.
func (c *CPU) Reset() {
	c.registerFile = registerFile{cpsr: uint32(ModeSVC) | 1<<bitI | 1<<bitF}
	c.pc = vecReset
	c.cycleDebt = 0
	c.halted = false
}

// Halt and Halted implement the WFI-style halt state: the core stops
// fetching until WakesHalt() reports a pending interrupt line.
func (c *CPU) Halt()         { c.halted = true }
func (c *CPU) Halted() bool  { return c.halted }

// SetDirectBootState installs the ARM9/ARM7 entry PC and a System-mode,
// ARM-state CPSR with interrupts enabled, matching the direct-boot path
// (skip BIOS, jump straight to the cartridge's declared entry point).
func (c *CPU) SetDirectBootState(entry uint32) {
	c.cpsr = uint32(ModeSystem)
	c.pc = entry
	c.halted = false
}

// PC returns the raw next-fetch address (r15's banked value), primarily
// for tests and the debug monitor; it is not the "PC reads ahead" value
// guest code observing r15 mid-instruction would see.
func (c *CPU) PC() uint32 { return c.pc }

// AddCycles grants the core additional cycle budget for this Run call.
func (c *CPU) AddCycles(n int64) { c.cycleDebt += n }

// Run dispatches instructions until the cycle debt is <= 0 or the core
// halts. A halted core still checks for a waking interrupt every call so
// the scheduler's slice-by-slice loop can keep calling Run without
// special-casing halt externally.
func (c *CPU) Run() {
	for c.cycleDebt > 0 {
		if c.halted {
			if c.irq.WakesHalt() {
				c.halted = false
			} else {
				return
			}
		}
		if !c.IRQDisabled() && c.irq.Pending() {
			c.enterException(ModeIRQ, vecIRQ, 4, true, false)
			continue
		}
		c.step()
	}
}

func (c *CPU) step() {
	instrSize := uint32(4)
	if c.Thumb() {
		instrSize = 2
	}
	instrAddr := c.pc
	c.pc = instrAddr + instrSize // default sequential advance; a taken branch overwrites this

	pcVal := instrAddr + 2*instrSize // real ARM cores read r15 as two instructions ahead of the one executing
	var cost uint32
	if c.Thumb() {
		raw, fetchCost := c.bus.Read16(instrAddr)
		cost = fetchCost + c.executeThumb(raw, pcVal)
	} else {
		raw, fetchCost := c.bus.Read32(instrAddr)
		cost = fetchCost
		if condPasses(raw>>28, c.cpsr) {
			cost += c.executeARM(raw, pcVal)
		} else {
			cost += 1
		}
	}
	c.cycleDebt -= int64(cost)
}

// enterException saves CPSR to the target mode's SPSR, switches mode,
// stores the adjusted return address in that mode's LR, and redirects
// fetch to the vector. At call time c.pc already holds the address of the
// instruction after the one that trapped (step() advances it before
// executing); lrDelta is the additional offset the architecture defines
// for this exception class on top of that, so the guest handler's
// standard "SUBS PC, LR, #n" return idiom lands back in the right place;
// the per-exception LR deltas are standard ARM architecture behavior guest
// exception handlers depend on.
func (c *CPU) enterException(mode Mode, vector uint32, lrDelta int32, disableIRQ, disableFIQ bool) {
	savedCPSR := c.cpsr
	returnPC := c.pc

	c.cpsr = c.cpsr&^0x1F | uint32(mode)
	c.setFlag(bitT, false)
	if disableIRQ {
		c.setFlag(bitI, true)
	}
	if disableFIQ {
		c.setFlag(bitF, true)
	}
	c.SetSPSR(savedCPSR)
	c.SetReg(14, uint32(int64(returnPC)+int64(lrDelta)))
	c.pc = vector
	c.halted = false
}

func (c *CPU) raiseUndefined()     { c.enterException(ModeUndef, vecUndefined, 0, true, false) }
func (c *CPU) raiseSWI()           { c.enterException(ModeSVC, vecSWI, 0, true, false) }
func (c *CPU) raisePrefetchAbort() { c.enterException(ModeAbort, vecPrefetchAbort, 0, true, false) }
func (c *CPU) raiseDataAbort()     { c.enterException(ModeAbort, vecDataAbort, 4, true, false) }

// condPasses evaluates a 4-bit ARM condition field against CPSR's NZCV
// flags, the standard condition table every ARM instruction's top nibble
// selects from.
func condPasses(cond uint32, cpsr uint32) bool {
	n := cpsr&(1<<flagN) != 0
	z := cpsr&(1<<flagZ) != 0
	cf := cpsr&(1<<flagC) != 0
	v := cpsr&(1<<flagV) != 0
	switch cond {
	case 0x0:
		return z
	case 0x1:
		return !z
	case 0x2:
		return cf
	case 0x3:
		return !cf
	case 0x4:
		return n
	case 0x5:
		return !n
	case 0x6:
		return v
	case 0x7:
		return !v
	case 0x8:
		return cf && !z
	case 0x9:
		return !cf || z
	case 0xA:
		return n == v
	case 0xB:
		return n != v
	case 0xC:
		return !z && n == v
	case 0xD:
		return z || n != v
	case 0xE:
		return true
	default: // 0xF reserved/NV - treated as never per modern practice
		return false
	}
}
