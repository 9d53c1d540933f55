// Package arm implements the ARM9 and ARM7 interpreters: banked register
// files, CPSR/SPSR, a prefetch-pipeline PC model, cycle-debt-driven Run,
// and ARM/Thumb instruction decode.
//
// Grounded on _examples/IntuitionAmiga-IntuitionEngine/cpu_ie32.go's
// interpreter shape - a cycle-debt Run loop that fetches, decodes, and
// dispatches by opcode, updating PC unless the instruction already did -
// generalized from that CPU's flat 16-register file to ARM's banked-
// register-per-mode model: 16 general registers with banked copies per
// privileged mode, plus CPSR and a per-mode SPSR.
package arm

// Mode is the processor mode encoded in CPSR bits 4:0.
type Mode uint32

const (
	ModeUser   Mode = 0x10
	ModeFIQ    Mode = 0x11
	ModeIRQ    Mode = 0x12
	ModeSVC    Mode = 0x13
	ModeAbort  Mode = 0x17
	ModeUndef  Mode = 0x1B
	ModeSystem Mode = 0x1F
)

// CPSR bit positions.
const (
	flagN = 31
	flagZ = 30
	flagC = 29
	flagV = 28
	bitI  = 7 // IRQ disable
	bitF  = 6 // FIQ disable
	bitT  = 5 // Thumb state
)

// bankIndex maps a mode to its banked-register-set slot: user/system share
// one slot (they have no private r13/r14/SPSR), the five exception modes
// each get their own.
func bankIndex(m Mode) int {
	switch m {
	case ModeFIQ:
		return 1
	case ModeIRQ:
		return 2
	case ModeSVC:
		return 3
	case ModeAbort:
		return 4
	case ModeUndef:
		return 5
	default: // User, System
		return 0
	}
}

// registerFile holds every physical register ARM mode-banking can expose:
// r0-r7 unbanked, r8-r12 banked only for FIQ, r13/r14 banked per mode, r15
// (PC) unbanked, CPSR unbanked, SPSR banked per exception mode.
type registerFile struct {
	r        [8]uint32    // r0-r7
	r8_12    [5]uint32    // r8-r12, non-FIQ modes
	r8_12FIQ [5]uint32    // r8-r12, FIQ mode only
	r13Bank  [6]uint32    // r13 per bankIndex
	r14Bank  [6]uint32    // r14 per bankIndex
	pc       uint32       // r15; holds the next-fetch address, not the "PC read" value
	cpsr     uint32
	spsr     [6]uint32 // spsr per bankIndex; index 0 (usr/sys) is unused
}

func (f *registerFile) mode() Mode { return Mode(f.cpsr & 0x1F) }

// GetReg reads r0-r15 honoring the current mode's bank. Reading r15
// returns the raw next-fetch address; the ARM/Thumb "PC reads ahead"
// value is the pcVal that step passes to the instruction decoders.
func (f *registerFile) GetReg(n int) uint32 {
	switch {
	case n < 8:
		return f.r[n]
	case n >= 8 && n <= 12:
		if f.mode() == ModeFIQ {
			return f.r8_12FIQ[n-8]
		}
		return f.r8_12[n-8]
	case n == 13:
		return f.r13Bank[bankIndex(f.mode())]
	case n == 14:
		return f.r14Bank[bankIndex(f.mode())]
	default: // 15
		return f.pc
	}
}

func (f *registerFile) SetReg(n int, v uint32) {
	switch {
	case n < 8:
		f.r[n] = v
	case n >= 8 && n <= 12:
		if f.mode() == ModeFIQ {
			f.r8_12FIQ[n-8] = v
		} else {
			f.r8_12[n-8] = v
		}
	case n == 13:
		f.r13Bank[bankIndex(f.mode())] = v
	case n == 14:
		f.r14Bank[bankIndex(f.mode())] = v
	default:
		f.pc = v
	}
}

func (f *registerFile) CPSR() uint32     { return f.cpsr }
func (f *registerFile) SetCPSR(v uint32) { f.cpsr = v }

// SPSR returns the current mode's saved PSR, or 0 for User/System which
// have none (reading SPSR there is UNPREDICTABLE on real hardware; we
// return 0 rather than fault).
func (f *registerFile) SPSR() uint32 {
	if f.mode() == ModeUser || f.mode() == ModeSystem {
		return 0
	}
	return f.spsr[bankIndex(f.mode())]
}

func (f *registerFile) SetSPSR(v uint32) {
	if f.mode() == ModeUser || f.mode() == ModeSystem {
		return
	}
	f.spsr[bankIndex(f.mode())] = v
}

func (f *registerFile) flag(bit uint) bool { return f.cpsr&(1<<bit) != 0 }
func (f *registerFile) setFlag(bit uint, v bool) {
	if v {
		f.cpsr |= 1 << bit
	} else {
		f.cpsr &^= 1 << bit
	}
}

func (f *registerFile) N() bool   { return f.flag(flagN) }
func (f *registerFile) Z() bool   { return f.flag(flagZ) }
func (f *registerFile) C() bool   { return f.flag(flagC) }
func (f *registerFile) V() bool   { return f.flag(flagV) }
func (f *registerFile) Thumb() bool { return f.flag(bitT) }
func (f *registerFile) IRQDisabled() bool { return f.flag(bitI) }
func (f *registerFile) FIQDisabled() bool { return f.flag(bitF) }

func (f *registerFile) setNZ(v uint32) {
	f.setFlag(flagN, v&0x80000000 != 0)
	f.setFlag(flagZ, v == 0)
}
