// Package mathunit implements the DS's hardware divider and square-root
// units: deterministic math with cycle-accurate busy latency rather than
// an instantaneous result.
//
// An operation latches its inputs and the result is computed immediately
// (these are pure functions of their inputs, unlike a cart transfer's
// streamed bytes), but the *busy* flag it exposes to the guest is cleared
// only when a scheduled completion event fires, so a ROM polling
// DIVCNT/SQRTCNT mid-operation observes busy==true for the modeled
// latency instead of an instantaneous result.
package mathunit

import "github.com/intuitionamiga/ndscore/internal/sched"

// DivMode selects the operand widths for the divider, mirroring DIVCNT.
type DivMode uint8

const (
	Div32_32 DivMode = iota
	Div64_32
	Div64_64
)

// divCycles is representative of the real unit's variable latency (more
// cycles for wider operands); these are simplified round figures rather
// than the exact microcode cycle table, since the division unit's
// documented behavior for degenerate inputs (divide by zero, overflow) is
// not modeled bit-exact.
var divCycles = [3]uint64{18, 34, 34}

const sqrtCycles = 13

// Unit models both the divider and the square-root unit; the DS exposes
// them as separate register blocks but they share the same latch/latency
// shape.
type Unit struct {
	sch *sched.Scheduler

	divNumer, divDenom int64
	divQuotient        int64
	divRemainder       int64
	divMode            DivMode
	divBusy            bool
	divByZero          bool

	sqrtInput  uint64
	sqrtResult uint32
	sqrtBusy   bool
}

// New wires a Unit to the scheduler it reports completion through.
func New(sch *sched.Scheduler) *Unit { return &Unit{sch: sch} }

// StartDivide latches numerator/denominator and mode, computes the result
// immediately, but keeps DivBusy true until the modeled latency elapses.
func (u *Unit) StartDivide(mode DivMode, numer, denom int64) {
	u.divMode = mode
	u.divNumer, u.divDenom = numer, denom
	u.divByZero = denom == 0

	if u.divByZero {
		// Hardware-documented div-by-zero behavior: quotient saturates to
		// +/-1 sign-extended, remainder equals the numerator.
		if numer < 0 {
			u.divQuotient = 1
		} else {
			u.divQuotient = -1
		}
		u.divRemainder = numer
	} else {
		u.divQuotient = numer / denom
		u.divRemainder = numer % denom
	}

	u.divBusy = true
	u.sch.Schedule(sched.KindMathDivDone, divCycles[mode], 0, func(uint32) {
		u.divBusy = false
	})
}

// DivQuotient, DivRemainder, DivBusy and DivByZero mirror DIV_RESULT /
// DIVREM_RESULT / DIVCNT's busy and div-by-zero bits.
func (u *Unit) DivQuotient() int64  { return u.divQuotient }
func (u *Unit) DivRemainder() int64 { return u.divRemainder }
func (u *Unit) DivBusy() bool       { return u.divBusy }
func (u *Unit) DivByZero() bool     { return u.divByZero }

// StartSqrt latches the input and computes an integer square root
// immediately, exposing SqrtBusy until the modeled latency elapses.
func (u *Unit) StartSqrt(input uint64) {
	u.sqrtInput = input
	u.sqrtResult = isqrt(input)
	u.sqrtBusy = true
	u.sch.Schedule(sched.KindMathSqrtDone, sqrtCycles, 0, func(uint32) {
		u.sqrtBusy = false
	})
}

func (u *Unit) SqrtResult() uint32 { return u.sqrtResult }
func (u *Unit) SqrtBusy() bool     { return u.sqrtBusy }

// isqrt computes floor(sqrt(n)) for a 64-bit input via Newton's method,
// matching the integer (not floating point) nature of the hardware unit.
func isqrt(n uint64) uint32 {
	if n == 0 {
		return 0
	}
	x := n
	y := (x + 1) / 2
	for y < x {
		x = y
		y = (x + n/x) / 2
	}
	return uint32(x)
}

// Reset clears both units' latched state.
func (u *Unit) Reset() { *u = Unit{sch: u.sch} }
