package mathunit

import (
	"testing"

	"github.com/intuitionamiga/ndscore/internal/sched"
)

func TestDivideComputesQuotientAndRemainder(t *testing.T) {
	s := sched.New()
	u := New(s)
	u.StartDivide(Div32_32, 17, 5)
	if u.DivQuotient() != 3 || u.DivRemainder() != 2 {
		t.Fatalf("17/5 = %d r%d, want 3 r2", u.DivQuotient(), u.DivRemainder())
	}
	if !u.DivBusy() {
		t.Fatalf("divider not busy immediately after start")
	}
	s.RunUntil(100)
	if u.DivBusy() {
		t.Fatalf("divider still busy after modeled latency elapsed")
	}
}

func TestDivideByZeroSaturatesQuotient(t *testing.T) {
	s := sched.New()
	u := New(s)
	u.StartDivide(Div32_32, 42, 0)
	if !u.DivByZero() {
		t.Fatalf("DivByZero() false for a zero denominator")
	}
	if u.DivQuotient() != -1 {
		t.Fatalf("quotient = %d, want -1 for positive numerator / 0", u.DivQuotient())
	}
	if u.DivRemainder() != 42 {
		t.Fatalf("remainder = %d, want numerator (42)", u.DivRemainder())
	}
}

func TestSqrtIntegerResult(t *testing.T) {
	s := sched.New()
	u := New(s)
	u.StartSqrt(144)
	if u.SqrtResult() != 12 {
		t.Fatalf("sqrt(144) = %d, want 12", u.SqrtResult())
	}
	u.StartSqrt(150)
	if u.SqrtResult() != 12 {
		t.Fatalf("sqrt(150) = %d, want floor(12.24..)=12", u.SqrtResult())
	}
}
