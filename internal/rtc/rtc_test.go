package rtc

import (
	"testing"

	"github.com/intuitionamiga/ndscore/internal/irqctl"
	"github.com/intuitionamiga/ndscore/internal/sched"
)

func TestSeedRoundTripsThroughBCD(t *testing.T) {
	sc := sched.New()
	c := New(sc, irqctl.New())
	c.Seed(2026, 8, 1, 6, 23, 59, 58)

	regs := c.Registers()
	if fromBCD(regs.Year) != 26 || fromBCD(regs.Month) != 8 || fromBCD(regs.Day) != 1 {
		t.Fatalf("date mismatch: %+v", regs)
	}
	if fromBCD(regs.Hour) != 23 || fromBCD(regs.Minute) != 59 || fromBCD(regs.Second) != 58 {
		t.Fatalf("time mismatch: %+v", regs)
	}
}

func TestSecondsAdvanceRollsOverMinuteHourDay(t *testing.T) {
	sc := sched.New()
	c := New(sc, irqctl.New())
	c.Seed(2026, 8, 1, 6, 23, 59, 58)

	for i := 0; i < 3; i++ {
		deadline, ok := sc.NextDeadline()
		if !ok {
			t.Fatalf("no tick scheduled at step %d", i)
		}
		sc.RunUntil(deadline)
	}

	regs := c.Registers()
	if fromBCD(regs.Day) != 2 || fromBCD(regs.Hour) != 0 || fromBCD(regs.Minute) != 0 || fromBCD(regs.Second) != 1 {
		t.Fatalf("rollover mismatch: %+v", regs)
	}
}

func TestIRQ1EnableRaisesSPIInterruptOnTick(t *testing.T) {
	sc := sched.New()
	irq := irqctl.New()
	c := New(sc, irq)
	c.WriteStatus(statusIRQ1Enable | status24Hour)

	irq.SetIE(uint32(irqctl.SPI))
	irq.SetIME(true)

	deadline, _ := sc.NextDeadline()
	sc.RunUntil(deadline)

	if !irq.Pending() {
		t.Fatalf("expected SPI IRQ after a tick with IRQ1 enabled")
	}
}

func TestDaysInMonthHandlesLeapYear(t *testing.T) {
	if daysInMonth(24, 2) != 29 {
		t.Fatalf("2024 is a leap year, expected 29 days in February")
	}
	if daysInMonth(25, 2) != 28 {
		t.Fatalf("2025 is not a leap year, expected 28 days in February")
	}
}
