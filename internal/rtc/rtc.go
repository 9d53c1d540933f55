// Package rtc implements the DS real-time clock's BCD date/time register
// file, one of the devices multiplexed onto the shared SPI bus
// (internal/spi).
//
// Grounded on original_source's RTC wiring into the IRQ controller. The
// clock is seeded once at reset from the host's now_ns() callback and
// thereafter advanced purely by scheduler-driven emulated seconds, never
// by wall-clock reads, so emulation stays deterministic and replayable.
package rtc

import (
	"github.com/intuitionamiga/ndscore/internal/irqctl"
	"github.com/intuitionamiga/ndscore/internal/sched"
)

// Registers is the 8-byte BCD date/time register file: year, month, day,
// day-of-week, hour, minute, second, plus a status byte for the 24h/12h
// and alarm/interrupt bits.
type Registers struct {
	Year, Month, Day     uint8 // BCD, Year is 00-99 meaning 2000-2099
	DayOfWeek            uint8 // 0-6
	Hour, Minute, Second uint8 // BCD
	Status               uint8
}

const (
	statusIRQ1Enable = 1 << 4
	status24Hour     = 1 << 1
)

// Clock owns the BCD register file and the scheduler-driven tick that
// advances it one emulated second at a time.
type Clock struct {
	regs Registers
	sch  *sched.Scheduler
	irq  *irqctl.Controller
}

const ticksPerSecond = 1 << 25 // representative ARM7-cycle rate

// New creates a Clock and arms its first one-second tick.
func New(sch *sched.Scheduler, irq *irqctl.Controller) *Clock {
	c := &Clock{sch: sch, irq: irq}
	c.armTick()
	return c
}

// Seed sets the register file from a host-supplied wall-clock snapshot,
// typically taken once at reset() from now_ns().
func (c *Clock) Seed(year, month, day, dow, hour, minute, second int) {
	c.regs = Registers{
		Year:      toBCD(year % 100),
		Month:     toBCD(month),
		Day:       toBCD(day),
		DayOfWeek: uint8(dow),
		Hour:      toBCD(hour),
		Minute:    toBCD(minute),
		Second:    toBCD(second),
		Status:    status24Hour,
	}
}

// Registers returns the current register file, e.g. for an SPI read.
func (c *Clock) Registers() Registers { return c.regs }

// WriteStatus updates the status byte's writable bits (alarm/IRQ enables);
// date/time fields are read-only from the SPI side on real hardware.
func (c *Clock) WriteStatus(v uint8) { c.regs.Status = v }

func (c *Clock) armTick() {
	c.sch.Schedule(sched.KindRTCTick, ticksPerSecond, 0, c.tick)
}

func (c *Clock) tick(uint32) {
	c.advanceSecond()
	c.armTick()
	if c.regs.Status&statusIRQ1Enable != 0 {
		c.irq.Raise(irqctl.SPI)
	}
}

func (c *Clock) advanceSecond() {
	sec := fromBCD(c.regs.Second) + 1
	if sec < 60 {
		c.regs.Second = toBCD(sec)
		return
	}
	c.regs.Second = 0
	min := fromBCD(c.regs.Minute) + 1
	if min < 60 {
		c.regs.Minute = toBCD(min)
		return
	}
	c.regs.Minute = 0
	hour := fromBCD(c.regs.Hour) + 1
	if hour < 24 {
		c.regs.Hour = toBCD(hour)
		return
	}
	c.regs.Hour = 0
	c.regs.DayOfWeek = uint8((int(c.regs.DayOfWeek) + 1) % 7)
	c.advanceDay()
}

func (c *Clock) advanceDay() {
	day := fromBCD(c.regs.Day) + 1
	if day <= daysInMonth(fromBCD(c.regs.Year), fromBCD(c.regs.Month)) {
		c.regs.Day = toBCD(day)
		return
	}
	c.regs.Day = toBCD(1)
	month := fromBCD(c.regs.Month) + 1
	if month <= 12 {
		c.regs.Month = toBCD(month)
		return
	}
	c.regs.Month = toBCD(1)
	c.regs.Year = toBCD((fromBCD(c.regs.Year) + 1) % 100)
}

func daysInMonth(year2digit, month int) int {
	switch month {
	case 1, 3, 5, 7, 8, 10, 12:
		return 31
	case 4, 6, 9, 11:
		return 30
	case 2:
		y := 2000 + year2digit
		if y%4 == 0 && (y%100 != 0 || y%400 == 0) {
			return 29
		}
		return 28
	default:
		return 30
	}
}

func toBCD(v int) uint8   { return uint8((v/10)<<4 | v%10) }
func fromBCD(v uint8) int { return int(v>>4)*10 + int(v&0xF) }
