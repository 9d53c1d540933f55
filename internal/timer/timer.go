// Package timer implements the four-channel countdown timer block with
// cascade. Each CPU owns its own independent Set; the core wires one Set
// to the ARM9 bus and another to the ARM7 bus.
//
// Grounded on _examples/IntuitionAmiga-IntuitionEngine/coprocessor_manager.go's
// pattern of modeling a countdown device as a scheduled future event
// rather than ticking a counter every host instruction: overflow is
// scheduled at its predicted time and re-scheduled whenever CNT is
// written, instead of advancing a counter every cycle.
package timer

import (
	"github.com/intuitionamiga/ndscore/internal/irqctl"
	"github.com/intuitionamiga/ndscore/internal/sched"
)

// prescalerShift maps the 2-bit CNT prescaler field to a cycle-count shift.
var prescalerShift = [4]uint{0, 6, 8, 10}

// irqSources maps a timer index to its interrupt source.
var irqSources = [4]irqctl.Source{irqctl.Timer0, irqctl.Timer1, irqctl.Timer2, irqctl.Timer3}

// channel holds one timer's register state plus the bookkeeping needed to
// reconstruct its live counter value between overflow events.
type channel struct {
	reload    uint16
	prescaler uint8
	cascade   bool
	irqEnable bool
	enabled   bool

	startClock uint64 // sched.Now() when this run of counting began
	startValue uint16 // counter value at startClock
}

// Set is one CPU's bank of four timers.
type Set struct {
	ch   [4]channel
	sch  *sched.Scheduler
	irq  *irqctl.Controller
	base uint32 // distinguishes this Set's events from the other CPU's Set
}

// New wires a timer Set to the scheduler and interrupt controller it
// belongs to. base should differ between the ARM9 and ARM7 instances (e.g.
// 0 and 4) so their scheduled events don't collide in sched's (kind,param)
// singleton space.
func New(sch *sched.Scheduler, irq *irqctl.Controller, base uint32) *Set {
	return &Set{sch: sch, irq: irq, base: base}
}

// cyclesPerTick returns how many system clock cycles one counter increment
// takes for channel i, or 0 if it runs on cascade rather than a prescaler.
func (s *Set) cyclesPerTick(i int) uint64 {
	if s.ch[i].cascade {
		return 0
	}
	return 1 << prescalerShift[s.ch[i].prescaler]
}

// currentValue reconstructs channel i's live 16-bit counter from elapsed
// scheduler time, without needing a per-cycle tick callback.
func (s *Set) currentValue(i int) uint16 {
	c := &s.ch[i]
	if !c.enabled || c.cascade {
		return c.startValue
	}
	cpt := s.cyclesPerTick(i)
	elapsed := (s.sch.Now() - c.startClock) / cpt
	v := uint32(c.startValue) + uint32(elapsed)
	return uint16(v) // wraps automatically mod 65536, matches hardware reload semantics below only for reads between overflows
}

// Read returns channel i's current counter value (the COUNT half of the
// TMxCNT_L/H register pair).
func (s *Set) Read(i int) uint16 { return s.currentValue(i) }

// ReadReload returns the reload value last written for channel i.
func (s *Set) ReadReload(i int) uint16 { return s.ch[i].reload }

// WriteReload stores the reload value; it only takes effect the next time
// the channel (re)starts.
func (s *Set) WriteReload(i int, v uint16) { s.ch[i].reload = v }

// Control mirrors the TMxCNT_H control bits.
type Control struct {
	Prescaler uint8
	Cascade   bool
	IRQEnable bool
	Enable    bool
}

// WriteControl applies a new control word: a rising edge on Enable
// reloads the counter and (re)arms the overflow event.
func (s *Set) WriteControl(i int, c Control) {
	ch := &s.ch[i]
	wasEnabled := ch.enabled
	ch.prescaler, ch.cascade, ch.irqEnable = c.Prescaler, c.Cascade, c.IRQEnable
	ch.enabled = c.Enable

	s.sch.Cancel(sched.KindTimerOverflow, s.channelParam(i))

	if !c.Enable {
		return
	}
	if !wasEnabled {
		ch.startValue = ch.reload
	} else {
		ch.startValue = s.currentValue(i)
	}
	ch.startClock = s.sch.Now()

	if !ch.cascade {
		s.armOverflow(i)
	}
}

// channelParam packs this Set's base offset with the channel index so the
// two CPUs' timer events never collide in the scheduler's singleton space.
func (s *Set) channelParam(i int) uint32 { return s.base + uint32(i) }

// armOverflow schedules this channel's next overflow event based on its
// current counter value and prescaler.
func (s *Set) armOverflow(i int) {
	ch := &s.ch[i]
	cpt := s.cyclesPerTick(i)
	remaining := uint64(0x10000-uint32(ch.startValue)) * cpt
	s.sch.Schedule(sched.KindTimerOverflow, remaining, s.channelParam(i), func(uint32) {
		s.overflow(i)
	})
}

// overflow fires when channel i's counter wraps past 0xFFFF: it reloads,
// raises the IRQ if enabled, cascades into channel i+1 if that channel is
// configured for cascade, and re-arms itself if still counting from a
// prescaler.
func (s *Set) overflow(i int) {
	ch := &s.ch[i]
	ch.startValue = ch.reload
	ch.startClock = s.sch.Now()

	if ch.irqEnable {
		s.irq.Raise(irqSources[i])
	}
	if !ch.cascade && ch.enabled {
		s.armOverflow(i)
	}
	if i+1 < 4 && s.ch[i+1].enabled && s.ch[i+1].cascade {
		s.cascadeTick(i + 1)
	}
}

// cascadeTick advances a cascade-configured channel by one count: a
// channel configured to cascade increments exactly once per overflow of
// the timer below it, rather than running its own prescaled clock.
func (s *Set) cascadeTick(i int) {
	ch := &s.ch[i]
	if ch.startValue == 0xFFFF {
		s.overflow(i)
		return
	}
	ch.startValue++
}

// Reset clears all four channels and their scheduled events.
func (s *Set) Reset() {
	for i := 0; i < 4; i++ {
		s.sch.Cancel(sched.KindTimerOverflow, s.channelParam(i))
		s.ch[i] = channel{}
	}
}
