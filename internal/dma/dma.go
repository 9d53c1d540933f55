// Package dma implements the DMA engine, 4 channels per CPU.
//
// Grounded on _examples/IntuitionAmiga-IntuitionEngine/machine_bus.go's
// bulk-copy helpers, which move blocks through its Bus32 interface rather
// than byte-at-a-time when a caller already knows the transfer is
// contiguous: each channel's transfer completes as a single bulk copy
// with one aggregate cycle cost, rather than word-by-word scheduling.
package dma

import (
	"github.com/intuitionamiga/ndscore/internal/irqctl"
	"github.com/intuitionamiga/ndscore/internal/sched"
)

// StartCondition selects what triggers a channel's transfer.
type StartCondition uint8

const (
	StartImmediate StartCondition = iota
	StartVBlank
	StartHBlank
	StartFIFOEmpty
	StartCartReady
	StartGXFIFOHalfEmpty
	StartDisplaySync
)

// AddrMode selects how SAD/DAD advance after each unit transferred.
type AddrMode uint8

const (
	AddrIncrement AddrMode = iota
	AddrDecrement
	AddrFixed
	AddrIncrementReload // increment, and reload to the base value at restart
)

// Bus is the minimal read/write surface a DMA channel needs; internal/bus's
// View satisfies it directly.
type Bus interface {
	Read8(addr uint32) uint8
	Write8(addr uint32, val uint8)
	Read16(addr uint32) uint16
	Write16(addr uint32, val uint16)
	Read32(addr uint32) uint32
	Write32(addr uint32, val uint32)
}

// Channel holds one DMA channel's register state.
type Channel struct {
	SAD, DAD  uint32
	WordCount uint32
	SrcMode   AddrMode
	DstMode   AddrMode
	Word32    bool // true = 32-bit transfers, false = 16-bit
	Repeat    bool
	Start     StartCondition
	IRQEnable bool
	Enabled   bool

	dadBase uint32 // original DAD, for AddrIncrementReload
}

// Engine owns one CPU's four DMA channels.
type Engine struct {
	ch  [4]Channel
	bus Bus
	sch *sched.Scheduler
	irq *irqctl.Controller

	irqSources [4]irqctl.Source
	base       uint32
}

// New wires an Engine to the bus it transfers through, the scheduler it
// reports completion on, and the interrupt controller it raises into.
func New(bus Bus, sch *sched.Scheduler, irq *irqctl.Controller, irqSources [4]irqctl.Source, base uint32) *Engine {
	return &Engine{bus: bus, sch: sch, irq: irq, irqSources: irqSources, base: base}
}

// WriteChannel replaces channel i's configuration. A write with Enabled
// true and Start == StartImmediate runs the transfer synchronously (it has
// already "started" by definition); other start conditions arm the
// channel for Trigger to fire later.
func (e *Engine) WriteChannel(i int, c Channel) {
	c.dadBase = c.DAD
	e.ch[i] = c
	if c.Enabled && c.Start == StartImmediate {
		e.run(i)
	}
}

// Channel returns a copy of channel i's current register state, for MMIO
// reads.
func (e *Engine) Channel(i int) Channel { return e.ch[i] }

// Trigger fires every enabled channel armed for the given start condition.
// The core calls this from its scheduling integration loop at vblank,
// hblank, and the other hardware-defined trigger points.
func (e *Engine) Trigger(cond StartCondition) {
	for i := range e.ch {
		if e.ch[i].Enabled && e.ch[i].Start == cond {
			e.run(i)
		}
	}
}

// run performs channel i's transfer as a single bulk copy, then schedules
// its completion event (and IRQ) at the transfer's cycle cost.
func (e *Engine) run(i int) {
	c := &e.ch[i]
	unit := uint32(2)
	if c.Word32 {
		unit = 4
	}

	src, dst := c.SAD, c.DAD
	for n := uint32(0); n < c.WordCount; n++ {
		if c.Word32 {
			e.bus.Write32(dst, e.bus.Read32(src))
		} else {
			e.bus.Write16(dst, e.bus.Read16(src))
		}
		src = advance(src, c.SrcMode, unit)
		dst = advance(dst, c.DstMode, unit)
	}
	c.SAD = src
	if c.DstMode == AddrIncrementReload {
		c.DAD = c.dadBase
	} else {
		c.DAD = dst
	}

	cycles := uint64(c.WordCount) // representative: one cycle per unit transferred
	param := e.base + uint32(i)
	e.sch.Schedule(sched.KindDMAComplete, cycles, param, func(uint32) {
		if c.IRQEnable {
			e.irq.Raise(e.irqSources[i])
		}
		if !c.Repeat {
			c.Enabled = false
		}
	})
}

func advance(addr uint32, mode AddrMode, unit uint32) uint32 {
	switch mode {
	case AddrIncrement, AddrIncrementReload:
		return addr + unit
	case AddrDecrement:
		return addr - unit
	default: // AddrFixed
		return addr
	}
}

// Reset disables every channel.
func (e *Engine) Reset() {
	for i := range e.ch {
		e.ch[i] = Channel{}
		e.sch.Cancel(sched.KindDMAComplete, e.base+uint32(i))
	}
}
