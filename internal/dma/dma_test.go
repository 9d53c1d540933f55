package dma

import (
	"testing"

	"github.com/intuitionamiga/ndscore/internal/irqctl"
	"github.com/intuitionamiga/ndscore/internal/sched"
)

type memBus struct{ m [0x10000]byte }

func (b *memBus) Read8(a uint32) uint8        { return b.m[a&0xFFFF] }
func (b *memBus) Write8(a uint32, v uint8)    { b.m[a&0xFFFF] = v }
func (b *memBus) Read16(a uint32) uint16      { return uint16(b.m[a&0xFFFF]) | uint16(b.m[(a+1)&0xFFFF])<<8 }
func (b *memBus) Write16(a uint32, v uint16)  { b.m[a&0xFFFF] = uint8(v); b.m[(a+1)&0xFFFF] = uint8(v >> 8) }
func (b *memBus) Read32(a uint32) uint32      { return uint32(b.Read16(a)) | uint32(b.Read16(a+2))<<16 }
func (b *memBus) Write32(a uint32, v uint32)  { b.Write16(a, uint16(v)); b.Write16(a+2, uint16(v>>16)) }

var testSources = [4]irqctl.Source{irqctl.DMA0, irqctl.DMA1, irqctl.DMA2, irqctl.DMA3}

func TestImmediateTransferCopiesWordsAndRaisesIRQAfterDelay(t *testing.T) {
	bus := &memBus{}
	bus.Write16(0x100, 0x1111)
	bus.Write16(0x102, 0x2222)
	bus.Write16(0x104, 0x3333)

	sch := sched.New()
	irq := irqctl.New()
	irq.SetIME(true)
	irq.SetIE(uint32(irqctl.DMA0))
	e := New(bus, sch, irq, testSources, 0)

	e.WriteChannel(0, Channel{
		SAD: 0x100, DAD: 0x200, WordCount: 3,
		SrcMode: AddrIncrement, DstMode: AddrIncrement,
		IRQEnable: true, Enabled: true, Start: StartImmediate,
	})

	if bus.Read16(0x200) != 0x1111 || bus.Read16(0x202) != 0x2222 || bus.Read16(0x204) != 0x3333 {
		t.Fatalf("transfer did not copy all three words")
	}
	if irq.IF()&uint32(irqctl.DMA0) != 0 {
		t.Fatalf("IRQ raised before completion event ran")
	}
	sch.RunUntil(100)
	if irq.IF()&uint32(irqctl.DMA0) == 0 {
		t.Fatalf("IRQ not raised after completion event")
	}
}

func TestFixedSourceModeRereadsSameAddress(t *testing.T) {
	bus := &memBus{}
	bus.Write16(0x100, 0xABCD)

	sch := sched.New()
	irq := irqctl.New()
	e := New(bus, sch, irq, testSources, 0)

	e.WriteChannel(1, Channel{
		SAD: 0x100, DAD: 0x200, WordCount: 4,
		SrcMode: AddrFixed, DstMode: AddrIncrement,
		Enabled: true, Start: StartImmediate,
	})

	for i := uint32(0); i < 4; i++ {
		if got := bus.Read16(0x200 + i*2); got != 0xABCD {
			t.Fatalf("word %d = %#x, want 0xABCD (fixed-source repeat)", i, got)
		}
	}
}

func TestTriggerOnlyFiresArmedChannels(t *testing.T) {
	bus := &memBus{}
	bus.Write16(0x100, 0x4242)
	sch := sched.New()
	irq := irqctl.New()
	e := New(bus, sch, irq, testSources, 0)

	e.WriteChannel(0, Channel{SAD: 0x100, DAD: 0x300, WordCount: 1, Enabled: true, Start: StartVBlank})
	e.WriteChannel(1, Channel{SAD: 0x100, DAD: 0x400, WordCount: 1, Enabled: true, Start: StartHBlank})

	e.Trigger(StartVBlank)

	if bus.Read16(0x300) != 0x4242 {
		t.Fatalf("VBlank-armed channel did not transfer")
	}
	if bus.Read16(0x400) != 0 {
		t.Fatalf("HBlank-armed channel fired on a VBlank trigger")
	}
}

func TestNonRepeatDisablesAfterCompletion(t *testing.T) {
	bus := &memBus{}
	sch := sched.New()
	irq := irqctl.New()
	e := New(bus, sch, irq, testSources, 0)

	e.WriteChannel(0, Channel{SAD: 0x100, DAD: 0x200, WordCount: 1, Enabled: true, Start: StartImmediate, Repeat: false})
	sch.RunUntil(10)

	if e.Channel(0).Enabled {
		t.Fatalf("non-repeating channel still enabled after completion")
	}
}
