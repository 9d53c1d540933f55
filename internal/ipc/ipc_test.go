package ipc

import (
	"testing"

	"github.com/intuitionamiga/ndscore/internal/irqctl"
)

func newLink() (*Link, *irqctl.Controller, *irqctl.Controller) {
	irq9, irq7 := irqctl.New(), irqctl.New()
	irq9.SetIME(true)
	irq7.SetIME(true)
	irq9.SetIE(uint32(irqctl.IPCSync) | uint32(irqctl.IPCRecvFIFONotEmpty))
	irq7.SetIE(uint32(irqctl.IPCSync) | uint32(irqctl.IPCRecvFIFONotEmpty))
	return New(irq9, irq7), irq9, irq7
}

func TestSyncWriteVisibleToPeerOnly(t *testing.T) {
	l, _, _ := newLink()
	l.WriteSync(SideARM9, 0xF, false)
	if got := l.ReadSync(SideARM7); got != 0xF {
		t.Fatalf("ReadSync(ARM7) = %#x, want 0xF", got)
	}
	if got := l.ReadSync(SideARM9); got != 0 {
		t.Fatalf("ReadSync(ARM9) = %#x, want 0 (reads the peer's value, not its own)", got)
	}
}

func TestSyncIRQFiresOnlyWhenPeerEnabled(t *testing.T) {
	l, _, irq7 := newLink()
	l.SetIRQOnInput(SideARM7, true)
	l.WriteSync(SideARM9, 1, true)
	if irq7.IF()&uint32(irqctl.IPCSync) == 0 {
		t.Fatalf("ARM7 IPCSync IRQ not raised")
	}
}

func TestFIFORoundTripAndNotEmptyIRQ(t *testing.T) {
	l, _, irq7 := newLink()
	l.Send(SideARM9, 0xCAFEBABE)
	if irq7.IF()&uint32(irqctl.IPCRecvFIFONotEmpty) == 0 {
		t.Fatalf("receive-not-empty IRQ not raised on ARM7 after ARM9 send")
	}
	if got := l.Recv(SideARM7); got != 0xCAFEBABE {
		t.Fatalf("Recv = %#x, want 0xCAFEBABE", got)
	}
}

func TestFIFOFullSetsErrorAndDropsWord(t *testing.T) {
	l, _, _ := newLink()
	for i := 0; i < fifoDepth; i++ {
		l.Send(SideARM9, uint32(i))
	}
	l.Send(SideARM9, 0xFFFFFFFF) // 17th word: dropped
	st := l.ReadStatus(SideARM9)
	if !st.SendFull || !st.Error {
		t.Fatalf("status = %+v, want SendFull and Error set", st)
	}
	// First word should still be the original 0, not overwritten.
	if got := l.Recv(SideARM7); got != 0 {
		t.Fatalf("Recv = %d, want 0 (dropped word must not overwrite queue contents)", got)
	}
}

func TestFIFOEmptyReceiveReturnsLastValueAndSetsError(t *testing.T) {
	l, _, _ := newLink()
	l.Send(SideARM9, 42)
	l.Recv(SideARM7) // drains it, lastValue=42
	got := l.Recv(SideARM7)
	if got != 42 {
		t.Fatalf("Recv on empty = %d, want 42 (last value repeated)", got)
	}
	if !l.ReadStatus(SideARM7).Error {
		t.Fatalf("expected error flag set after receive-while-empty")
	}
}
