// Package ipc implements the inter-processor SYNC register and FIFO word
// queues.
//
// Grounded on _examples/IntuitionAmiga-IntuitionEngine/coprocessor_manager.go's
// ticket-based handoff between the main thread and a worker: the two FIFOs
// here are the DS's real analogue of that pattern (ARM9 and ARM7 handing
// each other fixed-size units of work), so the queue itself is modeled the
// same way - a bounded ring buffer with an explicit full/empty error latch
// instead of a blocking channel, since hardware never blocks the writer.
package ipc

import "github.com/intuitionamiga/ndscore/internal/irqctl"

const fifoDepth = 16

// ring is a fixed-depth circular buffer of 32-bit words with sticky
// error-on-overflow / error-on-underflow flags: sending while full sets
// the error flag and drops the word, receiving while empty returns the
// last value and sets the error, matching the hardware FIFO's documented
// behavior.
type ring struct {
	buf        [fifoDepth]uint32
	head, size int
	lastValue  uint32
	err        bool
}

func (r *ring) push(v uint32) {
	if r.size == fifoDepth {
		r.err = true
		return
	}
	r.buf[(r.head+r.size)%fifoDepth] = v
	r.size++
}

func (r *ring) pop() uint32 {
	if r.size == 0 {
		r.err = true
		return r.lastValue
	}
	v := r.buf[r.head]
	r.head = (r.head + 1) % fifoDepth
	r.size--
	r.lastValue = v
	return v
}

func (r *ring) clear() { *r = ring{} }

// Side identifies which CPU is issuing a call, since SYNC and each FIFO
// direction are asymmetric.
type Side int

const (
	SideARM9 Side = iota
	SideARM7
)

// Link is the shared IPC state both CPUs' bus views are wired to, carrying
// the SYNC handshake register and the two opposite-direction FIFOs.
type Link struct {
	sync9, sync7 uint8 // 4-bit values each side writes, readable by the peer
	irqOnInput9  bool  // ARM9's SYNC IRQ-on-peer-write enable
	irqOnInput7  bool

	// toARM7 carries words sent by ARM9 and received by ARM7; toARM9 the
	// reverse. Two independent 16-deep word queues, one per direction.
	toARM7, toARM9 ring

	fifoEnabled bool

	irq9, irq7 *irqctl.Controller
}

// New wires a Link to both CPUs' interrupt controllers.
func New(irq9, irq7 *irqctl.Controller) *Link {
	return &Link{irq9: irq9, irq7: irq7}
}

// WriteSync stores the 4-bit value side is sending and, if the peer has
// its IRQ-on-input bit set, raises IPCSync on the peer's controller.
func (l *Link) WriteSync(side Side, val uint8, irqOnOutput bool) {
	val &= 0xF
	if side == SideARM9 {
		l.sync9 = val
		if irqOnOutput && l.irqOnInput7 {
			l.irq7.Raise(irqctl.IPCSync)
		}
	} else {
		l.sync7 = val
		if irqOnOutput && l.irqOnInput9 {
			l.irq9.Raise(irqctl.IPCSync)
		}
	}
}

// ReadSync returns the peer's last-written 4-bit value.
func (l *Link) ReadSync(side Side) uint8 {
	if side == SideARM9 {
		return l.sync7
	}
	return l.sync9
}

// SetIRQOnInput toggles whether a future peer WriteSync raises this side's
// IPCSync interrupt.
func (l *Link) SetIRQOnInput(side Side, enabled bool) {
	if side == SideARM9 {
		l.irqOnInput9 = enabled
	} else {
		l.irqOnInput7 = enabled
	}
}

// outgoing and incoming resolve which ring a side's send/receive call
// targets.
func (l *Link) outgoing(side Side) *ring {
	if side == SideARM9 {
		return &l.toARM7
	}
	return &l.toARM9
}

func (l *Link) incoming(side Side) *ring {
	if side == SideARM9 {
		return &l.toARM9
	}
	return &l.toARM7
}

// Send pushes a word onto side's outgoing FIFO and fires the peer's
// receive-not-empty IRQ if it transitioned from empty, matching the
// documented condition for the IRQ to fire.
func (l *Link) Send(side Side, val uint32) {
	r := l.outgoing(side)
	wasEmpty := r.size == 0
	r.push(val)
	if wasEmpty && r.size > 0 {
		l.peerIRQ(side).Raise(irqctl.IPCRecvFIFONotEmpty)
	}
}

// Recv pops a word from side's incoming FIFO.
func (l *Link) Recv(side Side) uint32 { return l.incoming(side).pop() }

// peerIRQ returns the interrupt controller belonging to the CPU on the
// other end of side's channel.
func (l *Link) peerIRQ(side Side) *irqctl.Controller {
	if side == SideARM9 {
		return l.irq7
	}
	return l.irq9
}

// Status bits mirror the FIFOCNT register's read side for a given side.
type Status struct {
	SendEmpty, SendFull   bool
	RecvEmpty, RecvFull   bool
	Error                 bool
}

// ReadStatus reports side's FIFO occupancy and sticky error flag.
func (l *Link) ReadStatus(side Side) Status {
	out, in := l.outgoing(side), l.incoming(side)
	return Status{
		SendEmpty: out.size == 0,
		SendFull:  out.size == fifoDepth,
		RecvEmpty: in.size == 0,
		RecvFull:  in.size == fifoDepth,
		Error:     out.err || in.err,
	}
}

// ClearError resets side's sticky error flags on both its FIFOs, the
// documented way to acknowledge an overflow/underflow condition.
func (l *Link) ClearError(side Side) {
	l.outgoing(side).err = false
	l.incoming(side).err = false
}

// FlushSend empties side's outgoing FIFO, matching the FIFOCNT "flush
// send FIFO" control bit.
func (l *Link) FlushSend(side Side) { l.outgoing(side).clear() }

// Reset clears both FIFOs and the SYNC register state.
func (l *Link) Reset() {
	l.toARM7.clear()
	l.toARM9.clear()
	l.sync9, l.sync7 = 0, 0
	l.irqOnInput9, l.irqOnInput7 = false, false
}
