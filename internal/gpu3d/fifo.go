// Package gpu3d implements the 3D geometry/rasterization pipeline: a
// 256-entry command FIFO feeding a 4-entry pipe, a fixed-point
// matrix/lighting geometry engine, and a scanline rasterizer that runs on
// a worker goroutine synchronized with the emulation thread via a
// two-semaphore handshake.
//
// Grounded on original_source/GPU3D.cpp for the command-queue shape
// (CmdNumParams/CmdNumCycles tables, PIPE-refill-from-FIFO logic, packed
// command decomposition, GXSTAT bit layout) and original_source's
// GPU3D_Soft.h for the scanline interpolator formula, transcribed
// directly. The cycle-debt run loop generalizes
// _examples/IntuitionAmiga-IntuitionEngine/cpu_ie32.go's charge-then-advance
// Execute shape to the 3D engine, which maintains its own cycle debt
// analogous to a CPU's.
package gpu3d

import "github.com/intuitionamiga/ndscore/internal/irqctl"

// cmdNumParams is the parameter count each opcode consumes before it
// executes, transcribed from original_source/GPU3D.cpp's CmdNumParams.
var cmdNumParams = [256]uint8{
	0x10: 1, 0x11: 0, 0x12: 1, 0x13: 1, 0x14: 1, 0x15: 0, 0x16: 16, 0x17: 12,
	0x18: 16, 0x19: 12, 0x1A: 9, 0x1B: 3, 0x1C: 3,
	0x20: 1, 0x21: 1, 0x22: 1, 0x23: 2, 0x24: 1, 0x25: 1, 0x26: 1, 0x27: 1,
	0x28: 1, 0x29: 1, 0x2A: 1, 0x2B: 1,
	0x30: 1, 0x31: 1, 0x32: 1, 0x33: 1, 0x34: 32,
	0x40: 1, 0x41: 0,
	0x50: 1,
	0x60: 1,
	0x70: 3, 0x71: 2, 0x72: 1,
}

// cmdNumCycles is each opcode's fixed execution cost in 3D-engine cycles,
// transcribed from original_source/GPU3D.cpp's CmdNumCycles.
var cmdNumCycles = [256]uint32{
	0x10: 1, 0x11: 17, 0x12: 36, 0x13: 17, 0x14: 36, 0x15: 19, 0x16: 34, 0x17: 30,
	0x18: 35, 0x19: 31, 0x1A: 28, 0x1B: 22, 0x1C: 22,
	0x20: 1, 0x21: 9, 0x22: 1, 0x23: 9, 0x24: 8, 0x25: 8, 0x26: 8, 0x27: 8,
	0x28: 8, 0x29: 1, 0x2A: 1, 0x2B: 1,
	0x30: 4, 0x31: 4, 0x32: 6, 0x33: 1, 0x34: 32,
	0x40: 1, 0x41: 1,
	0x50: 392,
	0x60: 1,
	0x70: 103, 0x71: 9, 0x72: 5,
}

// Opcode names the commands geometry.go and gpu3d.go dispatch on.
type Opcode uint8

const (
	OpMtxMode       Opcode = 0x10
	OpMtxPush       Opcode = 0x11
	OpMtxPop        Opcode = 0x12
	OpMtxStore      Opcode = 0x13
	OpMtxRestore    Opcode = 0x14
	OpMtxIdentity   Opcode = 0x15
	OpMtxLoad44     Opcode = 0x16
	OpMtxLoad43     Opcode = 0x17
	OpMtxMult44     Opcode = 0x18
	OpMtxMult43     Opcode = 0x19
	OpMtxMult33     Opcode = 0x1A
	OpMtxScale      Opcode = 0x1B
	OpMtxTrans      Opcode = 0x1C
	OpColor         Opcode = 0x20
	OpNormal        Opcode = 0x21
	OpTexCoord      Opcode = 0x22
	OpVtx16         Opcode = 0x23
	OpVtx10         Opcode = 0x24
	OpVtxXY         Opcode = 0x25
	OpVtxXZ         Opcode = 0x26
	OpVtxYZ         Opcode = 0x27
	OpVtxDiff       Opcode = 0x28
	OpPolygonAttr   Opcode = 0x29
	OpTexImageParam Opcode = 0x2A
	OpTexPltBase    Opcode = 0x2B
	OpDiffAmb       Opcode = 0x30
	OpSpecEmi       Opcode = 0x31
	OpLightVector   Opcode = 0x32
	OpLightColor    Opcode = 0x33
	OpShininess     Opcode = 0x34
	OpBeginVtxs     Opcode = 0x40
	OpEndVtxs       Opcode = 0x41
	OpSwapBuffers   Opcode = 0x50
	OpViewport      Opcode = 0x60
	OpBoxTest       Opcode = 0x70
	OpPosTest       Opcode = 0x71
	OpVecTest       Opcode = 0x72
)

// IRQMode selects when GXFIFO's interrupt fires, per GXSTAT bits 30-31.
type IRQMode uint8

const (
	IRQNever IRQMode = iota
	IRQLessThanHalfFull
	IRQEmpty
)

type cmdEntry struct {
	op     Opcode
	params []uint32
}

// fifoDepth and pipeDepth mirror original_source/GPU3D.cpp's FIFO(256)/
// PIPE(4) construction.
const (
	fifoDepth = 256
	pipeDepth = 4
)

type cmdQueue struct {
	buf   []cmdEntry
	depth int
}

func newCmdQueue(depth int) *cmdQueue { return &cmdQueue{depth: depth} }

func (q *cmdQueue) isEmpty() bool { return len(q.buf) == 0 }
func (q *cmdQueue) isFull() bool  { return len(q.buf) >= q.depth }
func (q *cmdQueue) level() int    { return len(q.buf) }

func (q *cmdQueue) write(e cmdEntry) { q.buf = append(q.buf, e) }

func (q *cmdQueue) read() cmdEntry {
	e := q.buf[0]
	q.buf = q.buf[1:]
	return e
}

func (q *cmdQueue) clear() { q.buf = q.buf[:0] }

// fifoState is the packed-command decomposition and queue pair: packed
// command words (4 opcodes per word, with parameter words following) must
// be decomposed losslessly back into individual (opcode, params) entries.
type fifoState struct {
	fifo *cmdQueue
	pipe *cmdQueue

	packedOps   uint32 // remaining opcode bytes of the command word in progress, LSB first
	numCommands int    // remaining opcode slots in packedOps
	curOp       Opcode
	paramBuf    []uint32 // parameter words accumulated so far for curOp
	totalParams int

	directOp      Opcode
	directParams  []uint32 // parameter words accumulated for the in-progress direct-register command

	irqMode IRQMode
	irq     *irqctl.Controller
}

func newFIFOState(irq *irqctl.Controller) *fifoState {
	return &fifoState{fifo: newCmdQueue(fifoDepth), pipe: newCmdQueue(pipeDepth), irq: irq}
}

// writeCommand pushes one completed (opcode, param) pair into the PIPE if
// it has room and the FIFO is empty, else the FIFO, per
// original_source/GPU3D.cpp's CmdFIFOWrite. Reports false when the FIFO is
// full: rather than silently dropping the command the way a naive port
// might, this directs the MMIO write path to stall the CPU and retry,
// matching real hardware. The caller (gpu3d.go's register write entry
// points) is responsible for surfacing that retry to whatever stalls the
// requesting CPU.
func (f *fifoState) writeCommand(e cmdEntry) bool {
	if f.fifo.isEmpty() && !f.pipe.isFull() {
		f.pipe.write(e)
		return true
	}
	if f.fifo.isFull() {
		return false
	}
	f.fifo.write(e)
	return true
}

// readCommand pops the PIPE's head, refilling it from the FIFO down to two
// entries of headroom, per original_source/GPU3D.cpp's CmdFIFORead.
func (f *fifoState) readCommand() (cmdEntry, bool) {
	if f.pipe.isEmpty() {
		return cmdEntry{}, false
	}
	e := f.pipe.read()
	for f.pipe.level() <= 2 && !f.fifo.isEmpty() {
		f.pipe.write(f.fifo.read())
	}
	f.checkFIFOIRQ()
	return e, true
}

func (f *fifoState) checkFIFOIRQ() {
	var fire bool
	switch f.irqMode {
	case IRQLessThanHalfFull:
		fire = f.fifo.level() < fifoDepth/2
	case IRQEmpty:
		fire = f.fifo.isEmpty()
	}
	if fire && f.irq != nil {
		f.irq.Raise(irqctl.GXFIFO)
	}
}

// submitWord decomposes one packed command word per
// original_source/GPU3D.cpp's Write32(0x04000400..0x0400043F) logic: the
// first word of a new packed command supplies up to four opcode bytes
// (LSB first), each consuming its own run of subsequent parameter words
// before the next opcode byte's parameters begin.
// submitWord reports false (without consuming val) if the FIFO is full and
// the caller must stall and retry the write - a hardware-accurate stall in
// place of silently dropping the command.
func (f *fifoState) submitWord(val uint32) bool {
	if f.numCommands == 0 {
		if f.fifo.isFull() {
			return false
		}
		f.numCommands = 4
		f.packedOps = val
		f.curOp = Opcode(f.packedOps & 0xFF)
		f.totalParams = int(cmdNumParams[f.curOp])
		f.paramBuf = f.paramBuf[:0]
		if f.totalParams == 0 {
			if !f.commitPackedOp() {
				return false
			}
		}
		return true
	}

	f.paramBuf = append(f.paramBuf, val)
	if len(f.paramBuf) < f.totalParams {
		return true
	}
	if !f.commitPackedOp() {
		// Roll back the just-appended word so a retry of this same MMIO
		// write re-enters at the same position.
		f.paramBuf = f.paramBuf[:len(f.paramBuf)-1]
		return false
	}
	return true
}

// commitPackedOp pushes the fully-accumulated current opcode of a packed
// command word into the FIFO/PIPE and advances to the next opcode byte (if
// any) of that word, per original_source/GPU3D.cpp's Write32 decomposition.
func (f *fifoState) commitPackedOp() bool {
	if !f.writeCommand(cmdEntry{op: f.curOp, params: append([]uint32(nil), f.paramBuf...)}) {
		return false
	}
	f.packedOps >>= 8
	f.numCommands--
	f.paramBuf = f.paramBuf[:0]
	for f.numCommands > 0 {
		f.curOp = Opcode(f.packedOps & 0xFF)
		f.totalParams = int(cmdNumParams[f.curOp])
		if f.totalParams > 0 {
			break
		}
		if !f.writeCommand(cmdEntry{op: f.curOp}) {
			return false
		}
		f.packedOps >>= 8
		f.numCommands--
	}
	return true
}

// submitDirect handles the register-mapped command range
// (0x04000440-0x040005CB): each MMIO address names its own opcode
// directly, accumulating one parameter word per write (consecutive writes
// to the same opcode's address) until cmdNumParams is satisfied, per
// original_source/GPU3D.cpp. Reports false if the FIFO is full and the
// write must be retried.
func (f *fifoState) submitDirect(addr uint32, val uint32) bool {
	op := Opcode((addr & 0x1FC) >> 2)
	if cmdNumParams[op] == 0 {
		return f.writeCommand(cmdEntry{op: op})
	}
	if op != f.directOp {
		f.directOp = op
		f.directParams = f.directParams[:0]
	}
	f.directParams = append(f.directParams, val)
	if len(f.directParams) < int(cmdNumParams[op]) {
		return true
	}
	if !f.writeCommand(cmdEntry{op: op, params: append([]uint32(nil), f.directParams...)}) {
		f.directParams = f.directParams[:len(f.directParams)-1]
		return false
	}
	f.directParams = f.directParams[:0]
	return true
}

// reset clears both queues and the in-progress packed-word decomposition
// state.
func (f *fifoState) reset() {
	f.fifo.clear()
	f.pipe.clear()
	f.numCommands, f.totalParams = 0, 0
	f.packedOps = 0
	f.paramBuf = f.paramBuf[:0]
	f.directParams = f.directParams[:0]
}
