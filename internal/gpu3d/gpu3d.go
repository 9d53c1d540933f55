// Engine is the top-level 3D pipeline orchestrator: it wires the command
// FIFO (fifo.go), the matrix/lighting geometry engine (geometry.go), and the
// scanline rasterizer (raster.go) together behind the MMIO register surface,
// and drives the command engine's cycle-debt run loop the core's
// scheduling integration loop calls into each slice alongside the two
// CPUs.
package gpu3d

import (
	"github.com/intuitionamiga/ndscore/internal/bus"
	"github.com/intuitionamiga/ndscore/internal/irqctl"
	"github.com/intuitionamiga/ndscore/internal/sched"
)

// vramTexMem adapts internal/bus.Router's texture/palette windows to the
// TexMem interface raster.go samples through, keeping gpu3d's
// dependency on bus narrowed to exactly the two windows it reads.
type vramTexMem struct {
	vram *bus.Router
}

func (m vramTexMem) ReadTexture(addr uint32) uint8 { return m.vram.ReadByte(bus.WinTexture, addr) }
func (m vramTexMem) ReadTexPal(addr uint32) uint8  { return m.vram.ReadByte(bus.WinTexPalette, addr) }

// Engine owns the command engine, geometry engine, and rasterizer, and
// implements bus.IOHandler over the GXFIFO/direct-command/GXSTAT register
// ranges.
type Engine struct {
	fifo *fifoState
	geom *geometryState
	rend *Renderer

	sch *sched.Scheduler
	irq *irqctl.Controller

	debt int64 // 3D command engine cycle debt

	boxTestResult bool
	testBusy      bool
}

// New constructs an Engine bound to the VRAM router it samples textures
// from, the scheduler driving its Run calls, and the interrupt controller
// GXFIFO IRQs raise into.
func New(vram *bus.Router, sch *sched.Scheduler, irq *irqctl.Controller) *Engine {
	return &Engine{
		fifo: newFIFOState(irq),
		geom: newGeometryState(),
		rend: NewRenderer(vramTexMem{vram: vram}),
		sch:  sch,
		irq:  irq,
	}
}

// Reset clears every register and frame-progress state back to power-on
// defaults; the rasterizer's worker goroutine keeps running (Close stops it
// deterministically at shutdown, separately).
func (e *Engine) Reset() {
	e.fifo.reset()
	e.geom.reset()
	e.debt = 0
	e.boxTestResult, e.testBusy = false, false
}

// Close stops the rasterizer's worker goroutine.
func (e *Engine) Close() { e.rend.Close() }

// GetLine returns scanline y of the most recently rasterized frame, for the
// 2D engine's BG0-is-3D compositing source.
func (e *Engine) GetLine(y int) [ScreenWidth][3]uint8 { return e.rend.GetLine(y) }

// HandleWrite implements bus.IOHandler for the three register ranges this
// engine owns: the packed-command FIFO word, the direct per-opcode command
// registers, and GXSTAT.
func (e *Engine) HandleWrite(addr uint32, width int, val uint32) {
	switch {
	case addr == 0x04000400:
		e.fifo.submitWord(val)
	case addr >= 0x04000440 && addr < 0x040005CC:
		e.fifo.submitDirect(addr, val)
	case addr == 0x04000600:
		e.writeGXSTAT(val)
	case addr >= 0x04000330 && addr < 0x04000340:
		e.writeEdgeColor(addr, val)
	case addr == 0x04000350:
		e.writeClearColor(val)
	case addr == 0x04000354:
		e.rend.SetClearColor(e.rend.clearColor, int32(val&0x7FFF))
	case addr >= 0x04000360 && addr < 0x04000380:
		e.writeFogTableWord(addr, val)
	}
}

// HandleRead implements bus.IOHandler. Only GXSTAT is readable in this
// range; the command registers are write-only on real hardware.
func (e *Engine) HandleRead(addr uint32, width int) uint32 {
	if addr == 0x04000600 {
		return e.readGXSTAT()
	}
	return 0
}

// TryWrite mirrors HandleWrite but reports whether the write was accepted,
// for callers (the core's MMIO dispatch) that implement a stall-and-retry
// policy on a full GXFIFO rather than silently dropping the write the way
// bus.IOHandler's fire-and-forget signature would.
func (e *Engine) TryWrite(addr uint32, val uint32) bool {
	switch {
	case addr == 0x04000400:
		return e.fifo.submitWord(val)
	case addr >= 0x04000440 && addr < 0x040005CC:
		return e.fifo.submitDirect(addr, val)
	default:
		e.HandleWrite(addr, 4, val)
		return true
	}
}

// writeEdgeColor stores one of the four edge-marking colors used for
// edge marking by polygon-ID adjacency; real hardware exposes eight
// 16-bit slots here, but only the top two bits of a polygon's ID select
// among four per the edgeMarkAndFog lookup in raster.go.
func (e *Engine) writeEdgeColor(addr, val uint32) {
	idx := (addr - 0x04000330) / 2
	if idx >= 4 {
		return
	}
	e.rend.edgeColors[idx] = [3]uint8{uint8(val & 0x1F), uint8((val >> 5) & 0x1F), uint8((val >> 10) & 0x1F)}
}

func (e *Engine) writeClearColor(val uint32) {
	c := [3]uint8{uint8(val & 0x1F), uint8((val >> 5) & 0x1F), uint8((val >> 10) & 0x1F)}
	e.rend.SetClearColor(c, e.rend.clearDepth)
}

// writeFogTableWord unpacks one 32-bit FOG_TABLE write into up to four
// 7-bit density entries of the 32-entry fog density table.
func (e *Engine) writeFogTableWord(addr, val uint32) {
	base := addr - 0x04000360
	for i := uint32(0); i < 4; i++ {
		idx := base + i
		if idx < 32 {
			e.rend.fogTable[idx] = uint8(val>>(8*i)) & 0x7F
		}
	}
}

// readGXSTAT assembles the GXSTAT register: FIFO level and its
// half-empty/empty/IRQ-mode bits, the position/vector matrix stack's current
// level and overflow latch, and a representative busy flag.
func (e *Engine) readGXSTAT() uint32 {
	level := e.fifo.fifo.level() + e.fifo.pipe.level()
	var v uint32
	if e.testBusy {
		v |= 1 << 0
	}
	if e.boxTestResult {
		v |= 1 << 1
	}
	v |= uint32(e.geom.pos.sp&0x1F) << 8
	if e.geom.matrixOverflow() {
		v |= 1 << 15
	}
	v |= uint32(level&0xFF) << 16
	if level < fifoDepth/2 {
		v |= 1 << 24
	}
	if level == 0 {
		v |= 1 << 25
	}
	if e.debt > 0 {
		v |= 1 << 26
	}
	v |= uint32(e.fifo.irqMode) << 30
	return v
}

// writeGXSTAT applies GXSTAT's writable bits: bit 15 set clears the matrix
// stack overflow latch, and bits 30-31 select the GXFIFO IRQ mode.
func (e *Engine) writeGXSTAT(val uint32) {
	if val&(1<<15) != 0 {
		e.geom.clearMatrixOverflow()
	}
	e.fifo.irqMode = IRQMode((val >> 30) & 3)
	e.fifo.checkFIFOIRQ()
}

// Run advances the command engine by cycles system-clock cycles, maintaining
// a cycle debt analogous to a CPU's. An empty PIPE must not leave debt to
// accumulate indefinitely waiting on a GXFIFO-empty IRQ that only fires
// once new commands arrive - doing so would starve whatever paces the
// emulation loop off this engine's debt, reproducing a bug in
// original_source/GPU3D.cpp. Idle time is discarded instead.
func (e *Engine) Run(cycles uint32) {
	e.debt += int64(cycles)
	for e.debt > 0 {
		entry, ok := e.fifo.readCommand()
		if !ok {
			e.debt = 0
			break
		}
		e.execute(entry)
		cost := int64(cmdNumCycles[entry.op])
		if cost == 0 {
			cost = 1
		}
		e.debt -= cost
	}
}

// execute dispatches one command to the geometry engine, handling the two
// opcodes (SWAP_BUFFERS and the test commands) that need orchestrator-level
// state beyond the geometry engine's own.
func (e *Engine) execute(entry cmdEntry) {
	switch entry.op {
	case OpSwapBuffers:
		e.geom.execute(entry.op, entry.params)
		e.rend.StartFrame(e.geom.takePolygons())
	case OpBoxTest, OpPosTest, OpVecTest:
		e.geom.execute(entry.op, entry.params)
		e.boxTestResult = boxTestPasses(entry.params)
	default:
		e.geom.execute(entry.op, entry.params)
	}
}

// boxTestPasses is a representative BOX_TEST evaluation: it makes no
// clip-volume test and reports true whenever the command carried at least
// three parameter words, which holds for every BOX_TEST and for no
// POS_TEST or VEC_TEST. Scoped down per
// DESIGN.md, since few titles depend on BOX_TEST's exact geometry.
func boxTestPasses(params []uint32) bool {
	return len(params) >= 3
}
