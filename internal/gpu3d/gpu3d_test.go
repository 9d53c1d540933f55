package gpu3d

import (
	"testing"

	"github.com/intuitionamiga/ndscore/internal/bus"
	"github.com/intuitionamiga/ndscore/internal/irqctl"
	"github.com/intuitionamiga/ndscore/internal/sched"
)

// TestPackedCommandWordDecomposesLosslessly exercises the FIFO's packed
// command decomposition: a packed word naming four opcodes (two of them
// zero-parameter, which must auto-chain within the same MMIO write that
// satisfies the opcode immediately before them) ends up as four distinct,
// correctly-ordered FIFO entries.
func TestPackedCommandWordDecomposesLosslessly(t *testing.T) {
	irq := irqctl.New()
	f := newFIFOState(irq)

	packed := uint32(OpMtxMode) | uint32(OpMtxPush)<<8 | uint32(OpMtxPop)<<16 | uint32(OpMtxIdentity)<<24
	if !f.submitWord(packed) {
		t.Fatal("expected first word of a fresh packed command to be accepted")
	}
	if !f.submitWord(2) { // MTX_MODE's one parameter
		t.Fatal("expected MTX_MODE's parameter word to be accepted")
	}
	if !f.submitWord(1) { // MTX_POP's one parameter; MTX_PUSH and MTX_IDENTITY auto-chain with zero params
		t.Fatal("expected MTX_POP's parameter word to be accepted")
	}

	level := f.fifo.level() + f.pipe.level()
	if level != 4 {
		t.Fatalf("expected 4 decomposed entries, got %d", level)
	}

	wantOps := []Opcode{OpMtxMode, OpMtxPush, OpMtxPop, OpMtxIdentity}
	for i, want := range wantOps {
		e, ok := f.readCommand()
		if !ok {
			t.Fatalf("entry %d: expected a command, FIFO/PIPE empty", i)
		}
		if e.op != want {
			t.Fatalf("entry %d: op = %#x, want %#x", i, e.op, want)
		}
	}
	if _, ok := f.readCommand(); ok {
		t.Fatal("expected exactly 4 entries, found a 5th")
	}
}

// TestFIFOStallsWhenFullInsteadOfDropping verifies that a full GXFIFO
// rejects the write (for the caller to stall and retry) rather than
// silently dropping it.
func TestFIFOStallsWhenFullInsteadOfDropping(t *testing.T) {
	irq := irqctl.New()
	f := newFIFOState(irq)

	// Fill the PIPE (4 entries) and the FIFO (256) with zero-param commands.
	for i := 0; i < pipeDepth+fifoDepth; i++ {
		if !f.writeCommand(cmdEntry{op: OpMtxPush}) {
			t.Fatalf("unexpected rejection filling slot %d", i)
		}
	}
	if f.writeCommand(cmdEntry{op: OpMtxPush}) {
		t.Fatal("expected writeCommand to report false once FIFO and PIPE are both full")
	}
}

// TestInterpolatorEqualWUsesExactLinearFastPath verifies that when both
// edge endpoints share the same clip-space W, the interpolator falls back
// to exact linear interpolation rather than the approximate
// perspective-correct formula.
func TestInterpolatorEqualWUsesExactLinearFastPath(t *testing.T) {
	var ip interpolator
	ip.setup(0, 64, 0x1000, 0x1000, 8)
	if !ip.linear {
		t.Fatal("expected the equal-W fast path to be selected")
	}
	for _, x := range []int32{0, 1, 16, 32, 63} {
		ip.at(x)
		got := ip.interpolate(x, 0, 64)
		if got != x {
			t.Fatalf("interpolate(%d) = %d, want %d (exact linear)", x, got, x)
		}
	}
}

// fakeTexMem satisfies TexMem with a flat zeroed backing store, enough to
// exercise the rasterizer/geometry wiring without real VRAM content.
type fakeTexMem struct{}

func (fakeTexMem) ReadTexture(addr uint32) uint8 { return 0 }
func (fakeTexMem) ReadTexPal(addr uint32) uint8  { return 0 }

// TestSwapBuffersHandsPolygonsToRenderer exercises the orchestrator's
// command dispatch end to end: submitting a single untextured triangle
// followed by SWAP_BUFFERS must produce a visible, non-clear-color pixel on
// the scanline it covers.
func TestSwapBuffersHandsPolygonsToRenderer(t *testing.T) {
	vram := bus.NewRouter()
	irq := irqctl.New()
	s := sched.New()
	e := New(vram, s, irq)
	defer e.Close()

	submit := func(op Opcode, params ...uint32) {
		e.execute(cmdEntry{op: op, params: params})
	}

	submit(OpColor, 0x7FFF) // full white
	submit(OpBeginVtxs, 0)  // triangles
	// 1.3.12 fixed-point coordinates (matOne == 4096 == 1.0); large enough
	// relative to w to cover a multi-pixel span near the viewport's center
	// once perspective-divided.
	submit(OpVtx16, packVtx16(-2000, -2000), uint32(uint16(0)))
	submit(OpVtx16, packVtx16(2000, -2000), uint32(uint16(0)))
	submit(OpVtx16, packVtx16(0, 3000), uint32(uint16(0)))
	submit(OpEndVtxs)
	submit(OpSwapBuffers, 0)

	line := e.GetLine(ScreenHeight / 2)
	found := false
	for _, px := range line {
		if px != [3]uint8{} {
			found = true
			break
		}
	}
	if !found {
		t.Fatal("expected the swapped-in triangle to shade at least one pixel on the middle scanline")
	}
}

func packVtx16(x, y int16) uint32 {
	return uint32(uint16(x)) | uint32(uint16(y))<<16
}
