package sched

// Canonical event kinds shared across subsystems. Centralizing these here
// (rather than letting each package define its own Kind constants) avoids
// an import cycle: dma, timer, gpu2d, cart and spu all need to schedule
// events but must not import one another.
const (
	KindScanline Kind = iota
	KindHBlank
	KindVBlankEnd // line 262: clears VBlank, wraps to line 0
	KindTimerOverflow
	KindDMAComplete
	KindGX3DFIFOIRQ
	KindGX3DRun // 3D command-engine cycle-debt tick, interleaved with CPU slices
	KindCartTransferDone
	KindSPUMixTick
	KindIPCSyncIRQ
	KindRTCTick
	KindCheatApply // cheat codes re-poke their target addresses once per frame rather than patching memory permanently
	KindMathDivDone
	KindMathSqrtDone
)
