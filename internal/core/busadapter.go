package core

import (
	"github.com/intuitionamiga/ndscore/internal/arm"
	"github.com/intuitionamiga/ndscore/internal/bus"
	"github.com/intuitionamiga/ndscore/internal/gpu3d"
)

// cpuBus adapts one CPU's internal/bus.View (plain-value reads/writes) to
// arm.Bus's cycle-cost-returning contract: "Memory access: read8/16/32(addr),
// write8/16/32(addr, val), each returning a cycle cost determined by the
// region (ROM, main RAM, WRAM, TCM, I/O)." Costs below are representative
// round figures by region family, not a cycle-exact wait-state table -
// nothing this repo tests depends on exact bus timing, only on the
// interpreter's run-loop converging on its target slice.
type cpuBus struct {
	view *bus.View
	bios []byte

	gx      *gpu3d.Engine        // nil on the ARM7 side; the 3D command engine is ARM9-only
	gxDrain func(cycles uint32)  // pumps the rest of the system so a stalled GXFIFO write can drain
}

const (
	costFast = 1 // BIOS, main RAM, WRAM, I/O
	cost32   = 2 // 32-bit access to a 16-bit-wide memory (palette/OAM/VRAM)
	costCart = 8 // representative cart-bus wait state
)

func regionCost(addr uint32, width int) uint32 {
	switch addr >> 24 {
	case 0x05, 0x06, 0x07:
		if width == 4 {
			return cost32
		}
		return costFast
	case 0x08, 0x09:
		return costCart
	default:
		return costFast
	}
}

func (b *cpuBus) inBIOS(addr uint32) bool { return addr>>24 == 0 && int(addr) < len(b.bios) }

// gxFIFOLow/gxFIFOHigh and gxDirectLow/gxDirectHigh cover the two GXFIFO register ranges that can reject a write
// when full (the packed-command word and the direct per-opcode registers).
// GXSTAT and the edge/clear/fog registers outside this range never stall and
// are reached through the normal MapIO-registered handler instead.
const (
	gxFIFOLow, gxFIFOHigh     = 0x04000400, 0x04000404
	gxDirectLow, gxDirectHigh = 0x04000440, 0x040005CC
)

func (b *cpuBus) isGXStallAddr(addr uint32) bool {
	return b.gx != nil && ((addr >= gxFIFOLow && addr < gxFIFOHigh) || (addr >= gxDirectLow && addr < gxDirectHigh))
}

// maxGXStallRetries bounds how many times a write spins waiting for FIFO
// room before giving up; a real stall never returns control to the CPU, but
// nothing here can run the 3D engine forever without new commands feeding
// it, so this is the escape hatch for a pathologically wedged guest program.
const maxGXStallRetries = 4096

func (b *cpuBus) tryGXWrite(addr, val uint32) {
	for i := 0; i < maxGXStallRetries; i++ {
		if b.gx.TryWrite(addr, val) {
			return
		}
		b.gxDrain(16)
	}
}

func (b *cpuBus) Read8(addr uint32) (uint8, uint32) {
	if b.inBIOS(addr) {
		return b.bios[addr], costFast
	}
	return b.view.Read8(addr), regionCost(addr, 1)
}

func (b *cpuBus) Read16(addr uint32) (uint16, uint32) {
	if b.inBIOS(addr) {
		return uint16(b.bios[addr]) | uint16(b.bios[addr+1])<<8, costFast
	}
	return b.view.Read16(addr), regionCost(addr, 2)
}

func (b *cpuBus) Read32(addr uint32) (uint32, uint32) {
	if b.inBIOS(addr) {
		lo := uint32(b.bios[addr]) | uint32(b.bios[addr+1])<<8
		hi := uint32(b.bios[addr+2]) | uint32(b.bios[addr+3])<<8
		return lo | hi<<16, costFast
	}
	return b.view.Read32(addr), regionCost(addr, 4)
}

func (b *cpuBus) Write8(addr uint32, val uint8) uint32 {
	if b.isGXStallAddr(addr) {
		b.tryGXWrite(addr&^3, uint32(val))
		return costFast
	}
	b.view.Write8(addr, val)
	return regionCost(addr, 1)
}

func (b *cpuBus) Write16(addr uint32, val uint16) uint32 {
	if b.isGXStallAddr(addr) {
		b.tryGXWrite(addr&^3, uint32(val))
		return costFast
	}
	b.view.Write16(addr, val)
	return regionCost(addr, 2)
}

func (b *cpuBus) Write32(addr uint32, val uint32) uint32 {
	if b.isGXStallAddr(addr) {
		b.tryGXWrite(addr, val)
		return costFast
	}
	b.view.Write32(addr, val)
	return regionCost(addr, 4)
}

var _ arm.Bus = (*cpuBus)(nil)
