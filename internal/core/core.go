// Package core wires every subsystem package behind the scheduling
// integration loop and the two CPUs' bus views: one place owns every
// component and the reset/lifecycle sequencing between them, generalizing
// _examples/IntuitionAmiga-IntuitionEngine/machine_bus.go's top-level
// Machine struct to the DS's two-CPU, two-bus-view shape.
package core

import (
	"fmt"

	"github.com/intuitionamiga/ndscore/internal/arm"
	"github.com/intuitionamiga/ndscore/internal/bus"
	"github.com/intuitionamiga/ndscore/internal/cart"
	"github.com/intuitionamiga/ndscore/internal/cheat"
	"github.com/intuitionamiga/ndscore/internal/corelog"
	"github.com/intuitionamiga/ndscore/internal/dma"
	"github.com/intuitionamiga/ndscore/internal/firmware"
	"github.com/intuitionamiga/ndscore/internal/gpu2d"
	"github.com/intuitionamiga/ndscore/internal/gpu3d"
	"github.com/intuitionamiga/ndscore/internal/ipc"
	"github.com/intuitionamiga/ndscore/internal/irqctl"
	"github.com/intuitionamiga/ndscore/internal/mathunit"
	"github.com/intuitionamiga/ndscore/internal/romfile"
	"github.com/intuitionamiga/ndscore/internal/rtc"
	"github.com/intuitionamiga/ndscore/internal/sched"
	"github.com/intuitionamiga/ndscore/internal/spi"
	"github.com/intuitionamiga/ndscore/internal/spu"
	"github.com/intuitionamiga/ndscore/internal/timer"
)

// Timing constants are expressed in the scheduler's clock unit (ARM7
// cycles; sched.go: "the single monotonic system clock (measured in ARM7
// cycles)"). They are representative round figures approximating the real
// console's ~59.8 Hz, 263-line frame - not a cycle-exact derivation, per
// this project's Non-goals around undefined-behavior cycle-exactness.
const (
	linesPerFrame  = 263
	visibleLines   = 192
	lineCycles     = 2130
	hblankAtCycles = 1606 // cycles into the line when HBlank begins
	sliceARM7      = 8   // "typ. 16 ARM9 cycles ~= 8 ARM7 cycles" per-slice interleave unit
)

// InitialTime seeds the RTC's calendar at reset, since the core itself is
// not time-of-day dependent afterward (now_ns() is documented as
// monotonic-only, throttling-purposed) - the host supplies a real
// wall-clock snapshot once, here, rather than the core deriving one.
type InitialTime struct {
	Year, Month, Day, DayOfWeek, Hour, Minute, Second int
}

// Config configures a fresh Core at construction time.
type Config struct {
	InitialTime InitialTime
	NowNS       func() int64 // monotonic clock, throttling only
	Log         func(level corelog.Level, msg string)
	SaveDirty   func(offset, length uint32)
}

// FrameResult is run_frame's output: the two LCDs' most recently composed
// frames and the audio samples produced while advancing.
type FrameResult struct {
	FramebufferTop [gpu2d.ScreenWidth * gpu2d.ScreenHeight]uint16
	FramebufferBot [gpu2d.ScreenWidth * gpu2d.ScreenHeight]uint16
	AudioLeft      []int16
	AudioRight     []int16
}

type dispStatus struct {
	vblankIRQ, hblankIRQ, vcountIRQ bool
	vcountTarget                    uint8
}

// Core is the top-level emulation engine: two ARM cores, the shared bus
// and VRAM router, both graphics engines, the audio mixer, and every
// supporting peripheral, sequenced by a single event scheduler.
type Core struct {
	cfg Config

	sys  *bus.System
	view9, view7 *bus.View
	bus9, bus7   *cpuBus

	cp15 *arm.CP15
	cpu9, cpu7 *arm.CPU

	sch       *sched.Scheduler
	irq9, irq7 *irqctl.Controller
	dma9, dma7 *dma.Engine
	timer9, timer7 *timer.Set

	ipcLink *ipc.Link
	cartIf  *cart.Interface
	spiBus  *spi.Bus
	power   *spi.PowerManagement
	fwDev   *spi.Firmware
	touch   *spi.Touchscreen
	clock   *rtc.Clock
	math    *mathunit.Unit

	engineA, engineB *gpu2d.Engine
	gx               *gpu3d.Engine
	spu              *spu.SPU
	cheats           *cheat.Engine

	rom     *romfile.Image
	fwImg   *firmware.Image
	bios9   []byte
	bios7   []byte

	keys    uint16 // KEYINPUT polarity: 0 = pressed
	powcnt1 uint16

	curLine int
	dispA, dispB dispStatus
	vblank, hblank bool

	front, back *[gpu2d.ScreenWidth * gpu2d.ScreenHeight]uint16
	frontB, backB *[gpu2d.ScreenWidth * gpu2d.ScreenHeight]uint16
}

// Init constructs a fresh Core, wiring every subsystem and sealing both
// CPUs' bus views. It does not load any ROM/BIOS/firmware image; call the
// Load* methods before Reset.
func Init(cfg Config) *Core {
	if cfg.Log != nil {
		corelog.SetSink(func(level corelog.Level, msg string) { cfg.Log(level, msg) })
	}

	c := &Core{cfg: cfg}
	c.sys = bus.NewSystem()
	c.view9 = bus.NewARM9View(c.sys)
	c.view7 = bus.NewARM7View(c.sys)
	c.cp15 = arm.NewCP15()

	c.sch = sched.New()
	c.irq9 = irqctl.New()
	c.irq7 = irqctl.New()

	c.dma9 = dma.New(c.view9, c.sch, c.irq9, [4]irqctl.Source{irqctl.DMA0, irqctl.DMA1, irqctl.DMA2, irqctl.DMA3}, 0)
	c.dma7 = dma.New(c.view7, c.sch, c.irq7, [4]irqctl.Source{irqctl.DMA0, irqctl.DMA1, irqctl.DMA2, irqctl.DMA3}, 4)
	c.timer9 = timer.New(c.sch, c.irq9, 0)
	c.timer7 = timer.New(c.sch, c.irq7, 4)

	c.ipcLink = ipc.New(c.irq9, c.irq7)
	c.clock = rtc.New(c.sch, c.irq7)
	c.power = spi.NewPowerManagement()
	c.touch = spi.NewTouchscreen()
	c.math = mathunit.New(c.sch)

	c.engineA = gpu2d.New(c.sys.VRAM, bus.WinABG, bus.WinAOBJ, c.sys.Palette[:0x200], c.sys.Palette[0x200:0x400], c.sys.OAM[:0x400])
	c.engineB = gpu2d.New(c.sys.VRAM, bus.WinBBG, bus.WinBOBJ, c.sys.Palette[0x400:0x600], c.sys.Palette[0x600:0x800], c.sys.OAM[0x400:0x800])
	c.gx = gpu3d.New(c.sys.VRAM, c.sch, c.irq9)
	c.spu = spu.New(c.view7, c.sch, 2048)
	c.cheats = cheat.New()

	c.bus9 = &cpuBus{view: c.view9, gx: c.gx, gxDrain: func(cycles uint32) { c.gx.Run(cycles) }}
	c.bus7 = &cpuBus{view: c.view7}
	c.cpu9 = arm.New(c.bus9, c.irq9, c.cp15)
	c.cpu7 = arm.New(c.bus7, c.irq7, nil)

	c.wireIO()

	c.view9.Seal()
	c.view7.Seal()

	c.front = new([gpu2d.ScreenWidth * gpu2d.ScreenHeight]uint16)
	c.back = new([gpu2d.ScreenWidth * gpu2d.ScreenHeight]uint16)
	c.frontB = new([gpu2d.ScreenWidth * gpu2d.ScreenHeight]uint16)
	c.backB = new([gpu2d.ScreenWidth * gpu2d.ScreenHeight]uint16)

	return c
}

// wireIO registers every peripheral's MMIO register range against the two
// CPU bus views. Cart, SPI, VRAMCNT/WRAMCNT, the math unit, and POWCNT1
// are ARM7-only or ARM9-only on real hardware; everything else is mapped
// identically on both views with per-CPU instances.
func (c *Core) wireIO() {
	// DISPSTAT/VCOUNT sit inside engine A's register block; the first
	// matching region wins, so they are mapped ahead of it.
	c.view9.MapIO(0x04000004, 4, &dispstatIO{core: c, st: &c.dispA})
	c.view9.MapIO(0x04000000, 0x58, &gpu2dIO{base: 0x04000000, eng: c.engineA})
	c.view9.MapIO(0x04001000, 0x58, &gpu2dIO{base: 0x04001000, eng: c.engineB})
	c.view9.MapIO(0x04000330, 0x04000604-0x04000330, c.gx)

	c.view9.MapIO(0x040000B0, 0x30, &dmaIO{eng: c.dma9})
	c.view7.MapIO(0x040000B0, 0x30, &dmaIO{eng: c.dma7})
	c.view9.MapIO(0x04000100, 0x10, &timerIO{set: c.timer9})
	c.view7.MapIO(0x04000100, 0x10, &timerIO{set: c.timer7})

	c.view9.MapIO(0x04000130, 4, &keypadIO{keys: &c.keys})
	c.view7.MapIO(0x04000130, 4, &keypadIO{keys: &c.keys})

	c.view9.MapIO(0x04000180, 0x10, &ipcIO{link: c.ipcLink, side: ipc.SideARM9})
	c.view7.MapIO(0x04000180, 0x10, &ipcIO{link: c.ipcLink, side: ipc.SideARM7})
	c.view9.MapIO(0x04100000, 4, &ipcIO{link: c.ipcLink, side: ipc.SideARM9})
	c.view7.MapIO(0x04100000, 4, &ipcIO{link: c.ipcLink, side: ipc.SideARM7})

	c.view9.MapIO(0x04000208, 4, &irqIO{ctl: c.irq9})
	c.view9.MapIO(0x04000210, 8, &irqIO{ctl: c.irq9})
	c.view7.MapIO(0x04000208, 4, &irqIO{ctl: c.irq7})
	c.view7.MapIO(0x04000210, 8, &irqIO{ctl: c.irq7})

	c.view9.MapIO(0x04000240, 10, &vramcntIO{router: c.sys.VRAM, sys: c.sys})
	c.view9.MapIO(0x04000280, 0x40, &mathIO{u: c.math})
	c.view9.MapIO(0x04000304, 4, &powcntIO{core: c})

	c.view7.MapIO(0x04000004, 4, &dispstatIO{core: c, st: &c.dispB})

	cio := &cartIO{core: c}
	c.view7.MapIO(0x040001A0, 0x10, cio)
	c.view7.MapIO(0x04100010, 4, cio)
	c.view7.MapIO(0x040001C0, 4, &spiIO{core: c})
}

// LoadROM installs a cartridge ROM image and (re)builds the cart
// interface around it and the already-loaded backup, if any.
func (c *Core) LoadROM(data []byte) error {
	img, err := romfile.LoadBytes(data)
	if err != nil {
		return fmt.Errorf("load rom: %w", err)
	}
	c.rom = img
	c.rebuildCart()
	return nil
}

// LoadBIOS9/LoadBIOS7 install the ARM9/ARM7 BIOS images used for the
// power-on boot path (as opposed to direct boot, which skips them).
func (c *Core) LoadBIOS9(data []byte) error {
	if len(data) != 4*1024 {
		return fmt.Errorf("load bios9: expected 4 KiB, got %d bytes", len(data))
	}
	c.bios9 = data
	c.bus9.bios = data
	return nil
}

func (c *Core) LoadBIOS7(data []byte) error {
	if len(data) != 16*1024 {
		return fmt.Errorf("load bios7: expected 16 KiB, got %d bytes", len(data))
	}
	c.bios7 = data
	c.bus7.bios = data
	return nil
}

// LoadFirmware installs the firmware image and wires its SPI-flash device
// and derived user settings.
func (c *Core) LoadFirmware(data []byte) error {
	img, err := firmware.Load(data)
	if err != nil {
		return fmt.Errorf("load firmware: %w", err)
	}
	c.fwImg = img
	c.fwDev = spi.NewFirmware(data)
	c.spiBus = spi.New(c.power, c.fwDev, c.touch, c.clock)
	return nil
}

// LoadSave installs a save-memory image, auto-detecting its backup type
// from its length, and rebuilds the cart interface around it.
func (c *Core) LoadSave(data []byte) error {
	b, err := cart.NewBackup(data)
	if err != nil {
		return fmt.Errorf("load save: %w", err)
	}
	c.rebuildCartWithBackup(b)
	return nil
}

func (c *Core) rebuildCart() {
	var backup *cart.Backup
	if c.cartIf != nil {
		backup = c.cartIf.Backup()
	}
	c.rebuildCartWithBackup(backup)
}

func (c *Core) rebuildCartWithBackup(backup *cart.Backup) {
	if c.rom == nil {
		return
	}
	c.cartIf = cart.New(c.rom, backup, c.sch, c.irq7)
}

// SetSaveDirtyCallback installs the callback the host drains dirty save
// ranges through once per frame (see RunFrame).
func (c *Core) SetSaveDirtyCallback(fn func(offset, length uint32)) { c.cfg.SaveDirty = fn }

// Reset boots the console: clears every subsystem's register state, seeds
// the RTC's calendar, and starts execution either at the loaded BIOS
// images' reset vectors or, if no BIOS is loaded, directly at the
// cartridge's declared entry points (direct boot).
func (c *Core) Reset() {
	corelog.ResetDedup()

	c.irq9.Reset()
	c.irq7.Reset()
	c.dma9.Reset()
	c.dma7.Reset()
	c.timer9.Reset()
	c.timer7.Reset()
	c.ipcLink.Reset()
	c.math.Reset()
	c.gx.Reset()
	c.spu.Reset()
	c.engineA.Reset()
	c.engineB.Reset()
	if c.cartIf != nil {
		c.cartIf.Reset()
	}

	t := c.cfg.InitialTime
	c.clock.Seed(t.Year, t.Month, t.Day, t.DayOfWeek, t.Hour, t.Minute, t.Second)

	c.keys = 0x03FF
	c.curLine = 0
	c.vblank, c.hblank = false, false

	c.cpu9.Reset()
	c.cpu7.Reset()
	if c.rom != nil && (c.bios9 == nil || c.bios7 == nil) {
		c.cpu9.SetDirectBootState(c.rom.Header.ARM9.EntryAddr)
		c.cpu7.SetDirectBootState(c.rom.Header.ARM7.EntryAddr)
	}

	c.armScanline(0)
}

// Close releases the 3D rasterizer's worker goroutine and, if mapped, the
// cartridge ROM image's memory mapping.
func (c *Core) Close() {
	c.gx.Close()
	if c.rom != nil {
		_ = c.rom.Close()
	}
}

// advance drives the two CPUs and the 3D command engine forward by
// cycles sched-clock units (ARM7 cycles), in small interleaved slices
// rather than one large jump, so a GXFIFO write's stall-and-retry inside
// busadapter.go observes the 3D engine making steady progress.
func (c *Core) advance(cycles uint32) {
	for cycles > 0 {
		n := uint32(sliceARM7)
		if n > cycles {
			n = cycles
		}
		c.cpu7.AddCycles(int64(n))
		c.cpu7.Run()
		c.cpu9.AddCycles(int64(n) * 2)
		c.cpu9.Run()
		c.gx.Run(n * 2)
		cycles -= n
	}
}

// armScanline schedules the event that starts line, per the scanline
// step of the scheduling integration algorithm: render the line that
// just completed, fire VCount-match IRQs, and arm the matching HBlank
// event.
func (c *Core) armScanline(line int) {
	c.sch.Schedule(sched.KindScanline, 0, uint32(line), func(param uint32) {
		c.onScanline(int(param))
	})
}

func (c *Core) onScanline(line int) {
	c.curLine = line

	if line == 0 {
		c.vblank = false
	}
	if line == visibleLines {
		c.vblank = true
		c.dma9.Trigger(dma.StartVBlank)
		c.dma7.Trigger(dma.StartVBlank)
		if c.dispA.vblankIRQ {
			c.irq9.Raise(irqctl.VBlank)
		}
		if c.dispB.vblankIRQ {
			c.irq7.Raise(irqctl.VBlank)
		}
	}
	if line < visibleLines {
		*c.back = c.renderLine(c.engineA, line, *c.back)
		*c.backB = c.renderLine(c.engineB, line, *c.backB)
	}

	if uint8(line) == c.dispA.vcountTarget && c.dispA.vcountIRQ {
		c.irq9.Raise(irqctl.VCount)
	}
	if uint8(line) == c.dispB.vcountTarget && c.dispB.vcountIRQ {
		c.irq7.Raise(irqctl.VCount)
	}

	c.hblank = false
	c.sch.Schedule(sched.KindHBlank, hblankAtCycles, uint32(line), func(param uint32) {
		c.onHBlank(int(param))
	})
}

func (c *Core) onHBlank(line int) {
	c.hblank = true
	if line < visibleLines {
		c.dma9.Trigger(dma.StartHBlank)
		c.dma7.Trigger(dma.StartHBlank)
	}
	if c.dispA.hblankIRQ {
		c.irq9.Raise(irqctl.HBlank)
	}
	if c.dispB.hblankIRQ {
		c.irq7.Raise(irqctl.HBlank)
	}

	next := (line + 1) % linesPerFrame
	c.sch.Schedule(sched.KindScanline, lineCycles-hblankAtCycles, uint32(next), func(param uint32) {
		c.onScanline(int(param))
	})
}

func (c *Core) renderLine(eng *gpu2d.Engine, line int, buf [gpu2d.ScreenWidth * gpu2d.ScreenHeight]uint16) [gpu2d.ScreenWidth * gpu2d.ScreenHeight]uint16 {
	row := eng.RenderScanline(line)
	for x, px := range row {
		buf[line*gpu2d.ScreenWidth+x] = uint16(px)
	}
	return buf
}

// RunFrame advances the emulated machine by exactly one frame, alternating
// CPU/3D-engine execution slices with the scheduler's pending events
// (scanline, hblank, timers, DMA, cart, math, IPC, RTC), per the
// scheduling integration algorithm: CPUs run in slices between events; an
// event's callback fires exactly at its scheduled time.
func (c *Core) RunFrame() FrameResult {
	target := c.sch.Now() + uint64(linesPerFrame)*lineCycles
	for c.sch.Now() < target {
		deadline, ok := c.sch.NextDeadline()
		if !ok || deadline > target {
			deadline = target
		}
		if deadline > c.sch.Now() {
			c.advance(uint32(deadline - c.sch.Now()))
		}
		c.sch.RunUntil(deadline)
	}

	c.cheats.Apply(cheatBus{c.view9})

	c.front, c.back = c.back, c.front
	c.frontB, c.backB = c.backB, c.frontB

	var res FrameResult
	res.FramebufferTop = *c.front
	res.FramebufferBot = *c.frontB
	for {
		l, r, ok := c.spu.Output().Pop()
		if !ok {
			break
		}
		res.AudioLeft = append(res.AudioLeft, l)
		res.AudioRight = append(res.AudioRight, r)
	}

	if c.cartIf != nil && c.cartIf.Backup() != nil && c.cfg.SaveDirty != nil {
		for _, d := range c.cartIf.Backup().DrainDirty() {
			c.cfg.SaveDirty(d.Offset, d.Len)
		}
	}

	return res
}

// cheatBus adapts one CPU's bus.View to cheat.Engine's minimal Bus
// requirement.
type cheatBus struct{ v *bus.View }

func (b cheatBus) Read32(addr uint32) uint32          { return b.v.Read32(addr) }
func (b cheatBus) Write32(addr uint32, val uint32)    { b.v.Write32(addr, val) }
func (b cheatBus) Write16(addr uint32, val uint16)    { b.v.Write16(addr, val) }
func (b cheatBus) Write8(addr uint32, val uint8)      { b.v.Write8(addr, val) }

// SetKeyState applies the host's button bitmask, matching KEYINPUT's
// active-low polarity (0 = pressed) over the low 10 bits.
func (c *Core) SetKeyState(mask uint16) { c.keys = ^mask & 0x3FF }

// Touch and ReleaseTouch forward to the touch-screen SPI device.
func (c *Core) Touch(x, y uint16)  { c.touch.Touch(x, y) }
func (c *Core) ReleaseTouch()      { c.touch.Release() }

// MMIORead and MMIOWrite give a debugger direct access to the ARM9 bus
// view's address space, bypassing the CPU.
func (c *Core) MMIORead(addr uint32, width int) uint32 {
	switch width {
	case 1:
		return uint32(c.view9.Read8(addr))
	case 2:
		return uint32(c.view9.Read16(addr))
	default:
		return c.view9.Read32(addr)
	}
}

func (c *Core) MMIOWrite(addr uint32, width int, val uint32) {
	switch width {
	case 1:
		c.view9.Write8(addr, uint8(val))
	case 2:
		c.view9.Write16(addr, uint16(val))
	default:
		c.view9.Write32(addr, val)
	}
}
