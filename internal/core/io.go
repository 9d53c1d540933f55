package core

import (
	"github.com/intuitionamiga/ndscore/internal/bus"
	"github.com/intuitionamiga/ndscore/internal/dma"
	"github.com/intuitionamiga/ndscore/internal/gpu2d"
	"github.com/intuitionamiga/ndscore/internal/ipc"
	"github.com/intuitionamiga/ndscore/internal/irqctl"
	"github.com/intuitionamiga/ndscore/internal/mathunit"
	"github.com/intuitionamiga/ndscore/internal/spi"
	"github.com/intuitionamiga/ndscore/internal/timer"
)

// This file adapts every peripheral package's typed API to
// internal/bus.IOHandler's raw (addr, width, val) register surface. Most
// registers here are treated as their natural 16- or 32-bit width
// regardless of the access width the guest actually used - real hardware
// supports narrower partial-register writes, but nothing this repo tests
// exercises that, and the peripheral packages themselves only expose
// whole-field setters, so narrower writes round-trip through the full
// value.

// dmaIO exposes one CPU's four-channel dma.Engine over DMA0SAD..DMA3CNT
// (0x040000B0-0x040000DF), 12 bytes per channel: SAD, DAD, word
// count/control packed into CNT_L (16 bits) and CNT_H (16 bits).
type dmaIO struct{ eng *dma.Engine }

func (h *dmaIO) chanOf(addr uint32) (int, uint32) {
	rel := addr - 0x040000B0
	i := int(rel / 12)
	return i, rel % 12
}

func (h *dmaIO) HandleRead(addr uint32, width int) uint32 {
	i, off := h.chanOf(addr)
	if i < 0 || i > 3 {
		return 0
	}
	c := h.eng.Channel(i)
	switch {
	case off == 0x08:
		if width == 4 {
			return uint32(c.WordCount)&0x1FFFFF | h.packControl(c)<<16
		}
		return uint32(c.WordCount) & 0xFFFF
	case off == 0x0A:
		return h.packControl(c)
	}
	return 0
}

func (h *dmaIO) packControl(c dma.Channel) uint32 {
	var v uint32
	v |= uint32(c.DstMode) << 5
	v |= uint32(c.SrcMode) << 7
	if c.Word32 {
		v |= 1 << 10
	}
	if c.Repeat {
		v |= 1 << 9
	}
	v |= uint32(c.Start) << 11
	if c.IRQEnable {
		v |= 1 << 14
	}
	if c.Enabled {
		v |= 1 << 15
	}
	return v
}

func (h *dmaIO) HandleWrite(addr uint32, width int, val uint32) {
	i, off := h.chanOf(addr)
	if i < 0 || i > 3 {
		return
	}
	c := h.eng.Channel(i)
	switch {
	case off == 0x00:
		c.SAD = val
	case off == 0x04:
		c.DAD = val
	case off == 0x08:
		if width == 4 {
			c.WordCount = val & 0x1FFFFF
			h.unpackControl(&c, uint16(val>>16))
		} else {
			c.WordCount = (c.WordCount &^ 0xFFFF) | val&0xFFFF
		}
	case off == 0x0A:
		h.unpackControl(&c, uint16(val))
	default:
		return
	}
	h.eng.WriteChannel(i, c)
}

func (h *dmaIO) unpackControl(c *dma.Channel, v uint16) {
	c.DstMode = dma.AddrMode((v >> 5) & 3)
	c.SrcMode = dma.AddrMode((v >> 7) & 3)
	c.Word32 = v&(1<<10) != 0
	c.Repeat = v&(1<<9) != 0
	c.Start = dma.StartCondition((v >> 11) & 7)
	c.IRQEnable = v&(1<<14) != 0
	c.Enabled = v&(1<<15) != 0
}

// timerIO exposes one CPU's timer.Set over TM0CNT_L..TM3CNT_H
// (0x04000100-0x0400010F), 4 bytes per channel.
type timerIO struct{ set *timer.Set }

func (h *timerIO) HandleRead(addr uint32, width int) uint32 {
	rel := addr - 0x04000100
	i := int(rel / 4)
	if i < 0 || i > 3 {
		return 0
	}
	if rel%4 < 2 {
		return uint32(h.set.Read(i))
	}
	return 0 // control is write-only in this model; guests read back via the channel's last-written reload where needed
}

func (h *timerIO) HandleWrite(addr uint32, width int, val uint32) {
	rel := addr - 0x04000100
	i := int(rel / 4)
	if i < 0 || i > 3 {
		return
	}
	if rel%4 < 2 {
		h.set.WriteReload(i, uint16(val))
		return
	}
	h.set.WriteControl(i, timer.Control{
		Prescaler: uint8(val & 3),
		Cascade:   val&(1<<2) != 0,
		IRQEnable: val&(1<<6) != 0,
		Enable:    val&(1<<7) != 0,
	})
}

// irqIO exposes one CPU's irqctl.Controller over IME (0x04000208), IE
// (0x04000210) and IF (0x04000214).
type irqIO struct{ ctl *irqctl.Controller }

func (h *irqIO) HandleRead(addr uint32, width int) uint32 {
	switch addr {
	case 0x04000208:
		if h.ctl.IME() {
			return 1
		}
		return 0
	case 0x04000210:
		return h.ctl.IE()
	case 0x04000214:
		return h.ctl.IF()
	}
	return 0
}

func (h *irqIO) HandleWrite(addr uint32, width int, val uint32) {
	switch addr {
	case 0x04000208:
		h.ctl.SetIME(val&1 != 0)
	case 0x04000210:
		h.ctl.SetIE(val)
	case 0x04000214:
		h.ctl.WriteIF(val)
	}
}

// ipcIO exposes ipc.Link over IPCSYNC (0x04000180), IPCFIFOCNT
// (0x04000184), IPCFIFOSEND (0x04000188) and, at the real FIFO-receive
// address (0x04100000), the receive port.
type ipcIO struct {
	link *ipc.Link
	side ipc.Side
}

func (h *ipcIO) HandleRead(addr uint32, width int) uint32 {
	switch addr {
	case 0x04000180:
		st := h.link.ReadStatus(h.side)
		v := uint32(h.link.ReadSync(h.side))
		if st.SendEmpty {
			v |= 1 << 8
		}
		if st.SendFull {
			v |= 1 << 9
		}
		if st.RecvEmpty {
			v |= 1 << 10
		}
		if st.RecvFull {
			v |= 1 << 11
		}
		if st.Error {
			v |= 1 << 14
		}
		return v
	case 0x04100000:
		return h.link.Recv(h.side)
	}
	return 0
}

func (h *ipcIO) HandleWrite(addr uint32, width int, val uint32) {
	switch addr {
	case 0x04000180:
		h.link.SetIRQOnInput(h.side, val&(1<<14) != 0)
		h.link.WriteSync(h.side, uint8(val&0xF), val&(1<<13) != 0)
	case 0x04000184:
		if val&(1<<3) != 0 {
			h.link.FlushSend(h.side)
		}
		if val&(1<<14) != 0 {
			h.link.ClearError(h.side)
		}
	case 0x04000188:
		h.link.Send(h.side, val)
	}
}

// cartIO exposes cart.Interface over AUXSPICNT/ROMCTRL/the 8-byte command
// register (0x040001A0-0x040001AF) and, at the real cart-data-port
// address (0x04100010), streamed read words.
// cartIO holds *Core rather than *cart.Interface directly: the cart
// interface (and, below, the SPI bus) isn't constructed until LoadROM/
// LoadFirmware run, which happens after the views are sealed, so the
// handler must resolve the live pointer on every access instead of being
// re-registered.
type cartIO struct {
	core *Core
	cmd  [8]byte
}

func (h *cartIO) HandleRead(addr uint32, width int) uint32 {
	if addr == 0x04100010 && h.core.cartIf != nil {
		return h.core.cartIf.ReadDataWord()
	}
	return 0
}

func (h *cartIO) HandleWrite(addr uint32, width int, val uint32) {
	if h.core.cartIf == nil {
		return
	}
	switch {
	case addr >= 0x040001A8 && addr < 0x040001B0:
		off := addr - 0x040001A8
		for i := uint32(0); i < uint32(width) && off+i < 8; i++ {
			h.cmd[off+i] = uint8(val >> (8 * i))
		}
	case addr == 0x040001A4: // ROMCTRL: bit 31 set starts the command held in h.cmd
		if val&(1<<31) != 0 {
			if h.cmd[0] == 0x3C {
				_ = h.core.cartIf.EngageKey1(h.core.bios7)
				return
			}
			param := uint32(h.cmd[1])<<24 | uint32(h.cmd[2])<<16 | uint32(h.cmd[3])<<8 | uint32(h.cmd[4])
			h.core.cartIf.StartCommand(h.cmd[0], param)
		}
	}
}

// spiIO exposes spi.Bus over SPICNT (0x040001C0) and SPIDATA (0x040001C2).
// Like cartIO, it resolves Core.spiBus dynamically since the bus isn't
// built until LoadFirmware runs.
type spiIO struct{ core *Core }

func (h *spiIO) HandleRead(addr uint32, width int) uint32 {
	if addr == 0x040001C2 && h.core.spiBus != nil {
		return uint32(h.core.spiBus.Transfer(0xFF))
	}
	return 0
}

func (h *spiIO) HandleWrite(addr uint32, width int, val uint32) {
	if h.core.spiBus == nil {
		return
	}
	switch addr {
	case 0x040001C0:
		h.core.spiBus.SelectDevice(spi.Device((val >> 8) & 3))
		if val&(1<<11) != 0 {
			h.core.spiBus.BeginTransaction()
		} else {
			h.core.spiBus.EndTransaction()
		}
	case 0x040001C2:
		h.core.spiBus.Transfer(uint8(val))
	}
}

// mathIO exposes mathunit.Unit over DIVCNT/DIV_NUMER/DIV_DENOM/DIV_RESULT/
// DIVREM_RESULT/SQRTCNT/SQRT_RESULT/SQRT_PARAM (0x04000280-0x040002BF).
// Writing the control register is what latches the operands already
// written to NUMER/DENOM/PARAM and starts the operation, matching real
// hardware's trigger-on-control-write behavior.
type mathIO struct {
	u            *mathunit.Unit
	numer, denom int64
	param        uint64
	mode         mathunit.DivMode
}

func (h *mathIO) HandleRead(addr uint32, width int) uint32 {
	switch {
	case addr == 0x04000280:
		v := uint32(h.mode)
		if h.u.DivBusy() {
			v |= 1 << 15
		}
		if h.u.DivByZero() {
			v |= 1 << 14
		}
		return v
	case addr >= 0x040002A0 && addr < 0x040002A8:
		return uint32(uint64(h.u.DivQuotient()) >> (8 * (addr - 0x040002A0)))
	case addr >= 0x040002A8 && addr < 0x040002B0:
		return uint32(uint64(h.u.DivRemainder()) >> (8 * (addr - 0x040002A8)))
	case addr == 0x040002B0:
		v := uint32(0)
		if h.u.SqrtBusy() {
			v |= 1 << 15
		}
		return v
	case addr == 0x040002B4:
		return h.u.SqrtResult()
	}
	return 0
}

func (h *mathIO) HandleWrite(addr uint32, width int, val uint32) {
	switch {
	case addr >= 0x04000290 && addr < 0x04000298:
		h.writeField(&h.numer, addr-0x04000290, val, width)
	case addr >= 0x04000298 && addr < 0x040002A0:
		h.writeField(&h.denom, addr-0x04000298, val, width)
	case addr == 0x04000280:
		h.mode = mathunit.DivMode(val & 3)
		h.u.StartDivide(h.mode, h.numer, h.denom)
	case addr >= 0x040002B8 && addr < 0x040002C0:
		var p int64
		h.writeField(&p, addr-0x040002B8, val, width)
		h.param = uint64(p)
	case addr == 0x040002B0:
		h.u.StartSqrt(h.param)
	}
}

func (h *mathIO) writeField(dst *int64, byteOff uint32, val uint32, width int) {
	v := uint64(*dst)
	for i := 0; i < width; i++ {
		shift := 8 * (byteOff + uint32(i))
		if shift >= 64 {
			break
		}
		v &^= 0xFF << shift
		v |= uint64(uint8(val>>(8*i))) << shift
	}
	*dst = int64(v)
}

// keypadIO exposes the shared KEYINPUT register (0x04000130); both CPU
// views map it to the same Core.keys field.
type keypadIO struct{ keys *uint16 }

func (h *keypadIO) HandleRead(addr uint32, width int) uint32 {
	if addr == 0x04000130 {
		return uint32(*h.keys)
	}
	return 0
}

func (h *keypadIO) HandleWrite(addr uint32, width int, val uint32) {}

// gpu2dIO exposes one gpu2d.Engine over its DISPCNT..BLDY register block,
// based at 0x04000000 for engine A and 0x04001000 for engine B.
type gpu2dIO struct {
	base uint32
	eng  *gpu2d.Engine
}

func (h *gpu2dIO) HandleRead(addr uint32, width int) uint32 {
	off := addr - h.base
	switch {
	case off == 0x00:
		return h.packDispCnt()
	case off >= 0x08 && off < 0x10:
		i := int((off - 0x08) / 2)
		return uint32(h.packBgCnt(h.eng.Bg[i]))
	}
	return 0
}

func (h *gpu2dIO) packDispCnt() uint32 {
	d := h.eng.Disp
	var v uint32
	v |= uint32(d.BGMode)
	if d.BG0Is3D {
		v |= 1 << 3
	}
	if d.TileObjMapping1D {
		v |= 1 << 4
	}
	if d.BitmapObjMapping1D {
		v |= 1 << 6
	}
	if d.ForceBlank {
		v |= 1 << 7
	}
	for i, on := range d.ScreenDisplayBG {
		if on {
			v |= 1 << (8 + i)
		}
	}
	if d.ScreenDisplayOBJ {
		v |= 1 << 12
	}
	if d.Win0Display {
		v |= 1 << 13
	}
	if d.Win1Display {
		v |= 1 << 14
	}
	if d.WinOBJDisplay {
		v |= 1 << 15
	}
	v |= uint32(d.DisplayMode) << 16
	v |= uint32(d.VRAMBlock) << 18
	return v
}

func (h *gpu2dIO) unpackDispCnt(v uint32) gpu2d.DispCnt {
	var d gpu2d.DispCnt
	d.BGMode = uint8(v & 7)
	d.BG0Is3D = v&(1<<3) != 0
	d.TileObjMapping1D = v&(1<<4) != 0
	d.BitmapObjMapping1D = v&(1<<6) != 0
	d.ForceBlank = v&(1<<7) != 0
	for i := range d.ScreenDisplayBG {
		d.ScreenDisplayBG[i] = v&(1<<(8+i)) != 0
	}
	d.ScreenDisplayOBJ = v&(1<<12) != 0
	d.Win0Display = v&(1<<13) != 0
	d.Win1Display = v&(1<<14) != 0
	d.WinOBJDisplay = v&(1<<15) != 0
	d.DisplayMode = uint8((v >> 16) & 3)
	d.VRAMBlock = uint8((v >> 18) & 3)
	return d
}

func (h *gpu2dIO) packBgCnt(c gpu2d.BgCnt) uint16 {
	var v uint16
	v |= uint16(c.Priority)
	v |= uint16(c.CharBaseBlock) << 2
	if c.Mosaic {
		v |= 1 << 6
	}
	if c.Palette256 {
		v |= 1 << 7
	}
	v |= uint16(c.ScreenBaseBlock) << 8
	if c.DisplayAreaOverflow {
		v |= 1 << 13
	}
	v |= uint16(c.ScreenSize) << 14
	return v
}

func (h *gpu2dIO) unpackBgCnt(v uint16) gpu2d.BgCnt {
	return gpu2d.BgCnt{
		Priority:            uint8(v & 3),
		CharBaseBlock:       uint8((v >> 2) & 0xF),
		Mosaic:              v&(1<<6) != 0,
		Palette256:          v&(1<<7) != 0,
		ScreenBaseBlock:     uint8((v >> 8) & 0x1F),
		DisplayAreaOverflow: v&(1<<13) != 0,
		ScreenSize:          uint8((v >> 14) & 3),
	}
}

func (h *gpu2dIO) HandleWrite(addr uint32, width int, val uint32) {
	off := addr - h.base
	switch {
	case off == 0x00:
		h.eng.Disp = h.unpackDispCnt(val)
	case off >= 0x08 && off < 0x10:
		i := int((off - 0x08) / 2)
		h.eng.Bg[i] = h.unpackBgCnt(uint16(val))
	case off >= 0x10 && off < 0x18:
		i := int((off - 0x10) / 4)
		if (off-0x10)%4 == 0 {
			h.eng.HOfs[i] = uint16(val) & 0x1FF
		} else {
			h.eng.VOfs[i] = uint16(val) & 0x1FF
		}
	case off >= 0x20 && off < 0x40:
		h.writeAffine(off, val, width)
	case off >= 0x40 && off < 0x42:
		h.eng.Win0 = unpackWinH(h.eng.Win0, val)
	case off >= 0x42 && off < 0x44:
		h.eng.Win1 = unpackWinH(h.eng.Win1, val)
	case off >= 0x44 && off < 0x46:
		h.eng.SetWindowY(0, uint8(val>>8), uint8(val))
	case off >= 0x46 && off < 0x48:
		h.eng.SetWindowY(1, uint8(val>>8), uint8(val))
	case off == 0x48:
		h.eng.WinIn[0], h.eng.WinIn[1] = unpackWinCnt(uint8(val)), unpackWinCnt(uint8(val>>8))
	case off == 0x4A:
		h.eng.WinOut, h.eng.WinObj = unpackWinCnt(uint8(val)), unpackWinCnt(uint8(val>>8))
	case off == 0x4C:
		h.eng.MosaicReg = gpu2d.Mosaic{
			BGH: uint8(val) & 0xF, BGV: uint8(val>>4) & 0xF,
			OBJH: uint8(val>>8) & 0xF, OBJV: uint8(val>>12) & 0xF,
		}
	case off == 0x50:
		h.eng.Blend = unpackBldCnt(uint16(val))
	case off == 0x52:
		h.eng.EVA, h.eng.EVB = uint8(val&0x1F), uint8((val>>8)&0x1F)
	case off == 0x54:
		h.eng.EVY = uint8(val & 0x1F)
	}
}

// writeAffine applies one 16-bit PA/PB/PC/PD or 32-bit X/Y write within
// BG2's (0x20-0x2F) or BG3's (0x30-0x3F) affine register block.
func (h *gpu2dIO) writeAffine(off uint32, val uint32, width int) {
	bg := 0
	if off >= 0x30 {
		bg = 1
		off -= 0x30
	} else {
		off -= 0x20
	}
	a := &h.eng.Affine[bg]
	switch {
	case off == 0x00:
		a.PA = int16(val)
	case off == 0x02:
		a.PB = int16(val)
	case off == 0x04:
		a.PC = int16(val)
	case off == 0x06:
		a.PD = int16(val)
	case off == 0x08:
		a.RefX = int32(val)
	case off == 0x0C:
		a.RefY = int32(val)
	}
}

func unpackWinH(w gpu2d.WindowRect, val uint32) gpu2d.WindowRect {
	w.X2, w.X1 = uint8(val), uint8(val>>8)
	return w
}

func unpackWinCnt(v uint8) gpu2d.WindowCnt {
	var c gpu2d.WindowCnt
	for i := range c.BGEnable {
		c.BGEnable[i] = v&(1<<i) != 0
	}
	c.OBJEnable = v&(1<<4) != 0
	c.EffectEnable = v&(1<<5) != 0
	return c
}

func unpackBldCnt(v uint16) gpu2d.BlendCnt {
	var c gpu2d.BlendCnt
	for i := range c.TargetA {
		c.TargetA[i] = v&(1<<i) != 0
	}
	c.OBJA = v&(1<<4) != 0
	c.BackdropA = v&(1<<5) != 0
	c.Mode = gpu2d.BlendMode((v >> 6) & 3)
	for i := range c.TargetB {
		c.TargetB[i] = v&(1<<(8+i)) != 0
	}
	c.OBJB = v&(1<<12) != 0
	c.BackdropB = v&(1<<13) != 0
	return c
}

// vramcntIO exposes the nine VRAMCNT bank-control bytes and WRAMCNT
// (0x04000240-0x04000249) over bus.Router.MapVRAM and bus.System's shared
// WRAM split, per the real register layout (banks A-G, then WRAMCNT, then
// banks H-I).
type vramcntIO struct {
	router *bus.Router
	sys    *bus.System
}

var vramcntBankOrder = [9]bus.BankID{
	bus.BankA, bus.BankB, bus.BankC, bus.BankD, bus.BankE, bus.BankF, bus.BankG,
	// index 7 is WRAMCNT, not a bank; handled separately below
	bus.BankH, bus.BankI,
}

func (h *vramcntIO) HandleRead(addr uint32, width int) uint32 {
	off := addr - 0x04000240
	if off == 7 {
		return 0 // WRAMCNT read-back not modeled; write-only from the core's perspective
	}
	bank := vramcntBankOrder[bankIndexForOffset(off)]
	c := h.router.BankCnt(bank)
	var v uint32
	v |= uint32(c.Ofs) & 3
	v |= uint32(c.MST&3) << 2
	if c.Enable {
		v |= 1 << 7
	}
	return v
}

func bankIndexForOffset(off uint32) int {
	if off < 7 {
		return int(off)
	}
	return int(off) - 1 // skip WRAMCNT's slot at index 7
}

func (h *vramcntIO) HandleWrite(addr uint32, width int, val uint32) {
	// Each byte of a 16- or 32-bit store configures its own bank.
	for i := 0; i < width && addr-0x04000240+uint32(i) < 10; i++ {
		off := addr - 0x04000240 + uint32(i)
		b := (val >> (8 * uint(i))) & 0xFF
		if off == 7 {
			h.sys.SetWRAMConfig(bus.WRAMConfig(b & 3))
			continue
		}
		bank := vramcntBankOrder[bankIndexForOffset(off)]
		h.router.MapVRAM(bank, bus.BankCnt{
			Enable: b&(1<<7) != 0,
			MST:    uint8((b >> 2) & 3),
			Ofs:    uint8(b & 3),
		})
	}
}

// powcntIO exposes POWCNT1 (0x04000304): which of the two LCDs engine A
// drives, and the coarse subsystem power-enable bits. Only the "which
// screen is on top" selection affects this core's behavior; the rest are
// tracked for MMIO read-back fidelity only.
type powcntIO struct{ core *Core }

func (h *powcntIO) HandleRead(addr uint32, width int) uint32 { return uint32(h.core.powcnt1) }

func (h *powcntIO) HandleWrite(addr uint32, width int, val uint32) {
	h.core.powcnt1 = uint16(val)
}

// dispstatIO exposes one CPU's DISPSTAT (0x04000004) and the shared VCOUNT
// (0x04000006). DISPSTAT's flag bits mirror Core's own vblank/hblank/current
// line state; only the IRQ-enable bits and the vcount-match target are
// actually latched per CPU, since the two CPUs can independently mask the
// same physical events.
type dispstatIO struct {
	core *Core
	st   *dispStatus
}

func (h *dispstatIO) HandleRead(addr uint32, width int) uint32 {
	switch addr {
	case 0x04000004:
		var v uint32
		if h.core.vblank {
			v |= 1 << 0
		}
		if h.core.hblank {
			v |= 1 << 1
		}
		if uint8(h.core.curLine) == h.st.vcountTarget {
			v |= 1 << 2
		}
		if h.st.vblankIRQ {
			v |= 1 << 3
		}
		if h.st.hblankIRQ {
			v |= 1 << 4
		}
		if h.st.vcountIRQ {
			v |= 1 << 5
		}
		return v
	case 0x04000006:
		return uint32(h.core.curLine)
	}
	return 0
}

func (h *dispstatIO) HandleWrite(addr uint32, width int, val uint32) {
	if addr != 0x04000004 {
		return
	}
	h.st.vblankIRQ = val&(1<<3) != 0
	h.st.hblankIRQ = val&(1<<4) != 0
	h.st.vcountIRQ = val&(1<<5) != 0
	h.st.vcountTarget = uint8(val >> 8)
}
