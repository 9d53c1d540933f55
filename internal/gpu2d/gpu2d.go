// Package gpu2d implements the two 2D graphics engines: per-scanline
// background/sprite compositing, windowing, mosaic, color special
// effects, and master brightness.
//
// Grounded on _examples/IntuitionAmiga-IntuitionEngine/machine_bus.go's
// bank-router design for the source of background/sprite pixel data (an
// Engine reads through the same internal/bus.Router every other VRAM
// consumer does, via the window its engine owns - WinABG/WinAOBJ for
// engine A, WinBBG/WinBOBJ for engine B) and on the hardware's five-step
// per-scanline compositing algorithm, which the package's RenderScanline
// method follows step for step: backdrop, layer render, window compose,
// blend, brightness.
package gpu2d

import "github.com/intuitionamiga/ndscore/internal/bus"

// Color555 is one RGB555 pixel, the DS's native framebuffer format (5 bits
// per channel, bit 15 unused/alpha).
type Color555 uint16

func colorFromBytes(lo, hi uint8) Color555 {
	return Color555(uint16(lo) | uint16(hi)<<8)
}

func (c Color555) r() uint8 { return uint8(c & 0x1F) }
func (c Color555) g() uint8 { return uint8((c >> 5) & 0x1F) }
func (c Color555) b() uint8 { return uint8((c >> 10) & 0x1F) }

func rgb(r, g, b uint8) Color555 {
	return Color555(uint16(r&0x1F) | uint16(g&0x1F)<<5 | uint16(b&0x1F)<<10)
}

// ScreenWidth and ScreenHeight are the DS LCD's fixed pixel dimensions.
const (
	ScreenWidth  = 256
	ScreenHeight = 192
)

// DispCnt mirrors the DISPCNT register fields.
type DispCnt struct {
	BGMode             uint8 // 0-6 (mode 6 is engine A only)
	BG0Is3D            bool  // engine A only: BG0 sourced from the 3D rasterizer
	TileObjMapping1D   bool
	BitmapObjMapping1D bool
	ForceBlank         bool
	ScreenDisplayBG    [4]bool
	ScreenDisplayOBJ   bool
	Win0Display        bool
	Win1Display        bool
	WinOBJDisplay      bool
	DisplayMode        uint8 // 0=off(white) 1=graphics 2=VRAM display 3=main-memory display
	VRAMBlock          uint8 // engine A display-mode-2 bank select
}

// BgCnt mirrors one BGxCNT register.
type BgCnt struct {
	Priority            uint8
	CharBaseBlock       uint8
	Mosaic              bool
	Palette256          bool
	ScreenBaseBlock     uint8
	DisplayAreaOverflow bool // affine layers: wrap (false) or transparent (true) past the map edge
	ScreenSize          uint8
}

// AffineParam is BG2/BG3's 2x2 rotation/scale matrix plus reference point,
// all in the hardware's 8.8/20.8 fixed-point formats represented here as
// plain integers the caller shifts.
type AffineParam struct {
	PA, PB, PC, PD int16
	RefX, RefY     int32
}

// WindowRect is one rectangular window's (x1,y1)-(x2,y2) bounds.
type WindowRect struct{ X1, X2, Y1, Y2 uint8 }

// WindowCnt is one WIN*CNT byte: which layers and effects are enabled
// inside (or, for WinOut, outside) a window region.
type WindowCnt struct {
	BGEnable     [4]bool
	OBJEnable    bool
	EffectEnable bool
}

// Mosaic mirrors the MOSAIC register's four 4-bit size fields.
type Mosaic struct {
	BGH, BGV   uint8
	OBJH, OBJV uint8
}

// BlendMode selects BLDCNT's special-effect mode.
type BlendMode uint8

const (
	BlendNone BlendMode = iota
	BlendAlpha
	BlendBrightnessInc
	BlendBrightnessDec
)

// BlendCnt mirrors BLDCNT: which layers participate as the blend's upper
// and lower targets.
type BlendCnt struct {
	Mode     BlendMode
	TargetA  [4]bool // BG0-3 as the upper (first) target
	OBJA     bool
	BackdropA bool
	TargetB  [4]bool // BG0-3 as the lower (second) target
	OBJB     bool
	BackdropB bool
}

// Engine is one of the DS's two 2D graphics engines (A or B). Both share
// this type; the only difference between them is which VRAM window and
// palette/OAM backing each is constructed with.
type Engine struct {
	Disp  DispCnt
	Bg    [4]BgCnt
	HOfs  [4]uint16
	VOfs  [4]uint16
	Affine [2]AffineParam // index 0 = BG2, index 1 = BG3

	Win0, Win1   WindowRect
	WinIn        [2]WindowCnt // index 0 = WIN0, index 1 = WIN1
	WinOut       WindowCnt
	WinObj       WindowCnt
	winEnabled   [2]bool // WIN0/WIN1 participate only once their Y range is written at least once

	MosaicReg Mosaic
	Blend     BlendCnt
	EVA, EVB  uint8 // BLDALPHA, 0-16
	EVY       uint8 // BLDY, 0-16

	BrightMode  uint8 // 0 none, 1 increase, 2 decrease
	BrightFactor uint8

	vram      *bus.Router
	bgWindow  bus.WindowID
	objWindow bus.WindowID
	bgPal     []byte // 512 bytes = 256 BGR555 entries
	objPal    []byte
	oam       []byte // 1024 bytes = 128 OAM entries of 8 bytes each

	extBgPal  [4][]byte // BG0-3 extended palette slots, nil if unused
	extObjPal []byte
}

// New constructs an Engine bound to the VRAM window and palette/OAM
// backing stores its side of the hardware owns. Engine A is given
// WinABG/WinAOBJ; Engine B, WinBBG/WinBOBJ.
func New(vram *bus.Router, bgWindow, objWindow bus.WindowID, bgPal, objPal, oam []byte) *Engine {
	return &Engine{vram: vram, bgWindow: bgWindow, objWindow: objWindow, bgPal: bgPal, objPal: objPal, oam: oam}
}

// SetExtendedPalettes wires the optional per-BG and OBJ extended palette
// slots (256-color-indexed, 16 sub-palettes of 256 entries) used by
// extended/bitmap BG modes and 256-color sprites when DISPCNT's extended
// palette bit is set.
func (e *Engine) SetExtendedPalettes(bg [4][]byte, obj []byte) {
	e.extBgPal = bg
	e.extObjPal = obj
}

// SetWindowY arms WIN0 or WIN1's Y range; the hardware only evaluates a
// window once its Y range has been written at least once after reset.
func (e *Engine) SetWindowY(win int, y1, y2 uint8) {
	if win < 0 || win > 1 {
		return
	}
	if win == 0 {
		e.Win0.Y1, e.Win0.Y2 = y1, y2
	} else {
		e.Win1.Y1, e.Win1.Y2 = y1, y2
	}
	e.winEnabled[win] = true
}

// Reset clears all register state back to power-on defaults.
func (e *Engine) Reset() {
	*e = Engine{vram: e.vram, bgWindow: e.bgWindow, objWindow: e.objWindow, bgPal: e.bgPal, objPal: e.objPal, oam: e.oam, extBgPal: e.extBgPal, extObjPal: e.extObjPal}
}

// layerTag identifies which compositing target (for BLDCNT purposes) a
// pixel came from: 0-3 a BG layer, layerOBJ a sprite, layerBackdrop the
// screen backdrop.
type layerTag uint8

const (
	layerOBJ layerTag = 4
	layerBackdrop layerTag = 5
)

// pixel is one layer's contribution to a screen column before compositing.
type pixel struct {
	color           Color555
	priority        uint8
	opaque          bool
	layer           layerTag
	semiTransparent bool
}

// RenderScanline renders one LCD line for this engine, following the
// hardware's five compositing steps: backdrop, per-layer render into a
// two-deep stack, window/mosaic compose, color special effects, master
// brightness.
func (e *Engine) RenderScanline(line int) [ScreenWidth]Color555 {
	var out [ScreenWidth]Color555

	if e.Disp.ForceBlank || e.Disp.DisplayMode == 0 {
		for x := range out {
			out[x] = rgb(31, 31, 31)
		}
		return out
	}
	if e.Disp.DisplayMode == 2 {
		return e.renderVRAMDisplay(line)
	}

	backdrop := colorFromBytes(e.bgPal[0], e.bgPal[1])

	bgLines := e.renderBGLayers(line)
	objLine, objWindowMask := e.renderOBJLine(line)

	for x := 0; x < ScreenWidth; x++ {
		win := e.windowAt(x, line, objWindowMask[x])

		top := pixel{color: backdrop, priority: 4, opaque: true, layer: layerBackdrop}
		second := pixel{color: backdrop, priority: 4, opaque: false, layer: layerBackdrop}

		consider := func(p pixel) {
			if !p.opaque {
				return
			}
			if p.priority < top.priority || (p.priority == top.priority && p.layer == layerOBJ && top.layer != layerOBJ) {
				second = top
				top = p
			} else if p.priority < second.priority {
				second = p
			}
		}

		for bg := 0; bg < 4; bg++ {
			if !e.Disp.ScreenDisplayBG[bg] || !win.bg[bg] {
				continue
			}
			consider(bgLines[bg][x])
		}
		if e.Disp.ScreenDisplayOBJ && win.obj {
			consider(objLine[x])
		}

		result := top.color
		if win.effects {
			result = e.applyEffects(top, second)
		}
		out[x] = e.applyMasterBrightness(result)
	}

	return out
}

// renderVRAMDisplay implements DISPCNT display mode 2: the engine bypasses
// compositing entirely and streams 256x192 16-bit pixels as the raw
// framebuffer, read from the start of the engine's BG VRAM window.
// DISPCNT's VRAMBlock field is not consulted.
func (e *Engine) renderVRAMDisplay(line int) [ScreenWidth]Color555 {
	var out [ScreenWidth]Color555
	base := uint32(line) * ScreenWidth * 2
	for x := 0; x < ScreenWidth; x++ {
		off := base + uint32(x)*2
		lo := e.vram.ReadByte(e.bgWindow, off)
		hi := e.vram.ReadByte(e.bgWindow, off+1)
		out[x] = colorFromBytes(lo, hi)
	}
	return out
}

func (e *Engine) applyMasterBrightness(c Color555) Color555 {
	if e.BrightFactor == 0 || e.BrightMode == 0 {
		return c
	}
	factor := e.BrightFactor
	if factor > 16 {
		factor = 16
	}
	r, g, b := int(c.r()), int(c.g()), int(c.b())
	switch e.BrightMode {
	case 1: // increase toward white
		r += ((31 - r) * int(factor)) >> 4
		g += ((31 - g) * int(factor)) >> 4
		b += ((31 - b) * int(factor)) >> 4
	case 2: // decrease toward black
		r -= (r * int(factor)) >> 4
		g -= (g * int(factor)) >> 4
		b -= (b * int(factor)) >> 4
	}
	return rgb(clamp5(r), clamp5(g), clamp5(b))
}

func clamp5(v int) uint8 {
	if v < 0 {
		return 0
	}
	if v > 31 {
		return 31
	}
	return uint8(v)
}
