package gpu2d

import (
	"testing"

	"github.com/intuitionamiga/ndscore/internal/bus"
)

func newTestEngine() (*Engine, *bus.Router) {
	router := bus.NewRouter()
	router.MapVRAM(bus.BankA, bus.BankCnt{Enable: true, MST: 1, Ofs: 0}) // -> WinABG
	router.MapVRAM(bus.BankB, bus.BankCnt{Enable: true, MST: 2, Ofs: 0}) // -> WinAOBJ
	bgPal := make([]byte, 512)
	objPal := make([]byte, 512)
	oam := make([]byte, 1024)
	e := New(router, bus.WinABG, bus.WinAOBJ, bgPal, objPal, oam)
	e.Disp.DisplayMode = 1
	e.Disp.ScreenDisplayBG[0] = true
	return e, router
}

func writeWord(router *bus.Router, win bus.WindowID, off uint32, v uint16) {
	router.WriteByte(win, off, uint8(v))
	router.WriteByte(win, off+1, uint8(v>>8))
}

func TestBackdropFillsScanlineWhenNoLayersEnabled(t *testing.T) {
	e, _ := newTestEngine()
	e.Disp.ScreenDisplayBG[0] = false
	e.bgPal[0], e.bgPal[1] = 0xFF, 0x7F // white backdrop (RGB555 0x7FFF)

	line := e.RenderScanline(0)
	want := colorFromBytes(0xFF, 0x7F)
	for x, c := range line {
		if c != want {
			t.Fatalf("pixel %d = %#x, want backdrop %#x", x, c, want)
		}
	}
}

func TestTextBGRendersFirstTileFromMapAndCharData(t *testing.T) {
	e, router := newTestEngine()
	e.Bg[0] = BgCnt{ScreenBaseBlock: 0, CharBaseBlock: 0, Palette256: false, ScreenSize: 0}

	// Map entry 0: tile #1, palette bank 2, no flip.
	writeWord(router, bus.WinABG, 0, 1|(2<<12))
	// Tile 1's char data (4bpp, 32 bytes/tile) at charBase + 1*32: first byte
	// holds pixels (0,0)=idx3 low nibble, (1,0)=idx5 high nibble.
	router.WriteByte(bus.WinABG, 32, 0x53)
	// Palette bank 2, entry 3: a known RGB555 color.
	e.bgPal[(2*16+3)*2], e.bgPal[(2*16+3)*2+1] = 0x1F, 0x00

	line := e.RenderScanline(0)
	want := colorFromBytes(0x1F, 0x00)
	if line[0] != want {
		t.Fatalf("pixel 0 = %#x, want %#x", line[0], want)
	}
}

func TestBlendAlphaMatchesSpecFormula(t *testing.T) {
	src := rgb(31, 0, 0)
	dst := rgb(0, 31, 0)

	if c := blendAlpha(src, dst, 0, 16); c.r() != dst.r() || c.g() != dst.g() {
		t.Fatalf("eva=0 should equal destination, got %#x", c)
	}
	if c := blendAlpha(src, dst, 16, 0); c.r() != src.r() || c.g() != src.g() {
		t.Fatalf("eva=16 should equal source, got %#x", c)
	}
	c := blendAlpha(src, dst, 8, 8)
	wantR := uint8((31*8 + 0*8 + 8) >> 4)
	wantG := uint8((0*8 + 31*8 + 8) >> 4)
	if c.r() != wantR || c.g() != wantG {
		t.Fatalf("mid blend = (%d,%d), want (%d,%d)", c.r(), c.g(), wantR, wantG)
	}
}

func TestMasterBrightnessIncreaseFadesTowardWhite(t *testing.T) {
	e, _ := newTestEngine()
	e.BrightMode = 1
	e.BrightFactor = 16
	c := e.applyMasterBrightness(rgb(0, 0, 0))
	if c.r() != 31 || c.g() != 31 || c.b() != 31 {
		t.Fatalf("full brightness increase = %#x, want white", c)
	}
}

func TestWindowRestrictsLayerParticipation(t *testing.T) {
	e, _ := newTestEngine()
	e.Disp.Win0Display = true
	e.SetWindowY(0, 0, 192)
	e.Win0.X1, e.Win0.X2 = 0, 10
	e.WinIn[0] = WindowCnt{BGEnable: [4]bool{true, true, true, true}, OBJEnable: true, EffectEnable: true}
	e.WinOut = WindowCnt{} // nothing outside the window

	inside := e.windowAt(5, 0, false)
	outside := e.windowAt(20, 0, false)
	if !inside.bg[0] {
		t.Fatalf("expected BG0 enabled inside WIN0")
	}
	if outside.bg[0] {
		t.Fatalf("expected BG0 disabled outside WIN0 with empty WinOut")
	}
}

func TestOBJPixelIndexZeroIsTransparent(t *testing.T) {
	e, _ := newTestEngine()
	// OAM entry 0: x=0,y=0, 8x8 square, disabled bit clear, tile 0.
	e.oam[0], e.oam[1] = 0x00, 0x00
	e.oam[2], e.oam[3] = 0x00, 0x00
	e.oam[4], e.oam[5] = 0x00, 0x00
	e.Disp.ScreenDisplayOBJ = true

	line, _ := e.renderOBJLine(0)
	if line[0].opaque {
		t.Fatalf("expected transparent OBJ pixel when tile data is all zero")
	}
}
