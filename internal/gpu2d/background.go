package gpu2d

// layerKind is what kind of background a BG index renders as under the
// current BG mode: text/affine/extended bitmap layers coexist depending
// on BGMode and BG index.
type layerKind uint8

const (
	layerDisabled layerKind = iota
	layerText
	layerAffine
	layerExtended
	layerLarge
	layer3D // BG0 on engine A when BG0Is3D; the 3D rasterizer supplies pixels, not this package
)

// bgModeTable[mode][bg] gives bg's layer kind for that BGMode, per the
// hardware's documented mode table (gbatek "Video Modes").
var bgModeTable = [7][4]layerKind{
	0: {layerText, layerText, layerText, layerText},
	1: {layerText, layerText, layerText, layerAffine},
	2: {layerText, layerText, layerAffine, layerAffine},
	3: {layerText, layerText, layerText, layerExtended},
	4: {layerText, layerText, layerAffine, layerExtended},
	5: {layerText, layerText, layerExtended, layerExtended},
	6: {layerDisabled, layerDisabled, layerLarge, layerDisabled},
}

// textScreenSizeTiles returns a text BG's map dimensions in tiles for its
// 2-bit SCREENSIZE field: 0=256x256, 1=512x256, 2=256x512, 3=512x512.
func textScreenSizeTiles(size uint8) (w, h int) {
	switch size {
	case 1:
		return 64, 32
	case 2:
		return 32, 64
	case 3:
		return 64, 64
	default:
		return 32, 32
	}
}

// affineScreenSizeTiles returns an affine/extended BG's map dimensions in
// tiles for its 2-bit SCREENSIZE field: 0=128x128 ... 3=1024x1024.
func affineScreenSizeTiles(size uint8) int {
	return 16 << uint(size)
}

// renderBGLayers produces each of the four BG layers' contribution to this
// scanline, honoring the current BG mode's layer-kind assignment and each
// layer's mosaic setting.
func (e *Engine) renderBGLayers(line int) [4][ScreenWidth]pixel {
	var out [4][ScreenWidth]pixel
	mode := e.Disp.BGMode
	if int(mode) >= len(bgModeTable) {
		mode = 0
	}
	kinds := bgModeTable[mode]

	for bg := 0; bg < 4; bg++ {
		kind := kinds[bg]
		if bg == 0 && e.Disp.BG0Is3D {
			kind = layer3D
		}
		renderLine := line
		if e.Bg[bg].Mosaic && e.MosaicReg.BGV > 0 {
			step := int(e.MosaicReg.BGV) + 1
			renderLine = (line / step) * step
		}
		switch kind {
		case layerText:
			out[bg] = e.renderTextBG(bg, renderLine)
		case layerAffine:
			out[bg] = e.renderAffineBG(bg, renderLine)
		case layerExtended:
			out[bg] = e.renderExtendedBG(bg, renderLine)
		case layerLarge:
			out[bg] = e.renderLargeBitmapBG(bg, renderLine)
		default:
			// layerDisabled and layer3D: this package contributes nothing;
			// layer3D's pixels are composited in by internal/core from the
			// gpu3d scanline buffer before calling RenderScanline for BG0.
		}
		if e.Bg[bg].Mosaic && e.MosaicReg.BGH > 0 {
			applyHorizontalMosaic(&out[bg], int(e.MosaicReg.BGH)+1)
		}
	}
	return out
}

func applyHorizontalMosaic(line *[ScreenWidth]pixel, step int) {
	for x := 0; x < ScreenWidth; x += step {
		src := line[(x/step)*step]
		for i := 0; i < step && x+i < ScreenWidth; i++ {
			line[x+i] = src
		}
	}
}

// charBaseBytes and screenBaseBytes convert a BgCnt's 3-bit/5-bit base
// block fields into byte offsets within the BG VRAM window (16 KiB and
// 2 KiB blocks respectively).
func charBaseBytes(c BgCnt) uint32   { return uint32(c.CharBaseBlock) * 16 * 1024 }
func screenBaseBytes(c BgCnt) uint32 { return uint32(c.ScreenBaseBlock) * 2 * 1024 }

func (e *Engine) vramByte(off uint32) uint8 { return e.vram.ReadByte(e.bgWindow, off) }

// renderTextBG renders one tile-mode background layer: a scrolling map of
// 8x8 tiles, each either 4bpp (16-color, per-tile palette bank) or 8bpp
// (256-color, optionally via an extended palette slot).
func (e *Engine) renderTextBG(bg, line int) [ScreenWidth]pixel {
	var out [ScreenWidth]pixel
	c := e.Bg[bg]
	mapW, mapH := textScreenSizeTiles(c.ScreenSize)
	scroll := func(v int, size int) int { m := size * 8; return ((v % m) + m) % m }
	y := scroll(line+int(e.VOfs[bg]), mapH)
	tileRow := y / 8
	within := y % 8

	for x := 0; x < ScreenWidth; x++ {
		gx := scroll(x+int(e.HOfs[bg]), mapW)
		tileCol := gx / 8
		tx := gx % 8

		// Text maps are laid out as up to 2x2 32x32-tile screen blocks of
		// 2 bytes/entry; select the block, then the entry within it.
		blockX, blockY := tileCol/32, tileRow/32
		blockIndex := blockY*(mapW/32) + blockX
		localCol, localRow := tileCol%32, tileRow%32
		entryOff := screenBaseBytes(c) + uint32(blockIndex)*2*1024 + uint32(localRow*32+localCol)*2

		lo := e.vramByte(entryOff)
		hi := e.vramByte(entryOff + 1)
		entry := uint16(lo) | uint16(hi)<<8
		tileNum := entry & 0x3FF
		flipH := entry&(1<<10) != 0
		flipV := entry&(1<<11) != 0
		palBank := uint8(entry >> 12)

		sx, sy := tx, within
		if flipH {
			sx = 7 - sx
		}
		if flipV {
			sy = 7 - sy
		}

		var idx uint8
		var charOff uint32
		if c.Palette256 {
			charOff = charBaseBytes(c) + uint32(tileNum)*64 + uint32(sy)*8 + uint32(sx)
			idx = e.vramByte(charOff)
		} else {
			charOff = charBaseBytes(c) + uint32(tileNum)*32 + uint32(sy)*4 + uint32(sx/2)
			b := e.vramByte(charOff)
			if sx%2 == 0 {
				idx = b & 0xF
			} else {
				idx = b >> 4
			}
		}
		out[x] = e.paletteLookup(idx, palBank, c.Palette256, bg)
	}
	return out
}

// paletteLookup resolves a BG pixel index (plus 4bpp palette bank) to a
// Color555, index 0 meaning transparent, and honors the engine's extended
// palette slot for 256-color layers when one is wired.
func (e *Engine) paletteLookup(idx, bank uint8, ext bool, bg int) pixel {
	if idx == 0 {
		return pixel{opaque: false, priority: e.Bg[bg].Priority, layer: layerTag(bg)}
	}
	var lo, hi uint8
	if ext && e.extBgPal[bg] != nil {
		off := int(idx) * 2
		if off+1 < len(e.extBgPal[bg]) {
			lo, hi = e.extBgPal[bg][off], e.extBgPal[bg][off+1]
		}
	} else if ext {
		off := int(idx) * 2
		if off+1 < len(e.bgPal) {
			lo, hi = e.bgPal[off], e.bgPal[off+1]
		}
	} else {
		off := (int(bank)*16 + int(idx)) * 2
		if off+1 < len(e.bgPal) {
			lo, hi = e.bgPal[off], e.bgPal[off+1]
		}
	}
	return pixel{color: colorFromBytes(lo, hi), opaque: true, priority: e.Bg[bg].Priority, layer: layerTag(bg)}
}

// renderAffineBG renders BG2/BG3 in rotation/scale mode: each output
// column samples the map through the layer's 2x2 affine matrix rather than
// scrolling linearly. Out-of-map samples either wrap or read transparent
// depending on DisplayAreaOverflow.
func (e *Engine) renderAffineBG(bg, renderLine int) [ScreenWidth]pixel {
	var out [ScreenWidth]pixel
	c := e.Bg[bg]
	p := e.Affine[bg-2]
	sizeTiles := affineScreenSizeTiles(c.ScreenSize)
	sizePixels := int32(sizeTiles * 8)

	// Reference point advances by one matrix row per scanline from BG2Y/
	// BG3Y's initial value; renderLine substitutes for mosaic-sampled rows.
	dy := int32(renderLine)
	refX := p.RefX + dy*int32(p.PB)
	refY := p.RefY + dy*int32(p.PD)

	for x := 0; x < ScreenWidth; x++ {
		px := (refX + int32(x)*int32(p.PA)) >> 8
		py := (refY + int32(x)*int32(p.PC)) >> 8

		if px < 0 || py < 0 || px >= sizePixels || py >= sizePixels {
			if c.DisplayAreaOverflow {
				out[x] = pixel{opaque: false, priority: c.Priority, layer: layerTag(bg)}
				continue
			}
			px = ((px % sizePixels) + sizePixels) % sizePixels
			py = ((py % sizePixels) + sizePixels) % sizePixels
		}

		tileCol, tileRow := int(px)/8, int(py)/8
		tx, ty := int(px)%8, int(py)%8
		mapStride := sizeTiles
		entryOff := screenBaseBytes(c) + uint32(tileRow*mapStride+tileCol)
		tileNum := e.vramByte(entryOff) // affine maps are 1 byte/entry, no flip/palette bits

		charOff := charBaseBytes(c) + uint32(tileNum)*64 + uint32(ty)*8 + uint32(tx)
		idx := e.vramByte(charOff)
		out[x] = e.paletteLookup(idx, 0, true, bg)
	}
	return out
}

// renderExtendedBG covers BGMode 3/4/5's "extended" BG2/BG3: either a
// direct-color bitmap, a 256-color bitmap, or (when ScreenBaseBlock's
// "is-tiled" convention is set, mirroring affine text maps) a larger
// rotation/scaled tile map. The representative rule used here: Palette256
// selects 256-color bitmap, otherwise direct 16-bit color bitmap, matching
// the common case extended BGs are used for (full-screen backgrounds and
// the touch-screen UI layer).
func (e *Engine) renderExtendedBG(bg, renderLine int) [ScreenWidth]pixel {
	var out [ScreenWidth]pixel
	c := e.Bg[bg]
	p := e.Affine[bg-2]
	sizeTiles := affineScreenSizeTiles(c.ScreenSize)
	width := int32(sizeTiles * 8)

	dy := int32(renderLine)
	refX := p.RefX + dy*int32(p.PB)
	refY := p.RefY + dy*int32(p.PD)

	for x := 0; x < ScreenWidth; x++ {
		px := (refX + int32(x)*int32(p.PA)) >> 8
		py := (refY + int32(x)*int32(p.PC)) >> 8
		if px < 0 || py < 0 || px >= width || py >= width {
			out[x] = pixel{opaque: false, priority: c.Priority, layer: layerTag(bg)}
			continue
		}
		base := charBaseBytes(c)
		if c.Palette256 {
			idx := e.vramByte(base + uint32(py)*uint32(width) + uint32(px))
			out[x] = e.paletteLookup(idx, 0, true, bg)
		} else {
			off := base + (uint32(py)*uint32(width)+uint32(px))*2
			lo, hi := e.vramByte(off), e.vramByte(off+1)
			col := colorFromBytes(lo, hi)
			opaque := hi&0x80 != 0 // bit 15 is the direct-bitmap alpha/opacity flag
			out[x] = pixel{color: col, opaque: opaque, priority: c.Priority, layer: layerTag(bg)}
		}
	}
	return out
}

// renderLargeBitmapBG implements BGMode 6's engine-A-only 1024x512 direct
// bitmap on BG2, the "large bitmap" mode.
func (e *Engine) renderLargeBitmapBG(bg, line int) [ScreenWidth]pixel {
	var out [ScreenWidth]pixel
	c := e.Bg[bg]
	p := e.Affine[bg-2]
	const width, height = 1024, 512

	dy := int32(line)
	refX := p.RefX + dy*int32(p.PB)
	refY := p.RefY + dy*int32(p.PD)

	for x := 0; x < ScreenWidth; x++ {
		px := (refX + int32(x)*int32(p.PA)) >> 8
		py := (refY + int32(x)*int32(p.PC)) >> 8
		if px < 0 || py < 0 || px >= width || py >= height {
			out[x] = pixel{opaque: false, priority: c.Priority, layer: layerTag(bg)}
			continue
		}
		idx := e.vramByte(uint32(py)*width + uint32(px))
		out[x] = e.paletteLookup(idx, 0, true, bg)
	}
	return out
}
