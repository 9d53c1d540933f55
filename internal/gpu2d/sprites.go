package gpu2d

// objShapeSize maps OAM's {shape, size} 2-bit pairs to a sprite's
// {width, height} in pixels: 3 shapes (square/horizontal/vertical) x 4
// sizes. renderOBJLine reads the reserved shape value 3 as square.
var objShapeSize = [3][4][2]int{
	0: {{8, 8}, {16, 16}, {32, 32}, {64, 64}},   // square
	1: {{16, 8}, {32, 8}, {32, 16}, {64, 32}},   // horizontal
	2: {{8, 16}, {8, 32}, {16, 32}, {32, 64}},   // vertical
}

type objAttrs struct {
	y, x           int
	rotScale       bool
	doubleOrHidden bool
	mode           uint8 // 0 normal, 1 semi-transparent, 2 window, 3 bitmap
	mosaic         bool
	color256       bool
	shape, size    uint8
	hFlip, vFlip   bool
	matrixGroup    uint8
	tileNum        uint16
	priority       uint8
	palBank        uint8
}

func (e *Engine) readOAMEntry(i int) objAttrs {
	base := i * 8
	attr0 := uint16(e.oam[base]) | uint16(e.oam[base+1])<<8
	attr1 := uint16(e.oam[base+2]) | uint16(e.oam[base+3])<<8
	attr2 := uint16(e.oam[base+4]) | uint16(e.oam[base+5])<<8

	a := objAttrs{
		y:              int(attr0 & 0xFF),
		rotScale:       attr0&(1<<8) != 0,
		doubleOrHidden: attr0&(1<<9) != 0,
		mode:           uint8((attr0 >> 10) & 3),
		mosaic:         attr0&(1<<12) != 0,
		color256:       attr0&(1<<13) != 0,
		shape:          uint8((attr0 >> 14) & 3),
		x:              int(attr1 & 0x1FF),
		size:           uint8((attr1 >> 14) & 3),
		tileNum:        attr2 & 0x3FF,
		priority:       uint8((attr2 >> 10) & 3),
		palBank:        uint8((attr2 >> 12) & 0xF),
	}
	if a.rotScale {
		a.matrixGroup = uint8((attr1 >> 9) & 0x1F)
	} else {
		a.hFlip = attr1&(1<<12) != 0
		a.vFlip = attr1&(1<<13) != 0
	}
	// sign-extend the 9-bit X coordinate and the 8-bit Y coordinate into
	// screen space (both are stored as signed hardware values).
	if a.x >= 256 {
		a.x -= 512
	}
	if a.y >= 192 {
		a.y -= 256
	}
	return a
}

func (e *Engine) readMatrixGroup(group uint8) AffineParam {
	base := int(group) * 32
	read := func(sub int) int16 {
		off := base + sub*8 + 6 // attr3 slot of the sub-th entry in this group of 4
		return int16(uint16(e.oam[off]) | uint16(e.oam[off+1])<<8)
	}
	return AffineParam{PA: read(0), PB: read(1), PC: read(2), PD: read(3)}
}

// renderOBJLine scans all 128 OAM entries against this scanline, producing
// the 256-wide sprite pixel buffer and OBJ-window mask as a separate pass
// over the whole line.
func (e *Engine) renderOBJLine(line int) ([ScreenWidth]pixel, [ScreenWidth]bool) {
	var out [ScreenWidth]pixel
	var winMask [ScreenWidth]bool
	for x := range out {
		out[x] = pixel{opaque: false, priority: 4, layer: layerOBJ}
	}

	// Iterate from the highest OAM index down to 0, so equal-priority ties
	// resolve in favor of the lowest index, matching the hardware's
	// documented sprite priority (lower OAM index drawn on top).
	for i := 127; i >= 0; i-- {
		a := e.readOAMEntry(i)
		if !a.rotScale && a.doubleOrHidden {
			continue // disabled
		}
		mosaicLine := line
		if a.mosaic && e.MosaicReg.OBJV > 0 {
			step := int(e.MosaicReg.OBJV) + 1
			mosaicLine = (line / step) * step
		}
		wh := objShapeSize[a.shape%3][a.size]
		w, h := wh[0], wh[1]
		boundW, boundH := w, h
		if a.rotScale && a.doubleOrHidden {
			boundW, boundH = w*2, h*2 // double-size affine bounding box
		}
		if mosaicLine < a.y || mosaicLine >= a.y+boundH {
			continue
		}

		var mat AffineParam
		if a.rotScale {
			mat = e.readMatrixGroup(a.matrixGroup)
		} else {
			mat = AffineParam{PA: 256, PD: 256}
		}

		localY := mosaicLine - a.y
		centerX, centerY := boundW/2, boundH/2
		for sx := 0; sx < boundW; sx++ {
			screenX := a.x + sx
			if screenX < 0 || screenX >= ScreenWidth {
				continue
			}
			relX := sx - centerX
			relY := localY - centerY
			var texX, texY int
			if a.rotScale {
				texX = (int(mat.PA)*relX+int(mat.PB)*relY)>>8 + w/2
				texY = (int(mat.PC)*relX+int(mat.PD)*relY)>>8 + h/2
			} else {
				texX, texY = relX+w/2, relY+h/2
				if a.hFlip {
					texX = w - 1 - texX
				}
				if a.vFlip {
					texY = h - 1 - texY
				}
			}
			if texX < 0 || texY < 0 || texX >= w || texY >= h {
				continue
			}

			idx := e.sampleOBJTexel(a, texX, texY, w)
			if idx == 0 {
				continue
			}
			if a.mode == 2 {
				winMask[screenX] = true
				continue
			}
			p := e.objPaletteLookup(idx, a.palBank, a.color256)
			p.priority = a.priority
			p.semiTransparent = a.mode == 1
			// Iterating high index to low: an equal-or-better (numerically
			// <=) priority always takes the pixel, so ties resolve to the
			// lowest OAM index per the hardware's sprite priority rule.
			if p.priority <= out[screenX].priority {
				out[screenX] = p
			}
		}
	}
	return out, winMask
}

// sampleOBJTexel resolves one in-sprite (texX,texY) coordinate to a
// palette index, honoring 1D/2D tile mapping per DISPCNT.
func (e *Engine) sampleOBJTexel(a objAttrs, texX, texY, spriteWidthPixels int) uint8 {
	tileX, tileY := texX/8, texY/8
	withinX, withinY := texX%8, texY%8
	tilesWide := spriteWidthPixels / 8

	var tileIndex uint32
	if e.Disp.TileObjMapping1D {
		bytesPerTile := uint32(32)
		if a.color256 {
			bytesPerTile = 64
		}
		tileIndex = uint32(a.tileNum) + uint32(tileY*tilesWide+tileX)*(bytesPerTile/32)
	} else {
		// 2D mapping: the char base is a fixed 32x32-tile sheet regardless
		// of sprite width.
		tileIndex = uint32(a.tileNum) + uint32(tileY)*32 + uint32(tileX)
	}

	const objCharBase = 0x10000 // OBJ tile VRAM begins at a fixed 64 KiB offset within its window
	if a.color256 {
		off := uint32(objCharBase) + tileIndex*64 + uint32(withinY)*8 + uint32(withinX)
		return e.vram.ReadByte(e.objWindow, off)
	}
	off := uint32(objCharBase) + tileIndex*32 + uint32(withinY)*4 + uint32(withinX/2)
	b := e.vram.ReadByte(e.objWindow, off)
	if withinX%2 == 0 {
		return b & 0xF
	}
	return b >> 4
}

func (e *Engine) objPaletteLookup(idx, bank uint8, ext bool) pixel {
	var lo, hi uint8
	if ext {
		if e.extObjPal != nil {
			off := int(idx) * 2
			if off+1 < len(e.extObjPal) {
				lo, hi = e.extObjPal[off], e.extObjPal[off+1]
			}
		} else {
			off := int(idx) * 2
			if off+1 < len(e.objPal) {
				lo, hi = e.objPal[off], e.objPal[off+1]
			}
		}
	} else {
		off := (int(bank)*16 + int(idx)) * 2
		if off+1 < len(e.objPal) {
			lo, hi = e.objPal[off], e.objPal[off+1]
		}
	}
	return pixel{color: colorFromBytes(lo, hi), opaque: true, layer: layerOBJ}
}
