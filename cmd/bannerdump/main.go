// Command bannerdump extracts a cartridge ROM's banner icon (32x32, 4bpp
// tiled, 16-color palette, stored at the header's icon/banner offset) and
// writes it out as a PNG, optionally scaled up.
//
// Grounded on _examples/IntuitionAmiga-IntuitionEngine/video_chip.go's
// NewVideoChip, which pairs image/draw with a decoded image.Image to
// rescale a splash screen before blitting it; bannerdump does the
// equivalent scale-then-encode step with golang.org/x/image/draw in
// place of the stdlib draw package, since x/image/draw's Scaler interface
// is what a one-shot CLI dump wants over a draw-into-destination-image
// loop.
package main

import (
	"flag"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"

	"golang.org/x/image/draw"

	"github.com/intuitionamiga/ndscore/internal/romfile"
)

const (
	iconWidth  = 32
	iconHeight = 32
	tileSize   = 8
	paletteOff = 0x220
	paletteLen = 16 * 2
	tileDataOff = 0x20
	tileDataLen = 512 // 4x4 tiles of 8x8 pixels at 4bpp = 16 * 32 bytes
)

func main() {
	romPath := flag.String("rom", "", "ROM image path")
	outPath := flag.String("out", "banner.png", "output PNG path")
	scale := flag.Int("scale", 4, "integer upscale factor (nearest-neighbor)")
	flag.Parse()

	if *romPath == "" {
		fmt.Fprintln(os.Stderr, "usage: bannerdump -rom game.nds [-out banner.png] [-scale 4]")
		os.Exit(1)
	}

	data, err := os.ReadFile(*romPath)
	if err != nil {
		fatalf("read rom: %v", err)
	}
	img, err := romfile.LoadBytes(data)
	if err != nil {
		fatalf("load rom: %v", err)
	}
	defer img.Close()

	banner := img.ReadAt(img.Header.IconBannerOffset, tileDataOff+tileDataLen+paletteLen)
	if len(banner) < tileDataOff+tileDataLen+paletteLen {
		fatalf("banner data truncated at offset %#x", img.Header.IconBannerOffset)
	}

	pal := decodePalette(banner[paletteOff : paletteOff+paletteLen])
	icon := decodeIcon(banner[tileDataOff:tileDataOff+tileDataLen], pal)

	dst := icon
	if *scale > 1 {
		bounds := image.Rect(0, 0, iconWidth*(*scale), iconHeight*(*scale))
		scaled := image.NewPaletted(bounds, pal)
		draw.NearestNeighbor.Scale(scaled, bounds, icon, icon.Bounds(), draw.Src, nil)
		dst = scaled
	}

	f, err := os.Create(*outPath)
	if err != nil {
		fatalf("create output: %v", err)
	}
	defer f.Close()
	if err := png.Encode(f, dst); err != nil {
		fatalf("encode png: %v", err)
	}
	fmt.Printf("wrote %s (%q)\n", *outPath, img.Header.GameTitle)
}

// decodePalette converts the banner's 16 little-endian BGR555 entries into
// an image/color.Palette, index 0 transparent per the icon format's
// convention.
func decodePalette(raw []byte) color.Palette {
	pal := make(color.Palette, 16)
	for i := 0; i < 16; i++ {
		v := uint16(raw[i*2]) | uint16(raw[i*2+1])<<8
		r := uint8(uint32(v&0x1F) * 255 / 31)
		g := uint8(uint32((v>>5)&0x1F) * 255 / 31)
		b := uint8(uint32((v>>10)&0x1F) * 255 / 31)
		a := uint8(0xFF)
		if i == 0 {
			a = 0
		}
		pal[i] = color.NRGBA{R: r, G: g, B: b, A: a}
	}
	return pal
}

// decodeIcon unpacks the 4x4 grid of 8x8 4bpp tiles (row-major within each
// tile, tiles row-major within the grid) into a paletted image.
func decodeIcon(tiles []byte, pal color.Palette) *image.Paletted {
	img := image.NewPaletted(image.Rect(0, 0, iconWidth, iconHeight), pal)
	const tilesPerRow = iconWidth / tileSize
	for tileIdx := 0; tileIdx < tilesPerRow*tilesPerRow; tileIdx++ {
		tileX := (tileIdx % tilesPerRow) * tileSize
		tileY := (tileIdx / tilesPerRow) * tileSize
		tileOff := tileIdx * 32 // 8x8 pixels at 4bpp = 32 bytes/tile
		for row := 0; row < tileSize; row++ {
			for col := 0; col < tileSize; col += 2 {
				b := tiles[tileOff+row*4+col/2]
				img.SetColorIndex(tileX+col, tileY+row, b&0xF)
				img.SetColorIndex(tileX+col+1, tileY+row, b>>4)
			}
		}
	}
	return img
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "bannerdump: "+format+"\n", args...)
	os.Exit(1)
}
