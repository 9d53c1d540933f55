package gpu3d

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

// ScreenWidth and ScreenHeight are the DS LCD's fixed pixel dimensions (the
// rasterizer's own copy, since gpu3d has no dependency on gpu2d - the 2D
// engine instead reads the rasterizer's completed scanlines as a special
// BG0 source).
const (
	ScreenWidth  = 256
	ScreenHeight = 192
)

// DepthMode selects Z-buffer or W-buffer depth comparison.
type DepthMode uint8

const (
	DepthZBuffer DepthMode = iota
	DepthWBuffer
)

// TexMem is the minimal VRAM-texture/palette read surface the rasterizer
// needs; grounded on internal/spu's MemReader pattern (the narrowest
// interface a component needs, satisfied structurally rather than by
// importing internal/bus directly).
type TexMem interface {
	ReadTexture(addr uint32) uint8
	ReadTexPal(addr uint32) uint8
}

// scanlinePixel is one rasterized output pixel: color plus the bookkeeping
// edge-marking and fog passes need.
type scanlinePixel struct {
	color       [3]uint8
	alpha       uint8
	depth       int32
	polyID      uint8
	translucent bool
	covered     bool
}

// interpolator implements the scanline-interpolator formula real hardware
// uses: an approximate perspective-correct factor computed once per edge
// column, then used to linearly interpolate every vertex attribute -
// falling back to exact linear interpolation when both endpoint W values
// are equal.
type interpolator struct {
	x0, xdiff int32
	linear    bool
	w0, w1    int32
	factor    int32 // 0..(1<<shift), the "0..1" approximate perspective factor
	shift     uint
}

// setup configures the interpolator for one edge between two X (or Y)
// coordinates with their associated W (clip-space w) values. shift is 8
// for interpolation along X, 9 along Y - matching the precision real
// hardware uses for each axis.
func (ip *interpolator) setup(x0, x1, w0, w1 int32, shift uint) {
	ip.x0 = x0
	ip.xdiff = x1 - x0
	ip.w0, ip.w1 = w0, w1
	ip.shift = shift
	ip.linear = w0 == w1
}

// at computes the interpolation factor for position x along the edge,
// using the hardware's perspective formula:
// (x * w0n) / (x*w0d + (xdiff-x)*w1d) at 9-bit (Y) or 8-bit (X) precision.
func (ip *interpolator) at(x int32) {
	if ip.xdiff == 0 || ip.linear {
		return
	}
	xr := x - ip.x0
	num := int64(xr) * int64(ip.w0) << ip.shift
	den := int64(xr)*int64(ip.w0) + int64(int32(ip.xdiff)-xr)*int64(ip.w1)
	if den == 0 {
		ip.factor = 0
		return
	}
	ip.factor = int32(num / den)
}

// interpolate blends y0/y1 (an arbitrary vertex attribute already widened
// to int32) by the current factor.
func (ip *interpolator) interpolate(x, y0, y1 int32) int32 {
	if ip.xdiff == 0 || y0 == y1 {
		return y0
	}
	if ip.linear {
		if y0 < y1 {
			return y0 + int32((int64(y1-y0)*int64(x-ip.x0))/int64(ip.xdiff))
		}
		return y1 + int32((int64(y0-y1)*int64(ip.xdiff-(x-ip.x0)))/int64(ip.xdiff))
	}
	full := int32(1) << ip.shift
	if y0 < y1 {
		return y0 + ((y1-y0)*ip.factor)>>ip.shift
	}
	return y1 + ((y0-y1)*(full-ip.factor))>>ip.shift
}

// Renderer owns the two framebuffers (color+depth+polygon-ID per pixel)
// and the worker goroutine that fills them from a committed polygon list.
type Renderer struct {
	mem TexMem

	mu      sync.Mutex
	color   [ScreenHeight][ScreenWidth][3]uint8
	depth   [ScreenHeight][ScreenWidth]int32
	polyID  [ScreenHeight][ScreenWidth]uint8
	fogMask [ScreenHeight][ScreenWidth]bool

	clearColor [3]uint8
	clearDepth int32
	depthMode  DepthMode
	fogTable   [32]uint8 // density per depth bucket
	edgeColors [4][3]uint8

	polygons []Polygon

	semStart *semaphore.Weighted
	semDone  *semaphore.Weighted
	completed int32 // scanlines completed this frame, guarded by mu

	stopping bool
}

// NewRenderer constructs a Renderer bound to the texture/palette memory it
// samples from, and starts its worker goroutine.
func NewRenderer(mem TexMem) *Renderer {
	r := &Renderer{
		mem:      mem,
		semStart: semaphore.NewWeighted(1),
		semDone:  semaphore.NewWeighted(int64(ScreenHeight) + 1),
	}
	go r.workerLoop()
	return r
}

// SetFogTable and SetEdgeColors load the 32-entry fog density table and
// the four edge-marking colors the final scanline pass consumes.
func (r *Renderer) SetFogTable(t [32]uint8)       { r.fogTable = t }
func (r *Renderer) SetEdgeColors(c [4][3]uint8)   { r.edgeColors = c }
func (r *Renderer) SetDepthMode(m DepthMode)      { r.depthMode = m }
func (r *Renderer) SetClearColor(c [3]uint8, d int32) { r.clearColor, r.clearDepth = c, d }

// StartFrame hands a committed polygon list to the worker and signals the
// "start render" semaphore.
func (r *Renderer) StartFrame(polys []Polygon) {
	r.mu.Lock()
	r.polygons = polys
	r.completed = 0
	r.mu.Unlock()
	r.semStart.Release(1)
}

// workerLoop is the rasterizer thread: it blocks on semStart, renders every
// scanline of the handed-off polygon list, and releases semDone once per
// completed scanline.
func (r *Renderer) workerLoop() {
	ctx := context.Background()
	for {
		if err := r.semStart.Acquire(ctx, 1); err != nil {
			return
		}
		r.mu.Lock()
		if r.stopping {
			r.mu.Unlock()
			return
		}
		polys := r.polygons
		r.mu.Unlock()

		for y := 0; y < ScreenHeight; y++ {
			r.renderScanline(y, polys)
			r.semDone.Release(1)
		}
	}
}

// Close stops the worker goroutine deterministically.
func (r *Renderer) Close() {
	r.mu.Lock()
	r.stopping = true
	r.mu.Unlock()
	r.semStart.Release(1)
}

// GetLine returns the completed scanline y, blocking only if the emulation
// thread has read ahead of the rasterizer's progress - the 2D engine only
// stalls here when it reads a 3D scanline before the rasterizer has
// finished producing it.
func (r *Renderer) GetLine(y int) [ScreenWidth][3]uint8 {
	ctx := context.Background()
	for {
		r.mu.Lock()
		done := r.completed
		r.mu.Unlock()
		if int(done) > y {
			break
		}
		if err := r.semDone.Acquire(ctx, 1); err != nil {
			break
		}
		r.mu.Lock()
		r.completed++
		r.mu.Unlock()
	}
	return r.color[y]
}

// renderScanline rasterizes every polygon touching line y into the shared
// framebuffers: polygon setup (left/right edge walk), per-pixel texture
// sampling and blend, depth test, then the edge-marking and fog final
// pass.
func (r *Renderer) renderScanline(y int, polys []Polygon) {
	r.mu.Lock()
	for x := 0; x < ScreenWidth; x++ {
		r.color[y][x] = r.clearColor
		r.depth[y][x] = r.clearDepth
		r.polyID[y][x] = 0xFF
		r.fogMask[y][x] = false
	}
	r.mu.Unlock()

	var line [ScreenWidth]scanlinePixel
	for x := range line {
		line[x].depth = r.clearDepth
		line[x].polyID = 0xFF
	}

	for pi := range polys {
		r.rasterizePolygon(&polys[pi], uint8(pi), y, &line)
	}

	r.mu.Lock()
	for x := 0; x < ScreenWidth; x++ {
		p := line[x]
		r.color[y][x] = p.color
		r.depth[y][x] = p.depth
		r.polyID[y][x] = p.polyID
	}
	r.edgeMarkAndFog(y, &line)
	for x := 0; x < ScreenWidth; x++ {
		r.color[y][x] = line[x].color
	}
	r.completed = int32(y + 1)
	r.mu.Unlock()
}

// rasterizePolygon fills line with poly's contribution at row y: find the
// polygon's left/right screen-space edges at y (skipping it if y falls
// outside the polygon's vertical span), then scan x from left to right
// testing depth and shading each covered pixel.
func (r *Renderer) rasterizePolygon(poly *Polygon, polyIdx uint8, y int, line *[ScreenWidth]scanlinePixel) {
	if len(poly.Vertices) < 3 {
		return
	}
	minY, maxY := poly.Vertices[0].ScreenY, poly.Vertices[0].ScreenY
	for _, v := range poly.Vertices {
		if v.ScreenY < minY {
			minY = v.ScreenY
		}
		if v.ScreenY > maxY {
			maxY = v.ScreenY
		}
	}
	if int32(y) < minY || int32(y) > maxY {
		return
	}

	left, right, found := polygonSpanAt(poly, int32(y))
	if !found || left.x > right.x {
		return
	}

	var xInterp interpolator
	xInterp.setup(left.x, right.x, left.w, right.w, 8)

	for x := left.x; x <= right.x; x++ {
		if x < 0 || x >= ScreenWidth {
			continue
		}
		xInterp.at(x)
		z := xInterp.interpolate(x, left.z, right.z)
		w := xInterp.interpolate(x, left.w, right.w)
		depthVal := z
		if r.depthMode == DepthWBuffer {
			depthVal = w
		}

		cur := &line[x]
		if int32(depthVal) >= cur.depth && cur.polyID != 0xFF {
			continue
		}

		colorR := xInterp.interpolate(x, int32(left.color[0]), int32(right.color[0]))
		colorG := xInterp.interpolate(x, int32(left.color[1]), int32(right.color[1]))
		colorB := xInterp.interpolate(x, int32(left.color[2]), int32(right.color[2]))
		u := xInterp.interpolate(x, int32(left.u), int32(right.u))
		v := xInterp.interpolate(x, int32(left.v), int32(right.v))

		texColor, texAlpha := r.sampleTexture(poly.Tex, poly.TexPal, int16(u), int16(v))
		final := blendPixel(poly.Attr.Mode, [3]uint8{uint8(colorR), uint8(colorG), uint8(colorB)}, texColor, texAlpha)

		cur.color = final
		cur.depth = int32(depthVal)
		cur.polyID = poly.Attr.PolygonID
		cur.alpha = poly.Attr.Alpha
		cur.translucent = poly.Attr.Alpha < 31
		cur.covered = true
	}
}

// edgeSample is one edge's interpolated state at a given scanline.
type edgeSample struct {
	x, z, w int32
	color   [3]uint8
	u, v    int16
}

// polygonSpanAt finds the leftmost and rightmost edge crossings of poly at
// scanline y by walking its vertex ring and linearly interpolating each
// edge's X/Z/W/color/UV at y - a representative simplification of
// original_source's per-edge Slope class, which additionally tracks
// X-major/Y-major antialiasing coverage; edge-smoothing antialiasing is
// out of scope here (see DESIGN.md).
func polygonSpanAt(poly *Polygon, y int32) (left, right edgeSample, found bool) {
	n := len(poly.Vertices)
	var best [2]edgeSample
	count := 0
	for i := 0; i < n; i++ {
		a := poly.Vertices[i]
		b := poly.Vertices[(i+1)%n]
		y0, y1 := a.ScreenY, b.ScreenY
		if y0 == y1 {
			continue
		}
		lo, hi := y0, y1
		swapped := false
		if lo > hi {
			lo, hi = hi, lo
			swapped = true
		}
		if y < lo || y >= hi {
			continue
		}
		var t int64
		if swapped {
			t = int64(y1-y) * 4096 / int64(y1-y0)
		} else {
			t = int64(y-y0) * 4096 / int64(y1-y0)
		}
		sample := lerpEdge(a, b, t)
		if count < 2 {
			best[count] = sample
			count++
		}
	}
	if count < 2 {
		return edgeSample{}, edgeSample{}, false
	}
	if best[0].x <= best[1].x {
		return best[0], best[1], true
	}
	return best[1], best[0], true
}

func lerpEdge(a, b Vertex, t int64) edgeSample {
	lerp := func(x, y int32) int32 { return x + int32((int64(y-x)*t)>>12) }
	return edgeSample{
		x: lerp(a.ScreenX, b.ScreenX),
		z: lerp(a.ClipPos[2], b.ClipPos[2]),
		w: lerp(a.ClipPos[3], b.ClipPos[3]),
		color: [3]uint8{
			uint8(lerp(int32(a.Color[0]), int32(b.Color[0]))),
			uint8(lerp(int32(a.Color[1]), int32(b.Color[1]))),
			uint8(lerp(int32(a.Color[2]), int32(b.Color[2]))),
		},
		u: int16(lerp(int32(a.UV[0]), int32(b.UV[0]))),
		v: int16(lerp(int32(a.UV[1]), int32(b.UV[1]))),
	}
}

// blendPixel combines the interpolated vertex color with the sampled
// texture color per the polygon's shading mode.
func blendPixel(mode PolygonMode, vtxColor, texColor [3]uint8, texAlpha uint8) [3]uint8 {
	if texAlpha == 0 {
		return vtxColor
	}
	switch mode {
	case PolyDecal:
		return texColor
	case PolyToonHighlight:
		return [3]uint8{
			clampAdd(texColor[0], vtxColor[0]),
			clampAdd(texColor[1], vtxColor[1]),
			clampAdd(texColor[2], vtxColor[2]),
		}
	default: // modulate, shadow
		return [3]uint8{
			uint8((uint16(texColor[0]) * uint16(vtxColor[0])) >> 5),
			uint8((uint16(texColor[1]) * uint16(vtxColor[1])) >> 5),
			uint8((uint16(texColor[2]) * uint16(vtxColor[2])) >> 5),
		}
	}
}

func clampAdd(a, b uint8) uint8 {
	v := int(a) + int(b)
	if v > 31 {
		return 31
	}
	return uint8(v)
}

// edgeMarkAndFog applies the final per-scanline pass: edge marking on
// pixels whose neighbor carries a different polygon ID, then fog density
// sampled from the 32-entry table indexed by depth.
func (r *Renderer) edgeMarkAndFog(y int, line *[ScreenWidth]scanlinePixel) {
	for x := 0; x < ScreenWidth; x++ {
		p := &line[x]
		if !p.covered {
			continue
		}
		if x > 0 && line[x-1].covered && line[x-1].polyID != p.polyID {
			edge := r.edgeColors[p.polyID>>4&3]
			p.color = edge
		} else if x < ScreenWidth-1 && line[x+1].covered && line[x+1].polyID != p.polyID {
			edge := r.edgeColors[p.polyID>>4&3]
			p.color = edge
		}

		bucket := (p.depth >> 9) & 0x1F
		density := r.fogTable[bucket]
		if density > 0 {
			p.color = fogBlend(p.color, density)
		}
	}
}

func fogBlend(c [3]uint8, density uint8) [3]uint8 {
	d := int(density)
	return [3]uint8{
		uint8((int(c[0])*(128-d) + 31*d) / 128),
		uint8((int(c[1])*(128-d) + 31*d) / 128),
		uint8((int(c[2])*(128-d) + 31*d) / 128),
	}
}
