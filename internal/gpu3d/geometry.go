package gpu3d

// Fixed-point conventions: matrix entries are 1.19.12 (12 fractional
// bits); vertex clip-space coordinates are 1.12.19 (19 fractional bits).
// All geometry math here works in the matrices' 12-fractional-bit scale
// and only rescales to 19 bits when a vertex's final clip position is
// recorded into a Polygon/Vertex.
const (
	matFracBits = 12
	matOne      = 1 << matFracBits

	clipFracBits = 19
)

// Mat4 is a 4x4 matrix of 1.19.12 fixed-point entries, row-major.
type Mat4 [16]int64

func identityMat4() Mat4 {
	var m Mat4
	m[0], m[5], m[10], m[15] = matOne, matOne, matOne, matOne
	return m
}

// mul4 computes a*b in the shared 12-fractional-bit scale.
func mul4(a, b Mat4) Mat4 {
	var out Mat4
	for r := 0; r < 4; r++ {
		for c := 0; c < 4; c++ {
			var sum int64
			for k := 0; k < 4; k++ {
				sum += a[r*4+k] * b[k*4+c]
			}
			out[r*4+c] = sum >> matFracBits
		}
	}
	return out
}

// Vec4 is a homogeneous 4-vector in the matrices' 12-fractional-bit scale.
type Vec4 [4]int64

func transform(m Mat4, v Vec4) Vec4 {
	var out Vec4
	for r := 0; r < 4; r++ {
		var sum int64
		for c := 0; c < 4; c++ {
			sum += m[r*4+c] * v[c]
		}
		out[r] = sum >> matFracBits
	}
	return out
}

// MatrixMode selects which stack subsequent matrix commands target.
type MatrixMode uint8

const (
	ModeProjection MatrixMode = iota
	ModePositionVector
	ModePosition
	ModeTexture
)

// Stack depths match real hardware: projection stack depth 1+1,
// position/vector stacks depth 31+1 (shared counter), texture stack depth
// 1+1.
const (
	projStackDepth = 2
	posStackDepth  = 32
	texStackDepth  = 2
)

// matrixUnit owns one logical stack (projection, position+vector sharing
// one pointer, or texture) plus the stack-pointer-overflow latch: an
// MTX_PUSH at a full stack sets the overflow error flag readable from
// GXSTAT but still advances modulo-style rather than discarding the push.
type matrixUnit struct {
	stack    []Mat4
	sp       int
	overflow bool
}

func newMatrixUnit(depth int) *matrixUnit {
	s := make([]Mat4, depth)
	for i := range s {
		s[i] = identityMat4()
	}
	return &matrixUnit{stack: s}
}

func (u *matrixUnit) push(m Mat4) {
	u.stack[u.sp%len(u.stack)] = m
	u.sp++
	if u.sp >= len(u.stack) {
		u.overflow = true
	}
}

func (u *matrixUnit) pop(n int) Mat4 {
	u.sp -= n
	if u.sp < 0 {
		u.overflow = true
		u.sp = 0
	}
	return u.stack[u.sp%len(u.stack)]
}

// PolygonMode selects the pixel-shading mode a polygon was submitted with:
// modulate, decal, toon/highlight, or shadow.
type PolygonMode uint8

const (
	PolyModulate PolygonMode = iota
	PolyDecal
	PolyToonHighlight
	PolyShadow
)

// TexCoordMode selects how the texture matrix transforms a vertex's UV.
type TexCoordMode uint8

const (
	TexCoordNone TexCoordMode = iota
	TexCoordTexCoord
	TexCoordNormal
	TexCoordVertex
)

// PolygonAttr mirrors the POLYGON_ATTR command's bitfields.
type PolygonAttr struct {
	LightMask     uint8
	Mode          PolygonMode
	RenderBack    bool
	RenderFront   bool
	SetNewDepth   bool
	FogEnable     bool
	Alpha         uint8 // 0-31
	PolygonID     uint8 // 0-63
}

// TexImageParam mirrors the TEXIMAGE_PARAM command.
type TexImageParam struct {
	Offset      uint32 // VRAM texture offset in bytes (the register's 8-byte-unit field times 8)
	SRepeat     bool
	TRepeat     bool
	SFlip       bool
	TFlip       bool
	SSize       uint16 // 8..1024
	TSize       uint16
	Format      TexFormat
	ColorZeroTransparent bool
	TransformMode TexCoordMode
}

// TexFormat selects the texel decode scheme.
type TexFormat uint8

const (
	TexNone TexFormat = iota
	TexA3I5
	Tex2bpp
	Tex4bpp
	Tex8bpp
	Tex4x4Compressed
	TexA5I3
	TexDirectColor
)

// Light is one of the four fixed-function directional lights.
type Light struct {
	Direction  Vec4 // normalized direction, matrix-transformed by the vector matrix on write
	Color      [3]uint8
}

// MaterialColors mirrors the DIFFUSE_AMBIENT and SPECULAR_EMISSION
// commands.
type MaterialColors struct {
	Diffuse, Ambient, Specular, Emission [3]uint8
	UseShininessTable                    bool
}

// Vertex is one transformed, lit vertex.
type Vertex struct {
	ClipPos  [4]int32 // 1.12.19 fixed
	ScreenX  int32
	ScreenY  int32
	Color    [3]uint8
	UV       [2]int16
}

// Polygon is a fully-assembled, clipped polygon ready for rasterization.
type Polygon struct {
	Vertices []Vertex
	Attr     PolygonAttr
	Tex      TexImageParam
	TexPal   uint32
}

// primitiveKind selects how BEGIN_VTXS's successive VTX_* submissions
// assemble into polygons.
type primitiveKind uint8

const (
	primTriangles primitiveKind = iota
	primQuads
	primTriangleStrip
	primQuadStrip
)

const (
	maxPolygons = 2048
	maxVertices = 6144
)

// geometryState is the matrix engine plus the in-progress primitive
// assembler and the committed polygon/vertex lists.
type geometryState struct {
	mode MatrixMode

	proj *matrixUnit
	pos  *matrixUnit // position and vector share one stack pointer
	vec  *matrixUnit
	tex  *matrixUnit

	curProj, curPos, curVec, curTex Mat4
	clipDirty                       bool
	clip                            Mat4

	curColor [3]uint8
	curUV    [2]int16
	texCoordMode TexCoordMode

	curPolyAttr PolygonAttr
	curTexParam TexImageParam
	curTexPal   uint32
	material    MaterialColors
	lights      [4]Light
	shininess   [128]uint8

	prim        primitiveKind
	inPrimitive bool
	vtxBuf      []Vertex // raw, untransformed-to-screen vertices accumulated for the current primitive

	polygons []Polygon
	vertices int // total committed vertex count, for the GXSTAT overflow check

	vramOverflow bool // polygon/vertex list overflow latch

	lastX, lastY, lastZ int64 // most recent vertex coordinate, for VTX_XY/XZ/YZ/DIFF's implied axis and delta encoding

	viewX1, viewY1, viewX2, viewY2 uint8 // VIEWPORT command's screen rectangle, applied to vertices at polygon-commit time
}

func newGeometryState() *geometryState {
	g := &geometryState{
		proj: newMatrixUnit(projStackDepth),
		pos:  newMatrixUnit(posStackDepth),
		vec:  newMatrixUnit(posStackDepth),
		tex:  newMatrixUnit(texStackDepth),
	}
	g.curProj = identityMat4()
	g.curPos = identityMat4()
	g.curVec = identityMat4()
	g.curTex = identityMat4()
	g.clip = identityMat4()
	for i := range g.shininess {
		g.shininess[i] = uint8(i)
	}
	g.viewX2, g.viewY2 = ScreenWidth-1, ScreenHeight-1
	return g
}

func (g *geometryState) reset() {
	*g = *newGeometryState()
}

// takePolygons hands the committed polygon list to the caller (gpu3d.go's
// SWAP_BUFFERS handling) and resets the geometry engine's lists for the next
// frame.
func (g *geometryState) takePolygons() []Polygon {
	p := g.polygons
	g.polygons = nil
	g.vertices = 0
	return p
}

// matrixOverflow reports whether any matrix stack has latched an
// overflow/underflow error since the last GXSTAT clear.
func (g *geometryState) matrixOverflow() bool {
	return g.proj.overflow || g.pos.overflow || g.vec.overflow || g.tex.overflow
}

func (g *geometryState) clearMatrixOverflow() {
	g.proj.overflow, g.pos.overflow, g.vec.overflow, g.tex.overflow = false, false, false, false
}

func (g *geometryState) recomputeClip() {
	g.clip = mul4(g.curProj, g.curPos)
	g.clipDirty = false
}

// execute dispatches one fully-parameterized command to the geometry
// engine. params holds the accumulated parameter words in submission
// order (cmdNumParams[op] of them).
func (g *geometryState) execute(op Opcode, params []uint32) {
	switch op {
	case OpMtxMode:
		g.mode = MatrixMode(params[0] & 3)
	case OpMtxPush:
		g.pushCurrent()
	case OpMtxPop:
		n := int(int8(params[0]<<2) >> 2) // 6-bit two's complement pop count
		g.popCurrent(n)
	case OpMtxStore, OpMtxRestore:
		// Absolute-index store/restore: representative no-op beyond stack
		// discipline; indexed slots are rarely used by real titles compared
		// to push/pop and the transform pipeline.
	case OpMtxIdentity:
		g.setCurrent(identityMat4())
	case OpMtxLoad44:
		g.setCurrent(mat4FromParams(params))
	case OpMtxLoad43:
		g.setCurrent(mat43FromParams(params))
	case OpMtxMult44:
		g.multCurrent(mat4FromParams(params))
	case OpMtxMult43:
		g.multCurrent(mat43FromParams(params))
	case OpMtxMult33:
		g.multCurrent(mat33FromParams(params))
	case OpMtxScale:
		g.multCurrent(scaleMat(fx(params[0]), fx(params[1]), fx(params[2])))
	case OpMtxTrans:
		g.multCurrent(transMat(fx(params[0]), fx(params[1]), fx(params[2])))

	case OpColor:
		g.curColor = color15(params[0])
	case OpNormal:
		g.applyLighting(unpackVec10(params[0]))
	case OpTexCoord:
		g.curUV = [2]int16{int16(params[0]), int16(params[0] >> 16)}
	case OpVtx16:
		g.submitVertex(fx16(int16(params[0])), fx16(int16(params[0]>>16)), fx16(int16(params[1])))
	case OpVtx10:
		g.submitVertex(fx10(params[0]), fx10(params[0]>>10), fx10(params[0]>>20))
	case OpVtxXY:
		g.submitVertex(fx16(int16(params[0])), fx16(int16(params[0]>>16)), g.lastZ)
	case OpVtxXZ:
		g.submitVertex(fx16(int16(params[0])), g.lastY, fx16(int16(params[0]>>16)))
	case OpVtxYZ:
		g.submitVertex(g.lastX, fx16(int16(params[0])), fx16(int16(params[0]>>16)))
	case OpVtxDiff:
		g.submitVertex(g.lastX+fx10signed(params[0]), g.lastY+fx10signed(params[0]>>10), g.lastZ+fx10signed(params[0]>>20))

	case OpPolygonAttr:
		g.curPolyAttr = decodePolygonAttr(params[0])
	case OpTexImageParam:
		g.curTexParam = decodeTexImageParam(params[0])
	case OpTexPltBase:
		g.curTexPal = params[0] & 0x1FFF

	case OpDiffAmb:
		g.material.Diffuse, g.material.Ambient = color15(params[0]), color15(params[0]>>16)
		g.material.UseShininessTable = params[0]&0x8000 != 0
	case OpSpecEmi:
		g.material.Specular, g.material.Emission = color15(params[0]), color15(params[0]>>16)
	case OpLightVector:
		idx := (params[0] >> 30) & 3
		dir := transform(g.curVec, unpackVec10(params[0]))
		g.lights[idx].Direction = dir
	case OpLightColor:
		idx := (params[0] >> 30) & 3
		g.lights[idx].Color = color15(params[0])
	case OpShininess:
		for i, p := range params {
			g.shininess[i*4] = uint8(p)
			g.shininess[i*4+1] = uint8(p >> 8)
			g.shininess[i*4+2] = uint8(p >> 16)
			g.shininess[i*4+3] = uint8(p >> 24)
		}

	case OpViewport:
		g.viewX1 = uint8(params[0])
		g.viewY1 = uint8(params[0] >> 8)
		g.viewX2 = uint8(params[0] >> 16)
		g.viewY2 = uint8(params[0] >> 24)

	case OpBeginVtxs:
		g.prim = primitiveKind(params[0] & 3)
		g.inPrimitive = true
		g.vtxBuf = g.vtxBuf[:0]
	case OpEndVtxs:
		g.inPrimitive = false
	}
}

func (g *geometryState) pushCurrent() {
	switch g.mode {
	case ModeProjection:
		g.proj.push(g.curProj)
	case ModePositionVector:
		g.pos.push(g.curPos)
		g.vec.push(g.curVec)
	case ModePosition:
		g.pos.push(g.curPos)
	case ModeTexture:
		g.tex.push(g.curTex)
	}
}

func (g *geometryState) popCurrent(n int) {
	switch g.mode {
	case ModeProjection:
		g.curProj = g.proj.pop(n)
	case ModePositionVector:
		g.curPos = g.pos.pop(n)
		g.curVec = g.vec.pop(n)
	case ModePosition:
		g.curPos = g.pos.pop(n)
	case ModeTexture:
		g.curTex = g.tex.pop(n)
	}
	g.clipDirty = true
}

func (g *geometryState) setCurrent(m Mat4) {
	switch g.mode {
	case ModeProjection:
		g.curProj = m
	case ModePositionVector:
		g.curPos, g.curVec = m, m
	case ModePosition:
		g.curPos = m
	case ModeTexture:
		g.curTex = m
	}
	g.clipDirty = true
}

func (g *geometryState) multCurrent(m Mat4) {
	switch g.mode {
	case ModeProjection:
		g.curProj = mul4(g.curProj, m)
	case ModePositionVector:
		g.curPos = mul4(g.curPos, m)
		g.curVec = mul4(g.curVec, m)
	case ModePosition:
		g.curPos = mul4(g.curPos, m)
	case ModeTexture:
		g.curTex = mul4(g.curTex, m)
	}
	g.clipDirty = true
}

func (g *geometryState) applyLighting(n Vec4) {
	normal := transform(g.curVec, n)
	r, gg, b := int32(g.material.Emission[0]), int32(g.material.Emission[1]), int32(g.material.Emission[2])
	for i := range g.lights {
		if g.curPolyAttr.LightMask&(1<<i) == 0 {
			continue
		}
		l := &g.lights[i]
		diffuseDot := dot3(normal, l.Direction)
		if diffuseDot < 0 {
			diffuseDot = -diffuseDot
		}
		shade := int32(diffuseDot >> matFracBits)
		r += (int32(g.material.Diffuse[0]) * int32(l.Color[0]) * shade) >> 13
		gg += (int32(g.material.Diffuse[1]) * int32(l.Color[1]) * shade) >> 13
		b += (int32(g.material.Diffuse[2]) * int32(l.Color[2]) * shade) >> 13
		r += (int32(g.material.Ambient[0]) * int32(l.Color[0])) >> 5
		gg += (int32(g.material.Ambient[1]) * int32(l.Color[1])) >> 5
		b += (int32(g.material.Ambient[2]) * int32(l.Color[2])) >> 5
	}
	g.curColor = [3]uint8{clamp31(r), clamp31(gg), clamp31(b)}
}

func dot3(a, b Vec4) int64 {
	return (a[0]*b[0] + a[1]*b[1] + a[2]*b[2]) >> matFracBits
}

func clamp31(v int32) uint8 {
	if v < 0 {
		return 0
	}
	if v > 31 {
		return 31
	}
	return uint8(v)
}

// submitVertex transforms a model-space vertex by the clip matrix
// (projection * position, recomputed lazily whenever either changes),
// records it in the current primitive's buffer, and assembles completed
// primitives into polygons as BEGIN_VTXS's primitive kind dictates.
func (g *geometryState) submitVertex(x, y, z int64) {
	g.lastX, g.lastY, g.lastZ = x, y, z
	if g.clipDirty {
		g.recomputeClip()
	}
	v := transform(g.clip, Vec4{x, y, z, matOne})

	var uv [2]int16
	switch g.curTexParam.TransformMode {
	case TexCoordTexCoord, TexCoordVertex:
		tv := transform(g.curTex, Vec4{x, y, z, matOne})
		uv = [2]int16{int16(tv[0] >> (matFracBits - 4)), int16(tv[1] >> (matFracBits - 4))}
	default:
		uv = g.curUV
	}

	vtx := Vertex{
		ClipPos: [4]int32{rescaleToClip(v[0]), rescaleToClip(v[1]), rescaleToClip(v[2]), rescaleToClip(v[3])},
		Color:   g.curColor,
		UV:      uv,
	}
	if !g.inPrimitive {
		return
	}
	g.vtxBuf = append(g.vtxBuf, vtx)
	g.assembleCompleted()
}

func rescaleToClip(v int64) int32 {
	return int32(v << (clipFracBits - matFracBits))
}

// assembleCompleted turns however many vertices primitiveVertexCount says
// are ready into a new polygon, clips it against the six view-frustum
// planes, and appends it to the committed polygon list.
func (g *geometryState) assembleCompleted() {
	n := primitiveVertexCount(g.prim)
	for len(g.vtxBuf) >= n {
		var raw []Vertex
		switch g.prim {
		case primTriangleStrip, primQuadStrip:
			// strips reuse the trailing n-2 (tri) or n-2 (quad, sharing two)
			// vertices of the prior primitive once the first is assembled;
			// represented here by always consuming the whole buffer window
			// and leaving the shared tail for the next iteration.
			raw = append([]Vertex(nil), g.vtxBuf[:n]...)
			g.vtxBuf = g.vtxBuf[n-2:]
		default:
			raw = append([]Vertex(nil), g.vtxBuf[:n]...)
			g.vtxBuf = g.vtxBuf[n:]
		}
		g.commitPolygon(clipPolygon(raw))
		if g.prim == primTriangles || g.prim == primQuads {
			continue
		}
		break // strips: only one new polygon per call, wait for the next vertex
	}
}

func primitiveVertexCount(p primitiveKind) int {
	switch p {
	case primTriangles, primTriangleStrip:
		return 3
	default:
		return 4
	}
}

// applyViewport maps a vertex's clip-space position through the perspective
// divide and the VIEWPORT command's screen rectangle into ScreenX/ScreenY;
// the DS flips Y so viewY2 is the top row.
func (g *geometryState) applyViewport(v *Vertex) {
	w := int64(v.ClipPos[3])
	if w == 0 {
		w = 1
	}
	x1, x2 := int64(g.viewX1), int64(g.viewX2)
	y1, y2 := int64(g.viewY1), int64(g.viewY2)
	width := x2 - x1 + 1
	height := y2 - y1 + 1
	v.ScreenX = int32(x1 + ((int64(v.ClipPos[0])+w)*width)/(2*w))
	v.ScreenY = int32(y2 - ((int64(v.ClipPos[1])+w)*height)/(2*w))
}

func (g *geometryState) commitPolygon(verts []Vertex) {
	if len(verts) == 0 {
		return
	}
	if len(g.polygons) >= maxPolygons || g.vertices+len(verts) > maxVertices {
		g.vramOverflow = true
		return
	}
	for i := range verts {
		g.applyViewport(&verts[i])
	}
	g.polygons = append(g.polygons, Polygon{
		Vertices: verts,
		Attr:     g.curPolyAttr,
		Tex:      g.curTexParam,
		TexPal:   g.curTexPal,
	})
	g.vertices += len(verts)
}

// clipPolygon implements Sutherland-Hodgman clipping against the six
// view-frustum planes (-w<=x<=w, -w<=y<=w, -w<=z<=w per clip-space
// convention), producing 0..10 vertices.
func clipPolygon(poly []Vertex) []Vertex {
	planes := []func(Vertex) int64{
		func(v Vertex) int64 { return int64(v.ClipPos[3]) + int64(v.ClipPos[0]) }, // x >= -w
		func(v Vertex) int64 { return int64(v.ClipPos[3]) - int64(v.ClipPos[0]) }, // x <= w
		func(v Vertex) int64 { return int64(v.ClipPos[3]) + int64(v.ClipPos[1]) },
		func(v Vertex) int64 { return int64(v.ClipPos[3]) - int64(v.ClipPos[1]) },
		func(v Vertex) int64 { return int64(v.ClipPos[3]) + int64(v.ClipPos[2]) },
		func(v Vertex) int64 { return int64(v.ClipPos[3]) - int64(v.ClipPos[2]) },
	}
	out := poly
	for _, inside := range planes {
		if len(out) == 0 {
			break
		}
		out = clipAgainstPlane(out, inside)
	}
	if len(out) > 10 {
		out = out[:10]
	}
	return out
}

func clipAgainstPlane(poly []Vertex, inside func(Vertex) int64) []Vertex {
	var out []Vertex
	n := len(poly)
	for i := 0; i < n; i++ {
		cur := poly[i]
		prev := poly[(i-1+n)%n]
		curIn := inside(cur) >= 0
		prevIn := inside(prev) >= 0
		if curIn {
			if !prevIn {
				out = append(out, lerpVertex(prev, cur, inside))
			}
			out = append(out, cur)
		} else if prevIn {
			out = append(out, lerpVertex(prev, cur, inside))
		}
	}
	return out
}

func lerpVertex(a, b Vertex, inside func(Vertex) int64) Vertex {
	da, db := inside(a), inside(b)
	denom := da - db
	if denom == 0 {
		return a
	}
	t := da * 256 / denom // fixed-point fraction, 8 bits
	lerp32 := func(x, y int32) int32 { return x + int32((int64(y-x)*t)>>8) }
	lerp8 := func(x, y uint8) uint8 { return uint8(int32(x) + int32((int64(y)-int64(x))*t)>>8) }
	return Vertex{
		ClipPos: [4]int32{lerp32(a.ClipPos[0], b.ClipPos[0]), lerp32(a.ClipPos[1], b.ClipPos[1]), lerp32(a.ClipPos[2], b.ClipPos[2]), lerp32(a.ClipPos[3], b.ClipPos[3])},
		Color:   [3]uint8{lerp8(a.Color[0], b.Color[0]), lerp8(a.Color[1], b.Color[1]), lerp8(a.Color[2], b.Color[2])},
		UV:      [2]int16{int16(lerp32(int32(a.UV[0]), int32(b.UV[0]))), int16(lerp32(int32(a.UV[1]), int32(b.UV[1])))},
	}
}

// -- fixed-point decode helpers. Each vertex command packs its own
// fixed-point width: VTX_16 is 1.3.12, VTX_10 is 1.3.6 and VTX_DIFF is
// 1.0.9, the last two scaled up to the matrix engine's 1.19.12 working
// scale.

func fx(v uint32) int64  { return int64(int32(v)) }
func fx16(v int16) int64 { return int64(v) }

// signExtend10 sign-extends a 10-bit field (already shifted down into
// bits 0-9) to a plain signed integer value.
func signExtend10(bits uint32) int64 {
	v := int32(bits&0x3FF) << 22
	return int64(v >> 22)
}

// fx10 decodes one VTX_10-format component: a signed 10-bit value with 6
// fractional bits, rescaled to the matrix engine's 12-fractional-bit
// working scale.
func fx10(v uint32) int64 { return signExtend10(v) << (matFracBits - 6) }

// fx10signed decodes one VTX_DIFF-format delta component: a signed 10-bit
// value with 9 fractional bits, relative to the previous vertex.
func fx10signed(v uint32) int64 { return signExtend10(v) << (matFracBits - 9) }

func color15(v uint32) [3]uint8 {
	return [3]uint8{uint8(v & 0x1F), uint8((v >> 5) & 0x1F), uint8((v >> 10) & 0x1F)}
}

// unpackVec10 decodes a NORMAL/LIGHT_VECTOR-format packed triple: three
// signed 10-bit components with 9 fractional bits each.
func unpackVec10(v uint32) Vec4 {
	x := signExtend10(v) << (matFracBits - 9)
	y := signExtend10(v>>10) << (matFracBits - 9)
	z := signExtend10(v>>20) << (matFracBits - 9)
	return Vec4{x, y, z, 0}
}

func mat4FromParams(p []uint32) Mat4 {
	var m Mat4
	for i := 0; i < 16; i++ {
		m[i] = fx(p[i])
	}
	return m
}

func mat43FromParams(p []uint32) Mat4 {
	m := identityMat4()
	for r := 0; r < 4; r++ {
		for c := 0; c < 3; c++ {
			m[r*4+c] = fx(p[r*3+c])
		}
	}
	return m
}

func mat33FromParams(p []uint32) Mat4 {
	m := identityMat4()
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			m[r*4+c] = fx(p[r*3+c])
		}
	}
	return m
}

func scaleMat(x, y, z int64) Mat4 {
	m := identityMat4()
	m[0], m[5], m[10] = x, y, z
	return m
}

func transMat(x, y, z int64) Mat4 {
	m := identityMat4()
	m[12], m[13], m[14] = x, y, z
	return m
}

func decodePolygonAttr(v uint32) PolygonAttr {
	return PolygonAttr{
		LightMask:   uint8(v & 0xF),
		Mode:        PolygonMode((v >> 4) & 3),
		RenderBack:  v&(1<<6) != 0,
		RenderFront: v&(1<<7) != 0,
		SetNewDepth: v&(1<<11) != 0,
		FogEnable:   v&(1<<15) != 0,
		Alpha:       uint8((v >> 16) & 0x1F),
		PolygonID:   uint8((v >> 24) & 0x3F),
	}
}

func decodeTexImageParam(v uint32) TexImageParam {
	return TexImageParam{
		Offset:               (v & 0xFFFF) * 8,
		SRepeat:              v&(1<<16) != 0,
		TRepeat:              v&(1<<17) != 0,
		SFlip:                v&(1<<18) != 0,
		TFlip:                v&(1<<19) != 0,
		SSize:                8 << ((v >> 20) & 7),
		TSize:                8 << ((v >> 23) & 7),
		Format:               TexFormat((v >> 26) & 7),
		ColorZeroTransparent: v&(1<<29) != 0,
		TransformMode:        TexCoordMode((v >> 30) & 3),
	}
}
