package quantize

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// normalLUTSize is the side of the square lookup table used by
// DepthNormalBits to turn a projected (Nx,Ny) pair into a bit code.
const normalLUTSize = 20

// normalLUT assigns one of eight power-of-two bit codes to each cell
// of a 20x20 grid spanning the projected (Nx,Ny) plane of a unit
// normal whose Nz is discarded; this is the older, non-namespaced
// quantization scheme original_source keeps alongside the octant
// dot-product one. It is used only for the dense per-pixel
// "does this pixel carry a reliable surface estimate" map consumed by
// the objectness prefilter (§4.3), never for template features.
var normalLUT = [normalLUTSize][normalLUTSize]uint8{
	{32, 32, 32, 32, 32, 32, 64, 64, 64, 64, 64, 64, 64, 64, 64, 128, 128, 128, 128, 128},
	{32, 32, 32, 32, 32, 32, 32, 64, 64, 64, 64, 64, 64, 64, 128, 128, 128, 128, 128, 128},
	{32, 32, 32, 32, 32, 32, 32, 64, 64, 64, 64, 64, 64, 64, 128, 128, 128, 128, 128, 128},
	{32, 32, 32, 32, 32, 32, 32, 32, 64, 64, 64, 64, 64, 128, 128, 128, 128, 128, 128, 128},
	{32, 32, 32, 32, 32, 32, 32, 32, 64, 64, 64, 64, 64, 128, 128, 128, 128, 128, 128, 128},
	{32, 32, 32, 32, 32, 32, 32, 32, 64, 64, 64, 64, 64, 128, 128, 128, 128, 128, 128, 128},
	{16, 32, 32, 32, 32, 32, 32, 32, 32, 64, 64, 64, 128, 128, 128, 128, 128, 128, 128, 128},
	{16, 16, 16, 32, 32, 32, 32, 32, 32, 64, 64, 64, 128, 128, 128, 128, 128, 128, 1, 1},
	{16, 16, 16, 16, 16, 16, 32, 32, 32, 32, 64, 128, 128, 128, 128, 1, 1, 1, 1, 1},
	{16, 16, 16, 16, 16, 16, 16, 16, 32, 32, 64, 128, 128, 1, 1, 1, 1, 1, 1, 1},
	{16, 16, 16, 16, 16, 16, 16, 16, 16, 16, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1},
	{16, 16, 16, 16, 16, 16, 16, 16, 8, 8, 4, 2, 2, 1, 1, 1, 1, 1, 1, 1},
	{16, 16, 16, 16, 16, 16, 8, 8, 8, 8, 4, 2, 2, 2, 2, 1, 1, 1, 1, 1},
	{16, 16, 16, 8, 8, 8, 8, 8, 8, 4, 4, 4, 2, 2, 2, 2, 2, 2, 1, 1},
	{16, 8, 8, 8, 8, 8, 8, 8, 8, 4, 4, 4, 2, 2, 2, 2, 2, 2, 2, 2},
	{8, 8, 8, 8, 8, 8, 8, 8, 4, 4, 4, 4, 4, 2, 2, 2, 2, 2, 2, 2},
	{8, 8, 8, 8, 8, 8, 8, 8, 4, 4, 4, 4, 4, 2, 2, 2, 2, 2, 2, 2},
	{8, 8, 8, 8, 8, 8, 8, 8, 4, 4, 4, 4, 4, 2, 2, 2, 2, 2, 2, 2},
	{8, 8, 8, 8, 8, 8, 8, 4, 4, 4, 4, 4, 4, 4, 2, 2, 2, 2, 2, 2},
	{8, 8, 8, 8, 8, 8, 8, 4, 4, 4, 4, 4, 4, 4, 2, 2, 2, 2, 2, 2},
}

// accumulateBilateral folds one neighbor's contribution into the
// symmetric normal-equations matrix A and right-hand side b of the
// bilateral-weighted least squares plane fit, per §4.1.2. Neighbors
// whose depth differs from the center by maxDifference or more
// contribute nothing (weight 0).
func accumulateBilateral(delta, xShift, yShift float64, A *[3]float64, b *[2]float64, maxDifference int) {
	f := 0.0
	if math.Abs(delta) < float64(maxDifference) {
		f = 1.0
	}
	fx := f * xShift
	fy := f * yShift

	A[0] += fx * xShift
	A[1] += fx * yShift
	A[2] += fy * yShift
	b[0] += fx * delta
	b[1] += fy * delta
}

// DepthNormalBits estimates a surface normal at (x,y) from an 8-
// neighbor bilateral-weighted plane fit over a 16-bit depth patch of
// radius 5, then quantizes its (Nx,Ny) projection through the 20x20
// LUT into one power-of-two bit code. depthAt returns raw depth in mm
// (0 means missing). Returns 0 when the center pixel's depth is
// missing, at or beyond maxDistance, or the fitted normal is degenerate.
func DepthNormalBits(depthAt func(x, y int) uint16, x, y, maxDistance, maxDifference int, fx, fy float64) uint8 {
	const ps = 5

	d := float64(depthAt(x, y))
	if d <= 0 || d >= float64(maxDistance) {
		return 0
	}

	var A [3]float64
	var b [2]float64

	accumulateBilateral(float64(depthAt(x-ps, y-ps))-d, -ps, -ps, &A, &b, maxDifference)
	accumulateBilateral(float64(depthAt(x, y-ps))-d, 0, -ps, &A, &b, maxDifference)
	accumulateBilateral(float64(depthAt(x+ps, y-ps))-d, ps, -ps, &A, &b, maxDifference)
	accumulateBilateral(float64(depthAt(x-ps, y))-d, -ps, 0, &A, &b, maxDifference)
	accumulateBilateral(float64(depthAt(x+ps, y))-d, ps, 0, &A, &b, maxDifference)
	accumulateBilateral(float64(depthAt(x-ps, y+ps))-d, -ps, ps, &A, &b, maxDifference)
	accumulateBilateral(float64(depthAt(x, y+ps))-d, 0, ps, &A, &b, maxDifference)
	accumulateBilateral(float64(depthAt(x+ps, y+ps))-d, ps, ps, &A, &b, maxDifference)

	// Symmetric 2x2 system [[A0 A1][A1 A2]] * [Dx;Dy] = [b0;b1], solved
	// with gonum rather than hand-rolled Cramer's rule.
	M := mat.NewDense(2, 2, []float64{A[0], A[1], A[1], A[2]})
	rhs := mat.NewVecDense(2, []float64{b[0], b[1]})
	var sol mat.VecDense
	if err := sol.SolveVec(M, rhs); err != nil {
		return 0
	}
	dx, dy := sol.AtVec(0), sol.AtVec(1)

	// gonum's SolveVec already divides by det to return the true
	// least-squares (dx,dy), so nz must be the un-scaled Cramer's
	// numerator divided by that same det (-det*d / det = -d) rather
	// than the raw numerator itself, or the det factor would no longer
	// cancel out of the nx:ny:nz ratio during normalization.
	nx := fx * dx
	ny := fy * dy
	nz := -d

	norm := math.Sqrt(nx*nx + ny*ny + nz*nz)
	if norm <= 0 {
		return 0
	}
	nx, ny = nx/norm, ny/norm

	offset := normalLUTSize / 2
	vx := int(nx*float64(offset) + float64(offset))
	vy := int(ny*float64(offset) + float64(offset))
	if vx < 0 {
		vx = 0
	} else if vx >= normalLUTSize {
		vx = normalLUTSize - 1
	}
	if vy < 0 {
		vy = 0
	} else if vy >= normalLUTSize {
		vy = normalLUTSize - 1
	}

	return normalLUT[vy][vx]
}
