// Package quantize implements the pure quantization functions of §4.1:
// surface normals into octants, depth-derived normals into LUT bit
// codes, gradient angles into five bins, and relative depth into a
// one-hot bin. Every function here is a pure mapping from raw pixel
// data (or an already-extracted vector) to a small integer code.
package quantize

import "math"

// octantNormals are the eight representative vectors (the diagonal
// ones are not of unit length; inputs are normalized instead), one per
// 45-degree azimuth slice of the upper hemisphere, used by
// SurfaceNormalOctant. This is the namespaced ("tless-scoped") design
// that original_source marks authoritative over the older
// LUT-walk-based normal quantizer.
var octantNormals = [8][3]float64{
	{0.707107, 0.0, 0.707107},
	{0.57735, 0.57735, 0.707107},
	{0.0, 0.707107, 0.707107},
	{-0.57735, 0.57735, 0.707107},
	{-0.707107, 0.0, 0.707107},
	{-0.57735, -0.57735, 0.707107},
	{0.0, -0.707107, 0.707107},
	{0.57735, -0.57735, 0.707107},
}

// SurfaceNormalOctant maps a unit 3-vector with z >= 0 to the index
// (0-7) of the octant-representative vector maximizing the dot
// product. Returns ok=false when z < 0 (below the supported
// hemisphere) or the vector has no appreciable length.
func SurfaceNormalOctant(nx, ny, nz float64) (octant int, ok bool) {
	if nz < 0 {
		return 0, false
	}

	norm := math.Sqrt(nx*nx + ny*ny + nz*nz)
	if norm == 0 {
		return 0, false
	}
	nx, ny, nz = nx/norm, ny/norm, nz/norm

	best := -1
	bestDot := 0.0
	for i, o := range octantNormals {
		dot := nx*o[0] + ny*o[1] + nz*o[2]
		if dot > bestDot {
			bestDot = dot
			best = i
		}
	}
	if best < 0 {
		return 0, false
	}
	return best, true
}

// SurfaceNormalOctantFromCentralDiff estimates a unit surface normal at
// (x,y) from a float32 depth-like grid via the central-difference
// gradient ( -dz/dy, -dz/dx, 1 ), then quantizes it with
// SurfaceNormalOctant. grid must be addressable one pixel beyond x,y
// in every direction.
func SurfaceNormalOctantFromCentralDiff(at func(x, y int) float32, x, y int) (octant int, ok bool) {
	dzdx := (float64(at(x+1, y)) - float64(at(x-1, y))) / 2.0
	dzdy := (float64(at(x, y+1)) - float64(at(x, y-1))) / 2.0
	return SurfaceNormalOctant(-dzdy, -dzdx, 1.0)
}
