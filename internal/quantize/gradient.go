package quantize

import "math"

// GradientOrientation maps an angle in degrees, in [0,360], to one of
// five bins spanning the folded range [0,180) in 36-degree steps
// (§4.1.3). Orientation is undirected: 10 and 190 degrees fall in the
// same bin.
func GradientOrientation(degrees float64) int {
	mod := math.Mod(degrees, 180)
	if mod < 0 {
		mod += 180
	}
	bin := int(mod / 36)
	if bin > 4 {
		bin = 4
	}
	return bin
}

// GradientOrientationFromCentralDiff computes the central-difference
// intensity gradient at (x,y) on a float32 grayscale grid and
// quantizes its angle with GradientOrientation. Matches
// original_source's extractOrientationGradient (dx,dy swapped and
// negated to match fastAtan2(dy,dx) convention).
func GradientOrientationFromCentralDiff(at func(x, y int) float32, x, y int) int {
	dx := (float64(at(x-1, y)) - float64(at(x+1, y))) / 2.0
	dy := (float64(at(x, y-1)) - float64(at(x, y+1))) / 2.0

	angle := math.Atan2(dy, dx) * 180 / math.Pi
	if angle < 0 {
		angle += 360
	}
	return GradientOrientation(angle)
}
