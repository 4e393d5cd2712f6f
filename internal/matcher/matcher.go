// Package matcher implements the five-test dense scoring cascade and
// the non-maximum suppression that follows it (§4.6, §4.8).
package matcher

import (
	"image"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/cm68/tless-detect/internal/criteria"
	"github.com/cm68/tless-detect/internal/quantize"
	"github.com/cm68/tless-detect/internal/scene"
	"github.com/cm68/tless-detect/internal/template"
	"github.com/cm68/tless-detect/pkg/geometry"
)

// Match is a scored detection: an object identity, the template (pose)
// that produced it, its bounding box in original scene coordinates,
// and the four cascade sub-scores for diagnostics.
type Match struct {
	ObjectID int
	PoseID   int
	BBox     geometry.RectInt
	Score    float64
	// SubScores holds, in order, the normal/gradient/depth/color
	// fractional pass rates in [0,1].
	SubScores [4]float64
}

// Evaluate runs the five-test cascade for one (window, template) pair.
// A false return means the candidate was dropped; the cascade stops at
// the first failing test, per §4.6's monotonicity guarantee.
func Evaluate(tpl *template.Template, topLeft, windowSize image.Point, sc *scene.Scene, scale float64, c criteria.Criteria) (Match, bool) {
	if !sizeTest(tpl, windowSize, scale, c) {
		return Match{}, false
	}

	mapPoint := func(p template.Point) image.Point {
		bw, bh := tpl.BoundingBox.Dx(), tpl.BoundingBox.Dy()
		if bw == 0 {
			bw = 1
		}
		if bh == 0 {
			bh = 1
		}
		return image.Pt(
			topLeft.X+p.X*windowSize.X/bw,
			topLeft.Y+p.Y*windowSize.Y/bh,
		)
	}

	required := c.MinTestMatches()

	normalScore, normalCount, ok := normalTest(tpl, mapPoint, sc, c)
	if !ok || normalCount < required {
		return Match{}, false
	}

	gradientScore, gradientCount, ok := gradientTest(tpl, mapPoint, sc, c)
	if !ok || gradientCount < required {
		return Match{}, false
	}

	depthScore, depthCount, ok := depthTest(tpl, mapPoint, sc, c)
	if !ok || depthCount < required {
		return Match{}, false
	}

	colorScore, colorCount, ok := colorTest(tpl, mapPoint, sc, c)
	if !ok || colorCount < required {
		return Match{}, false
	}

	w := c.ScoreWeights
	weightSum := w.Normal + w.Gradient + w.Depth + w.Color
	if weightSum <= 0 {
		weightSum = 1
	}
	score := (w.Normal*normalScore + w.Gradient*gradientScore + w.Depth*depthScore + w.Color*colorScore) / weightSum

	windowBBox := geometry.RectInt{X: topLeft.X, Y: topLeft.Y, Width: windowSize.X, Height: windowSize.Y}
	originalBBox := windowBBox.Scale(1.0 / scale)

	return Match{
		ObjectID:  tpl.ObjectID,
		PoseID:    tpl.ID,
		BBox:      originalBBox,
		Score:     score,
		SubScores: [4]float64{normalScore, gradientScore, depthScore, colorScore},
	}, true
}

func sizeTest(tpl *template.Template, windowSize image.Point, scale float64, c criteria.Criteria) bool {
	expectedW := float64(tpl.BoundingBox.Dx()) * scale
	expectedH := float64(tpl.BoundingBox.Dy()) * scale
	tol := c.SizeToleranceRatio
	if tol <= 0 {
		tol = 0.2
	}
	if math.Abs(expectedW-float64(windowSize.X)) > tol*float64(windowSize.X) {
		return false
	}
	if math.Abs(expectedH-float64(windowSize.Y)) > tol*float64(windowSize.Y) {
		return false
	}
	return true
}

func depthAtFloat(sc *scene.Scene) func(x, y int) float32 {
	return func(x, y int) float32 {
		if x < 0 || y < 0 || x >= sc.Depth.Cols() || y >= sc.Depth.Rows() {
			return 0
		}
		return float32(sc.Depth.GetUShortAt(y, x))
	}
}

// normalTest searches a (2n+1)^2 neighborhood around each mapped
// stable point for a scene octant matching the template's, computed
// fresh via central differences on the scene depth (the same
// quantizer used at training time), not the dense bit-coded map.
func normalTest(tpl *template.Template, mapPoint func(template.Point) image.Point, sc *scene.Scene, c criteria.Criteria) (score float64, matched int, ok bool) {
	depthAt := depthAtFloat(sc)
	n := c.NeighborhoodOffset
	for i, p := range tpl.StablePoints {
		center := mapPoint(p)
		found := false
		for dy := -n; dy <= n && !found; dy++ {
			for dx := -n; dx <= n; dx++ {
				octant, ok := quantize.SurfaceNormalOctantFromCentralDiff(depthAt, center.X+dx, center.Y+dy)
				if ok && octant == tpl.NormalBin[i] {
					found = true
					break
				}
			}
		}
		if found {
			matched++
		}
	}
	if len(tpl.StablePoints) == 0 {
		return 0, 0, false
	}
	return float64(matched) / float64(len(tpl.StablePoints)), matched, true
}

// gradientTest searches the same neighborhood against the dense
// quantized-gradients bit map.
func gradientTest(tpl *template.Template, mapPoint func(template.Point) image.Point, sc *scene.Scene, c criteria.Criteria) (score float64, matched int, ok bool) {
	n := c.NeighborhoodOffset
	rows, cols := sc.QuantizedGradients.Rows(), sc.QuantizedGradients.Cols()
	for i, p := range tpl.EdgePoints {
		center := mapPoint(p)
		want := uint8(1 << uint(tpl.GradientBin[i]))
		found := false
		for dy := -n; dy <= n && !found; dy++ {
			for dx := -n; dx <= n; dx++ {
				x, y := center.X+dx, center.Y+dy
				if x < 0 || y < 0 || x >= cols || y >= rows {
					continue
				}
				if sc.QuantizedGradients.GetUCharAt(y, x)&want != 0 {
					found = true
					break
				}
			}
		}
		if found {
			matched++
		}
	}
	if len(tpl.EdgePoints) == 0 {
		return 0, 0, false
	}
	return float64(matched) / float64(len(tpl.EdgePoints)), matched, true
}

func depthTest(tpl *template.Template, mapPoint func(template.Point) image.Point, sc *scene.Scene, c criteria.Criteria) (score float64, matched int, ok bool) {
	if len(tpl.StablePoints) == 0 {
		return 0, 0, false
	}
	depthAt := depthAtFloat(sc)
	n := c.NeighborhoodOffset

	samples := make([]float64, 0, len(tpl.StablePoints))
	for _, p := range tpl.StablePoints {
		center := mapPoint(p)
		if v := depthAt(center.X, center.Y); v > 0 {
			samples = append(samples, float64(v))
		}
	}
	if len(samples) == 0 {
		return 0, 0, true
	}
	sort.Float64s(samples)
	median := stat.Quantile(0.5, stat.Empirical, samples, nil)
	tolerance := c.DepthToleranceK * tpl.Diameter

	for _, p := range tpl.StablePoints {
		center := mapPoint(p)
		found := false
		for dy := -n; dy <= n && !found; dy++ {
			for dx := -n; dx <= n; dx++ {
				v := depthAt(center.X+dx, center.Y+dy)
				if v > 0 && math.Abs(float64(v)-median) < tolerance {
					found = true
					break
				}
			}
		}
		if found {
			matched++
		}
	}
	return float64(matched) / float64(len(tpl.StablePoints)), matched, true
}

func colorTest(tpl *template.Template, mapPoint func(template.Point) image.Point, sc *scene.Scene, c criteria.Criteria) (score float64, matched int, ok bool) {
	if len(tpl.StablePoints) == 0 {
		return 0, 0, false
	}
	n := c.NeighborhoodOffset
	rows, cols := sc.HSV.Rows(), sc.HSV.Cols()
	tol := c.ColorTolerance

	for i, p := range tpl.StablePoints {
		center := mapPoint(p)
		want := tpl.HSVAt[i]
		found := false
		for dy := -n; dy <= n && !found; dy++ {
			for dx := -n; dx <= n; dx++ {
				x, y := center.X+dx, center.Y+dy
				if x < 0 || y < 0 || x >= cols || y >= rows {
					continue
				}
				v := sc.HSV.GetVecbAt(y, x)
				if absDiff(v[0], want.H) <= tol.H && absDiff(v[1], want.S) <= tol.S && absDiff(v[2], want.V) <= tol.V {
					found = true
					break
				}
			}
		}
		if found {
			matched++
		}
	}
	return float64(matched) / float64(len(tpl.StablePoints)), matched, true
}

func absDiff(a, b uint8) uint8 {
	if a > b {
		return a - b
	}
	return b - a
}
