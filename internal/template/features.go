package template

import (
	"image"
	"math/rand"
	"sort"

	"gocv.io/x/gocv"
	"gonum.org/v1/gonum/stat"

	"github.com/cm68/tless-detect/internal/apperr"
	"github.com/cm68/tless-detect/internal/criteria"
	"github.com/cm68/tless-detect/internal/quantize"
)

// ExtractFeatures samples N edge points and N stable interior points
// from src's bounding box and records the five feature channels at
// each, per §4.4. c.TemplateSeed makes sampling and shuffling
// deterministic across runs.
func ExtractFeatures(src *Source, id, objectID int, diameter float64, c criteria.Criteria) (*Template, error) {
	if src.Color.Empty() || src.Depth.Empty() {
		return nil, apperr.New(apperr.InvalidInput, "template source has empty Mats")
	}
	box := src.BoundingBox
	if box.Dx() <= 0 || box.Dy() <= 0 {
		return nil, apperr.New(apperr.InvalidInput, "template bounding box is empty")
	}

	gray8 := gocv.NewMat()
	defer gray8.Close()
	src.Gray.ConvertToWithParams(&gray8, gocv.MatTypeCV8U, 255, 0)

	blurred := gocv.NewMat()
	defer blurred.Close()
	gocv.Blur(gray8, &blurred, image.Pt(3, 3))

	edges := gocv.NewMat()
	defer edges.Close()
	gocv.CannyWithParams(blurred, &edges, c.CannyLow, c.CannyHigh, 3, false)

	sobelX := gocv.NewMat()
	defer sobelX.Close()
	sobelY := gocv.NewMat()
	defer sobelY.Close()
	gocv.Sobel(gray8, &sobelX, gocv.MatTypeCV8U, 1, 0, 3, 1, 0, gocv.BorderDefault)
	gocv.Sobel(gray8, &sobelY, gocv.MatTypeCV8U, 0, 1, 3, 1, 0, gocv.BorderDefault)

	var edgeCandidates, stableCandidates []image.Point
	for y := box.Min.Y; y < box.Max.Y; y++ {
		for x := box.Min.X; x < box.Max.X; x++ {
			if edges.GetUCharAt(y, x) != 0 {
				edgeCandidates = append(edgeCandidates, image.Pt(x, y))
			}
			gv := gray8.GetUCharAt(y, x)
			sobel := int(sobelX.GetUCharAt(y, x)) + int(sobelY.GetUCharAt(y, x))
			if gv > c.GrayMinStable && sobel <= int(c.SobelMax) {
				stableCandidates = append(stableCandidates, image.Pt(x, y))
			}
		}
	}

	rng := rand.New(rand.NewSource(c.TemplateSeed))
	rng.Shuffle(len(edgeCandidates), func(i, j int) {
		edgeCandidates[i], edgeCandidates[j] = edgeCandidates[j], edgeCandidates[i]
	})
	rng.Shuffle(len(stableCandidates), func(i, j int) {
		stableCandidates[i], stableCandidates[j] = stableCandidates[j], stableCandidates[i]
	})

	depthAt16 := func(p image.Point) uint16 { return src.Depth.GetUShortAt(p.Y, p.X) }
	grayAt32 := func(x, y int) float32 {
		if x < 0 || y < 0 || x >= src.Gray.Cols() || y >= src.Gray.Rows() {
			return 0
		}
		return src.Gray.GetFloatAt(y, x)
	}
	depthAtFloat := func(x, y int) float32 {
		if x < 0 || y < 0 || x >= src.Depth.Cols() || y >= src.Depth.Rows() {
			return 0
		}
		return float32(src.Depth.GetUShortAt(y, x))
	}

	edgePoints, err := samplePoints(edgeCandidates, box, c.FeaturePointCount, nil)
	if err != nil {
		return nil, apperr.Wrap(apperr.InsufficientData, "edge points", err)
	}
	stablePoints, err := samplePoints(stableCandidates, box, c.FeaturePointCount, func(p image.Point) bool {
		return depthAt16(p) > 0
	})
	if err != nil {
		return nil, apperr.Wrap(apperr.InsufficientData, "stable points", err)
	}

	gradientBin := make([]int, len(edgePoints))
	localEdge := make([]Point, len(edgePoints))
	for i, p := range edgePoints {
		gradientBin[i] = quantize.GradientOrientationFromCentralDiff(grayAt32, p.X, p.Y)
		localEdge[i] = toLocal(p, box)
	}

	normalBin := make([]int, len(stablePoints))
	depths := make([]uint16, len(stablePoints))
	hsvAt := make([]HSV, len(stablePoints))
	localStable := make([]Point, len(stablePoints))
	depthSamples := make([]float64, len(stablePoints))
	for i, p := range stablePoints {
		octant, ok := quantize.SurfaceNormalOctantFromCentralDiff(depthAtFloat, p.X, p.Y)
		if !ok {
			octant = 0
		}
		normalBin[i] = octant
		depths[i] = depthAt16(p)
		depthSamples[i] = float64(depths[i])
		v := src.HSV.GetVecbAt(p.Y, p.X)
		hsvAt[i] = HSV{H: v[0], S: v[1], V: v[2]}
		localStable[i] = toLocal(p, box)
	}

	sorted := append([]float64(nil), depthSamples...)
	sort.Float64s(sorted)
	depthMedian := stat.Quantile(0.5, stat.Empirical, sorted, nil)

	return &Template{
		ID:           id,
		ObjectID:     objectID,
		BoundingBox:  image.Rectangle{Max: image.Pt(box.Dx(), box.Dy())},
		EdgePoints:   localEdge,
		GradientBin:  gradientBin,
		StablePoints: localStable,
		NormalBin:    normalBin,
		Depth:        depths,
		HSVAt:        hsvAt,
		DepthMedian:  depthMedian,
		Diameter:     diameter,
	}, nil
}

// toLocal translates a canvas-space point into the template's
// bounding-box local frame.
func toLocal(p image.Point, box image.Rectangle) Point {
	return Point{X: p.X - box.Min.X, Y: p.Y - box.Min.Y}
}

// samplePoints draws n points from a shuffled candidate list, skipping
// any that land on the bounding box border (central-difference
// kernels need a neighbor on every side) or fail accept. It returns
// InsufficientData if the candidate list is exhausted first.
func samplePoints(candidates []image.Point, box image.Rectangle, n int, accept func(image.Point) bool) ([]image.Point, error) {
	result := make([]image.Point, 0, n)
	for _, p := range candidates {
		local := toLocal(p, box)
		if local.X == 0 || local.Y == 0 || local.X == box.Dx()-1 || local.Y == box.Dy()-1 {
			continue
		}
		if accept != nil && !accept(p) {
			continue
		}
		result = append(result, p)
		if len(result) == n {
			return result, nil
		}
	}
	return nil, apperr.New(apperr.InsufficientData, "exhausted candidates before reaching target count")
}
