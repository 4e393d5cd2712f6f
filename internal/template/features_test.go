package template

import (
	"image"
	"testing"

	"gocv.io/x/gocv"

	"github.com/cm68/tless-detect/internal/apperr"
	"github.com/cm68/tless-detect/internal/criteria"
)

func syntheticSource() *Source {
	const canvas = 400
	color := gocv.NewMatWithSize(canvas, canvas, gocv.MatTypeCV8UC3)
	gray := gocv.NewMatWithSize(canvas, canvas, gocv.MatTypeCV32F)
	hsv := gocv.NewMatWithSize(canvas, canvas, gocv.MatTypeCV8UC3)
	depth := gocv.NewMatWithSize(canvas, canvas, gocv.MatTypeCV16U)

	for y := 0; y < canvas; y++ {
		for x := 0; x < canvas; x++ {
			// A shallow checkerboard-free ramp, enough edges and stable
			// interior to satisfy a small N.
			gray.SetFloatAt(y, x, float32(x%64)/64.0)
			depth.SetUShortAt(y, x, uint16(1000+x))
			hsv.SetUCharAt3(y, x, 0, 40)
			hsv.SetUCharAt3(y, x, 1, 60)
			hsv.SetUCharAt3(y, x, 2, 180)
		}
	}

	return &Source{
		Color:       color,
		Gray:        gray,
		HSV:         hsv,
		Depth:       depth,
		BoundingBox: image.Rect(50, 50, 350, 350),
	}
}

func TestExtractFeaturesProducesNPoints(t *testing.T) {
	src := syntheticSource()
	defer src.Close()

	c := criteria.Default()
	c.FeaturePointCount = 10

	tpl, err := ExtractFeatures(src, 2001, 1, 120.0, c)
	if err != nil {
		t.Fatalf("ExtractFeatures: %v", err)
	}
	if len(tpl.StablePoints) != c.FeaturePointCount {
		t.Fatalf("expected %d stable points, got %d", c.FeaturePointCount, len(tpl.StablePoints))
	}
	for _, d := range tpl.Depth {
		if d == 0 {
			t.Fatal("expected all stable points to have positive depth")
		}
	}
	for _, p := range tpl.StablePoints {
		if p.X == 0 || p.Y == 0 {
			t.Fatal("expected no stable point on the bounding box border")
		}
	}
}

func TestExtractFeaturesInsufficientDataOnEmptySource(t *testing.T) {
	const canvas = 400
	color := gocv.NewMatWithSize(canvas, canvas, gocv.MatTypeCV8UC3)
	defer color.Close()
	gray := gocv.NewMatWithSize(canvas, canvas, gocv.MatTypeCV32F)
	defer gray.Close()
	hsv := gocv.NewMatWithSize(canvas, canvas, gocv.MatTypeCV8UC3)
	defer hsv.Close()
	depth := gocv.NewMatWithSize(canvas, canvas, gocv.MatTypeCV16U)
	defer depth.Close()

	src := &Source{Color: color, Gray: gray, HSV: hsv, Depth: depth, BoundingBox: image.Rect(50, 50, 350, 350)}

	c := criteria.Default()
	_, err := ExtractFeatures(src, 2001, 1, 120.0, c)
	if !apperr.Is(err, apperr.InsufficientData) {
		t.Fatalf("expected InsufficientData, got %v", err)
	}
}
