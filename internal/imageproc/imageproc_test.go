package imageproc

import (
	"testing"

	"gocv.io/x/gocv"
)

func TestThresholdMinMaxBandPass(t *testing.T) {
	src := gocv.NewMatWithSize(4, 4, gocv.MatTypeCV32F)
	defer src.Close()
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			src.SetFloatAt(y, x, float32(x))
		}
	}

	dst, err := ThresholdMinMax(src, 1, 2)
	if err != nil {
		t.Fatalf("ThresholdMinMax: %v", err)
	}
	defer dst.Close()

	if dst.GetFloatAt(0, 0) != 0 {
		t.Fatal("expected column 0 below band to be 0")
	}
	if dst.GetFloatAt(0, 1) != 1 {
		t.Fatal("expected column 1 inside band to be 1")
	}
	if dst.GetFloatAt(0, 3) != 0 {
		t.Fatal("expected column 3 above band to be 0")
	}
}

func TestThresholdMinMaxRejectsWrongType(t *testing.T) {
	src := gocv.NewMatWithSize(2, 2, gocv.MatTypeCV8U)
	defer src.Close()
	if _, err := ThresholdMinMax(src, 0, 1); err == nil {
		t.Fatal("expected error for non-float source")
	}
}

func TestFilterSobelFlatFieldIsZero(t *testing.T) {
	src := gocv.NewMatWithSize(10, 10, gocv.MatTypeCV32F)
	defer src.Close()
	for y := 0; y < 10; y++ {
		for x := 0; x < 10; x++ {
			src.SetFloatAt(y, x, 5)
		}
	}

	dst, err := FilterSobel(src, true, true)
	if err != nil {
		t.Fatalf("FilterSobel: %v", err)
	}
	defer dst.Close()

	if v := dst.GetFloatAt(5, 5); v != 0 {
		t.Fatalf("expected zero magnitude on a flat field, got %v", v)
	}
}

func TestQuantizedNormalsZeroOnFlatMissingDepth(t *testing.T) {
	depth := gocv.NewMatWithSize(32, 32, gocv.MatTypeCV16U)
	defer depth.Close()

	normals, err := QuantizedNormals(depth, 2000, 20, 572.0, 573.0)
	if err != nil {
		t.Fatalf("QuantizedNormals: %v", err)
	}
	defer normals.Close()

	if v := normals.GetUCharAt(16, 16); v != 0 {
		t.Fatalf("expected 0 for missing depth, got %d", v)
	}
}

func TestQuantizedGradientsFlatFieldIsZero(t *testing.T) {
	gray := gocv.NewMatWithSize(16, 16, gocv.MatTypeCV32F)
	defer gray.Close()
	for y := 0; y < 16; y++ {
		for x := 0; x < 16; x++ {
			gray.SetFloatAt(y, x, 100)
		}
	}

	bins, mag, err := QuantizedGradients(gray)
	if err != nil {
		t.Fatalf("QuantizedGradients: %v", err)
	}
	defer bins.Close()
	defer mag.Close()

	if m := mag.GetFloatAt(8, 8); m != 0 {
		t.Fatalf("expected zero magnitude on a flat field, got %v", m)
	}
}
