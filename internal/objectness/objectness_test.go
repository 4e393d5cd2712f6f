package objectness

import (
	"image"
	"testing"

	"gocv.io/x/gocv"
)

func TestFindWindowsEmptyEdgeMapReturnsNone(t *testing.T) {
	m := gocv.NewMatWithSize(100, 100, gocv.MatTypeCV8U)
	defer m.Close()

	windows := FindWindows(0, m, image.Pt(20, 20), 5)
	if windows != nil {
		t.Fatalf("expected no windows for an empty edge map, got %d", len(windows))
	}
}

func TestFindWindowsDenseRegionProducesWindows(t *testing.T) {
	m := gocv.NewMatWithSize(100, 100, gocv.MatTypeCV8U)
	defer m.Close()
	for y := 40; y < 60; y++ {
		for x := 40; x < 60; x++ {
			m.SetUCharAt(y, x, 1)
		}
	}

	windows := FindWindows(0, m, image.Pt(20, 20), 10)
	if len(windows) == 0 {
		t.Fatal("expected at least one window over the dense region")
	}
	for _, w := range windows {
		if w.Size != (image.Pt(20, 20)) {
			t.Fatalf("unexpected window size %v", w.Size)
		}
	}
}
