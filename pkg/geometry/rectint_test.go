package geometry

import "testing"

func TestRectIntIoUIdenticalIsOne(t *testing.T) {
	r := RectInt{X: 0, Y: 0, Width: 10, Height: 10}
	if iou := r.IoU(r); iou != 1 {
		t.Fatalf("expected IoU 1 for identical rects, got %v", iou)
	}
}

func TestRectIntIoUDisjointIsZero(t *testing.T) {
	a := RectInt{X: 0, Y: 0, Width: 10, Height: 10}
	b := RectInt{X: 100, Y: 100, Width: 10, Height: 10}
	if iou := a.IoU(b); iou != 0 {
		t.Fatalf("expected IoU 0 for disjoint rects, got %v", iou)
	}
}

func TestRectIntScale(t *testing.T) {
	r := RectInt{X: 10, Y: 20, Width: 30, Height: 40}
	scaled := r.Scale(0.5)
	want := RectInt{X: 5, Y: 10, Width: 15, Height: 20}
	if scaled != want {
		t.Fatalf("Scale(0.5) = %+v, want %+v", scaled, want)
	}
}
