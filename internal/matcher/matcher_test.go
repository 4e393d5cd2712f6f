package matcher

import (
	"testing"

	"github.com/cm68/tless-detect/pkg/geometry"
)

func TestNMSKeepsHigherScoreOnOverlap(t *testing.T) {
	a := Match{PoseID: 1, BBox: geometry.RectInt{X: 0, Y: 0, Width: 100, Height: 100}, Score: 0.8}
	b := Match{PoseID: 2, BBox: geometry.RectInt{X: 5, Y: 5, Width: 100, Height: 100}, Score: 0.6}

	kept := NMS([]Match{a, b}, 0.5)
	if len(kept) != 1 {
		t.Fatalf("expected exactly one survivor, got %d", len(kept))
	}
	if kept[0].PoseID != 1 {
		t.Fatalf("expected the higher-scoring match to survive, got pose %d", kept[0].PoseID)
	}
}

func TestNMSKeepsNonOverlapping(t *testing.T) {
	a := Match{PoseID: 1, BBox: geometry.RectInt{X: 0, Y: 0, Width: 10, Height: 10}, Score: 0.8}
	b := Match{PoseID: 2, BBox: geometry.RectInt{X: 500, Y: 500, Width: 10, Height: 10}, Score: 0.6}

	kept := NMS([]Match{a, b}, 0.5)
	if len(kept) != 2 {
		t.Fatalf("expected both matches to survive, got %d", len(kept))
	}
}

func TestNMSEmptyInput(t *testing.T) {
	if kept := NMS(nil, 0.5); kept != nil {
		t.Fatalf("expected nil for empty input, got %v", kept)
	}
}
