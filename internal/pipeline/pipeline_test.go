package pipeline

import (
	"image"
	"testing"

	"github.com/cm68/tless-detect/internal/criteria"
)

func TestObjectDiameterScalesWithBoxSize(t *testing.T) {
	c := criteria.Default()
	small := objectDiameter(image.Rect(0, 0, 40, 40), c)
	large := objectDiameter(image.Rect(0, 0, 400, 400), c)
	if large <= small {
		t.Fatalf("expected diameter to grow with bbox size: small=%v large=%v", small, large)
	}
}
