package quantize

import (
	"math"
	"testing"
)

func TestSurfaceNormalOctantRange(t *testing.T) {
	cases := []struct{ x, y, z float64 }{
		{0, 0, 1},
		{1, 0, 1},
		{0, 1, 1},
		{-1, -1, 1},
		{0.3, -0.4, 0.9},
	}
	for _, c := range cases {
		octant, ok := SurfaceNormalOctant(c.x, c.y, c.z)
		if !ok {
			t.Fatalf("expected ok for z>=0 vector %+v", c)
		}
		if octant < 0 || octant >= 8 {
			t.Fatalf("octant %d out of [0,8) for %+v", octant, c)
		}
	}
}

func TestSurfaceNormalOctantRejectsNegativeZ(t *testing.T) {
	if _, ok := SurfaceNormalOctant(0, 0, -1); ok {
		t.Fatal("expected ok=false for z<0")
	}
}

func TestSurfaceNormalOctantIdempotentOnRepresentatives(t *testing.T) {
	for i, o := range octantNormals {
		got, ok := SurfaceNormalOctant(o[0], o[1], o[2])
		if !ok {
			t.Fatalf("representative %d rejected", i)
		}
		if got != i {
			t.Fatalf("representative %d quantized to %d", i, got)
		}
	}
}

func TestGradientOrientationModulo180(t *testing.T) {
	if GradientOrientation(10) != GradientOrientation(190) {
		t.Fatalf("expected same bin for 10 and 190 degrees")
	}
	if GradientOrientation(0) != 0 {
		t.Fatalf("expected bin 0 at angle 0")
	}
	if GradientOrientation(179.9) != 4 {
		t.Fatalf("expected bin 4 near 180")
	}
}

func TestRelativeDepthBinSaturates(t *testing.T) {
	ranges := []DepthBin{
		{Start: 0, End: 1},
		{Start: 1, End: 2},
		{Start: 2, End: 4},
		{Start: 4, End: 8},
		{Start: 8, End: math.MaxFloat64},
	}
	if bin := RelativeDepthBin(0.5, ranges); bin != 0 {
		t.Fatalf("expected bin 0, got %d", bin)
	}
	if bin := RelativeDepthBin(1_000_000, ranges); bin != len(ranges)-1 {
		t.Fatalf("expected saturation to last bin, got %d", bin)
	}
	if bit := RelativeDepthBit(3, ranges); bit != 1<<2 {
		t.Fatalf("expected bit 4 for bin 2, got %d", bit)
	}
}

func TestDepthNormalBitsSinglePowerOfTwo(t *testing.T) {
	// A synthetic tilted plane: depth increases with x, constant in y.
	depthAt := func(x, y int) uint16 {
		v := 1000 + x*2
		if v < 0 {
			return 0
		}
		return uint16(v)
	}

	bits := DepthNormalBits(depthAt, 50, 50, 2000, 50, 572.0, 573.0)
	if bits == 0 {
		t.Fatal("expected a nonzero bit code for a valid plane")
	}
	count := 0
	for b := bits; b != 0; b &= b - 1 {
		count++
	}
	if count != 1 {
		t.Fatalf("expected exactly one bit set, got %08b", bits)
	}
}

func TestDepthNormalBitsZeroOnMissingDepth(t *testing.T) {
	depthAt := func(x, y int) uint16 { return 0 }
	if bits := DepthNormalBits(depthAt, 50, 50, 2000, 50, 572.0, 573.0); bits != 0 {
		t.Fatalf("expected 0 for missing depth, got %d", bits)
	}
}
