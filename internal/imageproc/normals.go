package imageproc

import (
	"math"

	"gocv.io/x/gocv"

	"github.com/cm68/tless-detect/internal/apperr"
	"github.com/cm68/tless-detect/internal/quantize"
)

// normalPatchRadius is the bilateral-fit neighborhood half-width used
// by quantize.DepthNormalBits; pixels closer than this to the border
// are left at 0 (no edgel).
const normalPatchRadius = 5

// QuantizedNormals computes the dense bit-coded surface normal map of
// a 16-bit depth Mat (millimeters), per §4.2/§4.1.2. Border pixels
// within normalPatchRadius are zero. The result is median-blurred with
// a 5x5 window to suppress isolated misclassifications, matching
// Processing::quantizedNormals.
func QuantizedNormals(depth gocv.Mat, maxDistance, maxDifference int, fx, fy float64) (gocv.Mat, error) {
	if depth.Empty() {
		return gocv.Mat{}, apperr.New(apperr.InvalidInput, "QuantizedNormals: empty depth")
	}
	if depth.Type() != gocv.MatTypeCV16U {
		return gocv.Mat{}, apperr.New(apperr.InvalidInput, "QuantizedNormals: depth must be CV_16UC1")
	}

	rows, cols := depth.Rows(), depth.Cols()
	dst := gocv.NewMatWithSize(rows, cols, gocv.MatTypeCV8U)

	depthAt := func(x, y int) uint16 {
		if x < 0 || y < 0 || x >= cols || y >= rows {
			return 0
		}
		return depth.GetUShortAt(y, x)
	}

	lo := normalPatchRadius
	hi := rows - normalPatchRadius
	parallelRows(lo, hi, func(rowStart, rowEnd int) {
		for y := rowStart; y < rowEnd; y++ {
			for x := normalPatchRadius; x < cols-normalPatchRadius; x++ {
				bits := quantize.DepthNormalBits(depthAt, x, y, maxDistance, maxDifference, fx, fy)
				dst.SetUCharAt(y, x, bits)
			}
		}
	})

	blurred := gocv.NewMat()
	gocv.MedianBlur(dst, &blurred, 5)
	dst.Close()

	return blurred, nil
}

// QuantizedGradients computes the dense 5-bin gradient-orientation map
// and the corresponding Sobel magnitude map of a 32-bit float
// grayscale Mat, per §4.2/§4.1.3. Border pixels are zero.
func QuantizedGradients(gray gocv.Mat) (bins gocv.Mat, magnitude gocv.Mat, err error) {
	if gray.Empty() {
		return gocv.Mat{}, gocv.Mat{}, apperr.New(apperr.InvalidInput, "QuantizedGradients: empty source")
	}
	if gray.Type() != gocv.MatTypeCV32F {
		return gocv.Mat{}, gocv.Mat{}, apperr.New(apperr.InvalidInput, "QuantizedGradients: source must be CV_32FC1")
	}

	sobelX := gocv.NewMat()
	defer sobelX.Close()
	sobelY := gocv.NewMat()
	defer sobelY.Close()
	gocv.Sobel(gray, &sobelX, gocv.MatTypeCV32F, 1, 0, 3, 1, 0, gocv.BorderDefault)
	gocv.Sobel(gray, &sobelY, gocv.MatTypeCV32F, 0, 1, 3, 1, 0, gocv.BorderDefault)

	rows, cols := gray.Rows(), gray.Cols()
	bins = gocv.NewMatWithSize(rows, cols, gocv.MatTypeCV8U)
	magnitude = gocv.NewMatWithSize(rows, cols, gocv.MatTypeCV32F)

	parallelRows(1, rows-1, func(rowStart, rowEnd int) {
		for y := rowStart; y < rowEnd; y++ {
			for x := 1; x < cols-1; x++ {
				sx := sobelX.GetFloatAt(y, x)
				sy := sobelY.GetFloatAt(y, x)
				mag := float32(math.Hypot(float64(sx), float64(sy)))
				magnitude.SetFloatAt(y, x, mag)

				angle := math.Atan2(float64(sy), float64(sx)) * 180 / math.Pi
				if angle < 0 {
					angle += 360
				}
				bin := quantize.GradientOrientation(angle)
				bins.SetUCharAt(y, x, uint8(1<<uint(bin)))
			}
		}
	})

	return bins, magnitude, nil
}
