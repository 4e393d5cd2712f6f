// Package imageproc implements §4.2: Sobel magnitude, min/max
// thresholding, and the dense normal / gradient-orientation maps built
// on top of the §4.1 quantizers. Every kernel here operates on
// gocv.Mat and is safe to run with row-partitioned parallelism.
package imageproc

import (
	"image"
	"math"

	"gocv.io/x/gocv"

	"github.com/cm68/tless-detect/internal/apperr"
)

var sobelXKernel = [9]float64{-1, 0, 1, -2, 0, 2, -1, 0, 1}
var sobelYKernel = [9]float64{-1, -2, -1, 0, 0, 0, 1, 2, 1}

// FilterSobel computes the Sobel gradient magnitude of a 32-bit
// float, single-channel Mat, after a 3x3 Gaussian blur, combining the
// x and y responses as sqrt(Sx^2+Sy^2). Either axis can be disabled
// via xFilter/yFilter.
func FilterSobel(src gocv.Mat, xFilter, yFilter bool) (gocv.Mat, error) {
	if src.Empty() {
		return gocv.Mat{}, apperr.New(apperr.InvalidInput, "FilterSobel: empty source")
	}
	if src.Type() != gocv.MatTypeCV32F {
		return gocv.Mat{}, apperr.New(apperr.InvalidInput, "FilterSobel: source must be CV_32FC1")
	}

	blurred := gocv.NewMat()
	defer blurred.Close()
	gocv.GaussianBlur(src, &blurred, image.Pt(3, 3), 0, 0, gocv.BorderDefault)

	rows, cols := src.Rows(), src.Cols()
	dst := gocv.NewMatWithSize(rows, cols, gocv.MatTypeCV32F)

	parallelRows(1, rows-1, func(rowStart, rowEnd int) {
		for y := rowStart; y < rowEnd; y++ {
			for x := 1; x < cols-1; x++ {
				var sumX, sumY float64
				i := 0
				for yy := -1; yy <= 1; yy++ {
					for xx := -1; xx <= 1; xx++ {
						px := float64(blurred.GetFloatAt(y+yy, x+xx))
						if xFilter {
							sumX += px * sobelXKernel[i]
						}
						if yFilter {
							sumY += px * sobelYKernel[i]
						}
						i++
					}
				}
				dst.SetFloatAt(y, x, float32(math.Sqrt(sumX*sumX+sumY*sumY)))
			}
		}
	})

	return dst, nil
}

// ThresholdMinMax applies a trivial band-pass: 1.0 where min <= src <=
// max, 0.0 elsewhere. src must be CV_32FC1; the returned CV_32FC1 mask
// has src's size.
func ThresholdMinMax(src gocv.Mat, min, max float32) (gocv.Mat, error) {
	if src.Empty() {
		return gocv.Mat{}, apperr.New(apperr.InvalidInput, "ThresholdMinMax: empty source")
	}
	if src.Type() != gocv.MatTypeCV32F {
		return gocv.Mat{}, apperr.New(apperr.InvalidInput, "ThresholdMinMax: source must be CV_32FC1")
	}
	if max < min {
		return gocv.Mat{}, apperr.New(apperr.InvalidInput, "ThresholdMinMax: max < min")
	}

	rows, cols := src.Rows(), src.Cols()
	dst := gocv.NewMatWithSize(rows, cols, gocv.MatTypeCV32F)

	parallelRows(0, rows, func(rowStart, rowEnd int) {
		for y := rowStart; y < rowEnd; y++ {
			for x := 0; x < cols; x++ {
				v := src.GetFloatAt(y, x)
				if v >= min && v <= max {
					dst.SetFloatAt(y, x, 1.0)
				} else {
					dst.SetFloatAt(y, x, 0.0)
				}
			}
		}
	})

	return dst, nil
}
