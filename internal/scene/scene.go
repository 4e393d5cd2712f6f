// Package scene loads RGB-D frames (scenes during detection, object
// crops during training) and derives the dense feature maps the
// cascade consumes: grayscale, HSV, normalized depth, quantized
// surface normals, quantized gradient orientation and its magnitude.
package scene

import (
	"bytes"
	"image"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/HugoSmits86/nativewebp"
	"gocv.io/x/gocv"

	"github.com/cm68/tless-detect/internal/apperr"
	"github.com/cm68/tless-detect/internal/criteria"
	"github.com/cm68/tless-detect/internal/imageproc"
)

// Scene holds every Mat the cascade needs for one RGB-D frame at one
// pyramid scale. All Mats must be released with Close.
type Scene struct {
	Color gocv.Mat // CV_8UC3, BGR
	Gray  gocv.Mat // CV_32FC1
	HSV   gocv.Mat // CV_8UC3

	Depth     gocv.Mat // CV_16UC1, millimeters
	DepthNorm gocv.Mat // CV_32FC1, same units

	QuantizedNormals   gocv.Mat // CV_8UC1, bit-coded
	QuantizedGradients gocv.Mat // CV_8UC1, bit-coded
	Magnitude          gocv.Mat // CV_32FC1

	Focal criteria.FocalLength
}

// Close releases every Mat owned by the scene. Safe to call more than
// once.
func (s *Scene) Close() {
	s.Color.Close()
	s.Gray.Close()
	s.HSV.Close()
	s.Depth.Close()
	s.DepthNorm.Close()
	s.QuantizedNormals.Close()
	s.QuantizedGradients.Close()
	s.Magnitude.Close()
}

// LoadScene reads a color/depth pair from disk and derives every dense
// map the cascade needs, at full resolution. The depth image must be
// a single-channel 16-bit PNG in millimeters.
func LoadScene(colorPath, depthPath string, c criteria.Criteria) (*Scene, error) {
	color, err := readColor(colorPath)
	if err != nil {
		return nil, err
	}

	depth := gocv.IMReadWithParams(depthPath, gocv.IMReadAnyDepth|gocv.IMReadGrayScale)
	if depth.Empty() {
		color.Close()
		return nil, apperr.New(apperr.IOFailure, depthPath)
	}
	if depth.Type() != gocv.MatTypeCV16U {
		converted := gocv.NewMat()
		depth.ConvertTo(&converted, gocv.MatTypeCV16U)
		depth.Close()
		depth = converted
	}

	return buildScene(color, depth, c)
}

// buildScene derives every dependent map from a loaded color/depth
// pair and takes ownership of both Mats.
func buildScene(color, depth gocv.Mat, c criteria.Criteria) (*Scene, error) {
	if color.Rows() != depth.Rows() || color.Cols() != depth.Cols() {
		color.Close()
		depth.Close()
		return nil, apperr.New(apperr.InvalidInput, "color/depth size mismatch")
	}

	gray8 := gocv.NewMat()
	gocv.CvtColor(color, &gray8, gocv.ColorBGRToGray)
	gray := gocv.NewMat()
	gray8.ConvertToWithParams(&gray, gocv.MatTypeCV32F, 1.0/255.0, 0)
	gray8.Close()

	hsv := gocv.NewMat()
	gocv.CvtColor(color, &hsv, gocv.ColorBGRToHSV)

	depthNorm := gocv.NewMat()
	depth.ConvertTo(&depthNorm, gocv.MatTypeCV32F)

	normals, err := imageproc.QuantizedNormals(depth, c.NormalMaxDistance, c.NormalMaxDifference, c.Focal.FX, c.Focal.FY)
	if err != nil {
		color.Close()
		depth.Close()
		gray.Close()
		hsv.Close()
		depthNorm.Close()
		return nil, err
	}

	gradients, magnitude, err := imageproc.QuantizedGradients(gray)
	if err != nil {
		color.Close()
		depth.Close()
		gray.Close()
		hsv.Close()
		depthNorm.Close()
		normals.Close()
		return nil, err
	}

	return &Scene{
		Color:              color,
		Gray:               gray,
		HSV:                hsv,
		Depth:              depth,
		DepthNorm:          depthNorm,
		QuantizedNormals:   normals,
		QuantizedGradients: gradients,
		Magnitude:          magnitude,
		Focal:              c.Focal,
	}, nil
}

// Rescale returns a new Scene with every Mat resized by factor and
// every quantized map recomputed from scratch at the new resolution,
// never resampled — per the pyramid's no-resample-of-quantized-maps
// rule. Templates are never rescaled; only scenes are.
func (s *Scene) Rescale(factor float64, c criteria.Criteria) (*Scene, error) {
	if factor <= 0 {
		return nil, apperr.New(apperr.InvalidInput, "scale factor must be positive")
	}

	newSize := image.Pt(
		int(float64(s.Color.Cols())*factor),
		int(float64(s.Color.Rows())*factor),
	)
	if newSize.X < 1 || newSize.Y < 1 {
		return nil, apperr.New(apperr.InvalidInput, "rescaled scene would be empty")
	}

	color := gocv.NewMat()
	gocv.Resize(s.Color, &color, newSize, 0, 0, gocv.InterpolationLinear)

	depth := gocv.NewMat()
	gocv.Resize(s.Depth, &depth, newSize, 0, 0, gocv.InterpolationNearestNeighbor)

	return buildScene(color, depth, c)
}

// readColor decodes a color frame, preferring gocv's native codecs and
// falling back to the pure-Go WebP decoder for .webp inputs.
func readColor(path string) (gocv.Mat, error) {
	if strings.EqualFold(filepath.Ext(path), ".webp") {
		return readWebP(path)
	}

	mat := gocv.IMRead(path, gocv.IMReadColor)
	if mat.Empty() {
		return gocv.Mat{}, apperr.New(apperr.IOFailure, path)
	}
	return mat, nil
}

func readWebP(path string) (gocv.Mat, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return gocv.Mat{}, apperr.Wrap(apperr.IOFailure, path, err)
	}
	img, err := nativewebp.Decode(bytes.NewReader(data))
	if err != nil {
		return gocv.Mat{}, apperr.Wrap(apperr.IOFailure, path, err)
	}

	bounds := img.Bounds()
	mat := gocv.NewMatWithSize(bounds.Dy(), bounds.Dx(), gocv.MatTypeCV8UC3)
	for y := 0; y < bounds.Dy(); y++ {
		for x := 0; x < bounds.Dx(); x++ {
			r, g, b, _ := img.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			mat.SetUCharAt3(y, x, 0, uint8(b>>8))
			mat.SetUCharAt3(y, x, 1, uint8(g>>8))
			mat.SetUCharAt3(y, x, 2, uint8(r>>8))
		}
	}
	return mat, nil
}

// ParseSceneID extracts the numeric BOP-style scene/image identifier
// from a file name like "000042.png", returning 0 if none is found.
func ParseSceneID(path string) int {
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	n, err := strconv.Atoi(base)
	if err != nil {
		return 0
	}
	return n
}
