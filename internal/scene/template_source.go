package scene

import (
	"image"

	"gocv.io/x/gocv"

	"github.com/cm68/tless-detect/internal/apperr"
	"github.com/cm68/tless-detect/internal/template"
)

// LoadTemplateSource reads one synthetic template view's color/depth
// pair — both already rendered onto the canonical 400x400 canvas —
// and wraps them with objBB, the object's bounding box inside that
// canvas, ready for template.ExtractFeatures.
func LoadTemplateSource(colorPath, depthPath string, objBB image.Rectangle) (*template.Source, error) {
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

	if color.Rows() != depth.Rows() || color.Cols() != depth.Cols() {
		color.Close()
		depth.Close()
		return nil, apperr.New(apperr.InvalidInput, "template color/depth size mismatch")
	}
	if !objBB.In(image.Rect(0, 0, color.Cols(), color.Rows())) {
		color.Close()
		depth.Close()
		return nil, apperr.New(apperr.InvalidInput, "template bounding box outside canvas")
	}

	gray8 := gocv.NewMat()
	gocv.CvtColor(color, &gray8, gocv.ColorBGRToGray)
	gray := gocv.NewMat()
	gray8.ConvertToWithParams(&gray, gocv.MatTypeCV32F, 1.0/255.0, 0)
	gray8.Close()

	hsv := gocv.NewMat()
	gocv.CvtColor(color, &hsv, gocv.ColorBGRToHSV)

	return &template.Source{
		Color:       color,
		Gray:        gray,
		HSV:         hsv,
		Depth:       depth,
		BoundingBox: objBB,
	}, nil
}
