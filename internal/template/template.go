// Package template implements feature extraction and the persisted
// Template value used by the hasher and matcher (§3, §4.4).
package template

import (
	"image"

	"gocv.io/x/gocv"
)

// Point is a feature-point coordinate in the template's bounding-box
// local frame (0,0 is the box's top-left corner).
type Point struct {
	X int `yaml:"x"`
	Y int `yaml:"y"`
}

// HSV is a persisted 3-channel color sample.
type HSV struct {
	H uint8 `yaml:"h"`
	S uint8 `yaml:"s"`
	V uint8 `yaml:"v"`
}

// Template is one synthetic view of a known object, fully described by
// its precomputed feature points. Templates are created during
// training and are read-only during detection.
type Template struct {
	ID       int `yaml:"id"`
	ObjectID int `yaml:"object_id"`

	BoundingBox image.Rectangle `yaml:"bounding_box"`

	EdgePoints  []Point `yaml:"edge_points"`
	GradientBin []int   `yaml:"gradient_bin"`

	StablePoints []Point  `yaml:"stable_points"`
	NormalBin    []int    `yaml:"normal_bin"`
	Depth        []uint16 `yaml:"depth"`
	HSVAt        []HSV    `yaml:"hsv"`

	DepthMedian float64 `yaml:"depth_median"`
	Diameter    float64 `yaml:"diameter_mm"`

	// RunID identifies the training run that produced this template.
	// Metadata only; excluded from structural round-trip comparisons.
	RunID string `yaml:"run_id,omitempty"`
}

// Source holds the Mats backing one template view during feature
// extraction: a full 400x400 canvas plus the object's bounding box
// inside it. Operating on the full canvas, rather than a sub-Mat
// cropped to the box, means central-difference kernels always have a
// neighbor to read even when a sampled point sits on the box border.
type Source struct {
	Color gocv.Mat // CV_8UC3, full canvas
	Gray  gocv.Mat // CV_32FC1, full canvas
	HSV   gocv.Mat // CV_8UC3, full canvas
	Depth gocv.Mat // CV_16UC1, full canvas, millimeters

	BoundingBox image.Rectangle
}

// Close releases every Mat owned by the source.
func (s *Source) Close() {
	s.Color.Close()
	s.Gray.Close()
	s.HSV.Close()
	s.Depth.Close()
}
