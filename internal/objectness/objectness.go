// Package objectness implements the sliding-window edgel-density
// prefilter that eliminates background windows before the more
// expensive hash-verification and matching stages run (§4.3).
package objectness

import (
	"image"

	"gocv.io/x/gocv"

	"github.com/cm68/tless-detect/internal/hashing"
)

// Window is a candidate location at one pyramid level, sized to the
// smallest template's bounding box at that level's scale.
type Window struct {
	Level      int
	TopLeft    image.Point
	Size       image.Point
	Candidates []hashing.Candidate
}

// Bounds returns the window's pixel rectangle.
func (w Window) Bounds() image.Rectangle {
	return image.Rectangle{Min: w.TopLeft, Max: w.TopLeft.Add(w.Size)}
}

// FindWindows slides a windowSize box over quantizedNormals with a
// step of windowSize/4 on each axis, keeping windows whose box
// contains at least minEdgels non-zero pixels. Returns immediately
// without scanning if the edge map is entirely zero.
func FindWindows(level int, quantizedNormals gocv.Mat, windowSize image.Point, minEdgels int) []Window {
	if quantizedNormals.Empty() || windowSize.X <= 0 || windowSize.Y <= 0 {
		return nil
	}
	if gocv.CountNonZero(quantizedNormals) == 0 {
		return nil
	}

	rows, cols := quantizedNormals.Rows(), quantizedNormals.Cols()
	stepX := windowSize.X / 4
	if stepX < 1 {
		stepX = 1
	}
	stepY := windowSize.Y / 4
	if stepY < 1 {
		stepY = 1
	}

	var windows []Window
	for y := 0; y+windowSize.Y <= rows; y += stepY {
		for x := 0; x+windowSize.X <= cols; x += stepX {
			roi := quantizedNormals.Region(image.Rect(x, y, x+windowSize.X, y+windowSize.Y))
			count := gocv.CountNonZero(roi)
			roi.Close()
			if count < minEdgels {
				continue
			}
			windows = append(windows, Window{
				Level:   level,
				TopLeft: image.Pt(x, y),
				Size:    windowSize,
			})
		}
	}
	return windows
}
