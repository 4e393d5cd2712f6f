// Package pipeline drives the training and detection workflows on top
// of the cascade packages: it owns the per-frame pyramid loop, the
// per-object training orchestration, and the logging/observability
// glue the core algorithms deliberately avoid (§4.7, §4.10, §4.11).
package pipeline

import (
	"fmt"
	"image"
	"log/slog"
	"math"

	"github.com/google/uuid"

	"github.com/cm68/tless-detect/internal/apperr"
	"github.com/cm68/tless-detect/internal/criteria"
	"github.com/cm68/tless-detect/internal/hashing"
	"github.com/cm68/tless-detect/internal/persist"
	"github.com/cm68/tless-detect/internal/scene"
	"github.com/cm68/tless-detect/internal/template"
)

// RejectedTemplate records a template view that failed feature
// extraction during training.
type RejectedTemplate struct {
	Dir    string
	View   int
	Reason string
}

// TrainReport summarizes one training run: how many templates were
// accepted vs rejected, per §7's "a partial result is still usable".
type TrainReport struct {
	RunID     string
	Accepted  int
	Rejected  []RejectedTemplate
	ObjectIDs []int
}

// Train extracts features for every template view named by entries,
// persists one TrainedObject file per object class plus a shared
// TrainedManifest of hash tables, and returns a report of what
// succeeded. A view whose files cannot be loaded, or whose feature
// extraction reports apperr.InsufficientData, is recorded and skipped;
// any other extraction error aborts the run. onlyIndices restricts every entry's
// views to that subset (matching the CLI's optional trailing
// "[indices...]" argument); nil/empty trains on every view found.
func Train(entries []scene.TemplateEntry, outDir string, c criteria.Criteria, createdAt string, onlyIndices []int) (TrainReport, error) {
	if err := c.Validate(); err != nil {
		return TrainReport{}, err
	}

	wantIndex := func(int) bool { return true }
	if len(onlyIndices) > 0 {
		allowed := map[int]bool{}
		for _, idx := range onlyIndices {
			allowed[idx] = true
		}
		wantIndex = func(idx int) bool { return allowed[idx] }
	}

	runID := uuid.NewString()
	report := TrainReport{RunID: runID}

	byObject := map[int][]*template.Template{}
	var samples []hashing.Sample
	var openSources []*template.Source
	defer func() {
		for _, s := range openSources {
			s.Close()
		}
	}()

	templateID := 0
	for _, entry := range entries {
		indices, err := scene.ViewIndices(entry.Dir)
		if err != nil {
			return TrainReport{}, err
		}
		for _, idx := range indices {
			if !wantIndex(idx) {
				continue
			}
			colorPath, depthPath, bbox, err := scene.ViewPaths(entry.Dir, idx)
			if err != nil {
				report.Rejected = append(report.Rejected, RejectedTemplate{Dir: entry.Dir, View: idx, Reason: err.Error()})
				continue
			}
			src, err := scene.LoadTemplateSource(colorPath, depthPath, bbox)
			if err != nil {
				report.Rejected = append(report.Rejected, RejectedTemplate{Dir: entry.Dir, View: idx, Reason: err.Error()})
				continue
			}

			id := entry.ObjectID*2000 + templateID
			templateID++
			diameter := objectDiameter(bbox, c)
			tpl, err := template.ExtractFeatures(src, id, entry.ObjectID, diameter, c)
			if err != nil {
				if !apperr.Is(err, apperr.InsufficientData) {
					src.Close()
					return TrainReport{}, err
				}
				report.Rejected = append(report.Rejected, RejectedTemplate{Dir: entry.Dir, View: idx, Reason: err.Error()})
				src.Close()
				continue
			}
			tpl.RunID = runID

			byObject[entry.ObjectID] = append(byObject[entry.ObjectID], tpl)
			samples = append(samples, hashing.Sample{Template: tpl, Source: src})
			openSources = append(openSources, src)
			report.Accepted++

			slog.Info("template accepted", "run_id", runID, "object_id", entry.ObjectID, "template_id", id)
		}
	}

	if err := hashing.ValidateTemplates(collectAll(byObject)); err != nil {
		return TrainReport{}, err
	}

	tables, err := hashing.Train(samples, c)
	if err != nil {
		return TrainReport{}, err
	}

	for objectID, templates := range byObject {
		path := fmt.Sprintf("%s/trained_%02d.yaml", outDir, objectID)
		if err := persist.SaveTrainedObject(path, persist.TrainedObject{ObjectID: objectID, Templates: templates}); err != nil {
			return TrainReport{}, err
		}
		report.ObjectIDs = append(report.ObjectIDs, objectID)
	}

	manifestPath := fmt.Sprintf("%s/manifest.yaml", outDir)
	if err := persist.SaveManifest(manifestPath, runID, createdAt, tables, c); err != nil {
		return TrainReport{}, err
	}

	slog.Info("training complete", "run_id", runID, "accepted", report.Accepted, "rejected", len(report.Rejected))
	return report, nil
}

func collectAll(byObject map[int][]*template.Template) []*template.Template {
	var all []*template.Template
	for _, ts := range byObject {
		all = append(all, ts...)
	}
	return all
}

// objectDiameter estimates the physical object diameter in millimeters
// from its canvas bounding box diagonal; original_source computes this
// from the CAD model, which the distilled scope leaves as an external
// input. Until a mesh loader is wired in, the bbox diagonal is a
// reasonable stand-in kept consistent across training and detection.
// canonicalRenderDistance is the assumed camera-to-object distance (mm)
// at which template views are rendered onto the 400x400 canvas.
const canonicalRenderDistance = 1000.0

func objectDiameter(bbox image.Rectangle, c criteria.Criteria) float64 {
	diagonalPx := math.Hypot(float64(bbox.Dx()), float64(bbox.Dy()))
	return diagonalPx * canonicalRenderDistance / c.Focal.FX
}
