package pipeline

import (
	"image"
	"log/slog"

	"github.com/google/uuid"

	"github.com/cm68/tless-detect/internal/criteria"
	"github.com/cm68/tless-detect/internal/hashing"
	"github.com/cm68/tless-detect/internal/matcher"
	"github.com/cm68/tless-detect/internal/objectness"
	"github.com/cm68/tless-detect/internal/observability"
	"github.com/cm68/tless-detect/internal/scene"
	"github.com/cm68/tless-detect/internal/template"
)

// Detect runs the full pyramid driver over one scene: at each of
// c.PyramidLevels scales it rescales the scene, runs the objectness
// prefilter, verifies candidates against tables, and scores survivors
// with the matcher cascade. Matches from every level are pooled in
// original-scene coordinates and suppressed once at the end (§4.7).
func Detect(sc *scene.Scene, templates map[int]*template.Template, tables []*hashing.HashTable, c criteria.Criteria, recorder observability.StageRecorder) ([]matcher.Match, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	if recorder == nil {
		recorder = observability.NoopRecorder{}
	}

	runID := uuid.NewString()
	windowSize := image.Pt(c.SmallestTemplateW, c.SmallestTemplateH)

	var allMatches []matcher.Match
	scale := c.PyramidInitialScale

	for level := 0; level < c.PyramidLevels; level++ {
		levelScene, err := sc.Rescale(scale, c)
		if err != nil {
			slog.Warn("pyramid level skipped", "run_id", runID, "level", level, "scale", scale, "err", err)
			scale *= c.PyramidFactor
			continue
		}

		windows := objectness.FindWindows(level, levelScene.QuantizedNormals, windowSize, c.MinEdgels)
		recorder.WindowsFound("objectness", len(windows))

		matchesBefore := len(allMatches)
		for wi := range windows {
			win := &windows[wi]
			win.Candidates = hashing.Verify(levelScene, win.TopLeft, win.Size, tables, c)
			recorder.CandidatesVerified("hashing", len(win.Candidates))

			for _, cand := range win.Candidates {
				tpl, ok := templates[cand.TemplateID]
				if !ok {
					continue
				}
				match, passed := matcher.Evaluate(tpl, win.TopLeft, win.Size, levelScene, scale, c)
				if !passed {
					continue
				}
				allMatches = append(allMatches, match)
			}
		}
		recorder.MatchesScored("matcher", len(allMatches)-matchesBefore)

		levelScene.Close()
		scale *= c.PyramidFactor
	}

	suppressed := matcher.NMS(allMatches, c.OverlapFactor)
	slog.Info("detection complete", "run_id", runID, "levels", c.PyramidLevels, "raw_matches", len(allMatches), "final_matches", len(suppressed))
	return suppressed, nil
}
