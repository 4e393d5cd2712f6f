package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/cm68/tless-detect/internal/criteria"
	"github.com/cm68/tless-detect/internal/observability"
	"github.com/cm68/tless-detect/internal/persist"
	"github.com/cm68/tless-detect/internal/pipeline"
	"github.com/cm68/tless-detect/internal/scene"
	"github.com/cm68/tless-detect/internal/template"
)

var (
	overlapOverride float64
	levelsOverride  int
	metricsAddr     string
)

var detectCmd = &cobra.Command{
	Use:   "detect <templatesList> <trainedDir> <scenePath>",
	Short: "Run the sliding-window cascade against one RGB-D scene",
	Args:  cobra.ExactArgs(3),
	RunE:  runDetect,
}

func init() {
	detectCmd.Flags().Float64Var(&overlapOverride, "overlap", -1, "override the NMS overlap factor")
	detectCmd.Flags().IntVar(&levelsOverride, "levels", -1, "override the number of pyramid levels")
	detectCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "start a Prometheus /metrics endpoint at this address")
	rootCmd.AddCommand(detectCmd)
}

func runDetect(cmd *cobra.Command, args []string) error {
	listPath, trainedDir, scenePath := args[0], args[1], args[2]
	colorPath := scenePath + "_color.png"
	depthPath := scenePath + "_depth.png"

	entries, err := scene.ParseTemplateList(listPath)
	if err != nil {
		return err
	}

	manifestPath := fmt.Sprintf("%s/manifest.yaml", trainedDir)
	tables, c, runID, err := persist.LoadManifest(manifestPath)
	if err != nil {
		return err
	}
	if criteriaPath != "" {
		c, err = criteria.Load(criteriaPath)
		if err != nil {
			return err
		}
	}
	if overlapOverride >= 0 {
		c = c.WithOverlapFactor(overlapOverride)
	}
	if levelsOverride > 0 {
		c = c.WithPyramidLevels(levelsOverride)
	}

	templates := map[int]*template.Template{}
	for _, entry := range entries {
		path := fmt.Sprintf("%s/trained_%02d.yaml", trainedDir, entry.ObjectID)
		obj, err := persist.LoadTrainedObject(path)
		if err != nil {
			return err
		}
		for _, tpl := range obj.Templates {
			templates[tpl.ID] = tpl
		}
	}

	sc, err := scene.LoadScene(colorPath, depthPath, c)
	if err != nil {
		return err
	}
	defer sc.Close()

	var recorder observability.StageRecorder = observability.NoopRecorder{}
	if metricsAddr != "" {
		recorder = observability.PrometheusRecorder{}
		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()
		go func() {
			if err := observability.ServeMetrics(ctx, metricsAddr); err != nil {
				slog.Error("metrics server stopped", "err", err)
			}
		}()
	}

	matches, err := pipeline.Detect(sc, templates, tables, c, recorder)
	if err != nil {
		return err
	}

	slog.Info("detect finished", "trained_run_id", runID, "matches", len(matches))
	for _, m := range matches {
		fmt.Printf("object=%d pose=%d bbox=%v score=%.3f\n", m.ObjectID, m.PoseID, m.BBox, m.Score)
	}
	return nil
}
