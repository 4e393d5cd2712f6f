package cmd

import (
	"log/slog"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/cm68/tless-detect/internal/apperr"
	"github.com/cm68/tless-detect/internal/criteria"
	"github.com/cm68/tless-detect/internal/pipeline"
	"github.com/cm68/tless-detect/internal/scene"
)

var trainCmd = &cobra.Command{
	Use:   "train <templatesList> <outDir> [indices...]",
	Short: "Extract template features and build hash tables from rendered views",
	Args:  cobra.MinimumNArgs(2),
	RunE:  runTrain,
}

func init() {
	rootCmd.AddCommand(trainCmd)
}

func runTrain(cmd *cobra.Command, args []string) error {
	listPath, outDir := args[0], args[1]

	var indices []int
	for _, raw := range args[2:] {
		idx, err := strconv.Atoi(raw)
		if err != nil {
			return apperr.Wrap(apperr.InvalidInput, raw, err)
		}
		indices = append(indices, idx)
	}

	c, err := criteria.Load(criteriaPath)
	if err != nil {
		return err
	}

	entries, err := scene.ParseTemplateList(listPath)
	if err != nil {
		return err
	}

	report, err := pipeline.Train(entries, outDir, c, time.Now().UTC().Format(time.RFC3339), indices)
	if err != nil {
		return err
	}

	slog.Info("train finished",
		"run_id", report.RunID,
		"accepted", report.Accepted,
		"rejected", len(report.Rejected),
		"objects", report.ObjectIDs,
	)
	for _, r := range report.Rejected {
		slog.Warn("view rejected", "dir", r.Dir, "view", r.View, "reason", r.Reason)
	}
	return nil
}
