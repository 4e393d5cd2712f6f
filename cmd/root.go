// Package cmd wires the train/detect CLI surface on top of cobra (§6).
package cmd

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/cm68/tless-detect/internal/version"
)

var criteriaPath string

var rootCmd = &cobra.Command{
	Use:     "tless-detect",
	Short:   "Sliding-window cascade detector for rigid texture-less objects in RGB-D scenes",
	Version: version.Version,
}

// Execute runs the CLI, returning any error raised by the selected
// subcommand.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&criteriaPath, "criteria", "", "path to a criteria YAML override file")
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"tless-detect %s (%s/%s, %s)\n",
		version.Version, runtime.GOOS, runtime.GOARCH, runtime.Version(),
	))
}
