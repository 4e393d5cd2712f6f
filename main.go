// Command tless-detect trains and runs the sliding-window detection
// cascade for rigid, texture-less objects in RGB-D scenes.
package main

import (
	"log"
	"os"

	"github.com/cm68/tless-detect/cmd"
	"github.com/cm68/tless-detect/internal/version"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Printf("Starting tless-detect v%s", version.Version)

	if err := cmd.Execute(); err != nil {
		log.Printf("tless-detect: %v", err)
		os.Exit(1)
	}
}
