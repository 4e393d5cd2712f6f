package persist

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/cm68/tless-detect/internal/criteria"
	"github.com/cm68/tless-detect/internal/hashing"
	"github.com/cm68/tless-detect/internal/template"
)

func TestTrainedObjectRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "obj_01.yaml")

	original := TrainedObject{
		ObjectID: 1,
		Templates: []*template.Template{
			{
				ID:           2001,
				ObjectID:     1,
				EdgePoints:   []template.Point{{X: 1, Y: 2}},
				GradientBin:  []int{3},
				StablePoints: []template.Point{{X: 4, Y: 5}},
				NormalBin:    []int{2},
				Depth:        []uint16{900},
				HSVAt:        []template.HSV{{H: 10, S: 20, V: 30}},
				DepthMedian:  900,
				Diameter:     120,
			},
		},
	}

	if err := SaveTrainedObject(path, original); err != nil {
		t.Fatalf("SaveTrainedObject: %v", err)
	}

	loaded, err := LoadTrainedObject(path)
	if err != nil {
		t.Fatalf("LoadTrainedObject: %v", err)
	}

	if loaded.ObjectID != original.ObjectID {
		t.Fatalf("object id mismatch: %d vs %d", loaded.ObjectID, original.ObjectID)
	}
	if len(loaded.Templates) != 1 || loaded.Templates[0].ID != 2001 {
		t.Fatalf("unexpected templates after round trip: %+v", loaded.Templates)
	}
	if loaded.Templates[0].DepthMedian != 900 {
		t.Fatalf("depth median mismatch after round trip")
	}
}

func TestManifestRoundTripAndChecksum(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "manifest.yaml")

	tables := []*hashing.HashTable{
		{
			Triplet: hashing.Triplet{},
			Buckets: map[hashing.HashKey][]int{
				{D1: 1, D2: 2, Nc: 3, Np1: 4, Np2: 5}: {2001, 2003},
			},
		},
	}

	if err := SaveManifest(path, "run-1", "2026-08-01T00:00:00Z", tables, criteria.Default()); err != nil {
		t.Fatalf("SaveManifest: %v", err)
	}

	loadedTables, _, runID, err := LoadManifest(path)
	if err != nil {
		t.Fatalf("LoadManifest: %v", err)
	}
	if runID != "run-1" {
		t.Fatalf("run id mismatch: %q", runID)
	}
	if len(loadedTables) != 1 {
		t.Fatalf("expected 1 table, got %d", len(loadedTables))
	}
	ids := loadedTables[0].Buckets[hashing.HashKey{D1: 1, D2: 2, Nc: 3, Np1: 4, Np2: 5}]
	if len(ids) != 2 || ids[0] != 2001 || ids[1] != 2003 {
		t.Fatalf("unexpected bucket contents: %v", ids)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	// Change one byte of the payload while keeping the YAML parseable, so
	// the load fails on the checksum rather than on decoding.
	data = bytes.Replace(data, []byte("run-1"), []byte("run-2"), 1)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	if _, _, _, err := LoadManifest(path); err == nil {
		t.Fatal("expected checksum mismatch error after corrupting the file")
	}
}
