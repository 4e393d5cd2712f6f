// Package persist implements the YAML-based serialization format for
// trained templates and hash tables, with an xxhash checksum so a
// loader can detect a truncated or corrupted bundle (§6).
package persist

import (
	"os"

	"github.com/cespare/xxhash/v2"
	"gopkg.in/yaml.v3"

	"github.com/cm68/tless-detect/internal/apperr"
	"github.com/cm68/tless-detect/internal/criteria"
	"github.com/cm68/tless-detect/internal/hashing"
	"github.com/cm68/tless-detect/internal/template"
)

// TrainedObject is one object class's accepted templates.
type TrainedObject struct {
	ObjectID  int                   `yaml:"object_id"`
	Templates []*template.Template  `yaml:"templates"`
}

// bucketEntry flattens one HashKey -> []templateID pair so it can be
// represented as a YAML sequence; yaml.v3 cannot marshal a map whose
// key is a struct.
type bucketEntry struct {
	Key         hashing.HashKey `yaml:"key"`
	TemplateIDs []int           `yaml:"template_ids"`
}

type hashTableDTO struct {
	Triplet hashing.Triplet `yaml:"triplet"`
	Buckets []bucketEntry   `yaml:"buckets"`
}

// TrainedManifest is the shared, per-training-run bundle: the hash
// tables built from every accepted template, plus the criteria they
// were built under.
type TrainedManifest struct {
	RunID     string            `yaml:"run_id"`
	CreatedAt string            `yaml:"created_at"`
	Criteria  criteria.Criteria `yaml:"criteria"`
	Tables    []hashTableDTO    `yaml:"tables"`
}

type manifestFile struct {
	Checksum uint64          `yaml:"checksum"`
	Manifest TrainedManifest `yaml:"manifest"`
}

// SaveTrainedObject writes one object class's templates to path.
func SaveTrainedObject(path string, obj TrainedObject) error {
	data, err := yaml.Marshal(obj)
	if err != nil {
		return apperr.Wrap(apperr.IOFailure, path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return apperr.Wrap(apperr.IOFailure, path, err)
	}
	return nil
}

// LoadTrainedObject reads one object class's templates from path.
func LoadTrainedObject(path string) (TrainedObject, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return TrainedObject{}, apperr.Wrap(apperr.IOFailure, path, err)
	}
	var obj TrainedObject
	if err := yaml.Unmarshal(data, &obj); err != nil {
		return TrainedObject{}, apperr.Wrap(apperr.InvalidInput, path, err)
	}
	return obj, nil
}

// SaveManifest writes the shared hash-table bundle to path, stamping an
// xxhash checksum of its serialized content.
func SaveManifest(path, runID, createdAt string, tables []*hashing.HashTable, c criteria.Criteria) error {
	manifest := TrainedManifest{
		RunID:     runID,
		CreatedAt: createdAt,
		Criteria:  c,
		Tables:    toDTOs(tables),
	}

	payload, err := yaml.Marshal(manifest)
	if err != nil {
		return apperr.Wrap(apperr.IOFailure, path, err)
	}

	out := manifestFile{Checksum: xxhash.Sum64(payload), Manifest: manifest}
	data, err := yaml.Marshal(out)
	if err != nil {
		return apperr.Wrap(apperr.IOFailure, path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return apperr.Wrap(apperr.IOFailure, path, err)
	}
	return nil
}

// LoadManifest reads the shared hash-table bundle from path and
// verifies its checksum, returning apperr.IOFailure if the content has
// been corrupted or truncated since it was written.
func LoadManifest(path string) ([]*hashing.HashTable, criteria.Criteria, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, criteria.Criteria{}, "", apperr.Wrap(apperr.IOFailure, path, err)
	}

	var file manifestFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, criteria.Criteria{}, "", apperr.Wrap(apperr.InvalidInput, path, err)
	}

	payload, err := yaml.Marshal(file.Manifest)
	if err != nil {
		return nil, criteria.Criteria{}, "", apperr.Wrap(apperr.IOFailure, path, err)
	}
	if xxhash.Sum64(payload) != file.Checksum {
		return nil, criteria.Criteria{}, "", apperr.New(apperr.IOFailure, path+": checksum mismatch, bundle is corrupt")
	}

	return fromDTOs(file.Manifest.Tables), file.Manifest.Criteria, file.Manifest.RunID, nil
}

func toDTOs(tables []*hashing.HashTable) []hashTableDTO {
	dtos := make([]hashTableDTO, len(tables))
	for i, t := range tables {
		buckets := make([]bucketEntry, 0, len(t.Buckets))
		for k, ids := range t.Buckets {
			buckets = append(buckets, bucketEntry{Key: k, TemplateIDs: append([]int(nil), ids...)})
		}
		dtos[i] = hashTableDTO{Triplet: t.Triplet, Buckets: buckets}
	}
	return dtos
}

func fromDTOs(dtos []hashTableDTO) []*hashing.HashTable {
	tables := make([]*hashing.HashTable, len(dtos))
	for i, dto := range dtos {
		buckets := make(map[hashing.HashKey][]int, len(dto.Buckets))
		for _, b := range dto.Buckets {
			buckets[b.Key] = b.TemplateIDs
		}
		tables[i] = &hashing.HashTable{Triplet: dto.Triplet, Buckets: buckets}
	}
	return tables
}
