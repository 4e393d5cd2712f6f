// Package criteria holds Criteria, the immutable configuration bundle
// consumed by every stage of the detection cascade: thresholds, grid
// sizes, bin counts, RNG seeds and camera intrinsics.
package criteria

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/cm68/tless-detect/internal/apperr"
)

// FocalLength holds the camera's horizontal/vertical focal length in
// pixels, used to convert depth gradients into surface normals.
type FocalLength struct {
	FX float64 `yaml:"fx"`
	FY float64 `yaml:"fy"`
}

// DepthBin is one [Start,End) boundary of the relative-depth
// quantization table (§4.1.4). The table's last entry should carry a
// very large End so any depth difference saturates into it.
type DepthBin struct {
	Start float64 `yaml:"start"`
	End   float64 `yaml:"end"`
}

// ScoreWeights weights the four numeric sub-scores (normal, gradient,
// depth, color) that combine into a Match's final score. Expected to
// sum to 1.
type ScoreWeights struct {
	Normal   float64 `yaml:"normal"`
	Gradient float64 `yaml:"gradient"`
	Depth    float64 `yaml:"depth"`
	Color    float64 `yaml:"color"`
}

// ColorTolerance bounds the per-channel HSV distance allowed by the
// matcher's color test (§4.6.5).
type ColorTolerance struct {
	H uint8 `yaml:"h"`
	S uint8 `yaml:"s"`
	V uint8 `yaml:"v"`
}

// Criteria is the immutable configuration value shared by every
// component. It must not be mutated once a training or detection
// session starts; use the With* builders to derive a modified copy.
type Criteria struct {
	FeaturePointCount int `yaml:"feature_point_count"`

	CannyLow  float32 `yaml:"canny_low"`
	CannyHigh float32 `yaml:"canny_high"`

	SobelMax      uint8 `yaml:"sobel_max"`
	GrayMinStable uint8 `yaml:"gray_min_stable"`

	TripletCount      int `yaml:"triplet_count"`
	HashTableGridW    int `yaml:"hash_table_grid_w"`
	HashTableGridH    int `yaml:"hash_table_grid_h"`
	MinVoteRatio      float64 `yaml:"min_vote_ratio"`
	MaxCandidates     int     `yaml:"max_candidates"`

	SmallestTemplateW int `yaml:"smallest_template_w"`
	SmallestTemplateH int `yaml:"smallest_template_h"`
	MinEdgels         int `yaml:"min_edgels"`

	NormalMaxDistance   int `yaml:"normal_max_distance"`
	NormalMaxDifference int `yaml:"normal_max_difference"`

	Focal FocalLength `yaml:"focal"`

	DepthBinRanges []DepthBin `yaml:"depth_bin_ranges"`

	NeighborhoodOffset int     `yaml:"neighborhood_offset"`
	CascadeMinRatio    float64 `yaml:"cascade_min_ratio"`
	DepthToleranceK    float64 `yaml:"depth_tolerance_k"`
	ColorTolerance     ColorTolerance `yaml:"color_tolerance"`
	ScoreWeights       ScoreWeights   `yaml:"score_weights"`

	OverlapFactor     float64 `yaml:"overlap_factor"`
	SizeToleranceRatio float64 `yaml:"size_tolerance_ratio"`

	PyramidInitialScale float64 `yaml:"pyramid_initial_scale"`
	PyramidFactor       float64 `yaml:"pyramid_factor"`
	PyramidLevels       int     `yaml:"pyramid_levels"`

	TemplateSeed int64 `yaml:"template_seed"`
	TripletSeed  int64 `yaml:"triplet_seed"`
}

// Default returns the baseline Criteria used when no override file is
// supplied. Values mirror the thresholds used throughout §4 of the
// specification and original_source's constructor defaults.
func Default() Criteria {
	return Criteria{
		FeaturePointCount: 100,

		CannyLow:  50,
		CannyHigh: 150,

		SobelMax:      40,
		GrayMinStable: 40,

		TripletCount:   100,
		HashTableGridW: 12,
		HashTableGridH: 12,
		MinVoteRatio:   0.5,
		MaxCandidates:  64,

		SmallestTemplateW: 40,
		SmallestTemplateH: 40,
		MinEdgels:         10,

		NormalMaxDistance:   2000,
		NormalMaxDifference: 20,

		Focal: FocalLength{FX: 572.41, FY: 573.57},

		DepthBinRanges: []DepthBin{
			{Start: 0, End: 1},
			{Start: 1, End: 2},
			{Start: 2, End: 4},
			{Start: 4, End: 8},
			{Start: 8, End: 1 << 30},
		},

		NeighborhoodOffset: 2,
		CascadeMinRatio:    0.6,
		DepthToleranceK:    1.0,
		ColorTolerance:     ColorTolerance{H: 15, S: 60, V: 60},
		ScoreWeights:       ScoreWeights{Normal: 0.25, Gradient: 0.25, Depth: 0.25, Color: 0.25},

		OverlapFactor:      0.5,
		SizeToleranceRatio: 0.2,

		PyramidInitialScale: 0.4,
		PyramidFactor:       1.25,
		PyramidLevels:       9,

		TemplateSeed: 1,
		TripletSeed:  7,
	}
}

// Load reads a YAML file and applies its fields on top of Default().
// A missing path is not an error; it simply returns the defaults.
func Load(path string) (Criteria, error) {
	c := Default()
	if path == "" {
		return c, nil
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return c, nil
	}
	if err != nil {
		return Criteria{}, apperr.Wrap(apperr.IOFailure, path, err)
	}
	if err := yaml.Unmarshal(data, &c); err != nil {
		return Criteria{}, apperr.Wrap(apperr.InvalidInput, path, err)
	}
	if err := c.Validate(); err != nil {
		return Criteria{}, err
	}
	return c, nil
}

// Save writes c to path as YAML.
func (c Criteria) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return apperr.Wrap(apperr.IOFailure, path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return apperr.Wrap(apperr.IOFailure, path, err)
	}
	return nil
}

// Validate checks that Criteria's numeric invariants hold.
func (c Criteria) Validate() error {
	if c.FeaturePointCount <= 0 {
		return apperr.New(apperr.InvalidInput, "feature_point_count must be positive")
	}
	if c.TripletCount <= 0 {
		return apperr.New(apperr.InvalidInput, "triplet_count must be positive")
	}
	if c.HashTableGridW <= 0 || c.HashTableGridH <= 0 {
		return apperr.New(apperr.InvalidInput, "hash_table_grid dimensions must be positive")
	}
	if c.MinVoteRatio < 0 || c.MinVoteRatio > 1 {
		return apperr.New(apperr.InvalidInput, "min_vote_ratio must be in [0,1]")
	}
	if len(c.DepthBinRanges) == 0 {
		return apperr.New(apperr.InvalidInput, "depth_bin_ranges must not be empty")
	}
	if c.PyramidLevels <= 0 {
		return apperr.New(apperr.InvalidInput, "pyramid_levels must be positive")
	}
	if c.PyramidFactor <= 0 {
		return apperr.New(apperr.InvalidInput, "pyramid_factor must be positive")
	}
	sum := c.ScoreWeights.Normal + c.ScoreWeights.Gradient + c.ScoreWeights.Depth + c.ScoreWeights.Color
	if sum <= 0 {
		return apperr.New(apperr.InvalidInput, "score_weights must sum to a positive value")
	}
	return nil
}

// MinVotesRequired returns ceil(TripletCount * MinVoteRatio).
func (c Criteria) MinVotesRequired() int {
	return ceilRatio(c.TripletCount, c.MinVoteRatio)
}

// MinTestMatches returns ceil(FeaturePointCount * CascadeMinRatio), the
// per-test pass threshold used by the matcher cascade.
func (c Criteria) MinTestMatches() int {
	return ceilRatio(c.FeaturePointCount, c.CascadeMinRatio)
}

func ceilRatio(n int, ratio float64) int {
	v := float64(n) * ratio
	iv := int(v)
	if float64(iv) < v {
		iv++
	}
	return iv
}

// WithOverlapFactor returns a copy of c with OverlapFactor replaced.
func (c Criteria) WithOverlapFactor(v float64) Criteria {
	c.OverlapFactor = v
	return c
}

// WithPyramidLevels returns a copy of c with PyramidLevels replaced.
func (c Criteria) WithPyramidLevels(v int) Criteria {
	c.PyramidLevels = v
	return c
}

// String renders a short summary, useful for log lines.
func (c Criteria) String() string {
	return fmt.Sprintf("criteria(N=%d triplets=%d grid=%dx%d levels=%d)",
		c.FeaturePointCount, c.TripletCount, c.HashTableGridW, c.HashTableGridH, c.PyramidLevels)
}
