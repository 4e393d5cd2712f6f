// Package hashing implements the triplet-geometry hash tables used to
// shortlist candidate templates per window before the expensive
// matcher cascade runs (§4.5).
package hashing

import (
	"image"
	"math/rand"

	"github.com/cm68/tless-detect/internal/apperr"
	"github.com/cm68/tless-detect/internal/criteria"
	"github.com/cm68/tless-detect/internal/quantize"
	"github.com/cm68/tless-detect/internal/scene"
	"github.com/cm68/tless-detect/internal/template"
)

// Triplet is three points (c, p1, p2) drawn from a normalized
// featurePointsGrid, reused across every template at training time and
// rescaled to each window at detection time.
type Triplet struct {
	C, P1, P2 image.Point
}

// HashKey is the 5-tuple computed from a triplet's relative depths and
// quantized normals. It is a small value type, usable directly as a
// map key.
type HashKey struct {
	D1, D2, Nc, Np1, Np2 int
}

// HashTable pairs one random Triplet with the key -> template-id-set
// map it produced during training. A template appears at most once
// per key.
type HashTable struct {
	Triplet Triplet
	Buckets map[HashKey][]int
}

// Candidate is a template considered for a window, with its
// accumulated vote count across all hash tables.
type Candidate struct {
	TemplateID int
	Votes      int
}

// GenerateTriplets draws c.TripletCount triplets i.i.d. uniform over a
// c.HashTableGridW x c.HashTableGridH grid, seeded by c.TripletSeed so
// training is reproducible.
func GenerateTriplets(c criteria.Criteria) []Triplet {
	rng := rand.New(rand.NewSource(c.TripletSeed))
	triplets := make([]Triplet, c.TripletCount)
	for i := range triplets {
		triplets[i] = Triplet{
			C:  randGridPoint(rng, c.HashTableGridW, c.HashTableGridH),
			P1: randGridPoint(rng, c.HashTableGridW, c.HashTableGridH),
			P2: randGridPoint(rng, c.HashTableGridW, c.HashTableGridH),
		}
	}
	return triplets
}

func randGridPoint(rng *rand.Rand, w, h int) image.Point {
	return image.Pt(rng.Intn(w), rng.Intn(h))
}

// rescale maps a grid coordinate in [0,gridDim) onto [0,targetDim).
func rescale(v, gridDim, targetDim int) int {
	if gridDim <= 1 {
		return 0
	}
	p := v * (targetDim - 1) / (gridDim - 1)
	if p < 0 {
		p = 0
	}
	if p >= targetDim {
		p = targetDim - 1
	}
	return p
}

func depthBins(ranges []criteria.DepthBin) []quantize.DepthBin {
	out := make([]quantize.DepthBin, len(ranges))
	for i, r := range ranges {
		out[i] = quantize.DepthBin{Start: r.Start, End: r.End}
	}
	return out
}

// Sample pairs a Template with the still-open Source it was extracted
// from; hashing needs depth values at arbitrary triplet points, not
// just the N stored feature points.
type Sample struct {
	Template *template.Template
	Source   *template.Source
}

// Train builds one HashTable per generated triplet from the given
// training samples, per §4.5.
func Train(samples []Sample, c criteria.Criteria) ([]*HashTable, error) {
	triplets := GenerateTriplets(c)
	ranges := depthBins(c.DepthBinRanges)
	tables := make([]*HashTable, len(triplets))

	for ti, triplet := range triplets {
		table := &HashTable{Triplet: triplet, Buckets: map[HashKey][]int{}}
		for _, s := range samples {
			key, ok := tripletKey(triplet, s.Template.BoundingBox.Dx(), s.Template.BoundingBox.Dy(),
				s.Source.BoundingBox.Min, s.Source.Depth.GetUShortAt, depthAtFloatFromSource(s.Source), ranges, c)
			if !ok {
				continue
			}
			bucket := table.Buckets[key]
			if !containsID(bucket, s.Template.ID) {
				table.Buckets[key] = append(bucket, s.Template.ID)
			}
		}
		tables[ti] = table
	}
	return tables, nil
}

func depthAtFloatFromSource(src *template.Source) func(x, y int) float32 {
	return func(x, y int) float32 {
		if x < 0 || y < 0 || x >= src.Depth.Cols() || y >= src.Depth.Rows() {
			return 0
		}
		return float32(src.Depth.GetUShortAt(y, x))
	}
}

func containsID(ids []int, id int) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

// tripletKey rescales triplet to a bboxW x bboxH box, samples depth at
// origin+local for each of the three points via depthAtRaw (used for
// the relative-depth bins) and depthAtFloat (used for the
// central-difference normal quantizer), and returns the resulting
// HashKey. ok is false if any point has zero (missing) depth.
func tripletKey(
	t Triplet, bboxW, bboxH int, origin image.Point,
	depthAtRaw func(row, col int) uint16, depthAtFloat func(x, y int) float32,
	ranges []quantize.DepthBin, c criteria.Criteria,
) (HashKey, bool) {
	cLocal := image.Pt(rescale(t.C.X, c.HashTableGridW, bboxW), rescale(t.C.Y, c.HashTableGridH, bboxH))
	p1Local := image.Pt(rescale(t.P1.X, c.HashTableGridW, bboxW), rescale(t.P1.Y, c.HashTableGridH, bboxH))
	p2Local := image.Pt(rescale(t.P2.X, c.HashTableGridW, bboxW), rescale(t.P2.Y, c.HashTableGridH, bboxH))

	cPt := origin.Add(cLocal)
	p1Pt := origin.Add(p1Local)
	p2Pt := origin.Add(p2Local)

	dc := depthAtRaw(cPt.Y, cPt.X)
	d1 := depthAtRaw(p1Pt.Y, p1Pt.X)
	d2 := depthAtRaw(p2Pt.Y, p2Pt.X)
	if dc == 0 || d1 == 0 || d2 == 0 {
		return HashKey{}, false
	}

	nc, okC := quantize.SurfaceNormalOctantFromCentralDiff(depthAtFloat, cPt.X, cPt.Y)
	n1, ok1 := quantize.SurfaceNormalOctantFromCentralDiff(depthAtFloat, p1Pt.X, p1Pt.Y)
	n2, ok2 := quantize.SurfaceNormalOctantFromCentralDiff(depthAtFloat, p2Pt.X, p2Pt.Y)
	if !okC {
		nc = 0
	}
	if !ok1 {
		n1 = 0
	}
	if !ok2 {
		n2 = 0
	}

	key := HashKey{
		D1:  quantize.RelativeDepthBin(float64(d1)-float64(dc), ranges),
		D2:  quantize.RelativeDepthBin(float64(d2)-float64(dc), ranges),
		Nc:  nc,
		Np1: n1,
		Np2: n2,
	}
	return key, true
}

// Verify scales each table's triplet to the window size, samples the
// scene at window-relative offsets, and accumulates a vote per table
// for every template whose bucket the resulting key lands in.
// Candidates are sorted descending by vote count and trimmed to
// c.MaxCandidates; only those with at least c.MinVotesRequired() votes
// are returned.
func Verify(sc *scene.Scene, topLeft image.Point, size image.Point, tables []*HashTable, c criteria.Criteria) []Candidate {
	votes := map[int]int{}

	depthAtRaw := func(row, col int) uint16 {
		if col < 0 || row < 0 || col >= sc.Depth.Cols() || row >= sc.Depth.Rows() {
			return 0
		}
		return sc.Depth.GetUShortAt(row, col)
	}
	depthAtFloat := func(x, y int) float32 {
		if x < 0 || y < 0 || x >= sc.Depth.Cols() || y >= sc.Depth.Rows() {
			return 0
		}
		return float32(sc.Depth.GetUShortAt(y, x))
	}
	ranges := depthBins(c.DepthBinRanges)

	for _, table := range tables {
		key, ok := tripletKey(table.Triplet, size.X, size.Y, topLeft, depthAtRaw, depthAtFloat, ranges, c)
		if !ok {
			continue
		}
		for _, id := range table.Buckets[key] {
			votes[id]++
		}
	}

	required := c.MinVotesRequired()
	candidates := make([]Candidate, 0, len(votes))
	for id, v := range votes {
		if v >= required {
			candidates = append(candidates, Candidate{TemplateID: id, Votes: v})
		}
	}
	sortCandidatesDescending(candidates)
	if len(candidates) > c.MaxCandidates {
		candidates = candidates[:c.MaxCandidates]
	}
	return candidates
}

func sortCandidatesDescending(cands []Candidate) {
	for i := 1; i < len(cands); i++ {
		for j := i; j > 0 && cands[j].Votes > cands[j-1].Votes; j-- {
			cands[j], cands[j-1] = cands[j-1], cands[j]
		}
	}
}

// ValidateTemplates returns apperr.InvalidInput if templates disagree
// on feature point count, which would make triplet geometry
// incomparable across them.
func ValidateTemplates(templates []*template.Template) error {
	if len(templates) == 0 {
		return nil
	}
	n := len(templates[0].StablePoints)
	for _, t := range templates {
		if len(t.StablePoints) != n || len(t.EdgePoints) != n {
			return apperr.New(apperr.InvalidInput, "templates must share one feature point count")
		}
	}
	return nil
}
