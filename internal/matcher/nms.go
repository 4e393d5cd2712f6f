package matcher

import "sort"

// NMS sorts matches by score descending and greedily removes any later
// match whose bounding-box IoU with an already-kept match exceeds
// overlap, per §4.8. Output order is score descending.
func NMS(matches []Match, overlap float64) []Match {
	if len(matches) == 0 {
		return nil
	}

	sorted := append([]Match(nil), matches...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Score > sorted[j].Score
	})

	kept := make([]Match, 0, len(sorted))
	suppressed := make([]bool, len(sorted))
	for i := range sorted {
		if suppressed[i] {
			continue
		}
		kept = append(kept, sorted[i])
		for j := i + 1; j < len(sorted); j++ {
			if suppressed[j] {
				continue
			}
			if sorted[i].BBox.IoU(sorted[j].BBox) > overlap {
				suppressed[j] = true
			}
		}
	}
	return kept
}
