package media

import (
	"math"
	"slices"
	"sort"
)

// KeyframeIndex is a sorted, deduplicated list of keyframe timestamps in
// seconds. An empty index means no keyframe data is available and the file
// must be treated as unseekable.
type KeyframeIndex []float64

const timeEpsilon = 1e-6

// NewKeyframeIndex sorts and deduplicates timestamps.
func NewKeyframeIndex(ts []float64) KeyframeIndex {
	out := make([]float64, 0, len(ts))
	for _, t := range ts {
		if math.IsNaN(t) || math.IsInf(t, 0) {
			continue
		}
		out = append(out, t)
	}
	slices.Sort(out)
	return KeyframeIndex(slices.CompactFunc(out, func(a, b float64) bool {
		return math.Abs(a-b) < timeEpsilon
	}))
}

// Before returns the last keyframe at or before t, or 0 if t precedes all keyframes.
func (k KeyframeIndex) Before(t float64) float64 {
	i := sort.Search(len(k), func(i int) bool { return k[i] > t+timeEpsilon })
	if i == 0 {
		return 0
	}
	return k[i-1]
}

// After returns the first keyframe at or after t, or t itself if there is none.
func (k KeyframeIndex) After(t float64) float64 {
	i := sort.Search(len(k), func(i int) bool { return k[i] >= t-timeEpsilon })
	if i == len(k) {
		return t
	}
	return k[i]
}

// Near reports whether a keyframe lies within tolerance seconds of t.
func (k KeyframeIndex) Near(t, tolerance float64) bool {
	i := sort.SearchFloat64s(k, t)
	if i < len(k) && k[i]-t <= tolerance+timeEpsilon {
		return true
	}
	if i > 0 && t-k[i-1] <= tolerance+timeEpsilon {
		return true
	}
	return false
}
