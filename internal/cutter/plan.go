package cutter

import (
	"math"

	"github.com/smazurov/dropzone/internal/media"
)

// Strategy labels how a cut is carried out.
type Strategy string

// Cut strategies, cheapest first.
const (
	StrategyStreamCopy Strategy = "stream_copy"
	StrategySmartCut   Strategy = "smart_cut"
	StrategyReEncode   Strategy = "re_encode"
)

// SegmentKind selects stream copy or re-encode for one segment.
type SegmentKind string

// Segment kinds.
const (
	SegmentCopy   SegmentKind = "copy"
	SegmentEncode SegmentKind = "encode"
)

// Minimum spans that make a smart cut worthwhile.
const (
	MinSmartCutMiddle = 1.0
	MinSplitMargin    = 0.5
)

// Segment is a time range of the source, in seconds.
type Segment struct {
	Kind          SegmentKind `json:"kind"`
	Start         float64     `json:"start"`
	Duration      float64     `json:"duration"`
	ForceKeyframe bool        `json:"force_keyframe,omitempty"`
}

// End returns Start + Duration.
func (s Segment) End() float64 {
	return s.Start + s.Duration
}

func span(kind SegmentKind, start, end float64, force bool) Segment {
	return Segment{Kind: kind, Start: start, Duration: end - start, ForceKeyframe: force}
}

// Plan is an ordered list of segments producing one output.
type Plan struct {
	Strategy Strategy  `json:"strategy"`
	Segments []Segment `json:"segments"`
}

// Duration returns the summed segment duration.
func (p Plan) Duration() float64 {
	return totalDuration(p.Segments)
}

// SplitPlan produces two outputs from one source.
type SplitPlan struct {
	Strategy Strategy  `json:"strategy"`
	First    []Segment `json:"first"`
	Second   []Segment `json:"second"`
}

func totalDuration(segs []Segment) float64 {
	var d float64
	for _, s := range segs {
		d += s.Duration
	}
	return d
}

// PlanTrim chooses the cheapest correct way to keep [start, end).
//
// Cut points within one frame of a keyframe are stream copied. Without
// keyframe data the range is fully re-encoded. Otherwise the boundary
// regions are re-encoded and the keyframe-aligned middle is copied, provided
// the middle spans at least MinSmartCutMiddle seconds.
func PlanTrim(start, end, fps float64, kf media.KeyframeIndex) (Plan, error) {
	if start < 0 || math.IsNaN(start) || math.IsNaN(end) {
		return Plan{}, invalidRange("start %.3f must be non-negative", start)
	}
	if end <= start {
		return Plan{}, invalidRange("end %.3f must be after start %.3f", end, start)
	}

	frame := media.FrameDuration(fps)
	whole := Plan{
		Strategy: StrategyStreamCopy,
		Segments: []Segment{span(SegmentCopy, start, end, false)},
	}

	if kf.Near(start, frame) && kf.Near(end, frame) {
		return whole, nil
	}

	if len(kf) == 0 {
		return Plan{
			Strategy: StrategyReEncode,
			Segments: []Segment{span(SegmentEncode, start, end, true)},
		}, nil
	}

	kfAfter := kf.After(start)
	kfBefore := kf.Before(end)
	if kfBefore-kfAfter < MinSmartCutMiddle {
		return whole, nil
	}

	segs := make([]Segment, 0, 3)
	if kfAfter-start >= frame {
		segs = append(segs, span(SegmentEncode, start, kfAfter, true))
	}
	segs = append(segs, span(SegmentCopy, kfAfter, kfBefore, false))
	if end-kfBefore >= frame {
		segs = append(segs, span(SegmentEncode, kfBefore, end, false))
	}
	return Plan{Strategy: StrategySmartCut, Segments: segs}, nil
}

// PlanSplit divides a file of the given duration at t.
//
// A split on a keyframe, or without keyframe data, copies both halves. A
// split between keyframes re-encodes the part of each half that lies
// between t and the neighbouring keyframe, provided both keyframes are at
// least MinSplitMargin seconds from the file boundaries.
func PlanSplit(at, duration, fps float64, kf media.KeyframeIndex) (SplitPlan, error) {
	if duration <= 0 || math.IsNaN(at) {
		return SplitPlan{}, invalidRange("duration %.3f must be positive", duration)
	}
	if at <= 0 || at >= duration {
		return SplitPlan{}, invalidRange("split point %.3f must lie inside (0, %.3f)", at, duration)
	}

	frame := media.FrameDuration(fps)
	copyBoth := SplitPlan{
		Strategy: StrategyStreamCopy,
		First:    []Segment{span(SegmentCopy, 0, at, false)},
		Second:   []Segment{span(SegmentCopy, at, duration, false)},
	}

	if len(kf) == 0 || kf.Near(at, frame) {
		return copyBoth, nil
	}

	kfBefore := kf.Before(at)
	kfAfter := kf.After(at)
	if kfAfter <= at || kfBefore < MinSplitMargin || duration-kfAfter < MinSplitMargin {
		return copyBoth, nil
	}

	return SplitPlan{
		Strategy: StrategySmartCut,
		First: []Segment{
			span(SegmentCopy, 0, kfBefore, false),
			span(SegmentEncode, kfBefore, at, false),
		},
		Second: []Segment{
			span(SegmentEncode, at, kfAfter, true),
			span(SegmentCopy, kfAfter, duration, false),
		},
	}, nil
}
