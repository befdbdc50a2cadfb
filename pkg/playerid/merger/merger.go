// Package merger implements the Detection Merger (C3): collapsing
// near-duplicate per-frame detections into one MergedDetection per
// physical player, using the teacher's greedy grouping idiom.
package merger

import (
	"github.com/nmichlo/playerid-go/pkg/playerid/model"
)

// Merge runs the deterministic, order-stable grouping algorithm from
// spec.md §4.3: pre-filter ball- and non-player-shaped boxes, optionally
// expand surviving boxes, group by IoU-or-appearance, and emit one
// MergedDetection per group (the largest member's bbox, by area).
func Merge(detections []model.Detection, cfg model.MergerConfig, frameW, frameH int) []model.MergedDetection {
	survivors := make([]model.Detection, 0, len(detections))
	for _, d := range detections {
		if cfg.BallFilterEnabled && isBallShaped(d.BBox, cfg) {
			continue
		}
		if !isPlayerShaped(d.BBox, cfg) {
			continue
		}
		survivors = append(survivors, d)
	}

	expanded := make([]model.BBox, len(survivors))
	for i, d := range survivors {
		if cfg.BBoxExpansionFraction > 0 {
			expanded[i] = d.BBox.Expand(float64(cfg.BBoxExpansionFraction), frameW, frameH)
		} else {
			expanded[i] = d.BBox
		}
	}

	used := make([]bool, len(survivors))
	var out []model.MergedDetection

	for i := range survivors {
		if used[i] {
			continue
		}
		group := []int{i}
		used[i] = true
		for j := i + 1; j < len(survivors); j++ {
			if used[j] {
				continue
			}
			if groups(survivors[i], survivors[j], expanded[i], expanded[j], cfg) {
				group = append(group, j)
				used[j] = true
			}
		}
		out = append(out, buildMergedDetection(group, survivors, expanded))
	}
	return out
}

// groups tests whether detections i and j belong in the same merge
// group: IoU over 0.5 on the expanded boxes, or appearance similarity
// over 0.85 when both carry a feature vector.
func groups(di, dj model.Detection, expandedI, expandedJ model.BBox, cfg model.MergerConfig) bool {
	if model.IoU(expandedI, expandedJ) > float64(cfg.MergeIoUThreshold) {
		return true
	}
	if !di.FeatureVector.Empty() && !dj.FeatureVector.Empty() {
		if model.Cosine(di.FeatureVector, dj.FeatureVector) > float64(cfg.MergeSimilarityThreshold) {
			return true
		}
	}
	return false
}

func buildMergedDetection(group []int, survivors []model.Detection, expanded []model.BBox) model.MergedDetection {
	largestIdx := group[0]
	largestArea := expanded[largestIdx].Area()
	bestFeatureIdx := group[0]
	bestConfidence := survivors[group[0]].DetectionConfidence

	members := make([]model.BBox, 0, len(group))
	for _, idx := range group {
		members = append(members, survivors[idx].BBox)
		if a := expanded[idx].Area(); a > largestArea {
			largestArea = a
			largestIdx = idx
		}
		if survivors[idx].DetectionConfidence > bestConfidence {
			bestConfidence = survivors[idx].DetectionConfidence
			bestFeatureIdx = idx
		}
	}

	return model.MergedDetection{
		BBox:                  expanded[largestIdx],
		Members:               members,
		RepresentativeFeature: survivors[bestFeatureIdx].FeatureVector,
		TrackID:               survivors[bestFeatureIdx].TrackID,
	}
}

// isBallShaped implements the ball pre-filter: small AND roughly square.
func isBallShaped(b model.BBox, cfg model.MergerConfig) bool {
	return b.Area() < float64(cfg.MinPlayerAreaPx) && b.AspectRatio() >= 0.8 && b.AspectRatio() <= 1.2
}

// isPlayerShaped implements the non-player-shaped rejection: too small in
// area, too short, or too squat to plausibly be a standing player. The
// 2000px area floor here is distinct from the ball-filter's 3000px floor
// and is not configurable (spec.md §4.3 step 2).
func isPlayerShaped(b model.BBox, cfg model.MergerConfig) bool {
	if b.Area() < 2000 {
		return false
	}
	if b.Height() < float64(cfg.MinPlayerHeightPx) {
		return false
	}
	if b.AspectRatio() < float64(cfg.MinPlayerAspectRatio) {
		return false
	}
	return true
}
