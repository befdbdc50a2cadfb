package anchor

import (
	"math"

	"github.com/nmichlo/playerid-go/pkg/playerid/model"
)

// ProtectedRecord is one (player_name, anchor_frame, anchor_bbox) tuple
// returned by Resolve, per spec.md §4.5.
type ProtectedRecord struct {
	PlayerName  string
	AnchorFrame int
	AnchorBBox  model.BBox
}

// Resolve computes, for frameNow, the list of protection records from
// every anchor tag whose window [max(0,frame-W), frame+W] covers
// frameNow. When two anchors' windows both cover the same detection (the
// caller later matches a detection bbox against these records), the
// conflict rule is applied by MatchAgainst, not here: Resolve returns
// every candidate record so the assigner can apply I2 per detection.
func (s *Store) Resolve(frameNow int, windowFrames uint32) []ProtectedRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	w := int(windowFrames)
	var out []ProtectedRecord
	for frame, tags := range s.file.AnchorFrames {
		lo := frame - w
		if lo < 0 {
			lo = 0
		}
		hi := frame + w
		if frameNow < lo || frameNow > hi {
			continue
		}
		for _, tag := range tags {
			out = append(out, ProtectedRecord{
				PlayerName:  tag.PlayerName,
				AnchorFrame: frame,
				AnchorBBox:  tag.BBox,
			})
		}
	}
	return out
}

// MatchAgainst picks the single protected record (if any) that governs
// detection bbox d, applying spec.md §4.5's conflict rule among every
// record whose anchor bbox matches d: minimal |anchor_frame - frameNow|,
// then larger IoU, then earliest anchor_frame.
func MatchAgainst(records []ProtectedRecord, d model.BBox, frameNow int, iouThreshold, centerDistPx float64) (ProtectedRecord, bool) {
	var candidates []ProtectedRecord
	for _, r := range records {
		if model.MatchesAnchor(d, r.AnchorBBox, iouThreshold, centerDistPx) {
			candidates = append(candidates, r)
		}
	}
	if len(candidates) == 0 {
		return ProtectedRecord{}, false
	}

	best := candidates[0]
	bestDist := distAbs(best.AnchorFrame, frameNow)
	bestIoU := model.IoU(d, best.AnchorBBox)

	for _, r := range candidates[1:] {
		dist := distAbs(r.AnchorFrame, frameNow)
		iou := model.IoU(d, r.AnchorBBox)
		switch {
		case dist < bestDist:
			best, bestDist, bestIoU = r, dist, iou
		case dist == bestDist && iou > bestIoU:
			best, bestDist, bestIoU = r, dist, iou
		case dist == bestDist && iou == bestIoU && r.AnchorFrame < best.AnchorFrame:
			best, bestDist, bestIoU = r, dist, iou
		}
	}
	return best, true
}

func distAbs(a, b int) int {
	return int(math.Abs(float64(a - b)))
}
