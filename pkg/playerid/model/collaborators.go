package model

import "context"

// FeatureExtractor is the explicit optional collaborator for turning a
// frame region into a Re-ID embedding. Modeled as an interface per
// spec.md §9's redesign flag ("dynamic dispatch via duck typing on
// optional capabilities" -> explicit trait, wired at construction). The
// object detector and the extractor's internals are out of scope (§1);
// the engine only needs this contract.
type FeatureExtractor interface {
	// Extract returns the embedding for bbox within the frame identified
	// by frameNum. An error means extraction failed for this detection
	// only (ErrFeatureExtractionFailed semantics) — it must never abort
	// the whole frame.
	Extract(ctx context.Context, frameNum int, bbox BBox) (FeatureVector, error)
}

// HintRow is one CSV tracking-hint record for a single frame (§6.1).
type HintRow struct {
	TrackID    *int
	BBox       *BBox // optional; absent rows are matched by track_id only
	PlayerName string
	Team       string
	JerseyNum  string
}

// HintTable is the explicit optional collaborator wrapping a loaded CSV
// tracking-hint file (§6.1, §4.6 CSV hint pass).
type HintTable interface {
	RowsForFrame(frameNum int) []HintRow
}
