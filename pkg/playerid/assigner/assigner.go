// Package assigner implements the Identity Assigner (C6): the per-frame
// orchestrator that combines anchor protection, gallery matching, and
// CSV hints into a final, name-unique set of Assignments.
package assigner

import (
	"sort"
	"sync"

	"github.com/nmichlo/playerid-go/pkg/playerid/anchor"
	"github.com/nmichlo/playerid-go/pkg/playerid/matcher"
	"github.com/nmichlo/playerid-go/pkg/playerid/model"
)

// GalleryLookup is the narrow collaborator the assigner needs from the
// Gallery Store: a snapshot of matchable candidates and a way to resolve
// a name back to its player_id (the CSV hint pass only knows a name).
type GalleryLookup interface {
	Candidates() []matcher.Candidate
	PlayerIDForName(name string) (string, bool)
}

// TagProtection is the short-term tag-protection map from spec.md §4.6:
// `{player_name -> (frame_of_last_manual_tag, bbox)}`, with lazily-
// checked 2-frame expiry. Owned by the engine so it survives across
// Assign calls within a run.
type TagProtection struct {
	mu      sync.Mutex
	entries map[string]tagEntry
}

type tagEntry struct {
	frame int
	bbox  model.BBox
}

// NewTagProtection constructs an empty protection map.
func NewTagProtection() *TagProtection {
	return &TagProtection{entries: make(map[string]tagEntry)}
}

// Tag records that playerName was manually tagged at frameNow with bbox.
func (t *TagProtection) Tag(playerName string, frameNow int, bbox model.BBox) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries[playerName] = tagEntry{frame: frameNow, bbox: bbox}
}

// activeEntry returns the protection entry for playerName if it was
// tagged within the last protectionFrames frames of frameNow.
func (t *TagProtection) activeEntry(playerName string, frameNow int, protectionFrames uint32) (tagEntry, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[playerName]
	if !ok {
		return tagEntry{}, false
	}
	age := frameNow - e.frame
	if age < 0 {
		age = -age
	}
	if uint32(age) > protectionFrames {
		return tagEntry{}, false
	}
	return e, true
}

// Assign runs the C6 algorithm over mergedDetections for frameNow,
// enforcing I1 (no player_name repeated within the returned slice) via a
// per-call assigned_names set.
//
// The anchor pass is evaluated detection-by-detection in input order. The
// gallery and CSV-hint passes instead resolve contention globally via
// Hungarian assignment: when two detections in the same frame both
// best-match the same gallery name (or the same hint row), the pairing
// with the lower total cost wins and the other falls through to the next
// pass — a plain per-detection first-come-first-served scan would let
// input order override similarity/overlap, which scenario S6 explicitly
// rules out.
func Assign(
	mergedDetections []model.MergedDetection,
	gallery GalleryLookup,
	protectedRecords []anchor.ProtectedRecord,
	hints model.HintTable,
	tagProtection *TagProtection,
	cfg model.Config,
	frameNow int,
) []model.Assignment {
	assignedNames := make(map[string]bool)
	out := make([]model.Assignment, len(mergedDetections))
	settled := make([]bool, len(mergedDetections))

	// (a) Anchor pass, in input order.
	for i, det := range mergedDetections {
		available := make([]anchor.ProtectedRecord, 0, len(protectedRecords))
		for _, r := range protectedRecords {
			if !assignedNames[r.PlayerName] {
				available = append(available, r)
			}
		}
		if rec, ok := anchor.MatchAgainst(available, det.BBox, frameNow, float64(cfg.Anchor.MatchIoU), float64(cfg.Anchor.MatchCenterDistancePx)); ok {
			assignedNames[rec.PlayerName] = true
			playerID, _ := gallery.PlayerIDForName(rec.PlayerName)
			out[i] = model.Assignment{PlayerID: playerID, PlayerName: rec.PlayerName, Confidence: 1.0, Source: model.SourceAnchor}
			settled[i] = true
		}
	}

	// (b) Short-term tag-protection overrides, in input order: these are
	// per-detection (a protection window overlapping this specific
	// bbox), so they don't participate in the cross-detection contention
	// resolved below.
	candidates := gallery.Candidates()
	for i, det := range mergedDetections {
		if settled[i] || det.RepresentativeFeature.Empty() {
			continue
		}
		result, hasMatch := matcher.Best(det.RepresentativeFeature, candidates, cfg.Matcher.DisplayThreshold)
		if protectedName, ok := overlappingProtection(tagProtection, det.BBox, frameNow, cfg); ok && !assignedNames[protectedName] {
			if !hasMatch || protectedName != result.PlayerName {
				assignedNames[protectedName] = true
				playerID, _ := gallery.PlayerIDForName(protectedName)
				out[i] = model.Assignment{PlayerID: playerID, PlayerName: protectedName, Confidence: 1.0, Source: model.SourceGallery}
				settled[i] = true
			}
		}
	}

	// (c) Gallery pass: resolve contention globally. Scanning detections
	// in input order and letting each one independently grab its own
	// best match would let two detections claim the same name with
	// whichever is processed first winning by accident of iteration
	// order. Instead, find the one-to-one detection/candidate pairing
	// that maximizes total similarity across all remaining detections
	// at once via the Hungarian algorithm — this is what guarantees the
	// higher-similarity detection wins a contested name regardless of
	// input position (scenario S6).
	remainingIdx := make([]int, 0, len(mergedDetections))
	queries := make([]model.FeatureVector, 0, len(mergedDetections))
	for i, det := range mergedDetections {
		if settled[i] || det.RepresentativeFeature.Empty() {
			continue
		}
		remainingIdx = append(remainingIdx, i)
		queries = append(queries, det.RepresentativeFeature)
	}
	available := make([]matcher.Candidate, 0, len(candidates))
	for _, c := range candidates {
		if !assignedNames[c.PlayerName] {
			available = append(available, c)
		}
	}
	pairs := matcher.GlobalAssign(queries, available, cfg.Matcher.DisplayThreshold)
	sort.Slice(pairs, func(a, b int) bool { return pairs[a].QueryIdx < pairs[b].QueryIdx })
	for _, p := range pairs {
		detIdx := remainingIdx[p.QueryIdx]
		name := p.Result.PlayerName
		if assignedNames[name] {
			continue
		}
		assignedNames[name] = true
		settled[detIdx] = true
		out[detIdx] = model.Assignment{
			PlayerID:   p.Result.PlayerID,
			PlayerName: name,
			Confidence: p.Result.Similarity,
			Source:     model.SourceGallery,
		}
	}

	// (d) CSV hint pass. The original tooling this hint format is drawn
	// from resolves a hint two ways: an exact (frame, track_id) key when
	// both the detection and a hint row carry a track id, then bbox IoU
	// for every detection the exact-key sub-pass left unsettled.
	// The exact-key sub-pass runs first, since a track_id match is a
	// stronger signal than geometric overlap and should not be second-
	// guessed by the Hungarian cost matrix below.
	if hints != nil {
		rows := hints.RowsForFrame(frameNow)

		for i, det := range mergedDetections {
			if settled[i] || det.TrackID == nil {
				continue
			}
			for _, row := range rows {
				if row.TrackID == nil || *row.TrackID != *det.TrackID {
					continue
				}
				if row.PlayerName == "" || assignedNames[row.PlayerName] {
					continue
				}
				assignedNames[row.PlayerName] = true
				playerID, _ := gallery.PlayerIDForName(row.PlayerName)
				out[i] = model.Assignment{PlayerID: playerID, PlayerName: row.PlayerName, Confidence: 0.95, Source: model.SourceCsvHint}
				settled[i] = true
				break
			}
		}

		// Bbox IoU pass for everything the track_id sub-pass left
		// unsettled: a frame can carry several unmatched detections and
		// several hint rows at once, so rather than greedily taking the
		// first row above threshold per detection (which can starve a
		// better-overlapping pairing further down the list), solve the
		// bipartite detection/row pairing that maximizes total IoU via
		// the Hungarian algorithm, same approach as the gallery
		// contention pass.
		unsettledIdx := make([]int, 0, len(mergedDetections))
		for i := range mergedDetections {
			if !settled[i] {
				unsettledIdx = append(unsettledIdx, i)
			}
		}
		if len(unsettledIdx) > 0 && len(rows) > 0 {
			cost := make([][]float64, len(unsettledIdx))
			for r, detIdx := range unsettledIdx {
				cost[r] = make([]float64, len(rows))
				for c, row := range rows {
					if row.BBox == nil || row.PlayerName == "" {
						cost[r][c] = 2.0 // unreachable even at maxCost=1
						continue
					}
					cost[r][c] = 1.0 - model.IoU(mergedDetections[detIdx].BBox, *row.BBox)
				}
			}
			maxCost := 1.0 - float64(cfg.Assigner.CsvHintIoUThreshold)
			pairs, _, _ := matcher.LinearSumAssignment(cost, maxCost)
			// Hungarian pairs can land in arbitrary order; sort by
			// detection index so earlier detections claim a contested
			// name first, same tie-break as every other pass.
			sort.Slice(pairs, func(a, b int) bool { return pairs[a].Row < pairs[b].Row })
			for _, p := range pairs {
				detIdx := unsettledIdx[p.Row]
				row := rows[p.Col]
				if assignedNames[row.PlayerName] {
					continue
				}
				assignedNames[row.PlayerName] = true
				playerID, _ := gallery.PlayerIDForName(row.PlayerName)
				out[detIdx] = model.Assignment{PlayerID: playerID, PlayerName: row.PlayerName, Confidence: 0.9, Source: model.SourceCsvHint}
				settled[detIdx] = true
			}
		}
	}

	for i := range out {
		if !settled[i] {
			out[i] = model.Unmatched
		}
	}
	return out
}

// overlappingProtection scans the tag-protection map for the most
// recently tagged entry, still within its protection window, whose bbox
// overlaps bbox with IoU over the gallery-override threshold.
func overlappingProtection(t *TagProtection, bbox model.BBox, frameNow int, cfg model.Config) (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	bestName := ""
	bestAge := -1
	for name, e := range t.entries {
		age := frameNow - e.frame
		if age < 0 {
			age = -age
		}
		if uint32(age) > cfg.Assigner.ShortTermTagProtectionFrames {
			continue
		}
		if model.IoU(bbox, e.bbox) <= float64(cfg.Assigner.GalleryOverrideIoU) {
			continue
		}
		if bestName == "" || age < bestAge {
			bestName, bestAge = name, age
		}
	}
	return bestName, bestName != ""
}
