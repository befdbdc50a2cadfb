// Package matcher implements the Feature Matcher (C2): similarity search
// of a query embedding against a snapshot of gallery candidates.
package matcher

import "github.com/nmichlo/playerid-go/pkg/playerid/model"

// Candidate is one gallery entry exposed to the matcher. Callers (the
// gallery store, or the assigner operating on its own snapshot) build
// this slice; the matcher package itself holds no persistent state.
type Candidate struct {
	PlayerID   string
	PlayerName string
	Features   model.FeatureVector
}

// Result is the best match found above threshold.
type Result struct {
	PlayerID   string
	PlayerName string
	Similarity float64
}

// Best performs an argmax cosine-similarity scan of query against
// candidates, skipping any candidate with an empty feature vector. Ties
// are broken by the candidate's position in the slice (first wins),
// matching the gallery's insertion-order tie-break (spec.md C2). Returns
// ok=false if no candidate reaches threshold.
func Best(query model.FeatureVector, candidates []Candidate, threshold float32) (Result, bool) {
	if query.Empty() {
		return Result{}, false
	}

	bestSim := -2.0
	var best Result
	found := false
	for _, c := range candidates {
		if c.Features.Empty() {
			continue
		}
		sim := model.Cosine(query, c.Features)
		if sim > bestSim {
			bestSim = sim
			best = Result{PlayerID: c.PlayerID, PlayerName: c.PlayerName, Similarity: sim}
			found = true
		}
	}
	if !found || bestSim < float64(threshold) {
		return Result{}, false
	}
	return best, true
}

// TopK returns up to k candidates ranked by descending cosine similarity
// to query. Neither the assignment path nor the CLI calls it; only the
// matcher's own tests do.
func TopK(query model.FeatureVector, candidates []Candidate, k int) []Result {
	if query.Empty() || k <= 0 {
		return nil
	}

	scored := make([]Result, 0, len(candidates))
	for _, c := range candidates {
		if c.Features.Empty() {
			continue
		}
		scored = append(scored, Result{
			PlayerID:   c.PlayerID,
			PlayerName: c.PlayerName,
			Similarity: model.Cosine(query, c.Features),
		})
	}

	// Simple insertion sort: candidate lists are small (gallery sizes in
	// the tens to low hundreds), and this keeps the tie-break stable
	// (equal similarity preserves input order), matching Best's contract.
	for i := 1; i < len(scored); i++ {
		for j := i; j > 0 && scored[j].Similarity > scored[j-1].Similarity; j-- {
			scored[j], scored[j-1] = scored[j-1], scored[j]
		}
	}
	if k > len(scored) {
		k = len(scored)
	}
	return scored[:k]
}
