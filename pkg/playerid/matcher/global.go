package matcher

import "github.com/nmichlo/playerid-go/pkg/playerid/model"

// GlobalResult is one accepted global assignment: queries[QueryIdx] matched
// to the candidate described by Result, at Result.Similarity.
type GlobalResult struct {
	QueryIdx int
	Result   Result
}

// GlobalAssign resolves contention across every query at once: rather than
// letting each query independently pick its own best candidate (which can
// let two queries both claim the same candidate, with whichever is
// processed first winning by accident of iteration order), it finds the
// one-to-one pairing that maximizes total similarity across all queries
// simultaneously via the Hungarian algorithm. A query with no acceptable
// pairing (similarity below threshold, or it lost the contention to a
// query with higher similarity for every candidate it could match) is
// simply absent from the result.
func GlobalAssign(queries []model.FeatureVector, candidates []Candidate, threshold float32) []GlobalResult {
	if len(queries) == 0 || len(candidates) == 0 {
		return nil
	}

	cost := make([][]float64, len(queries))
	for i, q := range queries {
		cost[i] = make([]float64, len(candidates))
		for j, c := range candidates {
			if q.Empty() || c.Features.Empty() {
				cost[i][j] = 2.0 // unreachable even at maxCost=1
				continue
			}
			cost[i][j] = 1.0 - float64(model.Cosine(q, c.Features))
		}
	}

	maxCost := 1.0 - float64(threshold)
	pairs, _, _ := LinearSumAssignment(cost, maxCost)

	out := make([]GlobalResult, 0, len(pairs))
	for _, p := range pairs {
		sim := 1.0 - cost[p.Row][p.Col]
		out = append(out, GlobalResult{
			QueryIdx: p.Row,
			Result: Result{
				PlayerID:   candidates[p.Col].PlayerID,
				PlayerName: candidates[p.Col].PlayerName,
				Similarity: sim,
			},
		})
	}
	return out
}
