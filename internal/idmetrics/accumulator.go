// Package idmetrics accumulates identity-assignment regression counters
// across a sequence of frames, the way internal/motmetrics accumulates
// MOTChallenge events for a tracker sequence — but keyed by a
// caller-supplied ground-truth player identity rather than a tracker ID,
// since the identity assigner has no persistent per-object track to
// compare frame to frame (assignment is frame-local by design).
package idmetrics

// lifecycle mirrors motmetrics' TrackLifecycle: how many frames a given
// ground-truth player appeared in versus how many of those frames it
// received its expected name.
type lifecycle struct {
	detectedFrames int
	namedFrames    int
}

func (l *lifecycle) coverage() float64 {
	if l.detectedFrames == 0 {
		return 0
	}
	return float64(l.namedFrames) / float64(l.detectedFrames)
}

// Accumulator tracks, for a single video's processed sequence, how often
// a physical player's assigned name changes between consecutive frames
// it appears in (an identity switch) and how often a frame carrying an
// anchor tag for that player produced a different name (an anchor
// violation) — the two regressions a tracker-style accumulator would
// otherwise report as ID switches and false matches.
type Accumulator struct {
	videoName string

	frameID int

	lastName    map[string]string
	switches    map[string]int
	anchorViol  map[string]int
	lifecycles  map[string]*lifecycle
	totalFrames int
}

// NewAccumulator creates an empty accumulator for one video sequence.
func NewAccumulator(videoName string) *Accumulator {
	return &Accumulator{
		videoName:  videoName,
		lastName:   make(map[string]string),
		switches:   make(map[string]int),
		anchorViol: make(map[string]int),
		lifecycles: make(map[string]*lifecycle),
	}
}

// Update records one frame's outcome for every ground-truth player
// present in it. assignedNames maps groundTruthID -> the name the
// assigner produced for that player this frame ("" if Unmatched).
// anchoredNames maps groundTruthID -> the name an anchor tag asserts for
// that player this frame, for players with an active anchor only.
func (a *Accumulator) Update(assignedNames map[string]string, anchoredNames map[string]string) {
	a.frameID++
	a.totalFrames++

	for gtID, name := range assignedNames {
		lc, ok := a.lifecycles[gtID]
		if !ok {
			lc = &lifecycle{}
			a.lifecycles[gtID] = lc
		}
		lc.detectedFrames++
		if name != "" {
			lc.namedFrames++
		}

		if prev, seen := a.lastName[gtID]; seen && prev != "" && name != "" && prev != name {
			a.switches[gtID]++
		}
		if name != "" {
			a.lastName[gtID] = name
		}

		if anchored, hasAnchor := anchoredNames[gtID]; hasAnchor && anchored != name {
			a.anchorViol[gtID]++
		}
	}
}

// TotalSwitches returns the identity-switch count across every
// ground-truth player seen so far.
func (a *Accumulator) TotalSwitches() int {
	total := 0
	for _, n := range a.switches {
		total += n
	}
	return total
}

// TotalAnchorViolations returns the anchor-violation count across every
// ground-truth player seen so far.
func (a *Accumulator) TotalAnchorViolations() int {
	total := 0
	for _, n := range a.anchorViol {
		total += n
	}
	return total
}

// SwitchesFor returns the identity-switch count for a single
// ground-truth player.
func (a *Accumulator) SwitchesFor(gtID string) int { return a.switches[gtID] }

// Coverage returns the fraction of frames a ground-truth player was
// detected in where it also received a non-empty name, the same MT/ML/PT
// input motmetrics derives from TrackLifecycle.Coverage.
func (a *Accumulator) Coverage(gtID string) float64 {
	lc, ok := a.lifecycles[gtID]
	if !ok {
		return 0
	}
	return lc.coverage()
}

// FramesProcessed returns how many frames Update has been called with.
func (a *Accumulator) FramesProcessed() int { return a.totalFrames }
