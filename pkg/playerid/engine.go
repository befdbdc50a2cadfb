// Package playerid wires the Gallery Store, Feature Matcher, Detection
// Merger, Anchor Store/Resolver, Identity Assigner, Event Marker Store
// and Persistence Layer into the single orchestrating Engine the host
// application drives one frame at a time.
package playerid

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/nmichlo/playerid-go/internal/enginemetrics"
	"github.com/nmichlo/playerid-go/pkg/playerid/anchor"
	"github.com/nmichlo/playerid-go/pkg/playerid/assigner"
	"github.com/nmichlo/playerid-go/pkg/playerid/events"
	"github.com/nmichlo/playerid-go/pkg/playerid/gallery"
	"github.com/nmichlo/playerid-go/pkg/playerid/matcher"
	"github.com/nmichlo/playerid-go/pkg/playerid/merger"
	"github.com/nmichlo/playerid-go/pkg/playerid/model"
)

// Engine is the top-level facade: Engine::new(config) -> Engine in
// spec.md §6.2.
type Engine struct {
	cfg *model.Config

	mu          sync.RWMutex
	videoPath   string
	frameW      int
	frameH      int
	gallery     *gallery.Store
	anchors     *anchor.Store
	eventStore  *events.Store
	hints       model.HintTable
	extractor   model.FeatureExtractor
	tagProtect  *assigner.TagProtection
	loadGroup   singleflight.Group
}

// NewEngine constructs an Engine. galleryPath is where the Gallery Store
// persists; extractor may be nil, in which case no features are
// extracted: detections that arrive without a FeatureVector skip the
// gallery and tag-protection passes, while the anchor and CSV-hint passes
// still apply to them.
func NewEngine(cfg *model.Config, galleryPath string, extractor model.FeatureExtractor) *Engine {
	if cfg == nil {
		cfg = model.DefaultConfig()
	}
	g := gallery.NewStore(galleryPath)
	if err := g.Load(); err != nil {
		log.Printf("playerid: gallery load failed, starting empty: %v", err)
	}
	return &Engine{
		cfg:        cfg,
		gallery:    g,
		extractor:  extractor,
		tagProtect: assigner.NewTagProtection(),
	}
}

// LoadVideo switches the engine's active video, loading any matching
// anchor seed file found alongside it (C4's strict path validation
// applies; a mismatched candidate is silently skipped with a log line).
func (e *Engine) LoadVideo(path string, frameW, frameH int) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}

	e.mu.Lock()
	e.videoPath = abs
	e.frameW = frameW
	e.frameH = frameH
	e.anchors = anchor.NewStore(abs)
	e.eventStore = nil
	e.tagProtect = assigner.NewTagProtection()
	store := e.anchors
	e.mu.Unlock()

	// singleflight dedupes concurrent LoadVideo calls for the same path
	// (e.g. a UI thread and a background prefetch both opening the same
	// clip) so the directory scan for seed files only happens once.
	_, err, _ = e.loadGroup.Do(abs, func() (interface{}, error) {
		loaded, loadErr := store.LoadForVideo(abs)
		if loadErr != nil {
			return nil, loadErr
		}
		if !loaded {
			log.Printf("playerid: no anchor seed file found for %s", abs)
		}
		return nil, nil
	})
	return err
}

// SetCsvHints installs (or clears, with nil) the optional CSV tracking
// hint table consulted by the Identity Assigner's CSV hint pass.
func (e *Engine) SetCsvHints(table model.HintTable) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.hints = table
}

// AddAnchor appends a ground-truth tag at frameNum for the active video
// and records it in the short-term tag-protection map so a subsequent
// gallery match at the same position in the next couple of frames can't
// immediately flip the identity back.
func (e *Engine) AddAnchor(frameNum int, tag model.AnchorTag) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.anchors == nil {
		return fmt.Errorf("playerid: no active video loaded")
	}
	e.anchors.AddTag(frameNum, tag)
	e.tagProtect.Tag(tag.PlayerName, frameNum, tag.BBox)
	return nil
}

// ClearAnchors discards in-memory anchors for the active video (or for
// videoPath specifically, if non-empty and it matches the active one).
func (e *Engine) ClearAnchors(videoPath string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.anchors == nil {
		return
	}
	if videoPath != "" && videoPath != e.videoPath {
		return
	}
	e.anchors = anchor.NewStore(e.videoPath)
}

// UpsertPlayer is the gallery-authoring entry point (Engine.upsert_player
// in §6.2): UI-supplied (bbox, name, features) -> C1 -> C8.
func (e *Engine) UpsertPlayer(params gallery.UpsertParams) (string, error) {
	return e.gallery.AddPlayer(params)
}

// Gallery exposes the underlying Gallery Store for direct C1 operations
// (list/remove/confidence-metrics/cleanup) that don't fit the per-frame
// Engine API.
func (e *Engine) Gallery() *gallery.Store { return e.gallery }

// Events exposes the Event Marker Store for the active video.
func (e *Engine) Events() *events.Store {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.eventStore == nil {
		e.eventStore = events.NewStore(e.videoPath, "")
	}
	return e.eventStore
}

type galleryAdapter struct{ g *gallery.Store }

func (a galleryAdapter) Candidates() []matcher.Candidate {
	snapshot := a.g.Snapshot()
	out := make([]matcher.Candidate, 0, len(snapshot))
	for _, p := range snapshot {
		out = append(out, matcher.Candidate{PlayerID: p.ID, PlayerName: p.Name, Features: p.Features})
	}
	return out
}

func (a galleryAdapter) PlayerIDForName(name string) (string, bool) {
	for _, p := range a.g.Snapshot() {
		if p.Name == name {
			return p.ID, true
		}
	}
	return "", false
}

// ProcessFrame runs the full per-frame pipeline: merge detections (C3),
// resolve anchor protection (C5), and assign identities (C6). Feature
// extraction for detections that did not already carry a feature vector
// is attempted best-effort and concurrently (errgroup) via the
// extractor; a single detection's extraction failure never aborts the
// frame (spec.md §4.6 failure semantics) — it proceeds with an empty
// feature vector, falling through to the CSV-hint or unmatched branches.
// If ctx is cancelled mid-extraction, already-completed detections keep
// whatever feature they obtained and the rest proceed featureless; the
// frame is still fully assigned and returned, with model.ErrCancelled
// reported alongside it as a marker error, not a failure to produce
// results.
func (e *Engine) ProcessFrame(ctx context.Context, frameNum int, detections []model.Detection) ([]model.Assignment, error) {
	timer := enginemetrics.NewTimer(enginemetrics.FrameProcessingDuration)
	defer timer.ObserveDuration()
	enginemetrics.FramesProcessed.Inc()
	enginemetrics.GallerySize.Set(float64(len(e.gallery.Snapshot())))

	e.mu.RLock()
	cfg := *e.cfg
	frameW, frameH := e.frameW, e.frameH
	anchors := e.anchors
	hints := e.hints
	extractor := e.extractor
	tagProtect := e.tagProtect
	e.mu.RUnlock()

	var cancelled error
	if extractor != nil {
		cancelled = e.extractFeatures(ctx, extractor, frameNum, detections)
	}

	merged := merger.Merge(detections, cfg.Merger, frameW, frameH)

	var protectedRecords []anchor.ProtectedRecord
	if anchors != nil {
		protectedRecords = anchors.Resolve(frameNum, cfg.Anchor.ProtectionWindowFrames)
	}

	assignments := assigner.Assign(merged, galleryAdapter{g: e.gallery}, protectedRecords, hints, tagProtect, cfg, frameNum)

	for _, a := range assignments {
		enginemetrics.AssignmentsBySource.WithLabelValues(a.Source.String()).Inc()
	}
	// An anchor is "active" this frame if its protection window covers
	// frameNum; whether it actually wins a detection depends on bbox
	// overlap, so a detection-less frame is not itself a violation — true
	// anchor-violation counting belongs to idmetrics' ground-truth-aware
	// Accumulator, used in regression tests where the expected name is
	// known. This gauge only reports exposure, not correctness.
	enginemetrics.ActiveAnchorProtections.Set(float64(len(protectedRecords)))

	return assignments, cancelled
}

// extractFeatures fills in FeatureVector for every detection lacking
// one, fanning out across an errgroup so slow per-detection extraction
// (e.g. a network-backed Re-ID model) doesn't serialize. A per-detection
// error is logged and leaves that detection's feature empty; only
// context cancellation is returned to the caller, as model.ErrCancelled.
func (e *Engine) extractFeatures(ctx context.Context, extractor model.FeatureExtractor, frameNum int, detections []model.Detection) error {
	timer := enginemetrics.NewTimer(enginemetrics.FeatureExtractionDuration)
	defer timer.ObserveDuration()

	g, gctx := errgroup.WithContext(ctx)
	for i := range detections {
		if !detections[i].FeatureVector.Empty() {
			continue
		}
		i := i
		g.Go(func() error {
			fv, err := extractor.Extract(gctx, frameNum, detections[i].BBox)
			if err != nil {
				enginemetrics.FeatureExtractionFailures.Inc()
				log.Printf("playerid: feature extraction failed for detection %d at frame %d: %v", i, frameNum, err)
				return nil
			}
			detections[i].FeatureVector = fv
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("%w: %v", model.ErrCancelled, err)
	}
	if ctx.Err() != nil {
		return model.ErrCancelled
	}
	return nil
}

// SaveAll persists every mutable store: gallery, active-video anchors,
// and event markers.
func (e *Engine) SaveAll() error {
	if err := e.gallery.Save(); err != nil {
		return err
	}

	e.mu.RLock()
	anchors := e.anchors
	videoPath := e.videoPath
	eventStore := e.eventStore
	e.mu.RUnlock()

	if anchors != nil && videoPath != "" {
		if err := anchors.SaveForVideo(videoPath); err != nil {
			return err
		}
	}
	if eventStore != nil && videoPath != "" {
		path := videoPath[:len(videoPath)-len(filepath.Ext(videoPath))] + "_event_markers.json"
		if err := eventStore.Save(path); err != nil {
			return err
		}
	}
	return nil
}
