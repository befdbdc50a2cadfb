// Package gallery implements the Gallery Store (C1): a persistent mapping
// of player_id to PlayerProfile, following the single-writer/snapshot
// discipline spec.md §5 requires and the atomic-persistence contract of
// the storage package.
package gallery

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/nmichlo/playerid-go/pkg/playerid/model"
	"github.com/nmichlo/playerid-go/pkg/playerid/storage"
)

// UpsertParams carries the optional fields accepted by AddPlayer /
// UpdatePlayer. A nil pointer field means "leave unset / unchanged";
// for UpdatePlayer a non-nil FeatureVector pointer replaces that slot
// entirely (spec.md C1 contract), and ReferenceFrame is always appended,
// never overwritten.
type UpsertParams struct {
	Name            string
	JerseyNumber    *string
	Team            *string
	Position        *string
	Notes           *string
	Tags            []string
	Features        *model.FeatureVector // general/body
	JerseyFeatures  *model.FeatureVector
	FootFeatures    *model.FeatureVector
	ReferenceFrame  *model.ReferenceFrame
	VisualizationSettings map[string]interface{}
}

// Store is the Gallery Store. Zero value is not usable; use NewStore.
type Store struct {
	mu       sync.RWMutex
	path     string
	profiles map[string]*model.PlayerProfile
	order    []string // insertion order, for ListPlayers(recent=true)
}

// NewStore creates an empty Gallery Store backed by the gallery file at
// path (conventionally "player_gallery.json").
func NewStore(path string) *Store {
	return &Store{
		path:     path,
		profiles: make(map[string]*model.PlayerProfile),
	}
}

// galleryFile is the §6.1 on-disk shape: player_id -> profile.
type galleryFile map[string]*model.PlayerProfile

// Load reads the gallery file from disk. A missing file is treated as an
// empty gallery, not an error.
func (s *Store) Load() error {
	var file galleryFile
	if err := storage.LoadJSON(s.path, &file); err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return nil
		}
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles = make(map[string]*model.PlayerProfile, len(file))
	s.order = s.order[:0]
	// Deterministic order for profiles loaded from disk: sort by id so
	// "recent" ordering is at least stable across loads even though the
	// original insertion order is not recoverable from the file format.
	ids := make([]string, 0, len(file))
	for id := range file {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		profile := file[id]
		profile.ID = id
		s.profiles[id] = profile
		s.order = append(s.order, id)
	}
	return nil
}

// Save persists the gallery atomically (I6).
func (s *Store) Save() error {
	s.mu.RLock()
	file := make(galleryFile, len(s.profiles))
	for id, p := range s.profiles {
		file[id] = p
	}
	s.mu.RUnlock()
	return storage.SaveJSON(s.path, file)
}

var idSanitizer = regexp.MustCompile(`[^a-z0-9_]+`)

// derivePlayerID implements the spec's "name lowercased + underscores on
// creation; never changed afterwards" ID scheme.
func derivePlayerID(name string) string {
	id := strings.ToLower(strings.TrimSpace(name))
	id = strings.ReplaceAll(id, " ", "_")
	id = idSanitizer.ReplaceAllString(id, "")
	if id == "" {
		id = "player"
	}
	return id
}

// AddPlayer creates a new profile, or behaves as UpdatePlayer if a
// case-insensitive name match already exists.
func (s *Store) AddPlayer(params UpsertParams) (string, error) {
	if strings.TrimSpace(params.Name) == "" {
		return "", fmt.Errorf("playerid: player name must be non-empty")
	}

	s.mu.Lock()
	for id, p := range s.profiles {
		if strings.EqualFold(p.Name, params.Name) {
			s.mu.Unlock()
			if err := s.UpdatePlayer(id, params); err != nil {
				return "", err
			}
			return id, nil
		}
	}

	id := derivePlayerID(params.Name)
	for {
		if _, exists := s.profiles[id]; !exists {
			break
		}
		id += "_"
	}

	profile := &model.PlayerProfile{
		ID:                    id,
		Name:                  params.Name,
		ReferenceFrames:       []model.ReferenceFrame{},
		VisualizationSettings: params.VisualizationSettings,
	}
	applyOptionalFields(profile, params)
	s.profiles[id] = profile
	s.order = append(s.order, id)
	s.mu.Unlock()

	return id, s.Save()
}

// UpdatePlayer partially updates an existing profile. Reference frames
// are appended, never overwritten; a supplied feature vector replaces
// the matching slot (general/body, jersey, or foot).
func (s *Store) UpdatePlayer(playerID string, params UpsertParams) error {
	s.mu.Lock()
	profile, ok := s.profiles[playerID]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("playerid: unknown player_id %q", playerID)
	}
	if params.Name != "" {
		profile.Name = params.Name
	}
	applyOptionalFields(profile, params)
	s.mu.Unlock()

	return s.Save()
}

func applyOptionalFields(profile *model.PlayerProfile, params UpsertParams) {
	if params.JerseyNumber != nil {
		profile.JerseyNumber = *params.JerseyNumber
	}
	if params.Team != nil {
		profile.Team = *params.Team
	}
	if params.Position != nil {
		profile.Position = *params.Position
	}
	if params.Notes != nil {
		profile.Notes = *params.Notes
	}
	if params.Tags != nil {
		profile.Tags = params.Tags
	}
	if params.Features != nil {
		profile.Features = *params.Features
	}
	if params.JerseyFeatures != nil {
		profile.JerseyFeatures = *params.JerseyFeatures
	}
	if params.FootFeatures != nil {
		profile.FootFeatures = *params.FootFeatures
	}
	if params.ReferenceFrame != nil {
		profile.ReferenceFrames = append(profile.ReferenceFrames, *params.ReferenceFrame)
	}
	if params.VisualizationSettings != nil {
		profile.VisualizationSettings = params.VisualizationSettings
	}
}

// GetPlayer returns a copy-free pointer to the profile, or nil if absent.
// Callers in a concurrent context should treat the result as a read-only
// snapshot (spec.md §5's copy-on-write discipline).
func (s *Store) GetPlayer(playerID string) *model.PlayerProfile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.profiles[playerID]
}

// RemovePlayer deletes a profile, returning whether it existed.
func (s *Store) RemovePlayer(playerID string) (bool, error) {
	s.mu.Lock()
	_, ok := s.profiles[playerID]
	if ok {
		delete(s.profiles, playerID)
		for i, id := range s.order {
			if id == playerID {
				s.order = append(s.order[:i], s.order[i+1:]...)
				break
			}
		}
	}
	s.mu.Unlock()
	if !ok {
		return false, nil
	}
	return true, s.Save()
}

// IDName is a (player_id, name) pair, the ListPlayers result element.
type IDName struct {
	ID   string
	Name string
}

// ListPlayers returns every profile's (id, name). When recent is true the
// result is ordered by insertion order; otherwise alphabetically by name.
func (s *Store) ListPlayers(recent bool) []IDName {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]IDName, 0, len(s.profiles))
	if recent {
		for _, id := range s.order {
			p := s.profiles[id]
			out = append(out, IDName{ID: id, Name: p.Name})
		}
		return out
	}
	for id, p := range s.profiles {
		out = append(out, IDName{ID: id, Name: p.Name})
	}
	sort.Slice(out, func(i, j int) bool {
		return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name)
	})
	return out
}

// Snapshot returns a shallow copy of every profile for lock-free reading
// during a frame (spec.md §5: "readers see a snapshot taken at
// frame-start").
func (s *Store) Snapshot() []*model.PlayerProfile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*model.PlayerProfile, 0, len(s.profiles))
	for _, id := range s.order {
		cp := *s.profiles[id]
		out = append(out, &cp)
	}
	return out
}

// Match is the result of MatchPlayer: the best gallery hit above threshold.
type Match struct {
	PlayerID   string
	PlayerName string
	Similarity float64
}

// MatchPlayer performs the C2 Feature Matcher contract directly against
// this gallery's snapshot: argmax cosine similarity over every profile
// with a non-empty Features slot, ties broken by insertion order,
// returned only if sim >= threshold.
func (s *Store) MatchPlayer(query model.FeatureVector, threshold float32) (Match, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	best := Match{}
	found := false
	bestSim := -2.0
	for _, id := range s.order {
		p := s.profiles[id]
		if p.Features.Empty() {
			continue
		}
		sim := model.Cosine(query, p.Features)
		if sim > bestSim {
			bestSim = sim
			best = Match{PlayerID: p.ID, PlayerName: p.Name, Similarity: sim}
			found = true
		}
	}
	if !found || bestSim < float64(threshold) {
		return Match{}, false
	}
	return best, true
}

// ConfidenceMetrics summarizes how trustworthy a profile's gallery entry
// currently is (C1 contract).
type ConfidenceMetrics struct {
	OverallConfidence       float64
	AvgSimilarity           float64
	RefFrameCount           int
	AvgDetectionConfidence  float64
}

// GetPlayerConfidenceMetrics computes the monotone confidence blend from
// spec.md §4.1: 0.4*avgSimilarity + 0.2*min(refFrameCount/10,1) +
// 0.4*avgDetectionConfidence, clamped to [0,1].
func (s *Store) GetPlayerConfidenceMetrics(playerID string) (ConfidenceMetrics, error) {
	s.mu.RLock()
	profile, ok := s.profiles[playerID]
	s.mu.RUnlock()
	if !ok {
		return ConfidenceMetrics{}, fmt.Errorf("playerid: unknown player_id %q", playerID)
	}

	n := len(profile.ReferenceFrames)
	var sumSim, sumConf float64
	for _, rf := range profile.ReferenceFrames {
		sumSim += rf.Similarity
		sumConf += rf.Confidence
	}
	var avgSim, avgConf float64
	if n > 0 {
		avgSim = sumSim / float64(n)
		avgConf = sumConf / float64(n)
	}

	countTerm := math.Min(float64(n)/10.0, 1.0)
	overall := 0.4*avgSim + 0.2*countTerm + 0.4*avgConf
	overall = math.Max(0, math.Min(1, overall))

	return ConfidenceMetrics{
		OverallConfidence:      overall,
		AvgSimilarity:          avgSim,
		RefFrameCount:          n,
		AvgDetectionConfidence: avgConf,
	}, nil
}
