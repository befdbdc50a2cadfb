// Package events implements the Event Marker Store (C7): a per-video
// sorted list of match-event markers with load/save and a merge with
// detector-produced events where manual markers always win.
package events

import (
	"fmt"
	"sort"
	"sync"

	"github.com/nmichlo/playerid-go/pkg/playerid/model"
	"github.com/nmichlo/playerid-go/pkg/playerid/storage"
)

// Type is a marker's event type (spec.md §4.7 enum).
type Type string

const (
	Pass      Type = "pass"
	Shot      Type = "shot"
	Goal      Type = "goal"
	Tackle    Type = "tackle"
	Save      Type = "save"
	Corner    Type = "corner"
	FreeKick  Type = "free_kick"
	Penalty   Type = "penalty"
	Offside   Type = "offside"
	Custom    Type = "custom"
)

// Marker is one event record.
type Marker struct {
	FrameNum    int                    `json:"frame_num"`
	EventType   Type                   `json:"event_type"`
	TimestampS  float64                `json:"timestamp"`
	PlayerName  string                 `json:"player_name,omitempty"`
	Position    *[2]float64            `json:"position,omitempty"` // normalized [0,1]
	Confidence  float64                `json:"confidence"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
	Notes       string                 `json:"notes,omitempty"`
	Manual      bool                   `json:"-"` // not persisted; set true by Add and false by MergeDetected
}

// file is the on-disk shape (§6.1): `<basename>_event_markers.json`.
type file struct {
	VideoPath string   `json:"video_path"`
	Version   string   `json:"version"`
	CreatedAt string   `json:"created_at"`
	Markers   []Marker `json:"markers"`
}

// Store holds the markers for a single video.
type Store struct {
	mu        sync.RWMutex
	videoPath string
	createdAt string
	markers   []Marker
}

// NewStore constructs an empty Store for videoPath. createdAt should be
// an ISO8601 timestamp supplied by the caller (the engine never calls
// time.Now() directly, keeping the store's output deterministic given
// identical inputs).
func NewStore(videoPath, createdAt string) *Store {
	return &Store{videoPath: videoPath, createdAt: createdAt}
}

// Add appends a manual marker and keeps the list sorted by frame number.
func (s *Store) Add(m Marker) {
	m.Confidence = 1.0
	m.Manual = true
	s.mu.Lock()
	defer s.mu.Unlock()
	s.markers = append(s.markers, m)
	sort.SliceStable(s.markers, func(i, j int) bool { return s.markers[i].FrameNum < s.markers[j].FrameNum })
}

// RemoveAt removes every marker at frameNum, optionally filtered to a
// single event type when eventType is non-nil.
func (s *Store) RemoveAt(frameNum int, eventType *Type) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := make([]Marker, 0, len(s.markers))
	removed := 0
	for _, m := range s.markers {
		if m.FrameNum == frameNum && (eventType == nil || m.EventType == *eventType) {
			removed++
			continue
		}
		kept = append(kept, m)
	}
	s.markers = kept
	return removed
}

// GetAt returns every marker recorded at frameNum.
func (s *Store) GetAt(frameNum int) []Marker {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Marker
	for _, m := range s.markers {
		if m.FrameNum == frameNum {
			out = append(out, m)
		}
	}
	return out
}

// Range returns every marker with start <= frame_num <= end.
func (s *Store) Range(start, end int) []Marker {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Marker
	for _, m := range s.markers {
		if m.FrameNum >= start && m.FrameNum <= end {
			out = append(out, m)
		}
	}
	return out
}

// Save persists the marker list atomically via the Persistence Layer.
func (s *Store) Save(path string) error {
	s.mu.RLock()
	f := file{VideoPath: s.videoPath, Version: "1.0", CreatedAt: s.createdAt, Markers: s.markers}
	s.mu.RUnlock()
	return storage.SaveJSON(path, f)
}

// Load reads a marker file from disk, replacing the in-memory list.
func (s *Store) Load(path string) error {
	var f file
	if err := storage.LoadJSON(path, &f); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.videoPath = f.VideoPath
	s.createdAt = f.CreatedAt
	s.markers = f.Markers
	sort.SliceStable(s.markers, func(i, j int) bool { return s.markers[i].FrameNum < s.markers[j].FrameNum })
	return nil
}

// MergeDetected merges detector-produced candidate events into the
// store: a detected event is dropped if a manual marker of the same
// event_type exists within 5 frames (manual markers always win);
// otherwise it is added as a non-manual marker.
func (s *Store) MergeDetected(detected []Marker) int {
	const window = 5

	s.mu.Lock()
	defer s.mu.Unlock()

	added := 0
	for _, d := range detected {
		conflict := false
		for _, existing := range s.markers {
			if existing.EventType != d.EventType {
				continue
			}
			diff := existing.FrameNum - d.FrameNum
			if diff < 0 {
				diff = -diff
			}
			if diff <= window && existing.Manual {
				conflict = true
				break
			}
		}
		if conflict {
			continue
		}
		d.Manual = false
		s.markers = append(s.markers, d)
		added++
	}
	sort.SliceStable(s.markers, func(i, j int) bool { return s.markers[i].FrameNum < s.markers[j].FrameNum })
	return added
}

// Validate satisfies storage.Validator: event_type must be a known enum
// value and confidence must sit in [0,1].
func (f file) Validate() error {
	for _, m := range f.Markers {
		switch m.EventType {
		case Pass, Shot, Goal, Tackle, Save, Corner, FreeKick, Penalty, Offside, Custom:
		default:
			return fmt.Errorf("%w: unknown event_type %q", model.ErrSchemaInvalid, m.EventType)
		}
		if m.Confidence < 0 || m.Confidence > 1 {
			return fmt.Errorf("%w: confidence %v out of [0,1]", model.ErrSchemaInvalid, m.Confidence)
		}
	}
	return nil
}
