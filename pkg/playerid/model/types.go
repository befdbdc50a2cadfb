package model

import (
	"encoding/json"
	"fmt"
	"log"
	"strconv"
)

// ReferenceFrame is one reference image record attached to a PlayerProfile.
type ReferenceFrame struct {
	VideoPath  string  `json:"video_path"`
	FrameNum   int     `json:"frame_num"`
	BBox       BBox    `json:"bbox"`
	Confidence float64 `json:"confidence"`
	Similarity float64 `json:"similarity"`
	Quality    float64 `json:"quality"`
	IsPrimary  bool    `json:"is_primary"`
}

// MarshalJSON writes BBox as a 4-element [x1,y1,x2,y2] array per §6.1.
func (b BBox) MarshalJSON() ([]byte, error) {
	return json.Marshal([]float64{b.X1, b.Y1, b.X2, b.Y2})
}

// UnmarshalJSON reads BBox from a 4-element [x1,y1,x2,y2] array.
func (b *BBox) UnmarshalJSON(data []byte) error {
	var raw [4]float64
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("%w: bbox must be [x1,y1,x2,y2]: %v", ErrSchemaInvalid, err)
	}
	b.X1, b.Y1, b.X2, b.Y2 = raw[0], raw[1], raw[2], raw[3]
	return nil
}

// PlayerProfile is the persistent per-player gallery entry (C1).
type PlayerProfile struct {
	ID                    string                 `json:"-"`
	Name                  string                 `json:"name"`
	JerseyNumber          string                 `json:"jersey_number,omitempty"`
	Team                  string                 `json:"team,omitempty"`
	Position              string                 `json:"position,omitempty"`
	Notes                 string                 `json:"notes,omitempty"`
	Tags                  []string               `json:"tags,omitempty"`
	Features              FeatureVector          `json:"features,omitempty"`
	JerseyFeatures        FeatureVector          `json:"jersey_features,omitempty"`
	FootFeatures          FeatureVector          `json:"foot_features,omitempty"`
	ReferenceFrames       []ReferenceFrame       `json:"reference_frames"`
	VisualizationSettings map[string]interface{} `json:"visualization_settings,omitempty"`
}

// AnchorTag is a single user-authored ground-truth tag at one frame (C4).
type AnchorTag struct {
	PlayerName   string `json:"player_name"`
	TrackID      *int   `json:"track_id,omitempty"`
	BBox         BBox   `json:"bbox"`
	JerseyNumber string `json:"jersey_number,omitempty"`
	Team         string `json:"team,omitempty"`
	Confidence   float64 `json:"confidence"`
}

// SameAs reports whether two tags are duplicates per spec.md C4/I-level
// dedup rule: same player_name and bbox to the pixel.
func (t AnchorTag) SameAs(o AnchorTag) bool {
	return t.PlayerName == o.PlayerName && t.BBox == o.BBox
}

// AnchorFile is the on-disk, per-video persistence record (§6.1).
type AnchorFile struct {
	VideoPath    string            `json:"video_path"`
	AnchorFrames map[int][]AnchorTag `json:"anchor_frames"`
}

// MarshalJSON renders AnchorFrames with string frame-number keys, per
// spec.md §6.1 ("emitting strings on write").
func (a AnchorFile) MarshalJSON() ([]byte, error) {
	strMap := make(map[string][]AnchorTag, len(a.AnchorFrames))
	for frame, tags := range a.AnchorFrames {
		strMap[strconv.Itoa(frame)] = tags
	}
	return json.Marshal(struct {
		VideoPath    string                 `json:"video_path"`
		AnchorFrames map[string][]AnchorTag `json:"anchor_frames"`
	}{VideoPath: a.VideoPath, AnchorFrames: strMap})
}

// UnmarshalJSON accepts both string and int frame-number keys (the Open
// Question in spec.md §9). Each key is parsed to an int; if two
// representations of the same frame collide, their tag lists are merged
// (the spec's recommended resolution) rather than one silently
// overwriting the other, and a warning is logged for each collision.
func (a *AnchorFile) UnmarshalJSON(data []byte) error {
	var raw struct {
		VideoPath    string                     `json:"video_path"`
		AnchorFrames map[string][]AnchorTag `json:"anchor_frames"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("%w: %v", ErrSchemaInvalid, err)
	}
	a.VideoPath = raw.VideoPath
	a.AnchorFrames = make(map[int][]AnchorTag, len(raw.AnchorFrames))
	for key, tags := range raw.AnchorFrames {
		frame, err := strconv.Atoi(key)
		if err != nil {
			return fmt.Errorf("%w: frame key %q is not numeric", ErrSchemaInvalid, key)
		}
		if _, dup := a.AnchorFrames[frame]; dup {
			log.Printf("model: anchor_frames key %q repeats frame %d; merging tag lists", key, frame)
		}
		a.AnchorFrames[frame] = append(a.AnchorFrames[frame], tags...)
	}
	return nil
}

// Detection is a raw per-frame detection, input to the Detection Merger.
type Detection struct {
	BBox                BBox
	DetectionConfidence float64
	FeatureVector       FeatureVector // optional (Empty() if absent)
	TrackID             *int          // optional, when the upstream tracker assigns one
}

// MergedDetection is the output of the Detection Merger (C3), input to the
// Identity Assigner (C6).
type MergedDetection struct {
	BBox                  BBox          // the largest of the merged group (I5)
	Members               []BBox        // original member bboxes
	RepresentativeFeature FeatureVector // feature of the highest-confidence member
	TrackID               *int          // track id of the highest-confidence member, if any
}

// Source identifies which signal produced an Assignment.
type Source int

const (
	SourceUnmatched Source = iota
	SourceAnchor
	SourceGallery
	SourceCsvHint
)

func (s Source) String() string {
	switch s {
	case SourceAnchor:
		return "Anchor"
	case SourceGallery:
		return "Gallery"
	case SourceCsvHint:
		return "CsvHint"
	default:
		return "Unmatched"
	}
}

// MarshalJSON renders Source using its spec.md-defined enum names.
func (s Source) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// Assignment is the per-detection identity decision produced by C6.
type Assignment struct {
	PlayerID   string  `json:"player_id,omitempty"`
	PlayerName string  `json:"player_name,omitempty"`
	Confidence float64 `json:"confidence"`
	Source     Source  `json:"source"`
}

// Unmatched is the zero-value Assignment outcome; it is a valid result,
// not an error (spec.md §4.6 failure semantics).
var Unmatched = Assignment{Source: SourceUnmatched}
