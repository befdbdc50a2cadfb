package model

import "gopkg.in/ini.v1"

// Config consolidates every tunable the spec enumerates (§6.2) into one
// struct grouped by component, following the teacher's TrackerConfig
// pattern (pkg/norfairgo/tracker.go): a single struct, passed by
// reference, with defaults applied once at construction instead of the
// hundreds of loose "self.X" fields the source UI class carried.
type Config struct {
	Merger   MergerConfig
	Matcher  MatcherConfig
	Anchor   AnchorConfig
	Assigner AssignerConfig
}

// MergerConfig groups the Detection Merger's (C3) tunables.
type MergerConfig struct {
	BallFilterEnabled        bool
	MinPlayerAreaPx          uint32
	MinPlayerHeightPx        uint32
	MinPlayerAspectRatio     float32
	MergeIoUThreshold        float32
	MergeSimilarityThreshold float32
	BBoxExpansionFraction    float32 // 0.05 == 5% per side
}

// MatcherConfig groups the Feature Matcher's (C2) tunables.
type MatcherConfig struct {
	DisplayThreshold        float32
	AuthoritativeThreshold  float32
}

// AnchorConfig groups the Anchor Protection Resolver's (C5) tunables.
type AnchorConfig struct {
	ProtectionWindowFrames   uint32
	MatchIoU                 float32
	MatchCenterDistancePx    float32
}

// AssignerConfig groups the Identity Assigner's (C6) tunables.
type AssignerConfig struct {
	ShortTermTagProtectionFrames uint32
	CsvHintIoUThreshold          float32
	GalleryOverrideIoU           float32 // 0.3, the tag-protection override threshold in C6(b)
}

// DefaultConfig returns a Config populated with every default listed in
// spec.md §6.2.
func DefaultConfig() *Config {
	return &Config{
		Merger: MergerConfig{
			BallFilterEnabled:        true,
			MinPlayerAreaPx:          3000,
			MinPlayerHeightPx:        80,
			MinPlayerAspectRatio:     1.3,
			MergeIoUThreshold:        0.5,
			MergeSimilarityThreshold: 0.85,
			BBoxExpansionFraction:    0.05,
		},
		Matcher: MatcherConfig{
			DisplayThreshold:       0.5,
			AuthoritativeThreshold: 0.6,
		},
		Anchor: AnchorConfig{
			ProtectionWindowFrames: 150,
			MatchIoU:               0.05,
			MatchCenterDistancePx:  200,
		},
		Assigner: AssignerConfig{
			ShortTermTagProtectionFrames: 2,
			CsvHintIoUThreshold:          0.3,
			GalleryOverrideIoU:           0.3,
		},
	}
}

// mergeFloat, mergeUint and mergeBool copy v onto dst when ok reports that
// the key was present in the ini file, and leave dst unchanged otherwise.
// Helpers for LoadINI so a partially-specified ini file composes with
// DefaultConfig().
func mergeFloat(dst *float32, v float64, ok bool) {
	if ok {
		*dst = float32(v)
	}
}

func mergeUint(dst *uint32, v int, ok bool) {
	if ok {
		*dst = uint32(v)
	}
}

func mergeBool(dst *bool, v bool, ok bool) {
	if ok {
		*dst = v
	}
}

// LoadINI overlays options found in an ini file (C10, grounded on the
// teacher's metrics.go InformationFile / gopkg.in/ini.v1 usage) onto a
// config that already has defaults applied. Unset keys are left
// untouched. Section names match the Config groups: [merger], [matcher],
// [anchor], [assigner].
func (c *Config) LoadINI(path string) error {
	f, err := ini.Load(path)
	if err != nil {
		return err
	}

	if sec, err := f.GetSection("merger"); err == nil {
		mergeBool(&c.Merger.BallFilterEnabled, sec.Key("ball_filter_enabled").MustBool(c.Merger.BallFilterEnabled), sec.HasKey("ball_filter_enabled"))
		mergeUint(&c.Merger.MinPlayerAreaPx, sec.Key("min_player_area_px").MustInt(int(c.Merger.MinPlayerAreaPx)), sec.HasKey("min_player_area_px"))
		mergeUint(&c.Merger.MinPlayerHeightPx, sec.Key("min_player_height_px").MustInt(int(c.Merger.MinPlayerHeightPx)), sec.HasKey("min_player_height_px"))
		mergeFloat(&c.Merger.MinPlayerAspectRatio, sec.Key("min_player_aspect_ratio").MustFloat64(float64(c.Merger.MinPlayerAspectRatio)), sec.HasKey("min_player_aspect_ratio"))
		mergeFloat(&c.Merger.MergeIoUThreshold, sec.Key("merge_iou_threshold").MustFloat64(float64(c.Merger.MergeIoUThreshold)), sec.HasKey("merge_iou_threshold"))
		mergeFloat(&c.Merger.MergeSimilarityThreshold, sec.Key("merge_similarity_threshold").MustFloat64(float64(c.Merger.MergeSimilarityThreshold)), sec.HasKey("merge_similarity_threshold"))
	}
	if sec, err := f.GetSection("matcher"); err == nil {
		mergeFloat(&c.Matcher.DisplayThreshold, sec.Key("gallery_display_threshold").MustFloat64(float64(c.Matcher.DisplayThreshold)), sec.HasKey("gallery_display_threshold"))
		mergeFloat(&c.Matcher.AuthoritativeThreshold, sec.Key("gallery_authoritative_threshold").MustFloat64(float64(c.Matcher.AuthoritativeThreshold)), sec.HasKey("gallery_authoritative_threshold"))
	}
	if sec, err := f.GetSection("anchor"); err == nil {
		mergeUint(&c.Anchor.ProtectionWindowFrames, sec.Key("anchor_protection_window_frames").MustInt(int(c.Anchor.ProtectionWindowFrames)), sec.HasKey("anchor_protection_window_frames"))
		mergeFloat(&c.Anchor.MatchIoU, sec.Key("anchor_match_iou").MustFloat64(float64(c.Anchor.MatchIoU)), sec.HasKey("anchor_match_iou"))
		mergeFloat(&c.Anchor.MatchCenterDistancePx, sec.Key("anchor_match_center_distance_px").MustFloat64(float64(c.Anchor.MatchCenterDistancePx)), sec.HasKey("anchor_match_center_distance_px"))
	}
	if sec, err := f.GetSection("assigner"); err == nil {
		mergeUint(&c.Assigner.ShortTermTagProtectionFrames, sec.Key("short_term_tag_protection_frames").MustInt(int(c.Assigner.ShortTermTagProtectionFrames)), sec.HasKey("short_term_tag_protection_frames"))
	}
	return nil
}
