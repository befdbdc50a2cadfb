package anchor

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nmichlo/playerid-go/pkg/playerid/model"
	"github.com/nmichlo/playerid-go/pkg/playerid/storage"
)

func TestAddTagCoalescesExactDuplicate(t *testing.T) {
	s := NewStore("/videos/match.mp4")
	tag := model.AnchorTag{PlayerName: "Messi", BBox: model.BBox{X1: 0, Y1: 0, X2: 10, Y2: 10}}

	s.AddTag(5, tag)
	s.AddTag(5, tag)

	if got := len(s.TagsAt(5)); got != 1 {
		t.Fatalf("expected duplicate tag to be coalesced, got %d tags", got)
	}
	if s.State() != Dirty {
		t.Fatalf("expected state Dirty after AddTag, got %v", s.State())
	}
}

func TestSaveForVideoMovesDirtyToLoadedAndWritesBackup(t *testing.T) {
	dir := t.TempDir()
	videoPath := filepath.Join(dir, "match.mp4")

	s := NewStore(videoPath)
	s.AddTag(1, model.AnchorTag{PlayerName: "Messi", BBox: model.BBox{X1: 0, Y1: 0, X2: 10, Y2: 10}})
	if err := s.SaveForVideo(videoPath); err != nil {
		t.Fatalf("SaveForVideo: %v", err)
	}
	if s.State() != Loaded {
		t.Fatalf("expected Loaded after save, got %v", s.State())
	}

	s.AddTag(2, model.AnchorTag{PlayerName: "Mbappe", BBox: model.BBox{X1: 20, Y1: 20, X2: 30, Y2: 30}})
	if err := s.SaveForVideo(videoPath); err != nil {
		t.Fatalf("second SaveForVideo: %v", err)
	}

	seedPath := pathFor(videoPath)
	backupPath := seedPath + ".backup"
	if _, err := os.Stat(backupPath); err != nil {
		t.Fatalf("expected backup sidecar to exist: %v", err)
	}
}

func TestLoadForVideoRejectsMismatchedPathAndFallsBackToSeedConfig(t *testing.T) {
	dir := t.TempDir()
	videoPath := filepath.Join(dir, "match.mp4")

	// Wrong-path candidate: must be ignored per I3.
	wrong := model.AnchorFile{
		VideoPath:    filepath.Join(dir, "other.mp4"),
		AnchorFrames: map[int][]model.AnchorTag{1: {{PlayerName: "Wrong", BBox: model.BBox{X2: 1, Y2: 1}}}},
	}
	if err := storage.SaveJSON(filepath.Join(dir, "PlayerTagsSeed_match.json"), wrong); err != nil {
		t.Fatal(err)
	}

	// Correct-path fallback candidate.
	correct := model.AnchorFile{
		VideoPath:    videoPath,
		AnchorFrames: map[int][]model.AnchorTag{2: {{PlayerName: "Right", BBox: model.BBox{X2: 1, Y2: 1}}}},
	}
	if err := storage.SaveJSON(filepath.Join(dir, "seed_config.json"), correct); err != nil {
		t.Fatal(err)
	}

	s := NewStore(videoPath)
	loaded, err := s.LoadForVideo(videoPath)
	if err != nil {
		t.Fatalf("LoadForVideo: %v", err)
	}
	if !loaded {
		t.Fatal("expected seed_config.json fallback to be loaded")
	}
	tags := s.TagsAt(2)
	if len(tags) != 1 || tags[0].PlayerName != "Right" {
		t.Fatalf("expected only the matching-path candidate's tags, got %+v", tags)
	}
	if len(s.TagsAt(1)) != 0 {
		t.Fatal("expected mismatched-path candidate to be rejected")
	}
}

func TestLoadForVideoPicksNewestCandidateByModTime(t *testing.T) {
	dir := t.TempDir()
	videoPath := filepath.Join(dir, "match.mp4")

	older := model.AnchorFile{VideoPath: videoPath, AnchorFrames: map[int][]model.AnchorTag{
		1: {{PlayerName: "Older", BBox: model.BBox{X2: 1, Y2: 1}}},
	}}
	newer := model.AnchorFile{VideoPath: videoPath, AnchorFrames: map[int][]model.AnchorTag{
		1: {{PlayerName: "Newer", BBox: model.BBox{X2: 1, Y2: 1}}},
	}}

	oldPath := filepath.Join(dir, "PlayerTagsSeed_match.json")
	newPath := filepath.Join(dir, "PlayerTagsSeed-match.json")
	if err := storage.SaveJSON(oldPath, older); err != nil {
		t.Fatal(err)
	}
	oldTime := time.Now().Add(-1 * time.Hour)
	if err := os.Chtimes(oldPath, oldTime, oldTime); err != nil {
		t.Fatal(err)
	}
	if err := storage.SaveJSON(newPath, newer); err != nil {
		t.Fatal(err)
	}

	s := NewStore(videoPath)
	if _, err := s.LoadForVideo(videoPath); err != nil {
		t.Fatal(err)
	}
	tags := s.TagsAt(1)
	if len(tags) != 1 || tags[0].PlayerName != "Newer" {
		t.Fatalf("expected the newest candidate's tags to win, got %+v", tags)
	}
}

func TestResolveReturnsAnchorsWhoseWindowCoversFrame(t *testing.T) {
	s := NewStore("/videos/match.mp4")
	s.AddTag(100, model.AnchorTag{PlayerName: "Messi", BBox: model.BBox{X1: 0, Y1: 0, X2: 10, Y2: 10}})

	records := s.Resolve(200, 150) // window [0,250] covers 200
	if len(records) != 1 || records[0].PlayerName != "Messi" {
		t.Fatalf("expected anchor to be in-window, got %+v", records)
	}

	records = s.Resolve(400, 150) // window [0,250] does not cover 400
	if len(records) != 0 {
		t.Fatalf("expected anchor to be out of window, got %+v", records)
	}
}

func TestMatchAgainstAppliesConflictRule(t *testing.T) {
	d := model.BBox{X1: 100, Y1: 100, X2: 160, Y2: 200}

	closeByFrame := ProtectedRecord{PlayerName: "Close", AnchorFrame: 195, AnchorBBox: d}
	farByFrame := ProtectedRecord{PlayerName: "Far", AnchorFrame: 50, AnchorBBox: d}

	best, ok := MatchAgainst([]ProtectedRecord{farByFrame, closeByFrame}, d, 200, 0.05, 200)
	if !ok || best.PlayerName != "Close" {
		t.Fatalf("expected record closest in frame distance to win, got %+v", best)
	}
}
