package gallery

import (
	"path/filepath"
	"testing"

	"gocv.io/x/gocv"

	"github.com/nmichlo/playerid-go/pkg/playerid/model"
)

func TestAddPlayerDerivesIDAndDefaultsToUpdateOnNameCollision(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(filepath.Join(dir, "gallery.json"))

	id, err := s.AddPlayer(UpsertParams{Name: "Lionel Messi"})
	if err != nil {
		t.Fatalf("AddPlayer: %v", err)
	}
	if id != "lionel_messi" {
		t.Fatalf("got id %q", id)
	}

	team := "Inter Miami"
	id2, err := s.AddPlayer(UpsertParams{Name: "lionel messi", Team: &team})
	if err != nil {
		t.Fatalf("AddPlayer (collision): %v", err)
	}
	if id2 != id {
		t.Fatalf("expected collision to update existing id %q, got %q", id, id2)
	}

	p := s.GetPlayer(id)
	if p.Team != team {
		t.Fatalf("expected team to be updated, got %q", p.Team)
	}
}

func TestUpdatePlayerAppendsReferenceFramesAndReplacesFeatures(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(filepath.Join(dir, "gallery.json"))

	id, err := s.AddPlayer(UpsertParams{Name: "Kylian Mbappe"})
	if err != nil {
		t.Fatal(err)
	}

	rf1 := model.ReferenceFrame{VideoPath: "a.mp4", FrameNum: 1}
	rf2 := model.ReferenceFrame{VideoPath: "a.mp4", FrameNum: 2}
	if err := s.UpdatePlayer(id, UpsertParams{ReferenceFrame: &rf1}); err != nil {
		t.Fatal(err)
	}
	if err := s.UpdatePlayer(id, UpsertParams{ReferenceFrame: &rf2}); err != nil {
		t.Fatal(err)
	}

	p := s.GetPlayer(id)
	if len(p.ReferenceFrames) != 2 {
		t.Fatalf("expected 2 reference frames, got %d", len(p.ReferenceFrames))
	}

	fv := model.NewFeatureVector([]float32{1, 0, 0})
	if err := s.UpdatePlayer(id, UpsertParams{Features: &fv}); err != nil {
		t.Fatal(err)
	}
	p = s.GetPlayer(id)
	if p.Features.Empty() || p.Features.Len() != 3 {
		t.Fatalf("expected features to be set, got %+v", p.Features)
	}
}

func TestMatchPlayerThresholdAndTieBreak(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(filepath.Join(dir, "gallery.json"))

	fvA := model.NewFeatureVector([]float32{1, 0})
	fvB := model.NewFeatureVector([]float32{1, 0})

	idA, _ := s.AddPlayer(UpsertParams{Name: "Alice", Features: &fvA})
	_, _ = s.AddPlayer(UpsertParams{Name: "Bob", Features: &fvB})

	query := model.NewFeatureVector([]float32{1, 0})
	match, ok := s.MatchPlayer(query, 0.9)
	if !ok {
		t.Fatal("expected a match above threshold")
	}
	if match.PlayerID != idA {
		t.Fatalf("expected tie to favor insertion order (Alice), got %q", match.PlayerID)
	}

	_, ok = s.MatchPlayer(query, 1.01)
	if ok {
		t.Fatal("expected no match above an unreachable threshold")
	}
}

func TestListPlayersOrdering(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(filepath.Join(dir, "gallery.json"))

	_, _ = s.AddPlayer(UpsertParams{Name: "Zed"})
	_, _ = s.AddPlayer(UpsertParams{Name: "Amy"})

	recent := s.ListPlayers(true)
	if recent[0].Name != "Zed" || recent[1].Name != "Amy" {
		t.Fatalf("expected insertion order, got %+v", recent)
	}

	alpha := s.ListPlayers(false)
	if alpha[0].Name != "Amy" || alpha[1].Name != "Zed" {
		t.Fatalf("expected alphabetical order, got %+v", alpha)
	}
}

func TestGetPlayerConfidenceMetrics(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(filepath.Join(dir, "gallery.json"))

	id, _ := s.AddPlayer(UpsertParams{Name: "Erling Haaland"})
	rf := model.ReferenceFrame{Confidence: 0.8, Similarity: 0.9}
	for i := 0; i < 5; i++ {
		frame := rf
		if err := s.UpdatePlayer(id, UpsertParams{ReferenceFrame: &frame}); err != nil {
			t.Fatal(err)
		}
	}

	metrics, err := s.GetPlayerConfidenceMetrics(id)
	if err != nil {
		t.Fatal(err)
	}
	if metrics.RefFrameCount != 5 {
		t.Fatalf("expected 5 ref frames, got %d", metrics.RefFrameCount)
	}
	want := 0.4*0.9 + 0.2*0.5 + 0.4*0.8
	if diff := metrics.OverallConfidence - want; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("overall confidence = %v, want %v", metrics.OverallConfidence, want)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gallery.json")

	s := NewStore(path)
	team := "Barcelona"
	id, err := s.AddPlayer(UpsertParams{Name: "Pedri", Team: &team})
	if err != nil {
		t.Fatal(err)
	}

	s2 := NewStore(path)
	if err := s2.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	p := s2.GetPlayer(id)
	if p == nil {
		t.Fatalf("expected player %q to load", id)
	}
	if p.Team != team || p.ID != id {
		t.Fatalf("loaded profile mismatch: %+v", p)
	}
}

// solidColorProvider returns a uniform-color Mat for every frame request,
// standing in for a decoded video region.
type solidColorProvider struct {
	b, g, r float64
	rows    int
	cols    int
}

func (p solidColorProvider) ReadFrame(videoPath string, frameNum int) (gocv.Mat, error) {
	return gocv.NewMatWithSizeFromScalar(gocv.NewScalar(p.b, p.g, p.r, 0), p.rows, p.cols, gocv.MatTypeCV8UC3), nil
}

func TestRemoveUnavailableImagesDropsFieldColoredAndUndersizedCrops(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(filepath.Join(dir, "gallery.json"))

	id, _ := s.AddPlayer(UpsertParams{Name: "Test Player"})

	// Large enough crop, solid bright green (field-colored) -> dropped.
	green := model.ReferenceFrame{VideoPath: "v.mp4", FrameNum: 1, BBox: model.BBox{X1: 0, Y1: 0, X2: 100, Y2: 100}}
	// Crop outside the decoded frame bounds -> dropped.
	outOfBounds := model.ReferenceFrame{VideoPath: "v.mp4", FrameNum: 2, BBox: model.BBox{X1: 0, Y1: 0, X2: 5000, Y2: 5000}}
	// Too small -> dropped.
	tiny := model.ReferenceFrame{VideoPath: "v.mp4", FrameNum: 3, BBox: model.BBox{X1: 0, Y1: 0, X2: 5, Y2: 5}}

	for _, rf := range []model.ReferenceFrame{green, outOfBounds, tiny} {
		frame := rf
		if err := s.UpdatePlayer(id, UpsertParams{ReferenceFrame: &frame}); err != nil {
			t.Fatal(err)
		}
	}

	provider := solidColorProvider{b: 40, g: 160, r: 40, rows: 200, cols: 200}
	stats, err := s.RemoveUnavailableImages(provider, nil)
	if err != nil {
		t.Fatalf("RemoveUnavailableImages: %v", err)
	}
	if stats.RemovedCount != 3 {
		t.Fatalf("expected all 3 crops removed, got %d", stats.RemovedCount)
	}

	p := s.GetPlayer(id)
	if len(p.ReferenceFrames) != 0 {
		t.Fatalf("expected no reference frames left, got %d", len(p.ReferenceFrames))
	}
}

func TestRemoveDuplicateGalleryImagesKeepsFirstOfIdenticalCrops(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(filepath.Join(dir, "gallery.json"))

	id, _ := s.AddPlayer(UpsertParams{Name: "Test Player"})
	rf1 := model.ReferenceFrame{VideoPath: "v.mp4", FrameNum: 1, BBox: model.BBox{X1: 0, Y1: 0, X2: 64, Y2: 64}, IsPrimary: true}
	rf2 := model.ReferenceFrame{VideoPath: "v.mp4", FrameNum: 2, BBox: model.BBox{X1: 0, Y1: 0, X2: 64, Y2: 64}}
	for _, rf := range []model.ReferenceFrame{rf1, rf2} {
		frame := rf
		if err := s.UpdatePlayer(id, UpsertParams{ReferenceFrame: &frame}); err != nil {
			t.Fatal(err)
		}
	}

	provider := solidColorProvider{b: 120, g: 80, r: 200, rows: 200, cols: 200}
	stats, err := s.RemoveDuplicateGalleryImages(provider)
	if err != nil {
		t.Fatalf("RemoveDuplicateGalleryImages: %v", err)
	}
	if stats.RemovedCount != 1 {
		t.Fatalf("expected 1 duplicate removed, got %d", stats.RemovedCount)
	}

	p := s.GetPlayer(id)
	if len(p.ReferenceFrames) != 1 || !p.ReferenceFrames[0].IsPrimary {
		t.Fatalf("expected the primary frame to survive, got %+v", p.ReferenceFrames)
	}
}
