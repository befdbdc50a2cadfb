// Package anchor implements the Anchor Store (C4) and Anchor Protection
// Resolver (C5): per-video ground-truth tags, their strict-path-validated
// persistence, and resolution of which tags protect a given frame.
package anchor

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/nmichlo/playerid-go/pkg/playerid/model"
	"github.com/nmichlo/playerid-go/pkg/playerid/storage"
)

// State is the per-video anchor lifecycle state (spec.md §4.4).
type State int

const (
	Unloaded State = iota
	Loaded
	Dirty
)

func (s State) String() string {
	switch s {
	case Loaded:
		return "Loaded"
	case Dirty:
		return "Dirty"
	default:
		return "Unloaded"
	}
}

// candidateFilenames lists the seed file names checked, in order, in the
// directory holding video_path; every one that exists is examined and the
// newest matching file by mtime is loaded. seed_config
// is a directory-wide fallback that applies regardless of basename.
func candidateFilenames(base string) []string {
	return []string{
		fmt.Sprintf("PlayerTagsSeed_%s.json", base),
		fmt.Sprintf("PlayerTagsSeed-%s.json", base),
		fmt.Sprintf("PlayerTagsSeed-%s-Project.json", base),
		fmt.Sprintf("PlayerTagsSeed-%s_optimized.json", base),
		"seed_config.json",
	}
}

// Store holds the anchor tags for a single currently-active video.
// Zero value is not usable; use NewStore.
type Store struct {
	mu        sync.RWMutex
	videoPath string
	file      model.AnchorFile
	state     State
}

// NewStore constructs an anchor Store for videoPath in Unloaded state.
func NewStore(videoPath string) *Store {
	return &Store{
		videoPath: videoPath,
		file: model.AnchorFile{
			VideoPath:    videoPath,
			AnchorFrames: make(map[int][]model.AnchorTag),
		},
		state: Unloaded,
	}
}

// State returns the current lifecycle state.
func (s *Store) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// AddTag appends a tag at frame_num, coalescing an exact duplicate
// (same player_name and bbox) rather than storing it twice. Moves
// Loaded -> Dirty (or leaves Unloaded as Unloaded -> Dirty, since an
// in-memory edit before any load is still a pending change to persist).
func (s *Store) AddTag(frameNum int, tag model.AnchorTag) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.file.AnchorFrames[frameNum] {
		if existing.SameAs(tag) {
			return
		}
	}
	s.file.AnchorFrames[frameNum] = append(s.file.AnchorFrames[frameNum], tag)
	s.state = Dirty
}

// TagsAt returns a copy of the tags recorded at frameNum.
func (s *Store) TagsAt(frameNum int) []model.AnchorTag {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tags := s.file.AnchorFrames[frameNum]
	out := make([]model.AnchorTag, len(tags))
	copy(out, tags)
	return out
}

// normalizePath resolves symlinks/`.`/`..` and, on case-insensitive
// filesystems, lowercases the result, so two spellings of the same path
// compare equal (I3).
func normalizePath(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		abs = resolved
	}
	abs = filepath.Clean(abs)
	if runtime.GOOS == "windows" || runtime.GOOS == "darwin" {
		abs = strings.ToLower(abs)
	}
	return abs
}

// LoadForVideo scans the directory containing videoPath for a seed file
// whose recorded video_path normalizes to the same path as videoPath
// (I3), loads the newest such candidate by mtime, and merges its
// anchor_frames into the in-memory store. Returns (loaded bool, err).
// A candidate that fails to decode or whose video_path does not match is
// skipped with a log line, never an error — absence of a seed file is the
// common case.
func (s *Store) LoadForVideo(videoPath string) (bool, error) {
	dir := filepath.Dir(videoPath)
	base := strings.TrimSuffix(filepath.Base(videoPath), filepath.Ext(videoPath))
	wantPath := normalizePath(videoPath)

	var bestPath string
	var bestModTime time.Time

	for _, name := range candidateFilenames(base) {
		candidatePath := filepath.Join(dir, name)
		info, err := os.Stat(candidatePath)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return false, err
		}
		if info.IsDir() {
			continue
		}

		var file model.AnchorFile
		if err := storage.LoadJSON(candidatePath, &file); err != nil {
			log.Printf("anchor: skipping seed file %s: %v", candidatePath, err)
			continue
		}
		if file.VideoPath == "" || normalizePath(file.VideoPath) != wantPath {
			log.Printf("anchor: skipping seed file %s: video_path %q does not match %s", candidatePath, file.VideoPath, videoPath)
			continue
		}
		if bestPath == "" || info.ModTime().After(bestModTime) {
			bestPath = candidatePath
			bestModTime = info.ModTime()
		}
	}

	if bestPath == "" {
		return false, nil
	}

	var file model.AnchorFile
	if err := storage.LoadJSON(bestPath, &file); err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for frame, tags := range file.AnchorFrames {
		s.file.AnchorFrames[frame] = append(s.file.AnchorFrames[frame], tags...)
	}
	s.state = Loaded
	return true, nil
}

// pathFor derives the on-disk seed path for videoPath, used by SaveForVideo.
func pathFor(videoPath string) string {
	dir := filepath.Dir(videoPath)
	base := strings.TrimSuffix(filepath.Base(videoPath), filepath.Ext(videoPath))
	return filepath.Join(dir, fmt.Sprintf("PlayerTagsSeed_%s.json", base))
}

// SaveForVideo persists the current anchor set atomically, via the
// Persistence Layer. Moves Dirty -> Loaded.
func (s *Store) SaveForVideo(videoPath string) error {
	s.mu.Lock()
	file := model.AnchorFile{VideoPath: videoPath, AnchorFrames: s.file.AnchorFrames}
	s.mu.Unlock()

	if err := storage.SaveJSON(pathFor(videoPath), file); err != nil {
		return err
	}

	s.mu.Lock()
	s.state = Loaded
	s.mu.Unlock()
	return nil
}

// Discard drops any Dirty in-memory changes, reverting to the last
// Loaded (or Unloaded) state's data. Spec.md §4.4: "closing the video
// file without save discards Dirty changes with a warning" — the
// warning is the caller's responsibility (it owns the logger); this
// method performs the discard itself.
func (s *Store) Discard() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == Dirty {
		s.state = Loaded
	}
}
