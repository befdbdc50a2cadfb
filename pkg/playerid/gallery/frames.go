package gallery

import (
	"fmt"
	"image"
	"sync"

	"gocv.io/x/gocv"

	"github.com/nmichlo/playerid-go/pkg/playerid/model"
)

// FrameProvider decodes a single frame of a source video. Real video
// decoding is an external collaborator (out of scope per spec.md §1);
// the gallery only needs this narrow contract to validate and
// deduplicate reference images.
type FrameProvider interface {
	ReadFrame(videoPath string, frameNum int) (gocv.Mat, error)
}

// VideoFileFrameProvider reads frames with gocv.VideoCapture, caching the
// most recently opened capture per video path to avoid re-opening a file
// for every reference frame checked against it.
type VideoFileFrameProvider struct {
	mu   sync.Mutex
	caps map[string]*gocv.VideoCapture
}

// NewVideoFileFrameProvider constructs an empty provider.
func NewVideoFileFrameProvider() *VideoFileFrameProvider {
	return &VideoFileFrameProvider{caps: make(map[string]*gocv.VideoCapture)}
}

// Close releases every cached VideoCapture handle.
func (p *VideoFileFrameProvider) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, vc := range p.caps {
		vc.Close()
	}
	p.caps = make(map[string]*gocv.VideoCapture)
}

// ReadFrame seeks to frameNum in videoPath and decodes it.
func (p *VideoFileFrameProvider) ReadFrame(videoPath string, frameNum int) (gocv.Mat, error) {
	p.mu.Lock()
	vc, ok := p.caps[videoPath]
	if !ok {
		var err error
		vc, err = gocv.OpenVideoCapture(videoPath)
		if err != nil {
			p.mu.Unlock()
			return gocv.NewMat(), fmt.Errorf("playerid: open video %s: %w", videoPath, err)
		}
		p.caps[videoPath] = vc
	}
	p.mu.Unlock()

	p.mu.Lock()
	vc.Set(gocv.VideoCapturePosFrames, float64(frameNum))
	frame := gocv.NewMat()
	ok = vc.Read(&frame)
	p.mu.Unlock()
	if !ok || frame.Empty() {
		frame.Close()
		return gocv.NewMat(), fmt.Errorf("playerid: read frame %d of %s: %w", frameNum, videoPath, model.ErrNotFound)
	}
	return frame, nil
}

const (
	minCropDim          = 30
	fieldColorThreshold = 0.70
)

// ImageAvailabilityStats summarizes a RemoveUnavailableImages pass.
type ImageAvailabilityStats struct {
	RemovedCount   int
	PlayersTouched int
}

// RemoveUnavailableImages walks every profile's reference frames and
// drops any whose source video/frame/bbox can no longer yield a usable
// crop: the file or frame is unreadable, the bbox falls outside the
// decoded frame, the region is too small, or the region is almost
// entirely the dominant field color (grounded on the HSV dominant-color
// heuristic in fieldcolor.go).
func (s *Store) RemoveUnavailableImages(provider FrameProvider, progress func(done, total int)) (ImageAvailabilityStats, error) {
	profiles := s.Snapshot()

	total := 0
	for _, p := range profiles {
		total += len(p.ReferenceFrames)
	}

	var stats ImageAvailabilityStats
	done := 0

	for _, p := range profiles {
		kept := make([]model.ReferenceFrame, 0, len(p.ReferenceFrames))
		touched := false
		for _, rf := range p.ReferenceFrames {
			done++
			if progress != nil {
				progress(done, total)
			}
			if frameStillAvailable(provider, rf) {
				kept = append(kept, rf)
				continue
			}
			touched = true
			stats.RemovedCount++
		}
		if touched {
			stats.PlayersTouched++
			s.mu.Lock()
			if live, ok := s.profiles[p.ID]; ok {
				live.ReferenceFrames = kept
			}
			s.mu.Unlock()
		}
	}

	if stats.PlayersTouched > 0 {
		if err := s.Save(); err != nil {
			return stats, err
		}
	}
	return stats, nil
}

func frameStillAvailable(provider FrameProvider, rf model.ReferenceFrame) bool {
	frame, err := provider.ReadFrame(rf.VideoPath, rf.FrameNum)
	if err != nil {
		return false
	}
	defer frame.Close()

	x1, y1 := int(rf.BBox.X1), int(rf.BBox.Y1)
	x2, y2 := int(rf.BBox.X2), int(rf.BBox.Y2)
	if x1 < 0 || y1 < 0 || x2 > frame.Cols() || y2 > frame.Rows() || x2 <= x1 || y2 <= y1 {
		return false
	}
	if x2-x1 < minCropDim || y2-y1 < minCropDim {
		return false
	}

	rect := image.Rect(x1, y1, x2, y2)
	crop := frame.Region(rect)
	defer crop.Close()

	if isMostlyFieldColor(crop, fieldColorThreshold) {
		return false
	}
	return true
}

// DuplicateStats summarizes a RemoveDuplicateGalleryImages pass.
type DuplicateStats struct {
	RemovedCount   int
	PlayersTouched int
}

const duplicateSimilarityThreshold = 0.99

// RemoveDuplicateGalleryImages removes near-duplicate reference frames
// within each profile, keeping the first (typically primary) occurrence.
// Similarity reuses the existing cosine-similarity machinery: each crop
// is downsized to a small grayscale grid and flattened into a
// FeatureVector, rather than maintaining a separate perceptual-hash
// implementation.
func (s *Store) RemoveDuplicateGalleryImages(provider FrameProvider) (DuplicateStats, error) {
	profiles := s.Snapshot()

	var stats DuplicateStats
	for _, p := range profiles {
		sketches := make([]model.FeatureVector, len(p.ReferenceFrames))
		for i, rf := range p.ReferenceFrames {
			sketches[i] = imageSketch(provider, rf)
		}

		keep := make([]bool, len(p.ReferenceFrames))
		for i := range keep {
			keep[i] = true
		}
		for i := 0; i < len(sketches); i++ {
			if !keep[i] || sketches[i].Empty() {
				continue
			}
			for j := i + 1; j < len(sketches); j++ {
				if !keep[j] || sketches[j].Empty() {
					continue
				}
				if model.Cosine(sketches[i], sketches[j]) >= duplicateSimilarityThreshold {
					keep[j] = false
				}
			}
		}

		touched := false
		kept := make([]model.ReferenceFrame, 0, len(p.ReferenceFrames))
		for i, rf := range p.ReferenceFrames {
			if keep[i] {
				kept = append(kept, rf)
			} else {
				touched = true
				stats.RemovedCount++
			}
		}
		if touched {
			stats.PlayersTouched++
			s.mu.Lock()
			if live, ok := s.profiles[p.ID]; ok {
				live.ReferenceFrames = kept
			}
			s.mu.Unlock()
		}
	}

	if stats.PlayersTouched > 0 {
		if err := s.Save(); err != nil {
			return stats, err
		}
	}
	return stats, nil
}

const sketchGrid = 8

// imageSketch downsizes the reference crop to an 8x8 grayscale grid and
// flattens it to a FeatureVector so the existing cosine machinery can be
// reused as a cheap perceptual-similarity test. Returns an empty vector
// if the frame can no longer be read.
func imageSketch(provider FrameProvider, rf model.ReferenceFrame) model.FeatureVector {
	frame, err := provider.ReadFrame(rf.VideoPath, rf.FrameNum)
	if err != nil {
		return model.FeatureVector{}
	}
	defer frame.Close()

	x1, y1 := int(rf.BBox.X1), int(rf.BBox.Y1)
	x2, y2 := int(rf.BBox.X2), int(rf.BBox.Y2)
	if x1 < 0 || y1 < 0 || x2 > frame.Cols() || y2 > frame.Rows() || x2 <= x1 || y2 <= y1 {
		return model.FeatureVector{}
	}

	crop := frame.Region(image.Rect(x1, y1, x2, y2))
	defer crop.Close()

	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(crop, &gray, gocv.ColorBGRToGray)

	small := gocv.NewMat()
	defer small.Close()
	gocv.Resize(gray, &small, image.Pt(sketchGrid, sketchGrid), 0, 0, gocv.InterpolationLinear)

	values := make([]float32, 0, sketchGrid*sketchGrid)
	for y := 0; y < sketchGrid; y++ {
		for x := 0; x < sketchGrid; x++ {
			values = append(values, float32(small.GetUCharAt(y, x)))
		}
	}
	return model.NewFeatureVector(values)
}
