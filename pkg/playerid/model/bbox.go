package model

import "math"

// BBox is an axis-aligned bounding box in pixel coordinates, x2>x1 and y2>y1.
type BBox struct {
	X1, Y1, X2, Y2 float64
}

// Width returns the box width.
func (b BBox) Width() float64 { return b.X2 - b.X1 }

// Height returns the box height.
func (b BBox) Height() float64 { return b.Y2 - b.Y1 }

// Area returns the box area, or 0 for a degenerate box.
func (b BBox) Area() float64 {
	w, h := b.Width(), b.Height()
	if w <= 0 || h <= 0 {
		return 0
	}
	return w * h
}

// AspectRatio is height/width, as defined by spec.md C3 step 2.
func (b BBox) AspectRatio() float64 {
	w := b.Width()
	if w <= 0 {
		return 0
	}
	return b.Height() / w
}

// Center returns the box centroid.
func (b BBox) Center() (cx, cy float64) {
	return (b.X1 + b.X2) / 2, (b.Y1 + b.Y2) / 2
}

// Valid reports whether the box is well-formed (x2>x1, y2>y1).
func (b BBox) Valid() bool {
	return b.X2 > b.X1 && b.Y2 > b.Y1
}

// Intersection returns the intersection area of two boxes.
func (b BBox) Intersection(o BBox) float64 {
	x1 := math.Max(b.X1, o.X1)
	y1 := math.Max(b.Y1, o.Y1)
	x2 := math.Min(b.X2, o.X2)
	y2 := math.Min(b.Y2, o.Y2)
	if x2 <= x1 || y2 <= y1 {
		return 0
	}
	return (x2 - x1) * (y2 - y1)
}

// IoU computes intersection-over-union between two boxes. Mirrors the
// pairwise IoU computation in the tracker's distance matrix, but operating
// directly on BBox values instead of a gonum matrix of points.
func IoU(a, b BBox) float64 {
	inter := a.Intersection(b)
	if inter <= 0 {
		return 0
	}
	union := a.Area() + b.Area() - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}

// CenterDistance returns the Euclidean distance between box centers.
func CenterDistance(a, b BBox) float64 {
	ax, ay := a.Center()
	bx, by := b.Center()
	dx, dy := ax-bx, ay-by
	return math.Sqrt(dx*dx + dy*dy)
}

// Expand grows a box by pct on each side (e.g. 0.05 for 5%), clamped to the
// supplied frame bounds. Used by the Detection Merger (C3 step 3): the
// expanded box is what downstream consumers see, the original is kept for
// feature extraction.
func (b BBox) Expand(pct float64, frameW, frameH int) BBox {
	w, h := b.Width(), b.Height()
	dx, dy := w*pct, h*pct
	out := BBox{
		X1: b.X1 - dx,
		Y1: b.Y1 - dy,
		X2: b.X2 + dx,
		Y2: b.Y2 + dy,
	}
	if out.X1 < 0 {
		out.X1 = 0
	}
	if out.Y1 < 0 {
		out.Y1 = 0
	}
	if frameW > 0 && out.X2 > float64(frameW) {
		out.X2 = float64(frameW)
	}
	if frameH > 0 && out.Y2 > float64(frameH) {
		out.Y2 = float64(frameH)
	}
	return out
}

// MatchesAnchor implements the lenient anchor match test shared by C5 and
// C6: IoU > iouThreshold OR center distance < centerDistPx.
func MatchesAnchor(d, a BBox, iouThreshold, centerDistPx float64) bool {
	if IoU(d, a) > iouThreshold {
		return true
	}
	return CenterDistance(d, a) < centerDistPx
}
