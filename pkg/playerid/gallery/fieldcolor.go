package gallery

import (
	"gocv.io/x/gocv"
)

// isMostlyFieldColor implements the dominant-field-color rejection test
// used by RemoveUnavailableImages: a reference crop in which more than
// threshold of the saturated, non-dark pixels fall in one hue bin is
// treated as a patch of pitch or background rather than a player, and is
// dropped. The dominant bin is not compared against any particular hue,
// so a crop dominated by any single colour, not only green or brown, is
// rejected. The approach
// (convert to HSV, bucket hue into coarse bins, vote for the dominant
// bin) is grounded on the HSV-sampling-and-ranging technique the ball
// color detector tool uses to identify a single dominant color from a
// sampled region, adapted here from interactive sampling to an automatic
// per-crop test.
func isMostlyFieldColor(crop gocv.Mat, threshold float64) bool {
	if crop.Empty() {
		return true
	}

	hsv := gocv.NewMat()
	defer hsv.Close()
	gocv.CvtColor(crop, &hsv, gocv.ColorBGRToHSV)

	const numBins = 18 // 10-unit (20-degree) hue buckets across OpenCV's 0-179 H range
	var bins [numBins]int
	total := 0

	rows, cols := hsv.Rows(), hsv.Cols()
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			v := hsv.GetVecbAt(y, x)
			h, s, val := int(v[0]), int(v[1]), int(v[2])
			// Skip near-black/near-white/low-saturation pixels; they carry
			// no reliable hue information and would otherwise dilute the
			// field-color vote either way.
			if s < 40 || val < 30 {
				continue
			}
			bin := h / (180 / numBins)
			if bin >= numBins {
				bin = numBins - 1
			}
			bins[bin]++
			total++
		}
	}
	if total == 0 {
		return false
	}

	maxBin := 0
	for _, c := range bins {
		if c > maxBin {
			maxBin = c
		}
	}
	return float64(maxBin)/float64(total) > threshold
}
