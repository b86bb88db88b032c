package preprocess

import (
	"image"
	"math"
	"sort"

	"github.com/disintegration/imaging"

	omrimg "github.com/sheetscan/omr-engine/internal/imaging"
	"github.com/sheetscan/omr-engine/internal/logger"
)

// Corner is a detected sheet corner in pixel coordinates.
type Corner struct {
	X float64
	Y float64
}

// DetectCorners locates the four circular alignment dots printed in the
// sheet corners and returns them ordered top-left, top-right,
// bottom-right, bottom-left.
//
// Candidates are external contours of the adaptively thresholded image
// whose area falls inside the configured band and whose circularity
// exceeds the configured minimum. Returns nil when fewer than four
// candidates survive; the caller treats that as "no geometry" and skips
// perspective correction.
func (p *Processor) DetectCorners(gray *image.Gray) []Corner {
	blurred := omrimg.ToGray(imaging.Blur(gray, 1.0))
	binary := omrimg.AdaptiveThreshold(blurred, 11, 2, true)

	// Thresholding hollows out solid dots larger than its window; filling
	// the holes keeps their area and circularity meaningful.
	filled := omrimg.FillHoles(binary)
	contours := omrimg.FindContours(filled, 10)

	var candidates []Corner
	for _, c := range contours {
		if c.Area <= p.cfg.MinMarkArea || c.Area >= p.cfg.MaxMarkArea {
			continue
		}
		if c.Circularity() <= p.cfg.MinMarkCircularity {
			continue
		}
		candidates = append(candidates, Corner{X: c.CentroidX, Y: c.CentroidY})
	}

	if len(candidates) < 4 {
		logger.WithField("candidates", len(candidates)).Debug("insufficient corner candidates")
		return nil
	}

	return orderCorners(candidates[:4])
}

// orderCorners orders four points clockwise starting top-left.
//
// The points are first sorted by polar angle around their centroid, then
// the named corners are re-derived: top-left minimizes x+y, bottom-right
// maximizes x+y, top-right maximizes x−y, bottom-left minimizes x−y.
func orderCorners(pts []Corner) []Corner {
	var cx, cy float64
	for _, p := range pts {
		cx += p.X
		cy += p.Y
	}
	cx /= float64(len(pts))
	cy /= float64(len(pts))

	sorted := make([]Corner, len(pts))
	copy(sorted, pts)
	sort.Slice(sorted, func(i, j int) bool {
		return math.Atan2(sorted[i].Y-cy, sorted[i].X-cx) < math.Atan2(sorted[j].Y-cy, sorted[j].X-cx)
	})

	ordered := make([]Corner, 4)
	minSum, maxSum := math.Inf(1), math.Inf(-1)
	minDiff, maxDiff := math.Inf(1), math.Inf(-1)
	for _, p := range sorted {
		sum := p.X + p.Y
		diff := p.X - p.Y
		if sum < minSum {
			minSum = sum
			ordered[0] = p // top-left
		}
		if sum > maxSum {
			maxSum = sum
			ordered[2] = p // bottom-right
		}
		if diff > maxDiff {
			maxDiff = diff
			ordered[1] = p // top-right
		}
		if diff < minDiff {
			minDiff = diff
			ordered[3] = p // bottom-left
		}
	}

	return ordered
}
