package bubbles

import (
	"fmt"
	"image"
	"math"
	"sort"

	"github.com/anthonynsimon/bild/effect"
	"github.com/disintegration/imaging"
	"github.com/sirupsen/logrus"

	omrimg "github.com/sheetscan/omr-engine/internal/imaging"
	"github.com/sheetscan/omr-engine/internal/logger"
)

// Config holds the detector knobs. Start from DefaultConfig.
type Config struct {
	// MinBubbleArea and MaxBubbleArea bound the pixel area of a valid
	// bubble contour.
	MinBubbleArea float64
	MaxBubbleArea float64

	// FillThreshold is the minimum fill fraction to classify a bubble as
	// marked.
	FillThreshold float64

	// AspectRatioTolerance is the allowed deviation of a bubble's
	// bounding-box width/height ratio from 1.0.
	AspectRatioTolerance float64

	// MinCircularity is the minimum circularity for a contour to count as
	// a bubble.
	MinCircularity float64

	// RowTolerance is the maximum vertical distance, in pixels, between a
	// bubble and its row's reference position.
	RowTolerance int
}

// DefaultConfig returns the detection defaults for sheets normalized to
// ~800 px width.
func DefaultConfig() Config {
	return Config{
		MinBubbleArea:        100,
		MaxBubbleArea:        2000,
		FillThreshold:        0.6,
		AspectRatioTolerance: 0.3,
		MinCircularity:       0.3,
		RowTolerance:         20,
	}
}

// Candidate is one detected bubble-shaped contour. Candidates live only
// for the duration of a detection pass; Result keeps them for overlay
// rendering and diagnostics.
type Candidate struct {
	X            int     `json:"x"`
	Y            int     `json:"y"`
	Width        int     `json:"width"`
	Height       int     `json:"height"`
	Area         float64 `json:"area"`
	FillFraction float64 `json:"fill_fraction"`
	Filled       bool    `json:"filled"`
}

// Result is the outcome of one detection pass.
//
// Answers maps question number to the selected option letter; an empty
// string records an unanswered question, whose confidence is exactly 0.0.
type Result struct {
	Answers      map[int]string  `json:"answers"`
	Confidences  map[int]float64 `json:"confidences"`
	TotalBubbles int             `json:"total_bubbles"`
	RowsDetected int             `json:"rows_detected"`
	MultiMarked  int             `json:"multi_marked"`
	Unanswered   int             `json:"unanswered"`
	Notes        []string        `json:"notes"`
	Candidates   []Candidate     `json:"-"`
}

// Detector finds and classifies answer bubbles. It is stateless and safe
// for concurrent use.
type Detector struct {
	cfg Config
}

// NewDetector creates a Detector with the given configuration.
func NewDetector(cfg Config) *Detector {
	return &Detector{cfg: cfg}
}

// Detect locates bubbles on a normalized grayscale sheet and extracts one
// answer per question.
//
// questionsPerRow controls how each detected bubble row is partitioned
// into question groups; optionsPerQuestion is the expected group size and
// only feeds diagnostics. Detection anomalies (no bubbles, multiple
// marks, unanswered questions, uneven rows) never fail the pass; they are
// recorded in the result's notes and counters.
func (d *Detector) Detect(gray *image.Gray, questionsPerRow, optionsPerQuestion int) *Result {
	binary := d.binarize(gray)
	candidates := d.findCandidates(binary, gray)

	rows := d.groupRows(candidates)

	result := &Result{
		Answers:      make(map[int]string),
		Confidences:  make(map[int]float64),
		TotalBubbles: len(candidates),
		RowsDetected: len(rows),
		Notes:        []string{},
		Candidates:   candidates,
	}

	d.extractAnswers(rows, questionsPerRow, optionsPerQuestion, result)

	if len(candidates) == 0 {
		result.Notes = append(result.Notes, "no bubbles detected - check image quality")
	}
	if result.MultiMarked > 0 {
		result.Notes = append(result.Notes, fmt.Sprintf("%d questions had multiple marks", result.MultiMarked))
	}
	if result.Unanswered > 0 {
		result.Notes = append(result.Notes, fmt.Sprintf("%d questions were not answered", result.Unanswered))
	}

	logger.WithFields(logrus.Fields{
		"bubbles":   result.TotalBubbles,
		"rows":      result.RowsDetected,
		"questions": len(result.Answers),
	}).Debug("bubble detection complete")

	return result
}

// binarize produces an ink-as-foreground binary image: blur, adaptive
// threshold with inversion, a morphological close and open to fill
// pinholes and drop speckle, then hole filling.
func (d *Detector) binarize(gray *image.Gray) *image.Gray {
	blurred := omrimg.ToGray(imaging.Blur(gray, 1.0))
	binary := omrimg.AdaptiveThreshold(blurred, 11, 2, true)

	closed := rebinarize(effect.Erode(effect.Dilate(binary, 1), 1))
	opened := rebinarize(effect.Dilate(effect.Erode(closed, 1), 1))

	// Thresholding leaves filled bubbles as rings; closing the enclosed
	// background restores solid components so the area and circularity
	// filters see the whole mark.
	return omrimg.FillHoles(opened)
}

// rebinarize snaps a morphology result back to a strict 0/255 grayscale
// buffer.
func rebinarize(img image.Image) *image.Gray {
	gray := omrimg.ToGray(img)
	for i, v := range gray.Pix {
		if v >= 128 {
			gray.Pix[i] = 255
		} else {
			gray.Pix[i] = 0
		}
	}
	return gray
}

// findCandidates filters binary-image contours down to bubble-shaped ones
// and measures each one's fill fraction on the source image.
func (d *Detector) findCandidates(binary, gray *image.Gray) []Candidate {
	contours := omrimg.FindContours(binary, 10)

	var candidates []Candidate
	for _, c := range contours {
		if c.Area < d.cfg.MinBubbleArea || c.Area > d.cfg.MaxBubbleArea {
			continue
		}

		w := c.Bounds.Dx()
		h := c.Bounds.Dy()
		if h == 0 {
			continue
		}
		aspect := float64(w) / float64(h)
		if math.Abs(aspect-1.0) > d.cfg.AspectRatioTolerance {
			continue
		}
		if c.Circularity() < d.cfg.MinCircularity {
			continue
		}

		fill := fillFraction(gray, c.Bounds)
		candidates = append(candidates, Candidate{
			X:            c.Bounds.Min.X,
			Y:            c.Bounds.Min.Y,
			Width:        w,
			Height:       h,
			Area:         c.Area,
			FillFraction: fill,
			Filled:       fill >= d.cfg.FillThreshold,
		})
	}

	return candidates
}

// fillFraction measures how dark a bubble is: 1 − mean_intensity/255 over
// the ellipse inscribed in the candidate's bounding box. The ellipse mask
// covers the bubble interior whether the contour was a filled disk or
// just the printed outline ring.
func fillFraction(gray *image.Gray, box image.Rectangle) float64 {
	bounds := gray.Bounds()
	cx := float64(box.Min.X+box.Max.X-1) / 2
	cy := float64(box.Min.Y+box.Max.Y-1) / 2
	rx := float64(box.Dx()) / 2
	ry := float64(box.Dy()) / 2
	if rx <= 0 || ry <= 0 {
		return 0
	}

	var sum, n float64
	for y := box.Min.Y; y < box.Max.Y; y++ {
		for x := box.Min.X; x < box.Max.X; x++ {
			dx := (float64(x) - cx) / rx
			dy := (float64(y) - cy) / ry
			if dx*dx+dy*dy > 1 {
				continue
			}
			if x < 0 || y < 0 || x >= bounds.Dx() || y >= bounds.Dy() {
				continue
			}
			sum += float64(gray.Pix[(y+bounds.Min.Y-gray.Rect.Min.Y)*gray.Stride+(x+bounds.Min.X-gray.Rect.Min.X)])
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return 1.0 - (sum/n)/255.0
}

// groupRows bands candidates into horizontal rows: sorted by y, a new row
// starts whenever a candidate sits more than RowTolerance below the
// current row's reference position; each row is then ordered
// left-to-right.
func (d *Detector) groupRows(candidates []Candidate) [][]Candidate {
	if len(candidates) == 0 {
		return nil
	}

	sorted := make([]Candidate, len(candidates))
	copy(sorted, candidates)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Y < sorted[j].Y })

	var rows [][]Candidate
	current := []Candidate{sorted[0]}
	refY := sorted[0].Y

	for _, c := range sorted[1:] {
		if abs(c.Y-refY) <= d.cfg.RowTolerance {
			current = append(current, c)
		} else {
			rows = append(rows, sortByX(current))
			current = []Candidate{c}
			refY = c.Y
		}
	}
	rows = append(rows, sortByX(current))

	return rows
}

func sortByX(row []Candidate) []Candidate {
	sort.Slice(row, func(i, j int) bool { return row[i].X < row[j].X })
	return row
}

// extractAnswers partitions each row evenly into questionsPerRow groups
// and picks one answer per group. A row whose bubble count is not an
// exact multiple of questionsPerRow has its trailing remainder bubbles
// dropped and the row flagged in the notes.
func (d *Detector) extractAnswers(rows [][]Candidate, questionsPerRow, optionsPerQuestion int, result *Result) {
	if questionsPerRow <= 0 {
		return
	}

	for rowIdx, row := range rows {
		perQuestion := len(row) / questionsPerRow
		if len(row)%questionsPerRow != 0 {
			result.Notes = append(result.Notes,
				fmt.Sprintf("row %d has %d bubbles, not divisible by %d questions; trailing bubbles ignored",
					rowIdx+1, len(row), questionsPerRow))
		}
		if perQuestion > 0 && perQuestion != optionsPerQuestion {
			result.Notes = append(result.Notes,
				fmt.Sprintf("row %d has %d options per question, expected %d", rowIdx+1, perQuestion, optionsPerQuestion))
		}

		for q := 0; q < questionsPerRow; q++ {
			questionNum := rowIdx*questionsPerRow + q + 1
			group := row[q*perQuestion : q*perQuestion+perQuestion]

			best := -1
			filledCount := 0
			for i, b := range group {
				if !b.Filled {
					continue
				}
				filledCount++
				if best < 0 || b.FillFraction > group[best].FillFraction {
					best = i
				}
			}

			switch {
			case filledCount == 0:
				result.Answers[questionNum] = ""
				result.Confidences[questionNum] = 0.0
				result.Unanswered++
			case filledCount == 1:
				result.Answers[questionNum] = optionLetter(best)
				result.Confidences[questionNum] = group[best].FillFraction
			default:
				// Ambiguous response: keep the darkest mark at reduced
				// confidence.
				result.Answers[questionNum] = optionLetter(best)
				result.Confidences[questionNum] = group[best].FillFraction * 0.8
				result.MultiMarked++
			}
		}
	}
}

func optionLetter(index int) string {
	return string(rune('A' + index))
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
