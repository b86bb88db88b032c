package template

import (
	"image"
	"math"
	"sort"

	"github.com/disintegration/imaging"
	"github.com/sirupsen/logrus"

	"github.com/sheetscan/omr-engine/internal/logger"
)

// Config holds the matcher knobs. Start from DefaultConfig.
type Config struct {
	// MatchThreshold is the minimum normalized cross-correlation score for
	// a position to count as an alignment-mark hit.
	MatchThreshold float64

	// MarkSize is the side length, in pixels, of the synthetic
	// alignment-mark template. It doubles as the non-maximum suppression
	// distance.
	MarkSize int

	// ExpectedMarks is the number of alignment marks a well-formed sheet
	// carries, one per corner.
	ExpectedMarks int
}

// DefaultConfig returns the matcher defaults for A4 sheets at ~800 px width.
func DefaultConfig() Config {
	return Config{
		MatchThreshold: 0.7,
		MarkSize:       15,
		ExpectedMarks:  4,
	}
}

// Mark is a located alignment mark: the top-left corner of the matched
// template window plus its correlation score.
type Mark struct {
	X     int     `json:"x"`
	Y     int     `json:"y"`
	Score float64 `json:"score"`
}

// Region is one question's nominal bubble area on the sheet.
type Region struct {
	QuestionNumber int `json:"question_number"`
	X              int `json:"x"`
	Y              int `json:"y"`
	Width          int `json:"width"`
	Height         int `json:"height"`
	Row            int `json:"row"`
	Column         int `json:"column"`
}

// Matcher locates sheet structure by correlation against a synthetic
// alignment-mark template. The template is built once at construction;
// Matcher is safe for concurrent use afterwards.
type Matcher struct {
	cfg      Config
	template []float64 // zero-mean mark template, row-major
	tplNorm  float64   // sqrt of sum of squared deviations
}

// NewMatcher creates a Matcher with the given configuration.
func NewMatcher(cfg Config) *Matcher {
	m := &Matcher{cfg: cfg}
	m.buildTemplate()
	return m
}

// buildTemplate renders the mark template: a dark filled square inset
// 2 px inside a paper-white border, matching the printed registration
// squares.
func (m *Matcher) buildTemplate() {
	size := m.cfg.MarkSize
	raw := make([]float64, size*size)
	var mean float64
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			v := 255.0
			if x >= 2 && x <= size-3 && y >= 2 && y <= size-3 {
				v = 0.0
			}
			raw[y*size+x] = v
			mean += v
		}
	}
	mean /= float64(size * size)

	var norm float64
	for i, v := range raw {
		raw[i] = v - mean
		norm += raw[i] * raw[i]
	}

	m.template = raw
	m.tplNorm = math.Sqrt(norm)
}

// FindAlignmentMarks locates alignment marks in a grayscale sheet.
//
// Every template-sized window is scored by normalized cross-correlation;
// windows at or above MatchThreshold become candidates, which are then
// deduplicated by non-maximum suppression: candidates are visited in
// descending score order and accepted only if their Euclidean distance to
// every already-accepted mark is at least MarkSize. The survivors are
// returned in descending score order.
func (m *Matcher) FindAlignmentMarks(gray *image.Gray) []Mark {
	bounds := gray.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()
	size := m.cfg.MarkSize
	if width < size || height < size || m.tplNorm == 0 {
		return nil
	}

	at := func(x, y int) float64 {
		return float64(gray.Pix[(y+bounds.Min.Y-gray.Rect.Min.Y)*gray.Stride+(x+bounds.Min.X-gray.Rect.Min.X)])
	}

	var candidates []Mark
	window := make([]float64, size*size)
	for y := 0; y+size <= height; y++ {
		for x := 0; x+size <= width; x++ {
			var mean float64
			for wy := 0; wy < size; wy++ {
				for wx := 0; wx < size; wx++ {
					v := at(x+wx, y+wy)
					window[wy*size+wx] = v
					mean += v
				}
			}
			mean /= float64(size * size)

			var dot, norm float64
			for i, v := range window {
				d := v - mean
				dot += d * m.template[i]
				norm += d * d
			}
			if norm == 0 {
				continue
			}

			score := dot / (math.Sqrt(norm) * m.tplNorm)
			if score >= m.cfg.MatchThreshold {
				candidates = append(candidates, Mark{X: x, Y: y, Score: score})
			}
		}
	}

	marks := suppressNonMaxima(candidates, float64(size))
	logger.WithField("marks", len(marks)).Debug("alignment marks located")
	return marks
}

// suppressNonMaxima collapses clustered duplicate detections, keeping the
// highest-scoring instance per neighborhood. No two returned marks are
// closer than minDistance.
func suppressNonMaxima(candidates []Mark, minDistance float64) []Mark {
	if len(candidates) == 0 {
		return nil
	}

	sorted := make([]Mark, len(candidates))
	copy(sorted, candidates)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Score > sorted[j].Score
	})

	var kept []Mark
	for _, c := range sorted {
		tooClose := false
		for _, k := range kept {
			if math.Hypot(float64(c.X-k.X), float64(c.Y-k.Y)) < minDistance {
				tooClose = true
				break
			}
		}
		if !tooClose {
			kept = append(kept, c)
		}
	}
	return kept
}

// EstimateOrientation estimates the sheet's rotation in degrees from the
// two topmost alignment marks, folded into [−45°, 45°) by repeated ±90°
// adjustment. Fewer than two marks defaults to 0.0 with a logged
// low-confidence condition.
func (m *Matcher) EstimateOrientation(gray *image.Gray) float64 {
	marks := m.FindAlignmentMarks(gray)
	if len(marks) < 2 {
		logger.Warn("insufficient alignment marks for orientation estimate")
		return 0.0
	}

	sorted := make([]Mark, len(marks))
	copy(sorted, marks)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Y != sorted[j].Y {
			return sorted[i].Y < sorted[j].Y
		}
		return sorted[i].X < sorted[j].X
	})

	p1, p2 := sorted[0], sorted[1]
	angle := math.Atan2(float64(p2.Y-p1.Y), float64(p2.X-p1.X)) * 180 / math.Pi
	for angle >= 45 {
		angle -= 90
	}
	for angle < -45 {
		angle += 90
	}

	logger.WithFields(logrus.Fields{"angle": angle}).Debug("sheet orientation estimated")
	return angle
}

// DetectAnswerRegions derives the nominal per-question bubble regions from
// fixed fractional offsets: the answer block occupies the middle 60% of
// the sheet height and middle 80% of its width, subdivided evenly into
// ceil(numQuestions/questionsPerRow) rows by questionsPerRow columns.
func (m *Matcher) DetectAnswerRegions(gray *image.Gray, numQuestions, questionsPerRow int) []Region {
	bounds := gray.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	if numQuestions <= 0 || questionsPerRow <= 0 {
		return nil
	}
	numRows := (numQuestions + questionsPerRow - 1) / questionsPerRow

	startY := int(float64(height) * 0.2)
	endY := int(float64(height) * 0.8)
	startX := int(float64(width) * 0.1)
	endX := int(float64(width) * 0.9)

	rowHeight := (endY - startY) / numRows
	colWidth := (endX - startX) / questionsPerRow

	regions := make([]Region, 0, numQuestions)
	for row := 0; row < numRows; row++ {
		for col := 0; col < questionsPerRow; col++ {
			questionNum := row*questionsPerRow + col + 1
			if questionNum > numQuestions {
				break
			}
			regions = append(regions, Region{
				QuestionNumber: questionNum,
				X:              startX + col*colWidth,
				Y:              startY + row*rowHeight,
				Width:          colWidth,
				Height:         rowHeight,
				Row:            row,
				Column:         col,
			})
		}
	}
	return regions
}

// StudentInfoRegion crops the student-information band from the top 15%
// of the sheet. Callers OCR or archive it; the engine itself only crops.
func (m *Matcher) StudentInfoRegion(img image.Image) image.Image {
	bounds := img.Bounds()
	h := int(float64(bounds.Dy()) * 0.15)
	return imaging.Crop(img, image.Rect(bounds.Min.X, bounds.Min.Y, bounds.Max.X, bounds.Min.Y+h))
}

// ProcessingMask renders a binary mask with the given regions set to
// white, for debugging which sheet areas detection will consider.
func ProcessingMask(width, height int, regions []Region) *image.Gray {
	mask := image.NewGray(image.Rect(0, 0, width, height))
	for _, r := range regions {
		for y := r.Y; y < r.Y+r.Height && y < height; y++ {
			for x := r.X; x < r.X+r.Width && x < width; x++ {
				if x >= 0 && y >= 0 {
					mask.Pix[y*mask.Stride+x] = 255
				}
			}
		}
	}
	return mask
}
