package bubbles

import (
	"image"
	"math"
	"testing"
)

func newWhiteSheet(width, height int) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, width, height))
	for i := range img.Pix {
		img.Pix[i] = 255
	}
	return img
}

// drawBubbleOutline draws an empty bubble: a dark ring with outer radius r
// and inner radius r-2.
func drawBubbleOutline(img *image.Gray, cx, cy, r int) {
	inner := (r - 2) * (r - 2)
	outer := r * r
	for y := cy - r; y <= cy+r; y++ {
		for x := cx - r; x <= cx+r; x++ {
			dx, dy := x-cx, y-cy
			d := dx*dx + dy*dy
			if d <= outer && d > inner {
				img.Pix[y*img.Stride+x] = 0
			}
		}
	}
}

// drawFilledBubble draws a completely marked bubble as a solid dark disk.
func drawFilledBubble(img *image.Gray, cx, cy, r int) {
	rr := r * r
	for y := cy - r; y <= cy+r; y++ {
		for x := cx - r; x <= cx+r; x++ {
			dx, dy := x-cx, y-cy
			if dx*dx+dy*dy <= rr {
				img.Pix[y*img.Stride+x] = 0
			}
		}
	}
}

func TestDetect_SingleRow(t *testing.T) {
	// One row, 2 questions x 4 options. Question 1 has option B filled,
	// question 2 is blank.
	sheet := newWhiteSheet(360, 100)
	xs := []int{40, 75, 110, 145, 200, 235, 270, 305}
	for i, x := range xs {
		if i == 1 {
			drawFilledBubble(sheet, x, 50, 10)
		} else {
			drawBubbleOutline(sheet, x, 50, 10)
		}
	}

	d := NewDetector(DefaultConfig())
	result := d.Detect(sheet, 2, 4)

	if result.TotalBubbles != 8 {
		t.Fatalf("bubble count: got %d, want 8", result.TotalBubbles)
	}
	if result.RowsDetected != 1 {
		t.Errorf("row count: got %d, want 1", result.RowsDetected)
	}

	if got := result.Answers[1]; got != "B" {
		t.Errorf("question 1 answer: got %q, want B", got)
	}
	if conf := result.Confidences[1]; conf < 0.6 || conf > 1.0 {
		t.Errorf("question 1 confidence: got %v, want in (0.6, 1.0]", conf)
	}

	if got := result.Answers[2]; got != "" {
		t.Errorf("question 2 answer: got %q, want unanswered", got)
	}
	if conf := result.Confidences[2]; conf != 0.0 {
		t.Errorf("unanswered confidence: got %v, want exactly 0.0", conf)
	}
	if result.Unanswered != 1 {
		t.Errorf("unanswered count: got %d, want 1", result.Unanswered)
	}
}

func TestDetect_TwoRows(t *testing.T) {
	sheet := newWhiteSheet(200, 160)
	for i, x := range []int{40, 75, 110, 145} {
		if i == 0 {
			drawFilledBubble(sheet, x, 40, 10)
		} else {
			drawBubbleOutline(sheet, x, 40, 10)
		}
	}
	for i, x := range []int{40, 75, 110, 145} {
		if i == 3 {
			drawFilledBubble(sheet, x, 110, 10)
		} else {
			drawBubbleOutline(sheet, x, 110, 10)
		}
	}

	d := NewDetector(DefaultConfig())
	result := d.Detect(sheet, 1, 4)

	if result.RowsDetected != 2 {
		t.Fatalf("row count: got %d, want 2", result.RowsDetected)
	}
	if got := result.Answers[1]; got != "A" {
		t.Errorf("question 1: got %q, want A", got)
	}
	if got := result.Answers[2]; got != "D" {
		t.Errorf("question 2: got %q, want D", got)
	}
}

func TestDetect_BlankSheet(t *testing.T) {
	d := NewDetector(DefaultConfig())
	result := d.Detect(newWhiteSheet(200, 100), 2, 4)

	if result.TotalBubbles != 0 {
		t.Errorf("bubble count: got %d, want 0", result.TotalBubbles)
	}
	if len(result.Notes) == 0 {
		t.Error("expected an image-quality note for zero bubbles")
	}
	if len(result.Answers) != 0 {
		t.Errorf("answers: got %v, want none", result.Answers)
	}
}

func TestGroupRows(t *testing.T) {
	d := NewDetector(DefaultConfig())
	candidates := []Candidate{
		{X: 50, Y: 12},
		{X: 10, Y: 10},
		{X: 30, Y: 15},
		{X: 10, Y: 60},
		{X: 40, Y: 65},
	}

	rows := d.groupRows(candidates)
	if len(rows) != 2 {
		t.Fatalf("row count: got %d, want 2", len(rows))
	}
	if len(rows[0]) != 3 || len(rows[1]) != 2 {
		t.Fatalf("row sizes: got %d and %d, want 3 and 2", len(rows[0]), len(rows[1]))
	}
	// Rows are ordered left to right.
	if rows[0][0].X != 10 || rows[0][1].X != 30 || rows[0][2].X != 50 {
		t.Errorf("row 0 order: got %v", rows[0])
	}
}

func TestGroupRows_Empty(t *testing.T) {
	d := NewDetector(DefaultConfig())
	if rows := d.groupRows(nil); rows != nil {
		t.Errorf("got %v, want nil", rows)
	}
}

func TestExtractAnswers_MultipleMarks(t *testing.T) {
	d := NewDetector(DefaultConfig())
	result := &Result{
		Answers:     make(map[int]string),
		Confidences: make(map[int]float64),
		Notes:       []string{},
	}
	rows := [][]Candidate{{
		{X: 10, FillFraction: 0.1},
		{X: 40, FillFraction: 0.9, Filled: true},
		{X: 70, FillFraction: 0.7, Filled: true},
		{X: 100, FillFraction: 0.05},
	}}

	d.extractAnswers(rows, 1, 4, result)

	if got := result.Answers[1]; got != "B" {
		t.Errorf("answer: got %q, want B (the darkest mark)", got)
	}
	if conf := result.Confidences[1]; math.Abs(conf-0.72) > 1e-9 {
		t.Errorf("confidence: got %v, want 0.9*0.8 = 0.72", conf)
	}
	if result.MultiMarked != 1 {
		t.Errorf("multi-marked count: got %d, want 1", result.MultiMarked)
	}
}

func TestExtractAnswers_UnevenRow(t *testing.T) {
	d := NewDetector(DefaultConfig())
	result := &Result{
		Answers:     make(map[int]string),
		Confidences: make(map[int]float64),
		Notes:       []string{},
	}
	// 7 bubbles for 2 questions: the trailing bubble is dropped and the
	// row flagged.
	row := make([]Candidate, 7)
	for i := range row {
		row[i].X = i * 30
	}
	row[3].Filled = true
	row[3].FillFraction = 0.8

	d.extractAnswers([][]Candidate{row}, 2, 4, result)

	if len(result.Notes) == 0 {
		t.Error("expected a note for an uneven row")
	}
	if got := result.Answers[2]; got != "A" {
		t.Errorf("question 2: got %q, want A (bubble index 3 leads its group)", got)
	}
}

func TestOptionLetter(t *testing.T) {
	for i, want := range []string{"A", "B", "C", "D", "E"} {
		if got := optionLetter(i); got != want {
			t.Errorf("optionLetter(%d): got %q, want %q", i, got, want)
		}
	}
}

func TestRenderOverlay(t *testing.T) {
	sheet := newWhiteSheet(100, 80)
	candidates := []Candidate{
		{X: 20, Y: 20, Width: 20, Height: 20, FillFraction: 0.9, Filled: true},
		{X: 60, Y: 30, Width: 20, Height: 20, FillFraction: 0.1},
	}

	overlay := RenderOverlay(sheet, candidates)
	if overlay.Bounds().Dx() != 100 || overlay.Bounds().Dy() != 80 {
		t.Fatalf("overlay size: got %dx%d, want 100x80", overlay.Bounds().Dx(), overlay.Bounds().Dy())
	}

	// Outline pixels carry the fill-ramp color, not the gray sheet value.
	r, g, b, _ := overlay.At(20, 20).RGBA()
	if r == g && g == b {
		t.Error("outline pixel of a filled candidate is not colored")
	}
}
