package template

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

// drawMark paints the registration-square pattern the matcher's template
// models, with its window top-left at (ox, oy).
func drawMark(img *image.Gray, ox, oy, size int) {
	for y := 2; y <= size-3; y++ {
		for x := 2; x <= size-3; x++ {
			img.Pix[(oy+y)*img.Stride+(ox+x)] = 0
		}
	}
}

func drawCheckerboard(img *image.Gray, x0, y0, x1, y1 int) {
	for y := y0; y < y1; y++ {
		for x := x0; x < x1; x++ {
			if (x+y)%2 == 0 {
				img.Pix[y*img.Stride+x] = 0
			}
		}
	}
}

func TestFindAlignmentMarks(t *testing.T) {
	sheet := newWhiteSheet(200, 200)
	drawMark(sheet, 30, 30, 15)
	drawMark(sheet, 150, 100, 15)

	m := NewMatcher(DefaultConfig())
	marks := m.FindAlignmentMarks(sheet)
	if len(marks) != 2 {
		t.Fatalf("mark count: got %d, want 2", len(marks))
	}

	found := map[[2]int]float64{}
	for _, mk := range marks {
		found[[2]int{mk.X, mk.Y}] = mk.Score
	}
	for _, want := range [][2]int{{30, 30}, {150, 100}} {
		score, ok := found[want]
		if !ok {
			t.Errorf("mark at %v not found, got %v", want, marks)
			continue
		}
		if score < 0.99 {
			t.Errorf("mark at %v score: got %v, want ~1.0", want, score)
		}
	}
}

func TestFindAlignmentMarks_Blank(t *testing.T) {
	m := NewMatcher(DefaultConfig())
	if marks := m.FindAlignmentMarks(newWhiteSheet(100, 100)); len(marks) != 0 {
		t.Errorf("blank sheet: got %d marks, want 0", len(marks))
	}
}

func TestFindAlignmentMarks_TooSmall(t *testing.T) {
	m := NewMatcher(DefaultConfig())
	if marks := m.FindAlignmentMarks(newWhiteSheet(10, 10)); marks != nil {
		t.Errorf("undersized sheet: got %v, want nil", marks)
	}
}

func TestSuppressNonMaxima(t *testing.T) {
	candidates := []Mark{
		{X: 10, Y: 10, Score: 0.8},
		{X: 12, Y: 11, Score: 0.95}, // same cluster, higher score
		{X: 14, Y: 10, Score: 0.75},
		{X: 60, Y: 60, Score: 0.85},
		{X: 61, Y: 62, Score: 0.7},
	}

	kept := suppressNonMaxima(candidates, 15)
	if len(kept) != 2 {
		t.Fatalf("kept count: got %d, want 2", len(kept))
	}
	if kept[0].X != 12 || kept[0].Score != 0.95 {
		t.Errorf("best mark: got %+v, want the 0.95 candidate", kept[0])
	}

	// No two survivors are closer than the suppression distance.
	for i := range kept {
		for j := i + 1; j < len(kept); j++ {
			d := math.Hypot(float64(kept[i].X-kept[j].X), float64(kept[i].Y-kept[j].Y))
			if d < 15 {
				t.Errorf("marks %d and %d are %.1f apart, want >= 15", i, j, d)
			}
		}
	}
}

func TestSuppressNonMaxima_Empty(t *testing.T) {
	if kept := suppressNonMaxima(nil, 15); kept != nil {
		t.Errorf("got %v, want nil", kept)
	}
}

func TestEstimateOrientation(t *testing.T) {
	tests := []struct {
		name      string
		marks     [][2]int
		wantAngle float64
		tolerance float64
	}{
		{"level", [][2]int{{30, 40}, {150, 40}}, 0.0, 0.01},
		{"slight tilt", [][2]int{{30, 30}, {130, 40}}, 5.71, 0.1},
		{"near vertical folds", [][2]int{{50, 50}, {60, 150}}, -5.71, 0.1},
	}

	m := NewMatcher(DefaultConfig())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sheet := newWhiteSheet(200, 200)
			for _, p := range tt.marks {
				drawMark(sheet, p[0], p[1], 15)
			}
			got := m.EstimateOrientation(sheet)
			if math.Abs(got-tt.wantAngle) > tt.tolerance {
				t.Errorf("angle: got %v, want %v", got, tt.wantAngle)
			}
		})
	}
}

func TestEstimateOrientation_InsufficientMarks(t *testing.T) {
	sheet := newWhiteSheet(100, 100)
	drawMark(sheet, 40, 40, 15)

	m := NewMatcher(DefaultConfig())
	if got := m.EstimateOrientation(sheet); got != 0.0 {
		t.Errorf("single mark: got %v, want 0.0", got)
	}
}

func TestDetectAnswerRegions(t *testing.T) {
	sheet := newWhiteSheet(800, 1131)
	m := NewMatcher(DefaultConfig())

	regions := m.DetectAnswerRegions(sheet, 20, 5)
	if len(regions) != 20 {
		t.Fatalf("region count: got %d, want 20", len(regions))
	}

	first := regions[0]
	if first.QuestionNumber != 1 || first.Row != 0 || first.Column != 0 {
		t.Errorf("first region identity: got %+v", first)
	}
	if first.X != 80 || first.Y != 226 {
		t.Errorf("first region origin: got (%d,%d), want (80,226)", first.X, first.Y)
	}
	if first.Width != 128 {
		t.Errorf("region width: got %d, want 128", first.Width)
	}

	last := regions[19]
	if last.QuestionNumber != 20 || last.Row != 3 || last.Column != 4 {
		t.Errorf("last region identity: got %+v", last)
	}
}

func TestDetectAnswerRegions_PartialLastRow(t *testing.T) {
	sheet := newWhiteSheet(800, 1131)
	m := NewMatcher(DefaultConfig())

	regions := m.DetectAnswerRegions(sheet, 18, 5)
	if len(regions) != 18 {
		t.Fatalf("region count: got %d, want 18", len(regions))
	}
	if regions[17].Row != 3 || regions[17].Column != 2 {
		t.Errorf("last region position: got row %d col %d, want row 3 col 2",
			regions[17].Row, regions[17].Column)
	}
}

func TestDetectAnswerRegions_InvalidArguments(t *testing.T) {
	sheet := newWhiteSheet(100, 100)
	m := NewMatcher(DefaultConfig())
	if got := m.DetectAnswerRegions(sheet, 0, 5); got != nil {
		t.Errorf("zero questions: got %v, want nil", got)
	}
	if got := m.DetectAnswerRegions(sheet, 10, 0); got != nil {
		t.Errorf("zero per row: got %v, want nil", got)
	}
}

func TestProcessingMask(t *testing.T) {
	regions := []Region{
		{X: 10, Y: 10, Width: 20, Height: 10},
		{X: 50, Y: 30, Width: 10, Height: 10},
	}
	mask := ProcessingMask(100, 60, regions)

	white := 0
	for _, v := range mask.Pix {
		if v == 255 {
			white++
		}
	}
	if white != 20*10+10*10 {
		t.Errorf("mask area: got %d, want %d", white, 300)
	}
	if mask.Pix[15*mask.Stride+15] != 255 {
		t.Error("pixel inside region not set")
	}
	if mask.Pix[0] != 0 {
		t.Error("pixel outside regions set")
	}
}

func TestStudentInfoRegion(t *testing.T) {
	sheet := newWhiteSheet(200, 400)
	m := NewMatcher(DefaultConfig())

	band := m.StudentInfoRegion(sheet)
	if band.Bounds().Dx() != 200 || band.Bounds().Dy() != 60 {
		t.Errorf("band size: got %dx%d, want 200x60", band.Bounds().Dx(), band.Bounds().Dy())
	}
}
