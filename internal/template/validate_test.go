package template

import (
	"math"
	"testing"
)

func TestValidateFormat_GoodSheet(t *testing.T) {
	sheet := newWhiteSheet(400, 566)
	drawMark(sheet, 20, 20, 15)
	drawMark(sheet, 365, 20, 15)
	drawMark(sheet, 365, 531, 15)
	drawMark(sheet, 20, 531, 15)
	// Printed content gives the sheet contrast and high-frequency detail.
	drawCheckerboard(sheet, 50, 300, 350, 400)

	m := NewMatcher(DefaultConfig())
	report := m.ValidateFormat(sheet)

	if !report.IsValid {
		t.Errorf("expected valid sheet, issues: %v", report.Issues)
	}
	if report.Confidence != 1.0 {
		t.Errorf("confidence: got %v, want 1.0", report.Confidence)
	}
	if len(report.Issues) != 0 {
		t.Errorf("issues: got %v, want none", report.Issues)
	}
}

func TestValidateFormat_AllChecksFail(t *testing.T) {
	// Uniform, wide, featureless image fails every check.
	sheet := newWhiteSheet(800, 300)
	for i := range sheet.Pix {
		sheet.Pix[i] = 200
	}

	m := NewMatcher(DefaultConfig())
	report := m.ValidateFormat(sheet)

	if report.IsValid {
		t.Error("expected invalid sheet")
	}
	if len(report.Issues) != 4 {
		t.Errorf("issue count: got %d (%v), want 4", len(report.Issues), report.Issues)
	}
	want := 0.8 * 0.7 * 0.9 * 0.8
	if math.Abs(report.Confidence-want) > 1e-9 {
		t.Errorf("confidence: got %v, want %v", report.Confidence, want)
	}
}

func TestValidateFormat_MissingMarksOnly(t *testing.T) {
	sheet := newWhiteSheet(400, 566)
	drawMark(sheet, 20, 20, 15)
	drawMark(sheet, 365, 20, 15)
	drawCheckerboard(sheet, 50, 300, 350, 400)

	m := NewMatcher(DefaultConfig())
	report := m.ValidateFormat(sheet)

	if !report.IsValid {
		t.Errorf("expected valid sheet at confidence 0.7, issues: %v", report.Issues)
	}
	if len(report.Issues) != 1 {
		t.Fatalf("issue count: got %d (%v), want 1", len(report.Issues), report.Issues)
	}
	if math.Abs(report.Confidence-0.7) > 1e-9 {
		t.Errorf("confidence: got %v, want 0.7", report.Confidence)
	}
}
