package template

import (
	"fmt"
	"image"

	"github.com/sirupsen/logrus"

	omrimg "github.com/sheetscan/omr-engine/internal/imaging"
	"github.com/sheetscan/omr-engine/internal/logger"
)

// ValidationReport is the advisory verdict on whether a sheet matches the
// supported format. Every failing check appears in Issues, not just the
// first; Confidence is the product of the per-check penalties and IsValid
// reflects the 0.6 acceptance floor.
type ValidationReport struct {
	IsValid    bool     `json:"is_valid"`
	Issues     []string `json:"issues"`
	Confidence float64  `json:"confidence"`
}

// Validation check bounds. Each failing check multiplies the confidence by
// its penalty; the sheet is rejected below minValidConfidence.
const (
	minAspectRatio     = 0.5
	maxAspectRatio     = 1.2
	minContrastStddev  = 30.0
	minSharpnessVar    = 100.0
	minValidConfidence = 0.6

	aspectPenalty    = 0.8
	marksPenalty     = 0.7
	contrastPenalty  = 0.9
	sharpnessPenalty = 0.8
)

// ValidateFormat checks a grayscale sheet against the expected format.
//
// Four independent checks each multiply the confidence scalar by a fixed
// penalty when they fail: aspect ratio outside [0.5, 1.2], alignment-mark
// count below expected, low intensity standard deviation (contrast), and
// low Laplacian variance (blur). Validation never aborts processing; the
// caller records the report and continues.
func (m *Matcher) ValidateFormat(gray *image.Gray) ValidationReport {
	report := ValidationReport{
		IsValid:    true,
		Issues:     []string{},
		Confidence: 1.0,
	}

	bounds := gray.Bounds()
	aspect := float64(bounds.Dx()) / float64(bounds.Dy())
	if aspect < minAspectRatio || aspect > maxAspectRatio {
		report.Issues = append(report.Issues, fmt.Sprintf("unusual aspect ratio: %.2f", aspect))
		report.Confidence *= aspectPenalty
	}

	marks := m.FindAlignmentMarks(gray)
	if len(marks) < m.cfg.ExpectedMarks {
		report.Issues = append(report.Issues,
			fmt.Sprintf("found %d alignment marks, expected %d", len(marks), m.cfg.ExpectedMarks))
		report.Confidence *= marksPenalty
	}

	_, stddev := omrimg.IntensityStats(gray)
	if stddev < minContrastStddev {
		report.Issues = append(report.Issues, "low image contrast detected")
		report.Confidence *= contrastPenalty
	}

	if omrimg.LaplacianVariance(gray) < minSharpnessVar {
		report.Issues = append(report.Issues, "image appears blurry")
		report.Confidence *= sharpnessPenalty
	}

	if report.Confidence < minValidConfidence {
		report.IsValid = false
	}

	if len(report.Issues) > 0 {
		logger.WithFields(logrus.Fields{
			"issues":     report.Issues,
			"confidence": report.Confidence,
		}).Warn("sheet format validation issues")
	} else {
		logger.Debug("sheet format validation passed")
	}

	return report
}
