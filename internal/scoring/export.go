package scoring

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	omrerrors "github.com/sheetscan/omr-engine/internal/errors"
)

// ExportJSON renders the result as indented JSON.
func ExportJSON(result *OverallResult) ([]byte, error) {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return nil, omrerrors.NewInternalError("encoding result to JSON", err)
	}
	return data, nil
}

// WriteJSON writes the result as indented JSON to the given path.
func WriteJSON(result *OverallResult, path string) error {
	data, err := ExportJSON(result)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return omrerrors.NewInternalError("writing JSON result file", err)
	}
	return nil
}

// csvHeader is the fixed column layout of the per-question CSV export.
var csvHeader = []string{
	"Question", "Subject", "Correct Answer", "Student Answer",
	"Is Correct", "Points Earned", "Confidence", "Notes",
}

// ExportCSV writes one row per scored question. The header row is always
// present, so an empty result still produces valid CSV.
func ExportCSV(result *OverallResult, w io.Writer) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(csvHeader); err != nil {
		return omrerrors.NewInternalError("writing CSV header", err)
	}

	for _, subject := range result.SubjectResults {
		for _, q := range subject.QuestionResults {
			row := []string{
				strconv.Itoa(q.QuestionNumber),
				q.Subject,
				q.CorrectAnswer,
				q.StudentAnswer,
				strconv.FormatBool(q.IsCorrect),
				strconv.FormatFloat(q.PointsEarned, 'f', -1, 64),
				fmt.Sprintf("%.3f", q.Confidence),
				strings.Join(q.Notes, "; "),
			}
			if err := cw.Write(row); err != nil {
				return omrerrors.NewInternalError("writing CSV row", err)
			}
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return omrerrors.NewInternalError("flushing CSV output", err)
	}
	return nil
}

// WriteCSV writes the per-question CSV export to the given path.
func WriteCSV(result *OverallResult, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return omrerrors.NewInternalError("creating CSV result file", err)
	}
	defer f.Close()

	if err := ExportCSV(result, f); err != nil {
		return err
	}
	if err := f.Close(); err != nil {
		return omrerrors.NewInternalError("closing CSV result file", err)
	}
	return nil
}
