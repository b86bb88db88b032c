package omr

import (
	"encoding/json"
	"fmt"
	"image"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"

	"github.com/sheetscan/omr-engine/internal/bubbles"
	omrerrors "github.com/sheetscan/omr-engine/internal/errors"
	"github.com/sheetscan/omr-engine/internal/scoring"
)

// timestampLayout names persisted files uniquely per sheet.
const timestampLayout = "20060102_150405"

// persistSheet writes the per-sheet artifacts under OutputDir: the full
// scoring result as JSON and CSV, a processing log, and optionally the
// normalized sheet and detection overlay images.
func (p *Processor) persistSheet(result *SheetResult, normalized *image.Gray, detection *bubbles.Result) error {
	if err := os.MkdirAll(p.cfg.OutputDir, 0o755); err != nil {
		return omrerrors.NewInternalError("creating output directory", err)
	}

	ts := result.Timestamp.Format(timestampLayout)
	base := fmt.Sprintf("%s_%s", result.StudentID, ts)

	jsonPath := filepath.Join(p.cfg.OutputDir, base+"_results.json")
	if err := scoring.WriteJSON(result.Scoring, jsonPath); err != nil {
		return err
	}

	csvPath := filepath.Join(p.cfg.OutputDir, base+"_results.csv")
	if err := scoring.WriteCSV(result.Scoring, csvPath); err != nil {
		return err
	}

	logPath := filepath.Join(p.cfg.OutputDir, base+"_log.json")
	if err := writeJSONFile(logPath, result); err != nil {
		return err
	}

	if p.cfg.SaveIntermediate {
		imgPath := filepath.Join(p.cfg.OutputDir, base+"_preprocessed.png")
		if err := imaging.Save(normalized, imgPath); err != nil {
			return omrerrors.NewInternalError("saving preprocessed image", err)
		}
	}

	if p.cfg.SaveOverlay {
		overlay := bubbles.RenderOverlay(normalized, detection.Candidates)
		overlayPath := filepath.Join(p.cfg.OutputDir, base+"_overlay.png")
		if err := imaging.Save(overlay, overlayPath); err != nil {
			return omrerrors.NewInternalError("saving detection overlay", err)
		}
	}

	return nil
}

// persistBatchSummary writes the batch summary JSON under OutputDir.
func (p *Processor) persistBatchSummary(summary *BatchSummary) error {
	if err := os.MkdirAll(p.cfg.OutputDir, 0o755); err != nil {
		return omrerrors.NewInternalError("creating output directory", err)
	}
	name := fmt.Sprintf("batch_summary_%s.json", summary.Timestamp.Format(timestampLayout))
	return writeJSONFile(filepath.Join(p.cfg.OutputDir, name), summary)
}

func writeJSONFile(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return omrerrors.NewInternalError("encoding JSON", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return omrerrors.NewInternalError("writing "+filepath.Base(path), err)
	}
	return nil
}
