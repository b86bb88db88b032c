package omr

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sheetscan/omr-engine/internal/bubbles"
	omrerrors "github.com/sheetscan/omr-engine/internal/errors"
	omrimg "github.com/sheetscan/omr-engine/internal/imaging"
	"github.com/sheetscan/omr-engine/internal/logger"
	"github.com/sheetscan/omr-engine/internal/preprocess"
	"github.com/sheetscan/omr-engine/internal/scoring"
	"github.com/sheetscan/omr-engine/internal/template"
)

// Config collects the pipeline configuration. Construct it once via
// DefaultConfig, adjust, and pass to NewProcessor; the Processor never
// mutates it afterwards.
type Config struct {
	Preprocess preprocess.Config
	Template   template.Config
	Bubbles    bubbles.Config

	// QuestionsPerRow partitions each detected bubble row into question
	// groups.
	QuestionsPerRow int

	// OptionsPerQuestion is the expected bubble count per question.
	OptionsPerQuestion int

	// Workers bounds batch concurrency. Zero or negative means one
	// worker per CPU; 1 processes sheets sequentially.
	Workers int

	// OutputDir receives persisted results when SaveResults is set.
	OutputDir string

	// SaveResults writes per-sheet JSON/CSV results, a processing log
	// and a batch summary under OutputDir.
	SaveResults bool

	// SaveIntermediate additionally writes the normalized sheet image.
	SaveIntermediate bool

	// SaveOverlay additionally writes the bubble-detection overlay.
	SaveOverlay bool
}

// DefaultConfig returns the standard pipeline configuration for A4
// sheets with 5 questions per row and 4 options per question.
func DefaultConfig() Config {
	return Config{
		Preprocess:         preprocess.DefaultConfig(),
		Template:           template.DefaultConfig(),
		Bubbles:            bubbles.DefaultConfig(),
		QuestionsPerRow:    5,
		OptionsPerQuestion: 4,
		Workers:            1,
		OutputDir:          "results",
	}
}

// DetectionSummary carries the bubble-detection counters of one sheet.
type DetectionSummary struct {
	TotalBubbles int `json:"total_bubbles"`
	RowsDetected int `json:"rows_detected"`
	MultiMarked  int `json:"multi_marked"`
	Unanswered   int `json:"unanswered"`
}

// SheetResult is the outcome of processing one sheet. When Success is
// false, Scoring, Answers and Confidences are nil and Error/ErrorKind
// describe the failure; there is no partially scored state.
type SheetResult struct {
	Success        bool                       `json:"success"`
	StudentID      string                     `json:"student_id"`
	ImagePath      string                     `json:"image_path"`
	Timestamp      time.Time                  `json:"timestamp"`
	ProcessingTime float64                    `json:"processing_time_seconds"`
	Validation     *template.ValidationReport `json:"validation,omitempty"`
	Detection      *DetectionSummary          `json:"detection,omitempty"`
	Scoring        *scoring.OverallResult     `json:"scoring,omitempty"`
	Answers        map[int]string             `json:"answers,omitempty"`
	Confidences    map[int]float64            `json:"confidences,omitempty"`
	Notes          []string                   `json:"notes,omitempty"`
	Error          string                     `json:"error,omitempty"`
	ErrorKind      omrerrors.Kind             `json:"error_kind,omitempty"`
}

// BatchSummary aggregates a batch run.
type BatchSummary struct {
	TotalSheets int            `json:"total_sheets"`
	Successful  int            `json:"successful_processing"`
	Failed      int            `json:"failed_processing"`
	SuccessRate float64        `json:"success_rate"`
	Results     []*SheetResult `json:"results"`
	Statistics  Statistics     `json:"statistics"`
	Timestamp   time.Time      `json:"timestamp"`
}

// Processor runs the sheet pipeline. It is safe for concurrent use; the
// running statistics are the only mutable state and sit behind a mutex.
type Processor struct {
	cfg        Config
	cache      *omrimg.ImageCache
	preprocess *preprocess.Processor
	matcher    *template.Matcher
	detector   *bubbles.Detector
	calculator *scoring.Calculator

	mu    sync.Mutex
	stats Statistics
}

// NewProcessor wires the pipeline components from the configuration.
func NewProcessor(cfg Config) *Processor {
	if cfg.QuestionsPerRow <= 0 {
		cfg.QuestionsPerRow = 5
	}
	if cfg.OptionsPerQuestion <= 0 {
		cfg.OptionsPerQuestion = 4
	}
	return &Processor{
		cfg:        cfg,
		cache:      omrimg.NewImageCache(),
		preprocess: preprocess.NewProcessor(cfg.Preprocess),
		matcher:    template.NewMatcher(cfg.Template),
		detector:   bubbles.NewDetector(cfg.Bubbles),
		calculator: scoring.NewCalculator(),
	}
}

// Stats returns a snapshot of the running statistics.
func (p *Processor) Stats() Statistics {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats
}

// ResetStats clears the running statistics.
func (p *Processor) ResetStats() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stats = Statistics{}
}

// ProcessSheet runs the full pipeline for one sheet and records the
// outcome in the running statistics. All failures are returned as
// failure records, never as a partial result.
func (p *Processor) ProcessSheet(ctx context.Context, imagePath string, key *scoring.AnswerKey, studentID string) *SheetResult {
	result := p.processSheet(ctx, imagePath, key, studentID)
	p.mu.Lock()
	p.stats.Record(result.ProcessingTime, result.Success)
	p.mu.Unlock()
	return result
}

// processSheet runs the pipeline without touching the statistics, so
// batch workers can fold outcomes into worker-local copies instead.
func (p *Processor) processSheet(ctx context.Context, imagePath string, key *scoring.AnswerKey, studentID string) (result *SheetResult) {
	start := time.Now()
	result = &SheetResult{
		StudentID: studentID,
		ImagePath: imagePath,
		Timestamp: start,
	}
	defer func() {
		if r := recover(); r != nil {
			err := omrerrors.NewInternalError(fmt.Sprintf("pipeline panic: %v", r), nil)
			result.fail(err)
			logger.WithFields(logrus.Fields{
				"image":   imagePath,
				"student": studentID,
				"panic":   fmt.Sprint(r),
			}).Error("sheet processing panicked")
		}
		result.ProcessingTime = time.Since(start).Seconds()
	}()

	log := logger.WithFields(logrus.Fields{
		"image":   imagePath,
		"student": studentID,
	})
	log.Info("processing sheet")

	// Loaded
	if err := ctxErr(ctx); err != nil {
		result.fail(err)
		return result
	}
	img, err := p.cache.Load(imagePath)
	if err != nil {
		result.fail(omrerrors.NewInputError("unreadable sheet image", err))
		return result
	}
	gray := omrimg.ToGray(img)

	// Validated. A failing report lowers confidence and adds notes but
	// never aborts the sheet.
	if err := ctxErr(ctx); err != nil {
		result.fail(err)
		return result
	}
	report := p.matcher.ValidateFormat(gray)
	result.Validation = &report
	if !report.IsValid {
		result.Notes = append(result.Notes, report.Issues...)
		log.WithField("confidence", report.Confidence).Warn("sheet format validation failed")
	}

	// Normalized
	if err := ctxErr(ctx); err != nil {
		result.fail(err)
		return result
	}
	normalized := p.preprocess.Normalize(gray)

	// Detected
	if err := ctxErr(ctx); err != nil {
		result.fail(err)
		return result
	}
	detection := p.detector.Detect(normalized, p.cfg.QuestionsPerRow, p.cfg.OptionsPerQuestion)
	result.Detection = &DetectionSummary{
		TotalBubbles: detection.TotalBubbles,
		RowsDetected: detection.RowsDetected,
		MultiMarked:  detection.MultiMarked,
		Unanswered:   detection.Unanswered,
	}
	result.Notes = append(result.Notes, detection.Notes...)

	// Scored
	if err := ctxErr(ctx); err != nil {
		result.fail(err)
		return result
	}
	scored, err := p.calculator.Score(key, detection.Answers, detection.Confidences, studentID)
	if err != nil {
		result.fail(err)
		return result
	}

	result.Success = true
	result.Scoring = scored
	result.Answers = detection.Answers
	result.Confidences = detection.Confidences
	result.Notes = append(result.Notes, scored.ProcessingNotes...)

	if p.cfg.SaveResults {
		if err := p.persistSheet(result, normalized, detection); err != nil {
			// Persistence is a post-scoring side effect; losing it does
			// not invalidate the score.
			result.Notes = append(result.Notes, fmt.Sprintf("result persistence failed: %v", err))
			log.WithError(err).Warn("failed to persist sheet results")
		}
	}

	log.WithFields(logrus.Fields{
		"percentage": scored.OverallPercentage,
		"grade":      scored.OverallGrade,
	}).Info("sheet processed")
	return result
}

// ProcessBatch processes every sheet independently; one sheet's failure
// never aborts the batch. studentIDs may be nil, in which case IDs are
// generated from the sheet position; a non-nil slice must match the
// image count.
func (p *Processor) ProcessBatch(ctx context.Context, imagePaths []string, key *scoring.AnswerKey, studentIDs []string) (*BatchSummary, error) {
	if studentIDs != nil && len(studentIDs) != len(imagePaths) {
		return nil, omrerrors.NewInputError(
			fmt.Sprintf("student ID count (%d) does not match image count (%d)", len(studentIDs), len(imagePaths)), nil)
	}

	workers := p.cfg.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > len(imagePaths) {
		workers = len(imagePaths)
	}
	if workers < 1 {
		workers = 1
	}

	logger.WithFields(logrus.Fields{
		"sheets":  len(imagePaths),
		"workers": workers,
	}).Info("starting batch")

	results := make([]*SheetResult, len(imagePaths))
	workerStats := make([]Statistics, workers)

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := range jobs {
				id := fmt.Sprintf("student_%d", i+1)
				if studentIDs != nil {
					id = studentIDs[i]
				}
				r := p.processSheet(ctx, imagePaths[i], key, id)
				results[i] = r
				workerStats[w].Record(r.ProcessingTime, r.Success)
			}
		}(w)
	}
	for i := range imagePaths {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	p.mu.Lock()
	for _, ws := range workerStats {
		p.stats.Merge(ws)
	}
	stats := p.stats
	p.mu.Unlock()

	summary := &BatchSummary{
		TotalSheets: len(imagePaths),
		Results:     results,
		Statistics:  stats,
		Timestamp:   time.Now(),
	}
	for _, r := range results {
		if r.Success {
			summary.Successful++
		} else {
			summary.Failed++
		}
	}
	if summary.TotalSheets > 0 {
		summary.SuccessRate = float64(summary.Successful) / float64(summary.TotalSheets) * 100
	}

	if p.cfg.SaveResults {
		if err := p.persistBatchSummary(summary); err != nil {
			logger.WithError(err).Warn("failed to persist batch summary")
		}
	}

	logger.WithFields(logrus.Fields{
		"successful":   summary.Successful,
		"failed":       summary.Failed,
		"success_rate": summary.SuccessRate,
	}).Info("batch complete")
	return summary, nil
}

// fail converts err into a failure record, discarding anything the
// pipeline produced before the error.
func (r *SheetResult) fail(err error) {
	r.Success = false
	r.Scoring = nil
	r.Answers = nil
	r.Confidences = nil
	r.Error = err.Error()
	r.ErrorKind = omrerrors.KindOf(err)
}

// ctxErr reports the context's cancellation as an internal error, used
// at every stage boundary.
func ctxErr(ctx context.Context) error {
	if ctx == nil {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return omrerrors.NewInternalError("processing cancelled", err)
	}
	return nil
}
