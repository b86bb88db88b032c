package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/sheetscan/omr-engine/internal/logger"
	"github.com/sheetscan/omr-engine/internal/omr"
	"github.com/sheetscan/omr-engine/internal/scoring"
)

// Version information - set by ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	// Handle --version and -v flags before flag parsing so they work
	// without the required options.
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "--version", "-v", "version":
			fmt.Printf("omr-engine %s\n", Version)
			fmt.Printf("  Build time: %s\n", BuildTime)
			fmt.Printf("  Git commit: %s\n", GitCommit)
			return
		case "--help", "-h", "help":
			printHelp()
			return
		}
	}

	var (
		keyPath    = flag.String("key", "", "path to the answer key JSON file (required)")
		imagePath  = flag.String("image", "", "path to a single answer sheet image")
		batch      = flag.String("batch", "", "comma-separated answer sheet image paths")
		studentID  = flag.String("student", "", "student ID for single-sheet mode")
		studentIDs = flag.String("students", "", "comma-separated student IDs for batch mode")
		outputDir  = flag.String("out", "results", "directory for persisted results")
		save       = flag.Bool("save", true, "persist JSON/CSV results and processing logs")
		overlay    = flag.Bool("overlay", false, "save bubble-detection overlay images")
		perRow     = flag.Int("questions-per-row", 5, "questions per detected bubble row")
		options    = flag.Int("options", 4, "answer options per question")
		workers    = flag.Int("workers", 1, "batch worker count (0 = one per CPU)")
		timeout    = flag.Duration("timeout", 0, "per-run processing deadline (0 = none)")
	)
	flag.Parse()

	if *keyPath == "" || (*imagePath == "" && *batch == "") {
		printHelp()
		os.Exit(2)
	}

	key, err := scoring.LoadAnswerKey(*keyPath)
	if err != nil {
		logger.WithError(err).Error("failed to load answer key")
		os.Exit(1)
	}

	cfg := omr.DefaultConfig()
	cfg.QuestionsPerRow = *perRow
	cfg.OptionsPerQuestion = *options
	cfg.Workers = *workers
	cfg.OutputDir = *outputDir
	cfg.SaveResults = *save
	cfg.SaveOverlay = *overlay
	processor := omr.NewProcessor(cfg)

	ctx := context.Background()
	if *timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, *timeout)
		defer cancel()
	}

	if *imagePath != "" {
		runSingle(ctx, processor, key, *imagePath, *studentID)
		return
	}
	runBatch(ctx, processor, key, *batch, *studentIDs)
}

func runSingle(ctx context.Context, processor *omr.Processor, key *scoring.AnswerKey, imagePath, studentID string) {
	if studentID == "" {
		studentID = "student_1"
	}
	result := processor.ProcessSheet(ctx, imagePath, key, studentID)
	if !result.Success {
		fmt.Fprintf(os.Stderr, "processing failed (%s): %s\n", result.ErrorKind, result.Error)
		os.Exit(1)
	}
	s := result.Scoring
	fmt.Printf("Student %s: %.2f%% (%s), %d/%d correct, %d unanswered [%.2fs]\n",
		result.StudentID, s.OverallPercentage, s.OverallGrade,
		s.TotalCorrect, s.TotalQuestions, s.TotalUnanswered, result.ProcessingTime)
	for _, note := range result.Notes {
		fmt.Printf("  note: %s\n", note)
	}
}

func runBatch(ctx context.Context, processor *omr.Processor, key *scoring.AnswerKey, batch, students string) {
	images := splitList(batch)
	var ids []string
	if students != "" {
		ids = splitList(students)
	}

	summary, err := processor.ProcessBatch(ctx, images, key, ids)
	if err != nil {
		logger.WithError(err).Error("batch processing failed")
		os.Exit(1)
	}

	fmt.Printf("Batch: %d sheets, %d ok, %d failed (%.2f%% success, avg %.2fs)\n",
		summary.TotalSheets, summary.Successful, summary.Failed,
		summary.SuccessRate, summary.Statistics.AverageProcessingTime)
	for _, r := range summary.Results {
		if r.Success {
			fmt.Printf("  %-12s %6.2f%% %-2s  %s\n",
				r.StudentID, r.Scoring.OverallPercentage, r.Scoring.OverallGrade, r.ImagePath)
		} else {
			fmt.Printf("  %-12s FAILED (%s): %s\n", r.StudentID, r.ErrorKind, r.Error)
		}
	}
	if summary.Failed > 0 {
		os.Exit(1)
	}
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func printHelp() {
	fmt.Println("omr-engine - optical mark recognition answer sheet scorer")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  omr-engine -key exam.json -image sheet.png [-student ID]")
	fmt.Println("  omr-engine -key exam.json -batch s1.png,s2.png [-students ID1,ID2]")
	fmt.Println()
	fmt.Println("Options:")
	fmt.Println("  -key PATH             answer key JSON file (required)")
	fmt.Println("  -image PATH           process a single sheet")
	fmt.Println("  -batch PATHS          process a comma-separated list of sheets")
	fmt.Println("  -student ID           student ID for single-sheet mode")
	fmt.Println("  -students IDS         comma-separated student IDs for batch mode")
	fmt.Println("  -out DIR              output directory for results (default: results)")
	fmt.Println("  -save                 persist JSON/CSV results (default: true)")
	fmt.Println("  -overlay              save bubble-detection overlay images")
	fmt.Println("  -questions-per-row N  questions per bubble row (default: 5)")
	fmt.Println("  -options N            answer options per question (default: 4)")
	fmt.Println("  -workers N            batch workers, 0 = one per CPU (default: 1)")
	fmt.Println("  -timeout DUR          per-run deadline, e.g. 30s (default: none)")
	fmt.Println("  --version, -v         print version information")
	fmt.Println("  --help, -h            print this help message")
	fmt.Println()
	fmt.Println("Environment variables:")
	fmt.Println("  LOG_LEVEL=debug       enable debug logging")
}
