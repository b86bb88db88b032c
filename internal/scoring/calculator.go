package scoring

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/stat"

	"github.com/sheetscan/omr-engine/internal/logger"
)

// QuestionResult is the scored outcome of a single question.
// StudentAnswer is empty for an unanswered question.
type QuestionResult struct {
	QuestionNumber int      `json:"question_number"`
	Subject        string   `json:"subject"`
	CorrectAnswer  string   `json:"correct_answer"`
	StudentAnswer  string   `json:"student_answer"`
	IsCorrect      bool     `json:"is_correct"`
	PointsEarned   float64  `json:"points_earned"`
	Confidence     float64  `json:"confidence_score"`
	Notes          []string `json:"notes"`
}

// SubjectResult aggregates one subject's questions. RawScore is clamped to
// the subject rule's [MinScore, MaxScore].
type SubjectResult struct {
	SubjectName      string           `json:"subject_name"`
	TotalQuestions   int              `json:"total_questions"`
	CorrectAnswers   int              `json:"correct_answers"`
	IncorrectAnswers int              `json:"incorrect_answers"`
	Unanswered       int              `json:"unanswered"`
	RawScore         float64          `json:"raw_score"`
	Percentage       float64          `json:"percentage"`
	Grade            string           `json:"grade"`
	QuestionResults  []QuestionResult `json:"question_results"`
}

// ConfidenceMetrics summarizes detection confidence over all questions.
type ConfidenceMetrics struct {
	Average   float64 `json:"average_confidence"`
	Min       float64 `json:"min_confidence"`
	Max       float64 `json:"max_confidence"`
	LowCount  int     `json:"low_confidence_count"`
	HighCount int     `json:"high_confidence_count"`
}

// OverallResult is the complete scored outcome for one sheet.
type OverallResult struct {
	StudentID         string            `json:"student_id"`
	ExamID            string            `json:"exam_id"`
	TotalQuestions    int               `json:"total_questions"`
	TotalCorrect      int               `json:"total_correct"`
	TotalIncorrect    int               `json:"total_incorrect"`
	TotalUnanswered   int               `json:"total_unanswered"`
	OverallScore      float64           `json:"overall_score"`
	OverallPercentage float64           `json:"overall_percentage"`
	OverallGrade      string            `json:"overall_grade"`
	SubjectResults    []SubjectResult   `json:"subject_results"`
	Timestamp         time.Time         `json:"processing_timestamp"`
	Confidence        ConfidenceMetrics `json:"confidence_metrics"`
	ProcessingNotes   []string          `json:"processing_notes"`
}

// GradeBoundary pairs a letter grade with its minimum percentage.
type GradeBoundary struct {
	Grade      string
	MinPercent float64
}

// defaultGradeBoundaries is the descending grade table. The final entry
// catches every percentage, including negatives from penalty-heavy rules.
var defaultGradeBoundaries = []GradeBoundary{
	{"A+", 95.0},
	{"A", 90.0},
	{"A-", 85.0},
	{"B+", 80.0},
	{"B", 75.0},
	{"B-", 70.0},
	{"C+", 65.0},
	{"C", 60.0},
	{"C-", 55.0},
	{"D", 50.0},
	{"F", 0.0},
}

// Confidence thresholds used during scoring. An answered question below
// lowConfidenceFloor has its points magnitude halved; a correct answer
// below lowConfidenceNote only gets an advisory note.
const (
	lowConfidenceFloor = 0.5
	lowConfidenceNote  = 0.8
)

// Calculator scores detected answers against an answer key. It is
// stateless apart from its grade table and safe for concurrent use.
type Calculator struct {
	boundaries []GradeBoundary
}

// NewCalculator creates a Calculator with the standard grade table.
func NewCalculator() *Calculator {
	return &Calculator{boundaries: defaultGradeBoundaries}
}

// GradeFor returns the highest grade whose boundary does not exceed the
// percentage, or the lowest grade when none match.
func (c *Calculator) GradeFor(percentage float64) string {
	for _, b := range c.boundaries {
		if percentage >= b.MinPercent {
			return b.Grade
		}
	}
	return c.boundaries[len(c.boundaries)-1].Grade
}

// ScoreQuestion scores a single question under the given rule.
//
// Unanswered questions earn the negated unanswered penalty. Correct
// answers (case-insensitive match) earn the rule's points, with a note
// when detection confidence was below 0.8. Incorrect answers earn the
// negated incorrect penalty. Regardless of outcome, an answered question
// with confidence below 0.5 has its points magnitude halved.
func (c *Calculator) ScoreQuestion(correct, student string, rule ScoringRule, confidence float64) (points float64, isCorrect bool, notes []string) {
	switch {
	case student == "":
		points = -rule.UnansweredPenalty
		notes = append(notes, "question not answered")
	case strings.EqualFold(student, correct):
		points = rule.CorrectPoints
		isCorrect = true
		if confidence < lowConfidenceNote {
			notes = append(notes, fmt.Sprintf("low confidence detection (%.2f)", confidence))
		}
	default:
		points = -rule.IncorrectPenalty
		notes = append(notes, fmt.Sprintf("incorrect answer: %s (correct: %s)", student, correct))
	}

	if confidence < lowConfidenceFloor && student != "" {
		points *= 0.5
		notes = append(notes, "score reduced due to low detection confidence")
	}

	return points, isCorrect, notes
}

// ScoreSubject scores every question the key defines for one subject.
// Detected answers missing a question are treated as unanswered; missing
// confidences default to 1.0.
func (c *Calculator) ScoreSubject(key *AnswerKey, subject string, answers map[int]string, confidences map[int]float64) SubjectResult {
	questions := key.Answers[subject]
	rule := key.RuleFor(subject)

	numbers := make([]int, 0, len(questions))
	for q := range questions {
		numbers = append(numbers, q)
	}
	sort.Ints(numbers)

	result := SubjectResult{
		SubjectName:     subject,
		TotalQuestions:  len(questions),
		QuestionResults: make([]QuestionResult, 0, len(questions)),
	}

	var total float64
	for _, q := range numbers {
		correct := questions[q]
		student := answers[q]
		confidence, ok := confidences[q]
		if !ok {
			confidence = 1.0
		}

		points, isCorrect, notes := c.ScoreQuestion(correct, student, rule, confidence)
		total += points

		switch {
		case student == "":
			result.Unanswered++
		case isCorrect:
			result.CorrectAnswers++
		default:
			result.IncorrectAnswers++
		}

		result.QuestionResults = append(result.QuestionResults, QuestionResult{
			QuestionNumber: q,
			Subject:        subject,
			CorrectAnswer:  correct,
			StudentAnswer:  student,
			IsCorrect:      isCorrect,
			PointsEarned:   points,
			Confidence:     confidence,
			Notes:          notes,
		})
	}

	// Clamp to the rule's bounds.
	if total > rule.MaxScore {
		total = rule.MaxScore
	}
	if total < rule.MinScore {
		total = rule.MinScore
	}
	result.RawScore = total

	if rule.MaxScore > 0 {
		result.Percentage = total / rule.MaxScore * 100
	}
	result.Grade = c.GradeFor(result.Percentage)

	return result
}

// Score evaluates all subjects of the key against the detected answers
// and derives the overall result. It returns a scoring error when the key
// is internally inconsistent; detection shortfalls never fail scoring,
// they surface as notes.
func (c *Calculator) Score(key *AnswerKey, answers map[int]string, confidences map[int]float64, studentID string) (*OverallResult, error) {
	if err := key.validateRules(); err != nil {
		return nil, err
	}

	result := &OverallResult{
		StudentID: studentID,
		ExamID:    key.ExamInfo.ExamID,
		Timestamp: time.Now(),
	}

	var totalPoints, maxPoints float64
	for _, subject := range key.Subjects() {
		sr := c.ScoreSubject(key, subject, answers, confidences)
		result.SubjectResults = append(result.SubjectResults, sr)

		result.TotalQuestions += sr.TotalQuestions
		result.TotalCorrect += sr.CorrectAnswers
		result.TotalIncorrect += sr.IncorrectAnswers
		result.TotalUnanswered += sr.Unanswered
		totalPoints += sr.RawScore
		maxPoints += key.RuleFor(subject).MaxScore
	}

	result.OverallScore = totalPoints
	if maxPoints > 0 {
		result.OverallPercentage = totalPoints / maxPoints * 100
	}
	result.OverallGrade = c.GradeFor(result.OverallPercentage)
	result.Confidence = confidenceMetrics(confidences)
	result.ProcessingNotes = processingNotes(result)

	logger.WithFields(logrus.Fields{
		"student":    studentID,
		"percentage": result.OverallPercentage,
		"grade":      result.OverallGrade,
	}).Info("score calculation complete")

	return result, nil
}

func confidenceMetrics(confidences map[int]float64) ConfidenceMetrics {
	if len(confidences) == 0 {
		return ConfidenceMetrics{}
	}

	values := make([]float64, 0, len(confidences))
	m := ConfidenceMetrics{Min: 1.0}
	for _, v := range confidences {
		values = append(values, v)
		if v < m.Min {
			m.Min = v
		}
		if v > m.Max {
			m.Max = v
		}
		if v < 0.7 {
			m.LowCount++
		}
		if v >= 0.9 {
			m.HighCount++
		}
	}
	m.Average = stat.Mean(values, nil)
	return m
}

// processingNotes derives the scoring-level diagnostics: low-confidence
// detections, subjects with many unanswered questions, a sheet answered
// below 80%, and the answer-key misalignment heuristic (more than half
// the subjects below 40%).
func processingNotes(result *OverallResult) []string {
	notes := []string{}

	if result.Confidence.LowCount > 0 {
		notes = append(notes, fmt.Sprintf("%d questions had low confidence detection", result.Confidence.LowCount))
	}

	for _, s := range result.SubjectResults {
		if s.TotalQuestions == 0 {
			continue
		}
		if float64(s.Unanswered)/float64(s.TotalQuestions) > 0.2 {
			notes = append(notes, fmt.Sprintf("%s: %d questions unanswered", s.SubjectName, s.Unanswered))
		}
	}

	answered := result.TotalCorrect + result.TotalIncorrect
	if float64(answered) < float64(result.TotalQuestions)*0.8 {
		notes = append(notes, "many questions were not answered - check image quality")
	}

	lowPerforming := 0
	for _, s := range result.SubjectResults {
		if s.Percentage < 40 {
			lowPerforming++
		}
	}
	if lowPerforming > len(result.SubjectResults)/2 {
		notes = append(notes, "multiple subjects show low performance - verify answer key alignment")
	}

	return notes
}
