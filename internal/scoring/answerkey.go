package scoring

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strconv"

	apperrors "github.com/sheetscan/omr-engine/internal/errors"
	"github.com/sheetscan/omr-engine/internal/logger"
)

// ScoringRule holds the point values for one subject.
type ScoringRule struct {
	CorrectPoints     float64 `json:"correct_points"`
	IncorrectPenalty  float64 `json:"incorrect_penalty"`
	UnansweredPenalty float64 `json:"unanswered_penalty"`
	MaxScore          float64 `json:"max_score"`
	MinScore          float64 `json:"min_score"`
}

// DefaultScoringRule is the hardcoded fallback applied when a key defines
// neither a subject rule nor a "default" rule.
func DefaultScoringRule() ScoringRule {
	return ScoringRule{
		CorrectPoints:     1.0,
		IncorrectPenalty:  0.0,
		UnansweredPenalty: 0.0,
		MaxScore:          20.0,
		MinScore:          0.0,
	}
}

// ExamInfo identifies the exam a key belongs to.
type ExamInfo struct {
	ExamID   string `json:"exam_id"`
	ExamName string `json:"exam_name"`
}

// AnswerKey is the ground truth for one exam: per-subject correct answers
// plus scoring rules. It is immutable once loaded; concurrent scorings of
// multiple sheets may share one key without locking.
type AnswerKey struct {
	ExamInfo ExamInfo
	// Answers maps subject name → question number → correct letter.
	Answers map[string]map[int]string
	// Rules maps subject name (or "default") → rule.
	Rules map[string]ScoringRule
}

// rawAnswerKey mirrors the answer-key document layout on disk, where
// question numbers are JSON object keys and therefore strings.
type rawAnswerKey struct {
	ExamInfo  ExamInfo                     `json:"exam_info"`
	AnswerKey map[string]map[string]string `json:"answer_key"`
	Rules     map[string]ScoringRule       `json:"scoring_rules"`
}

// LoadAnswerKey reads and validates an answer-key document from disk.
// A missing file or malformed document is an input error; inconsistent
// scoring rules are a scoring error. Both are fatal for the sheets scored
// against this key.
func LoadAnswerKey(path string) (*AnswerKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apperrors.NewInputError(fmt.Sprintf("answer key file not found: %s", path), err)
	}
	return ParseAnswerKey(data)
}

// ParseAnswerKey parses an answer-key document from a byte buffer.
func ParseAnswerKey(data []byte) (*AnswerKey, error) {
	var raw rawAnswerKey
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, apperrors.NewInputError("invalid answer key document", err)
	}
	if len(raw.AnswerKey) == 0 {
		return nil, apperrors.NewInputError("answer key defines no subjects", nil)
	}

	key := &AnswerKey{
		ExamInfo: raw.ExamInfo,
		Answers:  make(map[string]map[int]string, len(raw.AnswerKey)),
		Rules:    raw.Rules,
	}
	if key.Rules == nil {
		key.Rules = map[string]ScoringRule{}
	}

	for subject, questions := range raw.AnswerKey {
		converted := make(map[int]string, len(questions))
		for qs, letter := range questions {
			q, err := strconv.Atoi(qs)
			if err != nil || q <= 0 {
				return nil, apperrors.NewScoringError(
					fmt.Sprintf("subject %q has invalid question number %q", subject, qs), err)
			}
			if letter == "" {
				return nil, apperrors.NewScoringError(
					fmt.Sprintf("subject %q question %d has no correct answer", subject, q), nil)
			}
			converted[q] = letter
		}
		key.Answers[subject] = converted
	}

	if err := key.validateRules(); err != nil {
		return nil, err
	}

	logger.WithField("exam", key.ExamInfo.ExamName).Info("answer key loaded")
	return key, nil
}

func (k *AnswerKey) validateRules() error {
	for name, rule := range k.Rules {
		if rule.MaxScore < rule.MinScore {
			return apperrors.NewScoringError(
				fmt.Sprintf("scoring rule %q has max_score %.2f below min_score %.2f",
					name, rule.MaxScore, rule.MinScore), nil)
		}
	}
	return nil
}

// RuleFor resolves the scoring rule for a subject: the subject's own rule,
// then the key's "default" rule, then the hardcoded fallback.
func (k *AnswerKey) RuleFor(subject string) ScoringRule {
	if rule, ok := k.Rules[subject]; ok {
		return rule
	}
	if rule, ok := k.Rules["default"]; ok {
		return rule
	}
	return DefaultScoringRule()
}

// Subjects returns the subject names in deterministic (sorted) order.
func (k *AnswerKey) Subjects() []string {
	names := make([]string, 0, len(k.Answers))
	for name := range k.Answers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// TotalQuestions returns the question count across all subjects.
func (k *AnswerKey) TotalQuestions() int {
	total := 0
	for _, questions := range k.Answers {
		total += len(questions)
	}
	return total
}
