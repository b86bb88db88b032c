// Package scoring evaluates detected answers against an answer key with
// per-subject scoring rules and derives graded, confidence-annotated
// results.
//
// An AnswerKey is immutable once loaded and safe to share across
// concurrent scorings of the same exam. Scoring rules resolve per subject
// with a two-step fallback: the subject's own rule, then the "default"
// rule from the key, then a hardcoded rule.
//
// Results are plain records; their only behavior is construction and
// serialization (JSON and a flattened per-question CSV).
package scoring
