// Package omr orchestrates the full answer-sheet pipeline: image loading,
// format validation, geometric normalization, bubble detection and
// scoring. It exposes single-sheet and batch entry points, running
// statistics, and optional result persistence.
//
// Every per-sheet failure is caught at the orchestrator boundary and
// converted into a failure record carrying the error kind; a failing
// sheet never aborts a batch. Each pipeline stage checks the caller's
// context at its boundary, so a deadline or cancellation stops a sheet
// between stages without corrupting shared state.
package omr
