// Package template locates the printed structure of an answer sheet:
// alignment marks, sheet orientation, the answer-bubble grid, and an
// overall format-quality verdict.
//
// Alignment marks are found by normalized cross-correlation against a
// small synthetic filled-square template; clustered duplicate hits from a
// single physical mark are collapsed by non-maximum suppression.
//
// Format validation is advisory: it lowers a confidence scalar and lists
// every failing check, but never stops the pipeline.
package template
