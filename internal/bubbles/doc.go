// Package bubbles detects filled answer bubbles on a normalized sheet and
// turns them into per-question answers with confidence scores.
//
// # Pipeline
//
//  1. Binarize: adaptive threshold with ink as foreground, a
//     morphological close and open to remove speckle, then hole filling
//     so solid marks stay solid components
//  2. Candidates: external contours filtered by area, bounding-box aspect
//     ratio, and circularity
//  3. Fill analysis: fill fraction = 1 − mean_intensity/255 over the
//     bubble region of the source image
//  4. Row grouping: candidates banded by vertical position, left-to-right
//     within each band
//  5. Answer extraction: each row partitioned evenly into question groups
//
// # Confidence
//
// A cleanly single-marked question reports the winning bubble's fill
// fraction. A question with multiple marks resolves to the darkest bubble
// at 0.8× its fill fraction, so ambiguous responses always score strictly
// below an equally dark clean mark. An unanswered question reports exactly
// 0.0.
//
// # Layout Assumption
//
// Row grouping assumes bubbles are printed in horizontal bands of
// consistent vertical position. Sheets with staggered or columnar bubble
// layouts are not supported.
package bubbles
