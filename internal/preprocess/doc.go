// Package preprocess normalizes photographed answer sheets into a
// canonical geometry for mark detection.
//
// The pipeline runs four stages, each consuming an immutable input buffer
// and producing a new one:
//
//  1. Grayscale conversion (color inputs only)
//  2. Perspective correction against four circular alignment dots
//  3. Skew correction from the median angle of detected lines
//  4. Enhancement: local contrast equalization, denoising blur, sharpening
//
// # Degradation Policy
//
// No stage fails on missing geometry. When fewer than four alignment dots
// are found, perspective correction passes the image through unchanged;
// when the skew estimate is below the application threshold, rotation is
// skipped. Only unreadable input is an error, and that is rejected before
// this package is reached.
package preprocess
