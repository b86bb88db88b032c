// Package imaging provides the shared pixel-level primitives of the OMR
// engine: image loading and caching, grayscale buffers, adaptive
// thresholding, and intensity statistics.
//
// # Coordinate System
//
// All pixel coordinates are 0-based:
//   - X: horizontal position (0 = leftmost pixel)
//   - Y: vertical position (0 = topmost pixel)
//
// # Buffers
//
// The engine works on *image.Gray buffers. Every operation consumes its
// input read-only and returns a newly allocated buffer; intermediate
// buffers are owned by the calling stage and released once the next
// stage's output exists.
//
// # Thread Safety
//
// The ImageCache type is safe for concurrent use. All other functions are
// stateless and can be called concurrently on different images.
package imaging
