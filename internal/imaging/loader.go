package imaging

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"  // Register GIF format decoder
	_ "image/jpeg" // Register JPEG format decoder
	_ "image/png"  // Register PNG format decoder
	"os"
	"sync"

	"github.com/disintegration/imaging"
)

// ImageCache provides thread-safe caching of loaded sheet images to avoid
// redundant disk reads during batch processing.
//
// The cache stores decoded image.Image objects keyed by their file path.
// Once a sheet is loaded, subsequent Load() calls for the same path return
// the cached copy without disk I/O.
//
// Cached images remain in memory until explicitly removed via Evict() or
// Clear(). Long batch runs should Clear() between batches to prevent
// unbounded memory growth.
type ImageCache struct {
	mu     sync.RWMutex
	images map[string]image.Image
}

// NewImageCache creates and initializes a new empty image cache.
func NewImageCache() *ImageCache {
	return &ImageCache{
		images: make(map[string]image.Image),
	}
}

// Load retrieves an image from the cache or loads it from disk if not cached.
//
// Supported formats are PNG, JPEG, and GIF. The image is cached using the
// exact path string provided; different paths to the same file result in
// separate cache entries.
//
// Returns an error if the file does not exist, cannot be read, or is not a
// valid image.
func (c *ImageCache) Load(path string) (image.Image, error) {
	c.mu.RLock()
	if img, ok := c.images[path]; ok {
		c.mu.RUnlock()
		return img, nil
	}
	c.mu.RUnlock()

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	c.mu.Lock()
	c.images[path] = img
	c.mu.Unlock()

	return img, nil
}

// Decode decodes a sheet image from an in-memory byte buffer. Decoded
// images are not cached; callers uploading sheets over the wire own the
// decoded buffer.
func Decode(data []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return img, nil
}

// Clear removes all images from the cache, freeing the associated memory.
func (c *ImageCache) Clear() {
	c.mu.Lock()
	c.images = make(map[string]image.Image)
	c.mu.Unlock()
}

// Evict removes a specific image from the cache by its path.
func (c *ImageCache) Evict(path string) {
	c.mu.Lock()
	delete(c.images, path)
	c.mu.Unlock()
}

// ToGray converts any image to an 8-bit grayscale buffer. Color inputs are
// converted through luminance; grayscale inputs are copied so the returned
// buffer is always newly owned by the caller.
func ToGray(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok {
		return CloneGray(g)
	}

	nrgba := imaging.Grayscale(img)
	bounds := nrgba.Bounds()
	gray := image.NewGray(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	for y := 0; y < bounds.Dy(); y++ {
		for x := 0; x < bounds.Dx(); x++ {
			// Grayscale output has R == G == B.
			i := nrgba.PixOffset(bounds.Min.X+x, bounds.Min.Y+y)
			gray.Pix[y*gray.Stride+x] = nrgba.Pix[i]
		}
	}
	return gray
}

// CloneGray returns a deep copy of a grayscale buffer, re-originated at (0,0).
func CloneGray(src *image.Gray) *image.Gray {
	bounds := src.Bounds()
	dst := image.NewGray(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	for y := 0; y < bounds.Dy(); y++ {
		srcRow := src.Pix[(y+bounds.Min.Y-src.Rect.Min.Y)*src.Stride:]
		copy(dst.Pix[y*dst.Stride:y*dst.Stride+bounds.Dx()], srcRow[bounds.Min.X-src.Rect.Min.X:])
	}
	return dst
}
