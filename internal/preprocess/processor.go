package preprocess

import (
	"image"

	"github.com/sirupsen/logrus"

	"github.com/sheetscan/omr-engine/internal/imaging"
	"github.com/sheetscan/omr-engine/internal/logger"
)

// Config holds the preprocessing knobs. The zero value is not usable;
// start from DefaultConfig.
type Config struct {
	// TargetWidth is the width of the canonical rectified sheet in pixels.
	// Height is derived from the A4 portrait ratio (297/210).
	TargetWidth int

	// MinMarkArea and MaxMarkArea bound the pixel area of circular
	// alignment dots considered corner candidates.
	MinMarkArea float64
	MaxMarkArea float64

	// MinMarkCircularity is the minimum circularity (4π·area/perimeter²)
	// for a contour to count as an alignment dot.
	MinMarkCircularity float64

	// SkewThreshold is the minimum estimated skew, in degrees, at which
	// rotation is applied. Smaller estimates are treated as noise.
	SkewThreshold float64

	// ClipLimit bounds the per-tile histogram slope during local contrast
	// equalization, limiting noise amplification in flat regions.
	ClipLimit float64

	// EqualizeTiles is the number of equalization tiles along each axis.
	EqualizeTiles int
}

// DefaultConfig returns the preprocessing defaults tuned for A4 sheets
// photographed at roughly 800 px width.
func DefaultConfig() Config {
	return Config{
		TargetWidth:        800,
		MinMarkArea:        50,
		MaxMarkArea:        500,
		MinMarkCircularity: 0.7,
		SkewThreshold:      0.5,
		ClipLimit:          2.0,
		EqualizeTiles:      8,
	}
}

// TargetHeight returns the canonical sheet height for the configured
// width, using the A4 portrait ratio.
func (c Config) TargetHeight() int {
	return int(float64(c.TargetWidth)*297.0/210.0 + 0.5)
}

// Processor performs geometric normalization of raw sheet photographs.
type Processor struct {
	cfg Config
}

// NewProcessor creates a Processor with the given configuration.
func NewProcessor(cfg Config) *Processor {
	return &Processor{cfg: cfg}
}

// Normalize runs the full preprocessing pipeline on a raw sheet image and
// returns the rectified, deskewed, enhanced grayscale buffer. The input is
// never modified.
func (p *Processor) Normalize(img image.Image) *image.Gray {
	gray := imaging.ToGray(img)

	corrected := p.CorrectPerspective(gray)
	deskewed := p.CorrectSkew(corrected)
	enhanced := p.Enhance(deskewed)

	logger.WithFields(logrus.Fields{
		"width":  enhanced.Bounds().Dx(),
		"height": enhanced.Bounds().Dy(),
	}).Debug("sheet normalized")

	return enhanced
}
