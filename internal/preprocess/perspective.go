package preprocess

import (
	"image"

	"gonum.org/v1/gonum/mat"

	"github.com/sheetscan/omr-engine/internal/logger"
)

// Homography is a 3×3 projective transform in row-major order with the
// bottom-right element fixed at 1.
type Homography [9]float64

// Apply maps a point through the transform.
func (h Homography) Apply(x, y float64) (float64, float64) {
	w := h[6]*x + h[7]*y + h[8]
	return (h[0]*x + h[1]*y + h[2]) / w, (h[3]*x + h[4]*y + h[5]) / w
}

// ComputeHomography solves for the projective transform mapping the four
// src points onto the four dst points. The 8 unknowns come from the
// standard direct linear system, two equations per correspondence.
func ComputeHomography(src, dst []Corner) (Homography, bool) {
	if len(src) != 4 || len(dst) != 4 {
		return Homography{}, false
	}

	a := mat.NewDense(8, 8, nil)
	b := mat.NewVecDense(8, nil)
	for i := 0; i < 4; i++ {
		sx, sy := src[i].X, src[i].Y
		dx, dy := dst[i].X, dst[i].Y

		a.SetRow(2*i, []float64{sx, sy, 1, 0, 0, 0, -dx * sx, -dx * sy})
		b.SetVec(2*i, dx)
		a.SetRow(2*i+1, []float64{0, 0, 0, sx, sy, 1, -dy * sx, -dy * sy})
		b.SetVec(2*i+1, dy)
	}

	var x mat.VecDense
	if err := x.SolveVec(a, b); err != nil {
		return Homography{}, false
	}

	var h Homography
	for i := 0; i < 8; i++ {
		h[i] = x.AtVec(i)
	}
	h[8] = 1
	return h, true
}

// CorrectPerspective rectifies the sheet onto the canonical A4-portrait
// rectangle using the four detected corner dots.
//
// When fewer than four corners are found, or the transform is degenerate,
// the input is passed through unchanged rather than failing.
func (p *Processor) CorrectPerspective(gray *image.Gray) *image.Gray {
	corners := p.DetectCorners(gray)
	if corners == nil {
		return gray
	}

	width := p.cfg.TargetWidth
	height := p.cfg.TargetHeight()

	canonical := []Corner{
		{0, 0},
		{float64(width - 1), 0},
		{float64(width - 1), float64(height - 1)},
		{0, float64(height - 1)},
	}

	// Solve the inverse mapping (canonical → source) so the warp can
	// sample the source directly for every output pixel.
	inv, ok := ComputeHomography(canonical, corners)
	if !ok {
		logger.Warn("degenerate corner geometry, skipping perspective correction")
		return gray
	}

	return warpPerspective(gray, inv, width, height)
}

// warpPerspective resamples src into a width×height buffer, mapping each
// destination pixel through inv and sampling bilinearly. Pixels mapping
// outside the source are filled white (paper).
func warpPerspective(src *image.Gray, inv Homography, width, height int) *image.Gray {
	bounds := src.Bounds()
	sw := bounds.Dx()
	sh := bounds.Dy()

	dst := image.NewGray(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			sx, sy := inv.Apply(float64(x), float64(y))
			dst.Pix[y*dst.Stride+x] = sampleBilinear(src, sx, sy, sw, sh)
		}
	}
	return dst
}

func sampleBilinear(src *image.Gray, x, y float64, w, h int) uint8 {
	if x < 0 || y < 0 || x > float64(w-1) || y > float64(h-1) {
		return 255
	}

	x0 := int(x)
	y0 := int(y)
	x1 := x0 + 1
	y1 := y0 + 1
	if x1 >= w {
		x1 = w - 1
	}
	if y1 >= h {
		y1 = h - 1
	}
	fx := x - float64(x0)
	fy := y - float64(y0)

	at := func(px, py int) float64 {
		return float64(src.Pix[(py+src.Bounds().Min.Y-src.Rect.Min.Y)*src.Stride+(px+src.Bounds().Min.X-src.Rect.Min.X)])
	}

	top := at(x0, y0)*(1-fx) + at(x1, y0)*fx
	bottom := at(x0, y1)*(1-fx) + at(x1, y1)*fx
	return uint8(top*(1-fy) + bottom*fy + 0.5)
}
