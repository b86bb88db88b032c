package bubbles

import (
	"image"
	"image/color"
	"image/draw"

	colorful "github.com/lucasb-eyer/go-colorful"
)

// RenderOverlay draws detection results onto a copy of the sheet for
// visual inspection: every candidate's bounding box is outlined with a
// color graded by fill fraction, from green (empty) through yellow to red
// (fully filled).
func RenderOverlay(gray *image.Gray, candidates []Candidate) *image.RGBA {
	bounds := gray.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(out, out.Bounds(), gray, bounds.Min, draw.Src)

	for _, c := range candidates {
		outlineRect(out, c.X, c.Y, c.Width, c.Height, fillColor(c.FillFraction))
	}
	return out
}

// fillColor maps a fill fraction onto a green-to-red hue ramp.
func fillColor(fill float64) color.RGBA {
	if fill < 0 {
		fill = 0
	}
	if fill > 1 {
		fill = 1
	}
	// Hue 120 (green) down to 0 (red).
	c := colorful.Hsv(120*(1-fill), 1, 1)
	r, g, b := c.RGB255()
	return color.RGBA{R: r, G: g, B: b, A: 255}
}

func outlineRect(img *image.RGBA, x, y, w, h int, c color.RGBA) {
	bounds := img.Bounds()
	set := func(px, py int) {
		if px >= bounds.Min.X && px < bounds.Max.X && py >= bounds.Min.Y && py < bounds.Max.Y {
			img.SetRGBA(px, py, c)
		}
	}
	for px := x; px < x+w; px++ {
		set(px, y)
		set(px, y+h-1)
	}
	for py := y; py < y+h; py++ {
		set(x, py)
		set(x+w-1, py)
	}
}
