package imaging

import "image"

// AdaptiveThreshold binarizes a grayscale buffer against a local mean.
//
// For each pixel the mean intensity of the surrounding window×window
// neighborhood is computed (clamped at the borders); the pixel becomes
// foreground when its intensity is below mean−offset. With invert=true the
// output marks ink as white (255) on a black background, which is the
// orientation the contour finder expects.
//
// The local means are computed through a summed-area table, so the cost is
// independent of the window size.
//
// Parameters:
//   - src: Grayscale input buffer. Not modified.
//   - window: Side length of the averaging neighborhood in pixels. Odd
//     values center the window on the pixel. Typical: 11.
//   - offset: Constant subtracted from the local mean before comparison.
//     Larger values suppress faint marks. Typical: 2.
//   - invert: When true, dark pixels map to 255 and light pixels to 0.
func AdaptiveThreshold(src *image.Gray, window int, offset float64, invert bool) *image.Gray {
	bounds := src.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	if window < 3 {
		window = 3
	}
	half := window / 2

	// Summed-area table, one row/column of zero padding.
	integral := make([]float64, (width+1)*(height+1))
	stride := width + 1
	for y := 0; y < height; y++ {
		var rowSum float64
		for x := 0; x < width; x++ {
			rowSum += float64(src.Pix[(y+bounds.Min.Y-src.Rect.Min.Y)*src.Stride+(x+bounds.Min.X-src.Rect.Min.X)])
			integral[(y+1)*stride+(x+1)] = integral[y*stride+(x+1)] + rowSum
		}
	}

	dst := image.NewGray(image.Rect(0, 0, width, height))

	var fg, bg uint8 = 255, 0
	if !invert {
		fg, bg = 0, 255
	}

	for y := 0; y < height; y++ {
		y1 := y - half
		y2 := y + half
		if y1 < 0 {
			y1 = 0
		}
		if y2 >= height {
			y2 = height - 1
		}
		for x := 0; x < width; x++ {
			x1 := x - half
			x2 := x + half
			if x1 < 0 {
				x1 = 0
			}
			if x2 >= width {
				x2 = width - 1
			}

			area := float64((x2 - x1 + 1) * (y2 - y1 + 1))
			sum := integral[(y2+1)*stride+(x2+1)] -
				integral[y1*stride+(x2+1)] -
				integral[(y2+1)*stride+x1] +
				integral[y1*stride+x1]
			mean := sum / area

			v := float64(src.Pix[(y+bounds.Min.Y-src.Rect.Min.Y)*src.Stride+(x+bounds.Min.X-src.Rect.Min.X)])
			if v < mean-offset {
				dst.Pix[y*dst.Stride+x] = fg
			} else {
				dst.Pix[y*dst.Stride+x] = bg
			}
		}
	}

	return dst
}
