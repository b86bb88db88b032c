package imaging

import (
	"image"

	"gonum.org/v1/gonum/stat"
)

// IntensityStats reports the mean and standard deviation of pixel
// intensities over a grayscale buffer. The standard deviation is the
// contrast measure used by sheet format validation.
func IntensityStats(src *image.Gray) (mean, stddev float64) {
	bounds := src.Bounds()
	values := make([]float64, 0, bounds.Dx()*bounds.Dy())
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			values = append(values, float64(src.GrayAt(x, y).Y))
		}
	}
	return stat.MeanStdDev(values, nil)
}

// LaplacianVariance measures image sharpness as the variance of the
// response of a 3×3 Laplacian kernel. Blurry sheets have little
// high-frequency content and score low; a sharp scan of a printed sheet
// typically scores in the hundreds.
func LaplacianVariance(src *image.Gray) float64 {
	bounds := src.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()
	if width < 3 || height < 3 {
		return 0
	}

	at := func(x, y int) float64 {
		return float64(src.GrayAt(bounds.Min.X+x, bounds.Min.Y+y).Y)
	}

	responses := make([]float64, 0, (width-2)*(height-2))
	for y := 1; y < height-1; y++ {
		for x := 1; x < width-1; x++ {
			lap := at(x-1, y) + at(x+1, y) + at(x, y-1) + at(x, y+1) - 4*at(x, y)
			responses = append(responses, lap)
		}
	}
	return stat.Variance(responses, nil)
}
