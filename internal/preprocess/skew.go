package preprocess

import (
	"image"
	"math"
	"sort"

	"github.com/anthonynsimon/bild/transform"
	"gonum.org/v1/gonum/stat"

	omrimg "github.com/sheetscan/omr-engine/internal/imaging"
	"github.com/sheetscan/omr-engine/internal/logger"
)

// DetectSkewAngle estimates the sheet's rotational misalignment in
// degrees.
//
// Edges are extracted with Canny-style detection, straight lines are
// located with a Hough transform, each line's angle is folded into
// (−90°, 90°], and the median of the folded angles is the estimate. An
// image with no detectable lines yields 0.0.
func (p *Processor) DetectSkewAngle(gray *image.Gray) float64 {
	edges := detectEdges(gray, 50, 150)
	angles := houghLineAngles(edges, 100)
	if len(angles) == 0 {
		return 0.0
	}

	sort.Float64s(angles)
	return stat.Quantile(0.5, stat.Empirical, angles, nil)
}

// CorrectSkew rotates the sheet about its center by the detected skew
// angle. Rotation is skipped entirely when the estimate is below the
// configured threshold; small corrections cost more in resampling blur
// than they recover in alignment.
func (p *Processor) CorrectSkew(gray *image.Gray) *image.Gray {
	angle := p.DetectSkewAngle(gray)
	if math.Abs(angle) < p.cfg.SkewThreshold {
		return gray
	}

	logger.WithField("angle", angle).Debug("correcting skew")

	bounds := gray.Bounds()
	pivot := image.Point{X: bounds.Dx() / 2, Y: bounds.Dy() / 2}
	rotated := transform.Rotate(gray, -angle, &transform.RotationOptions{
		ResizeBounds: false,
		Pivot:        &pivot,
	})
	return omrimg.ToGray(rotated)
}

// detectEdges produces a binary edge map using blur, Sobel gradients,
// non-maximum suppression, and hysteresis thresholding.
func detectEdges(gray *image.Gray, thresholdLow, thresholdHigh float64) [][]bool {
	bounds := gray.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	// 3×3 box blur is enough smoothing at sheet resolution.
	smooth := make([][]float64, height)
	for y := 0; y < height; y++ {
		smooth[y] = make([]float64, width)
		for x := 0; x < width; x++ {
			var sum, n float64
			for dy := -1; dy <= 1; dy++ {
				for dx := -1; dx <= 1; dx++ {
					px := clampInt(x+dx, 0, width-1)
					py := clampInt(y+dy, 0, height-1)
					sum += float64(gray.Pix[(py+bounds.Min.Y-gray.Rect.Min.Y)*gray.Stride+(px+bounds.Min.X-gray.Rect.Min.X)])
					n++
				}
			}
			smooth[y][x] = sum / n
		}
	}

	magnitude := make([][]float64, height)
	direction := make([][]float64, height)
	for y := 0; y < height; y++ {
		magnitude[y] = make([]float64, width)
		direction[y] = make([]float64, width)
		for x := 0; x < width; x++ {
			if x == 0 || y == 0 || x == width-1 || y == height-1 {
				continue
			}
			gx := smooth[y-1][x+1] + 2*smooth[y][x+1] + smooth[y+1][x+1] -
				smooth[y-1][x-1] - 2*smooth[y][x-1] - smooth[y+1][x-1]
			gy := smooth[y+1][x-1] + 2*smooth[y+1][x] + smooth[y+1][x+1] -
				smooth[y-1][x-1] - 2*smooth[y-1][x] - smooth[y-1][x+1]
			magnitude[y][x] = math.Sqrt(gx*gx + gy*gy)
			direction[y][x] = math.Atan2(gy, gx)
		}
	}

	// Thin to local maxima along the gradient direction.
	suppressed := make([][]float64, height)
	for y := 0; y < height; y++ {
		suppressed[y] = make([]float64, width)
		for x := 1; x < width-1; x++ {
			if y == 0 || y == height-1 {
				continue
			}
			angle := direction[y][x]
			mag := magnitude[y][x]

			var n1, n2 float64
			switch {
			case (angle >= -math.Pi/8 && angle < math.Pi/8) || angle >= 7*math.Pi/8 || angle < -7*math.Pi/8:
				n1, n2 = magnitude[y][x-1], magnitude[y][x+1]
			case (angle >= math.Pi/8 && angle < 3*math.Pi/8) || (angle >= -7*math.Pi/8 && angle < -5*math.Pi/8):
				n1, n2 = magnitude[y-1][x+1], magnitude[y+1][x-1]
			case (angle >= 3*math.Pi/8 && angle < 5*math.Pi/8) || (angle >= -5*math.Pi/8 && angle < -3*math.Pi/8):
				n1, n2 = magnitude[y-1][x], magnitude[y+1][x]
			default:
				n1, n2 = magnitude[y-1][x-1], magnitude[y+1][x+1]
			}

			if mag >= n1 && mag >= n2 {
				suppressed[y][x] = mag
			}
		}
	}

	edges := make([][]bool, height)
	for y := 0; y < height; y++ {
		edges[y] = make([]bool, width)
		for x := 0; x < width; x++ {
			v := suppressed[y][x]
			if v >= thresholdHigh {
				edges[y][x] = true
			} else if v >= thresholdLow {
				for dy := -1; dy <= 1 && !edges[y][x]; dy++ {
					for dx := -1; dx <= 1; dx++ {
						py := clampInt(y+dy, 0, height-1)
						px := clampInt(x+dx, 0, width-1)
						if suppressed[py][px] >= thresholdHigh {
							edges[y][x] = true
							break
						}
					}
				}
			}
		}
	}

	return edges
}

// houghLineAngles runs a standard rho/theta Hough transform over the edge
// map and returns one angle, in degrees from horizontal folded into
// (−90°, 90°], per accumulator cell reaching voteThreshold.
func houghLineAngles(edges [][]bool, voteThreshold int) []float64 {
	height := len(edges)
	if height == 0 {
		return nil
	}
	width := len(edges[0])

	diag := int(math.Ceil(math.Hypot(float64(width), float64(height))))
	numTheta := 180
	acc := make([]int, numTheta*(2*diag+1))

	sinT := make([]float64, numTheta)
	cosT := make([]float64, numTheta)
	for t := 0; t < numTheta; t++ {
		rad := float64(t) * math.Pi / 180
		sinT[t] = math.Sin(rad)
		cosT[t] = math.Cos(rad)
	}

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			if !edges[y][x] {
				continue
			}
			for t := 0; t < numTheta; t++ {
				rho := int(float64(x)*cosT[t]+float64(y)*sinT[t]+0.5) + diag
				acc[t*(2*diag+1)+rho]++
			}
		}
	}

	var angles []float64
	for t := 0; t < numTheta; t++ {
		for r := 0; r <= 2*diag; r++ {
			if acc[t*(2*diag+1)+r] < voteThreshold {
				continue
			}
			// Theta is the line's normal direction; the line itself runs
			// at theta−90 from horizontal.
			angle := float64(t) - 90
			if angle <= -90 {
				angle += 180
			}
			angles = append(angles, angle)
		}
	}
	return angles
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
