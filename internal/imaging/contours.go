package imaging

import (
	"image"
	"math"
)

// Contour is a connected component of foreground pixels in a binary image.
//
// Area is the pixel count of the component. Perimeter is estimated from the
// count of boundary pixels with a correction factor for the staircase
// overshoot of 8-connected digital boundaries, so that circularity
// (4π·area/perimeter²) lands near 1.0 for digital disks.
type Contour struct {
	Points    []image.Point
	Bounds    image.Rectangle
	Area      float64
	Perimeter float64
	CentroidX float64
	CentroidY float64
}

// Circularity returns the shape metric 4π·area/perimeter², 1.0 for a
// perfect circle and lower for elongated or ragged shapes.
func (c Contour) Circularity() float64 {
	if c.Perimeter <= 0 {
		return 0
	}
	return 4 * math.Pi * c.Area / (c.Perimeter * c.Perimeter)
}

// boundaryCorrection compensates for digital boundaries counting more
// steps than the true Euclidean contour length.
const boundaryCorrection = 1.1

// FindContours finds connected components of foreground pixels (intensity
// ≥ 128) in a binary image using 8-connected flood fill.
//
// Components smaller than minPixels are discarded as noise. The flood fill
// is stack-based rather than recursive to avoid stack overflow on large
// components.
func FindContours(binary *image.Gray, minPixels int) []Contour {
	bounds := binary.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	fg := func(x, y int) bool {
		if x < 0 || x >= width || y < 0 || y >= height {
			return false
		}
		return binary.Pix[(y+bounds.Min.Y-binary.Rect.Min.Y)*binary.Stride+(x+bounds.Min.X-binary.Rect.Min.X)] >= 128
	}

	visited := make([]bool, width*height)
	var contours []Contour

	for sy := 0; sy < height; sy++ {
		for sx := 0; sx < width; sx++ {
			if !fg(sx, sy) || visited[sy*width+sx] {
				continue
			}

			points := make([]image.Point, 0, 64)
			stack := []image.Point{{X: sx, Y: sy}}
			for len(stack) > 0 {
				p := stack[len(stack)-1]
				stack = stack[:len(stack)-1]

				if !fg(p.X, p.Y) || visited[p.Y*width+p.X] {
					continue
				}
				visited[p.Y*width+p.X] = true
				points = append(points, p)

				for dy := -1; dy <= 1; dy++ {
					for dx := -1; dx <= 1; dx++ {
						if dx == 0 && dy == 0 {
							continue
						}
						nx, ny := p.X+dx, p.Y+dy
						if nx >= 0 && nx < width && ny >= 0 && ny < height && fg(nx, ny) && !visited[ny*width+nx] {
							stack = append(stack, image.Point{X: nx, Y: ny})
						}
					}
				}
			}

			if len(points) < minPixels {
				continue
			}
			contours = append(contours, summarize(points, fg))
		}
	}

	return contours
}

func summarize(points []image.Point, fg func(x, y int) bool) Contour {
	minX, minY := points[0].X, points[0].Y
	maxX, maxY := points[0].X, points[0].Y
	var sumX, sumY float64
	boundary := 0

	for _, p := range points {
		if p.X < minX {
			minX = p.X
		}
		if p.X > maxX {
			maxX = p.X
		}
		if p.Y < minY {
			minY = p.Y
		}
		if p.Y > maxY {
			maxY = p.Y
		}
		sumX += float64(p.X)
		sumY += float64(p.Y)

		// Boundary pixel: at least one 4-neighbor is background.
		if !fg(p.X-1, p.Y) || !fg(p.X+1, p.Y) || !fg(p.X, p.Y-1) || !fg(p.X, p.Y+1) {
			boundary++
		}
	}

	n := float64(len(points))
	return Contour{
		Points:    points,
		Bounds:    image.Rect(minX, minY, maxX+1, maxY+1),
		Area:      n,
		Perimeter: float64(boundary) * boundaryCorrection,
		CentroidX: sumX / n,
		CentroidY: sumY / n,
	}
}
