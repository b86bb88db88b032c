package imaging

import "image"

// FillHoles closes enclosed background regions in a binary image.
//
// Background pixels reachable from the image border stay background;
// every other background pixel is enclosed by foreground and becomes
// foreground. Adaptive thresholding turns large solid marks into rings
// because their interior is no darker than its local mean; filling the
// holes restores them to solid components so area and circularity
// describe the whole mark.
func FillHoles(binary *image.Gray) *image.Gray {
	bounds := binary.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	bg := func(x, y int) bool {
		return binary.Pix[(y+bounds.Min.Y-binary.Rect.Min.Y)*binary.Stride+(x+bounds.Min.X-binary.Rect.Min.X)] < 128
	}

	outside := make([]bool, width*height)
	stack := make([]image.Point, 0, 2*(width+height))
	for x := 0; x < width; x++ {
		if bg(x, 0) {
			stack = append(stack, image.Point{X: x, Y: 0})
		}
		if bg(x, height-1) {
			stack = append(stack, image.Point{X: x, Y: height - 1})
		}
	}
	for y := 0; y < height; y++ {
		if bg(0, y) {
			stack = append(stack, image.Point{X: 0, Y: y})
		}
		if bg(width-1, y) {
			stack = append(stack, image.Point{X: width - 1, Y: y})
		}
	}

	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if p.X < 0 || p.X >= width || p.Y < 0 || p.Y >= height {
			continue
		}
		if outside[p.Y*width+p.X] || !bg(p.X, p.Y) {
			continue
		}
		outside[p.Y*width+p.X] = true
		stack = append(stack,
			image.Point{X: p.X - 1, Y: p.Y},
			image.Point{X: p.X + 1, Y: p.Y},
			image.Point{X: p.X, Y: p.Y - 1},
			image.Point{X: p.X, Y: p.Y + 1})
	}

	dst := image.NewGray(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			if !bg(x, y) || !outside[y*width+x] {
				dst.Pix[y*dst.Stride+x] = 255
			}
		}
	}
	return dst
}
