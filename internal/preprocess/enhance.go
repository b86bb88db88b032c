package preprocess

import (
	"image"

	"github.com/anthonynsimon/bild/effect"
	"github.com/disintegration/imaging"

	omrimg "github.com/sheetscan/omr-engine/internal/imaging"
)

// Enhance improves mark/paper separation ahead of bubble detection:
// tile-based contrast equalization with a clip limit, a mild Gaussian blur
// for sensor noise, then a sharpening pass to restore edge definition.
func (p *Processor) Enhance(gray *image.Gray) *image.Gray {
	equalized := p.equalizeLocal(gray)
	blurred := omrimg.ToGray(imaging.Blur(equalized, 0.8))
	sharpened := effect.Sharpen(blurred)
	return omrimg.ToGray(sharpened)
}

// equalizeLocal performs contrast-limited adaptive histogram equalization.
//
// The image is divided into an EqualizeTiles×EqualizeTiles grid. Each tile
// gets its own clipped histogram mapping (counts above clipLimit× the mean
// bin height are clipped and redistributed uniformly), and each pixel is
// remapped by bilinear interpolation between the mappings of the four
// nearest tile centers, which removes the blocking a per-tile remap would
// produce.
func (p *Processor) equalizeLocal(gray *image.Gray) *image.Gray {
	bounds := gray.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	tiles := p.cfg.EqualizeTiles
	if tiles < 1 {
		tiles = 1
	}
	tileW := (width + tiles - 1) / tiles
	tileH := (height + tiles - 1) / tiles

	at := func(x, y int) uint8 {
		return gray.Pix[(y+bounds.Min.Y-gray.Rect.Min.Y)*gray.Stride+(x+bounds.Min.X-gray.Rect.Min.X)]
	}

	// Per-tile clipped CDF mappings.
	mappings := make([][256]uint8, tiles*tiles)
	for ty := 0; ty < tiles; ty++ {
		for tx := 0; tx < tiles; tx++ {
			x0, y0 := tx*tileW, ty*tileH
			x1, y1 := clampInt(x0+tileW, 0, width), clampInt(y0+tileH, 0, height)

			var hist [256]float64
			n := 0.0
			for y := y0; y < y1; y++ {
				for x := x0; x < x1; x++ {
					hist[at(x, y)]++
					n++
				}
			}
			if n == 0 {
				continue
			}

			// Clip and redistribute.
			limit := p.cfg.ClipLimit * n / 256
			var excess float64
			for i := range hist {
				if hist[i] > limit {
					excess += hist[i] - limit
					hist[i] = limit
				}
			}
			share := excess / 256
			for i := range hist {
				hist[i] += share
			}

			var cdf float64
			var m [256]uint8
			for i := range hist {
				cdf += hist[i]
				m[i] = uint8(cdf/n*255 + 0.5)
			}
			mappings[ty*tiles+tx] = m
		}
	}

	dst := image.NewGray(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		// Tile-center coordinates for interpolation.
		fy := (float64(y)-float64(tileH)/2 + 0.5) / float64(tileH)
		ty0 := clampInt(int(fy), 0, tiles-1)
		ty1 := clampInt(ty0+1, 0, tiles-1)
		wy := fy - float64(ty0)
		if wy < 0 {
			wy = 0
		}
		if wy > 1 {
			wy = 1
		}

		for x := 0; x < width; x++ {
			fx := (float64(x)-float64(tileW)/2 + 0.5) / float64(tileW)
			tx0 := clampInt(int(fx), 0, tiles-1)
			tx1 := clampInt(tx0+1, 0, tiles-1)
			wx := fx - float64(tx0)
			if wx < 0 {
				wx = 0
			}
			if wx > 1 {
				wx = 1
			}

			v := at(x, y)
			top := float64(mappings[ty0*tiles+tx0][v])*(1-wx) + float64(mappings[ty0*tiles+tx1][v])*wx
			bottom := float64(mappings[ty1*tiles+tx0][v])*(1-wx) + float64(mappings[ty1*tiles+tx1][v])*wx
			dst.Pix[y*dst.Stride+x] = uint8(top*(1-wy) + bottom*wy + 0.5)
		}
	}

	return dst
}
