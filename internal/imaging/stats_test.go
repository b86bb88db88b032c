package imaging

import (
	"image"
	"math"
	"testing"
)

func TestIntensityStats_Uniform(t *testing.T) {
	img := whiteGray(20, 20, 140)

	mean, stddev := IntensityStats(img)
	if mean != 140 {
		t.Errorf("mean: got %v, want 140", mean)
	}
	if stddev != 0 {
		t.Errorf("stddev: got %v, want 0", stddev)
	}
}

func TestIntensityStats_Checkerboard(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 20, 20))
	for y := 0; y < 20; y++ {
		for x := 0; x < 20; x++ {
			if (x+y)%2 == 0 {
				img.Pix[y*img.Stride+x] = 255
			}
		}
	}

	mean, stddev := IntensityStats(img)
	if math.Abs(mean-127.5) > 0.01 {
		t.Errorf("mean: got %v, want 127.5", mean)
	}
	if stddev < 100 {
		t.Errorf("stddev: got %v, want high contrast (>= 100)", stddev)
	}
}

func TestLaplacianVariance(t *testing.T) {
	flat := whiteGray(20, 20, 128)
	if got := LaplacianVariance(flat); got != 0 {
		t.Errorf("flat image variance: got %v, want 0", got)
	}

	sharp := image.NewGray(image.Rect(0, 0, 20, 20))
	for y := 0; y < 20; y++ {
		for x := 0; x < 20; x++ {
			if (x+y)%2 == 0 {
				sharp.Pix[y*sharp.Stride+x] = 255
			}
		}
	}
	if got := LaplacianVariance(sharp); got < 1000 {
		t.Errorf("checkerboard variance: got %v, want >= 1000", got)
	}

	tiny := whiteGray(2, 2, 128)
	if got := LaplacianVariance(tiny); got != 0 {
		t.Errorf("tiny image variance: got %v, want 0", got)
	}
}
