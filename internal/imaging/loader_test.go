package imaging

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
)

func writeTestPNG(t *testing.T, dir, name string, width, height int) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.White)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("failed to encode test PNG: %v", err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("failed to write test PNG: %v", err)
	}
	return path
}

func TestImageCache_Load(t *testing.T) {
	dir := t.TempDir()
	path := writeTestPNG(t, dir, "sheet.png", 32, 48)

	cache := NewImageCache()
	img, err := cache.Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if img.Bounds().Dx() != 32 || img.Bounds().Dy() != 48 {
		t.Errorf("dimensions: got %dx%d, want 32x48", img.Bounds().Dx(), img.Bounds().Dy())
	}

	// Second load hits the cache even if the file disappears.
	if err := os.Remove(path); err != nil {
		t.Fatalf("failed to remove test file: %v", err)
	}
	if _, err := cache.Load(path); err != nil {
		t.Errorf("cached load failed after file removal: %v", err)
	}

	cache.Evict(path)
	if _, err := cache.Load(path); err == nil {
		t.Error("expected an error loading an evicted, deleted file")
	}
}

func TestImageCache_Clear(t *testing.T) {
	dir := t.TempDir()
	path := writeTestPNG(t, dir, "sheet.png", 16, 16)

	cache := NewImageCache()
	if _, err := cache.Load(path); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if err := os.Remove(path); err != nil {
		t.Fatalf("failed to remove test file: %v", err)
	}

	cache.Clear()
	if _, err := cache.Load(path); err == nil {
		t.Error("expected an error loading a cleared, deleted file")
	}
}

func TestImageCache_LoadErrors(t *testing.T) {
	dir := t.TempDir()
	cache := NewImageCache()

	if _, err := cache.Load(filepath.Join(dir, "missing.png")); err == nil {
		t.Error("expected an error for a missing file")
	}

	garbage := filepath.Join(dir, "garbage.png")
	if err := os.WriteFile(garbage, []byte("not an image"), 0o644); err != nil {
		t.Fatalf("failed to write garbage file: %v", err)
	}
	if _, err := cache.Load(garbage); err == nil {
		t.Error("expected an error for a non-image file")
	}
}

func TestDecode(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 10, 10))
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("failed to encode PNG: %v", err)
	}

	decoded, err := Decode(buf.Bytes())
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if decoded.Bounds().Dx() != 10 {
		t.Errorf("width: got %d, want 10", decoded.Bounds().Dx())
	}

	if _, err := Decode([]byte("garbage")); err == nil {
		t.Error("expected an error decoding garbage bytes")
	}
}

func TestToGray(t *testing.T) {
	rgba := image.NewRGBA(image.Rect(0, 0, 8, 6))
	for y := 0; y < 6; y++ {
		for x := 0; x < 8; x++ {
			rgba.Set(x, y, color.RGBA{R: 200, G: 100, B: 50, A: 255})
		}
	}

	gray := ToGray(rgba)
	if gray.Bounds().Dx() != 8 || gray.Bounds().Dy() != 6 {
		t.Errorf("dimensions: got %dx%d, want 8x6", gray.Bounds().Dx(), gray.Bounds().Dy())
	}

	// Converting a grayscale image returns an independent copy.
	src := whiteGray(5, 5, 100)
	copied := ToGray(src)
	src.Pix[0] = 7
	if copied.Pix[0] != 100 {
		t.Error("ToGray did not copy the grayscale input")
	}
}

func TestCloneGray_SubImage(t *testing.T) {
	src := whiteGray(10, 10, 0)
	drawRect(src, 4, 4, 6, 6, 200)

	sub := src.SubImage(image.Rect(4, 4, 8, 8)).(*image.Gray)
	clone := CloneGray(sub)

	if clone.Bounds() != image.Rect(0, 0, 4, 4) {
		t.Errorf("clone bounds: got %v, want (0,0)-(4,4)", clone.Bounds())
	}
	if clone.Pix[0] != 200 {
		t.Errorf("clone origin pixel: got %d, want 200", clone.Pix[0])
	}
}
