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

// encodePNG renders a width x height image filled with the given color.
func encodePNG(t *testing.T, width, height int, fill color.Color) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, fill)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("failed to encode test PNG: %v", err)
	}
	return buf.Bytes()
}

func writeTempFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, data, 0600); err != nil {
		t.Fatalf("failed to write temp file: %v", err)
	}
	return path
}

func TestLoadBytesValid(t *testing.T) {
	loader := NewLoader(LoaderOptions{})
	data := encodePNG(t, 200, 150, color.RGBA{R: 120, G: 80, B: 40, A: 255})

	img := loader.LoadBytes(data)
	if img == nil {
		t.Fatal("expected image, got nil")
	}
	if img.Width != 200 || img.Height != 150 {
		t.Errorf("expected 200x150, got %dx%d", img.Width, img.Height)
	}

	r, g, b := img.RGB(10, 10)
	if r != 120 || g != 80 || b != 40 {
		t.Errorf("unexpected pixel values: %d %d %d", r, g, b)
	}
}

func TestLoadBytesRejectsTooSmall(t *testing.T) {
	loader := NewLoader(LoaderOptions{MinDimension: 100})
	data := encodePNG(t, 50, 50, color.White)

	if img := loader.LoadBytes(data); img != nil {
		t.Error("expected nil for image below minimum dimension")
	}

	// One side below the minimum is enough to reject.
	data = encodePNG(t, 200, 50, color.White)
	if img := loader.LoadBytes(data); img != nil {
		t.Error("expected nil for image with one side below minimum")
	}
}

func TestLoadBytesRejectsCorrupt(t *testing.T) {
	loader := NewLoader(LoaderOptions{})

	if img := loader.LoadBytes([]byte("definitely not an image")); img != nil {
		t.Error("expected nil for corrupt data")
	}
	if img := loader.LoadBytes(nil); img != nil {
		t.Error("expected nil for empty data")
	}

	// Valid header with a truncated body.
	data := encodePNG(t, 200, 200, color.White)
	if img := loader.LoadBytes(data[:len(data)/2]); img != nil {
		t.Error("expected nil for truncated data")
	}
}

func TestLoadBytesDownsamples(t *testing.T) {
	loader := NewLoader(LoaderOptions{MaxDimension: 100, MinDimension: 10})
	data := encodePNG(t, 200, 120, color.RGBA{R: 10, G: 200, B: 30, A: 255})

	img := loader.LoadBytes(data)
	if img == nil {
		t.Fatal("expected image, got nil")
	}
	if img.Width != 100 || img.Height != 60 {
		t.Errorf("expected 100x60 after downsampling, got %dx%d", img.Width, img.Height)
	}
}

func TestLoadPathExtensionAllowList(t *testing.T) {
	loader := NewLoader(LoaderOptions{})
	data := encodePNG(t, 200, 200, color.White)

	path := writeTempFile(t, "photo.txt", data)
	if img := loader.LoadPath(path); img != nil {
		t.Error("expected nil for disallowed extension")
	}

	path = writeTempFile(t, "photo.png", data)
	if img := loader.LoadPath(path); img == nil {
		t.Error("expected image for allowed extension")
	}
}

func TestLoadPathFileSizeLimit(t *testing.T) {
	loader := NewLoader(LoaderOptions{MaxFileSizeMB: 15})
	// Construct a loader with a tiny limit by going through LoadBytes, where
	// the byte length check applies directly.
	small := NewLoader(LoaderOptions{})
	small.maxFileSize = 10

	data := encodePNG(t, 200, 200, color.White)
	if img := small.LoadBytes(data); img != nil {
		t.Error("expected nil for oversized payload")
	}
	if img := loader.LoadBytes(data); img == nil {
		t.Error("expected image within size limit")
	}
}

func TestLoadBatchSkipsInvalid(t *testing.T) {
	loader := NewLoader(LoaderOptions{})
	valid := writeTempFile(t, "good.png", encodePNG(t, 200, 200, color.White))
	corrupt := writeTempFile(t, "bad.png", []byte("junk"))
	missing := filepath.Join(t.TempDir(), "missing.png")

	images, skipped := loader.LoadBatch([]string{valid, corrupt, missing})
	if len(images) != 1 {
		t.Errorf("expected 1 loaded image, got %d", len(images))
	}
	if skipped != 2 {
		t.Errorf("expected 2 skipped, got %d", skipped)
	}
}

func TestBoxClamp(t *testing.T) {
	tests := []struct {
		name string
		box  Box
		want Box
	}{
		{"inside", Box{10, 10, 50, 50}, Box{10, 10, 50, 50}},
		{"negative origin", Box{-5, -10, 50, 50}, Box{0, 0, 50, 50}},
		{"overflow", Box{10, 10, 500, 300}, Box{10, 10, 100, 80}},
		{"fully outside", Box{-20, -20, -5, -5}, Box{0, 0, 0, 0}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := tc.box.Clamp(100, 80)
			if got != tc.want {
				t.Errorf("Clamp() = %+v, want %+v", got, tc.want)
			}
		})
	}
}

func TestCropAndResize(t *testing.T) {
	src := FromImage(image.NewRGBA(image.Rect(0, 0, 100, 100)))

	crop := src.Crop(Box{10, 20, 60, 80})
	if crop == nil {
		t.Fatal("expected crop, got nil")
	}
	if crop.Width != 50 || crop.Height != 60 {
		t.Errorf("expected 50x60 crop, got %dx%d", crop.Width, crop.Height)
	}

	if degenerate := src.Crop(Box{60, 60, 60, 60}); degenerate != nil {
		t.Error("expected nil for degenerate crop")
	}

	resized := crop.Resize(160, 160)
	if resized.Width != 160 || resized.Height != 160 {
		t.Errorf("expected 160x160, got %dx%d", resized.Width, resized.Height)
	}
}

func TestApplyOrientation(t *testing.T) {
	// 2x1 image: red then green pixel.
	src := image.NewRGBA(image.Rect(0, 0, 2, 1))
	src.Set(0, 0, color.RGBA{R: 255, A: 255})
	src.Set(1, 0, color.RGBA{G: 255, A: 255})

	// Rotating 90 degrees clockwise puts red at the top right.
	rotated := applyOrientation(src, 6)
	bounds := rotated.Bounds()
	if bounds.Dx() != 1 || bounds.Dy() != 2 {
		t.Fatalf("expected 1x2 after rotation, got %dx%d", bounds.Dx(), bounds.Dy())
	}
	r, _, _, _ := rotated.At(0, 0).RGBA()
	if r>>8 != 255 {
		t.Errorf("expected red pixel at top after rotation, got r=%d", r>>8)
	}

	// Orientation 1 is a no-op.
	if applyOrientation(src, 1) != image.Image(src) {
		t.Error("expected orientation 1 to return the source image")
	}
}

func TestExifOrientationMissing(t *testing.T) {
	if got := exifOrientation([]byte("no exif here")); got != 1 {
		t.Errorf("expected orientation 1 for data without EXIF, got %d", got)
	}
	if got := exifOrientation(encodePNG(t, 10, 10, color.White)); got != 1 {
		t.Errorf("expected orientation 1 for PNG, got %d", got)
	}
}
