package imaging

import (
	"bytes"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"log"
	"os"
	"path/filepath"
	"strings"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// Loader validates and normalizes raw photos into RGB pixel arrays.
// Invalid inputs are rejected by returning nil, never by an error: batch
// ingestion treats each photo independently and skips over bad ones.
type Loader struct {
	maxDimension int
	minDimension int
	maxFileSize  int64
	allowedExts  map[string]bool
}

// LoaderOptions configures a Loader. Zero values fall back to defaults.
type LoaderOptions struct {
	MaxDimension  int // longest side after downsampling (default 1600)
	MinDimension  int // minimum width and height accepted (default 100)
	MaxFileSizeMB int // maximum file size in megabytes (default 15)
}

// NewLoader creates a Loader with the given limits.
func NewLoader(opts LoaderOptions) *Loader {
	if opts.MaxDimension <= 0 {
		opts.MaxDimension = 1600
	}
	if opts.MinDimension <= 0 {
		opts.MinDimension = 100
	}
	if opts.MaxFileSizeMB <= 0 {
		opts.MaxFileSizeMB = 15
	}
	return &Loader{
		maxDimension: opts.MaxDimension,
		minDimension: opts.MinDimension,
		maxFileSize:  int64(opts.MaxFileSizeMB) * 1024 * 1024,
		allowedExts:  map[string]bool{".jpg": true, ".jpeg": true, ".png": true, ".webp": true, ".bmp": true},
	}
}

// LoadPath loads and normalizes an image from disk. Returns nil if the file
// fails the extension allow-list, size cap, or any decode/validation step.
func (l *Loader) LoadPath(path string) *Image {
	ext := strings.ToLower(filepath.Ext(path))
	if !l.allowedExts[ext] {
		log.Printf("imaging: skipping %s: extension %q not allowed", path, ext)
		return nil
	}

	info, err := os.Stat(path)
	if err != nil {
		log.Printf("imaging: cannot stat %s: %v", path, err)
		return nil
	}
	if info.Size() > l.maxFileSize {
		log.Printf("imaging: skipping %s: %d bytes exceeds limit", path, info.Size())
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		log.Printf("imaging: cannot read %s: %v", path, err)
		return nil
	}

	img := l.LoadBytes(data)
	if img == nil {
		log.Printf("imaging: failed to load %s", path)
	}
	return img
}

// LoadBytes loads and normalizes an image from raw bytes (API uploads).
func (l *Loader) LoadBytes(data []byte) *Image {
	if len(data) == 0 {
		return nil
	}
	if int64(len(data)) > l.maxFileSize {
		log.Printf("imaging: rejecting upload of %d bytes, exceeds limit", len(data))
		return nil
	}

	// Cheap header check before the full decode catches most corrupt files
	// and lets tiny images be rejected without decoding all pixels.
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil
	}
	if cfg.Width < l.minDimension || cfg.Height < l.minDimension {
		log.Printf("imaging: rejecting %dx%d image, below %dpx minimum", cfg.Width, cfg.Height, l.minDimension)
		return nil
	}

	decoded, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil
	}

	// Orientation correction is best effort: a broken EXIF block yields
	// orientation 1 and the unrotated pixels are used as-is.
	decoded = applyOrientation(decoded, exifOrientation(data))

	return l.normalize(decoded)
}

// LoadBatch loads a list of files, skipping invalid entries. Returns the
// successfully loaded images and the number of inputs skipped.
func (l *Loader) LoadBatch(paths []string) ([]*Image, int) {
	images := make([]*Image, 0, len(paths))
	skipped := 0
	for _, path := range paths {
		img := l.LoadPath(path)
		if img == nil {
			skipped++
			continue
		}
		images = append(images, img)
	}
	log.Printf("imaging: batch loaded %d of %d files", len(images), len(paths))
	return images, skipped
}

// normalize converts to RGB and downsamples so the longer side fits within
// the configured maximum.
func (l *Loader) normalize(decoded image.Image) *Image {
	bounds := decoded.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w < l.minDimension || h < l.minDimension {
		return nil
	}

	longest := max(w, h)
	if longest <= l.maxDimension {
		return FromImage(decoded)
	}

	scale := float64(l.maxDimension) / float64(longest)
	nw := int(float64(w) * scale)
	nh := int(float64(h) * scale)

	resized := image.NewRGBA(image.Rect(0, 0, nw, nh))
	draw.CatmullRom.Scale(resized, resized.Bounds(), decoded, bounds, draw.Over, nil)
	return FromImage(resized)
}
