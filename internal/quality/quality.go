// Package quality rejects face crops that are too blurry or too dark to
// produce a reliable embedding. Both checks run independently so the caller
// can report every failing reason at once.
package quality

import (
	"fmt"

	"github.com/eventlens/eventlens/internal/imaging"
)

// Checker scores face crops against blur and darkness thresholds.
type Checker struct {
	blurThreshold     float64
	darknessThreshold float64
}

// Result holds the outcome of a quality check.
type Result struct {
	Valid  bool
	Issues []string
	Scores Scores
}

// Scores contains the raw measurements behind a Result.
type Scores struct {
	Blur       float64 // variance of the Laplacian over the grayscale crop
	Brightness float64 // mean HSV value channel
}

// NewChecker creates a Checker. Non-positive thresholds fall back to the
// defaults (blur 100.0, darkness 40.0).
func NewChecker(blurThreshold, darknessThreshold float64) *Checker {
	if blurThreshold <= 0 {
		blurThreshold = 100.0
	}
	if darknessThreshold <= 0 {
		darknessThreshold = 40.0
	}
	return &Checker{
		blurThreshold:     blurThreshold,
		darknessThreshold: darknessThreshold,
	}
}

// Check validates a face crop. A nil or empty crop fails both checks.
func (c *Checker) Check(crop *imaging.Image) Result {
	result := Result{Valid: true}

	blurScore := laplacianVariance(crop)
	result.Scores.Blur = blurScore
	if blurScore < c.blurThreshold {
		result.Valid = false
		result.Issues = append(result.Issues, fmt.Sprintf("too blurry (score %.1f < %.1f)", blurScore, c.blurThreshold))
	}

	brightness := meanBrightness(crop)
	result.Scores.Brightness = brightness
	if brightness < c.darknessThreshold {
		result.Valid = false
		result.Issues = append(result.Issues, fmt.Sprintf("too dark (score %.1f < %.1f)", brightness, c.darknessThreshold))
	}

	return result
}

// laplacianVariance measures sharpness as the variance of a 4-neighbor
// Laplacian over the grayscale crop. Low variance means few edges: blur.
func laplacianVariance(img *imaging.Image) float64 {
	if img == nil || img.Width < 3 || img.Height < 3 {
		return 0
	}

	gray := grayscale(img)
	w, h := img.Width, img.Height

	lap := make([]float64, 0, (w-2)*(h-2))
	var sum float64
	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			v := gray[y*w+x-1] + gray[y*w+x+1] + gray[(y-1)*w+x] + gray[(y+1)*w+x] - 4*gray[y*w+x]
			lap = append(lap, v)
			sum += v
		}
	}
	if len(lap) == 0 {
		return 0
	}

	mean := sum / float64(len(lap))
	var variance float64
	for _, v := range lap {
		d := v - mean
		variance += d * d
	}
	return variance / float64(len(lap))
}

// meanBrightness averages the HSV value channel, which for RGB input is
// simply max(R, G, B) per pixel.
func meanBrightness(img *imaging.Image) float64 {
	if img == nil || img.Width == 0 || img.Height == 0 {
		return 0
	}

	var sum float64
	n := img.Width * img.Height
	for i := 0; i < n; i++ {
		r := img.Pix[i*3]
		g := img.Pix[i*3+1]
		b := img.Pix[i*3+2]
		sum += float64(max(r, max(g, b)))
	}
	return sum / float64(n)
}

// grayscale converts the crop to BT.601 luma values.
func grayscale(img *imaging.Image) []float64 {
	gray := make([]float64, img.Width*img.Height)
	for i := range gray {
		r := float64(img.Pix[i*3])
		g := float64(img.Pix[i*3+1])
		b := float64(img.Pix[i*3+2])
		gray[i] = 0.299*r + 0.587*g + 0.114*b
	}
	return gray
}
