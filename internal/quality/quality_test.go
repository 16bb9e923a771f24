package quality

import (
	"strings"
	"testing"

	"github.com/eventlens/eventlens/internal/imaging"
)

// flatCrop builds a crop where every pixel has the same gray value.
func flatCrop(size int, value uint8) *imaging.Image {
	img := &imaging.Image{
		Pix:    make([]uint8, size*size*3),
		Width:  size,
		Height: size,
	}
	for i := range img.Pix {
		img.Pix[i] = value
	}
	return img
}

// checkerboard builds a high-contrast crop alternating between two gray values.
func checkerboard(size int, low, high uint8) *imaging.Image {
	img := &imaging.Image{
		Pix:    make([]uint8, size*size*3),
		Width:  size,
		Height: size,
	}
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			v := low
			if (x+y)%2 == 0 {
				v = high
			}
			i := (y*size + x) * 3
			img.Pix[i], img.Pix[i+1], img.Pix[i+2] = v, v, v
		}
	}
	return img
}

func TestCheckSharpBrightCrop(t *testing.T) {
	checker := NewChecker(100.0, 40.0)
	result := checker.Check(checkerboard(32, 0, 255))

	if !result.Valid {
		t.Errorf("expected sharp bright crop to pass, issues: %v", result.Issues)
	}
	if len(result.Issues) != 0 {
		t.Errorf("expected no issues, got %v", result.Issues)
	}
	if result.Scores.Blur < 100.0 {
		t.Errorf("expected high blur score for checkerboard, got %f", result.Scores.Blur)
	}
}

func TestCheckBlurryCropAlwaysInvalid(t *testing.T) {
	checker := NewChecker(100.0, 40.0)

	// Flat white: maximally bright but zero edge variance. Blur must reject it
	// regardless of the brightness score.
	result := checker.Check(flatCrop(32, 255))
	if result.Valid {
		t.Error("expected flat crop to be rejected as blurry")
	}
	if result.Scores.Blur != 0 {
		t.Errorf("expected zero blur variance for flat crop, got %f", result.Scores.Blur)
	}
	if len(result.Issues) != 1 || !strings.Contains(result.Issues[0], "blurry") {
		t.Errorf("expected a single blur issue, got %v", result.Issues)
	}
}

func TestCheckDarkCrop(t *testing.T) {
	checker := NewChecker(100.0, 40.0)

	// Sharp but dark: contrast between 0 and 60 keeps edges, mean stays low.
	result := checker.Check(checkerboard(32, 0, 60))
	if result.Valid {
		t.Error("expected dark crop to be rejected")
	}
	if len(result.Issues) != 1 || !strings.Contains(result.Issues[0], "dark") {
		t.Errorf("expected a single darkness issue, got %v", result.Issues)
	}
	if result.Scores.Brightness >= 40.0 {
		t.Errorf("expected brightness below threshold, got %f", result.Scores.Brightness)
	}
}

func TestCheckAccumulatesIssues(t *testing.T) {
	checker := NewChecker(100.0, 40.0)

	// Flat black fails both checks at once.
	result := checker.Check(flatCrop(32, 0))
	if result.Valid {
		t.Error("expected flat black crop to be rejected")
	}
	if len(result.Issues) != 2 {
		t.Errorf("expected both issues reported, got %v", result.Issues)
	}
}

func TestCheckNilCrop(t *testing.T) {
	checker := NewChecker(100.0, 40.0)
	result := checker.Check(nil)
	if result.Valid {
		t.Error("expected nil crop to be rejected")
	}
	if len(result.Issues) != 2 {
		t.Errorf("expected both issues for nil crop, got %v", result.Issues)
	}
}

func TestNewCheckerDefaults(t *testing.T) {
	checker := NewChecker(0, 0)
	if checker.blurThreshold != 100.0 {
		t.Errorf("expected default blur threshold 100.0, got %f", checker.blurThreshold)
	}
	if checker.darknessThreshold != 40.0 {
		t.Errorf("expected default darkness threshold 40.0, got %f", checker.darknessThreshold)
	}
}
