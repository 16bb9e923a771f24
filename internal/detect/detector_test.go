package detect

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/eventlens/eventlens/internal/imaging"
)

// testImage builds a plain RGB image of the given size.
func testImage(width, height int) *imaging.Image {
	return &imaging.Image{
		Pix:    make([]uint8, width*height*3),
		Width:  width,
		Height: height,
	}
}

// fakeDetectServer responds to /detect with the given faces.
func fakeDetectServer(t *testing.T, faces []map[string]any) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/detect" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"faces": faces})
	}))
}

func TestDetectFiltersAndClamps(t *testing.T) {
	server := fakeDetectServer(t, []map[string]any{
		{"bbox": []float64{10, 10, 90, 90}, "score": 0.99},       // kept
		{"bbox": []float64{-20, -20, 60, 60}, "score": 0.95},     // clamped, kept
		{"bbox": []float64{5, 5, 80, 80}, "score": 0.50},         // below confidence
		{"bbox": []float64{10, 10, 25, 25}, "score": 0.99},       // 15px, below min size
		{"bbox": []float64{250, 250, 400, 400}, "score": 0.99},   // outside image, clamps to empty
		{"bbox": []float64{10, 10, 90}, "score": 0.99},           // malformed bbox
	})
	defer server.Close()

	client := NewClient(server.URL, time.Second, Options{})
	detections := client.Detect(context.Background(), testImage(200, 200))

	if len(detections) != 2 {
		t.Fatalf("expected 2 detections, got %d", len(detections))
	}

	first := detections[0]
	if first.Box != (imaging.Box{X1: 10, Y1: 10, X2: 90, Y2: 90}) {
		t.Errorf("unexpected first box: %+v", first.Box)
	}
	if first.Confidence != 0.99 {
		t.Errorf("expected confidence 0.99, got %f", first.Confidence)
	}
	if first.Crop == nil || first.Crop.Width != 160 || first.Crop.Height != 160 {
		t.Errorf("expected 160x160 crop, got %+v", first.Crop)
	}

	second := detections[1]
	if second.Box != (imaging.Box{X1: 0, Y1: 0, X2: 60, Y2: 60}) {
		t.Errorf("expected clamped box, got %+v", second.Box)
	}
}

func TestDetectNoFaces(t *testing.T) {
	server := fakeDetectServer(t, nil)
	defer server.Close()

	client := NewClient(server.URL, time.Second, Options{})
	if detections := client.Detect(context.Background(), testImage(100, 100)); len(detections) != 0 {
		t.Errorf("expected no detections, got %d", len(detections))
	}
}

func TestDetectServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model crashed", http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClient(server.URL, time.Second, Options{})
	if detections := client.Detect(context.Background(), testImage(100, 100)); detections != nil {
		t.Errorf("expected nil on server error, got %v", detections)
	}
}

func TestDetectUnreachableServer(t *testing.T) {
	client := NewClient("http://127.0.0.1:1", 100*time.Millisecond, Options{})
	if detections := client.Detect(context.Background(), testImage(100, 100)); detections != nil {
		t.Errorf("expected nil when sidecar is unreachable, got %v", detections)
	}
}

func TestDetectNilImage(t *testing.T) {
	client := NewClient("http://localhost:8000", time.Second, Options{})
	if detections := client.Detect(context.Background(), nil); detections != nil {
		t.Errorf("expected nil for nil image, got %v", detections)
	}
}

func TestNewClientDefaults(t *testing.T) {
	client := NewClient("http://localhost:8000/", 0, Options{})
	if client.opts.MinConfidence != 0.90 {
		t.Errorf("expected default min confidence 0.90, got %f", client.opts.MinConfidence)
	}
	if client.opts.MinFaceSize != 20 {
		t.Errorf("expected default min face size 20, got %d", client.opts.MinFaceSize)
	}
	if client.opts.CropSize != 160 {
		t.Errorf("expected default crop size 160, got %d", client.opts.CropSize)
	}
	if client.baseURL != "http://localhost:8000" {
		t.Errorf("expected trimmed base URL, got %s", client.baseURL)
	}
}
