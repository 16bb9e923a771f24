// Package detect finds face regions in normalized images. The detection model
// itself runs in an external inference sidecar and is treated as opaque; this
// package handles the transport, confidence and size filtering, bounds
// clamping, and canonical crop extraction.
package detect

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image/jpeg"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/eventlens/eventlens/internal/imaging"
)

// Detection is one face found in an image.
type Detection struct {
	Box        imaging.Box    // pixel coordinates, clamped to image bounds
	Confidence float64        // detector score in [0, 1]
	Crop       *imaging.Image // face crop at the canonical size, nil if extraction failed
}

// Options tune the detection filters. Zero values fall back to defaults.
type Options struct {
	MinConfidence float64 // detections below this score are dropped (default 0.90)
	MinFaceSize   int     // boxes smaller than this after clamping are dropped (default 20)
	CropSize      int     // canonical square crop edge in pixels (default 160)
}

// Client calls the detection endpoint of the inference sidecar.
type Client struct {
	baseURL string
	client  *http.Client
	opts    Options
}

// NewClient creates a detection client for the given sidecar base URL.
func NewClient(baseURL string, timeout time.Duration, opts Options) *Client {
	if opts.MinConfidence <= 0 {
		opts.MinConfidence = 0.90
	}
	if opts.MinFaceSize <= 0 {
		opts.MinFaceSize = 20
	}
	if opts.CropSize <= 0 {
		opts.CropSize = 160
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		opts:    opts,
	}
}

// detectResponse is the sidecar's answer to a detection request.
type detectResponse struct {
	Faces []struct {
		BBox  []float64 `json:"bbox"` // [x1, y1, x2, y2]
		Score float64   `json:"score"`
	} `json:"faces"`
}

// Detect finds faces in the image. It never returns an error: transport or
// model failures are logged and yield an empty result, matching the batch
// pipeline's skip-and-continue handling.
func (c *Client) Detect(ctx context.Context, img *imaging.Image) []Detection {
	if img == nil || img.Width == 0 || img.Height == 0 {
		log.Printf("detect: received empty image")
		return nil
	}

	body, err := c.postImage(ctx, "/detect", img)
	if err != nil {
		log.Printf("detect: request failed: %v", err)
		return nil
	}

	var resp detectResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		log.Printf("detect: failed to parse response: %v", err)
		return nil
	}

	var detections []Detection
	for _, face := range resp.Faces {
		if len(face.BBox) != 4 || face.Score < c.opts.MinConfidence {
			continue
		}

		box := imaging.Box{
			X1: int(face.BBox[0]),
			Y1: int(face.BBox[1]),
			X2: int(face.BBox[2]),
			Y2: int(face.BBox[3]),
		}.Clamp(img.Width, img.Height)

		if box.Width() < c.opts.MinFaceSize || box.Height() < c.opts.MinFaceSize {
			continue
		}

		var crop *imaging.Image
		if raw := img.Crop(box); raw != nil {
			crop = raw.Resize(c.opts.CropSize, c.opts.CropSize)
		}

		detections = append(detections, Detection{
			Box:        box,
			Confidence: face.Score,
			Crop:       crop,
		})
	}

	return detections
}

// postImage encodes the image as JPEG and posts it as a multipart form to the
// given sidecar endpoint.
func (c *Client) postImage(ctx context.Context, endpoint string, img *imaging.Image) ([]byte, error) {
	var jpegBuf bytes.Buffer
	if err := jpeg.Encode(&jpegBuf, img.ToRGBA(), &jpeg.Options{Quality: 90}); err != nil {
		return nil, fmt.Errorf("encoding image: %w", err)
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", "image.jpg")
	if err != nil {
		return nil, fmt.Errorf("creating form file: %w", err)
	}
	if _, err := part.Write(jpegBuf.Bytes()); err != nil {
		return nil, fmt.Errorf("writing image data: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("closing multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, &buf)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(body))
	}
	return body, nil
}
