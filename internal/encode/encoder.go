// Package encode turns face crops into fixed-length identity embeddings via
// the inference sidecar. Results stay 1:1 with the input: a face that cannot
// be encoded yields a nil vector instead of failing the batch.
package encode

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image/jpeg"
	"io"
	"log"
	"math"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/eventlens/eventlens/internal/detect"
)

// Client calls the embedding endpoint of the inference sidecar.
type Client struct {
	baseURL   string
	client    *http.Client
	dim       int
	batchSize int
}

// NewClient creates an encoder client. dim is the expected embedding
// dimension (default 512); batchSize bounds each sidecar request (default 32).
func NewClient(baseURL string, timeout time.Duration, dim, batchSize int) *Client {
	if dim <= 0 {
		dim = 512
	}
	if batchSize <= 0 {
		batchSize = 32
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		baseURL:   strings.TrimSuffix(baseURL, "/"),
		client:    &http.Client{Timeout: timeout},
		dim:       dim,
		batchSize: batchSize,
	}
}

// Dim returns the embedding dimension this client expects.
func (c *Client) Dim() int {
	return c.dim
}

// encodeResponse is the sidecar's answer to an embedding request.
type encodeResponse struct {
	Dim        int         `json:"dim"`
	Embeddings [][]float32 `json:"embeddings"`
}

// Encode generates embeddings for a batch of detections. The result slice is
// order-preserving and the same length as the input; entries without a usable
// crop, vectors containing NaN/Inf, and whole sub-batches whose request
// failed are all nil.
func (c *Client) Encode(ctx context.Context, detections []detect.Detection) [][]float32 {
	results := make([][]float32, len(detections))
	if len(detections) == 0 {
		return results
	}

	// Only entries carrying a crop are sent to the model.
	var indices []int
	for i := range detections {
		if detections[i].Crop != nil {
			indices = append(indices, i)
		}
	}
	if len(indices) == 0 {
		log.Printf("encode: no usable crops in batch of %d", len(detections))
		return results
	}

	for start := 0; start < len(indices); start += c.batchSize {
		end := min(start+c.batchSize, len(indices))
		sub := indices[start:end]

		embeddings, err := c.encodeSubBatch(ctx, detections, sub)
		if err != nil {
			// Failure isolates to this sub-batch; the entries stay nil.
			log.Printf("encode: sub-batch of %d failed: %v", len(sub), err)
			continue
		}

		for j, idx := range sub {
			if j >= len(embeddings) {
				break
			}
			results[idx] = c.validate(embeddings[j])
		}
	}

	return results
}

// encodeSubBatch posts the crops at the given indices as one multipart
// request and returns the raw embedding vectors.
func (c *Client) encodeSubBatch(ctx context.Context, detections []detect.Detection, indices []int) ([][]float32, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	for n, idx := range indices {
		part, err := writer.CreateFormFile("files", fmt.Sprintf("face_%d.jpg", n))
		if err != nil {
			return nil, fmt.Errorf("creating form file: %w", err)
		}
		var jpegBuf bytes.Buffer
		if err := jpeg.Encode(&jpegBuf, detections[idx].Crop.ToRGBA(), &jpeg.Options{Quality: 90}); err != nil {
			return nil, fmt.Errorf("encoding crop: %w", err)
		}
		if _, err := part.Write(jpegBuf.Bytes()); err != nil {
			return nil, fmt.Errorf("writing crop data: %w", err)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("closing multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/encode", &buf)
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

	var encResp encodeResponse
	if err := json.Unmarshal(body, &encResp); err != nil {
		return nil, fmt.Errorf("parsing response: %w", err)
	}
	return encResp.Embeddings, nil
}

// validate checks dimension and numeric sanity, then L2-normalizes the
// vector. Returns nil for anything unusable.
func (c *Client) validate(raw []float32) []float32 {
	if len(raw) != c.dim {
		log.Printf("encode: dropping vector with dimension %d, expected %d", len(raw), c.dim)
		return nil
	}
	for _, v := range raw {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			log.Printf("encode: dropping vector containing NaN/Inf")
			return nil
		}
	}
	return Normalize(raw)
}

// Normalize returns the L2-normalized copy of a vector. A zero vector is
// returned unchanged.
func Normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return v
	}
	norm := math.Sqrt(sum)
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out
}
