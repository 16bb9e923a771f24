package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/eventlens/eventlens/internal/pipeline"
)

// fakeSearcher records the last call and returns a canned response.
type fakeSearcher struct {
	resp        *pipeline.SearchResponse
	err         error
	eventID     string
	selfie      []byte
	contentType string
}

func (f *fakeSearcher) Search(_ context.Context, eventID string, selfie []byte, contentType string) (*pipeline.SearchResponse, error) {
	f.eventID = eventID
	f.selfie = selfie
	f.contentType = contentType
	return f.resp, f.err
}

func searchRouter(searcher SelfieSearcher) *chi.Mux {
	r := chi.NewRouter()
	r.Post("/api/v1/events/{eventID}/search", NewSearchHandler(searcher).Search)
	return r
}

// multipartSelfie builds a multipart body with one selfie part.
func multipartSelfie(t *testing.T, fieldName string, contentType string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", `form-data; name="`+fieldName+`"; filename="selfie.jpg"`)
	header.Set("Content-Type", contentType)
	part, err := writer.CreatePart(header)
	if err != nil {
		t.Fatalf("creating multipart part: %v", err)
	}
	if _, err := part.Write(data); err != nil {
		t.Fatalf("writing multipart part: %v", err)
	}
	writer.Close()
	return &buf, writer.FormDataContentType()
}

func TestSearchHandlerSuccess(t *testing.T) {
	searcher := &fakeSearcher{resp: &pipeline.SearchResponse{
		Status:  pipeline.StatusSuccess,
		Message: "Found 1 matching photos",
		EventID: "wedding",
		Results: []pipeline.SearchMatch{
			{PhotoURL: "https://photos.example.com/photos/wedding/a.jpg", Distance: 0.12, Confidence: 0.97},
		},
	}}

	body, contentType := multipartSelfie(t, "selfie", "image/jpeg", []byte("jpeg-bytes"))
	req := httptest.NewRequest("POST", "/api/v1/events/wedding/search", body)
	req.Header.Set("Content-Type", contentType)
	recorder := httptest.NewRecorder()
	searchRouter(searcher).ServeHTTP(recorder, req)

	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", recorder.Code, recorder.Body.String())
	}
	if searcher.eventID != "wedding" {
		t.Errorf("expected event id passed through, got %q", searcher.eventID)
	}
	if string(searcher.selfie) != "jpeg-bytes" {
		t.Errorf("selfie bytes not passed through: %q", searcher.selfie)
	}
	if searcher.contentType != "image/jpeg" {
		t.Errorf("content type not passed through: %q", searcher.contentType)
	}

	var resp pipeline.SearchResponse
	if err := json.Unmarshal(recorder.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if len(resp.Results) != 1 || resp.Results[0].Distance != 0.12 {
		t.Errorf("unexpected response: %+v", resp)
	}
}

func TestSearchHandlerMissingSelfie(t *testing.T) {
	searcher := &fakeSearcher{}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	writer.WriteField("note", "no file here")
	writer.Close()

	req := httptest.NewRequest("POST", "/api/v1/events/wedding/search", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	recorder := httptest.NewRecorder()
	searchRouter(searcher).ServeHTTP(recorder, req)

	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", recorder.Code)
	}
}

func TestSearchHandlerValidationErrorIs400(t *testing.T) {
	searcher := &fakeSearcher{err: &pipeline.ValidationError{Reason: "no face detected in the uploaded image"}}

	body, contentType := multipartSelfie(t, "selfie", "image/jpeg", []byte("jpeg-bytes"))
	req := httptest.NewRequest("POST", "/api/v1/events/wedding/search", body)
	req.Header.Set("Content-Type", contentType)
	recorder := httptest.NewRecorder()
	searchRouter(searcher).ServeHTTP(recorder, req)

	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", recorder.Code)
	}
	var result map[string]string
	if err := json.Unmarshal(recorder.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if result["error"] != "no face detected in the uploaded image" {
		t.Errorf("validation reason must reach the client, got %q", result["error"])
	}
}

func TestSearchHandlerInternalErrorIs500(t *testing.T) {
	searcher := &fakeSearcher{err: errors.New("encoder sidecar unreachable")}

	body, contentType := multipartSelfie(t, "selfie", "image/jpeg", []byte("jpeg-bytes"))
	req := httptest.NewRequest("POST", "/api/v1/events/wedding/search", body)
	req.Header.Set("Content-Type", contentType)
	recorder := httptest.NewRecorder()
	searchRouter(searcher).ServeHTTP(recorder, req)

	if recorder.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", recorder.Code)
	}
	var result map[string]string
	if err := json.Unmarshal(recorder.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if result["error"] == "encoder sidecar unreachable" {
		t.Error("internal error details must not leak to the client")
	}
}
