package fingerprint

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kozaktomas/face-login/internal/faceauth"
)

func newEmbeddingServer(t *testing.T, status int, resp any) (*httptest.Server, *int) {
	t.Helper()
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if r.Method != http.MethodPost || r.URL.Path != "/embed/face" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			t.Errorf("request has no file part: %v", err)
		} else {
			file.Close()
			if ct := header.Header.Get("Content-Type"); ct != "image/png" {
				t.Errorf("file Content-Type = %q, want image/png", ct)
			}
		}
		w.WriteHeader(status)
		if s, ok := resp.(string); ok {
			w.Write([]byte(s))
			return
		}
		json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(server.Close)
	return server, &calls
}

func TestFaceClient_Extract(t *testing.T) {
	img := encodePNG(t, testImage(32, 32))

	t.Run("faces in detection order", func(t *testing.T) {
		server, _ := newEmbeddingServer(t, http.StatusOK, FaceResponse{
			FacesCount: 2,
			Faces: []FaceDetection{
				{FaceIndex: 0, Dim: 2, Embedding: []float32{0.1, 0.2}},
				{FaceIndex: 1, Dim: 2, Embedding: []float32{0.3, 0.4}},
			},
		})

		ex, err := NewFaceClient(server.URL+"/", 0).Extract(context.Background(), img)
		if err != nil {
			t.Fatalf("Extract() error = %v", err)
		}
		if ex.Err != nil {
			t.Fatalf("Extract() image error = %v", ex.Err)
		}
		if ex.Faces() != 2 || ex.Embeddings[0][0] != 0.1 || ex.Embeddings[1][1] != 0.4 {
			t.Errorf("Extract() = %+v", ex.Embeddings)
		}
	})

	t.Run("no faces", func(t *testing.T) {
		server, _ := newEmbeddingServer(t, http.StatusOK, FaceResponse{})

		ex, err := NewFaceClient(server.URL, 0).Extract(context.Background(), img)
		if err != nil || ex.Err != nil || ex.Faces() != 0 {
			t.Errorf("Extract() = %+v, %v; want zero faces", ex, err)
		}
	})

	t.Run("undecodable image never reaches the server", func(t *testing.T) {
		server, calls := newEmbeddingServer(t, http.StatusOK, FaceResponse{})

		ex, err := NewFaceClient(server.URL, 0).Extract(context.Background(), []byte("garbage"))
		if err != nil {
			t.Fatalf("Extract() error = %v", err)
		}
		if !errors.Is(ex.Err, ErrUndecodableImage) {
			t.Errorf("Extract() image error = %v, want ErrUndecodableImage", ex.Err)
		}
		if *calls != 0 {
			t.Errorf("server called %d times, want 0", *calls)
		}
	})

	t.Run("server rejects image", func(t *testing.T) {
		server, _ := newEmbeddingServer(t, http.StatusUnprocessableEntity, `{"detail":"cannot identify image file"}`)

		ex, err := NewFaceClient(server.URL, 0).Extract(context.Background(), img)
		if err != nil {
			t.Fatalf("Extract() error = %v", err)
		}
		if !errors.Is(ex.Err, ErrUndecodableImage) {
			t.Errorf("Extract() image error = %v, want ErrUndecodableImage", ex.Err)
		}
	})

	t.Run("server failure", func(t *testing.T) {
		server, _ := newEmbeddingServer(t, http.StatusInternalServerError, "model not loaded")

		_, err := NewFaceClient(server.URL, 0).Extract(context.Background(), img)
		if !errors.Is(err, faceauth.ErrExtractorUnavailable) {
			t.Errorf("Extract() error = %v, want ErrExtractorUnavailable", err)
		}
		var apiErr *APIError
		if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusInternalServerError {
			t.Errorf("Extract() error does not carry the API status: %v", err)
		}
	})

	t.Run("empty embedding", func(t *testing.T) {
		server, _ := newEmbeddingServer(t, http.StatusOK, FaceResponse{
			FacesCount: 1,
			Faces:      []FaceDetection{{FaceIndex: 0}},
		})

		_, err := NewFaceClient(server.URL, 0).Extract(context.Background(), img)
		if !errors.Is(err, faceauth.ErrExtractorUnavailable) {
			t.Errorf("Extract() error = %v, want ErrExtractorUnavailable", err)
		}
	})
}

func TestFaceClient_ServerDown(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	_, err := NewFaceClient(url, 0).Extract(context.Background(), encodePNG(t, testImage(8, 8)))
	if !errors.Is(err, faceauth.ErrExtractorUnavailable) {
		t.Errorf("Extract() error = %v, want ErrExtractorUnavailable", err)
	}
}

func TestDetectMIMEType(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want string
	}{
		{"jpeg", []byte{0xFF, 0xD8, 0xFF, 0xE0, 0, 0, 0, 0}, "image/jpeg"},
		{"png", []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}, "image/png"},
		{"short", []byte{0xFF}, "application/octet-stream"},
		{"unknown", []byte("GIF89a.."), "application/octet-stream"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := detectMIMEType(tt.data); got != tt.want {
				t.Errorf("detectMIMEType() = %q, want %q", got, tt.want)
			}
		})
	}
}
