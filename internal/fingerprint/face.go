package fingerprint

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/kozaktomas/face-login/internal/faceauth"
)

const defaultEmbeddingURL = "http://localhost:8000"

// FaceClient extracts face embeddings using the embedding server.
type FaceClient struct {
	baseURL string
	maxSide int
	client  *http.Client
}

// NewFaceClient creates a new face embedding client. Images larger than
// maxSide are downscaled before upload.
func NewFaceClient(baseURL string, maxSide int) *FaceClient {
	if baseURL == "" {
		baseURL = defaultEmbeddingURL
	}
	return &FaceClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		maxSide: maxSide,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

// FaceDetection represents a single detected face
type FaceDetection struct {
	FaceIndex int       `json:"face_index"`
	Dim       int       `json:"dim"`
	Embedding []float32 `json:"embedding"`
	BBox      []float64 `json:"bbox"` // [x1, y1, x2, y2]
	DetScore  float64   `json:"det_score"`
}

// FaceResponse represents the response from the face embedding endpoint
type FaceResponse struct {
	FacesCount int             `json:"faces_count"`
	Faces      []FaceDetection `json:"faces"`
	Model      string          `json:"model"`
}

// APIError is a non-200 answer from the embedding server.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error (status %d): %s", e.StatusCode, e.Body)
}

// rejectsImage reports whether the server refused the image itself rather than failing.
func (e *APIError) rejectsImage() bool {
	switch e.StatusCode {
	case http.StatusBadRequest, http.StatusRequestEntityTooLarge, http.StatusUnsupportedMediaType, http.StatusUnprocessableEntity:
		return true
	}
	return false
}

// postMultipartImage constructs a multipart form with the image data and posts it to the given endpoint.
func (c *FaceClient) postMultipartImage(ctx context.Context, endpoint string, imageData []byte) ([]byte, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="image.jpg"`)
	h.Set("Content-Type", detectMIMEType(imageData))
	part, err := writer.CreatePart(h)
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(imageData); err != nil {
		return nil, fmt.Errorf("failed to write image data: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	return body, nil
}

// detectMIMEType detects the MIME type from image data
func detectMIMEType(data []byte) string {
	if len(data) < 8 {
		return "application/octet-stream"
	}
	// JPEG: FF D8 FF
	if data[0] == 0xFF && data[1] == 0xD8 && data[2] == 0xFF {
		return "image/jpeg"
	}
	// PNG: 89 50 4E 47 0D 0A 1A 0A
	if data[0] == 0x89 && data[1] == 0x50 && data[2] == 0x4E && data[3] == 0x47 {
		return "image/png"
	}
	return "application/octet-stream"
}

// ComputeFaceEmbeddings detects faces and computes their embeddings
func (c *FaceClient) ComputeFaceEmbeddings(ctx context.Context, imageData []byte) (*FaceResponse, error) {
	body, err := c.postMultipartImage(ctx, "/embed/face", imageData)
	if err != nil {
		return nil, err
	}

	var faceResp FaceResponse
	if err := json.Unmarshal(body, &faceResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	return &faceResp, nil
}

// Extract implements faceauth.Extractor. The image is validated and prepared
// locally; only failures of the server itself are returned as errors.
func (c *FaceClient) Extract(ctx context.Context, image []byte) (faceauth.Extraction, error) {
	prepared, err := PrepareImage(image, c.maxSide)
	if err != nil {
		return faceauth.Extraction{Err: err}, nil
	}

	resp, err := c.ComputeFaceEmbeddings(ctx, prepared)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return faceauth.Extraction{}, ctxErr
		}
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.rejectsImage() {
			return faceauth.Extraction{Err: fmt.Errorf("%w: %w", ErrUndecodableImage, err)}, nil
		}
		return faceauth.Extraction{}, fmt.Errorf("%w: %w", faceauth.ErrExtractorUnavailable, err)
	}

	embeddings := make([][]float32, 0, len(resp.Faces))
	for _, face := range resp.Faces {
		if len(face.Embedding) == 0 {
			return faceauth.Extraction{}, fmt.Errorf("%w: face %d has an empty embedding",
				faceauth.ErrExtractorUnavailable, face.FaceIndex)
		}
		embeddings = append(embeddings, face.Embedding)
	}
	return faceauth.Extraction{Embeddings: embeddings}, nil
}
