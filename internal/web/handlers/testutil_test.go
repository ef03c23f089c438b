package handlers

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/kozaktomas/face-login/internal/database"
	"github.com/kozaktomas/face-login/internal/database/mock"
	"github.com/kozaktomas/face-login/internal/faceauth"
)

// fakeExtractor answers with canned extractions keyed by the raw image bytes.
type fakeExtractor struct {
	mu      sync.Mutex
	results map[string]faceauth.Extraction
	err     error
	calls   int
}

func newFakeExtractor() *fakeExtractor {
	return &fakeExtractor{results: make(map[string]faceauth.Extraction)}
}

// face registers an image whose frame contains the given embeddings.
func (f *fakeExtractor) face(image string, embeddings ...[]float32) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results[image] = faceauth.Extraction{Embeddings: embeddings}
	return imagePayload(image)
}

func (f *fakeExtractor) Extract(ctx context.Context, image []byte) (faceauth.Extraction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return faceauth.Extraction{}, f.err
	}
	if ex, ok := f.results[string(image)]; ok {
		return ex, nil
	}
	return faceauth.Extraction{Err: errUnknownImage}, nil
}

var errUnknownImage = errors.New("unknown test image")

// imagePayload wraps raw bytes the way the browser sends a captured frame.
func imagePayload(raw string) string {
	return "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString([]byte(raw))
}

// testEnv bundles an auth handler with its in-memory stores.
type testEnv struct {
	identities *mock.MockIdentityStore
	logins     *mock.MockLoginHistory
	extractor  *fakeExtractor
	handler    *AuthHandler
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	identities := mock.NewMockIdentityStore()
	logins := mock.NewMockLoginHistory()
	extractor := newFakeExtractor()
	return &testEnv{
		identities: identities,
		logins:     logins,
		extractor:  extractor,
		handler: NewAuthHandler(
			faceauth.NewEnroller(identities),
			faceauth.NewAuthenticator(identities, logins),
			extractor,
		),
	}
}

func (e *testEnv) enroll(name string, embedding []float32) {
	e.identities.AddIdentity(database.Identity{Name: name, Embedding: embedding})
}

// postJSON sends body as JSON to handler and returns the recorded response.
func postJSON(t *testing.T, handler http.HandlerFunc, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("failed to marshal request: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	recorder := httptest.NewRecorder()
	handler(recorder, req)
	return recorder
}

// requestWithChiParams creates a request with chi URL parameters
func requestWithChiParams(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for key, value := range params {
		rctx.URLParams.Add(key, value)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// parseJSONResponse parses a JSON response body into the target type
func parseJSONResponse(t *testing.T, recorder *httptest.ResponseRecorder, target any) {
	t.Helper()
	if err := json.Unmarshal(recorder.Body.Bytes(), target); err != nil {
		t.Fatalf("failed to parse JSON response: %v\nBody: %s", err, recorder.Body.String())
	}
}

// assertStatusCode checks if the response has the expected status code
func assertStatusCode(t *testing.T, recorder *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if recorder.Code != expected {
		t.Errorf("expected status %d, got %d\nBody: %s", expected, recorder.Code, recorder.Body.String())
	}
}

// assertContentType checks if the response has the expected content type
func assertContentType(t *testing.T, recorder *httptest.ResponseRecorder, expected string) {
	t.Helper()
	ct := recorder.Header().Get("Content-Type")
	if ct != expected {
		t.Errorf("expected Content-Type '%s', got '%s'", expected, ct)
	}
}

// assertJSONError checks if the response is a JSON error with the expected message
func assertJSONError(t *testing.T, recorder *httptest.ResponseRecorder, expectedMessage string) {
	t.Helper()
	var result map[string]string
	if err := json.Unmarshal(recorder.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse error response: %v\nBody: %s", err, recorder.Body.String())
	}
	if result["error"] != expectedMessage {
		t.Errorf("expected error '%s', got '%s'", expectedMessage, result["error"])
	}
}
