package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/kozaktomas/face-login/internal/faceauth"
	"github.com/kozaktomas/face-login/internal/fingerprint"
)

// errInvalidRequestBody is a shared error message for invalid JSON request bodies.
const errInvalidRequestBody = "invalid request body"

// maxRequestBody bounds JSON bodies; a data URL of a full HD JPEG is well below this.
const maxRequestBody = 16 << 20

// Outcome codes returned alongside success=false.
const (
	codeInvalidName          = "invalid_name"
	codeInvalidImage         = "invalid_image"
	codeNoFace               = "no_face"
	codeMultipleFaces        = "multiple_faces"
	codeDuplicate            = "duplicate"
	codeNoIdentities         = "no_identities"
	codeNotRecognized        = "not_recognized"
	codeExtractorUnavailable = "extractor_unavailable"
	codeInternal             = "internal_error"
	codeInvalidRequest       = "invalid_request"
)

// sanitizeForLog removes newlines and carriage returns to prevent log injection.
func sanitizeForLog(s string) string {
	return strings.NewReplacer("\n", "", "\r", "").Replace(s)
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// respondError sends an error response.
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// decodeJSON reads a bounded JSON body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return false
	}
	return true
}

// FaceResponse is the body of register and login answers.
type FaceResponse struct {
	Success  bool     `json:"success"`
	Message  string   `json:"message,omitempty"`
	Code     string   `json:"code,omitempty"`
	Username string   `json:"username,omitempty"`
	Distance *float64 `json:"distance,omitempty"`
}

// outcome maps an enrollment or login error to an HTTP status and response.
// Expected outcomes answer 200; unexpected is true for failures worth logging.
func outcome(err error, noFaceMessage string) (status int, resp FaceResponse, unexpected bool) {
	fail := func(code, message string) FaceResponse {
		return FaceResponse{Success: false, Code: code, Message: message}
	}

	switch {
	case errors.Is(err, faceauth.ErrInvalidName):
		return http.StatusOK, fail(codeInvalidName, "Username is required"), false
	case errors.Is(err, fingerprint.ErrEmptyImage):
		return http.StatusOK, fail(codeInvalidImage, "Image data is required"), false
	case errors.Is(err, faceauth.ErrInvalidImage):
		return http.StatusOK, fail(codeInvalidImage, "Invalid image data"), false
	case errors.Is(err, faceauth.ErrNoFaceDetected):
		return http.StatusOK, fail(codeNoFace, noFaceMessage), false
	case errors.Is(err, faceauth.ErrMultipleFacesDetected):
		return http.StatusOK, fail(codeMultipleFaces, "Multiple faces detected. Please ensure only your face is visible."), false
	case errors.Is(err, faceauth.ErrDuplicateIdentity):
		return http.StatusOK, fail(codeDuplicate, "Username already exists"), false
	case errors.Is(err, faceauth.ErrNoEnrolledIdentities):
		return http.StatusOK, fail(codeNoIdentities, "No registered users"), false
	case errors.Is(err, faceauth.ErrNotRecognized):
		return http.StatusOK, fail(codeNotRecognized, "Face not recognized"), false
	case errors.Is(err, faceauth.ErrExtractorUnavailable):
		return http.StatusBadGateway, fail(codeExtractorUnavailable, "Face recognition service unavailable"), true
	default:
		return http.StatusInternalServerError, fail(codeInternal, "Internal server error"), true
	}
}

// HealthCheck handles the health check endpoint.
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}
