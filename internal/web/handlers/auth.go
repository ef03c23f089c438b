package handlers

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/kozaktomas/face-login/internal/faceauth"
	"github.com/kozaktomas/face-login/internal/fingerprint"
)

// AuthHandler handles face registration and login
type AuthHandler struct {
	enroller      *faceauth.Enroller
	authenticator *faceauth.Authenticator
	extractor     faceauth.Extractor
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(enroller *faceauth.Enroller, authenticator *faceauth.Authenticator, extractor faceauth.Extractor) *AuthHandler {
	return &AuthHandler{
		enroller:      enroller,
		authenticator: authenticator,
		extractor:     extractor,
	}
}

// RegisterRequest is the body of a registration request
type RegisterRequest struct {
	Username string `json:"username"`
	Image    string `json:"image"`
}

// LoginRequest is the body of a login request, also used for stream frames
type LoginRequest struct {
	Image string `json:"image"`
}

// HistoryEntry is one successful login as returned by the API
type HistoryEntry struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Timestamp time.Time `json:"timestamp"`
}

// HistoryResponse is the body of the login history answer
type HistoryResponse struct {
	Success bool           `json:"success"`
	History []HistoryEntry `json:"history"`
}

// extract decodes the image payload and runs the extractor over it. Problems
// with the payload end up in the returned Extraction.
func (h *AuthHandler) extract(ctx context.Context, payload string) (faceauth.Extraction, error) {
	data, err := fingerprint.DecodeDataURL(payload)
	if err != nil {
		return faceauth.Extraction{Err: err}, nil
	}
	return h.extractor.Extract(ctx, data)
}

// Register handles face enrollment
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	status, resp := h.register(r.Context(), req)
	respondJSON(w, status, resp)
}

func (h *AuthHandler) register(ctx context.Context, req RegisterRequest) (int, FaceResponse) {
	var ex faceauth.Extraction
	// Skip the extractor round-trip when the name is going to be rejected anyway.
	if _, err := faceauth.ValidateName(req.Username); err == nil {
		var extractErr error
		if ex, extractErr = h.extract(ctx, req.Image); extractErr != nil {
			return h.fail("register", req.Username, extractErr, "")
		}
	}

	result, err := h.enroller.Enroll(ctx, req.Username, ex)
	if err != nil {
		return h.fail("register", req.Username, err, "No face detected. Please try again with clearer face image.")
	}

	log.Printf("Registered identity %q (%d dimensions)", sanitizeForLog(result.Name), result.Dim)
	return http.StatusOK, FaceResponse{Success: true, Message: "User registered successfully", Username: result.Name}
}

// Login handles face login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	status, resp := h.login(r.Context(), req)
	respondJSON(w, status, resp)
}

func (h *AuthHandler) login(ctx context.Context, req LoginRequest) (int, FaceResponse) {
	ex, err := h.extract(ctx, req.Image)
	if err != nil {
		return h.fail("login", "", err, "")
	}

	result, err := h.authenticator.Authenticate(ctx, ex)
	if err != nil {
		return h.fail("login", "", err, "No face detected")
	}

	distance := result.Distance
	return http.StatusOK, FaceResponse{Success: true, Username: result.Name, Distance: &distance}
}

func (h *AuthHandler) fail(op, name string, err error, noFaceMessage string) (int, FaceResponse) {
	status, resp, unexpected := outcome(err, noFaceMessage)
	if unexpected && !errors.Is(err, context.Canceled) {
		if name != "" {
			log.Printf("%s %q failed: %v", op, sanitizeForLog(name), err)
		} else {
			log.Printf("%s failed: %v", op, err)
		}
	}
	return status, resp
}

// LoginHistory returns the most recent successful logins, newest first
func (h *AuthHandler) LoginHistory(w http.ResponseWriter, r *http.Request) {
	entries, err := h.authenticator.RecentLogins(r.Context())
	if err != nil {
		log.Printf("login history failed: %v", err)
		respondError(w, http.StatusInternalServerError, "failed to load login history")
		return
	}

	history := make([]HistoryEntry, len(entries))
	for i, e := range entries {
		history[i] = HistoryEntry{ID: e.ID, Username: e.Name, Timestamp: e.Timestamp}
	}
	respondJSON(w, http.StatusOK, HistoryResponse{Success: true, History: history})
}
