package faceauth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/kozaktomas/face-login/internal/database"
)

// EnrollResult describes a newly enrolled identity.
type EnrollResult struct {
	Name       string
	Dim        int
	EnrolledAt time.Time
}

// Enroller registers new identities.
type Enroller struct {
	store database.IdentityWriter
	now   func() time.Time
}

// NewEnroller creates an enroller writing to store.
func NewEnroller(store database.IdentityWriter) *Enroller {
	return &Enroller{store: store, now: time.Now}
}

// Enroll validates the request and stores the single detected face under name.
// Checks run in a fixed order: name, image, face count, then the store's
// duplicate and dimension checks.
func (e *Enroller) Enroll(ctx context.Context, name string, ex Extraction) (EnrollResult, error) {
	name, err := ValidateName(name)
	if err != nil {
		return EnrollResult{}, err
	}
	if ex.Err != nil {
		return EnrollResult{}, fmt.Errorf("%w: %w", ErrInvalidImage, ex.Err)
	}
	switch ex.Faces() {
	case 0:
		return EnrollResult{}, ErrNoFaceDetected
	case 1:
	default:
		return EnrollResult{}, ErrMultipleFacesDetected
	}

	embedding := ex.Embeddings[0]
	if len(embedding) == 0 {
		return EnrollResult{}, fmt.Errorf("%w: empty embedding", ErrInvalidImage)
	}

	identity := database.Identity{Name: name, Embedding: embedding, EnrolledAt: e.now().UTC()}
	if err := e.store.Insert(ctx, identity); err != nil {
		return EnrollResult{}, classifyInsertError(err)
	}

	return EnrollResult{Name: name, Dim: len(embedding), EnrolledAt: identity.EnrolledAt}, nil
}

// ValidateName trims name and checks it can be enrolled.
func ValidateName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" || utf8.RuneCountInString(name) > database.MaxNameLength {
		return "", ErrInvalidName
	}
	return name, nil
}

func classifyInsertError(err error) error {
	switch {
	case errors.Is(err, database.ErrDuplicateIdentity):
		return ErrDuplicateIdentity
	case errors.Is(err, database.ErrEmptyName):
		return ErrInvalidName
	case errors.Is(err, database.ErrDimensionMismatch):
		return fmt.Errorf("%w: %w", ErrInvalidImage, err)
	case errors.Is(err, database.ErrStorage),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return err
	default:
		return fmt.Errorf("%w: %w", ErrStorage, err)
	}
}
