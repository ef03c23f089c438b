package faceauth

import (
	"errors"

	"github.com/kozaktomas/face-login/internal/database"
)

// Outcomes of enrollment and authentication. Everything except ErrStorage and
// ErrExtractorUnavailable is an expected result of user input.
var (
	ErrInvalidName           = errors.New("username is required")
	ErrInvalidImage          = errors.New("invalid image data")
	ErrNoFaceDetected        = errors.New("no face detected")
	ErrMultipleFacesDetected = errors.New("multiple faces detected")
	ErrNoEnrolledIdentities  = errors.New("no registered users")
	ErrNotRecognized         = errors.New("face not recognized")

	// ErrExtractorUnavailable means the feature extractor could not be reached
	// or failed on its side; the image itself may be fine.
	ErrExtractorUnavailable = errors.New("face extractor unavailable")

	ErrDuplicateIdentity = database.ErrDuplicateIdentity
	ErrStorage           = database.ErrStorage
)
