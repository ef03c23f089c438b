package faceauth

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/kozaktomas/face-login/internal/database"
	"github.com/kozaktomas/face-login/internal/facematch"
)

// DefaultAcceptThreshold is the distance below which a probe is accepted.
const DefaultAcceptThreshold = 0.55

// AuthResult is the outcome of a login attempt. Distance is set whenever a
// comparison took place, including rejected attempts; Name and Entry only on success.
type AuthResult struct {
	Name     string
	Distance float64
	Entry    database.LoginEntry
}

// Authenticator identifies a probe face against the enrolled identities and
// records successful logins.
type Authenticator struct {
	identities database.IdentityReader
	logins     database.LoginWriter
	matcher    *facematch.Matcher
	threshold  float64
	now        func() time.Time
}

// Option configures an Authenticator.
type Option func(*Authenticator)

// WithThreshold sets the acceptance threshold. Non-positive values are ignored.
func WithThreshold(threshold float64) Option {
	return func(a *Authenticator) {
		if threshold > 0 {
			a.threshold = threshold
		}
	}
}

// WithMatcher replaces the default Euclidean matcher.
func WithMatcher(m *facematch.Matcher) Option {
	return func(a *Authenticator) {
		if m != nil {
			a.matcher = m
		}
	}
}

// WithClock sets the time source used to stamp login entries.
func WithClock(now func() time.Time) Option {
	return func(a *Authenticator) {
		if now != nil {
			a.now = now
		}
	}
}

// NewAuthenticator creates an authenticator over the given stores.
func NewAuthenticator(identities database.IdentityReader, logins database.LoginWriter, opts ...Option) *Authenticator {
	a := &Authenticator{
		identities: identities,
		logins:     logins,
		matcher:    facematch.NewMatcher(facematch.Euclidean),
		threshold:  DefaultAcceptThreshold,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Threshold returns the acceptance threshold in use.
func (a *Authenticator) Threshold() float64 {
	return a.threshold
}

// Authenticate matches the first detected face against every enrolled
// identity. Additional faces in the frame are ignored. A match strictly closer
// than the threshold is accepted and appended to the login history.
func (a *Authenticator) Authenticate(ctx context.Context, ex Extraction) (AuthResult, error) {
	if ex.Err != nil {
		return AuthResult{}, fmt.Errorf("%w: %w", ErrInvalidImage, ex.Err)
	}
	if ex.Faces() == 0 {
		return AuthResult{}, ErrNoFaceDetected
	}
	probe := ex.Embeddings[0]

	identities, err := a.identities.LookupAll(ctx)
	if err != nil {
		return AuthResult{}, storageError("loading identities", err)
	}
	if len(identities) == 0 {
		return AuthResult{}, ErrNoEnrolledIdentities
	}
	if want := len(identities[0].Embedding); len(probe) != want {
		return AuthResult{}, fmt.Errorf("%w: embedding has %d dimensions, want %d", ErrInvalidImage, len(probe), want)
	}

	best, err := a.matcher.BestMatch(probe, identities)
	if err != nil {
		return AuthResult{}, ErrNoEnrolledIdentities
	}
	if math.IsNaN(best.Distance) || best.Distance >= a.threshold {
		return AuthResult{Distance: best.Distance}, ErrNotRecognized
	}

	entry, err := a.logins.Append(ctx, best.Name, a.now().UTC())
	if err != nil {
		return AuthResult{}, storageError("recording login", err)
	}
	return AuthResult{Name: best.Name, Distance: best.Distance, Entry: entry}, nil
}

// RecentLogins returns the login history, newest first.
func (a *Authenticator) RecentLogins(ctx context.Context) ([]database.LoginEntry, error) {
	entries, err := a.logins.Recent(ctx)
	if err != nil {
		return nil, storageError("loading login history", err)
	}
	return entries, nil
}

func storageError(op string, err error) error {
	if errors.Is(err, ErrStorage) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %w", op, ErrStorage, err)
}
