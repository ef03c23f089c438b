package facematch

import (
	"errors"
	"sort"

	"github.com/kozaktomas/face-login/internal/database"
)

// ErrNoCandidates is returned when there is nothing to match against.
var ErrNoCandidates = errors.New("no candidates to match against")

// Match is an enrolled identity together with its distance to a probe.
type Match struct {
	Name     string  `json:"name"`
	Distance float64 `json:"distance"`
}

// Matcher performs an exact nearest-neighbor scan over an identity snapshot.
// It holds no state besides the metric and is safe for concurrent use.
type Matcher struct {
	metric Metric
}

// NewMatcher creates a matcher for the given metric.
func NewMatcher(metric Metric) *Matcher {
	if metric == "" {
		metric = Euclidean
	}
	return &Matcher{metric: metric}
}

// Metric returns the matcher's distance metric.
func (m *Matcher) Metric() Metric {
	return m.metric
}

// BestMatch returns the candidate closest to probe. On ties the candidate that
// comes first in the snapshot wins. Candidates are not modified.
func (m *Matcher) BestMatch(probe []float32, candidates []database.Identity) (Match, error) {
	if len(candidates) == 0 {
		return Match{}, ErrNoCandidates
	}

	best := Match{Name: candidates[0].Name, Distance: m.metric.Distance(probe, candidates[0].Embedding)}
	for _, c := range candidates[1:] {
		if d := m.metric.Distance(probe, c.Embedding); d < best.Distance {
			best = Match{Name: c.Name, Distance: d}
		}
	}
	return best, nil
}

// Nearest returns up to k candidates ordered by ascending distance, keeping
// snapshot order among equal distances.
func (m *Matcher) Nearest(probe []float32, candidates []database.Identity, k int) []Match {
	if k <= 0 || len(candidates) == 0 {
		return nil
	}

	matches := make([]Match, len(candidates))
	for i, c := range candidates {
		matches[i] = Match{Name: c.Name, Distance: m.metric.Distance(probe, c.Embedding)}
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Distance < matches[j].Distance
	})

	if len(matches) > k {
		matches = matches[:k]
	}
	return matches
}
