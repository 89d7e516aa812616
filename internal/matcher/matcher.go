// Package matcher owns per-user enrollment sample collections, builds
// consolidated voiceprints, and scores candidate vectors against them.
package matcher

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"voicegate/internal/model"
)

// ErrInsufficientSamples marks a voiceprint build attempted before the
// minimum enrollment count is reached.
var ErrInsufficientSamples = errors.New("insufficient enrollment samples")

// ErrNoVoiceprint marks a score attempted for a user with no built
// voiceprint.
var ErrNoVoiceprint = errors.New("no voiceprint built")

// Defaults mirroring the matcher configuration surface.
const (
	DefaultThreshold  = 0.75
	DefaultMinSamples = 3
)

// State describes where a user stands in the enrollment lifecycle.
type State int

const (
	StateEmpty     State = iota // no samples collected
	StateEnrolling              // fewer than the minimum samples
	StateReady                  // enough samples, voiceprint not yet built
	StateEnrolled               // voiceprint built and current
	StateStale                  // samples changed after the build; rebuild needed
)

func (s State) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StateEnrolling:
		return "enrolling"
	case StateReady:
		return "ready"
	case StateEnrolled:
		return "enrolled"
	case StateStale:
		return "stale"
	default:
		return "unknown"
	}
}

// Voiceprint is the aggregated reference vector for one enrolled user.
// It is rebuilt from scratch whenever the sample set changes.
type Voiceprint struct {
	Centroid    model.FeatureVector
	SampleCount int
	CreatedAt   time.Time
}

// MatchResult is the outcome of one authentication attempt. It is produced
// fresh per call and never mutated.
type MatchResult struct {
	Similarity float64
	Accepted   bool
	Threshold  float64
}

// Config holds matcher tunables. Threshold is applied exactly as given:
// any value in [-1, 1] is a valid cosine threshold, including 0, so callers
// wanting the default pass DefaultThreshold themselves. MinSamples == 0
// falls back to DefaultMinSamples; OutlierMaxDistance == 0 disables outlier
// rejection during aggregation.
type Config struct {
	Threshold          float64
	MinSamples         int
	OutlierMaxDistance float64
}

type userEntry struct {
	samples    []model.FeatureVector
	voiceprint *Voiceprint
	stale      bool
}

// Matcher keeps per-user enrollment sets and voiceprints. It is safe for
// concurrent use across distinct user IDs. Calls that mutate the same
// user's set (AddSample, BuildVoiceprint, Reset) must be serialized by the
// caller, which holds the authoritative lock alongside the stored data.
type Matcher struct {
	cfg Config

	mu    sync.RWMutex
	users map[string]*userEntry
	dim   int // fixed system-wide once the first sample arrives
}

// New creates a matcher with the given configuration.
func New(cfg Config) *Matcher {
	if cfg.MinSamples == 0 {
		cfg.MinSamples = DefaultMinSamples
	}
	return &Matcher{
		cfg:   cfg,
		users: make(map[string]*userEntry),
	}
}

// Threshold returns the configured acceptance threshold.
func (m *Matcher) Threshold() float64 { return m.cfg.Threshold }

// MinSamples returns the minimum enrollment sample count.
func (m *Matcher) MinSamples() int { return m.cfg.MinSamples }

// Dim returns the vector dimensionality the matcher is locked to, or 0 when
// no vector has been seen yet.
func (m *Matcher) Dim() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.dim
}

// AddSample appends a vector to the user's enrollment set. The first sample
// ever added fixes the system-wide dimensionality; later vectors of a
// different length fail with model.ErrDimensionMismatch. Adding a sample
// after a voiceprint was built marks that voiceprint stale until rebuilt.
func (m *Matcher) AddSample(userID string, vec model.FeatureVector) error {
	if len(vec) == 0 {
		return fmt.Errorf("%w: empty vector", model.ErrDimensionMismatch)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.dim == 0 {
		m.dim = vec.Dim()
	} else if err := vec.CheckDim(m.dim); err != nil {
		return err
	}

	entry := m.users[userID]
	if entry == nil {
		entry = &userEntry{}
		m.users[userID] = entry
	}
	entry.samples = append(entry.samples, vec.Clone())
	if entry.voiceprint != nil {
		entry.stale = true
	}
	return nil
}

// SampleCount returns the number of enrollment samples held for a user.
func (m *Matcher) SampleCount(userID string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if entry := m.users[userID]; entry != nil {
		return len(entry.samples)
	}
	return 0
}

// UserState reports the user's position in the enrollment lifecycle.
func (m *Matcher) UserState(userID string) State {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entry := m.users[userID]
	if entry == nil || len(entry.samples) == 0 {
		return StateEmpty
	}
	if entry.voiceprint != nil {
		if entry.stale {
			return StateStale
		}
		return StateEnrolled
	}
	if len(entry.samples) < m.cfg.MinSamples {
		return StateEnrolling
	}
	return StateReady
}

// BuildVoiceprint aggregates the user's enrollment set into a voiceprint.
// It fails with ErrInsufficientSamples below the minimum count. Aggregation
// is the element-wise centroid of all samples, with optional outlier
// rejection; both reducers are independent of sample order. The operation
// is all-or-nothing: on failure the previous voiceprint (if any) is kept.
func (m *Matcher) BuildVoiceprint(userID string) (Voiceprint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry := m.users[userID]
	var samples []model.FeatureVector
	if entry != nil {
		samples = entry.samples
	}
	if len(samples) < m.cfg.MinSamples {
		return Voiceprint{}, fmt.Errorf("%w: have %d, need %d",
			ErrInsufficientSamples, len(samples), m.cfg.MinSamples)
	}

	centroid := meanVector(samples)

	if m.cfg.OutlierMaxDistance > 0 {
		inliers := make([]model.FeatureVector, 0, len(samples))
		for _, s := range samples {
			sim, err := Cosine(s, centroid)
			if err != nil {
				return Voiceprint{}, err
			}
			if 1.0-sim <= m.cfg.OutlierMaxDistance {
				inliers = append(inliers, s)
			}
		}
		// Rejection never drops below the enrollment minimum; with fewer
		// inliers the plain centroid over all samples stands.
		if len(inliers) >= m.cfg.MinSamples && len(inliers) < len(samples) {
			centroid = meanVector(inliers)
		}
	}

	vp := Voiceprint{
		Centroid:    centroid,
		SampleCount: len(samples),
		CreatedAt:   time.Now().UTC(),
	}
	entry.voiceprint = &vp
	entry.stale = false
	return vp, nil
}

// Score computes the cosine similarity between a candidate vector and the
// user's stored voiceprint and applies the acceptance threshold. It fails
// with ErrNoVoiceprint when no voiceprint has been built and with
// model.ErrDimensionMismatch when vector lengths differ.
func (m *Matcher) Score(userID string, candidate model.FeatureVector) (MatchResult, error) {
	m.mu.RLock()
	entry := m.users[userID]
	var vp *Voiceprint
	var stale bool
	if entry != nil {
		vp = entry.voiceprint
		stale = entry.stale
	}
	m.mu.RUnlock()

	if vp == nil {
		return MatchResult{}, fmt.Errorf("%w: user %s", ErrNoVoiceprint, userID)
	}
	if stale {
		return MatchResult{}, fmt.Errorf("%w: voiceprint for user %s invalidated by enrollment changes, rebuild required",
			ErrNoVoiceprint, userID)
	}
	return ScoreAgainst(*vp, candidate, m.cfg.Threshold)
}

// ScoreAgainst scores a candidate against an explicit voiceprint, for
// callers that load voiceprints from storage themselves.
func ScoreAgainst(vp Voiceprint, candidate model.FeatureVector, threshold float64) (MatchResult, error) {
	sim, err := Cosine(candidate, vp.Centroid)
	if err != nil {
		return MatchResult{}, err
	}
	return MatchResult{
		Similarity: sim,
		Accepted:   sim >= threshold,
		Threshold:  threshold,
	}, nil
}

// SetVoiceprint installs a previously built voiceprint for a user, used to
// hydrate the matcher from persistent storage.
func (m *Matcher) SetVoiceprint(userID string, vp Voiceprint) error {
	if len(vp.Centroid) == 0 {
		return fmt.Errorf("%w: empty voiceprint", model.ErrDimensionMismatch)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.dim == 0 {
		m.dim = vp.Centroid.Dim()
	} else if err := vp.Centroid.CheckDim(m.dim); err != nil {
		return err
	}

	entry := m.users[userID]
	if entry == nil {
		entry = &userEntry{}
		m.users[userID] = entry
	}
	entry.voiceprint = &vp
	entry.stale = false
	return nil
}

// Voiceprint returns the user's current voiceprint, if one is built.
func (m *Matcher) Voiceprint(userID string) (Voiceprint, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if entry := m.users[userID]; entry != nil && entry.voiceprint != nil {
		return *entry.voiceprint, true
	}
	return Voiceprint{}, false
}

// Reset discards all samples and the voiceprint held for a user.
func (m *Matcher) Reset(userID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.users, userID)
}

// Cosine returns the cosine similarity between two vectors. It fails with
// model.ErrDimensionMismatch on length mismatch and with
// model.ErrInvalidAudio on a zero-length (all-zero) vector, for which the
// measure is undefined.
func Cosine(a, b model.FeatureVector) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d vs %d", model.ErrDimensionMismatch, len(a), len(b))
	}
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0, fmt.Errorf("%w: zero-length vector in similarity computation", model.ErrInvalidAudio)
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB)), nil
}

// meanVector computes the element-wise mean of equally sized vectors.
func meanVector(samples []model.FeatureVector) model.FeatureVector {
	dim := samples[0].Dim()
	out := make(model.FeatureVector, dim)
	for _, s := range samples {
		for i, x := range s {
			out[i] += x
		}
	}
	n := float64(len(samples))
	for i := range out {
		out[i] /= n
	}
	return out
}
