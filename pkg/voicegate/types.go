package voicegate

import "time"

// MatchResult is the outcome of one authentication attempt.
type MatchResult struct {
	Similarity float64 // cosine similarity in [-1, 1]
	Accepted   bool    // Similarity >= Threshold
	Threshold  float64 // threshold used for this decision
}

// EnrollmentStatus reports a user's enrollment progress.
type EnrollmentStatus struct {
	UserID          string
	Samples         int    // samples collected so far
	Required        int    // minimum samples for a voiceprint
	State           string // empty, enrolling, ready, enrolled, stale
	VoiceprintBuilt bool
}

// StoredVoiceprint is the persisted form of a user's voiceprint.
type StoredVoiceprint struct {
	Centroid    []float64
	SampleCount int
	CreatedAt   time.Time
}

// AuthAttempt is one audit record of an authentication decision.
type AuthAttempt struct {
	UserID     string
	Similarity float64
	Threshold  float64
	Accepted   bool
	CreatedAt  time.Time
}
