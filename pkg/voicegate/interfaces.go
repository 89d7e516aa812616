package voicegate

import "context"

// Service is the voice-biometric enrollment and authentication API.
//
// Calls for distinct user IDs may run concurrently. Calls that mutate the
// same user's enrollment data (EnrollSample, BuildVoiceprint, Reset) must be
// serialized by the caller; the surrounding account layer is expected to
// hold that lock.
type Service interface {
	// EnrollSample extracts features from a recorded clip and appends them
	// to the user's enrollment set.
	EnrollSample(ctx context.Context, userID, audioPath string) (EnrollmentStatus, error)
	// BuildVoiceprint aggregates the user's enrollment samples into a
	// voiceprint and persists it. All-or-nothing: on error nothing is saved.
	BuildVoiceprint(ctx context.Context, userID string) error
	// Verify scores a recorded clip against the user's stored voiceprint
	// and records the decision in the audit trail.
	Verify(ctx context.Context, userID, audioPath string) (MatchResult, error)
	// Status reports the user's enrollment progress.
	Status(userID string) (EnrollmentStatus, error)
	// Attempts returns the user's audit records, newest first.
	Attempts(userID string, limit int) ([]AuthAttempt, error)
	// Reset deletes the user's samples and voiceprint.
	Reset(userID string) error
	Close() error
}

// Store persists feature vectors, voiceprints and audit records as opaque
// blobs keyed by user ID. The service never assumes a storage format, so
// backends (filesystem, embedded database, object store) are swappable.
type Store interface {
	SaveSample(userID string, vector []float64) (id string, ordinal int, err error)
	ListSamples(userID string) ([][]float64, error)
	CountSamples(userID string) (int, error)
	SaveVoiceprint(userID string, vp StoredVoiceprint) error
	LoadVoiceprint(userID string) (StoredVoiceprint, bool, error)
	DeleteUser(userID string) error
	RecordAttempt(userID string, res MatchResult) error
	ListAttempts(userID string, limit int) ([]AuthAttempt, error)
	Close() error
}

// Logger is the minimal leveled logging surface the service needs.
type Logger interface {
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
	Debugf(format string, args ...any)
}
