// Package voicegate is the public API of the voice-biometric core:
// enrollment sample collection, voiceprint synthesis and authentication
// scoring, with pluggable blob storage and logging.
package voicegate

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"voicegate/internal/audio"
	"voicegate/internal/feature"
	"voicegate/internal/matcher"
	"voicegate/internal/model"
	"voicegate/pkg/logger"
)

// voiceService is the default implementation of the Service interface.
type voiceService struct {
	store     Store
	extractor *feature.Extractor
	match     *matcher.Matcher
	log       Logger
	config    *Config

	// serializes first-touch hydration so concurrent reads for the same
	// user cannot load persisted samples twice
	hydrateMu sync.Mutex
}

// NewService builds a service from the configured options, creating a
// SQLite store when none is injected.
func NewService(opts ...Option) (Service, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	if cfg.Logger == nil {
		cfg.Logger = logger.GetLogger()
	}

	var store Store
	var err error
	if cfg.Store != nil {
		store = cfg.Store
	} else {
		store, err = NewSQLiteStore(cfg.DBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to create storage: %w", err)
		}
	}

	extractor, err := feature.NewExtractor(feature.Config{
		SampleRate:    cfg.SampleRate,
		NumCoeffs:     cfg.MFCCCount,
		MinDurationS:  cfg.MinClipSeconds,
		IncludeSpread: cfg.IncludeSpread,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create feature extractor: %w", err)
	}

	return &voiceService{
		store:     store,
		extractor: extractor,
		match: matcher.New(matcher.Config{
			Threshold:          cfg.Threshold,
			MinSamples:         cfg.MinSamples,
			OutlierMaxDistance: cfg.OutlierMaxDistance,
		}),
		log:    cfg.Logger,
		config: cfg,
	}, nil
}

// EnrollSample extracts features from one recorded clip and appends them to
// the user's enrollment set, persisting the vector blob.
func (s *voiceService) EnrollSample(ctx context.Context, userID, audioPath string) (EnrollmentStatus, error) {
	s.log.Infof("Enrolling sample for user %s: %s", userID, audioPath)

	vec, err := s.extractFromFile(ctx, audioPath)
	if err != nil {
		return EnrollmentStatus{}, err
	}

	if err := s.hydrateUser(userID); err != nil {
		return EnrollmentStatus{}, err
	}

	// Persist first so memory never gets ahead of disk. The dimension check
	// runs up front: a vector the matcher would reject must not be stored.
	if dim := s.match.Dim(); dim != 0 {
		if err := vec.CheckDim(dim); err != nil {
			return EnrollmentStatus{}, err
		}
	}
	_, ordinal, err := s.store.SaveSample(userID, vec)
	if err != nil {
		return EnrollmentStatus{}, fmt.Errorf("failed to persist sample: %w", err)
	}
	s.log.Infof("Stored sample %d for user %s", ordinal, userID)

	if err := s.match.AddSample(userID, vec); err != nil {
		return EnrollmentStatus{}, err
	}

	return s.status(userID), nil
}

// BuildVoiceprint aggregates the user's samples into a voiceprint and
// persists it. Nothing is saved when aggregation fails.
func (s *voiceService) BuildVoiceprint(ctx context.Context, userID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.hydrateUser(userID); err != nil {
		return err
	}

	vp, err := s.match.BuildVoiceprint(userID)
	if err != nil {
		return err
	}

	if err := s.store.SaveVoiceprint(userID, toStoredVoiceprint(vp)); err != nil {
		return fmt.Errorf("failed to persist voiceprint: %w", err)
	}

	s.log.Infof("Built voiceprint for user %s from %d samples", userID, vp.SampleCount)
	return nil
}

// Verify scores one recorded clip against the user's stored voiceprint and
// records the decision in the audit trail.
func (s *voiceService) Verify(ctx context.Context, userID, audioPath string) (MatchResult, error) {
	s.log.Infof("Verifying user %s: %s", userID, audioPath)

	vec, err := s.extractFromFile(ctx, audioPath)
	if err != nil {
		return MatchResult{}, err
	}

	if err := s.hydrateUser(userID); err != nil {
		return MatchResult{}, err
	}

	res, err := s.match.Score(userID, vec)
	if err != nil {
		return MatchResult{}, err
	}
	result := MatchResult(res)

	if err := s.store.RecordAttempt(userID, result); err != nil {
		s.log.Warnf("Failed to record attempt for user %s: %v", userID, err)
	}

	s.log.Infof("User %s: similarity=%.3f accepted=%t (threshold %.2f)",
		userID, result.Similarity, result.Accepted, result.Threshold)
	return result, nil
}

// Status reports the user's enrollment progress.
func (s *voiceService) Status(userID string) (EnrollmentStatus, error) {
	if err := s.hydrateUser(userID); err != nil {
		return EnrollmentStatus{}, err
	}
	return s.status(userID), nil
}

// Attempts returns the user's audit records, newest first.
func (s *voiceService) Attempts(userID string, limit int) ([]AuthAttempt, error) {
	return s.store.ListAttempts(userID, limit)
}

// Reset deletes the user's samples and voiceprint from both the matcher and
// the store. Audit records are kept.
func (s *voiceService) Reset(userID string) error {
	s.match.Reset(userID)
	if err := s.store.DeleteUser(userID); err != nil {
		return fmt.Errorf("failed to delete user data: %w", err)
	}
	s.log.Infof("Cleared voice data for user %s", userID)
	return nil
}

func (s *voiceService) Close() error {
	return s.store.Close()
}

// extractFromFile converts (if needed), decodes, validates and extracts a
// feature vector from a recording on disk.
func (s *voiceService) extractFromFile(ctx context.Context, audioPath string) (model.FeatureVector, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	path := audioPath
	if strings.ToLower(filepath.Ext(audioPath)) != ".wav" {
		converted, err := audio.ConvertToMonoWAV(ctx, audioPath, s.config.TempDir, audio.ConvertConfig{
			SampleRate: s.config.SampleRate,
		})
		if err != nil {
			return nil, fmt.Errorf("audio conversion failed: %w", err)
		}
		path = converted
	}

	clip, err := audio.ReadClip(path)
	if err != nil {
		return nil, err
	}
	if err := audio.ValidateClip(clip); err != nil {
		return nil, err
	}

	vec, err := s.extractor.Extract(clip)
	if err != nil {
		return nil, err
	}
	return vec, nil
}

// hydrateUser loads a user's persisted samples and voiceprint into the
// matcher the first time the user is touched in this process.
func (s *voiceService) hydrateUser(userID string) error {
	s.hydrateMu.Lock()
	defer s.hydrateMu.Unlock()

	if s.match.SampleCount(userID) > 0 {
		return nil
	}
	if _, ok := s.match.Voiceprint(userID); ok {
		return nil
	}

	vectors, err := s.store.ListSamples(userID)
	if err != nil {
		return fmt.Errorf("failed to load samples: %w", err)
	}
	for _, raw := range vectors {
		if err := s.match.AddSample(userID, model.FeatureVector(raw)); err != nil {
			return err
		}
	}

	vp, found, err := s.store.LoadVoiceprint(userID)
	if err != nil {
		return fmt.Errorf("failed to load voiceprint: %w", err)
	}
	// A stored voiceprint built from fewer samples than are now on disk was
	// invalidated by later enrollment; leave it uninstalled until a rebuild.
	if found {
		if len(vectors) > vp.SampleCount {
			s.log.Debugf("Voiceprint for user %s is stale (%d samples stored, built from %d)",
				userID, len(vectors), vp.SampleCount)
			return nil
		}
		if err := s.match.SetVoiceprint(userID, toInternalVoiceprint(vp)); err != nil {
			return err
		}
	}
	return nil
}

func (s *voiceService) status(userID string) EnrollmentStatus {
	_, built := s.match.Voiceprint(userID)
	return EnrollmentStatus{
		UserID:          userID,
		Samples:         s.match.SampleCount(userID),
		Required:        s.match.MinSamples(),
		State:           s.match.UserState(userID).String(),
		VoiceprintBuilt: built,
	}
}
