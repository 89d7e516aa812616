package voicegate

import (
	"voicegate/internal/matcher"
	"voicegate/internal/model"
	"voicegate/internal/storage"
)

// sqliteAdapter adapts storage.DBClient to the Store interface.
type sqliteAdapter struct {
	db *storage.DBClient
}

// NewSQLiteStore opens a SQLite-backed store at the given path.
func NewSQLiteStore(dbPath string) (Store, error) {
	db, err := storage.NewDBClientWithPath(dbPath)
	if err != nil {
		return nil, err
	}
	return &sqliteAdapter{db: db}, nil
}

func (s *sqliteAdapter) SaveSample(userID string, vector []float64) (string, int, error) {
	return s.db.SaveSample(userID, model.FeatureVector(vector))
}

func (s *sqliteAdapter) ListSamples(userID string) ([][]float64, error) {
	vecs, err := s.db.ListSamples(userID)
	if err != nil {
		return nil, err
	}
	return toRaw(vecs), nil
}

func (s *sqliteAdapter) CountSamples(userID string) (int, error) {
	return s.db.CountSamples(userID)
}

func (s *sqliteAdapter) SaveVoiceprint(userID string, vp StoredVoiceprint) error {
	return s.db.SaveVoiceprint(userID, toInternalVoiceprint(vp))
}

func (s *sqliteAdapter) LoadVoiceprint(userID string) (StoredVoiceprint, bool, error) {
	vp, found, err := s.db.LoadVoiceprint(userID)
	if err != nil || !found {
		return StoredVoiceprint{}, found, err
	}
	return toStoredVoiceprint(vp), true, nil
}

func (s *sqliteAdapter) DeleteUser(userID string) error {
	return s.db.DeleteUser(userID)
}

func (s *sqliteAdapter) RecordAttempt(userID string, res MatchResult) error {
	return s.db.RecordAttempt(userID, matcher.MatchResult(res))
}

func (s *sqliteAdapter) ListAttempts(userID string, limit int) ([]AuthAttempt, error) {
	rows, err := s.db.ListAttempts(userID, limit)
	if err != nil {
		return nil, err
	}
	out := make([]AuthAttempt, len(rows))
	for i, r := range rows {
		out[i] = AuthAttempt{
			UserID:     r.UserID,
			Similarity: r.Similarity,
			Threshold:  r.Threshold,
			Accepted:   r.Accepted,
			CreatedAt:  r.CreatedAt,
		}
	}
	return out, nil
}

func (s *sqliteAdapter) Close() error {
	return s.db.Close()
}

// fsAdapter adapts storage.FSStore to the Store interface.
type fsAdapter struct {
	fs *storage.FSStore
}

// NewFilesystemStore creates a store of per-user blob files under root,
// matching the on-disk layout of the reference deployment.
func NewFilesystemStore(root string) (Store, error) {
	fs, err := storage.NewFSStore(root)
	if err != nil {
		return nil, err
	}
	return &fsAdapter{fs: fs}, nil
}

func (s *fsAdapter) SaveSample(userID string, vector []float64) (string, int, error) {
	return s.fs.SaveSample(userID, model.FeatureVector(vector))
}

func (s *fsAdapter) ListSamples(userID string) ([][]float64, error) {
	vecs, err := s.fs.ListSamples(userID)
	if err != nil {
		return nil, err
	}
	return toRaw(vecs), nil
}

func (s *fsAdapter) CountSamples(userID string) (int, error) {
	return s.fs.CountSamples(userID)
}

func (s *fsAdapter) SaveVoiceprint(userID string, vp StoredVoiceprint) error {
	return s.fs.SaveVoiceprint(userID, toInternalVoiceprint(vp))
}

func (s *fsAdapter) LoadVoiceprint(userID string) (StoredVoiceprint, bool, error) {
	vp, found, err := s.fs.LoadVoiceprint(userID)
	if err != nil || !found {
		return StoredVoiceprint{}, found, err
	}
	return toStoredVoiceprint(vp), true, nil
}

func (s *fsAdapter) DeleteUser(userID string) error {
	return s.fs.DeleteUser(userID)
}

func (s *fsAdapter) RecordAttempt(userID string, res MatchResult) error {
	return s.fs.RecordAttempt(userID, matcher.MatchResult(res))
}

func (s *fsAdapter) ListAttempts(userID string, limit int) ([]AuthAttempt, error) {
	rows, err := s.fs.ListAttempts(userID, limit)
	if err != nil {
		return nil, err
	}
	out := make([]AuthAttempt, len(rows))
	for i, r := range rows {
		out[i] = AuthAttempt{
			UserID:     r.UserID,
			Similarity: r.Similarity,
			Threshold:  r.Threshold,
			Accepted:   r.Accepted,
			CreatedAt:  r.CreatedAt,
		}
	}
	return out, nil
}

func (s *fsAdapter) Close() error {
	return s.fs.Close()
}

func toRaw(vecs []model.FeatureVector) [][]float64 {
	out := make([][]float64, len(vecs))
	for i, v := range vecs {
		out[i] = v
	}
	return out
}

func toInternalVoiceprint(vp StoredVoiceprint) matcher.Voiceprint {
	return matcher.Voiceprint{
		Centroid:    model.FeatureVector(vp.Centroid),
		SampleCount: vp.SampleCount,
		CreatedAt:   vp.CreatedAt,
	}
}

func toStoredVoiceprint(vp matcher.Voiceprint) StoredVoiceprint {
	return StoredVoiceprint{
		Centroid:    vp.Centroid,
		SampleCount: vp.SampleCount,
		CreatedAt:   vp.CreatedAt,
	}
}
