package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"voicegate/internal/matcher"
	"voicegate/internal/model"
)

// FSStore keeps sample and voiceprint blobs on the local filesystem, one
// directory of samples per user plus a voiceprint file and an append-only
// attempts log:
//
//	<root>/user_<id>_samples/sample_0001.bin
//	<root>/user_<id>_voiceprint.bin
//	<root>/user_<id>_attempts.bin
type FSStore struct {
	root string
}

type attemptRecord struct {
	Similarity float64   `msgpack:"similarity"`
	Threshold  float64   `msgpack:"threshold"`
	Accepted   bool      `msgpack:"accepted"`
	CreatedAt  time.Time `msgpack:"created_at"`
}

// NewFSStore creates (if needed) the root directory and returns a store
// over it.
func NewFSStore(root string) (*FSStore, error) {
	if root == "" {
		return nil, errors.New("fs store root is empty")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("creating store root: %w", err)
	}
	return &FSStore{root: root}, nil
}

func (s *FSStore) samplesDir(userID string) string {
	return filepath.Join(s.root, fmt.Sprintf("user_%s_samples", userID))
}

func (s *FSStore) voiceprintPath(userID string) string {
	return filepath.Join(s.root, fmt.Sprintf("user_%s_voiceprint.bin", userID))
}

func (s *FSStore) attemptsPath(userID string) string {
	return filepath.Join(s.root, fmt.Sprintf("user_%s_attempts.bin", userID))
}

// SaveSample writes one enrollment sample blob and returns its path and
// ordinal position (1-based).
func (s *FSStore) SaveSample(userID string, vec model.FeatureVector) (string, int, error) {
	dir := s.samplesDir(userID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", 0, fmt.Errorf("creating samples dir: %w", err)
	}

	existing, err := s.sampleFiles(userID)
	if err != nil {
		return "", 0, err
	}
	ordinal := len(existing) + 1

	blob, err := EncodeVector(vec)
	if err != nil {
		return "", 0, err
	}

	path := filepath.Join(dir, fmt.Sprintf("sample_%04d.bin", ordinal))
	if err := os.WriteFile(path, blob, 0o644); err != nil {
		return "", 0, fmt.Errorf("writing sample: %w", err)
	}
	return path, ordinal, nil
}

// sampleFiles lists the user's sample blob paths in ordinal order.
func (s *FSStore) sampleFiles(userID string) ([]string, error) {
	entries, err := os.ReadDir(s.samplesDir(userID))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading samples dir: %w", err)
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".bin") {
			continue
		}
		paths = append(paths, filepath.Join(s.samplesDir(userID), e.Name()))
	}
	sort.Strings(paths)
	return paths, nil
}

// ListSamples returns a user's enrollment vectors in the order they were
// saved.
func (s *FSStore) ListSamples(userID string) ([]model.FeatureVector, error) {
	paths, err := s.sampleFiles(userID)
	if err != nil {
		return nil, err
	}
	out := make([]model.FeatureVector, 0, len(paths))
	for _, path := range paths {
		blob, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading sample %s: %w", path, err)
		}
		vec, err := DecodeVector(blob)
		if err != nil {
			return nil, err
		}
		out = append(out, vec)
	}
	return out, nil
}

// CountSamples returns the number of samples stored for a user.
func (s *FSStore) CountSamples(userID string) (int, error) {
	paths, err := s.sampleFiles(userID)
	if err != nil {
		return 0, err
	}
	return len(paths), nil
}

// SaveVoiceprint writes the voiceprint blob atomically via a temp file.
func (s *FSStore) SaveVoiceprint(userID string, vp matcher.Voiceprint) error {
	blob, err := EncodeVoiceprint(vp)
	if err != nil {
		return err
	}
	path := s.voiceprintPath(userID)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, blob, 0o644); err != nil {
		return fmt.Errorf("writing voiceprint: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replacing voiceprint: %w", err)
	}
	return nil
}

// LoadVoiceprint reads the user's voiceprint, with found=false when none
// has been saved.
func (s *FSStore) LoadVoiceprint(userID string) (matcher.Voiceprint, bool, error) {
	blob, err := os.ReadFile(s.voiceprintPath(userID))
	if errors.Is(err, os.ErrNotExist) {
		return matcher.Voiceprint{}, false, nil
	}
	if err != nil {
		return matcher.Voiceprint{}, false, fmt.Errorf("reading voiceprint: %w", err)
	}
	vp, err := DecodeVoiceprint(blob)
	if err != nil {
		return matcher.Voiceprint{}, false, err
	}
	return vp, true, nil
}

// DeleteUser removes the user's samples and voiceprint. The attempts log
// is kept.
func (s *FSStore) DeleteUser(userID string) error {
	if err := os.RemoveAll(s.samplesDir(userID)); err != nil {
		return fmt.Errorf("removing samples: %w", err)
	}
	if err := os.Remove(s.voiceprintPath(userID)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing voiceprint: %w", err)
	}
	return nil
}

// RecordAttempt appends one decision record to the user's attempts log.
func (s *FSStore) RecordAttempt(userID string, res matcher.MatchResult) error {
	f, err := os.OpenFile(s.attemptsPath(userID), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("opening attempts log: %w", err)
	}
	defer f.Close()

	enc := msgpack.NewEncoder(f)
	err = enc.Encode(attemptRecord{
		Similarity: res.Similarity,
		Threshold:  res.Threshold,
		Accepted:   res.Accepted,
		CreatedAt:  time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("appending attempt: %w", err)
	}
	return nil
}

// ListAttempts returns the most recent audit records, newest first.
// limit <= 0 returns all records.
func (s *FSStore) ListAttempts(userID string, limit int) ([]AuthAttempt, error) {
	f, err := os.Open(s.attemptsPath(userID))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("opening attempts log: %w", err)
	}
	defer f.Close()

	var records []attemptRecord
	dec := msgpack.NewDecoder(f)
	for {
		var rec attemptRecord
		if err := dec.Decode(&rec); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("decoding attempts log: %w", err)
		}
		records = append(records, rec)
	}

	out := make([]AuthAttempt, 0, len(records))
	for i := len(records) - 1; i >= 0; i-- {
		rec := records[i]
		out = append(out, AuthAttempt{
			UserID:     userID,
			Similarity: rec.Similarity,
			Threshold:  rec.Threshold,
			Accepted:   rec.Accepted,
			CreatedAt:  rec.CreatedAt,
		})
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// Close is a no-op for the filesystem store.
func (s *FSStore) Close() error { return nil }
