package storage

import (
	"math"
	"path/filepath"
	"testing"
	"time"

	"voicegate/internal/matcher"
	"voicegate/internal/model"
)

// store is the method surface shared by DBClient and FSStore.
type store interface {
	SaveSample(userID string, vec model.FeatureVector) (string, int, error)
	ListSamples(userID string) ([]model.FeatureVector, error)
	CountSamples(userID string) (int, error)
	SaveVoiceprint(userID string, vp matcher.Voiceprint) error
	LoadVoiceprint(userID string) (matcher.Voiceprint, bool, error)
	DeleteUser(userID string) error
	RecordAttempt(userID string, res matcher.MatchResult) error
	ListAttempts(userID string, limit int) ([]AuthAttempt, error)
	Close() error
}

func newStores(t *testing.T) map[string]store {
	t.Helper()

	db, err := NewDBClientWithPath(filepath.Join(t.TempDir(), "test.sqlite3"))
	if err != nil {
		t.Fatalf("Failed to open sqlite store: %v", err)
	}
	fs, err := NewFSStore(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to open fs store: %v", err)
	}
	t.Cleanup(func() {
		db.Close()
		fs.Close()
	})
	return map[string]store{"sqlite": db, "fs": fs}
}

func testVector(seed int) model.FeatureVector {
	vec := make(model.FeatureVector, 13)
	for i := range vec {
		vec[i] = math.Sin(float64(seed*13+i)) * 2
	}
	return vec
}

func vectorsEqual(a, b model.FeatureVector) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if math.Abs(a[i]-b[i]) > 1e-12 {
			return false
		}
	}
	return true
}

func TestSampleRoundTrip(t *testing.T) {
	for name, s := range newStores(t) {
		t.Run(name, func(t *testing.T) {
			want := []model.FeatureVector{testVector(1), testVector(2), testVector(3)}
			for i, vec := range want {
				id, ordinal, err := s.SaveSample("alice", vec)
				if err != nil {
					t.Fatalf("SaveSample failed: %v", err)
				}
				if id == "" {
					t.Error("SaveSample returned empty id")
				}
				if ordinal != i+1 {
					t.Errorf("Expected ordinal %d, got %d", i+1, ordinal)
				}
			}

			count, err := s.CountSamples("alice")
			if err != nil {
				t.Fatalf("CountSamples failed: %v", err)
			}
			if count != len(want) {
				t.Errorf("Expected %d samples, got %d", len(want), count)
			}

			got, err := s.ListSamples("alice")
			if err != nil {
				t.Fatalf("ListSamples failed: %v", err)
			}
			if len(got) != len(want) {
				t.Fatalf("Expected %d vectors, got %d", len(want), len(got))
			}
			for i := range want {
				if !vectorsEqual(got[i], want[i]) {
					t.Errorf("Vector %d did not survive the round trip", i)
				}
			}

			// Other users are unaffected.
			if count, _ := s.CountSamples("bob"); count != 0 {
				t.Errorf("Expected no samples for other user, got %d", count)
			}
		})
	}
}

func TestVoiceprintRoundTrip(t *testing.T) {
	for name, s := range newStores(t) {
		t.Run(name, func(t *testing.T) {
			if _, found, err := s.LoadVoiceprint("carol"); err != nil || found {
				t.Fatalf("Expected no voiceprint before save, found=%t err=%v", found, err)
			}

			want := matcher.Voiceprint{
				Centroid:    testVector(5),
				SampleCount: 3,
				CreatedAt:   time.Now().UTC().Truncate(time.Millisecond),
			}
			if err := s.SaveVoiceprint("carol", want); err != nil {
				t.Fatalf("SaveVoiceprint failed: %v", err)
			}

			got, found, err := s.LoadVoiceprint("carol")
			if err != nil {
				t.Fatalf("LoadVoiceprint failed: %v", err)
			}
			if !found {
				t.Fatal("Voiceprint not found after save")
			}
			if !vectorsEqual(got.Centroid, want.Centroid) {
				t.Error("Centroid did not survive the round trip")
			}
			if got.SampleCount != want.SampleCount {
				t.Errorf("Expected sample count %d, got %d", want.SampleCount, got.SampleCount)
			}

			// Saving again replaces the stored voiceprint.
			rebuilt := matcher.Voiceprint{
				Centroid:    testVector(6),
				SampleCount: 4,
				CreatedAt:   time.Now().UTC(),
			}
			if err := s.SaveVoiceprint("carol", rebuilt); err != nil {
				t.Fatalf("SaveVoiceprint(rebuild) failed: %v", err)
			}
			got, found, err = s.LoadVoiceprint("carol")
			if err != nil || !found {
				t.Fatalf("LoadVoiceprint after rebuild: found=%t err=%v", found, err)
			}
			if got.SampleCount != 4 || !vectorsEqual(got.Centroid, rebuilt.Centroid) {
				t.Error("Rebuilt voiceprint did not replace the old one")
			}
		})
	}
}

func TestDeleteUser(t *testing.T) {
	for name, s := range newStores(t) {
		t.Run(name, func(t *testing.T) {
			for i := 1; i <= 3; i++ {
				if _, _, err := s.SaveSample("dave", testVector(i)); err != nil {
					t.Fatalf("SaveSample failed: %v", err)
				}
			}
			vp := matcher.Voiceprint{Centroid: testVector(9), SampleCount: 3, CreatedAt: time.Now().UTC()}
			if err := s.SaveVoiceprint("dave", vp); err != nil {
				t.Fatalf("SaveVoiceprint failed: %v", err)
			}
			if err := s.RecordAttempt("dave", matcher.MatchResult{Similarity: 0.8, Accepted: true, Threshold: 0.75}); err != nil {
				t.Fatalf("RecordAttempt failed: %v", err)
			}

			if err := s.DeleteUser("dave"); err != nil {
				t.Fatalf("DeleteUser failed: %v", err)
			}

			if count, _ := s.CountSamples("dave"); count != 0 {
				t.Errorf("Expected no samples after delete, got %d", count)
			}
			if _, found, _ := s.LoadVoiceprint("dave"); found {
				t.Error("Voiceprint survived delete")
			}

			// The audit trail outlives the enrollment data.
			attempts, err := s.ListAttempts("dave", 0)
			if err != nil {
				t.Fatalf("ListAttempts failed: %v", err)
			}
			if len(attempts) != 1 {
				t.Errorf("Expected audit records to survive delete, got %d", len(attempts))
			}

			// Deleting a user that does not exist is not an error.
			if err := s.DeleteUser("nobody"); err != nil {
				t.Errorf("DeleteUser(nonexistent) failed: %v", err)
			}
		})
	}
}

func TestAttemptsNewestFirst(t *testing.T) {
	for name, s := range newStores(t) {
		t.Run(name, func(t *testing.T) {
			sims := []float64{0.3, 0.6, 0.9}
			for _, sim := range sims {
				err := s.RecordAttempt("erin", matcher.MatchResult{
					Similarity: sim,
					Accepted:   sim >= 0.75,
					Threshold:  0.75,
				})
				if err != nil {
					t.Fatalf("RecordAttempt failed: %v", err)
				}
				// Distinct timestamps keep the ordering unambiguous.
				time.Sleep(5 * time.Millisecond)
			}

			attempts, err := s.ListAttempts("erin", 0)
			if err != nil {
				t.Fatalf("ListAttempts failed: %v", err)
			}
			if len(attempts) != len(sims) {
				t.Fatalf("Expected %d attempts, got %d", len(sims), len(attempts))
			}
			for i, a := range attempts {
				want := sims[len(sims)-1-i]
				if math.Abs(a.Similarity-want) > 1e-9 {
					t.Errorf("Attempt %d: expected similarity %.2f, got %.2f", i, want, a.Similarity)
				}
				if a.Accepted != (want >= 0.75) {
					t.Errorf("Attempt %d: accepted flag wrong", i)
				}
			}

			limited, err := s.ListAttempts("erin", 2)
			if err != nil {
				t.Fatalf("ListAttempts(limit) failed: %v", err)
			}
			if len(limited) != 2 {
				t.Fatalf("Expected 2 attempts with limit, got %d", len(limited))
			}
			if math.Abs(limited[0].Similarity-0.9) > 1e-9 {
				t.Errorf("Limited listing should start with the newest attempt, got %.2f", limited[0].Similarity)
			}

			if empty, err := s.ListAttempts("nobody", 0); err != nil || len(empty) != 0 {
				t.Errorf("Expected no attempts for unknown user, got %d err=%v", len(empty), err)
			}
		})
	}
}

func TestCodecRejectsGarbage(t *testing.T) {
	if _, err := DecodeVector([]byte("not msgpack")); err == nil {
		t.Error("Expected error decoding garbage vector blob")
	}
	if _, err := DecodeVoiceprint([]byte{0xff, 0x01, 0x02}); err == nil {
		t.Error("Expected error decoding garbage voiceprint blob")
	}
}
