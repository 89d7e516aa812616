package audio

import (
	"fmt"
	"math"

	"voicegate/internal/model"
)

// Quality bounds for recorded clips. Clips outside these bounds are rejected
// before feature extraction so the caller can prompt for a re-recording.
const (
	MinDurationSec = 0.3
	MaxDurationSec = 10.0
	MinRMS         = 0.01
	ClipCeiling    = 0.99
	MinSourceRate  = 8000
)

// ValidateClip checks a decoded clip against the recording quality bounds.
// All failures are reported as model.ErrInvalidAudio so callers can treat
// them uniformly as "please record again".
func ValidateClip(clip model.AudioClip) error {
	if len(clip.Samples) == 0 {
		return fmt.Errorf("%w: empty clip", model.ErrInvalidAudio)
	}
	if clip.SampleRate < MinSourceRate {
		return fmt.Errorf("%w: sample rate %d Hz below minimum %d Hz",
			model.ErrInvalidAudio, clip.SampleRate, MinSourceRate)
	}

	duration := clip.Duration()
	if duration < MinDurationSec {
		return fmt.Errorf("%w: clip too short (%.2fs, minimum %.2fs)",
			model.ErrInvalidAudio, duration, MinDurationSec)
	}
	if duration > MaxDurationSec {
		return fmt.Errorf("%w: clip too long (%.2fs, maximum %.2fs)",
			model.ErrInvalidAudio, duration, MaxDurationSec)
	}

	var sumSq, peak float64
	for _, s := range clip.Samples {
		sumSq += s * s
		if a := math.Abs(s); a > peak {
			peak = a
		}
	}
	rms := math.Sqrt(sumSq / float64(len(clip.Samples)))
	if rms < MinRMS {
		return fmt.Errorf("%w: signal too weak (rms %.4f)", model.ErrInvalidAudio, rms)
	}
	if peak > ClipCeiling {
		return fmt.Errorf("%w: signal is clipped (peak %.3f)", model.ErrInvalidAudio, peak)
	}

	return nil
}
