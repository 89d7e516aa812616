package audio

import (
	"fmt"

	resampling "github.com/tphakala/go-audio-resampling"

	"voicegate/internal/model"
)

// Resample converts a clip to the target sample rate using band-limited
// interpolation. Clips already at the target rate are returned unchanged.
func Resample(clip model.AudioClip, targetRate int) (model.AudioClip, error) {
	if clip.SampleRate <= 0 {
		return model.AudioClip{}, fmt.Errorf("%w: sample rate %d", model.ErrInvalidAudio, clip.SampleRate)
	}
	if targetRate <= 0 {
		return model.AudioClip{}, fmt.Errorf("invalid target rate %d", targetRate)
	}
	if clip.SampleRate == targetRate {
		return clip, nil
	}

	config := &resampling.Config{
		InputRate:  float64(clip.SampleRate),
		OutputRate: float64(targetRate),
		Channels:   1,
		Quality:    resampling.QualitySpec{Preset: resampling.QualityHigh},
	}
	rs, err := resampling.New(config)
	if err != nil {
		return model.AudioClip{}, fmt.Errorf("creating resampler: %w", err)
	}

	out, err := rs.Process(clip.Samples)
	if err != nil {
		return model.AudioClip{}, fmt.Errorf("resampling %d -> %d Hz: %w", clip.SampleRate, targetRate, err)
	}
	if len(out) == 0 {
		return model.AudioClip{}, fmt.Errorf("%w: no samples after resampling", model.ErrInvalidAudio)
	}

	return model.AudioClip{Samples: out, SampleRate: targetRate}, nil
}
