package model

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidAudio marks clips that cannot yield a usable feature vector:
// empty, silent, too short after trimming, or degenerate after normalization.
var ErrInvalidAudio = errors.New("invalid audio")

// ErrDimensionMismatch marks any comparison or aggregation of feature
// vectors whose lengths differ.
var ErrDimensionMismatch = errors.New("feature dimension mismatch")

// AudioClip is a decoded mono PCM waveform normalized to [-1, 1].
// It is transient: produced by the decoder, consumed once by the
// feature extractor.
type AudioClip struct {
	Samples    []float64
	SampleRate int
}

// Duration returns the clip length in seconds.
func (c AudioClip) Duration() float64 {
	if c.SampleRate == 0 {
		return 0
	}
	return float64(len(c.Samples)) / float64(c.SampleRate)
}

// FeatureVector is a fixed-length sequence of MFCC-derived coefficients
// summarizing one clip. Vectors are immutable once produced; callers that
// need to retain one across mutations should Clone it.
type FeatureVector []float64

// Dim returns the vector's dimensionality.
func (v FeatureVector) Dim() int { return len(v) }

// Clone returns an independent copy of the vector.
func (v FeatureVector) Clone() FeatureVector {
	out := make(FeatureVector, len(v))
	copy(out, v)
	return out
}

// CheckDim fails with ErrDimensionMismatch unless the vector has exactly
// want elements.
func (v FeatureVector) CheckDim(want int) error {
	if len(v) != want {
		return fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(v), want)
	}
	return nil
}

// IsFinite reports whether every coefficient is a finite number.
func (v FeatureVector) IsFinite() bool {
	for _, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
	}
	return true
}

// Norm returns the Euclidean norm of the vector.
func (v FeatureVector) Norm() float64 {
	var sum float64
	for _, x := range v {
		sum += x * x
	}
	return math.Sqrt(sum)
}
