// Package feature converts decoded voice clips into fixed-length MFCC
// feature vectors. The pipeline is deterministic and stateless: identical
// input samples always produce the same vector.
package feature

import (
	"fmt"
	"math"
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"

	"voicegate/internal/audio"
	"voicegate/internal/model"
)

// Defaults for voice feature extraction.
const (
	DefaultSampleRate  = 16000
	DefaultNumCoeffs   = 13
	DefaultNumFilters  = 26
	DefaultWindowMs    = 25
	DefaultHopMs       = 10
	DefaultFFTSize     = 512
	DefaultPreEmphasis = 0.97
	DefaultTrimDB      = 20.0
	DefaultMinDuration = 0.3

	// floor to avoid log(0)
	eps = 1e-10
)

// Config holds the extractor tunables. Zero values fall back to the package
// defaults.
type Config struct {
	SampleRate    int     // target rate clips are resampled to
	NumCoeffs     int     // MFCC coefficients retained per frame
	NumFilters    int     // mel filterbank size
	WindowMs      int     // analysis window length in milliseconds
	HopMs         int     // frame hop in milliseconds
	FFTSize       int     // FFT length; frames are zero-padded up to it
	PreEmphasis   float64 // first-order high-pass coefficient
	TrimDB        float64 // silence threshold in dB below the loudest frame
	MinDurationS  float64 // minimum clip length after trimming, in seconds
	IncludeSpread bool    // append per-coefficient standard deviations
}

// Extractor computes normalized MFCC feature vectors from audio clips.
// It is safe for concurrent use: all per-call state lives on the stack.
type Extractor struct {
	cfg        Config
	window     []float64
	windowSize int
	hopSize    int
	filterbank [][]float64
	dct        [][]float64
}

// NewExtractor builds an extractor, precomputing the window, mel filterbank
// and DCT matrix for the configured geometry.
func NewExtractor(cfg Config) (*Extractor, error) {
	if cfg.SampleRate == 0 {
		cfg.SampleRate = DefaultSampleRate
	}
	if cfg.NumCoeffs == 0 {
		cfg.NumCoeffs = DefaultNumCoeffs
	}
	if cfg.NumFilters == 0 {
		cfg.NumFilters = DefaultNumFilters
	}
	if cfg.WindowMs == 0 {
		cfg.WindowMs = DefaultWindowMs
	}
	if cfg.HopMs == 0 {
		cfg.HopMs = DefaultHopMs
	}
	if cfg.FFTSize == 0 {
		cfg.FFTSize = DefaultFFTSize
	}
	if cfg.PreEmphasis == 0 {
		cfg.PreEmphasis = DefaultPreEmphasis
	}
	if cfg.TrimDB == 0 {
		cfg.TrimDB = DefaultTrimDB
	}
	if cfg.MinDurationS == 0 {
		cfg.MinDurationS = DefaultMinDuration
	}

	windowSize := cfg.SampleRate * cfg.WindowMs / 1000
	hopSize := cfg.SampleRate * cfg.HopMs / 1000
	if windowSize <= 0 || hopSize <= 0 {
		return nil, fmt.Errorf("invalid window geometry: window=%d hop=%d", windowSize, hopSize)
	}
	if cfg.FFTSize < windowSize {
		return nil, fmt.Errorf("fft size %d smaller than window %d", cfg.FFTSize, windowSize)
	}
	if cfg.NumCoeffs > cfg.NumFilters {
		return nil, fmt.Errorf("cannot keep %d coefficients from %d filters", cfg.NumCoeffs, cfg.NumFilters)
	}

	numBins := cfg.FFTSize/2 + 1

	return &Extractor{
		cfg:        cfg,
		window:     Hamming(windowSize),
		windowSize: windowSize,
		hopSize:    hopSize,
		filterbank: melFilterbank(cfg.NumFilters, cfg.FFTSize, numBins, cfg.SampleRate),
		dct:        dctMatrix(cfg.NumCoeffs, cfg.NumFilters),
	}, nil
}

// Dim returns the length of vectors this extractor produces.
func (e *Extractor) Dim() int {
	if e.cfg.IncludeSpread {
		return 2 * e.cfg.NumCoeffs
	}
	return e.cfg.NumCoeffs
}

// SampleRate returns the rate clips are resampled to before analysis.
func (e *Extractor) SampleRate() int { return e.cfg.SampleRate }

// Extract runs the full pipeline on one clip: resample, pre-emphasis,
// silence trimming, framing, mel-cepstral analysis, temporal aggregation and
// normalization. It fails with model.ErrInvalidAudio for clips that are
// empty, silent, or shorter than the minimum duration after trimming.
func (e *Extractor) Extract(clip model.AudioClip) (model.FeatureVector, error) {
	if len(clip.Samples) == 0 {
		return nil, fmt.Errorf("%w: empty clip", model.ErrInvalidAudio)
	}

	clip, err := audio.Resample(clip, e.cfg.SampleRate)
	if err != nil {
		return nil, err
	}

	samples := preEmphasis(clip.Samples, e.cfg.PreEmphasis)

	samples, err = e.trimSilence(samples)
	if err != nil {
		return nil, err
	}

	minSamples := int(e.cfg.MinDurationS * float64(e.cfg.SampleRate))
	if len(samples) < minSamples {
		return nil, fmt.Errorf("%w: %.2fs of voiced audio after trimming, need %.2fs",
			model.ErrInvalidAudio,
			float64(len(samples))/float64(e.cfg.SampleRate), e.cfg.MinDurationS)
	}

	coeffs := e.mfccFrames(samples)
	if len(coeffs) == 0 {
		return nil, fmt.Errorf("%w: clip too short for a single analysis frame", model.ErrInvalidAudio)
	}

	vec := e.aggregate(coeffs)

	vec, err = normalize(vec)
	if err != nil {
		return nil, err
	}
	if !vec.IsFinite() {
		return nil, fmt.Errorf("%w: non-finite coefficients", model.ErrInvalidAudio)
	}
	return vec, nil
}

// preEmphasis applies y[n] = x[n] - alpha*x[n-1] to boost high frequencies.
func preEmphasis(samples []float64, alpha float64) []float64 {
	out := make([]float64, len(samples))
	out[0] = samples[0]
	for i := 1; i < len(samples); i++ {
		out[i] = samples[i] - alpha*samples[i-1]
	}
	return out
}

// trimSilence drops leading and trailing frames whose RMS energy falls more
// than cfg.TrimDB below the loudest frame. A clip with no frame above the
// threshold is silent.
func (e *Extractor) trimSilence(samples []float64) ([]float64, error) {
	frames := Frames(samples, e.hopSize, e.hopSize)
	if len(frames) == 0 {
		return nil, fmt.Errorf("%w: clip shorter than one hop", model.ErrInvalidAudio)
	}

	rms := make([]float64, len(frames))
	var peak float64
	for i, frame := range frames {
		var sum float64
		for _, s := range frame {
			sum += s * s
		}
		rms[i] = math.Sqrt(sum / float64(len(frame)))
		if rms[i] > peak {
			peak = rms[i]
		}
	}
	if peak <= eps {
		return nil, fmt.Errorf("%w: silent clip", model.ErrInvalidAudio)
	}

	threshold := peak * math.Pow(10.0, -e.cfg.TrimDB/20.0)

	first, last := -1, -1
	for i, r := range rms {
		if r >= threshold {
			if first < 0 {
				first = i
			}
			last = i
		}
	}
	if first < 0 {
		return nil, fmt.Errorf("%w: silent clip", model.ErrInvalidAudio)
	}

	start := first * e.hopSize
	end := (last + 1) * e.hopSize
	if end > len(samples) {
		end = len(samples)
	}
	return samples[start:end], nil
}

// LogMel returns the log mel energy frames of a clip after the same
// resampling, pre-emphasis and silence trimming the MFCC pipeline applies:
// one row per analysis frame, one column per mel filter. It feeds both the
// cepstral stage of Extract and offline spectrogram rendering.
func (e *Extractor) LogMel(clip model.AudioClip) ([][]float64, error) {
	if len(clip.Samples) == 0 {
		return nil, fmt.Errorf("%w: empty clip", model.ErrInvalidAudio)
	}

	clip, err := audio.Resample(clip, e.cfg.SampleRate)
	if err != nil {
		return nil, err
	}

	samples, err := e.trimSilence(preEmphasis(clip.Samples, e.cfg.PreEmphasis))
	if err != nil {
		return nil, err
	}
	return e.logMelFrames(samples), nil
}

// logMelFrames computes one log mel energy row per analysis frame: windowed
// FFT, power spectrum, mel filterbank, log.
func (e *Extractor) logMelFrames(samples []float64) [][]float64 {
	frames := Frames(samples, e.windowSize, e.hopSize)
	numBins := e.cfg.FFTSize/2 + 1

	rows := make([][]float64, 0, len(frames))
	padded := make([]float64, e.cfg.FFTSize)
	for _, frame := range frames {
		for i := range padded {
			padded[i] = 0
		}
		for i, s := range frame {
			padded[i] = s * e.window[i]
		}

		spectrum := fft.FFTReal(padded)
		power := make([]float64, numBins)
		for k := 0; k < numBins; k++ {
			mag := cmplx.Abs(spectrum[k])
			power[k] = mag * mag / float64(e.cfg.FFTSize)
		}

		melEnergy := applyFilterbank(e.filterbank, power)
		for m := range melEnergy {
			melEnergy[m] = math.Log(melEnergy[m] + eps)
		}
		rows = append(rows, melEnergy)
	}
	return rows
}

// mfccFrames compresses log mel frames into cepstral coefficient rows.
func (e *Extractor) mfccFrames(samples []float64) [][]float64 {
	melRows := e.logMelFrames(samples)
	coeffs := make([][]float64, 0, len(melRows))
	for _, row := range melRows {
		coeffs = append(coeffs, applyDCT(e.dct, row))
	}
	return coeffs
}

// aggregate reduces per-frame coefficients to a single fixed-length vector:
// the mean of each coefficient across frames, optionally followed by the
// standard deviation of each coefficient. Both reducers are independent of
// frame order and clip duration.
func (e *Extractor) aggregate(coeffs [][]float64) model.FeatureVector {
	n := e.cfg.NumCoeffs
	frames := float64(len(coeffs))

	means := make([]float64, n)
	for _, row := range coeffs {
		for k := 0; k < n; k++ {
			means[k] += row[k]
		}
	}
	for k := range means {
		means[k] /= frames
	}

	if !e.cfg.IncludeSpread {
		return model.FeatureVector(means)
	}

	stds := make([]float64, n)
	for _, row := range coeffs {
		for k := 0; k < n; k++ {
			d := row[k] - means[k]
			stds[k] += d * d
		}
	}
	for k := range stds {
		stds[k] = math.Sqrt(stds[k] / frames)
	}

	vec := make(model.FeatureVector, 0, 2*n)
	vec = append(vec, means...)
	vec = append(vec, stds...)
	return vec
}

// normalize z-scores the vector (subtract its mean, divide by its standard
// deviation) so recording gain does not dominate similarity. A vector with
// no variance carries no speaker information and is rejected.
func normalize(vec model.FeatureVector) (model.FeatureVector, error) {
	var mean float64
	for _, x := range vec {
		mean += x
	}
	mean /= float64(len(vec))

	var variance float64
	for _, x := range vec {
		d := x - mean
		variance += d * d
	}
	std := math.Sqrt(variance / float64(len(vec)))
	if std <= eps {
		return nil, fmt.Errorf("%w: degenerate features (zero variance)", model.ErrInvalidAudio)
	}

	out := make(model.FeatureVector, len(vec))
	for i, x := range vec {
		out[i] = (x - mean) / std
	}
	return out, nil
}
