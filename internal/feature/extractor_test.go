package feature

import (
	"errors"
	"math"
	"testing"

	"voicegate/internal/matcher"
	"voicegate/internal/model"
)

// synthClip builds a deterministic voiced-like clip from a stack of sine
// partials with the given amplitudes.
func synthClip(t *testing.T, freqs, amps []float64, durSec float64, sampleRate int) model.AudioClip {
	t.Helper()
	if len(freqs) != len(amps) {
		t.Fatalf("freqs/amps length mismatch: %d vs %d", len(freqs), len(amps))
	}

	n := int(durSec * float64(sampleRate))
	samples := make([]float64, n)
	for i := 0; i < n; i++ {
		ts := float64(i) / float64(sampleRate)
		var s float64
		for j, f := range freqs {
			s += amps[j] * math.Sin(2*math.Pi*f*ts)
		}
		samples[i] = s
	}
	return model.AudioClip{Samples: samples, SampleRate: sampleRate}
}

func newTestExtractor(t *testing.T) *Extractor {
	t.Helper()
	e, err := NewExtractor(Config{})
	if err != nil {
		t.Fatalf("NewExtractor failed: %v", err)
	}
	return e
}

func TestExtractVectorShape(t *testing.T) {
	e := newTestExtractor(t)
	clip := synthClip(t, []float64{150, 300, 450}, []float64{0.4, 0.25, 0.15}, 2.0, 16000)

	vec, err := e.Extract(clip)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}

	if vec.Dim() != DefaultNumCoeffs {
		t.Errorf("Expected %d coefficients, got %d", DefaultNumCoeffs, vec.Dim())
	}
	if !vec.IsFinite() {
		t.Error("Vector contains NaN or Inf coefficients")
	}
	if vec.Norm() == 0 {
		t.Error("Normalized vector has zero norm")
	}
}

func TestExtractWithSpreadDoublesLength(t *testing.T) {
	e, err := NewExtractor(Config{IncludeSpread: true})
	if err != nil {
		t.Fatalf("NewExtractor failed: %v", err)
	}
	clip := synthClip(t, []float64{150, 300}, []float64{0.4, 0.2}, 2.0, 16000)

	vec, err := e.Extract(clip)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if vec.Dim() != 2*DefaultNumCoeffs {
		t.Errorf("Expected %d coefficients with spread, got %d", 2*DefaultNumCoeffs, vec.Dim())
	}
}

func TestExtractDeterministic(t *testing.T) {
	e := newTestExtractor(t)
	clip := synthClip(t, []float64{180, 360, 540}, []float64{0.3, 0.2, 0.1}, 1.5, 16000)

	first, err := e.Extract(clip)
	if err != nil {
		t.Fatalf("First extract failed: %v", err)
	}
	second, err := e.Extract(clip)
	if err != nil {
		t.Fatalf("Second extract failed: %v", err)
	}

	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("Coefficient %d differs between runs: %v vs %v", i, first[i], second[i])
		}
	}
}

func TestExtractGainInvariance(t *testing.T) {
	e := newTestExtractor(t)

	loud := synthClip(t, []float64{150, 300, 450}, []float64{0.5, 0.3, 0.2}, 2.0, 16000)
	quiet := model.AudioClip{Samples: make([]float64, len(loud.Samples)), SampleRate: loud.SampleRate}
	for i, s := range loud.Samples {
		quiet.Samples[i] = s * 0.25
	}

	loudVec, err := e.Extract(loud)
	if err != nil {
		t.Fatalf("Extract(loud) failed: %v", err)
	}
	quietVec, err := e.Extract(quiet)
	if err != nil {
		t.Fatalf("Extract(quiet) failed: %v", err)
	}

	sim, err := matcher.Cosine(loudVec, quietVec)
	if err != nil {
		t.Fatalf("Cosine failed: %v", err)
	}
	if sim < 0.95 {
		t.Errorf("Gain change broke feature invariance: similarity %.4f", sim)
	}
}

func TestExtractSampleRateInvariance(t *testing.T) {
	e := newTestExtractor(t)

	freqs := []float64{160, 320, 480, 640}
	amps := []float64{0.35, 0.25, 0.15, 0.1}

	native := synthClip(t, freqs, amps, 2.0, 16000)
	wideband := synthClip(t, freqs, amps, 2.0, 44100)

	nativeVec, err := e.Extract(native)
	if err != nil {
		t.Fatalf("Extract(16k) failed: %v", err)
	}
	widebandVec, err := e.Extract(wideband)
	if err != nil {
		t.Fatalf("Extract(44.1k) failed: %v", err)
	}

	sim, err := matcher.Cosine(nativeVec, widebandVec)
	if err != nil {
		t.Fatalf("Cosine failed: %v", err)
	}
	if sim < 0.9 {
		t.Errorf("Resampling broke feature invariance: similarity %.4f", sim)
	}
}

func TestExtractRejectsBadClips(t *testing.T) {
	e := newTestExtractor(t)

	tests := []struct {
		name string
		clip model.AudioClip
	}{
		{"empty", model.AudioClip{SampleRate: 16000}},
		{"silent", model.AudioClip{Samples: make([]float64, 16000), SampleRate: 16000}},
		{"too short", synthClip(t, []float64{200}, []float64{0.5}, 0.1, 16000)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.Extract(tt.clip)
			if !errors.Is(err, model.ErrInvalidAudio) {
				t.Errorf("Expected ErrInvalidAudio, got %v", err)
			}
		})
	}
}

func TestExtractTrimsSilencePadding(t *testing.T) {
	e := newTestExtractor(t)

	voiced := synthClip(t, []float64{150, 300}, []float64{0.4, 0.2}, 1.5, 16000)

	// Same voiced content with half a second of silence on both ends.
	pad := make([]float64, 8000)
	padded := model.AudioClip{SampleRate: 16000}
	padded.Samples = append(padded.Samples, pad...)
	padded.Samples = append(padded.Samples, voiced.Samples...)
	padded.Samples = append(padded.Samples, pad...)

	voicedVec, err := e.Extract(voiced)
	if err != nil {
		t.Fatalf("Extract(voiced) failed: %v", err)
	}
	paddedVec, err := e.Extract(padded)
	if err != nil {
		t.Fatalf("Extract(padded) failed: %v", err)
	}

	sim, err := matcher.Cosine(voicedVec, paddedVec)
	if err != nil {
		t.Fatalf("Cosine failed: %v", err)
	}
	if sim < 0.9 {
		t.Errorf("Silence padding changed features too much: similarity %.4f", sim)
	}
}

func TestLogMelFrameGeometry(t *testing.T) {
	e := newTestExtractor(t)
	clip := synthClip(t, []float64{150, 300, 450}, []float64{0.4, 0.25, 0.15}, 2.0, 16000)

	rows, err := e.LogMel(clip)
	if err != nil {
		t.Fatalf("LogMel failed: %v", err)
	}
	if len(rows) == 0 {
		t.Fatal("Expected at least one mel frame")
	}
	for i, row := range rows {
		if len(row) != DefaultNumFilters {
			t.Fatalf("Frame %d has %d filters, want %d", i, len(row), DefaultNumFilters)
		}
		for _, v := range row {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				t.Fatalf("Frame %d contains non-finite energy", i)
			}
		}
	}

	// Energy for a 150 Hz harmonic stack concentrates in the low filters.
	var low, high float64
	for _, row := range rows {
		for m, v := range row {
			if m < DefaultNumFilters/2 {
				low += v
			} else {
				high += v
			}
		}
	}
	if low <= high {
		t.Errorf("Low-frequency stack should dominate the low mel filters: low=%.1f high=%.1f", low, high)
	}

	if _, err := e.LogMel(model.AudioClip{SampleRate: 16000}); !errors.Is(err, model.ErrInvalidAudio) {
		t.Errorf("Expected ErrInvalidAudio for empty clip, got %v", err)
	}
}

func TestHammingWindow(t *testing.T) {
	w := Hamming(400)

	if len(w) != 400 {
		t.Fatalf("Expected 400 window samples, got %d", len(w))
	}

	// Symmetric, peaked in the middle, small at the edges.
	for i := 0; i < len(w)/2; i++ {
		if math.Abs(w[i]-w[len(w)-1-i]) > 1e-12 {
			t.Fatalf("Window not symmetric at index %d", i)
		}
	}
	if w[0] > 0.1 || w[0] < 0.07 {
		t.Errorf("Unexpected window edge value: %f", w[0])
	}
	mid := w[len(w)/2]
	if mid < 0.99 || mid > 1.0 {
		t.Errorf("Unexpected window peak value: %f", mid)
	}
}

func TestFrames(t *testing.T) {
	samples := make([]float64, 1000)
	frames := Frames(samples, 400, 160)

	want := (1000-400)/160 + 1
	if len(frames) != want {
		t.Errorf("Expected %d frames, got %d", want, len(frames))
	}
	for i, f := range frames {
		if len(f) != 400 {
			t.Errorf("Frame %d has length %d", i, len(f))
		}
	}

	if got := Frames(samples[:100], 400, 160); got != nil {
		t.Errorf("Expected no frames for short input, got %d", len(got))
	}
}

func TestMelFilterbank(t *testing.T) {
	const (
		numFilters = 26
		nfft       = 512
		sampleRate = 16000
	)
	numBins := nfft/2 + 1
	filters := melFilterbank(numFilters, nfft, numBins, sampleRate)

	if len(filters) != numFilters {
		t.Fatalf("Expected %d filters, got %d", numFilters, len(filters))
	}

	for m, filter := range filters {
		if len(filter) != numBins {
			t.Fatalf("Filter %d has %d bins, want %d", m, len(filter), numBins)
		}
		var sum, peak float64
		for _, w := range filter {
			if w < 0 || w > 1 {
				t.Fatalf("Filter %d has weight outside [0,1]: %f", m, w)
			}
			sum += w
			if w > peak {
				peak = w
			}
		}
		if sum == 0 {
			t.Errorf("Filter %d is empty", m)
		}
		if peak < 0.5 {
			t.Errorf("Filter %d peak too low: %f", m, peak)
		}
	}
}

func TestMelScaleRoundTrip(t *testing.T) {
	for _, hz := range []float64{100, 440, 1000, 4000, 8000} {
		got := melToHz(hzToMel(hz))
		if math.Abs(got-hz) > 1e-6 {
			t.Errorf("Mel round trip for %f Hz gave %f", hz, got)
		}
	}
}

func TestDCTMatrixOrthonormalRows(t *testing.T) {
	m := dctMatrix(13, 26)

	for i := range m {
		for j := range m {
			var dot float64
			for n := range m[i] {
				dot += m[i][n] * m[j][n]
			}
			want := 0.0
			if i == j {
				want = 1.0
			}
			if math.Abs(dot-want) > 1e-9 {
				t.Fatalf("Rows %d and %d have dot product %f, want %f", i, j, dot, want)
			}
		}
	}
}
