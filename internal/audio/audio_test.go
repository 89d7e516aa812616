package audio

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"voicegate/internal/model"
)

// writeWAV writes a 16-bit PCM WAV file and returns its path.
func writeWAV(t *testing.T, dir, name string, channels, sampleRate int, samples []float64) string {
	t.Helper()

	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("Failed to create fixture: %v", err)
	}
	defer f.Close()

	enc := wav.NewEncoder(f, sampleRate, 16, channels, 1)
	data := make([]int, len(samples))
	for i, s := range samples {
		data[i] = int(s * 32767)
	}
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: channels, SampleRate: sampleRate},
		Data:           data,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		t.Fatalf("Failed to write fixture: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("Failed to close encoder: %v", err)
	}
	return path
}

// sine returns durSec seconds of a single tone.
func sine(freq, amp float64, durSec float64, sampleRate int) []float64 {
	n := int(durSec * float64(sampleRate))
	out := make([]float64, n)
	for i := range out {
		out[i] = amp * math.Sin(2*math.Pi*freq*float64(i)/float64(sampleRate))
	}
	return out
}

func TestReadClipMono(t *testing.T) {
	dir := t.TempDir()
	samples := sine(440, 0.5, 1.0, 16000)
	path := writeWAV(t, dir, "mono.wav", 1, 16000, samples)

	clip, err := ReadClip(path)
	if err != nil {
		t.Fatalf("ReadClip failed: %v", err)
	}
	if clip.SampleRate != 16000 {
		t.Errorf("Expected sample rate 16000, got %d", clip.SampleRate)
	}
	if len(clip.Samples) != len(samples) {
		t.Errorf("Expected %d samples, got %d", len(samples), len(clip.Samples))
	}

	var peak float64
	for _, s := range clip.Samples {
		if a := math.Abs(s); a > peak {
			peak = a
		}
	}
	if peak < 0.45 || peak > 0.55 {
		t.Errorf("Peak amplitude %.3f outside expected range around 0.5", peak)
	}
}

func TestReadClipStereoDownmix(t *testing.T) {
	dir := t.TempDir()
	left := sine(440, 0.8, 0.5, 16000)

	// Interleave the tone on the left channel with silence on the right;
	// downmixing should halve the amplitude.
	interleaved := make([]float64, 2*len(left))
	for i, s := range left {
		interleaved[2*i] = s
		interleaved[2*i+1] = 0
	}
	path := writeWAV(t, dir, "stereo.wav", 2, 16000, interleaved)

	clip, err := ReadClip(path)
	if err != nil {
		t.Fatalf("ReadClip failed: %v", err)
	}
	if len(clip.Samples) != len(left) {
		t.Fatalf("Expected %d mono samples, got %d", len(left), len(clip.Samples))
	}

	var peak float64
	for _, s := range clip.Samples {
		if a := math.Abs(s); a > peak {
			peak = a
		}
	}
	if peak < 0.35 || peak > 0.45 {
		t.Errorf("Downmixed peak %.3f, expected about 0.4", peak)
	}
}

func TestReadClipRejectsGarbage(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "garbage.wav")
	if err := os.WriteFile(path, []byte("this is not a wav file at all"), 0o644); err != nil {
		t.Fatalf("Failed to write fixture: %v", err)
	}

	if _, err := ReadClip(path); !errors.Is(err, model.ErrInvalidAudio) {
		t.Errorf("Expected ErrInvalidAudio for garbage input, got %v", err)
	}
}

func TestReadClipMissingFile(t *testing.T) {
	if _, err := ReadClip(filepath.Join(t.TempDir(), "nope.wav")); err == nil {
		t.Error("Expected error reading missing file")
	}
}

func TestResamplePassthrough(t *testing.T) {
	clip := model.AudioClip{Samples: sine(440, 0.5, 0.5, 16000), SampleRate: 16000}

	out, err := Resample(clip, 16000)
	if err != nil {
		t.Fatalf("Resample failed: %v", err)
	}
	if len(out.Samples) != len(clip.Samples) {
		t.Errorf("Passthrough changed sample count: %d -> %d", len(clip.Samples), len(out.Samples))
	}
}

func TestResampleDownsamples(t *testing.T) {
	const durSec = 1.0
	clip := model.AudioClip{Samples: sine(440, 0.5, durSec, 44100), SampleRate: 44100}

	out, err := Resample(clip, 16000)
	if err != nil {
		t.Fatalf("Resample failed: %v", err)
	}
	if out.SampleRate != 16000 {
		t.Errorf("Expected sample rate 16000, got %d", out.SampleRate)
	}

	// Duration is preserved to within a few milliseconds of filter delay.
	gotDur := float64(len(out.Samples)) / 16000
	if math.Abs(gotDur-durSec) > 0.05 {
		t.Errorf("Resampled duration %.3fs, expected about %.3fs", gotDur, durSec)
	}

	// A 440 Hz tone is well inside the passband, so its RMS should survive.
	var sumSq float64
	for _, s := range out.Samples {
		sumSq += s * s
	}
	rms := math.Sqrt(sumSq / float64(len(out.Samples)))
	if rms < 0.25 || rms > 0.45 {
		t.Errorf("Resampled RMS %.3f outside expected range around 0.35", rms)
	}
}

func TestResampleInvalidRates(t *testing.T) {
	clip := model.AudioClip{Samples: sine(440, 0.5, 0.5, 16000), SampleRate: 16000}

	if _, err := Resample(model.AudioClip{Samples: clip.Samples}, 16000); !errors.Is(err, model.ErrInvalidAudio) {
		t.Errorf("Expected ErrInvalidAudio for zero source rate, got %v", err)
	}
	if _, err := Resample(clip, 0); err == nil {
		t.Error("Expected error for zero target rate")
	}
}

func TestValidateClip(t *testing.T) {
	good := model.AudioClip{Samples: sine(440, 0.5, 1.0, 16000), SampleRate: 16000}
	if err := ValidateClip(good); err != nil {
		t.Errorf("Valid clip rejected: %v", err)
	}

	tests := []struct {
		name string
		clip model.AudioClip
	}{
		{"empty", model.AudioClip{SampleRate: 16000}},
		{"low sample rate", model.AudioClip{Samples: sine(440, 0.5, 1.0, 4000), SampleRate: 4000}},
		{"too short", model.AudioClip{Samples: sine(440, 0.5, 0.1, 16000), SampleRate: 16000}},
		{"too long", model.AudioClip{Samples: sine(440, 0.5, 11.0, 16000), SampleRate: 16000}},
		{"too quiet", model.AudioClip{Samples: sine(440, 0.001, 1.0, 16000), SampleRate: 16000}},
		{"clipped", model.AudioClip{Samples: sine(440, 1.2, 1.0, 16000), SampleRate: 16000}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := ValidateClip(tt.clip); !errors.Is(err, model.ErrInvalidAudio) {
				t.Errorf("Expected ErrInvalidAudio, got %v", err)
			}
		})
	}
}
