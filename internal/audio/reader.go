package audio

import (
	"errors"
	"fmt"
	"io"
	"os"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"voicegate/internal/model"
)

// ReadClip reads a PCM WAV file and returns a mono clip with samples
// normalized to [-1, 1]. Stereo input is downmixed by averaging channels.
func ReadClip(path string) (model.AudioClip, error) {
	f, err := os.Open(path)
	if err != nil {
		return model.AudioClip{}, fmt.Errorf("opening wav: %w", err)
	}
	defer f.Close()

	return DecodeClip(f)
}

// DecodeClip decodes a WAV stream into a mono clip.
func DecodeClip(r io.ReadSeeker) (model.AudioClip, error) {
	decoder := wav.NewDecoder(r)
	if !decoder.IsValidFile() {
		return model.AudioClip{}, fmt.Errorf("%w: not a valid WAV stream", model.ErrInvalidAudio)
	}

	buf, err := decoder.FullPCMBuffer()
	if err != nil {
		return model.AudioClip{}, fmt.Errorf("reading pcm data: %w", err)
	}
	if buf == nil || len(buf.Data) == 0 {
		return model.AudioClip{}, fmt.Errorf("%w: no samples in WAV stream", model.ErrInvalidAudio)
	}

	samples, err := toMonoFloat64(buf, int(decoder.BitDepth))
	if err != nil {
		return model.AudioClip{}, err
	}

	return model.AudioClip{
		Samples:    samples,
		SampleRate: int(decoder.SampleRate),
	}, nil
}

// toMonoFloat64 converts an interleaved integer PCM buffer to mono float64
// samples scaled by the bit depth.
func toMonoFloat64(buf *goaudio.IntBuffer, bitDepth int) ([]float64, error) {
	if bitDepth == 0 {
		bitDepth = buf.SourceBitDepth
	}
	if bitDepth <= 0 || bitDepth > 32 {
		return nil, fmt.Errorf("%w: unsupported bit depth %d", model.ErrInvalidAudio, bitDepth)
	}
	scale := 1.0 / float64(int64(1)<<(uint(bitDepth)-1))

	channels := buf.Format.NumChannels
	switch channels {
	case 1:
		out := make([]float64, len(buf.Data))
		for i, s := range buf.Data {
			out[i] = float64(s) * scale
		}
		return out, nil
	case 2:
		frames := len(buf.Data) / 2
		out := make([]float64, frames)
		for i := 0; i < frames; i++ {
			l := float64(buf.Data[2*i]) * scale
			r := float64(buf.Data[2*i+1]) * scale
			out[i] = (l + r) * 0.5
		}
		return out, nil
	default:
		return nil, errors.New("unsupported channel count: only mono/stereo supported")
	}
}
