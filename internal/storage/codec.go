package storage

import (
	"fmt"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"voicegate/internal/matcher"
	"voicegate/internal/model"
)

// sampleBlob is the serialized form of one enrollment sample.
type sampleBlob struct {
	Vector []float64 `msgpack:"vector"`
}

// voiceprintBlob is the serialized form of a built voiceprint.
type voiceprintBlob struct {
	Centroid    []float64 `msgpack:"centroid"`
	SampleCount int       `msgpack:"sample_count"`
	CreatedAt   time.Time `msgpack:"created_at"`
}

// EncodeVector serializes a feature vector into an opaque blob.
func EncodeVector(vec model.FeatureVector) ([]byte, error) {
	data, err := msgpack.Marshal(sampleBlob{Vector: vec})
	if err != nil {
		return nil, fmt.Errorf("encoding feature vector: %w", err)
	}
	return data, nil
}

// DecodeVector deserializes a feature vector blob.
func DecodeVector(data []byte) (model.FeatureVector, error) {
	var blob sampleBlob
	if err := msgpack.Unmarshal(data, &blob); err != nil {
		return nil, fmt.Errorf("decoding feature vector: %w", err)
	}
	return model.FeatureVector(blob.Vector), nil
}

// EncodeVoiceprint serializes a voiceprint into an opaque blob.
func EncodeVoiceprint(vp matcher.Voiceprint) ([]byte, error) {
	data, err := msgpack.Marshal(voiceprintBlob{
		Centroid:    vp.Centroid,
		SampleCount: vp.SampleCount,
		CreatedAt:   vp.CreatedAt,
	})
	if err != nil {
		return nil, fmt.Errorf("encoding voiceprint: %w", err)
	}
	return data, nil
}

// DecodeVoiceprint deserializes a voiceprint blob.
func DecodeVoiceprint(data []byte) (matcher.Voiceprint, error) {
	var blob voiceprintBlob
	if err := msgpack.Unmarshal(data, &blob); err != nil {
		return matcher.Voiceprint{}, fmt.Errorf("decoding voiceprint: %w", err)
	}
	return matcher.Voiceprint{
		Centroid:    model.FeatureVector(blob.Centroid),
		SampleCount: blob.SampleCount,
		CreatedAt:   blob.CreatedAt,
	}, nil
}
