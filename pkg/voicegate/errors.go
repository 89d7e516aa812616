package voicegate

import (
	"voicegate/internal/matcher"
	"voicegate/internal/model"
)

// Error kinds surfaced by the service. Match with errors.Is. Audio errors
// mean the caller should prompt for a re-recording; sample-count errors mean
// the user should be redirected to enrollment.
var (
	ErrInvalidAudio        = model.ErrInvalidAudio
	ErrDimensionMismatch   = model.ErrDimensionMismatch
	ErrInsufficientSamples = matcher.ErrInsufficientSamples
	ErrNoVoiceprint        = matcher.ErrNoVoiceprint
)
