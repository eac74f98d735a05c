// ABOUTME: Playback sink interface and software volume control
// ABOUTME: Sinks consume decoded frames produced by the decode stage
package output

import "github.com/Opaline-Protocol/opaline-go/pkg/audio"

// Sink consumes decoded PCM frames.
type Sink interface {
	// Start prepares the sink for the given stream config.
	Start(cfg audio.Config) error
	// Play queues one decoded frame for playback.
	Play(frame *audio.Frame) error
	// SetVolume sets software volume (0-100).
	SetVolume(volume int)
	// SetMuted toggles mute without losing the volume setting.
	SetMuted(muted bool)
	// Close releases the sink. Play must not be called after Close.
	Close() error
}

// applyVolume scales samples in place by volume and mute state.
func applyVolume(samples []int16, volume int, muted bool) {
	multiplier := volumeMultiplier(volume, muted)
	if multiplier == 1.0 {
		return
	}
	for i, sample := range samples {
		samples[i] = int16(float64(sample) * multiplier)
	}
}

func volumeMultiplier(volume int, muted bool) float64 {
	if muted {
		return 0.0
	}
	if volume < 0 {
		volume = 0
	}
	if volume > 100 {
		volume = 100
	}
	return float64(volume) / 100.0
}
