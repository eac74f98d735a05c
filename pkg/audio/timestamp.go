// ABOUTME: Gapless output timeline reconstruction for decoded frames
// ABOUTME: Tracks a base timestamp plus running frame count per sample rate
package audio

import "time"

// NoTimestamp marks an unset base timestamp.
const NoTimestamp = time.Duration(-1 << 62)

// FrameTimestamper derives continuous per-frame timestamps and durations
// from a sample rate and a running frame count. Timestamps are computed
// from the total frame count each time rather than accumulated, so
// repeated small additions never drift.
type FrameTimestamper struct {
	sampleRate int
	base       time.Duration
	frames     int64
}

// NewFrameTimestamper creates a timestamper for the given sample rate.
// The base timestamp starts unset.
func NewFrameTimestamper(sampleRate int) *FrameTimestamper {
	return &FrameTimestamper{
		sampleRate: sampleRate,
		base:       NoTimestamp,
	}
}

// SetBase seeds the timeline. Frames added afterwards advance from ts.
func (t *FrameTimestamper) SetBase(ts time.Duration) {
	t.base = ts
	t.frames = 0
}

// HasBase reports whether the timeline has been seeded.
func (t *FrameTimestamper) HasBase() bool {
	return t.base != NoTimestamp
}

// Reset clears the base timestamp and frame count. The next SetBase
// reseeds the timeline.
func (t *FrameTimestamper) Reset() {
	t.base = NoTimestamp
	t.frames = 0
}

// Timestamp returns the current position on the output timeline.
func (t *FrameTimestamper) Timestamp() time.Duration {
	return t.base + t.framesToDuration(t.frames)
}

// FrameDuration returns the duration of frameCount frames starting at the
// current position. Computed as a difference of absolute positions so the
// sum of successive durations equals the exact elapsed time.
func (t *FrameTimestamper) FrameDuration(frameCount int) time.Duration {
	end := t.framesToDuration(t.frames + int64(frameCount))
	return end - t.framesToDuration(t.frames)
}

// AddFrames advances the timeline by frameCount frames.
func (t *FrameTimestamper) AddFrames(frameCount int) {
	t.frames += int64(frameCount)
}

func (t *FrameTimestamper) framesToDuration(frames int64) time.Duration {
	seconds := frames / int64(t.sampleRate)
	leftover := frames % int64(t.sampleRate)
	d := time.Duration(seconds) * time.Second
	d += time.Duration(leftover*int64(time.Second)) / time.Duration(t.sampleRate)
	return d
}
