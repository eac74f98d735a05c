// ABOUTME: Tests for playback sinks and volume scaling
// ABOUTME: Uses the null sink; no audio device required
package output

import (
	"testing"

	"github.com/Opaline-Protocol/opaline-go/pkg/audio"
)

func TestVolumeMultiplier(t *testing.T) {
	tests := []struct {
		volume int
		muted  bool
		want   float64
	}{
		{100, false, 1.0},
		{50, false, 0.5},
		{0, false, 0.0},
		{100, true, 0.0},
		{150, false, 1.0},
		{-10, false, 0.0},
	}

	for _, tt := range tests {
		if got := volumeMultiplier(tt.volume, tt.muted); got != tt.want {
			t.Errorf("volumeMultiplier(%d, %v) = %v, want %v", tt.volume, tt.muted, got, tt.want)
		}
	}
}

func TestApplyVolumeScales(t *testing.T) {
	samples := []int16{1000, -1000, 30000}
	applyVolume(samples, 50, false)

	want := []int16{500, -500, 15000}
	for i := range want {
		if samples[i] != want[i] {
			t.Errorf("sample %d: got %d, want %d", i, samples[i], want[i])
		}
	}
}

func TestApplyVolumeMute(t *testing.T) {
	samples := []int16{1000, -1000}
	applyVolume(samples, 100, true)

	for i, s := range samples {
		if s != 0 {
			t.Errorf("sample %d not silenced: %d", i, s)
		}
	}
}

func TestApplyVolumeFullIsIdentity(t *testing.T) {
	samples := []int16{32767, -32768, 0}
	applyVolume(samples, 100, false)

	want := []int16{32767, -32768, 0}
	for i := range want {
		if samples[i] != want[i] {
			t.Errorf("sample %d changed at full volume: %d", i, samples[i])
		}
	}
}

func TestNullSink(t *testing.T) {
	sink := NewNullSink()

	if err := sink.Play(&audio.Frame{}); err == nil {
		t.Error("expected error playing before start")
	}

	if err := sink.Start(audio.Config{Codec: "pcm", Channels: 2, SampleRate: 48000}); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	frame := &audio.Frame{Samples: make([]int16, 960), FrameCount: 480, Channels: 2}
	if err := sink.Play(frame); err != nil {
		t.Fatalf("play failed: %v", err)
	}
	if err := sink.Play(audio.NewEOSFrame()); err != nil {
		t.Fatalf("play EOS failed: %v", err)
	}

	frames, samples, sawEOS := sink.Stats()
	if frames != 1 || samples != 960 || !sawEOS {
		t.Errorf("unexpected stats: %d frames, %d samples, eos %v", frames, samples, sawEOS)
	}

	if err := sink.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}
}
