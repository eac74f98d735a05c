// ABOUTME: Tests for demo server audio sources
// ABOUTME: Covers tone generation, stereo layout, and bounded streams
package server

import (
	"io"
	"testing"
)

func TestToneSourceGeneratesSamples(t *testing.T) {
	source := NewTestToneSource(0)
	defer source.Close()

	samples := make([]int16, 960*2)
	n, err := source.Read(samples)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if n != len(samples) {
		t.Fatalf("expected %d samples, got %d", len(samples), n)
	}

	nonZero := false
	for i := 0; i < n; i += 2 {
		if samples[i] != samples[i+1] {
			t.Fatal("channels differ; expected duplicated mono tone")
		}
		if samples[i] != 0 {
			nonZero = true
		}
	}
	if !nonZero {
		t.Error("tone is silent")
	}
}

func TestToneSourceBounded(t *testing.T) {
	source := NewTestToneSource(1000)
	defer source.Close()

	samples := make([]int16, 960*2)

	n, err := source.Read(samples)
	if err != nil || n != 960*2 {
		t.Fatalf("first read: n=%d err=%v", n, err)
	}

	// 40 frames remain.
	n, err = source.Read(samples)
	if err != nil || n != 40*2 {
		t.Fatalf("second read: n=%d err=%v", n, err)
	}

	if _, err := source.Read(samples); err != io.EOF {
		t.Fatalf("expected EOF after bound, got %v", err)
	}
}

func TestToneSourceFormat(t *testing.T) {
	source := NewTestToneSource(0)
	defer source.Close()

	if source.SampleRate() != DefaultSampleRate {
		t.Errorf("unexpected sample rate %d", source.SampleRate())
	}
	if source.Channels() != DefaultChannels {
		t.Errorf("unexpected channel count %d", source.Channels())
	}
}

func TestMP3SourceMissingFile(t *testing.T) {
	if _, err := NewMP3Source("/nonexistent/file.mp3"); err == nil {
		t.Error("expected error for missing file")
	}
}
