// ABOUTME: PCM audio sources for the demo server
// ABOUTME: Test tone generator and MP3 file source
package server

import (
	"encoding/binary"
	"fmt"
	"io"
	"log"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/hajimehoshi/go-mp3"
)

const (
	DefaultSampleRate = 48000
	DefaultChannels   = 2
)

// AudioSource provides interleaved S16 PCM samples. Read returns io.EOF
// once the source is exhausted.
type AudioSource interface {
	Read(samples []int16) (int, error)
	SampleRate() int
	Channels() int
	Close() error
}

// TestToneSource generates a 440Hz sine tone, stereo at 48kHz. A
// non-zero maxFrames bounds the stream so it reaches end of stream.
type TestToneSource struct {
	mu          sync.Mutex
	sampleIndex uint64
	frequency   float64
	maxFrames   uint64
}

// NewTestToneSource creates a tone source. maxFrames of 0 means endless.
func NewTestToneSource(maxFrames uint64) *TestToneSource {
	return &TestToneSource{
		frequency: 440.0, // A4
		maxFrames: maxFrames,
	}
}

func (s *TestToneSource) Read(samples []int16) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	numFrames := uint64(len(samples) / 2)
	if s.maxFrames > 0 {
		remaining := s.maxFrames - s.sampleIndex
		if remaining == 0 {
			return 0, io.EOF
		}
		if numFrames > remaining {
			numFrames = remaining
		}
	}

	for i := uint64(0); i < numFrames; i++ {
		t := float64(s.sampleIndex+i) / float64(DefaultSampleRate)
		sample := math.Sin(2 * math.Pi * s.frequency * t)
		pcmValue := int16(sample * 32767.0 * 0.5) // 50% volume

		samples[i*2] = pcmValue
		samples[i*2+1] = pcmValue
	}

	s.sampleIndex += numFrames

	return int(numFrames * 2), nil
}

func (s *TestToneSource) SampleRate() int { return DefaultSampleRate }
func (s *TestToneSource) Channels() int   { return DefaultChannels }
func (s *TestToneSource) Close() error    { return nil }

// MP3Source reads from an MP3 file. The stream ends when the file does.
type MP3Source struct {
	file       *os.File
	decoder    *mp3.Decoder
	sampleRate int
	title      string
}

// NewMP3Source creates an MP3 audio source.
func NewMP3Source(filePath string) (*MP3Source, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open MP3 file: %w", err)
	}

	decoder, err := mp3.NewDecoder(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to decode MP3: %w", err)
	}

	filename := filepath.Base(filePath)
	title := strings.TrimSuffix(filename, filepath.Ext(filename))

	log.Printf("Loaded MP3: %s (sample rate: %d Hz)", title, decoder.SampleRate())

	return &MP3Source{
		file:       f,
		decoder:    decoder,
		sampleRate: decoder.SampleRate(),
		title:      title,
	}, nil
}

func (s *MP3Source) Read(samples []int16) (int, error) {
	// The decoder outputs interleaved stereo S16LE bytes.
	buf := make([]byte, len(samples)*2)

	n, err := io.ReadFull(s.decoder, buf)
	if err != nil && err != io.ErrUnexpectedEOF {
		if err == io.EOF {
			return 0, io.EOF
		}
		return 0, err
	}

	numSamples := n / 2
	for i := 0; i < numSamples; i++ {
		samples[i] = int16(binary.LittleEndian.Uint16(buf[i*2 : i*2+2]))
	}

	return numSamples, nil
}

func (s *MP3Source) SampleRate() int { return s.sampleRate }
func (s *MP3Source) Channels() int   { return 2 }
func (s *MP3Source) Close() error    { return s.file.Close() }
