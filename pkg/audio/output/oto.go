// ABOUTME: Audio playback sink using the oto library
// ABOUTME: Streams S16LE PCM through a single long-lived oto player
package output

import (
	"encoding/binary"
	"fmt"
	"io"
	"log"
	"sync"

	"github.com/Opaline-Protocol/opaline-go/pkg/audio"
	"github.com/ebitengine/oto/v3"
)

// OtoSink plays decoded frames through the system audio device.
type OtoSink struct {
	mu     sync.Mutex
	otoCtx *oto.Context
	player *oto.Player
	feed   *pcmFeed
	volume int
	muted  bool
	ready  bool
}

// NewOtoSink creates an uninitialized sink at full volume.
func NewOtoSink() *OtoSink {
	return &OtoSink{volume: 100}
}

// Start creates the oto context for the stream config and begins playback.
func (o *OtoSink) Start(cfg audio.Config) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.ready {
		return fmt.Errorf("output already started")
	}

	op := &oto.NewContextOptions{
		SampleRate:   cfg.SampleRate,
		ChannelCount: cfg.Channels,
		Format:       oto.FormatSignedInt16LE,
	}

	ctx, readyChan, err := oto.NewContext(op)
	if err != nil {
		return fmt.Errorf("failed to create oto context: %w", err)
	}
	<-readyChan

	o.otoCtx = ctx
	o.feed = newPCMFeed()
	o.player = ctx.NewPlayer(o.feed)
	o.player.Play()
	o.ready = true

	log.Printf("Audio output started: %dHz, %d channels", cfg.SampleRate, cfg.Channels)
	return nil
}

// Play queues one frame. EOS frames close the feed so the player drains.
func (o *OtoSink) Play(frame *audio.Frame) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if !o.ready {
		return fmt.Errorf("output not started")
	}
	if frame.EOS {
		o.feed.closeFeed()
		return nil
	}

	samples := make([]int16, len(frame.Samples))
	copy(samples, frame.Samples)
	applyVolume(samples, o.volume, o.muted)

	data := make([]byte, len(samples)*2)
	for i, sample := range samples {
		binary.LittleEndian.PutUint16(data[i*2:], uint16(sample))
	}

	o.feed.push(data)
	return nil
}

// SetVolume sets the volume (0-100).
func (o *OtoSink) SetVolume(volume int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if volume < 0 {
		volume = 0
	}
	if volume > 100 {
		volume = 100
	}
	o.volume = volume
	log.Printf("Volume set to %d", volume)
}

// SetMuted sets the mute state.
func (o *OtoSink) SetMuted(muted bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.muted = muted
	log.Printf("Muted: %v", muted)
}

// Close stops playback and releases the device.
func (o *OtoSink) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if !o.ready {
		return nil
	}
	o.feed.closeFeed()
	if err := o.player.Close(); err != nil {
		return fmt.Errorf("failed to close oto player: %w", err)
	}
	o.otoCtx.Suspend()
	o.ready = false
	return nil
}

// pcmFeed is an io.Reader fed by Play and drained by the oto player.
type pcmFeed struct {
	mu      sync.Mutex
	cond    *sync.Cond
	pending []byte
	closed  bool
}

func newPCMFeed() *pcmFeed {
	f := &pcmFeed{}
	f.cond = sync.NewCond(&f.mu)
	return f
}

func (f *pcmFeed) push(data []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.pending = append(f.pending, data...)
	f.cond.Signal()
}

func (f *pcmFeed) closeFeed() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	f.cond.Broadcast()
}

func (f *pcmFeed) Read(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for len(f.pending) == 0 && !f.closed {
		f.cond.Wait()
	}
	if len(f.pending) == 0 {
		return 0, io.EOF
	}

	n := copy(p, f.pending)
	f.pending = f.pending[n:]
	return n, nil
}
