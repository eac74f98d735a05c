// ABOUTME: Discarding playback sink for headless use
// ABOUTME: Counts frames and samples without touching an audio device
package output

import (
	"fmt"
	"sync"

	"github.com/Opaline-Protocol/opaline-go/pkg/audio"
)

// NullSink discards frames. Useful for tests and headless players.
type NullSink struct {
	mu      sync.Mutex
	started bool
	frames  int
	samples int
	sawEOS  bool
}

func NewNullSink() *NullSink {
	return &NullSink{}
}

func (n *NullSink) Start(cfg audio.Config) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.started {
		return fmt.Errorf("output already started")
	}
	n.started = true
	return nil
}

func (n *NullSink) Play(frame *audio.Frame) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if !n.started {
		return fmt.Errorf("output not started")
	}
	if frame.EOS {
		n.sawEOS = true
		return nil
	}
	n.frames++
	n.samples += len(frame.Samples)
	return nil
}

func (n *NullSink) SetVolume(volume int) {}

func (n *NullSink) SetMuted(muted bool) {}

func (n *NullSink) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.started = false
	return nil
}

// Stats reports what was played so far.
func (n *NullSink) Stats() (frames, samples int, sawEOS bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.frames, n.samples, n.sawEOS
}
