// ABOUTME: High-level Player API for Opaline streaming
// ABOUTME: Wires the protocol client, CDM, decrypting decoder, and output
package opaline

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/Opaline-Protocol/opaline-go/pkg/audio"
	"github.com/Opaline-Protocol/opaline-go/pkg/audio/decrypt"
	"github.com/Opaline-Protocol/opaline-go/pkg/audio/output"
	"github.com/Opaline-Protocol/opaline-go/pkg/cdm"
	"github.com/Opaline-Protocol/opaline-go/pkg/protocol"
	"github.com/google/uuid"
)

// PlayerConfig holds player configuration.
type PlayerConfig struct {
	// ServerAddr is the server address (host:port)
	ServerAddr string

	// PlayerName is the display name for this player
	PlayerName string

	// Volume is the initial volume (0-100)
	Volume int

	// Sink overrides the playback sink (default: system audio via oto)
	Sink output.Sink

	// DeviceInfo provides device identification
	DeviceInfo DeviceInfo

	// OnStateChange is called when playback state changes
	OnStateChange func(PlayerState)

	// OnError is called when errors occur
	OnError func(error)
}

// DeviceInfo describes the player device.
type DeviceInfo struct {
	ProductName     string
	Manufacturer    string
	SoftwareVersion string
}

// PlayerState describes the current state.
type PlayerState struct {
	State      string // "idle", "playing", "waiting_for_key", "finished", "error"
	Volume     int
	Muted      bool
	Codec      string
	SampleRate int
	Channels   int
	Encrypted  bool
	Connected  bool
	Frames     int64 // Decoded frames delivered so far
}

// Player provides high-level audio playback from Opaline servers. Each
// stream gets its own decrypting decoder fed from a shared key store;
// keys delivered by the server unblock decodes stalled on a missing key.
type Player struct {
	config PlayerConfig

	client   *protocol.Client
	keystore *cdm.KeyStore
	sink     output.Sink

	mu    sync.Mutex
	state PlayerState

	ctx    context.Context
	cancel context.CancelFunc
}

// NewPlayer creates a new player with the given configuration.
func NewPlayer(config PlayerConfig) (*Player, error) {
	if config.ServerAddr == "" {
		return nil, fmt.Errorf("server address is required")
	}
	if config.Volume == 0 {
		config.Volume = 100
	}
	if config.PlayerName == "" {
		config.PlayerName = "Opaline Player"
	}
	if config.DeviceInfo.ProductName == "" {
		config.DeviceInfo.ProductName = "Opaline Player"
	}
	if config.DeviceInfo.Manufacturer == "" {
		config.DeviceInfo.Manufacturer = "Opaline"
	}
	if config.DeviceInfo.SoftwareVersion == "" {
		config.DeviceInfo.SoftwareVersion = "1.0.0"
	}

	sink := config.Sink
	if sink == nil {
		sink = output.NewOtoSink()
	}
	sink.SetVolume(config.Volume)

	ctx, cancel := context.WithCancel(context.Background())

	return &Player{
		config:   config,
		keystore: cdm.NewKeyStore(),
		sink:     sink,
		ctx:      ctx,
		cancel:   cancel,
		state: PlayerState{
			State:  "idle",
			Volume: config.Volume,
		},
	}, nil
}

// Connect establishes the connection to the server and starts the
// stream and key handlers.
func (p *Player) Connect() error {
	clientConfig := protocol.Config{
		ServerAddr:      p.config.ServerAddr,
		ClientID:        uuid.New().String(),
		Name:            p.config.PlayerName,
		Version:         1,
		SupportedCodecs: []string{"opus", "pcm"},
		DeviceInfo: protocol.DeviceInfo{
			ProductName:     p.config.DeviceInfo.ProductName,
			Manufacturer:    p.config.DeviceInfo.Manufacturer,
			SoftwareVersion: p.config.DeviceInfo.SoftwareVersion,
		},
	}

	p.client = protocol.NewClient(clientConfig)
	if err := p.client.Connect(); err != nil {
		return fmt.Errorf("connection failed: %w", err)
	}

	log.Printf("Connected to server: %s", p.config.ServerAddr)
	p.updateState(func(s *PlayerState) { s.Connected = true })

	go p.handleKeys()
	go p.handleStreams()

	return nil
}

// handleKeys feeds delivered content keys into the key store. The store
// notifies any decoder stalled on a missing key.
func (p *Player) handleKeys() {
	for {
		select {
		case key := <-p.client.StreamKeys:
			keyID, keyBytes, err := key.Decode()
			if err != nil {
				p.notifyError(fmt.Errorf("bad key delivery: %w", err))
				continue
			}
			log.Printf("Received content key (%d bytes)", len(keyBytes))
			p.keystore.AddKey(keyID, keyBytes)

		case <-p.ctx.Done():
			return
		}
	}
}

// handleStreams runs one playback session per stream/start.
func (p *Player) handleStreams() {
	for {
		select {
		case start := <-p.client.StreamStart:
			p.runStream(start)

		case <-p.ctx.Done():
			return
		}
	}
}

// runStream plays one stream to completion.
func (p *Player) runStream(start protocol.StreamStart) {
	cfg, err := start.AudioConfig()
	if err != nil {
		p.notifyError(err)
		return
	}
	keyID, err := start.KeyIDBytes()
	if err != nil {
		p.notifyError(err)
		return
	}

	clearKey := cdm.NewClearKey(p.keystore)
	source := cdm.NewSource()
	source.Provide(clearKey)
	decoder := decrypt.New(source)
	defer func() {
		done := make(chan struct{})
		decoder.Stop(func() { close(done) })
		<-done
	}()

	initErr := make(chan error, 1)
	decoder.Initialize(cfg, func(err error) { initErr <- err })
	if err := <-initErr; err != nil {
		p.notifyError(fmt.Errorf("decoder init failed: %w", err))
		return
	}

	if err := p.sink.Start(cfg); err != nil {
		p.notifyError(fmt.Errorf("failed to start output: %w", err))
		return
	}
	defer p.sink.Close()

	p.updateState(func(s *PlayerState) {
		s.State = "playing"
		s.Codec = cfg.Codec
		s.SampleRate = cfg.SampleRate
		s.Channels = cfg.Channels
		s.Encrypted = cfg.Encrypted
		s.Frames = 0
	})
	p.client.SendState(protocol.ClientState{State: "playing", Volume: p.Status().Volume})

	p.pumpChunks(decoder, keyID)
}

// pumpChunks decodes chunks strictly one at a time. A decode stalled on
// a missing key flips the state to waiting_for_key until it completes.
func (p *Player) pumpChunks(decoder *decrypt.Decoder, keyID []byte) {
	for {
		var buf *audio.EncryptedBuffer

		select {
		case chunk := <-p.client.AudioChunks:
			buf = chunk.Buffer(keyID)
		case <-p.client.StreamEnd:
			buf = audio.NewEOSBuffer()
		case <-p.ctx.Done():
			return
		}

		finished, err := p.decodeOne(decoder, buf)
		if err != nil {
			p.notifyError(err)
			p.updateState(func(s *PlayerState) { s.State = "error" })
			return
		}
		if finished {
			p.updateState(func(s *PlayerState) { s.State = "finished" })
			p.client.SendState(protocol.ClientState{State: "ready", Volume: p.Status().Volume})
			return
		}
	}
}

// decodeOne submits one buffer and plays every frame it yields. Returns
// finished=true once the end-of-stream frame is delivered.
func (p *Player) decodeOne(decoder *decrypt.Decoder, buf *audio.EncryptedBuffer) (bool, error) {
	type result struct {
		status decrypt.Status
		frames []*audio.Frame
	}

	done := make(chan result, 1)
	decoder.Decode(buf, func(status decrypt.Status, frame *audio.Frame) {
		r := result{status: status}
		if frame != nil {
			r.frames = append(r.frames, frame)
			for extra := decoder.GetDecodeOutput(); extra != nil; extra = decoder.GetDecodeOutput() {
				r.frames = append(r.frames, extra)
			}
		}
		done <- r
	})

	// Surface a key stall to the UI if the decode does not complete
	// promptly.
	waiting := time.NewTimer(150 * time.Millisecond)
	defer waiting.Stop()

	var r result
	select {
	case r = <-done:
	case <-waiting.C:
		// Slow completion, most likely a key stall.
		p.updateState(func(s *PlayerState) { s.State = "waiting_for_key" })
		p.client.SendState(protocol.ClientState{State: "waiting_for_key", Volume: p.Status().Volume})
		select {
		case r = <-done:
			p.updateState(func(s *PlayerState) { s.State = "playing" })
			p.client.SendState(protocol.ClientState{State: "playing", Volume: p.Status().Volume})
		case <-p.ctx.Done():
			return true, nil
		}
	}

	switch r.status {
	case decrypt.StatusOK:
	case decrypt.StatusNotEnoughData:
		return false, nil
	case decrypt.StatusAborted:
		return true, nil
	case decrypt.StatusDecodeError:
		return false, fmt.Errorf("decode failed")
	}

	for _, frame := range r.frames {
		if frame.EOS {
			p.sink.Play(frame)
			return true, nil
		}
		if err := p.sink.Play(frame); err != nil {
			return false, fmt.Errorf("playback error: %w", err)
		}
		p.updateState(func(s *PlayerState) { s.Frames += int64(frame.FrameCount) })
	}

	return false, nil
}

// SetVolume sets the volume (0-100).
func (p *Player) SetVolume(volume int) error {
	if volume < 0 {
		volume = 0
	}
	if volume > 100 {
		volume = 100
	}

	p.updateState(func(s *PlayerState) { s.Volume = volume })
	p.sink.SetVolume(volume)

	if p.client != nil && p.client.IsConnected() {
		st := p.Status()
		p.client.SendState(protocol.ClientState{State: st.State, Volume: volume, Muted: st.Muted})
	}
	return nil
}

// Mute sets the mute state.
func (p *Player) Mute(muted bool) error {
	p.updateState(func(s *PlayerState) { s.Muted = muted })
	p.sink.SetMuted(muted)

	if p.client != nil && p.client.IsConnected() {
		st := p.Status()
		p.client.SendState(protocol.ClientState{State: st.State, Volume: st.Volume, Muted: muted})
	}
	return nil
}

// Status returns a snapshot of the current player state.
func (p *Player) Status() PlayerState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Close closes the player and releases all resources.
func (p *Player) Close() error {
	p.cancel()

	if p.client != nil {
		p.client.SendGoodbye("shutdown")
		p.client.Close()
	}
	p.sink.Close()

	p.updateState(func(s *PlayerState) {
		s.Connected = false
		s.State = "idle"
	})
	return nil
}

func (p *Player) updateState(mutate func(*PlayerState)) {
	p.mu.Lock()
	mutate(&p.state)
	snapshot := p.state
	p.mu.Unlock()

	if p.config.OnStateChange != nil {
		p.config.OnStateChange(snapshot)
	}
}

func (p *Player) notifyError(err error) {
	if p.config.OnError != nil {
		p.config.OnError(err)
	} else {
		log.Printf("Player error: %v", err)
	}
}
