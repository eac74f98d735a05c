// ABOUTME: Decrypting audio decoder state machine
// ABOUTME: Orchestrates decryptor calls, key waits, reset and stop semantics
package decrypt

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/Opaline-Protocol/opaline-go/pkg/audio"
	"github.com/Opaline-Protocol/opaline-go/pkg/cdm"
)

// State identifies where the decoder is in its lifecycle.
type State int

const (
	StateUninitialized State = iota
	StateDecryptorRequested
	StatePendingDecoderInit
	StateIdle
	StatePendingDecode
	StateWaitingForKey
	StateDecodeFinished
	StateStopped
)

// String returns a short name for the state.
func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateDecryptorRequested:
		return "decryptor-requested"
	case StatePendingDecoderInit:
		return "pending-decoder-init"
	case StateIdle:
		return "idle"
	case StatePendingDecode:
		return "pending-decode"
	case StateWaitingForKey:
		return "waiting-for-key"
	case StateDecodeFinished:
		return "decode-finished"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Status is the result of one Decode call.
type Status int

const (
	// StatusOK means a frame was delivered (possibly the EOS frame).
	StatusOK Status = iota
	// StatusAborted means the decode was cancelled by Reset or Stop.
	StatusAborted
	// StatusNotEnoughData means no frame could be produced yet; supply
	// more input. Not an error.
	StatusNotEnoughData
	// StatusDecodeError means the decryptor failed; no further frames
	// will be produced by this decoder instance.
	StatusDecodeError
)

// String returns a short name for the status.
func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusAborted:
		return "aborted"
	case StatusNotEnoughData:
		return "not-enough-data"
	case StatusDecodeError:
		return "decode-error"
	default:
		return "unknown"
	}
}

// Initialize error taxonomy.
var (
	ErrInvalidConfig        = errors.New("invalid stream config")
	ErrNotEncrypted         = errors.New("stream is not encrypted")
	ErrDecryptorUnavailable = errors.New("no decryptor available")
	ErrDecoderInit          = errors.New("decryptor rejected decoder config")
	ErrStopped              = errors.New("decoder stopped")
)

// InitCallback receives the result of Initialize. It runs exactly once.
type InitCallback func(err error)

// DecodeCallback receives the result of one Decode. It runs exactly
// once; frame is non-nil only with StatusOK.
type DecodeCallback func(status Status, frame *audio.Frame)

// outOfSyncThreshold is how far a decryptor-declared timestamp may
// deviate from the reconstructed one before it is worth logging.
const outOfSyncThreshold = 100 * time.Millisecond

// Decoder is the decrypting audio decode stage. It accepts encrypted
// buffers one at a time and delivers decoded frames with reconstructed,
// gapless timestamps. All completion callbacks run on the decoder's
// internal serialized goroutine.
type Decoder struct {
	runner *taskRunner
	source *cdm.Source

	// Everything below is owned by the runner goroutine.
	state       State
	decryptor   cdm.Decryptor
	config      audio.Config
	initCB      InitCallback
	resetCB     func()
	queued      []*audio.Frame
	timestamper *audio.FrameTimestamper
	cancelReady func()
	cancelKeys  func()

	// keyAdded latches a key arrival seen while a decode was in flight,
	// consumed exactly once by the next delivery.
	keyAdded bool

	// gen invalidates marshaled continuations: Stop bumps it, and any
	// continuation bound under an older generation is dropped unrun.
	gen uint64

	pending pendingRequest
}

// New creates a decoder that will obtain its decryptor from source.
func New(source *cdm.Source) *Decoder {
	return &Decoder{
		runner: newTaskRunner(),
		source: source,
		state:  StateUninitialized,
	}
}

// Initialize configures the decoder for an encrypted stream. cb receives
// nil on success or one of the Err values. On first use the decoder
// waits for a decryptor from its source; later calls reconfigure the
// already-obtained decryptor. Exactly one Initialize may be outstanding.
func (d *Decoder) Initialize(cfg audio.Config, cb InitCallback) {
	if cb == nil {
		panic("decrypt: Initialize requires a completion callback")
	}
	if !d.runner.TryPost(func() { d.doInitialize(cfg, cb) }) {
		go cb(ErrStopped)
	}
}

// Decode submits one encrypted buffer, or drains a previously queued
// frame when buf is nil. Requires a successful Initialize and no decode
// in flight; violations panic. cb receives the result exactly once;
// after Stop the result is an immediate aborted completion.
func (d *Decoder) Decode(buf *audio.EncryptedBuffer, cb DecodeCallback) {
	d.pending.arm(buf, cb)
	if !d.runner.TryPost(d.doDecode) {
		d.pending.takeBuffer()
		if cb := d.pending.takeCallback(); cb != nil {
			go cb(StatusAborted, nil)
		}
	}
}

// GetDecodeOutput returns the next queued frame, or nil. It may only be
// called from within a completion callback, where it shares the
// decoder's serialized context.
func (d *Decoder) GetDecodeOutput() *audio.Frame {
	if len(d.queued) == 0 {
		return nil
	}
	frame := d.queued[0]
	d.queued = d.queued[1:]
	return frame
}

// Reset aborts or drains any in-flight decode, clears the output
// timeline, and returns the decoder to idle. Must not be called while
// an Initialize is outstanding. cb runs once the reset is complete.
func (d *Decoder) Reset(cb func()) {
	if cb == nil {
		panic("decrypt: Reset requires a completion callback")
	}
	if !d.runner.TryPost(func() { d.doReset(cb) }) {
		go cb()
	}
}

// Stop terminates the decoder from any state, including an already
// stopped one. Every outstanding callback completes exactly once with
// an aborted or unavailable result, and no callback can fire after
// Stop begins. cb runs last.
func (d *Decoder) Stop(cb func()) {
	if cb == nil {
		cb = func() {}
	}
	if !d.runner.TryPost(func() { d.doStop(cb) }) {
		// Already stopped and shut down.
		go cb()
	}
}

func (d *Decoder) doInitialize(cfg audio.Config, cb InitCallback) {
	log.Printf("Decoder: initialize, state %v", d.state)

	// Accepted just before Stop ran; complete rather than drop.
	if d.state == StateStopped {
		cb(ErrStopped)
		return
	}

	if d.initCB != nil {
		panic("decrypt: overlapping Initialize calls are not supported")
	}
	if d.pending.hasCallback() {
		panic("decrypt: Initialize while a Decode is outstanding")
	}
	if d.resetCB != nil {
		panic("decrypt: Initialize while a Reset is outstanding")
	}
	d.initCB = cb

	if err := cfg.Validate(); err != nil {
		d.completeInit(fmt.Errorf("%w: %v", ErrInvalidConfig, err))
		return
	}
	if !cfg.Encrypted {
		d.completeInit(ErrNotEncrypted)
		return
	}

	// The decryptor side only produces S16 output.
	cfg.SampleFormat = audio.SampleFormatS16
	d.config = cfg

	if d.state == StateUninitialized {
		d.state = StateDecryptorRequested
		d.cancelReady = d.source.NotifyReady(d.bindDecryptor(d.setDecryptor))
		return
	}

	// Reconfiguration: the decryptor is already in hand.
	d.decryptor.DeinitializeDecoder()
	d.initializeDecoder()
}

func (d *Decoder) setDecryptor(decryptor cdm.Decryptor) {
	if d.state != StateDecryptorRequested {
		panic(fmt.Sprintf("decrypt: decryptor delivered in state %v", d.state))
	}
	d.cancelReady = nil

	if decryptor == nil {
		d.state = StateStopped
		d.completeInit(ErrDecryptorUnavailable)
		return
	}

	d.decryptor = decryptor
	d.initializeDecoder()
}

func (d *Decoder) initializeDecoder() {
	d.state = StatePendingDecoderInit
	d.decryptor.InitializeAudioDecoder(d.config, d.bindBool(d.finishInitialization))
}

func (d *Decoder) finishInitialization(ok bool) {
	if d.state != StatePendingDecoderInit {
		panic(fmt.Sprintf("decrypt: decoder init finished in state %v", d.state))
	}

	if !ok {
		d.state = StateStopped
		d.completeInit(ErrDecoderInit)
		return
	}

	d.timestamper = audio.NewFrameTimestamper(d.config.SampleRate)
	if d.cancelKeys != nil {
		d.cancelKeys()
	}
	d.cancelKeys = d.decryptor.RegisterKeyListener(d.bind(d.onKeyAdded))

	d.state = StateIdle
	d.completeInit(nil)
}

func (d *Decoder) doDecode() {
	// Accepted just before Stop ran; abort the caller rather than drop
	// it. Stop itself may already have completed the callback.
	if d.state == StateStopped {
		d.pending.takeBuffer()
		if cb := d.pending.takeCallback(); cb != nil {
			cb(StatusAborted, nil)
		}
		return
	}

	if d.state != StateIdle && d.state != StateDecodeFinished {
		panic(fmt.Sprintf("decrypt: Decode in state %v", d.state))
	}

	// Once finished (end of stream or decode error), answer immediately
	// with end-of-stream frames without contacting the decryptor.
	if d.state == StateDecodeFinished {
		d.pending.takeBuffer()
		d.completeDecode(StatusOK, audio.NewEOSFrame())
		return
	}

	if len(d.queued) > 0 {
		if buf := d.pending.takeBuffer(); buf != nil {
			panic("decrypt: buffer submitted while queued frames remain undelivered")
		}
		frame := d.queued[0]
		d.queued = d.queued[1:]
		d.completeDecode(StatusOK, frame)
		return
	}

	buf := d.pending.buffer()
	if buf == nil {
		panic("decrypt: Decode without a buffer and no queued frames")
	}

	// The first real buffer seeds the output timeline.
	if !d.timestamper.HasBase() && !buf.EOS {
		d.timestamper.SetBase(buf.Timestamp)
	}

	d.state = StatePendingDecode
	d.decodePendingBuffer()
}

func (d *Decoder) decodePendingBuffer() {
	if d.state != StatePendingDecode {
		panic(fmt.Sprintf("decrypt: decrypt request in state %v", d.state))
	}
	if len(d.queued) != 0 {
		panic("decrypt: frame queue must be empty before a decrypt request")
	}

	d.decryptor.DecryptAndDecodeAudio(d.pending.buffer(), d.bindFrames(d.deliverFrames))
}

func (d *Decoder) deliverFrames(status cdm.Status, frames []*audio.Frame) {
	if d.state != StatePendingDecode {
		panic(fmt.Sprintf("decrypt: decryptor response in state %v", d.state))
	}

	retryOnNoKey := d.keyAdded
	d.keyAdded = false

	buf := d.pending.takeBuffer()
	if buf == nil {
		panic("decrypt: decryptor response without a pending buffer")
	}

	// A deferred Reset short-circuits everything: the caller gets an
	// aborted result and the reset proceeds.
	if d.resetCB != nil {
		d.completeDecode(StatusAborted, nil)
		d.finishReset()
		return
	}

	switch status {
	case cdm.StatusError:
		log.Printf("Decoder: decryptor reported an error")
		d.state = StateDecodeFinished
		d.completeDecode(StatusDecodeError, nil)

	case cdm.StatusNoKey:
		// Keep the buffer for retry once a key arrives. If one already
		// arrived while this request was in flight, retry right away.
		d.pending.setBuffer(buf)
		if retryOnNoKey {
			d.decodePendingBuffer()
			return
		}
		log.Printf("Decoder: no key for buffer at %v, waiting", buf.Timestamp)
		d.state = StateWaitingForKey

	case cdm.StatusNeedMoreData:
		if buf.EOS {
			d.state = StateDecodeFinished
			d.completeDecode(StatusOK, audio.NewEOSFrame())
			return
		}
		d.state = StateIdle
		d.completeDecode(StatusNotEnoughData, nil)

	case cdm.StatusSuccess:
		if len(frames) == 0 {
			panic("decrypt: success status with no frames")
		}
		d.enqueueFrames(frames)
		d.state = StateIdle
		frame := d.queued[0]
		d.queued = d.queued[1:]
		d.completeDecode(StatusOK, frame)

	default:
		panic(fmt.Sprintf("decrypt: unknown decryptor status %d", status))
	}
}

func (d *Decoder) onKeyAdded() {
	if d.state == StatePendingDecode {
		d.keyAdded = true
		return
	}

	if d.state == StateWaitingForKey {
		log.Printf("Decoder: key arrived, resuming decode")
		d.state = StatePendingDecode
		d.decodePendingBuffer()
	}
}

func (d *Decoder) doReset(cb func()) {
	log.Printf("Decoder: reset, state %v", d.state)

	// Accepted just before Stop ran; nothing left to clear.
	if d.state == StateStopped {
		cb()
		return
	}

	switch d.state {
	case StateIdle, StatePendingDecode, StateWaitingForKey, StateDecodeFinished:
	default:
		panic(fmt.Sprintf("decrypt: Reset in state %v", d.state))
	}
	if d.initCB != nil {
		panic("decrypt: Reset while an Initialize is outstanding")
	}
	if d.resetCB != nil {
		panic("decrypt: overlapping Reset calls are not supported")
	}
	d.resetCB = cb

	d.decryptor.ResetDecoder()

	// A decode in flight defers the reset until its response arrives;
	// deliverFrames completes it.
	if d.state == StatePendingDecode {
		return
	}

	// Waiting for a key: abort the stalled caller immediately.
	if d.state == StateWaitingForKey {
		d.pending.takeBuffer()
		d.completeDecode(StatusAborted, nil)
	}

	d.finishReset()
}

func (d *Decoder) finishReset() {
	d.queued = nil
	d.timestamper.Reset()
	d.state = StateIdle

	cb := d.resetCB
	d.resetCB = nil
	cb()
}

func (d *Decoder) doStop(cb func()) {
	log.Printf("Decoder: stop, state %v", d.state)

	// Stop is allowed from any state, including Stopped: a second Stop
	// queued behind the first simply completes.
	if d.state == StateStopped {
		cb()
		return
	}

	// Invalidate every marshaled continuation so none can fire into the
	// stopped decoder.
	d.gen++

	if d.decryptor != nil {
		d.decryptor.DeinitializeDecoder()
		d.decryptor = nil
	}
	if d.cancelReady != nil {
		d.cancelReady()
		d.cancelReady = nil
	}
	if d.cancelKeys != nil {
		d.cancelKeys()
		d.cancelKeys = nil
	}
	d.pending.takeBuffer()
	d.queued = nil

	if d.initCB != nil {
		d.completeInit(ErrStopped)
	}
	if d.pending.hasCallback() {
		d.completeDecode(StatusAborted, nil)
	}
	if d.resetCB != nil {
		resetCB := d.resetCB
		d.resetCB = nil
		resetCB()
	}

	d.state = StateStopped
	cb()
	d.runner.Shutdown()
}

// completeInit consumes the one-shot Initialize callback.
func (d *Decoder) completeInit(err error) {
	cb := d.initCB
	if cb == nil {
		panic("decrypt: Initialize completed twice")
	}
	d.initCB = nil
	cb(err)
}

// completeDecode consumes the one-shot Decode callback.
func (d *Decoder) completeDecode(status Status, frame *audio.Frame) {
	cb := d.pending.takeCallback()
	if cb == nil {
		panic("decrypt: Decode completed twice")
	}
	cb(status, frame)
}

// enqueueFrames stamps decoded frames onto the reconstructed output
// timeline and queues them for delivery.
func (d *Decoder) enqueueFrames(frames []*audio.Frame) {
	for _, frame := range frames {
		if frame.EOS {
			panic("decrypt: decryptor returned an EOS frame in a success set")
		}
		if frame.FrameCount <= 0 {
			panic("decrypt: decryptor returned an empty frame")
		}

		current := d.timestamper.Timestamp()
		if drift := current - frame.Timestamp; drift > outOfSyncThreshold || drift < -outOfSyncThreshold {
			log.Printf("Decoder: decryptor timestamp %v does not match reconstructed %v",
				frame.Timestamp, current)
		}

		frame.Timestamp = current
		frame.Duration = d.timestamper.FrameDuration(frame.FrameCount)
		d.timestamper.AddFrames(frame.FrameCount)
	}

	d.queued = append(d.queued, frames...)
}

// bind wraps f so that invoking the result marshals f onto the runner,
// dropped silently if Stop has invalidated the generation since.
func (d *Decoder) bind(f func()) func() {
	gen := d.gen
	return func() {
		d.runner.Post(func() {
			if d.gen == gen {
				f()
			}
		})
	}
}

func (d *Decoder) bindBool(f func(bool)) func(bool) {
	gen := d.gen
	return func(v bool) {
		d.runner.Post(func() {
			if d.gen == gen {
				f(v)
			}
		})
	}
}

func (d *Decoder) bindDecryptor(f func(cdm.Decryptor)) func(cdm.Decryptor) {
	gen := d.gen
	return func(dec cdm.Decryptor) {
		d.runner.Post(func() {
			if d.gen == gen {
				f(dec)
			}
		})
	}
}

func (d *Decoder) bindFrames(f func(cdm.Status, []*audio.Frame)) func(cdm.Status, []*audio.Frame) {
	gen := d.gen
	return func(status cdm.Status, frames []*audio.Frame) {
		d.runner.Post(func() {
			if d.gen == gen {
				f(status, frames)
			}
		})
	}
}
