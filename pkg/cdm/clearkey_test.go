// ABOUTME: Tests for the ClearKey reference decryptor
// ABOUTME: Covers AES-CTR round trips, key misses, and PCM frame splitting
package cdm

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/binary"
	"testing"
	"time"

	"github.com/Opaline-Protocol/opaline-go/pkg/audio"
)

var testKey = []byte("0123456789abcdef") // AES-128
var testIV = []byte("iviviviviviviviv")  // 16 bytes

// encryptCTR is the test-side mirror of the decryptor's AES-CTR.
func encryptCTR(t *testing.T, key, iv, plaintext []byte) []byte {
	t.Helper()
	block, err := aes.NewCipher(key)
	if err != nil {
		t.Fatalf("aes: %v", err)
	}
	out := make([]byte, len(plaintext))
	cipher.NewCTR(block, iv).XORKeyStream(out, plaintext)
	return out
}

// pcmBytes packs int16 samples little-endian.
func pcmBytes(samples []int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(s))
	}
	return out
}

func newPCMClearKey(t *testing.T, keys *KeyStore) *ClearKey {
	t.Helper()
	ck := NewClearKey(keys)

	done := make(chan bool, 1)
	ck.InitializeAudioDecoder(audio.Config{
		Codec:      "pcm",
		Channels:   2,
		SampleRate: 48000,
		Encrypted:  true,
	}, func(ok bool) { done <- ok })

	if ok := <-done; !ok {
		t.Fatal("pcm decoder init failed")
	}
	return ck
}

func decode(ck *ClearKey, buf *audio.EncryptedBuffer) (Status, []*audio.Frame) {
	type result struct {
		status Status
		frames []*audio.Frame
	}
	ch := make(chan result, 1)
	ck.DecryptAndDecodeAudio(buf, func(s Status, f []*audio.Frame) {
		ch <- result{s, f}
	})
	r := <-ch
	return r.status, r.frames
}

func TestClearKeyRoundTrip(t *testing.T) {
	keys := NewKeyStore()
	keys.AddKey([]byte("k1"), testKey)
	ck := newPCMClearKey(t, keys)

	samples := []int16{100, -100, 200, -200, 300, -300, 400, -400}
	buf := &audio.EncryptedBuffer{
		Data:      encryptCTR(t, testKey, testIV, pcmBytes(samples)),
		KeyID:     []byte("k1"),
		IV:        testIV,
		Timestamp: 10 * time.Millisecond,
	}

	status, frames := decode(ck, buf)
	if status != StatusSuccess {
		t.Fatalf("expected success, got %v", status)
	}
	if len(frames) != 1 {
		t.Fatalf("expected 1 frame, got %d", len(frames))
	}

	frame := frames[0]
	if frame.FrameCount != 4 {
		t.Errorf("expected 4 frames, got %d", frame.FrameCount)
	}
	for i, want := range samples {
		if frame.Samples[i] != want {
			t.Errorf("sample %d: expected %d, got %d", i, want, frame.Samples[i])
		}
	}
}

func TestClearKeyNoKey(t *testing.T) {
	ck := newPCMClearKey(t, NewKeyStore())

	buf := &audio.EncryptedBuffer{
		Data:  []byte{1, 2, 3, 4},
		KeyID: []byte("missing"),
		IV:    testIV,
	}

	status, frames := decode(ck, buf)
	if status != StatusNoKey {
		t.Fatalf("expected no-key, got %v", status)
	}
	if frames != nil {
		t.Error("expected no frames with no-key status")
	}
}

func TestClearKeyBadIV(t *testing.T) {
	keys := NewKeyStore()
	keys.AddKey([]byte("k1"), testKey)
	ck := newPCMClearKey(t, keys)

	buf := &audio.EncryptedBuffer{
		Data:  []byte{1, 2, 3, 4},
		KeyID: []byte("k1"),
		IV:    []byte("short"),
	}

	status, _ := decode(ck, buf)
	if status != StatusError {
		t.Fatalf("expected error for bad IV, got %v", status)
	}
}

func TestClearKeyEOS(t *testing.T) {
	ck := newPCMClearKey(t, NewKeyStore())

	status, frames := decode(ck, audio.NewEOSBuffer())
	if status != StatusNeedMoreData {
		t.Fatalf("expected need-more-data for EOS buffer, got %v", status)
	}
	if frames != nil {
		t.Error("expected no frames for EOS buffer")
	}
}

func TestClearKeyPCMSplitsLargeChunks(t *testing.T) {
	keys := NewKeyStore()
	keys.AddKey([]byte("k1"), testKey)
	ck := newPCMClearKey(t, keys)

	// 1500 frames stereo: should split into 1024 + 476.
	samples := make([]int16, 1500*2)
	for i := range samples {
		samples[i] = int16(i)
	}

	buf := &audio.EncryptedBuffer{
		Data:  encryptCTR(t, testKey, testIV, pcmBytes(samples)),
		KeyID: []byte("k1"),
		IV:    testIV,
	}

	status, frames := decode(ck, buf)
	if status != StatusSuccess {
		t.Fatalf("expected success, got %v", status)
	}
	if len(frames) != 2 {
		t.Fatalf("expected 2 frames, got %d", len(frames))
	}
	if frames[0].FrameCount != 1024 || frames[1].FrameCount != 476 {
		t.Errorf("expected 1024+476 split, got %d+%d", frames[0].FrameCount, frames[1].FrameCount)
	}
}

func TestClearKeyUnalignedPCM(t *testing.T) {
	keys := NewKeyStore()
	keys.AddKey([]byte("k1"), testKey)
	ck := newPCMClearKey(t, keys)

	buf := &audio.EncryptedBuffer{
		Data:  encryptCTR(t, testKey, testIV, []byte{1, 2, 3}), // not frame-aligned
		KeyID: []byte("k1"),
		IV:    testIV,
	}

	status, _ := decode(ck, buf)
	if status != StatusError {
		t.Fatalf("expected error for unaligned payload, got %v", status)
	}
}

func TestClearKeyUnsupportedCodec(t *testing.T) {
	ck := NewClearKey(NewKeyStore())

	done := make(chan bool, 1)
	ck.InitializeAudioDecoder(audio.Config{
		Codec:      "flac",
		Channels:   2,
		SampleRate: 48000,
	}, func(ok bool) { done <- ok })

	if ok := <-done; ok {
		t.Fatal("expected init failure for unsupported codec")
	}
}
