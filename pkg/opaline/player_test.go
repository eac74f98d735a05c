// ABOUTME: Integration tests for the Player API
// ABOUTME: Tests player creation, configuration, and basic operations
package opaline

import (
	"testing"
	"time"

	"github.com/Opaline-Protocol/opaline-go/pkg/audio/output"
)

func newTestPlayer(t *testing.T, config PlayerConfig) *Player {
	t.Helper()
	if config.Sink == nil {
		config.Sink = output.NewNullSink()
	}
	player, err := NewPlayer(config)
	if err != nil {
		t.Fatalf("Failed to create player: %v", err)
	}
	t.Cleanup(func() { player.Close() })
	return player
}

func TestNewPlayer(t *testing.T) {
	player := newTestPlayer(t, PlayerConfig{
		ServerAddr: "localhost:8927",
		PlayerName: "Test Player",
		Volume:     80,
	})

	state := player.Status()
	if state.State != "idle" {
		t.Errorf("Expected initial state='idle', got '%s'", state.State)
	}
	if state.Volume != 80 {
		t.Errorf("Expected volume=80, got %d", state.Volume)
	}
	if state.Connected {
		t.Error("Expected connected=false initially")
	}
}

func TestNewPlayerDefaults(t *testing.T) {
	player := newTestPlayer(t, PlayerConfig{ServerAddr: "localhost:8927"})

	if player.config.Volume != 100 {
		t.Errorf("Expected default volume=100, got %d", player.config.Volume)
	}
	if player.config.PlayerName == "" {
		t.Error("Expected default PlayerName")
	}
	if player.config.DeviceInfo.ProductName == "" {
		t.Error("Expected default ProductName")
	}
	if player.config.DeviceInfo.Manufacturer == "" {
		t.Error("Expected default Manufacturer")
	}
	if player.config.DeviceInfo.SoftwareVersion == "" {
		t.Error("Expected default SoftwareVersion")
	}
}

func TestNewPlayerRequiresServerAddr(t *testing.T) {
	if _, err := NewPlayer(PlayerConfig{}); err == nil {
		t.Error("Expected error for missing server address")
	}
}

func TestPlayerSetVolume(t *testing.T) {
	player := newTestPlayer(t, PlayerConfig{ServerAddr: "localhost:8927"})

	if err := player.SetVolume(50); err != nil {
		t.Errorf("SetVolume failed: %v", err)
	}
	if got := player.Status().Volume; got != 50 {
		t.Errorf("Expected volume=50, got %d", got)
	}

	player.SetVolume(150)
	if got := player.Status().Volume; got != 100 {
		t.Errorf("Expected volume clamped to 100, got %d", got)
	}

	player.SetVolume(-10)
	if got := player.Status().Volume; got != 0 {
		t.Errorf("Expected volume clamped to 0, got %d", got)
	}
}

func TestPlayerMute(t *testing.T) {
	player := newTestPlayer(t, PlayerConfig{ServerAddr: "localhost:8927"})

	if err := player.Mute(true); err != nil {
		t.Errorf("Mute failed: %v", err)
	}
	if !player.Status().Muted {
		t.Error("Expected muted=true")
	}

	player.Mute(false)
	if player.Status().Muted {
		t.Error("Expected muted=false")
	}
}

func TestPlayerStateChangeCallback(t *testing.T) {
	stateChanges := make(chan PlayerState, 10)

	player := newTestPlayer(t, PlayerConfig{
		ServerAddr:    "localhost:8927",
		Sink:          output.NewNullSink(),
		OnStateChange: func(s PlayerState) { stateChanges <- s },
	})

	player.SetVolume(50)

	select {
	case s := <-stateChanges:
		if s.Volume != 50 {
			t.Errorf("Expected reported volume=50, got %d", s.Volume)
		}
	case <-time.After(time.Second):
		t.Error("Expected OnStateChange to be called")
	}
}

func TestPlayerClose(t *testing.T) {
	player := newTestPlayer(t, PlayerConfig{ServerAddr: "localhost:8927"})

	if err := player.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}

	state := player.Status()
	if state.Connected {
		t.Error("Expected connected=false after close")
	}
	if state.State != "idle" {
		t.Errorf("Expected state='idle' after close, got '%s'", state.State)
	}
}
