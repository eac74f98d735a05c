// ABOUTME: Main player application orchestration
// ABOUTME: Coordinates discovery, the playback library, and the TUI
package app

import (
	"context"
	"fmt"
	"log"

	"github.com/Opaline-Protocol/opaline-go/internal/ui"
	"github.com/Opaline-Protocol/opaline-go/internal/version"
	"github.com/Opaline-Protocol/opaline-go/pkg/audio/output"
	"github.com/Opaline-Protocol/opaline-go/pkg/discovery"
	"github.com/Opaline-Protocol/opaline-go/pkg/opaline"
	tea "github.com/charmbracelet/bubbletea"
)

// Config holds player application configuration.
type Config struct {
	// ServerAddr connects directly; empty means discover via mDNS.
	ServerAddr string
	Port       int
	Name       string
	Volume     int

	// UseTUI enables the terminal UI.
	UseTUI bool

	// Headless discards audio instead of opening a device.
	Headless bool
}

// Player is the player application: discovery, playback, and UI.
type Player struct {
	config    Config
	player    *opaline.Player
	discovery *discovery.Manager
	volCtrl   *ui.VolumeControl
	tuiProg   *tea.Program

	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a new player application.
func New(config Config) *Player {
	ctx, cancel := context.WithCancel(context.Background())

	return &Player{
		config: config,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start runs the player until Stop or a fatal error.
func (p *Player) Start() error {
	if p.config.UseTUI {
		p.volCtrl = ui.NewVolumeControl()
		tuiProg, err := ui.Run(p.volCtrl)
		if err != nil {
			return fmt.Errorf("failed to start TUI: %w", err)
		}
		p.tuiProg = tuiProg

		go p.tuiProg.Run()
		go p.handleVolumeControl()
	}

	if p.config.ServerAddr == "" {
		p.discovery = discovery.NewManager(discovery.Config{
			ServiceName: p.config.Name,
			Port:        p.config.Port,
		})
		p.discovery.Advertise()
		p.discovery.Browse()

		go p.handleDiscovery()
	} else {
		if err := p.connect(p.config.ServerAddr, p.config.ServerAddr); err != nil {
			return fmt.Errorf("connection failed: %w", err)
		}
	}

	<-p.ctx.Done()
	return nil
}

// handleDiscovery connects to the first discovered server.
func (p *Player) handleDiscovery() {
	for {
		select {
		case server := <-p.discovery.Servers():
			log.Printf("Attempting connection to %s", server.Addr())

			if err := p.connect(server.Addr(), server.Name); err != nil {
				log.Printf("Connection failed: %v", err)
				continue
			}
			return

		case <-p.ctx.Done():
			return
		}
	}
}

// connect builds the playback library player and connects it.
func (p *Player) connect(serverAddr, serverName string) error {
	playerConfig := opaline.PlayerConfig{
		ServerAddr: serverAddr,
		PlayerName: p.config.Name,
		Volume:     p.config.Volume,
		DeviceInfo: opaline.DeviceInfo{
			ProductName:     version.Product,
			Manufacturer:    version.Manufacturer,
			SoftwareVersion: version.Version,
		},
		OnStateChange: func(state opaline.PlayerState) {
			p.sendStatus(state, serverName, "")
		},
		OnError: func(err error) {
			log.Printf("Player error: %v", err)
			p.sendStatus(opaline.PlayerState{State: "error"}, serverName, err.Error())
		},
	}
	if p.config.Headless {
		playerConfig.Sink = output.NewNullSink()
	}

	player, err := opaline.NewPlayer(playerConfig)
	if err != nil {
		return err
	}
	p.player = player

	return p.player.Connect()
}

// sendStatus forwards player state to the TUI.
func (p *Player) sendStatus(state opaline.PlayerState, serverName, errText string) {
	if p.tuiProg == nil {
		return
	}
	connected := state.Connected
	p.tuiProg.Send(ui.StatusMsg{
		Connected:  &connected,
		ServerName: serverName,
		Codec:      state.Codec,
		SampleRate: state.SampleRate,
		Channels:   state.Channels,
		Encrypted:  state.Encrypted,
		State:      state.State,
		Volume:     state.Volume,
		Frames:     state.Frames,
		Err:        errText,
	})
}

// handleVolumeControl applies TUI volume and quit events.
func (p *Player) handleVolumeControl() {
	for {
		select {
		case change := <-p.volCtrl.Changes:
			if p.player != nil {
				p.player.SetVolume(change.Volume)
				p.player.Mute(change.Muted)
			}

		case <-p.volCtrl.Quit:
			p.Stop()
			return

		case <-p.ctx.Done():
			return
		}
	}
}

// Stop stops the player application.
func (p *Player) Stop() {
	p.cancel()

	if p.discovery != nil {
		p.discovery.Stop()
	}
	if p.player != nil {
		p.player.Close()
	}
	if p.tuiProg != nil {
		p.tuiProg.Quit()
	}
}
