// ABOUTME: Entry point for the Opaline player
// ABOUTME: Parses CLI flags and starts the player application
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/Opaline-Protocol/opaline-go/internal/app"
)

var (
	serverAddr = flag.String("server", "", "Manual server address (skip mDNS)")
	port       = flag.Int("port", 8927, "Port for mDNS advertisement")
	name       = flag.String("name", "", "Player friendly name (default: hostname-opaline-player)")
	volume     = flag.Int("volume", 100, "Initial volume (0-100)")
	logFile    = flag.String("log-file", "opaline-player.log", "Log file path")
	noTUI      = flag.Bool("no-tui", false, "Disable TUI, use streaming logs instead")
	headless   = flag.Bool("headless", false, "Discard audio instead of opening a device")
)

func main() {
	flag.Parse()

	useTUI := !*noTUI

	f, err := os.OpenFile(*logFile, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		log.Fatalf("error opening log file: %v", err)
	}
	defer func() { _ = f.Close() }()

	if useTUI {
		// TUI mode: log only to file so the UI stays clean
		log.SetOutput(f)
	} else {
		log.SetOutput(io.MultiWriter(os.Stdout, f))
	}

	playerName := *name
	if playerName == "" {
		hostname, err := os.Hostname()
		if err != nil {
			hostname = "unknown"
		}
		playerName = fmt.Sprintf("%s-opaline-player", hostname)
	}

	log.Printf("Starting Opaline Player: %s", playerName)

	player := app.New(app.Config{
		ServerAddr: *serverAddr,
		Port:       *port,
		Name:       playerName,
		Volume:     *volume,
		UseTUI:     useTUI,
		Headless:   *headless,
	})

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Printf("Shutdown signal received")
		player.Stop()
	}()

	if err := player.Start(); err != nil {
		log.Fatalf("Player failed: %v", err)
	}

	log.Printf("Player stopped")
}
