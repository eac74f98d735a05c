// ABOUTME: Entry point for the Opaline demo server
// ABOUTME: Parses CLI flags and starts the streaming server
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/Opaline-Protocol/opaline-go/internal/server"
)

var (
	port        = flag.Int("port", 8927, "WebSocket server port")
	name        = flag.String("name", "", "Server friendly name (default: hostname-opaline-server)")
	logFile     = flag.String("log-file", "opaline-server.log", "Log file path")
	noMDNS      = flag.Bool("no-mdns", false, "Disable mDNS advertisement")
	audioFile   = flag.String("audio", "", "MP3 file to stream. If not specified, plays a test tone")
	toneSeconds = flag.Int("tone-seconds", 30, "Test tone length in seconds (0 = endless)")
	keyDelay    = flag.Duration("key-delay", 0, "Delay content key delivery (e.g. 2s) to exercise key waits")
)

func main() {
	flag.Parse()

	f, err := os.OpenFile(*logFile, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		log.Fatalf("error opening log file: %v", err)
	}
	defer f.Close()

	log.SetOutput(io.MultiWriter(os.Stdout, f))

	serverName := *name
	if serverName == "" {
		hostname, err := os.Hostname()
		if err != nil {
			hostname = "unknown"
		}
		serverName = fmt.Sprintf("%s-opaline-server", hostname)
	}

	log.Printf("Starting Opaline Server: %s on port %d", serverName, *port)
	if *keyDelay > 0 {
		log.Printf("Key delivery delayed by %v", *keyDelay)
	}
	log.Printf("Press Ctrl-C to stop")

	srv, err := server.New(server.Config{
		Port:        *port,
		Name:        serverName,
		EnableMDNS:  !*noMDNS,
		AudioFile:   *audioFile,
		ToneSeconds: *toneSeconds,
		KeyDelay:    *keyDelay,
	})
	if err != nil {
		log.Fatalf("Failed to create server: %v", err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		log.Printf("Received %v signal, shutting down gracefully...", sig)
		srv.Stop()
	}()

	if err := srv.Start(); err != nil {
		log.Fatalf("Server error: %v", err)
	}

	log.Printf("Server stopped")
}
