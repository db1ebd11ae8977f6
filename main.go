// Package main provides a MIFARE/NTAG reader bridge. It exposes tags in
// the reader's field over a WebSocket command surface so applications can
// read and write them without touching libnfc themselves.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"fyne.io/systray"

	"github.com/dotside-studios/nfc-bridge/buildinfo"
	"github.com/dotside-studios/nfc-bridge/mifare"
)

var (
	// CLI flags
	devicePathFlag string
	portFlag       int
	cliFlag        bool
	apiSecretFlag  string
	configFlag     string
	versionFlag    bool
)

// applyFlagOverrides layers explicitly-set flags over the loaded config.
func applyFlagOverrides(cfg *Config) {
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "device":
			cfg.Device = devicePathFlag
		case "port":
			cfg.Port = portFlag
		case "api-secret":
			cfg.APISecret = apiSecretFlag
		}
	})
}

func newAgentFromConfig(cfg *Config) *Agent {
	agent := NewAgent(mifare.NewDriver())
	agent.ServerPort = cfg.Port
	agent.APISecret = cfg.APISecret
	agent.AllowedCardTypes = cfg.AllowedCardTypes()
	agent.PollInterval = cfg.PollInterval()
	agent.OpenCooldown = cfg.OpenCooldown()
	return agent
}

func main() {
	// Command line flags
	flag.StringVar(&devicePathFlag, "device", "", "Path to NFC device (optional)")
	flag.IntVar(&portFlag, "port", 18080, "Port to listen on for the web interface")
	flag.BoolVar(&cliFlag, "cli", false, "Run in CLI mode (default: system tray mode)")
	flag.StringVar(&apiSecretFlag, "api-secret", "", "API secret for session handshake (optional)")
	flag.StringVar(&configFlag, "config", "", "Path to YAML config file (optional)")
	flag.BoolVar(&versionFlag, "version", false, "Print version information and exit")
	flag.Parse()

	if versionFlag {
		fmt.Println(buildinfo.BuildInfo())
		return
	}

	cfg, err := LoadConfig(configFlag)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	applyFlagOverrides(cfg)

	agent := newAgentFromConfig(cfg)

	// Run in CLI mode only if explicitly requested
	if cliFlag {
		if err := agent.Start(cfg.Device); err != nil {
			log.Fatalf("Failed to start agent: %v", err)
		}
		defer agent.Stop()

		// Set up signal handling for graceful shutdown
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

		// Wait for shutdown signal
		<-sigChan
		log.Println("Shutdown signal received, stopping server...")
	} else {
		// Default systray mode
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

		go func() {
			<-sigChan
			systray.Quit()
		}()

		app := NewSystrayApp(agent, cfg.Device)
		app.Run()
	}
}
