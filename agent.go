package main

import (
	"errors"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/dotside-studios/nfc-bridge/mifare"
	"github.com/dotside-studios/nfc-bridge/protocol"
	"github.com/dotside-studios/nfc-bridge/server"
)

// Poll intervals and cooldowns
const (
	DefaultPollInterval = 500 * time.Millisecond
	DefaultOpenCooldown = 3 * time.Second
)

// GetAllCardTypeFilterNames returns all card type filter names from mifare package constants
func GetAllCardTypeFilterNames() []string {
	return mifare.GetAllCardTypes()
}

// GetCardTypeFilterDisplayName returns a user-friendly display name for a card type
func GetCardTypeFilterDisplayName(cardType string) string {
	return cardType
}

// GetCardTypeFilterTooltip returns a tooltip for a card type filter
func GetCardTypeFilterTooltip(cardType string) string {
	return "Allow " + cardType + " only"
}

// Agent owns the reader device and the bridge server. It polls the field
// on a ticker and feeds discovery results and status changes to the
// server, implementing server.TagSource.
type Agent struct {
	Logger           *log.Logger
	Driver           mifare.Driver
	Device           *mifare.Device
	Server           *server.Server
	AllowedCardTypes map[string]bool // Card type filter using map
	APISecret        string
	ServerPort       int
	PollInterval     time.Duration
	OpenCooldown     time.Duration

	tagChan    chan []mifare.Tag
	statusChan chan protocol.DeviceStatusPayload
	stopChan   chan struct{}
	workerWg   sync.WaitGroup
}

func NewAgent(driver mifare.Driver) *Agent {
	return &Agent{
		Logger:           log.New(os.Stderr, "[agent] ", log.LstdFlags),
		Driver:           driver,
		AllowedCardTypes: make(map[string]bool),
		PollInterval:     DefaultPollInterval,
		OpenCooldown:     DefaultOpenCooldown,
	}
}

// Tags implements server.TagSource.
func (a *Agent) Tags() <-chan []mifare.Tag {
	return a.tagChan
}

// StatusUpdates implements server.TagSource.
func (a *Agent) StatusUpdates() <-chan protocol.DeviceStatusPayload {
	return a.statusChan
}

func (a *Agent) Start(devicePath string) error {
	if a.Device != nil {
		if devicePath == a.Device.ConnectionString() {
			a.Logger.Printf("Bridge already running on device: %s", devicePath)
			return nil
		}
		return errors.New("agent is already running")
	}

	a.Device = mifare.NewDevice(a.Driver, devicePath)
	a.tagChan = make(chan []mifare.Tag, 1)
	a.statusChan = make(chan protocol.DeviceStatusPayload, 1)
	a.stopChan = make(chan struct{})

	// Create server
	a.Server = server.New(server.Config{
		Device:           a.Device,
		Source:           a,
		Port:             a.ServerPort,
		APISecret:        a.APISecret,
		AllowedCardTypes: a.AllowedCardTypes,
	})

	go a.Server.Start()

	a.workerWg.Add(1)
	go a.worker()
	return nil
}

func (a *Agent) Stop() {
	if a.Device == nil && a.Server == nil {
		a.Logger.Println("Agent is not running")
		return
	}

	a.Logger.Println("Stopping agent...")

	// Stop the poll worker first so nothing races the device teardown.
	select {
	case <-a.stopChan:
	default:
		close(a.stopChan)
	}
	a.workerWg.Wait()

	// Close the device; commands queued behind Close drain before the
	// runner exits.
	if a.Device != nil {
		if _, err := a.Device.Close().Result(); err != nil && mifare.GetErrorCode(err) != mifare.ErrCodeNotConnected {
			a.Logger.Printf("Device close: %v", err)
		}
		a.Device = nil
	}

	if a.Server != nil {
		a.Server.Stop()
		a.Server = nil
	}

	// Release any discovery result the pump never consumed.
	select {
	case tags := <-a.tagChan:
		for _, tag := range tags {
			tag.Release()
		}
	default:
	}

	a.Logger.Println("Agent stopped successfully")
}

// worker opens the device, then polls the field until Stop.
func (a *Agent) worker() {
	defer a.workerWg.Done()
	defer a.pushStatus(protocol.DeviceStatusPayload{Connected: false, Message: "Agent stopped"})

	a.Logger.Println("Poll worker started")
	defer a.Logger.Println("Poll worker stopped")

	if !a.openDevice() {
		return
	}

	ticker := time.NewTicker(a.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-a.stopChan:
			return
		case <-ticker.C:
			a.pollOnce()
		}
	}
}

// openDevice acquires the reader, retrying on a cooldown while the device
// is absent. It reports false when Stop was requested or the failure is
// not worth retrying.
func (a *Agent) openDevice() bool {
	for {
		_, err := a.Device.Open().Result()
		if err == nil {
			a.Logger.Printf("Connected to %s", a.Device.Description())
			a.pushStatus(protocol.DeviceStatusPayload{Connected: true, Device: a.Device.Description()})
			return true
		}

		if mifare.GetErrorCode(err) != mifare.ErrCodeOpenDeviceFailed {
			a.Logger.Printf("Open %s: %v", a.Device.ConnectionString(), err)
			return false
		}

		a.Logger.Printf("Connection attempt failed: %v (retrying in %s)", err, a.OpenCooldown)
		a.pushStatus(protocol.DeviceStatusPayload{Connected: false, Message: fmt.Sprintf("Connection failed: %v", err)})

		select {
		case <-a.stopChan:
			return false
		case <-time.After(a.OpenCooldown):
		}
	}
}

func (a *Agent) pollOnce() {
	tags, err := a.Device.ListTags().Result()
	if err != nil {
		code := mifare.GetErrorCode(err)
		if code == mifare.ErrCodeOperationAborted || code == mifare.ErrCodeNotConnected {
			return
		}
		a.Logger.Printf("Tag scan failed: %v", err)
		a.pushStatus(protocol.DeviceStatusPayload{
			Connected: a.Device.IsOpen(),
			Device:    a.Device.Description(),
			Message:   fmt.Sprintf("Scan failed: %v", err),
		})
		return
	}
	a.pushTags(tags)
}

// pushTags hands a discovery result to the server pump. A dropped list is
// released here; the next tick rediscovers the field.
func (a *Agent) pushTags(tags []mifare.Tag) {
	select {
	case a.tagChan <- tags:
	default:
		for _, tag := range tags {
			tag.Release()
		}
	}
}

func (a *Agent) pushStatus(status protocol.DeviceStatusPayload) {
	select {
	case a.statusChan <- status:
	default:
		a.Logger.Println("Warning: Device status channel full or no listener.")
	}
}

func (a *Agent) SetAllowCardType(cardType string, allow bool) {
	if allow {
		a.AllowCardType(cardType)
	} else {
		a.DisallowCardType(cardType)
	}
}

func (a *Agent) AllowAllCardTypes() {
	for _, cardType := range mifare.GetAllCardTypes() {
		a.AllowedCardTypes[cardType] = true
	}
}

func (a *Agent) AllowedCardTypesLength() int {
	return len(a.AllowedCardTypes)
}

func (a *Agent) AllowCardType(cardType string) {
	a.AllowedCardTypes[cardType] = true
}

func (a *Agent) DisallowCardType(cardType string) {
	delete(a.AllowedCardTypes, cardType)
}

func (a *Agent) IsCardTypeAllowed(cardType string) bool {
	return a.AllowedCardTypes[cardType]
}
