package main

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dotside-studios/nfc-bridge/mifare"
)

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func newTestAgent(drv *mifare.MockDriver) *Agent {
	agent := NewAgent(drv)
	agent.PollInterval = 10 * time.Millisecond
	agent.OpenCooldown = 10 * time.Millisecond
	agent.ServerPort = 0 // Any free port; these tests never dial it.
	return agent
}

func TestNewAgent(t *testing.T) {
	drv := &mifare.MockDriver{}
	agent := NewAgent(drv)

	if agent.Logger == nil {
		t.Error("expected logger to be set")
	}
	if agent.AllowedCardTypes == nil {
		t.Error("expected card type filter map to be initialized")
	}
	if agent.PollInterval != DefaultPollInterval {
		t.Errorf("poll interval = %v, want %v", agent.PollInterval, DefaultPollInterval)
	}
	if agent.OpenCooldown != DefaultOpenCooldown {
		t.Errorf("open cooldown = %v, want %v", agent.OpenCooldown, DefaultOpenCooldown)
	}
}

func TestAgentStartStop(t *testing.T) {
	mock := mifare.NewMockTag("04a1b2c3", mifare.TechNTAG215)
	dev := &mifare.MockDevice{Handles: []mifare.TagHandle{mock}}
	drv := &mifare.MockDriver{Device: dev}

	agent := newTestAgent(drv)
	if err := agent.Start("mock:0"); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	waitFor(t, "device connection", func() bool {
		return agent.Server.LastStatus().Connected
	})
	waitFor(t, "tag discovery", func() bool {
		return agent.Server.Registry().Len() == 1
	})

	if _, ok := agent.Server.Registry().Get("04a1b2c3"); !ok {
		t.Error("expected discovered tag in registry")
	}

	agent.Stop()

	if dev.CloseCount != 1 {
		t.Errorf("device close count = %d, want 1", dev.CloseCount)
	}
	if agent.Device != nil || agent.Server != nil {
		t.Error("expected device and server to be cleared after Stop")
	}

	// Stopping twice is a no-op.
	agent.Stop()
	if dev.CloseCount != 1 {
		t.Errorf("device close count after second Stop = %d, want 1", dev.CloseCount)
	}
}

func TestAgentStartWhileRunning(t *testing.T) {
	dev := &mifare.MockDevice{}
	drv := &mifare.MockDriver{Device: dev}

	agent := newTestAgent(drv)
	if err := agent.Start("mock:0"); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer agent.Stop()

	if err := agent.Start("mock:0"); err != nil {
		t.Errorf("restart on same device should be a no-op, got %v", err)
	}
	if err := agent.Start("mock:1"); err == nil {
		t.Error("expected error starting on a different device while running")
	}
}

func TestAgentRestart(t *testing.T) {
	dev := &mifare.MockDevice{}
	drv := &mifare.MockDriver{Device: dev}

	agent := newTestAgent(drv)
	if err := agent.Start("mock:0"); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	waitFor(t, "first connection", func() bool {
		return agent.Server.LastStatus().Connected
	})
	agent.Stop()

	if err := agent.Start("mock:0"); err != nil {
		t.Fatalf("second Start failed: %v", err)
	}
	waitFor(t, "second connection", func() bool {
		return agent.Server.LastStatus().Connected
	})
	agent.Stop()

	if drv.OpenCount != 2 {
		t.Errorf("driver open count = %d, want 2", drv.OpenCount)
	}
	if dev.CloseCount != 2 {
		t.Errorf("device close count = %d, want 2", dev.CloseCount)
	}
}

func TestAgentOpenRetry(t *testing.T) {
	dev := &mifare.MockDevice{}

	var mu sync.Mutex
	attempts := 0
	drv := &mifare.MockDriver{
		OpenFunc: func(connString string) (mifare.DeviceHandle, error) {
			mu.Lock()
			defer mu.Unlock()
			attempts++
			if attempts < 3 {
				return nil, errors.New("no reader present")
			}
			return dev, nil
		},
	}

	agent := newTestAgent(drv)
	if err := agent.Start("mock:0"); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer agent.Stop()

	waitFor(t, "connection after retries", func() bool {
		return agent.Server.LastStatus().Connected
	})

	mu.Lock()
	got := attempts
	mu.Unlock()
	if got != 3 {
		t.Errorf("open attempts = %d, want 3", got)
	}
}

func TestAgentCardTypeFilters(t *testing.T) {
	agent := NewAgent(&mifare.MockDriver{})

	agent.AllowCardType(mifare.CardTypeNtag215)
	if !agent.IsCardTypeAllowed(mifare.CardTypeNtag215) {
		t.Error("expected NTAG215 to be allowed")
	}
	if agent.IsCardTypeAllowed(mifare.CardTypeDesfire) {
		t.Error("expected DESFire to be disallowed")
	}
	if agent.AllowedCardTypesLength() != 1 {
		t.Errorf("filter length = %d, want 1", agent.AllowedCardTypesLength())
	}

	agent.SetAllowCardType(mifare.CardTypeDesfire, true)
	if !agent.IsCardTypeAllowed(mifare.CardTypeDesfire) {
		t.Error("expected DESFire to be allowed after SetAllowCardType")
	}

	agent.SetAllowCardType(mifare.CardTypeDesfire, false)
	if agent.IsCardTypeAllowed(mifare.CardTypeDesfire) {
		t.Error("expected DESFire to be disallowed after SetAllowCardType(false)")
	}

	agent.DisallowCardType(mifare.CardTypeNtag215)
	if agent.AllowedCardTypesLength() != 0 {
		t.Errorf("filter length = %d, want 0", agent.AllowedCardTypesLength())
	}

	agent.AllowAllCardTypes()
	if got, want := agent.AllowedCardTypesLength(), len(mifare.GetAllCardTypes()); got != want {
		t.Errorf("filter length after AllowAllCardTypes = %d, want %d", got, want)
	}
}

func TestGetAllCardTypeFilterNames(t *testing.T) {
	names := GetAllCardTypeFilterNames()
	if len(names) != len(mifare.GetAllCardTypes()) {
		t.Fatalf("expected %d filter names, got %d", len(mifare.GetAllCardTypes()), len(names))
	}

	if got := GetCardTypeFilterDisplayName(mifare.CardTypeNtag215); got != "NTAG215" {
		t.Errorf("display name = %q", got)
	}
	if got := GetCardTypeFilterTooltip(mifare.CardTypeNtag215); got != "Allow NTAG215 only" {
		t.Errorf("tooltip = %q", got)
	}
}
