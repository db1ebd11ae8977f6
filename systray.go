package main

import (
	"fmt"
	"log"
	"net"
	"os/exec"
	"runtime"
	"time"

	"fyne.io/systray"

	"github.com/dotside-studios/nfc-bridge/buildinfo"
)

// cardTypeFilterItem holds a menu item and its associated card type
type cardTypeFilterItem struct {
	menuItem *systray.MenuItem
	cardType string
}

// getLocalIPs returns a list of local IP addresses (excluding loopback)
func getLocalIPs() []string {
	var ips []string
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return ips
	}

	for _, addr := range addrs {
		if ipNet, ok := addr.(*net.IPNet); ok && !ipNet.IP.IsLoopback() {
			if ipNet.IP.To4() != nil {
				ips = append(ips, ipNet.IP.String())
			}
		}
	}
	return ips
}

// SystrayApp manages the system tray interface for the bridge
type SystrayApp struct {
	agent         *Agent
	currentDevice string
	initialDevice string

	// Menu items
	mStatus     *systray.MenuItem
	mConnection *systray.MenuItem
	mTags       *systray.MenuItem
	mStart      *systray.MenuItem
	mStop       *systray.MenuItem
	mDeviceMenu *systray.MenuItem

	// URL menu items
	mServerURL     *systray.MenuItem
	mCopyServerURL *systray.MenuItem

	deviceMenuItems map[string]*systray.MenuItem

	// Card filter menu items
	mCardFilterMenu *systray.MenuItem
	mFilterAll      *systray.MenuItem
	cardTypeFilters map[string]*cardTypeFilterItem // Maps card type to filter item
}

// NewSystrayApp creates a new systray application
func NewSystrayApp(agent *Agent, initialDevice string) *SystrayApp {
	return &SystrayApp{
		agent:           agent,
		initialDevice:   initialDevice,
		currentDevice:   initialDevice,
		deviceMenuItems: make(map[string]*systray.MenuItem),
		cardTypeFilters: make(map[string]*cardTypeFilterItem),
	}
}

// Run starts the systray application
func (s *SystrayApp) Run() {
	systray.Run(s.onReady, s.onExit)
}

// onReady is called when the systray is ready
func (s *SystrayApp) onReady() {
	s.setupUI()
	s.autoStartAgent()
	s.startTagInfoUpdater()
}

// onExit is called when the systray is exiting
func (s *SystrayApp) onExit() {
	s.agent.Stop()
}

// setupUI initializes all menu items
func (s *SystrayApp) setupUI() {
	systray.SetIcon(iconData)
	systray.SetTooltip(buildinfo.Description)

	// Status section
	s.mStatus = systray.AddMenuItem("Starting...", "Bridge Status")
	s.mStatus.Disable()

	s.mConnection = systray.AddMenuItem("Connection: Disconnected", "Reader Status")
	s.mConnection.Disable()

	// Server URL
	s.mServerURL = systray.AddMenuItem("Server: Not running", "WebSocket URL")
	s.mServerURL.Disable()
	s.mCopyServerURL = systray.AddMenuItem("Copy Server URL", "Copy WebSocket URL to clipboard")

	systray.AddSeparator()

	// Tag info section
	s.mTags = systray.AddMenuItem("Tags: None", "Tags currently in the field")
	s.mTags.Disable()

	systray.AddSeparator()

	// Device management section
	s.mDeviceMenu = systray.AddMenuItem("Device", "Select NFC Device")
	mRefreshDevices := s.mDeviceMenu.AddSubMenuItem("Refresh Devices", "Refresh device list")
	s.mDeviceMenu.AddSubMenuItemCheckbox("Auto-detect", "Auto-detect device", true)

	systray.AddSeparator()

	// Card type filtering section
	s.mCardFilterMenu = systray.AddMenuItem("Card Type Filter", "Filter cards by type")
	s.mFilterAll = s.mCardFilterMenu.AddSubMenuItemCheckbox("All Types", "Allow all card types", true)

	// Create card type filter menu items for each card type
	for _, cardType := range GetAllCardTypeFilterNames() {
		displayName := GetCardTypeFilterDisplayName(cardType)
		tooltip := GetCardTypeFilterTooltip(cardType)
		menuItem := s.mCardFilterMenu.AddSubMenuItemCheckbox(displayName, tooltip, false)
		s.cardTypeFilters[cardType] = &cardTypeFilterItem{
			menuItem: menuItem,
			cardType: cardType,
		}
	}

	systray.AddSeparator()

	// Bridge control section
	s.mStart = systray.AddMenuItem("Start Bridge", "Start the bridge")
	s.mStop = systray.AddMenuItem("Stop Bridge", "Stop the bridge")
	s.mStart.Disable() // Disable start since we're auto-starting
	s.mStop.Disable()  // Will be enabled once the bridge starts

	systray.AddSeparator()
	mQuit := systray.AddMenuItem("Quit", "Quit the application")

	// Start the event handler with the menu items
	go s.handleMenuEvents(mRefreshDevices, mQuit)
}

// autoStartAgent starts the bridge automatically
func (s *SystrayApp) autoStartAgent() {
	go func() {
		if err := s.agent.Start(s.currentDevice); err == nil {
			s.updateStatus("Running")
			s.updateURLs()
			s.mStop.Enable()
		} else {
			s.updateStatus("Failed to Start")
			s.mStart.Enable()
		}
		s.updateDeviceList()
	}()
}

// startTagInfoUpdater starts a goroutine to mirror reader and field state
// into the menu
func (s *SystrayApp) startTagInfoUpdater() {
	go func() {
		ticker := time.NewTicker(500 * time.Millisecond)
		defer ticker.Stop()
		lastConnection := ""
		lastTags := ""

		for range ticker.C {
			connection := "Disconnected"
			tags := "None"

			if srv := s.agent.Server; srv != nil {
				status := srv.LastStatus()
				if status.Connected {
					connection = "Connected"
					if status.Device != "" {
						connection = "Connected (" + status.Device + ")"
					}
				}

				if infos := srv.Registry().Snapshot(); len(infos) > 0 {
					tags = fmt.Sprintf("%d (%s)", len(infos), infos[0].UID)
				}
			}

			if connection != lastConnection {
				s.mConnection.SetTitle("Connection: " + connection)
				lastConnection = connection
			}

			if tags != lastTags {
				s.mTags.SetTitle("Tags: " + tags)
				lastTags = tags
			}
		}
	}()
}

// handleMenuEvents processes all menu click events
func (s *SystrayApp) handleMenuEvents(mRefreshDevices, mQuit *systray.MenuItem) {
	for {
		select {
		case <-s.mStart.ClickedCh:
			s.handleStartAgent()
		case <-s.mStop.ClickedCh:
			s.handleStopAgent()
		case <-mRefreshDevices.ClickedCh:
			s.updateDeviceList()
		case <-s.mCopyServerURL.ClickedCh:
			if url := s.getServerURL(); url != "" {
				if err := copyToClipboard(url); err != nil {
					log.Printf("[systray] Failed to copy to clipboard: %v", err)
				} else {
					log.Printf("[systray] Copied server URL to clipboard")
				}
			}
		case <-s.mFilterAll.ClickedCh:
			s.handleFilterAll()
		case <-mQuit.ClickedCh:
			systray.Quit()
			return
		}

		// Handle card type filter selection
		s.handleCardFilterSelection()

		// Handle device selection
		s.handleDeviceSelection()
	}
}

// handleStartAgent starts the bridge
func (s *SystrayApp) handleStartAgent() {
	if err := s.agent.Start(s.currentDevice); err == nil {
		s.updateStatus("Running")
		s.updateURLs()
		s.mStart.Disable()
		s.mStop.Enable()
	} else {
		s.updateStatus("Failed to Start")
	}
}

// handleStopAgent stops the bridge
func (s *SystrayApp) handleStopAgent() {
	s.agent.Stop()
	s.updateStatus("Stopped")
	s.clearURLs()
	s.mStop.Disable()
	s.mStart.Enable()
}

// handleFilterAll enables all card type filters
func (s *SystrayApp) handleFilterAll() {
	s.mFilterAll.Check()

	// Uncheck all individual filters
	for _, filter := range s.cardTypeFilters {
		filter.menuItem.Uncheck()
	}

	s.agent.AllowAllCardTypes()
}

// handleCardFilterSelection processes card type filter menu selections
func (s *SystrayApp) handleCardFilterSelection() {
	for _, filter := range s.cardTypeFilters {
		select {
		case <-filter.menuItem.ClickedCh:
			s.handleCardTypeToggle(filter)
		default:
			// No click event for this filter
		}
	}
}

// handleCardTypeToggle toggles a card type filter
func (s *SystrayApp) handleCardTypeToggle(filter *cardTypeFilterItem) {
	s.mFilterAll.Uncheck()

	// Toggle the card type
	s.agent.SetAllowCardType(filter.cardType, !filter.menuItem.Checked())

	// Update menu item
	if filter.menuItem.Checked() {
		filter.menuItem.Uncheck()
	} else {
		filter.menuItem.Check()
	}

	// If no filters active, revert to All
	if s.agent.AllowedCardTypesLength() == 0 {
		s.mFilterAll.Check()
	}
}

// handleDeviceSelection processes device menu selections
func (s *SystrayApp) handleDeviceSelection() {
	for deviceName, menuItem := range s.deviceMenuItems {
		select {
		case <-menuItem.ClickedCh:
			if s.currentDevice != deviceName {
				s.switchDevice(deviceName, menuItem)
			}
		default:
			// No click event for this menu item
		}
	}
}

// switchDevice switches to a different NFC device
func (s *SystrayApp) switchDevice(deviceName string, menuItem *systray.MenuItem) {
	// Uncheck all devices
	for _, item := range s.deviceMenuItems {
		item.Uncheck()
	}

	// Check selected device
	menuItem.Check()
	s.currentDevice = deviceName

	// Restart the bridge with the new device
	if s.agent.Device != nil {
		s.agent.Stop()
		if err := s.agent.Start(s.currentDevice); err == nil {
			s.updateStatus("Running")
			s.updateURLs()
			s.mStop.Enable()
			s.mStart.Disable()
		} else {
			s.updateStatus("Failed to Start")
			s.clearURLs()
			s.mStart.Enable()
			s.mStop.Disable()
		}
	}
}

// updateDeviceList refreshes the list of available devices
func (s *SystrayApp) updateDeviceList() {
	// Clear existing device menu items
	for _, item := range s.deviceMenuItems {
		item.Hide()
	}
	s.deviceMenuItems = make(map[string]*systray.MenuItem)

	// Get available devices
	devices, err := s.agent.Driver.ListDevices()
	if err != nil {
		log.Printf("Error listing devices: %v", err)
		return
	}

	// Add device menu items
	for _, device := range devices {
		deviceName := device
		isChecked := (s.currentDevice == deviceName) || (s.currentDevice == "" && len(s.deviceMenuItems) == 0)
		item := s.mDeviceMenu.AddSubMenuItemCheckbox(deviceName, "Select this device", isChecked)
		s.deviceMenuItems[deviceName] = item

		if isChecked && s.currentDevice == "" {
			s.currentDevice = deviceName
		}
	}
}

// updateStatus updates the status menu item and icon
func (s *SystrayApp) updateStatus(status string) {
	s.mStatus.SetTitle(status)

	// Update icon based on status
	switch status {
	case "Running":
		systray.SetIcon(iconDataConnected)
	case "Failed to Start":
		systray.SetIcon(iconDataError)
	case "Stopped":
		systray.SetIcon(iconDataStopped)
	default:
		// Starting or other states
		systray.SetIcon(iconData)
	}
}

// updateURLs updates the server URL display
func (s *SystrayApp) updateURLs() {
	s.mServerURL.SetTitle("Server: " + s.getServerURL())
}

// clearURLs resets the server URL display to "Not running"
func (s *SystrayApp) clearURLs() {
	s.mServerURL.SetTitle("Server: Not running")
}

// getServerURL returns the current WebSocket URL
func (s *SystrayApp) getServerURL() string {
	ips := getLocalIPs()
	ip := "localhost"
	if len(ips) > 0 {
		ip = ips[0]
	}

	return fmt.Sprintf("ws://%s:%d/ws", ip, s.agent.ServerPort)
}

// copyToClipboard copies text to the system clipboard
func copyToClipboard(text string) error {
	var cmd *exec.Cmd

	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("pbcopy")
	case "linux":
		cmd = exec.Command("xclip", "-selection", "clipboard")
	case "windows":
		cmd = exec.Command("clip")
	default:
		return fmt.Errorf("unsupported platform: %s", runtime.GOOS)
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return err
	}

	if err := cmd.Start(); err != nil {
		return err
	}

	_, err = stdin.Write([]byte(text))
	if err != nil {
		return err
	}

	stdin.Close()
	return cmd.Wait()
}
