// Package protocol defines the wire types spoken over the bridge's
// WebSocket surface and small helpers for normalizing client input.
package protocol

import (
	"fmt"
	"regexp"
	"strings"
)

var validHex = regexp.MustCompile(`^[0-9a-f]+$`)

// NormalizeUID canonicalizes a tag UID to compact lowercase hex, the form
// discovery reports. Accepts "04:A1:B2:C3", "04a1b2c3", "04 A1 B2 C3" and
// "04-A1-B2-C3" spellings.
func NormalizeUID(uid string) (string, error) {
	if uid == "" {
		return "", fmt.Errorf("empty UID")
	}

	cleaned := strings.ReplaceAll(uid, ":", "")
	cleaned = strings.ReplaceAll(cleaned, " ", "")
	cleaned = strings.ReplaceAll(cleaned, "-", "")
	cleaned = strings.ToLower(cleaned)

	if !validHex.MatchString(cleaned) {
		return "", fmt.Errorf("UID contains invalid characters: %s", uid)
	}
	if len(cleaned)%2 != 0 {
		return "", fmt.Errorf("UID has odd number of hex characters: %s", uid)
	}
	return cleaned, nil
}

// InferTechnology reports the RF technology behind a card type string.
// Every MIFARE/NTAG family member is ISO14443A; the fallback covers types
// added later.
func InferTechnology(cardType string) string {
	upperType := strings.ToUpper(cardType)
	switch {
	case strings.Contains(upperType, "MIFARE"):
		return "ISO14443A"
	case strings.Contains(upperType, "NTAG"):
		return "ISO14443A"
	case strings.Contains(upperType, "DESFIRE"):
		return "ISO14443A"
	default:
		return "Unknown"
	}
}
