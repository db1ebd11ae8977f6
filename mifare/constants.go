package mifare

// Card type constants for card type identification and filtering
const (
	CardTypeMifareClassic1K   = "MIFARE Classic 1K"
	CardTypeMifareClassic4K   = "MIFARE Classic 4K"
	CardTypeMifareUltralight  = "MIFARE Ultralight"
	CardTypeMifareUltralightC = "MIFARE Ultralight C"
	CardTypeNtag213           = "NTAG213"
	CardTypeNtag215           = "NTAG215"
	CardTypeNtag216           = "NTAG216"
	CardTypeDesfire           = "DESFire"
)

// KeyType selects which MIFARE Classic key an authentication uses.
type KeyType byte

const (
	// KeyTypeA is used for MIFARE Classic Key A authentication
	KeyTypeA KeyType = 0x60
	// KeyTypeB is used for MIFARE Classic Key B authentication
	KeyTypeB KeyType = 0x61
)

// Common MIFARE Classic keys
var (
	// KeyDefault is the factory default key (all 0xFF)
	KeyDefault = [6]byte{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF}
	// KeyNFCForum is the NFC Forum public key for NDEF
	KeyNFCForum = [6]byte{0xD3, 0xF7, 0xD3, 0xF7, 0xD3, 0xF7}
	// KeyMAD is the MAD (MIFARE Application Directory) key
	KeyMAD = [6]byte{0xA0, 0xA1, 0xA2, 0xA3, 0xA4, 0xA5}
)

// GetAllCardTypes returns all supported card type constants
func GetAllCardTypes() []string {
	return []string{
		CardTypeMifareClassic1K,
		CardTypeMifareClassic4K,
		CardTypeMifareUltralight,
		CardTypeMifareUltralightC,
		CardTypeNtag213,
		CardTypeNtag215,
		CardTypeNtag216,
		CardTypeDesfire,
	}
}
