// Package mifare models a contactless reader and the MIFARE/NTAG tag
// families it serves: Ultralight, Ultralight C, NTAG213/215/216, Classic
// 1K/4K and DESFire. Devices and tags execute their commands through a
// per-device engine.Runner, so every method returning a future is safe to
// call from any goroutine and never blocks the caller; results arrive in
// submission order.
package mifare

// Technology identifies the tag technology detected at discovery time.
type Technology int

const (
	TechUnknown Technology = iota
	TechUltralight
	TechUltralightC
	TechNTAG213
	TechNTAG215
	TechNTAG216
	TechClassic1K
	TechClassic4K
	TechDESFire
)

// String returns the canonical card type name, matching the values used
// on the wire and in card type filters.
func (t Technology) String() string {
	switch t {
	case TechUltralight:
		return CardTypeMifareUltralight
	case TechUltralightC:
		return CardTypeMifareUltralightC
	case TechNTAG213:
		return CardTypeNtag213
	case TechNTAG215:
		return CardTypeNtag215
	case TechNTAG216:
		return CardTypeNtag216
	case TechClassic1K:
		return CardTypeMifareClassic1K
	case TechClassic4K:
		return CardTypeMifareClassic4K
	case TechDESFire:
		return CardTypeDesfire
	}
	return "Unknown"
}

// IsNTAG reports whether the technology is one of the NTAG21x variants.
func (t Technology) IsNTAG() bool {
	return t == TechNTAG213 || t == TechNTAG215 || t == TechNTAG216
}
