package mifare

import (
	"log"

	"github.com/clausecker/freefare"
	"github.com/clausecker/nfc/v2"
)

// NTAG21x capability container markers, read from page 3 during
// discovery. The size byte distinguishes the variants.
const (
	ntagCCMagic   = 0xE1
	ntagCCSize213 = 0x12
	ntagCCSize215 = 0x3E
	ntagCCSize216 = 0x6E
)

// libnfcDriver is the production Driver over the libnfc and libfreefare
// bindings.
type libnfcDriver struct{}

// NewDriver returns the libnfc-backed driver.
func NewDriver() Driver {
	return libnfcDriver{}
}

func (libnfcDriver) Open(connString string) (DeviceHandle, error) {
	dev, err := nfc.Open(connString)
	if err != nil {
		return nil, err
	}
	if err := dev.InitiatorInit(); err != nil {
		dev.Close()
		return nil, err
	}
	return &libnfcDevice{device: dev}, nil
}

func (libnfcDriver) ListDevices() ([]string, error) {
	return nfc.ListDevices()
}

// libnfcDevice adapts an open nfc.Device to DeviceHandle.
type libnfcDevice struct {
	device nfc.Device
}

func (d *libnfcDevice) Close() error {
	return d.device.Close()
}

func (d *libnfcDevice) Abort() error {
	return d.device.AbortCommand()
}

func (d *libnfcDevice) String() string {
	return d.device.String()
}

// DiscoverTags polls the field through libfreefare and wraps each
// supported result in its technology's handle type. Ultralight results
// are refined into the NTAG21x variants by a capability container probe.
// Unsupported tag types are logged and skipped, never treated as errors.
func (d *libnfcDevice) DiscoverTags() ([]TagHandle, error) {
	ffTags, err := freefare.GetTags(d.device)
	if err != nil {
		return nil, err
	}

	handles := make([]TagHandle, 0, len(ffTags))
	for _, ft := range ffTags {
		switch t := ft.(type) {
		case freefare.ClassicTag:
			tech := TechClassic1K
			if t.Type() == freefare.Classic4k {
				tech = TechClassic4K
			}
			handles = append(handles, &libnfcClassic{libnfcTag: libnfcTag{ff: ft, tech: tech}, tag: t})
		case freefare.DESFireTag:
			handles = append(handles, &libnfcDESFire{libnfcTag: libnfcTag{ff: ft, tech: TechDESFire}, tag: t})
		case freefare.UltralightTag:
			tech := TechUltralight
			if t.Type() == freefare.UltralightC {
				tech = TechUltralightC
			} else {
				tech = detectNTAG(t)
			}
			handles = append(handles, &libnfcUltralight{libnfcTag: libnfcTag{ff: ft, tech: tech}, tag: t})
		default:
			log.Printf("discover: ignoring unsupported tag type %d (uid %s)", ft.Type(), ft.UID())
		}
	}
	return handles, nil
}

// detectNTAG refines an Ultralight-typed tag into the NTAG21x family by
// probing the capability container. Any probe failure leaves the tag a
// plain Ultralight so that discovery itself never fails on an odd tag.
func detectNTAG(t freefare.UltralightTag) Technology {
	if err := t.Connect(); err != nil {
		return TechUltralight
	}
	defer t.Disconnect()

	cc, err := t.ReadPage(3)
	if err != nil || cc[0] != ntagCCMagic {
		return TechUltralight
	}
	switch cc[2] {
	case ntagCCSize213:
		return TechNTAG213
	case ntagCCSize215:
		return TechNTAG215
	case ntagCCSize216:
		return TechNTAG216
	}
	return TechUltralight
}

// libnfcTag is the shared surface of the libfreefare-backed tag handles.
type libnfcTag struct {
	ff   freefare.Tag
	tech Technology
}

func (t libnfcTag) UID() string {
	return t.ff.UID()
}

func (t libnfcTag) Technology() Technology {
	return t.tech
}

func (t libnfcTag) FriendlyName() string {
	return t.ff.String()
}

// Free is a no-op here: the binding ties the native allocation to the Go
// value's lifetime.
func (t libnfcTag) Free() error {
	return nil
}

type libnfcUltralight struct {
	libnfcTag
	tag freefare.UltralightTag
}

func (u *libnfcUltralight) Connect() error {
	return u.tag.Connect()
}

func (u *libnfcUltralight) Disconnect() error {
	return u.tag.Disconnect()
}

func (u *libnfcUltralight) ReadPage(page byte) ([4]byte, error) {
	return u.tag.ReadPage(page)
}

func (u *libnfcUltralight) WritePage(page byte, data [4]byte) error {
	return u.tag.WritePage(page, data)
}

// FastRead synthesizes the NTAG FAST_READ range over single page reads;
// the binding carries no wrapper for the native bulk command.
func (u *libnfcUltralight) FastRead(startPage, endPage byte) ([]byte, error) {
	buf := make([]byte, 0, (int(endPage)-int(startPage)+1)*4)
	for p := int(startPage); p <= int(endPage); p++ {
		page, err := u.tag.ReadPage(byte(p))
		if err != nil {
			return nil, err
		}
		buf = append(buf, page[:]...)
	}
	return buf, nil
}

type libnfcClassic struct {
	libnfcTag
	tag freefare.ClassicTag
}

func (c *libnfcClassic) Connect() error {
	return c.tag.Connect()
}

func (c *libnfcClassic) Disconnect() error {
	return c.tag.Disconnect()
}

func (c *libnfcClassic) Authenticate(block byte, key [6]byte, keyType KeyType) error {
	kt := int(freefare.KeyA)
	if keyType == KeyTypeB {
		kt = int(freefare.KeyB)
	}
	return c.tag.Authenticate(block, key, kt)
}

func (c *libnfcClassic) ReadBlock(block byte) ([16]byte, error) {
	return c.tag.ReadBlock(block)
}

func (c *libnfcClassic) WriteBlock(block byte, data [16]byte) error {
	return c.tag.WriteBlock(block, data)
}

func (c *libnfcClassic) InitValue(block byte, value int32, adr byte) error {
	return c.tag.InitValue(block, value, adr)
}

func (c *libnfcClassic) ReadValue(block byte) (int32, byte, error) {
	return c.tag.ReadValue(block)
}

func (c *libnfcClassic) Increment(block byte, amount uint32) error {
	return c.tag.Increment(block, amount)
}

func (c *libnfcClassic) Decrement(block byte, amount uint32) error {
	return c.tag.Decrement(block, amount)
}

func (c *libnfcClassic) Restore(block byte) error {
	return c.tag.Restore(block)
}

func (c *libnfcClassic) Transfer(block byte) error {
	return c.tag.Transfer(block)
}

type libnfcDESFire struct {
	libnfcTag
	tag freefare.DESFireTag
}

func (d *libnfcDESFire) Connect() error {
	return d.tag.Connect()
}

func (d *libnfcDESFire) Disconnect() error {
	return d.tag.Disconnect()
}

func (d *libnfcDESFire) AuthenticateDES(keyNo byte, key [8]byte) error {
	desKey := freefare.NewDESFireDESKey(key)
	return d.tag.Authenticate(keyNo, *desKey)
}

func (d *libnfcDESFire) Authenticate3DES(keyNo byte, key [16]byte) error {
	tdesKey := freefare.NewDESFire3DESKey(key)
	return d.tag.Authenticate(keyNo, *tdesKey)
}

func (d *libnfcDESFire) ApplicationIDs() ([]AppID, error) {
	aids, err := d.tag.ApplicationIds()
	if err != nil {
		return nil, err
	}
	out := make([]AppID, len(aids))
	for i, aid := range aids {
		out[i] = AppID(aid)
	}
	return out, nil
}

func (d *libnfcDESFire) SelectApplication(aid AppID) error {
	return d.tag.SelectApplication(freefare.DESFireAid(aid))
}

func (d *libnfcDESFire) FileIDs() ([]byte, error) {
	return d.tag.FileIds()
}

func (d *libnfcDESFire) ReadData(fileNo byte, offset int64, buf []byte) (int, error) {
	return d.tag.ReadData(fileNo, offset, buf)
}

func (d *libnfcDESFire) WriteData(fileNo byte, offset int64, data []byte) (int, error) {
	return d.tag.WriteData(fileNo, offset, data)
}

// Compile-time interface checks.
var (
	_ Driver           = libnfcDriver{}
	_ DeviceHandle     = (*libnfcDevice)(nil)
	_ UltralightHandle = (*libnfcUltralight)(nil)
	_ ClassicHandle    = (*libnfcClassic)(nil)
	_ DESFireHandle    = (*libnfcDESFire)(nil)
)
