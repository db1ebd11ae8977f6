package mifare

// AppID is a DESFire application identifier.
type AppID [3]byte

// String returns the identifier in its usual big-endian hex spelling.
func (a AppID) String() string {
	const hexdigits = "0123456789abcdef"
	out := make([]byte, 0, 6)
	for _, b := range a {
		out = append(out, hexdigits[b>>4], hexdigits[b&0x0F])
	}
	return string(out)
}

// ValueBlock is the decoded form of a MIFARE Classic value block.
type ValueBlock struct {
	Value int32
	Adr   byte // backup block address stored alongside the value
}

// Driver acquires reader hardware. The production implementation wraps
// libnfc; MockDriver serves tests.
type Driver interface {
	// Open acquires the device behind connString and leaves it initiator-
	// ready. A failure yields a nil handle.
	Open(connString string) (DeviceHandle, error)

	// ListDevices enumerates connection strings of attached readers.
	ListDevices() ([]string, error)
}

// DeviceHandle is an owned, open reader. All methods except Abort are only
// ever entered from the owning device's runner; Abort must be callable
// concurrently with any of them.
type DeviceHandle interface {
	// Close releases the handle. The handle and every tag discovered
	// through it are invalid afterwards.
	Close() error

	// Abort asks the reader to cut short the native call currently
	// blocked on this handle, if any.
	Abort() error

	// DiscoverTags scans the field. The result follows the underlying
	// library's array convention: a nil entry terminates the sequence and
	// entries past it are meaningless. Implementations may equally return
	// a clean slice with no terminator. No tags is a normal result, not
	// an error.
	DiscoverTags() ([]TagHandle, error)

	// String describes the device for diagnostics.
	String() string
}

// TagHandle is the technology-independent surface of a discovered tag.
// Capability interfaces below extend it per technology.
type TagHandle interface {
	UID() string
	Technology() Technology
	FriendlyName() string

	Connect() error
	Disconnect() error

	// Free releases the native allocation behind the handle. Callers
	// invoke it exactly once, after which the handle is dead.
	Free() error
}

// UltralightHandle covers the Ultralight/NTAG21x family commands.
type UltralightHandle interface {
	TagHandle
	ReadPage(page byte) ([4]byte, error)
	WritePage(page byte, data [4]byte) error
	// FastRead returns pages startPage..endPage inclusive, 4 bytes each.
	FastRead(startPage, endPage byte) ([]byte, error)
}

// ClassicHandle adds the MIFARE Classic block, key and value commands.
type ClassicHandle interface {
	TagHandle
	Authenticate(block byte, key [6]byte, keyType KeyType) error
	ReadBlock(block byte) ([16]byte, error)
	WriteBlock(block byte, data [16]byte) error
	InitValue(block byte, value int32, adr byte) error
	ReadValue(block byte) (int32, byte, error)
	Increment(block byte, amount uint32) error
	Decrement(block byte, amount uint32) error
	Restore(block byte) error
	Transfer(block byte) error
}

// DESFireHandle adds the DESFire application and file commands.
type DESFireHandle interface {
	TagHandle
	AuthenticateDES(keyNo byte, key [8]byte) error
	Authenticate3DES(keyNo byte, key [16]byte) error
	ApplicationIDs() ([]AppID, error)
	SelectApplication(aid AppID) error
	FileIDs() ([]byte, error)
	ReadData(fileNo byte, offset int64, buf []byte) (int, error)
	WriteData(fileNo byte, offset int64, data []byte) (int, error)
}
