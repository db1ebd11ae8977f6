package mifare

import (
	"fmt"
	"sync"
)

// MockDriver is a test implementation of Driver.
//
// Example:
//
//	drv := &MockDriver{Device: &MockDevice{}}
//	dev := NewDevice(drv, "mock:0")
type MockDriver struct {
	// Device is returned by Open() when OpenFunc is nil. Leaving both
	// unset makes Open yield a nil handle with a nil error, the "no
	// handle" outcome of the native open call.
	Device DeviceHandle

	// OpenError, if set, will be returned by Open()
	OpenError error

	// OpenFunc allows custom Open behavior; it overrides Device/OpenError
	OpenFunc func(connString string) (DeviceHandle, error)

	// DeviceList is returned by ListDevices()
	DeviceList []string

	// ListError, if set, will be returned by ListDevices()
	ListError error

	// OpenCount tracks the number of Open calls
	OpenCount int

	// CallLog tracks all method calls for verification in tests
	CallLog []string

	mu sync.Mutex
}

func (m *MockDriver) Open(connString string) (DeviceHandle, error) {
	m.mu.Lock()
	m.CallLog = append(m.CallLog, "Open")
	m.OpenCount++
	fn := m.OpenFunc
	dev, err := m.Device, m.OpenError
	m.mu.Unlock()

	if fn != nil {
		return fn(connString)
	}
	if err != nil {
		return nil, err
	}
	return dev, nil
}

func (m *MockDriver) ListDevices() ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.CallLog = append(m.CallLog, "ListDevices")
	if m.ListError != nil {
		return nil, m.ListError
	}
	return m.DeviceList, nil
}

// MockDevice is a test implementation of DeviceHandle.
type MockDevice struct {
	// Description is returned by String()
	Description string

	// Handles is returned by DiscoverTags(). It is handed back verbatim,
	// so tests can include a nil terminator and junk entries after it.
	Handles []TagHandle

	// DiscoverError, if set, will be returned by DiscoverTags()
	DiscoverError error

	// DiscoverTagsFunc allows custom discovery behavior, e.g. blocking
	// until a test releases it
	DiscoverTagsFunc func() ([]TagHandle, error)

	// CloseError, if set, will be returned by Close()
	CloseError error

	// AbortError, if set, will be returned by Abort()
	AbortError error

	// AbortFunc allows custom Abort behavior
	AbortFunc func() error

	// CloseCount and AbortCount track lifecycle calls
	CloseCount int
	AbortCount int

	// CallLog tracks all method calls for verification in tests
	CallLog []string

	mu sync.Mutex
}

func (m *MockDevice) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.CallLog = append(m.CallLog, "Close")
	m.CloseCount++
	return m.CloseError
}

func (m *MockDevice) Abort() error {
	m.mu.Lock()
	m.CallLog = append(m.CallLog, "Abort")
	m.AbortCount++
	fn := m.AbortFunc
	err := m.AbortError
	m.mu.Unlock()

	if fn != nil {
		return fn()
	}
	return err
}

func (m *MockDevice) DiscoverTags() ([]TagHandle, error) {
	m.mu.Lock()
	m.CallLog = append(m.CallLog, "DiscoverTags")
	fn := m.DiscoverTagsFunc
	handles, err := m.Handles, m.DiscoverError
	m.mu.Unlock()

	if fn != nil {
		return fn()
	}
	if err != nil {
		return nil, err
	}
	return handles, nil
}

func (m *MockDevice) String() string {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Description == "" {
		return "mock device"
	}
	return m.Description
}

// MockTag is a test implementation of every tag handle interface. One
// type covers all technologies; which capability interface matters is
// decided by TagTech, mirroring how discovery wraps real tags.
//
// Example:
//
//	tag := NewMockTag("04a1b2c3", TechClassic1K)
//	tag.Blocks[0] = [16]byte{0x04, 0xA1}
type MockTag struct {
	// TagUID is the UID returned by UID()
	TagUID string

	// TagTech is the technology returned by Technology()
	TagTech Technology

	// Name is returned by FriendlyName(); empty derives it from TagTech
	Name string

	// ConnectError, if set, will be returned by Connect()
	ConnectError error

	// DisconnectError, if set, will be returned by Disconnect()
	DisconnectError error

	// Connected tracks whether the handle is currently connected
	Connected bool

	// Pages backs ReadPage/WritePage/FastRead; absent pages read as zero
	Pages map[byte][4]byte

	// ReadPageError, if set, will be returned by ReadPage()
	ReadPageError error

	// ReadPageFunc allows custom ReadPage behavior, e.g. blocking
	ReadPageFunc func(page byte) ([4]byte, error)

	// WritePageError, if set, will be returned by WritePage()
	WritePageError error

	// FastReadError, if set, will be returned by FastRead()
	FastReadError error

	// Blocks backs ReadBlock/WriteBlock; absent blocks read as zero
	Blocks map[byte][16]byte

	// AuthenticateError, if set, will be returned by the authenticate
	// methods of both the Classic and DESFire surfaces
	AuthenticateError error

	// ReadBlockError, if set, will be returned by ReadBlock()
	ReadBlockError error

	// WriteBlockError, if set, will be returned by WriteBlock()
	WriteBlockError error

	// Values backs the value block commands
	Values map[byte]ValueBlock

	// ValueError, if set, will be returned by every value command
	ValueError error

	// AuthedBlock/AuthedKey/AuthedKeyType record the last Classic
	// authentication
	AuthedBlock   byte
	AuthedKey     [6]byte
	AuthedKeyType KeyType

	// Apps is returned by ApplicationIDs()
	Apps []AppID

	// AppIDsError, if set, will be returned by ApplicationIDs()
	AppIDsError error

	// SelectedApp records the last SelectApplication argument
	SelectedApp AppID

	// SelectAppError, if set, will be returned by SelectApplication()
	SelectAppError error

	// Files backs ReadData/WriteData, keyed by file number
	Files map[byte][]byte

	// FileIDsError, if set, will be returned by FileIDs()
	FileIDsError error

	// ReadDataError, if set, will be returned by ReadData()
	ReadDataError error

	// WriteDataError, if set, will be returned by WriteData()
	WriteDataError error

	// WriteDataFunc allows custom WriteData behavior, e.g. blocking
	WriteDataFunc func(fileNo byte, offset int64, data []byte) (int, error)

	// transferReg models the chip's internal transfer register
	transferReg   int32
	transferValid bool

	// FreeCount tracks Free calls; any command after a Free fails
	FreeCount int

	// CallLog tracks all method calls for verification in tests
	CallLog []string

	mu sync.Mutex
}

// NewMockTag creates a MockTag with empty backing stores.
func NewMockTag(uid string, tech Technology) *MockTag {
	return &MockTag{
		TagUID:  uid,
		TagTech: tech,
		Pages:   make(map[byte][4]byte),
		Blocks:  make(map[byte][16]byte),
		Values:  make(map[byte]ValueBlock),
		Files:   make(map[byte][]byte),
		CallLog: make([]string, 0),
	}
}

func (m *MockTag) UID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.TagUID
}

func (m *MockTag) Technology() Technology {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.TagTech
}

func (m *MockTag) FriendlyName() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Name != "" {
		return m.Name
	}
	return m.TagTech.String()
}

// log records a call and trips on use-after-free.
func (m *MockTag) log(method string) error {
	m.CallLog = append(m.CallLog, method)
	if m.FreeCount > 0 {
		return fmt.Errorf("mock tag %s: %s after Free", m.TagUID, method)
	}
	return nil
}

func (m *MockTag) Connect() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.log("Connect"); err != nil {
		return err
	}
	if m.ConnectError != nil {
		return m.ConnectError
	}
	m.Connected = true
	return nil
}

func (m *MockTag) Disconnect() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.log("Disconnect"); err != nil {
		return err
	}
	m.Connected = false
	return m.DisconnectError
}

func (m *MockTag) Free() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.CallLog = append(m.CallLog, "Free")
	m.FreeCount++
	return nil
}

func (m *MockTag) ReadPage(page byte) ([4]byte, error) {
	m.mu.Lock()
	if err := m.log("ReadPage"); err != nil {
		m.mu.Unlock()
		return [4]byte{}, err
	}
	fn := m.ReadPageFunc
	data, err := m.Pages[page], m.ReadPageError
	m.mu.Unlock()

	if fn != nil {
		return fn(page)
	}
	if err != nil {
		return [4]byte{}, err
	}
	return data, nil
}

func (m *MockTag) WritePage(page byte, data [4]byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.log("WritePage"); err != nil {
		return err
	}
	if m.WritePageError != nil {
		return m.WritePageError
	}
	m.Pages[page] = data
	return nil
}

func (m *MockTag) FastRead(startPage, endPage byte) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.log("FastRead"); err != nil {
		return nil, err
	}
	if m.FastReadError != nil {
		return nil, m.FastReadError
	}
	buf := make([]byte, 0, (int(endPage)-int(startPage)+1)*4)
	for p := int(startPage); p <= int(endPage); p++ {
		page := m.Pages[byte(p)]
		buf = append(buf, page[:]...)
	}
	return buf, nil
}

func (m *MockTag) Authenticate(block byte, key [6]byte, keyType KeyType) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.log("Authenticate"); err != nil {
		return err
	}
	if m.AuthenticateError != nil {
		return m.AuthenticateError
	}
	m.AuthedBlock = block
	m.AuthedKey = key
	m.AuthedKeyType = keyType
	return nil
}

func (m *MockTag) ReadBlock(block byte) ([16]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.log("ReadBlock"); err != nil {
		return [16]byte{}, err
	}
	if m.ReadBlockError != nil {
		return [16]byte{}, m.ReadBlockError
	}
	return m.Blocks[block], nil
}

func (m *MockTag) WriteBlock(block byte, data [16]byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.log("WriteBlock"); err != nil {
		return err
	}
	if m.WriteBlockError != nil {
		return m.WriteBlockError
	}
	m.Blocks[block] = data
	return nil
}

func (m *MockTag) InitValue(block byte, value int32, adr byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.log("InitValue"); err != nil {
		return err
	}
	if m.ValueError != nil {
		return m.ValueError
	}
	m.Values[block] = ValueBlock{Value: value, Adr: adr}
	return nil
}

func (m *MockTag) ReadValue(block byte) (int32, byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.log("ReadValue"); err != nil {
		return 0, 0, err
	}
	if m.ValueError != nil {
		return 0, 0, m.ValueError
	}
	vb, ok := m.Values[block]
	if !ok {
		return 0, 0, fmt.Errorf("mock tag %s: block %d is not a value block", m.TagUID, block)
	}
	return vb.Value, vb.Adr, nil
}

func (m *MockTag) Increment(block byte, amount uint32) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.log("Increment"); err != nil {
		return err
	}
	if m.ValueError != nil {
		return m.ValueError
	}
	vb, ok := m.Values[block]
	if !ok {
		return fmt.Errorf("mock tag %s: block %d is not a value block", m.TagUID, block)
	}
	m.transferReg = vb.Value + int32(amount)
	m.transferValid = true
	return nil
}

func (m *MockTag) Decrement(block byte, amount uint32) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.log("Decrement"); err != nil {
		return err
	}
	if m.ValueError != nil {
		return m.ValueError
	}
	vb, ok := m.Values[block]
	if !ok {
		return fmt.Errorf("mock tag %s: block %d is not a value block", m.TagUID, block)
	}
	m.transferReg = vb.Value - int32(amount)
	m.transferValid = true
	return nil
}

func (m *MockTag) Restore(block byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.log("Restore"); err != nil {
		return err
	}
	if m.ValueError != nil {
		return m.ValueError
	}
	vb, ok := m.Values[block]
	if !ok {
		return fmt.Errorf("mock tag %s: block %d is not a value block", m.TagUID, block)
	}
	m.transferReg = vb.Value
	m.transferValid = true
	return nil
}

func (m *MockTag) Transfer(block byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.log("Transfer"); err != nil {
		return err
	}
	if m.ValueError != nil {
		return m.ValueError
	}
	if !m.transferValid {
		return fmt.Errorf("mock tag %s: transfer with empty register", m.TagUID)
	}
	vb := m.Values[block]
	vb.Value = m.transferReg
	m.Values[block] = vb
	m.transferValid = false
	return nil
}

func (m *MockTag) AuthenticateDES(keyNo byte, key [8]byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.log("AuthenticateDES"); err != nil {
		return err
	}
	return m.AuthenticateError
}

func (m *MockTag) Authenticate3DES(keyNo byte, key [16]byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.log("Authenticate3DES"); err != nil {
		return err
	}
	return m.AuthenticateError
}

func (m *MockTag) ApplicationIDs() ([]AppID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.log("ApplicationIDs"); err != nil {
		return nil, err
	}
	if m.AppIDsError != nil {
		return nil, m.AppIDsError
	}
	return m.Apps, nil
}

func (m *MockTag) SelectApplication(aid AppID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.log("SelectApplication"); err != nil {
		return err
	}
	if m.SelectAppError != nil {
		return m.SelectAppError
	}
	m.SelectedApp = aid
	return nil
}

func (m *MockTag) FileIDs() ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.log("FileIDs"); err != nil {
		return nil, err
	}
	if m.FileIDsError != nil {
		return nil, m.FileIDsError
	}
	ids := make([]byte, 0, len(m.Files))
	for id := range m.Files {
		ids = append(ids, id)
	}
	return ids, nil
}

func (m *MockTag) ReadData(fileNo byte, offset int64, buf []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.log("ReadData"); err != nil {
		return 0, err
	}
	if m.ReadDataError != nil {
		return 0, m.ReadDataError
	}
	content, ok := m.Files[fileNo]
	if !ok {
		return 0, fmt.Errorf("mock tag %s: no file %d", m.TagUID, fileNo)
	}
	if offset >= int64(len(content)) {
		return 0, nil
	}
	return copy(buf, content[offset:]), nil
}

func (m *MockTag) WriteData(fileNo byte, offset int64, data []byte) (int, error) {
	m.mu.Lock()
	if err := m.log("WriteData"); err != nil {
		m.mu.Unlock()
		return 0, err
	}
	fn := m.WriteDataFunc
	werr := m.WriteDataError
	m.mu.Unlock()

	if fn != nil {
		return fn(fileNo, offset, data)
	}
	if werr != nil {
		return 0, werr
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	content := m.Files[fileNo]
	need := int(offset) + len(data)
	if need > len(content) {
		grown := make([]byte, need)
		copy(grown, content)
		content = grown
	}
	copy(content[offset:], data)
	m.Files[fileNo] = content
	return len(data), nil
}

// Compile-time interface checks.
var (
	_ Driver           = (*MockDriver)(nil)
	_ DeviceHandle     = (*MockDevice)(nil)
	_ UltralightHandle = (*MockTag)(nil)
	_ ClassicHandle    = (*MockTag)(nil)
	_ DESFireHandle    = (*MockTag)(nil)
)
