package mifare

import (
	"log"
	"sync"

	"github.com/dotside-studios/nfc-bridge/engine"
)

// maxTagScan bounds how many discovery entries are examined while looking
// for the nil terminator, so a malformed sequence cannot be scanned
// forever.
const maxTagScan = 64

// Device owns the connection to one physical reader. Construction does no
// I/O; Open acquires the native handle. All I/O methods return futures and
// run on the device's own runner, one at a time, completing in submission
// order. Commands against different Devices run in parallel.
type Device struct {
	drv    Driver
	conn   string
	runner *engine.Runner

	mu     sync.RWMutex
	handle DeviceHandle
	closed bool
}

// NewDevice prepares a device model for connString using drv as the
// hardware boundary. The reader is not touched until Open.
func NewDevice(drv Driver, connString string) *Device {
	return &Device{
		drv:    drv,
		conn:   connString,
		runner: engine.NewRunner(connString),
	}
}

// ConnectionString returns the connection string the device was built
// with. Pure accessor, never touches hardware.
func (d *Device) ConnectionString() string {
	return d.conn
}

// Description returns the driver's description of the open reader, or the
// connection string while no handle is held.
func (d *Device) Description() string {
	if h := d.currentHandle(); h != nil {
		return h.String()
	}
	return d.conn
}

// IsOpen reports whether the device currently holds a native handle.
func (d *Device) IsOpen() bool {
	return d.currentHandle() != nil
}

// Done is closed once the device's worker has exited, which happens after
// Close's queue drains. Useful for shutdown sequencing.
func (d *Device) Done() <-chan struct{} {
	return d.runner.Done()
}

func (d *Device) currentHandle() DeviceHandle {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.handle
}

func (d *Device) isClosed() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.closed
}

// submitTo schedules fn on the device's runner. Once the device is closed
// it fails fast without touching the runner.
func submitTo[T any](d *Device, op, uid string, fn func() (T, error)) *engine.Future[T] {
	if d.isClosed() {
		var zero T
		err := NewNotConnectedError(op, uid)
		err.Message = "device closed"
		return engine.Completed(op, zero, err)
	}
	return engine.Submit(d.runner, op, fn)
}

func submitUnit(d *Device, op, uid string, fn func() error) *engine.Future[struct{}] {
	return submitTo(d, op, uid, func() (struct{}, error) {
		return struct{}{}, fn()
	})
}

// Open acquires the native handle. The open call reports only success or
// failure through handle presence, so any acquisition failure surfaces as
// ErrCodeOpenDeviceFailed with the native error, if there was one, as the
// cause. Opening an already-open device fails with ErrCodeAlreadyConnected
// and leaves the existing handle untouched.
func (d *Device) Open() *engine.Future[struct{}] {
	return submitUnit(d, "Open", "", func() error {
		if d.currentHandle() != nil {
			return NewAlreadyConnectedError("Open", "")
		}
		h, err := d.drv.Open(d.conn)
		if err != nil {
			return NewOpenDeviceError(d.conn, err)
		}
		if h == nil {
			return NewOpenDeviceError(d.conn, nil)
		}
		d.mu.Lock()
		d.handle = h
		d.mu.Unlock()
		return nil
	})
}

// Close releases the handle exactly once and retires the device: commands
// queued behind Close still resolve (with ErrCodeNotConnected), then the
// worker exits. A closed Device stays closed; construct a new one to talk
// to the reader again.
func (d *Device) Close() *engine.Future[struct{}] {
	return submitUnit(d, "Close", "", func() error {
		defer d.runner.Close()

		d.mu.Lock()
		h := d.handle
		d.handle = nil
		d.closed = true
		d.mu.Unlock()

		if h == nil {
			return NewNotConnectedError("Close", "")
		}
		if err := h.Close(); err != nil {
			return translateErr("Close", "", err)
		}
		return nil
	})
}

// ListTags scans the field and wraps every supported tag in its
// technology's model. Zero tags is a successful empty result. The native
// sequence is scanned up to its nil terminator, or up to maxTagScan
// entries if a terminator never appears. Tags of technologies outside the
// model are freed and skipped.
func (d *Device) ListTags() *engine.Future[[]Tag] {
	return submitTo(d, "ListTags", "", func() ([]Tag, error) {
		h := d.currentHandle()
		if h == nil {
			return nil, NewNotConnectedError("ListTags", "")
		}
		handles, err := h.DiscoverTags()
		if err != nil {
			return nil, translateErr("ListTags", "", err)
		}

		tags := make([]Tag, 0, len(handles))
		for i, th := range handles {
			if th == nil || i >= maxTagScan {
				break
			}
			tag := wrapTag(d, th)
			if tag == nil {
				log.Printf("ListTags: skipping tag %s: no model for its technology", th.UID())
				th.Free()
				continue
			}
			tags = append(tags, tag)
		}
		return tags, nil
	})
}

// Abort asks the reader to cut short the native call currently blocked on
// its handle, if any. It runs detached from the command queue; queued, it
// would wait behind the very command it is meant to interrupt. Abort is
// advisory: a command already past its point of no return completes
// normally. The returned future carries only the abort request's own
// outcome; the interrupted command reports its own error, typically
// ErrCodeOperationAborted, through its own future.
func (d *Device) Abort() *engine.Future[struct{}] {
	return engine.Run("Abort", func() (struct{}, error) {
		h := d.currentHandle()
		if h == nil {
			return struct{}{}, NewNotConnectedError("Abort", "")
		}
		if err := h.Abort(); err != nil {
			return struct{}{}, translateErr("Abort", "", err)
		}
		return struct{}{}, nil
	})
}
