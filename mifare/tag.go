package mifare

import (
	"sync"

	"github.com/dotside-studios/nfc-bridge/engine"
)

// TagState tracks a tag's position in its connection lifecycle.
type TagState int

const (
	StateDisconnected TagState = iota
	StateConnected
	StateAuthenticated
)

func (s TagState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnected:
		return "connected"
	case StateAuthenticated:
		return "authenticated"
	}
	return "unknown"
}

// Tag is the technology-independent surface of a discovered tag. The
// concrete types (UltralightTag, ClassicTag, DESFireTag) add their
// technology's command set on top. Accessors are synchronous and touch no
// hardware; commands return futures executed on the owning device's
// runner.
type Tag interface {
	UID() string
	Technology() Technology
	FriendlyName() string
	State() TagState

	Connect() *engine.Future[struct{}]
	Disconnect() *engine.Future[struct{}]

	// Release frees the native handle. Only the first call reaches the
	// driver; afterwards every command fails with ErrCodeTargetReleased.
	Release() error
}

// wrapTag builds the concrete tag model for a discovered handle, or nil
// when the handle's technology has no model.
func wrapTag(d *Device, h TagHandle) Tag {
	switch h.Technology() {
	case TechUltralight, TechUltralightC, TechNTAG213, TechNTAG215, TechNTAG216:
		if uh, ok := h.(UltralightHandle); ok {
			return &UltralightTag{tagBase: newTagBase(d, h), h: uh}
		}
	case TechClassic1K, TechClassic4K:
		if ch, ok := h.(ClassicHandle); ok {
			return &ClassicTag{tagBase: newTagBase(d, h), h: ch}
		}
	case TechDESFire:
		if dh, ok := h.(DESFireHandle); ok {
			return &DESFireTag{tagBase: newTagBase(d, h), h: dh}
		}
	}
	return nil
}

// tagBase carries the state shared by every concrete tag type. UID and
// friendly name are copied out of the native handle at wrap time, so the
// accessors never touch it again.
type tagBase struct {
	dev    *Device
	handle TagHandle
	tech   Technology
	uid    string
	name   string

	mu       sync.RWMutex
	state    TagState
	released bool
}

func newTagBase(d *Device, h TagHandle) tagBase {
	return tagBase{
		dev:    d,
		handle: h,
		tech:   h.Technology(),
		uid:    h.UID(),
		name:   h.FriendlyName(),
	}
}

func (t *tagBase) UID() string {
	return t.uid
}

func (t *tagBase) Technology() Technology {
	return t.tech
}

func (t *tagBase) FriendlyName() string {
	return t.name
}

func (t *tagBase) State() TagState {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.state
}

func (t *tagBase) setState(s TagState) {
	t.mu.Lock()
	t.state = s
	t.mu.Unlock()
}

// The require helpers validate the released flag and the command's state
// precondition without touching hardware. A non-nil result short-circuits
// the command before any native call.

func (t *tagBase) checkReleased(op string) error {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.released {
		return NewReleasedError(op, t.uid)
	}
	return nil
}

func (t *tagBase) requireDisconnected(op string) error {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.released {
		return NewReleasedError(op, t.uid)
	}
	if t.state != StateDisconnected {
		return NewAlreadyConnectedError(op, t.uid)
	}
	return nil
}

func (t *tagBase) requireConnected(op string) error {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.released {
		return NewReleasedError(op, t.uid)
	}
	if t.state == StateDisconnected {
		return NewNotConnectedError(op, t.uid)
	}
	return nil
}

func (t *tagBase) requireAuthenticated(op string) error {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.released {
		return NewReleasedError(op, t.uid)
	}
	if t.state == StateDisconnected {
		return NewNotConnectedError(op, t.uid)
	}
	if t.state != StateAuthenticated {
		return NewNotAuthenticatedError(op, t.uid)
	}
	return nil
}

// Connect selects the tag in the field.
func (t *tagBase) Connect() *engine.Future[struct{}] {
	return submitUnit(t.dev, "Connect", t.uid, func() error {
		if err := t.requireDisconnected("Connect"); err != nil {
			return err
		}
		if err := t.handle.Connect(); err != nil {
			return translateErr("Connect", t.uid, err)
		}
		t.setState(StateConnected)
		return nil
	})
}

// Disconnect deselects the tag. The native call is always attempted, and
// the tag reads as disconnected afterwards even when that call fails.
func (t *tagBase) Disconnect() *engine.Future[struct{}] {
	return submitUnit(t.dev, "Disconnect", t.uid, func() error {
		if err := t.requireConnected("Disconnect"); err != nil {
			return err
		}
		err := t.handle.Disconnect()
		t.setState(StateDisconnected)
		if err != nil {
			return translateErr("Disconnect", t.uid, err)
		}
		return nil
	})
}

// Release frees the native handle. It is idempotent: the first call
// reaches the driver, later calls are no-ops. Callers should disconnect
// first; a released tag rejects every command.
func (t *tagBase) Release() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.released {
		return nil
	}
	t.released = true
	return t.handle.Free()
}

// Compile-time interface checks.
var (
	_ Tag = (*UltralightTag)(nil)
	_ Tag = (*ClassicTag)(nil)
	_ Tag = (*DESFireTag)(nil)
)
