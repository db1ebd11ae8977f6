package mifare

import (
	"fmt"

	"github.com/dotside-studios/nfc-bridge/engine"
)

// DESFireTag drives MIFARE DESFire tags: application selection, DES/3DES
// authentication and file data access. Enumeration and file commands
// require only a connection; the card enforces per-file access rights
// natively and reports violations through the usual error path.
type DESFireTag struct {
	tagBase
	h DESFireHandle
}

// AuthenticateDES authenticates with an 8-byte DES key. Success moves the
// tag to the authenticated state; a failed attempt drops it back to
// connected.
func (t *DESFireTag) AuthenticateDES(keyNo byte, key [8]byte) *engine.Future[struct{}] {
	return submitUnit(t.dev, "AuthenticateDES", t.uid, func() error {
		if err := t.requireConnected("AuthenticateDES"); err != nil {
			return err
		}
		if err := t.h.AuthenticateDES(keyNo, key); err != nil {
			t.setState(StateConnected)
			return translateAuthErr("AuthenticateDES", t.uid, err)
		}
		t.setState(StateAuthenticated)
		return nil
	})
}

// Authenticate3DES authenticates with a 16-byte 3DES key.
func (t *DESFireTag) Authenticate3DES(keyNo byte, key [16]byte) *engine.Future[struct{}] {
	return submitUnit(t.dev, "Authenticate3DES", t.uid, func() error {
		if err := t.requireConnected("Authenticate3DES"); err != nil {
			return err
		}
		if err := t.h.Authenticate3DES(keyNo, key); err != nil {
			t.setState(StateConnected)
			return translateAuthErr("Authenticate3DES", t.uid, err)
		}
		t.setState(StateAuthenticated)
		return nil
	})
}

// ApplicationIDs enumerates the applications on the card.
func (t *DESFireTag) ApplicationIDs() *engine.Future[[]AppID] {
	return submitTo(t.dev, "ApplicationIDs", t.uid, func() ([]AppID, error) {
		if err := t.requireConnected("ApplicationIDs"); err != nil {
			return nil, err
		}
		aids, err := t.h.ApplicationIDs()
		if err != nil {
			return nil, translateErr("ApplicationIDs", t.uid, err)
		}
		return aids, nil
	})
}

// SelectApplication makes aid the active application. Selection resets
// any prior authentication, so the tag reads as connected afterwards.
func (t *DESFireTag) SelectApplication(aid AppID) *engine.Future[struct{}] {
	return submitUnit(t.dev, "SelectApplication", t.uid, func() error {
		if err := t.requireConnected("SelectApplication"); err != nil {
			return err
		}
		if err := t.h.SelectApplication(aid); err != nil {
			return translateErr("SelectApplication", t.uid, err)
		}
		t.setState(StateConnected)
		return nil
	})
}

// FileIDs enumerates the files of the active application.
func (t *DESFireTag) FileIDs() *engine.Future[[]byte] {
	return submitTo(t.dev, "FileIDs", t.uid, func() ([]byte, error) {
		if err := t.requireConnected("FileIDs"); err != nil {
			return nil, err
		}
		ids, err := t.h.FileIDs()
		if err != nil {
			return nil, translateErr("FileIDs", t.uid, err)
		}
		return ids, nil
	})
}

// ReadData reads up to length bytes from a file starting at offset. The
// result is a fresh buffer owned by the caller and may be shorter than
// length when the file ends first.
func (t *DESFireTag) ReadData(fileNo byte, offset int64, length int) *engine.Future[[]byte] {
	return submitTo(t.dev, "ReadData", t.uid, func() ([]byte, error) {
		if offset < 0 || length < 0 {
			return nil, &Error{
				Code:    ErrCodeInvalidArgument,
				Op:      "ReadData",
				TagUID:  t.uid,
				Message: fmt.Sprintf("offset %d and length %d must be non-negative", offset, length),
			}
		}
		if err := t.requireConnected("ReadData"); err != nil {
			return nil, err
		}
		buf := make([]byte, length)
		n, err := t.h.ReadData(fileNo, offset, buf)
		if err != nil {
			return nil, translateErr("ReadData", t.uid, err)
		}
		return buf[:n], nil
	})
}

// WriteData writes data into a file starting at offset and resolves with
// the byte count the card accepted. The data is copied at submission, so
// the caller may reuse its buffer immediately.
func (t *DESFireTag) WriteData(fileNo byte, offset int64, data []byte) *engine.Future[int] {
	buf := append([]byte(nil), data...)

	return submitTo(t.dev, "WriteData", t.uid, func() (int, error) {
		if offset < 0 {
			return 0, &Error{
				Code:    ErrCodeInvalidArgument,
				Op:      "WriteData",
				TagUID:  t.uid,
				Message: fmt.Sprintf("offset %d must be non-negative", offset),
			}
		}
		if err := t.requireConnected("WriteData"); err != nil {
			return 0, err
		}
		n, err := t.h.WriteData(fileNo, offset, buf)
		if err != nil {
			return 0, translateErr("WriteData", t.uid, err)
		}
		return n, nil
	})
}
