package mifare

import (
	"fmt"

	"github.com/dotside-studios/nfc-bridge/engine"
)

// PageSize is the width of one Ultralight/NTAG page in bytes.
const PageSize = 4

// UltralightTag drives the MIFARE Ultralight family: Ultralight,
// Ultralight C and the NTAG213/215/216 variants, which share one command
// set. Page contents are raw bytes; layout interpretation is the
// caller's business.
type UltralightTag struct {
	tagBase
	h UltralightHandle
}

// ReadPage returns the 4 bytes of one page in a fresh buffer owned by the
// caller.
func (t *UltralightTag) ReadPage(page byte) *engine.Future[[]byte] {
	return submitTo(t.dev, "ReadPage", t.uid, func() ([]byte, error) {
		if err := t.requireConnected("ReadPage"); err != nil {
			return nil, err
		}
		data, err := t.h.ReadPage(page)
		if err != nil {
			return nil, translateErr("ReadPage", t.uid, err)
		}
		out := make([]byte, PageSize)
		copy(out, data[:])
		return out, nil
	})
}

// WritePage writes exactly one 4-byte page. The data is copied at
// submission, so the caller may reuse its buffer immediately.
func (t *UltralightTag) WritePage(page byte, data []byte) *engine.Future[struct{}] {
	var buf [PageSize]byte
	n := copy(buf[:], data)
	sizeOK := n == PageSize && len(data) == PageSize

	return submitUnit(t.dev, "WritePage", t.uid, func() error {
		if !sizeOK {
			return &Error{
				Code:    ErrCodeInvalidArgument,
				Op:      "WritePage",
				TagUID:  t.uid,
				Message: fmt.Sprintf("page data must be %d bytes, got %d", PageSize, len(data)),
			}
		}
		if err := t.requireConnected("WritePage"); err != nil {
			return err
		}
		if err := t.h.WritePage(page, buf); err != nil {
			return translateErr("WritePage", t.uid, err)
		}
		return nil
	})
}

// FastRead returns pages startPage..endPage inclusive, 4 bytes per page,
// in one fresh buffer. A start past the end is clamped to a single-page
// range at submission: FastRead(n, m) with n > m reads exactly page n.
func (t *UltralightTag) FastRead(startPage, endPage byte) *engine.Future[[]byte] {
	if startPage > endPage {
		endPage = startPage
	}
	return submitTo(t.dev, "FastRead", t.uid, func() ([]byte, error) {
		if err := t.requireConnected("FastRead"); err != nil {
			return nil, err
		}
		data, err := t.h.FastRead(startPage, endPage)
		if err != nil {
			return nil, translateErr("FastRead", t.uid, err)
		}
		return data, nil
	})
}

// Subtype reports which NTAG21x variant discovery identified: 213, 215 or
// 216, or 0 for tags outside that family. It consults no hardware but
// still resolves through the device queue like every other command.
func (t *UltralightTag) Subtype() *engine.Future[int] {
	return submitTo(t.dev, "Subtype", t.uid, func() (int, error) {
		if err := t.checkReleased("Subtype"); err != nil {
			return 0, err
		}
		switch t.tech {
		case TechNTAG213:
			return 213, nil
		case TechNTAG215:
			return 215, nil
		case TechNTAG216:
			return 216, nil
		}
		return 0, nil
	})
}
