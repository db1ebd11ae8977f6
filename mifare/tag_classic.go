package mifare

import (
	"fmt"

	"github.com/clausecker/freefare"

	"github.com/dotside-studios/nfc-bridge/engine"
)

// BlockSize is the width of one MIFARE Classic block in bytes.
const BlockSize = 16

// ClassicTag drives MIFARE Classic 1K and 4K tags: sector authentication,
// 16-byte block access and the value block commands. Block and value
// commands require a prior Authenticate for the sector holding the block;
// the model tracks the authenticated state coarsely and the card rejects
// cross-sector access natively.
type ClassicTag struct {
	tagBase
	h ClassicHandle
}

// maxSector is the highest valid sector number for the tag's geometry.
func (t *ClassicTag) maxSector() byte {
	if t.tech == TechClassic4K {
		return 39
	}
	return 15
}

// Authenticate proves knowledge of one of the sector's keys against the
// sector trailer. Success moves the tag to the authenticated state; a
// failed attempt drops it back to connected.
func (t *ClassicTag) Authenticate(sector byte, key [6]byte, keyType KeyType) *engine.Future[struct{}] {
	return submitUnit(t.dev, "Authenticate", t.uid, func() error {
		if err := t.requireConnected("Authenticate"); err != nil {
			return err
		}
		if keyType != KeyTypeA && keyType != KeyTypeB {
			return &Error{
				Code:    ErrCodeInvalidArgument,
				Op:      "Authenticate",
				TagUID:  t.uid,
				Message: fmt.Sprintf("key type must be 0x60 or 0x61, got 0x%02X", byte(keyType)),
			}
		}
		if sector > t.maxSector() {
			return &Error{
				Code:    ErrCodeInvalidArgument,
				Op:      "Authenticate",
				TagUID:  t.uid,
				Message: fmt.Sprintf("sector %d out of range for %s", sector, t.tech),
			}
		}
		trailer := freefare.ClassicSectorLastBlock(sector)
		if err := t.h.Authenticate(trailer, key, keyType); err != nil {
			t.setState(StateConnected)
			return translateAuthErr("Authenticate", t.uid, err)
		}
		t.setState(StateAuthenticated)
		return nil
	})
}

// ReadBlock returns the 16 bytes of one absolute block in a fresh buffer
// owned by the caller.
func (t *ClassicTag) ReadBlock(block byte) *engine.Future[[]byte] {
	return submitTo(t.dev, "ReadBlock", t.uid, func() ([]byte, error) {
		if err := t.requireAuthenticated("ReadBlock"); err != nil {
			return nil, err
		}
		data, err := t.h.ReadBlock(block)
		if err != nil {
			return nil, translateErr("ReadBlock", t.uid, err)
		}
		out := make([]byte, BlockSize)
		copy(out, data[:])
		return out, nil
	})
}

// WriteBlock writes exactly one 16-byte block. The data is copied at
// submission, so the caller may reuse its buffer immediately.
func (t *ClassicTag) WriteBlock(block byte, data []byte) *engine.Future[struct{}] {
	var buf [BlockSize]byte
	n := copy(buf[:], data)
	sizeOK := n == BlockSize && len(data) == BlockSize

	return submitUnit(t.dev, "WriteBlock", t.uid, func() error {
		if !sizeOK {
			return &Error{
				Code:    ErrCodeInvalidArgument,
				Op:      "WriteBlock",
				TagUID:  t.uid,
				Message: fmt.Sprintf("block data must be %d bytes, got %d", BlockSize, len(data)),
			}
		}
		if err := t.requireAuthenticated("WriteBlock"); err != nil {
			return err
		}
		if err := t.h.WriteBlock(block, buf); err != nil {
			return translateErr("WriteBlock", t.uid, err)
		}
		return nil
	})
}

// InitValue formats a block as a value block holding value, with adr as
// the backup block address byte. The card's 4-byte signed value format is
// passed through unmodified.
func (t *ClassicTag) InitValue(block byte, value int32, adr byte) *engine.Future[struct{}] {
	return submitUnit(t.dev, "InitValue", t.uid, func() error {
		if err := t.requireAuthenticated("InitValue"); err != nil {
			return err
		}
		if err := t.h.InitValue(block, value, adr); err != nil {
			return translateErr("InitValue", t.uid, err)
		}
		return nil
	})
}

// ReadValue decodes a value block.
func (t *ClassicTag) ReadValue(block byte) *engine.Future[ValueBlock] {
	return submitTo(t.dev, "ReadValue", t.uid, func() (ValueBlock, error) {
		if err := t.requireAuthenticated("ReadValue"); err != nil {
			return ValueBlock{}, err
		}
		value, adr, err := t.h.ReadValue(block)
		if err != nil {
			return ValueBlock{}, translateErr("ReadValue", t.uid, err)
		}
		return ValueBlock{Value: value, Adr: adr}, nil
	})
}

// Increment adds amount to the block's value in the card's transfer
// register; Transfer commits the register back to a block.
func (t *ClassicTag) Increment(block byte, amount uint32) *engine.Future[struct{}] {
	return submitUnit(t.dev, "Increment", t.uid, func() error {
		if err := t.requireAuthenticated("Increment"); err != nil {
			return err
		}
		if err := t.h.Increment(block, amount); err != nil {
			return translateErr("Increment", t.uid, err)
		}
		return nil
	})
}

// Decrement subtracts amount from the block's value in the card's
// transfer register.
func (t *ClassicTag) Decrement(block byte, amount uint32) *engine.Future[struct{}] {
	return submitUnit(t.dev, "Decrement", t.uid, func() error {
		if err := t.requireAuthenticated("Decrement"); err != nil {
			return err
		}
		if err := t.h.Decrement(block, amount); err != nil {
			return translateErr("Decrement", t.uid, err)
		}
		return nil
	})
}

// Restore loads the block's value into the card's transfer register.
func (t *ClassicTag) Restore(block byte) *engine.Future[struct{}] {
	return submitUnit(t.dev, "Restore", t.uid, func() error {
		if err := t.requireAuthenticated("Restore"); err != nil {
			return err
		}
		if err := t.h.Restore(block); err != nil {
			return translateErr("Restore", t.uid, err)
		}
		return nil
	})
}

// Transfer commits the card's transfer register into block.
func (t *ClassicTag) Transfer(block byte) *engine.Future[struct{}] {
	return submitUnit(t.dev, "Transfer", t.uid, func() error {
		if err := t.requireAuthenticated("Transfer"); err != nil {
			return err
		}
		if err := t.h.Transfer(block); err != nil {
			return translateErr("Transfer", t.uid, err)
		}
		return nil
	})
}
