package mifare

import (
	"bytes"
	"testing"

	"go.uber.org/goleak"
)

func newUltralightTag(t *testing.T, tech Technology) (*Device, *MockTag, *UltralightTag) {
	t.Helper()

	dev, mock, tag := newTestTag(t, tech)
	ul, ok := tag.(*UltralightTag)
	if !ok {
		t.Fatalf("tag is %T, want *UltralightTag", tag)
	}
	return dev, mock, ul
}

func TestUltralightReadPage(t *testing.T) {
	defer goleak.VerifyNone(t)

	dev, mock, tag := newUltralightTag(t, TechUltralight)
	defer shutdown(t, dev)

	mock.Pages[4] = [4]byte{0xDE, 0xAD, 0xBE, 0xEF}
	tag.Connect().Result()

	data, err := tag.ReadPage(4).Result()
	if err != nil {
		t.Fatalf("ReadPage: %v", err)
	}
	if !bytes.Equal(data, []byte{0xDE, 0xAD, 0xBE, 0xEF}) {
		t.Fatalf("page 4 = % X", data)
	}

	// Each read hands out a buffer the caller owns.
	data[0] = 0x00
	again, err := tag.ReadPage(4).Result()
	if err != nil {
		t.Fatalf("ReadPage: %v", err)
	}
	if again[0] != 0xDE {
		t.Errorf("second read saw the caller's mutation: % X", again)
	}
}

func TestUltralightReadPageRequiresConnect(t *testing.T) {
	defer goleak.VerifyNone(t)

	dev, mock, tag := newUltralightTag(t, TechUltralight)
	defer shutdown(t, dev)

	if _, err := tag.ReadPage(0).Result(); GetErrorCode(err) != ErrCodeNotConnected {
		t.Fatalf("ReadPage: got %v, want ErrCodeNotConnected", err)
	}
	if len(mock.CallLog) != 0 {
		t.Errorf("precondition failure reached the handle: %v", mock.CallLog)
	}
}

func TestUltralightWritePage(t *testing.T) {
	defer goleak.VerifyNone(t)

	dev, mock, tag := newUltralightTag(t, TechNTAG216)
	defer shutdown(t, dev)

	tag.Connect().Result()

	buf := []byte{0x01, 0x02, 0x03, 0x04}
	fut := tag.WritePage(7, buf)
	// The page data was copied at submission; scribbling over the
	// caller's buffer cannot reach the tag.
	buf[0] = 0xFF

	if _, err := fut.Result(); err != nil {
		t.Fatalf("WritePage: %v", err)
	}
	if got := mock.Pages[7]; got != [4]byte{0x01, 0x02, 0x03, 0x04} {
		t.Errorf("page 7 = % X, want the bytes as submitted", got)
	}
}

func TestUltralightWritePageSize(t *testing.T) {
	defer goleak.VerifyNone(t)

	dev, mock, tag := newUltralightTag(t, TechUltralight)
	defer shutdown(t, dev)

	tag.Connect().Result()

	for _, data := range [][]byte{nil, {0x01}, {0x01, 0x02, 0x03}, {0x01, 0x02, 0x03, 0x04, 0x05}} {
		if _, err := tag.WritePage(0, data).Result(); GetErrorCode(err) != ErrCodeInvalidArgument {
			t.Fatalf("WritePage(%d bytes): got %v, want ErrCodeInvalidArgument", len(data), err)
		}
	}
	// None of the rejected writes reached the handle.
	for _, call := range mock.CallLog {
		if call == "WritePage" {
			t.Fatalf("invalid write reached the handle: %v", mock.CallLog)
		}
	}
}

func TestUltralightFastRead(t *testing.T) {
	defer goleak.VerifyNone(t)

	dev, mock, tag := newUltralightTag(t, TechNTAG215)
	defer shutdown(t, dev)

	mock.Pages[2] = [4]byte{0x11, 0x11, 0x11, 0x11}
	mock.Pages[3] = [4]byte{0x22, 0x22, 0x22, 0x22}
	mock.Pages[4] = [4]byte{0x33, 0x33, 0x33, 0x33}
	tag.Connect().Result()

	data, err := tag.FastRead(2, 4).Result()
	if err != nil {
		t.Fatalf("FastRead: %v", err)
	}
	want := []byte{
		0x11, 0x11, 0x11, 0x11,
		0x22, 0x22, 0x22, 0x22,
		0x33, 0x33, 0x33, 0x33,
	}
	if !bytes.Equal(data, want) {
		t.Errorf("FastRead(2, 4) = % X, want % X", data, want)
	}
}

func TestUltralightFastReadClampsInvertedRange(t *testing.T) {
	defer goleak.VerifyNone(t)

	dev, mock, tag := newUltralightTag(t, TechNTAG213)
	defer shutdown(t, dev)

	mock.Pages[5] = [4]byte{0xAB, 0xCD, 0xEF, 0x01}
	tag.Connect().Result()

	inverted, err := tag.FastRead(5, 2).Result()
	if err != nil {
		t.Fatalf("FastRead(5, 2): %v", err)
	}
	single, err := tag.FastRead(5, 5).Result()
	if err != nil {
		t.Fatalf("FastRead(5, 5): %v", err)
	}
	if !bytes.Equal(inverted, single) {
		t.Errorf("FastRead(5, 2) = % X, FastRead(5, 5) = % X; want identical", inverted, single)
	}
	if len(inverted) != PageSize {
		t.Errorf("clamped read returned %d bytes, want %d", len(inverted), PageSize)
	}
}

func TestUltralightSubtype(t *testing.T) {
	defer goleak.VerifyNone(t)

	tests := []struct {
		tech Technology
		want int
	}{
		{TechUltralight, 0},
		{TechUltralightC, 0},
		{TechNTAG213, 213},
		{TechNTAG215, 215},
		{TechNTAG216, 216},
	}
	for _, tt := range tests {
		dev, mock, tag := newUltralightTag(t, tt.tech)

		got, err := tag.Subtype().Result()
		if err != nil {
			t.Fatalf("Subtype(%v): %v", tt.tech, err)
		}
		if got != tt.want {
			t.Errorf("Subtype(%v) = %d, want %d", tt.tech, got, tt.want)
		}
		// Subtype is answered from discovery state, not the tag.
		if len(mock.CallLog) != 0 {
			t.Errorf("Subtype(%v) reached the handle: %v", tt.tech, mock.CallLog)
		}
		shutdown(t, dev)
	}
}

func TestUltralightSubtypeAfterRelease(t *testing.T) {
	defer goleak.VerifyNone(t)

	dev, _, tag := newUltralightTag(t, TechNTAG215)
	defer shutdown(t, dev)

	tag.Release()
	if _, err := tag.Subtype().Result(); GetErrorCode(err) != ErrCodeTargetReleased {
		t.Fatalf("Subtype after Release: got %v, want ErrCodeTargetReleased", err)
	}
}
