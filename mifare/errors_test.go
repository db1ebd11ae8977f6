package mifare

import (
	"errors"
	"fmt"
	"testing"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		expected string
	}{
		{
			name: "with op and message",
			err: &Error{
				Code:    ErrCodeNotConnected,
				Op:      "ReadBlock",
				Message: "not connected",
			},
			expected: "ReadBlock: not connected",
		},
		{
			name: "with op, message, and cause",
			err: &Error{
				Code:    ErrCodeIO,
				Op:      "WritePage",
				Message: "command failed",
				Cause:   errors.New("bus error"),
			},
			expected: "WritePage: command failed: bus error",
		},
		{
			name: "message only",
			err: &Error{
				Code:    ErrCodeUnknown,
				Message: "something broke",
			},
			expected: "something broke",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.expected {
				t.Errorf("Error.Error() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("underlying error")
	err := &Error{
		Code:    ErrCodeTimeout,
		Op:      "FastRead",
		Message: "command failed",
		Cause:   cause,
	}

	if unwrapped := err.Unwrap(); unwrapped != cause {
		t.Errorf("Error.Unwrap() = %v, want %v", unwrapped, cause)
	}

	errNoCause := &Error{
		Code:    ErrCodeNotConnected,
		Message: "not connected",
	}
	if unwrapped := errNoCause.Unwrap(); unwrapped != nil {
		t.Errorf("Error.Unwrap() = %v, want nil", unwrapped)
	}
}

func TestError_Is(t *testing.T) {
	err1 := &Error{Code: ErrCodeTimeout, Message: "test"}
	err2 := &Error{Code: ErrCodeTimeout, Message: "different message"}
	err3 := &Error{Code: ErrCodeIO, Message: "test"}

	if !err1.Is(err2) {
		t.Error("Error.Is() should return true for same code")
	}

	if err1.Is(err3) {
		t.Error("Error.Is() should return false for different code")
	}

	if err1.Is(errors.New("not a mifare error")) {
		t.Error("Error.Is() should return false for foreign error types")
	}
}

func TestErrorConstructors(t *testing.T) {
	cause := errors.New("native failure")

	tests := []struct {
		name     string
		err      *Error
		wantCode ErrorCode
		wantOp   string
		wantUID  string
	}{
		{"open device", NewOpenDeviceError("pn532_uart:/dev/ttyUSB0", cause), ErrCodeOpenDeviceFailed, "Open", ""},
		{"not connected", NewNotConnectedError("ReadPage", "04a1b2"), ErrCodeNotConnected, "ReadPage", "04a1b2"},
		{"already connected", NewAlreadyConnectedError("Connect", "04a1b2"), ErrCodeAlreadyConnected, "Connect", "04a1b2"},
		{"not authenticated", NewNotAuthenticatedError("ReadBlock", "aabbccdd"), ErrCodeNotAuthenticated, "ReadBlock", "aabbccdd"},
		{"auth failed", NewAuthError("Authenticate", "aabbccdd", cause), ErrCodeAuthFailed, "Authenticate", "aabbccdd"},
		{"released", NewReleasedError("Connect", "04a1b2"), ErrCodeTargetReleased, "Connect", "04a1b2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Code != tt.wantCode {
				t.Errorf("Code = %v, want %v", tt.err.Code, tt.wantCode)
			}
			if tt.err.Op != tt.wantOp {
				t.Errorf("Op = %q, want %q", tt.err.Op, tt.wantOp)
			}
			if tt.err.TagUID != tt.wantUID {
				t.Errorf("TagUID = %q, want %q", tt.err.TagUID, tt.wantUID)
			}
			if tt.err.Error() == "" {
				t.Error("Error() should not be empty")
			}
		})
	}
}

func TestErrorHelpers(t *testing.T) {
	if !IsNotConnectedError(NewNotConnectedError("ReadPage", "")) {
		t.Error("IsNotConnectedError should match ErrCodeNotConnected")
	}
	if !IsNotConnectedError(fmt.Errorf("wrapped: %w", NewNotConnectedError("ReadPage", ""))) {
		t.Error("IsNotConnectedError should match through wrapping")
	}
	if IsNotConnectedError(nil) {
		t.Error("IsNotConnectedError(nil) should be false")
	}

	if !IsAuthError(NewAuthError("Authenticate", "", nil)) {
		t.Error("IsAuthError should match ErrCodeAuthFailed")
	}
	if !IsAuthError(&Error{Code: ErrCodeMifareAuthFailed, Message: "command failed"}) {
		t.Error("IsAuthError should match ErrCodeMifareAuthFailed")
	}

	if !IsAbortedError(&Error{Code: ErrCodeOperationAborted, Message: "command failed"}) {
		t.Error("IsAbortedError should match ErrCodeOperationAborted")
	}
	if IsAbortedError(NewNotConnectedError("ReadPage", "")) {
		t.Error("IsAbortedError should not match other codes")
	}

	if got := GetErrorCode(NewReleasedError("Connect", "")); got != ErrCodeTargetReleased {
		t.Errorf("GetErrorCode = %v, want %v", got, ErrCodeTargetReleased)
	}
	if got := GetErrorCode(errors.New("plain")); got != 0 {
		t.Errorf("GetErrorCode = %v, want 0 for foreign errors", got)
	}
}

func TestErrorCode_String(t *testing.T) {
	tests := []struct {
		code ErrorCode
		want string
	}{
		{ErrCodeOpenDeviceFailed, "OpenDeviceFailed"},
		{ErrCodeNotConnected, "NotConnected"},
		{ErrCodeAlreadyConnected, "AlreadyConnected"},
		{ErrCodeNotAuthenticated, "NotAuthenticated"},
		{ErrCodeAuthFailed, "AuthenticationFailed"},
		{ErrCodeIO, "IO"},
		{ErrCodeInvalidArgument, "InvalidArgument"},
		{ErrCodeDeviceNotSupported, "DeviceNotSupported"},
		{ErrCodeNoSuchDevice, "NoSuchDevice"},
		{ErrCodeOverflow, "Overflow"},
		{ErrCodeTimeout, "Timeout"},
		{ErrCodeOperationAborted, "OperationAborted"},
		{ErrCodeNotImplemented, "NotImplemented"},
		{ErrCodeTargetReleased, "TargetReleased"},
		{ErrCodeTransmissionError, "TransmissionError"},
		{ErrCodeMifareAuthFailed, "MifareAuthFailed"},
		{ErrCodeSoftwareError, "SoftwareError"},
		{ErrCodeChipError, "ChipError"},
		{ErrCodeUnknown, "Unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.code.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}

	if got := ErrorCode(9999).String(); got != "ErrorCode(9999)" {
		t.Errorf("String() = %q, want %q", got, "ErrorCode(9999)")
	}
}
