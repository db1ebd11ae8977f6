package mifare

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorCode represents a specific class of reader or tag error for
// programmatic handling.
type ErrorCode int

const (
	// Device and command state errors (100-199)
	ErrCodeOpenDeviceFailed ErrorCode = iota + 100
	ErrCodeNotConnected
	ErrCodeAlreadyConnected
	ErrCodeNotAuthenticated
	ErrCodeAuthFailed

	// Hardware error classes reported by the reader stack
	ErrCodeIO
	ErrCodeInvalidArgument
	ErrCodeDeviceNotSupported
	ErrCodeNoSuchDevice
	ErrCodeOverflow
	ErrCodeTimeout
	ErrCodeOperationAborted
	ErrCodeNotImplemented
	ErrCodeTargetReleased
	ErrCodeTransmissionError
	ErrCodeMifareAuthFailed
	ErrCodeSoftwareError
	ErrCodeChipError
	ErrCodeUnknown
)

// String returns the symbolic name of the code, as used in wire payloads.
func (c ErrorCode) String() string {
	switch c {
	case ErrCodeOpenDeviceFailed:
		return "OpenDeviceFailed"
	case ErrCodeNotConnected:
		return "NotConnected"
	case ErrCodeAlreadyConnected:
		return "AlreadyConnected"
	case ErrCodeNotAuthenticated:
		return "NotAuthenticated"
	case ErrCodeAuthFailed:
		return "AuthenticationFailed"
	case ErrCodeIO:
		return "IO"
	case ErrCodeInvalidArgument:
		return "InvalidArgument"
	case ErrCodeDeviceNotSupported:
		return "DeviceNotSupported"
	case ErrCodeNoSuchDevice:
		return "NoSuchDevice"
	case ErrCodeOverflow:
		return "Overflow"
	case ErrCodeTimeout:
		return "Timeout"
	case ErrCodeOperationAborted:
		return "OperationAborted"
	case ErrCodeNotImplemented:
		return "NotImplemented"
	case ErrCodeTargetReleased:
		return "TargetReleased"
	case ErrCodeTransmissionError:
		return "TransmissionError"
	case ErrCodeMifareAuthFailed:
		return "MifareAuthFailed"
	case ErrCodeSoftwareError:
		return "SoftwareError"
	case ErrCodeChipError:
		return "ChipError"
	case ErrCodeUnknown:
		return "Unknown"
	}
	return fmt.Sprintf("ErrorCode(%d)", int(c))
}

// Error provides structured error information for programmatic handling.
type Error struct {
	Code    ErrorCode
	Op      string // Operation that failed (e.g., "ReadBlock", "FastRead")
	TagUID  string // Optional: UID of tag involved
	Message string // Human-readable message
	Cause   error  // Underlying error
}

func (e *Error) Error() string {
	var sb strings.Builder
	if e.Op != "" {
		sb.WriteString(e.Op)
		sb.WriteString(": ")
	}
	sb.WriteString(e.Message)
	if e.Cause != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Cause.Error())
	}
	return sb.String()
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// NewOpenDeviceError creates an error for a device that could not be
// acquired.
func NewOpenDeviceError(connString string, cause error) *Error {
	return &Error{
		Code:    ErrCodeOpenDeviceFailed,
		Op:      "Open",
		Message: fmt.Sprintf("could not open device %q", connString),
		Cause:   cause,
	}
}

// NewNotConnectedError creates an error for commands issued out of the
// connected state.
func NewNotConnectedError(op, tagUID string) *Error {
	return &Error{
		Code:    ErrCodeNotConnected,
		Op:      op,
		TagUID:  tagUID,
		Message: "not connected",
	}
}

// NewAlreadyConnectedError creates an error for redundant connects.
func NewAlreadyConnectedError(op, tagUID string) *Error {
	return &Error{
		Code:    ErrCodeAlreadyConnected,
		Op:      op,
		TagUID:  tagUID,
		Message: "already connected",
	}
}

// NewNotAuthenticatedError creates an error for data commands that need a
// prior authentication.
func NewNotAuthenticatedError(op, tagUID string) *Error {
	return &Error{
		Code:    ErrCodeNotAuthenticated,
		Op:      op,
		TagUID:  tagUID,
		Message: "not authenticated",
	}
}

// NewAuthError creates an error for authentication failures.
func NewAuthError(op, tagUID string, cause error) *Error {
	return &Error{
		Code:    ErrCodeAuthFailed,
		Op:      op,
		TagUID:  tagUID,
		Message: "authentication failed",
		Cause:   cause,
	}
}

// NewReleasedError creates an error for commands on a released tag handle.
func NewReleasedError(op, tagUID string) *Error {
	return &Error{
		Code:    ErrCodeTargetReleased,
		Op:      op,
		TagUID:  tagUID,
		Message: "tag handle released",
	}
}

// IsNotConnectedError checks if an error indicates a missing connection.
func IsNotConnectedError(err error) bool {
	if err == nil {
		return false
	}
	var mErr *Error
	if errors.As(err, &mErr) {
		return mErr.Code == ErrCodeNotConnected
	}
	// Fallback to string matching for errors from outside the package
	return strings.Contains(err.Error(), "not connected")
}

// IsAuthError checks if an error indicates authentication failure of
// either the command or MIFARE flavor.
func IsAuthError(err error) bool {
	if err == nil {
		return false
	}
	var mErr *Error
	if errors.As(err, &mErr) {
		return mErr.Code == ErrCodeAuthFailed || mErr.Code == ErrCodeMifareAuthFailed
	}
	// Fallback to string matching
	errStr := err.Error()
	return strings.Contains(errStr, "authentication") ||
		strings.Contains(errStr, "auth")
}

// IsAbortedError checks if an error indicates a command cut short by an
// abort request.
func IsAbortedError(err error) bool {
	if err == nil {
		return false
	}
	var mErr *Error
	if errors.As(err, &mErr) {
		return mErr.Code == ErrCodeOperationAborted
	}
	return strings.Contains(err.Error(), "aborted")
}

// GetErrorCode extracts the ErrorCode from an error if it's a *Error.
// Returns 0 if the error carries no code.
func GetErrorCode(err error) ErrorCode {
	var mErr *Error
	if errors.As(err, &mErr) {
		return mErr.Code
	}
	return 0
}

// WrapError wraps an existing error with reader context.
func WrapError(code ErrorCode, op, message string, cause error) *Error {
	return &Error{
		Code:    code,
		Op:      op,
		Message: message,
		Cause:   cause,
	}
}

// Errorf creates an Error with a formatted message.
func Errorf(code ErrorCode, op, format string, args ...interface{}) *Error {
	return &Error{
		Code:    code,
		Op:      op,
		Message: fmt.Sprintf(format, args...),
	}
}
