package mifare

import (
	"errors"

	"github.com/clausecker/nfc/v2"
)

// translateCode maps a native libnfc status code onto the domain error
// taxonomy. The mapping is total: codes outside the known set collapse to
// ErrCodeUnknown instead of failing. SUCCESS is not an error and never
// reaches this function; like any unrecognized code it would map to
// ErrCodeUnknown.
func translateCode(code int) ErrorCode {
	switch code {
	case nfc.EIO:
		return ErrCodeIO
	case nfc.EINVARG:
		return ErrCodeInvalidArgument
	case nfc.EDEVNOTSUPP:
		return ErrCodeDeviceNotSupported
	case nfc.ENOTSUCHDEV:
		return ErrCodeNoSuchDevice
	case nfc.EOVFLOW:
		return ErrCodeOverflow
	case nfc.ETIMEOUT:
		return ErrCodeTimeout
	case nfc.EOPABORTED:
		return ErrCodeOperationAborted
	case nfc.ENOTIMPL:
		return ErrCodeNotImplemented
	case nfc.ETGRELEASED:
		return ErrCodeTargetReleased
	case nfc.ERFTRANS:
		return ErrCodeTransmissionError
	case nfc.EMFCAUTHFAIL:
		return ErrCodeMifareAuthFailed
	case nfc.ESOFT:
		return ErrCodeSoftwareError
	case nfc.ECHIP:
		return ErrCodeChipError
	}
	return ErrCodeUnknown
}

// translateErr wraps a native failure into a *Error carrying the
// translated code. Failures that did not originate in the libnfc layer
// keep their cause but classify as ErrCodeUnknown.
func translateErr(op, tagUID string, err error) *Error {
	code := ErrCodeUnknown
	var native nfc.Error
	if errors.As(err, &native) {
		code = translateCode(int(native))
	}
	return &Error{
		Code:    code,
		Op:      op,
		TagUID:  tagUID,
		Message: "command failed",
		Cause:   err,
	}
}

// translateAuthErr is translateErr for authentication commands: a failure
// the translator cannot classify reads as an authentication failure there,
// not as an unknown hardware fault.
func translateAuthErr(op, tagUID string, err error) *Error {
	e := translateErr(op, tagUID, err)
	if e.Code == ErrCodeUnknown {
		e.Code = ErrCodeAuthFailed
		e.Message = "authentication failed"
	}
	return e
}
