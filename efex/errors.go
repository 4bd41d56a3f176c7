package efex

import "fmt"

// Kind is a closed taxonomy of error conditions produced by the core.
// Every layer returns one of these, wrapped in an *Error, rather than
// panicking.
type Kind int

const (
	// KindSuccess is never returned as an error; it exists so Kind has a
	// defined zero value that stringifies sensibly.
	KindSuccess Kind = iota

	// Generic
	KindInvalidParam
	KindNullPtr
	KindMemory
	KindNotSupport

	// USB
	KindUSBInit
	KindUSBDeviceNotFound
	KindUSBOpen
	KindUSBTransfer
	KindUSBTimeout

	// Protocol
	KindProtocol
	KindInvalidResponse
	KindUnexpectedStatus
	KindInvalidState
	KindInvalidDeviceMode

	// Operation
	KindOperationFailed
	KindDeviceBusy
	KindDeviceNotReady

	// Flash
	KindFlashAccess
	KindFlashSizeProbe
	KindFlashSetOnOff

	// Verification
	KindVerification
	KindCRCMismatch

	// File
	KindFileOpen
	KindFileRead
	KindFileWrite
	KindFileSize
)

var kindNames = map[Kind]string{
	KindSuccess:           "success",
	KindInvalidParam:      "invalid parameter",
	KindNullPtr:           "null pointer",
	KindMemory:            "out of memory",
	KindNotSupport:        "not supported",
	KindUSBInit:           "usb init failed",
	KindUSBDeviceNotFound: "usb device not found",
	KindUSBOpen:           "usb open failed",
	KindUSBTransfer:       "usb transfer failed",
	KindUSBTimeout:        "usb timeout",
	KindProtocol:          "protocol error",
	KindInvalidResponse:   "invalid response",
	KindUnexpectedStatus:  "unexpected status",
	KindInvalidState:      "invalid state",
	KindInvalidDeviceMode: "invalid device mode for operation",
	KindOperationFailed:   "operation failed",
	KindDeviceBusy:        "device busy",
	KindDeviceNotReady:    "device not ready",
	KindFlashAccess:       "flash access error",
	KindFlashSizeProbe:    "flash size probe failed",
	KindFlashSetOnOff:     "flash set on/off failed",
	KindVerification:      "verification failed",
	KindCRCMismatch:       "crc mismatch",
	KindFileOpen:          "file open failed",
	KindFileRead:          "file read failed",
	KindFileWrite:         "file write failed",
	KindFileSize:          "file size error",
}

// String implements fmt.Stringer, returning the human-readable message for
// a Kind. Unknown kinds stringify to "unknown error".
func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "unknown error"
}

// Error is the single Result-style error type returned throughout the
// core; every layer returns either a value or an *Error, never both and
// never a bare string or sentinel.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Kind)
}

// Unwrap allows errors.Is/errors.As to reach the wrapped cause, if any.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error with the same Kind, so callers
// can write errors.Is(err, &efex.Error{Kind: efex.KindInvalidDeviceMode}).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// newErr builds an *Error for op/kind, optionally wrapping cause.
func newErr(op string, kind Kind, cause error) *Error {
	return &Error{Op: op, Kind: kind, Err: cause}
}

// Strerror returns the human readable description for a Kind, mirroring
// sunxi_efex_strerror in the original C library.
func Strerror(k Kind) string {
	return k.String()
}
