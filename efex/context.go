package efex

import (
	"time"

	"github.com/cenkalti/backoff"
)

// Context is the single-owner session value carried through a scan,
// init and EFEX-init sequence, per the session-context data model. It
// is never shared across goroutines; callers are expected to serialize
// their own access (documented, not enforced, the same convention the
// corpus uses for serial-link sessions).
type Context struct {
	backend Backend
	handle  BackendHandle

	epIn  uint8
	epOut uint8

	// DevName is a device-path identifier string. Scan does not set it:
	// the Backend interface returns no path, so it stays empty unless
	// the caller assigns it. Close clears it.
	DevName string

	// Resp is the device-response record populated by EFEXInit.
	Resp DeviceResponse

	inited bool
}

// NewContext creates an empty Context bound to the currently-selected
// backend. No USB I/O is performed until Scan is called.
func NewContext() (*Context, *Error) {
	b, err := newBackend()
	if err != nil {
		return nil, err
	}
	return &Context{backend: b}, nil
}

// NewContextWithBackend creates an empty Context bound to an explicit
// Backend instance, bypassing the process-wide registry. Useful for
// embedders supplying their own Backend and for tests driving the
// session against a fake.
func NewContextWithBackend(b Backend) *Context {
	return &Context{backend: b}
}

// scanBackoff bounds the retry window used by Scan: USB enumeration can
// race a device that is still mid-reset immediately after FEL/FES entry.
func scanBackoff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 100 * time.Millisecond
	b.MaxInterval = 1 * time.Second
	b.MaxElapsedTime = 5 * time.Second
	return b
}

// Scan enumerates attached devices and opens the first device matching
// VendorID/ProductID, retrying with a bounded exponential backoff before
// surfacing KindUSBDeviceNotFound.
func (c *Context) Scan() *Error {
	var handle BackendHandle
	var scanErr *Error

	op := func() error {
		h, err := c.backend.Scan()
		if err != nil {
			scanErr = err
			if err.Kind == KindUSBDeviceNotFound {
				return err
			}
			// Non-retryable backend failure: stop immediately.
			return backoff.Permanent(err)
		}
		handle = h
		return nil
	}

	if bErr := backoff.Retry(op, scanBackoff()); bErr != nil {
		if scanErr != nil {
			return scanErr
		}
		return newErr("Scan", KindUSBDeviceNotFound, bErr)
	}
	c.handle = handle
	return nil
}

// Init claims the interface and discovers the bulk endpoints.
func (c *Context) Init() *Error {
	if c.handle == nil {
		return newErr("Init", KindInvalidState, nil)
	}
	epIn, epOut, err := c.backend.Init(c.handle)
	if err != nil {
		return err
	}
	c.epIn = epIn
	c.epOut = epOut
	return nil
}

// Close tears the session down: closes the handle and frees the backend
// device-path string.
func (c *Context) Close() *Error {
	if c.handle == nil {
		return nil
	}
	err := c.backend.Exit(c.handle)
	c.handle = nil
	c.DevName = ""
	c.inited = false
	return err
}
