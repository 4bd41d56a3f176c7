package efex

// EFEXInit sends VERIFY_DEVICE and populates Resp with the decoded
// 32-byte device-response record. It must be called after Scan and
// Init, and before any FEL/FES operation; those operations are gated on
// Resp.Mode.
func (c *Context) EFEXInit() *Error {
	if err := c.SendRequest(CmdVerifyDevice, 0, deviceResponseWireSize); err != nil {
		return err
	}
	buf := make([]byte, deviceResponseWireSize)
	if err := c.Read(buf); err != nil {
		return err
	}
	if err := c.ReadStatus(); err != nil {
		return err
	}
	resp, err := decodeDeviceResponse(buf)
	if err != nil {
		return err
	}
	c.Resp = resp
	c.inited = true
	return nil
}

// Mode returns the device mode recorded at EFEXInit time.
func (c *Context) Mode() DeviceMode {
	return c.Resp.Mode
}

// RequireMode returns KindInvalidDeviceMode if the context's current
// mode does not match want; used by fel/fes operations to enforce the
// mode-gating invariant before performing any USB I/O.
func (c *Context) RequireMode(want DeviceMode) *Error {
	if c.Resp.Mode != want {
		return newErr("RequireMode", KindInvalidDeviceMode, nil)
	}
	return nil
}
