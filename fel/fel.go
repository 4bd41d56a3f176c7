// Package fel implements the FEL (First-stage External Loader) command
// family: execute, chunked memory read/write, and direct 32-bit
// register access. Every operation here is gated on the context being
// in FEL mode.
package fel

import (
	"encoding/binary"

	"github.com/YuzukiTsuru/libefex/efex"
)

// Exec sends FEL_EXEC for addr and waits for the device's status. The
// device executes at addr and returns control to its USB loop before
// responding.
func Exec(ctx *efex.Context, addr uint32) *efex.Error {
	if err := ctx.RequireMode(efex.ModeFEL); err != nil {
		return err
	}
	if err := ctx.SendRequest(efex.CmdFelExec, addr, 0); err != nil {
		return err
	}
	return ctx.ReadStatus()
}

// Read fills buf from device memory starting at addr, chunked at
// efex.FELChunkSize and serialised: a subsequent chunk is not prepared
// until the previous chunk's status has been read successfully.
func Read(ctx *efex.Context, addr uint32, buf []byte) *efex.Error {
	if err := ctx.RequireMode(efex.ModeFEL); err != nil {
		return err
	}
	if len(buf) == 0 {
		return &efex.Error{Op: "fel.Read", Kind: efex.KindInvalidParam}
	}
	off := 0
	for off < len(buf) {
		n := len(buf) - off
		if n > efex.FELChunkSize {
			n = efex.FELChunkSize
		}
		if err := ctx.SendRequest(efex.CmdFelRead, addr, uint32(n)); err != nil {
			return err
		}
		if err := ctx.Read(buf[off : off+n]); err != nil {
			return err
		}
		if err := ctx.ReadStatus(); err != nil {
			return err
		}
		addr += uint32(n)
		off += n
	}
	return nil
}

// Write sends buf to device memory starting at addr, chunked and
// serialised the same way as Read.
func Write(ctx *efex.Context, addr uint32, buf []byte) *efex.Error {
	if err := ctx.RequireMode(efex.ModeFEL); err != nil {
		return err
	}
	if len(buf) == 0 {
		return &efex.Error{Op: "fel.Write", Kind: efex.KindInvalidParam}
	}
	off := 0
	for off < len(buf) {
		n := len(buf) - off
		if n > efex.FELChunkSize {
			n = efex.FELChunkSize
		}
		if err := ctx.SendRequest(efex.CmdFelWrite, addr, uint32(n)); err != nil {
			return err
		}
		if err := ctx.Write(buf[off : off+n]); err != nil {
			return err
		}
		if err := ctx.ReadStatus(); err != nil {
			return err
		}
		addr += uint32(n)
		off += n
	}
	return nil
}

// ReadL reads a single 32-bit little-endian word directly via the FEL
// read primitive (not the payload-injection RPC in package payload,
// which is only needed for MMIO regions the ROM forbids a direct read
// on).
func ReadL(ctx *efex.Context, addr uint32) (uint32, *efex.Error) {
	buf := make([]byte, 4)
	if err := Read(ctx, addr, buf); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(buf), nil
}

// WriteL writes a single 32-bit little-endian word directly via the FEL
// write primitive.
func WriteL(ctx *efex.Context, addr, value uint32) *efex.Error {
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, value)
	return Write(ctx, addr, buf)
}
