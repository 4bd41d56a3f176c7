package fes

import "github.com/YuzukiTsuru/libefex/efex"

// Down streams data from the host to the device starting at addr, in
// chunks of at most efex.MaxInnerPayload. dataType classifies the
// payload per the FES data-type tag (efex.FesData*); startFlag is
// OR'd into the first chunk's flags — whether the device actually
// requires FesDataTagStart on every transfer or only on selected
// data-type transfers is ambiguous upstream, so the caller controls it
// explicitly (see DESIGN.md).
//
// The loop never emits a trailing zero-length chunk, and sets
// FesDataTagFinish exactly once, on the chunk that completes the
// transfer. When dataType's low bits are nonzero the address advances
// by byte count; otherwise (sector-oriented transfers) it advances by
// length/512.
func Down(ctx *efex.Context, addr uint32, dataType uint32, startFlag bool, data []byte) *efex.Error {
	return xfer(ctx, efex.CmdFesDown, efex.FesSend, addr, dataType, startFlag, data)
}

// Up streams data from the device to the host starting at addr. See
// Down for the chunking and flag rules, which are symmetric.
func Up(ctx *efex.Context, addr uint32, dataType uint32, startFlag bool, data []byte) *efex.Error {
	return xfer(ctx, efex.CmdFesUp, efex.FesRecv, addr, dataType, startFlag, data)
}

func xfer(ctx *efex.Context, cmd efex.Command, dir efex.FesDirection, addr, dataType uint32, startFlag bool, data []byte) *efex.Error {
	if err := requireSRV(ctx); err != nil {
		return err
	}
	if len(data) == 0 {
		return &efex.Error{Op: "fes.xfer", Kind: efex.KindInvalidParam}
	}

	chunkSize := int(efex.MaxInnerPayload)
	off := 0
	first := true
	for off < len(data) {
		n := len(data) - off
		if n > chunkSize {
			n = chunkSize
		}
		last := off+n >= len(data)

		flags := dataType
		if first && startFlag {
			flags |= efex.FesDataTagStart
		}
		if last {
			flags |= efex.FesDataTagFinish
		}

		var arg [12]byte
		putU32(arg[0:4], addr)
		putU32(arg[4:8], uint32(n))
		putU32(arg[8:12], flags)

		if err := ctx.RawTransfer(cmd, arg, dir, data[off:off+n]); err != nil {
			return err
		}

		if dataType&efex.FesDataTagMask != 0 {
			addr += uint32(n)
		} else {
			addr += uint32(n / 512)
		}
		off += n
		first = false
	}
	return nil
}

func putU32(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}
