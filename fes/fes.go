// Package fes implements the FES (secondary-stage service mode)
// command family: storage/flash queries, tagged chunked up/down
// streaming, and verification. Every operation here is gated on the
// context being in SRV mode.
package fes

import (
	"encoding/binary"
	"fmt"

	"github.com/snksoft/crc"

	"github.com/YuzukiTsuru/libefex/efex"
)

func requireSRV(ctx *efex.Context) *efex.Error {
	return ctx.RequireMode(efex.ModeSRV)
}

func recvU32(ctx *efex.Context, cmd efex.Command) (uint32, *efex.Error) {
	if err := requireSRV(ctx); err != nil {
		return 0, err
	}
	var arg [12]byte
	buf := make([]byte, 4)
	if err := ctx.RawTransfer(cmd, arg, efex.FesRecv, buf); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(buf), nil
}

// QueryStorage returns the device's reported storage-type code.
func QueryStorage(ctx *efex.Context) (uint32, *efex.Error) {
	return recvU32(ctx, efex.CmdFesQueryStorage)
}

// QuerySecure returns the device's secure-boot status word.
func QuerySecure(ctx *efex.Context) (uint32, *efex.Error) {
	return recvU32(ctx, efex.CmdFesQuerySecure)
}

// ProbeFlashSize returns the flash size in bytes.
func ProbeFlashSize(ctx *efex.Context) (uint32, *efex.Error) {
	v, err := recvU32(ctx, efex.CmdFesFlashSizeProbe)
	if err != nil {
		return 0, &efex.Error{Op: "ProbeFlashSize", Kind: efex.KindFlashSizeProbe, Err: err}
	}
	return v, nil
}

// FlashSetOnOff sends the 36-byte flash on/off struct: the storage type
// followed by 32 bytes of reserved padding. The command code depends on
// whether on is true or false.
func FlashSetOnOff(ctx *efex.Context, storageType uint32, on bool) *efex.Error {
	if err := requireSRV(ctx); err != nil {
		return err
	}
	cmd := efex.CmdFesFlashSetOff
	if on {
		cmd = efex.CmdFesFlashSetOn
	}
	var arg [12]byte
	payload := make([]byte, 36)
	binary.LittleEndian.PutUint32(payload[0:4], storageType)
	if err := ctx.RawTransfer(cmd, arg, efex.FesSend, payload); err != nil {
		return &efex.Error{Op: "FlashSetOnOff", Kind: efex.KindFlashSetOnOff, Err: err}
	}
	return nil
}

// GetChipID returns the 129-byte ASCII chip-id string reported by the
// device.
func GetChipID(ctx *efex.Context) ([]byte, *efex.Error) {
	if err := requireSRV(ctx); err != nil {
		return nil, err
	}
	var arg [12]byte
	buf := make([]byte, 129)
	if err := ctx.RawTransfer(efex.CmdFesGetChipID, arg, efex.FesRecv, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// VerifyResponse is the 12-byte response shape shared by VerifyValue,
// VerifyStatus and VerifyUbootBlk: a flag word followed by the device's
// own CRC and the media CRC it computed.
type VerifyResponse struct {
	Flag     uint32
	FesCRC   uint32
	MediaCRC uint32
}

func decodeVerifyResponse(buf []byte) VerifyResponse {
	return VerifyResponse{
		Flag:     binary.LittleEndian.Uint32(buf[0:4]),
		FesCRC:   binary.LittleEndian.Uint32(buf[4:8]),
		MediaCRC: binary.LittleEndian.Uint32(buf[8:12]),
	}
}

// verifyRoundTrip sends the 12-byte argument block inline in the FES
// header (the header's argument field is the "SEND 12-byte arg" half of
// the contract) and receives the 12-byte response as the transfer's
// payload phase.
func verifyRoundTrip(ctx *efex.Context, cmd efex.Command, a, b uint32) (VerifyResponse, *efex.Error) {
	if err := requireSRV(ctx); err != nil {
		return VerifyResponse{}, err
	}
	var arg [12]byte
	binary.LittleEndian.PutUint32(arg[0:4], a)
	binary.LittleEndian.PutUint32(arg[4:8], b)
	resp := make([]byte, 12)
	if err := ctx.RawTransfer(cmd, arg, efex.FesRecv, resp); err != nil {
		return VerifyResponse{}, err
	}
	return decodeVerifyResponse(resp), nil
}

// VerifyValue verifies a size-byte region starting at addr, returning
// the device's reported flag/CRC pair.
func VerifyValue(ctx *efex.Context, addr, size uint32) (VerifyResponse, *efex.Error) {
	return verifyRoundTrip(ctx, efex.CmdFesVerifyValue, addr, size)
}

// VerifyStatus queries verification status for tag.
func VerifyStatus(ctx *efex.Context, tag uint32) (VerifyResponse, *efex.Error) {
	return verifyRoundTrip(ctx, efex.CmdFesVerifyStatus, tag, 0)
}

// VerifyUbootBlk verifies a U-Boot block by tag. The command code
// (0x0214) is undocumented upstream; its argument/response shape is
// inferred from symmetry with VerifyStatus.
func VerifyUbootBlk(ctx *efex.Context, tag uint32) (VerifyResponse, *efex.Error) {
	return verifyRoundTrip(ctx, efex.CmdFesVerifyUbootBlk, tag, 0)
}

// CrossCheckCRC recomputes a CRC32 over data and compares it against the
// device-reported media CRC, surfacing KindCRCMismatch on a mismatch.
// This is a host-side addition: the wire protocol only reports the
// device's own CRC, so independent verification requires the host to
// hold a copy of the data transferred.
func CrossCheckCRC(data []byte, resp VerifyResponse) *efex.Error {
	table := crc.NewTable(crc.CRC32)
	crcUint := table.InitCrc()
	crcUint = table.UpdateCrc(crcUint, data)
	got := uint32(table.CRC32(crcUint))
	if got != resp.MediaCRC {
		return &efex.Error{Op: "CrossCheckCRC", Kind: efex.KindCRCMismatch,
			Err: fmt.Errorf("host crc 0x%08x != device media crc 0x%08x", got, resp.MediaCRC)}
	}
	return nil
}

// ToolMode sends a SEND-only mode-change request from current to next.
func ToolMode(ctx *efex.Context, current, next uint32) *efex.Error {
	if err := requireSRV(ctx); err != nil {
		return err
	}
	var arg [12]byte
	binary.LittleEndian.PutUint32(arg[0:4], current)
	binary.LittleEndian.PutUint32(arg[4:8], next)
	return ctx.RawTransfer(efex.CmdFesToolMode, arg, efex.FesSend, nil)
}
