// Package efex implements the host side of the Allwinner EFEX bring-up
// protocol: the outer USB request/response envelope, the inner EFEX
// command block, the session context, and the pluggable USB backend
// contract that the fel, fes and payload packages build on.
package efex

import (
	"encoding/binary"
	"time"
)

// USB device identity claimed by scan().
const (
	VendorID  = 0x1F3A
	ProductID = 0xEFE8
)

// Outer envelope magic strings.
const (
	outerReqMagic  = "AWUC"
	outerRespMagic = "AWUS"
)

// Outer direction codes, embedded as the first byte of cmd_package.
const (
	dirRead  = 0x11
	dirWrite = 0x12
)

// cmdLength is the fixed size of the inner EFEX command, always present
// in the outer envelope's cmd_length field.
const cmdLength = 12

// Command is an EFEX/FEL/FES command code (u16, wire bit-exact).
type Command uint16

const (
	CmdVerifyDevice Command = 0x0001
	CmdSwitchRole   Command = 0x0002
	CmdIsReady      Command = 0x0003
	CmdGetCmdSetVer Command = 0x0004
	CmdDisconnect   Command = 0x0010

	CmdFelWrite Command = 0x0101
	CmdFelExec  Command = 0x0102
	CmdFelRead  Command = 0x0103

	CmdFesTrans          Command = 0x0201
	CmdFesRun            Command = 0x0202
	CmdFesInfo           Command = 0x0203
	CmdFesGetMsg         Command = 0x0204
	CmdFesUnregFed       Command = 0x0205
	CmdFesDown           Command = 0x0206
	CmdFesUp             Command = 0x0207
	CmdFesVerify         Command = 0x0208
	CmdFesQueryStorage   Command = 0x0209
	CmdFesFlashSetOn     Command = 0x020A
	CmdFesFlashSetOff    Command = 0x020B
	CmdFesVerifyValue    Command = 0x020C
	CmdFesVerifyStatus   Command = 0x020D
	CmdFesFlashSizeProbe Command = 0x020E
	CmdFesToolMode       Command = 0x020F
	CmdFesVerifyUbootBlk Command = 0x0214
	CmdFesForceEraseFlash Command = 0x0220
	CmdFesForceEraseKey   Command = 0x0221
	CmdFesQuerySecure    Command = 0x0230
	CmdFesQueryInfo      Command = 0x0231
	CmdFesGetChipID      Command = 0x0232
)

// DeviceMode is the closed enumeration of device states reported in the
// device-response record's mode field.
type DeviceMode uint16

const (
	ModeNull       DeviceMode = 0
	ModeFEL        DeviceMode = 1
	ModeSRV        DeviceMode = 2
	ModeUpdateCool DeviceMode = 3
	ModeUpdateHot  DeviceMode = 4
)

func (m DeviceMode) String() string {
	switch m {
	case ModeNull:
		return "NULL"
	case ModeFEL:
		return "FEL"
	case ModeSRV:
		return "SRV"
	case ModeUpdateCool:
		return "UPDATE_COOL"
	case ModeUpdateHot:
		return "UPDATE_HOT"
	default:
		return "UNKNOWN"
	}
}

// Chunking constants, per the protocol framing rules. MaxInnerPayload is
// a variable rather than a constant: some firmware revisions cap the
// inner EFEX payload at 32KiB rather than 64KiB (open question, see
// DESIGN.md), so callers may override it for those targets.
const (
	TransportChunkSize = 128 * 1024
	FELChunkSize       = 64 * 1024
)

var MaxInnerPayload uint32 = 64 * 1024

// BulkTimeout is the default per-transfer timeout (spec.md §4.1). The
// usbgousb backend applies it to every bulk call; the WinUSB backend in
// usbnative does not set a pipe timeout. Exposed as a variable so
// cmd/efex can apply a configured override before Scan is called.
var BulkTimeout = 10 * time.Second

// DeviceResponse is the fixed 32-byte block returned by VERIFY_DEVICE,
// decoded to host byte order.
type DeviceResponse struct {
	Magic             [8]byte
	ID                uint32
	Firmware          uint32
	Mode              DeviceMode
	DataFlag          uint8
	DataLength        uint8
	DataStartAddress  uint32
	Reserved          [8]byte
}

const deviceResponseWireSize = 32

func decodeDeviceResponse(buf []byte) (DeviceResponse, *Error) {
	if len(buf) < deviceResponseWireSize {
		return DeviceResponse{}, newErr("decodeDeviceResponse", KindInvalidResponse, nil)
	}
	var r DeviceResponse
	copy(r.Magic[:], buf[0:8])
	r.ID = binary.LittleEndian.Uint32(buf[8:12])
	r.Firmware = binary.LittleEndian.Uint32(buf[12:16])
	r.Mode = DeviceMode(binary.LittleEndian.Uint16(buf[16:18]))
	r.DataFlag = buf[18]
	r.DataLength = buf[19]
	r.DataStartAddress = binary.LittleEndian.Uint32(buf[20:24])
	copy(r.Reserved[:], buf[24:32])
	return r, nil
}

// outerRequest is the 31-byte packed outer USB request envelope.
type outerRequest struct {
	tag        uint32
	dataLength uint32
	direction  byte
}

func (r outerRequest) encode() []byte {
	buf := make([]byte, 31)
	copy(buf[0:4], outerReqMagic)
	binary.LittleEndian.PutUint32(buf[4:8], r.tag)
	binary.LittleEndian.PutUint32(buf[8:12], r.dataLength)
	// buf[12:14] reserved1, buf[14] reserved2 stay zero.
	buf[15] = cmdLength
	buf[16] = r.direction
	// buf[17:31] rest of cmd_package stays zero.
	return buf
}

// outerResponse is the 13-byte packed outer USB response envelope.
type outerResponse struct {
	tag     uint32
	residue uint32
	status  byte
}

const outerResponseWireSize = 13

func decodeOuterResponse(buf []byte) (outerResponse, *Error) {
	if len(buf) < outerResponseWireSize {
		return outerResponse{}, newErr("decodeOuterResponse", KindInvalidResponse, nil)
	}
	if string(buf[0:4]) != outerRespMagic {
		return outerResponse{}, newErr("decodeOuterResponse", KindInvalidResponse, nil)
	}
	return outerResponse{
		tag:     binary.LittleEndian.Uint32(buf[4:8]),
		residue: binary.LittleEndian.Uint32(buf[8:12]),
		status:  buf[12],
	}, nil
}

// innerRequest is the 16-byte packed inner EFEX command.
type innerRequest struct {
	cmd     Command
	tag     uint16
	address uint32
	length  uint32
	flags   uint32
}

func (r innerRequest) encode() []byte {
	buf := make([]byte, 16)
	binary.LittleEndian.PutUint16(buf[0:2], uint16(r.cmd))
	binary.LittleEndian.PutUint16(buf[2:4], r.tag)
	binary.LittleEndian.PutUint32(buf[4:8], r.address)
	binary.LittleEndian.PutUint32(buf[8:12], r.length)
	binary.LittleEndian.PutUint32(buf[12:16], r.flags)
	return buf
}

// innerResponse is the 8-byte packed inner EFEX response.
type innerResponse struct {
	magic  uint16
	tag    uint16
	status uint8
}

const innerResponseWireSize = 8

// innerRespMagic is the canonical magic value observed on the inner
// response. decodeInnerResponse decodes the magic but does not reject a
// value that differs from it (open question, see DESIGN.md).
const innerRespMagic = 0x0100

func decodeInnerResponse(buf []byte) (innerResponse, *Error) {
	if len(buf) < innerResponseWireSize {
		return innerResponse{}, newErr("decodeInnerResponse", KindInvalidResponse, nil)
	}
	return innerResponse{
		magic:  binary.LittleEndian.Uint16(buf[0:2]),
		tag:    binary.LittleEndian.Uint16(buf[2:4]),
		status: buf[4],
	}, nil
}

// fesHeader is the 20-byte packed FES transfer header: cmd, tag, a
// 12-byte command-specific argument block, and an "AWUC" trailer.
type fesHeader struct {
	cmd Command
	tag uint16
	arg [12]byte
}

const fesHeaderWireSize = 20

func (h fesHeader) encode() []byte {
	buf := make([]byte, fesHeaderWireSize)
	binary.LittleEndian.PutUint16(buf[0:2], uint16(h.cmd))
	binary.LittleEndian.PutUint16(buf[2:4], h.tag)
	copy(buf[4:16], h.arg[:])
	copy(buf[16:20], outerReqMagic)
	return buf
}

// FES data-type tag bits (§ low 16 bits classify payload kind; high bits
// mark transfer phase).
const (
	FesDataTagFinish uint32 = 0x10000
	FesDataTagStart  uint32 = 0x20000
	FesDataTagMask   uint32 = 0x7FFF
)

const (
	FesDataDRAM      uint32 = 0x0001
	FesDataMBR       uint32 = 0x0002
	FesDataBoot0     uint32 = 0x0003
	FesDataBoot1     uint32 = 0x0004
	FesDataErase     uint32 = 0x0005
	FesDataFullImgSize uint32 = 0x0006
	FesDataFS        uint32 = 0x0007
	FesDataFlash     uint32 = 0x0008
)

func putU32LE(b []byte, v uint32) { binary.LittleEndian.PutUint32(b, v) }
func u32LE(b []byte) uint32       { return binary.LittleEndian.Uint32(b) }
