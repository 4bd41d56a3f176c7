package efex

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWriteFramesOuterEnvelope(t *testing.T) {
	fb := newFakeBackend()
	fb.queueRecv(outerRespBytes(0))
	ctx := newTestContext(fb)

	require.Nil(t, ctx.Write([]byte{1, 2, 3, 4}))

	sent := fb.sentBuffers()
	require.Len(t, sent, 2)
	require.Equal(t, outerReqMagic, string(sent[0][0:4]))
	require.Equal(t, byte(cmdLength), sent[0][15])
	require.Equal(t, byte(dirWrite), sent[0][16])
	require.Equal(t, []byte{1, 2, 3, 4}, sent[1])
}

func TestReadValidatesOuterResponseMagic(t *testing.T) {
	fb := newFakeBackend()
	bad := outerRespBytes(0)
	copy(bad[0:4], "XXXX")
	fb.queueRecv(make([]byte, 4)) // data phase
	fb.queueRecv(bad)
	ctx := newTestContext(fb)

	err := ctx.Read(make([]byte, 4))
	require.NotNil(t, err)
	require.Equal(t, KindInvalidResponse, err.Kind)
}

func TestReadSurfacesNonzeroStatusAsProtocolError(t *testing.T) {
	fb := newFakeBackend()
	fb.queueRecv(outerRespBytes(0x01))
	ctx := newTestContext(fb)

	err := ctx.Read(make([]byte, 0))
	require.NotNil(t, err)
	require.Equal(t, KindProtocol, err.Kind)
}

func TestSendRequestThenReadStatusRoundTrip(t *testing.T) {
	fb := newFakeBackend()
	fb.queueRecv(outerRespBytes(0))  // response to SendRequest's Write
	fb.queueRecv(innerRespBytes(0))  // inner response payload
	fb.queueRecv(outerRespBytes(0))  // response to ReadStatus's Read
	ctx := newTestContext(fb)

	require.Nil(t, ctx.SendRequest(CmdFelExec, 0x40000000, 0))
	require.Nil(t, ctx.ReadStatus())
}

func TestEFEXInitPopulatesDeviceResponse(t *testing.T) {
	fb := newFakeBackend()
	fb.queueRecv(outerRespBytes(0)) // VERIFY_DEVICE request ack

	resp := make([]byte, deviceResponseWireSize)
	copy(resp[0:8], "AWUSBFEX")
	putU32LE(resp[8:12], 0x00185900)
	putU32LE(resp[12:16], 0x00000001)
	resp[16] = byte(ModeFEL)
	putU32LE(resp[20:24], 0x40000000)
	fb.queueRecv(resp)
	fb.queueRecv(outerRespBytes(0)) // ack for the resp read
	fb.queueRecv(innerRespBytes(0)) // ReadStatus payload
	fb.queueRecv(outerRespBytes(0)) // ack for ReadStatus's read

	ctx := newTestContext(fb)
	require.Nil(t, ctx.EFEXInit())
	require.Equal(t, ModeFEL, ctx.Mode())
	require.Equal(t, uint32(0x40000000), ctx.Resp.DataStartAddress)
	require.Equal(t, uint32(0x00185900), ctx.Resp.ID)
}

func TestRequireModeRejectsWrongMode(t *testing.T) {
	ctx := &Context{}
	ctx.Resp.Mode = ModeSRV
	err := ctx.RequireMode(ModeFEL)
	require.NotNil(t, err)
	require.Equal(t, KindInvalidDeviceMode, err.Kind)
}

func TestScanRetriesThenFailsWithDeviceNotFound(t *testing.T) {
	fb := newFakeBackend()
	fb.found = false
	ctx := &Context{backend: fb}

	err := ctx.Scan()
	require.NotNil(t, err)
	require.Equal(t, KindUSBDeviceNotFound, err.Kind)
}

func TestRawTransferSkipsInnerFraming(t *testing.T) {
	fb := newFakeBackend()
	ctx := newTestContext(fb)

	var arg [12]byte
	buf := make([]byte, 4)
	fb.queueRecv([]byte{0xAA, 0xBB, 0xCC, 0xDD})
	fb.queueRecv(outerRespBytes(0))
	require.Nil(t, ctx.RawTransfer(CmdFesQueryStorage, arg, FesRecv, buf))
	require.Equal(t, []byte{0xAA, 0xBB, 0xCC, 0xDD}, buf)

	sent := fb.sentBuffers()
	require.Len(t, sent, 1)
	require.Equal(t, fesHeaderWireSize, len(sent[0]))
	require.Equal(t, outerReqMagic, string(sent[0][16:20]))
}
