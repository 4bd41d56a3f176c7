package fes

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/YuzukiTsuru/libefex/efex"
)

type fakeBackend struct {
	outbound [][]byte
	inbound  [][]byte
}

func (f *fakeBackend) queue(buf []byte) { f.inbound = append(f.inbound, append([]byte(nil), buf...)) }

func (f *fakeBackend) Scan() (efex.BackendHandle, *efex.Error) { return struct{}{}, nil }
func (f *fakeBackend) Init(h efex.BackendHandle) (uint8, uint8, *efex.Error) {
	return 0x81, 0x02, nil
}
func (f *fakeBackend) Exit(h efex.BackendHandle) *efex.Error { return nil }

func (f *fakeBackend) BulkSend(h efex.BackendHandle, ep uint8, buf []byte) *efex.Error {
	f.outbound = append(f.outbound, append([]byte(nil), buf...))
	return nil
}

func (f *fakeBackend) BulkRecv(h efex.BackendHandle, ep uint8, buf []byte) *efex.Error {
	if len(f.inbound) == 0 {
		return &efex.Error{Op: "BulkRecv", Kind: efex.KindUSBTimeout}
	}
	next := f.inbound[0]
	f.inbound = f.inbound[1:]
	copy(buf, next)
	return nil
}

func outerOK() []byte {
	buf := make([]byte, 13)
	copy(buf[0:4], "AWUS")
	return buf
}

func newReadyContext(t *testing.T, fb *fakeBackend) *efex.Context {
	t.Helper()
	ctx := efex.NewContextWithBackend(fb)
	require.Nil(t, ctx.Scan())
	require.Nil(t, ctx.Init())
	ctx.Resp.Mode = efex.ModeSRV
	return ctx
}

func TestQueryStorageRejectsWrongMode(t *testing.T) {
	fb := &fakeBackend{}
	ctx := efex.NewContextWithBackend(fb)
	require.Nil(t, ctx.Scan())
	require.Nil(t, ctx.Init())
	ctx.Resp.Mode = efex.ModeFEL

	_, err := QueryStorage(ctx)
	require.NotNil(t, err)
	require.Equal(t, efex.KindInvalidDeviceMode, err.Kind)
	require.Empty(t, fb.outbound)
}

func TestQueryStorageReturnsDeviceValue(t *testing.T) {
	fb := &fakeBackend{}
	fb.queue([]byte{0x02, 0x00, 0x00, 0x00})
	fb.queue(outerOK())
	ctx := newReadyContext(t, fb)

	v, err := QueryStorage(ctx)
	require.Nil(t, err)
	require.Equal(t, uint32(2), v)
}

func TestProbeFlashSizeReturnsNonzero(t *testing.T) {
	fb := &fakeBackend{}
	fb.queue([]byte{0x00, 0x00, 0x80, 0x00}) // 0x00800000 bytes
	fb.queue(outerOK())
	ctx := newReadyContext(t, fb)

	v, err := ProbeFlashSize(ctx)
	require.Nil(t, err)
	require.NotZero(t, v)
}

func TestDownNeverEmitsZeroLengthChunkAndSetsFinishOnce(t *testing.T) {
	fb := &fakeBackend{}
	data := make([]byte, 200)
	for i := range data {
		data[i] = byte(i)
	}
	fb.queue(outerOK())
	ctx := newReadyContext(t, fb)

	require.Nil(t, Down(ctx, 0x40000000, efex.FesDataFS, true, data))

	require.Len(t, fb.outbound, 2) // header, then payload
	header := fb.outbound[0]
	require.Equal(t, 20, len(header))
	flags := uint32(header[12]) | uint32(header[13])<<8 | uint32(header[14])<<16 | uint32(header[15])<<24
	require.NotZero(t, flags&efex.FesDataTagFinish)
	require.NotZero(t, flags&efex.FesDataTagStart)
	require.Equal(t, data, fb.outbound[1])
}

func TestVerifyValueDecodesResponse(t *testing.T) {
	fb := &fakeBackend{}
	resp := make([]byte, 12)
	resp[0] = 1          // flag
	resp[4] = 0xEF       // fes_crc low byte
	resp[8] = 0xAD       // media_crc low byte
	fb.queue(resp)
	fb.queue(outerOK())
	ctx := newReadyContext(t, fb)

	v, err := VerifyValue(ctx, 0x40000000, 1024)
	require.Nil(t, err)
	require.Equal(t, uint32(1), v.Flag)
	require.Equal(t, uint32(0xEF), v.FesCRC)
	require.Equal(t, uint32(0xAD), v.MediaCRC)
}
