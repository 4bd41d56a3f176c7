package fel

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/YuzukiTsuru/libefex/efex"
)

// fakeBackend is a minimal in-memory efex.Backend, scripted per test by
// queuing outer-response bytes to drain on each BulkRecv call.
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

func innerOK() []byte {
	buf := make([]byte, 8)
	buf[0] = 0x00
	buf[1] = 0x01
	return buf
}

func newReadyContext(t *testing.T, fb *fakeBackend) *efex.Context {
	t.Helper()
	ctx := efex.NewContextWithBackend(fb)
	require.Nil(t, ctx.Scan())
	require.Nil(t, ctx.Init())
	ctx.Resp.Mode = efex.ModeFEL
	return ctx
}

func TestExecRejectsWrongMode(t *testing.T) {
	fb := &fakeBackend{}
	ctx := efex.NewContextWithBackend(fb)
	require.Nil(t, ctx.Scan())
	require.Nil(t, ctx.Init())
	ctx.Resp.Mode = efex.ModeSRV

	err := Exec(ctx, 0x40000000)
	require.NotNil(t, err)
	require.Equal(t, efex.KindInvalidDeviceMode, err.Kind)
	require.Empty(t, fb.outbound)
}

func TestExecSendsFelExecAndReadsStatus(t *testing.T) {
	fb := &fakeBackend{}
	fb.queue(outerOK()) // ack for SendRequest's Write
	fb.queue(innerOK()) // inner response payload
	fb.queue(outerOK()) // ack for ReadStatus's Read
	ctx := newReadyContext(t, fb)

	require.Nil(t, Exec(ctx, 0x40000000))
}

func TestWriteThenReadRoundTrip(t *testing.T) {
	fb := &fakeBackend{}
	payload := make([]byte, 131073)
	for i := range payload {
		payload[i] = byte(i % 256)
	}

	// Write: one outer ack per SendRequest + one outer ack per data
	// Write + one inner/outer pair per ReadStatus, repeated per chunk.
	chunks := (len(payload) + efex.FELChunkSize - 1) / efex.FELChunkSize
	for i := 0; i < chunks; i++ {
		fb.queue(outerOK()) // SendRequest ack
		fb.queue(outerOK()) // data Write ack
		fb.queue(innerOK()) // ReadStatus payload
		fb.queue(outerOK()) // ReadStatus ack
	}
	ctx := newReadyContext(t, fb)
	require.Nil(t, Write(ctx, 0x41000000, payload))

	fb2 := &fakeBackend{}
	for i := 0; i < chunks; i++ {
		fb2.queue(outerOK()) // SendRequest ack

		n := len(payload) - i*efex.FELChunkSize
		if n > efex.FELChunkSize {
			n = efex.FELChunkSize
		}
		fb2.queue(payload[i*efex.FELChunkSize : i*efex.FELChunkSize+n])
		fb2.queue(outerOK()) // data Read ack
		fb2.queue(innerOK()) // ReadStatus payload
		fb2.queue(outerOK()) // ReadStatus ack
	}
	ctx2 := newReadyContext(t, fb2)
	out := make([]byte, len(payload))
	require.Nil(t, Read(ctx2, 0x41000000, out))
	require.Equal(t, payload, out)
}

func TestZeroLengthRejected(t *testing.T) {
	fb := &fakeBackend{}
	ctx := newReadyContext(t, fb)

	err := Write(ctx, 0x40000000, nil)
	require.NotNil(t, err)
	require.Equal(t, efex.KindInvalidParam, err.Kind)

	err = Read(ctx, 0x40000000, nil)
	require.NotNil(t, err)
	require.Equal(t, efex.KindInvalidParam, err.Kind)
}

func TestReadLWriteLRoundTrip(t *testing.T) {
	fb := &fakeBackend{}
	fb.queue(outerOK())
	fb.queue(outerOK())
	fb.queue(innerOK())
	fb.queue(outerOK())
	ctx := newReadyContext(t, fb)
	require.Nil(t, WriteL(ctx, 0x40000000, 0x55AA55AA))

	fb2 := &fakeBackend{}
	fb2.queue(outerOK())
	word := []byte{0xAA, 0x55, 0xAA, 0x55}
	fb2.queue(word)
	fb2.queue(outerOK())
	fb2.queue(innerOK())
	fb2.queue(outerOK())
	ctx2 := newReadyContext(t, fb2)
	v, err := ReadL(ctx2, 0x40000000)
	require.Nil(t, err)
	require.Equal(t, uint32(0x55AA55AA), v)
}
