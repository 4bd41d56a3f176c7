package efex

import "sync"

// fakeBackend is an in-memory Backend used to drive FEL/FES logic in
// tests without real hardware, the way the teacher's comm.Pool is
// tested against an in-memory io.ReadWriteCloser rather than a live
// serial port.
type fakeBackend struct {
	mu sync.Mutex

	found bool // whether Scan should find a device

	// outbound records every byte slice sent via BulkSend, in order.
	outbound [][]byte

	// inboundQueue is drained in order by BulkRecv; each entry must be
	// at least as long as the read request, remaining bytes are
	// discarded (tests queue exact-sized responses).
	inboundQueue [][]byte
}

type fakeHandle struct{}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{found: true}
}

func (f *fakeBackend) queueRecv(buf []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := make([]byte, len(buf))
	copy(cp, buf)
	f.inboundQueue = append(f.inboundQueue, cp)
}

func (f *fakeBackend) sentBuffers() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]byte, len(f.outbound))
	copy(out, f.outbound)
	return out
}

func (f *fakeBackend) Scan() (BackendHandle, *Error) {
	if !f.found {
		return nil, newErr("Scan", KindUSBDeviceNotFound, nil)
	}
	return fakeHandle{}, nil
}

func (f *fakeBackend) Init(h BackendHandle) (uint8, uint8, *Error) {
	return 0x81, 0x02, nil
}

func (f *fakeBackend) Exit(h BackendHandle) *Error {
	return nil
}

func (f *fakeBackend) BulkSend(h BackendHandle, ep uint8, buf []byte) *Error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := make([]byte, len(buf))
	copy(cp, buf)
	f.outbound = append(f.outbound, cp)
	return nil
}

func (f *fakeBackend) BulkRecv(h BackendHandle, ep uint8, buf []byte) *Error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.inboundQueue) == 0 {
		return newErr("BulkRecv", KindUSBTimeout, nil)
	}
	next := f.inboundQueue[0]
	f.inboundQueue = f.inboundQueue[1:]
	n := copy(buf, next)
	if n < len(buf) {
		return newErr("BulkRecv", KindUSBTransfer, nil)
	}
	return nil
}

// newTestContext builds a Context wired directly to a fakeBackend,
// bypassing the registry/Scan/Init dance so individual tests can focus
// on the layer under test.
func newTestContext(fb *fakeBackend) *Context {
	return &Context{backend: fb, handle: fakeHandle{}, epIn: 0x81, epOut: 0x02}
}

// outerRespBytes builds a canned 13-byte outer response with the given
// status, for queuing into a fakeBackend.
func outerRespBytes(status byte) []byte {
	buf := make([]byte, outerResponseWireSize)
	copy(buf[0:4], outerRespMagic)
	buf[12] = status
	return buf
}

// innerRespBytes builds a canned 8-byte inner response with the given
// status.
func innerRespBytes(status byte) []byte {
	buf := make([]byte, innerResponseWireSize)
	buf[0] = byte(innerRespMagic)
	buf[1] = byte(innerRespMagic >> 8)
	buf[4] = status
	return buf
}
