//go:build !windows

// Package usbnative implements efex.Backend directly on the Windows
// WinUSB driver. On non-Windows platforms it registers a stub backend
// so BackendPlatformNative always resolves to something, even though
// efex.SetBackendType already rejects selecting it off Windows.
package usbnative

import "github.com/YuzukiTsuru/libefex/efex"

func init() {
	efex.RegisterBackend(efex.BackendPlatformNative, func() efex.Backend {
		return &backend{}
	})
}

type backend struct{}

func (b *backend) Scan() (efex.BackendHandle, *efex.Error) {
	return nil, &efex.Error{Op: "Scan", Kind: efex.KindNotSupport}
}

func (b *backend) Init(h efex.BackendHandle) (uint8, uint8, *efex.Error) {
	return 0, 0, &efex.Error{Op: "Init", Kind: efex.KindNotSupport}
}

func (b *backend) Exit(h efex.BackendHandle) *efex.Error {
	return &efex.Error{Op: "Exit", Kind: efex.KindNotSupport}
}

func (b *backend) BulkSend(h efex.BackendHandle, ep uint8, buf []byte) *efex.Error {
	return &efex.Error{Op: "BulkSend", Kind: efex.KindNotSupport}
}

func (b *backend) BulkRecv(h efex.BackendHandle, ep uint8, buf []byte) *efex.Error {
	return &efex.Error{Op: "BulkRecv", Kind: efex.KindNotSupport}
}
