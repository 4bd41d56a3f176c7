package arch

import "github.com/YuzukiTsuru/libefex/efex"

// AArch64 has no machine-code stub yet; the enum tag is registered so
// -p aarch64 resolves to a concrete arch rather than an unknown-flag
// error, but every call fails with KindNotSupport until a real stub is
// supplied.
type AArch64 struct{}

func (AArch64) ReadL(ctx *efex.Context, addr uint32) (uint32, *efex.Error) {
	return 0, &efex.Error{Op: "AArch64.ReadL", Kind: efex.KindNotSupport}
}

func (AArch64) WriteL(ctx *efex.Context, addr, value uint32) *efex.Error {
	return &efex.Error{Op: "AArch64.WriteL", Kind: efex.KindNotSupport}
}
