// Package payload implements the CPU-architecture payload injection
// mechanism: uploading a short machine-code stub to device scratch
// RAM, executing it via FEL_EXEC, and reading back a result slot to
// implement a 32-bit register read/write RPC on SoCs whose ROM exposes
// no such primitive directly.
package payload

import (
	"github.com/YuzukiTsuru/libefex/efex"
	"github.com/YuzukiTsuru/libefex/payload/arch"
)

// Arch is the closed set of target architectures a payload stub can be
// built for.
type Arch int

const (
	ArchARM32 Arch = iota
	ArchAArch64
	ArchRISCV
	ArchRISCV32E907
)

func (a Arch) String() string {
	switch a {
	case ArchARM32:
		return "arm32"
	case ArchAArch64:
		return "aarch64"
	case ArchRISCV:
		return "riscv"
	case ArchRISCV32E907:
		return "riscv32_e907"
	default:
		return "unknown"
	}
}

// Ops is the capability set a per-architecture payload implementation
// provides: register read and write over the FEL-exec RPC mechanism.
// Types in package arch satisfy this structurally, without importing
// it, to avoid an import cycle.
type Ops interface {
	ReadL(ctx *efex.Context, addr uint32) (uint32, *efex.Error)
	WriteL(ctx *efex.Context, addr, value uint32) *efex.Error
}

var registry = map[Arch]Ops{
	ArchARM32:       arch.ARM32{},
	ArchAArch64:     arch.AArch64{},
	ArchRISCV:       arch.RISCV32{},
	ArchRISCV32E907: arch.RISCV32E907{},
}

// current is the process-wide selected payload, set once by Init and
// treated as read-only afterward (§5 concurrency/resource model).
var current Ops

// Init selects the process-wide current payload implementation for a.
func Init(a Arch) *efex.Error {
	ops, ok := registry[a]
	if !ok {
		return &efex.Error{Op: "payload.Init", Kind: efex.KindInvalidParam}
	}
	current = ops
	return nil
}

// ReadL performs a payload-injected 32-bit register read at addr: it
// fails with KindInvalidDeviceMode if ctx is not in FEL mode, and
// KindNotSupport if no payload has been selected via Init.
func ReadL(ctx *efex.Context, addr uint32) (uint32, *efex.Error) {
	if err := ctx.RequireMode(efex.ModeFEL); err != nil {
		return 0, err
	}
	if current == nil {
		return 0, &efex.Error{Op: "payload.ReadL", Kind: efex.KindNotSupport}
	}
	return current.ReadL(ctx, addr)
}

// WriteL performs a payload-injected 32-bit register write of value at
// addr, under the same gating as ReadL.
func WriteL(ctx *efex.Context, addr, value uint32) *efex.Error {
	if err := ctx.RequireMode(efex.ModeFEL); err != nil {
		return err
	}
	if current == nil {
		return &efex.Error{Op: "payload.WriteL", Kind: efex.KindNotSupport}
	}
	return current.WriteL(ctx, addr, value)
}
