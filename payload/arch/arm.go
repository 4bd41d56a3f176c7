// Package arch holds the per-architecture machine-code stubs used by
// the payload-injection RPC mechanism. Each type here implements the
// ReadL/WriteL shape package payload's Ops interface expects, without
// importing that package, so payload can import arch freely.
package arch

import (
	"encoding/binary"
	"math/bits"

	"github.com/YuzukiTsuru/libefex/efex"
	"github.com/YuzukiTsuru/libefex/fel"
)

// warpInst byte-swaps a 32-bit instruction literal written MSB-first
// (as instruction-set manuals print it) into the little-endian word
// that must actually land in device memory.
func warpInst(x uint32) uint32 { return bits.ReverseBytes32(x) }

// ARM32 is the ARMv7 payload stub: a short MCR barrier sequence
// followed by a pc-relative load/store pair that dereferences the
// argument word and writes the result to a slot immediately after it.
type ARM32 struct{}

var arm32ReadStub = []uint32{
	warpInst(0b11100011101000000000000000000000), // mov r0, #0
	warpInst(0b11101110000010000000111100010111), // mcr 15, 0, r0, cr8, cr7, {0}
	warpInst(0b11101110000001110000111100010101), // mcr 15, 0, r0, cr7, cr5, {0}
	warpInst(0b11101110000001110000111111010101), // mcr 15, 0, r0, cr7, cr5, {6}
	warpInst(0b11101110000001110000111110011010), // mcr 15, 0, r0, cr7, cr10, {4}
	warpInst(0b11101110000001110000111110010101), // mcr 15, 0, r0, cr7, cr5, {4}
	warpInst(0b11101010111111111111111111111111), // b 0x4
	warpInst(0b11100101100111110000000000001100), // ldr r0, [pc, #12]
	warpInst(0b11100010100011110001000000001100), // add r1, pc, #12
	warpInst(0b11100101100100000010000000000000), // ldr r2, [r0]
	warpInst(0b11100101100000010010000000000000), // str r2, [r1]
	warpInst(0b11100001001011111111111100011110), // bx lr
}

var arm32WriteStub = []uint32{
	warpInst(0b11100011101000000000000000000000), // mov r0, #0
	warpInst(0b11101110000010000000111100010111), // mcr 15, 0, r0, cr8, cr7, {0}
	warpInst(0b11101110000001110000111100010101), // mcr 15, 0, r0, cr7, cr5, {0}
	warpInst(0b11101110000001110000111111010101), // mcr 15, 0, r0, cr7, cr5, {6}
	warpInst(0b11101110000001110000111110011010), // mcr 15, 0, r0, cr7, cr10, {4}
	warpInst(0b11101110000001110000111110010101), // mcr 15, 0, r0, cr7, cr5, {4}
	warpInst(0b11101010111111111111111111111111), // b 0x4
	warpInst(0b11100101100111110000000000001000), // ldr r0, [pc, #8]
	warpInst(0b11100101100111110001000000001000), // ldr r1, [pc, #8]
	warpInst(0b11100101100000000001000000000000), // str r1, [r0]
	warpInst(0b11100001001011111111111100011110), // bx lr
}

func stubBytes(stub []uint32) []byte {
	buf := make([]byte, len(stub)*4)
	for i, w := range stub {
		binary.LittleEndian.PutUint32(buf[i*4:i*4+4], w)
	}
	return buf
}

func (ARM32) ReadL(ctx *efex.Context, addr uint32) (uint32, *efex.Error) {
	return execReadStub(ctx, stubBytes(arm32ReadStub), addr)
}

func (ARM32) WriteL(ctx *efex.Context, addr, value uint32) *efex.Error {
	return execWriteStub(ctx, stubBytes(arm32WriteStub), addr, value)
}

// execReadStub is the shared upload/exec/readback sequence every
// architecture's ReadL performs: write the stub, write the argument
// word right after it, exec, then read the result slot that follows.
func execReadStub(ctx *efex.Context, stub []byte, addr uint32) (uint32, *efex.Error) {
	base := ctx.Resp.DataStartAddress
	if err := fel.Write(ctx, base, stub); err != nil {
		return 0, err
	}
	argBuf := make([]byte, 4)
	binary.LittleEndian.PutUint32(argBuf, addr)
	argAddr := base + uint32(len(stub))
	if err := fel.Write(ctx, argAddr, argBuf); err != nil {
		return 0, err
	}
	if err := fel.Exec(ctx, base); err != nil {
		return 0, err
	}
	resultAddr := argAddr + 4
	result := make([]byte, 4)
	if err := fel.Read(ctx, resultAddr, result); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(result), nil
}

// execWriteStub is the shared upload/exec sequence every architecture's
// WriteL performs: write the stub, write [addr, value] right after it,
// exec. No result slot is read back.
func execWriteStub(ctx *efex.Context, stub []byte, addr, value uint32) *efex.Error {
	base := ctx.Resp.DataStartAddress
	if err := fel.Write(ctx, base, stub); err != nil {
		return err
	}
	argBuf := make([]byte, 8)
	binary.LittleEndian.PutUint32(argBuf[0:4], addr)
	binary.LittleEndian.PutUint32(argBuf[4:8], value)
	if err := fel.Write(ctx, base+uint32(len(stub)), argBuf); err != nil {
		return err
	}
	return fel.Exec(ctx, base)
}
