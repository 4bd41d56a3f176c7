package arch

import (
	"github.com/YuzukiTsuru/libefex/efex"
)

// RISCV32 is the generic RISC-V32 payload stub, enabling the mxstatus
// extension bit and fencing the instruction cache before dereferencing
// the argument word.
type RISCV32 struct{}

var riscv32ReadStub = []uint32{
	warpInst(0b00000000010000000000001100110111), // lui t1,0x400
	warpInst(0b01111100000000110010000001110011), // csrs mxstatus,t1
	warpInst(0b00000000000000000001000000001111), // fence.i
	warpInst(0b00000000010000000000000001101111), // j +4
	warpInst(0b00000000000000000000001010010111), // auipc t0,0x0
	warpInst(0b00000010000000101000001010010011), // addi t0,t0,32
	warpInst(0b00000000000000101010001010000011), // lw t0,0(t0)
	warpInst(0b00000000000000101010001010000011), // lw t0,0(t0)
	warpInst(0b00000000000000000000001100010111), // auipc t1,0x0
	warpInst(0b00000001010000110000001100010011), // addi t1,t1,20
	warpInst(0b00000000010100110010000000100011), // sw t0,0(t1)
	warpInst(0b00000000000000001000000001100111), // ret
}

var riscv32WriteStub = []uint32{
	warpInst(0b00000000010000000000001100110111), // lui t1,0x400
	warpInst(0b01111100000000110010000001110011), // csrs mxstatus,t1
	warpInst(0b00000000000000000001000000001111), // fence.i
	warpInst(0b00000000010000000000000001101111), // j +4
	warpInst(0b00000000000000000000001010010111), // auipc t0,0x0
	warpInst(0b00000010000000101000001010010011), // addi t0,t0,32
	warpInst(0b00000000000000101010001010000011), // lw t0,0(t0)
	warpInst(0b00000000000000000000001100010111), // auipc t1,0x0
	warpInst(0b00000001100000110000001100010011), // addi t1,t1,24
	warpInst(0b00000000000000110010001100000011), // lw t1,0(t1)
	warpInst(0b00000000011000101010000000100011), // sw t1,0(t0)
	warpInst(0b00000000000000001000000001100111), // ret
}

func (RISCV32) ReadL(ctx *efex.Context, addr uint32) (uint32, *efex.Error) {
	return execReadStub(ctx, stubBytes(riscv32ReadStub), addr)
}

func (RISCV32) WriteL(ctx *efex.Context, addr, value uint32) *efex.Error {
	return execWriteStub(ctx, stubBytes(riscv32WriteStub), addr, value)
}

// RISCV32E907 is the T-Head E907 variant. Its stubs decode to the same
// instruction sequence and offsets as RISCV32's; the literals are
// written with their bytes in memory order, so warpInst turns each one
// into the instruction word itself.
type RISCV32E907 struct{}

var riscv32E907ReadStub = []uint32{
	warpInst(0b00110111000000110100000000000000), // lui t1,0x400
	warpInst(0b01110011001000000000001101111100), // csrs mxstatus,t1
	warpInst(0b00001111000100000000000000000000), // fence.i
	warpInst(0b01101111000000000100000000000000), // jal pc+0x4
	warpInst(0b10010111000000100000000000000000), // auipc t0,0x0
	warpInst(0b10010011100000100000001000000010), // addi t0,t0,32
	warpInst(0b10000011101000100000001000000000), // lw t0,0(t0)
	warpInst(0b10000011101000100000001000000000), // lw t0,0(t0)
	warpInst(0b00010111000000110000000000000000), // auipc t1,0x0
	warpInst(0b00010011000000110100001100000001), // addi t1,t1,20
	warpInst(0b00100011001000000101001100000000), // sw t0,0(t1)
	warpInst(0b01100111100000000000000000000000), // ret
}

var riscv32E907WriteStub = []uint32{
	warpInst(0b00110111000000110100000000000000), // lui t1,0x400
	warpInst(0b01110011001000000000001101111100), // csrs mxstatus,t1
	warpInst(0b00001111000100000000000000000000), // fence.i
	warpInst(0b01101111000000000100000000000000), // jal pc+0x4
	warpInst(0b10010111000000100000000000000000), // auipc t0,0x0
	warpInst(0b10010011100000100000001000000010), // addi t0,t0,32
	warpInst(0b10000011101000100000001000000000), // lw t0,0(t0)
	warpInst(0b00010111000000110000000000000000), // auipc t1,0x0
	warpInst(0b00010011000000111000001100000001), // addi t1,t1,24
	warpInst(0b00000011001000110000001100000000), // lw t1,0(t1)
	warpInst(0b00100011101000000110001000000000), // sw t1,0(t0)
	warpInst(0b01100111100000000000000000000000), // ret
}

func (RISCV32E907) ReadL(ctx *efex.Context, addr uint32) (uint32, *efex.Error) {
	return execReadStub(ctx, stubBytes(riscv32E907ReadStub), addr)
}

func (RISCV32E907) WriteL(ctx *efex.Context, addr, value uint32) *efex.Error {
	return execWriteStub(ctx, stubBytes(riscv32E907WriteStub), addr, value)
}
