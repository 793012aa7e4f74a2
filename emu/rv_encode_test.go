package emu_test

// Minimal RV64IM instruction encoders for test fixtures. Mirrors the bit
// layouts insts.Decoder expects; kept local to the test package since the
// simulator itself never needs to assemble instructions.

const (
	opLoad   = 0b0000011
	opOpImm  = 0b0010011
	opAUIPC  = 0b0010111
	opOpImm32 = 0b0011011
	opStore  = 0b0100011
	opOp     = 0b0110011
	opLUI    = 0b0110111
	opOp32   = 0b0111011
	opBranch = 0b1100011
	opJALR   = 0b1100111
	opJAL    = 0b1101111
	opSystem = 0b1110011
)

func encR(opcode, rd, funct3, rs1, rs2, funct7 uint32) uint32 {
	return funct7<<25 | rs2<<20 | rs1<<15 | funct3<<12 | rd<<7 | opcode
}

func encI(opcode, rd, funct3, rs1 uint32, imm int32) uint32 {
	return (uint32(imm)&0xFFF)<<20 | rs1<<15 | funct3<<12 | rd<<7 | opcode
}

func encShiftImm(opcode, rd, funct3, rs1, shamt, funct6or7 uint32) uint32 {
	return funct6or7<<26 | shamt<<20 | rs1<<15 | funct3<<12 | rd<<7 | opcode
}

func encU(opcode, rd, imm20 uint32) uint32 {
	return (imm20 & 0xFFFFF) << 12 | rd<<7 | opcode
}

func encB(opcode, funct3, rs1, rs2 uint32, imm int32) uint32 {
	u := uint32(imm)
	b12 := (u >> 12) & 1
	b11 := (u >> 11) & 1
	b10_5 := (u >> 5) & 0x3f
	b4_1 := (u >> 1) & 0xf
	return b12<<31 | b10_5<<25 | rs2<<20 | rs1<<15 | funct3<<12 | b4_1<<8 | b11<<7 | opcode
}

func encJ(opcode, rd uint32, imm int32) uint32 {
	u := uint32(imm)
	b20 := (u >> 20) & 1
	b19_12 := (u >> 12) & 0xff
	b11 := (u >> 11) & 1
	b10_1 := (u >> 1) & 0x3ff
	return b20<<31 | b10_1<<21 | b11<<20 | b19_12<<12 | rd<<7 | opcode
}

func encS(opcode, funct3, rs1, rs2 uint32, imm int32) uint32 {
	u := uint32(imm)
	imm11_5 := (u >> 5) & 0x7f
	imm4_0 := u & 0x1f
	return imm11_5<<25 | rs2<<20 | rs1<<15 | funct3<<12 | imm4_0<<7 | opcode
}

func addi(rd, rs1 uint32, imm int32) uint32 { return encI(opOpImm, rd, 0b000, rs1, imm) }
func addw(rd, rs1, rs2 uint32) uint32       { return encR(opOp32, rd, 0b000, rs1, rs2, 0) }
func add(rd, rs1, rs2 uint32) uint32        { return encR(opOp, rd, 0b000, rs1, rs2, 0) }
func div(rd, rs1, rs2 uint32) uint32        { return encR(opOp, rd, 0b100, rs1, rs2, 0b0000001) }
func rem(rd, rs1, rs2 uint32) uint32        { return encR(opOp, rd, 0b110, rs1, rs2, 0b0000001) }
func lui(rd, imm20 uint32) uint32           { return encU(opLUI, rd, imm20) }
func srli(rd, rs1, shamt uint32) uint32     { return encShiftImm(opOpImm, rd, 0b101, rs1, shamt, 0) }
func beq(rs1, rs2 uint32, imm int32) uint32 { return encB(opBranch, 0b000, rs1, rs2, imm) }
func ebreak() uint32                        { return encI(opSystem, 0, 0b000, 0, 1) }
