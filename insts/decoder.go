package insts

import "fmt"

// DecodeError reports a 32-bit word that matched no recognized RV64IM
// opcode/funct3/funct7 pattern.
type DecodeError struct {
	Opcode uint32
	Funct3 uint32
	Funct7 uint32
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode: unrecognized instruction (opcode=0x%02x funct3=0x%x funct7=0x%x)",
		e.Opcode, e.Funct3, e.Funct7)
}

// RISC-V base opcodes (bits [6:0]).
const (
	opcLoad    = 0b0000011
	opcLoadFP  = 0b0000111
	opcMiscMem = 0b0001111
	opcOpImm   = 0b0010011
	opcAUIPC   = 0b0010111
	opcOpImm32 = 0b0011011
	opcStore   = 0b0100011
	opcStoreFP = 0b0100111
	opcAMO     = 0b0101111
	opcOp      = 0b0110011
	opcLUI     = 0b0110111
	opcOp32    = 0b0111011
	opcMADD    = 0b1000011
	opcMSUB    = 0b1000111
	opcNMSUB   = 0b1001011
	opcNMADD   = 0b1001111
	opcOpFP    = 0b1010011
	opcBranch  = 0b1100011
	opcJALR    = 0b1100111
	opcJAL     = 0b1101111
	opcSystem  = 0b1110011
)

// Decoder decodes RV64IM instruction words. It carries no mutable state.
type Decoder struct{}

// NewDecoder creates a new RV64IM decoder.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Decode decodes a 32-bit instruction word. It returns a DecodeError if the
// word matches no recognized RV64IM encoding.
func (d *Decoder) Decode(word uint32) (*Instruction, error) {
	opcode := word & 0x7f
	rd := uint8((word >> 7) & 0x1f)
	funct3 := (word >> 12) & 0x7
	rs1 := uint8((word >> 15) & 0x1f)
	rs2 := uint8((word >> 20) & 0x1f)
	funct7 := (word >> 25) & 0x7f

	inst := &Instruction{Raw: word, Rd: rd, Rs1: rs1, Rs2: rs2}

	switch opcode {
	case opcLoad:
		return d.decodeLoad(inst, funct3)
	case opcOpImm:
		return d.decodeOpImm(inst, word, funct3)
	case opcAUIPC:
		inst.Format = FormatU
		inst.Op = OpAUIPC
		inst.Imm = uint64(word) >> 12
		inst.Decode.Sext = SextU
		inst.Exec = ExecFlags{AluOp: OpAUIPC, AluSrc: true}
		inst.Wb.MemToReg = true
		return inst, nil
	case opcOpImm32:
		return d.decodeOpImm32(inst, word, funct3)
	case opcStore:
		return d.decodeStore(inst, word, funct3)
	case opcOp:
		return d.decodeOp(inst, funct3, funct7)
	case opcLUI:
		inst.Format = FormatU
		inst.Op = OpLUI
		inst.Imm = uint64(word) >> 12
		inst.Decode.Sext = SextU
		inst.Exec = ExecFlags{AluOp: OpLUI, AluSrc: true}
		inst.Wb.MemToReg = true
		return inst, nil
	case opcOp32:
		return d.decodeOp32(inst, funct3, funct7)
	case opcBranch:
		return d.decodeBranch(inst, word, funct3)
	case opcJALR:
		if funct3 != 0 {
			return nil, &DecodeError{Opcode: opcode, Funct3: funct3, Funct7: funct7}
		}
		inst.Format = FormatI
		inst.Op = OpJALR
		inst.Imm = uint64(word) >> 20
		inst.Decode.Sext = SextI
		inst.Exec = ExecFlags{AluOp: OpJALR, AluSrc: true}
		inst.Wb.MemToReg = true
		inst.Branch.IsBranch = true
		return inst, nil
	case opcJAL:
		inst.Format = FormatJ
		inst.Op = OpJAL
		inst.Imm = immJ(word)
		inst.Decode.Sext = SextJ
		inst.Exec = ExecFlags{AluOp: OpJAL, AluSrc: true}
		inst.Wb.MemToReg = true
		inst.Branch.IsBranch = true
		return inst, nil
	case opcSystem:
		return d.decodeSystem(inst, word, funct3)
	case opcMiscMem:
		inst.Format = FormatI
		if funct3 == 0b001 {
			inst.Op = OpFenceI
		} else {
			inst.Op = OpFence
		}
		inst.Exec.AluOp = inst.Op
		return inst, nil
	case opcLoadFP, opcStoreFP, opcAMO, opcOpFP:
		inst.Format = FormatR
		inst.Op = opAliasFloat(opcode)
		inst.Exec.AluOp = inst.Op
		return inst, nil
	case opcMADD, opcMSUB, opcNMSUB, opcNMADD:
		inst.Format = FormatR4
		inst.Op = OpFusedMultiplyAdd
		inst.Rs3 = uint8((word >> 27) & 0x1f)
		inst.Exec.AluOp = inst.Op
		return inst, nil
	default:
		return nil, &DecodeError{Opcode: opcode, Funct3: funct3, Funct7: funct7}
	}
}

func opAliasFloat(opcode uint32) Op {
	switch opcode {
	case opcLoadFP, opcStoreFP:
		return OpFloatLoadStore
	default:
		return OpFloatOp
	}
}

func (d *Decoder) decodeLoad(inst *Instruction, funct3 uint32) (*Instruction, error) {
	inst.Format = FormatI
	switch funct3 {
	case 0b000:
		inst.Op = OpLB
	case 0b001:
		inst.Op = OpLH
	case 0b010:
		inst.Op = OpLW
	case 0b011:
		inst.Op = OpLD
	case 0b100:
		inst.Op = OpLBU
	case 0b101:
		inst.Op = OpLHU
	case 0b110:
		inst.Op = OpLWU
	default:
		return nil, &DecodeError{Opcode: opcLoad, Funct3: funct3}
	}
	inst.Imm = uint64(inst.Raw) >> 20
	inst.Decode.Sext = SextI
	inst.Exec = ExecFlags{AluOp: inst.Op, AluSrc: true}
	inst.Mem.MemRead = true
	inst.Wb.MemToReg = true
	return inst, nil
}

func (d *Decoder) decodeOpImm(inst *Instruction, word uint32, funct3 uint32) (*Instruction, error) {
	inst.Format = FormatI
	inst.Imm = uint64(word) >> 20
	inst.Decode.Sext = SextI
	inst.Wb.MemToReg = true

	switch funct3 {
	case 0b000:
		inst.Op = OpADDI
	case 0b010:
		inst.Op = OpSLTI
	case 0b011:
		inst.Op = OpSLTIU
	case 0b100:
		inst.Op = OpXORI
	case 0b110:
		inst.Op = OpORI
	case 0b111:
		inst.Op = OpANDI
	case 0b001:
		inst.Op = OpSLLI
		inst.Decode.Sext = SextNone
		inst.Imm = uint64((word >> 20) & 0x3f) // RV64 shift amount is 6 bits
	case 0b101:
		funct6 := (word >> 26) & 0x3f
		inst.Decode.Sext = SextNone
		inst.Imm = uint64((word >> 20) & 0x3f)
		if funct6 == 0b010000 {
			inst.Op = OpSRAI
		} else {
			inst.Op = OpSRLI
		}
	default:
		return nil, &DecodeError{Opcode: opcOpImm, Funct3: funct3}
	}
	inst.Exec = ExecFlags{AluOp: inst.Op, AluSrc: true}
	return inst, nil
}

func (d *Decoder) decodeOpImm32(inst *Instruction, word uint32, funct3 uint32) (*Instruction, error) {
	inst.Format = FormatI
	inst.Wb.MemToReg = true

	switch funct3 {
	case 0b000:
		inst.Op = OpADDIW
		inst.Imm = uint64(word) >> 20
		inst.Decode.Sext = SextI
	case 0b001:
		inst.Op = OpSLLIW
		inst.Imm = uint64((word >> 20) & 0x1f)
	case 0b101:
		funct7 := (word >> 25) & 0x7f
		inst.Imm = uint64((word >> 20) & 0x1f)
		if funct7 == 0b0100000 {
			inst.Op = OpSRAIW
		} else {
			inst.Op = OpSRLIW
		}
	default:
		return nil, &DecodeError{Opcode: opcOpImm32, Funct3: funct3}
	}
	inst.Exec = ExecFlags{AluOp: inst.Op, AluSrc: true}
	return inst, nil
}

func (d *Decoder) decodeStore(inst *Instruction, word uint32, funct3 uint32) (*Instruction, error) {
	inst.Format = FormatS
	switch funct3 {
	case 0b000:
		inst.Op = OpSB
	case 0b001:
		inst.Op = OpSH
	case 0b010:
		inst.Op = OpSW
	case 0b011:
		inst.Op = OpSD
	default:
		return nil, &DecodeError{Opcode: opcStore, Funct3: funct3}
	}
	inst.Imm = immS(word)
	inst.Decode.Sext = SextS
	inst.Exec = ExecFlags{AluOp: inst.Op, AluSrc: true}
	inst.Mem.MemWrite = true
	return inst, nil
}

func (d *Decoder) decodeOp(inst *Instruction, funct3, funct7 uint32) (*Instruction, error) {
	inst.Format = FormatR
	inst.Wb.MemToReg = true

	switch funct7 {
	case 0b0000000:
		switch funct3 {
		case 0b000:
			inst.Op = OpADD
		case 0b001:
			inst.Op = OpSLL
		case 0b010:
			inst.Op = OpSLT
		case 0b011:
			inst.Op = OpSLTU
		case 0b100:
			inst.Op = OpXOR
		case 0b101:
			inst.Op = OpSRL
		case 0b110:
			inst.Op = OpOR
		case 0b111:
			inst.Op = OpAND
		default:
			return nil, &DecodeError{Opcode: opcOp, Funct3: funct3, Funct7: funct7}
		}
	case 0b0100000:
		switch funct3 {
		case 0b000:
			inst.Op = OpSUB
		case 0b101:
			inst.Op = OpSRA
		default:
			return nil, &DecodeError{Opcode: opcOp, Funct3: funct3, Funct7: funct7}
		}
	case 0b0000001:
		switch funct3 {
		case 0b000:
			inst.Op = OpMUL
		case 0b001:
			inst.Op = OpMULH
		case 0b010:
			inst.Op = OpMULHSU
		case 0b011:
			inst.Op = OpMULHU
		case 0b100:
			inst.Op = OpDIV
		case 0b101:
			inst.Op = OpDIVU
		case 0b110:
			inst.Op = OpREM
		case 0b111:
			inst.Op = OpREMU
		default:
			return nil, &DecodeError{Opcode: opcOp, Funct3: funct3, Funct7: funct7}
		}
	default:
		return nil, &DecodeError{Opcode: opcOp, Funct3: funct3, Funct7: funct7}
	}
	inst.Exec = ExecFlags{AluOp: inst.Op, AluSrc: false}
	return inst, nil
}

func (d *Decoder) decodeOp32(inst *Instruction, funct3, funct7 uint32) (*Instruction, error) {
	inst.Format = FormatR
	inst.Wb.MemToReg = true

	switch funct7 {
	case 0b0000000:
		switch funct3 {
		case 0b000:
			inst.Op = OpADDW
		case 0b001:
			inst.Op = OpSLLW
		case 0b101:
			inst.Op = OpSRLW
		default:
			return nil, &DecodeError{Opcode: opcOp32, Funct3: funct3, Funct7: funct7}
		}
	case 0b0100000:
		switch funct3 {
		case 0b000:
			inst.Op = OpSUBW
		case 0b101:
			inst.Op = OpSRAW
		default:
			return nil, &DecodeError{Opcode: opcOp32, Funct3: funct3, Funct7: funct7}
		}
	case 0b0000001:
		switch funct3 {
		case 0b000:
			inst.Op = OpMULW
		case 0b100:
			inst.Op = OpDIVW
		case 0b101:
			inst.Op = OpDIVUW
		case 0b110:
			inst.Op = OpREMW
		case 0b111:
			inst.Op = OpREMUW
		default:
			return nil, &DecodeError{Opcode: opcOp32, Funct3: funct3, Funct7: funct7}
		}
	default:
		return nil, &DecodeError{Opcode: opcOp32, Funct3: funct3, Funct7: funct7}
	}
	inst.Exec = ExecFlags{AluOp: inst.Op, AluSrc: false}
	return inst, nil
}

func (d *Decoder) decodeBranch(inst *Instruction, word uint32, funct3 uint32) (*Instruction, error) {
	inst.Format = FormatB
	switch funct3 {
	case 0b000:
		inst.Op = OpBEQ
	case 0b001:
		inst.Op = OpBNE
	case 0b100:
		inst.Op = OpBLT
	case 0b101:
		inst.Op = OpBGE
	case 0b110:
		inst.Op = OpBLTU
	case 0b111:
		inst.Op = OpBGEU
	default:
		return nil, &DecodeError{Opcode: opcBranch, Funct3: funct3}
	}
	inst.Imm = immB(word)
	inst.Decode.Sext = SextB
	inst.Exec = ExecFlags{AluOp: inst.Op, AluSrc: false}
	inst.Branch.IsBranch = true
	return inst, nil
}

func (d *Decoder) decodeSystem(inst *Instruction, word uint32, funct3 uint32) (*Instruction, error) {
	inst.Format = FormatSystem
	switch funct3 {
	case 0b000:
		imm12 := word >> 20
		switch imm12 {
		case 0x000:
			inst.Op = OpECALL
		case 0x001:
			inst.Op = OpEBREAK
		case 0x302:
			inst.Op = OpMRET
		case 0x102:
			inst.Op = OpSRET
		case 0x105:
			inst.Op = OpWFI
		default:
			return nil, &DecodeError{Opcode: opcSystem, Funct3: funct3}
		}
	case 0b001:
		inst.Op = OpCSRRW
	case 0b010:
		inst.Op = OpCSRRS
	case 0b011:
		inst.Op = OpCSRRC
	case 0b101:
		inst.Op = OpCSRRWI
	case 0b110:
		inst.Op = OpCSRRSI
	case 0b111:
		inst.Op = OpCSRRCI
	default:
		return nil, &DecodeError{Opcode: opcSystem, Funct3: funct3}
	}
	inst.Exec.AluOp = inst.Op
	return inst, nil
}

// immS extracts the S-type immediate (12 bits, unsigned bit pattern).
func immS(word uint32) uint64 {
	imm11_5 := (word >> 25) & 0x7f
	imm4_0 := (word >> 7) & 0x1f
	return uint64(imm11_5<<5 | imm4_0)
}

// immB extracts the B-type immediate (13 bits including the implicit zero
// low bit, unsigned bit pattern).
func immB(word uint32) uint64 {
	imm12 := (word >> 31) & 0x1
	imm10_5 := (word >> 25) & 0x3f
	imm4_1 := (word >> 8) & 0xf
	imm11 := (word >> 7) & 0x1
	return uint64(imm12<<12 | imm11<<11 | imm10_5<<5 | imm4_1<<1)
}

// immJ extracts the J-type immediate (21 bits including the implicit zero
// low bit, unsigned bit pattern).
func immJ(word uint32) uint64 {
	imm20 := (word >> 31) & 0x1
	imm19_12 := (word >> 12) & 0xff
	imm11 := (word >> 20) & 0x1
	imm10_1 := (word >> 21) & 0x3ff
	return uint64(imm20<<20 | imm19_12<<12 | imm11<<11 | imm10_1<<1)
}
