package emu

import (
	"math/bits"

	"github.com/rvsim/rvsim/insts"
)

// ALU implements the RV64IM arithmetic and logical operations. It is a pure
// function of its inputs; it owns no register-file or memory state.
type ALU struct{}

// NewALU creates a new RV64IM arithmetic/logic unit.
func NewALU() *ALU {
	return &ALU{}
}

// shiftIllegal reports whether a -W shift immediate's reserved sixth shift
// bit (raw bit 25 of the I-immediate shift field) is set, which RV64I
// forbids for 32-bit-result shifts.
func shiftIllegal(raw uint32) bool {
	return (raw>>25)&1 != 0
}

// Execute computes the result of an RV64IM arithmetic/logic/mul/div
// operation. a is rs1 (or the comparand for LUI/AUIPC, which use a only
// indirectly via pc), b is rs2 or the sign-extended immediate per AluSrc.
// pc is the instruction's own PC, needed by AUIPC. raw is the raw
// instruction word, needed to detect the illegal-shift case for -W shift
// immediates (the decoder has already masked the shift amount to 5 bits,
// discarding the illegal sixth bit, so the ALU re-reads it from raw).
func (alu *ALU) Execute(op insts.Op, a, b, pc uint64, raw uint32) (uint64, error) {
	switch op {
	case insts.OpADD, insts.OpADDI:
		return a + b, nil
	case insts.OpSUB:
		return a - b, nil
	case insts.OpSLL, insts.OpSLLI:
		return a << (b & 0x3f), nil
	case insts.OpSLT, insts.OpSLTI:
		if int64(a) < int64(b) {
			return 1, nil
		}
		return 0, nil
	case insts.OpSLTU, insts.OpSLTIU:
		if a < b {
			return 1, nil
		}
		return 0, nil
	case insts.OpXOR, insts.OpXORI:
		return a ^ b, nil
	case insts.OpSRL, insts.OpSRLI:
		return a >> (b & 0x3f), nil
	case insts.OpSRA, insts.OpSRAI:
		return uint64(int64(a) >> (b & 0x3f)), nil
	case insts.OpOR, insts.OpORI:
		return a | b, nil
	case insts.OpAND, insts.OpANDI:
		return a & b, nil

	case insts.OpADDW, insts.OpADDIW:
		return signExtend32(uint32(a + b)), nil
	case insts.OpSUBW:
		return signExtend32(uint32(a - b)), nil
	case insts.OpSLLW, insts.OpSLLIW:
		if op == insts.OpSLLIW && shiftIllegal(raw) {
			return 0, &IllegalInstructionError{PC: pc, Raw: raw, Why: "SLLIW shift amount exceeds 5 bits"}
		}
		return signExtend32(uint32(a) << (uint32(b) & 0x1f)), nil
	case insts.OpSRLW, insts.OpSRLIW:
		if op == insts.OpSRLIW && shiftIllegal(raw) {
			return 0, &IllegalInstructionError{PC: pc, Raw: raw, Why: "SRLIW shift amount exceeds 5 bits"}
		}
		return signExtend32(uint32(a) >> (uint32(b) & 0x1f)), nil
	case insts.OpSRAW, insts.OpSRAIW:
		if op == insts.OpSRAIW && shiftIllegal(raw) {
			return 0, &IllegalInstructionError{PC: pc, Raw: raw, Why: "SRAIW shift amount exceeds 5 bits"}
		}
		return signExtend32(uint32(int32(uint32(a)) >> (uint32(b) & 0x1f))), nil

	case insts.OpMUL:
		return a * b, nil
	case insts.OpMULH:
		return uint64(mulhSigned(int64(a), int64(b))), nil
	case insts.OpMULHU:
		hi, _ := bits.Mul64(a, b)
		return hi, nil
	case insts.OpMULHSU:
		return uint64(mulhSignedUnsigned(int64(a), b)), nil

	case insts.OpDIV:
		if b == 0 {
			return 0, &DividedByZeroError{PC: pc, Op: "div"}
		}
		return uint64(int64(a) / int64(b)), nil
	case insts.OpDIVU:
		if b == 0 {
			return 0, &DividedByZeroError{PC: pc, Op: "divu"}
		}
		return a / b, nil
	case insts.OpREM:
		if b == 0 {
			return 0, &DividedByZeroError{PC: pc, Op: "rem"}
		}
		return uint64(int64(a) % int64(b)), nil
	case insts.OpREMU:
		if b == 0 {
			return 0, &DividedByZeroError{PC: pc, Op: "remu"}
		}
		return a % b, nil

	case insts.OpMULW:
		return signExtend32(uint32(a) * uint32(b)), nil
	case insts.OpDIVW:
		if uint32(b) == 0 {
			return 0, &DividedByZeroError{PC: pc, Op: "divw"}
		}
		return signExtend32(uint32(int32(uint32(a)) / int32(uint32(b)))), nil
	case insts.OpDIVUW:
		if uint32(b) == 0 {
			return 0, &DividedByZeroError{PC: pc, Op: "divuw"}
		}
		return signExtend32(uint32(a) / uint32(b)), nil
	case insts.OpREMW:
		if uint32(b) == 0 {
			return 0, &DividedByZeroError{PC: pc, Op: "remw"}
		}
		return signExtend32(uint32(int32(uint32(a)) % int32(uint32(b)))), nil
	case insts.OpREMUW:
		if uint32(b) == 0 {
			return 0, &DividedByZeroError{PC: pc, Op: "remuw"}
		}
		return signExtend32(uint32(a) % uint32(b)), nil

	case insts.OpLUI:
		// b is sext(imm, 20); the architectural value is that shifted into
		// the upper bits with the low 12 forced to zero.
		return b << 12, nil
	case insts.OpAUIPC:
		return pc + (b << 12), nil

	case insts.OpJAL, insts.OpJALR:
		return pc + 4, nil

	default:
		// Load/store address computation (rs1 + sign-extended offset) and
		// any other op that merely needs a+b.
		return a + b, nil
	}
}

func signExtend32(v uint32) uint64 {
	return uint64(int64(int32(v)))
}

// mulhSigned computes the high 64 bits of the signed 128-bit product a*b, by
// computing the unsigned product and subtracting the two's-complement
// borrow for each negative operand.
func mulhSigned(a, b int64) int64 {
	hi, _ := bits.Mul64(uint64(a), uint64(b))
	if a < 0 {
		hi -= uint64(b)
	}
	if b < 0 {
		hi -= uint64(a)
	}
	return int64(hi)
}

// mulhSignedUnsigned computes the high 64 bits of the signed*unsigned
// 128-bit product a*b (MULHSU semantics: rs1 signed, rs2 unsigned).
func mulhSignedUnsigned(a int64, b uint64) int64 {
	hi, _ := bits.Mul64(uint64(a), b)
	if a < 0 {
		hi -= b
	}
	return int64(hi)
}
