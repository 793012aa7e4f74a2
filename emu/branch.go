package emu

import "github.com/rvsim/rvsim/insts"

// EvaluateBranch computes the taken/not-taken outcome of a conditional
// branch given its two operand values.
func EvaluateBranch(op insts.Op, rs1, rs2 uint64) bool {
	switch op {
	case insts.OpBEQ:
		return rs1 == rs2
	case insts.OpBNE:
		return rs1 != rs2
	case insts.OpBLT:
		return int64(rs1) < int64(rs2)
	case insts.OpBGE:
		return int64(rs1) >= int64(rs2)
	case insts.OpBLTU:
		return rs1 < rs2
	case insts.OpBGEU:
		return rs1 >= rs2
	default:
		return false
	}
}

// BranchTarget computes the redirect target for a taken branch/jump.
// pc is the instruction's own PC, imm is the already sign-extended
// immediate, and rs1Value is only consulted for JALR.
func BranchTarget(op insts.Op, pc uint64, imm uint64, rs1Value uint64) uint64 {
	switch op {
	case insts.OpJALR:
		return (rs1Value + imm) &^ 1
	default:
		// JAL and all conditional branches are PC-relative.
		return pc + imm
	}
}

// IsCall reports whether this instruction is a call for the call-stack
// tracer's (and RAS's) push condition: a JAL with rd == x1 (ra).
func IsCall(op insts.Op, rd uint8) bool {
	return op == insts.OpJAL && rd == 1
}

// IsCanonicalReturn reports whether the operands match the canonical `jalr
// x0, 0(x1)` return pattern (rd=0, rs1=1 (ra), imm=0), used by both the
// branch predictor's RAS-pop condition and the call-stack tracer's pop
// condition.
func IsCanonicalReturn(op insts.Op, rd, rs1 uint8, imm uint64) bool {
	return op == insts.OpJALR && rd == 0 && rs1 == 1 && imm == 0
}
