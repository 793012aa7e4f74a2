// Package insts provides RV64IM instruction definitions and decoding.
//
// This package decodes 32-bit RISC-V machine words into a structured
// Instruction record carrying the operand indices and the control-flag
// groups consumed by both the single-cycle core and the pipelined core.
// It covers the RV64I base integer instruction set plus the M (integer
// multiply/divide) extension. Floating-point, atomic, fence, and
// CSR/system instructions other than ebreak are recognized structurally
// (so the decoder does not fail on them) but are reported to the caller
// as unimplemented rather than executed. Compressed (16-bit) encodings are
// not recognized and decode to a DecodeError.
package insts

// Op identifies a decoded RV64IM mnemonic.
type Op uint16

const (
	// OpNoop is the sentinel used for bubbles and for decode/reset state.
	OpNoop Op = iota

	// RV64I integer-register-immediate instructions.
	OpADDI
	OpSLTI
	OpSLTIU
	OpXORI
	OpORI
	OpANDI
	OpSLLI
	OpSRLI
	OpSRAI
	OpADDIW
	OpSLLIW
	OpSRLIW
	OpSRAIW

	// RV64I integer-register-register instructions.
	OpADD
	OpSUB
	OpSLL
	OpSLT
	OpSLTU
	OpXOR
	OpSRL
	OpSRA
	OpOR
	OpAND
	OpADDW
	OpSUBW
	OpSLLW
	OpSRLW
	OpSRAW

	// M extension.
	OpMUL
	OpMULH
	OpMULHSU
	OpMULHU
	OpDIV
	OpDIVU
	OpREM
	OpREMU
	OpMULW
	OpDIVW
	OpDIVUW
	OpREMW
	OpREMUW

	// Loads and stores.
	OpLB
	OpLH
	OpLW
	OpLD
	OpLBU
	OpLHU
	OpLWU
	OpSB
	OpSH
	OpSW
	OpSD

	// Upper immediate and PC-relative.
	OpLUI
	OpAUIPC

	// Control transfer.
	OpJAL
	OpJALR
	OpBEQ
	OpBNE
	OpBLT
	OpBGE
	OpBLTU
	OpBGEU

	// System.
	OpECALL
	OpEBREAK

	// Structurally recognized but not executed; the execute stage reports
	// UnimplementedError for these.
	OpFence
	OpFenceI
	OpAMO
	OpFloatLoadStore
	OpFloatOp
	OpFusedMultiplyAdd
	OpCSRRW
	OpCSRRS
	OpCSRRC
	OpCSRRWI
	OpCSRRSI
	OpCSRRCI
	OpMRET
	OpSRET
	OpWFI

	// OpUnknown marks a word that matched no recognized opcode/funct
	// pattern at all; the caller reports DecodeError.
	OpUnknown
)

var opNames = map[Op]string{
	OpNoop: "noop",

	OpADDI: "addi", OpSLTI: "slti", OpSLTIU: "sltiu", OpXORI: "xori",
	OpORI: "ori", OpANDI: "andi", OpSLLI: "slli", OpSRLI: "srli",
	OpSRAI: "srai", OpADDIW: "addiw", OpSLLIW: "slliw", OpSRLIW: "srliw",
	OpSRAIW: "sraiw",

	OpADD: "add", OpSUB: "sub", OpSLL: "sll", OpSLT: "slt", OpSLTU: "sltu",
	OpXOR: "xor", OpSRL: "srl", OpSRA: "sra", OpOR: "or", OpAND: "and",
	OpADDW: "addw", OpSUBW: "subw", OpSLLW: "sllw", OpSRLW: "srlw",
	OpSRAW: "sraw",

	OpMUL: "mul", OpMULH: "mulh", OpMULHSU: "mulhsu", OpMULHU: "mulhu",
	OpDIV: "div", OpDIVU: "divu", OpREM: "rem", OpREMU: "remu",
	OpMULW: "mulw", OpDIVW: "divw", OpDIVUW: "divuw", OpREMW: "remw",
	OpREMUW: "remuw",

	OpLB: "lb", OpLH: "lh", OpLW: "lw", OpLD: "ld", OpLBU: "lbu",
	OpLHU: "lhu", OpLWU: "lwu", OpSB: "sb", OpSH: "sh", OpSW: "sw",
	OpSD: "sd",

	OpLUI: "lui", OpAUIPC: "auipc",

	OpJAL: "jal", OpJALR: "jalr", OpBEQ: "beq", OpBNE: "bne",
	OpBLT: "blt", OpBGE: "bge", OpBLTU: "bltu", OpBGEU: "bgeu",

	OpECALL: "ecall", OpEBREAK: "ebreak",

	OpFence: "fence", OpFenceI: "fence.i", OpAMO: "amo",
	OpFloatLoadStore: "fp-load-store", OpFloatOp: "fp-op",
	OpFusedMultiplyAdd: "fused-multiply-add",
	OpCSRRW:            "csrrw", OpCSRRS: "csrrs", OpCSRRC: "csrrc",
	OpCSRRWI: "csrrwi", OpCSRRSI: "csrrsi", OpCSRRCI: "csrrci",
	OpMRET: "mret", OpSRET: "sret", OpWFI: "wfi",

	OpUnknown: "unknown",
}

// String returns the mnemonic for op.
func (op Op) String() string {
	if name, ok := opNames[op]; ok {
		return name
	}
	return "unknown"
}

// Format identifies the instruction encoding family.
type Format uint8

const (
	FormatUnknown Format = iota
	FormatR              // register-register, opcode OP / OP-32
	FormatR4             // fused multiply-add (recognized, unimplemented)
	FormatI              // register-immediate, loads, JALR
	FormatS              // stores
	FormatB              // branches
	FormatU              // LUI, AUIPC
	FormatJ              // JAL
	FormatSystem         // ECALL/EBREAK/CSR
)

// SextType selects the immediate sign-extension width applied by Decode.
type SextType uint8

const (
	SextNone SextType = iota
	SextI             // 12-bit
	SextS             // 12-bit
	SextB             // 13-bit
	SextU             // 20-bit (then shifted left 12 by the consumer)
	SextJ             // 21-bit
)

// DecodeFlags records the sign-extension width to apply to Imm.
type DecodeFlags struct {
	Sext SextType
}

// ExecFlags records the ALU operation and operand-2 source.
type ExecFlags struct {
	AluOp  Op
	AluSrc bool // true: second ALU operand is the immediate, not rs2
}

// MemFlags records whether this instruction reads or writes memory.
type MemFlags struct {
	MemRead  bool
	MemWrite bool
}

// WbFlags records whether this instruction writes a register.
type WbFlags struct {
	MemToReg bool
}

// BranchFlags records whether this instruction can redirect the PC.
// PcSrc, PredictedSrc, and PredictedTarget are not decode-time properties
// of the instruction itself; they live on the pipeline latches because
// they are produced by IF (prediction) and EX (resolution).
type BranchFlags struct {
	IsBranch bool
}

// Instruction is the fully decoded representation of a 32-bit RV64IM word.
type Instruction struct {
	Raw    uint32
	Op     Op
	Format Format

	Rd, Rs1, Rs2, Rs3 uint8

	// Imm is the raw, unsigned-extracted immediate bit pattern; sign
	// extension per DecodeFlags.Sext happens in the decode stage, not here.
	Imm uint64

	Decode DecodeFlags
	Exec   ExecFlags
	Mem    MemFlags
	Wb     WbFlags
	Branch BranchFlags
}

// IsNoop reports whether this instruction is the noop/bubble sentinel.
func (i *Instruction) IsNoop() bool {
	return i == nil || i.Op == OpNoop
}

// RegName returns the ABI name for general-purpose register index r (0..31).
func RegName(r uint8) string {
	names := [32]string{
		"zero", "ra", "sp", "gp", "tp", "t0", "t1", "t2",
		"s0", "s1", "a0", "a1", "a2", "a3", "a4", "a5",
		"a6", "a7", "s2", "s3", "s4", "s5", "s6", "s7",
		"s8", "s9", "s10", "s11", "t3", "t4", "t5", "t6",
	}
	if int(r) >= len(names) {
		return "?"
	}
	return names[r]
}
