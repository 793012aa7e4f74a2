// Package pipeline implements the five-stage in-order RV64IM pipeline: the
// four latches (IF/ID, ID/EX, EX/MEM, MEM/WB), the hazard unit, the branch
// predictor, and the per-clock Tick that advances them all.
package pipeline

import (
	"github.com/rvsim/rvsim/insts"
)

// IFIDRegister holds state between Fetch and Decode.
type IFIDRegister struct {
	Valid bool

	PC              uint64
	InstructionWord uint32

	// PredictedTaken/PredictedTarget are filled in by Fetch from the branch
	// predictor so Execute can detect a misprediction.
	PredictedTaken  bool
	PredictedTarget uint64
}

// Clear resets the IF/ID register to a bubble.
func (r *IFIDRegister) Clear() {
	*r = IFIDRegister{}
}

// IDEXRegister holds state between Decode and Execute.
type IDEXRegister struct {
	Valid bool

	PC   uint64
	Inst *insts.Instruction

	Src1Value uint64
	Src2Value uint64
	Imm       uint64

	Rd, Rs1, Rs2 uint8

	AluOp    insts.Op
	AluSrc   bool
	MemRead  bool
	MemWrite bool
	RegWrite bool
	MemToReg bool
	IsBranch bool

	PredictedTaken  bool
	PredictedTarget uint64

	// DecodeFault defers an unrecognized-word error to EX so that
	// squashed wrong-path fetches never fault the run.
	DecodeFault error
}

// Clear resets the ID/EX register to a bubble.
func (r *IDEXRegister) Clear() {
	*r = IDEXRegister{}
}

// EXMEMRegister holds state between Execute and Memory.
type EXMEMRegister struct {
	Valid bool

	PC   uint64
	Inst *insts.Instruction

	ALUOut     uint64
	StoreValue uint64

	MemBitwidth uint8 // 0, 8, 16, 32, 64
	MemSigned   bool

	Rd       uint8
	Rs2      uint8 // store-data register, consulted by memory-to-memory forwarding
	MemRead  bool
	MemWrite bool
	RegWrite bool
	MemToReg bool

	// M2MForward routes MEM/WB's committed load value into this store's
	// data path at MEM instead of StoreValue.
	M2MForward bool

	// Branch resolution, set unconditionally (IsBranch gates its meaning).
	IsBranch     bool
	BranchTaken  bool
	BranchTarget uint64
	Mispredicted bool
	IsCall       bool
	IsReturn     bool
}

// Clear resets the EX/MEM register to a bubble.
func (r *EXMEMRegister) Clear() {
	*r = EXMEMRegister{}
}

// MEMWBRegister holds state between Memory and Writeback.
type MEMWBRegister struct {
	Valid bool

	PC   uint64
	Inst *insts.Instruction
	Op   insts.Op

	RegVal   uint64
	Rd       uint8
	RegWrite bool
	MemToReg bool

	// IsBreak marks a halting ebreak; Writeback reads x10 for the exit
	// code once every older instruction has committed.
	IsBreak bool
}

// Clear resets the MEM/WB register to a bubble.
func (r *MEMWBRegister) Clear() {
	*r = MEMWBRegister{}
}
