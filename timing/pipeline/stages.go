package pipeline

import (
	"github.com/rvsim/rvsim/emu"
	"github.com/rvsim/rvsim/insts"
)

// FetchStage reads the next instruction word and consults the branch
// predictor for control-transfer instructions.
type FetchStage struct {
	memory    *emu.Memory
	decoder   *insts.Decoder
	predictor *BranchPredictor
}

// NewFetchStage creates a fetch stage bound to memory and the pipeline's
// predictor.
func NewFetchStage(memory *emu.Memory, predictor *BranchPredictor) *FetchStage {
	return &FetchStage{
		memory:    memory,
		decoder:   insts.NewDecoder(),
		predictor: predictor,
	}
}

// FetchResult is what Fetch hands to the IF/ID latch.
type FetchResult struct {
	Word            uint32
	IsControl       bool
	PredictedTaken  bool
	PredictedTarget uint64
}

// Fetch reads the word at pc and, for a branch or jump, asks the predictor
// for predicted_src/predicted_target.
func (s *FetchStage) Fetch(pc uint64) FetchResult {
	word := s.memory.Read32(pc)
	result := FetchResult{Word: word}

	inst, err := s.decoder.Decode(word)
	if err != nil || inst.IsNoop() {
		return result
	}
	result.IsControl = inst.Branch.IsBranch

	switch {
	case inst.Op == insts.OpJAL:
		pred := s.predictor.PredictJump(pc)
		result.PredictedTaken = pred.Taken
		result.PredictedTarget = pred.Target
	case inst.Op == insts.OpJALR:
		if emu.IsCanonicalReturn(inst.Op, inst.Rd, inst.Rs1, inst.Imm) {
			pred := s.predictor.PredictReturn(pc)
			result.PredictedTaken = pred.Taken
			result.PredictedTarget = pred.Target
		} else {
			pred := s.predictor.PredictIndirectJump(pc)
			result.PredictedTaken = pred.Taken
			result.PredictedTarget = pred.Target
		}
	case inst.Branch.IsBranch:
		pred := s.predictor.PredictConditional(pc)
		if pred.Taken && !pred.TargetKnown {
			// Compulsory BTB miss: no target to speculate to, so fall
			// through and let EX recover.
			pred.Taken = false
		}
		result.PredictedTaken = pred.Taken
		result.PredictedTarget = pred.Target
	}

	return result
}

// DecodeStage decodes the fetched word and reads the register file.
type DecodeStage struct {
	regFile *emu.RegFile
	decoder *insts.Decoder
}

// NewDecodeStage creates a decode stage bound to the register file.
func NewDecodeStage(regFile *emu.RegFile) *DecodeStage {
	return &DecodeStage{
		regFile: regFile,
		decoder: insts.NewDecoder(),
	}
}

// DecodeResult is what Decode hands to the ID/EX latch.
type DecodeResult struct {
	Inst *insts.Instruction

	Src1Value, Src2Value uint64
	Imm                  uint64

	Rd, Rs1, Rs2 uint8

	AluOp    insts.Op
	AluSrc   bool
	MemRead  bool
	MemWrite bool
	RegWrite bool
	MemToReg bool
	IsBranch bool

	// Fault carries a DecodeError down the pipe. It is raised only if the
	// instruction reaches EX: wrong-path words squashed by a misprediction
	// or by post-ebreak draining never fault.
	Fault error
}

// Decode decodes word (fetched at pc) and reads rs1/rs2 from the register
// file. An unrecognized word decodes to a noop carrying the fault, which EX
// surfaces if the instruction turns out to be on the committed path.
func (s *DecodeStage) Decode(word uint32) DecodeResult {
	inst, err := s.decoder.Decode(word)
	if err != nil {
		return DecodeResult{Inst: &insts.Instruction{Raw: word, Op: insts.OpNoop}, Fault: err}
	}

	result := DecodeResult{
		Inst:     inst,
		Rd:       inst.Rd,
		Rs1:      inst.Rs1,
		Rs2:      inst.Rs2,
		AluOp:    inst.Exec.AluOp,
		AluSrc:   inst.Exec.AluSrc,
		MemRead:  inst.Mem.MemRead,
		MemWrite: inst.Mem.MemWrite,
		RegWrite: inst.Wb.MemToReg && inst.Rd != 0,
		MemToReg: inst.Mem.MemRead,
		IsBranch: inst.Branch.IsBranch,
	}

	result.Src1Value = s.regFile.Read(inst.Rs1)
	result.Src2Value = s.regFile.Read(inst.Rs2)
	result.Imm = insts.Sext(inst.Imm, inst.Decode.Sext)

	return result
}

// ExecuteStage runs the ALU, resolves branches, and drives the predictor's
// update path and the call-stack tracer's call/ret hooks.
type ExecuteStage struct {
	alu       *emu.ALU
	predictor *BranchPredictor
	tracer    CallStackTracer
	symbols   map[uint64]string
}

// CallStackTracer is the subset of callstack.Tracer's API the pipeline's
// execute stage needs; it is an interface so tests can substitute a fake.
type CallStackTracer interface {
	Call(site, target uint64, symbols map[uint64]string)
	Ret(pc uint64)
}

// NewExecuteStage creates an execute stage.
func NewExecuteStage(predictor *BranchPredictor, tracer CallStackTracer, symbols map[uint64]string) *ExecuteStage {
	return &ExecuteStage{
		alu:       emu.NewALU(),
		predictor: predictor,
		tracer:    tracer,
		symbols:   symbols,
	}
}

// ExecuteResult is what Execute hands to the EX/MEM latch.
type ExecuteResult struct {
	ALUOut       uint64
	BranchTaken  bool
	BranchTarget uint64
	Mispredicted bool
	IsCall       bool
	IsReturn     bool
	Err          error
}

// Execute runs the ALU for ALU/address-computation ops, or resolves a
// branch/jump's taken/target outcome and notifies the predictor and tracer.
func (s *ExecuteStage) Execute(idex *IDEXRegister, src1, src2 uint64) ExecuteResult {
	inst := idex.Inst
	result := ExecuteResult{}

	if !idex.IsBranch {
		var operand2 uint64
		if idex.AluSrc {
			operand2 = idex.Imm
		} else {
			operand2 = src2
		}
		out, err := s.alu.Execute(idex.AluOp, src1, operand2, idex.PC, inst.Raw)
		result.ALUOut = out
		result.Err = err
		return result
	}

	switch inst.Op {
	case insts.OpJAL:
		target := emu.BranchTarget(inst.Op, idex.PC, idex.Imm, 0)
		result.BranchTaken = true
		result.BranchTarget = target
		result.ALUOut = idex.PC + 4
		if emu.IsCall(inst.Op, inst.Rd) {
			result.IsCall = true
			s.tracer.Call(idex.PC, target, s.symbols)
			s.predictor.PushCall(idex.PC + 4)
		}
		s.predictor.UpdateJump(idex.PC, target)
		result.Mispredicted = !idex.PredictedTaken || idex.PredictedTarget != target

	case insts.OpJALR:
		target := emu.BranchTarget(inst.Op, idex.PC, idex.Imm, src1)
		result.BranchTaken = true
		result.BranchTarget = target
		result.ALUOut = idex.PC + 4
		isReturn := emu.IsCanonicalReturn(inst.Op, inst.Rd, inst.Rs1, inst.Imm)
		if isReturn {
			result.IsReturn = true
			s.tracer.Ret(idex.PC)
		}
		s.predictor.UpdateJump(idex.PC, target)
		result.Mispredicted = !idex.PredictedTaken || idex.PredictedTarget != target

	default: // conditional branch
		taken := emu.EvaluateBranch(inst.Op, src1, src2)
		result.BranchTaken = taken
		if taken {
			result.BranchTarget = emu.BranchTarget(inst.Op, idex.PC, idex.Imm, 0)
		} else {
			result.BranchTarget = idex.PC + 4
		}
		s.predictor.UpdateConditional(idex.PC, taken, result.BranchTarget)
		result.Mispredicted = idex.PredictedTaken != taken ||
			(taken && idex.PredictedTarget != result.BranchTarget)
	}

	if result.Mispredicted {
		s.predictor.RecordMisprediction()
	}

	return result
}

// MemoryStage performs the load/store access for EX/MEM.
type MemoryStage struct {
	lsu *emu.LoadStoreUnit
}

// NewMemoryStage creates a memory stage bound to memory.
func NewMemoryStage(memory *emu.Memory) *MemoryStage {
	return &MemoryStage{lsu: emu.NewLoadStoreUnit(memory)}
}

// Access performs the load or store described by exmem, applying
// memory-to-memory forwarding for the store-data operand when requested.
func (s *MemoryStage) Access(exmem *EXMEMRegister, forwardedStoreValue uint64) uint64 {
	if !exmem.Valid {
		return 0
	}
	if exmem.MemRead {
		return s.lsu.Load(exmem.ALUOut, exmem.MemBitwidth, exmem.MemSigned)
	}
	if exmem.MemWrite {
		value := exmem.StoreValue
		if exmem.M2MForward {
			value = forwardedStoreValue
		}
		s.lsu.Store(exmem.ALUOut, exmem.MemBitwidth, value)
	}
	return 0
}

// WritebackStage commits a MEM/WB value to the register file.
type WritebackStage struct {
	regFile *emu.RegFile
}

// NewWritebackStage creates a writeback stage bound to the register file.
func NewWritebackStage(regFile *emu.RegFile) *WritebackStage {
	return &WritebackStage{regFile: regFile}
}

// Writeback commits memwb.RegVal to memwb.Rd, if this latch writes a
// register.
func (s *WritebackStage) Writeback(memwb *MEMWBRegister) {
	if !memwb.Valid || !memwb.RegWrite {
		return
	}
	s.regFile.Write(memwb.Rd, memwb.RegVal)
}
