package pipeline

import (
	"fmt"

	"github.com/rvsim/rvsim/emu"
	"github.com/rvsim/rvsim/insts"
)

// doWriteback commits the current MEM/WB latch to the register file. A
// retiring ebreak halts the pipeline instead; by the time it reaches WB
// every older instruction has committed, so x10 already holds the final
// exit code.
func (p *Pipeline) doWriteback() {
	memwb := p.memwb
	if !memwb.Valid {
		return
	}
	if memwb.IsBreak {
		p.halted = true
		p.exitCode = int64(p.regFile.Read(10))
		return
	}
	p.wb.Writeback(&memwb)
}

// doMemory performs the current EX/MEM latch's load or store and fills the
// pending MEM/WB latch. Memory-to-memory forwarding (a load retiring in
// MEM/WB feeding a store's data operand in EX/MEM) is resolved here, at the
// last point the store data is needed.
func (p *Pipeline) doMemory() {
	exmem := p.exmem
	p.pendingMemwb = MEMWBRegister{}
	if !exmem.Valid {
		return
	}

	if p.hazard.DetectMemToMemForward(&exmem, &p.memwb, exmem.Rs2) {
		exmem.M2MForward = true
		p.hazard.RecordForward()
		if p.hazardTrace != nil {
			fmt.Fprintf(p.hazardTrace, "[hazard] cycle=%d mem-to-mem forward x%d -> store at pc=0x%x\n",
				p.cycleCount, p.memwb.Rd, exmem.PC)
		}
	}

	loaded := p.mem.Access(&exmem, p.memwb.RegVal)

	if p.mtrace != nil {
		if exmem.MemRead {
			fmt.Fprintf(p.mtrace, "pc=0x%016x load  addr=0x%016x width=%d val=0x%016x\n",
				exmem.PC, exmem.ALUOut, exmem.MemBitwidth, loaded)
		} else if exmem.MemWrite {
			val := exmem.StoreValue
			if exmem.M2MForward {
				val = p.memwb.RegVal
			}
			fmt.Fprintf(p.mtrace, "pc=0x%016x store addr=0x%016x width=%d val=0x%016x\n",
				exmem.PC, exmem.ALUOut, exmem.MemBitwidth, val)
		}
	}

	regval := exmem.ALUOut
	if exmem.MemToReg {
		regval = loaded
	}

	p.pendingMemwb = MEMWBRegister{
		Valid:    true,
		PC:       exmem.PC,
		Inst:     exmem.Inst,
		Op:       exmem.Inst.Op,
		RegVal:   regval,
		Rd:       exmem.Rd,
		RegWrite: exmem.RegWrite,
		MemToReg: exmem.MemToReg,
		IsBreak:  exmem.Inst.Op == insts.OpEBREAK,
	}
}

// doExecute runs the current ID/EX latch through EX: forwarding resolution,
// the ALU or branch unit, instruction counting, and long-latency cycle
// charges. It reports a misprediction (with the recovery PC) and whether a
// halting ebreak entered the drain window.
func (p *Pipeline) doExecute() (mispredicted bool, recoveryPC uint64, drained bool) {
	idex := p.idex
	p.pendingExmem = EXMEMRegister{}
	if !idex.Valid || idex.Inst.IsNoop() {
		if idex.Valid && idex.DecodeFault != nil {
			// The unrecognized word is on the committed path.
			p.faultErr = idex.DecodeFault
		}
		return false, 0, false
	}

	inst := idex.Inst

	if emu.Unimplemented(inst.Op) {
		p.faultErr = &emu.UnimplementedError{PC: idex.PC, Op: inst.Op.String()}
		return false, 0, false
	}

	fwd := p.hazard.DetectForwarding(&idex, &p.exmem, &p.memwb)
	src1 := p.hazard.ResolveForward(fwd.Src1, idex.Src1Value, &p.exmem, &p.memwb)
	src2 := p.hazard.ResolveForward(fwd.Src2, idex.Src2Value, &p.exmem, &p.memwb)
	if fwd.Src1 != ForwardNone || fwd.Src2 != ForwardNone {
		p.hazard.RecordForward()
		if p.hazardTrace != nil {
			fmt.Fprintf(p.hazardTrace, "[hazard] cycle=%d forward a=%d b=%d for %s at pc=0x%x\n",
				p.cycleCount, fwd.Src1, fwd.Src2, inst.Op, idex.PC)
		}
	}

	res := p.exec.Execute(&idex, src1, src2)
	if res.Err != nil {
		p.faultErr = res.Err
		return false, 0, false
	}

	width, signed := emu.Width(inst.Op)
	p.pendingExmem = EXMEMRegister{
		Valid:        true,
		PC:           idex.PC,
		Inst:         inst,
		ALUOut:       res.ALUOut,
		StoreValue:   src2,
		MemBitwidth:  width,
		MemSigned:    signed,
		Rd:           idex.Rd,
		Rs2:          idex.Rs2,
		MemRead:      idex.MemRead,
		MemWrite:     idex.MemWrite,
		RegWrite:     idex.RegWrite,
		MemToReg:     idex.MemToReg,
		IsBranch:     idex.IsBranch,
		BranchTaken:  res.BranchTaken,
		BranchTarget: res.BranchTarget,
		Mispredicted: res.Mispredicted,
		IsCall:       res.IsCall,
		IsReturn:     res.IsReturn,
	}

	p.instructionCount++
	p.cycleCount += p.latencies.ExtraCycles(inst.Op, idex.Rs1, idex.Rs2)

	if p.itrace != nil {
		fmt.Fprintf(p.itrace, "pc=0x%016x raw=0x%08x %s\n", idex.PC, inst.Raw, inst.Op)
	}

	if inst.Op == insts.OpEBREAK {
		return false, 0, true
	}
	if res.Mispredicted {
		return true, res.BranchTarget, false
	}
	return false, 0, false
}

// doDecode decodes the current IF/ID latch into the pending ID/EX latch and
// runs hazard detection against the in-flight instructions, returning the
// number of stall cycles to insert (0 for none).
func (p *Pipeline) doDecode() int {
	ifid := p.ifid
	p.pendingIdex = IDEXRegister{}
	if !ifid.Valid {
		return 0
	}

	res := p.decode.Decode(ifid.InstructionWord)
	inst := res.Inst
	usesRs1, usesRs2 := usesRegisters(inst)

	var stall int
	switch p.hazard.Policy() {
	case NaiveStall:
		if p.hazard.DetectNaiveStallRAW(&p.idex, usesRs1, usesRs2, inst.Rs1, inst.Rs2) {
			stall = 2
		} else if p.hazard.DetectNaiveStallEXMEMRAW(&p.exmem, usesRs1, usesRs2, inst.Rs1, inst.Rs2) {
			stall = 1
		}
	case DataForward:
		// A store's rs2 is not needed until MEM, one clock after the load
		// retires there; memory-to-memory forwarding covers it without a
		// stall.
		loadUseRs2 := usesRs2 && !inst.Mem.MemWrite
		if p.idex.Valid && p.idex.MemRead &&
			p.hazard.DetectLoadUse(p.idex.Rd, usesRs1, loadUseRs2, inst.Rs1, inst.Rs2) {
			stall = 1
		}
	}

	if stall > 0 {
		if p.hazardTrace != nil {
			fmt.Fprintf(p.hazardTrace, "[hazard] cycle=%d stall %d for %s at pc=0x%x\n",
				p.cycleCount, stall, inst.Op, ifid.PC)
		}
		return stall
	}

	p.pendingIdex = IDEXRegister{
		Valid:           true,
		PC:              ifid.PC,
		Inst:            inst,
		Src1Value:       res.Src1Value,
		Src2Value:       res.Src2Value,
		Imm:             res.Imm,
		Rd:              res.Rd,
		Rs1:             res.Rs1,
		Rs2:             res.Rs2,
		AluOp:           res.AluOp,
		AluSrc:          res.AluSrc,
		MemRead:         res.MemRead,
		MemWrite:        res.MemWrite,
		RegWrite:        res.RegWrite,
		MemToReg:        res.MemToReg,
		IsBranch:        res.IsBranch,
		PredictedTaken:  ifid.PredictedTaken,
		PredictedTarget: ifid.PredictedTarget,
		DecodeFault:     res.Fault,
	}
	return 0
}

// doFetch reads the instruction at the current PC, consults the branch
// predictor, and returns the next IF/ID latch value. Under the all-stall
// control policy a fetched branch arms a two-cycle fetch freeze.
func (p *Pipeline) doFetch() IFIDRegister {
	res := p.fetch.Fetch(p.pc)

	if res.IsControl && p.predictor.Policy() == AllStall {
		p.controlStallPending = true
	}

	reg := IFIDRegister{
		Valid:           true,
		PC:              p.pc,
		InstructionWord: res.Word,
		PredictedTaken:  res.PredictedTaken,
		PredictedTarget: res.PredictedTarget,
	}

	if p.stageTrace != nil {
		fmt.Fprintf(p.stageTrace, "[stage] cycle=%d IF pc=0x%x word=0x%08x predicted_src=%v predicted_target=0x%x\n",
			p.cycleCount, p.pc, res.Word, res.PredictedTaken, res.PredictedTarget)
	}

	return reg
}

// dumpLatches prints the four pipeline registers (and the PC) before or
// after the clock's latch commit.
func (p *Pipeline) dumpLatches(phase string) {
	if p.regTrace == nil {
		return
	}
	fmt.Fprintf(p.regTrace, "[%s] cycle=%d pc=0x%x\n", phase, p.cycleCount, p.pc)
	fmt.Fprintf(p.regTrace, "  IF/ID  valid=%v pc=0x%x word=0x%08x\n",
		p.ifid.Valid, p.ifid.PC, p.ifid.InstructionWord)
	fmt.Fprintf(p.regTrace, "  ID/EX  valid=%v pc=0x%x op=%s\n",
		p.idex.Valid, p.idex.PC, opName(p.idex.Inst))
	fmt.Fprintf(p.regTrace, "  EX/MEM valid=%v pc=0x%x op=%s alu_out=0x%x\n",
		p.exmem.Valid, p.exmem.PC, opName(p.exmem.Inst), p.exmem.ALUOut)
	fmt.Fprintf(p.regTrace, "  MEM/WB valid=%v pc=0x%x op=%s regval=0x%x\n",
		p.memwb.Valid, p.memwb.PC, opName(p.memwb.Inst), p.memwb.RegVal)
}

func opName(inst *insts.Instruction) string {
	if inst == nil {
		return "noop"
	}
	return inst.Op.String()
}
