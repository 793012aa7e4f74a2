package pipeline_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/rvsim/rvsim/emu"
	"github.com/rvsim/rvsim/insts"
	"github.com/rvsim/rvsim/timing/pipeline"
)

type recordingTracer struct {
	calls []uint64
	rets  []uint64
}

func (t *recordingTracer) Call(site, target uint64, symbols map[uint64]string) {
	t.calls = append(t.calls, target)
}

func (t *recordingTracer) Ret(pc uint64) {
	t.rets = append(t.rets, pc)
}

var _ = Describe("Stages", func() {
	Describe("FetchStage", func() {
		var (
			mem *emu.Memory
			bp  *pipeline.BranchPredictor
			fs  *pipeline.FetchStage
		)

		BeforeEach(func() {
			mem = emu.NewMemory(0x1000, 0x1000)
			bp = pipeline.NewBranchPredictor(pipeline.DynamicPredict, pipeline.TwoBit)
			fs = pipeline.NewFetchStage(mem, bp)
		})

		It("reads the instruction word at the PC", func() {
			mem.Write32(0x1000, addi(5, 0, 1))
			res := fs.Fetch(0x1000)
			Expect(res.Word).To(Equal(addi(5, 0, 1)))
			Expect(res.IsControl).To(BeFalse())
			Expect(res.PredictedTaken).To(BeFalse())
		})

		It("predicts jal taken with the BTB target once observed", func() {
			mem.Write32(0x1000, jal(1, 0x100))
			bp.UpdateJump(0x1000, 0x1100)
			res := fs.Fetch(0x1000)
			Expect(res.IsControl).To(BeTrue())
			Expect(res.PredictedTaken).To(BeTrue())
			Expect(res.PredictedTarget).To(Equal(uint64(0x1100)))
		})

		It("predicts jal taken with a zero target on a compulsory BTB miss", func() {
			mem.Write32(0x1000, jal(1, 0x100))
			res := fs.Fetch(0x1000)
			Expect(res.IsControl).To(BeTrue())
			Expect(res.PredictedTaken).To(BeTrue())
			Expect(res.PredictedTarget).To(Equal(uint64(0)))
		})

		It("predicts a first-sight conditional not-taken", func() {
			mem.Write32(0x1000, beq(0, 0, 8))
			res := fs.Fetch(0x1000)
			Expect(res.PredictedTaken).To(BeFalse())
		})

		It("pops the RAS for a canonical return", func() {
			mem.Write32(0x1000, jalr(0, 1, 0))
			bp.PushCall(0x4004)
			res := fs.Fetch(0x1000)
			Expect(res.PredictedTaken).To(BeTrue())
			Expect(res.PredictedTarget).To(Equal(uint64(0x4004)))
		})
	})

	Describe("DecodeStage", func() {
		var (
			reg *emu.RegFile
			ds  *pipeline.DecodeStage
		)

		BeforeEach(func() {
			reg = &emu.RegFile{}
			ds = pipeline.NewDecodeStage(reg)
		})

		It("reads source registers and sign-extends the immediate", func() {
			reg.Write(7, 123)
			res := ds.Decode(addi(5, 7, -1))
			Expect(res.Src1Value).To(Equal(uint64(123)))
			Expect(res.Imm).To(Equal(uint64(0xFFFFFFFFFFFFFFFF)))
			Expect(res.RegWrite).To(BeTrue())
			Expect(res.MemRead).To(BeFalse())
		})

		It("does not mark rd=0 writers as register writes", func() {
			res := ds.Decode(addi(0, 0, 5))
			Expect(res.RegWrite).To(BeFalse())
		})

		It("marks loads as memory reads with mem-to-reg", func() {
			res := ds.Decode(ld(5, 10, 8))
			Expect(res.MemRead).To(BeTrue())
			Expect(res.MemToReg).To(BeTrue())
			Expect(res.Imm).To(Equal(uint64(8)))
		})

		It("decodes an unrecognized word to a noop carrying the fault", func() {
			res := ds.Decode(0)
			Expect(res.Inst.IsNoop()).To(BeTrue())
			Expect(res.Fault).To(HaveOccurred())
		})
	})

	Describe("ExecuteStage", func() {
		var (
			bp     *pipeline.BranchPredictor
			tracer *recordingTracer
			es     *pipeline.ExecuteStage
		)

		decode := func(word uint32) *insts.Instruction {
			inst, err := insts.NewDecoder().Decode(word)
			Expect(err).NotTo(HaveOccurred())
			return inst
		}

		BeforeEach(func() {
			bp = pipeline.NewBranchPredictor(pipeline.DynamicPredict, pipeline.TwoBit)
			tracer = &recordingTracer{}
			es = pipeline.NewExecuteStage(bp, tracer, map[uint64]string{0x2000: "fn"})
		})

		It("computes an ALU result from the immediate operand", func() {
			inst := decode(addi(5, 7, 3))
			idex := pipeline.IDEXRegister{
				Valid: true, PC: 0x1000, Inst: inst,
				AluOp: inst.Exec.AluOp, AluSrc: true, Imm: 3,
			}
			res := es.Execute(&idex, 4, 0)
			Expect(res.Err).NotTo(HaveOccurred())
			Expect(res.ALUOut).To(Equal(uint64(7)))
		})

		It("resolves a taken conditional branch and flags the misprediction", func() {
			inst := decode(beq(5, 6, 16))
			idex := pipeline.IDEXRegister{
				Valid: true, PC: 0x1000, Inst: inst, IsBranch: true,
				Imm: 16, PredictedTaken: false,
			}
			res := es.Execute(&idex, 9, 9)
			Expect(res.BranchTaken).To(BeTrue())
			Expect(res.BranchTarget).To(Equal(uint64(0x1010)))
			Expect(res.Mispredicted).To(BeTrue())
		})

		It("accepts a correctly predicted branch", func() {
			inst := decode(beq(5, 6, 16))
			idex := pipeline.IDEXRegister{
				Valid: true, PC: 0x1000, Inst: inst, IsBranch: true,
				Imm: 16, PredictedTaken: true, PredictedTarget: 0x1010,
			}
			res := es.Execute(&idex, 9, 9)
			Expect(res.Mispredicted).To(BeFalse())
		})

		It("notifies the tracer and the RAS on a call", func() {
			inst := decode(jal(1, 0x1000))
			idex := pipeline.IDEXRegister{
				Valid: true, PC: 0x1000, Inst: inst, IsBranch: true, Imm: 0x1000,
			}
			res := es.Execute(&idex, 0, 0)
			Expect(res.IsCall).To(BeTrue())
			Expect(res.ALUOut).To(Equal(uint64(0x1004)))
			Expect(tracer.calls).To(Equal([]uint64{0x2000}))
			Expect(bp.PredictReturn(0x9999).Target).To(Equal(uint64(0x1004)))
		})

		It("notifies the tracer on a canonical return", func() {
			inst := decode(jalr(0, 1, 0))
			idex := pipeline.IDEXRegister{
				Valid: true, PC: 0x2010, Inst: inst, IsBranch: true,
				PredictedTaken: true, PredictedTarget: 0x1004,
			}
			res := es.Execute(&idex, 0x1004, 0)
			Expect(res.IsReturn).To(BeTrue())
			Expect(res.BranchTarget).To(Equal(uint64(0x1004)))
			Expect(res.Mispredicted).To(BeFalse())
			Expect(tracer.rets).To(Equal([]uint64{0x2010}))
		})

		It("surfaces a divide-by-zero fault", func() {
			inst := decode(div(7, 5, 6))
			idex := pipeline.IDEXRegister{
				Valid: true, PC: 0x1000, Inst: inst, AluOp: inst.Exec.AluOp,
			}
			res := es.Execute(&idex, 10, 0)
			Expect(res.Err).To(BeAssignableToTypeOf(&emu.DividedByZeroError{}))
		})
	})

	Describe("MemoryStage", func() {
		var (
			mem *emu.Memory
			ms  *pipeline.MemoryStage
		)

		BeforeEach(func() {
			mem = emu.NewMemory(0x1000, 0x1000)
			ms = pipeline.NewMemoryStage(mem)
		})

		It("sign-extends narrow signed loads", func() {
			mem.Write8(0x1800, 0x80)
			exmem := pipeline.EXMEMRegister{
				Valid: true, MemRead: true, ALUOut: 0x1800,
				MemBitwidth: 8, MemSigned: true,
			}
			Expect(ms.Access(&exmem, 0)).To(Equal(uint64(0xFFFFFFFFFFFFFF80)))
		})

		It("zero-extends unsigned loads", func() {
			mem.Write16(0x1800, 0x8001)
			exmem := pipeline.EXMEMRegister{
				Valid: true, MemRead: true, ALUOut: 0x1800,
				MemBitwidth: 16, MemSigned: false,
			}
			Expect(ms.Access(&exmem, 0)).To(Equal(uint64(0x8001)))
		})

		It("writes the store value at the computed address", func() {
			exmem := pipeline.EXMEMRegister{
				Valid: true, MemWrite: true, ALUOut: 0x1808,
				MemBitwidth: 64, StoreValue: 0xCAFE,
			}
			ms.Access(&exmem, 0)
			Expect(mem.Read64(0x1808)).To(Equal(uint64(0xCAFE)))
		})

		It("substitutes the forwarded value for a memory-to-memory copy", func() {
			exmem := pipeline.EXMEMRegister{
				Valid: true, MemWrite: true, ALUOut: 0x1808,
				MemBitwidth: 64, StoreValue: 0xBAD, M2MForward: true,
			}
			ms.Access(&exmem, 0xC0FFEE)
			Expect(mem.Read64(0x1808)).To(Equal(uint64(0xC0FFEE)))
		})
	})

	Describe("WritebackStage", func() {
		It("commits the result to rd", func() {
			reg := &emu.RegFile{}
			ws := pipeline.NewWritebackStage(reg)
			memwb := pipeline.MEMWBRegister{Valid: true, RegWrite: true, Rd: 5, RegVal: 77}
			ws.Writeback(&memwb)
			Expect(reg.Read(5)).To(Equal(uint64(77)))
		})

		It("does nothing for non-writing instructions", func() {
			reg := &emu.RegFile{}
			ws := pipeline.NewWritebackStage(reg)
			memwb := pipeline.MEMWBRegister{Valid: true, RegWrite: false, Rd: 5, RegVal: 77}
			ws.Writeback(&memwb)
			Expect(reg.Read(5)).To(Equal(uint64(0)))
		})
	})
})
