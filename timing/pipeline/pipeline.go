// Package pipeline simulates the five-stage in-order core: fetch, decode,
// execute, memory, writeback, each clock computed in reverse program order
// (WB, MEM, EX, ID, IF) against the current latches so that a register
// written by WB this clock is visible to ID's read this same clock,
// emulating mid-cycle write-through without shared mutable state.
package pipeline

import (
	"io"

	"github.com/rvsim/rvsim/emu"
	"github.com/rvsim/rvsim/insts"
	"github.com/rvsim/rvsim/timing/latency"
)

// Stats reports the pipeline's cycle-accounting and hazard/predictor
// statistics for a completed or in-progress run.
type Stats struct {
	Cycles            uint64
	ExecutedInstCount uint64

	// StallCycles counts every cycle in which the pipeline made no fetch
	// progress: data-hazard stalls, misprediction squash cycles, and
	// all-stall control bubbles.
	StallCycles uint64

	Hazard    HazardStats
	Predictor PredictorStats
}

// CPI returns cycles per instruction.
func (s Stats) CPI() float64 {
	if s.ExecutedInstCount == 0 {
		return 0
	}
	return float64(s.Cycles) / float64(s.ExecutedInstCount)
}

// Pipeline is the five-stage in-order core.
type Pipeline struct {
	fetch  *FetchStage
	decode *DecodeStage
	exec   *ExecuteStage
	mem    *MemoryStage
	wb     *WritebackStage

	hazard    *HazardUnit
	predictor *BranchPredictor
	latencies *latency.Table

	regFile *emu.RegFile
	memory  *emu.Memory

	tracer  CallStackTracer
	symbols map[uint64]string

	ifid  IFIDRegister
	idex  IDEXRegister
	exmem EXMEMRegister
	memwb MEMWBRegister

	// New latch values computed by the stage functions each clock, committed
	// atomically at the end of Tick.
	pendingIdex  IDEXRegister
	pendingExmem EXMEMRegister
	pendingMemwb MEMWBRegister

	pc uint64

	stallCyclesRemaining  int
	controlStallRemaining int
	controlStallPending   bool
	draining              bool

	cycleCount       uint64
	instructionCount uint64
	stallCycles      uint64
	maxCycles        uint64

	halted   bool
	exitCode int64
	faultErr error

	itrace      io.Writer
	mtrace      io.Writer
	hazardTrace io.Writer
	stageTrace  io.Writer
	regTrace    io.Writer
}

// Option configures a Pipeline at construction.
type Option func(*Pipeline)

// WithDataHazardPolicy selects naive-stall or data-forward hazard handling.
func WithDataHazardPolicy(policy DataHazardPolicy) Option {
	return func(p *Pipeline) { p.hazard = NewHazardUnit(policy) }
}

// WithControlPolicy selects the branch predictor's policy.
func WithControlPolicy(policy ControlPolicy, width BHTWidth) Option {
	return func(p *Pipeline) { p.predictor = NewBranchPredictor(policy, width) }
}

// WithTracer installs a call-stack tracer and the symbol table used to
// decide whether a jal rd=1 is a resolved call.
func WithTracer(tracer CallStackTracer, symbols map[uint64]string) Option {
	return func(p *Pipeline) {
		p.tracer = tracer
		p.symbols = symbols
	}
}

// WithTimingConfig overrides the multiply/divide extra-cycle charges.
func WithTimingConfig(config *latency.TimingConfig) Option {
	return func(p *Pipeline) { p.latencies = latency.NewTableWithConfig(config) }
}

// WithMaxCycles bounds Run to at most n clocks. Zero (the default) means no
// bound.
func WithMaxCycles(n uint64) Option {
	return func(p *Pipeline) { p.maxCycles = n }
}

// WithITrace enables per-instruction trace output (at EX retire) to w.
func WithITrace(w io.Writer) Option {
	return func(p *Pipeline) { p.itrace = w }
}

// WithMTrace enables per-memory-access trace output to w.
func WithMTrace(w io.Writer) Option {
	return func(p *Pipeline) { p.mtrace = w }
}

// WithHazardTrace enables hazard-decision trace output to w.
func WithHazardTrace(w io.Writer) Option {
	return func(p *Pipeline) { p.hazardTrace = w }
}

// WithStageTrace enables per-clock stage-activity output to w.
func WithStageTrace(w io.Writer) Option {
	return func(p *Pipeline) { p.stageTrace = w }
}

// WithRegisterTrace enables pre/post pipeline-register dumps to w.
func WithRegisterTrace(w io.Writer) Option {
	return func(p *Pipeline) { p.regTrace = w }
}

// noopTracer discards call/ret notifications; the default when the caller
// doesn't care about backtraces.
type noopTracer struct{}

func (noopTracer) Call(uint64, uint64, map[uint64]string) {}
func (noopTracer) Ret(uint64)                             {}

// NewPipeline creates a five-stage pipeline over regFile and memory,
// defaulting to data-forward hazard handling and a two-bit dynamic
// predictor.
func NewPipeline(regFile *emu.RegFile, memory *emu.Memory, opts ...Option) *Pipeline {
	p := &Pipeline{
		regFile:   regFile,
		memory:    memory,
		hazard:    NewHazardUnit(DataForward),
		predictor: NewBranchPredictor(DynamicPredict, TwoBit),
		latencies: latency.NewTable(),
		tracer:    noopTracer{},
	}

	for _, opt := range opts {
		opt(p)
	}

	p.fetch = NewFetchStage(memory, p.predictor)
	p.decode = NewDecodeStage(regFile)
	p.exec = NewExecuteStage(p.predictor, p.tracer, p.symbols)
	p.mem = NewMemoryStage(memory)
	p.wb = NewWritebackStage(regFile)

	return p
}

// SetPC sets the program counter and initializes all four latches' PCs to
// it, so log lines naming a latch's PC read consistently before anything
// retires.
func (p *Pipeline) SetPC(pc uint64) {
	p.pc = pc
	p.ifid.PC = pc
	p.idex.PC = pc
	p.exmem.PC = pc
	p.memwb.PC = pc
}

// PC returns the current program counter.
func (p *Pipeline) PC() uint64 { return p.pc }

// Halted reports whether the pipeline has halted.
func (p *Pipeline) Halted() bool { return p.halted }

// ExitCode returns the halting ebreak's x10 value.
func (p *Pipeline) ExitCode() int64 { return p.exitCode }

// Err returns a fault raised by a retiring instruction (DividedByZero,
// IllegalInstruction, Unimplemented, unrecognized encoding), if any.
func (p *Pipeline) Err() error { return p.faultErr }

// Stats returns the pipeline's accumulated statistics.
func (p *Pipeline) Stats() Stats {
	return Stats{
		Cycles:            p.cycleCount,
		ExecutedInstCount: p.instructionCount,
		StallCycles:       p.stallCycles,
		Hazard:            p.hazard.Stats(),
		Predictor:         p.predictor.Stats(),
	}
}

// usesRegisters reports which of rs1/rs2 a decoded instruction actually
// reads, so hazard detection doesn't false-positive on formats (U, J) that
// carry stale Rs1/Rs2 bit-fields with no real dependency.
func usesRegisters(inst *insts.Instruction) (usesRs1, usesRs2 bool) {
	switch inst.Format {
	case insts.FormatR, insts.FormatR4:
		return true, true
	case insts.FormatI:
		return true, false
	case insts.FormatS, insts.FormatB:
		return true, true
	default:
		return false, false
	}
}

// Tick advances the pipeline by one clock: the reverse-order stage schedule,
// hazard/forward computation, next-PC selection, the atomic latch commit,
// and the per-instruction extra-cycle timing charges.
func (p *Pipeline) Tick() {
	if p.halted || p.faultErr != nil {
		return
	}

	p.cycleCount++
	p.dumpLatches("pre")

	// An in-progress multi-cycle stall freezes IF/ID and the PC; decode
	// hazard detection is suppressed so the same hazard is not re-counted.
	stalling := p.stallCyclesRemaining > 0

	// Stages run in reverse program order against the current latches.
	p.doWriteback()
	if p.halted {
		p.regFile.RestoreZero()
		return
	}
	p.doMemory()

	mispredicted, recoveryPC, drained := p.doExecute()
	if p.faultErr != nil {
		return
	}

	var stallCycles int
	if !stalling && !drained {
		stallCycles = p.doDecode()
	}

	var fetched IFIDRegister
	fetchFroze := stalling || stallCycles > 0 || p.draining || drained || p.controlStallRemaining > 0
	if !fetchFroze {
		fetched = p.doFetch()
	}

	if stallCycles > 0 {
		p.hazard.RecordStall(uint64(stallCycles))
		p.stallCyclesRemaining = stallCycles
		stalling = true
	}

	// Atomic latch commit.
	if stalling {
		p.stallCyclesRemaining--
		p.stallCycles++
		// IF/ID keeps its contents; the instruction behind it becomes a
		// bubble.
		p.idex = IDEXRegister{}
	} else {
		p.ifid = fetched
		p.idex = p.pendingIdex
	}
	p.exmem = p.pendingExmem
	p.memwb = p.pendingMemwb

	// Next-PC selection. Misprediction recovery overrides a stall: the
	// squash discards the very instructions the stall was protecting.
	switch {
	case mispredicted:
		p.pc = recoveryPC
		p.ifid = IFIDRegister{}
		p.idex = IDEXRegister{}
		p.stallCyclesRemaining = 0
		if p.controlStallRemaining > 0 {
			// All-stall: the squashed slots were already fetch bubbles;
			// only the resolution cycle itself is newly lost.
			p.controlStallRemaining = 0
			p.stallCycles++
		} else {
			p.stallCycles += 2
		}
	case drained:
		// A halting ebreak reached EX: squash the younger wrong-path
		// instructions and stop fetching while it drains to WB.
		p.draining = true
		p.ifid = IFIDRegister{}
		p.idex = IDEXRegister{}
		p.stallCyclesRemaining = 0
	case stalling || p.draining:
		// PC unchanged.
	case p.controlStallRemaining > 0:
		p.controlStallRemaining--
		p.stallCycles++
	case fetched.Valid && fetched.PredictedTaken:
		p.pc = fetched.PredictedTarget
	default:
		p.pc += 4
	}

	// Under the all-stall control policy, a just-fetched branch freezes
	// fetch for the next two clocks until EX resolves it.
	if p.controlStallPending {
		p.controlStallPending = false
		p.controlStallRemaining = 2
	}

	p.regFile.RestoreZero()
	p.dumpLatches("post")
}

// Run ticks the pipeline until a halting ebreak retires, a fault is raised,
// or the configured cycle budget is exhausted. Returns the exit code and any
// fatal error.
func (p *Pipeline) Run() (int64, error) {
	for !p.halted && p.faultErr == nil {
		if p.maxCycles != 0 && p.cycleCount >= p.maxCycles {
			break
		}
		p.Tick()
	}
	return p.exitCode, p.faultErr
}
