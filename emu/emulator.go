package emu

import (
	"fmt"
	"io"
	"os"

	"github.com/rvsim/rvsim/callstack"
	"github.com/rvsim/rvsim/insts"
)

// StepResult reports the outcome of executing a single instruction.
type StepResult struct {
	// Halted is true if the program terminated (ebreak).
	Halted bool
	// ExitCode is the raw x10 value at halt (0 = good, non-zero = bad).
	ExitCode int64
	// Err is set on a fatal execute fault. Decode failures are never
	// raised here; the single-cycle core treats unknown words as noops.
	Err error
}

// Emulator is the single-cycle RV64IM core: it fetches, decodes, executes,
// and commits one instruction per Step call.
type Emulator struct {
	Reg    *RegFile
	Mem    *Memory
	Tracer *callstack.Tracer

	decoder *insts.Decoder
	alu     *ALU
	lsu     *LoadStoreUnit
	symbols map[uint64]string

	pc uint64

	instructionCount uint64
	maxInstructions  uint64

	itrace io.Writer
	mtrace io.Writer
	ftrace io.Writer
}

// Option configures an Emulator.
type Option func(*Emulator)

// WithMaxInstructions bounds the number of instructions Run will execute.
// Zero (the default) means no limit.
func WithMaxInstructions(max uint64) Option {
	return func(e *Emulator) { e.maxInstructions = max }
}

// WithITrace enables per-instruction trace output to w.
func WithITrace(w io.Writer) Option {
	return func(e *Emulator) { e.itrace = w }
}

// WithMTrace enables per-memory-access trace output to w.
func WithMTrace(w io.Writer) Option {
	return func(e *Emulator) { e.mtrace = w }
}

// WithFTrace enables per-call trace output to w.
func WithFTrace(w io.Writer) Option {
	return func(e *Emulator) { e.ftrace = w }
}

// WithSymbols supplies the ELF function symbol table, used to gate
// call-stack tracing.
func WithSymbols(symbols map[uint64]string) Option {
	return func(e *Emulator) { e.symbols = symbols }
}

// NewEmulator creates a single-cycle emulator over the given register file
// and memory.
func NewEmulator(reg *RegFile, mem *Memory, opts ...Option) *Emulator {
	e := &Emulator{
		Reg:     reg,
		Mem:     mem,
		Tracer:  callstack.New(),
		decoder: insts.NewDecoder(),
		alu:     NewALU(),
		lsu:     NewLoadStoreUnit(mem),
		symbols: map[uint64]string{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// SetPC sets the program counter, typically to the ELF entry point.
func (e *Emulator) SetPC(pc uint64) {
	e.pc = pc
}

// PC returns the current program counter.
func (e *Emulator) PC() uint64 {
	return e.pc
}

// InstructionCount returns the number of instructions committed so far.
func (e *Emulator) InstructionCount() uint64 {
	return e.instructionCount
}

// Unimplemented reports whether op is structurally decoded (so the decoder
// does not fail on it) but has no execution semantics: ecall, the CSR and
// privileged instructions, fences, atomics, and floating point.
func Unimplemented(op insts.Op) bool {
	switch op {
	case insts.OpECALL, insts.OpMRET, insts.OpSRET, insts.OpWFI,
		insts.OpFence, insts.OpFenceI,
		insts.OpAMO, insts.OpFloatLoadStore, insts.OpFloatOp, insts.OpFusedMultiplyAdd,
		insts.OpCSRRW, insts.OpCSRRS, insts.OpCSRRC,
		insts.OpCSRRWI, insts.OpCSRRSI, insts.OpCSRRCI:
		return true
	default:
		return false
	}
}

// Step fetches, decodes, and executes exactly one instruction. An unknown
// opcode is logged and treated as a noop so half-implemented test binaries
// can keep advancing; the PC still moves to the next word.
func (e *Emulator) Step() StepResult {
	word := e.Mem.Read32(e.pc)
	inst, err := e.decoder.Decode(word)
	if err != nil {
		fmt.Fprintf(os.Stderr, "emu: unknown instruction 0x%08x at pc=0x%x, treating as noop\n", word, e.pc)
		e.pc += 4
		return StepResult{}
	}

	if e.itrace != nil {
		fmt.Fprintf(e.itrace, "pc=0x%016x raw=0x%08x %s\n", e.pc, word, inst.Op)
	}

	if Unimplemented(inst.Op) {
		return StepResult{Err: &UnimplementedError{PC: e.pc, Op: inst.Op.String()}}
	}

	if inst.Op == insts.OpEBREAK {
		code := int64(e.Reg.Read(10))
		e.Reg.RestoreZero()
		return StepResult{Halted: true, ExitCode: code}
	}

	rs1 := e.Reg.Read(inst.Rs1)
	rs2 := e.Reg.Read(inst.Rs2)
	imm := insts.Sext(inst.Imm, inst.Decode.Sext)

	var operand2 uint64
	if inst.Exec.AluSrc {
		operand2 = imm
	} else {
		operand2 = rs2
	}

	nextPC := e.pc + 4

	if inst.Branch.IsBranch {
		switch inst.Op {
		case insts.OpJAL:
			target := BranchTarget(inst.Op, e.pc, imm, 0)
			e.Reg.Write(inst.Rd, e.pc+4)
			if IsCall(inst.Op, inst.Rd) {
				e.Tracer.Call(e.pc, target, e.symbols)
				if e.ftrace != nil {
					fmt.Fprintf(e.ftrace, "pc=0x%016x call 0x%016x %s\n", e.pc, target, e.symbols[target])
				}
			}
			nextPC = target
		case insts.OpJALR:
			target := BranchTarget(inst.Op, e.pc, imm, rs1)
			e.Reg.Write(inst.Rd, e.pc+4)
			if IsCanonicalReturn(inst.Op, inst.Rd, inst.Rs1, inst.Imm) {
				e.Tracer.Ret(e.pc)
				if e.ftrace != nil {
					fmt.Fprintf(e.ftrace, "pc=0x%016x ret  0x%016x\n", e.pc, target)
				}
			}
			nextPC = target
		default:
			// Conditional branch.
			if EvaluateBranch(inst.Op, rs1, rs2) {
				nextPC = BranchTarget(inst.Op, e.pc, imm, 0)
			}
		}
	} else if inst.Mem.MemRead || inst.Mem.MemWrite {
		addr, err := e.alu.Execute(inst.Exec.AluOp, rs1, operand2, e.pc, inst.Raw)
		if err != nil {
			return StepResult{Err: err}
		}
		width, signed := Width(inst.Op)
		if inst.Mem.MemRead {
			val := e.lsu.Load(addr, width, signed)
			if e.mtrace != nil {
				fmt.Fprintf(e.mtrace, "pc=0x%016x load  addr=0x%016x width=%d val=0x%016x\n", e.pc, addr, width, val)
			}
			e.Reg.Write(inst.Rd, val)
		} else {
			if e.mtrace != nil {
				fmt.Fprintf(e.mtrace, "pc=0x%016x store addr=0x%016x width=%d val=0x%016x\n", e.pc, addr, width, rs2)
			}
			e.lsu.Store(addr, width, rs2)
		}
	} else if inst.Wb.MemToReg {
		result, err := e.alu.Execute(inst.Exec.AluOp, rs1, operand2, e.pc, inst.Raw)
		if err != nil {
			return StepResult{Err: err}
		}
		e.Reg.Write(inst.Rd, result)
	}

	e.Reg.RestoreZero()
	e.instructionCount++
	e.pc = nextPC
	return StepResult{}
}

// Run steps the emulator until ebreak halts it, a fault occurs, or the
// configured instruction budget is exhausted. Returns the exit code and
// any fatal error.
func (e *Emulator) Run() (int64, error) {
	for {
		if e.maxInstructions != 0 && e.instructionCount >= e.maxInstructions {
			return 0, nil
		}
		res := e.Step()
		if res.Err != nil {
			return 0, res.Err
		}
		if res.Halted {
			return res.ExitCode, nil
		}
	}
}
