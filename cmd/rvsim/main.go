// Package main provides the entry point for rvsim, a functional and
// micro-architectural simulator for RV64IM user-level programs.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/rvsim/rvsim/callstack"
	"github.com/rvsim/rvsim/emu"
	"github.com/rvsim/rvsim/insts"
	"github.com/rvsim/rvsim/loader"
	"github.com/rvsim/rvsim/timing/latency"
	"github.com/rvsim/rvsim/timing/pipeline"
)

var (
	inputPath = flag.String("input", "", "Path to the RV64 ELF executable (required)")
	cpuMode   = flag.String("cpu-mode", "single", "Execution core: single | multi | pipeline")
	debugMode = flag.Bool("debug", false, "Enter the interactive debugger instead of batch execution")

	itrace = flag.Bool("itrace", false, "Trace every executed instruction")
	mtrace = flag.Bool("mtrace", false, "Trace every memory access")
	ftrace = flag.Bool("ftrace", false, "Trace every call and return")

	dataHazardPolicy = flag.String("data-hazard-policy", "data-forward",
		"Pipeline data-hazard policy: naive-stall | data-forward")
	controlPolicy = flag.String("control-policy", "dynamic-predict",
		"Pipeline control policy: all-stall | always-not-taken | dynamic-predict")
	bhtWidth = flag.Int("bht-width", 2, "Dynamic-predict BHT counter width: 1 | 2")

	configPath = flag.String("config", "", "Path to a timing configuration JSON file")

	dumpPipelineRegs = flag.Bool("dump-pipeline-regs", false, "Dump pre/post pipeline-register state each clock")
	dumpStageInfo    = flag.Bool("dump-stage-info", false, "Dump pipeline stage activity each clock")
	dumpHazardInfo   = flag.Bool("dump-hazard-info", false, "Dump hazard-unit decisions")
)

const (
	exitLoadError    = 1
	exitRuntimeFault = 2
)

func main() {
	flag.Parse()
	os.Exit(realMain())
}

func realMain() int {
	if *inputPath == "" {
		fmt.Fprintf(os.Stderr, "Usage: rvsim --input <program.elf> [options]\n\nOptions:\n")
		flag.PrintDefaults()
		return exitLoadError
	}

	prog, err := loader.Load(*inputPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading program: %v\n", err)
		return exitLoadError
	}

	sim, err := newSimulation(prog)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return exitLoadError
	}

	if *debugMode {
		dbg := newDebugger(sim, os.Stdin, os.Stdout)
		return dbg.Run()
	}
	return sim.RunBatch(os.Stdout, os.Stderr)
}

// clockedCore is the stepping contract shared by the single-cycle and
// pipelined cores: one clock per StepClock call.
type clockedCore interface {
	StepClock()
	Halted() bool
	ExitCode() int64
	Err() error
	PC() uint64
}

// simulation ties the loaded program, flat memory, register file, call-stack
// tracer, and the selected core together for one run.
type simulation struct {
	prog    *loader.Program
	regFile *emu.RegFile
	memory  *emu.Memory
	tracer  *callstack.Tracer
	core    clockedCore

	pipe *pipeline.Pipeline // nil in single-cycle mode
}

// newSimulation loads the program image into a fresh flat memory and builds
// the core selected by --cpu-mode.
func newSimulation(prog *loader.Program) (*simulation, error) {
	memory := emu.NewMemoryForRange(prog.MinVaddr, prog.MaxVaddr)
	for _, seg := range prog.Segments {
		memory.LoadBytes(seg.VirtAddr, seg.Data)
	}

	regFile := &emu.RegFile{}
	regFile.Write(2, prog.InitialSP)

	sim := &simulation{
		prog:    prog,
		regFile: regFile,
		memory:  memory,
		tracer:  callstack.New(),
	}

	switch *cpuMode {
	case "single":
		opts := []emu.Option{emu.WithSymbols(prog.Symbols)}
		if *itrace {
			opts = append(opts, emu.WithITrace(os.Stdout))
		}
		if *mtrace {
			opts = append(opts, emu.WithMTrace(os.Stdout))
		}
		if *ftrace {
			opts = append(opts, emu.WithFTrace(os.Stdout))
		}
		e := emu.NewEmulator(regFile, memory, opts...)
		e.Tracer = sim.tracer
		e.SetPC(prog.EntryPoint)
		sim.core = &singleCycleCore{e: e}

	case "multi", "pipeline":
		opts, err := pipelineOptions(sim)
		if err != nil {
			return nil, err
		}
		p := pipeline.NewPipeline(regFile, memory, opts...)
		p.SetPC(prog.EntryPoint)
		sim.pipe = p
		sim.core = &pipelinedCore{p: p}

	default:
		return nil, fmt.Errorf("unknown cpu mode %q (want single, multi, or pipeline)", *cpuMode)
	}

	return sim, nil
}

func pipelineOptions(sim *simulation) ([]pipeline.Option, error) {
	var opts []pipeline.Option

	switch *dataHazardPolicy {
	case "naive-stall":
		opts = append(opts, pipeline.WithDataHazardPolicy(pipeline.NaiveStall))
	case "data-forward":
		opts = append(opts, pipeline.WithDataHazardPolicy(pipeline.DataForward))
	default:
		return nil, fmt.Errorf("unknown data hazard policy %q", *dataHazardPolicy)
	}

	width := pipeline.TwoBit
	switch *bhtWidth {
	case 1:
		width = pipeline.OneBit
	case 2:
	default:
		return nil, fmt.Errorf("unsupported BHT width %d (want 1 or 2)", *bhtWidth)
	}

	switch *controlPolicy {
	case "all-stall":
		opts = append(opts, pipeline.WithControlPolicy(pipeline.AllStall, width))
	case "always-not-taken":
		opts = append(opts, pipeline.WithControlPolicy(pipeline.AlwaysNotTaken, width))
	case "dynamic-predict":
		opts = append(opts, pipeline.WithControlPolicy(pipeline.DynamicPredict, width))
	default:
		return nil, fmt.Errorf("unknown control policy %q", *controlPolicy)
	}

	if *configPath != "" {
		config, err := latency.LoadConfig(*configPath)
		if err != nil {
			return nil, err
		}
		if err := config.Validate(); err != nil {
			return nil, err
		}
		opts = append(opts, pipeline.WithTimingConfig(config))
	}

	var tracer pipeline.CallStackTracer = sim.tracer
	if *ftrace {
		tracer = &ftraceTracer{inner: sim.tracer, w: os.Stdout}
	}
	opts = append(opts, pipeline.WithTracer(tracer, sim.prog.Symbols))

	if *itrace {
		opts = append(opts, pipeline.WithITrace(os.Stdout))
	}
	if *mtrace {
		opts = append(opts, pipeline.WithMTrace(os.Stdout))
	}
	if *dumpHazardInfo {
		opts = append(opts, pipeline.WithHazardTrace(os.Stdout))
	}
	if *dumpStageInfo {
		opts = append(opts, pipeline.WithStageTrace(os.Stdout))
	}
	if *dumpPipelineRegs {
		opts = append(opts, pipeline.WithRegisterTrace(os.Stdout))
	}

	return opts, nil
}

// RunBatch executes the program to completion and reports the result.
// Returns the process exit status: the program's x10 (masked to a byte) on a
// clean halt, or 2 on a runtime fault.
func (s *simulation) RunBatch(stdout, stderr io.Writer) int {
	for !s.core.Halted() && s.core.Err() == nil {
		s.core.StepClock()
	}

	if err := s.core.Err(); err != nil {
		fmt.Fprintf(stderr, "Runtime fault: %v\n", err)
		dumpRegisters(stderr, s.regFile, s.core.PC())
		return exitRuntimeFault
	}

	code := s.core.ExitCode()
	verdict := "good"
	if code != 0 {
		verdict = "bad"
	}
	fmt.Fprintf(stdout, "Program halted with exit code %d (%s)\n", code, verdict)

	if s.pipe != nil {
		printStats(stdout, s.pipe.Stats())
	}

	return int(code & 0xFF)
}

func printStats(w io.Writer, stats pipeline.Stats) {
	fmt.Fprintf(w, "\n")
	fmt.Fprintf(w, "Instructions: %d\n", stats.ExecutedInstCount)
	fmt.Fprintf(w, "Cycles:       %d\n", stats.Cycles)
	fmt.Fprintf(w, "CPI:          %.2f\n", stats.CPI())
	fmt.Fprintf(w, "Stall cycles: %d\n", stats.StallCycles)
	fmt.Fprintf(w, "\n")
	fmt.Fprintf(w, "Data hazards:   %d (%d delayed cycles)\n",
		stats.Hazard.DataHazardCount, stats.Hazard.DataHazardDelayedCycles)
	fmt.Fprintf(w, "Predictions:    %d\n", stats.Predictor.Predictions)
	fmt.Fprintf(w, "Mispredictions: %d (%.1f%%)\n",
		stats.Predictor.Mispredictions, 100*stats.Predictor.MispredictionRate())
	fmt.Fprintf(w, "BTB hits:       %d (%d misses)\n",
		stats.Predictor.BTBHits, stats.Predictor.BTBMisses)
	fmt.Fprintf(w, "RAS underflows: %d\n", stats.Predictor.RASUnderflows)
}

func dumpRegisters(w io.Writer, reg *emu.RegFile, pc uint64) {
	fmt.Fprintf(w, "pc   = 0x%016x\n", pc)
	for i := 0; i < 32; i++ {
		fmt.Fprintf(w, "x%-2d  = 0x%016x  (%s)\n", i, reg.Read(uint8(i)), insts.RegName(uint8(i)))
	}
}

// singleCycleCore adapts emu.Emulator to the clockedCore contract: one
// instruction per clock.
type singleCycleCore struct {
	e      *emu.Emulator
	halted bool
	exit   int64
	err    error
}

func (c *singleCycleCore) StepClock() {
	if c.halted || c.err != nil {
		return
	}
	res := c.e.Step()
	if res.Err != nil {
		c.err = res.Err
		return
	}
	if res.Halted {
		c.halted = true
		c.exit = res.ExitCode
	}
}

func (c *singleCycleCore) Halted() bool    { return c.halted }
func (c *singleCycleCore) ExitCode() int64 { return c.exit }
func (c *singleCycleCore) Err() error      { return c.err }
func (c *singleCycleCore) PC() uint64      { return c.e.PC() }

// pipelinedCore adapts pipeline.Pipeline to the clockedCore contract.
type pipelinedCore struct {
	p *pipeline.Pipeline
}

func (c *pipelinedCore) StepClock()      { c.p.Tick() }
func (c *pipelinedCore) Halted() bool    { return c.p.Halted() }
func (c *pipelinedCore) ExitCode() int64 { return c.p.ExitCode() }
func (c *pipelinedCore) Err() error      { return c.p.Err() }
func (c *pipelinedCore) PC() uint64      { return c.p.PC() }

// ftraceTracer logs call/ret events before delegating to the real tracer.
type ftraceTracer struct {
	inner *callstack.Tracer
	w     io.Writer
}

func (t *ftraceTracer) Call(site, target uint64, symbols map[uint64]string) {
	fmt.Fprintf(t.w, "pc=0x%016x call 0x%016x %s\n", site, target, symbols[target])
	t.inner.Call(site, target, symbols)
}

func (t *ftraceTracer) Ret(pc uint64) {
	fmt.Fprintf(t.w, "pc=0x%016x ret\n", pc)
	t.inner.Ret(pc)
}
