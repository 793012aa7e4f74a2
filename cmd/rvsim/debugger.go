package main

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/rvsim/rvsim/insts"
)

const debuggerHelp = `Commands:
  help (h)      show this help
  c             run until the program halts
  q             quit
  si [N]        step N clocks (default 1)
  info r        dump all registers and the PC
  info <reg>    print one register (ABI name, xN, or pc)
  x N ADDR      print N 64-bit words starting at ADDR (hex accepted)
  bt            print the call-stack backtrace
`

// debugger is the interactive REPL over a simulation: step clocks, inspect
// registers and memory, print backtraces.
type debugger struct {
	sim *simulation
	in  io.Reader
	out io.Writer
}

func newDebugger(sim *simulation, in io.Reader, out io.Writer) *debugger {
	return &debugger{sim: sim, in: in, out: out}
}

// Run reads commands until q, EOF, program halt via c, or a runtime fault.
// Returns the process exit status.
func (d *debugger) Run() int {
	scanner := bufio.NewScanner(d.in)
	for {
		fmt.Fprint(d.out, "(rvsim) ")
		if !scanner.Scan() {
			return 0
		}
		quit, status := d.execute(scanner.Text())
		if quit {
			return status
		}
	}
}

// execute runs one command line. Parse errors are recovered locally: report
// and prompt again.
func (d *debugger) execute(line string) (quit bool, status int) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false, 0
	}

	switch fields[0] {
	case "help", "h":
		fmt.Fprint(d.out, debuggerHelp)

	case "q":
		return true, 0

	case "c":
		for !d.sim.core.Halted() && d.sim.core.Err() == nil {
			d.sim.core.StepClock()
		}
		if err := d.sim.core.Err(); err != nil {
			fmt.Fprintf(d.out, "Runtime fault: %v\n", err)
			return true, exitRuntimeFault
		}
		code := d.sim.core.ExitCode()
		fmt.Fprintf(d.out, "Program halted with exit code %d\n", code)
		return true, int(code & 0xFF)

	case "si":
		n := 1
		if len(fields) > 1 {
			parsed, err := strconv.Atoi(fields[1])
			if err != nil || parsed < 1 {
				fmt.Fprintf(d.out, "si: bad step count %q\n", fields[1])
				return false, 0
			}
			n = parsed
		}
		for i := 0; i < n && !d.sim.core.Halted() && d.sim.core.Err() == nil; i++ {
			d.sim.core.StepClock()
		}
		if err := d.sim.core.Err(); err != nil {
			fmt.Fprintf(d.out, "Runtime fault: %v\n", err)
			return true, exitRuntimeFault
		}
		if d.sim.core.Halted() {
			fmt.Fprintf(d.out, "Program halted with exit code %d\n", d.sim.core.ExitCode())
		} else {
			fmt.Fprintf(d.out, "pc = 0x%016x\n", d.sim.core.PC())
		}

	case "info":
		if len(fields) < 2 {
			fmt.Fprintln(d.out, "info: missing argument (r or a register name)")
			return false, 0
		}
		d.info(fields[1])

	case "x":
		if len(fields) != 3 {
			fmt.Fprintln(d.out, "x: usage: x N ADDR")
			return false, 0
		}
		d.examine(fields[1], fields[2])

	case "bt":
		bt := d.sim.tracer.FormatBacktrace()
		if !strings.HasSuffix(bt, "\n") {
			bt += "\n"
		}
		fmt.Fprint(d.out, bt)

	default:
		fmt.Fprintf(d.out, "unknown command %q (try help)\n", fields[0])
	}

	return false, 0
}

func (d *debugger) info(name string) {
	if name == "r" {
		dumpRegisters(d.out, d.sim.regFile, d.sim.core.PC())
		return
	}
	if name == "pc" {
		fmt.Fprintf(d.out, "pc = 0x%016x\n", d.sim.core.PC())
		return
	}
	reg, ok := parseRegisterName(name)
	if !ok {
		fmt.Fprintf(d.out, "info: unknown register %q\n", name)
		return
	}
	fmt.Fprintf(d.out, "%s = 0x%016x\n", name, d.sim.regFile.Read(reg))
}

func (d *debugger) examine(countArg, addrArg string) {
	count, err := strconv.Atoi(countArg)
	if err != nil || count < 1 {
		fmt.Fprintf(d.out, "x: bad word count %q\n", countArg)
		return
	}
	var addr uint64
	if strings.HasPrefix(addrArg, "0x") {
		addr, err = strconv.ParseUint(strings.TrimPrefix(addrArg, "0x"), 16, 64)
	} else {
		// No 0x prefix; parse as decimal.
		addr, err = strconv.ParseUint(addrArg, 10, 64)
	}
	if err != nil {
		fmt.Fprintf(d.out, "x: bad address %q\n", addrArg)
		return
	}
	for i := 0; i < count; i++ {
		a := addr + uint64(i*8)
		fmt.Fprintf(d.out, "0x%016x: 0x%016x\n", a, d.sim.memory.Read64(a))
	}
}

// parseRegisterName resolves an ABI register name (a0, sp, ra, ...) or an
// xN index to the register number.
func parseRegisterName(name string) (uint8, bool) {
	if strings.HasPrefix(name, "x") {
		n, err := strconv.Atoi(name[1:])
		if err == nil && n >= 0 && n < 32 {
			return uint8(n), true
		}
		return 0, false
	}
	for i := 0; i < 32; i++ {
		if insts.RegName(uint8(i)) == name {
			return uint8(i), true
		}
	}
	return 0, false
}
