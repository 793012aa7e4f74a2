// Package main provides the entry point for rvsim.
// Rvsim is a functional and micro-architectural RV64IM simulator.
//
// For the full CLI, use: go run ./cmd/rvsim
package main

import (
	"fmt"
	"os"
)

func main() {
	fmt.Println("rvsim - RV64IM CPU simulator")
	fmt.Println("")
	fmt.Println("Usage: rvsim --input <program.elf> [options]")
	fmt.Println("")
	fmt.Println("Options:")
	fmt.Println("  --input               Path to the RV64 ELF executable")
	fmt.Println("  --cpu-mode            single | multi | pipeline")
	fmt.Println("  --debug               Interactive debugger")
	fmt.Println("  --itrace/--mtrace/--ftrace")
	fmt.Println("                        Instruction / memory / call tracing")
	fmt.Println("  --data-hazard-policy  naive-stall | data-forward")
	fmt.Println("  --control-policy      all-stall | always-not-taken | dynamic-predict")
	fmt.Println("")
	fmt.Println("Run 'go run ./cmd/rvsim' for the full CLI.")

	if len(os.Args) > 1 {
		fmt.Println("\nNote: You provided arguments. Use 'go run ./cmd/rvsim' instead.")
	}
}
