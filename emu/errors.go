package emu

import "fmt"

// DividedByZeroError is raised by DIV/DIVU/DIVW/DIVUW/REM/REMU/REMW/REMUW
// when the divisor is zero. The simulator faults rather than emulating
// RV64IM's defined all-ones/dividend result.
type DividedByZeroError struct {
	PC  uint64
	Op  string
	Rs1 uint8
	Rs2 uint8
}

func (e *DividedByZeroError) Error() string {
	return fmt.Sprintf("divide by zero: %s at pc=0x%x (rs1=x%d, rs2=x%d)", e.Op, e.PC, e.Rs1, e.Rs2)
}

// IllegalInstructionError is raised when a -W shift immediate instruction's
// six-bit shift-amount field has its sixth bit set, which RV64I reserves
// (the word-width shift amount must fit in 5 bits).
type IllegalInstructionError struct {
	PC  uint64
	Raw uint32
	Why string
}

func (e *IllegalInstructionError) Error() string {
	return fmt.Sprintf("illegal instruction at pc=0x%x (raw=0x%08x): %s", e.PC, e.Raw, e.Why)
}

// UnimplementedError is raised for structurally-recognized but unexecuted
// opcodes: ecall, CSR access, mret/sret/wfi, fences, floating-point, atomics,
// and fused multiply-add.
type UnimplementedError struct {
	PC uint64
	Op string
}

func (e *UnimplementedError) Error() string {
	return fmt.Sprintf("unimplemented instruction %s at pc=0x%x", e.Op, e.PC)
}
