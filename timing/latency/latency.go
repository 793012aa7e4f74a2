package latency

import (
	"github.com/rvsim/rvsim/insts"
)

// Table answers the extra-cycle question for a retiring instruction,
// including the DIV;REM same-operand fusion rule: a REM immediately
// following the DIV it reuses the remainder from does not pay the divide
// charge twice.
type Table struct {
	config *TimingConfig

	havePriorDiv bool
	priorDivOp   insts.Op
	priorDivRs1  uint8
	priorDivRs2  uint8
}

// NewTable creates a latency table with the default charges.
func NewTable() *Table {
	return &Table{config: DefaultTimingConfig()}
}

// NewTableWithConfig creates a latency table with custom charges.
func NewTableWithConfig(config *TimingConfig) *Table {
	return &Table{config: config}
}

// Config returns the underlying timing configuration.
func (t *Table) Config() *TimingConfig {
	return t.config
}

func isMultiply(op insts.Op) bool {
	switch op {
	case insts.OpMUL, insts.OpMULH, insts.OpMULHSU, insts.OpMULHU, insts.OpMULW:
		return true
	default:
		return false
	}
}

func isDivide(op insts.Op) bool {
	switch op {
	case insts.OpDIV, insts.OpDIVU, insts.OpDIVW, insts.OpDIVUW:
		return true
	default:
		return false
	}
}

func isRemainder(op insts.Op) bool {
	switch op {
	case insts.OpREM, insts.OpREMU, insts.OpREMW, insts.OpREMUW:
		return true
	default:
		return false
	}
}

// divRemPair reports whether op pairs with prior as the matching
// DIV-then-REM fusion (divw pairs with remw, div with rem, and so on).
func divRemPair(prior, op insts.Op) bool {
	switch prior {
	case insts.OpDIV:
		return op == insts.OpREM
	case insts.OpDIVU:
		return op == insts.OpREMU
	case insts.OpDIVW:
		return op == insts.OpREMW
	case insts.OpDIVUW:
		return op == insts.OpREMUW
	default:
		return false
	}
}

// ExtraCycles returns the number of cycles to charge on top of the baseline
// 1 cycle for an instruction retiring at EX, and records state needed to
// detect the next DIV;REM fusion opportunity. Call this once per retiring
// (non-noop) instruction, in program order.
func (t *Table) ExtraCycles(op insts.Op, rs1, rs2 uint8) uint64 {
	var extra uint64

	switch {
	case isMultiply(op):
		extra = t.config.MultiplyExtraCycles
	case isDivide(op):
		extra = t.config.DivideExtraCycles
	case isRemainder(op):
		if t.havePriorDiv && divRemPair(t.priorDivOp, op) && t.priorDivRs1 == rs1 && t.priorDivRs2 == rs2 {
			extra = 0
		} else {
			extra = t.config.DivideExtraCycles
		}
	}

	if isDivide(op) {
		t.havePriorDiv = true
		t.priorDivOp = op
		t.priorDivRs1 = rs1
		t.priorDivRs2 = rs2
	} else if op != insts.OpNoop {
		t.havePriorDiv = false
	}

	return extra
}
