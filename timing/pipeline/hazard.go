package pipeline

// DataHazardPolicy selects how RAW hazards between in-flight instructions
// are resolved.
type DataHazardPolicy uint8

const (
	// NaiveStall freezes earlier stages until the dependency retires,
	// rather than forwarding.
	NaiveStall DataHazardPolicy = iota
	// DataForward routes EX/MEM and MEM/WB results back into EX.
	DataForward
)

// ForwardSource identifies where an EX operand should come from.
type ForwardSource uint8

const (
	// ForwardNone means use the value ID read from the register file.
	ForwardNone ForwardSource = iota
	// ForwardFromEXMEM forwards from the EX/MEM latch's ALU result.
	ForwardFromEXMEM
	// ForwardFromMEMWB forwards from the MEM/WB latch's committed value.
	ForwardFromMEMWB
)

// Forwarding holds the forward source chosen for each ALU input.
type Forwarding struct {
	Src1 ForwardSource
	Src2 ForwardSource
}

// HazardStats accumulates the hazard unit's statistics across Tick calls.
type HazardStats struct {
	DataHazardCount         uint64
	DataHazardDelayedCycles uint64
}

// HazardUnit decides forwarding selectors and per-latch pipeline actions
// from the four latches. It is pure with respect to architectural state; it
// only accumulates its own statistics as a side effect.
type HazardUnit struct {
	policy DataHazardPolicy
	stats  HazardStats
}

// NewHazardUnit creates a hazard unit under the given data-hazard policy.
func NewHazardUnit(policy DataHazardPolicy) *HazardUnit {
	return &HazardUnit{policy: policy}
}

// Policy returns the data-hazard policy this unit was built with.
func (h *HazardUnit) Policy() DataHazardPolicy {
	return h.policy
}

// DetectNaiveStallEXMEMRAW reports the one-cycle residue of a naive-stall
// RAW hazard: the producer has advanced to EX/MEM but has not yet written
// back, so the instruction in IF/ID must wait one more cycle for the
// write-through read.
func (h *HazardUnit) DetectNaiveStallEXMEMRAW(exmem *EXMEMRegister, usesRs1, usesRs2 bool, rs1, rs2 uint8) bool {
	if h.policy != NaiveStall {
		return false
	}
	if !exmem.Valid || !exmem.RegWrite || exmem.Rd == 0 {
		return false
	}
	return (usesRs1 && rs1 == exmem.Rd) || (usesRs2 && rs2 == exmem.Rd)
}

// DetectForwarding computes forwarding selectors for ID/EX's two sources
// under the DataForward policy. EX/MEM takes priority over MEM/WB as the
// more recent result.
func (h *HazardUnit) DetectForwarding(idex *IDEXRegister, exmem *EXMEMRegister, memwb *MEMWBRegister) Forwarding {
	var f Forwarding
	if !idex.Valid || h.policy != DataForward {
		return f
	}
	f.Src1 = h.forwardFor(idex.Rs1, exmem, memwb)
	f.Src2 = h.forwardFor(idex.Rs2, exmem, memwb)
	return f
}

func (h *HazardUnit) forwardFor(src uint8, exmem *EXMEMRegister, memwb *MEMWBRegister) ForwardSource {
	if src == 0 {
		return ForwardNone
	}
	if exmem.Valid && exmem.RegWrite && exmem.Rd != 0 && exmem.Rd == src {
		return ForwardFromEXMEM
	}
	if memwb.Valid && memwb.RegWrite && memwb.Rd != 0 && memwb.Rd == src && exmem.Rd != src {
		return ForwardFromMEMWB
	}
	return ForwardNone
}

// ResolveForward returns the value indicated by a ForwardSource.
func (h *HazardUnit) ResolveForward(src ForwardSource, original uint64, exmem *EXMEMRegister, memwb *MEMWBRegister) uint64 {
	switch src {
	case ForwardFromEXMEM:
		return exmem.ALUOut
	case ForwardFromMEMWB:
		return memwb.RegVal
	default:
		return original
	}
}

// DetectLoadUse reports a load-use hazard: ID/EX holds a load whose
// destination feeds IF/ID's source registers. Under data-forward this costs
// one stall cycle, since the loaded value isn't available until after MEM;
// under naive-stall a load is handled by DetectNaiveStallRAW like any other
// producer.
func (h *HazardUnit) DetectLoadUse(loadRd uint8, usesRs1, usesRs2 bool, rs1, rs2 uint8) bool {
	if loadRd == 0 {
		return false
	}
	return (usesRs1 && rs1 == loadRd) || (usesRs2 && rs2 == loadRd)
}

// DetectNaiveStallRAW reports a RAW hazard under the naive-stall policy: the
// instruction presently in ID/EX will write a register that the instruction
// just decoded in IF/ID (about to enter ID/EX) reads. Under naive-stall this
// applies to every producer, not only loads.
func (h *HazardUnit) DetectNaiveStallRAW(idex *IDEXRegister, usesRs1, usesRs2 bool, rs1, rs2 uint8) bool {
	if h.policy != NaiveStall {
		return false
	}
	if !idex.Valid || !idex.RegWrite || idex.Rd == 0 {
		return false
	}
	return (usesRs1 && rs1 == idex.Rd) || (usesRs2 && rs2 == idex.Rd)
}

// DetectMemToMemForward reports the memory-to-memory copy case described in
// the hazard design: a load retiring in MEM/WB whose value a store
// presently in EX/MEM needs as its store-data operand.
func (h *HazardUnit) DetectMemToMemForward(exmem *EXMEMRegister, memwb *MEMWBRegister, storeRs2 uint8) bool {
	if h.policy != DataForward {
		return false
	}
	if !exmem.Valid || !exmem.MemWrite {
		return false
	}
	if !memwb.Valid || !memwb.RegWrite || !memwb.MemToReg || memwb.Rd == 0 {
		return false
	}
	return memwb.Rd == storeRs2
}

// RecordForward tallies a hazard resolved by forwarding alone (no delay).
func (h *HazardUnit) RecordForward() {
	h.stats.DataHazardCount++
}

// RecordStall tallies a stall of the given length (in cycles) for
// statistics.
func (h *HazardUnit) RecordStall(cycles uint64) {
	if cycles == 0 {
		return
	}
	h.stats.DataHazardCount++
	h.stats.DataHazardDelayedCycles += cycles
}

// Stats returns a snapshot of the hazard unit's statistics.
func (h *HazardUnit) Stats() HazardStats {
	return h.stats
}
