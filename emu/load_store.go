package emu

import "github.com/rvsim/rvsim/insts"

// LoadStoreUnit performs typed little-endian memory access for the memory
// stage of both cores.
type LoadStoreUnit struct {
	memory *Memory
}

// NewLoadStoreUnit creates a load/store unit over the given flat memory.
func NewLoadStoreUnit(memory *Memory) *LoadStoreUnit {
	return &LoadStoreUnit{memory: memory}
}

// Width returns the access bit width for a load/store opcode, and whether a
// load result must be sign-extended.
func Width(op insts.Op) (width uint8, signed bool) {
	switch op {
	case insts.OpLB:
		return 8, true
	case insts.OpLBU, insts.OpSB:
		return 8, false
	case insts.OpLH:
		return 16, true
	case insts.OpLHU, insts.OpSH:
		return 16, false
	case insts.OpLW:
		return 32, true
	case insts.OpLWU, insts.OpSW:
		return 32, false
	case insts.OpLD, insts.OpSD:
		return 64, false
	default:
		return 0, false
	}
}

// Load reads a value of the given width at addr, sign-extending to 64 bits
// if signed is set.
func (u *LoadStoreUnit) Load(addr uint64, width uint8, signed bool) uint64 {
	v := u.memory.ReadWidth(addr, width)
	if signed {
		return insts.SextBits(v, uint(width))
	}
	return v
}

// Store writes the low `width` bits of value at addr.
func (u *LoadStoreUnit) Store(addr uint64, width uint8, value uint64) {
	u.memory.WriteWidth(addr, width, value)
}
