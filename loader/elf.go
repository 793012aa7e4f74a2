// Package loader provides ELF binary loading for RV64IM executables.
package loader

import (
	"debug/elf"
	"fmt"
	"io"
)

// SegmentFlags represents memory protection flags for a segment.
type SegmentFlags uint32

const (
	// SegmentFlagExecute indicates the segment is executable.
	SegmentFlagExecute SegmentFlags = 1 << iota
	// SegmentFlagWrite indicates the segment is writable.
	SegmentFlagWrite
	// SegmentFlagRead indicates the segment is readable.
	SegmentFlagRead
)

// DefaultStackSize is the default stack region size reserved past max_vaddr (8MiB).
const DefaultStackSize = 8 * 1024 * 1024

// GuardSize is the unmapped guard region reserved between the program image
// and the stack region (1MiB).
const GuardSize = 1 * 1024 * 1024

// Segment represents a loadable segment from an ELF binary.
type Segment struct {
	// VirtAddr is the virtual address where this segment should be loaded.
	VirtAddr uint64
	// Data contains the segment contents from the file.
	Data []byte
	// MemSize is the size in memory (may be larger than len(Data) for BSS).
	MemSize uint64
	// Flags contains the segment protection flags.
	Flags SegmentFlags
}

// Program represents a loaded ELF program ready for execution.
type Program struct {
	// EntryPoint is the virtual address where execution should begin.
	EntryPoint uint64
	// Segments contains all loadable segments from the ELF file.
	Segments []Segment
	// MinVaddr is the lowest address spanned by any loadable segment.
	MinVaddr uint64
	// MaxVaddr is the highest address (inclusive) spanned by any loadable segment.
	MaxVaddr uint64
	// InitialSP is the initial stack pointer value.
	InitialSP uint64
	// Symbols maps a symbol's address to its name, used by the call-stack tracer.
	Symbols map[uint64]string
}

// Load parses a statically-linked RV64IM ELF binary and returns a Program
// struct ready for loading into the simulator's flat memory.
func Load(path string) (*Program, error) {
	f, err := elf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open ELF file: %w", err)
	}
	defer func() { _ = f.Close() }()

	if f.Class != elf.ELFCLASS64 {
		return nil, fmt.Errorf("not a 64-bit ELF file")
	}

	if f.Machine != elf.EM_RISCV {
		return nil, fmt.Errorf("not an RV64 ELF file (machine type: %v)", f.Machine)
	}

	prog := &Program{
		EntryPoint: f.Entry,
		Symbols:    map[uint64]string{},
	}

	haveRange := false
	for _, phdr := range f.Progs {
		if phdr.Type != elf.PT_LOAD {
			continue
		}

		data := make([]byte, phdr.Filesz)
		if phdr.Filesz > 0 {
			n, err := phdr.ReadAt(data, 0)
			if err != nil && err != io.EOF {
				return nil, fmt.Errorf("failed to read segment at 0x%x: %w", phdr.Vaddr, err)
			}
			if uint64(n) != phdr.Filesz {
				return nil, fmt.Errorf("short read for segment at 0x%x: got %d bytes, expected %d",
					phdr.Vaddr, n, phdr.Filesz)
			}
		}

		var flags SegmentFlags
		if phdr.Flags&elf.PF_X != 0 {
			flags |= SegmentFlagExecute
		}
		if phdr.Flags&elf.PF_W != 0 {
			flags |= SegmentFlagWrite
		}
		if phdr.Flags&elf.PF_R != 0 {
			flags |= SegmentFlagRead
		}

		seg := Segment{
			VirtAddr: phdr.Vaddr,
			Data:     data,
			MemSize:  phdr.Memsz,
			Flags:    flags,
		}
		prog.Segments = append(prog.Segments, seg)

		segEnd := phdr.Vaddr + phdr.Memsz
		if !haveRange {
			prog.MinVaddr = phdr.Vaddr
			prog.MaxVaddr = segEnd
			haveRange = true
		} else {
			if phdr.Vaddr < prog.MinVaddr {
				prog.MinVaddr = phdr.Vaddr
			}
			if segEnd > prog.MaxVaddr {
				prog.MaxVaddr = segEnd
			}
		}
	}

	if haveRange && prog.MaxVaddr > 0 {
		prog.MaxVaddr--
	}

	if syms, err := f.Symbols(); err == nil {
		for _, sym := range syms {
			if sym.Name == "" || elf.ST_TYPE(sym.Info) != elf.STT_FUNC {
				continue
			}
			prog.Symbols[sym.Value] = sym.Name
		}
	}

	prog.InitialSP = prog.MaxVaddr + GuardSize + DefaultStackSize - 16

	return prog, nil
}
