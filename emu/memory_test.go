package emu_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/rvsim/rvsim/emu"
)

var _ = Describe("Memory", func() {
	It("round-trips every width at a valid vaddr", func() {
		mem := emu.NewMemory(0x1000, 0x100)

		mem.Write8(0x1000, 0xAB)
		Expect(mem.Read8(0x1000)).To(Equal(uint8(0xAB)))

		mem.Write16(0x1008, 0xBEEF)
		Expect(mem.Read16(0x1008)).To(Equal(uint16(0xBEEF)))

		mem.Write32(0x1010, 0xDEADBEEF)
		Expect(mem.Read32(0x1010)).To(Equal(uint32(0xDEADBEEF)))

		mem.Write64(0x1020, 0x0123456789ABCDEF)
		Expect(mem.Read64(0x1020)).To(Equal(uint64(0x0123456789ABCDEF)))
	})

	It("lays bytes out little-endian", func() {
		mem := emu.NewMemory(0x2000, 0x10)
		mem.Write32(0x2000, 0x01020304)
		Expect(mem.Read8(0x2000)).To(Equal(uint8(0x04)))
		Expect(mem.Read8(0x2001)).To(Equal(uint8(0x03)))
		Expect(mem.Read8(0x2002)).To(Equal(uint8(0x02)))
		Expect(mem.Read8(0x2003)).To(Equal(uint8(0x01)))
	})

	It("round-trips via the generic width accessors", func() {
		mem := emu.NewMemory(0x3000, 0x20)
		for _, width := range []uint8{8, 16, 32, 64} {
			mem.WriteWidth(0x3000, width, 0x1122334455667788)
			readBack := mem.ReadWidth(0x3000, width)
			var mask uint64 = (uint64(1) << width) - 1
			if width == 64 {
				mask = ^uint64(0)
			}
			Expect(readBack).To(Equal(uint64(0x1122334455667788) & mask))
		}
	})
})
