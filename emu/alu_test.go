package emu_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/rvsim/rvsim/emu"
	"github.com/rvsim/rvsim/insts"
)

var _ = Describe("ALU", func() {
	var alu *emu.ALU

	BeforeEach(func() {
		alu = emu.NewALU()
	})

	It("wraps ADD on overflow (two's complement)", func() {
		result, err := alu.Execute(insts.OpADD, 0xFFFFFFFFFFFFFFFF, 1, 0, 0)
		Expect(err).NotTo(HaveOccurred())
		Expect(result).To(Equal(uint64(0)))
	})

	It("truncates ADDW to 32 bits then sign-extends", func() {
		result, err := alu.Execute(insts.OpADDW, 0x7FFFFFFF, 1, 0, 0)
		Expect(err).NotTo(HaveOccurred())
		Expect(result).To(Equal(uint64(0xFFFFFFFF80000000)))
	})

	It("masks SLL's shift amount to 6 bits", func() {
		result, err := alu.Execute(insts.OpSLL, 1, 64, 0, 0) // shift by 64 == shift by 0
		Expect(err).NotTo(HaveOccurred())
		Expect(result).To(Equal(uint64(1)))
	})

	It("computes MULH with appropriate signedness", func() {
		// (-1) * (-1) = 1; high 64 bits of the 128-bit product are 0.
		result, err := alu.Execute(insts.OpMULH, ^uint64(0), ^uint64(0), 0, 0)
		Expect(err).NotTo(HaveOccurred())
		Expect(result).To(Equal(uint64(0)))
	})

	It("computes MULHU for large unsigned operands", func() {
		result, err := alu.Execute(insts.OpMULHU, ^uint64(0), ^uint64(0), 0, 0)
		Expect(err).NotTo(HaveOccurred())
		Expect(result).To(Equal(uint64(0xFFFFFFFFFFFFFFFE)))
	})

	It("faults DIV on divide by zero", func() {
		_, err := alu.Execute(insts.OpDIV, 10, 0, 0, 0)
		Expect(err).To(BeAssignableToTypeOf(&emu.DividedByZeroError{}))
	})

	It("faults REM on divide by zero", func() {
		_, err := alu.Execute(insts.OpREM, 10, 0, 0, 0)
		Expect(err).To(BeAssignableToTypeOf(&emu.DividedByZeroError{}))
	})

	It("computes AUIPC as PC plus the shifted upper immediate", func() {
		result, err := alu.Execute(insts.OpAUIPC, 0, 0x1, 0x8000, 0)
		Expect(err).NotTo(HaveOccurred())
		Expect(result).To(Equal(uint64(0x9000)))
	})

	It("computes LUI with the low 12 bits zeroed", func() {
		// Operand is sext(0xFFFFF, 20) = -1; the architectural value shifts
		// it into the upper bits.
		result, err := alu.Execute(insts.OpLUI, 0, 0xFFFFFFFFFFFFFFFF, 0, 0)
		Expect(err).NotTo(HaveOccurred())
		Expect(result).To(Equal(uint64(0xFFFFFFFFFFFFF000)))
	})

	It("raises IllegalInstruction for SLLIW with the sixth shift bit set", func() {
		raw := uint32(1) << 25 // bit 25 set: illegal for a -W shift immediate
		_, err := alu.Execute(insts.OpSLLIW, 1, 0, 0, raw)
		Expect(err).To(BeAssignableToTypeOf(&emu.IllegalInstructionError{}))
	})
})
