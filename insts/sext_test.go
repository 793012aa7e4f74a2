package insts_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/rvsim/rvsim/insts"
)

var _ = Describe("Sext", func() {
	It("sign-extends a negative 5-bit field", func() {
		Expect(insts.SextBits(0b11101, 5)).To(Equal(uint64(0xFFFFFFFFFFFFFFFD)))
	})

	It("leaves a positive 5-bit field unchanged", func() {
		Expect(insts.SextBits(0b01101, 5)).To(Equal(uint64(0x000000000000000D)))
	})

	It("sign-extends a 12-bit I-type immediate", func() {
		// -1 encoded in 12 bits.
		Expect(insts.Sext(0xFFF, insts.SextI)).To(Equal(uint64(0xFFFFFFFFFFFFFFFF)))
	})

	It("sign-extends a 13-bit B-type immediate", func() {
		Expect(insts.Sext(0x1000, insts.SextB)).To(Equal(uint64(0xFFFFFFFFFFFFF000)))
	})

	It("sign-extends a 21-bit J-type immediate", func() {
		Expect(insts.Sext(0x100000, insts.SextJ)).To(Equal(uint64(0xFFFFFFFFFFF00000)))
	})

	It("leaves SextNone untouched", func() {
		Expect(insts.Sext(0xABCD, insts.SextNone)).To(Equal(uint64(0xABCD)))
	})
})
