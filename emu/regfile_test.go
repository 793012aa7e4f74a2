package emu_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/rvsim/rvsim/emu"
)

var _ = Describe("RegFile", func() {
	It("always reads x0 as zero", func() {
		r := &emu.RegFile{}
		Expect(r.Read(0)).To(Equal(uint64(0)))
	})

	It("observes a write to x0 until the next RestoreZero", func() {
		r := &emu.RegFile{}
		r.Write(0, 42)
		Expect(r.X[0]).To(Equal(uint64(42)))
		r.RestoreZero()
		Expect(r.Read(0)).To(Equal(uint64(0)))
	})

	It("reads back a written general-purpose register", func() {
		r := &emu.RegFile{}
		r.Write(5, 0xCAFE)
		Expect(r.Read(5)).To(Equal(uint64(0xCAFE)))
	})
})
