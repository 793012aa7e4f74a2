package pipeline_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/rvsim/rvsim/timing/pipeline"
)

var _ = Describe("BranchPredictor", func() {
	Describe("two-bit saturating counters", func() {
		var bp *pipeline.BranchPredictor
		pc := uint64(0x1000)
		target := uint64(0x2000)

		BeforeEach(func() {
			bp = pipeline.NewBranchPredictor(pipeline.DynamicPredict, pipeline.TwoBit)
		})

		It("starts weakly not-taken", func() {
			Expect(bp.PredictConditional(pc).Taken).To(BeFalse())
		})

		It("jumps to strongly taken after one taken outcome", func() {
			bp.UpdateConditional(pc, true, target)
			Expect(bp.PredictConditional(pc).Taken).To(BeTrue())
			// A single not-taken only weakens it; the prediction holds.
			bp.UpdateConditional(pc, false, target)
			Expect(bp.PredictConditional(pc).Taken).To(BeTrue())
		})

		It("falls back to strongly not-taken from weakly taken", func() {
			bp.UpdateConditional(pc, true, target)  // weakly-NT -> strongly-T
			bp.UpdateConditional(pc, false, target) // strongly-T -> weakly-T
			bp.UpdateConditional(pc, false, target) // weakly-T -> strongly-NT
			Expect(bp.PredictConditional(pc).Taken).To(BeFalse())
			bp.UpdateConditional(pc, true, target) // strongly-NT -> weakly-NT
			Expect(bp.PredictConditional(pc).Taken).To(BeFalse())
		})

		It("tolerates the odd not-taken in a taken-dominated stream", func() {
			for i := 0; i < 4; i++ {
				bp.UpdateConditional(pc, true, target)
			}
			bp.UpdateConditional(pc, false, target)
			Expect(bp.PredictConditional(pc).Taken).To(BeTrue())
		})
	})

	Describe("one-bit counters", func() {
		It("tracks only the last outcome", func() {
			bp := pipeline.NewBranchPredictor(pipeline.DynamicPredict, pipeline.OneBit)
			pc := uint64(0x1000)
			Expect(bp.PredictConditional(pc).Taken).To(BeFalse())
			bp.UpdateConditional(pc, true, 0x2000)
			Expect(bp.PredictConditional(pc).Taken).To(BeTrue())
			bp.UpdateConditional(pc, false, 0x2000)
			Expect(bp.PredictConditional(pc).Taken).To(BeFalse())
		})
	})

	Describe("branch target buffer", func() {
		It("misses on the first lookup, then serves the observed target", func() {
			bp := pipeline.NewBranchPredictor(pipeline.DynamicPredict, pipeline.TwoBit)
			pred := bp.PredictJump(0x1000)
			Expect(pred.TargetKnown).To(BeFalse())

			bp.UpdateJump(0x1000, 0x4000)
			pred = bp.PredictJump(0x1000)
			Expect(pred.TargetKnown).To(BeTrue())
			Expect(pred.Target).To(Equal(uint64(0x4000)))

			stats := bp.Stats()
			Expect(stats.BTBMisses).To(Equal(uint64(1)))
			Expect(stats.BTBHits).To(Equal(uint64(1)))
		})

		It("only installs conditional targets on taken outcomes", func() {
			bp := pipeline.NewBranchPredictor(pipeline.DynamicPredict, pipeline.TwoBit)
			bp.UpdateConditional(0x1000, false, 0x1004)
			Expect(bp.PredictConditional(0x1000).TargetKnown).To(BeFalse())
			bp.UpdateConditional(0x1000, true, 0x2000)
			pred := bp.PredictConditional(0x1000)
			Expect(pred.TargetKnown).To(BeTrue())
			Expect(pred.Target).To(Equal(uint64(0x2000)))
		})
	})

	Describe("return address stack", func() {
		It("predicts returns in call order, last in first out", func() {
			bp := pipeline.NewBranchPredictor(pipeline.DynamicPredict, pipeline.TwoBit)
			bp.PushCall(0x1004)
			bp.PushCall(0x2004)
			Expect(bp.PredictReturn(0x3000).Target).To(Equal(uint64(0x2004)))
			Expect(bp.PredictReturn(0x3010).Target).To(Equal(uint64(0x1004)))
		})

		It("substitutes the current PC on underflow", func() {
			bp := pipeline.NewBranchPredictor(pipeline.DynamicPredict, pipeline.TwoBit)
			pred := bp.PredictReturn(0x3000)
			Expect(pred.Target).To(Equal(uint64(0x3000)))
			Expect(bp.Stats().RASUnderflows).To(Equal(uint64(1)))
		})
	})

	Describe("policies", func() {
		It("predicts nothing under all-stall", func() {
			bp := pipeline.NewBranchPredictor(pipeline.AllStall, pipeline.TwoBit)
			Expect(bp.PredictConditional(0x1000)).To(Equal(pipeline.Prediction{}))
			Expect(bp.PredictJump(0x1000)).To(Equal(pipeline.Prediction{}))
			Expect(bp.PredictReturn(0x1000)).To(Equal(pipeline.Prediction{}))
			Expect(bp.Stats().Predictions).To(Equal(uint64(0)))
		})

		It("always predicts conditionals not-taken under always-not-taken", func() {
			bp := pipeline.NewBranchPredictor(pipeline.AlwaysNotTaken, pipeline.TwoBit)
			for i := 0; i < 5; i++ {
				bp.UpdateConditional(0x1000, true, 0x2000)
			}
			Expect(bp.PredictConditional(0x1000).Taken).To(BeFalse())
		})
	})

	Describe("misprediction rate", func() {
		It("divides mispredictions by predictions", func() {
			bp := pipeline.NewBranchPredictor(pipeline.DynamicPredict, pipeline.TwoBit)
			bp.PredictConditional(0x1000)
			bp.PredictConditional(0x1000)
			bp.PredictConditional(0x1000)
			bp.PredictConditional(0x1000)
			bp.RecordMisprediction()
			Expect(bp.Stats().MispredictionRate()).To(Equal(0.25))
		})

		It("is zero with no predictions", func() {
			bp := pipeline.NewBranchPredictor(pipeline.DynamicPredict, pipeline.TwoBit)
			Expect(bp.Stats().MispredictionRate()).To(Equal(0.0))
		})
	})
})
