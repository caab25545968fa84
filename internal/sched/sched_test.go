package sched_test

import (
	"math"
	"math/rand/v2"
	"slices"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/san-kum/kmcsim/internal/sched"
)

func mustNew(name string, fanout int) sched.Scheduler {
	s, err := sched.New(name, fanout)
	Expect(err).NotTo(HaveOccurred())
	return s
}

func randomProps(r *rand.Rand, n int) []float64 {
	props := make([]float64, n)
	for i := range props {
		if r.IntN(4) == 0 {
			continue
		}
		props[i] = r.ExpFloat64() * 10
	}
	return props
}

// draw returns n sorted selections as float64 for a KS comparison.
func draw(s sched.Scheduler, r *rand.Rand, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = float64(s.Select(r.Float64()))
	}
	slices.Sort(out)
	return out
}

func ksCritical(n, m int) float64 {
	return 1.95 * math.Sqrt(float64(n+m)/float64(n*m))
}

var _ = Describe("New", func() {
	It("resolves names and aliases", func() {
		Expect(mustNew("direct", 0).Name()).To(Equal("direct"))
		Expect(mustNew("ssa", 0).Name()).To(Equal("direct"))
		Expect(mustNew("composition", 0).Name()).To(Equal("tree"))
		Expect(mustNew("tree", 0).(*sched.Tree).Fanout()).To(Equal(sched.DefaultFanout))
	})

	It("rejects unknown names and bad fan-outs", func() {
		_, err := sched.New("rejection", 0)
		Expect(err).To(MatchError(sched.ErrUnknownScheduler))
		_, err = sched.New("tree", 1)
		Expect(err).To(MatchError(sched.ErrBadFanout))
	})
})

var _ = Describe("Scheduler", func() {
	DescribeTable("selects by cumulative propensity",
		func(name string, fanout int) {
			s := mustNew(name, fanout)
			s.Reset([]float64{0, 2, 0, 3, 0})
			Expect(s.Total()).To(Equal(5.0))
			Expect(s.Select(0)).To(Equal(1))
			Expect(s.Select(0.4)).To(Equal(1))
			Expect(s.Select(0.41)).To(Equal(3))
			Expect(s.Select(0.999999)).To(Equal(3))
		},
		Entry("direct", "direct", 0),
		Entry("tree fan-out 2", "tree", 2),
		Entry("tree fan-out 3", "tree", 3),
		Entry("tree default", "tree", 0),
	)

	DescribeTable("reports no event when everything is zero",
		func(name string) {
			s := mustNew(name, 2)
			s.Reset([]float64{1, 0, 0})
			Expect(s.Select(0.5)).To(Equal(0))
			s.Set(0, 0)
			Expect(s.Total()).To(BeZero())
			Expect(s.Select(0.5)).To(Equal(-1))

			s.Reset(nil)
			Expect(s.Len()).To(BeZero())
			Expect(s.Select(0.5)).To(Equal(-1))
		},
		Entry("direct", "direct"),
		Entry("tree", "tree"),
	)

	DescribeTable("never selects a zero-propensity process",
		func(name string) {
			r := rand.New(rand.NewPCG(11, 12))
			s := mustNew(name, 4)
			props := randomProps(r, 257)
			s.Reset(props)
			for i := 0; i < 5000; i++ {
				k := s.Select(r.Float64())
				Expect(props[k]).To(BeNumerically(">", 0))
			}
			Expect(props[s.Select(0)]).To(BeNumerically(">", 0))
		},
		Entry("direct", "direct"),
		Entry("tree", "tree"),
	)

	DescribeTable("keeps the total equal to a fresh sum",
		func(name string) {
			r := rand.New(rand.NewPCG(3, 4))
			s := mustNew(name, 5)
			props := randomProps(r, 300)
			s.Reset(props)
			for i := 0; i < 20000; i++ {
				k := r.IntN(len(props))
				props[k] = r.ExpFloat64() * float64(r.IntN(3))
				s.Set(k, props[k])
			}
			fresh := floats.Sum(props)
			Expect(s.Total()).To(BeNumerically("~", fresh, 1e-9*fresh))
			s.Resync()
			Expect(s.Total()).To(BeNumerically("~", fresh, 1e-12*fresh))
		},
		Entry("direct", "direct"),
		Entry("tree", "tree"),
	)

	It("panics on a negative propensity", func() {
		s := mustNew("tree", 0)
		s.Reset([]float64{1})
		Expect(func() { s.Set(0, -1) }).To(Panic())
		Expect(func() { s.Reset([]float64{math.NaN()}) }).To(Panic())
	})
})

var _ = Describe("Tree", func() {
	var (
		r     *rand.Rand
		tree  *sched.Tree
		props []float64
	)

	BeforeEach(func() {
		r = rand.New(rand.NewPCG(21, 22))
		tree = sched.NewTree(4)
		props = randomProps(r, 1000)
		tree.Reset(props)
	})

	It("has the expected depth", func() {
		Expect(tree.Depth()).To(Equal(5))
		Expect(tree.Len()).To(Equal(1000))
	})

	It("matches a from-scratch rebuild after many updates", func() {
		for i := 0; i < 10000; i++ {
			k := r.IntN(len(props))
			props[k] = r.ExpFloat64()
			tree.Set(k, props[k])
		}
		rebuilt := sched.NewTree(4)
		rebuilt.Reset(props)
		Expect(tree.Total()).To(Equal(rebuilt.Total()))
		for _, u := range []float64{0, 0.1, 0.5, 0.9, 0.999} {
			Expect(tree.Select(u)).To(Equal(rebuilt.Select(u)))
		}

		a := draw(tree, rand.New(rand.NewPCG(1, 1)), 4000)
		b := draw(rebuilt, rand.New(rand.NewPCG(2, 2)), 4000)
		Expect(stat.KolmogorovSmirnov(a, nil, b, nil)).To(BeNumerically("<", ksCritical(len(a), len(b))))
	})

	It("draws the same distribution as the direct method", func() {
		direct := sched.NewDirect()
		direct.Reset(props)

		a := draw(tree, rand.New(rand.NewPCG(5, 6)), 4000)
		b := draw(direct, rand.New(rand.NewPCG(7, 8)), 4000)
		Expect(stat.KolmogorovSmirnov(a, nil, b, nil)).To(BeNumerically("<", ksCritical(len(a), len(b))))
	})

	It("selects in proportion to propensity", func() {
		small := sched.NewTree(2)
		small.Reset([]float64{1, 0, 3, 6})
		counts := make([]int, 4)
		const n = 20000
		for i := 0; i < n; i++ {
			counts[small.Select(r.Float64())]++
		}
		Expect(counts[1]).To(BeZero())
		Expect(float64(counts[0]) / n).To(BeNumerically("~", 0.1, 0.015))
		Expect(float64(counts[2]) / n).To(BeNumerically("~", 0.3, 0.015))
		Expect(float64(counts[3]) / n).To(BeNumerically("~", 0.6, 0.015))
	})
})
