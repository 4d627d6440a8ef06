package model

import (
	"fmt"
	"sort"
)

// Ordering controls how a flat normal draw maps onto (time step, factor)
// coordinates. Low discrepancy sequences are most uniform in their leading
// coordinates, so the mapping matters for them; for pseudo random draws it
// is cosmetic.
type Ordering string

const (
	// OrderStepMajor assigns consecutive coordinates to the factors of one
	// step before moving to the next step.
	OrderStepMajor Ordering = "STEPS"
	// OrderFactorMajor assigns consecutive coordinates to all steps of one
	// factor before moving to the next factor.
	OrderFactorMajor Ordering = "FACTORS"
)

// PathGenerator evolves a Process along a fixed positive time grid, one full
// path per call.
type PathGenerator struct {
	process  Process
	times    []float64
	gen      SequenceGenerator
	ordering Ordering

	draw []float64
	z    []float64
	prev []float64
	next []float64
}

// NewPathGenerator validates the grid: strictly increasing, all positive.
func NewPathGenerator(process Process, times []float64, gen SequenceGenerator, ordering Ordering) (*PathGenerator, error) {
	if len(times) == 0 {
		return nil, fmt.Errorf("NewPathGenerator: empty time grid")
	}
	if times[0] <= 0 || !sort.Float64sAreSorted(times) {
		return nil, fmt.Errorf("NewPathGenerator: time grid must be positive and sorted")
	}
	for i := 1; i < len(times); i++ {
		if times[i] == times[i-1] {
			return nil, fmt.Errorf("NewPathGenerator: duplicate grid time %v", times[i])
		}
	}
	dim := process.Dimension()
	return &PathGenerator{
		process:  process,
		times:    times,
		gen:      gen,
		ordering: ordering,
		draw:     make([]float64, dim*len(times)),
		z:        make([]float64, dim),
		prev:     make([]float64, dim),
		next:     make([]float64, dim),
	}, nil
}

// Dimension is the per-step factor count.
func (g *PathGenerator) Dimension() int { return g.process.Dimension() }

// Times is the simulation grid (excluding time zero).
func (g *PathGenerator) Times() []float64 { return g.times }

// NextPath writes one path into out, indexed out[stepIdx][factor]. The
// state at time zero is not part of out.
func (g *PathGenerator) NextPath(out [][]float64) {
	if len(out) != len(g.times) {
		panic(fmt.Sprintf("model: path buffer has %d steps, grid has %d", len(out), len(g.times)))
	}
	dim := g.process.Dimension()
	steps := len(g.times)
	g.gen.Next(g.draw)

	copy(g.prev, g.process.InitialValues())
	t0 := 0.0
	for s, t1 := range g.times {
		for f := 0; f < dim; f++ {
			if g.ordering == OrderFactorMajor {
				g.z[f] = g.draw[f*steps+s]
			} else {
				g.z[f] = g.draw[s*dim+f]
			}
		}
		g.process.Evolve(t0, t1, g.prev, g.z, g.next)
		copy(out[s], g.next)
		copy(g.prev, g.next)
		t0 = t1
	}
}
