package engine

import (
	"fmt"
	"sort"
)

// pathData holds the simulated model states on the engine's calibration
// grid, indexed [timeIdx][factor][sample]. Time zero is represented by the
// process initial values, not by a grid entry.
type pathData struct {
	times   []float64
	states  [][][]float64
	initial []float64
	samples int
}

// timeIndex locates t on the grid. Times are compared with an absolute
// tolerance; a miss is a grid construction bug.
func (p *pathData) timeIndex(t float64) (int, error) {
	i := sort.SearchFloat64s(p.times, t-1e-12)
	if i < len(p.times) && p.times[i] < t+1e-12 {
		return i, nil
	}
	return 0, fmt.Errorf("timeIndex: time %v not on simulation grid: %w", t, ErrInternal)
}

// factorState returns the samples of one factor observed at time t. For
// t <= 0 the deterministic initial state is broadcast.
func (p *pathData) factorState(t float64, factor int) ([]float64, error) {
	if t <= 0 {
		out := make([]float64, p.samples)
		for i := range out {
			out[i] = p.initial[factor]
		}
		return out, nil
	}
	i, err := p.timeIndex(t)
	if err != nil {
		return nil, err
	}
	return p.states[i][factor], nil
}
