package engine

import (
	"gonum.org/v1/gonum/mat"
)

// regressionCoefficients fits y onto the basis values by least squares,
// restricted to the samples where filter is true (nil filter means all
// samples). On a rank deficient or degenerate system the fit degrades to
// the filtered mean loaded on the constant basis function.
func regressionCoefficients(y []float64, basisVals [][]float64, filter []bool) []float64 {
	nFns := len(basisVals)
	n := len(y)

	rows := n
	if filter != nil {
		rows = 0
		for _, ok := range filter {
			if ok {
				rows++
			}
		}
	}

	coeffs := make([]float64, nFns)
	if rows == 0 {
		return coeffs
	}

	a := mat.NewDense(rows, nFns, nil)
	b := mat.NewVecDense(rows, nil)
	r := 0
	for s := 0; s < n; s++ {
		if filter != nil && !filter[s] {
			continue
		}
		for f := 0; f < nFns; f++ {
			a.Set(r, f, basisVals[f][s])
		}
		b.SetVec(r, y[s])
		r++
	}

	var c mat.VecDense
	if err := c.SolveVec(a, b); err != nil || rows < nFns {
		var mean float64
		for s := 0; s < n; s++ {
			if filter != nil && !filter[s] {
				continue
			}
			mean += y[s]
		}
		coeffs[0] = mean / float64(rows)
		return coeffs
	}
	for f := 0; f < nFns; f++ {
		coeffs[f] = c.AtVec(f)
	}
	return coeffs
}

// evalRegression computes the fitted values coeffs . basis per sample.
func evalRegression(coeffs []float64, basisVals [][]float64) []float64 {
	n := len(basisVals[0])
	out := make([]float64, n)
	for f, c := range coeffs {
		if c == 0 {
			continue
		}
		bv := basisVals[f]
		for s := 0; s < n; s++ {
			out[s] += c * bv[s]
		}
	}
	return out
}
