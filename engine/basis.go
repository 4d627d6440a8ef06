package engine

import "fmt"

// PolynomialKind selects the univariate family the basis functions are
// built from.
type PolynomialKind string

const (
	Monomial  PolynomialKind = "MONOMIAL"
	Chebyshev PolynomialKind = "CHEBYSHEV"
	Laguerre  PolynomialKind = "LAGUERRE"
)

// BasisSystem is a multi-variate polynomial basis: all products of
// univariate polynomials whose total degree does not exceed the order. The
// first function is the constant 1.
type BasisSystem struct {
	dim   int
	order int
	kind  PolynomialKind
	exps  [][]int
}

// NewBasisSystem enumerates the multi-indices for dim state variables up to
// the given total degree.
func NewBasisSystem(dim, order int, kind PolynomialKind) (*BasisSystem, error) {
	if dim < 1 || order < 0 {
		return nil, fmt.Errorf("NewBasisSystem: invalid dim %d / order %d", dim, order)
	}
	switch kind {
	case Monomial, Chebyshev, Laguerre:
	default:
		return nil, fmt.Errorf("NewBasisSystem: unknown polynomial kind %q", kind)
	}
	b := &BasisSystem{dim: dim, order: order, kind: kind}
	idx := make([]int, dim)
	for deg := 0; deg <= order; deg++ {
		b.enumerate(idx, 0, deg)
	}
	return b, nil
}

func (b *BasisSystem) enumerate(idx []int, pos, remaining int) {
	if pos == b.dim-1 {
		idx[pos] = remaining
		cp := make([]int, b.dim)
		copy(cp, idx)
		b.exps = append(b.exps, cp)
		return
	}
	for d := remaining; d >= 0; d-- {
		idx[pos] = d
		b.enumerate(idx, pos+1, remaining-d)
	}
}

// Size is the number of basis functions.
func (b *BasisSystem) Size() int { return len(b.exps) }

// Dim is the number of state variables.
func (b *BasisSystem) Dim() int { return b.dim }

func (b *BasisSystem) poly(x float64, degree int) float64 {
	if degree == 0 {
		return 1
	}
	switch b.kind {
	case Chebyshev:
		// T_n = 2x T_{n-1} - T_{n-2}.
		p0, p1 := 1.0, x
		for d := 2; d <= degree; d++ {
			p0, p1 = p1, 2*x*p1-p0
		}
		return p1
	case Laguerre:
		// n L_n = (2n-1-x) L_{n-1} - (n-1) L_{n-2}.
		p0, p1 := 1.0, 1-x
		for d := 2; d <= degree; d++ {
			p0, p1 = p1, ((float64(2*d-1)-x)*p1-float64(d-1)*p0)/float64(d)
		}
		return p1
	default:
		v := x
		for d := 1; d < degree; d++ {
			v *= x
		}
		return v
	}
}

// Eval computes all basis functions on a set of samples. states is indexed
// [stateVar][sample]; the result is [basisFn][sample].
func (b *BasisSystem) Eval(states [][]float64) [][]float64 {
	if len(states) != b.dim {
		panic(fmt.Sprintf("engine: basis evaluation with %d state vars, want %d", len(states), b.dim))
	}
	n := len(states[0])
	out := make([][]float64, len(b.exps))
	for f, exp := range b.exps {
		vals := make([]float64, n)
		for s := 0; s < n; s++ {
			v := 1.0
			for j, deg := range exp {
				if deg > 0 {
					v *= b.poly(states[j][s], deg)
				}
			}
			vals[s] = v
		}
		out[f] = vals
	}
	return out
}
