package model

import (
	"fmt"
	"math/rand"

	"gonum.org/v1/gonum/stat/distuv"
)

// SequenceGenerator produces one draw of standard normal variates per call,
// spanning every factor of every time step of a path.
type SequenceGenerator interface {
	Next(dst []float64)
}

// PseudoRandom draws normals from a seeded Mersenne-style source. The same
// seed reproduces the same paths.
type PseudoRandom struct {
	rng *rand.Rand
}

func NewPseudoRandom(seed int64) *PseudoRandom {
	return &PseudoRandom{rng: rand.New(rand.NewSource(seed))}
}

func (g *PseudoRandom) Next(dst []float64) {
	for i := range dst {
		dst[i] = g.rng.NormFloat64()
	}
}

// Halton is a low discrepancy generator: per-coordinate radical inverse
// sequences in consecutive prime bases, mapped to normals through the
// inverse Gaussian CDF. Skip discards leading points, which are poorly
// distributed in high dimensions.
type Halton struct {
	primes []int
	count  int64
	normal distuv.Normal
}

func NewHalton(dim int, skip int64) (*Halton, error) {
	if dim < 1 {
		return nil, fmt.Errorf("NewHalton: dimension %d", dim)
	}
	return &Halton{
		primes: firstPrimes(dim),
		count:  skip,
		normal: distuv.UnitNormal,
	}, nil
}

func (g *Halton) Next(dst []float64) {
	if len(dst) != len(g.primes) {
		panic(fmt.Sprintf("model: halton draw of size %d, generator dimension %d", len(dst), len(g.primes)))
	}
	g.count++
	for i := range dst {
		u := radicalInverse(g.count, g.primes[i])
		dst[i] = g.normal.Quantile(u)
	}
}

func radicalInverse(n int64, base int) float64 {
	var inv float64
	b := float64(base)
	f := 1.0 / b
	for n > 0 {
		inv += f * float64(n%int64(base))
		n /= int64(base)
		f /= b
	}
	return inv
}

func firstPrimes(n int) []int {
	primes := make([]int, 0, n)
	for c := 2; len(primes) < n; c++ {
		isPrime := true
		for _, p := range primes {
			if p*p > c {
				break
			}
			if c%p == 0 {
				isPrime = false
				break
			}
		}
		if isPrime {
			primes = append(primes, c)
		}
	}
	return primes
}
