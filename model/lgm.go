// Package model implements the cross-currency simulation model: one LGM
// (linear Gauss-Markov) factor per currency plus one lognormal FX factor per
// non-domestic currency, evolved jointly under the domestic LGM measure.
package model

import (
	"fmt"
	"math"

	"github.com/meenmo/amclib/curve"
)

// LGM1F is a one-factor linear Gauss-Markov interest rate model with constant
// mean reversion and piecewise constant volatility.
//
// The state variable x is a driftless Gaussian process with variance Zeta(t).
// Zero coupon bonds reconstruct from the initial curve via
//
//	P(t,T,x) = P(0,T)/P(0,t) * exp(-(H(T)-H(t))x - 0.5(H(T)^2-H(t)^2)Zeta(t))
type LGM1F struct {
	Currency  string
	Reversion float64
	Discount  curve.DiscountCurve

	volTimes []float64 // step times, strictly increasing
	vols     []float64 // len(volTimes)+1 segment values
}

// NewLGM1F validates the volatility step function and wires the discount
// curve. volTimes may be empty for a single flat volatility.
func NewLGM1F(ccy string, discount curve.DiscountCurve, reversion float64, volTimes, vols []float64) (*LGM1F, error) {
	if discount == nil {
		return nil, fmt.Errorf("NewLGM1F: %s: %w", ccy, curve.ErrNilCurve)
	}
	if len(vols) != len(volTimes)+1 {
		return nil, fmt.Errorf("NewLGM1F: %s: %d vols for %d step times", ccy, len(vols), len(volTimes))
	}
	for i := 1; i < len(volTimes); i++ {
		if volTimes[i] <= volTimes[i-1] {
			return nil, fmt.Errorf("NewLGM1F: %s: vol times not increasing at %d", ccy, i)
		}
	}
	for i, v := range vols {
		if v < 0 {
			return nil, fmt.Errorf("NewLGM1F: %s: negative vol %v at segment %d", ccy, v, i)
		}
	}
	return &LGM1F{
		Currency:  ccy,
		Reversion: reversion,
		Discount:  discount,
		volTimes:  volTimes,
		vols:      vols,
	}, nil
}

// H is the deterministic scaling function (1-exp(-a*t))/a, linear for a ~ 0.
func (m *LGM1F) H(t float64) float64 {
	a := m.Reversion
	if math.Abs(a) < 1e-10 {
		return t
	}
	return (1 - math.Exp(-a*t)) / a
}

// Hprime is dH/dt = exp(-a*t).
func (m *LGM1F) Hprime(t float64) float64 {
	return math.Exp(-m.Reversion * t)
}

// Zeta is the accumulated state variance int_0^t alpha(s)^2 ds.
func (m *LGM1F) Zeta(t float64) float64 {
	if t <= 0 {
		return 0
	}
	var z, prev float64
	for i, tau := range m.volTimes {
		if t <= tau {
			return z + m.vols[i]*m.vols[i]*(t-prev)
		}
		z += m.vols[i] * m.vols[i] * (tau - prev)
		prev = tau
	}
	last := m.vols[len(m.vols)-1]
	return z + last*last*(t-prev)
}

// Alpha returns the instantaneous volatility at time t.
func (m *LGM1F) Alpha(t float64) float64 {
	for i, tau := range m.volTimes {
		if t < tau {
			return m.vols[i]
		}
	}
	return m.vols[len(m.vols)-1]
}

// DiscountBond is P(t,T,x) reconstructed from the model's own curve.
func (m *LGM1F) DiscountBond(t, T, x float64) float64 {
	return m.DiscountBondCurve(t, T, x, m.Discount)
}

// DiscountBondCurve is P(t,T,x) reconstructed from an alternative initial
// curve c (a forwarding curve in a multi-curve setup). The Gaussian
// adjustment is unchanged; only the deterministic ratio moves to c.
func (m *LGM1F) DiscountBondCurve(t, T, x float64, c curve.DiscountCurve) float64 {
	if T < t {
		panic(fmt.Sprintf("lgm: discount bond with T=%v < t=%v", T, t))
	}
	ht := m.H(t)
	hT := m.H(T)
	return c.DiscountT(T) / c.DiscountT(t) *
		math.Exp(-(hT-ht)*x-0.5*(hT*hT-ht*ht)*m.Zeta(t))
}

// Numeraire is the LGM numeraire N(t,x) = exp(H(t)x + 0.5 H(t)^2 Zeta(t)) / P(0,t).
func (m *LGM1F) Numeraire(t, x float64) float64 {
	h := m.H(t)
	return math.Exp(h*x+0.5*h*h*m.Zeta(t)) / m.Discount.DiscountT(t)
}

// ShortRate is r(t,x) = f(0,t) + H'(t)x + H(t)H'(t)Zeta(t), with the initial
// instantaneous forward approximated by a symmetric difference on the curve.
func (m *LGM1F) ShortRate(t, x float64) float64 {
	const h = 1e-4
	lo := math.Max(t-h, 0)
	f0 := math.Log(m.Discount.DiscountT(lo)/m.Discount.DiscountT(t+h)) / (t + h - lo)
	hp := m.Hprime(t)
	return f0 + hp*x + m.H(t)*hp*m.Zeta(t)
}
