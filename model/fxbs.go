package model

import (
	"fmt"
	"math"
)

// FXBS is a lognormal FX component with piecewise constant volatility. The
// simulated state is ln(spot), quoted as units of domestic currency per unit
// of foreign currency.
type FXBS struct {
	ForeignCurrency string
	Spot            float64

	volTimes []float64
	vols     []float64
}

// NewFXBS validates the volatility step function.
func NewFXBS(foreignCcy string, spot float64, volTimes, vols []float64) (*FXBS, error) {
	if spot <= 0 {
		return nil, fmt.Errorf("NewFXBS: %s: non-positive spot %v", foreignCcy, spot)
	}
	if len(vols) != len(volTimes)+1 {
		return nil, fmt.Errorf("NewFXBS: %s: %d vols for %d step times", foreignCcy, len(vols), len(volTimes))
	}
	for i := 1; i < len(volTimes); i++ {
		if volTimes[i] <= volTimes[i-1] {
			return nil, fmt.Errorf("NewFXBS: %s: vol times not increasing at %d", foreignCcy, i)
		}
	}
	for i, v := range vols {
		if v < 0 {
			return nil, fmt.Errorf("NewFXBS: %s: negative vol %v at segment %d", foreignCcy, v, i)
		}
	}
	return &FXBS{ForeignCurrency: foreignCcy, Spot: spot, volTimes: volTimes, vols: vols}, nil
}

// Sigma returns the instantaneous volatility at time t.
func (f *FXBS) Sigma(t float64) float64 {
	for i, tau := range f.volTimes {
		if t < tau {
			return f.vols[i]
		}
	}
	return f.vols[len(f.vols)-1]
}

// Variance is int_0^t sigma(s)^2 ds.
func (f *FXBS) Variance(t float64) float64 {
	if t <= 0 {
		return 0
	}
	var v, prev float64
	for i, tau := range f.volTimes {
		if t <= tau {
			return v + f.vols[i]*f.vols[i]*(t-prev)
		}
		v += f.vols[i] * f.vols[i] * (tau - prev)
		prev = tau
	}
	last := f.vols[len(f.vols)-1]
	return v + last*last*(t-prev)
}

// LogSpot0 is the initial state ln(spot).
func (f *FXBS) LogSpot0() float64 { return math.Log(f.Spot) }
