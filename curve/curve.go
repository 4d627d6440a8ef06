// Package curve provides discount curves for the pricing model.
//
// Curve construction from market quotes (bootstrap) is out of scope here;
// curves are built from externally supplied discount factors or flat zero
// rates, the way a calibrated model hands them to the engine.
package curve

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/meenmo/amclib/utils"
)

// ErrNilCurve is returned when a required curve argument is nil.
var ErrNilCurve = errors.New("nil curve")

// DiscountCurve provides discount factors for valuation.
type DiscountCurve interface {
	// DF returns the discount factor for a payment date.
	DF(d time.Time) float64
	// DiscountT returns the discount factor at a year fraction from the
	// curve's reference date (ACT/365F time axis).
	DiscountT(t float64) float64
	// Reference returns the curve's reference date.
	Reference() time.Time
}

// ZeroCurve is a discount curve interpolated log-linearly in discount factor
// space (equivalently, piecewise-flat instantaneous forwards) over a set of
// pillar dates. Extrapolation beyond the last pillar is flat-forward.
type ZeroCurve struct {
	reference time.Time
	pillarT   []float64 // year fractions, ascending, pillarT[0] == 0
	pillarDF  []float64
}

// NewZeroCurve creates a curve from explicit discount factors at dates.
// The reference date is always a pillar with DF = 1.
func NewZeroCurve(reference time.Time, dfs map[time.Time]float64) (*ZeroCurve, error) {
	dates := make([]time.Time, 0, len(dfs)+1)
	for d := range dfs {
		if d.Before(reference) {
			return nil, fmt.Errorf("NewZeroCurve: pillar %s before reference %s",
				d.Format("2006-01-02"), reference.Format("2006-01-02"))
		}
		if !d.Equal(reference) {
			dates = append(dates, d)
		}
	}
	utils.SortDates(dates)

	c := &ZeroCurve{
		reference: reference,
		pillarT:   []float64{0},
		pillarDF:  []float64{1},
	}
	for _, d := range dates {
		df := dfs[d]
		if df <= 0 {
			return nil, fmt.Errorf("NewZeroCurve: non-positive DF %g at %s", df, d.Format("2006-01-02"))
		}
		c.pillarT = append(c.pillarT, utils.TimeFromReference(reference, d))
		c.pillarDF = append(c.pillarDF, df)
	}
	if len(c.pillarT) < 2 {
		return nil, fmt.Errorf("NewZeroCurve: need at least one pillar after the reference date")
	}
	return c, nil
}

// Flat builds a curve with a single continuously compounded zero rate.
func Flat(reference time.Time, rate float64) *ZeroCurve {
	return &ZeroCurve{
		reference: reference,
		pillarT:   []float64{0, 1},
		pillarDF:  []float64{1, math.Exp(-rate)},
	}
}

// Reference returns the curve's reference date.
func (c *ZeroCurve) Reference() time.Time { return c.reference }

// DF returns the discount factor for a payment date.
func (c *ZeroCurve) DF(d time.Time) float64 {
	return c.DiscountT(utils.TimeFromReference(c.reference, d))
}

// DiscountT returns the discount factor at a year fraction from reference.
func (c *ZeroCurve) DiscountT(t float64) float64 {
	if t <= 0 {
		return 1
	}

	// First pillar index with pillarT[i] >= t.
	i := sort.SearchFloat64s(c.pillarT, t)
	if i < len(c.pillarT) && c.pillarT[i] == t {
		return c.pillarDF[i]
	}
	if i >= len(c.pillarT) {
		// Flat-forward extrapolation from the last segment.
		i = len(c.pillarT) - 1
	}

	t1, t2 := c.pillarT[i-1], c.pillarT[i]
	df1, df2 := c.pillarDF[i-1], c.pillarDF[i]
	fwd := math.Log(df1/df2) / (t2 - t1)
	return df1 * math.Exp(-fwd*(t-t1))
}

// ZeroRateT returns the continuously compounded zero rate at year fraction t.
func (c *ZeroCurve) ZeroRateT(t float64) float64 {
	if t <= 0 {
		t = c.pillarT[1]
	}
	return -math.Log(c.DiscountT(t)) / t
}
