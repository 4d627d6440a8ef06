package model

import (
	"fmt"
	"math"
	"time"

	"github.com/meenmo/amclib/calendar"
	"github.com/meenmo/amclib/curve"
	"github.com/meenmo/amclib/market"
	"github.com/meenmo/amclib/marketdata"
	"github.com/meenmo/amclib/utils"
)

// RateEvaluator projects index fixings, discount bonds and numeraires off
// the cross asset model state. All rate methods are vectorised: x carries
// one LGM state per Monte Carlo sample and the result has the same length.
//
// Fixing dates before the reference date resolve against the fixing feed
// and fail when the feed has no value; on or after the reference date the
// feed is consulted first and the model projection used as fallback.
type RateEvaluator struct {
	Model     *CrossAssetModel
	Reference time.Time
	Fixings   marketdata.FixingFeed
}

// T converts a date to model time.
func (e *RateEvaluator) T(d time.Time) float64 {
	return utils.TimeFromReference(e.Reference, d)
}

func (e *RateEvaluator) lgm(ccy int) *LGM1F { return e.Model.IR[ccy] }

func (e *RateEvaluator) forwarding(ccy int, c curve.DiscountCurve) curve.DiscountCurve {
	if c != nil {
		return c
	}
	return e.lgm(ccy).Discount
}

// DiscountBond is P(t,T,x) per sample on the currency's own curve.
func (e *RateEvaluator) DiscountBond(ccy int, t, T float64, x []float64) []float64 {
	out := make([]float64, len(x))
	m := e.lgm(ccy)
	for i, xi := range x {
		out[i] = m.DiscountBond(t, T, xi)
	}
	return out
}

// Numeraire is N(t,x) per sample.
func (e *RateEvaluator) Numeraire(ccy int, t float64, x []float64) []float64 {
	out := make([]float64, len(x))
	m := e.lgm(ccy)
	for i, xi := range x {
		out[i] = m.Numeraire(t, xi)
	}
	return out
}

// FxSpot converts FX log states to spot quotes (domestic per foreign unit).
func (e *RateEvaluator) FxSpot(fxState []float64) []float64 {
	out := make([]float64, len(fxState))
	for i, s := range fxState {
		out[i] = math.Exp(s)
	}
	return out
}

func broadcast(v float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

// historicalFixing resolves a fixing from the feed. The bool reports whether
// the value was found; a missing fixing strictly before the reference date
// is an error.
func (e *RateEvaluator) historicalFixing(name string, fixingDate time.Time) (float64, bool, error) {
	if e.Fixings != nil {
		if v, ok := e.Fixings.Fixing(name, fixingDate); ok {
			return v, true, nil
		}
	}
	if fixingDate.Before(e.Reference) {
		return 0, false, fmt.Errorf("historicalFixing: missing fixing for %s on %s", name, fixingDate.Format("2006-01-02"))
	}
	return 0, false, nil
}

// IborRate returns the index fixing per sample. Projection reads the
// forward off the forwarding curve's state dependent bonds, with value
// dates floored at the evaluation time.
func (e *RateEvaluator) IborRate(ccy int, idx *market.IborIndex, fixingDate time.Time, t float64, x []float64) ([]float64, error) {
	if v, ok, err := e.historicalFixing(idx.Name, fixingDate); err != nil {
		return nil, fmt.Errorf("IborRate: %w", err)
	} else if ok {
		return broadcast(v, len(x)), nil
	}

	start, end := idx.ValueDates(fixingDate)
	tau := utils.YearFraction(start, end, idx.DayCount)
	ts := math.Max(e.T(start), t)
	te := math.Max(e.T(end), ts+1.0/365.0)
	m := e.lgm(ccy)
	fc := e.forwarding(ccy, idx.Forwarding)
	out := make([]float64, len(x))
	for i, xi := range x {
		out[i] = (m.DiscountBondCurve(t, ts, xi, fc)/m.DiscountBondCurve(t, te, xi, fc) - 1) / tau
	}
	return out, nil
}

// SwapRate returns the par swap rate per sample: the forwarding-bond ratio
// spread over the fixed annuity rolled out from the fixing's value date.
func (e *RateEvaluator) SwapRate(ccy int, idx *market.SwapIndex, fixingDate time.Time, t float64, x []float64) ([]float64, error) {
	if v, ok, err := e.historicalFixing(idx.Name, fixingDate); err != nil {
		return nil, fmt.Errorf("SwapRate: %w", err)
	} else if ok {
		return broadcast(v, len(x)), nil
	}

	valueDate := calendar.AddBusinessDays(idx.Calendar, fixingDate, idx.FixingLag)
	m := e.lgm(ccy)
	fc := e.forwarding(ccy, idx.Forwarding)

	type fixedPeriod struct {
		t   float64
		tau float64
	}
	var fixed []fixedPeriod
	prev := valueDate
	months := idx.FixedFreqM
	for mo := months; mo <= idx.TenorYears*12; mo += months {
		d := utils.AddMonth(valueDate, mo)
		fixed = append(fixed, fixedPeriod{
			t:   math.Max(e.T(d), t),
			tau: utils.YearFraction(prev, d, idx.FixedDayCount),
		})
		prev = d
	}
	if len(fixed) == 0 {
		return nil, fmt.Errorf("SwapRate: %s: empty fixed schedule", idx.Name)
	}

	t0 := math.Max(e.T(valueDate), t)
	tN := fixed[len(fixed)-1].t
	out := make([]float64, len(x))
	for i, xi := range x {
		var annuity float64
		for _, p := range fixed {
			annuity += p.tau * m.DiscountBondCurve(t, p.t, xi, fc)
		}
		float := m.DiscountBondCurve(t, t0, xi, fc) - m.DiscountBondCurve(t, tN, xi, fc)
		out[i] = float / annuity
	}
	return out, nil
}

// CompoundedOnRate returns the effective compounded overnight rate over the
// observation period, per sample. Past sub-periods compound realized feed
// fixings; the remaining stretch compounds through the forwarding bond
// ratio. The rate cutoff repeats the last eligible fixing over the tail.
func (e *RateEvaluator) CompoundedOnRate(ccy int, idx *market.OvernightIndex, fixingDates, valueDates []time.Time, dt []float64, rateCutoff int, t float64, x []float64) ([]float64, error) {
	n := len(fixingDates)
	if len(valueDates) != n+1 || len(dt) != n {
		return nil, fmt.Errorf("CompoundedOnRate: %s: inconsistent observation arrays", idx.Name)
	}

	var tauTotal float64
	for _, d := range dt {
		tauTotal += d
	}
	if tauTotal <= 0 {
		return nil, fmt.Errorf("CompoundedOnRate: %s: zero accrual", idx.Name)
	}

	compPast := 1.0
	firstFuture := n
	for i := 0; i < n; i++ {
		j := i
		if cutoff := n - 1 - rateCutoff; j > cutoff {
			j = cutoff
		}
		v, ok, err := e.historicalFixing(idx.Name, fixingDates[j])
		if err != nil {
			return nil, fmt.Errorf("CompoundedOnRate: %w", err)
		}
		if !ok {
			firstFuture = i
			break
		}
		compPast *= 1 + v*dt[i]
	}

	out := make([]float64, len(x))
	if firstFuture == n {
		r := (compPast - 1) / tauTotal
		return broadcast(r, len(x)), nil
	}

	ta := math.Max(e.T(valueDates[firstFuture]), t)
	tb := math.Max(e.T(valueDates[n]), ta)
	m := e.lgm(ccy)
	fc := e.forwarding(ccy, idx.Forwarding)
	for i, xi := range x {
		compFwd := 1.0
		if tb > ta {
			compFwd = m.DiscountBondCurve(t, ta, xi, fc) / m.DiscountBondCurve(t, tb, xi, fc)
		}
		out[i] = (compPast*compFwd - 1) / tauTotal
	}
	return out, nil
}

// AveragedOnRate returns the arithmetic average overnight rate over the
// observation period, per sample. The future stretch averages the
// continuously compounded forward rate, a standard approximation for
// arithmetic averaging of daily rates.
func (e *RateEvaluator) AveragedOnRate(ccy int, idx *market.OvernightIndex, fixingDates, valueDates []time.Time, dt []float64, rateCutoff int, t float64, x []float64) ([]float64, error) {
	n := len(fixingDates)
	if len(valueDates) != n+1 || len(dt) != n {
		return nil, fmt.Errorf("AveragedOnRate: %s: inconsistent observation arrays", idx.Name)
	}

	var tauTotal float64
	for _, d := range dt {
		tauTotal += d
	}
	if tauTotal <= 0 {
		return nil, fmt.Errorf("AveragedOnRate: %s: zero accrual", idx.Name)
	}

	pastSum := 0.0
	firstFuture := n
	for i := 0; i < n; i++ {
		j := i
		if cutoff := n - 1 - rateCutoff; j > cutoff {
			j = cutoff
		}
		v, ok, err := e.historicalFixing(idx.Name, fixingDates[j])
		if err != nil {
			return nil, fmt.Errorf("AveragedOnRate: %w", err)
		}
		if !ok {
			firstFuture = i
			break
		}
		pastSum += v * dt[i]
	}

	if firstFuture == n {
		return broadcast(pastSum/tauTotal, len(x)), nil
	}

	ta := math.Max(e.T(valueDates[firstFuture]), t)
	tb := math.Max(e.T(valueDates[n]), ta)
	m := e.lgm(ccy)
	fc := e.forwarding(ccy, idx.Forwarding)
	out := make([]float64, len(x))
	for i, xi := range x {
		fwdSum := 0.0
		if tb > ta {
			fwdSum = math.Log(m.DiscountBondCurve(t, ta, xi, fc) / m.DiscountBondCurve(t, tb, xi, fc))
		}
		out[i] = (pastSum + fwdSum) / tauTotal
	}
	return out, nil
}

// AveragedBmaRate returns the average BMA fixing over the accrual period,
// per sample. Realized weekly fixings come from the feed; the unfixed
// remainder is read as a continuously compounded forward off the index's
// forwarding curve.
func (e *RateEvaluator) AveragedBmaRate(ccy int, idx *market.BMAIndex, fixingDates []time.Time, accrStart, accrEnd time.Time, t float64, x []float64) ([]float64, error) {
	if len(fixingDates) == 0 {
		return nil, fmt.Errorf("AveragedBmaRate: %s: no fixing dates", idx.Name)
	}

	var pastSum float64
	var pastN int
	firstFuture := len(fixingDates)
	for i, fd := range fixingDates {
		v, ok, err := e.historicalFixing(idx.Name, fd)
		if err != nil {
			return nil, fmt.Errorf("AveragedBmaRate: %w", err)
		}
		if !ok {
			firstFuture = i
			break
		}
		pastSum += v
		pastN++
	}

	total := len(fixingDates)
	if firstFuture == total {
		return broadcast(pastSum/float64(total), len(x)), nil
	}

	ta := math.Max(e.T(fixingDates[firstFuture]), t)
	tb := math.Max(e.T(accrEnd), ta+1.0/365.0)
	m := e.lgm(ccy)
	fc := e.forwarding(ccy, idx.Forwarding)
	futureW := float64(total-firstFuture) / float64(total)
	out := make([]float64, len(x))
	for i, xi := range x {
		fwd := math.Log(m.DiscountBondCurve(t, ta, xi, fc)/m.DiscountBondCurve(t, tb, xi, fc)) / (tb - ta)
		out[i] = pastSum/float64(total) + futureW*fwd
	}
	return out, nil
}

// SubPeriodsRate compounds a set of ibor sub-period fixings into one
// effective rate over the accrual, per sample.
func (e *RateEvaluator) SubPeriodsRate(ccy int, idx *market.IborIndex, fixingDates []time.Time, t float64, x []float64) ([]float64, error) {
	if len(fixingDates) == 0 {
		return nil, fmt.Errorf("SubPeriodsRate: %s: no fixing dates", idx.Name)
	}
	comp := broadcast(1, len(x))
	var tauTotal float64
	for _, fd := range fixingDates {
		f, err := e.IborRate(ccy, idx, fd, t, x)
		if err != nil {
			return nil, fmt.Errorf("SubPeriodsRate: %w", err)
		}
		tau := idx.Tau(fd)
		tauTotal += tau
		for i := range comp {
			comp[i] *= 1 + f[i]*tau
		}
	}
	out := make([]float64, len(x))
	for i := range out {
		out[i] = (comp[i] - 1) / tauTotal
	}
	return out, nil
}

// EffectiveCapFlooredRate applies the capped/floored coupon arithmetic to a
// raw index fixing f:
//
//	swaplet (dropped when naked) + floorlet - caplet
//
// with strikes adjusted for gearing and spread. When naked and no floor is
// present the caplet value is paid (long a caplet rather than short).
func EffectiveCapFlooredRate(f, gearing, spread float64, cap, floor *float64, naked bool) float64 {
	var rate float64
	if !naked {
		rate = gearing*f + spread
	}
	if floor != nil {
		strike := (*floor - spread) / gearing
		rate += gearing * math.Max(strike-f, 0)
	}
	if cap != nil {
		strike := (*cap - spread) / gearing
		capletSign := 1.0
		if naked && floor == nil {
			capletSign = -1.0
		}
		rate -= capletSign * gearing * math.Max(f-strike, 0)
	}
	return rate
}
