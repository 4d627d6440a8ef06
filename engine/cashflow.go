package engine

import (
	"fmt"
	"math"
	"time"

	"github.com/meenmo/amclib/coupon"
	"github.com/meenmo/amclib/market"
	"github.com/meenmo/amclib/model"
)

// tinyTime separates a coupon's exercise-into criterion time from its
// accrual start, so that an exercise exactly on the accrual start date
// still picks up the coupon.
const tinyTime = 1e-10

// cashflowInfo is the engine's decomposition of one contractual cashflow:
// the times it needs on the simulation grid and a closure producing the
// (undiscounted) amount in payment currency per calibration sample.
type cashflowInfo struct {
	legNo, cfNo int
	payTime     float64
	// exIntoCriterionTime decides whether the cashflow belongs to the
	// underlying one exercises into at a given exercise time. Always
	// <= payTime.
	exIntoCriterionTime float64
	payCcyIndex         int
	payer               float64
	simTimes            []float64
	amount              func(p *pathData) ([]float64, error)
}

func (e *Engine) createCashflowInfo(legNo, cfNo int, ccyIdx int, payer float64, flow coupon.Flow) (cashflowInfo, error) {
	ev := e.evaluator
	info := cashflowInfo{
		legNo:       legNo,
		cfNo:        cfNo,
		payCcyIndex: ccyIdx,
		payer:       payer,
		payTime:     ev.T(flow.PayDate()),
	}
	info.simTimes = append(info.simTimes, info.payTime)
	info.exIntoCriterionTime = info.payTime

	// Unwrap the composition layers around the base coupon.
	var fxWrap *coupon.FXLinkedNotional
	var cap, floor *float64
	naked := false
	base := flow
	if w, ok := base.(*coupon.FXLinkedNotional); ok {
		fxWrap = w
		base = w.Underlying
	}
	if w, ok := base.(*coupon.NakedOption); ok {
		naked = true
		base = w.Underlying
	}
	if w, ok := base.(*coupon.CappedFloored); ok {
		cap, floor = w.Cap, w.Floor
		if cap == nil && floor == nil {
			return info, fmt.Errorf("createCashflowInfo: leg %d cashflow %d: capped/floored wrapper without cap or floor", legNo, cfNo)
		}
		base = w.Underlying
	}

	if acc, ok := base.(coupon.Accruing); ok {
		tAcc := ev.T(acc.AccrualStart())
		if !acc.AccrualStart().Before(flow.PayDate()) {
			return info, fmt.Errorf("createCashflowInfo: leg %d cashflow %d: accrual start %s not before pay date %s",
				legNo, cfNo, acc.AccrualStart().Format("2006-01-02"), flow.PayDate().Format("2006-01-02"))
		}
		info.exIntoCriterionTime = tAcc + tinyTime
	}

	// amountRate builds the effective rate amount for floating coupons.
	// obsTime is where the model state is observed; zero or negative means
	// the deterministic initial state.
	type rateFn func(t float64, x []float64) ([]float64, error)
	makeFloatingAmount := func(b *coupon.FloatingBase, obsTime float64, gearing, spread float64, rate rateFn) func(p *pathData) ([]float64, error) {
		t := math.Max(obsTime, 0)
		if t > 0 {
			info.simTimes = append(info.simTimes, t)
		}
		irIdx := e.model.IrStateIndex(ccyIdx)
		return func(p *pathData) ([]float64, error) {
			x, err := p.factorState(t, irIdx)
			if err != nil {
				return nil, err
			}
			r, err := rate(t, x)
			if err != nil {
				return nil, err
			}
			out := make([]float64, len(r))
			for i := range r {
				eff := model.EffectiveCapFlooredRate(r[i], gearing, spread, cap, floor, naked)
				out[i] = b.Nominal * b.Accrual * eff
			}
			return out, nil
		}
	}

	switch c := base.(type) {
	case *coupon.FixedAmount:
		if cap != nil || floor != nil || naked || fxWrap != nil {
			return info, fmt.Errorf("createCashflowInfo: leg %d cashflow %d: wrapper around fixed amount: %w", legNo, cfNo, ErrUnsupportedCashflow)
		}
		amount := c.Amount
		info.amount = func(p *pathData) ([]float64, error) {
			return broadcast(amount, p.samples), nil
		}
		return info, nil

	case *coupon.FixedCoupon:
		if cap != nil || floor != nil || naked {
			return info, fmt.Errorf("createCashflowInfo: leg %d cashflow %d: cap/floor on fixed coupon: %w", legNo, cfNo, ErrUnsupportedCashflow)
		}
		amount := c.Amount()
		info.amount = func(p *pathData) ([]float64, error) {
			return broadcast(amount, p.samples), nil
		}

	case *coupon.FXLinkedFlow:
		if cap != nil || floor != nil || naked || fxWrap != nil {
			return info, fmt.Errorf("createCashflowInfo: leg %d cashflow %d: wrapper around fx linked flow: %w", legNo, cfNo, ErrUnsupportedCashflow)
		}
		fix, err := e.fxFixingValue(&info, c.Index, c.FXFixingDate)
		if err != nil {
			return info, fmt.Errorf("createCashflowInfo: leg %d cashflow %d: %w", legNo, cfNo, err)
		}
		amt := c.ForeignAmount
		info.amount = func(p *pathData) ([]float64, error) {
			fx, err := fix(p)
			if err != nil {
				return nil, err
			}
			out := make([]float64, len(fx))
			for i := range fx {
				out[i] = amt * fx[i]
			}
			return out, nil
		}
		return info, nil

	case *coupon.IborCoupon:
		idx := c.Index
		fd := c.FixingDate
		info.amount = makeFloatingAmount(&c.FloatingBase, ev.T(fd), c.Gearing, c.Spread,
			func(t float64, x []float64) ([]float64, error) {
				return ev.IborRate(ccyIdx, idx, fd, t, x)
			})

	case *coupon.CMSCoupon:
		idx := c.Index
		fd := c.FixingDate
		info.amount = makeFloatingAmount(&c.FloatingBase, ev.T(fd), c.Gearing, c.Spread,
			func(t float64, x []float64) ([]float64, error) {
				return ev.SwapRate(ccyIdx, idx, fd, t, x)
			})

	case *coupon.OvernightCompoundedCoupon:
		var err error
		if cap, floor, naked, err = mergeCapFloor(cap, floor, naked, c.Cap, c.Floor, c.NakedOption); err != nil {
			return info, fmt.Errorf("createCashflowInfo: leg %d cashflow %d: %w", legNo, cfNo, err)
		}
		gearing, spread := c.Gearing, c.Spread
		if c.IncludeSpread {
			// Spread compounds with the daily rates; fold it into the
			// effective rate before cap/floor strikes apply.
			spread = 0
		}
		cc := c
		info.amount = makeFloatingAmount(&c.FloatingBase, ev.T(c.ValueDates[0]), gearing, spread,
			func(t float64, x []float64) ([]float64, error) {
				r, err := ev.CompoundedOnRate(ccyIdx, cc.Index, cc.FixingDates, cc.ValueDates, cc.DT, cc.RateCutoff, t, x)
				if err != nil {
					return nil, err
				}
				if cc.IncludeSpread {
					for i := range r {
						r[i] += cc.Spread
					}
				}
				return r, nil
			})

	case *coupon.OvernightAveragedCoupon:
		var err error
		if cap, floor, naked, err = mergeCapFloor(cap, floor, naked, c.Cap, c.Floor, c.NakedOption); err != nil {
			return info, fmt.Errorf("createCashflowInfo: leg %d cashflow %d: %w", legNo, cfNo, err)
		}
		gearing, spread := c.Gearing, c.Spread
		if c.IncludeSpread {
			spread = 0
		}
		cc := c
		info.amount = makeFloatingAmount(&c.FloatingBase, ev.T(c.ValueDates[0]), gearing, spread,
			func(t float64, x []float64) ([]float64, error) {
				r, err := ev.AveragedOnRate(ccyIdx, cc.Index, cc.FixingDates, cc.ValueDates, cc.DT, cc.RateCutoff, t, x)
				if err != nil {
					return nil, err
				}
				if cc.IncludeSpread {
					for i := range r {
						r[i] += cc.Spread
					}
				}
				return r, nil
			})

	case *coupon.BMACoupon:
		var err error
		if cap, floor, naked, err = mergeCapFloor(cap, floor, naked, c.Cap, c.Floor, c.NakedOption); err != nil {
			return info, fmt.Errorf("createCashflowInfo: leg %d cashflow %d: %w", legNo, cfNo, err)
		}
		cc := c
		info.amount = makeFloatingAmount(&c.FloatingBase, ev.T(c.AccrStart), c.Gearing, c.Spread,
			func(t float64, x []float64) ([]float64, error) {
				return ev.AveragedBmaRate(ccyIdx, cc.Index, cc.FixingDates, cc.AccrStart, cc.AccrEnd, t, x)
			})

	case *coupon.SubPeriodsCoupon:
		cc := c
		info.amount = makeFloatingAmount(&c.FloatingBase, ev.T(c.FixingDates[0]), c.Gearing, c.Spread,
			func(t float64, x []float64) ([]float64, error) {
				return ev.SubPeriodsRate(ccyIdx, cc.Index, cc.FixingDates, t, x)
			})

	default:
		return info, fmt.Errorf("createCashflowInfo: leg %d cashflow %d: %T: %w", legNo, cfNo, base, ErrUnsupportedCashflow)
	}

	if fxWrap != nil {
		fix, err := e.fxFixingValue(&info, fxWrap.Index, fxWrap.FXFixingDate)
		if err != nil {
			return info, fmt.Errorf("createCashflowInfo: leg %d cashflow %d: %w", legNo, cfNo, err)
		}
		inner := info.amount
		info.amount = func(p *pathData) ([]float64, error) {
			a, err := inner(p)
			if err != nil {
				return nil, err
			}
			fx, err := fix(p)
			if err != nil {
				return nil, err
			}
			for i := range a {
				a[i] *= fx[i]
			}
			return a, nil
		}
	}

	return info, nil
}

// mergeCapFloor resolves cap/floor wrapper strikes against a coupon's
// intrinsic strikes. At most one of the two may carry strikes.
func mergeCapFloor(wCap, wFloor *float64, wNaked bool, cCap, cFloor *float64, cNaked bool) (*float64, *float64, bool, error) {
	if wCap == nil && wFloor == nil {
		return cCap, cFloor, cNaked, nil
	}
	if cCap != nil || cFloor != nil {
		return nil, nil, false, fmt.Errorf("cap/floor wrapper around coupon with intrinsic cap/floor: %w", ErrUnsupportedCashflow)
	}
	return wCap, wFloor, wNaked, nil
}

// fxFixingValue resolves an FX fixing per sample: realized fixings from the
// feed, future fixings from the simulated FX states (triangulated through
// the domestic currency). A fixing dated on the reference date is consulted
// on the feed first. The observation time is registered on info's
// simulation times.
func (e *Engine) fxFixingValue(info *cashflowInfo, idx market.FXIndex, fixingDate time.Time) (func(p *pathData) ([]float64, error), error) {
	ev := e.evaluator
	if !fixingDate.After(ev.Reference) {
		if v, ok := ev.Fixings.Fixing(idx.Name, fixingDate); ok {
			return func(p *pathData) ([]float64, error) {
				return broadcast(v, p.samples), nil
			}, nil
		}
		if fixingDate.Before(ev.Reference) {
			return nil, fmt.Errorf("fxFixingValue: missing fx fixing for %s on %s", idx.Name, fixingDate.Format("2006-01-02"))
		}
	}

	srcIdx, err := e.model.CcyIndex(idx.Source)
	if err != nil {
		return nil, fmt.Errorf("fxFixingValue: %w", err)
	}
	tgtIdx, err := e.model.CcyIndex(idx.Target)
	if err != nil {
		return nil, fmt.Errorf("fxFixingValue: %w", err)
	}

	t := math.Max(ev.T(fixingDate), 0)
	if t > 0 {
		info.simTimes = append(info.simTimes, t)
	}
	return func(p *pathData) ([]float64, error) {
		out := broadcast(1, p.samples)
		if srcIdx > 0 {
			s, err := p.factorState(t, e.model.FxStateIndex(srcIdx))
			if err != nil {
				return nil, err
			}
			for i := range out {
				out[i] *= math.Exp(s[i])
			}
		}
		if tgtIdx > 0 {
			s, err := p.factorState(t, e.model.FxStateIndex(tgtIdx))
			if err != nil {
				return nil, err
			}
			for i := range out {
				out[i] /= math.Exp(s[i])
			}
		}
		return out, nil
	}, nil
}

func broadcast(v float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}
