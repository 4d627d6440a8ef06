package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/meenmo/amclib/calendar"
	"github.com/meenmo/amclib/coupon"
	"github.com/meenmo/amclib/curve"
	"github.com/meenmo/amclib/market"
	"github.com/meenmo/amclib/marketdata"
	"github.com/meenmo/amclib/model"
	"github.com/meenmo/amclib/utils"
)

var ref = time.Date(2026, time.March, 2, 0, 0, 0, 0, time.UTC)

func d(y int, m time.Month, day int) time.Time {
	return time.Date(y, m, day, 0, 0, 0, 0, time.UTC)
}

// singleCcyModel builds a one currency model with the given flat zero rate
// and LGM volatility.
func singleCcyModel(t *testing.T, rate, vol float64) (*model.CrossAssetModel, *model.RateEvaluator) {
	t.Helper()
	c := curve.Flat(ref, rate)
	lgm, err := model.NewLGM1F("EUR", c, 0.01, nil, []float64{vol})
	require.NoError(t, err)
	cam, err := model.NewCrossAssetModel([]*model.LGM1F{lgm}, nil, nil)
	require.NoError(t, err)
	ev := &model.RateEvaluator{Model: cam, Reference: ref, Fixings: marketdata.EmptyFeed()}
	return cam, ev
}

func testConfig(samples int) Config {
	cfg := DefaultConfig()
	cfg.Samples = samples
	return cfg
}

func fixedLeg(payer bool, coupons ...*coupon.FixedCoupon) coupon.Leg {
	flows := make([]coupon.Flow, len(coupons))
	for i, c := range coupons {
		flows[i] = c
	}
	return coupon.Leg{Currency: "EUR", Payer: payer, Flows: flows}
}

func TestFixedLegMatchesDiscountedCashflows(t *testing.T) {
	t.Parallel()

	cam, ev := singleCcyModel(t, 0.03, 0)
	leg := fixedLeg(false,
		&coupon.FixedCoupon{Date: d(2027, time.March, 2), Nominal: 1e6, Rate: 0.03, AccrStart: ref, AccrEnd: d(2027, time.March, 2), Accrual: 1},
		&coupon.FixedCoupon{Date: d(2028, time.March, 2), Nominal: 1e6, Rate: 0.03, AccrStart: d(2027, time.March, 2), AccrEnd: d(2028, time.March, 2), Accrual: 1},
	)

	e, err := NewEngine(cam, ev, []coupon.Leg{leg}, nil, SettlementPhysical, nil, testConfig(100))
	require.NoError(t, err)
	res, err := e.Calculate()
	require.NoError(t, err)

	c := cam.IR[0].Discount
	want := 1e6*0.03*c.DF(d(2027, time.March, 2)) + 1e6*0.03*c.DF(d(2028, time.March, 2))
	require.InDelta(t, want, res.UnderlyingValue, 1e-6)
	// Without exercise rights the trade value is the underlying value.
	require.InDelta(t, res.UnderlyingValue, res.Value, 1e-12)
}

func TestFixedLegStochasticNumeraireUnbiased(t *testing.T) {
	t.Parallel()

	cam, ev := singleCcyModel(t, 0.03, 0.01)
	payDate := d(2031, time.March, 3)
	leg := fixedLeg(false,
		&coupon.FixedCoupon{Date: payDate, Nominal: 1e6, Rate: 0.04, AccrStart: d(2030, time.March, 4), AccrEnd: payDate, Accrual: 1},
	)

	e, err := NewEngine(cam, ev, []coupon.Leg{leg}, nil, SettlementPhysical, nil, testConfig(50000))
	require.NoError(t, err)
	res, err := e.Calculate()
	require.NoError(t, err)

	want := 1e6 * 0.04 * cam.IR[0].Discount.DF(payDate)
	require.InEpsilon(t, want, res.UnderlyingValue, 0.01)
}

func TestIborLegZeroVolMatchesCurveForwards(t *testing.T) {
	t.Parallel()

	cam, ev := singleCcyModel(t, 0.02, 0)
	idx := &market.IborIndex{
		Name:        "EUR-EURIBOR-6M",
		Currency:    "EUR",
		TenorMonths: 6,
		DayCount:    "ACT/360",
		Calendar:    calendar.TARGET,
		FixingLag:   2,
	}

	conv := market.LegConvention{
		LegType:       market.LegFloating,
		DayCount:      "ACT/360",
		PayFrequency:  market.FreqSemi,
		Calendar:      calendar.TARGET,
		FixingLagDays: 2,
	}
	periods, err := coupon.GenerateSchedule(d(2026, time.September, 2), d(2028, time.September, 4), conv)
	require.NoError(t, err)
	leg := coupon.BuildIborLeg("EUR", false, 1e6, 1, 0, idx, periods, "ACT/360")

	e, err := NewEngine(cam, ev, []coupon.Leg{leg}, nil, SettlementPhysical, nil, testConfig(100))
	require.NoError(t, err)
	res, err := e.Calculate()
	require.NoError(t, err)

	c := cam.IR[0].Discount
	var want float64
	for _, flow := range leg.Flows {
		ic := flow.(*coupon.IborCoupon)
		start, end := idx.ValueDates(ic.FixingDate)
		tau := utils.YearFraction(start, end, idx.DayCount)
		fwd := (c.DF(start)/c.DF(end) - 1) / tau
		want += 1e6 * ic.Accrual * fwd * c.DF(ic.Date)
	}
	require.InDelta(t, want, res.UnderlyingValue, 1.0)
}

func TestNoAliveCashflows(t *testing.T) {
	t.Parallel()

	cam, ev := singleCcyModel(t, 0.02, 0)
	leg := fixedLeg(false,
		&coupon.FixedCoupon{Date: d(2026, time.January, 2), Nominal: 1e6, Rate: 0.03, AccrStart: d(2025, time.January, 2), AccrEnd: d(2026, time.January, 2), Accrual: 1},
	)

	e, err := NewEngine(cam, ev, []coupon.Leg{leg}, nil, SettlementPhysical, nil, testConfig(100))
	require.NoError(t, err)
	_, err = e.Calculate()
	require.ErrorIs(t, err, ErrEmptySimulationTimes)
}

func TestCallableReceiverExercisesWhenValuable(t *testing.T) {
	t.Parallel()

	cam, ev := singleCcyModel(t, 0.03, 0)
	// Both coupons start accruing after the exercise date, so the exercise
	// delivers the full remaining underlying.
	leg := fixedLeg(false,
		&coupon.FixedCoupon{Date: d(2027, time.March, 2), Nominal: 1e6, Rate: 0.05, AccrStart: d(2026, time.October, 2), AccrEnd: d(2027, time.March, 2), Accrual: 0.42},
		&coupon.FixedCoupon{Date: d(2028, time.March, 2), Nominal: 1e6, Rate: 0.05, AccrStart: d(2027, time.March, 2), AccrEnd: d(2028, time.March, 2), Accrual: 1},
	)
	exercise := []time.Time{d(2026, time.September, 2)}

	e, err := NewEngine(cam, ev, []coupon.Leg{leg}, exercise, SettlementPhysical, nil, testConfig(200))
	require.NoError(t, err)
	res, err := e.Calculate()
	require.NoError(t, err)

	// Deterministic positive underlying: the holder exercises and the
	// option value equals the underlying value.
	require.Greater(t, res.UnderlyingValue, 0.0)
	require.InDelta(t, res.UnderlyingValue, res.Value, 1e-6)
}

func TestCallablePayerNeverExercises(t *testing.T) {
	t.Parallel()

	cam, ev := singleCcyModel(t, 0.03, 0)
	leg := fixedLeg(true,
		&coupon.FixedCoupon{Date: d(2028, time.March, 2), Nominal: 1e6, Rate: 0.05, AccrStart: d(2027, time.March, 2), AccrEnd: d(2028, time.March, 2), Accrual: 1},
	)
	exercise := []time.Time{d(2026, time.September, 2)}

	e, err := NewEngine(cam, ev, []coupon.Leg{leg}, exercise, SettlementPhysical, nil, testConfig(200))
	require.NoError(t, err)
	res, err := e.Calculate()
	require.NoError(t, err)

	// Exercising into a liability is never optimal; the option is worth 0.
	require.Less(t, res.UnderlyingValue, 0.0)
	require.InDelta(t, 0, res.Value, 1e-9)
}

func TestExerciseExcludesCouponsAlreadyAccruing(t *testing.T) {
	t.Parallel()

	cam, ev := singleCcyModel(t, 0.03, 0)
	// First coupon starts accruing at the reference date: it is never part
	// of the exercise-into underlying. Exercising captures only the second.
	leg := fixedLeg(false,
		&coupon.FixedCoupon{Date: d(2027, time.March, 2), Nominal: 1e6, Rate: 0.05, AccrStart: ref, AccrEnd: d(2027, time.March, 2), Accrual: 1},
		&coupon.FixedCoupon{Date: d(2028, time.March, 2), Nominal: 1e6, Rate: 0.05, AccrStart: d(2027, time.March, 2), AccrEnd: d(2028, time.March, 2), Accrual: 1},
	)
	exercise := []time.Time{d(2026, time.September, 2)}

	e, err := NewEngine(cam, ev, []coupon.Leg{leg}, exercise, SettlementPhysical, nil, testConfig(200))
	require.NoError(t, err)
	res, err := e.Calculate()
	require.NoError(t, err)

	c := cam.IR[0].Discount
	wantOption := 1e6 * 0.05 * c.DF(d(2028, time.March, 2))
	require.InDelta(t, wantOption, res.Value, 1e-6)
	require.Greater(t, res.UnderlyingValue, res.Value)
}

func TestCalculateDeterministicRerun(t *testing.T) {
	t.Parallel()

	run := func() *Result {
		cam, ev := singleCcyModel(t, 0.03, 0.01)
		leg := fixedLeg(false,
			&coupon.FixedCoupon{Date: d(2027, time.March, 2), Nominal: 1e6, Rate: 0.05, AccrStart: d(2026, time.October, 2), AccrEnd: d(2027, time.March, 2), Accrual: 0.42},
			&coupon.FixedCoupon{Date: d(2028, time.March, 2), Nominal: 1e6, Rate: 0.05, AccrStart: d(2027, time.March, 2), AccrEnd: d(2028, time.March, 2), Accrual: 1},
		)
		exercise := []time.Time{d(2026, time.September, 2)}
		simulation := []time.Time{d(2026, time.December, 2), d(2027, time.September, 2)}

		e, err := NewEngine(cam, ev, []coupon.Leg{leg}, exercise, SettlementPhysical, simulation, testConfig(500))
		require.NoError(t, err)
		res, err := e.Calculate()
		require.NoError(t, err)
		return res
	}

	// Same seed, same inputs: results are bit-identical across runs.
	a, b := run(), run()
	require.Equal(t, a.Value, b.Value)
	require.Equal(t, a.UnderlyingValue, b.UnderlyingValue)
}

// onCoupon builds a one year compounded overnight coupon starting half a
// year after the reference date, so no historical fixings are needed.
func onCoupon(fwd curve.DiscountCurve) *coupon.OvernightCompoundedCoupon {
	idx := &market.OvernightIndex{
		Name:       "EUR-ESTR",
		Currency:   "EUR",
		DayCount:   "ACT/360",
		Calendar:   calendar.TARGET,
		Forwarding: fwd,
	}
	start, end := d(2026, time.September, 2), d(2027, time.September, 2)
	fixings, values, dt := coupon.OvernightObservationDates(idx, start, end)
	return &coupon.OvernightCompoundedCoupon{
		FloatingBase: coupon.FloatingBase{
			Date:      end,
			Nominal:   1e6,
			Gearing:   1,
			AccrStart: start,
			AccrEnd:   end,
			Accrual:   utils.YearFraction(start, end, "ACT/360"),
		},
		Index:       idx,
		FixingDates: fixings,
		ValueDates:  values,
		DT:          dt,
	}
}

func TestCapFloorWrapperBindsOnOvernightCoupon(t *testing.T) {
	t.Parallel()

	cam, ev := singleCcyModel(t, 0.05, 0)
	fwd := cam.IR[0].Discount

	plain := coupon.Leg{Currency: "EUR", Flows: []coupon.Flow{onCoupon(fwd)}}
	capStrike := 0.001
	wrapped := coupon.Leg{Currency: "EUR", Flows: []coupon.Flow{
		&coupon.CappedFloored{Underlying: onCoupon(fwd), Cap: &capStrike},
	}}

	price := func(leg coupon.Leg) float64 {
		e, err := NewEngine(cam, ev, []coupon.Leg{leg}, nil, SettlementPhysical, nil, testConfig(100))
		require.NoError(t, err)
		res, err := e.Calculate()
		require.NoError(t, err)
		return res.Value
	}

	plainNpv := price(plain)
	cappedNpv := price(wrapped)
	require.Less(t, cappedNpv, plainNpv)

	// Zero vol: the compounded rate is deterministic and well above the
	// deep in-the-money cap, so the coupon pays exactly the cap rate.
	cpn := plain.Flows[0].(*coupon.OvernightCompoundedCoupon)
	want := 1e6 * cpn.Accrual * capStrike * fwd.DF(cpn.Date)
	require.InDelta(t, want, cappedNpv, 1e-6)
}

func TestCapFloorWrapperConflictsWithIntrinsicStrikes(t *testing.T) {
	t.Parallel()

	cam, ev := singleCcyModel(t, 0.05, 0)
	fwd := cam.IR[0].Discount

	inner := onCoupon(fwd)
	intrinsic := 0.04
	inner.Cap = &intrinsic
	outer := 0.03
	leg := coupon.Leg{Currency: "EUR", Flows: []coupon.Flow{
		&coupon.CappedFloored{Underlying: inner, Cap: &outer},
	}}

	e, err := NewEngine(cam, ev, []coupon.Leg{leg}, nil, SettlementPhysical, nil, testConfig(100))
	require.NoError(t, err)
	_, err = e.Calculate()
	require.ErrorIs(t, err, ErrUnsupportedCashflow)
}

func TestFxFixingOnReferenceDateUsesFeed(t *testing.T) {
	t.Parallel()

	dom := curve.Flat(ref, 0.03)
	eur, err := model.NewLGM1F("EUR", dom, 0.01, nil, []float64{0})
	require.NoError(t, err)
	usd, err := model.NewLGM1F("USD", curve.Flat(ref, 0.02), 0.01, nil, []float64{0})
	require.NoError(t, err)
	fx, err := model.NewFXBS("USD", 1.25, nil, []float64{0})
	require.NoError(t, err)
	cam, err := model.NewCrossAssetModel([]*model.LGM1F{eur, usd}, []*model.FXBS{fx}, nil)
	require.NoError(t, err)

	idx := market.FXIndex{Name: "ECB-USD-EUR", Source: "USD", Target: "EUR", Calendar: calendar.TARGET}
	pay := d(2027, time.March, 2)
	leg := coupon.Leg{Currency: "EUR", Flows: []coupon.Flow{
		&coupon.FXLinkedFlow{Date: pay, ForeignAmount: 1e6, FXFixingDate: ref, Index: idx},
	}}

	price := func(feed marketdata.FixingFeed) float64 {
		ev := &model.RateEvaluator{Model: cam, Reference: ref, Fixings: feed}
		e, err := NewEngine(cam, ev, []coupon.Leg{leg}, nil, SettlementPhysical, nil, testConfig(100))
		require.NoError(t, err)
		res, err := e.Calculate()
		require.NoError(t, err)
		return res.Value
	}

	// A published fixing on the reference date wins over the model spot.
	feed := marketdata.NewMapFixingFeed(map[string]map[string]float64{
		"ECB-USD-EUR": {"2026-03-02": 1.10},
	})
	require.InDelta(t, 1e6*1.10*dom.DF(pay), price(feed), 1e-3)

	// Without a published fixing the reference date falls back to the
	// model's initial spot.
	require.InDelta(t, 1e6*1.25*dom.DF(pay), price(marketdata.EmptyFeed()), 1e-3)
}

func TestOptionValueNeverExceedsDirtyUnderlying(t *testing.T) {
	t.Parallel()

	// Every cashflow of the receiver leg is non-negative, so the bundle
	// exercised into is always a sub-sum of the dirty underlying and the
	// option value cannot exceed the underlying value.
	cam, ev := singleCcyModel(t, 0.03, 0.01)
	leg := fixedLeg(false,
		&coupon.FixedCoupon{Date: d(2027, time.March, 2), Nominal: 1e6, Rate: 0.04, AccrStart: d(2026, time.September, 2), AccrEnd: d(2027, time.March, 2), Accrual: 0.5},
		&coupon.FixedCoupon{Date: d(2028, time.March, 2), Nominal: 1e6, Rate: 0.04, AccrStart: d(2027, time.March, 2), AccrEnd: d(2028, time.March, 2), Accrual: 1},
		&coupon.FixedCoupon{Date: d(2029, time.March, 2), Nominal: 1e6, Rate: 0.04, AccrStart: d(2028, time.March, 2), AccrEnd: d(2029, time.March, 2), Accrual: 1},
	)
	exercise := []time.Time{d(2026, time.June, 2), d(2027, time.June, 2), d(2028, time.June, 2)}

	e, err := NewEngine(cam, ev, []coupon.Leg{leg}, exercise, SettlementPhysical, nil, testConfig(2000))
	require.NoError(t, err)
	res, err := e.Calculate()
	require.NoError(t, err)

	require.Greater(t, res.Value, 0.0)
	require.LessOrEqual(t, res.Value, res.UnderlyingValue+1e-6)
}

func TestSimulatePathReplayMatchesReferenceValue(t *testing.T) {
	t.Parallel()

	cam, ev := singleCcyModel(t, 0.03, 0.01)
	leg := fixedLeg(false,
		&coupon.FixedCoupon{Date: d(2028, time.March, 2), Nominal: 1e6, Rate: 0.05, AccrStart: d(2027, time.March, 2), AccrEnd: d(2028, time.March, 2), Accrual: 1},
	)
	simulation := []time.Time{d(2027, time.March, 2)}

	cfg := testConfig(20000)
	e, err := NewEngine(cam, ev, []coupon.Leg{leg}, nil, SettlementPhysical, simulation, cfg)
	require.NoError(t, err)
	res, err := e.Calculate()
	require.NoError(t, err)
	calc := res.Calculator

	// Replay on paths drawn from the same model: the mean deflated
	// exposure before the payment date reproduces the reference value.
	const samples = 20000
	times := calc.XvaTimes()
	require.Len(t, times, 1)

	proc := &model.LGM1FProcess{Model: cam.IR[0]}
	pg, err := model.NewPathGenerator(proc, times, model.NewPseudoRandom(7), model.OrderStepMajor)
	require.NoError(t, err)
	paths := [][][]float64{{make([]float64, samples)}}
	buf := [][]float64{make([]float64, 1)}
	for s := 0; s < samples; s++ {
		pg.NextPath(buf)
		paths[0][0][s] = buf[0][0]
	}

	values, err := calc.SimulatePath(times, paths, []bool{true}, false)
	require.NoError(t, err)

	for _, v := range values[0] {
		require.Equal(t, res.Value, v)
	}
	var meanExposure float64
	for _, v := range values[1] {
		meanExposure += v
	}
	meanExposure /= samples
	require.InEpsilon(t, res.Value, meanExposure, 0.01)
}
