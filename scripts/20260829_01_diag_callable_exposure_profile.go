// Diagnostic: expected positive exposure profile of a callable receiver
// swap, replayed through the AMC calculator on externally generated paths.
package main

import (
	"fmt"
	"time"

	"github.com/meenmo/amclib/coupon"
	"github.com/meenmo/amclib/curve"
	"github.com/meenmo/amclib/engine"
	"github.com/meenmo/amclib/marketdata"
	"github.com/meenmo/amclib/model"
)

func main() {
	reference := time.Date(2026, time.March, 2, 0, 0, 0, 0, time.UTC)
	disc := curve.Flat(reference, 0.03)

	lgm, err := model.NewLGM1F("EUR", disc, 0.015, nil, []float64{0.01})
	if err != nil {
		panic(err)
	}
	cam, err := model.NewCrossAssetModel([]*model.LGM1F{lgm}, nil, nil)
	if err != nil {
		panic(err)
	}
	ev := &model.RateEvaluator{Model: cam, Reference: reference, Fixings: marketdata.EmptyFeed()}

	// Receiver of an above-market fixed rate, callable after two years.
	var flows []coupon.Flow
	for y := 1; y <= 5; y++ {
		start := reference.AddDate(y-1, 0, 0)
		end := reference.AddDate(y, 0, 0)
		flows = append(flows, &coupon.FixedCoupon{
			Date:      end,
			Nominal:   1e6,
			Rate:      0.035,
			AccrStart: start,
			AccrEnd:   end,
			Accrual:   1,
		})
	}
	leg := coupon.Leg{Currency: "EUR", Flows: flows}

	exerciseDates := []time.Time{reference.AddDate(2, 0, 0)}
	var simulationDates []time.Time
	for q := 1; q <= 16; q++ {
		simulationDates = append(simulationDates, reference.AddDate(0, 3*q, 0))
	}

	cfg := engine.DefaultConfig()
	eng, err := engine.NewEngine(cam, ev, []coupon.Leg{leg},
		exerciseDates, engine.SettlementPhysical, simulationDates, cfg)
	if err != nil {
		panic(err)
	}
	res, err := eng.Calculate()
	if err != nil {
		panic(err)
	}
	calc := res.Calculator

	// External global paths on the valuation grid.
	const samples = 5000
	times := calc.XvaTimes()
	proc := &model.LGM1FProcess{Model: lgm}
	pg, err := model.NewPathGenerator(proc, times, model.NewPseudoRandom(7), model.OrderStepMajor)
	if err != nil {
		panic(err)
	}
	paths := make([][][]float64, len(times))
	for i := range paths {
		paths[i] = [][]float64{make([]float64, samples)}
	}
	buf := make([][]float64, len(times))
	for i := range buf {
		buf[i] = make([]float64, 1)
	}
	for s := 0; s < samples; s++ {
		pg.NextPath(buf)
		for i := range times {
			paths[i][0][s] = buf[i][0]
		}
	}

	relevant := make([]bool, len(times))
	for i := range relevant {
		relevant[i] = true
	}
	values, err := calc.SimulatePath(times, paths, relevant, false)
	if err != nil {
		panic(err)
	}

	fmt.Printf("reference date NPV: %.2f EUR\n\n", res.Value)
	fmt.Println("  t      EPE (deflated)")
	for i, t := range times {
		var epe float64
		for _, v := range values[i+1] {
			if v > 0 {
				epe += v
			}
		}
		epe /= samples
		fmt.Printf("%5.2f  %14.2f\n", t, epe)
	}
}
