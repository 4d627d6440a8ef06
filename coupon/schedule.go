package coupon

import (
	"fmt"
	"time"

	"github.com/meenmo/amclib/calendar"
	"github.com/meenmo/amclib/market"
	"github.com/meenmo/amclib/utils"
)

// SchedulePeriod is one accrual period of a leg.
type SchedulePeriod struct {
	StartDate   time.Time
	EndDate     time.Time
	PayDate     time.Time
	FixingDate  time.Time
	AccrualDays int
}

// GenerateSchedule builds the payment schedule for a leg.
//
// It returns business-day adjusted StartDate/EndDate/PayDate along with
// integer accrual days. When leg.ScheduleDirection is ScheduleBackward,
// periods are generated from maturity backward, creating a front stub if
// needed.
func GenerateSchedule(effective, maturity time.Time, leg market.LegConvention) ([]SchedulePeriod, error) {
	if maturity.Before(effective) {
		return nil, fmt.Errorf("GenerateSchedule: maturity %s before effective %s", maturity.Format("2006-01-02"), effective.Format("2006-01-02"))
	}
	if leg.PayFrequency <= 0 {
		return nil, fmt.Errorf("GenerateSchedule: unsupported pay frequency %d", leg.PayFrequency)
	}
	if leg.ScheduleDirection == market.ScheduleBackward {
		return generateScheduleBackward(effective, maturity, leg)
	}
	return generateScheduleForward(effective, maturity, leg)
}

func generateScheduleForward(effective, maturity time.Time, leg market.LegConvention) ([]SchedulePeriod, error) {
	periods := make([]SchedulePeriod, 0, 64)
	months := int(leg.PayFrequency)
	start := effective

	for {
		var next time.Time
		if leg.RollConvention == market.BackwardEOM {
			next = utils.AddMonth(start, months)
		} else {
			next = start.AddDate(0, months, 0)
		}
		if next.After(maturity.AddDate(0, 0, 1)) {
			break
		}

		periods = append(periods, buildPeriod(start, next, leg))

		// Roll from the unadjusted date to avoid drift.
		start = next
	}

	return periods, nil
}

// generateScheduleBackward rolls periods backward from maturity so that
// intermediate dates align with maturity and the first period becomes a
// front stub if needed.
func generateScheduleBackward(effective, maturity time.Time, leg market.LegConvention) ([]SchedulePeriod, error) {
	months := int(leg.PayFrequency)

	var unadjusted []time.Time
	current := maturity
	for current.After(effective) {
		unadjusted = append([]time.Time{current}, unadjusted...)
		if leg.RollConvention == market.BackwardEOM {
			current = utils.AddMonth(current, -months)
		} else {
			current = current.AddDate(0, -months, 0)
		}
	}

	// A backward-rolled date within a week of effective would create a tiny
	// stub; merge it into a long first period instead.
	if len(unadjusted) > 0 {
		daysDiff := int(utils.Days(effective, unadjusted[0]))
		if daysDiff > 0 && daysDiff <= 7 {
			unadjusted = unadjusted[1:]
		}
	}
	unadjusted = append([]time.Time{effective}, unadjusted...)

	periods := make([]SchedulePeriod, 0, len(unadjusted)-1)
	for i := 0; i < len(unadjusted)-1; i++ {
		periods = append(periods, buildPeriod(unadjusted[i], unadjusted[i+1], leg))
	}

	return periods, nil
}

func buildPeriod(startUnadj, endUnadj time.Time, leg market.LegConvention) SchedulePeriod {
	accrualStart := calendar.Adjust(leg.Calendar, startUnadj)
	accrualEnd := calendar.Adjust(leg.Calendar, endUnadj)
	paymentDate := calendar.AddBusinessDays(leg.Calendar, accrualEnd, leg.PayDelayDays)

	fixingDate := calendar.AddBusinessDays(leg.Calendar, accrualStart, -leg.FixingLagDays)
	if leg.ResetPosition == market.ResetInArrears {
		fixingDate = calendar.AddBusinessDays(leg.Calendar, accrualEnd, -(leg.RateCutoffDays + leg.FixingLagDays))
	}

	return SchedulePeriod{
		StartDate:   accrualStart,
		EndDate:     accrualEnd,
		PayDate:     paymentDate,
		FixingDate:  fixingDate,
		AccrualDays: int(utils.Days(accrualStart, accrualEnd)),
	}
}

// OvernightObservationDates rolls out the daily fixing and value dates for an
// overnight coupon over the accrual period [start, end) on the index calendar.
// It returns fixing dates, value dates (one more than fixings), and the
// accrual fraction of each sub-period under the index's day count.
func OvernightObservationDates(idx *market.OvernightIndex, start, end time.Time) (fixings, values []time.Time, dt []float64) {
	d := calendar.Adjust(idx.Calendar, start)
	for d.Before(end) {
		next := calendar.AddBusinessDays(idx.Calendar, d, 1)
		fixings = append(fixings, calendar.AddBusinessDays(idx.Calendar, d, -idx.FixingLag))
		values = append(values, d)
		stop := next
		if stop.After(end) {
			stop = end
		}
		dt = append(dt, utils.YearFraction(d, stop, idx.DayCount))
		d = next
	}
	values = append(values, end)
	return fixings, values, dt
}

// BuildFixedLeg rolls out fixed coupons from a schedule.
func BuildFixedLeg(currency string, payer bool, nominal, rate float64, periods []SchedulePeriod, dayCount string) Leg {
	flows := make([]Flow, 0, len(periods))
	for _, p := range periods {
		flows = append(flows, &FixedCoupon{
			Date:      p.PayDate,
			Nominal:   nominal,
			Rate:      rate,
			AccrStart: p.StartDate,
			AccrEnd:   p.EndDate,
			Accrual:   utils.YearFraction(p.StartDate, p.EndDate, dayCount),
		})
	}
	return Leg{Currency: currency, Payer: payer, Flows: flows}
}

// BuildIborLeg rolls out ibor coupons from a schedule.
func BuildIborLeg(currency string, payer bool, nominal, gearing, spread float64, idx *market.IborIndex, periods []SchedulePeriod, dayCount string) Leg {
	flows := make([]Flow, 0, len(periods))
	for _, p := range periods {
		flows = append(flows, &IborCoupon{
			FloatingBase: FloatingBase{
				Date:      p.PayDate,
				Nominal:   nominal,
				Gearing:   gearing,
				Spread:    spread,
				AccrStart: p.StartDate,
				AccrEnd:   p.EndDate,
				Accrual:   utils.YearFraction(p.StartDate, p.EndDate, dayCount),
			},
			Index:      idx,
			FixingDate: p.FixingDate,
		})
	}
	return Leg{Currency: currency, Payer: payer, Flows: flows}
}
