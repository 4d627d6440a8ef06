package coupon

import (
	"testing"
	"time"

	"github.com/meenmo/amclib/calendar"
	"github.com/meenmo/amclib/market"
)

func d(y int, m time.Month, day int) time.Time {
	return time.Date(y, m, day, 0, 0, 0, 0, time.UTC)
}

func TestGenerateScheduleForward(t *testing.T) {
	t.Parallel()

	leg := market.LegConvention{
		LegType:      market.LegFixed,
		DayCount:     "30/360",
		PayFrequency: market.FreqSemi,
		Calendar:     calendar.TARGET,
	}

	periods, err := GenerateSchedule(d(2026, time.March, 2), d(2031, time.March, 2), leg)
	if err != nil {
		t.Fatalf("GenerateSchedule: %v", err)
	}
	if got, want := len(periods), 10; got != want {
		t.Fatalf("period count = %d, want %d", got, want)
	}
	for i, p := range periods {
		if !p.StartDate.Before(p.EndDate) {
			t.Fatalf("period %d: start %s not before end %s", i, p.StartDate, p.EndDate)
		}
		if p.PayDate.Before(p.EndDate) {
			t.Fatalf("period %d: pay date %s before accrual end %s", i, p.PayDate, p.EndDate)
		}
		if i > 0 && periods[i-1].EndDate.After(p.StartDate) {
			t.Fatalf("period %d: overlaps previous", i)
		}
	}
}

func TestGenerateScheduleBackwardFrontStub(t *testing.T) {
	t.Parallel()

	leg := market.LegConvention{
		LegType:           market.LegFloating,
		DayCount:          "ACT/360",
		PayFrequency:      market.FreqQuarterly,
		Calendar:          calendar.TARGET,
		ScheduleDirection: market.ScheduleBackward,
	}

	// Effective two months before a quarterly roll: first period is a stub.
	periods, err := GenerateSchedule(d(2026, time.April, 15), d(2027, time.March, 15), leg)
	if err != nil {
		t.Fatalf("GenerateSchedule: %v", err)
	}
	if len(periods) < 2 {
		t.Fatalf("expected at least 2 periods, got %d", len(periods))
	}
	if periods[0].AccrualDays >= periods[1].AccrualDays {
		t.Fatalf("expected front stub shorter than regular period: %d >= %d",
			periods[0].AccrualDays, periods[1].AccrualDays)
	}
	last := periods[len(periods)-1]
	if got := last.EndDate; !got.Equal(calendar.Adjust(calendar.TARGET, d(2027, time.March, 15))) {
		t.Fatalf("last accrual end = %s, want maturity", got.Format("2006-01-02"))
	}
}

func TestGenerateScheduleRejectsBadInput(t *testing.T) {
	t.Parallel()

	leg := market.LegConvention{PayFrequency: market.FreqSemi, Calendar: calendar.TARGET}
	if _, err := GenerateSchedule(d(2027, time.January, 1), d(2026, time.January, 1), leg); err == nil {
		t.Fatal("expected error for maturity before effective")
	}
	leg.PayFrequency = 0
	if _, err := GenerateSchedule(d(2026, time.January, 1), d(2027, time.January, 1), leg); err == nil {
		t.Fatal("expected error for zero frequency")
	}
}

func TestOvernightObservationDates(t *testing.T) {
	t.Parallel()

	idx := &market.OvernightIndex{
		Name:     "ESTR",
		Currency: "EUR",
		DayCount: "ACT/360",
		Calendar: calendar.TARGET,
	}
	start, end := d(2026, time.June, 1), d(2026, time.July, 1)
	fixings, values, dt := OvernightObservationDates(idx, start, end)

	if len(values) != len(fixings)+1 {
		t.Fatalf("value dates = %d, want fixings+1 = %d", len(values), len(fixings)+1)
	}
	if len(dt) != len(fixings) {
		t.Fatalf("dt count = %d, want %d", len(dt), len(fixings))
	}
	var total float64
	for _, x := range dt {
		if x <= 0 {
			t.Fatalf("non-positive sub-period accrual %v", x)
		}
		total += x
	}
	// ACT/360 over a 30 day month.
	if want := 30.0 / 360.0; total < want-1e-12 || total > want+1e-12 {
		t.Fatalf("total accrual = %v, want %v", total, want)
	}
	if !values[len(values)-1].Equal(end) {
		t.Fatalf("last value date = %s, want %s", values[len(values)-1], end)
	}
}

func TestBuildFixedLegAmounts(t *testing.T) {
	t.Parallel()

	leg := market.LegConvention{
		LegType:      market.LegFixed,
		DayCount:     "30/360",
		PayFrequency: market.FreqAnnual,
		Calendar:     calendar.TARGET,
	}
	periods, err := GenerateSchedule(d(2026, time.March, 2), d(2028, time.March, 2), leg)
	if err != nil {
		t.Fatalf("GenerateSchedule: %v", err)
	}
	fixed := BuildFixedLeg("EUR", false, 1e6, 0.03, periods, "30/360")
	if len(fixed.Flows) != 2 {
		t.Fatalf("flow count = %d, want 2", len(fixed.Flows))
	}
	c, ok := fixed.Flows[0].(*FixedCoupon)
	if !ok {
		t.Fatalf("flow type %T, want *FixedCoupon", fixed.Flows[0])
	}
	if got := c.Amount(); got < 29000 || got > 31000 {
		t.Fatalf("coupon amount = %v, want ~30000", got)
	}
}
