package market

import (
	"github.com/meenmo/amclib/calendar"
)

// LegType distinguishes floating vs fixed.
type LegType string

const (
	LegFloating LegType = "FLOATING"
	LegFixed    LegType = "FIXED"
)

// Frequency enumerates payment/reset frequencies in months.
type Frequency int

const (
	FreqAnnual    Frequency = 12
	FreqSemi      Frequency = 6
	FreqQuarterly Frequency = 3
	FreqMonthly   Frequency = 1
)

// ScheduleDirection controls whether accrual periods roll forward from the
// effective date or backward from maturity (front stub convention).
type ScheduleDirection string

const (
	ScheduleForward  ScheduleDirection = "FORWARD"
	ScheduleBackward ScheduleDirection = "BACKWARD"
)

// RollConvention for month-end handling.
type RollConvention string

const (
	BackwardEOM RollConvention = "BACKWARD_EOM"
)

// ResetPosition indicates fixing timing.
type ResetPosition string

const (
	ResetInAdvance ResetPosition = "IN_ADVANCE"
	ResetInArrears ResetPosition = "IN_ARREARS"
)

// LegConvention captures standard swap leg settings used to roll out
// coupon schedules.
type LegConvention struct {
	LegType           LegType
	DayCount          string
	PayFrequency      Frequency
	FixingLagDays     int
	PayDelayDays      int
	RateCutoffDays    int
	Calendar          calendar.CalendarID
	ResetPosition     ResetPosition
	ScheduleDirection ScheduleDirection
	RollConvention    RollConvention
}
