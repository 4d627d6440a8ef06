// Package market defines the reference indices and leg conventions used to
// describe trades handed to the pricing engine.
package market

import (
	"time"

	"github.com/meenmo/amclib/calendar"
	"github.com/meenmo/amclib/curve"
	"github.com/meenmo/amclib/utils"
)

// IborIndex describes a term fixing index (EURIBOR, TIBOR, legacy LIBOR).
//
// Forwarding is the projection curve the index forwards are read off; it may
// differ from the currency's discount curve (multi-curve setup).
type IborIndex struct {
	Name        string
	Currency    string
	TenorMonths int
	DayCount    string
	Calendar    calendar.CalendarID
	FixingLag   int // business days from fixing to value
	Forwarding  curve.DiscountCurve
}

// ValueDates returns the deposit start and end dates underlying a fixing.
func (ix *IborIndex) ValueDates(fixingDate time.Time) (start, end time.Time) {
	start = calendar.AddBusinessDays(ix.Calendar, fixingDate, ix.FixingLag)
	end = calendar.Adjust(ix.Calendar, utils.AddMonth(start, ix.TenorMonths))
	return start, end
}

// Tau returns the deposit accrual fraction for a fixing.
func (ix *IborIndex) Tau(fixingDate time.Time) float64 {
	start, end := ix.ValueDates(fixingDate)
	return utils.YearFraction(start, end, ix.DayCount)
}

// OvernightIndex describes an overnight benchmark (ESTR, SOFR, TONAR).
type OvernightIndex struct {
	Name       string
	Currency   string
	DayCount   string
	Calendar   calendar.CalendarID
	FixingLag  int
	Forwarding curve.DiscountCurve
}

// BMAIndex describes the SIFMA/BMA municipal swap index (weekly resets).
type BMAIndex struct {
	Name       string
	Currency   string
	DayCount   string
	Calendar   calendar.CalendarID
	Forwarding curve.DiscountCurve
}

// SwapIndex describes a par swap rate index used by CMS coupons.
type SwapIndex struct {
	Name          string
	Currency      string
	TenorYears    int
	FixedFreqM    int // fixed leg payment frequency in months
	FixedDayCount string
	Calendar      calendar.CalendarID
	FixingLag     int
	Forwarding    curve.DiscountCurve
}

// FXIndex identifies an FX fixing source for a currency pair. The quote
// convention is units of Target currency per unit of Source currency.
type FXIndex struct {
	Name     string // e.g. "ECB-EUR-USD"
	Source   string
	Target   string
	Calendar calendar.CalendarID
}
