// Package coupon defines the contractual cashflow objects consumed by the
// pricing engine.
//
// The supported shapes form a closed set: the engine's decomposer
// type-switches over them and rejects anything else. Wrapper types
// (CappedFloored, NakedOption, FXLinkedNotional) compose around an
// underlying floating coupon in a fixed nesting order:
// FXLinkedNotional > NakedOption > CappedFloored > base coupon.
package coupon

import (
	"time"

	"github.com/meenmo/amclib/market"
)

// Flow is a single contractual cashflow.
type Flow interface {
	// PayDate is the settlement date of the cashflow.
	PayDate() time.Time
}

// Accruing is implemented by coupons with an accrual period. The engine
// requires AccrualStart to be strictly before the pay date.
type Accruing interface {
	Flow
	AccrualStart() time.Time
	AccrualEnd() time.Time
}

// FixedAmount is a simple known cashflow (fee, redemption, notional exchange).
type FixedAmount struct {
	Date   time.Time
	Amount float64
}

func (f *FixedAmount) PayDate() time.Time { return f.Date }

// FixedCoupon is a fixed-rate accrual coupon.
type FixedCoupon struct {
	Date      time.Time
	Nominal   float64
	Rate      float64
	AccrStart time.Time
	AccrEnd   time.Time
	Accrual   float64 // year fraction per the leg's day count
}

func (c *FixedCoupon) PayDate() time.Time      { return c.Date }
func (c *FixedCoupon) AccrualStart() time.Time { return c.AccrStart }
func (c *FixedCoupon) AccrualEnd() time.Time   { return c.AccrEnd }

// Amount is the settled amount: nominal x rate x accrual.
func (c *FixedCoupon) Amount() float64 { return c.Nominal * c.Rate * c.Accrual }

// FXLinkedFlow is a fixed foreign-currency amount converted at an FX fixing
// and paid in the leg currency.
type FXLinkedFlow struct {
	Date          time.Time
	ForeignAmount float64
	FXFixingDate  time.Time
	Index         market.FXIndex
}

func (f *FXLinkedFlow) PayDate() time.Time { return f.Date }

// FloatingBase carries the fields common to all floating coupon kinds.
type FloatingBase struct {
	Date      time.Time
	Nominal   float64
	Gearing   float64
	Spread    float64
	AccrStart time.Time
	AccrEnd   time.Time
	Accrual   float64
}

func (b *FloatingBase) PayDate() time.Time      { return b.Date }
func (b *FloatingBase) AccrualStart() time.Time { return b.AccrStart }
func (b *FloatingBase) AccrualEnd() time.Time   { return b.AccrEnd }

// IborCoupon pays gearing x ibor fixing + spread over the accrual period.
type IborCoupon struct {
	FloatingBase
	Index      *market.IborIndex
	FixingDate time.Time
}

// CMSCoupon pays gearing x par swap rate + spread over the accrual period.
type CMSCoupon struct {
	FloatingBase
	Index      *market.SwapIndex
	FixingDate time.Time
}

// OvernightCompoundedCoupon pays the compounded overnight rate over its
// observation period. Cap/Floor, when non-nil, apply to the effective rate
// (or daily rates when LocalCapFloor is set); NakedOption strips the
// embedded optionality.
type OvernightCompoundedCoupon struct {
	FloatingBase
	Index         *market.OvernightIndex
	FixingDates   []time.Time
	ValueDates    []time.Time // len(FixingDates)+1
	DT            []float64   // accrual fraction per sub-period
	RateCutoff    int
	IncludeSpread bool
	Cap           *float64
	Floor         *float64
	LocalCapFloor bool
	NakedOption   bool
}

// OvernightAveragedCoupon pays the arithmetic average of overnight rates.
type OvernightAveragedCoupon struct {
	FloatingBase
	Index         *market.OvernightIndex
	FixingDates   []time.Time
	ValueDates    []time.Time
	DT            []float64
	RateCutoff    int
	IncludeSpread bool
	Cap           *float64
	Floor         *float64
	LocalCapFloor bool
	NakedOption   bool
}

// BMACoupon pays the average of weekly BMA index fixings.
type BMACoupon struct {
	FloatingBase
	Index         *market.BMAIndex
	FixingDates   []time.Time
	IncludeSpread bool
	Cap           *float64
	Floor         *float64
	NakedOption   bool
}

// SubPeriodsCoupon compounds several ibor sub-period fixings into one payment.
type SubPeriodsCoupon struct {
	FloatingBase
	Index       *market.IborIndex
	FixingDates []time.Time
}

// CappedFloored wraps a floating coupon with a cap and/or floor on the
// effective rate. At least one of Cap, Floor must be set.
type CappedFloored struct {
	Underlying Flow
	Cap        *float64
	Floor      *float64
}

func (c *CappedFloored) PayDate() time.Time { return c.Underlying.PayDate() }

func (c *CappedFloored) AccrualStart() time.Time { return c.Underlying.(Accruing).AccrualStart() }
func (c *CappedFloored) AccrualEnd() time.Time   { return c.Underlying.(Accruing).AccrualEnd() }

// NakedOption strips the option part out of a capped/floored coupon: the
// holder receives only the floorlet/caplet value, not the swaplet.
type NakedOption struct {
	Underlying *CappedFloored
}

func (n *NakedOption) PayDate() time.Time      { return n.Underlying.PayDate() }
func (n *NakedOption) AccrualStart() time.Time { return n.Underlying.AccrualStart() }
func (n *NakedOption) AccrualEnd() time.Time   { return n.Underlying.AccrualEnd() }

// FXLinkedNotional wraps a coupon whose notional is a foreign-currency amount
// converted at an FX fixing observed on FXFixingDate.
type FXLinkedNotional struct {
	Underlying     Flow
	Index          market.FXIndex
	FXFixingDate   time.Time
	ForeignNominal float64
}

func (f *FXLinkedNotional) PayDate() time.Time      { return f.Underlying.PayDate() }
func (f *FXLinkedNotional) AccrualStart() time.Time { return f.Underlying.(Accruing).AccrualStart() }
func (f *FXLinkedNotional) AccrualEnd() time.Time   { return f.Underlying.(Accruing).AccrualEnd() }

// Leg is an ordered list of cashflows paid in one currency.
type Leg struct {
	Currency string
	Payer    bool
	Flows    []Flow
}
