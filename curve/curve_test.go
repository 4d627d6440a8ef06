package curve_test

import (
	"math"
	"testing"
	"time"

	"github.com/meenmo/amclib/curve"
)

func TestZeroCurvePillarsAndInterpolation(t *testing.T) {
	t.Parallel()

	ref := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	d1 := ref.AddDate(1, 0, 0)
	d2 := ref.AddDate(2, 0, 0)

	c, err := curve.NewZeroCurve(ref, map[time.Time]float64{
		d1: 0.97,
		d2: 0.93,
	})
	if err != nil {
		t.Fatalf("NewZeroCurve error: %v", err)
	}

	if got := c.DF(ref); math.Abs(got-1.0) > 1e-15 {
		t.Fatalf("DF(reference) = %.15f, want 1", got)
	}
	if got := c.DF(d1); math.Abs(got-0.97) > 1e-12 {
		t.Fatalf("DF(d1) = %.12f, want 0.97", got)
	}
	if got := c.DF(d2); math.Abs(got-0.93) > 1e-12 {
		t.Fatalf("DF(d2) = %.12f, want 0.93", got)
	}

	// Midpoint between the pillars must be log-linearly interpolated.
	t1 := c.DiscountT(1.0)
	t2 := c.DiscountT(2.0)
	want := math.Sqrt(t1 * t2)
	if got := c.DiscountT(1.5); math.Abs(got-want) > 1e-12 {
		t.Fatalf("DiscountT(1.5) = %.12f, want %.12f", got, want)
	}
}

func TestZeroCurveFlatExtrapolation(t *testing.T) {
	t.Parallel()

	ref := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	c := curve.Flat(ref, 0.03)

	// Flat curve: DF(t) = exp(-0.03 t) for any t, including beyond the last pillar.
	for _, yf := range []float64{0.25, 1.0, 5.0, 30.0} {
		want := math.Exp(-0.03 * yf)
		if got := c.DiscountT(yf); math.Abs(got-want) > 1e-12 {
			t.Fatalf("DiscountT(%g) = %.12f, want %.12f", yf, got, want)
		}
	}

	if got := c.ZeroRateT(7.0); math.Abs(got-0.03) > 1e-12 {
		t.Fatalf("ZeroRateT(7) = %.12f, want 0.03", got)
	}
}

func TestNewZeroCurveRejectsBadInput(t *testing.T) {
	t.Parallel()

	ref := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	if _, err := curve.NewZeroCurve(ref, map[time.Time]float64{
		ref.AddDate(-1, 0, 0): 1.02,
	}); err == nil {
		t.Fatal("expected error for pillar before reference")
	}
	if _, err := curve.NewZeroCurve(ref, map[time.Time]float64{
		ref.AddDate(1, 0, 0): -0.5,
	}); err == nil {
		t.Fatal("expected error for non-positive DF")
	}
	if _, err := curve.NewZeroCurve(ref, map[time.Time]float64{}); err == nil {
		t.Fatal("expected error for empty pillar set")
	}
}
