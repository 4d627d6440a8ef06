package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/meenmo/amclib/calendar"
	"github.com/meenmo/amclib/coupon"
	"github.com/meenmo/amclib/curve"
	"github.com/meenmo/amclib/engine"
	"github.com/meenmo/amclib/market"
	"github.com/meenmo/amclib/model"
	"github.com/meenmo/amclib/utils"
)

// Scenario is the YAML input of the pricer: a flat-parameter model, the
// numerical settings and one trade.
type Scenario struct {
	ReferenceDate string        `yaml:"reference_date"`
	Model         ModelSection  `yaml:"model"`
	Engine        EngineSection `yaml:"engine"`
	Trade         TradeSection  `yaml:"trade"`
}

type ModelSection struct {
	Currencies []CurrencySection `yaml:"currencies"`
}

// CurrencySection parameterizes one currency. The first entry is the
// domestic currency; FX fields are required for all others and quote
// domestic units per foreign unit.
type CurrencySection struct {
	Code         string  `yaml:"code"`
	ZeroRate     float64 `yaml:"zero_rate"`
	Reversion    float64 `yaml:"reversion"`
	Volatility   float64 `yaml:"volatility"`
	FxSpot       float64 `yaml:"fx_spot"`
	FxVolatility float64 `yaml:"fx_volatility"`
}

type EngineSection struct {
	Samples         int    `yaml:"samples"`
	Seed            int64  `yaml:"seed"`
	PolynomialOrder int    `yaml:"polynomial_order"`
	Generator       string `yaml:"generator"`
}

type TradeSection struct {
	Settlement      string       `yaml:"settlement"`
	ExerciseDates   []string     `yaml:"exercise_dates"`
	SimulationDates []string     `yaml:"simulation_dates"`
	Legs            []LegSection `yaml:"legs"`
}

type LegSection struct {
	Currency        string  `yaml:"currency"`
	Payer           bool    `yaml:"payer"`
	Type            string  `yaml:"type"`
	Notional        float64 `yaml:"notional"`
	Rate            float64 `yaml:"rate"`
	Spread          float64 `yaml:"spread"`
	IndexTenor      int     `yaml:"index_tenor_months"`
	Effective       string  `yaml:"effective"`
	Maturity        string  `yaml:"maturity"`
	FrequencyMonths int     `yaml:"frequency_months"`
	DayCount        string  `yaml:"day_count"`
	Calendar        string  `yaml:"calendar"`
}

// LoadScenario reads and parses a scenario file.
func LoadScenario(path string) (*Scenario, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("LoadScenario: %w", err)
	}
	var s Scenario
	if err := yaml.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("LoadScenario: %s: %w", path, err)
	}
	if len(s.Model.Currencies) == 0 {
		return nil, fmt.Errorf("LoadScenario: %s: no model currencies", path)
	}
	if len(s.Trade.Legs) == 0 {
		return nil, fmt.Errorf("LoadScenario: %s: no trade legs", path)
	}
	return &s, nil
}

// BuildModel assembles the cross asset model from the scenario parameters.
func (s *Scenario) BuildModel(reference time.Time) (*model.CrossAssetModel, error) {
	var irs []*model.LGM1F
	var fxs []*model.FXBS
	for i, c := range s.Model.Currencies {
		lgm, err := model.NewLGM1F(c.Code, curve.Flat(reference, c.ZeroRate), c.Reversion, nil, []float64{c.Volatility})
		if err != nil {
			return nil, fmt.Errorf("BuildModel: %w", err)
		}
		irs = append(irs, lgm)
		if i > 0 {
			fx, err := model.NewFXBS(c.Code, c.FxSpot, nil, []float64{c.FxVolatility})
			if err != nil {
				return nil, fmt.Errorf("BuildModel: %w", err)
			}
			fxs = append(fxs, fx)
		}
	}
	return model.NewCrossAssetModel(irs, fxs, nil)
}

// BuildLegs rolls the scenario legs into coupon schedules.
func (s *Scenario) BuildLegs(m *model.CrossAssetModel) ([]coupon.Leg, error) {
	legs := make([]coupon.Leg, 0, len(s.Trade.Legs))
	for i, l := range s.Trade.Legs {
		effective, err := utils.ParseDate(l.Effective)
		if err != nil {
			return nil, fmt.Errorf("BuildLegs: leg %d: %w", i, err)
		}
		maturity, err := utils.ParseDate(l.Maturity)
		if err != nil {
			return nil, fmt.Errorf("BuildLegs: leg %d: %w", i, err)
		}
		cal := calendar.CalendarID(l.Calendar)
		if cal == "" {
			cal = calendar.TARGET
		}

		conv := market.LegConvention{
			DayCount:     l.DayCount,
			PayFrequency: market.Frequency(l.FrequencyMonths),
			Calendar:     cal,
		}

		switch strings.ToUpper(l.Type) {
		case "FIXED":
			conv.LegType = market.LegFixed
			periods, err := coupon.GenerateSchedule(effective, maturity, conv)
			if err != nil {
				return nil, fmt.Errorf("BuildLegs: leg %d: %w", i, err)
			}
			legs = append(legs, coupon.BuildFixedLeg(l.Currency, l.Payer, l.Notional, l.Rate, periods, l.DayCount))
		case "FLOATING":
			conv.LegType = market.LegFloating
			conv.FixingLagDays = 2
			conv.ScheduleDirection = market.ScheduleBackward
			periods, err := coupon.GenerateSchedule(effective, maturity, conv)
			if err != nil {
				return nil, fmt.Errorf("BuildLegs: leg %d: %w", i, err)
			}
			ccyIdx, err := m.CcyIndex(l.Currency)
			if err != nil {
				return nil, fmt.Errorf("BuildLegs: leg %d: %w", i, err)
			}
			idx := &market.IborIndex{
				Name:        fmt.Sprintf("%s-IBOR-%dM", l.Currency, l.IndexTenor),
				Currency:    l.Currency,
				TenorMonths: l.IndexTenor,
				DayCount:    l.DayCount,
				Calendar:    cal,
				FixingLag:   2,
				Forwarding:  m.IR[ccyIdx].Discount,
			}
			legs = append(legs, coupon.BuildIborLeg(l.Currency, l.Payer, l.Notional, 1, l.Spread, idx, periods, l.DayCount))
		default:
			return nil, fmt.Errorf("BuildLegs: leg %d: unknown leg type %q", i, l.Type)
		}
	}
	return legs, nil
}

// EngineConfig maps the scenario's numerical settings onto engine defaults.
func (s *Scenario) EngineConfig() engine.Config {
	cfg := engine.DefaultConfig()
	if s.Engine.Samples > 0 {
		cfg.Samples = s.Engine.Samples
	}
	if s.Engine.Seed != 0 {
		cfg.Seed = s.Engine.Seed
	}
	if s.Engine.PolynomialOrder > 0 {
		cfg.PolynomialOrder = s.Engine.PolynomialOrder
	}
	if g := strings.ToUpper(s.Engine.Generator); g != "" {
		cfg.Generator = engine.GeneratorKind(g)
	}
	return cfg
}

func parseDates(in []string) ([]time.Time, error) {
	out := make([]time.Time, 0, len(in))
	for _, s := range in {
		d, err := utils.ParseDate(s)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}
