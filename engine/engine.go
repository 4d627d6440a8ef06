// Package engine prices portfolios of multi-leg, possibly callable interest
// rate and FX trades by least squares Monte Carlo, and produces a calculator
// that replays conditional values on externally simulated paths for
// exposure measurement.
package engine

import (
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/meenmo/amclib/coupon"
	"github.com/meenmo/amclib/model"
)

// SettlementType controls what an exercise delivers.
type SettlementType string

const (
	// SettlementPhysical delivers the remaining underlying on exercise.
	SettlementPhysical SettlementType = "PHYSICAL"
	// SettlementCash pays out the exercise value once on exercise.
	SettlementCash SettlementType = "CASH"
)

// GeneratorKind selects the random sequence driving the calibration paths.
type GeneratorKind string

const (
	GenPseudoRandom   GeneratorKind = "PSEUDO"
	GenLowDiscrepancy GeneratorKind = "HALTON"
)

// Config carries the numerical settings of a calibration run.
type Config struct {
	Samples         int
	Seed            int64
	PolynomialOrder int
	Polynomial      PolynomialKind
	Generator       GeneratorKind
	Ordering        model.Ordering
	HaltonSkip      int64
}

// DefaultConfig mirrors common production settings: moderate path count,
// second order monomials, seeded pseudo random numbers.
func DefaultConfig() Config {
	return Config{
		Samples:         10000,
		Seed:            42,
		PolynomialOrder: 2,
		Polynomial:      Monomial,
		Generator:       GenPseudoRandom,
		Ordering:        model.OrderStepMajor,
	}
}

// Engine trains the regression models for one trade.
type Engine struct {
	model     *model.CrossAssetModel
	evaluator *model.RateEvaluator

	legs            []coupon.Leg
	exerciseDates   []time.Time
	settlement      SettlementType
	simulationDates []time.Time

	cfg   Config
	stats Stats
	log   *slog.Logger
}

// Result is the outcome of a calibration run.
type Result struct {
	// Value is the reference date NPV in domestic currency: the option
	// value when exercise rights exist, otherwise the underlying value.
	Value float64
	// UnderlyingValue is the dirty NPV of all legs ignoring exercise.
	UnderlyingValue float64
	// Calculator replays conditional values on external paths.
	Calculator *AMCCalculator
}

// Option configures optional engine collaborators.
type Option func(*Engine)

// WithStats attaches a timing sink.
func WithStats(s Stats) Option { return func(e *Engine) { e.stats = s } }

// WithLogger attaches a structured logger.
func WithLogger(l *slog.Logger) Option { return func(e *Engine) { e.log = l } }

// NewEngine wires a trade to the model. exerciseDates may be empty for a
// non-callable trade; simulationDates are the valuation dates conditional
// values are needed on (may be empty for plain pricing).
func NewEngine(m *model.CrossAssetModel, ev *model.RateEvaluator, legs []coupon.Leg,
	exerciseDates []time.Time, settlement SettlementType,
	simulationDates []time.Time, cfg Config, opts ...Option) (*Engine, error) {

	if m == nil || ev == nil {
		return nil, fmt.Errorf("NewEngine: nil model or evaluator")
	}
	if len(legs) == 0 {
		return nil, fmt.Errorf("NewEngine: no legs")
	}
	for i, l := range legs {
		if _, err := m.CcyIndex(l.Currency); err != nil {
			return nil, fmt.Errorf("NewEngine: leg %d: %w", i, err)
		}
	}
	if cfg.Samples <= 0 {
		return nil, fmt.Errorf("NewEngine: non-positive sample count %d", cfg.Samples)
	}
	if cfg.PolynomialOrder < 1 {
		return nil, fmt.Errorf("NewEngine: polynomial order %d", cfg.PolynomialOrder)
	}
	switch settlement {
	case SettlementPhysical, SettlementCash:
	default:
		return nil, fmt.Errorf("NewEngine: unknown settlement type %q", settlement)
	}
	if cfg.Polynomial == "" {
		cfg.Polynomial = Monomial
	}
	if cfg.Generator == "" {
		cfg.Generator = GenPseudoRandom
	}
	if cfg.Ordering == "" {
		cfg.Ordering = model.OrderStepMajor
	}

	e := &Engine{
		model:           m,
		evaluator:       ev,
		legs:            legs,
		exerciseDates:   exerciseDates,
		settlement:      settlement,
		simulationDates: simulationDates,
		cfg:             cfg,
		stats:           NopStats{},
		log:             slog.Default(),
	}
	for _, o := range opts {
		o(e)
	}
	return e, nil
}

// cashflowPathValue deflates a cashflow amount into domestic currency units
// of the reference date numeraire, signed with the leg's payer flag.
func (e *Engine) cashflowPathValue(cf *cashflowInfo, p *pathData) ([]float64, error) {
	a, err := cf.amount(p)
	if err != nil {
		return nil, fmt.Errorf("cashflowPathValue: leg %d cashflow %d: %w", cf.legNo, cf.cfNo, err)
	}
	irDom, err := p.factorState(cf.payTime, e.model.IrStateIndex(0))
	if err != nil {
		return nil, err
	}
	dom := e.model.Domestic()
	for i := range a {
		a[i] = a[i] / dom.Numeraire(cf.payTime, irDom[i]) * cf.payer
	}
	if cf.payCcyIndex > 0 {
		fx, err := p.factorState(cf.payTime, e.model.FxStateIndex(cf.payCcyIndex))
		if err != nil {
			return nil, err
		}
		for i := range a {
			a[i] *= math.Exp(fx[i])
		}
	}
	return a, nil
}

type cfStatus int

const (
	cfOpen cfStatus = iota
	cfCached
	cfDone
)

// Calculate runs the calibration: simulate paths, decompose cashflows, do
// the backward induction over exercise and valuation times, and regress the
// conditional value surfaces.
func (e *Engine) Calculate() (*Result, error) {
	ref := e.evaluator.Reference

	// Decompose the alive cashflows.
	var infos []cashflowInfo
	for legNo, leg := range e.legs {
		ccyIdx, err := e.model.CcyIndex(leg.Currency)
		if err != nil {
			return nil, fmt.Errorf("Calculate: %w", err)
		}
		payer := 1.0
		if leg.Payer {
			payer = -1.0
		}
		cfNo := 0
		for _, flow := range leg.Flows {
			if !flow.PayDate().After(ref) {
				continue
			}
			info, err := e.createCashflowInfo(legNo, cfNo, ccyIdx, payer, flow)
			if err != nil {
				return nil, fmt.Errorf("Calculate: %w", err)
			}
			infos = append(infos, info)
			cfNo++
		}
	}

	// Exercise, valuation and cashflow generation times.
	exerciseTimes := newTimeSet()
	for _, d := range e.exerciseDates {
		if d.After(ref) {
			exerciseTimes.insert(e.evaluator.T(d))
		}
	}
	xvaTimes := newTimeSet()
	for _, d := range e.simulationDates {
		if d.After(ref) {
			xvaTimes.insert(e.evaluator.T(d))
		}
	}

	simulationTimes := newTimeSet()
	for i := range infos {
		for _, t := range infos[i].simTimes {
			if t > 0 {
				simulationTimes.insert(t)
			}
		}
	}
	exerciseXvaTimes := newTimeSet()
	exerciseXvaTimes.insertAll(exerciseTimes)
	exerciseXvaTimes.insertAll(xvaTimes)
	simulationTimes.insertAll(exerciseXvaTimes)

	if simulationTimes.len() == 0 {
		return nil, fmt.Errorf("Calculate: %w", ErrEmptySimulationTimes)
	}

	// Simulate the calibration paths.
	started := time.Now()
	p, err := e.simulatePaths(simulationTimes.sorted())
	if err != nil {
		return nil, fmt.Errorf("Calculate: %w", err)
	}
	e.stats.ObservePathGeneration(time.Since(started))

	started = time.Now()
	n := e.cfg.Samples
	basis, err := NewBasisSystem(e.model.Dimension(), e.cfg.PolynomialOrder, e.cfg.Polynomial)
	if err != nil {
		return nil, fmt.Errorf("Calculate: %w", err)
	}

	union := exerciseXvaTimes.sorted()
	coeffsUndDirty := make([][]float64, len(union))
	coeffsUndExInto := make([][]float64, len(union))
	coeffsContinuation := make([][]float64, len(union))
	coeffsOption := make([][]float64, len(union))

	hasExercise := exerciseTimes.len() > 0

	status := make([]cfStatus, len(infos))
	amountCache := make([][]float64, len(infos))
	pathValueUndDirty := make([]float64, n)
	pathValueUndExInto := make([]float64, n)
	pathValueOption := make([]float64, n)

	addTo := func(dst, src []float64) {
		for i := range dst {
			dst[i] += src[i]
		}
	}

	// Backward induction over the union of exercise and valuation times.
	for counter := len(union) - 1; counter >= 0; counter-- {
		t := union[counter]
		isExerciseTime := exerciseTimes.contains(t)
		isXvaTime := xvaTimes.contains(t)

		for i := range infos {
			switch status[i] {
			case cfOpen:
				if infos[i].exIntoCriterionTime > t {
					v, err := e.cashflowPathValue(&infos[i], p)
					if err != nil {
						return nil, fmt.Errorf("Calculate: %w", err)
					}
					addTo(pathValueUndDirty, v)
					addTo(pathValueUndExInto, v)
					status[i] = cfDone
				} else if infos[i].payTime > t {
					v, err := e.cashflowPathValue(&infos[i], p)
					if err != nil {
						return nil, fmt.Errorf("Calculate: %w", err)
					}
					addTo(pathValueUndDirty, v)
					amountCache[i] = v
					status[i] = cfCached
				}
			case cfCached:
				if infos[i].exIntoCriterionTime > t {
					addTo(pathValueUndExInto, amountCache[i])
					status[i] = cfDone
					amountCache[i] = nil
				}
			}
		}

		ti, err := p.timeIndex(t)
		if err != nil {
			return nil, fmt.Errorf("Calculate: %w", err)
		}
		basisVals := basis.Eval(p.states[ti])

		if hasExercise {
			coeffsUndExInto[counter] = regressionCoefficients(pathValueUndExInto, basisVals, nil)
		}

		if isExerciseTime {
			exerciseValue := evalRegression(coeffsUndExInto[counter], basisVals)
			itm := make([]bool, n)
			for s := range itm {
				itm[s] = exerciseValue[s] > 0
			}
			coeffsContinuation[counter] = regressionCoefficients(pathValueOption, basisVals, itm)
			continuationValue := evalRegression(coeffsContinuation[counter], basisVals)
			for s := 0; s < n; s++ {
				if exerciseValue[s] > continuationValue[s] && exerciseValue[s] > 0 {
					pathValueOption[s] = pathValueUndExInto[s]
				}
			}
		}

		if isXvaTime {
			coeffsUndDirty[counter] = regressionCoefficients(pathValueUndDirty, basisVals, nil)
		}

		if hasExercise {
			coeffsOption[counter] = regressionCoefficients(pathValueOption, basisVals, nil)
		}
	}

	// Absorb the cashflows paying before the first exercise or valuation
	// time into the underlying value.
	for i := range infos {
		if status[i] == cfOpen {
			v, err := e.cashflowPathValue(&infos[i], p)
			if err != nil {
				return nil, fmt.Errorf("Calculate: %w", err)
			}
			addTo(pathValueUndDirty, v)
		}
	}

	num0 := e.model.Domestic().Numeraire(0, 0)
	underlyingNpv := mean(pathValueUndDirty) * num0
	value := underlyingNpv
	if hasExercise {
		value = mean(pathValueOption) * num0
	}
	e.stats.ObserveCalibration(time.Since(started))

	e.log.Debug("calibration finished",
		"samples", n,
		"simulation_times", simulationTimes.len(),
		"exercise_times", exerciseTimes.len(),
		"valuation_times", xvaTimes.len(),
		"npv", value)

	calc := &AMCCalculator{
		settlement:         e.settlement,
		unionTimes:         union,
		exerciseTimes:      exerciseTimes.sorted(),
		xvaTimes:           xvaTimes.sorted(),
		coeffsUndDirty:     coeffsUndDirty,
		coeffsUndExInto:    coeffsUndExInto,
		coeffsContinuation: coeffsContinuation,
		coeffsOption:       coeffsOption,
		basis:              basis,
		resultValue:        value,
		initialState:       e.model.InitialValues(),
		modelIndices:       identityIndices(e.model.Dimension()),
		stats:              e.stats,
	}

	return &Result{Value: value, UnderlyingValue: underlyingNpv, Calculator: calc}, nil
}

// simulatePaths fills the calibration path container on the given grid.
func (e *Engine) simulatePaths(grid []float64) (*pathData, error) {
	var proc model.Process
	if e.model.Dimension() == 1 {
		proc = &model.LGM1FProcess{Model: e.model.Domestic()}
	} else {
		cp, err := model.NewCrossAssetProcess(e.model)
		if err != nil {
			return nil, fmt.Errorf("simulatePaths: %w", err)
		}
		proc = cp
	}

	var gen model.SequenceGenerator
	switch e.cfg.Generator {
	case GenLowDiscrepancy:
		h, err := model.NewHalton(proc.Dimension()*len(grid), e.cfg.HaltonSkip)
		if err != nil {
			return nil, fmt.Errorf("simulatePaths: %w", err)
		}
		gen = h
	default:
		gen = model.NewPseudoRandom(e.cfg.Seed)
	}

	pg, err := model.NewPathGenerator(proc, grid, gen, e.cfg.Ordering)
	if err != nil {
		return nil, fmt.Errorf("simulatePaths: %w", err)
	}

	dim := proc.Dimension()
	n := e.cfg.Samples
	p := &pathData{
		times:   grid,
		initial: proc.InitialValues(),
		samples: n,
	}
	p.states = make([][][]float64, len(grid))
	for i := range p.states {
		p.states[i] = make([][]float64, dim)
		for f := range p.states[i] {
			p.states[i][f] = make([]float64, n)
		}
	}

	path := make([][]float64, len(grid))
	for i := range path {
		path[i] = make([]float64, dim)
	}
	for s := 0; s < n; s++ {
		pg.NextPath(path)
		for i := range grid {
			for f := 0; f < dim; f++ {
				p.states[i][f][s] = path[i][f]
			}
		}
	}
	return p, nil
}

func mean(v []float64) float64 {
	var s float64
	for _, x := range v {
		s += x
	}
	return s / float64(len(v))
}

func identityIndices(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}

// timeSet is a sorted set of times with tolerance-based deduplication.
type timeSet struct {
	times []float64
}

func newTimeSet() *timeSet { return &timeSet{} }

func (s *timeSet) insert(t float64) {
	i := sort.SearchFloat64s(s.times, t-1e-12)
	if i < len(s.times) && s.times[i] < t+1e-12 {
		return
	}
	s.times = append(s.times, 0)
	copy(s.times[i+1:], s.times[i:])
	s.times[i] = t
}

func (s *timeSet) insertAll(o *timeSet) {
	for _, t := range o.times {
		s.insert(t)
	}
}

func (s *timeSet) contains(t float64) bool {
	i := sort.SearchFloat64s(s.times, t-1e-12)
	return i < len(s.times) && s.times[i] < t+1e-12
}

func (s *timeSet) len() int { return len(s.times) }

func (s *timeSet) sorted() []float64 {
	out := make([]float64, len(s.times))
	copy(out, s.times)
	return out
}
