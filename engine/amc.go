package engine

import (
	"fmt"
	"sort"
	"time"
)

// AMCCalculator replays the trained conditional value surfaces on externally
// simulated paths. The typical consumer is an exposure simulation that runs
// its own global scenario paths and asks, per path and valuation time, what
// the trade is worth.
//
// All returned values are deflated to reference date domestic currency
// units (divided by the numeraire), with the first entry being the
// deterministic reference date value.
type AMCCalculator struct {
	settlement         SettlementType
	unionTimes         []float64 // exercise and valuation times, merged
	exerciseTimes      []float64
	xvaTimes           []float64
	coeffsUndDirty     [][]float64
	coeffsUndExInto    [][]float64
	coeffsContinuation [][]float64
	coeffsOption       [][]float64
	basis              *BasisSystem
	resultValue        float64
	initialState       []float64
	modelIndices       []int
	stats              Stats

	// exercise indicators from the last regular run, reused by the sticky
	// close-out run; exercised[0] is the all-false base entry.
	exercised [][]bool
}

// SetModelIndices maps the calculator's state variables into the columns of
// a larger external path container. The default is the identity.
func (a *AMCCalculator) SetModelIndices(indices []int) error {
	if len(indices) != a.basis.Dim() {
		return fmt.Errorf("SetModelIndices: got %d indices, want %d: %w", len(indices), a.basis.Dim(), ErrInputMismatch)
	}
	a.modelIndices = indices
	return nil
}

// XvaTimes returns the valuation times values are produced on.
func (a *AMCCalculator) XvaTimes() []float64 { return a.xvaTimes }

func (a *AMCCalculator) unionIndex(t float64) (int, error) {
	i := sort.SearchFloat64s(a.unionTimes, t-1e-12)
	if i < len(a.unionTimes) && a.unionTimes[i] < t+1e-12 {
		return i, nil
	}
	return 0, fmt.Errorf("unionIndex: time %v not in trained times: %w", t, ErrInternal)
}

func contains(times []float64, t float64) bool {
	i := sort.SearchFloat64s(times, t-1e-12)
	return i < len(times) && times[i] < t+1e-12
}

// SimulatePath computes deflated conditional values along one set of
// external paths.
//
// paths is indexed [timeIdx][modelState][sample]; isRelevantTime marks the
// entries corresponding to the calculator's valuation times, in order. On a
// sticky close-out run the exercise decisions of the previous regular run
// are reused instead of being re-derived, and each relevant entry i
// represents the state at the preceding path time i-1.
//
// The result has one slice per valuation time plus a leading entry holding
// the reference date value.
func (a *AMCCalculator) SimulatePath(pathTimes []float64, paths [][][]float64, isRelevantTime []bool, stickyCloseOutRun bool) ([][]float64, error) {
	started := time.Now()
	if len(paths) == 0 {
		return nil, fmt.Errorf("SimulatePath: no future path times: %w", ErrInputMismatch)
	}
	if len(pathTimes) != len(paths) || len(isRelevantTime) != len(paths) {
		return nil, fmt.Errorf("SimulatePath: pathTimes (%d), paths (%d) and isRelevantTime (%d) disagree: %w",
			len(pathTimes), len(paths), len(isRelevantTime), ErrInputMismatch)
	}

	samples := len(paths[0][0])

	// Select the relevant entries and map model indices.
	effPaths := make([][][]float64, 0, len(a.xvaTimes))
	for i := range paths {
		if !isRelevantTime[i] {
			continue
		}
		if stickyCloseOutRun && i == 0 {
			return nil, fmt.Errorf("SimulatePath: sticky close-out run with relevant first path time: %w", ErrInputMismatch)
		}
		if len(paths[i]) <= maxIndex(a.modelIndices) {
			return nil, fmt.Errorf("SimulatePath: path entry %d has %d states, need %d: %w",
				i, len(paths[i]), maxIndex(a.modelIndices)+1, ErrInputMismatch)
		}
		sel := make([][]float64, len(a.modelIndices))
		for j, mi := range a.modelIndices {
			sel[j] = paths[i][mi]
		}
		effPaths = append(effPaths, sel)
	}
	if len(effPaths) != len(a.xvaTimes) {
		return nil, fmt.Errorf("SimulatePath: expected %d relevant path times, got %d: %w",
			len(a.xvaTimes), len(effPaths), ErrInputMismatch)
	}

	result := make([][]float64, len(a.xvaTimes)+1)
	result[0] = broadcast(a.resultValue, samples)

	// Without exercise rights the conditional value is the underlying
	// dirty value at every valuation time.
	if len(a.exerciseTimes) == 0 {
		for c, t := range a.xvaTimes {
			ind, err := a.unionIndex(t)
			if err != nil {
				return nil, fmt.Errorf("SimulatePath: %w", err)
			}
			result[c+1] = evalRegression(a.coeffsUndDirty[ind], a.basis.Eval(effPaths[c]))
		}
		a.stats.ObserveReplay(time.Since(started))
		return result, nil
	}

	if !stickyCloseOutRun {
		if err := a.decideExercise(effPaths, samples); err != nil {
			return nil, fmt.Errorf("SimulatePath: %w", err)
		}
	} else if a.exercised == nil {
		return nil, fmt.Errorf("SimulatePath: sticky close-out run before any regular run: %w", ErrInputMismatch)
	}

	// Populate the results from the exercise indicators.
	var xvaCounter, exerciseCounter int
	accounted := make([]bool, samples)
	wasExercised := make([]bool, samples)

	for counter, t := range a.unionTimes {
		if contains(a.exerciseTimes, t) {
			exerciseCounter++
			for s := range wasExercised {
				wasExercised[s] = wasExercised[s] || a.exercised[exerciseCounter][s]
			}
		}

		if !contains(a.xvaTimes, t) {
			continue
		}

		basisVals := a.basis.Eval(effPaths[xvaCounter])
		optionValue := evalRegression(a.coeffsOption[counter], basisVals)

		/* Between the exercise that happened and the next exercise date the
		   exercised value is the exercise-into underlying; afterwards it is
		   the full dirty value. This assumes consecutive exercise dates are
		   not closer together than a coupon period. */
		exInto := evalRegression(a.coeffsUndExInto[counter], basisVals)
		dirty := evalRegression(a.coeffsUndDirty[counter], basisVals)

		res := make([]float64, samples)
		for s := 0; s < samples; s++ {
			exercisedValue := dirty[s]
			if a.exercised[exerciseCounter][s] {
				exercisedValue = exInto[s]
			}
			if a.settlement == SettlementCash && accounted[s] {
				exercisedValue = 0
			}
			v := optionValue[s]
			if wasExercised[s] {
				v = exercisedValue
			}
			if v < 0 {
				v = 0
			}
			res[s] = v
		}
		if a.settlement == SettlementCash {
			for s := range accounted {
				accounted[s] = accounted[s] || wasExercised[s]
			}
		}
		result[xvaCounter+1] = res
		xvaCounter++
	}

	a.stats.ObserveReplay(time.Since(started))
	return result, nil
}

// decideExercise derives the exercise indicators along the input paths. The
// model state at an exercise time is interpolated linearly between the
// neighbouring valuation time states (or the initial state below the first
// one). A path exercises at most once.
func (a *AMCCalculator) decideExercise(effPaths [][][]float64, samples int) error {
	a.exercised = make([][]bool, len(a.exerciseTimes)+1)
	for i := range a.exercised {
		a.exercised[i] = make([]bool, samples)
	}
	everExercised := make([]bool, samples)

	dim := a.basis.Dim()
	for counter, t := range a.exerciseTimes {
		ind, err := a.unionIndex(t)
		if err != nil {
			return err
		}

		// Exercise times beyond the last valuation time are never reached
		// by the exposure simulation; such paths never exercise.
		j := sort.SearchFloat64s(a.xvaTimes, t-1e-12)
		if j == len(a.xvaTimes) {
			break
		}

		time2 := a.xvaTimes[j]
		s2 := effPaths[j]
		time1 := 0.0
		var s1 [][]float64
		if j > 0 {
			time1 = a.xvaTimes[j-1]
			s1 = effPaths[j-1]
		}

		alpha1 := (time2 - t) / (time2 - time1)
		alpha2 := (t - time1) / (time2 - time1)
		interp := make([][]float64, dim)
		for f := 0; f < dim; f++ {
			row := make([]float64, samples)
			for s := 0; s < samples; s++ {
				v1 := a.initialState[f]
				if s1 != nil {
					v1 = s1[f][s]
				}
				row[s] = alpha1*v1 + alpha2*s2[f][s]
			}
			interp[f] = row
		}

		basisVals := a.basis.Eval(interp)
		exerciseValue := evalRegression(a.coeffsUndExInto[ind], basisVals)
		continuationValue := evalRegression(a.coeffsContinuation[ind], basisVals)

		for s := 0; s < samples; s++ {
			ex := !everExercised[s] && exerciseValue[s] > continuationValue[s] && exerciseValue[s] > 0
			a.exercised[counter+1][s] = ex
			everExercised[s] = everExercised[s] || ex
		}
	}
	return nil
}

func maxIndex(indices []int) int {
	m := 0
	for _, i := range indices {
		if i > m {
			m = i
		}
	}
	return m
}
