package engine

import "errors"

var (
	// ErrUnsupportedCashflow is returned when a leg contains a cashflow
	// shape the decomposition does not handle.
	ErrUnsupportedCashflow = errors.New("unsupported cashflow")

	// ErrEmptySimulationTimes is returned when a trade produces no
	// simulation times at all (nothing alive past the reference date).
	ErrEmptySimulationTimes = errors.New("no simulation times")

	// ErrInputMismatch is returned when path or time inputs disagree in
	// shape with what the calculator was trained on.
	ErrInputMismatch = errors.New("input mismatch")

	// ErrInternal flags inconsistencies that indicate a bug rather than bad
	// input, such as a required time missing from a grid.
	ErrInternal = errors.New("internal error")
)
