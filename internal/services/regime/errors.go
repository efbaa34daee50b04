package regime

import "fmt"

// ValidationError reports input that a pipeline stage cannot work with.
// Detection errors are fatal to the run; there is no retry and no silent
// recovery that would change the statistical result.
type ValidationError struct {
	Stage  string
	Reason string
	Rows   int
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("regime: invalid input at stage %s (%d rows): %s", e.Stage, e.Rows, e.Reason)
}

// FittingError reports that the model grid produced no usable candidate.
type FittingError struct {
	Candidates int
	Rows       int
	LastErr    error
}

func (e *FittingError) Error() string {
	if e.LastErr != nil {
		return fmt.Sprintf("regime: no usable model among %d candidates (%d rows), last failure: %v", e.Candidates, e.Rows, e.LastErr)
	}
	return fmt.Sprintf("regime: no usable model among %d candidates (%d rows)", e.Candidates, e.Rows)
}

func (e *FittingError) Unwrap() error { return e.LastErr }

// DegenerateTransitionError reports a label sequence too short to estimate
// any transition from. Labels with no successor inside a longer sequence are
// not an error; they surface as NaN matrix rows.
type DegenerateTransitionError struct {
	Observations int
}

func (e *DegenerateTransitionError) Error() string {
	return fmt.Sprintf("regime: transition estimation needs at least 2 labeled observations, got %d", e.Observations)
}
