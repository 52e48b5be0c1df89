package agent

import "fmt"

// TokenLimitError is raised when a prompt will not (or did not) fit the
// model's context window.
type TokenLimitError struct {
	Requested int
	Max       int
	Prerun    bool
}

func (e *TokenLimitError) Error() string {
	if e.Prerun {
		return fmt.Sprintf(
			"estimated prompt size of %d tokens exceeds 50%% of the model's %s token capacity; "+
				"narrow the active filter or focus fewer records and try again",
			e.Requested, humanTokens(e.Max))
	}
	return fmt.Sprintf(
		"the run used %d tokens, over the model's %s token capacity; "+
			"start a new chat or reduce the data in scope",
		e.Requested, humanTokens(e.Max))
}

func humanTokens(n int) string {
	if n >= 1000 {
		return fmt.Sprintf("%.1fK", float64(n)/1000)
	}
	return fmt.Sprintf("%d", n)
}

// StopWhen locates where in the loop a cancellation was observed.
type StopWhen string

// The step boundaries at which a run can stop.
const (
	StopBeforeModel  StopWhen = "before_model"
	StopBetweenTools StopWhen = "between_tools"
)

// RunStoppedError is raised when a run observes its cancellation flag at a
// step boundary.
type RunStoppedError struct {
	RunID string
	When  StopWhen
}

func (e *RunStoppedError) Error() string {
	return fmt.Sprintf("run %s stopped (%s)", e.RunID, e.When)
}

// InternalError wraps unexpected failures inside the runner.
type InternalError struct {
	Cause error
}

func (e *InternalError) Error() string {
	return fmt.Sprintf("internal agent error: %v", e.Cause)
}

func (e *InternalError) Unwrap() error { return e.Cause }
