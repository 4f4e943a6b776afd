package opti

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrNoObjective is returned by Solve when Minimize was never called.
	ErrNoObjective = errors.New("opti: no objective to minimize")
	// ErrParameterNotSet is returned by Solve when a parameter was created but never given a value.
	ErrParameterNotSet = errors.New("opti: parameter has no value")
)

// Status is the outcome of a method run.
type Status int

// The statuses a method can finish with.
const (
	Succeeded Status = iota
	MaxIterations
	Infeasible
	NumericalFailure
	Stopped
)

func (s Status) String() string {
	switch s {
	case Succeeded:
		return "succeeded"
	case MaxIterations:
		return "max_iterations"
	case Infeasible:
		return "infeasible"
	case NumericalFailure:
		return "numerical_failure"
	case Stopped:
		return "stopped"
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

// SolveError is returned by Solve when the method did not produce an acceptable solution.
type SolveError struct {
	Method string
	Status Status
	Err    error
}

func (e *SolveError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("opti: %s finished with status %v: %v", e.Method, e.Status, e.Err)
	}
	return fmt.Sprintf("opti: %s finished with status %v", e.Method, e.Status)
}

func (e *SolveError) Unwrap() error {
	return e.Err
}
