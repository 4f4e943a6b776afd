package optimization

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrNoCost is returned by Solve before any cost was added.
	ErrNoCost = errors.New("optimization: no cost function set")
	// ErrSolutionNotAvailable is returned when values are requested before a successful solve.
	ErrSolutionNotAvailable = errors.New("optimization: no solution available, solve first")
	// ErrProblemNotRegistered is returned by Problem before RegisterProblem.
	ErrProblemNotRegistered = errors.New("optimization: no problem registered")
	// ErrObjectsNotGenerated is returned when a guess or the optimization objects are requested
	// before any objects were generated.
	ErrObjectsNotGenerated = errors.New("optimization: optimization objects not generated")
)

func displayPath(path string) string {
	if path == "" {
		return "<root>"
	}
	return path
}

// ConfigurationError reports a field descriptor that cannot be classified.
type ConfigurationError struct {
	Path   string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("optimization: field %s is misconfigured: %s", displayPath(e.Path), e.Reason)
}

// ShapeError reports a template storage value that does not define a shape.
type ShapeError struct {
	Field  string
	Reason string
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("optimization: cannot derive the shape of %s: %s", displayPath(e.Field), e.Reason)
}

// ShapeMismatchError reports a guess value that does not match its symbolic counterpart.
type ShapeMismatchError struct {
	Field string
	Want  Shape
	Got   Shape
	// Reason is set when the guess value is not a float64 matrix at all.
	Reason string
}

func (e *ShapeMismatchError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("optimization: guess for %s must be a %v float64 matrix: %s",
			displayPath(e.Field), e.Want, e.Reason)
	}
	return fmt.Sprintf("optimization: guess for %s has shape %v, expected %v", displayPath(e.Field), e.Got, e.Want)
}

// MissingFieldError reports a guess field with no generated counterpart.
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("optimization: guess field %s is not present in the optimization objects", displayPath(e.Field))
}

// ListLengthError reports a list with more elements than its counterpart, or a list matched
// against something that is not a list.
type ListLengthError struct {
	Field string
	Got   int
	Max   int
	// Reason replaces the length message when set.
	Reason string
}

func (e *ListLengthError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("optimization: list %s: %s", displayPath(e.Field), e.Reason)
	}
	return fmt.Sprintf("optimization: list %s has %d elements but only %d are available",
		displayPath(e.Field), e.Got, e.Max)
}

// UnsupportedRoleError reports a storage field whose role is neither RoleVariable nor RoleParameter.
type UnsupportedRoleError struct {
	Field string
	Role  Role
}

func (e *UnsupportedRoleError) Error() string {
	return fmt.Sprintf("optimization: storage field %s has unsupported role %v", displayPath(e.Field), e.Role)
}
