package opti

import (
	"gonum.org/v1/gonum/mat"

	"github.com/ami-iit/stepwise/sym"
)

// Solution is the numeric result of a Solve.
type Solution struct {
	x, p       []float64
	status     Status
	cost       float64
	iterations int
}

// Value evaluates any expression of the problem at the solution.
func (s *Solution) Value(e *sym.Expr) (*mat.Dense, error) {
	return sym.Eval(e, s.x, s.p)
}

// Status returns how the method finished. It is only different from Succeeded when the
// error_on_fail plugin option is off.
func (s *Solution) Status() Status {
	return s.status
}

// Cost returns the objective at the solution.
func (s *Solution) Cost() float64 {
	return s.cost
}

// Iterations returns the number of method iterations.
func (s *Solution) Iterations() int {
	return s.iterations
}
