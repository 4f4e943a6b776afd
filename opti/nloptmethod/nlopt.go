//go:build !windows && !no_cgo

package nloptmethod

import (
	"context"
	"math"

	"github.com/go-nlopt/nlopt"
	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"github.com/ami-iit/stepwise/logging"
	"github.com/ami-iit/stepwise/opti"
)

// Available reports whether the method was registered in this build.
const Available = true

func init() {
	opti.RegisterMethod(Name, func(options map[string]any) (opti.Method, error) {
		cfg := DefaultConfig()
		if err := opti.DecodeOptions(options, &cfg); err != nil {
			return nil, err
		}
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		return &slsqp{cfg: cfg}, nil
	})
}

type slsqp struct {
	cfg Config
}

// rows fills result with the outputs [first, first+len(result)) and, when jacobian is not empty,
// their gradients row by row.
func rows(nlp *opti.NLP, first int, x, result, jacobian []float64, weights, grad []float64) error {
	if len(jacobian) == 0 {
		out := make([]float64, nlp.NumOutputs())
		if err := nlp.Evaluate(x, out); err != nil {
			return err
		}
		copy(result, out[first:])
		return nil
	}
	n := len(x)
	for i := range result {
		for k := range weights {
			weights[k] = 0
		}
		weights[first+i] = 1
		out, err := nlp.Gradient(x, weights, grad)
		if err != nil {
			return err
		}
		result[i] = out[first+i]
		copy(jacobian[i*n:(i+1)*n], grad)
	}
	return nil
}

func (m *slsqp) Minimize(ctx context.Context, nlp *opti.NLP, logger logging.Logger) (*opti.Result, error) {
	x := nlp.Start()
	n := nlp.Dim()
	neq, nineq := nlp.NumEqualities(), nlp.NumInequalities()
	out := make([]float64, nlp.NumOutputs())

	if n == 0 {
		if err := nlp.Evaluate(x, out); err != nil {
			return nil, err
		}
		status := opti.Succeeded
		if nlp.Violation(out) > m.cfg.ConstraintTol {
			status = opti.Infeasible
		}
		return &opti.Result{X: x, Status: status}, nil
	}

	opt, err := nlopt.NewNLopt(nlopt.LD_SLSQP, uint(n))
	if err != nil {
		return nil, errors.Wrap(err, "nlopt creation error")
	}
	defer opt.Destroy()

	var evalErr error
	evaluations := 0
	weights := make([]float64, nlp.NumOutputs())
	grad := make([]float64, n)
	stop := func(err error) {
		if evalErr == nil {
			evalErr = err
		}
		if stopErr := opt.ForceStop(); stopErr != nil {
			logger.Errorw("forcestop error", "error", stopErr)
		}
	}

	objective := func(x, gradient []float64) float64 {
		evaluations++
		if err := ctx.Err(); err != nil {
			stop(err)
			return 0
		}
		f := make([]float64, 1)
		if err := rows(nlp, 0, x, f, gradient, weights, grad); err != nil {
			stop(err)
			return 0
		}
		logger.Debugw("slsqp evaluation", "evaluation", evaluations, "cost", f[0])
		return f[0]
	}
	equalities := func(result, x, gradient []float64) {
		if err := rows(nlp, 1, x, result, gradient, weights, grad); err != nil {
			stop(err)
		}
	}
	inequalities := func(result, x, gradient []float64) {
		if err := rows(nlp, 1+neq, x, result, gradient, weights, grad); err != nil {
			stop(err)
		}
	}

	err = multierr.Combine(
		opt.SetMinObjective(objective),
		opt.SetMaxEval(m.cfg.MaxEval),
		opt.SetFtolRel(m.cfg.FtolRel),
		opt.SetXtolRel(m.cfg.XtolRel),
	)
	if neq > 0 {
		err = multierr.Combine(err, opt.AddEqualityMConstraint(equalities, tolerances(neq, m.cfg.ConstraintTol)))
	}
	if nineq > 0 {
		err = multierr.Combine(err, opt.AddInequalityMConstraint(inequalities, tolerances(nineq, m.cfg.ConstraintTol)))
	}
	if err != nil {
		return nil, err
	}

	solution, _, nloptErr := opt.Optimize(x)
	if evalErr != nil {
		return nil, evalErr
	}
	if solution == nil {
		solution = x
	}
	if err := nlp.Evaluate(solution, out); err != nil {
		return nil, err
	}
	status := opti.Succeeded
	switch {
	case math.IsNaN(out[0]):
		status = opti.NumericalFailure
	case nlp.Violation(out) > m.cfg.ConstraintTol:
		status = opti.Infeasible
		if evaluations >= m.cfg.MaxEval {
			status = opti.MaxIterations
		}
	case nloptErr != nil:
		// Roundoff-limited runs that end feasible are kept.
		logger.Debugw("slsqp stopped early", "error", nloptErr)
	}
	return &opti.Result{X: solution, Status: status, Iterations: evaluations}, nil
}

func tolerances(n int, tol float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = tol
	}
	return out
}
