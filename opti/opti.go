// Package opti is an algebraic modeling engine for nonlinear programs. Decision variables and
// parameters are created as symbolic matrices, combined into an objective and constraints with
// package sym, and handed to a registered Method on Solve.
package opti

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/ami-iit/stepwise/logging"
	"github.com/ami-iit/stepwise/sym"
)

// ProblemNLP is the only supported problem type.
const ProblemNLP = "nlp"

// Opti holds one optimization problem. It is not safe for concurrent use.
type Opti struct {
	logger logging.Logger

	initial  []float64
	params   []float64
	paramSet []bool

	objective   *sym.Expr
	constraints []sym.Constraint

	methodName string
	method     Method
	plugin     PluginOptions
}

// New returns an empty problem configured with DefaultMethod. An empty problemType means ProblemNLP.
func New(problemType string, logger logging.Logger) (*Opti, error) {
	if problemType != "" && problemType != ProblemNLP {
		return nil, errors.Errorf("opti: unsupported problem type %q", problemType)
	}
	o := &Opti{logger: logger}
	if err := o.Solver(DefaultMethod, nil, nil); err != nil {
		return nil, err
	}
	return o, nil
}

// Variable creates a rows x cols block of decision variables with initial value zero.
func (o *Opti) Variable(rows, cols int) *sym.Expr {
	h := sym.Variables(rows, cols, len(o.initial))
	o.initial = append(o.initial, make([]float64, rows*cols)...)
	return h
}

// Parameter creates a rows x cols block of parameters. Every parameter needs a value before Solve.
func (o *Opti) Parameter(rows, cols int) *sym.Expr {
	h := sym.Parameters(rows, cols, len(o.params))
	o.params = append(o.params, make([]float64, rows*cols)...)
	o.paramSet = append(o.paramSet, make([]bool, rows*cols)...)
	return h
}

// NumVariables returns the number of scalar decision variables created so far.
func (o *Opti) NumVariables() int {
	return len(o.initial)
}

// NumParameters returns the number of scalar parameters created so far.
func (o *Opti) NumParameters() int {
	return len(o.params)
}

// SetInitial sets the initial guess of a variable handle returned by Variable.
func (o *Opti) SetInitial(handle *sym.Expr, value mat.Matrix) error {
	if !handle.IsVariable() {
		return errors.Errorf("opti: SetInitial needs a variable, got %v", handle)
	}
	return assign(handle, value, o.initial, nil)
}

// SetValue fixes the value of a parameter handle returned by Parameter.
func (o *Opti) SetValue(handle *sym.Expr, value mat.Matrix) error {
	if !handle.IsParameter() {
		return errors.Errorf("opti: SetValue needs a parameter, got %v", handle)
	}
	return assign(handle, value, o.params, o.paramSet)
}

func assign(handle *sym.Expr, value mat.Matrix, dst []float64, set []bool) error {
	hr, hc := handle.Dims()
	vr, vc := value.Dims()
	if hr != vr || hc != vc {
		return errors.Errorf("opti: value of shape (%d, %d) for %v", vr, vc, handle)
	}
	slots := handle.Slots()
	for _, s := range slots {
		if s >= len(dst) {
			return errors.Errorf("opti: %v was not created by this problem", handle)
		}
	}
	for k, s := range slots {
		dst[s] = value.At(k/hc, k%hc)
		if set != nil {
			set[s] = true
		}
	}
	return nil
}

// Minimize sets the objective, replacing any previous one. The objective must be 1x1.
func (o *Opti) Minimize(objective *sym.Expr) error {
	if objective == nil || !objective.IsScalar() {
		return errors.Errorf("opti: objective must be 1x1, got %v", objective)
	}
	o.objective = objective
	return nil
}

// SubjectTo adds constraints.
func (o *Opti) SubjectTo(constraints ...sym.Constraint) error {
	for _, c := range constraints {
		if c.Expr == nil {
			return errors.New("opti: constraint without expression")
		}
	}
	o.constraints = append(o.constraints, constraints...)
	return nil
}

// NumConstraints returns the number of constraints added so far.
func (o *Opti) NumConstraints() int {
	return len(o.constraints)
}

// Solver selects the method and its options. Nothing changes when any of them is invalid.
func (o *Opti) Solver(method string, pluginOptions, methodOptions map[string]any) error {
	constructor, ok := lookupMethod(method)
	if !ok {
		return errors.Errorf("opti: unknown method %q, registered methods are %v", method, RegisteredMethods())
	}
	m, err := constructor(methodOptions)
	if err != nil {
		return errors.Wrapf(err, "opti: invalid options for method %q", method)
	}
	plugin, err := decodePluginOptions(pluginOptions)
	if err != nil {
		return errors.Wrap(err, "opti: invalid plugin options")
	}
	o.methodName, o.method, o.plugin = method, m, plugin
	return nil
}

// Method returns the name of the configured method.
func (o *Opti) Method() string {
	return o.methodName
}

// Solve runs the configured method. Failures are reported as *SolveError unless error_on_fail is
// off, in which case a non-converged result is returned with its Status.
func (o *Opti) Solve(ctx context.Context) (*Solution, error) {
	if o.objective == nil {
		return nil, ErrNoObjective
	}
	for slot, set := range o.paramSet {
		if !set {
			return nil, errors.Wrapf(ErrParameterNotSet, "parameter slot %d", slot)
		}
	}
	nlp, err := newNLP(o.objective, o.constraints, o.initial, append([]float64(nil), o.params...))
	if err != nil {
		return nil, err
	}

	// Method iterations are only logged when verbose.
	logger := o.logger.Sublogger(o.methodName)
	if o.plugin.Verbose {
		logger.SetLevel(logging.DEBUG)
	} else {
		logger.SetLevel(logging.WARN)
	}
	o.logger.Debugw("solving",
		"method", o.methodName,
		"variables", nlp.Dim(),
		"parameters", len(o.params),
		"equalities", nlp.NumEqualities(),
		"inequalities", nlp.NumInequalities())

	start := time.Now()
	res, err := o.method.Minimize(ctx, nlp, logger)
	elapsed := time.Since(start)
	if o.plugin.PrintTime {
		o.logger.Infow("solve time", "method", o.methodName, "elapsed", elapsed)
	}
	if err != nil {
		status := NumericalFailure
		if ctx.Err() != nil {
			status = Stopped
		}
		return nil, &SolveError{Method: o.methodName, Status: status, Err: err}
	}
	if res.Status != Succeeded && o.plugin.ErrorOnFail {
		return nil, &SolveError{Method: o.methodName, Status: res.Status}
	}

	out := make([]float64, nlp.NumOutputs())
	if err := nlp.Evaluate(res.X, out); err != nil {
		return nil, err
	}
	return &Solution{
		x:          append([]float64(nil), res.X...),
		p:          nlp.params,
		status:     res.Status,
		cost:       out[0],
		iterations: res.Iterations,
	}, nil
}
