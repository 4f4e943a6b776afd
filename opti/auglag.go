package opti

import (
	"context"
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/optimize"

	"github.com/ami-iit/stepwise/logging"
)

// AugLagConfig are the options of the "auglag" method.
type AugLagConfig struct {
	// MaxIter bounds the number of multiplier updates.
	MaxIter int `json:"max_iter"`
	// MaxInnerIter bounds the major iterations of each inner minimization.
	MaxInnerIter int `json:"max_inner_iter"`
	// Tol is the constraint violation accepted as feasible.
	Tol float64 `json:"tol"`
	// GradientTol is the gradient norm at which an inner minimization stops.
	GradientTol   float64 `json:"gradient_tol"`
	PenaltyInit   float64 `json:"penalty_init"`
	PenaltyGrowth float64 `json:"penalty_growth"`
	PenaltyMax    float64 `json:"penalty_max"`
	// Inner is one of "lbfgs", "bfgs", "cg" or "gradient_descent".
	Inner string `json:"inner"`
}

// DefaultAugLagConfig returns the defaults of the "auglag" method.
func DefaultAugLagConfig() AugLagConfig {
	return AugLagConfig{
		MaxIter:       100,
		MaxInnerIter:  1000,
		Tol:           1e-8,
		GradientTol:   1e-10,
		PenaltyInit:   10,
		PenaltyGrowth: 10,
		PenaltyMax:    1e8,
		Inner:         "lbfgs",
	}
}

// Validate ensures all parts of the config are valid.
func (cfg *AugLagConfig) Validate() error {
	switch {
	case cfg.MaxIter < 1:
		return errors.Errorf("max_iter must be positive, got %d", cfg.MaxIter)
	case cfg.MaxInnerIter < 1:
		return errors.Errorf("max_inner_iter must be positive, got %d", cfg.MaxInnerIter)
	case cfg.Tol <= 0:
		return errors.Errorf("tol must be positive, got %g", cfg.Tol)
	case cfg.GradientTol <= 0:
		return errors.Errorf("gradient_tol must be positive, got %g", cfg.GradientTol)
	case cfg.PenaltyInit <= 0:
		return errors.Errorf("penalty_init must be positive, got %g", cfg.PenaltyInit)
	case cfg.PenaltyGrowth < 1:
		return errors.Errorf("penalty_growth must be at least 1, got %g", cfg.PenaltyGrowth)
	case cfg.PenaltyMax < cfg.PenaltyInit:
		return errors.Errorf("penalty_max %g is below penalty_init %g", cfg.PenaltyMax, cfg.PenaltyInit)
	}
	if _, err := innerMethod(cfg.Inner); err != nil {
		return err
	}
	return nil
}

func innerMethod(name string) (optimize.Method, error) {
	switch name {
	case "lbfgs":
		return &optimize.LBFGS{}, nil
	case "bfgs":
		return &optimize.BFGS{}, nil
	case "cg":
		return &optimize.CG{}, nil
	case "gradient_descent":
		return &optimize.GradientDescent{}, nil
	}
	return nil, errors.Errorf("unknown inner method %q", name)
}

func init() {
	RegisterMethod(DefaultMethod, func(options map[string]any) (Method, error) {
		cfg := DefaultAugLagConfig()
		if err := DecodeOptions(options, &cfg); err != nil {
			return nil, err
		}
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		return &augLag{cfg: cfg}, nil
	})
}

// augLag is the Powell-Hestenes-Rockafellar augmented Lagrangian method. Each outer iteration
// minimizes
//
//	f(x) + sum_i (l_i h_i(x) + r/2 h_i(x)^2) + 1/(2r) sum_j (max(0, m_j + r g_j(x))^2 - m_j^2)
//
// without constraints using gonum's optimize package, then updates the multipliers l and m and,
// when the violation did not shrink enough, the penalty r.
type augLag struct {
	cfg AugLagConfig
}

type augLagState struct {
	nlp    *NLP
	lambda []float64
	mu     []float64
	rho    float64

	out     []float64
	weights []float64
	err     error
}

func (s *augLagState) evaluate(x []float64) bool {
	if s.err != nil {
		return false
	}
	if err := s.nlp.Evaluate(x, s.out); err != nil {
		s.err = err
		return false
	}
	return true
}

func (s *augLagState) merit(x []float64) float64 {
	if !s.evaluate(x) {
		return math.NaN()
	}
	neq := s.nlp.NumEqualities()
	v := s.out[0]
	for i, h := range s.out[1 : 1+neq] {
		v += s.lambda[i]*h + 0.5*s.rho*h*h
	}
	for j, g := range s.out[1+neq:] {
		shifted := math.Max(0, s.mu[j]+s.rho*g)
		v += (shifted*shifted - s.mu[j]*s.mu[j]) / (2 * s.rho)
	}
	return v
}

func (s *augLagState) gradient(grad, x []float64) {
	if !s.evaluate(x) {
		for i := range grad {
			grad[i] = math.NaN()
		}
		return
	}
	neq := s.nlp.NumEqualities()
	s.weights[0] = 1
	for i, h := range s.out[1 : 1+neq] {
		s.weights[1+i] = s.lambda[i] + s.rho*h
	}
	for j, g := range s.out[1+neq:] {
		s.weights[1+neq+j] = math.Max(0, s.mu[j]+s.rho*g)
	}
	if _, err := s.nlp.Gradient(x, s.weights, grad); err != nil {
		s.err = err
	}
}

// violation is the PHR complementarity measure: equality residuals and, for inequalities,
// max(g, -m/r), which also vanishes for strictly inactive constraints with zero multiplier.
func (s *augLagState) violation() float64 {
	neq := s.nlp.NumEqualities()
	v := 0.0
	for _, h := range s.out[1 : 1+neq] {
		v = math.Max(v, math.Abs(h))
	}
	for j, g := range s.out[1+neq:] {
		v = math.Max(v, math.Abs(math.Max(g, -s.mu[j]/s.rho)))
	}
	return v
}

func (s *augLagState) updateMultipliers() {
	neq := s.nlp.NumEqualities()
	for i, h := range s.out[1 : 1+neq] {
		s.lambda[i] += s.rho * h
	}
	for j, g := range s.out[1+neq:] {
		s.mu[j] = math.Max(0, s.mu[j]+s.rho*g)
	}
}

func limitReached(status optimize.Status) bool {
	switch status {
	case optimize.IterationLimit, optimize.FunctionEvaluationLimit,
		optimize.GradientEvaluationLimit, optimize.RuntimeLimit:
		return true
	default:
		return false
	}
}

func (a *augLag) Minimize(ctx context.Context, nlp *NLP, logger logging.Logger) (*Result, error) {
	x := nlp.Start()
	s := &augLagState{
		nlp:     nlp,
		lambda:  make([]float64, nlp.NumEqualities()),
		mu:      make([]float64, nlp.NumInequalities()),
		rho:     a.cfg.PenaltyInit,
		out:     make([]float64, nlp.NumOutputs()),
		weights: make([]float64, nlp.NumOutputs()),
	}

	// Nothing to move: the start either satisfies the constraints or it does not.
	if nlp.Dim() == 0 {
		if !s.evaluate(x) {
			return nil, s.err
		}
		status := Succeeded
		if nlp.Violation(s.out) > a.cfg.Tol {
			status = Infeasible
		}
		return &Result{X: x, Status: status}, nil
	}

	problem := optimize.Problem{
		Func: s.merit,
		Grad: s.gradient,
	}
	settings := &optimize.Settings{
		GradientThreshold: a.cfg.GradientTol,
		MajorIterations:   a.cfg.MaxInnerIter,
		Converger: &optimize.FunctionConverge{
			Absolute:   1e-14,
			Relative:   1e-14,
			Iterations: 20,
		},
	}

	previous := math.Inf(1)
	violation := math.Inf(1)
	for iter := 1; iter <= a.cfg.MaxIter; iter++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		inner, err := innerMethod(a.cfg.Inner)
		if err != nil {
			return nil, err
		}
		result, innerErr := optimize.Minimize(problem, x, settings, inner)
		if s.err != nil {
			return nil, s.err
		}
		if result == nil {
			return nil, errors.Wrap(innerErr, "inner minimization failed")
		}
		if floats.HasNaN(result.X) || math.IsInf(floats.Norm(result.X, 2), 0) {
			return &Result{X: x, Status: NumericalFailure, Iterations: iter}, nil
		}
		copy(x, result.X)

		if !s.evaluate(x) {
			return nil, s.err
		}
		violation = s.violation()
		logger.Debugw("auglag iteration",
			"iteration", iter,
			"cost", s.out[0],
			"violation", violation,
			"penalty", s.rho,
			"inner_status", result.Status.String(),
			"inner_error", innerErr)
		if math.IsNaN(s.out[0]) || math.IsNaN(violation) {
			return &Result{X: x, Status: NumericalFailure, Iterations: iter}, nil
		}
		if violation <= a.cfg.Tol && !limitReached(result.Status) {
			return &Result{X: x, Status: Succeeded, Iterations: iter}, nil
		}

		s.updateMultipliers()
		if violation > 0.25*previous {
			s.rho = math.Min(s.rho*a.cfg.PenaltyGrowth, a.cfg.PenaltyMax)
		}
		previous = violation
	}

	status := MaxIterations
	if violation > a.cfg.Tol && s.rho >= a.cfg.PenaltyMax {
		status = Infeasible
	}
	return &Result{X: x, Status: status, Iterations: a.cfg.MaxIter}, nil
}
