package optimization

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/ami-iit/stepwise/logging"
	"github.com/ami-iit/stepwise/opti"
	"github.com/ami-iit/stepwise/sym"
	"github.com/ami-iit/stepwise/utils"
)

// Config selects the engine method and its options.
type Config struct {
	// InnerSolver is the name of a registered opti method, opti.DefaultMethod when empty.
	InnerSolver string `json:"inner_solver,omitempty"`
	// ProblemType is passed to opti.New.
	ProblemType string `json:"problem_type,omitempty"`
	// SolverOptions are the options of the method.
	SolverOptions map[string]any `json:"options_solver,omitempty"`
	// PluginOptions are the options of the engine, see opti.PluginOptions.
	PluginOptions map[string]any `json:"options_plugin,omitempty"`
}

// DecodeConfig decodes a generic attribute map, as read from a config file, into a Config.
func DecodeConfig(attributes map[string]any) (Config, error) {
	var cfg Config
	if err := opti.DecodeOptions(attributes, &cfg); err != nil {
		return Config{}, errors.Wrap(err, "optimization: invalid solver config")
	}
	return cfg, nil
}

func (cfg Config) method() string {
	if cfg.InnerSolver == "" {
		return opti.DefaultMethod
	}
	return cfg.InnerSolver
}

// OptimizationSolver is the part of a solver session that does not depend on the structure type.
// Structures are generated with Generate and GenerateList.
type OptimizationSolver interface {
	OptimizationObjects() (Object, error)
	OptimizationObjectsList() ([]Object, error)
	SetInitialGuess(guess Object) error
	SetInitialGuessList(guesses []Object) error
	AddCost(expr *sym.Expr) error
	AddConstraint(constraints ...sym.Constraint) error
	CostFunction() *sym.Expr
	Solve(ctx context.Context) error
	Values() (Object, error)
	ValuesList() ([]Object, error)
	CostValue() (float64, error)
	RegisterProblem(problem any)
	Problem() (any, error)
	SetOptiOptions(innerSolver string, solverOptions, pluginOptions map[string]any) error
}

var _ OptimizationSolver = (*OptiSolver)(nil)

// OptiSolver is a solver session on top of an opti.Opti. It is not safe for concurrent use.
type OptiSolver struct {
	id     uuid.UUID
	logger logging.Logger
	cfg    Config
	opti   *opti.Opti

	objects []Object
	list    bool
	clone   func(Object) Object

	cost *sym.Expr

	solved    bool
	values    []Object
	costValue float64

	problem any
}

// NewOptiSolver creates a session and its engine.
func NewOptiSolver(cfg Config, logger logging.Logger) (*OptiSolver, error) {
	engine, err := opti.New(cfg.ProblemType, logger.Sublogger("opti"))
	if err != nil {
		return nil, err
	}
	if err := engine.Solver(cfg.method(), cfg.PluginOptions, cfg.SolverOptions); err != nil {
		return nil, err
	}
	cfg.InnerSolver = cfg.method()
	s := &OptiSolver{
		id:     uuid.New(),
		logger: logger,
		cfg:    cfg,
		opti:   engine,
	}
	s.logger.Debugw("solver session created", "session", s.id, "method", cfg.InnerSolver)
	return s, nil
}

// ID identifies the session in logs.
func (s *OptiSolver) ID() uuid.UUID {
	return s.id
}

// Config returns the current configuration.
func (s *OptiSolver) Config() Config {
	return s.cfg
}

// Opti returns the engine, for expressions over variables or parameters created outside any
// structure.
func (s *OptiSolver) Opti() *opti.Opti {
	return s.opti
}

func cloneOf[T any, PT ObjectPtr[T]](obj Object) Object {
	c := *(obj.(PT))
	return PT(&c)
}

// Generate creates the optimization objects of template, which is left untouched. The result
// replaces any previously generated objects and discards any previous solution.
func Generate[T any, PT ObjectPtr[T]](s *OptiSolver, template PT) (PT, error) {
	if template == nil {
		return nil, &ConfigurationError{Reason: "nil template"}
	}
	out, err := s.generate([]Object{template}, cloneOf[T, PT], false)
	if err != nil {
		return nil, err
	}
	return out[0].(PT), nil
}

// GenerateList is Generate for a non-empty list of templates.
func GenerateList[T any, PT ObjectPtr[T]](s *OptiSolver, templates []PT) ([]PT, error) {
	if len(templates) == 0 {
		return nil, &ListLengthError{Reason: "no templates to generate"}
	}
	out, err := s.generate(Objects[T, PT](templates), cloneOf[T, PT], true)
	if err != nil {
		return nil, err
	}
	return utils.AssertTypes[PT](out)
}

func (s *OptiSolver) generate(templates []Object, clone func(Object) Object, list bool) ([]Object, error) {
	out, variables, parameters, err := generate(s.opti, templates, clone, list)
	if err != nil {
		return nil, err
	}
	s.objects, s.list, s.clone = out, list, clone
	s.solved, s.values, s.costValue = false, nil, 0
	s.logger.Debugw("optimization objects generated",
		"session", s.id,
		"structures", len(out),
		"variables", variables,
		"parameters", parameters)
	return out, nil
}

// OptimizationObjects returns the generated structure.
func (s *OptiSolver) OptimizationObjects() (Object, error) {
	if s.objects == nil {
		return nil, ErrObjectsNotGenerated
	}
	if s.list {
		return nil, &ListLengthError{Reason: "the optimization objects are a list"}
	}
	return s.objects[0], nil
}

// OptimizationObjectsList returns the generated list of structures.
func (s *OptiSolver) OptimizationObjectsList() ([]Object, error) {
	if s.objects == nil {
		return nil, ErrObjectsNotGenerated
	}
	if !s.list {
		return nil, &ListLengthError{Reason: "the optimization objects are not a list"}
	}
	return s.objects, nil
}

// SetInitialGuess binds a guess structure against the generated structure. Variables receive an
// initial value and parameters their value. A rejected guess changes nothing.
func (s *OptiSolver) SetInitialGuess(guess Object) error {
	if s.objects == nil {
		return ErrObjectsNotGenerated
	}
	if s.list {
		return &ListLengthError{Reason: "a single guess cannot be matched against a list of optimization objects"}
	}
	if guess == nil {
		return &ConfigurationError{Reason: "nil guess"}
	}
	return s.bind([]Object{guess}, "")
}

// SetInitialGuessList binds guesses index by index against the generated list. The list may be
// shorter than the generated one; nil elements are skipped.
func (s *OptiSolver) SetInitialGuessList(guesses []Object) error {
	if s.objects == nil {
		return ErrObjectsNotGenerated
	}
	if !s.list {
		return &ListLengthError{Reason: "a list of guesses cannot be matched against a single structure"}
	}
	if len(guesses) > len(s.objects) {
		return &ListLengthError{Got: len(guesses), Max: len(s.objects)}
	}
	return s.bind(guesses, "")
}

func (s *OptiSolver) bind(guesses []Object, path string) error {
	b := &binder{}
	for i, guess := range guesses {
		if guess == nil {
			continue
		}
		p := path
		if s.list {
			p = indexPath(path, i)
		}
		if err := b.bind(p, guess, s.objects[i]); err != nil {
			return err
		}
	}
	if err := b.push(s.opti); err != nil {
		return err
	}
	s.logger.Debugw("initial guess set", "session", s.id, "values", len(b.assignments))
	return nil
}

// AddCost adds a 1x1 expression to the cost.
func (s *OptiSolver) AddCost(expr *sym.Expr) error {
	if expr == nil || !expr.IsScalar() {
		return errors.Errorf("optimization: cost terms must be 1x1, got %v", expr)
	}
	if s.cost == nil {
		s.cost = expr
	} else {
		s.cost = s.cost.Add(expr)
	}
	return nil
}

// AddConstraint adds constraints to the engine. Constraints cannot be removed.
func (s *OptiSolver) AddConstraint(constraints ...sym.Constraint) error {
	return s.opti.SubjectTo(constraints...)
}

// CostFunction returns the accumulated cost, nil before the first AddCost.
func (s *OptiSolver) CostFunction() *sym.Expr {
	return s.cost
}

// Solve minimizes the cost. On failure the engine error is returned as is and the previous
// solution, if any, is kept.
func (s *OptiSolver) Solve(ctx context.Context) error {
	if s.cost == nil {
		return ErrNoCost
	}
	if err := s.opti.Minimize(s.cost); err != nil {
		return err
	}

	start := time.Now()
	s.logger.Infow("solve started", "session", s.id, "method", s.opti.Method())
	sol, err := s.opti.Solve(ctx)
	if err != nil {
		s.logger.Warnw("solve failed", "session", s.id, "elapsed", time.Since(start), "error", err)
		return err
	}

	values := make([]Object, len(s.objects))
	for i, obj := range s.objects {
		path := ""
		if s.list {
			path = indexPath("", i)
		}
		if values[i], err = extract(sol, obj, s.clone, path); err != nil {
			return err
		}
	}
	s.values, s.costValue, s.solved = values, sol.Cost(), true
	s.logger.Infow("solve finished",
		"session", s.id,
		"elapsed", time.Since(start),
		"status", sol.Status().String(),
		"iterations", sol.Iterations(),
		"cost", sol.Cost())
	return nil
}

// Values returns the solution in the generated structure. Repeated calls return the same value.
func (s *OptiSolver) Values() (Object, error) {
	values, err := s.solution()
	if err != nil {
		return nil, err
	}
	if s.list {
		return nil, &ListLengthError{Reason: "the solution is a list"}
	}
	return values[0], nil
}

// ValuesList returns the solution in the generated list.
func (s *OptiSolver) ValuesList() ([]Object, error) {
	values, err := s.solution()
	if err != nil {
		return nil, err
	}
	if !s.list {
		return nil, &ListLengthError{Reason: "the solution is not a list"}
	}
	return values, nil
}

func (s *OptiSolver) solution() ([]Object, error) {
	if !s.solved {
		return nil, ErrSolutionNotAvailable
	}
	if len(s.values) == 0 {
		return nil, ErrObjectsNotGenerated
	}
	return s.values, nil
}

// CostValue returns the cost at the solution.
func (s *OptiSolver) CostValue() (float64, error) {
	if !s.solved {
		return 0, ErrSolutionNotAvailable
	}
	return s.costValue, nil
}

// ValuesOf is Values for a known structure type.
func ValuesOf[T any, PT ObjectPtr[T]](s *OptiSolver) (PT, error) {
	values, err := s.Values()
	if err != nil {
		return nil, err
	}
	return utils.AssertType[PT](values)
}

// ValuesListOf is ValuesList for a known structure type.
func ValuesListOf[T any, PT ObjectPtr[T]](s *OptiSolver) ([]PT, error) {
	values, err := s.ValuesList()
	if err != nil {
		return nil, err
	}
	return utils.AssertTypes[PT](values)
}

// SetOptiOptions changes the method and its options. Empty arguments keep the current values.
// The engine is reconfigured right away; nothing changes if the new configuration is rejected.
func (s *OptiSolver) SetOptiOptions(innerSolver string, solverOptions, pluginOptions map[string]any) error {
	cfg := s.cfg
	if innerSolver != "" {
		cfg.InnerSolver = innerSolver
	}
	if len(solverOptions) > 0 {
		cfg.SolverOptions = solverOptions
	}
	if len(pluginOptions) > 0 {
		cfg.PluginOptions = pluginOptions
	}
	if err := s.opti.Solver(cfg.method(), cfg.PluginOptions, cfg.SolverOptions); err != nil {
		return err
	}
	s.cfg = cfg
	return nil
}

// RegisterProblem stores a problem description alongside the session.
func (s *OptiSolver) RegisterProblem(problem any) {
	s.problem = problem
}

// Problem returns the registered problem.
func (s *OptiSolver) Problem() (any, error) {
	if s.problem == nil {
		return nil, ErrProblemNotRegistered
	}
	return s.problem, nil
}
