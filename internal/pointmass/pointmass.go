// Package pointmass builds the vertical hop of a point mass as an optimization problem: a list of
// knots pushed by a non-negative force, starting at rest on the ground and ending at rest at a
// target height, with the least effort.
package pointmass

import (
	"context"
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/pkg/errors"

	"github.com/ami-iit/stepwise/opti"
	"github.com/ami-iit/stepwise/optimization"
	"github.com/ami-iit/stepwise/sym"
)

// Knot is the state of the mass at one instant and the force applied until the next one.
type Knot struct {
	// State is [height, velocity].
	State optimization.Storage
	Force optimization.Storage
}

// Fields implements optimization.Object.
func (k *Knot) Fields() []optimization.Field {
	return []optimization.Field{
		optimization.Variable("state", &k.State),
		optimization.Variable("force", &k.Force),
	}
}

// Settings are the physical constants of the hop.
type Settings struct {
	Mass    optimization.Storage
	Gravity optimization.Storage
	Step    optimization.Storage
	Target  optimization.Storage
}

// Fields implements optimization.Object.
func (s *Settings) Fields() []optimization.Field {
	return []optimization.Field{
		optimization.Parameter("mass", &s.Mass),
		optimization.Parameter("gravity", &s.Gravity),
		optimization.Parameter("dt", &s.Step),
		optimization.Parameter("target", &s.Target),
	}
}

// Hop is the whole trajectory.
type Hop struct {
	Settings *Settings
	Knots    []*Knot
	Label    string
}

// Fields implements optimization.Object.
func (h *Hop) Fields() []optimization.Field {
	return []optimization.Field{
		optimization.Nested("settings", &h.Settings),
		optimization.List("knots", &h.Knots),
		optimization.Plain("label"),
	}
}

// Config describes a hop.
type Config struct {
	Knots    int     `json:"knots"`
	Height   float64 `json:"height"`
	Duration float64 `json:"duration"`
	Mass     float64 `json:"mass"`
	Gravity  float64 `json:"gravity"`
	Label    string  `json:"label"`
}

// DefaultConfig returns a one meter hop of a one kilogram mass in one second.
func DefaultConfig() Config {
	return Config{
		Knots:    20,
		Height:   1,
		Duration: 1,
		Mass:     1,
		Gravity:  9.81,
		Label:    "hop",
	}
}

// DecodeConfig decodes attributes on top of DefaultConfig.
func DecodeConfig(attributes map[string]any) (Config, error) {
	cfg := DefaultConfig()
	if err := opti.DecodeOptions(attributes, &cfg); err != nil {
		return Config{}, errors.Wrap(err, "pointmass: invalid hop config")
	}
	return cfg, nil
}

// Validate ensures all parts of the config are valid.
func (cfg Config) Validate() error {
	if cfg.Knots < 3 {
		return errors.Errorf("pointmass: at least 3 knots are needed, got %d", cfg.Knots)
	}
	if cfg.Duration <= 0 {
		return errors.Errorf("pointmass: duration must be positive, got %v", cfg.Duration)
	}
	if cfg.Mass <= 0 {
		return errors.Errorf("pointmass: mass must be positive, got %v", cfg.Mass)
	}
	if cfg.Height < 0 {
		return errors.Errorf("pointmass: height cannot be negative, got %v", cfg.Height)
	}
	return nil
}

// Step is the time between two knots.
func (cfg Config) Step() float64 {
	return cfg.Duration / float64(cfg.Knots-1)
}

// Template returns the structure the optimization objects are generated from. It also serves as
// the values of the parameters.
func (cfg Config) Template() *Hop {
	h := &Hop{
		Settings: &Settings{
			Mass:    optimization.Scalar(cfg.Mass),
			Gravity: optimization.Scalar(cfg.Gravity),
			Step:    optimization.Scalar(cfg.Step()),
			Target:  optimization.Scalar(cfg.Height),
		},
		Label: cfg.Label,
	}
	for i := 0; i < cfg.Knots; i++ {
		h.Knots = append(h.Knots, &Knot{State: optimization.Vector(0, 0), Force: optimization.Scalar(0)})
	}
	return h
}

// Guess is a constant velocity climb holding the weight.
func (cfg Config) Guess() *Hop {
	h := cfg.Template()
	velocity := cfg.Height / cfg.Duration
	for i, k := range h.Knots {
		k.State = optimization.Vector(cfg.Height*float64(i)/float64(cfg.Knots-1), velocity)
		k.Force = optimization.Scalar(cfg.Mass * cfg.Gravity)
	}
	return h
}

// Build generates the hop objects on s and adds the dynamics, the boundary conditions and the
// effort cost. The returned structure holds the symbols.
func Build(s *optimization.OptiSolver, cfg Config) (*Hop, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	hop, err := optimization.Generate(s, cfg.Template())
	if err != nil {
		return nil, err
	}
	if err := s.SetInitialGuess(cfg.Guess()); err != nil {
		return nil, err
	}

	mass := hop.Settings.Mass.Sym()
	gravity := hop.Settings.Gravity.Sym()
	dt := hop.Settings.Step.Sym()

	var constraints []sym.Constraint
	for i, k := range hop.Knots {
		force := k.Force.Sym()
		constraints = append(constraints, sym.Ge(force, sym.Scalar(0)))
		if err := s.AddCost(dt.MulElem(force.Pow(2))); err != nil {
			return nil, err
		}
		if i == len(hop.Knots)-1 {
			break
		}
		state, next := k.State.Sym(), hop.Knots[i+1].State.Sym()
		z, v := state.Elem(0), state.Elem(1)
		acceleration := force.DivElem(mass).Sub(gravity)
		constraints = append(constraints,
			sym.Eq(next.Elem(0), z.Add(dt.MulElem(v))),
			sym.Eq(next.Elem(1), v.Add(dt.MulElem(acceleration))),
		)
	}

	last := hop.Knots[len(hop.Knots)-1].State.Sym()
	constraints = append(constraints,
		sym.Eq(hop.Knots[0].State.Sym(), sym.Zeros(2, 1)),
		sym.Eq(last.Elem(0), hop.Settings.Target.Sym()),
		sym.Eq(last.Elem(1), sym.Scalar(0)),
	)
	if err := s.AddConstraint(constraints...); err != nil {
		return nil, err
	}
	s.RegisterProblem(cfg)
	return hop, nil
}

// Sample is one row of a solved hop.
type Sample struct {
	Time     float64
	Height   float64
	Velocity float64
	Force    float64
}

// Solution is a solved hop.
type Solution struct {
	Label   string
	Samples []Sample
	Cost    float64
}

// Final returns the last sample.
func (sol *Solution) Final() Sample {
	return sol.Samples[len(sol.Samples)-1]
}

// String renders the samples as a table.
func (sol *Solution) String() string {
	t := table.NewWriter()
	t.SetTitle(sol.Label)
	t.AppendHeader(table.Row{"#", "t [s]", "z [m]", "v [m/s]", "f [N]"})
	for i, sample := range sol.Samples {
		t.AppendRow(table.Row{
			i,
			fmt.Sprintf("%.3f", sample.Time),
			fmt.Sprintf("%.4f", sample.Height),
			fmt.Sprintf("%.4f", sample.Velocity),
			fmt.Sprintf("%.4f", sample.Force),
		})
	}
	t.AppendFooter(table.Row{"", "", "", "cost", fmt.Sprintf("%.4f", sol.Cost)})
	return t.Render()
}

// Solve builds the hop on s, solves it and reads the solution back.
func Solve(ctx context.Context, s *optimization.OptiSolver, cfg Config) (*Solution, error) {
	if _, err := Build(s, cfg); err != nil {
		return nil, err
	}
	if err := s.Solve(ctx); err != nil {
		return nil, err
	}
	values, err := optimization.ValuesOf[Hop](s)
	if err != nil {
		return nil, err
	}
	cost, err := s.CostValue()
	if err != nil {
		return nil, err
	}

	sol := &Solution{Label: values.Label, Cost: cost}
	dt := cfg.Step()
	for i, k := range values.Knots {
		state, err := k.State.Dense()
		if err != nil {
			return nil, err
		}
		force, err := k.Force.Dense()
		if err != nil {
			return nil, err
		}
		sol.Samples = append(sol.Samples, Sample{
			Time:     float64(i) * dt,
			Height:   state.At(0, 0),
			Velocity: state.At(1, 0),
			Force:    force.At(0, 0),
		})
	}
	return sol, nil
}
