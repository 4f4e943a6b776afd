package pointmass

import (
	"context"
	"testing"

	"go.viam.com/test"

	"github.com/ami-iit/stepwise/logging"
	"github.com/ami-iit/stepwise/optimization"
)

func newSolver(t *testing.T) *optimization.OptiSolver {
	t.Helper()
	s, err := optimization.NewOptiSolver(optimization.Config{}, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	return s
}

func TestConfig(t *testing.T) {
	cfg, err := DecodeConfig(map[string]any{"knots": "12", "height": 0.5})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cfg.Knots, test.ShouldEqual, 12)
	test.That(t, cfg.Height, test.ShouldEqual, 0.5)
	test.That(t, cfg.Mass, test.ShouldEqual, DefaultConfig().Mass)
	test.That(t, cfg.Step(), test.ShouldAlmostEqual, 1.0/11)

	_, err = DecodeConfig(map[string]any{"jump": 1})
	test.That(t, err, test.ShouldNotBeNil)

	for _, bad := range []Config{
		{Knots: 2, Duration: 1, Mass: 1},
		{Knots: 5, Duration: 0, Mass: 1},
		{Knots: 5, Duration: 1, Mass: -1},
		{Knots: 5, Duration: 1, Mass: 1, Height: -1},
	} {
		test.That(t, bad.Validate(), test.ShouldNotBeNil)
		_, err := Build(newSolver(t), bad)
		test.That(t, err, test.ShouldNotBeNil)
	}
}

func TestBuild(t *testing.T) {
	s := newSolver(t)
	cfg := DefaultConfig()
	cfg.Knots = 5
	hop, err := Build(s, cfg)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, hop.Knots, test.ShouldHaveLength, 5)
	test.That(t, hop.Label, test.ShouldEqual, cfg.Label)
	test.That(t, s.Opti().NumVariables(), test.ShouldEqual, 5*3)
	test.That(t, s.Opti().NumParameters(), test.ShouldEqual, 4)
	// Force bounds, two dynamics rows per interval, start, end height and end velocity.
	test.That(t, s.Opti().NumConstraints(), test.ShouldEqual, 5+2*4+3)

	problem, err := s.Problem()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, problem, test.ShouldResemble, cfg)
}

func TestSolveReachesTarget(t *testing.T) {
	s := newSolver(t)
	cfg := DefaultConfig()
	cfg.Knots = 10
	cfg.Height = 0.5
	cfg.Mass = 2
	sol, err := Solve(context.Background(), s, cfg)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, sol.Samples, test.ShouldHaveLength, cfg.Knots)

	first, last := sol.Samples[0], sol.Final()
	test.That(t, first.Height, test.ShouldAlmostEqual, 0, 1e-4)
	test.That(t, first.Velocity, test.ShouldAlmostEqual, 0, 1e-4)
	test.That(t, last.Height, test.ShouldAlmostEqual, cfg.Height, 1e-4)
	test.That(t, last.Velocity, test.ShouldAlmostEqual, 0, 1e-4)
	test.That(t, last.Time, test.ShouldAlmostEqual, cfg.Duration)
	for _, sample := range sol.Samples {
		test.That(t, sample.Force, test.ShouldBeGreaterThanOrEqualTo, -1e-4)
	}
	test.That(t, sol.Cost, test.ShouldBeGreaterThan, 0)
	test.That(t, sol.String(), test.ShouldContainSubstring, cfg.Label)
}
