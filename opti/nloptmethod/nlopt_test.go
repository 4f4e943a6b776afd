//go:build !windows && !no_cgo

package nloptmethod

import (
	"context"
	"testing"

	"go.viam.com/test"

	"github.com/ami-iit/stepwise/logging"
	"github.com/ami-iit/stepwise/opti"
	"github.com/ami-iit/stepwise/sym"
)

func TestSLSQP(t *testing.T) {
	test.That(t, opti.RegisteredMethods(), test.ShouldContain, Name)

	o, err := opti.New("", logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, o.Solver(Name, nil, map[string]any{"max_eval": 500}), test.ShouldBeNil)

	x := o.Variable(2, 1)
	test.That(t, o.Minimize(sym.SumSquares(x)), test.ShouldBeNil)
	test.That(t, o.SubjectTo(
		sym.Eq(sym.Sum(x), sym.Scalar(1)),
		sym.Le(x.Elem(0), sym.Scalar(0.25)),
	), test.ShouldBeNil)

	sol, err := o.Solve(context.Background())
	test.That(t, err, test.ShouldBeNil)
	value, err := sol.Value(x)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, value.At(0, 0), test.ShouldAlmostEqual, 0.25, 1e-5)
	test.That(t, value.At(1, 0), test.ShouldAlmostEqual, 0.75, 1e-5)
}

func TestOptions(t *testing.T) {
	o, err := opti.New("", logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, o.Solver(Name, nil, map[string]any{"max_eval": 0}), test.ShouldNotBeNil)
	test.That(t, o.Solver(Name, nil, map[string]any{"max_iter": 10}), test.ShouldNotBeNil)
	test.That(t, o.Method(), test.ShouldEqual, opti.DefaultMethod)
}
