package opti

import (
	"context"
	"testing"

	"go.viam.com/test"

	"github.com/ami-iit/stepwise/logging"
)

type fixedPoint struct {
	x []float64
}

func (m *fixedPoint) Minimize(ctx context.Context, nlp *NLP, logger logging.Logger) (*Result, error) {
	return &Result{X: m.x, Status: Succeeded, Iterations: 1}, nil
}

func TestRegisterMethod(t *testing.T) {
	const name = "fixed_point"
	constructor := func(options map[string]any) (Method, error) {
		return &fixedPoint{x: []float64{42}}, nil
	}
	RegisterMethod(name, constructor)
	defer DeregisterMethod(name)

	test.That(t, RegisteredMethods(), test.ShouldContain, name)
	test.That(t, RegisteredMethods(), test.ShouldContain, DefaultMethod)
	test.That(t, func() { RegisterMethod(name, constructor) }, test.ShouldPanic)
	test.That(t, func() { RegisterMethod("nil_method", nil) }, test.ShouldPanic)

	o := newTestOpti(t)
	test.That(t, o.Solver(name, nil, nil), test.ShouldBeNil)
	x := o.Variable(1, 1)
	test.That(t, o.Minimize(x.Pow(2)), test.ShouldBeNil)
	sol, err := o.Solve(context.Background())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, sol.Cost(), test.ShouldEqual, 42.0*42.0)

	DeregisterMethod(name)
	test.That(t, RegisteredMethods(), test.ShouldNotContain, name)
	test.That(t, o.Solver(name, nil, nil), test.ShouldNotBeNil)
}
