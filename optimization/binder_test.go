package optimization

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"go.viam.com/test"
	"gonum.org/v1/gonum/mat"
	"gorgonia.org/tensor"

	"github.com/ami-iit/stepwise/sym"
)

// solveZeroCost solves a cost that does not depend on any variable, so every variable keeps its
// initial value.
func solveZeroCost(t *testing.T, s *OptiSolver) {
	t.Helper()
	test.That(t, s.AddCost(sym.Scalar(0)), test.ShouldBeNil)
	test.That(t, s.Solve(context.Background()), test.ShouldBeNil)
}

func TestGuessBeforeGenerate(t *testing.T) {
	s := newTestSolver(t)
	test.That(t, errors.Is(s.SetInitialGuess(newKnot()), ErrObjectsNotGenerated), test.ShouldBeTrue)
	test.That(t, errors.Is(s.SetInitialGuessList(nil), ErrObjectsNotGenerated), test.ShouldBeTrue)
}

func TestGuessShapeMismatch(t *testing.T) {
	s := newTestSolver(t)
	_, err := Generate(s, &point{X: Vector(0, 0, 0, 0), P: Scalar(1)})
	test.That(t, err, test.ShouldBeNil)

	err = s.SetInitialGuess(&point{X: Vector(1, 2, 3)})
	var mismatch *ShapeMismatchError
	test.That(t, errors.As(err, &mismatch), test.ShouldBeTrue)
	test.That(t, mismatch.Field, test.ShouldEqual, "x")
	test.That(t, mismatch.Want, test.ShouldResemble, Shape{4, 1})
	test.That(t, mismatch.Got, test.ShouldResemble, Shape{3, 1})

	// A row where a column is expected is a mismatch too.
	err = s.SetInitialGuess(&point{X: Matrix(mat.NewDense(1, 4, nil))})
	test.That(t, errors.As(err, &mismatch), test.ShouldBeTrue)

	err = s.SetInitialGuess(&point{X: Value(tensor.New(tensor.WithShape(4), tensor.WithBacking([]float32{1, 2, 3, 4})))})
	test.That(t, errors.As(err, &mismatch), test.ShouldBeTrue)
	test.That(t, mismatch.Reason, test.ShouldContainSubstring, "float64")

	err = s.SetInitialGuess(&point{X: Value(tensor.New(tensor.WithShape(2, 2, 1), tensor.WithBacking(make([]float64, 4))))})
	test.That(t, errors.As(err, &mismatch), test.ShouldBeTrue)
	test.That(t, mismatch.Reason, test.ShouldNotBeEmpty)
}

func TestRejectedGuessChangesNothing(t *testing.T) {
	s := newTestSolver(t)
	_, err := Generate(s, newTrajectory(2))
	test.That(t, err, test.ShouldBeNil)

	// The first knot is fine, the second one is not.
	guess := newTrajectory(2)
	guess.Knots[0].State = Vector(7, 7)
	guess.Knots[1].State = Vector(1, 2, 3)
	err = s.SetInitialGuess(guess)
	var mismatch *ShapeMismatchError
	test.That(t, errors.As(err, &mismatch), test.ShouldBeTrue)
	test.That(t, mismatch.Field, test.ShouldEqual, "knots[1].state")

	// The mass parameter never received a value either.
	test.That(t, s.AddCost(sym.Scalar(0)), test.ShouldBeNil)
	test.That(t, s.Solve(context.Background()), test.ShouldNotBeNil)

	test.That(t, s.SetInitialGuess(&trajectory{Settings: &settings{Mass: Scalar(1)}}), test.ShouldBeNil)
	test.That(t, s.Solve(context.Background()), test.ShouldBeNil)
	values, err := ValuesOf[trajectory](s)
	test.That(t, err, test.ShouldBeNil)
	state, err := values.Knots[0].State.Dense()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, state.RawMatrix().Data, test.ShouldResemble, []float64{0, 0})
}

func TestGuessPartial(t *testing.T) {
	s := newTestSolver(t)
	_, err := Generate(s, newTrajectory(3))
	test.That(t, err, test.ShouldBeNil)

	// One guessed knot out of three, unset leaves, a nil nested guess and plain data are fine.
	guess := &trajectory{
		Settings: &settings{Mass: Scalar(3), Name: "ignored"},
		Knots:    []*knot{{State: Vector(1, 2)}},
		Label:    "ignored",
	}
	test.That(t, s.SetInitialGuess(guess), test.ShouldBeNil)

	guess.Knots = []*knot{nil, {Force: Scalar(4)}}
	test.That(t, s.SetInitialGuess(guess), test.ShouldBeNil)

	solveZeroCost(t, s)
	values, err := ValuesOf[trajectory](s)
	test.That(t, err, test.ShouldBeNil)

	read := func(st Storage) []float64 {
		d, err := st.Dense()
		test.That(t, err, test.ShouldBeNil)
		return d.RawMatrix().Data
	}
	test.That(t, read(values.Settings.Mass), test.ShouldResemble, []float64{3})
	test.That(t, read(values.Knots[0].State), test.ShouldResemble, []float64{1, 2})
	test.That(t, read(values.Knots[1].Force), test.ShouldResemble, []float64{4})
	test.That(t, read(values.Knots[2].State), test.ShouldResemble, []float64{0, 0})
	test.That(t, values.Settings.Name, test.ShouldEqual, "unit")
}

func TestGuessListLengths(t *testing.T) {
	t.Run("nested list", func(t *testing.T) {
		s := newTestSolver(t)
		_, err := Generate(s, newTrajectory(2))
		test.That(t, err, test.ShouldBeNil)

		err = s.SetInitialGuess(&trajectory{Knots: []*knot{newKnot(), newKnot(), newKnot()}})
		var lengthErr *ListLengthError
		test.That(t, errors.As(err, &lengthErr), test.ShouldBeTrue)
		test.That(t, lengthErr.Field, test.ShouldEqual, "knots")
		test.That(t, lengthErr.Got, test.ShouldEqual, 3)
		test.That(t, lengthErr.Max, test.ShouldEqual, 2)

		test.That(t, s.SetInitialGuess(&trajectory{Knots: []*knot{newKnot()}}), test.ShouldBeNil)
	})

	t.Run("top level list", func(t *testing.T) {
		s := newTestSolver(t)
		_, err := GenerateList(s, []*knot{newKnot(), newKnot()})
		test.That(t, err, test.ShouldBeNil)

		err = s.SetInitialGuessList(Objects([]*knot{newKnot(), newKnot(), newKnot()}))
		var lengthErr *ListLengthError
		test.That(t, errors.As(err, &lengthErr), test.ShouldBeTrue)
		test.That(t, lengthErr.Got, test.ShouldEqual, 3)

		err = s.SetInitialGuess(newKnot())
		test.That(t, errors.As(err, &lengthErr), test.ShouldBeTrue)

		guess := &knot{State: Vector(5, 6)}
		test.That(t, s.SetInitialGuessList(Objects([]*knot{guess})), test.ShouldBeNil)

		solveZeroCost(t, s)
		values, err := ValuesListOf[knot](s)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, values, test.ShouldHaveLength, 2)
		first, err := values[0].State.Dense()
		test.That(t, err, test.ShouldBeNil)
		test.That(t, first.RawMatrix().Data, test.ShouldResemble, []float64{5, 6})
		second, err := values[1].State.Dense()
		test.That(t, err, test.ShouldBeNil)
		test.That(t, second.RawMatrix().Data, test.ShouldResemble, []float64{0, 0})
	})

	t.Run("single against list", func(t *testing.T) {
		s := newTestSolver(t)
		_, err := Generate(s, newKnot())
		test.That(t, err, test.ShouldBeNil)
		err = s.SetInitialGuessList(Objects([]*knot{newKnot()}))
		var lengthErr *ListLengthError
		test.That(t, errors.As(err, &lengthErr), test.ShouldBeTrue)
	})
}

type renamedKnot struct {
	Velocity Storage
}

func (k *renamedKnot) Fields() []Field {
	return []Field{Variable("velocity", &k.Velocity)}
}

type knotsAsNested struct {
	Knots *knot
}

func (k *knotsAsNested) Fields() []Field {
	return []Field{Nested("knots", &k.Knots)}
}

type settingsAsList struct {
	Settings []*settings
}

func (s *settingsAsList) Fields() []Field {
	return []Field{List("settings", &s.Settings)}
}

type extraList struct {
	Extra []*knot
}

func (e *extraList) Fields() []Field {
	return []Field{List("extra", &e.Extra)}
}

func TestGuessMissingFields(t *testing.T) {
	s := newTestSolver(t)
	_, err := Generate(s, newTrajectory(1))
	test.That(t, err, test.ShouldBeNil)

	var missing *MissingFieldError
	err = s.SetInitialGuess(&renamedKnot{Velocity: Scalar(1)})
	test.That(t, errors.As(err, &missing), test.ShouldBeTrue)
	test.That(t, missing.Field, test.ShouldEqual, "velocity")

	// Unset leaves are not looked up.
	test.That(t, s.SetInitialGuess(&renamedKnot{}), test.ShouldBeNil)

	// A nested guess where the objects hold a list.
	err = s.SetInitialGuess(&knotsAsNested{Knots: newKnot()})
	test.That(t, errors.As(err, &missing), test.ShouldBeTrue)
	test.That(t, missing.Field, test.ShouldEqual, "knots")

	// A list guess where the objects hold a nested structure.
	err = s.SetInitialGuess(&settingsAsList{Settings: []*settings{{Mass: Scalar(1)}}})
	var lengthErr *ListLengthError
	test.That(t, errors.As(err, &lengthErr), test.ShouldBeTrue)
	test.That(t, lengthErr.Reason, test.ShouldNotBeEmpty)

	err = s.SetInitialGuess(&extraList{Extra: []*knot{newKnot()}})
	test.That(t, errors.As(err, &missing), test.ShouldBeTrue)
	test.That(t, missing.Field, test.ShouldEqual, "extra")
}

func TestGuessAgainstNilNested(t *testing.T) {
	s := newTestSolver(t)
	template := newTrajectory(1)
	template.Settings = nil
	_, err := Generate(s, template)
	test.That(t, err, test.ShouldBeNil)

	err = s.SetInitialGuess(&trajectory{Settings: &settings{Mass: Scalar(1)}})
	var missing *MissingFieldError
	test.That(t, errors.As(err, &missing), test.ShouldBeTrue)
	test.That(t, missing.Field, test.ShouldEqual, "settings")
}
