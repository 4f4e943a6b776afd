package optimization

import (
	"testing"

	"github.com/pkg/errors"
	"go.viam.com/test"
	"gorgonia.org/tensor"

	"github.com/ami-iit/stepwise/sym"
)

func TestGeneratePlainOnly(t *testing.T) {
	s := newTestSolver(t)
	template := &plainOnly{Name: "a", Count: 3, Tags: []string{"x"}}
	out, err := Generate(s, template)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out != template, test.ShouldBeTrue)
	test.That(t, out, test.ShouldResemble, template)
	test.That(t, s.Opti().NumVariables(), test.ShouldEqual, 0)
	test.That(t, s.Opti().NumParameters(), test.ShouldEqual, 0)

	objects, err := s.OptimizationObjects()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, objects == Object(out), test.ShouldBeTrue)
}

func TestGenerateShapes(t *testing.T) {
	s := newTestSolver(t)
	out, err := Generate(s, newTrajectory(3))
	test.That(t, err, test.ShouldBeNil)

	shape := func(st Storage) Shape {
		test.That(t, st.Sym(), test.ShouldNotBeNil)
		test.That(t, st.Tensor(), test.ShouldBeNil)
		sh, err := st.Shape()
		test.That(t, err, test.ShouldBeNil)
		return sh
	}
	test.That(t, shape(out.Settings.Mass), test.ShouldResemble, Shape{1, 1})
	test.That(t, out.Settings.Mass.Sym().IsParameter(), test.ShouldBeTrue)
	test.That(t, out.Knots, test.ShouldHaveLength, 3)
	for _, k := range out.Knots {
		test.That(t, shape(k.State), test.ShouldResemble, Shape{2, 1})
		test.That(t, shape(k.Force), test.ShouldResemble, Shape{1, 1})
		test.That(t, k.State.Sym().IsVariable(), test.ShouldBeTrue)
	}
	test.That(t, shape(out.Offset.Shift), test.ShouldResemble, Shape{2, 3})
	test.That(t, out.Label, test.ShouldEqual, "hop")
	test.That(t, out.Settings.Name, test.ShouldEqual, "unit")

	test.That(t, s.Opti().NumVariables(), test.ShouldEqual, 3*3+6)
	test.That(t, s.Opti().NumParameters(), test.ShouldEqual, 1)
}

func TestGenerateLeavesTemplateAlone(t *testing.T) {
	s := newTestSolver(t)
	template := newTrajectory(2)
	settingsBefore, knotsBefore := template.Settings, template.Knots[0]
	out, err := Generate(s, template)
	test.That(t, err, test.ShouldBeNil)

	test.That(t, template.Settings == settingsBefore, test.ShouldBeTrue)
	test.That(t, template.Knots[0] == knotsBefore, test.ShouldBeTrue)
	test.That(t, out.Settings != template.Settings, test.ShouldBeTrue)
	test.That(t, out.Knots[0] != template.Knots[0], test.ShouldBeTrue)
	test.That(t, template.Settings.Mass.Sym(), test.ShouldBeNil)
	test.That(t, template.Knots[0].State.Tensor(), test.ShouldNotBeNil)
	test.That(t, template.Offset.Shift.Sym(), test.ShouldBeNil)

	// Generating twice from one template gives independent symbols.
	again, err := Generate(s, template)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, again.Knots[0].State.Sym().Slots(), test.ShouldNotResemble, out.Knots[0].State.Sym().Slots())
}

func TestGenerateNilNested(t *testing.T) {
	s := newTestSolver(t)
	template := newTrajectory(1)
	template.Settings = nil
	template.Knots = nil
	out, err := Generate(s, template)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out.Settings, test.ShouldBeNil)
	test.That(t, out.Knots, test.ShouldBeNil)
	test.That(t, s.Opti().NumParameters(), test.ShouldEqual, 0)
}

func TestGenerateShapeErrors(t *testing.T) {
	for _, tc := range []struct {
		name  string
		value Storage
	}{
		{"unset", Storage{}},
		{"rank 3", Value(tensor.New(tensor.WithShape(2, 2, 2), tensor.WithBacking(make([]float64, 8))))},
	} {
		t.Run(tc.name, func(t *testing.T) {
			s := newTestSolver(t)
			template := newTrajectory(2)
			template.Knots[1].Force = tc.value
			_, err := Generate(s, template)
			var shapeErr *ShapeError
			test.That(t, errors.As(err, &shapeErr), test.ShouldBeTrue)
			test.That(t, shapeErr.Field, test.ShouldEqual, "knots[1].force")

			// Nothing reached the engine.
			test.That(t, s.Opti().NumVariables(), test.ShouldEqual, 0)
			_, err = s.OptimizationObjects()
			test.That(t, errors.Is(err, ErrObjectsNotGenerated), test.ShouldBeTrue)
		})
	}
}

func TestGenerateList(t *testing.T) {
	s := newTestSolver(t)
	_, err := GenerateList(s, []*knot{})
	var lengthErr *ListLengthError
	test.That(t, errors.As(err, &lengthErr), test.ShouldBeTrue)

	_, err = GenerateList(s, []*knot{newKnot(), nil})
	var configErr *ConfigurationError
	test.That(t, errors.As(err, &configErr), test.ShouldBeTrue)
	test.That(t, configErr.Path, test.ShouldEqual, "[1]")

	out, err := GenerateList(s, []*knot{newKnot(), newKnot(), newKnot()})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out, test.ShouldHaveLength, 3)
	for i, k := range out {
		test.That(t, k.State.Sym().Slots(), test.ShouldResemble, []int{3 * i, 3*i + 1})
	}

	list, err := s.OptimizationObjectsList()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, list, test.ShouldHaveLength, 3)
	_, err = s.OptimizationObjects()
	test.That(t, errors.As(err, &lengthErr), test.ShouldBeTrue)
}

func TestRegenerateFromGeneratedObjects(t *testing.T) {
	s := newTestSolver(t)
	out, err := Generate(s, &point{X: Vector(0, 0), P: Scalar(0)})
	test.That(t, err, test.ShouldBeNil)

	// Generated objects carry their shapes and can serve as templates.
	again, err := Generate(s, out)
	test.That(t, err, test.ShouldBeNil)
	r, c := again.X.Sym().Dims()
	test.That(t, []int{r, c}, test.ShouldResemble, []int{2, 1})
	test.That(t, again.X.Sym().Slots(), test.ShouldResemble, []int{2, 3})
	test.That(t, sym.Eq(again.X.Sym(), out.X.Sym()).Expr.Len(), test.ShouldEqual, 2)
}
