package optimization

import (
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"gonum.org/v1/gonum/mat"

	"github.com/ami-iit/stepwise/opti"
	"github.com/ami-iit/stepwise/sym"
)

type assignment struct {
	path   string
	handle *sym.Expr
	role   Role
	value  *mat.Dense
}

// binder matches guesses against generated objects by field name. Assignments are only collected;
// push hands them to the engine once the whole guess was accepted.
type binder struct {
	assignments []assignment
}

func (b *binder) bind(path string, guess, symbolic Object) error {
	fields := guess.Fields()
	if err := validateFields(path, fields); err != nil {
		return err
	}
	symbolicFields := lo.KeyBy(symbolic.Fields(), func(f Field) string { return f.name })

	for _, f := range fields {
		p := joinPath(path, f.name)
		counterpart, found := symbolicFields[f.name]
		switch {
		case f.storage != nil:
			if f.storage.value == nil {
				continue
			}
			if !found || counterpart.storage == nil || counterpart.storage.expr == nil {
				return &MissingFieldError{Field: p}
			}
			value, err := guessValue(p, *f.storage, counterpart.storage.expr)
			if err != nil {
				return err
			}
			b.assignments = append(b.assignments, assignment{
				path:   p,
				handle: counterpart.storage.expr,
				role:   counterpart.role,
				value:  value,
			})

		case f.role == RoleNested:
			child := f.object()
			if child == nil {
				continue
			}
			if !found || counterpart.role != RoleNested {
				return &MissingFieldError{Field: p}
			}
			symbolicChild := counterpart.object()
			if symbolicChild == nil {
				return &MissingFieldError{Field: p}
			}
			if err := b.bind(p, child, symbolicChild); err != nil {
				return err
			}

		case f.role == RoleListOfNested:
			if !found {
				return &MissingFieldError{Field: p}
			}
			if counterpart.role != RoleListOfNested {
				return &ListLengthError{Field: p, Reason: "the optimization objects do not hold a list here"}
			}
			children := f.objects()
			symbolicChildren := counterpart.objects()
			if len(children) > len(symbolicChildren) {
				return &ListLengthError{Field: p, Got: len(children), Max: len(symbolicChildren)}
			}
			for i, child := range children {
				if child == nil {
					continue
				}
				if symbolicChildren[i] == nil {
					return &MissingFieldError{Field: indexPath(p, i)}
				}
				if err := b.bind(indexPath(p, i), child, symbolicChildren[i]); err != nil {
					return err
				}
			}
		default:
		}
	}
	return nil
}

func guessValue(path string, s Storage, handle *sym.Expr) (*mat.Dense, error) {
	r, c := handle.Dims()
	want := Shape{r, c}
	got, err := tensorShape(s.value)
	if err != nil {
		return nil, &ShapeMismatchError{Field: path, Want: want, Reason: err.Error()}
	}
	if got != want {
		return nil, &ShapeMismatchError{Field: path, Want: want, Got: got}
	}
	value, err := s.Dense()
	if err != nil {
		return nil, &ShapeMismatchError{Field: path, Want: want, Got: got, Reason: err.Error()}
	}
	return value, nil
}

func (b *binder) push(engine *opti.Opti) error {
	for _, a := range b.assignments {
		var err error
		if a.role == RoleParameter {
			err = engine.SetValue(a.handle, a.value)
		} else {
			err = engine.SetInitial(a.handle, a.value)
		}
		if err != nil {
			return errors.Wrapf(err, "setting %s", a.path)
		}
	}
	return nil
}

// extract copies symbolic and replaces every symbol with its value in the solution.
func extract(sol *opti.Solution, symbolic Object, clone func(Object) Object, path string) (Object, error) {
	c := clone(symbolic)
	err := copyTree(path, c, func(p string, f Field) error {
		handle := f.storage.expr
		if handle == nil {
			return errors.Errorf("optimization: %s holds no symbol", displayPath(p))
		}
		value, err := sol.Value(handle)
		if err != nil {
			return errors.Wrapf(err, "reading %s", displayPath(p))
		}
		r, cols := handle.Dims()
		*f.storage = fromDense(value, Shape{r, cols})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}
