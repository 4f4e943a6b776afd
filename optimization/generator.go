package optimization

import (
	"github.com/ami-iit/stepwise/opti"
	"github.com/ami-iit/stepwise/sym"
)

type pendingSymbol struct {
	storage *Storage
	role    Role
	shape   Shape
}

// generator collects the symbols of one or more copied templates. Nothing is created on the
// engine until commit, so a failing template leaves the engine untouched.
type generator struct {
	pending []pendingSymbol
}

func (g *generator) visit(path string, f Field) error {
	if f.role != RoleVariable && f.role != RoleParameter {
		return &UnsupportedRoleError{Field: path, Role: f.role}
	}
	shape, err := templateShape(path, *f.storage)
	if err != nil {
		return err
	}
	g.pending = append(g.pending, pendingSymbol{storage: f.storage, role: f.role, shape: shape})
	return nil
}

func templateShape(path string, s Storage) (Shape, error) {
	if !s.IsSet() {
		return Shape{}, &ShapeError{Field: path, Reason: "no value"}
	}
	shape, err := s.Shape()
	if err != nil {
		return Shape{}, &ShapeError{Field: path, Reason: err.Error()}
	}
	if shape.Rows == 0 || shape.Cols == 0 {
		return Shape{}, &ShapeError{Field: path, Reason: "empty value"}
	}
	return shape, nil
}

func (g *generator) commit(engine *opti.Opti) (variables, parameters int) {
	for _, p := range g.pending {
		var handle *sym.Expr
		if p.role == RoleVariable {
			handle = engine.Variable(p.shape.Rows, p.shape.Cols)
			variables++
		} else {
			handle = engine.Parameter(p.shape.Rows, p.shape.Cols)
			parameters++
		}
		*p.storage = Storage{expr: handle}
	}
	return variables, parameters
}

// generate copies each template and fills the copies with fresh symbols.
func generate(engine *opti.Opti, templates []Object, clone func(Object) Object, list bool) ([]Object, int, int, error) {
	g := &generator{}
	out := make([]Object, len(templates))
	for i, template := range templates {
		path := ""
		if list {
			path = indexPath("", i)
		}
		if template == nil {
			return nil, 0, 0, &ConfigurationError{Path: path, Reason: "nil template"}
		}
		c := clone(template)
		if err := copyTree(path, c, g.visit); err != nil {
			return nil, 0, 0, err
		}
		out[i] = c
	}
	variables, parameters := g.commit(engine)
	return out, variables, parameters, nil
}
