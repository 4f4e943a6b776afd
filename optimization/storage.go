package optimization

import (
	"fmt"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
	"gorgonia.org/tensor"

	"github.com/ami-iit/stepwise/sym"
)

// Shape is the (rows, cols) shape of a storage field.
type Shape struct {
	Rows, Cols int
}

func (s Shape) String() string {
	return fmt.Sprintf("(%d, %d)", s.Rows, s.Cols)
}

// Storage is the value of a variable or parameter field. In a template or a guess it holds a
// numeric tensor, in generated objects the symbolic handle of the field. The zero Storage is unset.
type Storage struct {
	value tensor.Tensor
	expr  *sym.Expr
}

// Scalar returns a 0-d storage value, generated as a (1, 1) symbol.
func Scalar(v float64) Storage {
	return Storage{value: tensor.New(tensor.FromScalar(v))}
}

// Vector returns a 1-d storage value of len(v) elements, generated as a (len(v), 1) symbol.
// Without elements the storage is unset.
func Vector(v ...float64) Storage {
	if len(v) == 0 {
		return Storage{}
	}
	backing := append([]float64(nil), v...)
	return Storage{value: tensor.New(tensor.WithShape(len(v)), tensor.WithBacking(backing))}
}

// Matrix returns a 2-d storage value holding a copy of m.
func Matrix(m mat.Matrix) Storage {
	r, c := m.Dims()
	backing := make([]float64, 0, r*c)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			backing = append(backing, m.At(i, j))
		}
	}
	return Storage{value: tensor.New(tensor.WithShape(r, c), tensor.WithBacking(backing))}
}

// Value wraps an arbitrary tensor. Only float64 tensors of rank two or less can be used as a
// guess; templates only contribute their shape.
func Value(t tensor.Tensor) Storage {
	return Storage{value: t}
}

// IsSet reports whether the storage holds a numeric value or a symbol.
func (s Storage) IsSet() bool {
	return s.value != nil || s.expr != nil
}

// Tensor returns the numeric value, nil when there is none.
func (s Storage) Tensor() tensor.Tensor {
	return s.value
}

// Sym returns the symbolic handle, nil unless the storage belongs to generated objects.
func (s Storage) Sym() *sym.Expr {
	return s.expr
}

// Shape returns the normalized shape of the stored value or symbol.
func (s Storage) Shape() (Shape, error) {
	switch {
	case s.value != nil:
		return tensorShape(s.value)
	case s.expr != nil:
		r, c := s.expr.Dims()
		return Shape{r, c}, nil
	}
	return Shape{}, errors.New("storage is not set")
}

// Dense returns the numeric value as a matrix of the normalized shape.
func (s Storage) Dense() (*mat.Dense, error) {
	if s.value == nil {
		return nil, errors.New("storage has no numeric value")
	}
	shape, err := tensorShape(s.value)
	if err != nil {
		return nil, err
	}
	data, err := float64Data(s.value, shape)
	if err != nil {
		return nil, err
	}
	return mat.NewDense(shape.Rows, shape.Cols, data), nil
}

func (s Storage) String() string {
	switch {
	case s.value != nil:
		return fmt.Sprintf("Storage(%v)", s.value.Shape())
	case s.expr != nil:
		return fmt.Sprintf("Storage(%v)", s.expr)
	}
	return "Storage(unset)"
}

// tensorShape normalizes 0-d values to (1, 1) and 1-d values to a column.
func tensorShape(t tensor.Tensor) (Shape, error) {
	shape := t.Shape()
	switch t.Dims() {
	case 0:
		return Shape{1, 1}, nil
	case 1:
		return Shape{shape[0], 1}, nil
	case 2:
		return Shape{shape[0], shape[1]}, nil
	}
	return Shape{}, errors.Errorf("value of rank %d has more than 2 dimensions", t.Dims())
}

func float64Data(t tensor.Tensor, shape Shape) ([]float64, error) {
	if t.Dtype() != tensor.Float64 {
		return nil, errors.Errorf("dtype %v is not float64", t.Dtype())
	}
	switch data := t.Data().(type) {
	case float64:
		return []float64{data}, nil
	case []float64:
		if len(data) != shape.Rows*shape.Cols {
			return nil, errors.Errorf("backing of %d elements for shape %v", len(data), shape)
		}
		return append([]float64(nil), data...), nil
	default:
		return nil, errors.Errorf("unexpected backing %T", data)
	}
}

func fromDense(m *mat.Dense, shape Shape) Storage {
	backing := make([]float64, 0, shape.Rows*shape.Cols)
	for i := 0; i < shape.Rows; i++ {
		for j := 0; j < shape.Cols; j++ {
			backing = append(backing, m.At(i, j))
		}
	}
	return Storage{value: tensor.New(tensor.WithShape(shape.Rows, shape.Cols), tensor.WithBacking(backing))}
}
