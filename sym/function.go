package sym

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// Function is a compiled set of output expressions. It evaluates every output element in a
// single forward sweep over the shared node DAG and computes weighted gradients with a single
// reverse sweep.
//
// A Function is not safe for concurrent use: evaluation reuses an internal buffer.
type Function struct {
	order   []*node
	xs, ys  []int // slot of each node's operands, -1 when absent
	outputs []int // slot of each flattened output element
	shapes  [][2]int

	numVariables  int
	numParameters int

	values  []float64
	adjoint []float64
}

// Compile prepares the given expressions for evaluation.
func Compile(outputs ...*Expr) *Function {
	f := &Function{}
	slot := make(map[*node]int)

	type frame struct {
		n        *node
		expanded bool
	}
	var stack []frame
	push := func(n *node) {
		if n == nil {
			return
		}
		if _, seen := slot[n]; !seen {
			stack = append(stack, frame{n: n})
		}
	}

	for _, e := range outputs {
		f.shapes = append(f.shapes, [2]int{e.rows, e.cols})
		for _, root := range e.elems {
			push(root)
			// Iterative post-order walk; cost expressions accumulated term by term are deep chains.
			for len(stack) > 0 {
				top := &stack[len(stack)-1]
				if _, seen := slot[top.n]; seen {
					stack = stack[:len(stack)-1]
					continue
				}
				if !top.expanded {
					top.expanded = true
					n := top.n
					push(n.y)
					push(n.x)
					continue
				}
				n := top.n
				stack = stack[:len(stack)-1]
				slot[n] = len(f.order)
				f.order = append(f.order, n)
				switch n.op {
				case opVariable:
					if n.index+1 > f.numVariables {
						f.numVariables = n.index + 1
					}
				case opParameter:
					if n.index+1 > f.numParameters {
						f.numParameters = n.index + 1
					}
				default:
				}
			}
			f.outputs = append(f.outputs, slot[root])
		}
	}

	f.xs = make([]int, len(f.order))
	f.ys = make([]int, len(f.order))
	for i, n := range f.order {
		f.xs[i], f.ys[i] = -1, -1
		if n.x != nil {
			f.xs[i] = slot[n.x]
		}
		if n.y != nil {
			f.ys[i] = slot[n.y]
		}
	}
	f.values = make([]float64, len(f.order))
	f.adjoint = make([]float64, len(f.order))
	return f
}

// NumOutputs returns the number of flattened output elements.
func (f *Function) NumOutputs() int {
	return len(f.outputs)
}

// NumVariables returns the smallest decision vector length the function can be evaluated with.
func (f *Function) NumVariables() int {
	return f.numVariables
}

// NumParameters returns the smallest parameter vector length the function can be evaluated with.
func (f *Function) NumParameters() int {
	return f.numParameters
}

func (f *Function) forward(x, p []float64) error {
	if len(x) < f.numVariables {
		return errors.Errorf("sym: function needs %d variables, got %d", f.numVariables, len(x))
	}
	if len(p) < f.numParameters {
		return errors.Errorf("sym: function needs %d parameters, got %d", f.numParameters, len(p))
	}
	v := f.values
	for i, n := range f.order {
		switch n.op {
		case opConst:
			v[i] = n.value
		case opVariable:
			v[i] = x[n.index]
		case opParameter:
			v[i] = p[n.index]
		case opAdd, opSub, opMul, opDiv:
			v[i] = apply2(n.op, v[f.xs[i]], v[f.ys[i]])
		default:
			v[i] = apply1(n.op, v[f.xs[i]], n.value)
		}
	}
	return nil
}

// Eval returns the value of every output element, outputs concatenated in row-major order.
func (f *Function) Eval(x, p []float64) ([]float64, error) {
	if err := f.forward(x, p); err != nil {
		return nil, err
	}
	out := make([]float64, len(f.outputs))
	for k, s := range f.outputs {
		out[k] = f.values[s]
	}
	return out, nil
}

// EvalMatrices returns one matrix per compiled output expression.
func (f *Function) EvalMatrices(x, p []float64) ([]*mat.Dense, error) {
	flat, err := f.Eval(x, p)
	if err != nil {
		return nil, err
	}
	out := make([]*mat.Dense, len(f.shapes))
	offset := 0
	for k, shape := range f.shapes {
		size := shape[0] * shape[1]
		if size == 0 {
			out[k] = &mat.Dense{}
			continue
		}
		out[k] = mat.NewDense(shape[0], shape[1], append([]float64(nil), flat[offset:offset+size]...))
		offset += size
	}
	return out, nil
}

// EvalGradient evaluates the outputs at x and writes into grad the gradient of
// sum_k weights[k] * output_k with respect to the decision variables. grad must have the length
// of x. The output values are returned.
func (f *Function) EvalGradient(x, p, weights, grad []float64) ([]float64, error) {
	if len(weights) != len(f.outputs) {
		return nil, errors.Errorf("sym: %d weights for %d outputs", len(weights), len(f.outputs))
	}
	if len(grad) != len(x) {
		return nil, errors.Errorf("sym: gradient length %d does not match %d variables", len(grad), len(x))
	}
	out, err := f.Eval(x, p)
	if err != nil {
		return nil, err
	}

	for i := range grad {
		grad[i] = 0
	}
	adj := f.adjoint
	for i := range adj {
		adj[i] = 0
	}
	for k, s := range f.outputs {
		adj[s] += weights[k]
	}

	v := f.values
	for i := len(f.order) - 1; i >= 0; i-- {
		a := adj[i]
		if a == 0 {
			continue
		}
		n := f.order[i]
		xi, yi := f.xs[i], f.ys[i]
		switch n.op {
		case opConst, opParameter:
		case opVariable:
			grad[n.index] += a
		case opAdd:
			adj[xi] += a
			adj[yi] += a
		case opSub:
			adj[xi] += a
			adj[yi] -= a
		case opMul:
			adj[xi] += a * v[yi]
			adj[yi] += a * v[xi]
		case opDiv:
			adj[xi] += a / v[yi]
			adj[yi] -= a * v[xi] / (v[yi] * v[yi])
		case opNeg:
			adj[xi] -= a
		case opPow:
			adj[xi] += a * n.value * math.Pow(v[xi], n.value-1)
		case opSqrt:
			adj[xi] += a * 0.5 / v[i]
		case opExp:
			adj[xi] += a * v[i]
		case opLog:
			adj[xi] += a / v[xi]
		case opSin:
			adj[xi] += a * math.Cos(v[xi])
		case opCos:
			adj[xi] -= a * math.Sin(v[xi])
		case opTanh:
			adj[xi] += a * (1 - v[i]*v[i])
		}
	}
	return out, nil
}

// Eval evaluates a single expression.
func Eval(e *Expr, x, p []float64) (*mat.Dense, error) {
	out, err := Compile(e).EvalMatrices(x, p)
	if err != nil {
		return nil, err
	}
	return out[0], nil
}
