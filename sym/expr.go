// Package sym implements matrix-valued symbolic expressions over decision variables and
// parameters. An Expr is a dense rows x cols grid of scalar expression nodes. Nodes form a DAG
// that is shared between expressions, so building `a.Add(b)` never copies `a` or `b`.
//
// Expressions are immutable. Shape mismatches are programmer errors and panic with ErrShape, the
// same way gonum's mat package treats them.
package sym

import (
	"fmt"
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

var (
	// ErrShape is the panic value for operations on expressions with incompatible dimensions.
	ErrShape = errors.New("sym: dimension mismatch")
	// ErrIndexOutOfRange is the panic value for element access outside an expression.
	ErrIndexOutOfRange = errors.New("sym: index out of range")
	// ErrZeroLength is the panic value for concatenating nothing.
	ErrZeroLength = errors.New("sym: zero length in expression")
)

type opcode uint8

const (
	opConst opcode = iota
	opVariable
	opParameter
	opAdd
	opSub
	opMul
	opDiv
	opNeg
	opPow
	opSqrt
	opExp
	opLog
	opSin
	opCos
	opTanh
)

func (op opcode) String() string {
	switch op {
	case opConst:
		return "const"
	case opVariable:
		return "x"
	case opParameter:
		return "p"
	case opAdd:
		return "+"
	case opSub:
		return "-"
	case opMul:
		return "*"
	case opDiv:
		return "/"
	case opNeg:
		return "neg"
	case opPow:
		return "pow"
	case opSqrt:
		return "sqrt"
	case opExp:
		return "exp"
	case opLog:
		return "log"
	case opSin:
		return "sin"
	case opCos:
		return "cos"
	case opTanh:
		return "tanh"
	}
	return fmt.Sprintf("op(%d)", uint8(op))
}

// node is a scalar expression. `value` holds the constant of opConst and the exponent of opPow.
// `index` is the slot of an opVariable or opParameter leaf.
type node struct {
	op    opcode
	x, y  *node
	value float64
	index int
}

func constant(v float64) *node {
	return &node{op: opConst, value: v}
}

func (n *node) isConst(v float64) bool {
	return n.op == opConst && n.value == v
}

func binary(op opcode, x, y *node) *node {
	if x.op == opConst && y.op == opConst {
		return constant(apply2(op, x.value, y.value))
	}
	switch op {
	case opAdd:
		if x.isConst(0) {
			return y
		}
		if y.isConst(0) {
			return x
		}
	case opSub:
		if y.isConst(0) {
			return x
		}
		if x.isConst(0) {
			return unary(opNeg, y)
		}
	case opMul:
		if x.isConst(0) || y.isConst(0) {
			return constant(0)
		}
		if x.isConst(1) {
			return y
		}
		if y.isConst(1) {
			return x
		}
	case opDiv:
		if y.isConst(1) {
			return x
		}
	default:
	}
	return &node{op: op, x: x, y: y}
}

func unary(op opcode, x *node) *node {
	if x.op == opConst {
		return constant(apply1(op, x.value, 0))
	}
	if op == opNeg && x.op == opNeg {
		return x.x
	}
	return &node{op: op, x: x}
}

func power(x *node, p float64) *node {
	switch {
	case p == 1:
		return x
	case p == 0:
		return constant(1)
	case x.op == opConst:
		return constant(math.Pow(x.value, p))
	}
	return &node{op: opPow, x: x, value: p}
}

func apply2(op opcode, a, b float64) float64 {
	switch op {
	case opAdd:
		return a + b
	case opSub:
		return a - b
	case opMul:
		return a * b
	case opDiv:
		return a / b
	default:
		panic(errors.Errorf("sym: %v is not a binary operation", op))
	}
}

func apply1(op opcode, a, p float64) float64 {
	switch op {
	case opNeg:
		return -a
	case opPow:
		return math.Pow(a, p)
	case opSqrt:
		return math.Sqrt(a)
	case opExp:
		return math.Exp(a)
	case opLog:
		return math.Log(a)
	case opSin:
		return math.Sin(a)
	case opCos:
		return math.Cos(a)
	case opTanh:
		return math.Tanh(a)
	default:
		panic(errors.Errorf("sym: %v is not a unary operation", op))
	}
}

// Expr is a rows x cols matrix of scalar expressions, stored row-major.
type Expr struct {
	rows, cols int
	elems      []*node
}

func newExpr(rows, cols int) *Expr {
	if rows < 0 || cols < 0 {
		panic(ErrShape)
	}
	return &Expr{rows: rows, cols: cols, elems: make([]*node, rows*cols)}
}

func leaves(op opcode, rows, cols, offset int) *Expr {
	e := newExpr(rows, cols)
	for k := range e.elems {
		e.elems[k] = &node{op: op, index: offset + k}
	}
	return e
}

// Variables returns a rows x cols block of decision variables occupying the slots
// offset, offset+1, ... of the decision vector in row-major order.
func Variables(rows, cols, offset int) *Expr {
	return leaves(opVariable, rows, cols, offset)
}

// Parameters is like Variables for the parameter vector.
func Parameters(rows, cols, offset int) *Expr {
	return leaves(opParameter, rows, cols, offset)
}

// Const returns a constant expression holding a copy of m.
func Const(m mat.Matrix) *Expr {
	r, c := m.Dims()
	e := newExpr(r, c)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			e.elems[i*c+j] = constant(m.At(i, j))
		}
	}
	return e
}

// Scalar returns the 1x1 constant v.
func Scalar(v float64) *Expr {
	e := newExpr(1, 1)
	e.elems[0] = constant(v)
	return e
}

// ColVec returns the len(v) x 1 constant column.
func ColVec(v ...float64) *Expr {
	e := newExpr(len(v), 1)
	for k, x := range v {
		e.elems[k] = constant(x)
	}
	return e
}

// Zeros returns a rows x cols constant zero expression.
func Zeros(rows, cols int) *Expr {
	e := newExpr(rows, cols)
	zero := constant(0)
	for k := range e.elems {
		e.elems[k] = zero
	}
	return e
}

// Dims returns the number of rows and columns.
func (e *Expr) Dims() (r, c int) {
	return e.rows, e.cols
}

// Len returns the number of scalar elements.
func (e *Expr) Len() int {
	return len(e.elems)
}

// IsScalar reports whether e is 1x1.
func (e *Expr) IsScalar() bool {
	return e.rows == 1 && e.cols == 1
}

func (e *Expr) String() string {
	return fmt.Sprintf("sym.Expr(%dx%d)", e.rows, e.cols)
}

// IsVariable reports whether every element of e is a bare decision variable.
func (e *Expr) IsVariable() bool {
	return e.allLeaves(opVariable)
}

// IsParameter reports whether every element of e is a bare parameter.
func (e *Expr) IsParameter() bool {
	return e.allLeaves(opParameter)
}

func (e *Expr) allLeaves(op opcode) bool {
	for _, n := range e.elems {
		if n.op != op {
			return false
		}
	}
	return true
}

// Slots returns the decision-vector (or parameter-vector) slot of each element in row-major
// order. It panics unless e is made of variable or parameter leaves only.
func (e *Expr) Slots() []int {
	out := make([]int, len(e.elems))
	for k, n := range e.elems {
		if n.op != opVariable && n.op != opParameter {
			panic(errors.Errorf("sym: element %d of %v is not a symbol", k, e))
		}
		out[k] = n.index
	}
	return out
}

// At returns the 1x1 expression at row i, column j.
func (e *Expr) At(i, j int) *Expr {
	if i < 0 || i >= e.rows || j < 0 || j >= e.cols {
		panic(ErrIndexOutOfRange)
	}
	return &Expr{rows: 1, cols: 1, elems: []*node{e.elems[i*e.cols+j]}}
}

// Elem returns the k-th element in row-major order. For column vectors this is the k-th entry.
func (e *Expr) Elem(k int) *Expr {
	if k < 0 || k >= len(e.elems) {
		panic(ErrIndexOutOfRange)
	}
	return &Expr{rows: 1, cols: 1, elems: []*node{e.elems[k]}}
}

// Rows returns the rows [i0, i1) of e.
func (e *Expr) Rows(i0, i1 int) *Expr {
	if i0 < 0 || i1 > e.rows || i0 > i1 {
		panic(ErrIndexOutOfRange)
	}
	out := newExpr(i1-i0, e.cols)
	copy(out.elems, e.elems[i0*e.cols:i1*e.cols])
	return out
}

// T returns the transpose of e.
func (e *Expr) T() *Expr {
	out := newExpr(e.cols, e.rows)
	for i := 0; i < e.rows; i++ {
		for j := 0; j < e.cols; j++ {
			out.elems[j*e.rows+i] = e.elems[i*e.cols+j]
		}
	}
	return out
}

// elementwise applies f to matching elements of a and b, broadcasting a 1x1 operand.
func elementwise(a, b *Expr, f func(x, y *node) *node) *Expr {
	switch {
	case a.rows == b.rows && a.cols == b.cols:
		out := newExpr(a.rows, a.cols)
		for k := range out.elems {
			out.elems[k] = f(a.elems[k], b.elems[k])
		}
		return out
	case b.IsScalar():
		out := newExpr(a.rows, a.cols)
		for k := range out.elems {
			out.elems[k] = f(a.elems[k], b.elems[0])
		}
		return out
	case a.IsScalar():
		out := newExpr(b.rows, b.cols)
		for k := range out.elems {
			out.elems[k] = f(a.elems[0], b.elems[k])
		}
		return out
	}
	panic(ErrShape)
}

func (e *Expr) mapNodes(f func(x *node) *node) *Expr {
	out := newExpr(e.rows, e.cols)
	for k, n := range e.elems {
		out.elems[k] = f(n)
	}
	return out
}

// Add returns e + b element-wise.
func (e *Expr) Add(b *Expr) *Expr {
	return elementwise(e, b, func(x, y *node) *node { return binary(opAdd, x, y) })
}

// Sub returns e - b element-wise.
func (e *Expr) Sub(b *Expr) *Expr {
	return elementwise(e, b, func(x, y *node) *node { return binary(opSub, x, y) })
}

// MulElem returns the element-wise product of e and b.
func (e *Expr) MulElem(b *Expr) *Expr {
	return elementwise(e, b, func(x, y *node) *node { return binary(opMul, x, y) })
}

// DivElem returns the element-wise quotient e / b.
func (e *Expr) DivElem(b *Expr) *Expr {
	return elementwise(e, b, func(x, y *node) *node { return binary(opDiv, x, y) })
}

// AddConst returns e + v element-wise.
func (e *Expr) AddConst(v float64) *Expr {
	return e.Add(Scalar(v))
}

// Scale returns f * e.
func (e *Expr) Scale(f float64) *Expr {
	return e.MulElem(Scalar(f))
}

// Neg returns -e.
func (e *Expr) Neg() *Expr {
	return e.mapNodes(func(x *node) *node { return unary(opNeg, x) })
}

// Pow raises every element of e to the constant power p.
func (e *Expr) Pow(p float64) *Expr {
	return e.mapNodes(func(x *node) *node { return power(x, p) })
}

// Mul returns the matrix product e * b. A 1x1 operand is treated as a scalar factor.
func (e *Expr) Mul(b *Expr) *Expr {
	if e.IsScalar() || b.IsScalar() {
		return e.MulElem(b)
	}
	if e.cols != b.rows {
		panic(ErrShape)
	}
	out := newExpr(e.rows, b.cols)
	for i := 0; i < e.rows; i++ {
		for j := 0; j < b.cols; j++ {
			acc := constant(0)
			for k := 0; k < e.cols; k++ {
				acc = binary(opAdd, acc, binary(opMul, e.elems[i*e.cols+k], b.elems[k*b.cols+j]))
			}
			out.elems[i*b.cols+j] = acc
		}
	}
	return out
}

// Sqrt returns the element-wise square root of e.
func Sqrt(e *Expr) *Expr { return e.mapNodes(func(x *node) *node { return unary(opSqrt, x) }) }

// Exp returns the element-wise exponential of e.
func Exp(e *Expr) *Expr { return e.mapNodes(func(x *node) *node { return unary(opExp, x) }) }

// Log returns the element-wise natural logarithm of e.
func Log(e *Expr) *Expr { return e.mapNodes(func(x *node) *node { return unary(opLog, x) }) }

// Sin returns the element-wise sine of e.
func Sin(e *Expr) *Expr { return e.mapNodes(func(x *node) *node { return unary(opSin, x) }) }

// Cos returns the element-wise cosine of e.
func Cos(e *Expr) *Expr { return e.mapNodes(func(x *node) *node { return unary(opCos, x) }) }

// Tanh returns the element-wise hyperbolic tangent of e.
func Tanh(e *Expr) *Expr { return e.mapNodes(func(x *node) *node { return unary(opTanh, x) }) }

// Sum returns the 1x1 sum of all elements of e.
func Sum(e *Expr) *Expr {
	acc := constant(0)
	for _, n := range e.elems {
		acc = binary(opAdd, acc, n)
	}
	return &Expr{rows: 1, cols: 1, elems: []*node{acc}}
}

// Dot returns the 1x1 sum of the element-wise product of a and b, which must have equal shapes.
func Dot(a, b *Expr) *Expr {
	if a.rows != b.rows || a.cols != b.cols {
		panic(ErrShape)
	}
	return Sum(a.MulElem(b))
}

// SumSquares returns the 1x1 squared Frobenius norm of e.
func SumSquares(e *Expr) *Expr {
	return Dot(e, e)
}

// Vertcat stacks expressions with equal column counts on top of each other.
func Vertcat(es ...*Expr) *Expr {
	if len(es) == 0 {
		panic(ErrZeroLength)
	}
	cols, rows := es[0].cols, 0
	for _, e := range es {
		if e.cols != cols {
			panic(ErrShape)
		}
		rows += e.rows
	}
	out := &Expr{rows: rows, cols: cols, elems: make([]*node, 0, rows*cols)}
	for _, e := range es {
		out.elems = append(out.elems, e.elems...)
	}
	return out
}

// Horzcat places expressions with equal row counts side by side.
func Horzcat(es ...*Expr) *Expr {
	if len(es) == 0 {
		panic(ErrZeroLength)
	}
	transposed := make([]*Expr, len(es))
	for k, e := range es {
		transposed[k] = e.T()
	}
	return Vertcat(transposed...).T()
}
