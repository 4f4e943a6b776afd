package opti

import (
	"github.com/pkg/errors"

	"github.com/ami-iit/stepwise/sym"
)

// NLP is the transcription of an Opti handed to a method:
//
//	minimize f(x)  subject to  h(x) == 0, g(x) <= 0
//
// with the parameters fixed. Outputs are laid out as [f, h..., g...] in every vector the NLP reads
// or writes.
type NLP struct {
	fn      *sym.Function
	params  []float64
	start   []float64
	numEq   int
	numIneq int
}

func newNLP(objective *sym.Expr, constraints []sym.Constraint, start, params []float64) (*NLP, error) {
	var eq, ineq []*sym.Expr
	numEq, numIneq := 0, 0
	for _, c := range constraints {
		switch c.Relation {
		case sym.Equal:
			eq = append(eq, c.Expr)
			numEq += c.Expr.Len()
		case sym.LessEqual:
			ineq = append(ineq, c.Expr)
			numIneq += c.Expr.Len()
		default:
			return nil, errors.Errorf("opti: unknown constraint relation %v", c.Relation)
		}
	}
	outputs := make([]*sym.Expr, 0, 1+len(eq)+len(ineq))
	outputs = append(outputs, objective)
	outputs = append(outputs, eq...)
	outputs = append(outputs, ineq...)

	fn := sym.Compile(outputs...)
	if fn.NumVariables() > len(start) {
		return nil, errors.Errorf("opti: expressions use %d variables but only %d were created", fn.NumVariables(), len(start))
	}
	if fn.NumParameters() > len(params) {
		return nil, errors.Errorf("opti: expressions use %d parameters but only %d were created", fn.NumParameters(), len(params))
	}
	return &NLP{
		fn:      fn,
		params:  params,
		start:   append([]float64(nil), start...),
		numEq:   numEq,
		numIneq: numIneq,
	}, nil
}

// Dim returns the number of decision variables.
func (p *NLP) Dim() int {
	return len(p.start)
}

// NumEqualities returns the number of scalar equality constraints.
func (p *NLP) NumEqualities() int {
	return p.numEq
}

// NumInequalities returns the number of scalar inequality constraints.
func (p *NLP) NumInequalities() int {
	return p.numIneq
}

// NumOutputs returns 1 + NumEqualities() + NumInequalities().
func (p *NLP) NumOutputs() int {
	return 1 + p.numEq + p.numIneq
}

// Start returns a copy of the initial point.
func (p *NLP) Start() []float64 {
	return append([]float64(nil), p.start...)
}

// Evaluate writes [f, h..., g...] at x into out.
func (p *NLP) Evaluate(x, out []float64) error {
	values, err := p.fn.Eval(x, p.params)
	if err != nil {
		return err
	}
	copy(out, values)
	return nil
}

// Gradient writes into grad the gradient of the weighted sum of the outputs at x, and returns the
// output values.
func (p *NLP) Gradient(x, weights, grad []float64) ([]float64, error) {
	return p.fn.EvalGradient(x, p.params, weights, grad)
}

// Violation returns the largest equality residual or positive inequality value in out.
func (p *NLP) Violation(out []float64) float64 {
	v := 0.0
	for _, h := range out[1 : 1+p.numEq] {
		if h < 0 {
			h = -h
		}
		v = max(v, h)
	}
	for _, g := range out[1+p.numEq:] {
		v = max(v, g)
	}
	return v
}
