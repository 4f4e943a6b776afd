package sym

import "fmt"

// Relation is the kind of a normalized constraint.
type Relation uint8

const (
	// Equal constrains every element of the expression to zero.
	Equal Relation = iota
	// LessEqual constrains every element of the expression to be non-positive.
	LessEqual
)

func (r Relation) String() string {
	switch r {
	case Equal:
		return "== 0"
	case LessEqual:
		return "<= 0"
	}
	return fmt.Sprintf("Relation(%d)", uint8(r))
}

// Constraint is an element-wise constraint `Expr == 0` or `Expr <= 0`.
type Constraint struct {
	Expr     *Expr
	Relation Relation
}

func (c Constraint) String() string {
	return fmt.Sprintf("%v %v", c.Expr, c.Relation)
}

// Eq constrains a == b element-wise.
func Eq(a, b *Expr) Constraint {
	return Constraint{Expr: a.Sub(b), Relation: Equal}
}

// Le constrains a <= b element-wise.
func Le(a, b *Expr) Constraint {
	return Constraint{Expr: a.Sub(b), Relation: LessEqual}
}

// Ge constrains a >= b element-wise.
func Ge(a, b *Expr) Constraint {
	return Constraint{Expr: b.Sub(a), Relation: LessEqual}
}

// Bounded constrains lo <= e <= hi element-wise. Either bound may be nil.
func Bounded(lo, e, hi *Expr) []Constraint {
	var out []Constraint
	if lo != nil {
		out = append(out, Ge(e, lo))
	}
	if hi != nil {
		out = append(out, Le(e, hi))
	}
	return out
}
