package fixpoint

import (
	"fmt"
	"strings"
)

// Tag identifies the source obligation a constraint leaf stands for. Tags
// must render without double quotes or newlines.
type Tag interface {
	fmt.Stringer
}

// PredKind tags the variant held by a Pred
type PredKind uint8

const (
	PredExpr PredKind = iota
	PredKVar
	PredAnd
)

// Pred is a solver predicate: an expression, a k-variable application or a
// conjunction of predicates.
type Pred struct {
	Kind  PredKind
	Expr  *Expr
	KVar  KVid
	Args  []Name
	Preds []*Pred
}

func ExprPred(e *Expr) *Pred {
	return &Pred{Kind: PredExpr, Expr: e}
}

func KVarPred(k KVid, args ...Name) *Pred {
	return &Pred{Kind: PredKVar, KVar: k, Args: args}
}

// AndPred conjoins preds. A single predicate is returned unchanged and the
// empty conjunction is true.
func AndPred(preds ...*Pred) *Pred {
	switch len(preds) {
	case 0:
		return ExprPred(BoolExpr(true))
	case 1:
		return preds[0]
	}
	return &Pred{Kind: PredAnd, Preds: preds}
}

// IsTrivial reports whether p is the literal true
func (p *Pred) IsTrivial() bool {
	return p.Kind == PredExpr && p.Expr.Kind == ExprConstant && p.Expr.Constant.IsBool && p.Expr.Constant.Bool
}

func (p *Pred) String() string {
	var sb strings.Builder
	p.write(&sb)
	return sb.String()
}

func (p *Pred) write(sb *strings.Builder) {
	switch p.Kind {
	case PredExpr:
		sb.WriteString("(")
		p.Expr.write(sb)
		sb.WriteString(")")
	case PredKVar:
		sb.WriteString("(")
		sb.WriteString(p.KVar.String())
		for _, n := range p.Args {
			sb.WriteString(" ")
			sb.WriteString(n.String())
		}
		sb.WriteString(")")
	case PredAnd:
		sb.WriteString("(and")
		for _, q := range p.Preds {
			sb.WriteString(" ")
			q.write(sb)
		}
		sb.WriteString(")")
	}
}

// ConstraintKind tags the variant held by a Constraint
type ConstraintKind uint8

const (
	ConstraintPred ConstraintKind = iota
	ConstraintConj
	ConstraintForAll
	ConstraintGuard
)

// Constraint is a horn constraint tree. Leaves are predicates to prove,
// optionally tagged; ForAll binds a name under an assumption and Guard
// assumes a predicate without binding anything.
type Constraint[T Tag] struct {
	Kind     ConstraintKind
	Pred     *Pred
	Tag      T
	Tagged   bool
	Name     Name
	Sort     Sort
	Children []*Constraint[T]
}

// PredConstraint is an untagged obligation
func PredConstraint[T Tag](p *Pred) *Constraint[T] {
	return &Constraint[T]{Kind: ConstraintPred, Pred: p}
}

// TaggedConstraint is an obligation whose failure is reported with tag
func TaggedConstraint[T Tag](p *Pred, tag T) *Constraint[T] {
	return &Constraint[T]{Kind: ConstraintPred, Pred: p, Tag: tag, Tagged: true}
}

// Conj groups constraints that must all hold
func Conj[T Tag](cs ...*Constraint[T]) *Constraint[T] {
	return &Constraint[T]{Kind: ConstraintConj, Children: cs}
}

// ForAll binds name of sort under the assumption p in body
func ForAll[T Tag](name Name, sort Sort, p *Pred, body *Constraint[T]) *Constraint[T] {
	return &Constraint[T]{Kind: ConstraintForAll, Name: name, Sort: sort, Pred: p, Children: []*Constraint[T]{body}}
}

// Guard assumes p in body
func Guard[T Tag](p *Pred, body *Constraint[T]) *Constraint[T] {
	return &Constraint[T]{Kind: ConstraintGuard, Pred: p, Children: []*Constraint[T]{body}}
}

// IsTrivial reports whether the constraint can only hold: untagged true
// leaves and conjunctions or binders over nothing but those.
func (c *Constraint[T]) IsTrivial() bool {
	if c.Kind == ConstraintPred {
		return c.Pred.IsTrivial()
	}
	for _, child := range c.Children {
		if !child.IsTrivial() {
			return false
		}
	}
	return true
}

// Tags returns the tags of every leaf in render order
func (c *Constraint[T]) Tags() []T {
	var out []T
	var walk func(*Constraint[T])
	walk = func(c *Constraint[T]) {
		if c.Kind == ConstraintPred && c.Tagged {
			out = append(out, c.Tag)
		}
		for _, child := range c.Children {
			walk(child)
		}
	}
	walk(c)
	return out
}

func (c *Constraint[T]) String() string {
	var sb strings.Builder
	c.write(&sb, 0)
	return sb.String()
}

func indent(sb *strings.Builder, depth int) {
	sb.WriteString(strings.Repeat("  ", depth))
}

func (c *Constraint[T]) write(sb *strings.Builder, depth int) {
	if c.Kind == ConstraintConj && len(c.Children) == 1 {
		c.Children[0].write(sb, depth)
		return
	}
	indent(sb, depth)
	switch c.Kind {
	case ConstraintPred:
		if c.Tagged {
			sb.WriteString("(tag ")
			c.Pred.write(sb)
			fmt.Fprintf(sb, " %q)", c.Tag.String())
			return
		}
		sb.WriteString("(")
		c.Pred.write(sb)
		sb.WriteString(")")
	case ConstraintConj:
		if len(c.Children) == 0 {
			sb.WriteString("((true))")
			return
		}
		sb.WriteString("(and")
		for _, child := range c.Children {
			sb.WriteString("\n")
			child.write(sb, depth+1)
		}
		sb.WriteString("\n")
		indent(sb, depth)
		sb.WriteString(")")
	case ConstraintForAll:
		fmt.Fprintf(sb, "(forall ((%s %s) ", c.Name, c.Sort)
		c.Pred.write(sb)
		sb.WriteString(")\n")
		c.Children[0].write(sb, depth+1)
		sb.WriteString("\n")
		indent(sb, depth)
		sb.WriteString(")")
	case ConstraintGuard:
		sb.WriteString("(forall ((_ Unit) ")
		c.Pred.write(sb)
		sb.WriteString(")\n")
		c.Children[0].write(sb, depth+1)
		sb.WriteString("\n")
		indent(sb, depth)
		sb.WriteString(")")
	}
}
