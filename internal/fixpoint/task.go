package fixpoint

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// QualifArg is one parameter of a qualifier
type QualifArg struct {
	Name Name
	Sort Sort
}

// Qualifier is a predicate template the solver may instantiate when
// inferring k-variables
type Qualifier struct {
	Name string
	Args []QualifArg
	Body *Expr
}

func (q Qualifier) String() string {
	var sb strings.Builder
	sb.WriteString("(qualif ")
	sb.WriteString(q.Name)
	sb.WriteString(" (")
	for i, arg := range q.Args {
		if i > 0 {
			sb.WriteString(" ")
		}
		fmt.Fprintf(&sb, "(%s %s)", arg.Name, arg.Sort)
	}
	sb.WriteString(") (")
	q.Body.write(&sb)
	sb.WriteString("))")
	return sb.String()
}

func binQualifier(name string, op BinOp, rhs func(b *Expr) *Expr) Qualifier {
	a, b := VarExpr(0), VarExpr(1)
	return Qualifier{
		Name: name,
		Args: []QualifArg{{Name: 0, Sort: IntSort}, {Name: 1, Sort: IntSort}},
		Body: BinaryExpr(op, a, rhs(b)),
	}
}

func zeroQualifier(name string, op BinOp) Qualifier {
	return Qualifier{
		Name: name,
		Args: []QualifArg{{Name: 0, Sort: IntSort}},
		Body: BinaryExpr(op, VarExpr(0), IntExpr(0)),
	}
}

func same(b *Expr) *Expr { return b }

// DefaultQualifiers are emitted at the top of every task
var DefaultQualifiers = []Qualifier{
	zeroQualifier("EqZero", Eq),
	zeroQualifier("GtZero", Gt),
	zeroQualifier("GeZero", Ge),
	zeroQualifier("LtZero", Lt),
	zeroQualifier("LeZero", Le),
	binQualifier("Eq", Eq, same),
	binQualifier("Gt", Gt, same),
	binQualifier("Ge", Ge, same),
	binQualifier("Lt", Lt, same),
	binQualifier("Le", Le, same),
	binQualifier("Le1", Lt, func(b *Expr) *Expr { return BinaryExpr(Sub, b, IntExpr(1)) }),
}

// Const declares a global constant
type Const struct {
	Name string
	Sort Sort
}

// Uif declares an uninterpreted function
type Uif struct {
	Name   string
	Inputs []Sort
	Output Sort
}

// KVarDecl declares a k-variable and the sorts of its arguments
type KVarDecl struct {
	ID    KVid
	Sorts []Sort
}

func (k KVarDecl) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "(var %s (", k.ID)
	for i, s := range k.Sorts {
		if i > 0 {
			sb.WriteString(" ")
		}
		fmt.Fprintf(&sb, "(%s)", s)
	}
	sb.WriteString("))")
	return sb.String()
}

// Task is a complete, self-contained problem for the solver
type Task[T Tag] struct {
	Constants  []Const
	KVars      []KVarDecl
	Constraint *Constraint[T]
	Qualifiers []Qualifier
	Uifs       []Uif
}

// WriteTo renders the task in the solver's input format. Declarations come
// one per line, followed by the constraint block.
func (t *Task[T]) WriteTo(w io.Writer) (int64, error) {
	cw := &countingWriter{w: bufio.NewWriter(w)}
	for _, q := range DefaultQualifiers {
		cw.line(q.String())
	}
	for _, q := range t.Qualifiers {
		cw.line(q.String())
	}
	cw.line("(data Pair 2 = [| Pair { fst: @(0), snd: @(1) } ])")
	cw.line("(data Unit 0 = [| Unit { }])")
	for _, c := range t.Constants {
		cw.line(fmt.Sprintf("(constant %s %s)", c.Name, c.Sort))
	}
	for _, u := range t.Uifs {
		cw.line(fmt.Sprintf("(constant %s %s)", u.Name, FuncSort(u.Inputs, u.Output)))
	}
	for _, k := range t.KVars {
		cw.line(k.String())
	}
	cw.line("")
	cw.line("(constraint")
	constraint := t.Constraint
	if constraint == nil {
		constraint = Conj[T]()
	}
	var sb strings.Builder
	constraint.write(&sb, 1)
	cw.line(sb.String())
	cw.line(")")
	if cw.err == nil {
		cw.err = cw.w.Flush()
	}
	return cw.n, cw.err
}

func (t *Task[T]) String() string {
	var sb strings.Builder
	if _, err := t.WriteTo(&sb); err != nil {
		return fmt.Sprintf("<task: %v>", err)
	}
	return sb.String()
}

type countingWriter struct {
	w   *bufio.Writer
	n   int64
	err error
}

func (cw *countingWriter) line(s string) {
	if cw.err != nil {
		return
	}
	n, err := cw.w.WriteString(s + "\n")
	cw.n += int64(n)
	cw.err = err
}
