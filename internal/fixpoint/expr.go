// Package fixpoint renders verification tasks in the fixpoint horn format,
// runs the external fixpoint solver on them and decodes its verdict.
package fixpoint

import (
	"fmt"
	"strings"
)

// Name is a solver-level variable, rendered as a{n}
type Name uint32

func (n Name) String() string {
	return fmt.Sprintf("a%d", uint32(n))
}

// KVid identifies a k-variable, rendered as $k{n}
type KVid uint32

func (k KVid) String() string {
	return fmt.Sprintf("$k%d", uint32(k))
}

// SortKind classifies solver sorts
type SortKind uint8

const (
	SortInt SortKind = iota
	SortBool
	SortUnit
	SortPair
	SortFunc
)

// Sort is a solver sort. Tuples are encoded as nested pairs.
type Sort struct {
	Kind  SortKind
	Elems []Sort // pair components, or func inputs followed by the output
}

var (
	IntSort  = Sort{Kind: SortInt}
	BoolSort = Sort{Kind: SortBool}
	UnitSort = Sort{Kind: SortUnit}
)

// PairSort builds the sort of a pair
func PairSort(fst, snd Sort) Sort {
	return Sort{Kind: SortPair, Elems: []Sort{fst, snd}}
}

// FuncSort builds the sort of an uninterpreted function
func FuncSort(inputs []Sort, output Sort) Sort {
	elems := make([]Sort, 0, len(inputs)+1)
	elems = append(elems, inputs...)
	return Sort{Kind: SortFunc, Elems: append(elems, output)}
}

func (s Sort) String() string {
	switch s.Kind {
	case SortInt:
		return "int"
	case SortBool:
		return "bool"
	case SortUnit:
		return "Unit"
	case SortPair:
		return fmt.Sprintf("(Pair %s %s)", s.Elems[0], s.Elems[1])
	case SortFunc:
		parts := make([]string, len(s.Elems))
		for i, e := range s.Elems {
			parts[i] = e.String()
		}
		return fmt.Sprintf("func(0, [%s])", strings.Join(parts, "; "))
	}
	return "int"
}

// ExprKind tags the variant held by an Expr
type ExprKind uint8

const (
	ExprVar ExprKind = iota
	ExprGlobal
	ExprConstant
	ExprBinaryOp
	ExprUnaryOp
	ExprApp
	ExprIfThenElse
	ExprPair
	ExprProj
	ExprUnit
)

// BinOp is a solver binary operator
type BinOp uint8

const (
	Iff BinOp = iota
	Imp
	Or
	And
	Eq
	Ne
	Gt
	Ge
	Lt
	Le
	Add
	Sub
	Mul
	Div
	Mod
)

var binOpText = [...]string{"<=>", "=>", "||", "&&", "=", "!=", ">", ">=", "<", "<=", "+", "-", "*", "/", "mod"}

func (op BinOp) String() string { return binOpText[op] }

// UnOp is a solver unary operator
type UnOp uint8

const (
	Not UnOp = iota
	Neg
)

func (op UnOp) String() string {
	if op == Not {
		return "~"
	}
	return "-"
}

// Proj selects a component of a pair
type Proj uint8

const (
	Fst Proj = iota
	Snd
)

func (p Proj) String() string {
	if p == Fst {
		return "fst"
	}
	return "snd"
}

// Constant is a literal. Integers keep sign and magnitude apart.
type Constant struct {
	IsBool   bool
	Bool     bool
	Negative bool
	Mag      uint64
}

func Int(v int64) Constant {
	if v < 0 {
		return Constant{Negative: true, Mag: uint64(-(v + 1)) + 1}
	}
	return Constant{Mag: uint64(v)}
}

func Bool(b bool) Constant {
	return Constant{IsBool: true, Bool: b}
}

func (c Constant) String() string {
	if c.IsBool {
		if c.Bool {
			return "true"
		}
		return "false"
	}
	if c.Negative && c.Mag != 0 {
		return fmt.Sprintf("-%d", c.Mag)
	}
	return fmt.Sprintf("%d", c.Mag)
}

// Expr is a solver expression tree. Unlike refinement expressions these are
// built once per task and never shared, so they are plain values.
type Expr struct {
	Kind     ExprKind
	Var      Name
	Global   string // constant or function symbol
	Constant Constant
	BinOp    BinOp
	UnOp     UnOp
	Proj     Proj
	Args     []*Expr
}

func VarExpr(n Name) *Expr             { return &Expr{Kind: ExprVar, Var: n} }
func GlobalExpr(name string) *Expr     { return &Expr{Kind: ExprGlobal, Global: name} }
func ConstExpr(c Constant) *Expr       { return &Expr{Kind: ExprConstant, Constant: c} }
func IntExpr(v int64) *Expr            { return ConstExpr(Int(v)) }
func BoolExpr(b bool) *Expr            { return ConstExpr(Bool(b)) }
func UnitExpr() *Expr                  { return &Expr{Kind: ExprUnit} }
func UnaryExpr(op UnOp, e *Expr) *Expr { return &Expr{Kind: ExprUnaryOp, UnOp: op, Args: []*Expr{e}} }

func BinaryExpr(op BinOp, e1, e2 *Expr) *Expr {
	return &Expr{Kind: ExprBinaryOp, BinOp: op, Args: []*Expr{e1, e2}}
}

// AppExpr applies an uninterpreted function
func AppExpr(fn string, args ...*Expr) *Expr {
	return &Expr{Kind: ExprApp, Global: fn, Args: args}
}

func IfThenElseExpr(p, then, els *Expr) *Expr {
	return &Expr{Kind: ExprIfThenElse, Args: []*Expr{p, then, els}}
}

func PairExpr(fst, snd *Expr) *Expr {
	return &Expr{Kind: ExprPair, Args: []*Expr{fst, snd}}
}

func ProjExpr(e *Expr, p Proj) *Expr {
	return &Expr{Kind: ExprProj, Proj: p, Args: []*Expr{e}}
}

// TupleExpr encodes an n-ary tuple as right-nested pairs
func TupleExpr(es ...*Expr) *Expr {
	switch len(es) {
	case 0:
		return UnitExpr()
	case 1:
		return es[0]
	}
	return PairExpr(es[0], TupleExpr(es[1:]...))
}

// TupleProjExpr selects component index of an arity-element tuple built by
// TupleExpr
func TupleProjExpr(e *Expr, arity, index int) *Expr {
	for i := 0; i < index; i++ {
		e = ProjExpr(e, Snd)
		arity--
	}
	if arity > 1 {
		e = ProjExpr(e, Fst)
	}
	return e
}

// TupleSort encodes the sort of an n-ary tuple as nested pairs
func TupleSort(sorts ...Sort) Sort {
	switch len(sorts) {
	case 0:
		return UnitSort
	case 1:
		return sorts[0]
	}
	return PairSort(sorts[0], TupleSort(sorts[1:]...))
}

func (e *Expr) String() string {
	var sb strings.Builder
	e.write(&sb)
	return sb.String()
}

func (e *Expr) write(sb *strings.Builder) {
	switch e.Kind {
	case ExprVar:
		sb.WriteString(e.Var.String())
	case ExprGlobal:
		sb.WriteString(e.Global)
	case ExprConstant:
		sb.WriteString(e.Constant.String())
	case ExprUnit:
		sb.WriteString("Unit")
	case ExprBinaryOp:
		sb.WriteString("(")
		e.Args[0].write(sb)
		sb.WriteString(" ")
		sb.WriteString(e.BinOp.String())
		sb.WriteString(" ")
		e.Args[1].write(sb)
		sb.WriteString(")")
	case ExprUnaryOp:
		sb.WriteString("(")
		sb.WriteString(e.UnOp.String())
		sb.WriteString(" ")
		e.Args[0].write(sb)
		sb.WriteString(")")
	case ExprApp:
		sb.WriteString("(")
		sb.WriteString(e.Global)
		for _, arg := range e.Args {
			sb.WriteString(" ")
			arg.write(sb)
		}
		sb.WriteString(")")
	case ExprIfThenElse:
		sb.WriteString("(if ")
		e.Args[0].write(sb)
		sb.WriteString(" then ")
		e.Args[1].write(sb)
		sb.WriteString(" else ")
		e.Args[2].write(sb)
		sb.WriteString(")")
	case ExprPair:
		sb.WriteString("(Pair ")
		e.Args[0].write(sb)
		sb.WriteString(" ")
		e.Args[1].write(sb)
		sb.WriteString(")")
	case ExprProj:
		sb.WriteString("(")
		sb.WriteString(e.Proj.String())
		sb.WriteString(" ")
		e.Args[0].write(sb)
		sb.WriteString(")")
	}
}
