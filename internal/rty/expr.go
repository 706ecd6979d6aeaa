package rty

import (
	"github.com/lhaig/refine/internal/intern"
)

// ExprKind tags the variant held by an Expr
type ExprKind uint8

const (
	ExprFreeVar ExprKind = iota
	ExprBoundVar
	ExprEVar
	ExprLocal
	ExprConstRef
	ExprConstant
	ExprTuple
	ExprTupleProj
	ExprPathProj
	ExprUnaryOp
	ExprBinaryOp
	ExprApp
	ExprIfThenElse
)

// BinOp is a binary refinement operator
type BinOp uint8

const (
	OpIff BinOp = iota
	OpImp
	OpOr
	OpAnd
	OpEq
	OpNe
	OpGt
	OpGe
	OpLt
	OpLe
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpMod
)

var binOpText = [...]string{
	OpIff: "<=>",
	OpImp: "=>",
	OpOr:  "||",
	OpAnd: "&&",
	OpEq:  "=",
	OpNe:  "!=",
	OpGt:  ">",
	OpGe:  ">=",
	OpLt:  "<",
	OpLe:  "<=",
	OpAdd: "+",
	OpSub: "-",
	OpMul: "*",
	OpDiv: "/",
	OpMod: "mod",
}

func (op BinOp) String() string {
	if int(op) < len(binOpText) {
		return binOpText[op]
	}
	return "?"
}

// UnOp is a unary refinement operator
type UnOp uint8

const (
	OpNot UnOp = iota
	OpNeg
)

func (op UnOp) String() string {
	if op == OpNot {
		return "~"
	}
	return "-"
}

// Expr is an interned refinement expression. Use the Arena constructors to
// build one and the typed accessors to take it apart.
type Expr struct {
	id   intern.ID
	kind ExprKind

	name     Name
	bvar     BoundVar
	evar     EVar
	local    Local
	sym      string
	constant Constant
	binOp    BinOp
	unOp     UnOp
	proj     uint32
	args     []*Expr
}

// ID returns the interned identity
func (e *Expr) ID() intern.ID { return e.id }

// Kind returns the variant tag
func (e *Expr) Kind() ExprKind { return e.kind }

// Children returns the direct sub-expressions in order
func (e *Expr) Children() []*Expr { return e.args }

// FreeVar returns the name of a free variable
func (e *Expr) FreeVar() (Name, bool) {
	return e.name, e.kind == ExprFreeVar
}

// BoundVar returns the de Bruijn index of a bound variable
func (e *Expr) BoundVar() (BoundVar, bool) {
	return e.bvar, e.kind == ExprBoundVar
}

// EVar returns the existential variable e stands for
func (e *Expr) EVar() (EVar, bool) {
	return e.evar, e.kind == ExprEVar
}

// Local returns the program local e refers to
func (e *Expr) Local() (Local, bool) {
	return e.local, e.kind == ExprLocal
}

// ConstRef returns the name of a global constant
func (e *Expr) ConstRef() (string, bool) {
	return e.sym, e.kind == ExprConstRef
}

// Constant returns the literal value of a constant
func (e *Expr) Constant() (Constant, bool) {
	return e.constant, e.kind == ExprConstant
}

// Tuple returns the fields of a tuple expression
func (e *Expr) Tuple() ([]*Expr, bool) {
	if e.kind != ExprTuple {
		return nil, false
	}
	return e.args, true
}

// TupleProj returns the projected tuple and the field index
func (e *Expr) TupleProj() (*Expr, uint32, bool) {
	if e.kind != ExprTupleProj {
		return nil, 0, false
	}
	return e.args[0], e.proj, true
}

// PathProj returns the projected place and field
func (e *Expr) PathProj() (*Expr, Field, bool) {
	if e.kind != ExprPathProj {
		return nil, 0, false
	}
	return e.args[0], Field(e.proj), true
}

// UnaryOp returns the operator and operand
func (e *Expr) UnaryOp() (UnOp, *Expr, bool) {
	if e.kind != ExprUnaryOp {
		return 0, nil, false
	}
	return e.unOp, e.args[0], true
}

// BinaryOp returns the operator and both operands
func (e *Expr) BinaryOp() (BinOp, *Expr, *Expr, bool) {
	if e.kind != ExprBinaryOp {
		return 0, nil, nil, false
	}
	return e.binOp, e.args[0], e.args[1], true
}

// App returns the applied function name and its arguments
func (e *Expr) App() (string, []*Expr, bool) {
	if e.kind != ExprApp {
		return "", nil, false
	}
	return e.sym, e.args, true
}

// IfThenElse returns the condition and both branches
func (e *Expr) IfThenElse() (p, then, els *Expr, ok bool) {
	if e.kind != ExprIfThenElse {
		return nil, nil, nil, false
	}
	return e.args[0], e.args[1], e.args[2], true
}

// IsTrue reports whether e is the literal true
func (e *Expr) IsTrue() bool {
	return e.kind == ExprConstant && e.constant.Kind == ConstBool && e.constant.Bool
}

// IsFalse reports whether e is the literal false
func (e *Expr) IsFalse() bool {
	return e.kind == ExprConstant && e.constant.Kind == ConstBool && !e.constant.Bool
}

// IsAtom reports whether e prints without parentheses
func (e *Expr) IsAtom() bool {
	switch e.kind {
	case ExprBinaryOp, ExprUnaryOp, ExprIfThenElse:
		return false
	case ExprConstant:
		return e.constant.Kind == ConstBool || e.constant.Sign == Positive || e.constant.Mag == 0
	default:
		return true
	}
}

// ToVar returns the variable e denotes, if it is a free or bound variable
func (e *Expr) ToVar() (Var, bool) {
	switch e.kind {
	case ExprFreeVar:
		return Var{Kind: VarFree, Name: e.name}, true
	case ExprBoundVar:
		return Var{Kind: VarBound, Bound: e.bvar}, true
	}
	return Var{}, false
}

// ToName returns the free variable e denotes
func (e *Expr) ToName() (Name, bool) {
	return e.FreeVar()
}

// ToLoc returns the storage location e denotes. Only locals, free variables
// and bound variables are locations.
func (e *Expr) ToLoc() (Loc, bool) {
	switch e.kind {
	case ExprLocal:
		return LocalLoc(e.local), true
	case ExprFreeVar:
		return FreeLoc(e.name), true
	case ExprBoundVar:
		return BoundLoc(e.bvar), true
	}
	return Loc{}, false
}

// ToPath returns the path e denotes: a location followed by zero or more
// field projections. Any other shape reports false.
func (e *Expr) ToPath() (Path, bool) {
	var proj []Field
	cur := e
	for cur.kind == ExprPathProj {
		proj = append(proj, Field(cur.proj))
		cur = cur.args[0]
	}
	loc, ok := cur.ToLoc()
	if !ok {
		return Path{}, false
	}
	for i, j := 0, len(proj)-1; i < j; i, j = i+1, j-1 {
		proj[i], proj[j] = proj[j], proj[i]
	}
	return Path{Loc: loc, proj: proj}, true
}

// VarKind distinguishes free and bound variables
type VarKind uint8

const (
	VarFree VarKind = iota
	VarBound
)

// Var is a refinement variable, free or bound
type Var struct {
	Kind  VarKind
	Name  Name
	Bound BoundVar
}

// ToExpr builds the expression that references v
func (v Var) ToExpr(a *Arena) *Expr {
	if v.Kind == VarFree {
		return a.FVar(v.Name)
	}
	return a.BVar(v.Bound)
}

func (v Var) String() string {
	if v.Kind == VarFree {
		return v.Name.String()
	}
	return v.Bound.String()
}

func (a *Arena) mkExpr(key *intern.KeyBuilder, proto Expr) *Expr {
	return a.exprs.Intern(key.String(), func(id intern.ID) *Expr {
		e := proto
		e.id = id
		return &e
	})
}

// FVar references a free variable
func (a *Arena) FVar(n Name) *Expr {
	return a.mkExpr(intern.NewKey(byte(ExprFreeVar)).Uint(uint64(n)), Expr{kind: ExprFreeVar, name: n})
}

// BVar references a bound variable
func (a *Arena) BVar(bv BoundVar) *Expr {
	key := intern.NewKey(byte(ExprBoundVar)).Uint(uint64(bv.Debruijn)).Uint(uint64(bv.Index))
	return a.mkExpr(key, Expr{kind: ExprBoundVar, bvar: bv})
}

// NuVar references the innermost binder's first slot
func (a *Arena) NuVar() *Expr {
	return a.BVar(Nu)
}

func (a *Arena) EVarExpr(ev EVar) *Expr {
	key := intern.NewKey(byte(ExprEVar)).Uint(uint64(ev.Ctxt)).Uint(uint64(ev.ID))
	return a.mkExpr(key, Expr{kind: ExprEVar, evar: ev})
}

func (a *Arena) LocalVar(l Local) *Expr {
	return a.mkExpr(intern.NewKey(byte(ExprLocal)).Uint(uint64(l)), Expr{kind: ExprLocal, local: l})
}

// ConstRef references a declared global constant by name
func (a *Arena) ConstRef(name string) *Expr {
	return a.mkExpr(intern.NewKey(byte(ExprConstRef)).Str(name), Expr{kind: ExprConstRef, sym: name})
}

func (a *Arena) Const(c Constant) *Expr {
	key := intern.NewKey(byte(ExprConstant)).Uint(uint64(c.Kind)).Uint(uint64(c.Sign)).Uint(c.Mag).Bool(c.Bool)
	return a.mkExpr(key, Expr{kind: ExprConstant, constant: c})
}

func (a *Arena) Int(v int64) *Expr   { return a.Const(IntConst(v)) }
func (a *Arena) Uint(v uint64) *Expr { return a.Const(UintConst(v)) }

func (a *Arena) Bool(b bool) *Expr {
	if b {
		return a.tt
	}
	return a.ff
}

func (a *Arena) True() *Expr  { return a.tt }
func (a *Arena) False() *Expr { return a.ff }
func (a *Arena) Zero() *Expr  { return a.zero }
func (a *Arena) One() *Expr   { return a.one }

// UnitExpr is the empty tuple
func (a *Arena) UnitExpr() *Expr { return a.unit }

func (a *Arena) Tuple(es ...*Expr) *Expr {
	key := intern.NewKey(byte(ExprTuple)).IDs(exprIDs(es)...)
	return a.mkExpr(key, Expr{kind: ExprTuple, args: append([]*Expr(nil), es...)})
}

func (a *Arena) TupleProj(e *Expr, index uint32) *Expr {
	key := intern.NewKey(byte(ExprTupleProj)).ID(e.id).Uint(uint64(index))
	return a.mkExpr(key, Expr{kind: ExprTupleProj, proj: index, args: []*Expr{e}})
}

func (a *Arena) PathProj(e *Expr, f Field) *Expr {
	key := intern.NewKey(byte(ExprPathProj)).ID(e.id).Uint(uint64(f))
	return a.mkExpr(key, Expr{kind: ExprPathProj, proj: uint32(f), args: []*Expr{e}})
}

func (a *Arena) UnaryOp(op UnOp, e *Expr) *Expr {
	key := intern.NewKey(byte(ExprUnaryOp)).Uint(uint64(op)).ID(e.id)
	return a.mkExpr(key, Expr{kind: ExprUnaryOp, unOp: op, args: []*Expr{e}})
}

func (a *Arena) Not(e *Expr) *Expr { return a.UnaryOp(OpNot, e) }
func (a *Arena) Neg(e *Expr) *Expr { return a.UnaryOp(OpNeg, e) }

func (a *Arena) BinaryOp(op BinOp, e1, e2 *Expr) *Expr {
	key := intern.NewKey(byte(ExprBinaryOp)).Uint(uint64(op)).ID(e1.id).ID(e2.id)
	return a.mkExpr(key, Expr{kind: ExprBinaryOp, binOp: op, args: []*Expr{e1, e2}})
}

func (a *Arena) Eq(e1, e2 *Expr) *Expr      { return a.BinaryOp(OpEq, e1, e2) }
func (a *Arena) Ne(e1, e2 *Expr) *Expr      { return a.BinaryOp(OpNe, e1, e2) }
func (a *Arena) Gt(e1, e2 *Expr) *Expr      { return a.BinaryOp(OpGt, e1, e2) }
func (a *Arena) Ge(e1, e2 *Expr) *Expr      { return a.BinaryOp(OpGe, e1, e2) }
func (a *Arena) Lt(e1, e2 *Expr) *Expr      { return a.BinaryOp(OpLt, e1, e2) }
func (a *Arena) Le(e1, e2 *Expr) *Expr      { return a.BinaryOp(OpLe, e1, e2) }
func (a *Arena) Add(e1, e2 *Expr) *Expr     { return a.BinaryOp(OpAdd, e1, e2) }
func (a *Arena) Sub(e1, e2 *Expr) *Expr     { return a.BinaryOp(OpSub, e1, e2) }
func (a *Arena) Implies(e1, e2 *Expr) *Expr { return a.BinaryOp(OpImp, e1, e2) }

// And conjoins exprs left to right. The empty conjunction is true.
func (a *Arena) And(es ...*Expr) *Expr {
	if len(es) == 0 {
		return a.tt
	}
	acc := es[0]
	for _, e := range es[1:] {
		acc = a.BinaryOp(OpAnd, acc, e)
	}
	return acc
}

// Or disjoins exprs left to right. The empty disjunction is false.
func (a *Arena) Or(es ...*Expr) *Expr {
	if len(es) == 0 {
		return a.ff
	}
	acc := es[0]
	for _, e := range es[1:] {
		acc = a.BinaryOp(OpOr, acc, e)
	}
	return acc
}

// App applies an uninterpreted function
func (a *Arena) App(fn string, args ...*Expr) *Expr {
	key := intern.NewKey(byte(ExprApp)).Str(fn).IDs(exprIDs(args)...)
	return a.mkExpr(key, Expr{kind: ExprApp, sym: fn, args: append([]*Expr(nil), args...)})
}

func (a *Arena) IfThenElse(p, then, els *Expr) *Expr {
	key := intern.NewKey(byte(ExprIfThenElse)).ID(p.id).ID(then.id).ID(els.id)
	return a.mkExpr(key, Expr{kind: ExprIfThenElse, args: []*Expr{p, then, els}})
}

// WithChildren rebuilds e with new children, keeping its operator. It
// returns e itself when nothing changed.
func (a *Arena) WithChildren(e *Expr, args []*Expr) *Expr {
	if len(args) != len(e.args) {
		panic("WithChildren: arity mismatch")
	}
	changed := false
	for i := range args {
		if args[i] != e.args[i] {
			changed = true
			break
		}
	}
	if !changed {
		return e
	}
	switch e.kind {
	case ExprTuple:
		return a.Tuple(args...)
	case ExprTupleProj:
		return a.TupleProj(args[0], e.proj)
	case ExprPathProj:
		return a.PathProj(args[0], Field(e.proj))
	case ExprUnaryOp:
		return a.UnaryOp(e.unOp, args[0])
	case ExprBinaryOp:
		return a.BinaryOp(e.binOp, args[0], args[1])
	case ExprApp:
		return a.App(e.sym, args...)
	case ExprIfThenElse:
		return a.IfThenElse(args[0], args[1], args[2])
	}
	return e
}
