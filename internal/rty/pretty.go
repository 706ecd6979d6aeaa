package rty

import (
	"fmt"
	"strings"
)

func precedence(op BinOp) int {
	switch op {
	case OpIff:
		return 1
	case OpImp:
		return 2
	case OpOr:
		return 3
	case OpAnd:
		return 4
	case OpEq, OpNe, OpGt, OpGe, OpLt, OpLe:
		return 5
	case OpAdd, OpSub:
		return 6
	default:
		return 7
	}
}

func associative(op BinOp) bool {
	return op == OpAnd || op == OpOr || op == OpAdd || op == OpMul
}

func shouldParenthesize(op BinOp, child *Expr) bool {
	if child.kind == ExprIfThenElse {
		return true
	}
	childOp, _, _, ok := child.BinaryOp()
	if !ok {
		return false
	}
	cp, pp := precedence(childOp), precedence(op)
	return cp < pp || (cp == pp && !(childOp == op && associative(op)))
}

// Display renders t for diagnostics after folding away trivial conjunctions
// and negations. Text handed to the solver must not go through it.
func Display[T interface {
	Foldable[T]
	fmt.Stringer
}](a *Arena, t T) string {
	return Simplify(a, t).String()
}

func (e *Expr) String() string {
	var sb strings.Builder
	e.write(&sb)
	return sb.String()
}

func (e *Expr) write(sb *strings.Builder) {
	switch e.kind {
	case ExprFreeVar:
		sb.WriteString(e.name.String())
	case ExprBoundVar:
		sb.WriteString(e.bvar.String())
	case ExprEVar:
		sb.WriteString(e.evar.String())
	case ExprLocal:
		sb.WriteString(e.local.String())
	case ExprConstRef:
		sb.WriteString(e.sym)
	case ExprConstant:
		sb.WriteString(e.constant.String())
	case ExprBinaryOp:
		writeOperand(sb, e.binOp, e.args[0])
		fmt.Fprintf(sb, " %s ", e.binOp)
		writeOperand(sb, e.binOp, e.args[1])
	case ExprUnaryOp:
		sb.WriteString(e.unOp.String())
		writeAtom(sb, e.args[0])
	case ExprTupleProj, ExprPathProj:
		writeAtom(sb, e.args[0])
		fmt.Fprintf(sb, ".%d", e.proj)
	case ExprTuple:
		sb.WriteByte('(')
		writeList(sb, e.args)
		sb.WriteByte(')')
	case ExprApp:
		sb.WriteString(e.sym)
		sb.WriteByte('(')
		writeList(sb, e.args)
		sb.WriteByte(')')
	case ExprIfThenElse:
		sb.WriteString("if ")
		e.args[0].write(sb)
		sb.WriteString(" { ")
		e.args[1].write(sb)
		sb.WriteString(" } else { ")
		e.args[2].write(sb)
		sb.WriteString(" }")
	}
}

func writeOperand(sb *strings.Builder, op BinOp, child *Expr) {
	if shouldParenthesize(op, child) {
		sb.WriteByte('(')
		child.write(sb)
		sb.WriteByte(')')
		return
	}
	child.write(sb)
}

func writeAtom(sb *strings.Builder, e *Expr) {
	if e.IsAtom() {
		e.write(sb)
		return
	}
	sb.WriteByte('(')
	e.write(sb)
	sb.WriteByte(')')
}

func writeList(sb *strings.Builder, es []*Expr) {
	for i, e := range es {
		if i > 0 {
			sb.WriteString(", ")
		}
		e.write(sb)
	}
}

func (b *BaseTy) String() string {
	switch b.kind {
	case BaseInt:
		return b.intTy.String()
	case BaseUint:
		return b.uintTy.String()
	case BaseBool:
		return "bool"
	}
	if len(b.substs) == 0 {
		return b.adt.Name
	}
	parts := make([]string, len(b.substs))
	for i, t := range b.substs {
		parts[i] = t.String()
	}
	return fmt.Sprintf("%s<%s>", b.adt.Name, strings.Join(parts, ", "))
}

func (p *Pred) String() string {
	switch p.kind {
	case PredExpr:
		return p.expr.String()
	case PredKVar:
		var sb strings.Builder
		sb.WriteString(p.kvar.ID.String())
		sb.WriteByte('(')
		writeList(&sb, p.kvar.Args)
		if len(p.kvar.Scope) > 0 {
			sb.WriteString("; ")
			writeList(&sb, p.kvar.Scope)
		}
		sb.WriteByte(')')
		return sb.String()
	}
	return "*"
}

func (t *Ty) String() string {
	switch t.kind {
	case TyIndexed:
		parts := make([]string, len(t.indices))
		for i, idx := range t.indices {
			if idx.IsBinder {
				parts[i] = "@" + idx.Expr.String()
			} else {
				parts[i] = idx.Expr.String()
			}
		}
		return fmt.Sprintf("%s[%s]", t.bty, strings.Join(parts, ", "))
	case TyExists:
		return fmt.Sprintf("%s{%s}", t.bty, t.pred.Value)
	case TyConstr:
		return fmt.Sprintf("{%s | %s}", t.inner, t.constr)
	case TyRef:
		if t.ref == Mut {
			return "&mut " + t.inner.String()
		}
		return "&" + t.inner.String()
	case TyPtr:
		return fmt.Sprintf("ptr(%s)", t.path)
	case TyTuple:
		parts := make([]string, len(t.tys))
		for i, ty := range t.tys {
			parts[i] = ty.String()
		}
		return "(" + strings.Join(parts, ", ") + ")"
	case TyNever:
		return "!"
	case TyUninit:
		return "uninit"
	case TyParam:
		return t.param.String()
	case TyFloat:
		return t.float.String()
	}
	return "<ty?>"
}

func (s FnSig) String() string {
	var sb strings.Builder
	if len(s.Params) > 0 {
		sb.WriteString("for<")
		for i, p := range s.Params {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(p.String())
		}
		sb.WriteString("> ")
	}
	if len(s.Requires) > 0 {
		sb.WriteString("[")
		writeConstrs(&sb, s.Requires)
		sb.WriteString("] ")
	}
	sb.WriteString("fn(")
	for i, arg := range s.Args {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(arg.String())
	}
	sb.WriteString(")")
	if s.Ret != nil {
		sb.WriteString(" -> ")
		sb.WriteString(s.Ret.String())
	}
	if len(s.Ensures) > 0 {
		sb.WriteString("; [")
		writeConstrs(&sb, s.Ensures)
		sb.WriteString("]")
	}
	return sb.String()
}

func writeConstrs(sb *strings.Builder, cs []Constr) {
	for i, c := range cs {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(c.String())
	}
}
