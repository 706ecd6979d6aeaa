package rty

type simplifier struct {
	NopFolder
}

func (s *simplifier) FoldExpr(e *Expr) (*Expr, bool) {
	a := s.Arena()
	switch e.kind {
	case ExprBinaryOp:
		e1 := e.args[0].FoldWith(s)
		e2 := e.args[1].FoldWith(s)
		if e.binOp == OpAnd {
			switch {
			case e1.IsFalse() || e2.IsFalse():
				return a.False(), true
			case e1.IsTrue():
				return e2, true
			case e2.IsTrue():
				return e1, true
			}
		}
		return a.BinaryOp(e.binOp, e1, e2), true
	case ExprUnaryOp:
		if e.unOp != OpNot {
			return nil, false
		}
		inner := e.args[0].FoldWith(s)
		if c, ok := inner.Constant(); ok && c.Kind == ConstBool {
			return a.Bool(!c.Bool), true
		}
		if op, x, ok := inner.UnaryOp(); ok && op == OpNot {
			return x, true
		}
		if op, l, r, ok := inner.BinaryOp(); ok && op == OpEq {
			return a.Ne(l, r), true
		}
		return a.Not(inner), true
	}
	return nil, false
}

// Simplify folds away trivial conjunctions and negations. The result is
// equivalent to t.
func Simplify[T Foldable[T]](a *Arena, t T) T {
	return t.FoldWith(&simplifier{NopFolder: NewNopFolder(a)})
}
