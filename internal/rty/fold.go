package rty

import (
	"github.com/davecgh/go-spew/spew"
)

// Foldable is implemented by every term the fold engine can rebuild or walk
type Foldable[T any] interface {
	FoldWith(f Folder) T
	VisitWith(v Visitor)
}

// Folder rewrites terms bottom-up. Each Fold hook returns the replacement
// and true to take over a node, or false to let the engine recurse into it
// structurally. Folders track how many binders they are under.
type Folder interface {
	Arena() *Arena
	Depth() DebruijnIndex
	EnterBinder()
	ExitBinder()
	FoldTy(t *Ty) (*Ty, bool)
	FoldPred(p *Pred) (*Pred, bool)
	FoldExpr(e *Expr) (*Expr, bool)
}

// Visitor walks terms read-only. Returning false from VisitExpr or VisitTy
// skips that node's children.
type Visitor interface {
	Depth() DebruijnIndex
	EnterBinder()
	ExitBinder()
	VisitTy(t *Ty) bool
	VisitExpr(e *Expr) bool
	VisitFVar(n Name)
}

// NopFolder is meant to be embedded. It rewrites nothing and keeps the
// binder depth.
type NopFolder struct {
	arena *Arena
	depth DebruijnIndex
}

func NewNopFolder(a *Arena) NopFolder {
	return NopFolder{arena: a}
}

func (f *NopFolder) Arena() *Arena                { return f.arena }
func (f *NopFolder) Depth() DebruijnIndex         { return f.depth }
func (f *NopFolder) EnterBinder()                 { f.depth++ }
func (f *NopFolder) ExitBinder()                  { f.depth-- }
func (f *NopFolder) FoldTy(*Ty) (*Ty, bool)       { return nil, false }
func (f *NopFolder) FoldPred(*Pred) (*Pred, bool) { return nil, false }
func (f *NopFolder) FoldExpr(*Expr) (*Expr, bool) { return nil, false }

// NopVisitor is meant to be embedded. It visits everything and keeps the
// binder depth.
type NopVisitor struct {
	depth DebruijnIndex
}

func (v *NopVisitor) Depth() DebruijnIndex { return v.depth }
func (v *NopVisitor) EnterBinder()         { v.depth++ }
func (v *NopVisitor) ExitBinder()          { v.depth-- }
func (v *NopVisitor) VisitTy(*Ty) bool     { return true }
func (v *NopVisitor) VisitExpr(*Expr) bool { return true }
func (v *NopVisitor) VisitFVar(Name)       {}

// FoldAll folds each element of xs
func FoldAll[T Foldable[T]](f Folder, xs []T) []T {
	out := make([]T, len(xs))
	for i, x := range xs {
		out[i] = x.FoldWith(f)
	}
	return out
}

// VisitAll visits each element of xs
func VisitAll[T Foldable[T]](v Visitor, xs []T) {
	for _, x := range xs {
		x.VisitWith(v)
	}
}

// Expr

func (e *Expr) FoldWith(f Folder) *Expr {
	if r, ok := f.FoldExpr(e); ok {
		return r
	}
	return e.SuperFoldWith(f)
}

// SuperFoldWith folds the children of e. Variables and constants are leaves.
func (e *Expr) SuperFoldWith(f Folder) *Expr {
	if len(e.args) == 0 {
		return e
	}
	return f.Arena().WithChildren(e, FoldAll(f, e.args))
}

func (e *Expr) VisitWith(v Visitor) {
	if v.VisitExpr(e) {
		e.SuperVisitWith(v)
	}
}

func (e *Expr) SuperVisitWith(v Visitor) {
	if e.kind == ExprFreeVar {
		v.VisitFVar(e.name)
		return
	}
	VisitAll(v, e.args)
}

// Paths

// FoldPath folds the expression form of p. The result must still be a path.
func FoldPath(f Folder, p Path) Path {
	e := p.ToExpr(f.Arena()).FoldWith(f)
	folded, ok := e.ToPath()
	if !ok {
		spew.Dump(p, e)
		panic("folding produced an invalid path")
	}
	return folded
}

// VisitPath reports the free root of p, if any
func VisitPath(v Visitor, p Path) {
	if p.Loc.Kind == LocFree {
		v.VisitFVar(p.Loc.Name)
	}
}

// BaseTy

func (b *BaseTy) FoldWith(f Folder) *BaseTy {
	if b.kind != BaseAdt || len(b.substs) == 0 {
		return b
	}
	return f.Arena().withSubsts(b, FoldAll(f, b.substs))
}

func (b *BaseTy) VisitWith(v Visitor) {
	VisitAll(v, b.substs)
}

// Ty

func (t *Ty) FoldWith(f Folder) *Ty {
	if r, ok := f.FoldTy(t); ok {
		return r
	}
	return t.SuperFoldWith(f)
}

func (t *Ty) SuperFoldWith(f Folder) *Ty {
	a := f.Arena()
	switch t.kind {
	case TyIndexed:
		indices := make([]Index, len(t.indices))
		for i, idx := range t.indices {
			indices[i] = Index{Expr: idx.Expr.FoldWith(f), IsBinder: idx.IsBinder}
		}
		return a.Indexed(t.bty.FoldWith(f), indices...)
	case TyExists:
		return a.Exists(t.bty.FoldWith(f), t.pred.FoldWith(f))
	case TyConstr:
		return a.Constr(t.constr.FoldWith(f), t.inner.FoldWith(f))
	case TyRef:
		return a.Ref(t.ref, t.inner.FoldWith(f))
	case TyPtr:
		return a.Ptr(FoldPath(f, t.path))
	case TyTuple:
		return a.TupleTy(FoldAll(f, t.tys)...)
	}
	return t
}

func (t *Ty) VisitWith(v Visitor) {
	if v.VisitTy(t) {
		t.SuperVisitWith(v)
	}
}

func (t *Ty) SuperVisitWith(v Visitor) {
	switch t.kind {
	case TyIndexed:
		t.bty.VisitWith(v)
		for _, idx := range t.indices {
			idx.Expr.VisitWith(v)
		}
	case TyExists:
		t.bty.VisitWith(v)
		t.pred.VisitWith(v)
	case TyConstr:
		t.constr.VisitWith(v)
		t.inner.VisitWith(v)
	case TyRef:
		t.inner.VisitWith(v)
	case TyPtr:
		VisitPath(v, t.path)
	case TyTuple:
		VisitAll(v, t.tys)
	}
}

// Pred

func (p *Pred) FoldWith(f Folder) *Pred {
	if r, ok := f.FoldPred(p); ok {
		return r
	}
	return p.SuperFoldWith(f)
}

func (p *Pred) SuperFoldWith(f Folder) *Pred {
	a := f.Arena()
	switch p.kind {
	case PredExpr:
		return a.PredExpr(p.expr.FoldWith(f))
	case PredKVar:
		return a.PredKVar(p.kvar.FoldWith(f))
	}
	return p
}

func (p *Pred) VisitWith(v Visitor) {
	switch p.kind {
	case PredExpr:
		p.expr.VisitWith(v)
	case PredKVar:
		p.kvar.VisitWith(v)
	}
}

// KVar

func (k KVar) FoldWith(f Folder) KVar {
	return KVar{ID: k.ID, Args: FoldAll(f, k.Args), Scope: FoldAll(f, k.Scope)}
}

// VisitWith visits both the arguments and the scope
func (k KVar) VisitWith(v Visitor) {
	VisitAll(v, k.Args)
	VisitAll(v, k.Scope)
}

// Binders

func (b Binders[T]) FoldWith(f Folder) Binders[T] {
	f.EnterBinder()
	value := b.Value.FoldWith(f)
	f.ExitBinder()
	return Binders[T]{Params: b.Params, Value: value}
}

func (b Binders[T]) VisitWith(v Visitor) {
	v.EnterBinder()
	b.Value.VisitWith(v)
	v.ExitBinder()
}

// Constr

func (c Constr) FoldWith(f Folder) Constr {
	if c.Kind == ConstrType {
		return TypeConstr(FoldPath(f, c.Path), c.Ty.FoldWith(f))
	}
	return PredConstr(c.Pred.FoldWith(f))
}

func (c Constr) VisitWith(v Visitor) {
	if c.Kind == ConstrType {
		VisitPath(v, c.Path)
		c.Ty.VisitWith(v)
		return
	}
	c.Pred.VisitWith(v)
}

// FnSig

// FoldWith folds the signature under its parameter binder
func (s FnSig) FoldWith(f Folder) FnSig {
	f.EnterBinder()
	out := s.foldBody(f)
	f.ExitBinder()
	return out
}

func (s FnSig) foldBody(f Folder) FnSig {
	var ret *Ty
	if s.Ret != nil {
		ret = s.Ret.FoldWith(f)
	}
	return FnSig{
		Params:   s.Params,
		Requires: FoldAll(f, s.Requires),
		Args:     FoldAll(f, s.Args),
		Ret:      ret,
		Ensures:  FoldAll(f, s.Ensures),
	}
}

func (s FnSig) VisitWith(v Visitor) {
	v.EnterBinder()
	VisitAll(v, s.Requires)
	VisitAll(v, s.Args)
	if s.Ret != nil {
		s.Ret.VisitWith(v)
	}
	VisitAll(v, s.Ensures)
	v.ExitBinder()
}
