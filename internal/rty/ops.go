package rty

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/davecgh/go-spew/spew"
	set "github.com/hashicorp/go-set/v3"
)

// Free variables

type fvarsCollector struct {
	NopVisitor
	names *set.TreeSet[Name]
}

func (c *fvarsCollector) VisitFVar(n Name) {
	c.names.Insert(n)
}

// FreeVars returns every free name occurring in t, including names that
// appear only in k-variable scopes and path roots.
func FreeVars[T Foldable[T]](t T) *set.TreeSet[Name] {
	c := &fvarsCollector{names: set.NewTreeSet[Name](cmp.Compare[Name])}
	t.VisitWith(c)
	return c.names
}

// Holes

type holeReplacer struct {
	NopFolder
	mk func(sorts []Sort) Binders[*Pred]
}

func (r *holeReplacer) FoldTy(t *Ty) (*Ty, bool) {
	bty, pred, ok := t.Exists()
	if !ok || !pred.Value.IsHole() {
		return nil, false
	}
	bty = bty.FoldWith(r)
	sorts := bty.Sorts()
	replacement := r.mk(sorts)
	if !SortsEqual(replacement.Params, sorts) {
		panic(fmt.Sprintf("hole replacement binds %v, expected %v", replacement.Params, sorts))
	}
	return r.Arena().Exists(bty, replacement), true
}

// ReplaceHoles replaces every existential whose predicate is a hole with
// the predicate produced by mk for the base type's index sorts.
func ReplaceHoles[T Foldable[T]](a *Arena, t T, mk func(sorts []Sort) Binders[*Pred]) T {
	return t.FoldWith(&holeReplacer{NopFolder: NewNopFolder(a), mk: mk})
}

type holeInserter struct {
	NopFolder
}

func (h *holeInserter) FoldTy(t *Ty) (*Ty, bool) {
	bty, ok := t.BaseTy()
	if !ok {
		return nil, false
	}
	bty = bty.FoldWith(h)
	a := h.Arena()
	return a.Exists(bty, NewBinders(a.Hole(), bty.Sorts())), true
}

// WithHoles turns every indexed and every existential type into an
// existential with a hole, discarding its refinement. Constrained types keep
// their guard.
func WithHoles[T Foldable[T]](a *Arena, t T) T {
	return t.FoldWith(&holeInserter{NopFolder: NewNopFolder(a)})
}

// Generic substitution

type genericReplacer struct {
	NopFolder
	tys []*Ty
}

func (g *genericReplacer) FoldTy(t *Ty) (*Ty, bool) {
	p, ok := t.Param()
	if !ok {
		return nil, false
	}
	if int(p.Index) >= len(g.tys) {
		spew.Dump(p, g.tys)
		panic("generic parameter out of range")
	}
	return g.tys[p.Index], true
}

// ReplaceGenericTypes substitutes the i-th generic parameter with tys[i]
func ReplaceGenericTypes[T Foldable[T]](a *Arena, t T, tys []*Ty) T {
	return t.FoldWith(&genericReplacer{NopFolder: NewNopFolder(a), tys: tys})
}

type paramCollector struct {
	NopVisitor
	params *set.TreeSet[ParamTy]
}

func (c *paramCollector) VisitTy(t *Ty) bool {
	if p, ok := t.Param(); ok {
		c.params.Insert(p)
	}
	return true
}

// GenericParams lists the generic parameters mentioned in t by index
func GenericParams[T Foldable[T]](t T) []ParamTy {
	c := &paramCollector{params: set.NewTreeSet[ParamTy](func(x, y ParamTy) int {
		return cmp.Compare(x.Index, y.Index)
	})}
	t.VisitWith(c)
	return c.params.Slice()
}

// Existential variables

type evarReplacer struct {
	NopFolder
	lookup func(EVar) (*Expr, bool)
}

func (r *evarReplacer) FoldExpr(e *Expr) (*Expr, bool) {
	ev, ok := e.EVar()
	if !ok {
		return nil, false
	}
	if sol, ok := r.lookup(ev); ok {
		return sol, true
	}
	return e, true
}

// ReplaceEVars substitutes solved existential variables. Unsolved ones are
// left in place.
func ReplaceEVars[T Foldable[T]](a *Arena, t T, lookup func(EVar) (*Expr, bool)) T {
	return t.FoldWith(&evarReplacer{NopFolder: NewNopFolder(a), lookup: lookup})
}

type evarCollector struct {
	NopVisitor
	found []EVar
}

func (c *evarCollector) VisitExpr(e *Expr) bool {
	if ev, ok := e.EVar(); ok {
		c.found = append(c.found, ev)
	}
	return true
}

// EVars lists existential variables in t in visit order, with duplicates
func EVars[T Foldable[T]](t T) []EVar {
	c := &evarCollector{}
	t.VisitWith(c)
	return c.found
}

// Binder manipulation

type shifter struct {
	NopFolder
	amount uint32
}

func (s *shifter) FoldExpr(e *Expr) (*Expr, bool) {
	bv, ok := e.BoundVar()
	if !ok || bv.Debruijn < s.Depth() {
		return nil, false
	}
	return s.Arena().BVar(BoundVar{Debruijn: bv.Debruijn.ShiftedIn(s.amount), Index: bv.Index}), true
}

// ShiftIn moves t under amount additional binders, adjusting every bound
// variable that escapes t.
func ShiftIn[T Foldable[T]](a *Arena, t T, amount uint32) T {
	if amount == 0 {
		return t
	}
	return t.FoldWith(&shifter{NopFolder: NewNopFolder(a), amount: amount})
}

type opener struct {
	NopFolder
	args []*Expr
}

func (o *opener) FoldExpr(e *Expr) (*Expr, bool) {
	bv, ok := e.BoundVar()
	if !ok {
		return nil, false
	}
	switch {
	case bv.Debruijn == o.Depth():
		if int(bv.Index) >= len(o.args) {
			spew.Dump(bv, o.args)
			panic("bound variable index out of range")
		}
		return ShiftIn(o.Arena(), o.args[bv.Index], uint32(o.Depth())), true
	case bv.Debruijn > o.Depth():
		return o.Arena().BVar(BoundVar{Debruijn: bv.Debruijn.ShiftedOut(1), Index: bv.Index}), true
	}
	return nil, false
}

// Open instantiates the binder with args: slot i of the binder becomes
// args[i], and variables bound further out move one level in.
func Open[T Foldable[T]](a *Arena, b Binders[T], args []*Expr) T {
	if len(args) != len(b.Params) {
		panic(fmt.Sprintf("opening binder of %d params with %d args", len(b.Params), len(args)))
	}
	return b.Value.FoldWith(&opener{NopFolder: NewNopFolder(a), args: args})
}

// OpenNames opens the binder with free variables
func OpenNames[T Foldable[T]](a *Arena, b Binders[T], names []Name) T {
	args := make([]*Expr, len(names))
	for i, n := range names {
		args[i] = a.FVar(n)
	}
	return Open(a, b, args)
}

type closer struct {
	NopFolder
	slots map[Name]uint32
}

func (c *closer) FoldExpr(e *Expr) (*Expr, bool) {
	if n, ok := e.FreeVar(); ok {
		if idx, ok := c.slots[n]; ok {
			return c.Arena().BVar(BoundVar{Debruijn: c.Depth(), Index: idx}), true
		}
		return nil, false
	}
	if bv, ok := e.BoundVar(); ok && bv.Debruijn >= c.Depth() {
		return c.Arena().BVar(BoundVar{Debruijn: bv.Debruijn.ShiftedIn(1), Index: bv.Index}), true
	}
	return nil, false
}

// Close abstracts params out of t, the inverse of OpenNames
func Close[T Foldable[T]](a *Arena, t T, params []Param) Binders[T] {
	slots := make(map[Name]uint32, len(params))
	sorts := make([]Sort, len(params))
	for i, p := range params {
		slots[p.Name] = uint32(i)
		sorts[i] = p.Sort
	}
	b := NewBinders(t.FoldWith(&closer{NopFolder: NewNopFolder(a), slots: slots}), sorts)
	if HasEscapingBVars(b) {
		spew.Dump(t, params)
		panic("closed term has escaping bound variables")
	}
	return b
}

// Instantiate replaces the signature's parameters with args
func (s FnSig) Instantiate(a *Arena, args []*Expr) FnSig {
	if len(args) != len(s.Params) {
		panic(fmt.Sprintf("instantiating signature of %d params with %d args", len(s.Params), len(args)))
	}
	out := s.foldBody(&opener{NopFolder: NewNopFolder(a), args: args})
	out.Params = nil
	if out.escapes() {
		spew.Dump(s, args)
		panic("instantiated signature has escaping bound variables")
	}
	return out
}

// escapes checks the body of an instantiated signature, which has no
// binder of its own
func (s FnSig) escapes() bool {
	if s.Ret != nil && HasEscapingBVars(s.Ret) {
		return true
	}
	return slices.ContainsFunc(s.Args, HasEscapingBVars[*Ty]) ||
		slices.ContainsFunc(s.Requires, HasEscapingBVars[Constr]) ||
		slices.ContainsFunc(s.Ensures, HasEscapingBVars[Constr])
}

type escapeChecker struct {
	NopVisitor
	escaping bool
}

func (c *escapeChecker) VisitExpr(e *Expr) bool {
	if bv, ok := e.BoundVar(); ok && bv.Debruijn >= c.Depth() {
		c.escaping = true
	}
	return !c.escaping
}

func (c *escapeChecker) VisitTy(t *Ty) bool {
	if p, ok := t.Ptr(); ok && p.Loc.Kind == LocBound && p.Loc.Bound.Debruijn >= c.Depth() {
		c.escaping = true
	}
	return !c.escaping
}

// HasEscapingBVars reports whether t mentions a variable bound outside it
func HasEscapingBVars[T Foldable[T]](t T) bool {
	c := &escapeChecker{}
	t.VisitWith(c)
	return c.escaping
}
