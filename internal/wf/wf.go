// Package wf checks that refinement expressions, types and signatures are
// well sorted: predicates are boolean, operators get operands of the right
// sort, indices match their base type and uninterpreted functions are
// applied to arguments of their declared sorts.
package wf

import (
	"errors"
	"fmt"

	"github.com/lhaig/refine/internal/rty"
)

// ErrUnbound is wrapped by errors about names that are not in scope
var ErrUnbound = errors.New("unbound")

// Error is a sort error located at an expression
type Error struct {
	Expr *rty.Expr
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Expr == nil {
		return e.Msg
	}
	return fmt.Sprintf("`%s`: %s", e.Expr, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// Globals are the session-wide names an expression may mention
type Globals struct {
	Consts map[string]rty.Sort
	Uifs   map[string]rty.UifDef
}

// Checker infers sorts. Free names are bound with Bind; de Bruijn binders
// are pushed and popped while walking types.
type Checker struct {
	globals Globals
	names   map[rty.Name]rty.Sort
	binders [][]rty.Sort

	// EVarSort resolves the sort of existential variables, if set
	EVarSort func(rty.EVar) (rty.Sort, bool)
}

// NewChecker creates a checker with no free names in scope
func NewChecker(g Globals) *Checker {
	return &Checker{globals: g, names: make(map[rty.Name]rty.Sort)}
}

// Bind puts a free name in scope
func (c *Checker) Bind(n rty.Name, s rty.Sort) {
	c.names[n] = s
}

// NameSort returns the sort of a bound free name
func (c *Checker) NameSort(n rty.Name) (rty.Sort, bool) {
	s, ok := c.names[n]
	return s, ok
}

// PushBinder enters a binder whose slots have the given sorts
func (c *Checker) PushBinder(sorts []rty.Sort) {
	c.binders = append(c.binders, sorts)
}

func (c *Checker) PopBinder() {
	c.binders = c.binders[:len(c.binders)-1]
}

func errorf(e *rty.Expr, format string, args ...any) error {
	return &Error{Expr: e, Msg: fmt.Sprintf(format, args...)}
}

func unbound(e *rty.Expr, what string, name any) error {
	return &Error{Expr: e, Msg: fmt.Sprintf("%s %v: %v", what, name, ErrUnbound), Err: ErrUnbound}
}

func (c *Checker) boundSort(e *rty.Expr, bv rty.BoundVar) (rty.Sort, error) {
	level := len(c.binders) - 1 - int(bv.Debruijn)
	if level < 0 || int(bv.Index) >= len(c.binders[level]) {
		return rty.Sort{}, unbound(e, "bound variable", bv)
	}
	return c.binders[level][bv.Index], nil
}

// InferSort returns the sort of e
func (c *Checker) InferSort(e *rty.Expr) (rty.Sort, error) {
	switch e.Kind() {
	case rty.ExprFreeVar:
		n, _ := e.FreeVar()
		s, ok := c.names[n]
		if !ok {
			return rty.Sort{}, unbound(e, "free variable", n)
		}
		return s, nil

	case rty.ExprBoundVar:
		bv, _ := e.BoundVar()
		return c.boundSort(e, bv)

	case rty.ExprEVar:
		ev, _ := e.EVar()
		if c.EVarSort != nil {
			if s, ok := c.EVarSort(ev); ok {
				return s, nil
			}
		}
		return rty.Sort{}, unbound(e, "existential variable", ev)

	case rty.ExprLocal:
		return rty.LocSort, nil

	case rty.ExprConstRef:
		name, _ := e.ConstRef()
		s, ok := c.globals.Consts[name]
		if !ok {
			return rty.Sort{}, unbound(e, "constant", name)
		}
		return s, nil

	case rty.ExprConstant:
		k, _ := e.Constant()
		if k.Kind == rty.ConstBool {
			return rty.BoolSort, nil
		}
		return rty.IntSort, nil

	case rty.ExprTuple:
		elems, _ := e.Tuple()
		sorts := make([]rty.Sort, len(elems))
		for i, el := range elems {
			s, err := c.InferSort(el)
			if err != nil {
				return rty.Sort{}, err
			}
			sorts[i] = s
		}
		return rty.TupleSort(sorts...), nil

	case rty.ExprTupleProj:
		inner, idx, _ := e.TupleProj()
		s, err := c.InferSort(inner)
		if err != nil {
			return rty.Sort{}, err
		}
		if s.Kind != rty.SortTuple {
			return rty.Sort{}, errorf(e, "cannot project out of sort `%s`", s)
		}
		if int(idx) >= len(s.Elems) {
			return rty.Sort{}, errorf(e, "projection .%d out of range for sort `%s`", idx, s)
		}
		return s.Elems[idx], nil

	case rty.ExprPathProj:
		inner, _, _ := e.PathProj()
		s, err := c.InferSort(inner)
		if err != nil {
			return rty.Sort{}, err
		}
		if s.Kind != rty.SortLoc {
			return rty.Sort{}, errorf(e, "field projection of non-location sort `%s`", s)
		}
		return rty.LocSort, nil

	case rty.ExprUnaryOp:
		op, arg, _ := e.UnaryOp()
		return c.inferUnOp(e, op, arg)

	case rty.ExprBinaryOp:
		op, e1, e2, _ := e.BinaryOp()
		return c.inferBinOp(e, op, e1, e2)

	case rty.ExprApp:
		fn, args, _ := e.App()
		return c.inferApp(e, fn, args)

	case rty.ExprIfThenElse:
		p, then, els, _ := e.IfThenElse()
		if err := c.expect(p, rty.BoolSort); err != nil {
			return rty.Sort{}, err
		}
		s1, err := c.InferSort(then)
		if err != nil {
			return rty.Sort{}, err
		}
		s2, err := c.InferSort(els)
		if err != nil {
			return rty.Sort{}, err
		}
		if !s1.Equal(s2) {
			return rty.Sort{}, errorf(e, "if and else branches have incompatible sorts `%s` and `%s`", s1, s2)
		}
		return s1, nil
	}
	return rty.Sort{}, errorf(e, "unknown expression kind %d", e.Kind())
}

func (c *Checker) expect(e *rty.Expr, want rty.Sort) error {
	got, err := c.InferSort(e)
	if err != nil {
		return err
	}
	if !got.Equal(want) {
		return errorf(e, "mismatched sorts: expected `%s`, found `%s`", want, got)
	}
	return nil
}

func (c *Checker) inferUnOp(e *rty.Expr, op rty.UnOp, arg *rty.Expr) (rty.Sort, error) {
	s, err := c.InferSort(arg)
	if err != nil {
		return rty.Sort{}, err
	}
	switch {
	case op == rty.OpNot && s.Equal(rty.BoolSort):
		return rty.BoolSort, nil
	case op == rty.OpNeg && s.Equal(rty.IntSort):
		return rty.IntSort, nil
	}
	return rty.Sort{}, errorf(e, "cannot apply unary operator `%s` to sort `%s`", op, s)
}

func (c *Checker) inferBinOp(e *rty.Expr, op rty.BinOp, e1, e2 *rty.Expr) (rty.Sort, error) {
	s1, err := c.InferSort(e1)
	if err != nil {
		return rty.Sort{}, err
	}
	s2, err := c.InferSort(e2)
	if err != nil {
		return rty.Sort{}, err
	}

	switch op {
	case rty.OpIff, rty.OpImp, rty.OpOr, rty.OpAnd:
		if !s1.Equal(rty.BoolSort) || !s2.Equal(rty.BoolSort) {
			return rty.Sort{}, errorf(e, "mismatched sorts: `%s` expects `bool` operands, found `%s` and `%s`", op, s1, s2)
		}
		return rty.BoolSort, nil

	case rty.OpEq, rty.OpNe:
		if !s1.Equal(s2) {
			return rty.Sort{}, errorf(e, "cannot compare `%s` with `%s`", s1, s2)
		}
		return rty.BoolSort, nil

	case rty.OpGt, rty.OpGe, rty.OpLt, rty.OpLe:
		if !s1.Equal(rty.IntSort) || !s2.Equal(rty.IntSort) {
			return rty.Sort{}, errorf(e, "cannot compare `%s` with `%s`", s1, s2)
		}
		return rty.BoolSort, nil

	case rty.OpAdd, rty.OpSub, rty.OpMul, rty.OpDiv, rty.OpMod:
		if !s1.Equal(rty.IntSort) || !s2.Equal(rty.IntSort) {
			return rty.Sort{}, errorf(e, "cannot apply `%s` to `%s` and `%s`", op, s1, s2)
		}
		return rty.IntSort, nil
	}
	return rty.Sort{}, errorf(e, "unknown operator %s", op)
}

func (c *Checker) inferApp(e *rty.Expr, fn string, args []*rty.Expr) (rty.Sort, error) {
	def, ok := c.globals.Uifs[fn]
	if !ok {
		return rty.Sort{}, unbound(e, "function", fn)
	}
	if len(args) != len(def.Inputs) {
		return rty.Sort{}, errorf(e, "function %s takes %d arguments but %d were supplied", fn, len(def.Inputs), len(args))
	}
	for i, arg := range args {
		if err := c.expect(arg, def.Inputs[i]); err != nil {
			return rty.Sort{}, err
		}
	}
	return def.Output, nil
}

// CheckPred requires e to be boolean
func (c *Checker) CheckPred(e *rty.Expr) error {
	s, err := c.InferSort(e)
	if err != nil {
		return err
	}
	if !s.Equal(rty.BoolSort) {
		return errorf(e, "refinement predicate must be of sort `bool`, found `%s`", s)
	}
	return nil
}

func (c *Checker) checkRefinement(p *rty.Pred) error {
	if e, ok := p.Expr(); ok {
		return c.CheckPred(e)
	}
	if kv, ok := p.KVar(); ok {
		for _, arg := range kv.AllArgs() {
			if _, err := c.InferSort(arg); err != nil {
				return err
			}
		}
	}
	return nil
}

func (c *Checker) checkPath(p rty.Path) error {
	switch p.Loc.Kind {
	case rty.LocFree:
		if _, ok := c.names[p.Loc.Name]; !ok {
			return &Error{Msg: fmt.Sprintf("path %v: root %v", p, ErrUnbound), Err: ErrUnbound}
		}
	case rty.LocBound:
		if _, err := c.boundSort(nil, p.Loc.Bound); err != nil {
			return &Error{Msg: fmt.Sprintf("path %v: root %v", p, ErrUnbound), Err: ErrUnbound}
		}
	}
	return nil
}

// CheckTy checks every expression inside t
func (c *Checker) CheckTy(t *rty.Ty) error {
	if bty, ok := t.BaseTy(); ok {
		for _, sub := range bty.Substs() {
			if err := c.CheckTy(sub); err != nil {
				return err
			}
		}
	}
	switch t.Kind() {
	case rty.TyIndexed:
		bty, indices, _ := t.Indexed()
		sorts := bty.Sorts()
		if len(indices) != len(sorts) {
			return &Error{Msg: fmt.Sprintf("type %v: expected %d indices, found %d", t, len(sorts), len(indices))}
		}
		for i, idx := range indices {
			if err := c.expect(idx.Expr, sorts[i]); err != nil {
				return err
			}
		}

	case rty.TyExists:
		_, pred, _ := t.Exists()
		c.PushBinder(pred.Params)
		defer c.PopBinder()
		return c.checkRefinement(pred.Value)

	case rty.TyConstr:
		p, inner, _ := t.Constr()
		if err := c.CheckPred(p); err != nil {
			return err
		}
		return c.CheckTy(inner)

	case rty.TyRef:
		_, inner, _ := t.Ref()
		return c.CheckTy(inner)

	case rty.TyPtr:
		p, _ := t.Ptr()
		return c.checkPath(p)

	case rty.TyTuple:
		tys, _ := t.Tuple()
		for _, ty := range tys {
			if err := c.CheckTy(ty); err != nil {
				return err
			}
		}
	}
	return nil
}

func (c *Checker) checkConstr(constr rty.Constr) error {
	if constr.Kind == rty.ConstrPred {
		return c.CheckPred(constr.Pred)
	}
	if err := c.checkPath(constr.Path); err != nil {
		return err
	}
	return c.CheckTy(constr.Ty)
}

// CheckFnSig checks every clause of sig and reports all errors found
func (c *Checker) CheckFnSig(sig rty.FnSig) error {
	c.PushBinder(sig.Params)
	defer c.PopBinder()

	var errs []error
	for _, r := range sig.Requires {
		if err := c.checkConstr(r); err != nil {
			errs = append(errs, fmt.Errorf("requires: %w", err))
		}
	}
	for i, arg := range sig.Args {
		if err := c.CheckTy(arg); err != nil {
			errs = append(errs, fmt.Errorf("argument %d: %w", i, err))
		}
	}
	if sig.Ret != nil {
		if err := c.CheckTy(sig.Ret); err != nil {
			errs = append(errs, fmt.Errorf("return: %w", err))
		}
	}
	for _, en := range sig.Ensures {
		if err := c.checkConstr(en); err != nil {
			errs = append(errs, fmt.Errorf("ensures: %w", err))
		}
	}
	return errors.Join(errs...)
}

// CheckFnSig checks sig against the session globals
func CheckFnSig(g Globals, sig rty.FnSig) error {
	return NewChecker(g).CheckFnSig(sig)
}
