package verify

import (
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/lhaig/refine/internal/config"
	"github.com/lhaig/refine/internal/evars"
	"github.com/lhaig/refine/internal/rty"
	"github.com/lhaig/refine/internal/wf"
)

var (
	ErrUnknownFn   = errors.New("unknown function")
	ErrArity       = errors.New("wrong number of arguments")
	ErrCannotInfer = errors.New("cannot infer refinement arguments")
	ErrMismatch    = errors.New("type mismatch")
	ErrUnknownPath = errors.New("no type at path")
)

type binding struct {
	path rty.Path
	ty   *rty.Ty
}

// FnChecker grows the refinement tree of one function. The driver walks
// the function body and calls Assume, Check, Call, Subtype and Return in
// program order; Task lowers the result for the solver.
//
// Argument i of the function is stored at local _{i+1}. Local _0 is the
// return place.
type FnChecker struct {
	sess  *Session
	arena *rty.Arena
	name  string
	sig   rty.FnSig
	inst  rty.FnSig
	args  []*rty.Expr

	names  rty.NameGen
	sorts  *wf.Checker
	scope  []rty.Param
	env    map[string]binding
	root   *node
	cursor *node
	kvars  [][]rty.Sort
}

// NewFnChecker opens a checker for the function name with signature sig.
// The signature's parameters become universally quantified names, its
// preconditions are assumed and its arguments stored.
func (s *Session) NewFnChecker(name string, sig rty.FnSig) *FnChecker {
	fc := &FnChecker{
		sess:  s,
		arena: s.arena,
		name:  name,
		sig:   sig,
		sorts: wf.NewChecker(s.Globals()),
		env:   make(map[string]binding),
		root:  &node{kind: nodeConj},
	}
	fc.cursor = fc.root

	args := make([]*rty.Expr, len(sig.Params))
	for i, sort := range sig.Params {
		args[i] = fc.Fresh(sort)
	}
	fc.args = args
	fc.inst = sig.Instantiate(fc.arena, args)
	for _, r := range fc.inst.Requires {
		if r.Kind == rty.ConstrPred {
			fc.Assume(r.Pred)
		}
	}
	for i, arg := range fc.inst.Args {
		fc.Store(rty.NewPath(rty.LocalLoc(rty.Local(i+1))), arg)
	}
	for _, r := range fc.inst.Requires {
		if r.Kind == rty.ConstrType {
			fc.Store(r.Path, r.Ty)
		}
	}
	return fc
}

func (fc *FnChecker) Name() string { return fc.name }

// Sig is the function's signature with its parameters replaced by the
// checker's names
func (fc *FnChecker) Sig() rty.FnSig { return fc.inst }

// Params returns the names standing for the signature's parameters
func (fc *FnChecker) Params() []*rty.Expr { return slices.Clone(fc.args) }

// WellSorted reports whether e is a boolean predicate over the names in
// scope, the declared constants and the uninterpreted functions
func (fc *FnChecker) WellSorted(e *rty.Expr) error { return fc.sorts.CheckPred(e) }

// Obligations counts the checks recorded so far
func (fc *FnChecker) Obligations() int { return fc.root.obligations() }

// KVars counts the k-variables introduced for holes
func (fc *FnChecker) KVars() int { return len(fc.kvars) }

// Fresh binds a new universally quantified name of the given sort in the
// current scope
func (fc *FnChecker) Fresh(sort rty.Sort) *rty.Expr {
	n := fc.names.Fresh()
	fc.sorts.Bind(n, sort)
	fc.scope = append(fc.scope, rty.Param{Name: n, Sort: sort})
	fc.cursor = fc.cursor.push(&node{kind: nodeForAll, name: n, sort: sort})
	return fc.arena.FVar(n)
}

type mark struct {
	cursor *node
	scope  int
	env    map[string]binding
}

func (fc *FnChecker) mark() mark {
	return mark{cursor: fc.cursor, scope: len(fc.scope), env: maps.Clone(fc.env)}
}

func (fc *FnChecker) reset(m mark) {
	fc.cursor = m.cursor
	fc.scope = fc.scope[:m.scope]
	fc.env = m.env
}

// Scope runs fn in a nested scope. Names, assumptions and stores made by fn
// are dropped when it returns; obligations it recorded are kept.
func (fc *FnChecker) Scope(fn func() error) error {
	m := fc.mark()
	defer fc.reset(m)
	return fn()
}

// Assume adds e as a hypothesis for everything recorded after it in the
// current scope
func (fc *FnChecker) Assume(e *rty.Expr) {
	fc.assume(fc.arena.PredExpr(e))
}

func (fc *FnChecker) assume(p *rty.Pred) {
	if p.IsTrue() {
		return
	}
	fc.cursor = fc.cursor.push(&node{kind: nodeGuard, pred: p})
}

// Check records e as an obligation reported under tag
func (fc *FnChecker) Check(e *rty.Expr, tag Tag) {
	fc.check(fc.arena.PredExpr(e), tag)
}

func (fc *FnChecker) check(p *rty.Pred, tag Tag) {
	if p.IsTrue() {
		return
	}
	fc.cursor.push(&node{kind: nodeCheck, pred: p, tag: tag})
}

// Assert handles a source assertion according to the check_asserts mode
func (fc *FnChecker) Assert(e *rty.Expr, tag Tag) {
	switch fc.sess.cfg.CheckAsserts {
	case config.AssumeAsserts:
		fc.Assume(e)
	case config.IgnoreAsserts:
	default:
		fc.Check(e, tag)
	}
}

// InferHoles replaces every hole in ty with a fresh k-variable over the
// hole's index sorts and the names currently in scope
func (fc *FnChecker) InferHoles(ty *rty.Ty) *rty.Ty {
	return rty.ReplaceHoles(fc.arena, ty, func(sorts []rty.Sort) rty.Binders[*rty.Pred] {
		return rty.NewBinders(fc.freshKVar(sorts), sorts)
	})
}

func (fc *FnChecker) freshKVar(sorts []rty.Sort) *rty.Pred {
	a := fc.arena
	args := make([]*rty.Expr, len(sorts))
	for i := range sorts {
		args[i] = a.BVar(rty.InnermostVar(uint32(i)))
	}
	decl := slices.Clone(sorts)
	scope := make([]*rty.Expr, len(fc.scope))
	for i, p := range fc.scope {
		scope[i] = a.FVar(p.Name)
		decl = append(decl, p.Sort)
	}
	id := rty.KVid(len(fc.kvars))
	fc.kvars = append(fc.kvars, decl)
	return a.PredKVar(rty.KVar{ID: id, Args: args, Scope: scope})
}

// unpack opens the existentials, guards and shared references at the top
// of ty, binding fresh names for their indices
func (fc *FnChecker) unpack(ty *rty.Ty) *rty.Ty {
	a := fc.arena
	ty = fc.InferHoles(ty)
	switch ty.Kind() {
	case rty.TyExists:
		bty, pred, _ := ty.Exists()
		idx := make([]*rty.Expr, len(pred.Params))
		for i, sort := range pred.Params {
			idx[i] = fc.Fresh(sort)
		}
		p := rty.Open(a, pred, idx)
		if len(idx) > 0 && !p.IsTrue() {
			fc.cursor.pred = p
		} else {
			fc.assume(p)
		}
		return a.IndexedBy(bty, idx...)
	case rty.TyConstr:
		p, inner, _ := ty.Constr()
		fc.Assume(p)
		return fc.unpack(inner)
	case rty.TyRef:
		if k, inner, _ := ty.Ref(); k == rty.Shr {
			return a.Ref(k, fc.unpack(inner))
		}
	case rty.TyTuple:
		tys, _ := ty.Tuple()
		out := make([]*rty.Ty, len(tys))
		for i, t := range tys {
			out[i] = fc.unpack(t)
		}
		return a.TupleTy(out...)
	}
	return ty
}

// Store sets the type at path p, unpacking it first
func (fc *FnChecker) Store(p rty.Path, ty *rty.Ty) {
	fc.env[p.String()] = binding{path: p, ty: fc.unpack(ty)}
}

// Lookup returns the type at p. Paths with projections not stored directly
// are resolved through references and tuples of the stored prefix.
func (fc *FnChecker) Lookup(p rty.Path) (*rty.Ty, bool) {
	if b, ok := fc.env[p.String()]; ok {
		return b.ty, true
	}
	proj := p.Projection()
	if len(proj) == 0 {
		return nil, false
	}
	ty, ok := fc.Lookup(rty.NewPath(p.Loc, proj[:len(proj)-1]...))
	if !ok {
		return nil, false
	}
	for {
		_, inner, ok := ty.Ref()
		if !ok {
			break
		}
		ty = inner
	}
	tys, ok := ty.Tuple()
	f := int(proj[len(proj)-1])
	if !ok || f >= len(tys) {
		return nil, false
	}
	return tys[f], true
}

// Local returns the type stored at local l
func (fc *FnChecker) Local(l rty.Local) (*rty.Ty, bool) {
	return fc.Lookup(rty.NewPath(rty.LocalLoc(l)))
}

// Paths lists the paths with a stored type in path order
func (fc *FnChecker) Paths() []rty.Path {
	out := make([]rty.Path, 0, len(fc.env))
	for _, b := range fc.env {
		out = append(out, b.path)
	}
	slices.SortFunc(out, rty.Path.Compare)
	return out
}

func (fc *FnChecker) mismatch(actual, expected *rty.Ty) error {
	return fmt.Errorf("%w: `%s` is not a subtype of `%s`", ErrMismatch,
		rty.Display(fc.arena, actual), rty.Display(fc.arena, expected))
}

func sameBase(b1, b2 *rty.BaseTy) bool {
	if b1.Kind() != b2.Kind() {
		return false
	}
	switch b1.Kind() {
	case rty.BaseInt:
		return b1.IntTy() == b2.IntTy()
	case rty.BaseUint:
		return b1.UintTy() == b2.UintTy()
	case rty.BaseAdt:
		return b1.Adt().ID == b2.Adt().ID && len(b1.Substs()) == len(b2.Substs())
	}
	return true
}

// Subtype records the obligations under which actual is a subtype of
// expected. Names bound while unpacking actual do not outlive the call.
func (fc *FnChecker) Subtype(actual, expected *rty.Ty, tag Tag) error {
	m := fc.mark()
	defer fc.reset(m)
	return fc.subtype(actual, expected, tag)
}

func (fc *FnChecker) subtype(actual, expected *rty.Ty, tag Tag) error {
	a := fc.arena
	if actual == expected || actual.IsNever() || expected.IsUninit() {
		return nil
	}
	if p, inner, ok := actual.Constr(); ok {
		fc.Assume(p)
		return fc.subtype(inner, expected, tag)
	}
	if p, inner, ok := expected.Constr(); ok {
		if err := fc.subtype(actual, inner, tag); err != nil {
			return err
		}
		fc.Check(p, tag)
		return nil
	}
	if actual.Kind() == rty.TyExists {
		actual = fc.unpack(actual)
	}
	expected = fc.InferHoles(expected)

	switch expected.Kind() {
	case rty.TyIndexed:
		bty2, idx2, _ := expected.Indexed()
		bty1, idx1, ok := actual.Indexed()
		if !ok || !sameBase(bty1, bty2) || len(idx1) != len(idx2) {
			return fc.mismatch(actual, expected)
		}
		eqs := make([]*rty.Expr, 0, len(idx2))
		for i := range idx2 {
			if idx1[i].Expr != idx2[i].Expr {
				eqs = append(eqs, a.Eq(idx1[i].Expr, idx2[i].Expr))
			}
		}
		fc.Check(a.And(eqs...), tag)
		return fc.subtypeAll(bty1.Substs(), bty2.Substs(), tag)

	case rty.TyExists:
		bty2, pred, _ := expected.Exists()
		bty1, idx1, ok := actual.Indexed()
		if !ok || !sameBase(bty1, bty2) || len(idx1) != len(pred.Params) {
			return fc.mismatch(actual, expected)
		}
		args := make([]*rty.Expr, len(idx1))
		for i, ix := range idx1 {
			args[i] = ix.Expr
		}
		fc.check(rty.Open(a, pred, args), tag)
		return fc.subtypeAll(bty1.Substs(), bty2.Substs(), tag)

	case rty.TyRef:
		k2, t2, _ := expected.Ref()
		k1, t1, ok := actual.Ref()
		if !ok || k1 != k2 {
			return fc.mismatch(actual, expected)
		}
		if err := fc.subtype(t1, t2, tag); err != nil {
			return err
		}
		if k2 == rty.Mut {
			return fc.subtype(t2, t1, tag)
		}
		return nil

	case rty.TyPtr:
		p2, _ := expected.Ptr()
		p1, ok := actual.Ptr()
		if !ok || !p1.Equal(p2) {
			return fc.mismatch(actual, expected)
		}
		return nil

	case rty.TyTuple:
		ts2, _ := expected.Tuple()
		ts1, ok := actual.Tuple()
		if !ok || len(ts1) != len(ts2) {
			return fc.mismatch(actual, expected)
		}
		return fc.subtypeAll(ts1, ts2, tag)
	}

	if actual != expected {
		return fc.mismatch(actual, expected)
	}
	return nil
}

func (fc *FnChecker) subtypeAll(actuals, expecteds []*rty.Ty, tag Tag) error {
	for i := range expecteds {
		if err := fc.subtype(actuals[i], expecteds[i], tag); err != nil {
			return err
		}
	}
	return nil
}

func (fc *FnChecker) scopeSorts() map[rty.Name]rty.Sort {
	m := make(map[rty.Name]rty.Sort, len(fc.scope))
	for _, p := range fc.scope {
		m[p.Name] = p.Sort
	}
	return m
}

// matchLocs solves location parameters of a callee from the pointers its
// arguments are called with. Locations cannot be existential variables.
func matchLocs(a *rty.Arena, actual, formal *rty.Ty, locs map[uint32]*rty.Expr) {
	switch formal.Kind() {
	case rty.TyPtr:
		fp, _ := formal.Ptr()
		ap, ok := actual.Ptr()
		if !ok || fp.Loc.Kind != rty.LocBound || fp.Loc.Bound.Debruijn != rty.Innermost || len(fp.Projection()) > 0 {
			return
		}
		if _, seen := locs[fp.Loc.Bound.Index]; !seen {
			locs[fp.Loc.Bound.Index] = ap.ToExpr(a)
		}
	case rty.TyRef:
		_, fi, _ := formal.Ref()
		if _, ai, ok := actual.Ref(); ok {
			matchLocs(a, ai, fi, locs)
		}
	case rty.TyTuple:
		fs, _ := formal.Tuple()
		as, ok := actual.Tuple()
		if !ok || len(as) != len(fs) {
			return
		}
		for i := range fs {
			matchLocs(a, as[i], fs[i], locs)
		}
	}
}

// matchGenerics finds the actual type passed for each generic parameter of
// formal. The first occurrence of a parameter wins.
func matchGenerics(actual, formal *rty.Ty, found map[uint32]*rty.Ty) {
	if _, inner, ok := actual.Constr(); ok {
		matchGenerics(inner, formal, found)
		return
	}
	if _, inner, ok := formal.Constr(); ok {
		matchGenerics(actual, inner, found)
		return
	}
	if p, ok := formal.Param(); ok {
		if _, seen := found[p.Index]; !seen {
			found[p.Index] = actual
		}
		return
	}
	switch formal.Kind() {
	case rty.TyIndexed, rty.TyExists:
		fbty, _ := formal.BaseTy()
		abty, ok := actual.BaseTy()
		if !ok || len(abty.Substs()) != len(fbty.Substs()) {
			return
		}
		for i, f := range fbty.Substs() {
			matchGenerics(abty.Substs()[i], f, found)
		}
	case rty.TyRef:
		_, fi, _ := formal.Ref()
		if _, ai, ok := actual.Ref(); ok {
			matchGenerics(ai, fi, found)
		}
	case rty.TyTuple:
		fs, _ := formal.Tuple()
		as, ok := actual.Tuple()
		if !ok || len(as) != len(fs) {
			return
		}
		for i := range fs {
			matchGenerics(as[i], fs[i], found)
		}
	}
}

// instantiateGenerics replaces the generic parameters of sig with the
// types the arguments are passed at. Their refinements are dropped and
// inferred as fresh k-variables.
func (fc *FnChecker) instantiateGenerics(sig rty.FnSig, args []*rty.Ty) (rty.FnSig, error) {
	params := rty.GenericParams(sig)
	if len(params) == 0 {
		return sig, nil
	}
	found := make(map[uint32]*rty.Ty)
	for i := range args {
		matchGenerics(args[i], sig.Args[i], found)
	}
	tys := make([]*rty.Ty, params[len(params)-1].Index+1)
	for _, p := range params {
		actual, ok := found[p.Index]
		if !ok {
			return sig, fmt.Errorf("%w: generic parameter %s", ErrCannotInfer, p.Name)
		}
		tys[p.Index] = fc.InferHoles(rty.WithHoles(fc.arena, actual))
	}
	return rty.ReplaceGenericTypes(fc.arena, sig, tys), nil
}

// unify solves the existential variables in the indices of formal from the
// matching indices of actual. With binders set only binder positions are
// used. Conflicting solutions are left to subtyping to reject.
func (fc *FnChecker) unify(ctxt *evars.Ctxt, actual, formal *rty.Ty, binders bool) error {
	if _, inner, ok := actual.Constr(); ok {
		return fc.unify(ctxt, inner, formal, binders)
	}
	if _, inner, ok := formal.Constr(); ok {
		return fc.unify(ctxt, actual, inner, binders)
	}
	switch formal.Kind() {
	case rty.TyIndexed:
		fbty, fidx, _ := formal.Indexed()
		abty, aidx, ok := actual.Indexed()
		if !ok || len(aidx) != len(fidx) {
			return nil
		}
		for i, ix := range fidx {
			ev, ok := ix.Expr.EVar()
			if !ok || (binders && !ix.IsBinder) {
				continue
			}
			if err := ctxt.Solve(ev, aidx[i].Expr); err != nil && !errors.Is(err, evars.ErrConflict) {
				return err
			}
		}
		return fc.unifyAll(ctxt, abty.Substs(), fbty.Substs(), binders)
	case rty.TyExists:
		fbty, _, _ := formal.Exists()
		if abty, ok := actual.BaseTy(); ok {
			return fc.unifyAll(ctxt, abty.Substs(), fbty.Substs(), binders)
		}
	case rty.TyRef:
		_, fi, _ := formal.Ref()
		if _, ai, ok := actual.Ref(); ok {
			return fc.unify(ctxt, ai, fi, binders)
		}
	case rty.TyTuple:
		fs, _ := formal.Tuple()
		if as, ok := actual.Tuple(); ok {
			return fc.unifyAll(ctxt, as, fs, binders)
		}
	}
	return nil
}

func (fc *FnChecker) unifyAll(ctxt *evars.Ctxt, actuals, formals []*rty.Ty, binders bool) error {
	for i := range formals {
		if i >= len(actuals) {
			break
		}
		if err := fc.unify(ctxt, actuals[i], formals[i], binders); err != nil {
			return err
		}
	}
	return nil
}

// Call checks a call to callee with arguments of the given types and
// returns the type of the result. Refinement parameters of the callee are
// inferred from the arguments; its preconditions become obligations and its
// postconditions assumptions.
func (fc *FnChecker) Call(callee string, actuals []*rty.Ty, tag Tag) (*rty.Ty, error) {
	sig, ok := fc.sess.fnSig(callee)
	if !ok {
		return nil, fmt.Errorf("call to %s: %w", callee, ErrUnknownFn)
	}
	if len(actuals) != len(sig.Args) {
		return nil, fmt.Errorf("call to %s: %w: expected %d, found %d", callee, ErrArity, len(sig.Args), len(actuals))
	}
	a := fc.arena
	args := make([]*rty.Ty, len(actuals))
	for i, t := range actuals {
		args[i] = fc.unpack(t)
	}
	sig, err := fc.instantiateGenerics(sig, args)
	if err != nil {
		return nil, fmt.Errorf("call to %s: %w", callee, err)
	}

	ctxt := fc.sess.evars.New(fc.scopeSorts())
	defer ctxt.Close()

	locs := make(map[uint32]*rty.Expr)
	for i := range args {
		matchLocs(a, args[i], sig.Args[i], locs)
	}
	params := make([]*rty.Expr, len(sig.Params))
	for i, sort := range sig.Params {
		if e, ok := locs[uint32(i)]; ok {
			params[i] = e
			continue
		}
		if sort.Kind == rty.SortLoc {
			return nil, fmt.Errorf("call to %s: %w: location parameter %d", callee, ErrCannotInfer, i)
		}
		params[i] = a.EVarExpr(ctxt.Fresh(sort))
	}
	inst := sig.Instantiate(a, params)

	for _, binders := range []bool{true, false} {
		for i := range args {
			if err := fc.unify(ctxt, args[i], inst.Args[i], binders); err != nil {
				return nil, fmt.Errorf("call to %s: %w", callee, err)
			}
		}
		for _, r := range inst.Requires {
			if r.Kind != rty.ConstrType {
				continue
			}
			if ty, ok := fc.Lookup(r.Path); ok {
				if err := fc.unify(ctxt, ty, r.Ty, binders); err != nil {
					return nil, fmt.Errorf("call to %s: %w", callee, err)
				}
			}
		}
	}
	inst = rty.ReplaceEVars(a, inst, ctxt.Solution)
	if len(rty.EVars(inst)) > 0 {
		return nil, fmt.Errorf("call to %s: %w %v", callee, ErrCannotInfer, ctxt.Unsolved())
	}

	for i := range args {
		if err := fc.Subtype(args[i], inst.Args[i], tag); err != nil {
			return nil, fmt.Errorf("call to %s: argument %d: %w", callee, i, err)
		}
	}
	for _, r := range inst.Requires {
		switch r.Kind {
		case rty.ConstrPred:
			fc.Check(r.Pred, tag)
		case rty.ConstrType:
			ty, ok := fc.Lookup(r.Path)
			if !ok {
				return nil, fmt.Errorf("call to %s: %w %v", callee, ErrUnknownPath, r.Path)
			}
			if err := fc.Subtype(ty, r.Ty, tag); err != nil {
				return nil, fmt.Errorf("call to %s: %v: %w", callee, r.Path, err)
			}
		}
	}
	for _, e := range inst.Ensures {
		switch e.Kind {
		case rty.ConstrPred:
			fc.Assume(e.Pred)
		case rty.ConstrType:
			fc.Store(e.Path, e.Ty)
		}
	}
	if inst.Ret == nil {
		return a.UnitTy(), nil
	}
	return fc.unpack(inst.Ret), nil
}

// Return checks that actual and the current state of the stored paths
// satisfy the function's result type and postconditions
func (fc *FnChecker) Return(actual *rty.Ty, tag Tag) error {
	ret := fc.inst.Ret
	if ret == nil {
		ret = fc.arena.UnitTy()
	}
	if err := fc.Subtype(actual, ret, tag); err != nil {
		return fmt.Errorf("return: %w", err)
	}
	for _, e := range fc.inst.Ensures {
		switch e.Kind {
		case rty.ConstrPred:
			fc.Check(e.Pred, tag)
		case rty.ConstrType:
			ty, ok := fc.Lookup(e.Path)
			if !ok {
				return fmt.Errorf("return: %w %v", ErrUnknownPath, e.Path)
			}
			if err := fc.Subtype(ty, e.Ty, tag); err != nil {
				return fmt.Errorf("return: %v: %w", e.Path, err)
			}
		}
	}
	return nil
}
