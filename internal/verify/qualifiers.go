package verify

import (
	"cmp"
	"fmt"

	set "github.com/hashicorp/go-set/v3"

	"github.com/lhaig/refine/internal/rty"
)

type deriver struct {
	a      *rty.Arena
	names  rty.NameGen
	params []rty.Param
	seen   *set.TreeSet[string]
	out    []rty.Qualifier
}

// DeriveQualifiers turns the refinements written in sig into qualifiers:
// every existential predicate and every pure pre- or postcondition becomes
// a template over the variables it mentions. Signature parameters count as
// arguments of the qualifiers that use them and come before the variables
// the predicate binds. Duplicates and predicates the
// solver cannot express are skipped.
func DeriveQualifiers(a *rty.Arena, sig rty.FnSig) []rty.Qualifier {
	d := &deriver{a: a, seen: set.NewTreeSet[string](cmp.Compare[string])}
	args := make([]*rty.Expr, len(sig.Params))
	for i, s := range sig.Params {
		n := d.names.Fresh()
		d.params = append(d.params, rty.Param{Name: n, Sort: s})
		args[i] = a.FVar(n)
	}
	inst := sig.Instantiate(a, args)

	for _, t := range inst.Args {
		d.ty(t)
	}
	for _, r := range inst.Requires {
		d.constr(r)
	}
	for _, e := range inst.Ensures {
		d.constr(e)
	}
	if inst.Ret != nil {
		d.ty(inst.Ret)
	}
	return d.out
}

func (d *deriver) constr(c rty.Constr) {
	if c.Kind == rty.ConstrPred {
		d.add(nil, c.Pred)
		return
	}
	d.ty(c.Ty)
}

func (d *deriver) ty(t *rty.Ty) {
	if bty, ok := t.BaseTy(); ok {
		for _, s := range bty.Substs() {
			d.ty(s)
		}
	}
	switch t.Kind() {
	case rty.TyExists:
		_, pred, _ := t.Exists()
		bound := make([]rty.Param, len(pred.Params))
		names := make([]rty.Name, len(pred.Params))
		for i, s := range pred.Params {
			names[i] = d.names.Fresh()
			bound[i] = rty.Param{Name: names[i], Sort: s}
		}
		if e, ok := rty.OpenNames(d.a, pred, names).Expr(); ok {
			d.add(bound, e)
		}
	case rty.TyConstr:
		p, inner, _ := t.Constr()
		d.add(nil, p)
		d.ty(inner)
	case rty.TyRef:
		_, inner, _ := t.Ref()
		d.ty(inner)
	case rty.TyTuple:
		tys, _ := t.Tuple()
		for _, inner := range tys {
			d.ty(inner)
		}
	}
}

// add records e as a qualifier over the signature parameters it mentions
// followed by bound, renamed to a0, a1, ...
func (d *deriver) add(bound []rty.Param, e *rty.Expr) {
	if e.IsTrue() || !solverExpr(e) {
		return
	}
	free := rty.FreeVars(e)
	var args []rty.Param
	for _, p := range d.params {
		if free.Contains(p.Name) {
			args = append(args, p)
		}
	}
	args = append(args, bound...)
	if len(args) == 0 {
		return
	}

	canon := make([]rty.Name, len(args))
	params := make([]rty.Param, len(args))
	for i, p := range args {
		canon[i] = rty.Name(i)
		params[i] = rty.Param{Name: rty.Name(i), Sort: p.Sort}
	}
	body := rty.OpenNames(d.a, rty.Close(d.a, e, args), canon)

	key := fmt.Sprintf("%v|%v", params, body)
	if !d.seen.Insert(key) {
		return
	}
	d.out = append(d.out, rty.Qualifier{
		Name: fmt.Sprintf("Auto%d", len(d.out)),
		Args: params,
		Expr: body,
	})
}

// solverExpr reports whether e only uses constructs a qualifier can carry
func solverExpr(e *rty.Expr) bool {
	switch e.Kind() {
	case rty.ExprBoundVar, rty.ExprEVar, rty.ExprLocal, rty.ExprPathProj:
		return false
	}
	for _, c := range e.Children() {
		if !solverExpr(c) {
			return false
		}
	}
	return true
}
