package verify

import (
	"cmp"
	"errors"
	"fmt"

	set "github.com/hashicorp/go-set/v3"

	"github.com/lhaig/refine/internal/fixpoint"
	"github.com/lhaig/refine/internal/rty"
	"github.com/lhaig/refine/internal/wf"
)

// ErrCannotLower is returned for terms with no solver counterpart: holes,
// unsolved existential variables, escaping bound variables and locals.
var ErrCannotLower = errors.New("cannot lower to the solver")

type lowerer struct {
	sorts *wf.Checker
	names *rty.NameGen
	uifs  *set.TreeSet[string]
}

// temp is a solver variable standing for a k-variable argument that is
// not a plain name
type temp struct {
	name fixpoint.Name
	sort fixpoint.Sort
	def  *fixpoint.Expr
}

func lowerSort(s rty.Sort) fixpoint.Sort {
	switch s.Kind {
	case rty.SortBool:
		return fixpoint.BoolSort
	case rty.SortTuple:
		return fixpoint.TupleSort(lowerSorts(s.Elems)...)
	}
	return fixpoint.IntSort
}

func lowerSorts(ss []rty.Sort) []fixpoint.Sort {
	out := make([]fixpoint.Sort, len(ss))
	for i, s := range ss {
		out[i] = lowerSort(s)
	}
	return out
}

func lowerConstant(c rty.Constant) fixpoint.Constant {
	if c.Kind == rty.ConstBool {
		return fixpoint.Bool(c.Bool)
	}
	return fixpoint.Constant{Negative: c.Sign == rty.Negative, Mag: c.Mag}
}

func (l *lowerer) expr(e *rty.Expr) (*fixpoint.Expr, error) {
	switch e.Kind() {
	case rty.ExprFreeVar:
		n, _ := e.FreeVar()
		return fixpoint.VarExpr(fixpoint.Name(n)), nil
	case rty.ExprConstRef:
		name, _ := e.ConstRef()
		return fixpoint.GlobalExpr(name), nil
	case rty.ExprConstant:
		c, _ := e.Constant()
		return fixpoint.ConstExpr(lowerConstant(c)), nil
	case rty.ExprTuple:
		es, _ := e.Tuple()
		args, err := l.exprs(es)
		if err != nil {
			return nil, err
		}
		return fixpoint.TupleExpr(args...), nil
	case rty.ExprTupleProj:
		inner, index, _ := e.TupleProj()
		sort, err := l.sorts.InferSort(inner)
		if err != nil {
			return nil, err
		}
		arg, err := l.expr(inner)
		if err != nil {
			return nil, err
		}
		return fixpoint.TupleProjExpr(arg, len(sort.Elems), int(index)), nil
	case rty.ExprUnaryOp:
		op, inner, _ := e.UnaryOp()
		arg, err := l.expr(inner)
		if err != nil {
			return nil, err
		}
		if op == rty.OpNot {
			return fixpoint.UnaryExpr(fixpoint.Not, arg), nil
		}
		return fixpoint.UnaryExpr(fixpoint.Neg, arg), nil
	case rty.ExprBinaryOp:
		op, e1, e2, _ := e.BinaryOp()
		args, err := l.exprs([]*rty.Expr{e1, e2})
		if err != nil {
			return nil, err
		}
		return fixpoint.BinaryExpr(fixpoint.BinOp(op), args[0], args[1]), nil
	case rty.ExprApp:
		fn, es, _ := e.App()
		args, err := l.exprs(es)
		if err != nil {
			return nil, err
		}
		l.uifs.Insert(fn)
		return fixpoint.AppExpr(fn, args...), nil
	case rty.ExprIfThenElse:
		p, then, els, _ := e.IfThenElse()
		args, err := l.exprs([]*rty.Expr{p, then, els})
		if err != nil {
			return nil, err
		}
		return fixpoint.IfThenElseExpr(args[0], args[1], args[2]), nil
	}
	return nil, fmt.Errorf("%w: `%v`", ErrCannotLower, e)
}

func (l *lowerer) exprs(es []*rty.Expr) ([]*fixpoint.Expr, error) {
	out := make([]*fixpoint.Expr, len(es))
	for i, e := range es {
		fe, err := l.expr(e)
		if err != nil {
			return nil, err
		}
		out[i] = fe
	}
	return out, nil
}

// pred lowers p. K-variable arguments that are not names are bound to
// temporaries the caller must quantify over.
func (l *lowerer) pred(p *rty.Pred) (*fixpoint.Pred, []temp, error) {
	if p == nil {
		return fixpoint.ExprPred(fixpoint.BoolExpr(true)), nil, nil
	}
	if e, ok := p.Expr(); ok {
		fe, err := l.expr(e)
		if err != nil {
			return nil, nil, err
		}
		return fixpoint.ExprPred(fe), nil, nil
	}
	kv, ok := p.KVar()
	if !ok {
		return nil, nil, fmt.Errorf("%w: uninferred hole", ErrCannotLower)
	}
	args := kv.AllArgs()
	names := make([]fixpoint.Name, len(args))
	var temps []temp
	for i, arg := range args {
		if n, ok := arg.FreeVar(); ok {
			names[i] = fixpoint.Name(n)
			continue
		}
		sort, err := l.sorts.InferSort(arg)
		if err != nil {
			return nil, nil, err
		}
		def, err := l.expr(arg)
		if err != nil {
			return nil, nil, err
		}
		n := fixpoint.Name(l.names.Fresh())
		temps = append(temps, temp{name: n, sort: lowerSort(sort), def: def})
		names[i] = n
	}
	return fixpoint.KVarPred(fixpoint.KVid(kv.ID), names...), temps, nil
}

func withTemps(temps []temp, body *fixpoint.Constraint[Tag]) *fixpoint.Constraint[Tag] {
	for i := len(temps) - 1; i >= 0; i-- {
		t := temps[i]
		eq := fixpoint.BinaryExpr(fixpoint.Eq, fixpoint.VarExpr(t.name), t.def)
		body = fixpoint.ForAll(t.name, t.sort, fixpoint.ExprPred(eq), body)
	}
	return body
}

// node lowers the tree rooted at n, dropping subtrees without checks
func (l *lowerer) node(n *node) (*fixpoint.Constraint[Tag], error) {
	if n.kind == nodeCheck {
		p, temps, err := l.pred(n.pred)
		if err != nil {
			return nil, err
		}
		return withTemps(temps, fixpoint.TaggedConstraint(p, n.tag)), nil
	}

	children := make([]*fixpoint.Constraint[Tag], 0, len(n.children))
	for _, c := range n.children {
		if c.obligations() == 0 {
			continue
		}
		lc, err := l.node(c)
		if err != nil {
			return nil, err
		}
		children = append(children, lc)
	}
	body := fixpoint.Conj(children...)

	switch n.kind {
	case nodeForAll:
		p, temps, err := l.pred(n.pred)
		if err != nil {
			return nil, err
		}
		name, sort := fixpoint.Name(n.name), lowerSort(n.sort)
		if len(temps) == 0 {
			return fixpoint.ForAll(name, sort, p, body), nil
		}
		return fixpoint.ForAll(name, sort, fixpoint.ExprPred(fixpoint.BoolExpr(true)), withTemps(temps, fixpoint.Guard(p, body))), nil
	case nodeGuard:
		p, temps, err := l.pred(n.pred)
		if err != nil {
			return nil, err
		}
		return withTemps(temps, fixpoint.Guard(p, body)), nil
	}
	return body, nil
}

func (l *lowerer) qualifier(q rty.Qualifier, g wf.Globals) (fixpoint.Qualifier, error) {
	sorts := wf.NewChecker(g)
	args := make([]fixpoint.QualifArg, len(q.Args))
	for i, p := range q.Args {
		sorts.Bind(p.Name, p.Sort)
		args[i] = fixpoint.QualifArg{Name: fixpoint.Name(p.Name), Sort: lowerSort(p.Sort)}
	}
	ql := &lowerer{sorts: sorts, names: l.names, uifs: l.uifs}
	body, err := ql.expr(q.Expr)
	if err != nil {
		return fixpoint.Qualifier{}, fmt.Errorf("qualifier %s: %w", q.Name, err)
	}
	return fixpoint.Qualifier{Name: q.Name, Args: args, Body: body}, nil
}

// Task lowers everything recorded so far into a solver task. Constants
// with a declared value are assumed equal to it around the whole tree;
// only the uninterpreted functions the task mentions are declared.
func (fc *FnChecker) Task() (*fixpoint.Task[Tag], error) {
	l := &lowerer{
		sorts: fc.sorts,
		names: &fc.names,
		uifs:  set.NewTreeSet[string](cmp.Compare[string]),
	}
	body, err := l.node(fc.root)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", fc.name, err)
	}

	task := &fixpoint.Task[Tag]{}
	consts := fc.sess.constants()
	for i := len(consts) - 1; i >= 0; i-- {
		c := consts[i]
		if c.Value == nil {
			continue
		}
		v, err := l.expr(c.Value)
		if err != nil {
			return nil, fmt.Errorf("constant %s: %w", c.Name, err)
		}
		eq := fixpoint.BinaryExpr(fixpoint.Eq, fixpoint.GlobalExpr(c.Name), v)
		body = fixpoint.Guard(fixpoint.ExprPred(eq), body)
	}
	task.Constraint = body
	for _, c := range consts {
		task.Constants = append(task.Constants, fixpoint.Const{Name: c.Name, Sort: lowerSort(c.Sort)})
	}
	for i, sorts := range fc.kvars {
		task.KVars = append(task.KVars, fixpoint.KVarDecl{ID: fixpoint.KVid(i), Sorts: lowerSorts(sorts)})
	}

	quals := fc.sess.qualifiersFor(fc.name)
	if fc.sess.cfg.DeriveQualifiers {
		quals = append(quals, DeriveQualifiers(fc.arena, fc.sig)...)
	}
	g := fc.sess.Globals()
	for _, q := range quals {
		fq, err := l.qualifier(q, g)
		if err != nil {
			return nil, err
		}
		task.Qualifiers = append(task.Qualifiers, fq)
	}

	for _, name := range l.uifs.Slice() {
		def, ok := fc.sess.uif(name)
		if !ok {
			return nil, fmt.Errorf("%w: undeclared function %s", ErrCannotLower, name)
		}
		task.Uifs = append(task.Uifs, fixpoint.Uif{
			Name:   name,
			Inputs: lowerSorts(def.Inputs),
			Output: lowerSort(def.Output),
		})
	}
	return task, nil
}
