package driver

import (
	"fmt"
	"maps"

	"github.com/lhaig/refine/internal/diagnostic"
	"github.com/lhaig/refine/internal/manifest"
	"github.com/lhaig/refine/internal/parser"
	"github.com/lhaig/refine/internal/rty"
	"github.com/lhaig/refine/internal/verify"
)

// interp runs the steps of a function body against its checker
type interp struct {
	prog  *Program
	fn    *Fn
	fc    *verify.FnChecker
	names map[string]*rty.Expr
	sorts map[string]rty.Sort
	diags *diagnostic.Diagnostics

	returned bool
}

// Build opens a checker for fn and runs its body. When the returned
// diagnostics hold errors the checker is incomplete and must not be solved.
func (p *Program) Build(fn *Fn) (*verify.FnChecker, *diagnostic.Diagnostics) {
	in := &interp{
		prog:  p,
		fn:    fn,
		fc:    p.Session.NewFnChecker(fn.Name, fn.Sig),
		names: make(map[string]*rty.Expr),
		sorts: make(map[string]rty.Sort),
		diags: diagnostic.New(),
	}
	for i, e := range in.fc.Params() {
		if i < len(fn.ParamNames) {
			in.names[fn.ParamNames[i]] = e
			in.sorts[fn.ParamNames[i]] = fn.Sig.Params[i]
		}
	}

	in.steps(fn.Decl.Body)
	if !in.returned {
		at := fn.Decl.Name
		if fn.Sig.Ret != nil {
			in.errorf(at.Line, at.Column, "function body does not return")
		} else if err := in.fc.Return(p.arena.UnitTy(), verify.NewTag(verify.ReasonRet, at.Line, at.Column)); err != nil {
			in.errorf(at.Line, at.Column, "%v", err)
		}
	}
	in.diags.Sort()
	return in.fc, in.diags
}

func (in *interp) errorf(line, col int, format string, args ...any) {
	in.diags.Add(diagnostic.Diagnostic{
		Severity: diagnostic.Error,
		Message:  fmt.Sprintf(format, args...),
		Line:     line,
		Column:   col,
		File:     in.fn.File,
		Item:     in.fn.Name,
	})
}

func (in *interp) parser(t manifest.Text) *parser.Parser {
	return parser.NewAt(in.prog.arena, parser.Env{
		Adts:     in.prog.adts,
		Consts:   in.prog.consts,
		Names:    in.names,
		Sorts:    in.sorts,
		Generics: in.fn.Decl.Generics,
	}, t.Value, t.Line, t.Column)
}

func (in *interp) absorb(p *parser.Parser) {
	for _, d := range p.Diagnostics().All() {
		d.File, d.Item = in.fn.File, in.fn.Name
		in.diags.Add(d)
	}
}

// pred parses a well sorted predicate
func (in *interp) pred(t manifest.Text) (*rty.Expr, bool) {
	p := in.parser(t)
	e, ok := p.ParseExpr()
	in.absorb(p)
	if !ok {
		return nil, false
	}
	if err := in.fc.WellSorted(e); err != nil {
		for _, err := range splitErrors(err) {
			in.errorf(t.Line, t.Column, "%v", err)
		}
		return nil, false
	}
	return e, true
}

func (in *interp) path(t manifest.Text) (rty.Path, bool) {
	p := in.parser(t)
	path, ok := p.ParsePath()
	in.absorb(p)
	return path, ok
}

func (in *interp) ty(t manifest.Text) (*rty.Ty, bool) {
	p := in.parser(t)
	ty, ok := p.ParseTy()
	in.absorb(p)
	return ty, ok
}

// operand resolves a place to its current type or parses a type
func (in *interp) operand(t manifest.Text) (*rty.Ty, bool) {
	p := in.parser(t)
	op, ok := p.ParseOperand()
	in.absorb(p)
	if !ok {
		return nil, false
	}
	if op.Path == nil {
		return op.Ty, true
	}
	ty, ok := in.fc.Lookup(*op.Path)
	if !ok {
		in.errorf(t.Line, t.Column, "no type at %v", *op.Path)
		return nil, false
	}
	return ty, true
}

func (in *interp) steps(steps []manifest.Step) {
	for i := range steps {
		s := &steps[i]
		if in.returned {
			in.errorf(s.Line, s.Column, "step after return")
			return
		}
		in.step(s)
	}
}

func (in *interp) step(s *manifest.Step) {
	tag := func(r verify.Reason) verify.Tag { return verify.NewTag(r, s.Line, s.Column) }

	switch s.Op() {
	case manifest.OpAssume:
		if e, ok := in.pred(s.Assume); ok {
			in.fc.Assume(e)
		}
	case manifest.OpAssert:
		if e, ok := in.pred(s.Assert); ok {
			in.fc.Assert(e, tag(verify.ReasonAssert))
		}
	case manifest.OpCheck:
		reason := verify.ReasonOther
		if s.Reason.Set() {
			r, ok := verify.ParseReason(s.Reason.Value)
			if !ok {
				in.errorf(s.Reason.Line, s.Reason.Column, "unknown reason %q", s.Reason.Value)
				return
			}
			reason = r
		}
		if e, ok := in.pred(s.Check); ok {
			in.fc.Check(e, tag(reason))
		}
	case manifest.OpLet:
		in.let(s)
	case manifest.OpStore:
		path, okPath := in.path(s.Store)
		ty, okTy := in.ty(s.Ty)
		if okPath && okTy {
			in.fc.Store(path, ty)
		}
	case manifest.OpCall:
		in.call(s, tag(verify.ReasonCall))
	case manifest.OpReturn:
		ty, ok := in.operand(s.Return)
		if !ok {
			return
		}
		if err := in.fc.Return(ty, tag(verify.ReasonRet)); err != nil {
			in.errorf(s.Line, s.Column, "%v", err)
		}
		in.returned = true
	case manifest.OpIf:
		in.branch(s)
	default:
		in.errorf(s.Line, s.Column, "malformed step")
	}
}

// let names the indices of the value at a place. A single index is bound
// as is; several are bound as a tuple.
func (in *interp) let(s *manifest.Step) {
	path, ok := in.path(s.From)
	if !ok {
		return
	}
	ty, ok := in.fc.Lookup(path)
	if !ok {
		in.errorf(s.From.Line, s.From.Column, "no type at %v", path)
		return
	}
	for {
		_, inner, isRef := ty.Ref()
		if !isRef {
			break
		}
		ty = inner
	}
	bty, idx, ok := ty.Indexed()
	if !ok {
		in.errorf(s.From.Line, s.From.Column, "`%v` at %v has no indices to name", ty, path)
		return
	}
	sorts := bty.Sorts()
	name := s.Let.Value
	switch len(idx) {
	case 0:
		in.errorf(s.From.Line, s.From.Column, "`%v` at %v has no indices to name", ty, path)
	case 1:
		in.names[name] = idx[0].Expr
		in.sorts[name] = sorts[0]
	default:
		es := make([]*rty.Expr, len(idx))
		for i, ix := range idx {
			es[i] = ix.Expr
		}
		in.names[name] = in.prog.arena.Tuple(es...)
		in.sorts[name] = rty.TupleSort(sorts...)
	}
}

func (in *interp) call(s *manifest.Step, tag verify.Tag) {
	args := make([]*rty.Ty, 0, len(s.Args))
	valid := true
	for _, t := range s.Args {
		ty, ok := in.operand(t)
		valid = valid && ok
		args = append(args, ty)
	}
	var into rty.Path
	if s.Into.Set() {
		path, ok := in.path(s.Into)
		valid = valid && ok
		into = path
	}
	if !valid {
		return
	}
	ret, err := in.fc.Call(s.Call.Value, args, tag)
	if err != nil {
		in.errorf(s.Line, s.Column, "%v", err)
		return
	}
	if s.Into.Set() {
		in.fc.Store(into, ret)
	}
}

// branch checks each arm under its condition. Stores and names made in an
// arm do not outlive it; the if returns when both arms do.
func (in *interp) branch(s *manifest.Step) {
	c, ok := in.pred(s.If)
	if !ok {
		return
	}
	a := in.prog.arena
	thenReturns := in.scope(func() {
		in.fc.Assume(c)
		in.steps(s.Then)
	})
	elseReturns := in.scope(func() {
		in.fc.Assume(a.Not(c))
		in.steps(s.Else)
	})
	in.returned = thenReturns && elseReturns
}

func (in *interp) scope(body func()) (returned bool) {
	names, sorts := maps.Clone(in.names), maps.Clone(in.sorts)
	_ = in.fc.Scope(func() error {
		body()
		returned = in.returned
		return nil
	})
	in.names, in.sorts, in.returned = names, sorts, false
	return returned
}
