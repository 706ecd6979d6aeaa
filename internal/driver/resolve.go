package driver

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/lhaig/refine/internal/diagnostic"
	"github.com/lhaig/refine/internal/manifest"
	"github.com/lhaig/refine/internal/parser"
	"github.com/lhaig/refine/internal/rty"
	"github.com/lhaig/refine/internal/verify"
	"github.com/lhaig/refine/internal/wf"
)

// Fn is a declared function with its resolved signature
type Fn struct {
	Name       string
	File       string
	Decl       *manifest.FnDecl
	Sig        rty.FnSig
	ParamNames []string
}

// Trusted functions are assumed correct and never checked
func (f *Fn) Trusted() bool { return f.Decl.Trusted }

// Program is a set of manifests resolved into one session: every datatype,
// constant, uninterpreted function, qualifier and signature is declared.
type Program struct {
	Session *verify.Session
	Fns     []*Fn

	arena  *rty.Arena
	adts   map[string]*rty.AdtDef
	consts map[string]rty.Sort
	byName map[string]*Fn
}

// Fn returns the function called name
func (p *Program) Fn(name string) (*Fn, bool) {
	fn, ok := p.byName[name]
	return fn, ok
}

// Select returns the named functions, or every function when names is
// empty
func (p *Program) Select(names []string) ([]*Fn, error) {
	if len(names) == 0 {
		return p.Fns, nil
	}
	out := make([]*Fn, 0, len(names))
	for _, name := range names {
		fn, ok := p.byName[name]
		if !ok {
			return nil, fmt.Errorf("unknown function %q", name)
		}
		out = append(out, fn)
	}
	return out, nil
}

type resolver struct {
	prog  *Program
	diags *diagnostic.Diagnostics
	file  string
	// file of the first declaration of each name, per namespace
	seen  map[string]map[string]string
	quals map[string]*qualUse
	order []*qualUse
}

// qualUse tracks whether any function selects a declared qualifier
type qualUse struct {
	decl *manifest.QualifierDecl
	file string
	used bool
}

// Resolve declares the contents of manifests, given in dependency order,
// into sess. Declarations that fail to parse or are ill sorted are reported
// and left out.
func Resolve(sess *verify.Session, manifests []*manifest.Manifest) (*Program, *diagnostic.Diagnostics) {
	r := &resolver{
		prog: &Program{
			Session: sess,
			arena:   sess.Arena(),
			adts:    make(map[string]*rty.AdtDef),
			consts:  make(map[string]rty.Sort),
			byName:  make(map[string]*Fn),
		},
		diags: diagnostic.New(),
		seen:  make(map[string]map[string]string),
		quals: make(map[string]*qualUse),
	}

	r.each(manifests, func(m *manifest.Manifest) {
		for i := range m.Adts {
			r.adt(&m.Adts[i])
		}
	})
	var values []func()
	r.each(manifests, func(m *manifest.Manifest) {
		for i := range m.Consts {
			if v := r.constSort(&m.Consts[i]); v != nil {
				values = append(values, v)
			}
		}
	})
	r.each(manifests, func(m *manifest.Manifest) {
		for i := range m.Uifs {
			r.uif(&m.Uifs[i])
		}
	})
	// values may mention any constant or function
	for _, v := range values {
		v()
	}
	r.each(manifests, func(m *manifest.Manifest) {
		for i := range m.Qualifiers {
			r.qualifier(&m.Qualifiers[i])
		}
	})
	r.each(manifests, func(m *manifest.Manifest) {
		for i := range m.Fns {
			r.fn(&m.Fns[i])
		}
	})
	for _, q := range r.order {
		if q.decl.Global || q.used {
			continue
		}
		r.inFile(q.file, func(d *diagnostic.Diagnostics) {
			d.Warningf(q.decl.Name.Line, q.decl.Name.Column,
				"qualifier %s is not global and no function lists it", q.decl.Name.Value)
		})
	}

	r.diags.Sort()
	return r.prog, r.diags
}

func (r *resolver) each(manifests []*manifest.Manifest, fn func(*manifest.Manifest)) {
	for _, m := range manifests {
		r.file = m.Path
		fn(m)
	}
}

// declare records name in namespace ns and reports whether it is new.
// Duplicates within one file are reported by manifest validation.
func (r *resolver) declare(ns string, name manifest.Text) bool {
	files, ok := r.seen[ns]
	if !ok {
		files = make(map[string]string)
		r.seen[ns] = files
	}
	first, dup := files[name.Value]
	if !dup {
		files[name.Value] = r.file
		return true
	}
	if first != r.file {
		r.errorf("", name, "duplicate %s %q (first declared in %s)", ns, name.Value, first)
	}
	return false
}

func (r *resolver) errorf(item string, at manifest.Text, format string, args ...any) {
	r.diags.Add(diagnostic.Diagnostic{
		Severity: diagnostic.Error,
		Message:  fmt.Sprintf(format, args...),
		Line:     at.Line,
		Column:   at.Column,
		File:     r.file,
		Item:     item,
	})
}

// inFile attributes whatever report adds to file
func (r *resolver) inFile(file string, report func(*diagnostic.Diagnostics)) {
	d := diagnostic.New()
	report(d)
	r.diags.MergeInFile(d, file)
}

// wfErrors reports each sort error joined into err at the given text
func (r *resolver) wfErrors(item string, at manifest.Text, err error) {
	for _, e := range splitErrors(err) {
		r.errorf(item, at, "%v", e)
	}
}

func splitErrors(err error) []error {
	var joined interface{ Unwrap() []error }
	if errors.As(err, &joined) {
		return joined.Unwrap()
	}
	return []error{err}
}

func (r *resolver) parser(t manifest.Text, env parser.Env) *parser.Parser {
	return parser.NewAt(r.prog.arena, env, t.Value, t.Line, t.Column)
}

// absorb takes over the diagnostics of p
func (r *resolver) absorb(p *parser.Parser) {
	r.diags.MergeInFile(p.Diagnostics(), r.file)
}

func (r *resolver) sort(t manifest.Text) (rty.Sort, bool) {
	p := r.parser(t, parser.Env{})
	s, ok := p.ParseSort()
	r.absorb(p)
	return s, ok
}

func (r *resolver) sorts(ts []manifest.Text) ([]rty.Sort, bool) {
	out := make([]rty.Sort, 0, len(ts))
	valid := true
	for _, t := range ts {
		s, ok := r.sort(t)
		valid = valid && ok
		out = append(out, s)
	}
	return out, valid
}

func (r *resolver) adt(d *manifest.AdtDecl) {
	if !r.declare("adt", d.Name) {
		return
	}
	sorts, ok := r.sorts(d.Sorts)
	if !ok {
		return
	}
	def := &rty.AdtDef{ID: rty.AdtID(len(r.prog.adts)), Name: d.Name.Value, Sorts: sorts}
	r.prog.adts[def.Name] = def
	r.prog.Session.DeclareAdt(def)
}

// constSort declares the sort of a constant and returns the step that
// parses its value, if it has one
func (r *resolver) constSort(d *manifest.ConstDecl) func() {
	if !r.declare("global", d.Name) {
		return nil
	}
	sort, ok := r.sort(d.Sort)
	if !ok {
		return nil
	}
	r.prog.consts[d.Name.Value] = sort
	decl := verify.ConstDecl{Name: d.Name.Value, Sort: sort}
	if !d.Value.Set() {
		r.prog.Session.DeclareConst(decl)
		return nil
	}
	file := r.file
	return func() {
		r.file = file
		p := r.parser(d.Value, parser.Env{Consts: r.prog.consts})
		v, ok := p.ParseExpr()
		r.absorb(p)
		if !ok {
			return
		}
		got, err := wf.NewChecker(r.prog.Session.Globals()).InferSort(v)
		if err != nil {
			r.wfErrors("", d.Value, err)
			return
		}
		if !got.Equal(sort) {
			r.errorf("", d.Value, "constant %s has sort `%s` but its value has sort `%s`", decl.Name, sort, got)
			return
		}
		decl.Value = v
		r.prog.Session.DeclareConst(decl)
	}
}

func (r *resolver) uif(d *manifest.UifDecl) {
	if !r.declare("global", d.Name) {
		return
	}
	inputs, ok := r.sorts(d.Args)
	out, okOut := r.sort(d.Sort)
	if !ok || !okOut {
		return
	}
	r.prog.Session.DeclareUif(rty.UifDef{Name: d.Name.Value, Inputs: inputs, Output: out})
}

func (r *resolver) qualifier(d *manifest.QualifierDecl) {
	if !r.declare("qualifier", d.Name) {
		return
	}
	use := &qualUse{decl: d, file: r.file}
	r.quals[d.Name.Value] = use
	r.order = append(r.order, use)
	env := parser.Env{
		Consts: r.prog.consts,
		Names:  make(map[string]*rty.Expr, len(d.Args)),
		Sorts:  make(map[string]rty.Sort, len(d.Args)),
	}
	sorts := wf.NewChecker(r.prog.Session.Globals())
	args := make([]rty.Param, len(d.Args))
	for i, arg := range d.Args {
		s, ok := r.sort(arg.Sort)
		if !ok {
			return
		}
		args[i] = rty.Param{Name: rty.Name(i), Sort: s}
		env.Names[arg.Name.Value] = r.prog.arena.FVar(args[i].Name)
		env.Sorts[arg.Name.Value] = s
		sorts.Bind(args[i].Name, s)
	}
	p := r.parser(d.Body, env)
	body, ok := p.ParseExpr()
	r.absorb(p)
	if !ok {
		return
	}
	if err := sorts.CheckPred(body); err != nil {
		r.wfErrors("", d.Body, err)
		return
	}
	r.prog.Session.AddQualifier(rty.Qualifier{
		Name:   d.Name.Value,
		Args:   args,
		Expr:   body,
		Global: d.Global,
	})
}

func (r *resolver) fn(d *manifest.FnDecl) {
	if !r.declare("fn", d.Name) {
		return
	}
	r.selectQualifiers(d)
	p := r.parser(d.Sig, parser.Env{
		Adts:     r.prog.adts,
		Consts:   r.prog.consts,
		Generics: d.Generics,
	})
	sig, names, ok := p.ParseNamedFnSig()
	for _, diag := range p.Diagnostics().All() {
		diag.File, diag.Item = r.file, d.Name.Value
		r.diags.Add(diag)
	}
	if !ok {
		return
	}
	if err := wf.CheckFnSig(r.prog.Session.Globals(), sig); err != nil {
		r.wfErrors(d.Name.Value, d.Sig, err)
		return
	}
	fn := &Fn{Name: d.Name.Value, File: r.file, Decl: d, Sig: sig, ParamNames: names}
	r.prog.Fns = append(r.prog.Fns, fn)
	r.prog.byName[fn.Name] = fn
	r.prog.Session.DeclareFn(fn.Name, sig)
}

// selectQualifiers offers the qualifiers d lists to its function
func (r *resolver) selectQualifiers(d *manifest.FnDecl) {
	names := make([]string, 0, len(d.Qualifiers))
	r.inFile(r.file, func(diags *diagnostic.Diagnostics) {
		for _, q := range d.Qualifiers {
			use, ok := r.quals[q.Value]
			if !ok {
				diags.ErrorWithHint(q.Line, q.Column, fmt.Sprintf("unknown qualifier %q", q.Value), r.qualifierHint())
				continue
			}
			use.used = true
			if use.decl.Global {
				diags.Warningf(q.Line, q.Column, "qualifier %s is global and need not be listed", q.Value)
				continue
			}
			names = append(names, q.Value)
		}
	})
	r.prog.Session.SelectQualifiers(d.Name.Value, names...)
}

func (r *resolver) qualifierHint() string {
	if len(r.quals) == 0 {
		return "declare it under qualifiers"
	}
	return "declared qualifiers: " + strings.Join(slices.Sorted(maps.Keys(r.quals)), ", ")
}
