// Package driver runs manifests through the checking pipeline: discover
// included manifests, resolve declarations into a session, check
// well-formedness, run function bodies, solve and report.
package driver

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/lhaig/refine/internal/config"
	"github.com/lhaig/refine/internal/diagnostic"
	"github.com/lhaig/refine/internal/fixpoint"
	"github.com/lhaig/refine/internal/logging"
	"github.com/lhaig/refine/internal/metrics"
	"github.com/lhaig/refine/internal/rty"
	"github.com/lhaig/refine/internal/verify"
)

// Result holds the output of a checking run
type Result struct {
	Diagnostics *diagnostic.Diagnostics
	Verdicts    []*verify.Verdict
	Entry       string
}

// OK reports whether every checked function is safe and nothing else went
// wrong
func (r *Result) OK() bool {
	return !r.Diagnostics.HasErrors() && verify.Worst(r.Verdicts) == fixpoint.StatusSafe
}

// Driver runs the pipeline with one configuration
type Driver struct {
	cfg     config.Config
	logger  *slog.Logger
	solver  *fixpoint.Solver
	metrics *metrics.Collectors
}

// Option configures a Driver
type Option func(*Driver)

// WithSolver replaces the solver found on PATH
func WithSolver(s *fixpoint.Solver) Option {
	return func(d *Driver) { d.solver = s }
}

// WithMetrics records into m
func WithMetrics(m *metrics.Collectors) Option {
	return func(d *Driver) { d.metrics = m }
}

// New creates a driver. A nil logger discards output.
func New(cfg config.Config, logger *slog.Logger, opts ...Option) *Driver {
	d := &Driver{cfg: cfg, logger: logger}
	for _, opt := range opts {
		opt(d)
	}
	if d.logger == nil {
		d.logger = logging.Discard()
	}
	return d
}

// Load discovers the manifest at path and everything it includes, then
// resolves them into a fresh session. The program is nil when discovery
// failed; it is partial when the diagnostics hold errors.
func (d *Driver) Load(path string) (*Program, *diagnostic.Diagnostics, error) {
	registry, err := NewRegistry(path)
	if err != nil {
		return nil, nil, err
	}
	diag, err := registry.Discover()
	if err != nil {
		return nil, diag, err
	}
	if diag.HasErrors() {
		diag.Sort()
		return nil, diag, nil
	}
	manifests, err := registry.Ordered()
	if err != nil {
		return nil, diag, err
	}
	d.logger.Debug("manifests discovered", "entry", registry.EntryPath(), "count", len(manifests))

	sess := verify.NewSession(d.cfg, d.logger, d.solver, verify.WithMetrics(d.metrics))
	prog, rdiag := Resolve(sess, manifests)
	diag.Merge(rdiag)
	return prog, diag, nil
}

// WF loads path and reports every declaration that fails to parse or is
// ill sorted. Function bodies are not run.
func (d *Driver) WF(path string) (*diagnostic.Diagnostics, error) {
	_, diag, err := d.Load(path)
	return diag, err
}

// build opens checkers for the selected functions that are not trusted
func (d *Driver) build(prog *Program, names []string) ([]*verify.FnChecker, *diagnostic.Diagnostics, error) {
	fns, err := prog.Select(names)
	if err != nil {
		return nil, nil, err
	}
	diag := diagnostic.New()
	var fcs []*verify.FnChecker
	for _, fn := range fns {
		if fn.Trusted() {
			continue
		}
		fc, fdiag := prog.Build(fn)
		diag.Merge(fdiag)
		if !fdiag.HasErrors() {
			fcs = append(fcs, fc)
		}
	}
	return fcs, diag, nil
}

// Check runs the full pipeline on the manifest at path for the named
// functions, or all of them. Unsafe functions are reported through the
// result; tool failures are errors.
func (d *Driver) Check(ctx context.Context, path string, names ...string) (*Result, error) {
	res := &Result{Entry: path, Diagnostics: diagnostic.New()}
	prog, diag, err := d.Load(path)
	if diag != nil {
		res.Diagnostics.Merge(diag)
	}
	if err != nil || prog == nil || res.Diagnostics.HasErrors() {
		return res, err
	}

	fcs, bdiag, err := d.build(prog, names)
	if err != nil {
		return res, err
	}
	res.Diagnostics.Merge(bdiag)
	if res.Diagnostics.HasErrors() {
		res.Diagnostics.Sort()
		return res, nil
	}

	verdicts, err := prog.Session.CheckAll(ctx, fcs)
	if err != nil {
		return res, err
	}
	res.Verdicts = verdicts
	for _, v := range verdicts {
		fn, _ := prog.Fn(v.Fn)
		res.Diagnostics.MergeInFile(verify.Report([]*verify.Verdict{v}), fn.File)
	}
	res.Diagnostics.Sort()
	d.logger.Info("check finished", "functions", len(verdicts), "status", verify.Worst(verdicts).String())
	return res, nil
}

// Task is the rendered solver input of one function
type Task struct {
	Fn   string
	Text string
}

// Emit renders the solver task of the named functions, or all of them,
// without running the solver
func (d *Driver) Emit(path string, names ...string) ([]Task, *diagnostic.Diagnostics, error) {
	prog, diag, err := d.Load(path)
	if err != nil || prog == nil || diag.HasErrors() {
		return nil, diag, err
	}
	fcs, bdiag, err := d.build(prog, names)
	if err != nil {
		return nil, diag, err
	}
	diag.Merge(bdiag)
	if diag.HasErrors() {
		diag.Sort()
		return nil, diag, nil
	}
	tasks := make([]Task, 0, len(fcs))
	for _, fc := range fcs {
		task, err := fc.Task()
		if err != nil {
			return nil, diag, err
		}
		tasks = append(tasks, Task{Fn: fc.Name(), Text: task.String()})
	}
	return tasks, diag, nil
}

// FnQualifiers are the qualifiers derived from one function's signature.
// Text holds each one as FormatQualifier renders it.
type FnQualifiers struct {
	Fn         string
	Qualifiers []rty.Qualifier
	Text       []string
}

// Qualifiers derives qualifiers from the signatures of the named functions,
// or all of them, trusted ones included
func (d *Driver) Qualifiers(path string, names ...string) ([]FnQualifiers, *diagnostic.Diagnostics, error) {
	prog, diag, err := d.Load(path)
	if err != nil || prog == nil || diag.HasErrors() {
		return nil, diag, err
	}
	fns, err := prog.Select(names)
	if err != nil {
		return nil, diag, err
	}
	out := make([]FnQualifiers, len(fns))
	for i, fn := range fns {
		quals := verify.DeriveQualifiers(prog.arena, fn.Sig)
		text := make([]string, len(quals))
		for j, q := range quals {
			text[j] = FormatQualifier(prog.arena, q)
		}
		out[i] = FnQualifiers{Fn: fn.Name, Qualifiers: quals, Text: text}
	}
	return out, diag, nil
}

// FormatQualifier renders a qualifier as `Name(a0: int, a1: int) = body`
func FormatQualifier(a *rty.Arena, q rty.Qualifier) string {
	var sb strings.Builder
	sb.WriteString(q.Name)
	sb.WriteString("(")
	for i, p := range q.Args {
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "%v: %v", p.Name, p.Sort)
	}
	sb.WriteString(") = ")
	sb.WriteString(rty.Display(a, q.Expr))
	return sb.String()
}
