package verify

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"unicode"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/lhaig/refine/internal/fixpoint"
)

var tracer = otel.Tracer("refine.verify")

// Verdict holds the result of checking a single function
type Verdict struct {
	Fn          string
	Status      fixpoint.Status
	Stats       fixpoint.Stats
	Failures    []Tag // distinct, in source order
	Obligations int
	KVars       int
	Skipped     bool // nothing to prove, the solver was not run
}

func (v *Verdict) Safe() bool { return v.Status == fixpoint.StatusSafe }

// CheckFn lowers everything fc recorded and runs the solver on it. An
// unsafe function is a verdict, not an error; tool failures and solver
// crashes are errors.
func (s *Session) CheckFn(ctx context.Context, fc *FnChecker) (*Verdict, error) {
	ctx, span := tracer.Start(ctx, "verify.CheckFn", trace.WithAttributes(
		attribute.String("verify.fn", fc.name),
	))
	defer span.End()
	logger := s.logger.With("fn", fc.name)

	task, err := fc.Task()
	if err != nil {
		s.metrics.ObserveEpisode("error")
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	v := &Verdict{Fn: fc.name, Obligations: fc.Obligations(), KVars: fc.KVars()}
	s.metrics.AddObligations(v.Obligations)
	s.metrics.AddKVars(v.KVars)
	s.metrics.SetInternedTerms(s.arena.Size())

	if s.cfg.DumpConstraints {
		if err := s.dump(fc.name, task); err != nil {
			logger.Warn("could not dump constraints", "error", err)
		}
	}

	if task.Constraint.IsTrivial() {
		logger.Debug("nothing to prove")
		v.Status = fixpoint.StatusSafe
		v.Skipped = true
		s.metrics.ObserveEpisode("safe")
		return v, nil
	}

	res, err := fixpoint.Check(ctx, s.solver, task, ParseTag)
	if err != nil {
		var crash *fixpoint.CrashError
		if errors.As(err, &crash) {
			s.metrics.ObserveEpisode("crash")
		} else {
			s.metrics.ObserveEpisode("error")
		}
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("%s: %w", fc.name, err)
	}

	v.Status = res.Status
	v.Stats = res.Stats
	for _, e := range res.Errors {
		v.Failures = append(v.Failures, e.Tag)
	}
	slices.SortFunc(v.Failures, compareTags)
	v.Failures = slices.Compact(v.Failures)

	outcome := strings.ToLower(res.Status.String())
	s.metrics.ObserveEpisode(outcome)
	logger.Info("function checked",
		"status", outcome,
		"obligations", v.Obligations,
		"kvars", v.KVars,
		"failures", len(v.Failures),
	)
	return v, nil
}

func compareTags(a, b Tag) int {
	return cmp.Or(
		cmp.Compare(a.Line, b.Line),
		cmp.Compare(a.Column, b.Column),
		cmp.Compare(a.Reason, b.Reason),
	)
}

// CheckAll checks every function, at most cfg.Parallelism at a time. The
// first tool failure cancels the remaining checks.
func (s *Session) CheckAll(ctx context.Context, fcs []*FnChecker) ([]*Verdict, error) {
	verdicts := make([]*Verdict, len(fcs))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(s.cfg.Parallelism, 1))
	for i, fc := range fcs {
		g.Go(func() error {
			v, err := s.CheckFn(ctx, fc)
			if err != nil {
				return err
			}
			verdicts[i] = v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return verdicts, nil
}

// dump writes the task for fn under the configured dump directory
func (s *Session) dump(fn string, task *fixpoint.Task[Tag]) error {
	if err := os.MkdirAll(s.cfg.DumpDir, 0o755); err != nil {
		return err
	}
	path := filepath.Join(s.cfg.DumpDir, dumpName(fn)+".fq")
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := task.WriteTo(f); err != nil {
		f.Close()
		return err
	}
	s.logger.Debug("constraints dumped", "fn", fn, "path", path)
	return f.Close()
}

func dumpName(fn string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '-' || r == '.' {
			return r
		}
		return '_'
	}, fn)
}
