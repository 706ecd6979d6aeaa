package verify

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lhaig/refine/internal/config"
	"github.com/lhaig/refine/internal/fixpoint"
	"github.com/lhaig/refine/internal/metrics"
	"github.com/lhaig/refine/internal/rty"
)

const unsafeJSON = `{"tag":"Unsafe","contents":[{"numCstr":3,"numIter":2,"numChck":3,"numVald":1},` +
	`[[1,"ret@4:5"],[2,"call@2:3"],[3,"ret@4:5"]]]}`

// checkedInc records the obligation of `inc` returning its argument unchanged
func checkedInc(s *Session, name string, line int) *FnChecker {
	a := s.Arena()
	fc := s.NewFnChecker(name, incSig(a))
	x, _ := fc.Local(1)
	_ = fc.Return(x, NewTag(ReasonRet, line, 5))
	return fc
}

func TestCheckFnSkipsTrivialTasks(t *testing.T) {
	runner := &fakeRunner{}
	s := newTestSession(t, runner, nil)
	fc := s.NewFnChecker("noop", rty.FnSig{})

	v, err := s.CheckFn(context.Background(), fc)
	require.NoError(t, err)
	assert.True(t, v.Safe())
	assert.True(t, v.Skipped)
	assert.Empty(t, runner.inputs)
}

func TestCheckFnUnsafe(t *testing.T) {
	runner := &fakeRunner{output: func(string) string { return unsafeJSON }}
	m := metrics.New()
	s := newTestSession(t, runner, nil, WithMetrics(m))
	fc := checkedInc(s, "inc", 4)

	v, err := s.CheckFn(context.Background(), fc)
	require.NoError(t, err)
	assert.Equal(t, fixpoint.StatusUnsafe, v.Status)
	assert.False(t, v.Skipped)
	assert.Equal(t, []Tag{NewTag(ReasonCall, 2, 3), NewTag(ReasonRet, 4, 5)}, v.Failures)
	assert.Equal(t, 3, v.Stats.NumCstr)
	assert.Equal(t, 1, v.Obligations)

	require.Len(t, runner.inputs, 1)
	assert.Contains(t, runner.inputs[0], `(tag ((a0 > a0)) "ret@4:5")`)

	count, err := testutil.GatherAndCount(m.Registry, "refine_episodes_total", "refine_obligations_total")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	diags := Report([]*Verdict{v})
	assert.Equal(t, 2, diags.ErrorCount())
	assert.Contains(t, diags.Format("inc.yaml"), "error[inc.yaml:2:3]: precondition might not hold (in fn inc)")
	assert.Contains(t, diags.Format("inc.yaml"), "error[inc.yaml:4:5]: postcondition might not hold (in fn inc)")

	report := FormatReport([]*Verdict{v})
	assert.Contains(t, report, "Refinement Check Report")
	assert.Contains(t, report, "UNSAFE")
	assert.Contains(t, report, "Status: 0 of 1 functions safe")
}

func TestCheckFnToolError(t *testing.T) {
	boom := errors.New("exec failed")
	s := newTestSession(t, &fakeRunner{err: boom}, nil)

	_, err := s.CheckFn(context.Background(), checkedInc(s, "inc", 4))
	require.Error(t, err)
	var toolErr *fixpoint.ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.ErrorIs(t, err, boom)
	assert.True(t, strings.HasPrefix(err.Error(), "inc: "))
}

func TestCheckFnCrash(t *testing.T) {
	runner := &fakeRunner{output: func(string) string { return `{"tag":"Crash","contents":[["boom"],"detail"]}` }}
	s := newTestSession(t, runner, nil)

	_, err := s.CheckFn(context.Background(), checkedInc(s, "inc", 4))
	var crash *fixpoint.CrashError
	assert.ErrorAs(t, err, &crash)
}

func TestCheckAll(t *testing.T) {
	runner := &fakeRunner{output: func(input string) string {
		if strings.Contains(input, `"ret@9:5"`) {
			return `{"tag":"Unsafe","contents":[{"numCstr":1,"numIter":1,"numChck":1,"numVald":0},[[1,"ret@9:5"]]]}`
		}
		return safeJSON
	}}
	s := newTestSession(t, runner, func(cfg *config.Config) { cfg.Parallelism = 2 })

	fcs := []*FnChecker{
		checkedInc(s, "a", 1),
		checkedInc(s, "b", 9),
		s.NewFnChecker("c", rty.FnSig{}),
	}
	verdicts, err := s.CheckAll(context.Background(), fcs)
	require.NoError(t, err)
	require.Len(t, verdicts, 3)

	assert.Equal(t, "a", verdicts[0].Fn)
	assert.True(t, verdicts[0].Safe())
	assert.Equal(t, "b", verdicts[1].Fn)
	assert.Equal(t, []Tag{NewTag(ReasonRet, 9, 5)}, verdicts[1].Failures)
	assert.True(t, verdicts[2].Skipped)
	assert.Equal(t, fixpoint.StatusUnsafe, Worst(verdicts))
	assert.Len(t, runner.inputs, 2)

	assert.Contains(t, FormatReport(verdicts), "Status: 2 of 3 functions safe")
}

func TestCheckAllStopsOnToolError(t *testing.T) {
	s := newTestSession(t, &fakeRunner{err: errors.New("exec failed")}, nil)
	_, err := s.CheckAll(context.Background(), []*FnChecker{checkedInc(s, "a", 1)})
	var toolErr *fixpoint.ToolError
	assert.ErrorAs(t, err, &toolErr)
}

func TestCheckFnDumpsConstraints(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "fq")
	s := newTestSession(t, nil, func(cfg *config.Config) {
		cfg.DumpConstraints = true
		cfg.DumpDir = dir
	})

	_, err := s.CheckFn(context.Background(), checkedInc(s, "mod::inc", 4))
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dir, "mod__inc.fq"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "(constraint")
}

func TestCheckFnWithFixpoint(t *testing.T) {
	if !fixpoint.Available() {
		t.Skip("fixpoint not on PATH")
	}
	s := NewSession(config.Default(), nil, nil)
	a := s.Arena()
	i32 := a.IntBase(rty.I32)

	good := s.NewFnChecker("inc", incSig(a))
	x, _ := good.Local(1)
	_, idx, _ := x.Indexed()
	require.NoError(t, good.Return(a.IndexedBy(i32, a.Add(idx[0].Expr, a.One())), NewTag(ReasonRet, 2, 1)))

	bad := checkedInc(s, "same", 7)

	verdicts, err := s.CheckAll(context.Background(), []*FnChecker{good, bad})
	require.NoError(t, err)
	assert.True(t, verdicts[0].Safe())
	assert.Equal(t, []Tag{NewTag(ReasonRet, 7, 5)}, verdicts[1].Failures)
}
