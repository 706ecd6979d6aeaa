package driver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lhaig/refine/internal/config"
	"github.com/lhaig/refine/internal/fixpoint"
	"github.com/lhaig/refine/internal/verify"
)

const safeJSON = `{"tag":"Safe","contents":{"numCstr":3,"numIter":1,"numChck":3,"numVald":3}}`

type fakeRunner struct {
	mu     sync.Mutex
	inputs []string
	output string
	err    error
}

func (f *fakeRunner) Run(_ context.Context, stdin io.Reader) ([]byte, error) {
	data, err := io.ReadAll(stdin)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inputs = append(f.inputs, string(data))
	if f.err != nil {
		return nil, f.err
	}
	if f.output == "" {
		return []byte(safeJSON), nil
	}
	return []byte(f.output), nil
}

const twice = `consts:
  - name: MAX
    sort: int
    value: "100"
fns:
  - name: inc
    sig: "for<n: int> fn(i32[n]) -> i32[n + 1] requires n < MAX"
    trusted: true
  - name: twice
    sig: "for<n: int> fn(i32[n]) -> i32{v: v > n} requires n >= 0, n < 50"
    body:
      - call: inc
        args: [_1]
        into: _2
      - call: inc
        args: [_2]
        into: _3
      - return: _3
`

func writeManifest(t *testing.T, dir, name, src string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(src), 0o644))
	return path
}

func newDriver(runner fixpoint.Runner, edit func(*config.Config)) *Driver {
	cfg := config.Default()
	if edit != nil {
		edit(&cfg)
	}
	return New(cfg, nil, WithSolver(fixpoint.NewSolver(fixpoint.WithRunner(runner))))
}

func TestCheckSafe(t *testing.T) {
	runner := &fakeRunner{}
	path := writeManifest(t, t.TempDir(), "main.yaml", twice)

	res, err := newDriver(runner, nil).Check(context.Background(), path)
	require.NoError(t, err)
	assert.True(t, res.OK(), res.Diagnostics.Format(path))
	require.Len(t, res.Verdicts, 1)
	assert.Equal(t, "twice", res.Verdicts[0].Fn)
	assert.False(t, res.Verdicts[0].Skipped)

	require.Len(t, runner.inputs, 1)
	input := runner.inputs[0]
	assert.Contains(t, input, "(constant MAX int)")
	assert.Contains(t, input, `"call@12:9"`)
	assert.Contains(t, input, `"call@15:9"`)
	assert.Contains(t, input, `"ret@18:9"`)
}

func TestCheckUnsafeReportsPositions(t *testing.T) {
	runner := &fakeRunner{output: `{"tag":"Unsafe","contents":[{"numCstr":3,"numIter":1,"numChck":3,"numVald":2},[[1,"call@15:9"]]]}`}
	path := writeManifest(t, t.TempDir(), "main.yaml", twice)

	res, err := newDriver(runner, nil).Check(context.Background(), path)
	require.NoError(t, err)
	assert.False(t, res.OK())
	assert.Equal(t, fixpoint.StatusUnsafe, verify.Worst(res.Verdicts))
	assert.Equal(t, "error["+path+":15:9]: precondition might not hold (in fn twice)", res.Diagnostics.Format("ignored"))
}

func TestCheckToolFailure(t *testing.T) {
	boom := errors.New("boom")
	path := writeManifest(t, t.TempDir(), "main.yaml", twice)

	_, err := newDriver(&fakeRunner{err: boom}, nil).Check(context.Background(), path)
	require.Error(t, err)
	var tool *fixpoint.ToolError
	assert.True(t, errors.As(err, &tool))
}

func TestCheckSelectedFunctions(t *testing.T) {
	path := writeManifest(t, t.TempDir(), "main.yaml", twice)
	d := newDriver(&fakeRunner{}, nil)

	res, err := d.Check(context.Background(), path, "inc")
	require.NoError(t, err)
	assert.Empty(t, res.Verdicts)

	_, err = d.Check(context.Background(), path, "thrice")
	assert.ErrorContains(t, err, `unknown function "thrice"`)
}

func TestCheckReportsBodyErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{
			"unbound name",
			"      - assert: m > 0\n",
			`unbound name "m"`,
		},
		{
			"ill sorted predicate",
			"      - check: n + 1\n",
			"must be of sort `bool`",
		},
		{
			"unknown reason",
			"      - check: n > 0\n        reason: vibes\n",
			`unknown reason "vibes"`,
		},
		{
			"unknown callee",
			"      - call: dec\n        args: [_1]\n",
			"call to dec: unknown function",
		},
		{
			"missing place",
			"      - return: _4\n",
			"no type at _4",
		},
		{
			"step after return",
			"      - return: _1\n      - assume: true\n",
			"step after return",
		},
		{
			"no return",
			"      - assume: n > 0\n",
			"function body does not return",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := "fns:\n  - name: f\n    sig: \"for<n: int> fn(i32[n]) -> i32[n]\"\n    body:\n" + tt.body
			path := writeManifest(t, t.TempDir(), "main.yaml", src)
			runner := &fakeRunner{}

			res, err := newDriver(runner, nil).Check(context.Background(), path)
			require.NoError(t, err)
			require.True(t, res.Diagnostics.HasErrors())
			assert.Contains(t, res.Diagnostics.Format(path), tt.want)
			assert.Contains(t, res.Diagnostics.Format(path), "(in fn f)")
			assert.Empty(t, runner.inputs)
		})
	}
}

func TestCheckBranches(t *testing.T) {
	src := `fns:
  - name: abs
    sig: "for<n: int> fn(i32[n]) -> i32{v: v >= 0}"
    body:
      - let: x
        from: _1
      - if: x < 0
        then:
          - return: "i32[0 - x]"
        else:
          - check: x >= 0
            reason: other
          - return: _1
`
	runner := &fakeRunner{}
	path := writeManifest(t, t.TempDir(), "main.yaml", src)

	res, err := newDriver(runner, nil).Check(context.Background(), path)
	require.NoError(t, err)
	assert.True(t, res.OK(), res.Diagnostics.Format(path))

	require.Len(t, runner.inputs, 1)
	input := runner.inputs[0]
	assert.Contains(t, input, "(~ ")
	assert.Contains(t, input, `"ret@9:13"`)
	assert.Contains(t, input, `"other@11:13"`)
	assert.Contains(t, input, `"ret@13:13"`)
}

func TestAssertModes(t *testing.T) {
	src := `fns:
  - name: f
    sig: "for<n: int> fn(i32[n])"
    body:
      - assert: n > 0
      - check: n > 1
`
	path := writeManifest(t, t.TempDir(), "main.yaml", src)

	for mode, want := range map[config.CheckMode]bool{
		config.CheckAsserts:  true,
		config.AssumeAsserts: false,
		config.IgnoreAsserts: false,
	} {
		t.Run(string(mode), func(t *testing.T) {
			d := newDriver(&fakeRunner{}, func(c *config.Config) { c.CheckAsserts = mode })
			tasks, diag, err := d.Emit(path)
			require.NoError(t, err)
			require.False(t, diag.HasErrors(), diag.Format(path))
			require.Len(t, tasks, 1)
			assert.Equal(t, want, strings.Contains(tasks[0].Text, `"assert@5:9"`))
			assert.Contains(t, tasks[0].Text, `"other@6:9"`)
		})
	}
}

func TestEmit(t *testing.T) {
	path := writeManifest(t, t.TempDir(), "main.yaml", twice)
	runner := &fakeRunner{}

	tasks, diag, err := newDriver(runner, nil).Emit(path)
	require.NoError(t, err)
	assert.False(t, diag.HasErrors())
	require.Len(t, tasks, 1)
	assert.Equal(t, "twice", tasks[0].Fn)
	assert.True(t, strings.HasSuffix(tasks[0].Text, ")\n"))
	assert.Contains(t, tasks[0].Text, "(constraint\n")
	assert.Empty(t, runner.inputs)
}

func TestQualifiers(t *testing.T) {
	path := writeManifest(t, t.TempDir(), "main.yaml", twice)

	quals, diag, err := newDriver(&fakeRunner{}, nil).Qualifiers(path, "twice")
	require.NoError(t, err)
	assert.False(t, diag.HasErrors())
	require.Len(t, quals, 1)
	assert.Equal(t, "twice", quals[0].Fn)
	require.NotEmpty(t, quals[0].Qualifiers)
	require.Len(t, quals[0].Text, len(quals[0].Qualifiers))
	for _, q := range quals[0].Text {
		assert.True(t, strings.HasPrefix(q, "Auto"), q)
	}
	assert.Contains(t, quals[0].Text, "Auto2(a0: int, a1: int) = a1 > a0")
}

func TestQualifierSelection(t *testing.T) {
	src := `qualifiers:
  - name: Pos
    args: [{name: x, sort: int}]
    body: x > 0
    global: true
  - name: Small
    args: [{name: x, sort: int}]
    body: x < 10
  - name: Unused
    args: [{name: x, sort: int}]
    body: x = 3
fns:
  - name: f
    sig: "fn(i32{v: v > 0})"
    qualifiers: [Small, Pos, Big]
    body:
      - assume: true
  - name: g
    sig: "fn(i32{v: v > 0})"
    body:
      - assume: true
`
	path := writeManifest(t, t.TempDir(), "main.yaml", src)
	diag, err := newDriver(&fakeRunner{}, nil).WF(path)
	require.NoError(t, err)
	out := diag.Format(path)
	assert.Equal(t, 1, diag.ErrorCount(), out)
	assert.Contains(t, out, "15:30]: unknown qualifier \"Big\"\n  hint: declared qualifiers: Pos, Small, Unused")
	assert.Contains(t, out, "warning[")
	assert.Contains(t, out, "15:25]: qualifier Pos is global and need not be listed")
	assert.Contains(t, out, "9:11]: qualifier Unused is not global and no function lists it")
	assert.NotContains(t, out, "qualifier Small is not global")
}

func TestSelectedQualifiersReachTasks(t *testing.T) {
	src := `qualifiers:
  - name: Pos
    args: [{name: x, sort: int}]
    body: x > 0
    global: true
  - name: Small
    args: [{name: x, sort: int}]
    body: x < 10
fns:
  - name: f
    sig: "fn(i32{v: v > 0})"
    qualifiers: [Small]
    body:
      - assume: true
  - name: g
    sig: "fn(i32{v: v > 0})"
    body:
      - assume: true
`
	path := writeManifest(t, t.TempDir(), "main.yaml", src)
	d := newDriver(&fakeRunner{}, func(cfg *config.Config) { cfg.DeriveQualifiers = false })
	tasks, diag, err := d.Emit(path)
	require.NoError(t, err)
	require.False(t, diag.HasErrors(), diag.Format(path))
	require.Len(t, tasks, 2)
	assert.Equal(t, "f", tasks[0].Fn)
	assert.Contains(t, tasks[0].Text, "(qualif Pos ")
	assert.Contains(t, tasks[0].Text, "(qualif Small ")
	assert.Contains(t, tasks[1].Text, "(qualif Pos ")
	assert.NotContains(t, tasks[1].Text, "(qualif Small ")
}

func TestWF(t *testing.T) {
	src := `adts:
  - name: Vec
    sorts: [int]
consts:
  - name: LIMIT
    sort: bool
    value: "3"
uifs:
  - name: len
    args: [int]
    sort: int
qualifiers:
  - name: Bad
    args:
      - {name: a, sort: int}
    body: a + 1
fns:
  - name: push
    sig: "for<n: int> fn(Vec[n]) -> Vec[len(n, n)]"
    trusted: true
  - name: pop
    sig: "fn(Vec[true])"
    trusted: true
`
	path := writeManifest(t, t.TempDir(), "main.yaml", src)

	diag, err := newDriver(&fakeRunner{}, nil).WF(path)
	require.NoError(t, err)
	out := diag.Format(path)
	assert.Contains(t, out, "7:13]: constant LIMIT has sort `bool` but its value has sort `int`")
	assert.Contains(t, out, "16:11]: `a0 + 1`: refinement predicate must be of sort `bool`")
	assert.Contains(t, out, "(in fn push)")
	assert.Contains(t, out, "(in fn pop)")
	assert.Equal(t, 4, diag.ErrorCount(), out)
}

func TestIncludes(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, "lib/inc.yaml", `fns:
  - name: inc
    sig: "for<n: int> fn(i32[n]) -> i32[n + 1]"
    trusted: true
`)
	path := writeManifest(t, dir, "main.yaml", `include: [lib/inc.yaml]
fns:
  - name: add2
    sig: "for<n: int> fn(i32[n]) -> i32[n + 2]"
    body:
      - call: inc
        args: [_1]
        into: _1
      - call: inc
        args: [_1]
        into: _1
      - return: _1
`)
	runner := &fakeRunner{}

	res, err := newDriver(runner, nil).Check(context.Background(), path)
	require.NoError(t, err)
	assert.True(t, res.OK(), res.Diagnostics.Format(path))
	require.Len(t, res.Verdicts, 1)
	assert.Equal(t, "add2", res.Verdicts[0].Fn)
}

func TestDuplicateAcrossIncludes(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, "a.yaml", "fns:\n  - name: f\n    sig: fn()\n    trusted: true\n")
	path := writeManifest(t, dir, "main.yaml", "include: [a.yaml]\nfns:\n  - name: f\n    sig: fn()\n    trusted: true\n")

	diag, err := newDriver(&fakeRunner{}, nil).WF(path)
	require.NoError(t, err)
	assert.Equal(t,
		"error["+path+`:3:11]: duplicate fn "f" (first declared in `+filepath.Join(dir, "a.yaml")+")",
		diag.Format("ignored"))
}

func TestWriteResult(t *testing.T) {
	runner := &fakeRunner{output: `{"tag":"Unsafe","contents":[{"numCstr":3,"numIter":1,"numChck":3,"numVald":2},[[1,"ret@18:9"]]]}`}
	path := writeManifest(t, t.TempDir(), "main.yaml", twice)
	res, err := newDriver(runner, nil).Check(context.Background(), path)
	require.NoError(t, err)

	var text bytes.Buffer
	require.NoError(t, WriteResult(&text, res, "text"))
	assert.Contains(t, text.String(), ":18:9]: postcondition might not hold (in fn twice)")
	assert.Contains(t, text.String(), "Status: 0 of 1 functions safe")

	var out bytes.Buffer
	require.NoError(t, WriteResult(&out, res, "json"))
	var decoded jsonResult
	require.NoError(t, json.Unmarshal(out.Bytes(), &decoded))
	assert.False(t, decoded.OK)
	assert.Equal(t, "Unsafe", decoded.Status)
	require.Len(t, decoded.Functions, 1)
	assert.Equal(t, []string{"ret@18:9"}, decoded.Functions[0].Failures)
	require.Len(t, decoded.Diagnostics, 1)
	assert.Equal(t, path, decoded.Diagnostics[0].File)
	assert.Equal(t, "twice", decoded.Diagnostics[0].Fn)

	assert.ErrorContains(t, WriteResult(io.Discard, res, "sarif"), "unknown format: sarif")
}
