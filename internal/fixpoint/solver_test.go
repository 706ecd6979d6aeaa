package fixpoint

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lhaig/refine/internal/metrics"
)

type fakeRunner struct {
	input  string
	output string
	err    error
}

func (f *fakeRunner) Run(_ context.Context, stdin io.Reader) ([]byte, error) {
	data, err := io.ReadAll(stdin)
	if err != nil {
		return nil, err
	}
	f.input = string(data)
	if f.err != nil {
		return nil, f.err
	}
	return []byte(f.output), nil
}

const safeJSON = `{"tag":"Safe","contents":{"numCstr":1,"numIter":0,"numChck":0,"numVald":0}}`

func TestParseResult(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		status   Status
		failures []intTag
		wantErr  error
	}{
		{"safe", safeJSON, StatusSafe, nil, nil},
		{
			"unsafe",
			`{"tag":"Unsafe","contents":[{"numCstr":2,"numIter":1,"numChck":2,"numVald":1},[[1,"42"]]]}`,
			StatusUnsafe, []intTag{42}, nil,
		},
		{"crash", `{"tag":"Crash","contents":[["boom"],"detail"]}`, StatusCrash, nil, nil},
		{"extra stats fields", `{"tag":"Safe","contents":{"numCstr":1,"numIter":0,"numChck":0,"numVald":0,"elapsed":3}}`, StatusSafe, nil, nil},
		{"bad tag", `{"tag":"Unsafe","contents":[{"numCstr":1,"numIter":1,"numChck":1,"numVald":0},[[1,"forty-two"]]]}`, 0, nil, ErrBadTag},
		{"missing stats", `{"tag":"Safe","contents":{"numCstr":1}}`, 0, nil, ErrMalformedResult},
		{"unknown tag", `{"tag":"Maybe","contents":{}}`, 0, nil, ErrMalformedResult},
		{"not json", `Safe`, 0, nil, ErrMalformedResult},
		{"no contents", `{"tag":"Safe"}`, 0, nil, ErrMalformedResult},
		{"short error entry", `{"tag":"Unsafe","contents":[{"numCstr":1,"numIter":1,"numChck":1,"numVald":0},[[1]]]}`, 0, nil, ErrMalformedResult},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := ParseResult([]byte(tt.input), parseIntTag)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, res)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.status, res.Status)
			var tags []intTag
			for _, e := range res.Errors {
				tags = append(tags, e.Tag)
			}
			assert.Equal(t, tt.failures, tags)
		})
	}
}

func TestCheckTrivialTaskIsSafe(t *testing.T) {
	runner := &fakeRunner{output: safeJSON}
	m := metrics.New()
	solver := NewSolver(WithRunner(runner), WithMetrics(m))

	res, err := Check(context.Background(), solver, &Task[intTag]{}, parseIntTag)
	require.NoError(t, err)
	assert.True(t, res.IsSafe())
	assert.Empty(t, res.Errors)
	assert.Contains(t, runner.input, "((true))")
}

func TestCheckUnsafe(t *testing.T) {
	runner := &fakeRunner{output: `{"tag":"Unsafe","contents":[{"numCstr":1,"numIter":1,"numChck":1,"numVald":0},[[0,"42"]]]}`}
	solver := NewSolver(WithRunner(runner))
	task := &Task[intTag]{Constraint: TaggedConstraint(ExprPred(BoolExpr(false)), intTag(42))}

	res, err := Check(context.Background(), solver, task, parseIntTag)
	require.NoError(t, err)
	assert.Equal(t, StatusUnsafe, res.Status)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, intTag(42), res.Errors[0].Tag)
	assert.Contains(t, runner.input, `(tag ((false)) "42")`)
}

func TestCheckFailures(t *testing.T) {
	tests := []struct {
		name      string
		runner    *fakeRunner
		wantStage Stage
		wantErr   error
	}{
		{"solver missing", &fakeRunner{err: ErrSolverNotFound}, StageRunning, ErrSolverNotFound},
		{"empty output", &fakeRunner{output: "  \n"}, StageAwaitingOutput, ErrMalformedResult},
		{"garbage", &fakeRunner{output: "segfault"}, StageParse, ErrMalformedResult},
		{"bad tag", &fakeRunner{output: `{"tag":"Unsafe","contents":[{"numCstr":1,"numIter":1,"numChck":1,"numVald":0},[[0,"x"]]]}`}, StageParse, ErrBadTag},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			solver := NewSolver(WithRunner(tt.runner))
			res, err := Check(context.Background(), solver, &Task[intTag]{}, parseIntTag)
			assert.Nil(t, res)
			var toolErr *ToolError
			require.True(t, errors.As(err, &toolErr))
			assert.Equal(t, tt.wantStage, toolErr.Stage)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestCheckCrash(t *testing.T) {
	solver := NewSolver(WithRunner(&fakeRunner{output: `{"tag":"Crash","contents":[[],"out of memory"]}`}))
	_, err := Check(context.Background(), solver, &Task[intTag]{}, parseIntTag)

	var crash *CrashError
	require.True(t, errors.As(err, &crash))
	assert.Len(t, crash.Info, 2)
	assert.True(t, strings.Contains(err.Error(), "out of memory"))
}

func TestFixpointIntegration(t *testing.T) {
	if !Available() {
		t.Skip("fixpoint not found on PATH, skipping integration test")
	}
	solver := NewSolver()

	res, err := Check(context.Background(), solver, &Task[intTag]{}, parseIntTag)
	require.NoError(t, err)
	assert.True(t, res.IsSafe())

	task := &Task[intTag]{Constraint: TaggedConstraint(ExprPred(BoolExpr(false)), intTag(42))}
	res, err = Check(context.Background(), solver, task, parseIntTag)
	require.NoError(t, err)
	assert.Equal(t, StatusUnsafe, res.Status)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, intTag(42), res.Errors[0].Tag)
}
