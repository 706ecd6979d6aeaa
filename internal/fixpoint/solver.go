package fixpoint

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/lhaig/refine/internal/logging"
	"github.com/lhaig/refine/internal/metrics"
)

// Executable is the solver binary looked up on PATH
const Executable = "fixpoint"

// Args make the solver quiet, read the task from stdin and print its
// verdict as JSON
var Args = []string{"-q", "--stdin", "--json"}

var tracer = otel.Tracer("refine.fixpoint")

// ErrSolverNotFound is returned when the solver binary is not on PATH
var ErrSolverNotFound = errors.New("fixpoint executable not found on PATH")

// Stage is a step of one solver invocation
type Stage uint8

const (
	StageIdle Stage = iota
	StageSerializing
	StageRunning
	StageAwaitingOutput
	StageParse
	StageParsed
	StageFailed
)

var stageNames = [...]string{"idle", "serializing", "running", "awaiting-output", "parse", "parsed", "failed"}

func (s Stage) String() string { return stageNames[s] }

// ToolError is a failure of the solver as a tool, as opposed to a verdict.
// Stage is the step that failed.
type ToolError struct {
	Stage Stage
	Err   error
}

func (e *ToolError) Error() string {
	return fmt.Sprintf("fixpoint (%s): %v", e.Stage, e.Err)
}

func (e *ToolError) Unwrap() error {
	return e.Err
}

// CrashError reports that the solver ran but declared a crash
type CrashError struct {
	Info CrashInfo
}

func (e *CrashError) Error() string {
	return fmt.Sprintf("fixpoint crashed: [%s]", e.Info)
}

// Runner executes the solver with the rendered task on stdin and returns
// its stdout
type Runner interface {
	Run(ctx context.Context, stdin io.Reader) ([]byte, error)
}

// ExecRunner runs the solver binary found on PATH. The solver's stderr is
// discarded.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, stdin io.Reader) ([]byte, error) {
	path, err := exec.LookPath(Executable)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSolverNotFound, err)
	}

	cmd := exec.CommandContext(ctx, path, Args...)
	cmd.Stdin = stdin

	var stdout bytes.Buffer
	cmd.Stdout = &stdout

	if err := cmd.Run(); err != nil {
		// fixpoint exits non-zero on Unsafe but still prints a verdict
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && stdout.Len() > 0 {
			return stdout.Bytes(), nil
		}
		return nil, err
	}
	return stdout.Bytes(), nil
}

// Available reports whether the solver binary is on PATH
func Available() bool {
	_, err := exec.LookPath(Executable)
	return err == nil
}

// Solver invokes the external solver. It is safe for concurrent use; each
// invocation tracks its own stage.
type Solver struct {
	runner  Runner
	logger  *slog.Logger
	metrics *metrics.Collectors
}

// Option configures a Solver
type Option func(*Solver)

// WithRunner replaces the subprocess runner, typically with a fake in tests
func WithRunner(r Runner) Option {
	return func(s *Solver) { s.runner = r }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Solver) { s.logger = l }
}

func WithMetrics(m *metrics.Collectors) Option {
	return func(s *Solver) { s.metrics = m }
}

// NewSolver builds a solver that runs the fixpoint binary unless a runner
// is supplied
func NewSolver(opts ...Option) *Solver {
	s := &Solver{runner: ExecRunner{}, logger: logging.Discard()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type invocation struct {
	stage  Stage
	logger *slog.Logger
	span   trace.Span
}

func (inv *invocation) advance(to Stage) {
	inv.logger.Debug("solver stage", "from", inv.stage.String(), "to", to.String())
	inv.span.AddEvent(to.String())
	inv.stage = to
}

func (inv *invocation) fail(err error) error {
	failedAt := inv.stage
	inv.advance(StageFailed)
	inv.span.RecordError(err)
	inv.span.SetStatus(codes.Error, err.Error())
	return &ToolError{Stage: failedAt, Err: err}
}

// Run serializes task, feeds it to the solver and returns the raw output.
// There is no timeout beyond ctx.
func (s *Solver) Run(ctx context.Context, task io.WriterTo) ([]byte, error) {
	ctx, span := tracer.Start(ctx, "fixpoint.Run")
	defer span.End()
	inv := &invocation{logger: s.logger, span: span}
	return s.run(ctx, inv, task)
}

func (s *Solver) run(ctx context.Context, inv *invocation, task io.WriterTo) ([]byte, error) {
	inv.advance(StageSerializing)
	var input bytes.Buffer
	if _, err := task.WriteTo(&input); err != nil {
		return nil, inv.fail(err)
	}
	inv.span.SetAttributes(attribute.Int("fixpoint.input_bytes", input.Len()))

	inv.advance(StageRunning)
	out, err := s.runner.Run(ctx, &input)
	if err != nil {
		return nil, inv.fail(err)
	}

	inv.advance(StageAwaitingOutput)
	if len(bytes.TrimSpace(out)) == 0 {
		return nil, inv.fail(fmt.Errorf("%w: empty output", ErrMalformedResult))
	}
	return out, nil
}

// Check runs task through the solver and decodes the verdict, converting
// failure tags with parseTag. Unsafe is a verdict and returns no error;
// tool failures return *ToolError and a reported crash returns *CrashError.
func Check[T Tag](ctx context.Context, s *Solver, task *Task[T], parseTag func(string) (T, error)) (*Result[T], error) {
	ctx, span := tracer.Start(ctx, "fixpoint.Check", trace.WithAttributes(
		attribute.Int("fixpoint.kvars", len(task.KVars)),
		attribute.Int("fixpoint.qualifiers", len(task.Qualifiers)),
	))
	defer span.End()

	start := time.Now()
	inv := &invocation{logger: s.logger, span: span}

	out, err := s.run(ctx, inv, task)
	if err != nil {
		s.metrics.ObserveSolve("error", time.Since(start))
		return nil, err
	}

	inv.advance(StageParse)
	res, err := ParseResult(out, parseTag)
	if err != nil {
		s.metrics.ObserveSolve("error", time.Since(start))
		return nil, inv.fail(err)
	}
	inv.advance(StageParsed)

	verdict := strings.ToLower(res.Status.String())
	s.metrics.ObserveSolve(verdict, time.Since(start))
	span.SetAttributes(
		attribute.String("fixpoint.verdict", verdict),
		attribute.Int("fixpoint.failures", len(res.Errors)),
	)
	s.logger.Info("solver verdict",
		"verdict", res.Status.String(),
		"constraints", res.Stats.NumCstr,
		"iterations", res.Stats.NumIter,
		"failures", len(res.Errors),
		"elapsed", time.Since(start),
	)

	if res.Status == StatusCrash {
		err := &CrashError{Info: res.Crash}
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return res, nil
}
