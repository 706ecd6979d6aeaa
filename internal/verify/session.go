// Package verify assembles refinement constraints for checked functions,
// hands them to the solver and maps the verdict back to source positions.
//
// A Session holds everything shared by the functions of one checking run:
// the term arena, the existential-variable store and the declared
// datatypes, constants, uninterpreted functions, qualifiers and callee
// signatures. Each function is checked by its own FnChecker.
package verify

import (
	"cmp"
	"log/slog"
	"maps"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/lhaig/refine/internal/config"
	"github.com/lhaig/refine/internal/evars"
	"github.com/lhaig/refine/internal/fixpoint"
	"github.com/lhaig/refine/internal/logging"
	"github.com/lhaig/refine/internal/metrics"
	"github.com/lhaig/refine/internal/rty"
	"github.com/lhaig/refine/internal/wf"
)

// ConstDecl declares a global constant. Value is optional; when set the
// solver may assume the constant equals it.
type ConstDecl struct {
	Name  string
	Sort  rty.Sort
	Value *rty.Expr
}

// Session is one checking run. Declarations must be made before functions
// are checked; checking may then proceed in parallel.
type Session struct {
	ID uuid.UUID

	arena   *rty.Arena
	evars   *evars.Store
	cfg     config.Config
	logger  *slog.Logger
	solver  *fixpoint.Solver
	metrics *metrics.Collectors

	mu         sync.RWMutex
	adts       rty.AdtTable
	consts     map[string]ConstDecl
	uifs       map[string]rty.UifDef
	qualifiers []rty.Qualifier
	selected   map[string][]string
	fns        map[string]rty.FnSig
}

// Option configures a Session
type Option func(*Session)

// WithMetrics records episode metrics into m
func WithMetrics(m *metrics.Collectors) Option {
	return func(s *Session) { s.metrics = m }
}

// WithArena shares an existing arena, typically one the manifest was
// parsed into
func WithArena(a *rty.Arena) Option {
	return func(s *Session) { s.arena = a }
}

// NewSession creates a session. A nil logger discards output and a nil
// solver runs the fixpoint binary from PATH.
func NewSession(cfg config.Config, logger *slog.Logger, solver *fixpoint.Solver, opts ...Option) *Session {
	s := &Session{
		ID:       uuid.New(),
		evars:    evars.NewStore(),
		cfg:      cfg,
		adts:     make(rty.AdtTable),
		consts:   make(map[string]ConstDecl),
		uifs:     make(map[string]rty.UifDef),
		selected: make(map[string][]string),
		fns:      make(map[string]rty.FnSig),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.arena == nil {
		s.arena = rty.NewArena()
	}
	if logger == nil {
		logger = logging.Discard()
	}
	s.logger = logger.With("session_id", s.ID.String())
	if solver == nil {
		solver = fixpoint.NewSolver(fixpoint.WithLogger(s.logger), fixpoint.WithMetrics(s.metrics))
	}
	s.solver = solver
	return s
}

func (s *Session) Arena() *rty.Arena     { return s.arena }
func (s *Session) Evars() *evars.Store   { return s.evars }
func (s *Session) Config() config.Config { return s.cfg }
func (s *Session) Logger() *slog.Logger  { return s.logger }

// DeclareAdt registers a datatype and its index sorts
func (s *Session) DeclareAdt(def *rty.AdtDef) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.adts[def.ID] = def
}

// Adts answers index sorts of declared datatypes. The table is a copy.
func (s *Session) Adts() rty.AdtSortsMap {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return maps.Clone(s.adts)
}

func (s *Session) DeclareUif(def rty.UifDef) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.uifs[def.Name] = def
}

func (s *Session) DeclareConst(c ConstDecl) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.consts[c.Name] = c
}

// AddQualifier appends a user qualifier. The default qualifiers are always
// emitted in addition to these.
func (s *Session) AddQualifier(q rty.Qualifier) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.qualifiers = append(s.qualifiers, q)
}

// SelectQualifiers offers the named non-global qualifiers to fn
func (s *Session) SelectQualifiers(fn string, names ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selected[fn] = append(s.selected[fn], names...)
}

// DeclareFn registers the signature calls to name are checked against
func (s *Session) DeclareFn(name string, sig rty.FnSig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fns[name] = sig
}

func (s *Session) fnSig(name string) (rty.FnSig, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sig, ok := s.fns[name]
	return sig, ok
}

func (s *Session) uif(name string) (rty.UifDef, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	def, ok := s.uifs[name]
	return def, ok
}

// constants lists declared constants ordered by name
func (s *Session) constants() []ConstDecl {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]ConstDecl, 0, len(s.consts))
	for _, c := range s.consts {
		out = append(out, c)
	}
	slices.SortFunc(out, func(a, b ConstDecl) int { return cmp.Compare(a.Name, b.Name) })
	return out
}

// qualifiersFor lists the global user qualifiers and those fn selected, in
// declaration order
func (s *Session) qualifiersFor(fn string) []rty.Qualifier {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []rty.Qualifier
	for _, q := range s.qualifiers {
		if q.Global || slices.Contains(s.selected[fn], q.Name) {
			out = append(out, q)
		}
	}
	return out
}

// Globals returns the sorts of declared constants and functions for well
// formedness checking
func (s *Session) Globals() wf.Globals {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g := wf.Globals{
		Consts: make(map[string]rty.Sort, len(s.consts)),
		Uifs:   make(map[string]rty.UifDef, len(s.uifs)),
	}
	for name, c := range s.consts {
		g.Consts[name] = c.Sort
	}
	for name, u := range s.uifs {
		g.Uifs[name] = u
	}
	return g
}
