// Package evars manages existential-variable contexts.
//
// A context is opened for one inference episode (typically one call site),
// mints fresh metavariables with their sorts, records their solutions and
// is closed explicitly when the episode ends. Contexts are registered in a
// Store owned by the checking session so that episodes running in parallel
// can find their own context by id without seeing each other's variables.
package evars

import (
	"errors"
	"fmt"
	"sync"

	"github.com/lhaig/refine/internal/rty"
)

var (
	// ErrForeignEVar is returned when an evar is used with a context that
	// did not mint it
	ErrForeignEVar = errors.New("evar belongs to another context")

	// ErrConflict is returned when an evar is solved twice with different
	// expressions
	ErrConflict = errors.New("conflicting solution for evar")

	// ErrOutOfScope is returned when a solution mentions a free name the
	// context does not have in scope
	ErrOutOfScope = errors.New("solution mentions a name out of scope")

	// ErrClosed is returned by operations on a closed context
	ErrClosed = errors.New("context is closed")
)

// Store is the registry of open contexts
type Store struct {
	mu    sync.RWMutex
	ctxts map[rty.CtxtID]*Ctxt
	next  rty.CtxtID
}

// NewStore creates an empty registry
func NewStore() *Store {
	return &Store{ctxts: make(map[rty.CtxtID]*Ctxt)}
}

// New opens a context whose solutions may mention the names in scope
func (s *Store) New(scope map[rty.Name]rty.Sort) *Ctxt {
	c := &Ctxt{
		store:     s,
		scope:     make(map[rty.Name]rty.Sort, len(scope)),
		solutions: make(map[rty.EVid]*rty.Expr),
	}
	for n, sort := range scope {
		c.scope[n] = sort
	}

	s.mu.Lock()
	s.next++
	c.id = s.next
	s.ctxts[c.id] = c
	s.mu.Unlock()
	return c
}

// Lookup finds an open context by id
func (s *Store) Lookup(id rty.CtxtID) (*Ctxt, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.ctxts[id]
	return c, ok
}

// Len returns the number of open contexts
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.ctxts)
}

// Ctxt is one existential-variable context
type Ctxt struct {
	id    rty.CtxtID
	store *Store

	mu        sync.RWMutex
	scope     map[rty.Name]rty.Sort
	evars     []rty.Sort
	solutions map[rty.EVid]*rty.Expr
	closed    bool
}

// ID returns the opaque id the context is registered under
func (c *Ctxt) ID() rty.CtxtID {
	return c.id
}

// Fresh mints a new evar of the given sort. Only this context's lock is
// taken, so unrelated contexts never contend.
func (c *Ctxt) Fresh(sort rty.Sort) rty.EVar {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		panic(fmt.Sprintf("evars: fresh variable requested from closed context %d", c.id))
	}
	ev := rty.EVar{Ctxt: c.id, ID: rty.EVid(len(c.evars))}
	c.evars = append(c.evars, sort)
	return ev
}

// Sort returns the sort an evar was minted with
func (c *Ctxt) Sort(ev rty.EVar) (rty.Sort, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if ev.Ctxt != c.id || int(ev.ID) >= len(c.evars) {
		return rty.Sort{}, false
	}
	return c.evars[ev.ID], true
}

// InScope reports the sort of an ambient name
func (c *Ctxt) InScope(n rty.Name) (rty.Sort, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.scope[n]
	return s, ok
}

// Len returns the number of evars minted so far
func (c *Ctxt) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.evars)
}

// Solve records e as the solution of ev. Solving again with the same
// expression is a no-op.
func (c *Ctxt) Solve(ev rty.EVar, e *rty.Expr) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	if ev.Ctxt != c.id || int(ev.ID) >= len(c.evars) {
		return fmt.Errorf("solve %v: %w", ev, ErrForeignEVar)
	}
	if prev, ok := c.solutions[ev.ID]; ok {
		if prev != e {
			return fmt.Errorf("solve %v with %v, already %v: %w", ev, e, prev, ErrConflict)
		}
		return nil
	}
	for _, n := range rty.FreeVars(e).Slice() {
		if _, ok := c.scope[n]; !ok {
			return fmt.Errorf("solve %v with %v: %v: %w", ev, e, n, ErrOutOfScope)
		}
	}
	c.solutions[ev.ID] = e
	return nil
}

// Solution returns the recorded solution of ev
func (c *Ctxt) Solution(ev rty.EVar) (*rty.Expr, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if ev.Ctxt != c.id {
		return nil, false
	}
	e, ok := c.solutions[ev.ID]
	return e, ok
}

// Unsolved lists the evars without a solution, in minting order
func (c *Ctxt) Unsolved() []rty.EVar {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []rty.EVar
	for i := range c.evars {
		if _, ok := c.solutions[rty.EVid(i)]; !ok {
			out = append(out, rty.EVar{Ctxt: c.id, ID: rty.EVid(i)})
		}
	}
	return out
}

// Close removes the context from its store. Both the store and the context
// are locked while the entry is removed, so no lookup, mint or read of this
// context can be in progress. Closing twice is harmless.
func (c *Ctxt) Close() {
	c.store.mu.Lock()
	defer c.store.mu.Unlock()
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	delete(c.store.ctxts, c.id)
}
