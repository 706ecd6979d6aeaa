package rty

import "fmt"

// Name is a free refinement variable. Names are unique within one checking
// episode and are handed out by a NameGen.
type Name uint32

func (n Name) String() string {
	return fmt.Sprintf("a%d", uint32(n))
}

// NameGen hands out fresh names. The zero value is ready to use.
type NameGen struct {
	next Name
}

// Fresh returns a name that has not been returned before by this generator
func (g *NameGen) Fresh() Name {
	n := g.next
	g.next++
	return n
}

// DebruijnIndex counts binders between a bound variable and the binder that
// introduces it. Innermost refers to the closest enclosing binder.
type DebruijnIndex uint32

// Innermost is the index of the closest enclosing binder
const Innermost DebruijnIndex = 0

// ShiftedIn returns the index this value has after being moved under amount
// new binders. For example, moving `a` from `for<a> fn(i32[a])` into
// `for<a> fn(for<b> fn(i32[a]))` shifts it in by one.
func (d DebruijnIndex) ShiftedIn(amount uint32) DebruijnIndex {
	return d + DebruijnIndex(amount)
}

// ShiftedOut returns the index after moving out from amount binders
func (d DebruijnIndex) ShiftedOut(amount uint32) DebruijnIndex {
	if uint32(d) < amount {
		panic(fmt.Sprintf("cannot shift debruijn index %d out by %d", d, amount))
	}
	return d - DebruijnIndex(amount)
}

// BoundVar references slot Index of the binder Debruijn levels out.
type BoundVar struct {
	Debruijn DebruijnIndex
	Index    uint32
}

// Nu is the first slot of the innermost binder, the `v` in `i32{v: v > 0}`.
var Nu = BoundVar{Debruijn: Innermost, Index: 0}

// InnermostVar returns slot index of the innermost binder
func InnermostVar(index uint32) BoundVar {
	return BoundVar{Debruijn: Innermost, Index: index}
}

func (bv BoundVar) String() string {
	return fmt.Sprintf("^%d.%d", uint32(bv.Debruijn), bv.Index)
}

// Local is a storage slot of the function being checked (argument or
// temporary). Locals root paths but never reach the solver.
type Local uint32

func (l Local) String() string {
	return fmt.Sprintf("_%d", uint32(l))
}

// Field is a projection index into a struct or tuple.
type Field uint32

// EVid identifies an existential variable within its context.
type EVid uint32

// CtxtID identifies the existential-variable context that minted an EVar.
type CtxtID uint64

// EVar is an inference metavariable: an id plus its owning context.
type EVar struct {
	Ctxt CtxtID
	ID   EVid
}

func (ev EVar) String() string {
	return fmt.Sprintf("?e%d", uint32(ev.ID))
}

// KVid identifies a k-variable within a task.
type KVid uint32

func (k KVid) String() string {
	return fmt.Sprintf("$k%d", uint32(k))
}

// ParamTy is a reference to the Index-th generic type parameter.
type ParamTy struct {
	Index uint32
	Name  string
}

func (p ParamTy) String() string {
	if p.Name != "" {
		return p.Name
	}
	return fmt.Sprintf("T%d", p.Index)
}
