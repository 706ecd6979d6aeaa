package rty

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
)

// LocKind says what roots a path
type LocKind uint8

const (
	LocLocal LocKind = iota
	LocFree
	LocBound
)

// Loc is the root of a path: a local slot, a free name or a bound variable.
type Loc struct {
	Kind  LocKind
	Local Local
	Name  Name
	Bound BoundVar
}

func LocalLoc(l Local) Loc     { return Loc{Kind: LocLocal, Local: l} }
func FreeLoc(n Name) Loc       { return Loc{Kind: LocFree, Name: n} }
func BoundLoc(bv BoundVar) Loc { return Loc{Kind: LocBound, Bound: bv} }

// ToExpr converts the location back to an expression
func (l Loc) ToExpr(a *Arena) *Expr {
	switch l.Kind {
	case LocLocal:
		return a.LocalVar(l.Local)
	case LocFree:
		return a.FVar(l.Name)
	default:
		return a.BVar(l.Bound)
	}
}

// Compare orders locations: locals, then free names, then bound variables.
func (l Loc) Compare(o Loc) int {
	if c := cmp.Compare(l.Kind, o.Kind); c != 0 {
		return c
	}
	switch l.Kind {
	case LocLocal:
		return cmp.Compare(l.Local, o.Local)
	case LocFree:
		return cmp.Compare(l.Name, o.Name)
	default:
		if c := cmp.Compare(l.Bound.Debruijn, o.Bound.Debruijn); c != 0 {
			return c
		}
		return cmp.Compare(l.Bound.Index, o.Bound.Index)
	}
}

func (l Loc) String() string {
	switch l.Kind {
	case LocLocal:
		return l.Local.String()
	case LocFree:
		return l.Name.String()
	default:
		return l.Bound.String()
	}
}

// Path is a location followed by field projections. Paths are values:
// compare them with Equal or Compare, not ==.
type Path struct {
	Loc  Loc
	proj []Field
}

// NewPath builds a path rooted at loc
func NewPath(loc Loc, proj ...Field) Path {
	return Path{Loc: loc, proj: slices.Clone(proj)}
}

// Projection returns the field projections from the root outward
func (p Path) Projection() []Field {
	return p.proj
}

// Field extends the path with one more projection
func (p Path) Field(f Field) Path {
	proj := make([]Field, len(p.proj), len(p.proj)+1)
	copy(proj, p.proj)
	return Path{Loc: p.Loc, proj: append(proj, f)}
}

// ToExpr converts the path into nested projection expressions
func (p Path) ToExpr(a *Arena) *Expr {
	e := p.Loc.ToExpr(a)
	for _, f := range p.proj {
		e = a.PathProj(e, f)
	}
	return e
}

func (p Path) Equal(o Path) bool {
	return p.Compare(o) == 0
}

// Compare gives paths a total order so environments iterate deterministically
func (p Path) Compare(o Path) int {
	if c := p.Loc.Compare(o.Loc); c != 0 {
		return c
	}
	return slices.Compare(p.proj, o.proj)
}

func (p Path) String() string {
	var sb strings.Builder
	sb.WriteString(p.Loc.String())
	for _, f := range p.proj {
		fmt.Fprintf(&sb, ".%d", f)
	}
	return sb.String()
}
