// Package rty defines refinement types, the refinement expressions that index
// them and the fold/visit engine used to transform both.
//
// Every Expr, BaseTy, Ty and Pred is hash-consed by an Arena: structurally
// equal values built through the same arena are the same pointer, so
// equality and hashing are O(1). Terms are immutable once built and can be
// shared between goroutines.
package rty

import (
	"github.com/lhaig/refine/internal/intern"
)

// Arena owns the interning tables for one checking session
type Arena struct {
	exprs *intern.Table[*Expr]
	btys  *intern.Table[*BaseTy]
	tys   *intern.Table[*Ty]
	preds *intern.Table[*Pred]

	tt, ff, zero, one, unit *Expr
	hole                    *Pred
}

// NewArena creates an empty arena
func NewArena() *Arena {
	a := &Arena{
		exprs: intern.NewTable[*Expr](),
		btys:  intern.NewTable[*BaseTy](),
		tys:   intern.NewTable[*Ty](),
		preds: intern.NewTable[*Pred](),
	}
	a.tt = a.Const(BoolConst(true))
	a.ff = a.Const(BoolConst(false))
	a.zero = a.Const(IntConst(0))
	a.one = a.Const(IntConst(1))
	a.unit = a.Tuple()
	a.hole = a.Hole()
	return a
}

// Size returns the number of distinct terms interned so far
func (a *Arena) Size() int {
	return a.exprs.Len() + a.btys.Len() + a.tys.Len() + a.preds.Len()
}

func exprIDs(es []*Expr) []intern.ID {
	ids := make([]intern.ID, len(es))
	for i, e := range es {
		ids[i] = e.id
	}
	return ids
}

func tyIDs(tys []*Ty) []intern.ID {
	ids := make([]intern.ID, len(tys))
	for i, t := range tys {
		ids[i] = t.id
	}
	return ids
}
