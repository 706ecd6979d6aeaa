package verify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lhaig/refine/internal/rty"
)

func TestDeriveQualifiers(t *testing.T) {
	a := rty.NewArena()
	i32 := a.IntBase(rty.I32)
	n := a.BVar(rty.InnermostVar(0))
	outer := a.BVar(rty.BoundVar{Debruijn: 1, Index: 0})

	sig := rty.FnSig{
		Params:   []rty.Sort{rty.IntSort},
		Requires: []rty.Constr{rty.PredConstr(a.Ge(n, a.Zero()))},
		Args: []*rty.Ty{
			a.IndexedBy(i32, n),
			a.Ref(rty.Shr, a.ExistsExpr(i32, a.Gt(a.NuVar(), a.Zero()))),
		},
		Ret:     a.ExistsExpr(i32, a.Gt(a.NuVar(), outer)),
		Ensures: []rty.Constr{rty.PredConstr(a.Ge(n, a.Zero()))},
	}

	qs := DeriveQualifiers(a, sig)
	require.Len(t, qs, 3)

	one := []rty.Param{{Name: 0, Sort: rty.IntSort}}
	two := []rty.Param{{Name: 0, Sort: rty.IntSort}, {Name: 1, Sort: rty.IntSort}}

	assert.Equal(t, "Auto0", qs[0].Name)
	assert.Equal(t, one, qs[0].Args)
	assert.Equal(t, a.Gt(a.FVar(0), a.Zero()), qs[0].Expr)

	assert.Equal(t, "Auto1", qs[1].Name)
	assert.Equal(t, one, qs[1].Args)
	assert.Equal(t, a.Ge(a.FVar(0), a.Zero()), qs[1].Expr)

	assert.Equal(t, "Auto2", qs[2].Name)
	assert.Equal(t, two, qs[2].Args)
	assert.Equal(t, a.Gt(a.FVar(1), a.FVar(0)), qs[2].Expr, "the ambient n is a0, the bound v is a1")
}

func TestDeriveQualifiersOrdersAmbientFirst(t *testing.T) {
	a := rty.NewArena()
	outer := func(i uint32) *rty.Expr { return a.BVar(rty.BoundVar{Debruijn: 1, Index: i}) }

	// for<n: int, b: bool> fn() -> (i32, bool){v, w: v < n && w = b}
	pair := a.AdtBase(&rty.AdtDef{ID: 1, Name: "P", Sorts: []rty.Sort{rty.IntSort, rty.BoolSort}})
	body := a.And(
		a.Lt(a.BVar(rty.InnermostVar(0)), outer(0)),
		a.Eq(a.BVar(rty.InnermostVar(1)), outer(1)),
	)
	sig := rty.FnSig{
		Params: []rty.Sort{rty.IntSort, rty.BoolSort},
		Ret:    a.Exists(pair, rty.NewBinders(a.PredExpr(body), pair.Sorts())),
	}

	qs := DeriveQualifiers(a, sig)
	require.Len(t, qs, 1)
	assert.Equal(t, []rty.Param{
		{Name: 0, Sort: rty.IntSort},
		{Name: 1, Sort: rty.BoolSort},
		{Name: 2, Sort: rty.IntSort},
		{Name: 3, Sort: rty.BoolSort},
	}, qs[0].Args)
	assert.Equal(t, "a2 < a0 && a3 = a1", qs[0].Expr.String())
}

func TestDeriveQualifiersSkipsUnusable(t *testing.T) {
	a := rty.NewArena()
	i32 := a.IntBase(rty.I32)

	sig := rty.FnSig{
		Requires: []rty.Constr{
			rty.PredConstr(a.True()),
			rty.PredConstr(a.Gt(a.ConstRef("MAX"), a.Zero())),
		},
		Args: []*rty.Ty{
			a.ExistsExpr(i32, a.Eq(a.NuVar(), a.LocalVar(1))),
			a.Exists(i32, rty.NewBinders(a.Hole(), []rty.Sort{rty.IntSort})),
			a.Unrefined(i32),
		},
	}
	assert.Empty(t, DeriveQualifiers(a, sig))
}
