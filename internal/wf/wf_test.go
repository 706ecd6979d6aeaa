package wf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lhaig/refine/internal/rty"
)

func testGlobals() Globals {
	return Globals{
		Consts: map[string]rty.Sort{"MAX": rty.IntSort},
		Uifs: map[string]rty.UifDef{
			"len": {Name: "len", Inputs: []rty.Sort{rty.IntSort}, Output: rty.IntSort},
		},
	}
}

func TestInferSort(t *testing.T) {
	a := rty.NewArena()
	x, b := a.FVar(0), a.FVar(1)
	pair := a.Tuple(x, b)

	tests := []struct {
		name    string
		expr    *rty.Expr
		want    rty.Sort
		wantErr string
	}{
		{"arith", a.Add(x, a.One()), rty.IntSort, ""},
		{"compare with const", a.Gt(x, a.ConstRef("MAX")), rty.BoolSort, ""},
		{"uif", a.App("len", x), rty.IntSort, ""},
		{"tuple projection", a.TupleProj(pair, 1), rty.BoolSort, ""},
		{"negation", a.Not(b), rty.BoolSort, ""},
		{"if", a.IfThenElse(b, x, a.Zero()), rty.IntSort, ""},
		{"and of int", a.And(x, a.True()), rty.Sort{}, "mismatched sorts"},
		{"eq across sorts", a.Eq(x, a.True()), rty.Sort{}, "cannot compare `int` with `bool`"},
		{"neg of bool", a.Neg(b), rty.Sort{}, "cannot apply unary operator `-` to sort `bool`"},
		{"uif arity", a.App("len", x, x), rty.Sort{}, "takes 1 arguments but 2 were supplied"},
		{"uif arg sort", a.App("len", b), rty.Sort{}, "expected `int`, found `bool`"},
		{"projection out of range", a.TupleProj(pair, 2), rty.Sort{}, "out of range"},
		{"branches differ", a.IfThenElse(b, x, b), rty.Sort{}, "incompatible sorts"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewChecker(testGlobals())
			c.Bind(0, rty.IntSort)
			c.Bind(1, rty.BoolSort)

			got, err := c.InferSort(tt.expr)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "got %v", got)
		})
	}
}

func TestUnboundNames(t *testing.T) {
	a := rty.NewArena()
	c := NewChecker(testGlobals())

	for _, e := range []*rty.Expr{
		a.FVar(7),
		a.BVar(rty.Nu),
		a.ConstRef("MIN"),
		a.App("size", a.Zero()),
		a.EVarExpr(rty.EVar{Ctxt: 1, ID: 0}),
	} {
		_, err := c.InferSort(e)
		assert.ErrorIs(t, err, ErrUnbound, "%v", e)
	}

	c.EVarSort = func(rty.EVar) (rty.Sort, bool) { return rty.IntSort, true }
	s, err := c.InferSort(a.EVarExpr(rty.EVar{Ctxt: 1, ID: 0}))
	require.NoError(t, err)
	assert.True(t, s.Equal(rty.IntSort))
}

func TestCheckPred(t *testing.T) {
	a := rty.NewArena()
	c := NewChecker(testGlobals())
	c.Bind(0, rty.IntSort)

	assert.NoError(t, c.CheckPred(a.Ge(a.FVar(0), a.Zero())))
	err := c.CheckPred(a.Add(a.FVar(0), a.One()))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must be of sort `bool`, found `int`")
}

func TestCheckFnSig(t *testing.T) {
	a := rty.NewArena()
	i32 := a.IntBase(rty.I32)
	param := a.BVar(rty.InnermostVar(0))
	outerParam := a.BVar(rty.BoundVar{Debruijn: 1, Index: 0})

	good := rty.FnSig{
		Params:   []rty.Sort{rty.IntSort},
		Requires: []rty.Constr{rty.PredConstr(a.Ge(param, a.Zero()))},
		Args:     []*rty.Ty{a.IndexedBy(i32, param)},
		Ret:      a.ExistsExpr(i32, a.Gt(a.NuVar(), outerParam)),
		Ensures:  []rty.Constr{rty.PredConstr(a.Lt(param, a.ConstRef("MAX")))},
	}
	assert.NoError(t, CheckFnSig(testGlobals(), good))

	bad := rty.FnSig{
		Params:   []rty.Sort{rty.IntSort},
		Requires: []rty.Constr{rty.PredConstr(param)},
		Args:     []*rty.Ty{a.IndexedBy(i32, param)},
		Ret:      a.ExistsExpr(i32, a.Gt(a.NuVar(), a.BVar(rty.BoundVar{Debruijn: 1, Index: 5}))),
	}
	err := CheckFnSig(testGlobals(), bad)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "requires: `^0.0`: refinement predicate must be of sort `bool`")
	assert.Contains(t, err.Error(), "return:")
	assert.ErrorIs(t, err, ErrUnbound)
}

func TestCheckTyPaths(t *testing.T) {
	a := rty.NewArena()
	c := NewChecker(testGlobals())

	assert.NoError(t, c.CheckTy(a.Ptr(rty.NewPath(rty.LocalLoc(1), 0))))
	assert.ErrorIs(t, c.CheckTy(a.Ptr(rty.NewPath(rty.FreeLoc(3)))), ErrUnbound)

	c.Bind(3, rty.LocSort)
	assert.NoError(t, c.CheckTy(a.Ref(rty.Mut, a.Ptr(rty.NewPath(rty.FreeLoc(3))))))
}
