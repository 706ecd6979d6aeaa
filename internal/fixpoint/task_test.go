package fixpoint

import (
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

type intTag int

func (t intTag) String() string { return strconv.Itoa(int(t)) }

func parseIntTag(s string) (intTag, error) {
	n, err := strconv.Atoi(s)
	return intTag(n), err
}

func TestExprRendering(t *testing.T) {
	tests := []struct {
		expr *Expr
		want string
	}{
		{BinaryExpr(Add, VarExpr(0), IntExpr(-3)), "(a0 + -3)"},
		{UnaryExpr(Not, BoolExpr(false)), "(~ false)"},
		{AppExpr("len", VarExpr(1), GlobalExpr("MAX")), "(len a1 MAX)"},
		{IfThenElseExpr(VarExpr(0), IntExpr(1), IntExpr(2)), "(if a0 then 1 else 2)"},
		{TupleExpr(VarExpr(0), VarExpr(1), VarExpr(2)), "(Pair a0 (Pair a1 a2))"},
		{TupleExpr(), "Unit"},
		{TupleProjExpr(VarExpr(0), 3, 1), "(fst (snd a0))"},
		{TupleProjExpr(VarExpr(0), 3, 2), "(snd (snd a0))"},
		{BinaryExpr(Mod, VarExpr(0), IntExpr(2)), "(a0 mod 2)"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.expr.String())
		})
	}
}

func TestSortRendering(t *testing.T) {
	assert.Equal(t, "(Pair int (Pair bool Unit))", TupleSort(IntSort, BoolSort, UnitSort).String())
	assert.Equal(t, "func(0, [int; bool; int])", FuncSort([]Sort{IntSort, BoolSort}, IntSort).String())
}

func TestDefaultQualifiers(t *testing.T) {
	assert.Len(t, DefaultQualifiers, 11)
	assert.Equal(t, "(qualif EqZero ((a0 int)) ((a0 = 0)))", DefaultQualifiers[0].String())
	assert.Equal(t, "(qualif Le1 ((a0 int) (a1 int)) ((a0 < (a1 - 1))))", DefaultQualifiers[10].String())
}

func TestTaskRendering(t *testing.T) {
	task := &Task[intTag]{
		Constants: []Const{{Name: "MAX", Sort: IntSort}},
		KVars:     []KVarDecl{{ID: 0, Sorts: []Sort{IntSort, IntSort}}},
		Uifs:      []Uif{{Name: "len", Inputs: []Sort{IntSort}, Output: IntSort}},
		Qualifiers: []Qualifier{{
			Name: "Pos",
			Args: []QualifArg{{Name: 0, Sort: IntSort}},
			Body: BinaryExpr(Gt, VarExpr(0), IntExpr(0)),
		}},
		Constraint: ForAll(0, IntSort, ExprPred(BinaryExpr(Ge, VarExpr(0), IntExpr(0))),
			Conj(
				TaggedConstraint(ExprPred(BinaryExpr(Lt, VarExpr(0), GlobalExpr("MAX"))), intTag(1)),
				Guard(ExprPred(BinaryExpr(Eq, AppExpr("len", VarExpr(0)), IntExpr(3))),
					TaggedConstraint(KVarPred(0, 0, 0), intTag(2))),
			)),
	}

	want := strings.Join([]string{
		"(qualif Pos ((a0 int)) ((a0 > 0)))",
		"(data Pair 2 = [| Pair { fst: @(0), snd: @(1) } ])",
		"(data Unit 0 = [| Unit { }])",
		"(constant MAX int)",
		"(constant len func(0, [int; int]))",
		"(var $k0 ((int) (int)))",
		"",
		"(constraint",
		"  (forall ((a0 int) ((a0 >= 0)))",
		"    (and",
		`      (tag ((a0 < MAX)) "1")`,
		"      (forall ((_ Unit) (((len a0) = 3)))",
		`        (tag ($k0 a0 a0) "2")`,
		"      )",
		"    )",
		"  )",
		")",
		"",
	}, "\n")

	out := task.String()
	lines := strings.SplitN(out, "\n", len(DefaultQualifiers)+1)
	assert.Equal(t, DefaultQualifiers[0].String(), lines[0])
	assert.Equal(t, want, lines[len(DefaultQualifiers)])
	assert.Equal(t, []intTag{1, 2}, task.Constraint.Tags())
}

func TestEmptyTaskIsTrivial(t *testing.T) {
	task := &Task[intTag]{}
	assert.True(t, strings.HasSuffix(task.String(), "(constraint\n  ((true))\n)\n"))

	c := Conj(PredConstraint[intTag](ExprPred(BoolExpr(true))))
	assert.True(t, c.IsTrivial())
	assert.False(t, Conj(TaggedConstraint(ExprPred(BoolExpr(false)), intTag(0))).IsTrivial())
}
