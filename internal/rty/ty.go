package rty

import (
	"fmt"

	"github.com/davecgh/go-spew/spew"

	"github.com/lhaig/refine/internal/intern"
)

// IntTy is a signed machine integer width
type IntTy uint8

const (
	I8 IntTy = iota
	I16
	I32
	I64
	I128
	Isize
)

var intTyNames = [...]string{"i8", "i16", "i32", "i64", "i128", "isize"}

func (t IntTy) String() string { return intTyNames[t] }

// UintTy is an unsigned machine integer width
type UintTy uint8

const (
	U8 UintTy = iota
	U16
	U32
	U64
	U128
	Usize
)

var uintTyNames = [...]string{"u8", "u16", "u32", "u64", "u128", "usize"}

func (t UintTy) String() string { return uintTyNames[t] }

// FloatTy is a floating point width
type FloatTy uint8

const (
	F32 FloatTy = iota
	F64
)

func (t FloatTy) String() string {
	if t == F32 {
		return "f32"
	}
	return "f64"
}

// AdtID identifies a declared algebraic datatype
type AdtID uint32

// AdtDef is a declared datatype together with the sorts of its indices
type AdtDef struct {
	ID    AdtID
	Name  string
	Sorts []Sort
}

// AdtSortsMap answers the index sorts of a datatype
type AdtSortsMap interface {
	AdtSorts(id AdtID) ([]Sort, bool)
}

// AdtTable is the simplest AdtSortsMap
type AdtTable map[AdtID]*AdtDef

func (t AdtTable) AdtSorts(id AdtID) ([]Sort, bool) {
	def, ok := t[id]
	if !ok {
		return nil, false
	}
	return def.Sorts, true
}

// BaseTyKind tags the variant held by a BaseTy
type BaseTyKind uint8

const (
	BaseInt BaseTyKind = iota
	BaseUint
	BaseBool
	BaseAdt
)

// BaseTy is the unrefined part of an indexed or existential type
type BaseTy struct {
	id     intern.ID
	kind   BaseTyKind
	intTy  IntTy
	uintTy UintTy
	adt    *AdtDef
	substs []*Ty
}

// ID returns the interned identity
func (b *BaseTy) ID() intern.ID { return b.id }

// Kind returns the variant tag
func (b *BaseTy) Kind() BaseTyKind { return b.kind }

// IntTy is the width of a signed integer base
func (b *BaseTy) IntTy() IntTy { return b.intTy }

// UintTy is the width of an unsigned integer base
func (b *BaseTy) UintTy() UintTy { return b.uintTy }

// Adt is the definition of a datatype base
func (b *BaseTy) Adt() *AdtDef { return b.adt }

// Substs are the generic arguments of a datatype base
func (b *BaseTy) Substs() []*Ty { return b.substs }

// IsIntegral reports whether b is a signed or unsigned integer
func (b *BaseTy) IsIntegral() bool { return b.kind == BaseInt || b.kind == BaseUint }
func (b *BaseTy) IsBool() bool     { return b.kind == BaseBool }
func (b *BaseTy) IsAdt() bool      { return b.kind == BaseAdt }
func (b *BaseTy) IsUnsigned() bool { return b.kind == BaseUint }

// Sorts returns the sorts of the indices this base type carries. Integers
// and booleans carry one index of the matching sort; datatypes carry their
// declared sorts.
func (b *BaseTy) Sorts() []Sort {
	switch b.kind {
	case BaseInt, BaseUint:
		return []Sort{IntSort}
	case BaseBool:
		return []Sort{BoolSort}
	case BaseAdt:
		return b.adt.Sorts
	}
	spew.Dump(b)
	panic("unreachable")
}

func (a *Arena) mkBaseTy(key *intern.KeyBuilder, proto BaseTy) *BaseTy {
	return a.btys.Intern(key.String(), func(id intern.ID) *BaseTy {
		b := proto
		b.id = id
		return &b
	})
}

func (a *Arena) IntBase(t IntTy) *BaseTy {
	return a.mkBaseTy(intern.NewKey(byte(BaseInt)).Uint(uint64(t)), BaseTy{kind: BaseInt, intTy: t})
}

func (a *Arena) UintBase(t UintTy) *BaseTy {
	return a.mkBaseTy(intern.NewKey(byte(BaseUint)).Uint(uint64(t)), BaseTy{kind: BaseUint, uintTy: t})
}

func (a *Arena) BoolBase() *BaseTy {
	return a.mkBaseTy(intern.NewKey(byte(BaseBool)), BaseTy{kind: BaseBool})
}

// AdtBase instantiates a datatype with generic arguments. Datatypes are
// keyed by ID, so a session must not declare two different defs with the
// same ID.
func (a *Arena) AdtBase(def *AdtDef, substs ...*Ty) *BaseTy {
	key := intern.NewKey(byte(BaseAdt)).Uint(uint64(def.ID)).IDs(tyIDs(substs)...)
	return a.mkBaseTy(key, BaseTy{kind: BaseAdt, adt: def, substs: append([]*Ty(nil), substs...)})
}

func (a *Arena) withSubsts(b *BaseTy, substs []*Ty) *BaseTy {
	if b.kind != BaseAdt {
		return b
	}
	for i := range substs {
		if substs[i] != b.substs[i] {
			return a.AdtBase(b.adt, substs...)
		}
	}
	return b
}

// TyKind tags the variant held by a Ty
type TyKind uint8

const (
	TyIndexed TyKind = iota
	TyExists
	TyConstr
	TyRef
	TyPtr
	TyTuple
	TyNever
	TyUninit
	TyParam
	TyFloat
)

// RefKind distinguishes shared and mutable references
type RefKind uint8

const (
	Shr RefKind = iota
	Mut
)

// Index is one refinement index of an indexed type. IsBinder marks indices
// that act as binding positions during call inference.
type Index struct {
	Expr     *Expr
	IsBinder bool
}

// Ty is an interned refinement type
type Ty struct {
	id      intern.ID
	kind    TyKind
	bty     *BaseTy
	indices []Index
	pred    Binders[*Pred]
	constr  *Expr
	inner   *Ty
	ref     RefKind
	path    Path
	tys     []*Ty
	param   ParamTy
	float   FloatTy
}

// ID returns the interned identity
func (t *Ty) ID() intern.ID { return t.id }

// Kind returns the variant tag
func (t *Ty) Kind() TyKind { return t.kind }

// Indexed returns the base and indices of `b[e, ..]`
func (t *Ty) Indexed() (*BaseTy, []Index, bool) {
	if t.kind != TyIndexed {
		return nil, nil, false
	}
	return t.bty, t.indices, true
}

// Exists returns the base and the bound predicate of `b{v: p}`
func (t *Ty) Exists() (*BaseTy, Binders[*Pred], bool) {
	if t.kind != TyExists {
		return nil, Binders[*Pred]{}, false
	}
	return t.bty, t.pred, true
}

// Constr returns the guard and the guarded type of `{ty | pred}`
func (t *Ty) Constr() (*Expr, *Ty, bool) {
	if t.kind != TyConstr {
		return nil, nil, false
	}
	return t.constr, t.inner, true
}

// Ref returns the mutability and the referent of a reference
func (t *Ty) Ref() (RefKind, *Ty, bool) {
	if t.kind != TyRef {
		return 0, nil, false
	}
	return t.ref, t.inner, true
}

// Ptr returns the path a pointer type points to
func (t *Ty) Ptr() (Path, bool) {
	if t.kind != TyPtr {
		return Path{}, false
	}
	return t.path, true
}

// Tuple returns the element types of a tuple
func (t *Ty) Tuple() ([]*Ty, bool) {
	if t.kind != TyTuple {
		return nil, false
	}
	return t.tys, true
}

// Param returns the generic parameter t names
func (t *Ty) Param() (ParamTy, bool) {
	return t.param, t.kind == TyParam
}

// Float returns the width of a float type
func (t *Ty) Float() (FloatTy, bool) {
	return t.float, t.kind == TyFloat
}

// IsNever reports whether t is the never type
func (t *Ty) IsNever() bool  { return t.kind == TyNever }
func (t *Ty) IsUninit() bool { return t.kind == TyUninit }

// BaseTy returns the base of an indexed or existential type
func (t *Ty) BaseTy() (*BaseTy, bool) {
	if t.kind == TyIndexed || t.kind == TyExists {
		return t.bty, true
	}
	return nil, false
}

func (a *Arena) mkTy(key *intern.KeyBuilder, proto Ty) *Ty {
	return a.tys.Intern(key.String(), func(id intern.ID) *Ty {
		t := proto
		t.id = id
		return &t
	})
}

// Indexed builds `bty[indices]`. The number of indices must match the sorts
// of the base type.
func (a *Arena) Indexed(bty *BaseTy, indices ...Index) *Ty {
	if len(indices) != len(bty.Sorts()) {
		panic(fmt.Sprintf("indexed type %v: expected %d indices, got %d", bty, len(bty.Sorts()), len(indices)))
	}
	key := intern.NewKey(byte(TyIndexed)).ID(bty.id).Uint(uint64(len(indices)))
	for _, idx := range indices {
		key.ID(idx.Expr.id).Bool(idx.IsBinder)
	}
	return a.mkTy(key, Ty{kind: TyIndexed, bty: bty, indices: append([]Index(nil), indices...)})
}

// IndexedBy is Indexed with plain, non-binding indices
func (a *Arena) IndexedBy(bty *BaseTy, exprs ...*Expr) *Ty {
	indices := make([]Index, len(exprs))
	for i, e := range exprs {
		indices[i] = Index{Expr: e}
	}
	return a.Indexed(bty, indices...)
}

// Exists builds `bty{pred}` where pred binds one variable per base sort
func (a *Arena) Exists(bty *BaseTy, pred Binders[*Pred]) *Ty {
	if !SortsEqual(pred.Params, bty.Sorts()) {
		panic(fmt.Sprintf("existential over %v binds %v, expected %v", bty, pred.Params, bty.Sorts()))
	}
	key := intern.NewKey(byte(TyExists)).ID(bty.id).Str(sortsKey(pred.Params)).ID(pred.Value.id)
	return a.mkTy(key, Ty{kind: TyExists, bty: bty, pred: pred})
}

// ExistsExpr is Exists with an expression predicate
func (a *Arena) ExistsExpr(bty *BaseTy, pred *Expr) *Ty {
	return a.Exists(bty, NewBinders(a.PredExpr(pred), bty.Sorts()))
}

// Unrefined is `bty{true}`
func (a *Arena) Unrefined(bty *BaseTy) *Ty {
	return a.ExistsExpr(bty, a.tt)
}

// Constr builds `{ty | pred}`
func (a *Arena) Constr(pred *Expr, ty *Ty) *Ty {
	key := intern.NewKey(byte(TyConstr)).ID(pred.id).ID(ty.id)
	return a.mkTy(key, Ty{kind: TyConstr, constr: pred, inner: ty})
}

func (a *Arena) Ref(k RefKind, ty *Ty) *Ty {
	key := intern.NewKey(byte(TyRef)).Uint(uint64(k)).ID(ty.id)
	return a.mkTy(key, Ty{kind: TyRef, ref: k, inner: ty})
}

func (a *Arena) Ptr(p Path) *Ty {
	key := intern.NewKey(byte(TyPtr)).ID(p.Loc.ToExpr(a).id).Uint(uint64(len(p.proj)))
	for _, f := range p.proj {
		key.Uint(uint64(f))
	}
	return a.mkTy(key, Ty{kind: TyPtr, path: NewPath(p.Loc, p.proj...)})
}

func (a *Arena) TupleTy(tys ...*Ty) *Ty {
	key := intern.NewKey(byte(TyTuple)).IDs(tyIDs(tys)...)
	return a.mkTy(key, Ty{kind: TyTuple, tys: append([]*Ty(nil), tys...)})
}

// UnitTy is the empty tuple type
func (a *Arena) UnitTy() *Ty { return a.TupleTy() }

func (a *Arena) Never() *Ty {
	return a.mkTy(intern.NewKey(byte(TyNever)), Ty{kind: TyNever})
}

func (a *Arena) Uninit() *Ty {
	return a.mkTy(intern.NewKey(byte(TyUninit)), Ty{kind: TyUninit})
}

func (a *Arena) ParamTy(p ParamTy) *Ty {
	key := intern.NewKey(byte(TyParam)).Uint(uint64(p.Index)).Str(p.Name)
	return a.mkTy(key, Ty{kind: TyParam, param: p})
}

func (a *Arena) FloatTy(f FloatTy) *Ty {
	return a.mkTy(intern.NewKey(byte(TyFloat)).Uint(uint64(f)), Ty{kind: TyFloat, float: f})
}

// PredKind tags the variant held by a Pred
type PredKind uint8

const (
	PredExpr PredKind = iota
	PredKVar
	PredHole
)

// KVar is an application of an unknown predicate. Args are the variables
// the k-variable binds at the application site; Scope lists the variables
// it may mention from the enclosing scope.
type KVar struct {
	ID    KVid
	Args  []*Expr
	Scope []*Expr
}

// AllArgs returns Args followed by Scope
func (k KVar) AllArgs() []*Expr {
	all := make([]*Expr, 0, len(k.Args)+len(k.Scope))
	all = append(all, k.Args...)
	return append(all, k.Scope...)
}

// Pred is an interned refinement predicate: an expression, a k-variable
// application or a hole awaiting inference.
type Pred struct {
	id   intern.ID
	kind PredKind
	expr *Expr
	kvar KVar
}

// ID returns the interned identity
func (p *Pred) ID() intern.ID { return p.id }

// Kind returns the variant tag
func (p *Pred) Kind() PredKind { return p.kind }

// IsHole reports whether p is still to be inferred
func (p *Pred) IsHole() bool { return p.kind == PredHole }

// Expr returns the body of a concrete predicate
func (p *Pred) Expr() (*Expr, bool) {
	return p.expr, p.kind == PredExpr
}

// KVar returns the application of a refinement variable
func (p *Pred) KVar() (KVar, bool) {
	return p.kvar, p.kind == PredKVar
}

// IsTrue reports whether p is the trivially true predicate
func (p *Pred) IsTrue() bool {
	return p.kind == PredExpr && p.expr.IsTrue()
}

func (a *Arena) mkPred(key *intern.KeyBuilder, proto Pred) *Pred {
	return a.preds.Intern(key.String(), func(id intern.ID) *Pred {
		p := proto
		p.id = id
		return &p
	})
}

func (a *Arena) PredExpr(e *Expr) *Pred {
	return a.mkPred(intern.NewKey(byte(PredExpr)).ID(e.id), Pred{kind: PredExpr, expr: e})
}

func (a *Arena) PredKVar(kv KVar) *Pred {
	key := intern.NewKey(byte(PredKVar)).Uint(uint64(kv.ID)).IDs(exprIDs(kv.Args)...).IDs(exprIDs(kv.Scope)...)
	kv = KVar{
		ID:    kv.ID,
		Args:  append([]*Expr(nil), kv.Args...),
		Scope: append([]*Expr(nil), kv.Scope...),
	}
	return a.mkPred(key, Pred{kind: PredKVar, kvar: kv})
}

// Hole is the predicate placeholder filled in by inference
func (a *Arena) Hole() *Pred {
	if a.hole != nil {
		return a.hole
	}
	return a.mkPred(intern.NewKey(byte(PredHole)), Pred{kind: PredHole})
}

// Binders wraps a value that binds one variable per sort in Params. Inside
// Value, `^0.i` refers to the i-th parameter.
type Binders[T Foldable[T]] struct {
	Params []Sort
	Value  T
}

// NewBinders builds a binder
func NewBinders[T Foldable[T]](value T, params []Sort) Binders[T] {
	return Binders[T]{Params: append([]Sort(nil), params...), Value: value}
}
