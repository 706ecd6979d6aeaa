package rty

// ConstrKind tags the variant held by a Constr
type ConstrKind uint8

const (
	ConstrType ConstrKind = iota
	ConstrPred
)

// Constr is a requires/ensures clause: either "path points to a value of
// type Ty" or a boolean predicate.
type Constr struct {
	Kind ConstrKind
	Path Path
	Ty   *Ty
	Pred *Expr
}

func TypeConstr(p Path, ty *Ty) Constr { return Constr{Kind: ConstrType, Path: p, Ty: ty} }
func PredConstr(e *Expr) Constr        { return Constr{Kind: ConstrPred, Pred: e} }

func (c Constr) String() string {
	if c.Kind == ConstrType {
		return c.Path.String() + ": " + c.Ty.String()
	}
	return c.Pred.String()
}

// FnSig is a function signature quantified over refinement parameters. The
// Params form one binder around everything else: `^0.i` inside Requires,
// Args, Ret and Ensures names the i-th parameter.
type FnSig struct {
	Params   []Sort
	Requires []Constr
	Args     []*Ty
	Ret      *Ty
	Ensures  []Constr
}

// Param is a named refinement parameter
type Param struct {
	Name Name
	Sort Sort
}

// Qualifier is a predicate template offered to the solver for k-variable
// inference
type Qualifier struct {
	Name string
	Args []Param
	Expr *Expr
	// Global qualifiers are offered for every function; the others only
	// for functions that select them
	Global bool
}

// UifDef declares an uninterpreted function
type UifDef struct {
	Name   string
	Inputs []Sort
	Output Sort
}
