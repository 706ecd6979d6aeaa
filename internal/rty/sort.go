package rty

import "strings"

// SortKind classifies refinement sorts
type SortKind uint8

const (
	SortInt SortKind = iota
	SortBool
	SortLoc
	SortTuple
)

// Sort is the logical sort of a refinement index or parameter.
type Sort struct {
	Kind  SortKind
	Elems []Sort // only for SortTuple
}

// Builtin sorts
var (
	IntSort  = Sort{Kind: SortInt}
	BoolSort = Sort{Kind: SortBool}
	LocSort  = Sort{Kind: SortLoc}
)

// TupleSort builds the sort of a tuple of the given sorts
func TupleSort(elems ...Sort) Sort {
	return Sort{Kind: SortTuple, Elems: append([]Sort(nil), elems...)}
}

// Equal reports structural equality
func (s Sort) Equal(o Sort) bool {
	if s.Kind != o.Kind || len(s.Elems) != len(o.Elems) {
		return false
	}
	for i := range s.Elems {
		if !s.Elems[i].Equal(o.Elems[i]) {
			return false
		}
	}
	return true
}

func (s Sort) String() string {
	switch s.Kind {
	case SortInt:
		return "int"
	case SortBool:
		return "bool"
	case SortLoc:
		return "loc"
	case SortTuple:
		parts := make([]string, len(s.Elems))
		for i, e := range s.Elems {
			parts[i] = e.String()
		}
		return "(" + strings.Join(parts, ", ") + ")"
	default:
		return "<sort?>"
	}
}

// SortsEqual compares two sort lists element-wise
func SortsEqual(a, b []Sort) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			return false
		}
	}
	return true
}

func sortsKey(sorts []Sort) string {
	parts := make([]string, len(sorts))
	for i, s := range sorts {
		parts[i] = s.String()
	}
	return strings.Join(parts, ";")
}
