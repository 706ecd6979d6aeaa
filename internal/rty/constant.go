package rty

import (
	"fmt"
	"math"
)

// Sign of an integer constant
type Sign uint8

const (
	Positive Sign = iota
	Negative
)

// ConstantKind distinguishes integer and boolean literals
type ConstantKind uint8

const (
	ConstInt ConstantKind = iota
	ConstBool
)

// Constant is a literal. Integers use an explicit sign-magnitude encoding so
// that signed and unsigned literals share one representation.
type Constant struct {
	Kind ConstantKind
	Sign Sign
	Mag  uint64
	Bool bool
}

// IntConst builds an integer constant from a signed value
func IntConst(v int64) Constant {
	if v < 0 {
		if v == math.MinInt64 {
			return Constant{Kind: ConstInt, Sign: Negative, Mag: uint64(math.MaxInt64) + 1}
		}
		return Constant{Kind: ConstInt, Sign: Negative, Mag: uint64(-v)}
	}
	return Constant{Kind: ConstInt, Sign: Positive, Mag: uint64(v)}
}

// UintConst builds a non-negative integer constant
func UintConst(v uint64) Constant {
	return Constant{Kind: ConstInt, Sign: Positive, Mag: v}
}

// BoolConst builds a boolean constant
func BoolConst(b bool) Constant {
	return Constant{Kind: ConstBool, Bool: b}
}

// Int64 converts an integer constant to int64 when it fits
func (c Constant) Int64() (int64, bool) {
	if c.Kind != ConstInt {
		return 0, false
	}
	if c.Sign == Negative {
		if c.Mag > uint64(math.MaxInt64)+1 {
			return 0, false
		}
		return -int64(c.Mag - 1) - 1, true
	}
	if c.Mag > math.MaxInt64 {
		return 0, false
	}
	return int64(c.Mag), true
}

// IsZero reports whether c is the integer zero
func (c Constant) IsZero() bool {
	return c.Kind == ConstInt && c.Mag == 0
}

func (c Constant) String() string {
	if c.Kind == ConstBool {
		if c.Bool {
			return "true"
		}
		return "false"
	}
	if c.Sign == Negative && c.Mag != 0 {
		return fmt.Sprintf("-%d", c.Mag)
	}
	return fmt.Sprintf("%d", c.Mag)
}
