package verify

import (
	"fmt"
	"strconv"
	"strings"
)

// Reason says what kind of source obligation a constraint checks
type Reason uint8

const (
	ReasonCall Reason = iota
	ReasonAssert
	ReasonRet
	ReasonDiv
	ReasonRem
	ReasonGoto
	ReasonOverflow
	ReasonFold
	ReasonOther
)

var reasonNames = [...]string{"call", "assert", "ret", "div", "rem", "goto", "overflow", "fold", "other"}

func (r Reason) String() string {
	if int(r) < len(reasonNames) {
		return reasonNames[r]
	}
	return "other"
}

// ParseReason looks a reason up by its String form
func ParseReason(name string) (Reason, bool) {
	for i, n := range reasonNames {
		if n == name {
			return Reason(i), true
		}
	}
	return 0, false
}

// message is the diagnostic shown when an obligation of this kind fails
func (r Reason) message() string {
	switch r {
	case ReasonCall:
		return "precondition might not hold"
	case ReasonAssert:
		return "assertion might fail"
	case ReasonRet:
		return "postcondition might not hold"
	case ReasonDiv:
		return "possible division by zero"
	case ReasonRem:
		return "possible remainder with a divisor of zero"
	case ReasonGoto:
		return "loop invariant might not hold"
	case ReasonOverflow:
		return "arithmetic operation may overflow"
	case ReasonFold:
		return "type invariant may not hold (when place is folded)"
	}
	return "refinement type error"
}

// Tag correlates a constraint with the source position that produced it.
// It renders as `reason@line:column`.
type Tag struct {
	Reason Reason
	Line   int
	Column int
}

// NewTag builds a tag
func NewTag(reason Reason, line, col int) Tag {
	return Tag{Reason: reason, Line: line, Column: col}
}

func (t Tag) String() string {
	return fmt.Sprintf("%s@%d:%d", t.Reason, t.Line, t.Column)
}

// ParseTag reads a tag back from its String form
func ParseTag(s string) (Tag, error) {
	reason, pos, ok := strings.Cut(s, "@")
	if !ok {
		return Tag{}, fmt.Errorf("tag %q: missing position", s)
	}
	r, ok := ParseReason(reason)
	if !ok {
		return Tag{}, fmt.Errorf("tag %q: unknown reason %q", s, reason)
	}
	lineText, colText, ok := strings.Cut(pos, ":")
	if !ok {
		return Tag{}, fmt.Errorf("tag %q: position must be line:column", s)
	}
	line, err := strconv.Atoi(lineText)
	if err != nil {
		return Tag{}, fmt.Errorf("tag %q: line: %w", s, err)
	}
	col, err := strconv.Atoi(colText)
	if err != nil {
		return Tag{}, fmt.Errorf("tag %q: column: %w", s, err)
	}
	return Tag{Reason: r, Line: line, Column: col}, nil
}
