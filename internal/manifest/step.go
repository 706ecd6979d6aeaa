package manifest

import (
	"fmt"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/lhaig/refine/internal/diagnostic"
)

// Op names the action a Step performs
type Op int

const (
	OpNone Op = iota
	OpAssume
	OpAssert
	OpCheck
	OpLet
	OpStore
	OpCall
	OpReturn
	OpIf
)

var opKeys = map[string]Op{
	"assume": OpAssume,
	"assert": OpAssert,
	"check":  OpCheck,
	"let":    OpLet,
	"store":  OpStore,
	"call":   OpCall,
	"return": OpReturn,
	"if":     OpIf,
}

// companions lists the keys that may accompany each op
var companions = map[Op][]string{
	OpCheck: {"reason"},
	OpLet:   {"from"},
	OpStore: {"ty"},
	OpCall:  {"args", "into"},
	OpIf:    {"then", "else"},
}

// Step is one action of a function body, in program order:
//
//	assume: <expr>                  add a hypothesis
//	assert: <expr>                  an assertion, handled per check_asserts
//	check: <expr>, reason: div      an obligation with the given reason
//	let: x, from: _1                name the index of a local's value
//	store: <place>, ty: <type>      overwrite the type at a place
//	call: f, args: [...], into: _2  call f with places or types
//	return: <place or type>         return from the function
//	if: <expr>, then: [...], else: [...]
type Step struct {
	Line   int `yaml:"-"`
	Column int `yaml:"-"`

	Assume Text   `yaml:"assume"`
	Assert Text   `yaml:"assert"`
	Check  Text   `yaml:"check"`
	Reason Text   `yaml:"reason"`
	Let    Text   `yaml:"let"`
	From   Text   `yaml:"from"`
	Store  Text   `yaml:"store"`
	Ty     Text   `yaml:"ty"`
	Call   Text   `yaml:"call"`
	Args   []Text `yaml:"args"`
	Into   Text   `yaml:"into"`
	Return Text   `yaml:"return"`
	If     Text   `yaml:"if"`
	Then   []Step `yaml:"then"`
	Else   []Step `yaml:"else"`

	keys []string
}

func (s *Step) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: a step must be a mapping", n.Line)
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		key := n.Content[i].Value
		if _, isOp := opKeys[key]; !isOp && !isCompanion(key) {
			return fmt.Errorf("line %d: unknown step key %q", n.Content[i].Line, key)
		}
		s.keys = append(s.keys, key)
	}
	type plain Step
	if err := n.Decode((*plain)(s)); err != nil {
		return err
	}
	s.Line = n.Line
	s.Column = n.Column
	return nil
}

func isCompanion(key string) bool {
	for _, keys := range companions {
		if slices.Contains(keys, key) {
			return true
		}
	}
	return false
}

// Op returns the action of the step, or OpNone when the step names no
// action or more than one
func (s *Step) Op() Op {
	op := OpNone
	for _, k := range s.keys {
		if o, ok := opKeys[k]; ok {
			if op != OpNone {
				return OpNone
			}
			op = o
		}
	}
	return op
}

func (s *Step) ops() []string {
	var out []string
	for _, k := range s.keys {
		if _, ok := opKeys[k]; ok {
			out = append(out, k)
		}
	}
	return out
}

func validateSteps(d *diagnostic.Diagnostics, fn string, steps []Step) {
	for i := range steps {
		s := &steps[i]
		ops := s.ops()
		switch len(ops) {
		case 0:
			d.ItemErrorf(fn, s.Line, s.Column, "step has no action")
			continue
		case 1:
		default:
			d.ItemErrorf(fn, s.Line, s.Column, "step has several actions: %s", strings.Join(ops, ", "))
			continue
		}
		op := s.Op()
		for _, k := range s.keys {
			if _, isOp := opKeys[k]; isOp {
				continue
			}
			if !slices.Contains(companions[op], k) {
				d.ItemErrorf(fn, s.Line, s.Column, "%q does not apply to %s", k, ops[0])
			}
		}
		switch op {
		case OpLet:
			if !s.From.Set() {
				d.ItemErrorf(fn, s.Line, s.Column, "let needs from")
			}
			if !identRe.MatchString(s.Let.Value) {
				d.ItemErrorf(fn, s.Let.Line, s.Let.Column, "let %q is not an identifier", s.Let.Value)
			}
		case OpStore:
			if !s.Ty.Set() {
				d.ItemErrorf(fn, s.Line, s.Column, "store needs ty")
			}
		case OpCall:
			if !fnNameRe.MatchString(s.Call.Value) {
				d.ItemErrorf(fn, s.Call.Line, s.Call.Column, "call %q is not a function name", s.Call.Value)
			}
		case OpIf:
			validateSteps(d, fn, s.Then)
			validateSteps(d, fn, s.Else)
		}
	}
}
