// Package manifest loads the YAML files that describe what to check: the
// datatypes, constants, uninterpreted functions and qualifiers of a
// program, and its functions with their signatures and bodies.
//
// Signatures, types and predicates are strings in the core notation read by
// package parser. Every string keeps its position in the file so errors in
// it can be reported precisely.
package manifest

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/lhaig/refine/internal/diagnostic"
)

// Text is a scalar together with where its value starts in the manifest.
// Positions inside block scalars point at the indicator line.
type Text struct {
	Value  string
	Line   int
	Column int
}

// T builds a Text without a position, for manifests assembled in code
func T(s string) Text {
	return Text{Value: s}
}

func (t *Text) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: expected a scalar", n.Line)
	}
	t.Value = n.Value
	t.Line = n.Line
	t.Column = n.Column
	switch n.Style {
	case yaml.DoubleQuotedStyle, yaml.SingleQuotedStyle:
		t.Column++
	}
	return nil
}

func (t Text) String() string { return t.Value }

// Set reports whether the key was present
func (t Text) Set() bool { return t.Value != "" || t.Line > 0 }

// AdtDecl declares a datatype and the sorts of its refinement indices
type AdtDecl struct {
	Name  Text   `yaml:"name" validate:"required,ident"`
	Sorts []Text `yaml:"sorts" validate:"dive,required"`
}

// ConstDecl declares a global constant with an optional known value
type ConstDecl struct {
	Name  Text `yaml:"name" validate:"required,ident"`
	Sort  Text `yaml:"sort" validate:"required"`
	Value Text `yaml:"value"`
}

// UifDecl declares an uninterpreted function
type UifDecl struct {
	Name Text   `yaml:"name" validate:"required,ident"`
	Args []Text `yaml:"args" validate:"dive,required"`
	Sort Text   `yaml:"sort" validate:"required"`
}

// ParamDecl is a named, sorted parameter
type ParamDecl struct {
	Name Text `yaml:"name" validate:"required,ident"`
	Sort Text `yaml:"sort" validate:"required"`
}

// QualifierDecl offers the solver a predicate template
type QualifierDecl struct {
	Name   Text        `yaml:"name" validate:"required,ident"`
	Args   []ParamDecl `yaml:"args" validate:"min=1,dive"`
	Body   Text        `yaml:"body" validate:"required"`
	Global bool        `yaml:"global"`
}

// FnDecl is a function. Trusted functions only contribute their signature
// to callers; the others are checked by running Body. Qualifiers names the
// non-global qualifiers offered to the solver for this function.
type FnDecl struct {
	Name       Text     `yaml:"name" validate:"required,fnname"`
	Sig        Text     `yaml:"sig" validate:"required"`
	Generics   []string `yaml:"generics" validate:"dive,ident"`
	Qualifiers []Text   `yaml:"qualifiers" validate:"dive,ident"`
	Trusted    bool     `yaml:"trusted"`
	Body       []Step   `yaml:"body"`
}

// Manifest is one loaded file
type Manifest struct {
	Path string `yaml:"-"`

	// Include lists other manifests, relative to this one, whose
	// declarations this one may use
	Include    []Text          `yaml:"include"`
	Adts       []AdtDecl       `yaml:"adts"`
	Consts     []ConstDecl     `yaml:"consts"`
	Uifs       []UifDecl       `yaml:"uifs"`
	Qualifiers []QualifierDecl `yaml:"qualifiers"`
	Fns        []FnDecl        `yaml:"fns"`
}

var (
	identRe  = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
	fnNameRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(::[A-Za-z_][A-Za-z0-9_]*)*$`)
)

var validate *validator.Validate

func init() {
	validate = validator.New()
	validate.RegisterCustomTypeFunc(func(v reflect.Value) any {
		return v.Interface().(Text).Value
	}, Text{})
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("yaml"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	_ = validate.RegisterValidation("ident", func(fl validator.FieldLevel) bool {
		return identRe.MatchString(fl.Field().String())
	})
	_ = validate.RegisterValidation("fnname", func(fl validator.FieldLevel) bool {
		return fnNameRe.MatchString(fl.Field().String())
	})
}

// Decode reads a manifest. Unknown keys are errors.
func Decode(r io.Reader) (*Manifest, error) {
	m := &Manifest{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(m); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}
	return m, nil
}

// Load reads the manifest at path
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	m, err := Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	m.Path = path
	return m, nil
}

// describeFieldError turns a validation failure into a sentence
func describeFieldError(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "ident":
		return fmt.Sprintf("%s %q is not an identifier", field, fe.Value())
	case "fnname":
		return fmt.Sprintf("%s %q is not a function name", field, fe.Value())
	case "min":
		return fmt.Sprintf("%s needs at least %s entries", field, fe.Param())
	}
	return fmt.Sprintf("%s fails %q", field, fe.Tag())
}

func checkStruct(d *diagnostic.Diagnostics, kind string, name Text, v any) {
	err := validate.Struct(v)
	if err == nil {
		return
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		d.Errorf(name.Line, name.Column, "%s: %v", kind, err)
		return
	}
	for _, fe := range verrs {
		if name.Value != "" {
			d.Errorf(name.Line, name.Column, "%s %s: %s", kind, name.Value, describeFieldError(fe))
		} else {
			d.Errorf(0, 0, "%s: %s", kind, describeFieldError(fe))
		}
	}
}

type seen map[string]Text

func (s seen) add(d *diagnostic.Diagnostics, kind string, name Text) {
	if name.Value == "" {
		return
	}
	if first, ok := s[name.Value]; ok {
		d.Errorf(name.Line, name.Column, "duplicate %s %q (first declared at line %d)", kind, name.Value, first.Line)
		return
	}
	s[name.Value] = name
}

// Validate reports missing fields, malformed names, duplicate declarations
// and malformed bodies. Strings in the core notation are not parsed here.
func (m *Manifest) Validate() *diagnostic.Diagnostics {
	d := diagnostic.New()

	adts := seen{}
	for i := range m.Adts {
		checkStruct(d, "adt", m.Adts[i].Name, m.Adts[i])
		adts.add(d, "adt", m.Adts[i].Name)
	}
	// constants and functions share the expression namespace
	globals := seen{}
	for i := range m.Consts {
		checkStruct(d, "const", m.Consts[i].Name, m.Consts[i])
		globals.add(d, "global", m.Consts[i].Name)
	}
	for i := range m.Uifs {
		checkStruct(d, "uif", m.Uifs[i].Name, m.Uifs[i])
		globals.add(d, "global", m.Uifs[i].Name)
	}
	quals := seen{}
	for i := range m.Qualifiers {
		checkStruct(d, "qualifier", m.Qualifiers[i].Name, m.Qualifiers[i])
		quals.add(d, "qualifier", m.Qualifiers[i].Name)
	}
	fns := seen{}
	for i := range m.Fns {
		fn := &m.Fns[i]
		checkStruct(d, "fn", fn.Name, *fn)
		fns.add(d, "fn", fn.Name)
		if fn.Trusted && len(fn.Body) > 0 {
			d.ItemErrorf(fn.Name.Value, fn.Name.Line, fn.Name.Column, "trusted function has a body")
		}
		validateSteps(d, fn.Name.Value, fn.Body)
	}
	d.Sort()
	return d
}
