package manifest

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `adts:
  - name: Vec
    sorts: [int]
consts:
  - name: MAX
    sort: int
    value: "100"
uifs:
  - name: len
    args: [int]
    sort: int
qualifiers:
  - name: Below
    args:
      - {name: a, sort: int}
      - {name: b, sort: int}
    body: a < b
fns:
  - name: vec::push
    sig: "fn(&mut Vec[@n], i32) ensures _1: Vec[n + 1]"
    trusted: true
  - name: inc
    sig: "for<n: int> fn(i32[n]) -> i32[n + 1]"
    body:
      - let: n
        from: _1
      - check: n < MAX
        reason: overflow
      - if: n > 0
        then:
          - assert: n >= 1
        else:
          - assume: n <= 0
      - return: "i32[n + 1]"
`

func decode(t *testing.T, src string) *Manifest {
	t.Helper()
	m, err := Decode(strings.NewReader(src))
	require.NoError(t, err)
	return m
}

func TestDecode(t *testing.T) {
	m := decode(t, sample)

	require.Len(t, m.Adts, 1)
	assert.Equal(t, "Vec", m.Adts[0].Name.Value)
	require.Len(t, m.Adts[0].Sorts, 1)
	assert.Equal(t, "int", m.Adts[0].Sorts[0].Value)

	require.Len(t, m.Consts, 1)
	assert.Equal(t, "100", m.Consts[0].Value.Value)

	require.Len(t, m.Qualifiers, 1)
	assert.Len(t, m.Qualifiers[0].Args, 2)
	assert.False(t, m.Qualifiers[0].Global)

	require.Len(t, m.Fns, 2)
	assert.True(t, m.Fns[0].Trusted)
	assert.Equal(t, "vec::push", m.Fns[0].Name.Value)

	body := m.Fns[1].Body
	require.Len(t, body, 4)
	assert.Equal(t, OpLet, body[0].Op())
	assert.Equal(t, "_1", body[0].From.Value)
	assert.Equal(t, OpCheck, body[1].Op())
	assert.Equal(t, "overflow", body[1].Reason.Value)
	assert.Equal(t, OpIf, body[2].Op())
	require.Len(t, body[2].Then, 1)
	assert.Equal(t, OpAssert, body[2].Then[0].Op())
	require.Len(t, body[2].Else, 1)
	assert.Equal(t, OpAssume, body[2].Else[0].Op())
	assert.Equal(t, OpReturn, body[3].Op())

	assert.False(t, m.Validate().HasErrors(), m.Validate().Format("m.yaml"))
}

func TestTextPositions(t *testing.T) {
	m := decode(t, sample)

	name := m.Fns[1].Name
	assert.Equal(t, 22, name.Line)
	assert.Equal(t, 11, name.Column)

	// quoted scalars start after the quote
	sig := m.Fns[1].Sig
	assert.Equal(t, 23, sig.Line)
	assert.Equal(t, 11, sig.Column)

	step := m.Fns[1].Body[1]
	assert.Equal(t, 27, step.Line)
	assert.Equal(t, 9, step.Column)
	assert.Equal(t, 27, step.Check.Line)
	assert.Equal(t, 16, step.Check.Column)
}

func TestEmptyManifest(t *testing.T) {
	m := decode(t, "")
	assert.Empty(t, m.Fns)
	assert.False(t, m.Validate().HasErrors())
}

func TestDecodeErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"unknown top-level key", "types: []\n", "field types not found"},
		{"unknown decl key", "fns:\n  - name: f\n    sgi: x\n", "field sgi not found"},
		{"unknown step key", "fns:\n  - name: f\n    sig: fn()\n    body:\n      - asume: true\n", `unknown step key "asume"`},
		{"non-scalar text", "fns:\n  - name: [f]\n", "expected a scalar"},
		{"step not a mapping", "fns:\n  - name: f\n    sig: fn()\n    body: [x]\n", "a step must be a mapping"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(strings.NewReader(tt.src))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{
			"missing sig",
			"fns:\n  - name: f\n",
			"error[m.yaml:2:11]: fn f: sig is required",
		},
		{
			"bad identifier",
			"adts:\n  - name: 9Vec\n",
			`error[m.yaml:2:11]: adt 9Vec: name "9Vec" is not an identifier`,
		},
		{
			"bad function name",
			"fns:\n  - name: a:b\n    sig: fn()\n",
			`error[m.yaml:2:11]: fn a:b: name "a:b" is not a function name`,
		},
		{
			"bad selected qualifier",
			"fns:\n  - name: f\n    sig: fn()\n    qualifiers: [Pos, 1x]\n",
			`error[m.yaml:2:11]: fn f: qualifiers[1] "1x" is not an identifier`,
		},
		{
			"qualifier without args",
			"qualifiers:\n  - name: Q\n    body: true\n",
			"error[m.yaml:2:11]: qualifier Q: args needs at least 1 entries",
		},
		{
			"duplicate global",
			"consts:\n  - {name: len, sort: int}\nuifs:\n  - {name: len, args: [int], sort: int}\n",
			`error[m.yaml:4:12]: duplicate global "len" (first declared at line 2)`,
		},
		{
			"trusted with body",
			"fns:\n  - name: f\n    sig: fn()\n    trusted: true\n    body:\n      - return: ()\n",
			"error[m.yaml:2:11]: trusted function has a body (in fn f)",
		},
		{
			"step without action",
			"fns:\n  - name: f\n    sig: fn()\n    body:\n      - reason: div\n",
			"error[m.yaml:5:9]: step has no action (in fn f)",
		},
		{
			"step with two actions",
			"fns:\n  - name: f\n    sig: fn()\n    body:\n      - {assume: true, assert: true}\n",
			"error[m.yaml:5:9]: step has several actions: assume, assert (in fn f)",
		},
		{
			"misplaced companion",
			"fns:\n  - name: f\n    sig: fn()\n    body:\n      - assume: true\n        reason: div\n",
			`error[m.yaml:5:9]: "reason" does not apply to assume (in fn f)`,
		},
		{
			"let without from",
			"fns:\n  - name: f\n    sig: fn()\n    body:\n      - let: n\n",
			"error[m.yaml:5:9]: let needs from (in fn f)",
		},
		{
			"store without ty",
			"fns:\n  - name: f\n    sig: fn()\n    body:\n      - store: _1\n",
			"error[m.yaml:5:9]: store needs ty (in fn f)",
		},
		{
			"nested step",
			"fns:\n  - name: f\n    sig: fn()\n    body:\n      - if: true\n        then:\n          - let: 1n\n            from: _1\n",
			`error[m.yaml:7:18]: let "1n" is not an identifier (in fn f)`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := decode(t, tt.src).Validate()
			require.True(t, d.HasErrors())
			assert.Equal(t, tt.want, d.Format("m.yaml"))
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "refine.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o644))

	m, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, path, m.Path)
	assert.Len(t, m.Fns, 2)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read manifest")

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("fns: {\n"), 0o644))
	_, err = Load(bad)
	require.Error(t, err)
	assert.Contains(t, err.Error(), bad)
}
