package intern

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type node struct {
	id   ID
	name string
}

func TestInternReturnsSameValue(t *testing.T) {
	tbl := NewTable[*node]()
	mk := func(name string) *node {
		return tbl.Intern(NewKey('n').Str(name).String(), func(id ID) *node {
			return &node{id: id, name: name}
		})
	}

	a := mk("x")
	b := mk("x")
	c := mk("y")

	assert.Same(t, a, b)
	assert.NotSame(t, a, c)
	assert.Equal(t, a.id, b.id)
	assert.NotEqual(t, a.id, c.id)
	assert.Equal(t, 2, tbl.Len())
}

func TestKeyBuilderDoesNotCollide(t *testing.T) {
	tests := []struct {
		name string
		a, b string
	}{
		{"split strings", NewKey('s').Str("ab").Str("c").String(), NewKey('s').Str("a").Str("bc").String()},
		{"list vs scalars", NewKey('l').IDs(1, 2).String(), NewKey('l').ID(1).ID(2).String()},
		{"tags", NewKey('a').ID(1).String(), NewKey('b').ID(1).String()},
		{"bools", NewKey('b').Bool(true).String(), NewKey('b').Bool(false).String()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotEqual(t, tt.a, tt.b)
		})
	}
}

func TestInternConcurrent(t *testing.T) {
	tbl := NewTable[*node]()
	const workers = 8
	results := make([]*node, workers)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = tbl.Intern(NewKey('n').Str("shared").String(), func(id ID) *node {
				return &node{id: id, name: "shared"}
			})
		}(i)
	}
	wg.Wait()

	for i := 1; i < workers; i++ {
		require.Same(t, results[0], results[i])
	}
	assert.Equal(t, 1, tbl.Len())
}
