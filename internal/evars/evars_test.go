package evars

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lhaig/refine/internal/rty"
)

func TestContextLifecycle(t *testing.T) {
	store := NewStore()
	c := store.New(nil)

	got, ok := store.Lookup(c.ID())
	require.True(t, ok)
	assert.Same(t, c, got)
	assert.Equal(t, 1, store.Len())

	c.Close()

	_, ok = store.Lookup(c.ID())
	assert.False(t, ok)
	assert.Equal(t, 0, store.Len())

	assert.NotPanics(t, c.Close)
	assert.Panics(t, func() { c.Fresh(rty.IntSort) })
}

func TestFreshAndSort(t *testing.T) {
	store := NewStore()
	c1 := store.New(nil)
	c2 := store.New(nil)
	defer c1.Close()
	defer c2.Close()

	e0 := c1.Fresh(rty.IntSort)
	e1 := c1.Fresh(rty.BoolSort)
	f0 := c2.Fresh(rty.IntSort)

	assert.Equal(t, rty.EVid(0), e0.ID)
	assert.Equal(t, rty.EVid(1), e1.ID)
	assert.NotEqual(t, e0, f0)

	s, ok := c1.Sort(e1)
	require.True(t, ok)
	assert.Equal(t, rty.BoolSort, s)

	_, ok = c1.Sort(f0)
	assert.False(t, ok)
	assert.Equal(t, 2, c1.Len())
}

func TestSolve(t *testing.T) {
	a := rty.NewArena()
	store := NewStore()
	c := store.New(map[rty.Name]rty.Sort{0: rty.IntSort})
	defer c.Close()

	ev := c.Fresh(rty.IntSort)
	other := c.Fresh(rty.IntSort)
	assert.Equal(t, []rty.EVar{ev, other}, c.Unsolved())

	require.NoError(t, c.Solve(ev, a.Add(a.FVar(0), a.One())))
	require.NoError(t, c.Solve(ev, a.Add(a.FVar(0), a.One())))
	assert.ErrorIs(t, c.Solve(ev, a.Zero()), ErrConflict)
	assert.ErrorIs(t, c.Solve(other, a.FVar(1)), ErrOutOfScope)

	sol, ok := c.Solution(ev)
	require.True(t, ok)
	assert.Equal(t, "a0 + 1", sol.String())
	assert.Equal(t, []rty.EVar{other}, c.Unsolved())

	foreign := store.New(nil)
	fe := foreign.Fresh(rty.IntSort)
	assert.ErrorIs(t, c.Solve(fe, a.Zero()), ErrForeignEVar)
	foreign.Close()
	assert.ErrorIs(t, foreign.Solve(fe, a.Zero()), ErrClosed)
}

func TestParallelContexts(t *testing.T) {
	store := NewStore()
	const episodes = 16

	var wg sync.WaitGroup
	for i := 0; i < episodes; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c := store.New(nil)
			for j := 0; j < 10; j++ {
				c.Fresh(rty.IntSort)
			}
			if c.Len() != 10 {
				t.Errorf("Expected 10 evars, got %d", c.Len())
			}
			c.Close()
		}()
	}
	wg.Wait()

	assert.Equal(t, 0, store.Len())
}
