package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGuard_LastFetchWins(t *testing.T) {
	g := NewGuard()
	var shown string

	first := g.Begin("products?page=1")
	second := g.Begin("products?page=1")

	// the second response arrives first
	assert.True(t, g.Apply(second, func() { shown = "second" }))
	assert.False(t, g.Apply(first, func() { shown = "first" }))
	assert.Equal(t, "second", shown)
	assert.False(t, g.Current(first))
}

func TestGuard_KeysAreIndependent(t *testing.T) {
	g := NewGuard()

	a := g.Begin("product:p1")
	b := g.Begin("reviews:p1")

	assert.True(t, g.Current(a))
	assert.True(t, g.Apply(b, func() {}))
	assert.True(t, g.Apply(a, func() {}))
}

func TestGuard_Close(t *testing.T) {
	g := NewGuard()
	tk := g.Begin("product:p1")
	g.Close()

	applied := false
	assert.False(t, g.Apply(tk, func() { applied = true }))
	assert.False(t, applied)
}
