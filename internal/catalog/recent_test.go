package catalog

import (
	"fmt"
	"testing"

	"storefront/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecentlyViewed(t *testing.T) {
	t.Run("Most recent first without duplicates", func(t *testing.T) {
		r := NewRecentlyViewed(storage.NewMemory(), 20)

		require.NoError(t, r.Add(Product{ID: "p1", Title: "Runner", Images: []string{"a.jpg"}}))
		require.NoError(t, r.Add(Product{ID: "p2", Title: "Trail"}))
		require.NoError(t, r.Add(Product{ID: "p1", Title: "Runner"}))

		list := r.List(0)
		require.Len(t, list, 2)
		assert.Equal(t, "p1", list[0].ID)
		assert.Equal(t, "p2", list[1].ID)
	})

	t.Run("Capped at the limit", func(t *testing.T) {
		r := NewRecentlyViewed(storage.NewMemory(), 3)
		for i := 1; i <= 5; i++ {
			require.NoError(t, r.Add(Product{ID: fmt.Sprintf("p%d", i)}))
		}

		list := r.List(0)
		require.Len(t, list, 3)
		assert.Equal(t, []string{"p5", "p4", "p3"}, []string{list[0].ID, list[1].ID, list[2].ID})
		assert.Len(t, r.List(2), 2)
	})

	t.Run("Persists across instances", func(t *testing.T) {
		st := storage.NewMemory()
		require.NoError(t, NewRecentlyViewed(st, 20).Add(Product{ID: "p1", Price: 4999}))

		list := NewRecentlyViewed(st, 20).List(0)
		require.Len(t, list, 1)
		assert.Equal(t, int64(4999), list[0].Price)
	})

	t.Run("Unreadable entry starts fresh", func(t *testing.T) {
		st := storage.NewMemory()
		require.NoError(t, st.Set(storage.KeyRecentlyViewed, "{not json"))

		r := NewRecentlyViewed(st, 0)
		assert.Empty(t, r.List(0))
		require.NoError(t, r.Add(Product{ID: "p1"}))
		assert.Len(t, r.List(0), 1)
	})

	t.Run("Clear", func(t *testing.T) {
		st := storage.NewMemory()
		r := NewRecentlyViewed(st, 20)
		require.NoError(t, r.Add(Product{ID: "p1"}))
		require.NoError(t, r.Clear())

		_, ok := st.Get(storage.KeyRecentlyViewed)
		assert.False(t, ok)
		assert.Empty(t, r.List(0))
	})
}
