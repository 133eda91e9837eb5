package catalog

import (
	"encoding/json"
	"sync"

	"storefront/internal/logger"
	"storefront/internal/storage"

	"go.uber.org/zap"
)

const DefaultRecentLimit = 20

// Viewed is the summary kept for a recently viewed product.
type Viewed struct {
	ID    string `json:"_id"`
	Title string `json:"title"`
	Brand string `json:"brand,omitempty"`
	Price int64  `json:"price"`
	Image string `json:"image,omitempty"`
}

// RecentlyViewed keeps the last viewed products on the device, most recent
// first and without duplicates.
type RecentlyViewed struct {
	store storage.Store
	limit int
	mu    sync.Mutex
}

func NewRecentlyViewed(store storage.Store, limit int) *RecentlyViewed {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	return &RecentlyViewed{store: store, limit: limit}
}

func (r *RecentlyViewed) Add(p Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	v := Viewed{ID: p.ID, Title: p.Title, Brand: p.Brand, Price: p.Price}
	if len(p.Images) > 0 {
		v.Image = p.Images[0]
	}

	list := []Viewed{v}
	for _, old := range r.load() {
		if old.ID != p.ID {
			list = append(list, old)
		}
	}
	if len(list) > r.limit {
		list = list[:r.limit]
	}

	raw, err := json.Marshal(list)
	if err != nil {
		return err
	}
	return r.store.Set(storage.KeyRecentlyViewed, string(raw))
}

// List returns up to n entries, all of them when n is not positive.
func (r *RecentlyViewed) List(n int) []Viewed {
	r.mu.Lock()
	defer r.mu.Unlock()

	list := r.load()
	if n > 0 && len(list) > n {
		list = list[:n]
	}
	return list
}

func (r *RecentlyViewed) Clear() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.store.Delete(storage.KeyRecentlyViewed)
}

// load treats a missing or unreadable entry as an empty history.
func (r *RecentlyViewed) load() []Viewed {
	raw, ok := r.store.Get(storage.KeyRecentlyViewed)
	if !ok || raw == "" {
		return []Viewed{}
	}

	var list []Viewed
	if err := json.Unmarshal([]byte(raw), &list); err != nil {
		logger.L().Warn("discarding unreadable recently viewed list",
			zap.String("component", "catalog"),
			zap.Error(err),
		)
		return []Viewed{}
	}
	if len(list) > r.limit {
		list = list[:r.limit]
	}
	return list
}
