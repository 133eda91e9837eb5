package catalog

import (
	"context"
	"errors"
	"net/url"
	"strings"

	"storefront/internal/api"
)

type Wishlist struct {
	client *api.Client
}

func NewWishlist(client *api.Client) *Wishlist {
	return &Wishlist{client: client}
}

func (w *Wishlist) List(ctx context.Context) ([]WishlistItem, error) {
	var res wishlistResponse
	if err := w.client.Get(ctx, "/wishlist", nil, &res); err != nil {
		return nil, err
	}
	if res.Items == nil {
		return []WishlistItem{}, nil
	}
	return res.Items, nil
}

func (w *Wishlist) Add(ctx context.Context, productID string) error {
	if strings.TrimSpace(productID) == "" {
		return ErrProductIDRequired
	}
	return w.client.Post(ctx, "/wishlist", wishlistRequest{ProductID: productID}, nil)
}

// Remove is idempotent.
func (w *Wishlist) Remove(ctx context.Context, productID string) error {
	if strings.TrimSpace(productID) == "" {
		return ErrProductIDRequired
	}
	err := w.client.Delete(ctx, "/wishlist/"+url.PathEscape(productID), nil)
	if errors.Is(err, api.ErrNotFound) {
		return nil
	}
	return err
}

func (w *Wishlist) Contains(ctx context.Context, productID string) (bool, error) {
	items, err := w.List(ctx)
	if err != nil {
		return false, err
	}
	for _, it := range items {
		if it.Product.ID == productID {
			return true, nil
		}
	}
	return false, nil
}
