package catalog

import (
	"context"
	"errors"
	"net/url"
	"strings"

	"storefront/internal/api"
	"storefront/internal/logger"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Products reads the catalog. Identical concurrent fetches of one product
// share a single backend call; the returned value must be treated as
// read-only by callers.
type Products struct {
	client *api.Client
	group  singleflight.Group
}

func NewProducts(client *api.Client) *Products {
	return &Products{client: client}
}

const sharedFetchTimeout = api.DefaultTimeout

type productsResponse struct {
	Products   []Product  `json:"products"`
	Pagination Pagination `json:"pagination"`
}

func (p *Products) List(ctx context.Context, q Query) (*Page, error) {
	var res productsResponse
	if err := p.client.Get(ctx, "/products", q.Values(), &res); err != nil {
		return nil, err
	}
	return &Page{Products: orEmpty(res.Products), Pagination: res.Pagination}, nil
}

// Get returns a product with its variants, sizes and stock.
func (p *Products) Get(ctx context.Context, id string) (*Product, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, ErrProductIDRequired
	}

	v, shared, err := p.shared(ctx, "product:"+id, func(ctx context.Context) (any, error) {
		var prod Product
		if err := p.client.Get(ctx, "/products/"+url.PathEscape(id), nil, &prod); err != nil {
			return nil, err
		}
		return &prod, nil
	})
	if errors.Is(err, api.ErrNotFound) {
		return nil, ErrProductNotFound
	}
	if err != nil {
		return nil, err
	}

	if shared {
		logger.Component(ctx, "catalog").Debug("product fetch shared", zap.String("product_id", id))
	}
	return v.(*Product), nil
}

func (p *Products) Featured(ctx context.Context) ([]Product, error) {
	v, _, err := p.shared(ctx, "featured", func(ctx context.Context) (any, error) {
		var res productsResponse
		if err := p.client.Get(ctx, "/products/featured", nil, &res); err != nil {
			return nil, err
		}
		return orEmpty(res.Products), nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]Product), nil
}

func (p *Products) FilterOptions(ctx context.Context) (*FilterOptions, error) {
	var res struct {
		Filters FilterOptions `json:"filters"`
	}
	if err := p.client.Get(ctx, "/products/filters/options", nil, &res); err != nil {
		return nil, err
	}
	return &res.Filters, nil
}

func (p *Products) Search(ctx context.Context, text string) ([]Product, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrQueryRequired
	}

	var res productsResponse
	if err := p.client.Get(ctx, "/products/search", url.Values{"q": {text}}, &res); err != nil {
		return nil, err
	}
	return orEmpty(res.Products), nil
}

// Suggestions returns search completions for partial text.
func (p *Products) Suggestions(ctx context.Context, text string) ([]string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return []string{}, nil
	}

	var res struct {
		Suggestions []string `json:"suggestions"`
	}
	if err := p.client.Get(ctx, "/products/search/suggestions", url.Values{"q": {text}}, &res); err != nil {
		return nil, err
	}
	if res.Suggestions == nil {
		return []string{}, nil
	}
	return res.Suggestions, nil
}

// shared runs fn once for concurrent callers of key. The fetch outlives any
// single caller; a caller whose ctx ends stops waiting without failing the rest.
func (p *Products) shared(ctx context.Context, key string, fn func(ctx context.Context) (any, error)) (any, bool, error) {
	ch := p.group.DoChan(key, func() (any, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sharedFetchTimeout)
		defer cancel()
		return fn(fetchCtx)
	})

	select {
	case res := <-ch:
		return res.Val, res.Shared, res.Err
	case <-ctx.Done():
		return nil, false, &api.Error{Kind: api.ErrNetwork, Err: ctx.Err()}
	}
}

func orEmpty(products []Product) []Product {
	if products == nil {
		return []Product{}
	}
	return products
}
