package cart

import (
	"context"
	"errors"
	"net/http"

	"storefront/internal/api"
)

// Repository is the backend cart for the identity attached to the client.
type Repository interface {
	GetCart(ctx context.Context) ([]Line, error)
	AddLine(ctx context.Context, key Key, quantity int) error
	RemoveLine(ctx context.Context, key Key) error
	UpdateLine(ctx context.Context, key Key, quantity int) error
	ClearCart(ctx context.Context) error
}

type repository struct {
	client *api.Client
}

func NewRepository(client *api.Client) Repository {
	return &repository{client: client}
}

func (r *repository) GetCart(ctx context.Context) ([]Line, error) {
	var res cartResponse
	if err := r.client.Get(ctx, "/cart", nil, &res); err != nil {
		return nil, err
	}
	if res.Items == nil {
		return []Line{}, nil
	}
	return res.Items, nil
}

func (r *repository) AddLine(ctx context.Context, key Key, quantity int) error {
	return r.client.Post(ctx, "/cart/add", lineRequest{
		VariantID: key.VariantID,
		Size:      key.Size,
		Quantity:  quantity,
	}, nil)
}

func (r *repository) RemoveLine(ctx context.Context, key Key) error {
	return r.client.Post(ctx, "/cart/remove", lineRequest{
		VariantID: key.VariantID,
		Size:      key.Size,
	}, nil)
}

// UpdateLine replaces the quantity atomically. It reports errUpdateUnsupported
// when the backend does not offer the endpoint.
func (r *repository) UpdateLine(ctx context.Context, key Key, quantity int) error {
	err := r.client.Put(ctx, "/cart/update", lineRequest{
		VariantID: key.VariantID,
		Size:      key.Size,
		Quantity:  quantity,
	}, nil)

	var apiErr *api.Error
	if errors.As(err, &apiErr) &&
		(apiErr.Status == http.StatusMethodNotAllowed || apiErr.Status == http.StatusNotImplemented) {
		return errUpdateUnsupported
	}
	return err
}

func (r *repository) ClearCart(ctx context.Context) error {
	return r.client.Delete(ctx, "/cart/clear", nil)
}
