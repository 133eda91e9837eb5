package order

import (
	"context"
	"net/url"

	"storefront/internal/api"
)

type Repository interface {
	Create(ctx context.Context, in CreateInput) (*orderResponse, error)
	Complete(ctx context.Context, id string, in CompleteInput) (*orderResponse, error)
	List(ctx context.Context) ([]Order, error)
	Get(ctx context.Context, id string) (*Order, error)
	UpdateStatus(ctx context.Context, id string, status Status) error
}

type repository struct {
	client *api.Client
}

func NewRepository(client *api.Client) Repository {
	return &repository{client: client}
}

func (r *repository) Create(ctx context.Context, in CreateInput) (*orderResponse, error) {
	var res orderResponse
	if err := r.client.Post(ctx, "/orders", in, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (r *repository) Complete(ctx context.Context, id string, in CompleteInput) (*orderResponse, error) {
	var res orderResponse
	if err := r.client.Put(ctx, "/orders/"+url.PathEscape(id)+"/complete", in, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (r *repository) List(ctx context.Context) ([]Order, error) {
	var res listResponse
	if err := r.client.Get(ctx, "/orders/my-orders", nil, &res); err != nil {
		return nil, err
	}
	if res.Orders == nil {
		return []Order{}, nil
	}
	return res.Orders, nil
}

func (r *repository) Get(ctx context.Context, id string) (*Order, error) {
	var res orderResponse
	if err := r.client.Get(ctx, "/orders/"+url.PathEscape(id), nil, &res); err != nil {
		return nil, err
	}
	if res.Order == nil {
		return nil, ErrOrderNotFound
	}
	return res.Order, nil
}

func (r *repository) UpdateStatus(ctx context.Context, id string, status Status) error {
	return r.client.Put(ctx, "/orders/"+url.PathEscape(id)+"/status", statusRequest{Status: status}, nil)
}
