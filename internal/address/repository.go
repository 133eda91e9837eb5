package address

import (
	"context"
	"net/url"

	"storefront/internal/api"
)

// Repository is the address book of the signed-in user.
type Repository interface {
	List(ctx context.Context) ([]Address, error)
	Create(ctx context.Context, in Input) ([]Address, error)
	Update(ctx context.Context, id string, in Input) ([]Address, error)
	Delete(ctx context.Context, id string) ([]Address, error)
	SetDefault(ctx context.Context, id string) ([]Address, error)
}

type repository struct {
	client *api.Client
}

func NewRepository(client *api.Client) Repository {
	return &repository{client: client}
}

func (r *repository) List(ctx context.Context) ([]Address, error) {
	var res listResponse
	if err := r.client.Get(ctx, "/users/addresses", nil, &res); err != nil {
		return nil, err
	}
	return orEmpty(res.Addresses), nil
}

func (r *repository) Create(ctx context.Context, in Input) ([]Address, error) {
	var res listResponse
	if err := r.client.Post(ctx, "/users/addresses", in, &res); err != nil {
		return nil, err
	}
	return orEmpty(res.Addresses), nil
}

func (r *repository) Update(ctx context.Context, id string, in Input) ([]Address, error) {
	var res listResponse
	if err := r.client.Put(ctx, "/users/addresses/"+url.PathEscape(id), in, &res); err != nil {
		return nil, err
	}
	return orEmpty(res.Addresses), nil
}

func (r *repository) Delete(ctx context.Context, id string) ([]Address, error) {
	var res listResponse
	if err := r.client.Delete(ctx, "/users/addresses/"+url.PathEscape(id), &res); err != nil {
		return nil, err
	}
	return orEmpty(res.Addresses), nil
}

func (r *repository) SetDefault(ctx context.Context, id string) ([]Address, error) {
	var res listResponse
	if err := r.client.Put(ctx, "/users/addresses/"+url.PathEscape(id)+"/default", nil, &res); err != nil {
		return nil, err
	}
	return orEmpty(res.Addresses), nil
}

func orEmpty(addrs []Address) []Address {
	if addrs == nil {
		return []Address{}
	}
	return addrs
}
