package catalog

import (
	"context"
	"net/url"
	"strconv"
	"strings"

	"storefront/internal/api"
	"storefront/internal/logger"

	"go.uber.org/zap"
)

type Reviews struct {
	client *api.Client
}

func NewReviews(client *api.Client) *Reviews {
	return &Reviews{client: client}
}

// List returns one page of reviews. sort is passed through, e.g. "newest".
func (r *Reviews) List(ctx context.Context, productID string, page int, sort string) (*ReviewPage, error) {
	if strings.TrimSpace(productID) == "" {
		return nil, ErrProductIDRequired
	}

	q := url.Values{}
	if page > 0 {
		q.Set("page", strconv.Itoa(page))
	}
	if sort != "" {
		q.Set("sort", sort)
	}

	var res ReviewPage
	if err := r.client.Get(ctx, "/reviews/product/"+url.PathEscape(productID), q, &res); err != nil {
		return nil, err
	}
	if res.Reviews == nil {
		res.Reviews = []Review{}
	}
	return &res, nil
}

func (r *Reviews) Create(ctx context.Context, productID string, in ReviewInput) error {
	if strings.TrimSpace(productID) == "" {
		return ErrProductIDRequired
	}
	if in.Rating < 1 || in.Rating > 5 {
		return ErrInvalidRating
	}
	comment := strings.TrimSpace(in.Comment)
	if comment == "" {
		return ErrCommentRequired
	}

	fit := in.Fit
	if fit == "" {
		fit = "true_to_size"
	}

	err := r.client.Post(ctx, "/reviews", reviewRequest{
		ProductID: productID,
		Rating:    in.Rating,
		Title:     strings.TrimSpace(in.Title),
		Comment:   comment,
		Size:      in.Size,
		Fit:       fit,
	}, nil)
	if err != nil {
		return err
	}

	logger.Component(ctx, "catalog").Info("review submitted",
		zap.String("product_id", productID),
		zap.Int("rating", in.Rating),
	)
	return nil
}

// MarkHelpful returns the review's new helpful count.
func (r *Reviews) MarkHelpful(ctx context.Context, reviewID string) (int, error) {
	var res struct {
		Helpful int `json:"helpful"`
	}
	if err := r.client.Post(ctx, "/reviews/"+url.PathEscape(reviewID)+"/helpful", nil, &res); err != nil {
		return 0, err
	}
	return res.Helpful, nil
}
