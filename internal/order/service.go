package order

import (
	"context"
	"errors"
	"strings"

	"storefront/internal/api"
	"storefront/internal/logger"

	"go.uber.org/zap"
)

type Service interface {
	Create(ctx context.Context, in CreateInput) (*Order, error)

	// Complete reports a payment to the backend and returns the order as the
	// backend sees it afterwards.
	Complete(ctx context.Context, id string, in CompleteInput) (*Order, error)

	List(ctx context.Context) ([]Order, error)
	Get(ctx context.Context, id string) (*Order, error)
	Cancel(ctx context.Context, id string) error
}

type service struct {
	repo Repository
}

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

func (s *service) Create(ctx context.Context, in CreateInput) (*Order, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("service", "Order"),
		zap.String("method", "Create"),
		zap.String("payment_method", in.PaymentMethod),
	)

	if len(in.Items) == 0 {
		return nil, ErrNoItems
	}
	if in.DeliveryAddress.ID == "" && in.DeliveryAddress.Street == "" {
		return nil, ErrNoAddress
	}

	res, err := s.repo.Create(ctx, in)
	if err != nil {
		log.Warn("failed to create order", zap.Error(err))
		return nil, err
	}
	if !res.Success || res.Order == nil {
		log.Error("backend did not accept order", zap.String("message", res.Message))
		return nil, ErrRejected
	}

	log.Info("order created",
		zap.String("order_id", res.Order.Ref()),
		zap.Int64("total", in.Total),
	)
	return res.Order, nil
}

func (s *service) Complete(ctx context.Context, id string, in CompleteInput) (*Order, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("service", "Order"),
		zap.String("method", "Complete"),
		zap.String("order_id", id),
		zap.String("payment_method", in.PaymentMethod),
	)

	if strings.TrimSpace(id) == "" {
		return nil, ErrIDRequired
	}

	res, err := s.repo.Complete(ctx, id, in)
	if err != nil {
		log.Warn("payment completion rejected", zap.Error(err))
		return nil, err
	}
	if !res.Success {
		log.Error("backend did not accept payment completion", zap.String("message", res.Message))
		return nil, ErrRejected
	}

	o := res.Order
	if o == nil {
		// some backends answer {success:true} only
		if o, err = s.repo.Get(ctx, id); err != nil {
			log.Warn("failed to reload order after completion", zap.Error(err))
			return nil, err
		}
	}

	log.Info("payment reported", zap.Bool("paid", o.Paid()))
	return o, nil
}

func (s *service) List(ctx context.Context) ([]Order, error) {
	orders, err := s.repo.List(ctx)
	if err != nil {
		logger.FromCtx(ctx).Warn("failed to list orders",
			zap.String("service", "Order"),
			zap.Error(err),
		)
		return nil, err
	}
	return orders, nil
}

func (s *service) Get(ctx context.Context, id string) (*Order, error) {
	if strings.TrimSpace(id) == "" {
		return nil, ErrIDRequired
	}

	o, err := s.repo.Get(ctx, id)
	if errors.Is(err, api.ErrNotFound) {
		return nil, ErrOrderNotFound
	}
	return o, err
}

// Cancel asks the backend to cancel an order that has not been processed yet.
func (s *service) Cancel(ctx context.Context, id string) error {
	log := logger.FromCtx(ctx).With(
		zap.String("service", "Order"),
		zap.String("method", "Cancel"),
		zap.String("order_id", id),
	)

	o, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if !CanTransition(o.Status, StatusCancelled) {
		log.Warn("order not cancellable", zap.String("status", string(o.Status)))
		return ErrNotCancellable
	}

	if err := s.repo.UpdateStatus(ctx, id, StatusCancelled); err != nil {
		log.Warn("failed to cancel order", zap.Error(err))
		return err
	}

	log.Info("order cancelled")
	return nil
}
