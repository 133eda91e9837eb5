package order

import (
	"context"
	"testing"

	"storefront/internal/address"
	"storefront/internal/api"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) Create(ctx context.Context, in CreateInput) (*orderResponse, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*orderResponse), args.Error(1)
}

func (m *MockRepository) Complete(ctx context.Context, id string, in CompleteInput) (*orderResponse, error) {
	args := m.Called(ctx, id, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*orderResponse), args.Error(1)
}

func (m *MockRepository) List(ctx context.Context) ([]Order, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]Order), args.Error(1)
}

func (m *MockRepository) Get(ctx context.Context, id string) (*Order, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Order), args.Error(1)
}

func (m *MockRepository) UpdateStatus(ctx context.Context, id string, status Status) error {
	args := m.Called(ctx, id, status)
	return args.Error(0)
}

func createInput() CreateInput {
	return CreateInput{
		Items:           []Item{{VariantID: "v1", Size: "9", Quantity: 2, Price: 1500}},
		DeliveryAddress: address.Address{ID: "a1", Street: "12 MG Road"},
		PaymentMethod:   "cod",
		Total:           3000,
	}
}

func TestService_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		repo := new(MockRepository)
		svc := NewService(repo)

		repo.On("Create", ctx, createInput()).
			Return(&orderResponse{Success: true, Order: &Order{OrderID: "ORD-1", Status: StatusPending}}, nil).Once()

		o, err := svc.Create(ctx, createInput())
		require.NoError(t, err)
		assert.Equal(t, "ORD-1", o.Ref())
		repo.AssertExpectations(t)
	})

	t.Run("Success false", func(t *testing.T) {
		repo := new(MockRepository)
		svc := NewService(repo)

		repo.On("Create", ctx, createInput()).Return(&orderResponse{Success: false}, nil).Once()

		_, err := svc.Create(ctx, createInput())
		assert.ErrorIs(t, err, ErrRejected)
		assert.ErrorIs(t, err, api.ErrServer)
	})

	t.Run("No items", func(t *testing.T) {
		repo := new(MockRepository)
		svc := NewService(repo)

		in := createInput()
		in.Items = nil

		_, err := svc.Create(ctx, in)
		assert.ErrorIs(t, err, ErrNoItems)
		repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("No address", func(t *testing.T) {
		svc := NewService(new(MockRepository))

		in := createInput()
		in.DeliveryAddress = address.Address{}

		_, err := svc.Create(ctx, in)
		assert.ErrorIs(t, err, ErrNoAddress)
	})

	t.Run("Out of stock passes through", func(t *testing.T) {
		repo := new(MockRepository)
		svc := NewService(repo)

		repo.On("Create", ctx, createInput()).Return(nil, api.NewError(api.ErrOutOfStock, "Only 1 left")).Once()

		_, err := svc.Create(ctx, createInput())
		assert.ErrorIs(t, err, api.ErrOutOfStock)
	})
}

func TestService_Complete(t *testing.T) {
	ctx := context.Background()
	in := CompleteInput{PaymentStatus: PaymentCompleted, PaymentMethod: "card", OTP: "482913"}

	t.Run("Order in response", func(t *testing.T) {
		repo := new(MockRepository)
		svc := NewService(repo)

		repo.On("Complete", ctx, "ORD-1", in).
			Return(&orderResponse{Success: true, Order: &Order{OrderID: "ORD-1", PaymentStatus: PaymentCompleted}}, nil).Once()

		o, err := svc.Complete(ctx, "ORD-1", in)
		require.NoError(t, err)
		assert.True(t, o.Paid())
		repo.AssertNotCalled(t, "Get", mock.Anything, mock.Anything)
	})

	t.Run("Reloads when the response has no order", func(t *testing.T) {
		repo := new(MockRepository)
		svc := NewService(repo)

		repo.On("Complete", ctx, "ORD-1", in).Return(&orderResponse{Success: true}, nil).Once()
		repo.On("Get", ctx, "ORD-1").
			Return(&Order{OrderID: "ORD-1", Payment: &Payment{Status: PaymentPending}}, nil).Once()

		o, err := svc.Complete(ctx, "ORD-1", in)
		require.NoError(t, err)
		assert.False(t, o.Paid())
		repo.AssertExpectations(t)
	})

	t.Run("Invalid code", func(t *testing.T) {
		repo := new(MockRepository)
		svc := NewService(repo)

		repo.On("Complete", ctx, "ORD-1", in).Return(nil, api.NewError(api.ErrValidation, "Invalid OTP")).Once()

		_, err := svc.Complete(ctx, "ORD-1", in)
		assert.ErrorIs(t, err, api.ErrValidation)
	})

	t.Run("Missing id", func(t *testing.T) {
		_, err := NewService(new(MockRepository)).Complete(ctx, "", in)
		assert.ErrorIs(t, err, ErrIDRequired)
	})
}

func TestService_Cancel(t *testing.T) {
	ctx := context.Background()

	t.Run("Pending order", func(t *testing.T) {
		repo := new(MockRepository)
		svc := NewService(repo)

		repo.On("Get", ctx, "ORD-1").Return(&Order{OrderID: "ORD-1", Status: StatusPending}, nil).Once()
		repo.On("UpdateStatus", ctx, "ORD-1", StatusCancelled).Return(nil).Once()

		require.NoError(t, svc.Cancel(ctx, "ORD-1"))
		repo.AssertExpectations(t)
	})

	t.Run("Shipped order", func(t *testing.T) {
		repo := new(MockRepository)
		svc := NewService(repo)

		repo.On("Get", ctx, "ORD-1").Return(&Order{OrderID: "ORD-1", Status: StatusShipped}, nil).Once()

		err := svc.Cancel(ctx, "ORD-1")
		assert.ErrorIs(t, err, ErrNotCancellable)
		repo.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("Missing order", func(t *testing.T) {
		repo := new(MockRepository)
		svc := NewService(repo)

		repo.On("Get", ctx, "nope").Return(nil, api.NewError(api.ErrNotFound, "")).Once()

		err := svc.Cancel(ctx, "nope")
		assert.ErrorIs(t, err, ErrOrderNotFound)
	})
}

func TestCanTransition(t *testing.T) {
	assert.True(t, CanTransition(StatusPending, StatusCancelled))
	assert.True(t, CanTransition("CONFIRMED", StatusCancelled))
	assert.False(t, CanTransition(StatusDelivered, StatusCancelled))
	assert.False(t, CanTransition(StatusCancelled, StatusPending))
	assert.True(t, CanTransition("on-hold", StatusCancelled))
}
