package address

import (
	"context"
	"errors"
	"strings"
	"unicode"

	"storefront/internal/api"
	"storefront/internal/logger"

	"go.uber.org/zap"
)

// Service validates address input before it reaches the backend.
type Service interface {
	List(ctx context.Context) ([]Address, error)

	// Create returns the new address as reported back by the backend.
	Create(ctx context.Context, in Input) (*Address, []Address, error)
	Update(ctx context.Context, id string, in Input) ([]Address, error)
	Delete(ctx context.Context, id string) ([]Address, error)

	SetDefault(ctx context.Context, id string) ([]Address, error)
}

type service struct {
	repo Repository
}

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

func (s *service) List(ctx context.Context) ([]Address, error) {
	log := s.log(ctx, "List")

	addrs, err := s.repo.List(ctx)
	if err != nil {
		log.Warn("failed to list addresses", zap.Error(err))
		return nil, err
	}

	log.Debug("addresses listed", zap.Int("count", len(addrs)))
	return addrs, nil
}

func (s *service) Create(ctx context.Context, in Input) (*Address, []Address, error) {
	log := s.log(ctx, "Create")

	in = Normalize(in)
	if err := Validate(in); err != nil {
		return nil, nil, err
	}

	before, _ := s.repo.List(ctx)

	addrs, err := s.repo.Create(ctx, in)
	if err != nil {
		log.Warn("failed to create address", zap.Error(err))
		return nil, nil, err
	}

	created := newest(before, addrs)
	if created == nil {
		log.Error("created address missing from response")
		return nil, addrs, api.NewError(api.ErrServer, "address was not returned")
	}

	log.Info("address created", zap.String("address_id", created.ID))
	return created, addrs, nil
}

func (s *service) Update(ctx context.Context, id string, in Input) ([]Address, error) {
	log := s.log(ctx, "Update").With(zap.String("address_id", id))

	if strings.TrimSpace(id) == "" {
		return nil, ErrIDRequired
	}
	in = Normalize(in)
	if err := Validate(in); err != nil {
		return nil, err
	}

	addrs, err := s.repo.Update(ctx, id, in)
	if err != nil {
		log.Warn("failed to update address", zap.Error(err))
		return nil, notFound(err)
	}

	log.Info("address updated")
	return addrs, nil
}

func (s *service) Delete(ctx context.Context, id string) ([]Address, error) {
	log := s.log(ctx, "Delete").With(zap.String("address_id", id))

	if strings.TrimSpace(id) == "" {
		return nil, ErrIDRequired
	}

	addrs, err := s.repo.Delete(ctx, id)
	if err != nil {
		log.Warn("failed to delete address", zap.Error(err))
		return nil, notFound(err)
	}

	log.Info("address deleted")
	return addrs, nil
}

func (s *service) SetDefault(ctx context.Context, id string) ([]Address, error) {
	log := s.log(ctx, "SetDefault").With(zap.String("address_id", id))

	if strings.TrimSpace(id) == "" {
		return nil, ErrIDRequired
	}

	addrs, err := s.repo.SetDefault(ctx, id)
	if err != nil {
		log.Warn("failed to set default address", zap.Error(err))
		return nil, notFound(err)
	}

	log.Info("default address changed")
	return addrs, nil
}

func (s *service) log(ctx context.Context, method string) *zap.Logger {
	return logger.FromCtx(ctx).With(
		zap.String("service", "Address"),
		zap.String("method", method),
	)
}

// ----------------- Validation -----------------

func Normalize(in Input) Input {
	in.Name = strings.TrimSpace(in.Name)
	in.Phone = strings.TrimSpace(in.Phone)
	in.Street = strings.TrimSpace(in.Street)
	in.City = strings.TrimSpace(in.City)
	in.State = strings.TrimSpace(in.State)
	in.Pincode = strings.TrimSpace(in.Pincode)
	return in
}

func Validate(in Input) error {
	switch {
	case in.Name == "":
		return ErrNameRequired
	case in.Street == "":
		return ErrStreetRequired
	case in.City == "":
		return ErrCityRequired
	case in.State == "":
		return ErrStateRequired
	}

	if !validPhone(in.Phone) {
		return ErrInvalidPhone
	}
	if !validPincode(in.Pincode) {
		return ErrInvalidPincode
	}
	return nil
}

// validPhone accepts 10 to 15 digits, ignoring spaces, dashes and a leading '+'.
func validPhone(phone string) bool {
	digits := 0
	for i, r := range phone {
		switch {
		case unicode.IsDigit(r):
			digits++
		case r == ' ' || r == '-':
		case r == '+' && i == 0:
		default:
			return false
		}
	}
	return digits >= 10 && digits <= 15
}

func validPincode(code string) bool {
	if len(code) < 4 || len(code) > 10 {
		return false
	}
	for _, r := range code {
		if !(r >= '0' && r <= '9' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z') {
			return false
		}
	}
	return true
}

// newest finds the address present in after but not in before. When before
// is unknown the last entry wins, which is where the backend appends.
func newest(before, after []Address) *Address {
	seen := make(map[string]bool, len(before))
	for _, a := range before {
		seen[a.ID] = true
	}
	for i := len(after) - 1; i >= 0; i-- {
		if !seen[after[i].ID] {
			return &after[i]
		}
	}
	return nil
}

func notFound(err error) error {
	if errors.Is(err, api.ErrNotFound) {
		return ErrAddressNotFound
	}
	return err
}
