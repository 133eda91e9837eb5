package cart

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"storefront/internal/api"
	"storefront/internal/logger"
	"storefront/internal/session"

	"go.uber.org/zap"
)

const reloadTimeout = 30 * time.Second

// IdentitySource is the part of the session store the cart depends on.
type IdentitySource interface {
	Identity() session.Identity
	AnonymousID() (string, error)
}

// Store is a local mirror of the backend cart for the current identity.
//
// Every operation that talks to the backend holds opMu for its whole round
// trip, including the reload that follows a mutation, so at most one is in
// flight. The snapshot itself is guarded by mu and is only replaced by a
// completed load.
type Store struct {
	repo           Repository
	ids            IdentitySource
	allowAnonymous bool

	opMu sync.Mutex

	mu      sync.RWMutex
	lines   []Line
	loadErr error
	loaded  bool
	gen     uint64

	// set once the backend has answered that /cart/update does not exist
	noAtomicUpdate bool

	bg sync.WaitGroup
}

type Option func(*Store)

// WithAnonymousCarts lets a visitor without a session keep a cart under an
// anonymous session id.
func WithAnonymousCarts() Option {
	return func(s *Store) { s.allowAnonymous = true }
}

func NewStore(repo Repository, ids IdentitySource, opts ...Option) *Store {
	s := &Store{repo: repo, ids: ids}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ----------------- Derived reads -----------------

// Count is the sum of line quantities of the latest snapshot.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, l := range s.lines {
		n += l.Quantity
	}
	return n
}

// TotalPrice is the sum of quantity times current price over the latest snapshot.
func (s *Store) TotalPrice() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var total int64
	for _, l := range s.lines {
		total += l.Subtotal()
	}
	return total
}

func (s *Store) Lines() []Line {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Line, len(s.lines))
	copy(out, s.lines)
	return out
}

func (s *Store) Line(key Key) (Line, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, l := range s.lines {
		if l.Key() == key {
			return l, true
		}
	}
	return Line{}, false
}

func (s *Store) IsEmpty() bool {
	return s.Count() == 0
}

// Err is the error of the last load, nil after a successful one. The snapshot
// is kept when a load fails.
func (s *Store) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loadErr
}

func (s *Store) Loaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loaded
}

// StockWarning is the advisory client-side stock check. The backend stays authoritative.
func (s *Store) StockWarning(key Key, quantity, stock int) error {
	existing := 0
	if l, ok := s.Line(key); ok {
		existing = l.Quantity
	}
	if stock >= 0 && existing+quantity > stock {
		return ErrInsufficientStock
	}
	return nil
}

// ----------------- Operations -----------------

// Load replaces the local snapshot with the backend cart of the current identity.
func (s *Store) Load(ctx context.Context) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()
	return s.loadLocked(ctx)
}

func (s *Store) AddLine(ctx context.Context, variantID, size string, quantity int) error {
	key, err := newKey(variantID, size)
	if err != nil {
		return err
	}
	if quantity < 1 {
		return ErrInvalidQuantity
	}

	s.opMu.Lock()
	defer s.opMu.Unlock()

	if err := s.ensureOwner(); err != nil {
		return err
	}

	log := s.log(ctx, "AddLine", key)

	if err := s.repo.AddLine(ctx, key, quantity); err != nil {
		log.Warn("add to cart failed", zap.Error(err))
		return err
	}

	log.Info("line added", zap.Int("quantity", quantity))
	s.refresh(ctx, log)
	return nil
}

// AddLineWithStock adds after the advisory stock check against a known stock
// level. A negative stock means unknown.
func (s *Store) AddLineWithStock(ctx context.Context, variantID, size string, quantity, stock int) error {
	key, err := newKey(variantID, size)
	if err != nil {
		return err
	}
	if err := s.StockWarning(key, quantity, stock); err != nil {
		return err
	}
	return s.AddLine(ctx, variantID, size, quantity)
}

// RemoveLine is idempotent: removing an absent line succeeds.
func (s *Store) RemoveLine(ctx context.Context, variantID, size string) error {
	key, err := newKey(variantID, size)
	if err != nil {
		return err
	}

	s.opMu.Lock()
	defer s.opMu.Unlock()

	if err := s.ensureOwner(); err != nil {
		return err
	}
	return s.removeLocked(ctx, key)
}

func (s *Store) removeLocked(ctx context.Context, key Key) error {
	log := s.log(ctx, "RemoveLine", key)

	err := s.repo.RemoveLine(ctx, key)
	if errors.Is(err, api.ErrNotFound) {
		log.Debug("line already absent")
		return nil
	}
	if err != nil {
		log.Warn("remove from cart failed", zap.Error(err))
		return err
	}

	log.Info("line removed")
	s.refresh(ctx, log)
	return nil
}

// UpdateQuantity replaces a line's quantity; a quantity of zero or less removes it.
func (s *Store) UpdateQuantity(ctx context.Context, variantID, size string, quantity int) error {
	key, err := newKey(variantID, size)
	if err != nil {
		return err
	}

	s.opMu.Lock()
	defer s.opMu.Unlock()

	if err := s.ensureOwner(); err != nil {
		return err
	}

	if quantity <= 0 {
		return s.removeLocked(ctx, key)
	}

	log := s.log(ctx, "UpdateQuantity", key).With(zap.Int("quantity", quantity))

	if !s.noAtomicUpdate {
		err := s.repo.UpdateLine(ctx, key, quantity)
		if err == nil {
			log.Info("line updated")
			s.refresh(ctx, log)
			return nil
		}
		if !errors.Is(err, errUpdateUnsupported) {
			log.Warn("update quantity failed", zap.Error(err))
			return err
		}
		log.Info("atomic update unavailable, using remove then add")
		s.noAtomicUpdate = true
	}

	// The snapshot is not touched between the two calls, so the zero-item
	// intermediate state is never visible.
	if err := s.repo.RemoveLine(ctx, key); err != nil && !errors.Is(err, api.ErrNotFound) {
		log.Warn("fallback remove failed", zap.Error(err))
		return err
	}
	if err := s.repo.AddLine(ctx, key, quantity); err != nil {
		log.Warn("fallback add failed", zap.Error(err))
		s.refresh(ctx, log)
		return err
	}

	log.Info("line updated")
	s.refresh(ctx, log)
	return nil
}

// Clear removes all lines. It is idempotent.
func (s *Store) Clear(ctx context.Context) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	log := logger.Component(ctx, "cart").With(zap.String("method", "Clear"))

	if s.ids.Identity().Key() == "" {
		s.replace(s.currentGen(), []Line{}, nil)
		return nil
	}

	gen := s.currentGen()
	err := s.repo.ClearCart(ctx)
	if err != nil && !errors.Is(err, api.ErrNotFound) {
		log.Warn("clear cart failed", zap.Error(err))
		return err
	}

	log.Info("cart cleared")
	s.replace(gen, []Line{}, nil)
	s.refresh(ctx, log)
	return nil
}

// IdentityChanged drops the snapshot of the previous owner and reloads for
// the new one in the background. The anonymous cart is not merged into the
// authenticated one.
func (s *Store) IdentityChanged(id session.Identity) {
	s.mu.Lock()
	s.gen++
	s.lines = nil
	s.loadErr = nil
	s.loaded = false
	s.mu.Unlock()

	logger.L().Info("cart owner changed, reloading",
		zap.String("component", "cart"),
		zap.String("state", string(id.State)),
	)

	s.bg.Add(1)
	go func() {
		defer s.bg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), reloadTimeout)
		defer cancel()
		_ = s.Load(ctx)
	}()
}

// Wait blocks until background reloads have finished.
func (s *Store) Wait() {
	s.bg.Wait()
}

// ----------------- internals -----------------

func (s *Store) loadLocked(ctx context.Context) error {
	gen := s.currentGen()
	log := logger.Component(ctx, "cart").With(zap.String("method", "Load"))

	if s.ids.Identity().Key() == "" {
		s.replace(gen, []Line{}, nil)
		return nil
	}

	lines, err := s.repo.GetCart(ctx)
	if err != nil {
		log.Warn("load cart failed, keeping last snapshot", zap.Error(err))
		s.replace(gen, nil, err)
		return err
	}

	if s.replace(gen, lines, nil) {
		log.Info("cart loaded", zap.Int("lines", len(lines)))
	} else {
		log.Info("discarding cart of previous owner")
	}
	return nil
}

// refresh reloads after a successful mutation. The mutation stands even if the
// reload fails; the failure is reported through Err.
func (s *Store) refresh(ctx context.Context, log *zap.Logger) {
	if err := s.loadLocked(ctx); err != nil {
		log.Warn("cart changed but refresh failed", zap.Error(err))
	}
}

// replace applies a load result if no identity change happened since gen.
// A nil lines with a non-nil err keeps the previous snapshot.
func (s *Store) replace(gen uint64, lines []Line, err error) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.gen {
		return false
	}
	s.loadErr = err
	if err == nil {
		s.lines = lines
		s.loaded = true
	}
	return true
}

func (s *Store) currentGen() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.gen
}

// ensureOwner makes sure the cart has an owner before a mutation.
func (s *Store) ensureOwner() error {
	id := s.ids.Identity()
	if id.Authenticated() {
		return nil
	}
	if !s.allowAnonymous {
		return ErrLoginRequired
	}
	if id.AnonymousID != "" {
		return nil
	}
	_, err := s.ids.AnonymousID()
	return err
}

func (s *Store) log(ctx context.Context, method string, key Key) *zap.Logger {
	return logger.Component(ctx, "cart").With(
		zap.String("method", method),
		zap.String("variant_id", key.VariantID),
		zap.String("size", key.Size),
	)
}

func newKey(variantID, size string) (Key, error) {
	variantID = strings.TrimSpace(variantID)
	size = strings.TrimSpace(size)
	if variantID == "" {
		return Key{}, ErrVariantRequired
	}
	if size == "" {
		return Key{}, ErrSizeRequired
	}
	return Key{VariantID: variantID, Size: size}, nil
}
