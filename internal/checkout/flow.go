package checkout

import (
	"context"
	"errors"
	"sync"
	"time"
	"unicode"

	"storefront/internal/address"
	"storefront/internal/api"
	"storefront/internal/cart"
	"storefront/internal/logger"
	"storefront/internal/order"
	"storefront/internal/payment"
	"storefront/internal/session"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	DefaultMaxOtpAttempts = 5
	otpLength             = 6
)

// ----------------- Collaborators -----------------

type Identity interface {
	Identity() session.Identity
}

type Cart interface {
	IsEmpty() bool
	Lines() []cart.Line
	TotalPrice() int64
	Clear(ctx context.Context) error
}

type AddressBook interface {
	List(ctx context.Context) ([]address.Address, error)
	Create(ctx context.Context, in address.Input) (*address.Address, []address.Address, error)
}

type Orders interface {
	Create(ctx context.Context, in order.CreateInput) (*order.Order, error)
	Complete(ctx context.Context, id string, in order.CompleteInput) (*order.Order, error)
}

// PendingPayment bridges order creation and payment confirmation.
type PendingPayment struct {
	OrderID  string
	Method   payment.Method
	Amount   int64
	Target   *payment.Target
	Attempts int
}

// Snapshot is a read-only view of the flow for rendering.
type Snapshot struct {
	State     State
	Busy      bool
	Addresses []address.Address
	Selected  *address.Address
	Method    payment.Method
	Pending   *PendingPayment
	Order     *order.Order
	Err       error
}

// ----------------- Flow -----------------

// Flow drives one checkout. Network calls run without holding mu; busy marks
// the flow as occupied so that a second submission is rejected instead of
// queued.
type Flow struct {
	ids       Identity
	cart      Cart
	addresses AddressBook
	orders    Orders

	payee          string
	maxOtpAttempts int
	otpLimiter     *rate.Limiter

	mu         sync.Mutex
	state      State
	busy       bool
	gen        uint64
	addrs      []address.Address
	selectedID string
	method     payment.Method
	card       *payment.CardDetails
	pending    *PendingPayment
	placed     *order.Order
	err        error
}

type Option func(*Flow)

func WithMaxOtpAttempts(n int) Option {
	return func(f *Flow) {
		if n > 0 {
			f.maxOtpAttempts = n
		}
	}
}

func WithPayee(payee string) Option {
	return func(f *Flow) { f.payee = payee }
}

// WithOtpLimiter paces code submissions.
func WithOtpLimiter(l *rate.Limiter) Option {
	return func(f *Flow) { f.otpLimiter = l }
}

func New(ids Identity, c Cart, addresses AddressBook, orders Orders, opts ...Option) *Flow {
	f := &Flow{
		ids:            ids,
		cart:           c,
		addresses:      addresses,
		orders:         orders,
		maxOtpAttempts: DefaultMaxOtpAttempts,
		otpLimiter:     rate.NewLimiter(rate.Every(time.Second), 3),
		state:          StateIdle,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// ----------------- Reads -----------------

func (f *Flow) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *Flow) Busy() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.busy
}

func (f *Flow) Snapshot() Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()

	s := Snapshot{
		State:     f.state,
		Busy:      f.busy,
		Addresses: append([]address.Address(nil), f.addrs...),
		Method:    f.method,
		Err:       f.err,
	}
	if a := address.Find(f.addrs, f.selectedID); a != nil {
		sel := *a
		s.Selected = &sel
	}
	if f.pending != nil {
		p := *f.pending
		s.Pending = &p
	}
	if f.placed != nil {
		o := *f.placed
		s.Order = &o
	}
	return s
}

// ----------------- Address step -----------------

// Begin enters address selection. It fails without changing state when the
// shopper is not logged in or the cart is empty. An address fetch failure
// leaves the flow in address selection with the error recorded, so the
// fetch can be retried with ReloadAddresses.
func (f *Flow) Begin(ctx context.Context) error {
	f.mu.Lock()
	if f.busy {
		f.mu.Unlock()
		return ErrBusy
	}
	if f.state != StateIdle && !f.state.Terminal() {
		f.mu.Unlock()
		return ErrInvalidState
	}
	if !f.ids.Identity().Authenticated() {
		f.mu.Unlock()
		return ErrLoginRequired
	}
	if f.cart.IsEmpty() {
		f.mu.Unlock()
		return ErrCartEmpty
	}

	f.reset()
	f.transition(ctx, StateAddressSelection)
	f.mu.Unlock()

	return f.ReloadAddresses(ctx)
}

func (f *Flow) ReloadAddresses(ctx context.Context) error {
	gen, err := f.acquire(StateAddressSelection)
	if err != nil {
		return err
	}

	addrs, err := f.addresses.List(ctx)

	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.release(gen) {
		return context.Canceled
	}

	if err != nil {
		f.log(ctx).Warn("failed to fetch addresses", zap.Error(err))
		f.err = err
		return err
	}

	f.err = nil
	f.addrs = addrs
	if f.selectedID == "" || address.Find(addrs, f.selectedID) == nil {
		f.selectedID = ""
		if def := address.SelectDefault(addrs); def != nil {
			f.selectedID = def.ID
		}
	}
	return nil
}

func (f *Flow) SelectAddress(id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.busy {
		return ErrBusy
	}
	if f.state != StateAddressSelection {
		return ErrInvalidState
	}
	if address.Find(f.addrs, id) == nil {
		return address.ErrAddressNotFound
	}
	f.selectedID = id
	return nil
}

// AddAddress creates an address and selects it.
func (f *Flow) AddAddress(ctx context.Context, in address.Input) error {
	gen, err := f.acquire(StateAddressSelection)
	if err != nil {
		return err
	}

	created, all, err := f.addresses.Create(ctx, in)

	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.release(gen) {
		return context.Canceled
	}

	if err != nil {
		f.err = err
		return err
	}

	f.err = nil
	f.addrs = all
	f.selectedID = created.ID
	return nil
}

// ConfirmAddress moves on to payment selection with exactly one address selected.
func (f *Flow) ConfirmAddress(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.busy {
		return ErrBusy
	}
	if f.state != StateAddressSelection {
		return ErrInvalidState
	}
	if address.Find(f.addrs, f.selectedID) == nil {
		return ErrAddressRequired
	}

	f.err = nil
	f.transition(ctx, StatePaymentSelection)
	return nil
}

// ChangeAddress goes back from payment selection.
func (f *Flow) ChangeAddress(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.busy {
		return ErrBusy
	}
	if f.state != StatePaymentSelection {
		return ErrInvalidState
	}
	f.transition(ctx, StateAddressSelection)
	return nil
}

// ----------------- Payment step -----------------

// SelectPayment records the method. Card details are only needed for
// MethodCard and are checked on Submit.
func (f *Flow) SelectPayment(method payment.Method, card *payment.CardDetails) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.busy {
		return ErrBusy
	}
	if f.state != StatePaymentSelection {
		return ErrInvalidState
	}
	method, err := payment.ParseMethod(string(method))
	if err != nil {
		return err
	}

	f.method = method
	f.card = nil
	if method == payment.MethodCard && card != nil {
		c := *card
		f.card = &c
	}
	return nil
}

// Submit creates the order. Validation happens before any network call.
// A failed creation returns the flow to payment selection; the order is only
// considered created when the backend confirms it.
func (f *Flow) Submit(ctx context.Context) error {
	f.mu.Lock()
	if f.busy || f.state == StateOrderSubmitting {
		f.mu.Unlock()
		return ErrBusy
	}
	if f.state != StatePaymentSelection {
		f.mu.Unlock()
		return ErrInvalidState
	}

	in, err := f.orderInputLocked()
	if err != nil {
		f.err = err
		f.mu.Unlock()
		return err
	}

	method := f.method
	f.busy = true
	f.err = nil
	gen := f.gen
	f.transition(ctx, StateOrderSubmitting)
	f.mu.Unlock()

	log := f.log(ctx).With(zap.String("payment_method", string(method)))

	o, err := f.orders.Create(ctx, in)
	if err == nil && !method.NeedsConfirmation() {
		f.clearCart(ctx)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.release(gen) {
		return context.Canceled
	}

	if err != nil {
		log.Warn("order submission failed", zap.Error(err))
		f.err = err
		f.transition(ctx, StatePaymentSelection)
		return err
	}

	// card details are not kept past submission
	f.card = nil

	switch method {
	case payment.MethodCOD:
		f.placed = o
		f.complete(ctx)
	case payment.MethodCard:
		f.pending = &PendingPayment{OrderID: o.Ref(), Method: method, Amount: in.Total}
		f.placed = o
		f.transition(ctx, StateAwaitingOtp)
	case payment.MethodWallet:
		target := payment.WalletTarget(in.Total, f.payee, o.Ref())
		f.pending = &PendingPayment{OrderID: o.Ref(), Method: method, Amount: in.Total, Target: &target}
		f.placed = o
		f.transition(ctx, StateAwaitingExternalConfirmation)
	}

	log.Info("order placed", zap.String("order_id", o.Ref()), zap.Int64("total", in.Total))
	return nil
}

func (f *Flow) orderInputLocked() (order.CreateInput, error) {
	if f.method == "" {
		return order.CreateInput{}, ErrPaymentRequired
	}
	if f.method == payment.MethodCard {
		if f.card == nil {
			return order.CreateInput{}, ErrCardRequired
		}
		if err := payment.ValidateCard(*f.card); err != nil {
			return order.CreateInput{}, err
		}
	}

	addr := address.Find(f.addrs, f.selectedID)
	if addr == nil {
		return order.CreateInput{}, ErrAddressRequired
	}

	lines := f.cart.Lines()
	if len(lines) == 0 {
		return order.CreateInput{}, ErrCartEmpty
	}

	items := make([]order.Item, 0, len(lines))
	for _, l := range lines {
		items = append(items, order.Item{
			ProductID: l.ProductID,
			VariantID: l.VariantID,
			Name:      l.ProductName,
			Size:      l.Size,
			Quantity:  l.Quantity,
			Price:     l.Price,
		})
	}

	return order.CreateInput{
		Items:           items,
		DeliveryAddress: *addr,
		PaymentMethod:   f.method.WireName(),
		Total:           f.cart.TotalPrice(),
	}, nil
}

// ----------------- Confirmation step -----------------

// VerifyOtp submits the one-time code for a card payment. The backend decides
// whether the code is right. A wrong code keeps the flow waiting until the
// attempt limit is reached. Calling it after completion is a no-op.
func (f *Flow) VerifyOtp(ctx context.Context, code string) error {
	f.mu.Lock()
	if f.state == StateCompleted {
		f.mu.Unlock()
		return nil
	}
	if f.busy {
		f.mu.Unlock()
		return ErrBusy
	}
	if f.state != StateAwaitingOtp {
		f.mu.Unlock()
		return ErrInvalidState
	}
	if !validOtp(code) {
		f.err = ErrInvalidOtpFormat
		f.mu.Unlock()
		return ErrInvalidOtpFormat
	}
	if !f.otpLimiter.Allow() {
		f.mu.Unlock()
		return ErrOtpRateLimited
	}

	orderID := f.pending.OrderID
	f.busy = true
	gen := f.gen
	f.mu.Unlock()

	log := f.log(ctx).With(zap.String("order_id", orderID))

	o, err := f.orders.Complete(ctx, orderID, order.CompleteInput{
		PaymentStatus: order.PaymentCompleted,
		PaymentMethod: payment.MethodCard.WireName(),
		OTP:           code,
	})
	err = api.Reclassify(err, api.ErrInvalidCode, api.ErrValidation)
	if err == nil && o.Paid() {
		f.clearCart(ctx)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.release(gen) {
		return context.Canceled
	}

	if errors.Is(err, api.ErrInvalidCode) {
		f.pending.Attempts++
		log.Warn("invalid payment code", zap.Int("attempts", f.pending.Attempts))

		if f.pending.Attempts >= f.maxOtpAttempts {
			f.err = ErrTooManyAttempts
			f.transition(ctx, StateFailed)
			return ErrTooManyAttempts
		}
		f.err = err
		return err
	}
	if err != nil {
		log.Warn("payment verification failed", zap.Error(err))
		f.err = err
		return err
	}
	if !o.Paid() {
		log.Warn("backend has not recorded the card payment")
		f.err = ErrPaymentNotConfirmed
		return ErrPaymentNotConfirmed
	}

	f.placed = o
	f.complete(ctx)
	return nil
}

// ConfirmExternalPayment tells the backend the shopper has paid from their
// wallet. The order only counts as paid once the backend reports it so.
func (f *Flow) ConfirmExternalPayment(ctx context.Context) error {
	f.mu.Lock()
	if f.state == StateCompleted {
		f.mu.Unlock()
		return nil
	}
	if f.busy {
		f.mu.Unlock()
		return ErrBusy
	}
	if f.state != StateAwaitingExternalConfirmation {
		f.mu.Unlock()
		return ErrInvalidState
	}

	orderID := f.pending.OrderID
	f.busy = true
	gen := f.gen
	f.mu.Unlock()

	log := f.log(ctx).With(zap.String("order_id", orderID))

	o, err := f.orders.Complete(ctx, orderID, order.CompleteInput{
		PaymentStatus: order.PaymentCompleted,
		PaymentMethod: payment.MethodWallet.WireName(),
	})
	if err == nil && o.Paid() {
		f.clearCart(ctx)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.release(gen) {
		return context.Canceled
	}

	if err != nil {
		log.Warn("wallet confirmation failed", zap.Error(err))
		f.err = err
		return err
	}
	if !o.Paid() {
		log.Info("wallet payment not received yet")
		f.err = ErrPaymentNotConfirmed
		return ErrPaymentNotConfirmed
	}

	f.placed = o
	f.complete(ctx)
	return nil
}

// Cancel leaves the flow. An order that was already created stays pending on
// the backend. Late responses of calls still in flight are dropped.
func (f *Flow) Cancel(ctx context.Context) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.state != StateIdle {
		f.transition(ctx, StateIdle)
	}
	f.reset()
}

// ----------------- internals -----------------

// clearCart runs once per order, right after the backend confirmed it, and
// before the flow can reach Completed. A failed clear does not undo the order.
func (f *Flow) clearCart(ctx context.Context) {
	if err := f.cart.Clear(ctx); err != nil {
		f.log(ctx).Warn("order completed but cart could not be cleared", zap.Error(err))
	}
}

// complete finishes the flow. Must hold mu.
func (f *Flow) complete(ctx context.Context) {
	f.pending = nil
	f.err = nil
	f.transition(ctx, StateCompleted)
}

// acquire marks the flow busy for a network call made in state want.
func (f *Flow) acquire(want State) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.busy {
		return 0, ErrBusy
	}
	if f.state != want {
		return 0, ErrInvalidState
	}
	f.busy = true
	return f.gen, nil
}

// release clears busy and reports whether the result of the call is still
// wanted. Must hold mu.
func (f *Flow) release(gen uint64) bool {
	if gen != f.gen {
		return false
	}
	f.busy = false
	return true
}

// reset drops everything tied to the current attempt. Must hold mu.
func (f *Flow) reset() {
	f.gen++
	f.busy = false
	f.addrs = nil
	f.selectedID = ""
	f.method = ""
	f.card = nil
	f.pending = nil
	f.placed = nil
	f.err = nil
}

// transition moves to a new state. Must hold mu.
func (f *Flow) transition(ctx context.Context, to State) {
	from := f.state
	if !canTransition(from, to) {
		f.log(ctx).Error("illegal checkout transition",
			zap.String("from", string(from)),
			zap.String("to", string(to)),
		)
		return
	}
	f.state = to
	f.log(ctx).Info("checkout state changed",
		zap.String("from", string(from)),
		zap.String("to", string(to)),
	)
}

func (f *Flow) log(ctx context.Context) *zap.Logger {
	return logger.Component(ctx, "checkout")
}

func validOtp(code string) bool {
	if len(code) != otpLength {
		return false
	}
	for _, r := range code {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
