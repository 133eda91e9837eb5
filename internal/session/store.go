package session

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"storefront/internal/api"
	"storefront/internal/logger"
	"storefront/internal/storage"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Store is the single source of truth for who is making requests.
// Only Login and Logout write the token; every request reads it.
type Store struct {
	client  *api.Client
	storage storage.Store
	now     func() time.Time

	token atomic.Value // string

	mu        sync.Mutex
	state     State
	user      *User
	listeners map[int]func(Identity)
	nextID    int

	redirects chan Redirect
}

// New reads the persisted token once and binds the store to the client as its
// credential source and 401 policy.
func New(client *api.Client, st storage.Store) *Store {
	s := &Store{
		client:    client,
		storage:   st,
		now:       time.Now,
		listeners: map[int]func(Identity){},
		redirects: make(chan Redirect, 1),
	}
	s.token.Store("")

	log := logger.Component(context.Background(), "session")

	if tok, ok := st.Get(storage.KeyToken); ok && tok != "" {
		if exp, ok := tokenExpiry(tok); ok && !exp.After(s.now()) {
			log.Info("discarding expired token", zap.Time("expired_at", exp))
			_ = st.Delete(storage.KeyToken)
			s.state = StateAnonymous
		} else {
			s.token.Store(tok)
			s.state = StateLoading
		}
	} else {
		s.state = StateAnonymous
	}

	client.SetCredentials(s)
	client.OnUnauthorized(s.HandleUnauthorized)

	return s
}

// ----------------- Reads -----------------

func (s *Store) Token() string {
	return s.token.Load().(string)
}

// CartSessionID is the anonymous cart handle, empty once a token exists.
func (s *Store) CartSessionID() string {
	if s.Token() != "" {
		return ""
	}
	sid, _ := s.storage.Get(storage.KeyCartSessionID)
	return sid
}

func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Store) Identity() Identity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.identityLocked()
}

func (s *Store) identityLocked() Identity {
	id := Identity{State: s.state}
	if s.user != nil {
		u := *s.user
		id.User = &u
	}
	if s.state != StateAuthenticated {
		id.AnonymousID, _ = s.storage.Get(storage.KeyCartSessionID)
	}
	return id
}

// TokenExpiry reads the exp claim of the bearer token without verifying it.
func (s *Store) TokenExpiry() (time.Time, bool) {
	return tokenExpiry(s.Token())
}

func tokenExpiry(tok string) (time.Time, bool) {
	if tok == "" {
		return time.Time{}, false
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tok, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}

// AnonymousID returns the anonymous cart session id, generating and
// persisting it on first use.
func (s *Store) AnonymousID() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sid, ok := s.storage.Get(storage.KeyCartSessionID); ok && sid != "" {
		return sid, nil
	}
	sid := uuid.New().String()
	if err := s.storage.Set(storage.KeyCartSessionID, sid); err != nil {
		return "", err
	}
	return sid, nil
}

func (s *Store) Redirects() <-chan Redirect {
	return s.redirects
}

// Subscribe registers fn for identity changes and returns its unsubscribe func.
func (s *Store) Subscribe(fn func(Identity)) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

// ----------------- Lifecycle -----------------

// Restore resolves the Loading state by checking the stored token against the profile endpoint.
func (s *Store) Restore(ctx context.Context) error {
	if s.State() != StateLoading {
		return nil
	}

	log := logger.Component(ctx, "session")

	var res profileResponse
	err := s.client.Get(ctx, "/auth/profile", nil, &res)
	if err == nil && res.User == nil {
		err = api.NewError(api.ErrServer, "profile response without user")
	}
	if err != nil {
		log.Warn("auth check failed", zap.Error(err))
		s.Logout()
		return err
	}

	s.setIdentity(StateAuthenticated, res.User)
	log.Info("session restored", zap.String("user_id", res.User.ID))
	return nil
}

func (s *Store) Login(ctx context.Context, email, password string) (*User, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, ErrEmailRequired
	}
	if password == "" {
		return nil, ErrPasswordRequired
	}

	log := logger.Component(ctx, "session").With(zap.String("email", email))

	var res loginResponse
	err := s.client.Do(ctx, api.Request{
		Method:               http.MethodPost,
		Path:                 "/auth/login",
		Body:                 loginRequest{Email: email, Password: password},
		SkipUnauthorizedHook: true,
	}, &res)
	if err != nil {
		err = api.Reclassify(err, api.ErrInvalidCredentials, api.ErrNotAuthenticated, api.ErrValidation, api.ErrNotFound)
		log.Warn("login failed", zap.Error(err))
		return nil, err
	}

	if res.Token == "" {
		log.Error("login response without token")
		return nil, ErrNoToken
	}

	user := res.User
	if user == nil {
		user = &User{Email: email}
	}

	s.token.Store(res.Token)
	if err := s.storage.Set(storage.KeyToken, res.Token); err != nil {
		log.Warn("failed to persist token", zap.Error(err))
	}
	// the anonymous cart handle does not survive authentication
	if err := s.storage.Delete(storage.KeyCartSessionID); err != nil {
		log.Warn("failed to drop anonymous session", zap.Error(err))
	}

	s.setIdentity(StateAuthenticated, user)
	log.Info("login succeeded", zap.String("user_id", user.ID))

	u := *user
	return &u, nil
}

func (s *Store) Register(ctx context.Context, input RegisterInput) (string, error) {
	input.Email = strings.TrimSpace(input.Email)
	input.Name = strings.TrimSpace(input.Name)
	if err := validateRegister(input); err != nil {
		return "", err
	}

	log := logger.Component(ctx, "session").With(zap.String("email", input.Email))

	var res messageResponse
	if err := s.client.Post(ctx, "/auth/signup", input, &res); err != nil {
		log.Warn("registration failed", zap.Error(err))
		return "", err
	}

	log.Info("registration submitted")
	return res.Message, nil
}

// VerifyRegistration exchanges a one-time code for verified status. Wrong,
// used and expired codes are indistinguishable to the caller.
func (s *Store) VerifyRegistration(ctx context.Context, email, code string) error {
	email = strings.TrimSpace(email)
	code = strings.TrimSpace(code)
	if email == "" {
		return ErrEmailRequired
	}
	if code == "" {
		return ErrCodeRequired
	}

	log := logger.Component(ctx, "session").With(zap.String("email", email))

	err := s.client.Do(ctx, api.Request{
		Method:               http.MethodPost,
		Path:                 "/auth/verify-otp",
		Body:                 verifyRequest{Email: email, OTP: code, OTPType: "VERIFICATION"},
		SkipUnauthorizedHook: true,
	}, nil)
	if err == nil {
		log.Info("registration verified")
		return nil
	}

	switch api.KindOf(err) {
	case api.ErrNetwork, api.ErrServer:
		log.Warn("verification unavailable", zap.Error(err))
		return err
	default:
		log.Warn("verification rejected", zap.Error(err))
		return errInvalidCode
	}
}

// Logout clears token and identity. It never fails and is idempotent.
func (s *Store) Logout() {
	s.token.Store("")
	if err := s.storage.Delete(storage.KeyToken); err != nil {
		logger.L().Warn("failed to delete stored token", zap.Error(err))
	}
	s.setIdentity(StateAnonymous, nil)
}

// HandleUnauthorized is the global 401 policy: clear the session, send the user to login.
func (s *Store) HandleUnauthorized(ctx context.Context) {
	logger.Component(ctx, "session").Info("unauthorized response, logging out")
	s.Logout()

	select {
	case s.redirects <- Redirect{To: LoginPath, Reason: "session expired"}:
	default:
	}
}

func (s *Store) Profile(ctx context.Context) (*User, error) {
	var res profileResponse
	if err := s.client.Get(ctx, "/auth/profile", nil, &res); err != nil {
		return nil, err
	}
	if res.User == nil {
		return nil, api.NewError(api.ErrServer, "profile response without user")
	}
	return res.User, nil
}

func (s *Store) UpdateProfile(ctx context.Context, input ProfileInput) (*User, error) {
	input.Name = strings.TrimSpace(input.Name)
	if input.Name == "" {
		return nil, ErrNameRequired
	}
	if input.Phone != "" && !validPhone(input.Phone) {
		return nil, ErrInvalidPhone
	}

	var res profileResponse
	if err := s.client.Put(ctx, "/users/profile", input, &res); err != nil {
		return nil, err
	}
	if res.User != nil {
		s.mu.Lock()
		if s.state == StateAuthenticated {
			u := *res.User
			s.user = &u
		}
		s.mu.Unlock()
	}
	return res.User, nil
}

// setIdentity updates identity and notifies listeners when the owner changed.
func (s *Store) setIdentity(state State, user *User) {
	s.mu.Lock()
	before := s.identityLocked().Key()
	prevState := s.state

	s.state = state
	if user != nil {
		u := *user
		s.user = &u
	} else {
		s.user = nil
	}

	id := s.identityLocked()
	changed := before != id.Key() || (prevState == StateLoading && state != StateLoading)

	fns := make([]func(Identity), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	if !changed {
		return
	}

	logger.L().Info("identity changed",
		zap.String("component", "session"),
		zap.String("state", string(id.State)),
	)
	for _, fn := range fns {
		fn(id)
	}
}

func validateRegister(in RegisterInput) error {
	switch {
	case in.Name == "":
		return ErrNameRequired
	case in.Email == "":
		return ErrEmailRequired
	case !strings.Contains(in.Email, "@"):
		return ErrInvalidEmail
	case in.Password == "":
		return ErrPasswordRequired
	case len(in.Password) < 6:
		return ErrPasswordTooShort
	case !validPhone(in.Phone):
		return ErrInvalidPhone
	}
	return nil
}

func validPhone(phone string) bool {
	digits := 0
	for _, r := range phone {
		switch {
		case r >= '0' && r <= '9':
			digits++
		case r == ' ' || r == '-' || r == '+' || r == '(' || r == ')':
		default:
			return false
		}
	}
	return digits >= 10 && digits <= 15
}
