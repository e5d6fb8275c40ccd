// Package session owns the authenticated identity and the two passcode
// flows: registration (register, verify, resend) and password recovery
// (request, resend, reset). Network calls run without holding the store
// lock; a per-flow in-flight flag rejects a second call while one is
// outstanding, and a per-flow generation discards results that arrive
// after the flow was abandoned.
package session

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/fjod/go_cart/storefront/internal/apperr"
	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/events"
	"github.com/fjod/go_cart/storefront/internal/logger"
	"github.com/fjod/go_cart/storefront/internal/store"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/sync/singleflight"
)

// Resend cooldowns in seconds.
const (
	RegistrationCooldown = 30
	ResetInitialCooldown = 60
	ResetResendCooldown  = 30
)

var (
	ErrOperationInFlight = apperr.Validation("", "Please wait for the current request to finish")
	ErrCooldownActive    = apperr.Validation("code", "Please wait before requesting a new code")
	ErrNoChallenge       = apperr.Validation("code", "Request a verification code first")
	ErrPasswordMismatch  = apperr.Validation("confirmPassword", "Passwords do not match")
	ErrNotAuthenticated  = &apperr.Error{Kind: apperr.KindAuth, Message: "Please log in to continue"}

	// ErrFlowAbandoned is returned to a caller whose request finished after
	// its flow was abandoned; the result was discarded.
	ErrFlowAbandoned = errors.New("flow abandoned before the request completed")
)

// AuthAPI is the part of the commerce API the session store calls.
// Consumers define this interface.
type AuthAPI interface {
	Register(ctx context.Context, name, email, password string) (string, error)
	VerifyOTP(ctx context.Context, email, otp string) (domain.AuthResult, error)
	ResendOTP(ctx context.Context, email string) (string, error)
	Login(ctx context.Context, email, password string) (domain.AuthResult, error)
	Me(ctx context.Context, token string) (domain.User, error)
	ForgotPassword(ctx context.Context, email string) (string, error)
	ResetPassword(ctx context.Context, email, otp, password string) (string, error)
	ChangePassword(ctx context.Context, token, currentPassword, newPassword string) (string, error)
}

type FlowStep int

const (
	StepIdle FlowStep = iota
	StepAwaitingRegistration
	StepAwaitingCode
	StepAwaitingResetRequest
	StepAwaitingResetCode
)

func (s FlowStep) String() string {
	switch s {
	case StepAwaitingRegistration:
		return "AWAITING_REGISTRATION"
	case StepAwaitingCode:
		return "AWAITING_CODE"
	case StepAwaitingResetRequest:
		return "AWAITING_RESET_REQUEST"
	case StepAwaitingResetCode:
		return "AWAITING_RESET_CODE"
	default:
		return "IDLE"
	}
}

type flow struct {
	mode       domain.ChallengeMode
	step       FlowStep
	email      string
	inFlight   bool
	generation uint64
	cooldown   *Countdown
}

func (f *flow) challenge() (domain.OnboardingChallenge, bool) {
	if f.email == "" || (f.step != StepAwaitingCode && f.step != StepAwaitingResetCode) {
		return domain.OnboardingChallenge{}, false
	}
	return domain.OnboardingChallenge{
		Email:                          f.email,
		Mode:                           f.mode,
		ResendCooldownSecondsRemaining: f.cooldown.Remaining(),
	}, true
}

type Store struct {
	mu         sync.Mutex
	session    domain.Session
	sessionGen uint64
	loggingIn  bool

	registration flow
	recovery     flow

	api       AuthAPI
	persist   store.StateStore
	publisher events.Publisher
	logger    *slog.Logger
	sfg       singleflight.Group
	now       func() time.Time
}

type Option func(*Store)

func WithPublisher(p events.Publisher) Option {
	return func(s *Store) { s.publisher = p }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithTickerFactory sets the tick source used by both cooldowns.
func WithTickerFactory(f TickerFactory) Option {
	return func(s *Store) {
		s.registration.cooldown = NewCountdown(f)
		s.recovery.cooldown = NewCountdown(f)
	}
}

func NewStore(api AuthAPI, persist store.StateStore, opts ...Option) *Store {
	s := &Store{
		api:          api,
		persist:      persist,
		publisher:    events.NopPublisher{},
		now:          time.Now,
		registration: flow{mode: domain.ChallengeRegister, cooldown: NewCountdown(nil)},
		recovery:     flow{mode: domain.ChallengePasswordReset, cooldown: NewCountdown(nil)},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = logger.OrDefault(s.logger)
	return s
}

// Session returns a copy of the current session.
func (s *Store) Session() domain.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session
}

// UserID is empty unless authenticated.
func (s *Store) UserID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.session.IsAuthenticated() {
		return ""
	}
	return s.session.User.ID
}

// Bootstrap resolves the persisted token. A missing, malformed, expired or
// rejected token leaves the session anonymous and the stored token deleted.
// When the API cannot be reached the session is anonymous but the token is
// kept for a later attempt, and the network error is returned.
func (s *Store) Bootstrap(ctx context.Context) (domain.Session, error) {
	s.mu.Lock()
	gen := s.sessionGen
	s.mu.Unlock()

	var token string
	err := store.LoadJSON(ctx, s.persist, store.KeyToken, &token)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return s.resolveAnonymous(gen), nil
	case errors.Is(err, store.ErrMalformed):
		s.logger.WarnContext(ctx, "malformed persisted token, discarding", "error", err)
		s.deleteToken(ctx)
		return s.resolveAnonymous(gen), nil
	case err != nil:
		s.logger.WarnContext(ctx, "failed to read persisted token", "error", err)
		return s.resolveAnonymous(gen), nil
	}

	token = strings.TrimSpace(token)
	if token == "" || s.tokenExpired(token) {
		s.logger.InfoContext(ctx, "persisted token expired or empty, discarding")
		s.deleteToken(ctx)
		return s.resolveAnonymous(gen), nil
	}

	user, err := s.me(ctx, token)
	if err != nil {
		if apperr.IsKind(err, apperr.KindAuth) {
			s.logger.InfoContext(ctx, "persisted token rejected, discarding")
			s.deleteToken(ctx)
			return s.resolveAnonymous(gen), nil
		}
		s.logger.WarnContext(ctx, "could not resolve session", "error", err)
		return s.resolveAnonymous(gen), err
	}

	s.mu.Lock()
	if s.sessionGen != gen {
		current := s.session
		s.mu.Unlock()
		s.logger.DebugContext(ctx, "discarding stale bootstrap result")
		return current, nil
	}
	s.session = domain.Session{State: domain.SessionAuthenticated, User: user, Token: token}
	s.sessionGen++
	current := s.session
	s.mu.Unlock()

	s.emitAuthenticated(ctx, user, "bootstrap")
	return current, nil
}

func (s *Store) resolveAnonymous(gen uint64) domain.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sessionGen == gen {
		s.session = domain.Session{State: domain.SessionAnonymous}
		s.sessionGen++
	}
	return s.session
}

// tokenExpired reads the exp claim without verifying the signature. Tokens
// that are not JWTs are left to the API to judge.
func (s *Store) tokenExpired(token string) bool {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return !exp.After(s.now())
}

// me dedupes concurrent profile lookups for the same token.
func (s *Store) me(ctx context.Context, token string) (domain.User, error) {
	v, err, _ := s.sfg.Do(token, func() (interface{}, error) {
		return s.api.Me(ctx, token)
	})
	if err != nil {
		return domain.User{}, err
	}
	return v.(domain.User), nil
}

func (s *Store) Login(ctx context.Context, email, password string) (domain.Session, error) {
	if strings.TrimSpace(email) == "" || password == "" {
		return s.Session(), apperr.Validation("email", "Email and password are required")
	}

	s.mu.Lock()
	if s.loggingIn {
		s.mu.Unlock()
		return s.Session(), ErrOperationInFlight
	}
	s.loggingIn = true
	s.mu.Unlock()

	res, err := s.api.Login(ctx, strings.TrimSpace(email), password)

	s.mu.Lock()
	s.loggingIn = false
	s.mu.Unlock()
	if err != nil {
		return s.Session(), err
	}
	return s.establish(ctx, res, "login"), nil
}

// establish persists the token and makes the session authenticated. A
// persistence failure is logged; the in-memory session still holds.
func (s *Store) establish(ctx context.Context, res domain.AuthResult, method string) domain.Session {
	if err := store.SaveJSON(ctx, s.persist, store.KeyToken, res.Token); err != nil {
		s.logger.ErrorContext(ctx, "failed to persist session token", "error", err)
	}

	s.mu.Lock()
	s.session = domain.Session{State: domain.SessionAuthenticated, User: res.User, Token: res.Token}
	s.sessionGen++
	current := s.session
	s.mu.Unlock()

	s.emitAuthenticated(ctx, res.User, method)
	return current
}

// Logout clears the token and returns to anonymous. Challenge flows are
// left as they are.
func (s *Store) Logout(ctx context.Context) domain.Session {
	s.deleteToken(ctx)

	s.mu.Lock()
	prev := s.session
	s.session = domain.Session{State: domain.SessionAnonymous}
	s.sessionGen++
	current := s.session
	s.mu.Unlock()

	if prev.IsAuthenticated() {
		events.Emit(ctx, s.publisher, s.logger, events.NewEvent(events.SessionLoggedOut, prev.User.ID, nil))
	}
	return current
}

// ExpireIfUnauthorized logs the user out when err is the API rejecting the
// session token. It reports whether it did.
func (s *Store) ExpireIfUnauthorized(ctx context.Context, err error) bool {
	if !apperr.IsUnauthorized(err) || !s.Session().IsAuthenticated() {
		return false
	}
	s.logger.InfoContext(ctx, "session token rejected, logging out")
	s.Logout(ctx)
	return true
}

func (s *Store) ChangePassword(ctx context.Context, currentPassword, newPassword, confirmPassword string) (string, error) {
	if newPassword != confirmPassword {
		return "", ErrPasswordMismatch
	}
	sess := s.Session()
	if !sess.IsAuthenticated() {
		return "", ErrNotAuthenticated
	}
	msg, err := s.api.ChangePassword(ctx, sess.Token, currentPassword, newPassword)
	if err != nil {
		s.ExpireIfUnauthorized(ctx, err)
		return "", err
	}
	return msg, nil
}

// RefreshProfile reloads the user behind the current token.
func (s *Store) RefreshProfile(ctx context.Context) (domain.Session, error) {
	s.mu.Lock()
	sess, gen := s.session, s.sessionGen
	s.mu.Unlock()
	if !sess.IsAuthenticated() {
		return sess, ErrNotAuthenticated
	}

	user, err := s.me(ctx, sess.Token)
	if err != nil {
		s.ExpireIfUnauthorized(ctx, err)
		return s.Session(), err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sessionGen == gen {
		s.session.User = user
	}
	return s.session, nil
}

func (s *Store) deleteToken(ctx context.Context) {
	if err := s.persist.Delete(ctx, store.KeyToken); err != nil {
		s.logger.ErrorContext(ctx, "failed to delete session token", "error", err)
	}
}

func (s *Store) emitAuthenticated(ctx context.Context, user domain.User, method string) {
	events.Emit(ctx, s.publisher, s.logger, events.NewEvent(events.SessionAuthenticated, user.ID,
		map[string]string{"method": method, "role": string(user.Role)}))
}

// Close stops both cooldowns.
func (s *Store) Close() {
	s.registration.cooldown.Stop()
	s.recovery.cooldown.Stop()
}
