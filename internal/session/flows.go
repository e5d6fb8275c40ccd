package session

import (
	"context"
	"strings"

	"github.com/fjod/go_cart/storefront/internal/apperr"
	"github.com/fjod/go_cart/storefront/internal/domain"
)

// begin marks f in flight and returns the generation to check on
// completion.
func (s *Store) begin(f *flow) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if f.inFlight {
		return 0, ErrOperationInFlight
	}
	f.inFlight = true
	return f.generation, nil
}

// finish clears the in-flight flag and reports whether the flow is still
// the one the request started in. Must be called with s.mu held.
func (s *Store) finish(f *flow, gen uint64) bool {
	if f.generation != gen {
		return false
	}
	f.inFlight = false
	return true
}

func (s *Store) requireStep(f *flow, step FlowStep) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if f.step != step {
		return ErrNoChallenge
	}
	return nil
}

func (s *Store) enter(f *flow, from, to FlowStep) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if f.step == from {
		f.step = to
	}
}

func (s *Store) abandon(f *flow) {
	s.mu.Lock()
	f.step = StepIdle
	f.email = ""
	f.inFlight = false
	f.generation++
	s.mu.Unlock()

	f.cooldown.Stop()
}

func (s *Store) RegistrationStep() FlowStep {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.registration.step
}

func (s *Store) RecoveryStep() FlowStep {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recovery.step
}

// RegistrationChallenge returns the active registration challenge, if any.
func (s *Store) RegistrationChallenge() (domain.OnboardingChallenge, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.registration.challenge()
}

func (s *Store) RecoveryChallenge() (domain.OnboardingChallenge, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recovery.challenge()
}

// BeginRegistration opens the registration form.
func (s *Store) BeginRegistration() {
	s.enter(&s.registration, StepIdle, StepAwaitingRegistration)
}

// Register asks the API to create the account and email a passcode. On
// success the flow awaits the code with a fresh cooldown; an earlier
// challenge is replaced. On failure the flow stays where it was.
func (s *Store) Register(ctx context.Context, name, email, password string) (domain.OnboardingChallenge, error) {
	name, email = strings.TrimSpace(name), strings.TrimSpace(email)
	if name == "" {
		return domain.OnboardingChallenge{}, apperr.Validation("name", "Name is required")
	}
	if email == "" {
		return domain.OnboardingChallenge{}, apperr.Validation("email", "Email is required")
	}
	if password == "" {
		return domain.OnboardingChallenge{}, apperr.Validation("password", "Password is required")
	}

	f := &s.registration
	s.enter(f, StepIdle, StepAwaitingRegistration)
	gen, err := s.begin(f)
	if err != nil {
		return domain.OnboardingChallenge{}, err
	}

	_, err = s.api.Register(ctx, name, email, password)

	s.mu.Lock()
	if !s.finish(f, gen) {
		s.mu.Unlock()
		s.logger.DebugContext(ctx, "discarding register result for abandoned flow")
		return domain.OnboardingChallenge{}, ErrFlowAbandoned
	}
	if err != nil {
		s.mu.Unlock()
		return domain.OnboardingChallenge{}, err
	}
	f.step = StepAwaitingCode
	f.email = email
	f.cooldown.Start(RegistrationCooldown)
	ch, _ := f.challenge()
	s.mu.Unlock()

	s.logger.InfoContext(ctx, "registration passcode sent", "email", email)
	return ch, nil
}

// VerifyCode completes registration. The returned token is persisted and
// the session becomes authenticated. An empty email means the challenge
// email.
func (s *Store) VerifyCode(ctx context.Context, email, code string) (domain.Session, error) {
	f := &s.registration
	if err := s.requireStep(f, StepAwaitingCode); err != nil {
		return s.Session(), err
	}
	if strings.TrimSpace(code) == "" {
		return s.Session(), apperr.Validation("code", "Verification code is required")
	}
	email = s.challengeEmail(f, email)

	gen, err := s.begin(f)
	if err != nil {
		return s.Session(), err
	}

	res, err := s.api.VerifyOTP(ctx, email, strings.TrimSpace(code))

	s.mu.Lock()
	if !s.finish(f, gen) {
		s.mu.Unlock()
		s.logger.DebugContext(ctx, "discarding verify result for abandoned flow")
		return s.Session(), ErrFlowAbandoned
	}
	if err != nil {
		s.mu.Unlock()
		return s.Session(), err
	}
	f.step = StepIdle
	f.email = ""
	s.mu.Unlock()

	f.cooldown.Stop()
	return s.establish(ctx, res, "otp"), nil
}

// ResendCode is accepted only once the cooldown has reached zero; success
// restarts it.
func (s *Store) ResendCode(ctx context.Context, email string) (domain.OnboardingChallenge, error) {
	f := &s.registration
	if err := s.requireStep(f, StepAwaitingCode); err != nil {
		return domain.OnboardingChallenge{}, err
	}
	return s.resend(ctx, f, s.challengeEmail(f, email), RegistrationCooldown, s.api.ResendOTP)
}

// AbandonRegistration drops the challenge and stops its cooldown. Results of
// requests still in flight are discarded.
func (s *Store) AbandonRegistration() {
	s.abandon(&s.registration)
}

// BeginRecovery opens the forgot-password form.
func (s *Store) BeginRecovery() {
	s.enter(&s.recovery, StepIdle, StepAwaitingResetRequest)
}

func (s *Store) RequestReset(ctx context.Context, email string) (domain.OnboardingChallenge, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return domain.OnboardingChallenge{}, apperr.Validation("email", "Email is required")
	}

	f := &s.recovery
	s.enter(f, StepIdle, StepAwaitingResetRequest)
	gen, err := s.begin(f)
	if err != nil {
		return domain.OnboardingChallenge{}, err
	}

	_, err = s.api.ForgotPassword(ctx, email)

	s.mu.Lock()
	if !s.finish(f, gen) {
		s.mu.Unlock()
		s.logger.DebugContext(ctx, "discarding reset request result for abandoned flow")
		return domain.OnboardingChallenge{}, ErrFlowAbandoned
	}
	if err != nil {
		s.mu.Unlock()
		return domain.OnboardingChallenge{}, err
	}
	f.step = StepAwaitingResetCode
	f.email = email
	f.cooldown.Start(ResetInitialCooldown)
	ch, _ := f.challenge()
	s.mu.Unlock()

	s.logger.InfoContext(ctx, "reset passcode sent", "email", email)
	return ch, nil
}

func (s *Store) ResendResetCode(ctx context.Context, email string) (domain.OnboardingChallenge, error) {
	f := &s.recovery
	if err := s.requireStep(f, StepAwaitingResetCode); err != nil {
		return domain.OnboardingChallenge{}, err
	}
	return s.resend(ctx, f, s.challengeEmail(f, email), ResetResendCooldown, s.api.ForgotPassword)
}

// SubmitReset sets a new password. Mismatched passwords fail before any
// network call. Success ends the flow without a session; the user logs in
// next.
func (s *Store) SubmitReset(ctx context.Context, email, code, newPassword, confirmPassword string) (string, error) {
	if newPassword != confirmPassword {
		return "", ErrPasswordMismatch
	}
	if newPassword == "" {
		return "", apperr.Validation("password", "Password is required")
	}

	f := &s.recovery
	if err := s.requireStep(f, StepAwaitingResetCode); err != nil {
		return "", err
	}
	if strings.TrimSpace(code) == "" {
		return "", apperr.Validation("code", "Verification code is required")
	}
	email = s.challengeEmail(f, email)

	gen, err := s.begin(f)
	if err != nil {
		return "", err
	}

	msg, err := s.api.ResetPassword(ctx, email, strings.TrimSpace(code), newPassword)

	s.mu.Lock()
	if !s.finish(f, gen) {
		s.mu.Unlock()
		s.logger.DebugContext(ctx, "discarding reset result for abandoned flow")
		return "", ErrFlowAbandoned
	}
	if err != nil {
		s.mu.Unlock()
		return "", err
	}
	f.step = StepIdle
	f.email = ""
	s.mu.Unlock()

	f.cooldown.Stop()
	return msg, nil
}

func (s *Store) AbandonRecovery() {
	s.abandon(&s.recovery)
}

func (s *Store) resend(ctx context.Context, f *flow, email string, cooldown int,
	call func(context.Context, string) (string, error)) (domain.OnboardingChallenge, error) {
	if f.cooldown.Remaining() > 0 {
		return domain.OnboardingChallenge{}, ErrCooldownActive
	}

	gen, err := s.begin(f)
	if err != nil {
		return domain.OnboardingChallenge{}, err
	}

	_, err = call(ctx, email)

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.finish(f, gen) {
		return domain.OnboardingChallenge{}, ErrFlowAbandoned
	}
	if err != nil {
		ch, _ := f.challenge()
		return ch, err
	}
	f.cooldown.Start(cooldown)
	ch, _ := f.challenge()
	return ch, nil
}

func (s *Store) challengeEmail(f *flow, email string) string {
	if email = strings.TrimSpace(email); email != "" {
		return email
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return f.email
}
